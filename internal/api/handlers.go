package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"photovault/internal/auth"
	"photovault/internal/observability/metrics"
	"photovault/internal/storage"
)

const defaultMaxUploadBytes = 25 << 20

// Handler exposes the HTTP API backed by a Repository and a SessionManager.
// The zero value of the optional fields selects sensible defaults.
type Handler struct {
	Store               storage.Repository
	Sessions            *auth.SessionManager
	Metrics             *metrics.Recorder
	SessionCookiePolicy SessionCookiePolicy

	// MaxUploadBytes caps the size of a photo upload request body.
	MaxUploadBytes int64
	// UploadConcurrency bounds the number of uploads held in memory at once.
	UploadConcurrency int64

	uploadOnce  sync.Once
	uploadSlots *semaphore.Weighted

	sessionsOnce     sync.Once
	fallbackSessions *auth.SessionManager
}

func NewHandler(store storage.Repository, sessions *auth.SessionManager) *Handler {
	if sessions == nil {
		sessions = auth.NewSessionManager(24 * time.Hour)
	}
	return &Handler{Store: store, Sessions: sessions}
}

// sessionManager falls back to a process-local manager when the Handler was
// built as a literal without Sessions. The exported field is never written,
// so concurrent requests only ever read it.
func (h *Handler) sessionManager() *auth.SessionManager {
	if h.Sessions != nil {
		return h.Sessions
	}
	h.sessionsOnce.Do(func() {
		h.fallbackSessions = auth.NewSessionManager(24 * time.Hour)
	})
	return h.fallbackSessions
}

func (h *Handler) metricsRecorder() *metrics.Recorder {
	if h.Metrics == nil {
		return metrics.Default()
	}
	return h.Metrics
}

func (h *Handler) maxUploadBytes() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

// ExtractToken pulls the session token from the Authorization header or the
// session cookie.
func ExtractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// UserScoped routes /{userID}/photos... and /{userID}/albums... requests. The
// owner gate runs after path parsing and before any datastore access.
func (h *Handler) UserScoped(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	if len(parts) < 2 {
		writeMessage(w, http.StatusNotFound, "not found")
		return
	}
	pathUserID, ok := parseID(w, parts[0], "userID")
	if !ok {
		return
	}

	switch parts[1] {
	case "photos":
		h.userPhotos(w, r, pathUserID, parts[2:])
	case "albums":
		h.userAlbums(w, r, pathUserID, parts[2:])
	default:
		writeMessage(w, http.StatusNotFound, "not found")
	}
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
}
