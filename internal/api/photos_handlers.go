package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"photovault/internal/models"
	"photovault/internal/storage"
)

const captureDateLayout = "2006-01-02"

type photoResponse struct {
	ID          int64  `json:"photoID"`
	Title       string `json:"title"`
	CaptureDate string `json:"capture_date"`
	Tags        string `json:"tags"`
	URL         string `json:"url"`
}

type updatePhotoRequest struct {
	Title       *string `json:"title"`
	CaptureDate *string `json:"capture_date"`
	Tags        *string `json:"tags"`
}

func newPhotoResponse(photo models.Photo) photoResponse {
	return photoResponse{
		ID:          photo.ID,
		Title:       photo.Title,
		CaptureDate: photo.CaptureDate.Format(captureDateLayout),
		Tags:        photo.Tags,
		URL:         photoMediaURL(photo),
	}
}

func photoMediaURL(photo models.Photo) string {
	return fmt.Sprintf("/photos/%d?token=%s", photo.ID, photo.MediaToken)
}

// ServePhoto streams the raw photo bytes for GET /photos/{photoID}. Access
// requires either an owning session or the photo's media token; the token
// comparison is constant time.
func (h *Handler) ServePhoto(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	segment := strings.TrimPrefix(r.URL.Path, "/photos/")
	if segment == "" || strings.Contains(segment, "/") {
		http.NotFound(w, r)
		return
	}
	photoID, ok := parseID(w, segment, "photoID")
	if !ok {
		return
	}

	// The blob route never writes the JSON envelope, misses included.
	photo, err := h.Store.GetPhotoContent(r.Context(), photoID)
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "load photo failed")
		return
	}

	if !h.photoAccessAllowed(r, photo.Photo) {
		writeMessage(w, http.StatusForbidden, "invalid media token")
		return
	}

	contentType := photo.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(photo.Content)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = io.Copy(w, bytes.NewReader(photo.Content))
}

func (h *Handler) photoAccessAllowed(r *http.Request, photo models.Photo) bool {
	if user, ok := UserFromContext(r.Context()); ok && user.ID == photo.OwnerID {
		return true
	}
	token := r.URL.Query().Get("token")
	if token == "" || photo.MediaToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(photo.MediaToken)) == 1
}

// userPhotos routes /{userID}/photos and its children once the path user id
// has been parsed.
func (h *Handler) userPhotos(w http.ResponseWriter, r *http.Request, pathUserID int64, rest []string) {
	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodPost:
			if _, ok := h.requireOwner(w, r, pathUserID); !ok {
				return
			}
			h.uploadPhoto(w, r, pathUserID)
		case http.MethodGet:
			if _, ok := h.requireOwner(w, r, pathUserID); !ok {
				return
			}
			h.listPhotos(w, r, pathUserID)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(rest) == 1 && rest[0] == "search":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		if _, ok := h.requireOwner(w, r, pathUserID); !ok {
			return
		}
		h.searchPhotos(w, r, pathUserID)
	case len(rest) == 1:
		photoID, ok := parseID(w, rest[0], "photoID")
		if !ok {
			return
		}
		if _, ok := h.requireOwner(w, r, pathUserID); !ok {
			return
		}
		switch r.Method {
		case http.MethodPut:
			h.updatePhoto(w, r, pathUserID, photoID)
		case http.MethodDelete:
			h.deletePhoto(w, r, pathUserID, photoID)
		default:
			methodNotAllowed(w, http.MethodPut, http.MethodDelete)
		}
	default:
		writeMessage(w, http.StatusNotFound, "not found")
	}
}

// uploadPhoto consumes a multipart form with file, title, capture_date, and
// optional tags parts. The file is streamed under MaxBytesReader and an
// upload slot bounds how many payloads are held in memory at once.
func (h *Handler) uploadPhoto(w http.ResponseWriter, r *http.Request, ownerID int64) {
	if err := h.acquireUploadSlot(r.Context()); err != nil {
		writeMessage(w, http.StatusServiceUnavailable, "too many concurrent uploads")
		return
	}
	defer h.releaseUploadSlot()

	recorder := h.metricsRecorder()
	recorder.UploadStarted()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes())
	reader, err := r.MultipartReader()
	if err != nil {
		recorder.UploadFailed()
		writeMessage(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}

	var (
		content     []byte
		contentType string
		title       string
		captureDate string
		tags        string
	)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			recorder.UploadFailed()
			writeError(w, http.StatusBadRequest, fmt.Errorf("read multipart data: %w", err))
			return
		}
		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}
		if name == "file" {
			if content != nil {
				_ = part.Close()
				continue
			}
			data, contentTypeValue, readErr := readPhotoPart(part)
			if readErr != nil {
				recorder.UploadFailed()
				writeError(w, http.StatusBadRequest, readErr)
				return
			}
			content = data
			contentType = contentTypeValue
			continue
		}
		payload, readErr := io.ReadAll(part)
		_ = part.Close()
		if readErr != nil {
			recorder.UploadFailed()
			writeError(w, http.StatusBadRequest, fmt.Errorf("read form field: %w", readErr))
			return
		}
		value := strings.TrimSpace(string(payload))
		switch name {
		case "title":
			title = value
		case "capture_date":
			captureDate = value
		case "tags":
			tags = value
		}
	}

	if len(content) == 0 {
		recorder.UploadFailed()
		writeMessage(w, http.StatusBadRequest, "file is required")
		return
	}
	if title == "" || captureDate == "" {
		recorder.UploadFailed()
		writeMessage(w, http.StatusBadRequest, "title and capture_date are required")
		return
	}
	capturedAt, err := time.Parse(captureDateLayout, captureDate)
	if err != nil {
		recorder.UploadFailed()
		writeMessage(w, http.StatusBadRequest, "capture_date must use YYYY-MM-DD")
		return
	}

	photo, err := h.Store.CreatePhoto(r.Context(), storage.CreatePhotoParams{
		OwnerID:     ownerID,
		Title:       title,
		CaptureDate: capturedAt,
		Tags:        tags,
		ContentType: contentType,
		MediaToken:  generateMediaToken(),
		Content:     content,
	})
	if err != nil {
		recorder.UploadFailed()
		writeMessage(w, http.StatusInternalServerError, "store photo failed")
		return
	}

	recorder.UploadCompleted(photo.SizeBytes)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "photo uploaded",
		"photoID": photo.ID,
		"url":     photoMediaURL(photo),
	})
}

func readPhotoPart(part *multipart.Part) ([]byte, string, error) {
	defer part.Close()
	data, err := io.ReadAll(part)
	if err != nil {
		return nil, "", fmt.Errorf("read file part: %w", err)
	}
	contentType := part.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func (h *Handler) acquireUploadSlot(ctx context.Context) error {
	h.uploadOnce.Do(func() {
		limit := h.UploadConcurrency
		if limit <= 0 {
			limit = 4
		}
		h.uploadSlots = semaphore.NewWeighted(limit)
	})
	return h.uploadSlots.Acquire(ctx, 1)
}

func (h *Handler) releaseUploadSlot() {
	if h.uploadSlots != nil {
		h.uploadSlots.Release(1)
	}
}

func generateMediaToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

func (h *Handler) listPhotos(w http.ResponseWriter, r *http.Request, ownerID int64) {
	photos, err := h.Store.ListPhotos(r.Context(), ownerID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "list photos failed")
		return
	}
	response := make([]photoResponse, 0, len(photos))
	for _, photo := range photos {
		response = append(response, newPhotoResponse(photo))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) searchPhotos(w http.ResponseWriter, r *http.Request, ownerID int64) {
	term := r.URL.Query().Get("searchTerm")
	photos, err := h.Store.SearchPhotos(r.Context(), ownerID, term)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "search photos failed")
		return
	}
	if len(photos) == 0 {
		writeMessage(w, http.StatusNotFound, "no photos found")
		return
	}
	response := make([]photoResponse, 0, len(photos))
	for _, photo := range photos {
		response = append(response, newPhotoResponse(photo))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) updatePhoto(w http.ResponseWriter, r *http.Request, ownerID, photoID int64) {
	var req updatePhotoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Title == nil || req.Tags == nil {
		writeMessage(w, http.StatusBadRequest, "title and tags are required")
		return
	}
	update := storage.PhotoUpdate{Title: req.Title, Tags: req.Tags}
	if req.CaptureDate != nil {
		capturedAt, err := time.Parse(captureDateLayout, *req.CaptureDate)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "capture_date must use YYYY-MM-DD")
			return
		}
		update.CaptureDate = &capturedAt
	}
	err := h.Store.UpdatePhoto(r.Context(), ownerID, photoID, update)
	if errors.Is(err, storage.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "photo not found")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "update photo failed")
		return
	}
	writeMessage(w, http.StatusOK, "photo updated")
}

func (h *Handler) deletePhoto(w http.ResponseWriter, r *http.Request, ownerID, photoID int64) {
	err := h.Store.DeletePhoto(r.Context(), ownerID, photoID)
	if errors.Is(err, storage.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "photo not found")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "delete photo failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
