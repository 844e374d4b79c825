package api

import (
	"errors"
	"net/http"
	"time"

	"photovault/internal/storage"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message   string `json:"message"`
	UserID    int64  `json:"userID"`
	ExpiresAt string `json:"expiresAt"`
}

// Login verifies credentials and issues a session token. Unknown usernames
// and wrong passwords produce the same response.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := h.Store.AuthenticateUser(r.Context(), req.Username, req.Password)
	if errors.Is(err, storage.ErrInvalidCredentials) {
		// Same 401 for unknown usernames and wrong passwords.
		h.metricsRecorder().ObserveAuthEvent("login_failure")
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "login failed")
		return
	}

	token, expiresAt, err := h.sessionManager().Create(user.ID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "create session failed")
		return
	}

	h.metricsRecorder().ObserveAuthEvent("login_success")
	h.setSessionCookie(w, r, token, expiresAt)
	writeJSON(w, http.StatusOK, loginResponse{
		Message:   "login successful",
		UserID:    user.ID,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout revokes the presented session token, if any, and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	if token := ExtractToken(r); token != "" {
		if err := h.sessionManager().Revoke(token); err != nil {
			writeMessage(w, http.StatusInternalServerError, "logout failed")
			return
		}
	}
	h.metricsRecorder().ObserveAuthEvent("logout")
	h.ClearSessionCookie(w, r)
	writeMessage(w, http.StatusOK, "logout successful")
}
