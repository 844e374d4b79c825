package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"photovault/internal/models"
	"photovault/internal/storage"
)

type createUserRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type userResponse struct {
	ID        int64    `json:"userID"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
	CreatedAt string   `json:"createdAt"`
}

func newUserResponse(user models.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Roles:     append([]string{}, user.Roles...),
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Users handles the admin-only account collection: listing and creation.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requireRole(w, r, roleAdmin); !ok {
			return
		}
		users, err := h.Store.ListUsers(r.Context())
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "list users failed")
			return
		}
		response := make([]userResponse, 0, len(users))
		for _, user := range users {
			response = append(response, newUserResponse(user))
		}
		writeJSON(w, http.StatusOK, response)
	case http.MethodPost:
		if _, ok := h.requireRole(w, r, roleAdmin); !ok {
			return
		}
		var req createUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		user, err := h.Store.CreateUser(r.Context(), storage.CreateUserParams{
			Username: req.Username,
			Password: req.Password,
			Roles:    req.Roles,
		})
		if errors.Is(err, storage.ErrUsernameTaken) {
			writeMessage(w, http.StatusBadRequest, "username already taken")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "user created",
			"userID":  user.ID,
		})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// UserByID handles /users/search plus edits and deletes of single accounts.
// Every branch is admin-gated.
func (h *Handler) UserByID(w http.ResponseWriter, r *http.Request) {
	segment := strings.TrimPrefix(r.URL.Path, "/users/")
	if segment == "" || strings.Contains(segment, "/") {
		writeMessage(w, http.StatusNotFound, "not found")
		return
	}

	if segment == "search" {
		h.searchUsers(w, r)
		return
	}

	id, ok := parseID(w, segment, "userID")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPut:
		if _, ok := h.requireRole(w, r, roleAdmin); !ok {
			return
		}
		var req updateUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.Username == nil || req.Password == nil {
			writeMessage(w, http.StatusBadRequest, "username and password are required")
			return
		}
		err := h.Store.UpdateUser(r.Context(), id, storage.UserUpdate{
			Username: req.Username,
			Password: req.Password,
		})
		if errors.Is(err, storage.ErrNotFound) {
			// An edit that matches no row reports 400, unlike delete.
			writeMessage(w, http.StatusBadRequest, "user not found")
			return
		}
		if errors.Is(err, storage.ErrUsernameTaken) {
			writeMessage(w, http.StatusBadRequest, "username already taken")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeMessage(w, http.StatusOK, "user updated")
	case http.MethodDelete:
		if _, ok := h.requireRole(w, r, roleAdmin); !ok {
			return
		}
		err := h.Store.DeleteUser(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "user not found")
			return
		}
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "delete user failed")
			return
		}
		writeMessage(w, http.StatusOK, "user deleted")
	default:
		methodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}

func (h *Handler) searchUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if _, ok := h.requireRole(w, r, roleAdmin); !ok {
		return
	}
	term := r.URL.Query().Get("searchTerm")
	users, err := h.Store.SearchUsers(r.Context(), term)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "search users failed")
		return
	}
	if len(users) == 0 {
		writeMessage(w, http.StatusNotFound, "no users found")
		return
	}
	response := make([]userResponse, 0, len(users))
	for _, user := range users {
		response = append(response, newUserResponse(user))
	}
	writeJSON(w, http.StatusOK, response)
}
