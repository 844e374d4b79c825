package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"photovault/internal/models"
)

type contextKey string

const (
	userContextKey contextKey = "authenticatedUser"

	roleAdmin = models.RoleAdmin
)

// ContextWithUser stores the authenticated user in the provided context.
func ContextWithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user from context if present.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey).(models.User)
	return user, ok
}

// AuthenticateRequest validates the session token on the request and returns
// the account it belongs to.
func (h *Handler) AuthenticateRequest(r *http.Request) (models.User, error) {
	token := ExtractToken(r)
	if token == "" {
		return models.User{}, fmt.Errorf("missing session token")
	}
	userID, _, ok, err := h.sessionManager().Validate(token)
	if err != nil {
		return models.User{}, fmt.Errorf("validate session: %w", err)
	}
	if !ok {
		return models.User{}, fmt.Errorf("invalid or expired session")
	}
	user, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		return models.User{}, fmt.Errorf("account not found")
	}
	return user, nil
}

// requireAuthenticatedUser answers 403 when no session identity is attached.
// Only failed logins report 401; everything past the login route treats a
// missing session the same as an insufficient one.
func (h *Handler) requireAuthenticatedUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusForbidden, "forbidden")
		return models.User{}, false
	}
	return user, true
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, roles ...string) (models.User, bool) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return models.User{}, false
	}
	if len(roles) == 0 {
		return user, true
	}
	if !userHasAnyRole(user, roles...) {
		writeMessage(w, http.StatusForbidden, "forbidden")
		return models.User{}, false
	}
	return user, true
}

// requireOwner gates the user-scoped routes: the session identity must match
// the userID path segment. The mismatch is reported as 403 regardless of
// whether any resource under the path exists.
func (h *Handler) requireOwner(w http.ResponseWriter, r *http.Request, pathUserID int64) (models.User, bool) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return models.User{}, false
	}
	if user.ID != pathUserID {
		writeMessage(w, http.StatusForbidden, "forbidden")
		return models.User{}, false
	}
	return user, true
}

func userHasAnyRole(user models.User, roles ...string) bool {
	for _, required := range roles {
		for _, existing := range user.Roles {
			if strings.EqualFold(existing, required) {
				return true
			}
		}
	}
	return false
}
