package models

import (
	"time"
)

// RoleAdmin marks accounts allowed to manage other users.
const RoleAdmin = "admin"

// User is an account holder. PasswordHash is never serialized; API responses
// expose only the public fields.
type User struct {
	ID           int64     `json:"userID"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HasRole reports whether the user carries the given role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Photo describes a stored image. The binary content lives in the datastore
// and is fetched separately via PhotoContent; list responses never carry it.
// MediaToken authorizes unauthenticated fetches of the raw bytes.
type Photo struct {
	ID          int64     `json:"photoID"`
	OwnerID     int64     `json:"userID"`
	Title       string    `json:"title"`
	CaptureDate time.Time `json:"-"`
	Tags        string    `json:"tags"`
	ContentType string    `json:"-"`
	MediaToken  string    `json:"-"`
	SizeBytes   int64     `json:"-"`
	CreatedAt   time.Time `json:"-"`
}

// PhotoContent bundles photo metadata with its binary payload.
type PhotoContent struct {
	Photo
	Content []byte
}

// Album groups photos belonging to one owner.
type Album struct {
	ID        int64     `json:"albumID"`
	OwnerID   int64     `json:"userID"`
	Title     string    `json:"title"`
	Tags      string    `json:"tags"`
	CreatedAt time.Time `json:"-"`
}
