package storage

import (
	"context"
	"errors"
	"time"

	"photovault/internal/models"
)

// Sentinel errors shared by every repository backend. Handlers translate
// these into HTTP status codes.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
)

// Repository exposes the datastore operations required by the API handlers
// and auxiliary tooling. Ownership is enforced inside every photo and album
// operation: a row that exists but belongs to a different owner is
// indistinguishable from an absent row and surfaces as ErrNotFound.
type Repository interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SearchUsers(ctx context.Context, term string) ([]models.User, error)
	UpdateUser(ctx context.Context, id int64, update UserUpdate) error
	DeleteUser(ctx context.Context, id int64) error

	CreatePhoto(ctx context.Context, params CreatePhotoParams) (models.Photo, error)
	GetPhotoContent(ctx context.Context, id int64) (models.PhotoContent, error)
	ListPhotos(ctx context.Context, ownerID int64) ([]models.Photo, error)
	SearchPhotos(ctx context.Context, ownerID int64, term string) ([]models.Photo, error)
	UpdatePhoto(ctx context.Context, ownerID, photoID int64, update PhotoUpdate) error
	DeletePhoto(ctx context.Context, ownerID, photoID int64) error

	CreateAlbum(ctx context.Context, params CreateAlbumParams) (models.Album, error)
	ListAlbums(ctx context.Context, ownerID int64) ([]models.Album, error)
	SearchAlbums(ctx context.Context, ownerID int64, term string) ([]models.Album, error)
	UpdateAlbum(ctx context.Context, ownerID, albumID int64, update AlbumUpdate) error
	DeleteAlbum(ctx context.Context, ownerID, albumID int64) error

	AddAlbumPhoto(ctx context.Context, ownerID, albumID, photoID int64) error
	ListAlbumPhotos(ctx context.Context, ownerID, albumID int64) ([]models.PhotoContent, error)
	RemoveAlbumPhoto(ctx context.Context, ownerID, albumID, photoID int64) error
}

// CreateUserParams carries the fields required to register an account. Roles
// is optional; regular accounts carry none.
type CreateUserParams struct {
	Username string
	Password string
	Roles    []string
}

// UserUpdate describes a partial account edit. Nil fields are left unchanged.
type UserUpdate struct {
	Username *string
	Password *string
	Roles    []string
}

// CreatePhotoParams carries photo metadata plus the binary payload.
type CreatePhotoParams struct {
	OwnerID     int64
	Title       string
	CaptureDate time.Time
	Tags        string
	ContentType string
	MediaToken  string
	Content     []byte
}

// PhotoUpdate describes a partial photo edit. Nil fields are left unchanged.
type PhotoUpdate struct {
	Title       *string
	CaptureDate *time.Time
	Tags        *string
}

// CreateAlbumParams carries the fields required to create an album.
type CreateAlbumParams struct {
	OwnerID int64
	Title   string
	Tags    string
}

// AlbumUpdate describes a partial album edit. Nil fields are left unchanged.
type AlbumUpdate struct {
	Title *string
	Tags  *string
}
