package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *Memory {
	t.Helper()
	return NewMemory()
}

func mustCreateUser(t *testing.T, repo *Memory, username string) int64 {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), CreateUserParams{
		Username: username,
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("CreateUser(%q): %v", username, err)
	}
	return user.ID
}

func mustCreatePhoto(t *testing.T, repo *Memory, ownerID int64, title string) int64 {
	t.Helper()
	photo, err := repo.CreatePhoto(context.Background(), CreatePhotoParams{
		OwnerID:     ownerID,
		Title:       title,
		CaptureDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Tags:        "holiday",
		ContentType: "image/jpeg",
		MediaToken:  "token-" + title,
		Content:     []byte{0xff, 0xd8, 0xff},
	})
	if err != nil {
		t.Fatalf("CreatePhoto(%q): %v", title, err)
	}
	return photo.ID
}

func mustCreateAlbum(t *testing.T, repo *Memory, ownerID int64, title string) int64 {
	t.Helper()
	album, err := repo.CreateAlbum(context.Background(), CreateAlbumParams{
		OwnerID: ownerID,
		Title:   title,
	})
	if err != nil {
		t.Fatalf("CreateAlbum(%q): %v", title, err)
	}
	return album.ID
}

func TestAuthenticateUser(t *testing.T) {
	repo := newTestRepo(t)
	mustCreateUser(t, repo, "alice")

	cases := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "valid", username: "alice", password: "correct horse"},
		{name: "case insensitive username", username: "ALICE", password: "correct horse"},
		{name: "wrong password", username: "alice", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown user", username: "mallory", password: "correct horse", wantErr: ErrInvalidCredentials},
		{name: "empty password", username: "alice", password: "", wantErr: ErrInvalidCredentials},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.AuthenticateUser(context.Background(), tc.username, tc.password)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("AuthenticateUser: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("AuthenticateUser error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	repo := newTestRepo(t)
	mustCreateUser(t, repo, "alice")

	_, err := repo.CreateUser(context.Background(), CreateUserParams{Username: "Alice", Password: "pw123456"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("CreateUser duplicate error = %v, want ErrUsernameTaken", err)
	}
}

func TestUpdateAndDeleteUser(t *testing.T) {
	repo := newTestRepo(t)
	id := mustCreateUser(t, repo, "alice")

	newName := "alice2"
	if err := repo.UpdateUser(context.Background(), id, UserUpdate{Username: &newName}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	user, err := repo.GetUser(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.Username != "alice2" {
		t.Fatalf("Username = %q, want alice2", user.Username)
	}

	if err := repo.UpdateUser(context.Background(), id+99, UserUpdate{Username: &newName}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateUser missing error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteUser(context.Background(), id+99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteUser missing error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteUser(context.Background(), id); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := repo.GetUser(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUser after delete error = %v, want ErrNotFound", err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	repo := newTestRepo(t)
	owner := mustCreateUser(t, repo, "alice")
	photoID := mustCreatePhoto(t, repo, owner, "beach")
	albumID := mustCreateAlbum(t, repo, owner, "summer")
	if err := repo.AddAlbumPhoto(context.Background(), owner, albumID, photoID); err != nil {
		t.Fatalf("AddAlbumPhoto: %v", err)
	}

	if err := repo.DeleteUser(context.Background(), owner); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := repo.GetPhotoContent(context.Background(), photoID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("photo survived owner deletion: %v", err)
	}
	if _, err := repo.ListAlbumPhotos(context.Background(), owner, albumID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("album survived owner deletion: %v", err)
	}
}

func TestPhotoOwnershipScoping(t *testing.T) {
	repo := newTestRepo(t)
	alice := mustCreateUser(t, repo, "alice")
	bob := mustCreateUser(t, repo, "bob")
	photoID := mustCreatePhoto(t, repo, alice, "beach")

	title := "stolen"
	if err := repo.UpdatePhoto(context.Background(), bob, photoID, PhotoUpdate{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdatePhoto cross-owner error = %v, want ErrNotFound", err)
	}
	if err := repo.DeletePhoto(context.Background(), bob, photoID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeletePhoto cross-owner error = %v, want ErrNotFound", err)
	}

	photos, err := repo.ListPhotos(context.Background(), bob)
	if err != nil {
		t.Fatalf("ListPhotos: %v", err)
	}
	if len(photos) != 0 {
		t.Fatalf("ListPhotos(bob) = %d photos, want 0", len(photos))
	}

	if err := repo.UpdatePhoto(context.Background(), alice, photoID, PhotoUpdate{Title: &title}); err != nil {
		t.Fatalf("UpdatePhoto: %v", err)
	}
	content, err := repo.GetPhotoContent(context.Background(), photoID)
	if err != nil {
		t.Fatalf("GetPhotoContent: %v", err)
	}
	if content.Title != "stolen" {
		t.Fatalf("Title = %q, want stolen", content.Title)
	}
}

func TestSearchEmptyTermMatchesAll(t *testing.T) {
	repo := newTestRepo(t)
	owner := mustCreateUser(t, repo, "alice")
	mustCreatePhoto(t, repo, owner, "beach")
	mustCreatePhoto(t, repo, owner, "mountain")

	photos, err := repo.SearchPhotos(context.Background(), owner, "")
	if err != nil {
		t.Fatalf("SearchPhotos: %v", err)
	}
	if len(photos) != 2 {
		t.Fatalf("SearchPhotos(\"\") = %d photos, want 2", len(photos))
	}

	photos, err = repo.SearchPhotos(context.Background(), owner, "MOUNT")
	if err != nil {
		t.Fatalf("SearchPhotos: %v", err)
	}
	if len(photos) != 1 || photos[0].Title != "mountain" {
		t.Fatalf("SearchPhotos(MOUNT) = %+v, want the mountain photo", photos)
	}
}

func TestAlbumPhotoLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	alice := mustCreateUser(t, repo, "alice")
	bob := mustCreateUser(t, repo, "bob")
	albumID := mustCreateAlbum(t, repo, alice, "summer")
	photoID := mustCreatePhoto(t, repo, alice, "beach")
	bobPhoto := mustCreatePhoto(t, repo, bob, "city")

	if err := repo.AddAlbumPhoto(context.Background(), alice, albumID, bobPhoto); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AddAlbumPhoto foreign photo error = %v, want ErrNotFound", err)
	}
	if err := repo.AddAlbumPhoto(context.Background(), bob, albumID, photoID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AddAlbumPhoto foreign album error = %v, want ErrNotFound", err)
	}
	if err := repo.AddAlbumPhoto(context.Background(), alice, albumID, photoID); err != nil {
		t.Fatalf("AddAlbumPhoto: %v", err)
	}

	photos, err := repo.ListAlbumPhotos(context.Background(), alice, albumID)
	if err != nil {
		t.Fatalf("ListAlbumPhotos: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != photoID {
		t.Fatalf("ListAlbumPhotos = %+v, want the beach photo", photos)
	}
	if len(photos[0].Content) == 0 {
		t.Fatalf("ListAlbumPhotos returned empty content")
	}

	if err := repo.RemoveAlbumPhoto(context.Background(), alice, albumID, photoID); err != nil {
		t.Fatalf("RemoveAlbumPhoto: %v", err)
	}
	if err := repo.RemoveAlbumPhoto(context.Background(), alice, albumID, photoID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("RemoveAlbumPhoto repeat error = %v, want ErrNotFound", err)
	}
}

func TestDeleteAlbumRemovesAssociations(t *testing.T) {
	repo := newTestRepo(t)
	owner := mustCreateUser(t, repo, "alice")
	albumID := mustCreateAlbum(t, repo, owner, "summer")
	photoID := mustCreatePhoto(t, repo, owner, "beach")
	if err := repo.AddAlbumPhoto(context.Background(), owner, albumID, photoID); err != nil {
		t.Fatalf("AddAlbumPhoto: %v", err)
	}

	if err := repo.DeleteAlbum(context.Background(), owner, albumID); err != nil {
		t.Fatalf("DeleteAlbum: %v", err)
	}
	if _, err := repo.ListAlbumPhotos(context.Background(), owner, albumID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ListAlbumPhotos after delete error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetPhotoContent(context.Background(), photoID); err != nil {
		t.Fatalf("photo should survive album deletion: %v", err)
	}
}

func TestDeletePhotoRemovesAssociations(t *testing.T) {
	repo := newTestRepo(t)
	owner := mustCreateUser(t, repo, "alice")
	albumID := mustCreateAlbum(t, repo, owner, "summer")
	photoID := mustCreatePhoto(t, repo, owner, "beach")
	if err := repo.AddAlbumPhoto(context.Background(), owner, albumID, photoID); err != nil {
		t.Fatalf("AddAlbumPhoto: %v", err)
	}

	if err := repo.DeletePhoto(context.Background(), owner, photoID); err != nil {
		t.Fatalf("DeletePhoto: %v", err)
	}
	photos, err := repo.ListAlbumPhotos(context.Background(), owner, albumID)
	if err != nil {
		t.Fatalf("ListAlbumPhotos: %v", err)
	}
	if len(photos) != 0 {
		t.Fatalf("stale association rows survived photo deletion: %+v", photos)
	}
}

func TestPhotoContentRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	owner := mustCreateUser(t, repo, "alice")
	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 0x4a, 0x46}
	photo, err := repo.CreatePhoto(context.Background(), CreatePhotoParams{
		OwnerID:     owner,
		Title:       "beach",
		CaptureDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		ContentType: "image/jpeg",
		MediaToken:  "token",
		Content:     payload,
	})
	if err != nil {
		t.Fatalf("CreatePhoto: %v", err)
	}
	content, err := repo.GetPhotoContent(context.Background(), photo.ID)
	if err != nil {
		t.Fatalf("GetPhotoContent: %v", err)
	}
	if string(content.Content) != string(payload) {
		t.Fatalf("content mismatch: got %x want %x", content.Content, payload)
	}
	if content.SizeBytes != int64(len(payload)) {
		t.Fatalf("SizeBytes = %d, want %d", content.SizeBytes, len(payload))
	}
}
