package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"photovault/internal/models"
)

// Memory is an in-process Repository used by tests and by the dev-mode
// server. It mirrors the Postgres backend's semantics, including the
// owner-scoped lookups and cascade deletes.
type Memory struct {
	mu          sync.RWMutex
	users       map[int64]models.User
	photos      map[int64]models.PhotoContent
	albums      map[int64]models.Album
	albumPhotos map[int64]map[int64]struct{}
	nextUserID  int64
	nextPhotoID int64
	nextAlbumID int64
	now         func() time.Time
}

// NewMemory constructs an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		users:       make(map[int64]models.User),
		photos:      make(map[int64]models.PhotoContent),
		albums:      make(map[int64]models.Album),
		albumPhotos: make(map[int64]map[int64]struct{}),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close(ctx context.Context) error { return nil }

func (m *Memory) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		return models.User{}, errors.New("username is required")
	}
	hashed, err := hashPassword(params.Password)
	if err != nil {
		return models.User{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, username) {
			return models.User{}, ErrUsernameTaken
		}
	}

	m.nextUserID++
	user := models.User{
		ID:           m.nextUserID,
		Username:     username,
		PasswordHash: hashed,
		Roles:        append([]string(nil), params.Roles...),
		CreatedAt:    m.now(),
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *Memory) AuthenticateUser(ctx context.Context, username, password string) (models.User, error) {
	if password == "" {
		return models.User{}, ErrInvalidCredentials
	}

	m.mu.RLock()
	var user models.User
	found := false
	for _, candidate := range m.users {
		if strings.EqualFold(candidate.Username, username) {
			user = candidate
			found = true
			break
		}
	}
	m.mu.RUnlock()

	if !found {
		return models.User{}, ErrInvalidCredentials
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (m *Memory) GetUser(ctx context.Context, id int64) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

func (m *Memory) ListUsers(ctx context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]models.User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *Memory) SearchUsers(ctx context.Context, term string) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(term)
	matches := make([]models.User, 0)
	for _, user := range m.users {
		if strings.Contains(strings.ToLower(user.Username), needle) {
			matches = append(matches, user)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func (m *Memory) UpdateUser(ctx context.Context, id int64, update UserUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if username == "" {
			return errors.New("username is required")
		}
		for otherID, existing := range m.users {
			if otherID != id && strings.EqualFold(existing.Username, username) {
				return ErrUsernameTaken
			}
		}
		user.Username = username
	}
	if update.Password != nil {
		hashed, err := hashPassword(*update.Password)
		if err != nil {
			return err
		}
		user.PasswordHash = hashed
	}
	if update.Roles != nil {
		user.Roles = append([]string(nil), update.Roles...)
	}
	m.users[id] = user
	return nil
}

func (m *Memory) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	for photoID, photo := range m.photos {
		if photo.OwnerID == id {
			delete(m.photos, photoID)
			for _, members := range m.albumPhotos {
				delete(members, photoID)
			}
		}
	}
	for albumID, album := range m.albums {
		if album.OwnerID == id {
			delete(m.albums, albumID)
			delete(m.albumPhotos, albumID)
		}
	}
	return nil
}

func (m *Memory) CreatePhoto(ctx context.Context, params CreatePhotoParams) (models.Photo, error) {
	if strings.TrimSpace(params.Title) == "" {
		return models.Photo{}, errors.New("title is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[params.OwnerID]; !ok {
		return models.Photo{}, fmt.Errorf("owner %d: %w", params.OwnerID, ErrNotFound)
	}

	m.nextPhotoID++
	photo := models.Photo{
		ID:          m.nextPhotoID,
		OwnerID:     params.OwnerID,
		Title:       params.Title,
		CaptureDate: params.CaptureDate,
		Tags:        params.Tags,
		ContentType: params.ContentType,
		MediaToken:  params.MediaToken,
		SizeBytes:   int64(len(params.Content)),
		CreatedAt:   m.now(),
	}
	m.photos[photo.ID] = models.PhotoContent{
		Photo:   photo,
		Content: append([]byte(nil), params.Content...),
	}
	return photo, nil
}

func (m *Memory) GetPhotoContent(ctx context.Context, id int64) (models.PhotoContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	photo, ok := m.photos[id]
	if !ok {
		return models.PhotoContent{}, ErrNotFound
	}
	return models.PhotoContent{Photo: photo.Photo, Content: append([]byte(nil), photo.Content...)}, nil
}

func (m *Memory) ListPhotos(ctx context.Context, ownerID int64) ([]models.Photo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	photos := make([]models.Photo, 0)
	for _, photo := range m.photos {
		if photo.OwnerID == ownerID {
			photos = append(photos, photo.Photo)
		}
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].ID < photos[j].ID })
	return photos, nil
}

func (m *Memory) SearchPhotos(ctx context.Context, ownerID int64, term string) ([]models.Photo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(term)
	matches := make([]models.Photo, 0)
	for _, photo := range m.photos {
		if photo.OwnerID != ownerID {
			continue
		}
		if strings.Contains(strings.ToLower(photo.Title), needle) || strings.Contains(strings.ToLower(photo.Tags), needle) {
			matches = append(matches, photo.Photo)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func (m *Memory) UpdatePhoto(ctx context.Context, ownerID, photoID int64, update PhotoUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	photo, ok := m.photos[photoID]
	if !ok || photo.OwnerID != ownerID {
		return ErrNotFound
	}
	if update.Title != nil {
		photo.Title = *update.Title
	}
	if update.CaptureDate != nil {
		photo.CaptureDate = *update.CaptureDate
	}
	if update.Tags != nil {
		photo.Tags = *update.Tags
	}
	m.photos[photoID] = photo
	return nil
}

func (m *Memory) DeletePhoto(ctx context.Context, ownerID, photoID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	photo, ok := m.photos[photoID]
	if !ok || photo.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.photos, photoID)
	for _, members := range m.albumPhotos {
		delete(members, photoID)
	}
	return nil
}

func (m *Memory) CreateAlbum(ctx context.Context, params CreateAlbumParams) (models.Album, error) {
	if strings.TrimSpace(params.Title) == "" {
		return models.Album{}, errors.New("title is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[params.OwnerID]; !ok {
		return models.Album{}, fmt.Errorf("owner %d: %w", params.OwnerID, ErrNotFound)
	}

	m.nextAlbumID++
	album := models.Album{
		ID:        m.nextAlbumID,
		OwnerID:   params.OwnerID,
		Title:     params.Title,
		Tags:      params.Tags,
		CreatedAt: m.now(),
	}
	m.albums[album.ID] = album
	return album, nil
}

func (m *Memory) ListAlbums(ctx context.Context, ownerID int64) ([]models.Album, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	albums := make([]models.Album, 0)
	for _, album := range m.albums {
		if album.OwnerID == ownerID {
			albums = append(albums, album)
		}
	}
	sort.Slice(albums, func(i, j int) bool { return albums[i].ID < albums[j].ID })
	return albums, nil
}

func (m *Memory) SearchAlbums(ctx context.Context, ownerID int64, term string) ([]models.Album, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(term)
	matches := make([]models.Album, 0)
	for _, album := range m.albums {
		if album.OwnerID != ownerID {
			continue
		}
		if strings.Contains(strings.ToLower(album.Title), needle) || strings.Contains(strings.ToLower(album.Tags), needle) {
			matches = append(matches, album)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func (m *Memory) UpdateAlbum(ctx context.Context, ownerID, albumID int64, update AlbumUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	album, ok := m.albums[albumID]
	if !ok || album.OwnerID != ownerID {
		return ErrNotFound
	}
	if update.Title != nil {
		album.Title = *update.Title
	}
	if update.Tags != nil {
		album.Tags = *update.Tags
	}
	m.albums[albumID] = album
	return nil
}

func (m *Memory) DeleteAlbum(ctx context.Context, ownerID, albumID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	album, ok := m.albums[albumID]
	if !ok || album.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.albums, albumID)
	delete(m.albumPhotos, albumID)
	return nil
}

func (m *Memory) AddAlbumPhoto(ctx context.Context, ownerID, albumID, photoID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	album, ok := m.albums[albumID]
	if !ok || album.OwnerID != ownerID {
		return ErrNotFound
	}
	photo, ok := m.photos[photoID]
	if !ok || photo.OwnerID != ownerID {
		return ErrNotFound
	}
	members, ok := m.albumPhotos[albumID]
	if !ok {
		members = make(map[int64]struct{})
		m.albumPhotos[albumID] = members
	}
	members[photoID] = struct{}{}
	return nil
}

func (m *Memory) ListAlbumPhotos(ctx context.Context, ownerID, albumID int64) ([]models.PhotoContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	album, ok := m.albums[albumID]
	if !ok || album.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	photos := make([]models.PhotoContent, 0)
	for photoID := range m.albumPhotos[albumID] {
		photo, ok := m.photos[photoID]
		if !ok {
			continue
		}
		photos = append(photos, models.PhotoContent{Photo: photo.Photo, Content: append([]byte(nil), photo.Content...)})
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].ID < photos[j].ID })
	return photos, nil
}

func (m *Memory) RemoveAlbumPhoto(ctx context.Context, ownerID, albumID, photoID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	album, ok := m.albums[albumID]
	if !ok || album.OwnerID != ownerID {
		return ErrNotFound
	}
	members, ok := m.albumPhotos[albumID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := members[photoID]; !ok {
		return ErrNotFound
	}
	delete(members, photoID)
	return nil
}
