package api

import (
	"errors"
	"net/http"
	"strings"

	"photovault/internal/models"
	"photovault/internal/storage"
)

type createAlbumRequest struct {
	Title string `json:"title"`
	Tags  string `json:"tags,omitempty"`
}

type updateAlbumRequest struct {
	Title *string `json:"title"`
	Tags  *string `json:"tags"`
}

type albumResponse struct {
	ID    int64  `json:"albumID"`
	Title string `json:"title"`
	Tags  string `json:"tags"`
}

// albumPhotoResponse carries the photo metadata plus the base64-encoded
// binary payload included in album listings.
type albumPhotoResponse struct {
	photoResponse
	PhotoBlob []byte `json:"photo_blob"`
}

func newAlbumResponse(album models.Album) albumResponse {
	return albumResponse{ID: album.ID, Title: album.Title, Tags: album.Tags}
}

func newAlbumPhotoResponse(photo models.PhotoContent) albumPhotoResponse {
	return albumPhotoResponse{
		photoResponse: newPhotoResponse(photo.Photo),
		PhotoBlob:     photo.Content,
	}
}

// userAlbums routes /{userID}/albums and its children once the path user id
// has been parsed.
func (h *Handler) userAlbums(w http.ResponseWriter, r *http.Request, pathUserID int64, rest []string) {
	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodPost:
			if _, ok := h.requireOwner(w, r, pathUserID); !ok {
				return
			}
			h.createAlbum(w, r, pathUserID)
		case http.MethodGet:
			if _, ok := h.requireOwner(w, r, pathUserID); !ok {
				return
			}
			h.listAlbums(w, r, pathUserID)
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
		h.searchAlbums(w, r, pathUserID)
	case len(rest) == 1:
		albumID, ok := parseID(w, rest[0], "albumID")
		if !ok {
			return
		}
		if _, ok := h.requireOwner(w, r, pathUserID); !ok {
			return
		}
		switch r.Method {
		case http.MethodPut:
			h.updateAlbum(w, r, pathUserID, albumID)
		case http.MethodDelete:
			h.deleteAlbum(w, r, pathUserID, albumID)
		default:
			methodNotAllowed(w, http.MethodPut, http.MethodDelete)
		}
	case rest[1] == "photos":
		h.albumPhotos(w, r, pathUserID, rest)
	default:
		writeMessage(w, http.StatusNotFound, "not found")
	}
}

// albumPhotos handles the album-photo association routes under
// /{userID}/albums/{albumID}/photos.
func (h *Handler) albumPhotos(w http.ResponseWriter, r *http.Request, pathUserID int64, rest []string) {
	albumID, ok := parseID(w, rest[0], "albumID")
	if !ok {
		return
	}

	switch len(rest) {
	case 2:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		if _, ok := h.requireOwner(w, r, pathUserID); !ok {
			return
		}
		h.listAlbumPhotos(w, r, pathUserID, albumID)
	case 3:
		photoID, ok := parseID(w, rest[2], "photoID")
		if !ok {
			return
		}
		if _, ok := h.requireOwner(w, r, pathUserID); !ok {
			return
		}
		switch r.Method {
		case http.MethodPost:
			h.addAlbumPhoto(w, r, pathUserID, albumID, photoID)
		case http.MethodDelete:
			h.removeAlbumPhoto(w, r, pathUserID, albumID, photoID)
		default:
			methodNotAllowed(w, http.MethodPost, http.MethodDelete)
		}
	default:
		writeMessage(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) createAlbum(w http.ResponseWriter, r *http.Request, ownerID int64) {
	var req createAlbumRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeMessage(w, http.StatusBadRequest, "title is required")
		return
	}
	album, err := h.Store.CreateAlbum(r.Context(), storage.CreateAlbumParams{
		OwnerID: ownerID,
		Title:   req.Title,
		Tags:    req.Tags,
	})
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "create album failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "album created",
		"albumID": album.ID,
	})
}

func (h *Handler) listAlbums(w http.ResponseWriter, r *http.Request, ownerID int64) {
	albums, err := h.Store.ListAlbums(r.Context(), ownerID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "list albums failed")
		return
	}
	response := make([]albumResponse, 0, len(albums))
	for _, album := range albums {
		response = append(response, newAlbumResponse(album))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) searchAlbums(w http.ResponseWriter, r *http.Request, ownerID int64) {
	term := r.URL.Query().Get("searchTerm")
	albums, err := h.Store.SearchAlbums(r.Context(), ownerID, term)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "search albums failed")
		return
	}
	if len(albums) == 0 {
		writeMessage(w, http.StatusNotFound, "no albums found")
		return
	}
	response := make([]albumResponse, 0, len(albums))
	for _, album := range albums {
		response = append(response, newAlbumResponse(album))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) updateAlbum(w http.ResponseWriter, r *http.Request, ownerID, albumID int64) {
	var req updateAlbumRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Title == nil || req.Tags == nil {
		writeMessage(w, http.StatusBadRequest, "title and tags are required")
		return
	}
	err := h.Store.UpdateAlbum(r.Context(), ownerID, albumID, storage.AlbumUpdate{
		Title: req.Title,
		Tags:  req.Tags,
	})
	if errors.Is(err, storage.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "album not found")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "update album failed")
		return
	}
	writeMessage(w, http.StatusOK, "album updated")
}

func (h *Handler) deleteAlbum(w http.ResponseWriter, r *http.Request, ownerID, albumID int64) {
	err := h.Store.DeleteAlbum(r.Context(), ownerID, albumID)
	if errors.Is(err, storage.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "album not found")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "delete album failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addAlbumPhoto(w http.ResponseWriter, r *http.Request, ownerID, albumID, photoID int64) {
	err := h.Store.AddAlbumPhoto(r.Context(), ownerID, albumID, photoID)
	if errors.Is(err, storage.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "album or photo not found")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "add photo to album failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "photo added to album",
	})
}

func (h *Handler) listAlbumPhotos(w http.ResponseWriter, r *http.Request, ownerID, albumID int64) {
	photos, err := h.Store.ListAlbumPhotos(r.Context(), ownerID, albumID)
	if errors.Is(err, storage.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "album not found")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "list album photos failed")
		return
	}
	if len(photos) == 0 {
		writeMessage(w, http.StatusNotFound, "no photos found")
		return
	}
	response := make([]albumPhotoResponse, 0, len(photos))
	for _, photo := range photos {
		response = append(response, newAlbumPhotoResponse(photo))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) removeAlbumPhoto(w http.ResponseWriter, r *http.Request, ownerID, albumID, photoID int64) {
	err := h.Store.RemoveAlbumPhoto(r.Context(), ownerID, albumID, photoID)
	if errors.Is(err, storage.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "album or photo not found")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "remove photo from album failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
