package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/haven-media/haven/ingest"
	"github.com/haven-media/haven/media"
	"github.com/haven-media/haven/models"
	"github.com/haven-media/haven/repository"
)

type MediaHandler struct {
	MediaRepo repository.MediaRepositoryInterface
	FaceRepo  repository.FaceRepositoryInterface
	Store     *media.HashStore
	Service   *ingest.Service
}

// GetMedia returns a media record by content hash
func (mh *MediaHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "content_hash")
	if !validContentHash(hash) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid content hash format"})
		return
	}

	record, err := mh.MediaRepo.GetByHash(hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Media not found"})
		} else {
			log.Printf("Error getting media %s: %v", hash, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve media"})
		}
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// ServeContent streams the stored bytes for a content hash
func (mh *MediaHandler) ServeContent(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "content_hash")
	if !validContentHash(hash) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid content hash format"})
		return
	}

	record, err := mh.MediaRepo.GetByHash(hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Media not found"})
		} else {
			log.Printf("Error getting media %s: %v", hash, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve media"})
		}
		return
	}

	reader, info, err := mh.Store.Open(hash)
	if err != nil {
		log.Printf("Error opening stored file %s: %v", hash, err)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Stored file not found"})
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", record.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	// stored bytes never change for a given hash
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, reader); err != nil {
		log.Printf("Error streaming %s: %v", hash, err)
	}
}

// ListFaces returns the face records of a media item
func (mh *MediaHandler) ListFaces(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "content_hash")
	if !validContentHash(hash) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid content hash format"})
		return
	}

	record, err := mh.MediaRepo.GetByHash(hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Media not found"})
		} else {
			log.Printf("Error getting media %s: %v", hash, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve media"})
		}
		return
	}

	faces, err := mh.FaceRepo.ListByMediaFileID(record.ID)
	if err != nil {
		log.Printf("Error listing faces for %s: %v", hash, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve faces"})
		return
	}
	if faces == nil {
		faces = []models.Face{}
	}
	writeJSON(w, http.StatusOK, faces)
}

// UpdateDescription attaches or replaces a media item's description and
// recomputes its embedding
func (mh *MediaHandler) UpdateDescription(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "content_hash")
	if !validContentHash(hash) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid content hash format"})
		return
	}

	var req struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.Description == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: description"})
		return
	}

	if err := mh.Service.UpdateDescription(r.Context(), hash, req.Description); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Media not found"})
			return
		}
		log.Printf("Error updating description for %s: %v", hash, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update description"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeleteMedia removes a media item from the database and the store
func (mh *MediaHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "content_hash")
	if !validContentHash(hash) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid content hash format"})
		return
	}

	if err := mh.Service.DeleteMedia(hash); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Media not found"})
			return
		}
		log.Printf("Error deleting media %s: %v", hash, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete media"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
