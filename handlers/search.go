package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/haven-media/haven/embedding"
	"github.com/haven-media/haven/search"
)

const defaultSearchK = 20

type SearchHandler struct {
	Engine       *search.Engine
	Sampler      *search.Sampler
	TextEmbedder embedding.TextEmbedder
}

// Search resolves a hybrid or single-modality query. A textual description is
// embedded server-side; face vectors arrive as raw float arrays (typically
// copied from a previously returned face record).
func (sh *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string      `json:"description"`
		FaceVectors [][]float32 `json:"face_vectors"`
		K           int         `json:"k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.K <= 0 {
		req.K = defaultSearchK
	}

	var descVectors [][]float32
	if req.Description != "" {
		vector, err := sh.TextEmbedder.EmbedText(r.Context(), req.Description)
		if err != nil {
			log.Printf("Error embedding search description: %v", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Failed to embed description"})
			return
		}
		descVectors = append(descVectors, vector)
	}

	hits, err := sh.Engine.Search(r.Context(), descVectors, req.FaceVectors, req.K)
	if err != nil {
		log.Printf("Error executing search: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Search failed"})
		return
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

// Random returns a random sample of media for discovery views
func (sh *SearchHandler) Random(w http.ResponseWriter, r *http.Request) {
	count := defaultSearchK
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid count parameter"})
			return
		}
		count = parsed
	}

	hits, err := sh.Sampler.RandomMedia(r.Context(), count)
	if err != nil {
		log.Printf("Error sampling random media: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to sample media"})
		return
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	writeJSON(w, http.StatusOK, hits)
}
