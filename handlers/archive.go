package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/haven-media/haven/archive"
	"github.com/haven-media/haven/media"
)

type ArchiveHandler struct {
	DB         *sql.DB
	Store      *media.HashStore
	Importer   *archive.Importer
	ArchiveDir string
}

// Export snapshots the database and packages the whole store into a zip
func (ah *ArchiveHandler) Export(w http.ResponseWriter, r *http.Request) {
	zipPath, size, err := archive.Export(ah.DB, ah.Store, ah.ArchiveDir)
	if err != nil {
		log.Printf("Error exporting archive: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to export archive"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"path": zipPath,
		"size": size,
	})
}

// Import merges an archive from a local filesystem path into this instance
func (ah *ArchiveHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: path"})
		return
	}
	if _, err := os.Stat(req.Path); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Archive path is not readable: " + err.Error()})
		return
	}

	summary, err := ah.Importer.ImportArchive(r.Context(), req.Path)
	if err != nil {
		log.Printf("Error importing archive %s: %v", req.Path, err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "Import failed: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
