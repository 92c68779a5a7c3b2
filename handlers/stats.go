package handlers

import (
	"log"
	"net/http"

	"github.com/haven-media/haven/models"
	"github.com/haven-media/haven/repository"
)

type StatsHandler struct {
	StatsRepo   repository.StatsRepositoryInterface
	StagingRepo repository.StagingRepositoryInterface
}

// GetStats reports the maintained media count and the staging backlog
func (sh *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	mediaCount, err := sh.StatsRepo.RowCount(models.MediaFile{}.TableName())
	if err != nil {
		log.Printf("Error reading media row count: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read stats"})
		return
	}

	pending, err := sh.StagingRepo.PendingPathCount()
	if err != nil {
		log.Printf("Error reading staging queue size: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read stats"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"media_files":   mediaCount,
		"pending_paths": pending,
	})
}
