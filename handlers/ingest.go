package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/haven-media/haven/ingest"
	"github.com/haven-media/haven/repository"
	"github.com/haven-media/haven/staging"
)

type IngestHandler struct {
	Queue       *staging.Queue
	StagingRepo repository.StagingRepositoryInterface
	Coordinator *ingest.Coordinator
}

// EnqueuePaths accepts a batch of filesystem paths for ingestion. Paths that
// fail validation are dropped here and never enter the queue; the accepted
// remainder is recorded durably and an ingest run is requested.
func (ih *IngestHandler) EnqueuePaths(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paths []string `json:"paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if len(req.Paths) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: paths"})
		return
	}

	accepted, err := ih.Queue.Enqueue(req.Paths)
	if err != nil {
		log.Printf("Error enqueueing paths: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to enqueue paths"})
		return
	}

	if accepted > 0 {
		ih.Coordinator.RequestIngest()
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted": accepted,
		"rejected": len(req.Paths) - accepted,
	})
}

// Status reports how many queued paths are still waiting for a run
func (ih *IngestHandler) Status(w http.ResponseWriter, r *http.Request) {
	pending, err := ih.StagingRepo.PendingPathCount()
	if err != nil {
		log.Printf("Error reading staging queue size: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read queue status"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"pending_paths": pending})
}
