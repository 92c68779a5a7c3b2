package ingest

import (
	"context"
	"log"
)

// Coordinator serializes ingest runs through a single worker. Requests
// arriving while a run is in flight collapse into at most one follow-up run:
// the wake channel has depth one, so a pending signal means "run again when
// done" no matter how many requests piled up.
type Coordinator struct {
	service *Service
	wake    chan struct{}
}

func NewCoordinator(service *Service) *Coordinator {
	return &Coordinator{
		service: service,
		wake:    make(chan struct{}, 1),
	}
}

// RequestIngest asks for an ingest run. Never blocks; if a run is already
// pending the request coalesces into it.
func (c *Coordinator) RequestIngest() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run is the worker loop. Blocks until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
			if err := c.service.RunOnce(ctx); err != nil {
				log.Printf("ingest: run failed: %v", err)
			}
		}
	}
}
