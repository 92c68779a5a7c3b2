// Package ingest turns staged files into stored, indexed media. Each file is
// hashed, classified, mined for faces, and committed with one transaction
// covering the database rows and the move into the content-addressed store.
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/facette/natsort"
	"gorm.io/gorm"

	"github.com/haven-media/haven/embedding"
	"github.com/haven-media/haven/faces"
	"github.com/haven-media/haven/media"
	"github.com/haven-media/haven/models"
	"github.com/haven-media/haven/repository"
	"github.com/haven-media/haven/staging"
)

// Service drives one ingest run: drain the staging queue into the holding
// directory, then process every holding file in order. Per-file failures are
// isolated; one bad file never aborts its siblings.
type Service struct {
	DB           *gorm.DB
	MediaRepo    repository.MediaRepositoryInterface
	FaceRepo     repository.FaceRepositoryInterface
	Store        *media.HashStore
	Queue        *staging.Queue
	Pipeline     *faces.Pipeline
	TextEmbedder embedding.TextEmbedder
	HoldingDir   string
}

// RunOnce performs a full staged-paths-to-store pass
func (s *Service) RunOnce(ctx context.Context) error {
	if err := s.Queue.Drain(); err != nil {
		return fmt.Errorf("failed to drain staging queue: %w", err)
	}

	entries, err := os.ReadDir(s.HoldingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read holding directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	natsort.Sort(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		path := filepath.Join(s.HoldingDir, name)
		if err := s.ingestOne(ctx, path, name); err != nil {
			log.Printf("ingest: failed to ingest %s: %v", name, err)
		}
	}
	return nil
}

// ingestOne handles a single holding file. Duplicates (by content hash) are
// discarded. New files get a MediaFile row, their face rows, and a rename
// into the store, all inside one transaction: if the rename fails the rows
// roll back and the file stays in holding for a future attempt.
func (s *Service) ingestOne(ctx context.Context, path, originalName string) error {
	hash, err := media.HashFile(path)
	if err != nil {
		return fmt.Errorf("failed to hash: %w", err)
	}

	exists, err := s.MediaRepo.ExistsByHash(hash)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate: %w", err)
	}
	if exists {
		log.Printf("ingest: %s already stored as %s, discarding", originalName, hash)
		if err := os.Remove(path); err != nil {
			log.Printf("ingest: failed to remove duplicate holding file %s: %v", path, err)
		}
		return nil
	}

	mimeType, err := media.SniffMime(path)
	if err != nil {
		return fmt.Errorf("failed to classify: %w", err)
	}

	record := &models.MediaFile{
		ContentHash:  hash,
		OriginalName: originalName,
		MimeType:     mimeType,
	}

	if strings.HasPrefix(mimeType, "image/") {
		if meta, err := media.GetImageMetadata(path); err == nil {
			record.Width = meta.Width
			record.Height = meta.Height
			record.CameraMake = meta.CameraMake
			record.CameraModel = meta.CameraModel
			record.TakenAt = meta.TakenAt
		} else {
			log.Printf("ingest: could not read metadata for %s: %v", originalName, err)
		}
	}

	var faceResults []faces.Result
	if s.Pipeline != nil && media.IsVisualMime(mimeType) {
		faceResults, err = s.Pipeline.ExtractFile(ctx, path, mimeType)
		if err != nil {
			// extraction trouble never blocks ingest, the media is
			// still stored without face rows
			log.Printf("ingest: face extraction failed for %s: %v", originalName, err)
			faceResults = nil
		}
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.MediaRepo.CreateInTx(tx, record); err != nil {
			return fmt.Errorf("failed to insert media record: %w", err)
		}
		if len(faceResults) > 0 {
			rows := buildFaceRows(record.ID, faceResults)
			if err := s.FaceRepo.CreateBatchInTx(tx, rows); err != nil {
				return fmt.Errorf("failed to insert face records: %w", err)
			}
		}
		if err := s.Store.Insert(path, hash); err != nil {
			return fmt.Errorf("failed to move into store: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("ingest: stored %s as %s (%s, %d faces)", originalName, hash, mimeType, len(faceResults))
	return nil
}

func buildFaceRows(mediaFileID uint, results []faces.Result) []models.Face {
	rows := make([]models.Face, 0, len(results))
	for _, r := range results {
		f := models.Face{
			MediaFileID:   mediaFileID,
			Score:         r.Score,
			X1:            r.Box[0],
			Y1:            r.Box[1],
			X2:            r.Box[2],
			Y2:            r.Box[3],
			TimeOffsetSec: r.TimeOffsetSec,
		}
		f.SetEmbedding(r.Embedding)
		f.SetLandmarks(r.Landmarks[:])
		rows = append(rows, f)
	}
	return rows
}

// DeleteMedia removes a media item from the database and the store. The two
// deletions are independent: failure of either is logged without rolling back
// the other, since a stray row or file self-heals on the next reconcile scan.
func (s *Service) DeleteMedia(contentHash string) error {
	dbErr := s.MediaRepo.Delete(contentHash)
	if dbErr != nil {
		log.Printf("ingest: database delete failed for %s: %v", contentHash, dbErr)
	}

	if diskErr := s.Store.Delete(contentHash); diskErr != nil {
		log.Printf("ingest: disk delete failed for %s: %v", contentHash, diskErr)
		if dbErr == nil {
			return fmt.Errorf("failed to delete stored file: %w", diskErr)
		}
	}
	return dbErr
}

// UpdateDescription attaches a description to a media item and computes its
// embedding through the configured text embedding service
func (s *Service) UpdateDescription(ctx context.Context, contentHash, description string) error {
	vector, err := s.TextEmbedder.EmbedText(ctx, description)
	if err != nil {
		return fmt.Errorf("failed to embed description: %w", err)
	}
	return s.MediaRepo.UpdateDescription(contentHash, description, models.EncodeVector(vector))
}
