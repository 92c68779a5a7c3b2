package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/haven-media/haven/models"
)

// StagingRepository handles the durable staging queue. It operates on the
// separate staging database, never the main schema.
type StagingRepository struct {
	DB *gorm.DB
}

// Ensure StagingRepository implements StagingRepositoryInterface
var _ StagingRepositoryInterface = (*StagingRepository)(nil)

// NewStagingRepository creates a new instance of StagingRepository
func NewStagingRepository(db *gorm.DB) *StagingRepository {
	return &StagingRepository{DB: db}
}

// EnqueuePaths records dropped paths in new_paths, silently ignoring exact
// duplicates. Returns how many rows were actually inserted.
func (r *StagingRepository) EnqueuePaths(paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	now := time.Now().Unix()
	rows := make([]models.NewPath, 0, len(paths))
	for _, p := range paths {
		rows = append(rows, models.NewPath{Path: p, CreatedAt: now})
	}
	result := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to enqueue %d paths: %w", len(paths), result.Error)
	}
	return int(result.RowsAffected), nil
}

// NextPath returns one queued path, oldest first, or nil when the queue is empty
func (r *StagingRepository) NextPath() (*models.NewPath, error) {
	var row models.NewPath
	err := r.DB.Order("created_at, path").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read next staged path: %w", err)
	}
	return &row, nil
}

// RemovePath removes a path from new_paths regardless of how it was handled
func (r *StagingRepository) RemovePath(path string) error {
	if err := r.DB.Delete(&models.NewPath{}, "path = ?", path).Error; err != nil {
		return fmt.Errorf("failed to remove staged path %s: %w", path, err)
	}
	return nil
}

// AddFiles records expanded regular files in new_files, ignoring duplicates
func (r *StagingRepository) AddFiles(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	now := time.Now().Unix()
	rows := make([]models.NewFile, 0, len(paths))
	for _, p := range paths {
		rows = append(rows, models.NewFile{Path: p, CreatedAt: now})
	}
	if err := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to record %d expanded files: %w", len(paths), err)
	}
	return nil
}

// ListFiles returns every file awaiting a copy into the holding directory
func (r *StagingRepository) ListFiles() ([]models.NewFile, error) {
	var rows []models.NewFile
	if err := r.DB.Order("created_at, path").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list expanded files: %w", err)
	}
	return rows, nil
}

// RemoveFile removes a file entry once copied (or given up on)
func (r *StagingRepository) RemoveFile(path string) error {
	if err := r.DB.Delete(&models.NewFile{}, "path = ?", path).Error; err != nil {
		return fmt.Errorf("failed to remove expanded file %s: %w", path, err)
	}
	return nil
}

// PendingPathCount returns the number of not-yet-expanded dropped paths
func (r *StagingRepository) PendingPathCount() (int64, error) {
	var count int64
	if err := r.DB.Model(&models.NewPath{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count staged paths: %w", err)
	}
	return count, nil
}
