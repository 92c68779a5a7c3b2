package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/haven-media/haven/models"
)

// MediaRepository handles database operations for MediaFile entities
type MediaRepository struct {
	DB    *gorm.DB
	Stats StatsRepositoryInterface
}

// Ensure MediaRepository implements MediaRepositoryInterface
var _ MediaRepositoryInterface = (*MediaRepository)(nil)

// NewMediaRepository creates a new instance of MediaRepository
func NewMediaRepository(db *gorm.DB, stats StatsRepositoryInterface) *MediaRepository {
	return &MediaRepository{DB: db, Stats: stats}
}

// CreateInTx inserts a media record and bumps the maintained row count inside
// the caller's transaction. The caller owns commit/rollback; the ingest path
// uses this so a failed file move rolls the insert back too.
func (r *MediaRepository) CreateInTx(tx *gorm.DB, media *models.MediaFile) error {
	now := time.Now().Unix()
	if media.CreatedAt == 0 {
		media.CreatedAt = now
	}
	media.UpdatedAt = now

	if err := tx.Create(media).Error; err != nil {
		return fmt.Errorf("failed to create media record for hash %s: %w", media.ContentHash, err)
	}
	if err := r.Stats.IncrementInTx(tx, models.MediaFile{}.TableName(), 1); err != nil {
		return fmt.Errorf("failed to increment media row count: %w", err)
	}
	return nil
}

// GetByHash retrieves a media record by its content hash
func (r *MediaRepository) GetByHash(contentHash string) (*models.MediaFile, error) {
	var media models.MediaFile
	err := r.DB.Where("content_hash = ?", contentHash).First(&media).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get media by hash %s: %w", contentHash, err)
	}
	return &media, nil
}

// ExistsByHash reports whether a media record with this content hash exists
func (r *MediaRepository) ExistsByHash(contentHash string) (bool, error) {
	var count int64
	err := r.DB.Model(&models.MediaFile{}).Where("content_hash = ?", contentHash).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check media existence for hash %s: %w", contentHash, err)
	}
	return count > 0, nil
}

// UpdateDescription replaces the description and its embedding in one unit of work
func (r *MediaRepository) UpdateDescription(contentHash string, description string, embedding []byte) error {
	result := r.DB.Model(&models.MediaFile{}).
		Where("content_hash = ?", contentHash).
		Updates(map[string]interface{}{
			"description":           description,
			"description_embedding": embedding,
			"updated_at":            time.Now().Unix(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update description for hash %s: %w", contentHash, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the media row (faces cascade) and decrements the row count.
// Disk deletion is the caller's problem; the two are deliberately independent.
func (r *MediaRepository) Delete(contentHash string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("content_hash = ?", contentHash).Delete(&models.MediaFile{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete media record for hash %s: %w", contentHash, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := r.Stats.IncrementInTx(tx, models.MediaFile{}.TableName(), -1); err != nil {
			return fmt.Errorf("failed to decrement media row count: %w", err)
		}
		return nil
	})
}

// ListHashes returns every stored content hash, ordered by id (used by the
// exporter and the reconciliation scan)
func (r *MediaRepository) ListHashes() ([]string, error) {
	var hashes []string
	err := r.DB.Model(&models.MediaFile{}).Order("id").Pluck("content_hash", &hashes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list content hashes: %w", err)
	}
	return hashes, nil
}

// Count returns the real row count (COUNT(*), not the maintained counter)
func (r *MediaRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&models.MediaFile{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count media rows: %w", err)
	}
	return count, nil
}
