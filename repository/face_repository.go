package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/haven-media/haven/models"
)

// FaceRepository handles database operations for Face entities
type FaceRepository struct {
	DB *gorm.DB
}

// Ensure FaceRepository implements FaceRepositoryInterface
var _ FaceRepositoryInterface = (*FaceRepository)(nil)

// NewFaceRepository creates a new instance of FaceRepository
func NewFaceRepository(db *gorm.DB) *FaceRepository {
	return &FaceRepository{DB: db}
}

// CreateBatch inserts a set of face records in one transaction
func (r *FaceRepository) CreateBatch(faces []models.Face) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return r.CreateBatchInTx(tx, faces)
	})
}

// CreateBatchInTx inserts face records inside the caller's transaction.
// Every face must reference its MediaFile at commit time; inserting in the
// same transaction as the media row keeps that invariant.
func (r *FaceRepository) CreateBatchInTx(tx *gorm.DB, faces []models.Face) error {
	if len(faces) == 0 {
		return nil
	}
	now := time.Now().Unix()
	for i := range faces {
		if faces[i].CreatedAt == 0 {
			faces[i].CreatedAt = now
		}
	}
	if err := tx.Create(&faces).Error; err != nil {
		return fmt.Errorf("failed to create %d face records: %w", len(faces), err)
	}
	return nil
}

// ListByMediaFileID retrieves all faces for a given media file
func (r *FaceRepository) ListByMediaFileID(mediaFileID uint) ([]models.Face, error) {
	var faces []models.Face
	err := r.DB.Where("media_file_id = ?", mediaFileID).Order("id").Find(&faces).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list faces for media %d: %w", mediaFileID, err)
	}
	return faces, nil
}

// CountByMediaFileID counts the faces referencing a media file
func (r *FaceRepository) CountByMediaFileID(mediaFileID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&models.Face{}).Where("media_file_id = ?", mediaFileID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count faces for media %d: %w", mediaFileID, err)
	}
	return count, nil
}
