package repository

import (
	"gorm.io/gorm"

	"github.com/haven-media/haven/models"
)

// MediaRepositoryInterface defines the methods for media file data operations
type MediaRepositoryInterface interface {
	CreateInTx(tx *gorm.DB, media *models.MediaFile) error
	GetByHash(contentHash string) (*models.MediaFile, error)
	ExistsByHash(contentHash string) (bool, error)
	UpdateDescription(contentHash string, description string, embedding []byte) error
	Delete(contentHash string) error
	ListHashes() ([]string, error)
	Count() (int64, error)
}

// FaceRepositoryInterface defines the methods for face data operations
type FaceRepositoryInterface interface {
	CreateBatch(faces []models.Face) error
	CreateBatchInTx(tx *gorm.DB, faces []models.Face) error
	ListByMediaFileID(mediaFileID uint) ([]models.Face, error)
	CountByMediaFileID(mediaFileID uint) (int64, error)
}

// StagingRepositoryInterface defines the methods for the staging queue
type StagingRepositoryInterface interface {
	EnqueuePaths(paths []string) (int, error)
	NextPath() (*models.NewPath, error)
	RemovePath(path string) error
	AddFiles(paths []string) error
	ListFiles() ([]models.NewFile, error)
	RemoveFile(path string) error
	PendingPathCount() (int64, error)
}

// StatsRepositoryInterface defines the methods for maintained row counts
type StatsRepositoryInterface interface {
	IncrementInTx(tx *gorm.DB, tableName string, delta int64) error
	RowCount(tableName string) (int64, error)
	Repair(tableName string) error
}
