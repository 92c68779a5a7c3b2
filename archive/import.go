package archive

import (
	"archive/zip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/haven-media/haven/database"
	"github.com/haven-media/haven/embedding"
	"github.com/haven-media/haven/media"
	"github.com/haven-media/haven/models"
	"github.com/haven-media/haven/repository"
)

// ImportSummary reports what one archive merge did.
type ImportSummary struct {
	NewRecords         int `json:"new_records"`
	MergedDescriptions int `json:"merged_descriptions"`
	Unchanged          int `json:"unchanged"`
	SkippedCopies      int `json:"skipped_copies"`
}

// Importer merges another instance's archive into the local store. The
// archive's database is opened read-only and streamed one MediaFile at a
// time; all local relational writes happen in a single transaction, while
// file copies out of the extracted tree happen outside it.
type Importer struct {
	DB           *gorm.DB
	MediaRepo    repository.MediaRepositoryInterface
	FaceRepo     repository.FaceRepositoryInterface
	Store        *media.HashStore
	TextEmbedder embedding.TextEmbedder
}

// ImportArchive merges the archive at zipPath. Only a malformed archive
// (wrong structure, missing database) aborts the whole import; a single bad
// record is skipped and logged.
func (im *Importer) ImportArchive(ctx context.Context, zipPath string) (*ImportSummary, error) {
	tempDir, err := os.MkdirTemp("", "haven-import-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create import work directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	exportRoot, err := extractArchive(zipPath, tempDir)
	if err != nil {
		return nil, err
	}

	srcGorm, err := database.OpenReadOnly(filepath.Join(exportRoot, ExportDatabaseName))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	srcDB, err := srcGorm.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	defer srcDB.Close()

	summary := &ImportSummary{}
	err = im.DB.Transaction(func(tx *gorm.DB) error {
		return im.mergeAll(ctx, tx, srcDB, exportRoot, summary)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("archive: import finished: %d new, %d merged, %d unchanged, %d skipped",
		summary.NewRecords, summary.MergedDescriptions, summary.Unchanged, summary.SkippedCopies)
	return summary, nil
}

// sourceMedia is one row streamed out of the archive database
type sourceMedia struct {
	ID                   int64
	ContentHash          string
	OriginalName         string
	MimeType             string
	Description          string
	DescriptionEmbedding []byte
	Width, Height        *int
	TakenAt              *int64
	CameraMake           *string
	CameraModel          *string
}

// mergeAll walks the archive's media rows with a forward-only cursor, one
// row at a time, merging each into the local schema
func (im *Importer) mergeAll(ctx context.Context, tx *gorm.DB, srcDB *sql.DB, exportRoot string, summary *ImportSummary) error {
	query, args, err := database.Builder.
		Select("id", "content_hash", "original_name", "mime_type", "description",
			"description_embedding", "width", "height", "taken_at", "camera_make", "camera_model").
		From("media_files").
		OrderBy("id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build archive media query: %w", err)
	}

	rows, err := srcDB.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to read archive media records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var src sourceMedia
		var description sql.NullString
		if err := rows.Scan(&src.ID, &src.ContentHash, &src.OriginalName, &src.MimeType,
			&description, &src.DescriptionEmbedding, &src.Width, &src.Height,
			&src.TakenAt, &src.CameraMake, &src.CameraModel); err != nil {
			return fmt.Errorf("failed to scan archive media record: %w", err)
		}
		src.Description = description.String

		if err := im.mergeOne(ctx, tx, srcDB, exportRoot, &src, summary); err != nil {
			log.Printf("archive: skipping record %s: %v", src.ContentHash, err)
			summary.SkippedCopies++
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("archive media cursor failed: %w", err)
	}
	return nil
}

func (im *Importer) mergeOne(ctx context.Context, tx *gorm.DB, srcDB *sql.DB, exportRoot string, src *sourceMedia, summary *ImportSummary) error {
	var local models.MediaFile
	err := tx.Where("content_hash = ?", src.ContentHash).First(&local).Error
	switch {
	case err == nil:
		return im.mergeExisting(ctx, tx, &local, src, summary)
	case err == gorm.ErrRecordNotFound:
		return im.importNew(ctx, tx, srcDB, exportRoot, src, summary)
	default:
		return fmt.Errorf("failed to look up local record: %w", err)
	}
}

// mergeExisting handles a hash collision with a local record: the file is not
// new, but the incoming description may carry new text. If it is not already
// a substring of the local description the texts are merged and re-embedded.
func (im *Importer) mergeExisting(ctx context.Context, tx *gorm.DB, local *models.MediaFile, src *sourceMedia, summary *ImportSummary) error {
	incoming := strings.TrimSpace(src.Description)
	if incoming == "" || strings.Contains(local.Description, incoming) {
		summary.Unchanged++
		return nil
	}

	merged := incoming
	if local.Description != "" {
		merged = local.Description + " " + incoming
	}

	var embeddingBlob []byte
	vector, err := im.TextEmbedder.EmbedText(ctx, merged)
	if err != nil {
		return fmt.Errorf("failed to re-embed merged description: %w", err)
	}
	embeddingBlob = models.EncodeVector(vector)

	err = tx.Model(&models.MediaFile{}).
		Where("content_hash = ?", local.ContentHash).
		Updates(map[string]interface{}{
			"description":           merged,
			"description_embedding": embeddingBlob,
			"updated_at":            time.Now().Unix(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update merged description: %w", err)
	}
	summary.MergedDescriptions++
	return nil
}

// importNew copies the media bytes out of the extracted archive, then inserts
// the record and its faces. The copy runs first so a failed copy skips the
// record entirely instead of committing a row that points at nothing.
func (im *Importer) importNew(ctx context.Context, tx *gorm.DB, srcDB *sql.DB, exportRoot string, src *sourceMedia, summary *ImportSummary) error {
	srcFile := filepath.Join(exportRoot, ExportStoreDir,
		string(src.ContentHash[0]), string(src.ContentHash[1]),
		string(src.ContentHash[2]), string(src.ContentHash[3]), src.ContentHash)
	if err := im.Store.CopyIn(srcFile, src.ContentHash); err != nil {
		return fmt.Errorf("failed to copy media bytes: %w", err)
	}

	record := &models.MediaFile{
		ContentHash:          src.ContentHash,
		OriginalName:         src.OriginalName,
		MimeType:             src.MimeType,
		Description:          src.Description,
		DescriptionEmbedding: src.DescriptionEmbedding,
		Width:                src.Width,
		Height:               src.Height,
		TakenAt:              src.TakenAt,
		CameraMake:           src.CameraMake,
		CameraModel:          src.CameraModel,
	}
	if err := im.MediaRepo.CreateInTx(tx, record); err != nil {
		return fmt.Errorf("failed to insert imported record: %w", err)
	}

	faceRows, err := im.readSourceFaces(ctx, srcDB, src.ID, record.ID)
	if err != nil {
		return err
	}
	if len(faceRows) > 0 {
		if err := im.FaceRepo.CreateBatchInTx(tx, faceRows); err != nil {
			return fmt.Errorf("failed to insert imported faces: %w", err)
		}
	}

	summary.NewRecords++
	return nil
}

// readSourceFaces loads the archive's face rows for one media record, rekeyed
// to the new local media id
func (im *Importer) readSourceFaces(ctx context.Context, srcDB *sql.DB, srcMediaID int64, localMediaID uint) ([]models.Face, error) {
	query, args, err := database.Builder.
		Select("time_offset_sec", "embedding", "score", "x1", "y1", "x2", "y2", "landmarks").
		From("faces").
		Where("media_file_id = ?", srcMediaID).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build archive face query: %w", err)
	}

	rows, err := srcDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive faces: %w", err)
	}
	defer rows.Close()

	var out []models.Face
	for rows.Next() {
		var f models.Face
		if err := rows.Scan(&f.TimeOffsetSec, &f.Embedding, &f.Score,
			&f.X1, &f.Y1, &f.X2, &f.Y2, &f.Landmarks); err != nil {
			return nil, fmt.Errorf("failed to scan archive face: %w", err)
		}
		f.MediaFileID = localMediaID
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive face cursor failed: %w", err)
	}
	return out, nil
}

// extractArchive unpacks the zip into destDir and validates its structure:
// everything must live under the fixed export root and the database snapshot
// must be present. Any violation aborts the import before a single write.
func extractArchive(zipPath, destDir string) (string, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive %s: %w", zipPath, err)
	}
	defer reader.Close()

	rootPrefix := ExportRoot + "/"
	sawDatabase := false
	for _, entry := range reader.File {
		name := entry.Name
		if !strings.HasPrefix(name, rootPrefix) {
			return "", fmt.Errorf("malformed archive: entry %q outside %s", name, ExportRoot)
		}
		if strings.Contains(name, "..") {
			return "", fmt.Errorf("malformed archive: entry %q escapes the root", name)
		}
		if name == rootPrefix+ExportDatabaseName {
			sawDatabase = true
		}

		destPath := filepath.Join(destDir, filepath.FromSlash(name))
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0755); err != nil {
				return "", fmt.Errorf("failed to create %s: %w", destPath, err)
			}
			continue
		}
		if err := extractOne(entry, destPath); err != nil {
			return "", err
		}
	}
	if !sawDatabase {
		return "", fmt.Errorf("malformed archive: missing %s/%s", ExportRoot, ExportDatabaseName)
	}
	return filepath.Join(destDir, ExportRoot), nil
}

func extractOne(entry *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", destPath, err)
	}
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
	}
	return dest.Close()
}
