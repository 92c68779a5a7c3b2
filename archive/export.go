// Package archive packages a store into a portable zip and merges such
// archives back in. The interchange layout is a fixed "haven-export/" root
// containing a snapshot of the primary database ("haven.db") and the
// content-addressed tree under "store/".
package archive

import (
	"archive/zip"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haven-media/haven/media"
)

const (
	// ExportRoot is the fixed top-level folder name inside every archive.
	ExportRoot = "haven-export"
	// ExportDatabaseName is the database snapshot filename inside the root.
	ExportDatabaseName = "haven.db"
	// ExportStoreDir is the content tree folder name inside the root.
	ExportStoreDir = "store"
)

// Export writes a zip archive of the whole store into saveDir and returns
// its path and size. The database is snapshotted with VACUUM INTO so the
// archive carries a consistent copy even while the live file is in WAL mode.
func Export(db *sql.DB, store *media.HashStore, saveDir string) (string, int64, error) {
	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create archive save directory %s: %w", saveDir, err)
	}

	snapshotPath := filepath.Join(saveDir, fmt.Sprintf(".snapshot_%s.db", uuid.NewString()[:8]))
	defer os.Remove(snapshotPath)
	if err := snapshotDatabase(db, snapshotPath); err != nil {
		return "", 0, err
	}

	timestamp := time.Now().Unix()
	zipFilename := fmt.Sprintf("haven_%d_%s.zip", timestamp, uuid.NewString()[:8])
	zipFilePath := filepath.Join(saveDir, zipFilename)

	zipFile, err := os.Create(zipFilePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create zip file %s: %w", zipFilePath, err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)

	if err := addFileToZip(zipWriter, snapshotPath, ExportRoot+"/"+ExportDatabaseName); err != nil {
		zipWriter.Close()
		os.Remove(zipFilePath)
		return "", 0, err
	}

	count := 0
	err = store.Walk(func(hash string) error {
		srcPath, err := store.PathFor(hash)
		if err != nil {
			log.Printf("archive: skipping unexportable hash %q: %v", hash, err)
			return nil
		}
		entryName := fmt.Sprintf("%s/%s/%c/%c/%c/%c/%s",
			ExportRoot, ExportStoreDir, hash[0], hash[1], hash[2], hash[3], hash)
		if err := addFileToZip(zipWriter, srcPath, entryName); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		zipWriter.Close()
		os.Remove(zipFilePath)
		return "", 0, fmt.Errorf("failed to archive store contents: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		os.Remove(zipFilePath)
		return "", 0, fmt.Errorf("failed to finalize zip %s: %w", zipFilePath, err)
	}

	info, err := os.Stat(zipFilePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat created zip %s: %w", zipFilePath, err)
	}

	log.Printf("archive: exported %d stored files to %s (%d bytes)", count, zipFilePath, info.Size())
	return zipFilePath, info.Size(), nil
}

// snapshotDatabase copies the live database into destPath as one consistent
// image
func snapshotDatabase(db *sql.DB, destPath string) error {
	// VACUUM INTO takes a filename literal, not a bind parameter
	escaped := strings.ReplaceAll(destPath, "'", "''")
	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", escaped)); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}
	return nil
}

func addFileToZip(zw *zip.Writer, srcPath, entryName string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open %s for archiving: %w", srcPath, err)
	}
	defer src.Close()

	writer, err := zw.Create(entryName)
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", entryName, err)
	}
	if _, err := io.Copy(writer, src); err != nil {
		return fmt.Errorf("failed to write zip entry %s: %w", entryName, err)
	}
	return nil
}
