package staging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/facette/natsort"
	"github.com/google/uuid"

	"github.com/haven-media/haven/media"
	"github.com/haven-media/haven/repository"
)

// maxCopyAttempts bounds the suffixed-rename retries on a holding-directory
// name collision.
const maxCopyAttempts = 5

// Queue decouples "user dropped N paths" from processing. Dropped paths are
// durably recorded, expanded to regular files, and finally copied into a
// temporary holding directory for the ingest transaction to consume.
type Queue struct {
	Repo       repository.StagingRepositoryInterface
	HoldingDir string
}

func NewQueue(repo repository.StagingRepositoryInterface, holdingDir string) *Queue {
	return &Queue{Repo: repo, HoldingDir: holdingDir}
}

// Enqueue validates a batch of candidate paths and records the survivors.
// Validation failures are logged and dropped at the boundary, never retried.
func (q *Queue) Enqueue(paths []string) (int, error) {
	var accepted []string
	for _, p := range paths {
		abs, err := media.ValidatePath(p)
		if err != nil {
			log.Printf("staging: rejected path %q: %v", p, err)
			continue
		}
		accepted = append(accepted, abs)
	}
	return q.Repo.EnqueuePaths(accepted)
}

// Drain processes queued paths one at a time until the new-paths set is
// empty, then copies every expanded file into the holding directory. Every
// path is removed from the queue once handled, whatever the outcome.
func (q *Queue) Drain() error {
	for {
		entry, err := q.Repo.NextPath()
		if err != nil {
			return err
		}
		if entry == nil {
			break
		}

		q.expandPath(entry.Path)

		if err := q.Repo.RemovePath(entry.Path); err != nil {
			return err
		}
	}
	return q.copyToHolding()
}

// expandPath stats one queued path and routes it: directories are recursively
// expanded, regular files pass straight through, anything else is dropped
// with a warning. An expansion error fails that directory only.
func (q *Queue) expandPath(path string) {
	info, err := os.Stat(path)
	if err != nil {
		log.Printf("staging: dropping %s: %v", path, err)
		return
	}

	switch {
	case info.IsDir():
		files, err := expandDirectory(path)
		if err != nil {
			log.Printf("staging: failed to expand directory %s: %v", path, err)
			return
		}
		if err := q.Repo.AddFiles(files); err != nil {
			log.Printf("staging: failed to record files from %s: %v", path, err)
		}
	case info.Mode().IsRegular():
		if err := q.Repo.AddFiles([]string{path}); err != nil {
			log.Printf("staging: failed to record file %s: %v", path, err)
		}
	default:
		log.Printf("staging: warning - dropping %s: not a regular file or directory (mode %v)", path, info.Mode())
	}
}

// expandDirectory walks a directory into its constituent regular files,
// returned in natural sort order for deterministic processing.
func expandDirectory(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk of %s failed: %w", dir, err)
	}
	natsort.Sort(files)
	return files, nil
}

// copyToHolding copies (never moves) every expanded file into the holding
// directory. Copy failures are logged and the entry is removed anyway so a
// poison path cannot wedge the queue.
func (q *Queue) copyToHolding() error {
	if err := os.MkdirAll(q.HoldingDir, 0755); err != nil {
		return fmt.Errorf("failed to create holding directory %s: %w", q.HoldingDir, err)
	}

	files, err := q.Repo.ListFiles()
	if err != nil {
		return err
	}

	for _, f := range files {
		if err := q.copyOne(f.Path); err != nil {
			log.Printf("staging: failed to copy %s into holding: %v", f.Path, err)
		}
		if err := q.Repo.RemoveFile(f.Path); err != nil {
			return err
		}
	}
	return nil
}

// copyOne performs an exclusive-create copy so an existing destination name
// is never silently overwritten; on collision a short random suffix is
// appended and the copy retried, bounded.
func (q *Queue) copyOne(srcPath string) error {
	name := filepath.Base(srcPath)
	for attempt := 0; attempt < maxCopyAttempts; attempt++ {
		dest := filepath.Join(q.HoldingDir, name)
		err := copyExclusive(srcPath, dest)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return err
		}
		suffix := uuid.NewString()[:8]
		name = fmt.Sprintf("%s.%s%s",
			nameWithoutExt(filepath.Base(srcPath)), suffix, filepath.Ext(srcPath))
	}
	return fmt.Errorf("gave up after %d name collisions for %s", maxCopyAttempts, srcPath)
}

func copyExclusive(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source %s: %w", srcPath, err)
	}
	defer src.Close()

	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return err
		}
		return fmt.Errorf("failed to create holding file %s: %w", destPath, err)
	}

	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to copy %s to holding: %w", srcPath, err)
	}
	return dest.Close()
}

func nameWithoutExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
