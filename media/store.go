package media

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const hexDigits = "0123456789abcdef"

// shardDepth is the number of hash-digit directory levels. Four levels of 16
// entries bound per-directory fan-out regardless of store size.
const shardDepth = 4

// HashStore is the on-disk content-addressed hierarchy. A file's location is
// derived from its content hash alone: root/h[0]/h[1]/h[2]/h[3]/hash. Once a
// hash's file exists nothing ever rewrites it, so readers need no locking.
type HashStore struct {
	root string
}

// NewHashStore creates the store rooted at root, eagerly building the full
// 4-level hex tree so later inserts never pay directory-creation cost or races.
func NewHashStore(root string) (*HashStore, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid store root '%s': %w", root, err)
	}
	s := &HashStore{root: absRoot}
	if err := s.initShardTree(); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the absolute store root path.
func (s *HashStore) Root() string {
	return s.root
}

// initShardTree creates all 65,536 leaf directories. The 16 top-level
// subtrees are independent, so they are created concurrently.
func (s *HashStore) initShardTree() error {
	// a marker in the deepest corner tells us the tree is already complete
	probe := filepath.Join(s.root, "f", "f", "f", "f")
	if info, err := os.Stat(probe); err == nil && info.IsDir() {
		return nil
	}

	log.Printf("store: building %d-level shard tree under %s", shardDepth, s.root)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			top := string(hexDigits[i])
			for _, b := range hexDigits {
				for _, c := range hexDigits {
					for _, d := range hexDigits {
						leaf := filepath.Join(s.root, top, string(b), string(c), string(d))
						if err := os.MkdirAll(leaf, 0755); err != nil {
							errs[i] = fmt.Errorf("failed to create shard directory %s: %w", leaf, err)
							return
						}
					}
				}
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	log.Printf("store: shard tree ready at %s", s.root)
	return nil
}

// PathFor returns the absolute storage path a content hash dictates.
func (s *HashStore) PathFor(hash string) (string, error) {
	if len(hash) < shardDepth {
		return "", fmt.Errorf("content hash %q too short", hash)
	}
	return filepath.Join(s.root,
		string(hash[0]), string(hash[1]), string(hash[2]), string(hash[3]),
		hash), nil
}

// Insert moves (renames, not copies) a staged file into its hash-dictated
// location. The rename either fully succeeds or leaves the staged file where
// it was, which lets the ingest transaction roll back cleanly.
func (s *HashStore) Insert(stagedPath, hash string) error {
	dest, err := s.PathFor(hash)
	if err != nil {
		return err
	}
	if err := os.Rename(stagedPath, dest); err != nil {
		return fmt.Errorf("failed to move %s into store as %s: %w", stagedPath, hash, err)
	}
	return nil
}

// Exists reports whether the store holds a file for this hash.
func (s *HashStore) Exists(hash string) (bool, error) {
	dest, err := s.PathFor(hash)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dest); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat stored file for hash %s: %w", hash, err)
	}
	return true, nil
}

// Open returns a reader over the stored bytes for a hash.
func (s *HashStore) Open(hash string) (io.ReadCloser, os.FileInfo, error) {
	dest, err := s.PathFor(hash)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.Open(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("no stored file for hash %s: %w", hash, err)
		}
		return nil, nil, fmt.Errorf("failed to open stored file for hash %s: %w", hash, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat stored file for hash %s: %w", hash, err)
	}
	return file, info, nil
}

// Delete removes the stored file for a hash. A missing file is treated as
// success; the DB row and the disk file are deleted independently.
func (s *HashStore) Delete(hash string) error {
	dest, err := s.PathFor(hash)
	if err != nil {
		return err
	}
	err = os.Remove(dest)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete stored file for hash %s: %w", hash, err)
	}
	if err == nil {
		log.Printf("store: deleted %s", dest)
	}
	return nil
}

// CopyIn copies bytes from an external file (an extracted archive) into the
// hash-dictated path. Used by the import merge engine; ingest uses Insert.
func (s *HashStore) CopyIn(srcPath, hash string) error {
	dest, err := s.PathFor(hash)
	if err != nil {
		return err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open import source %s: %w", srcPath, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create stored file for hash %s: %w", hash, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to copy import bytes for hash %s: %w", hash, err)
	}
	return out.Close()
}

// Walk visits every stored file, calling fn with its content hash. Used by
// the reconciliation scan.
func (s *HashStore) Walk(fn func(hash string) error) error {
	return filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		return fn(d.Name())
	})
}
