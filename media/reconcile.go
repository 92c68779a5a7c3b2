package media

import (
	"fmt"
	"log"
)

// HashLister is the slice of the media repository the reconciliation scan needs.
type HashLister interface {
	ListHashes() ([]string, error)
}

// Reconcile compares the store tree against the schema and reports
// divergence: rows whose file is missing on disk, and files no row
// references. It removes nothing, it only gives the operator visibility into
// drift left behind by independent disk and DB deletes.
func Reconcile(store *HashStore, lister HashLister) (missingOnDisk, missingInDB []string, err error) {
	hashes, err := lister.ListHashes()
	if err != nil {
		return nil, nil, fmt.Errorf("reconcile: failed to list schema hashes: %w", err)
	}

	inDB := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		inDB[h] = true
	}

	onDisk := make(map[string]bool)
	err = store.Walk(func(hash string) error {
		onDisk[hash] = true
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("reconcile: failed to walk store: %w", err)
	}

	for _, h := range hashes {
		if !onDisk[h] {
			missingOnDisk = append(missingOnDisk, h)
		}
	}
	for h := range onDisk {
		if !inDB[h] {
			missingInDB = append(missingInDB, h)
		}
	}

	if len(missingOnDisk) > 0 {
		log.Printf("reconcile: %d media rows have no stored file", len(missingOnDisk))
	}
	if len(missingInDB) > 0 {
		log.Printf("reconcile: %d stored files have no media row", len(missingInDB))
	}
	return missingOnDisk, missingInDB, nil
}
