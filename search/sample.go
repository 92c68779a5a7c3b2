package search

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"

	"github.com/haven-media/haven/database"
)

// Sampler returns random media rows for discovery views. Strategy depends on
// table size: small tables can afford ORDER BY RANDOM(), large tables are
// sampled by probing random points in the id range, which stays cheap no
// matter how big the table gets.
type Sampler struct {
	DB *sql.DB
	// RowCount reports the maintained media_files cardinality.
	RowCount func(ctx context.Context, tableName string) (int64, error)
	// Cutoff is the row count above which id-range probing replaces
	// ORDER BY RANDOM().
	Cutoff int64
}

// RandomMedia returns up to n random media hits
func (s *Sampler) RandomMedia(ctx context.Context, n int) ([]Hit, error) {
	if n <= 0 {
		return nil, nil
	}

	count, err := s.RowCount(ctx, "media_files")
	if err != nil {
		return nil, fmt.Errorf("failed to read media row count: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	if count <= s.Cutoff {
		return s.sampleSmall(ctx, n)
	}
	return s.sampleLarge(ctx, n)
}

func (s *Sampler) sampleSmall(ctx context.Context, n int) ([]Hit, error) {
	query, args, err := database.Builder.
		Select("content_hash", "mime_type", "description").
		From("media_files").
		OrderBy("RANDOM()").
		Limit(uint64(n)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sample query: %w", err)
	}
	return s.collect(ctx, query, args...)
}

// sampleLarge probes random points in the id range. Ids are not contiguous
// after deletions so each probe takes the first row at or above the point;
// a bounded number of probes keeps this from looping on sparse tables.
func (s *Sampler) sampleLarge(ctx context.Context, n int) ([]Hit, error) {
	var minID, maxID int64
	boundsQuery, boundsArgs, err := database.Builder.
		Select("MIN(id)", "MAX(id)").
		From("media_files").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build bounds query: %w", err)
	}
	if err := s.DB.QueryRowContext(ctx, boundsQuery, boundsArgs...).Scan(&minID, &maxID); err != nil {
		return nil, fmt.Errorf("failed to read id bounds: %w", err)
	}
	if maxID < minID {
		return nil, nil
	}

	seen := make(map[string]bool, n)
	var hits []Hit
	maxProbes := n * 4
	for probe := 0; probe < maxProbes && len(hits) < n; probe++ {
		point := minID + rand.Int63n(maxID-minID+1)
		query, args, err := database.Builder.
			Select("content_hash", "mime_type", "description").
			From("media_files").
			Where("id >= ?", point).
			OrderBy("id").
			Limit(1).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build probe query: %w", err)
		}
		probed, err := s.collect(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for _, h := range probed {
			if !seen[h.ContentHash] {
				seen[h.ContentHash] = true
				hits = append(hits, h)
			}
		}
	}
	return hits, nil
}

func (s *Sampler) collect(ctx context.Context, query string, args ...interface{}) ([]Hit, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sample query failed: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var description sql.NullString
		if err := rows.Scan(&h.ContentHash, &h.MimeType, &description); err != nil {
			return nil, fmt.Errorf("failed to scan sampled row: %w", err)
		}
		h.Description = description.String
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sample scan failed: %w", err)
	}
	return hits, nil
}
