// Package search executes nearest-neighbor queries over the stored media and
// face embeddings, single-modality or hybrid.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/haven-media/haven/database"
	"github.com/haven-media/haven/models"
)

// Hit is one search result row, carrying only what a caller needs for
// display. Everything else is fetched by hash.
type Hit struct {
	ContentHash string  `json:"content_hash"`
	MimeType    string  `json:"mime_type"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Engine runs vector queries against the primary database. Embeddings are
// scanned and scored in process; face vectors are assumed pre-normalized so
// dot product stands in for cosine similarity, description vectors are
// compared with full cosine similarity.
type Engine struct {
	DB *sql.DB
}

func NewEngine(db *sql.DB) *Engine {
	return &Engine{DB: db}
}

// Search resolves a query of up to two modalities.
//
// With both face and description vectors the face vectors narrow the
// candidate pool and the first description vector orders it. With only
// description vectors the first one ranks media directly. With a single face
// vector its nearest faces map to owning media. With several face vectors
// each runs independently and results interleave round-robin by rank so every
// query vector is represented near the front. Every path ends with a
// first-seen de-duplication by content hash.
func (e *Engine) Search(ctx context.Context, descVectors, faceVectors [][]float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	switch {
	case len(descVectors) == 0 && len(faceVectors) == 0:
		return nil, nil
	case len(descVectors) > 0 && len(faceVectors) > 0:
		return e.hybridSearch(ctx, descVectors[0], faceVectors, k)
	case len(descVectors) > 0:
		hits, err := e.descriptionSearch(ctx, descVectors[0], k)
		if err != nil {
			return nil, err
		}
		return dedupByHash(hits), nil
	case len(faceVectors) == 1:
		hits, err := e.faceSearch(ctx, faceVectors[0], k)
		if err != nil {
			return nil, err
		}
		return dedupByHash(hits), nil
	default:
		return e.multiFaceSearch(ctx, faceVectors, k)
	}
}

type faceMatch struct {
	MediaFileID int64
	Score       float64
}

// topFaceMatches scans all face embeddings and returns the k nearest per
// query vector, preserving query order in the outer slice
func (e *Engine) topFaceMatches(ctx context.Context, vectors [][]float32, k int) ([][]faceMatch, error) {
	query, args, err := database.Builder.
		Select("media_file_id", "embedding").
		From("faces").
		Where("embedding IS NOT NULL").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build face scan query: %w", err)
	}

	rows, err := e.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan face embeddings: %w", err)
	}
	defer rows.Close()

	matches := make([][]faceMatch, len(vectors))
	for rows.Next() {
		var mediaFileID int64
		var blob []byte
		if err := rows.Scan(&mediaFileID, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan face row: %w", err)
		}
		emb := models.DecodeVector(blob)
		for i, vec := range vectors {
			if len(emb) != len(vec) {
				continue
			}
			matches[i] = append(matches[i], faceMatch{MediaFileID: mediaFileID, Score: dotProduct(vec, emb)})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("face embedding scan failed: %w", err)
	}

	for i := range matches {
		sort.SliceStable(matches[i], func(a, b int) bool {
			return matches[i][a].Score > matches[i][b].Score
		})
		if len(matches[i]) > k {
			matches[i] = matches[i][:k]
		}
	}
	return matches, nil
}

// hybridSearch treats the query as "faces AND description": face vectors
// build the candidate set, the description vector orders it. Returns up to
// k * len(faceVectors) results.
func (e *Engine) hybridSearch(ctx context.Context, descVector []float32, faceVectors [][]float32, k int) ([]Hit, error) {
	perVector, err := e.topFaceMatches(ctx, faceVectors, k)
	if err != nil {
		return nil, err
	}

	// union of owning media ids, deduplicated
	seen := make(map[int64]bool)
	var candidateIDs []int64
	for _, matches := range perVector {
		for _, m := range matches {
			if !seen[m.MediaFileID] {
				seen[m.MediaFileID] = true
				candidateIDs = append(candidateIDs, m.MediaFileID)
			}
		}
	}
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	candidates, err := e.mediaByIDs(ctx, candidateIDs)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		score := 0.0
		if len(c.embedding) == len(descVector) {
			score = cosineSimilarity(descVector, c.embedding)
		}
		hits = append(hits, Hit{
			ContentHash: c.contentHash,
			MimeType:    c.mimeType,
			Description: c.description,
			Score:       score,
		})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })

	limit := k * len(faceVectors)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return dedupByHash(hits), nil
}

// descriptionSearch ranks media directly by description similarity
func (e *Engine) descriptionSearch(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	query, args, err := database.Builder.
		Select("content_hash", "mime_type", "description", "description_embedding").
		From("media_files").
		Where("description_embedding IS NOT NULL").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build description scan query: %w", err)
	}

	rows, err := e.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan description embeddings: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var hash, mimeType string
		var description sql.NullString
		var blob []byte
		if err := rows.Scan(&hash, &mimeType, &description, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan media row: %w", err)
		}
		emb := models.DecodeVector(blob)
		if len(emb) != len(vector) {
			continue
		}
		hits = append(hits, Hit{
			ContentHash: hash,
			MimeType:    mimeType,
			Description: description.String,
			Score:       cosineSimilarity(vector, emb),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("description embedding scan failed: %w", err)
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// faceSearch maps the k nearest faces of a single query vector to their
// owning media, preserving rank order
func (e *Engine) faceSearch(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	perVector, err := e.topFaceMatches(ctx, [][]float32{vector}, k)
	if err != nil {
		return nil, err
	}
	return e.resolveFaceMatches(ctx, perVector[0])
}

// multiFaceSearch runs top-k per vector then interleaves results round-robin
// by rank before deduplicating
func (e *Engine) multiFaceSearch(ctx context.Context, vectors [][]float32, k int) ([]Hit, error) {
	perVector, err := e.topFaceMatches(ctx, vectors, k)
	if err != nil {
		return nil, err
	}

	var interleaved []faceMatch
	for rank := 0; ; rank++ {
		added := false
		for _, matches := range perVector {
			if rank < len(matches) {
				interleaved = append(interleaved, matches[rank])
				added = true
			}
		}
		if !added {
			break
		}
	}
	return e.resolveFaceMatches(ctx, interleaved)
}

// resolveFaceMatches turns an ordered list of face matches into media hits,
// dropping repeat media ids and repeat hashes while keeping order
func (e *Engine) resolveFaceMatches(ctx context.Context, matches []faceMatch) ([]Hit, error) {
	if len(matches) == 0 {
		return nil, nil
	}

	seen := make(map[int64]bool)
	var ids []int64
	bestScore := make(map[int64]float64)
	for _, m := range matches {
		if !seen[m.MediaFileID] {
			seen[m.MediaFileID] = true
			ids = append(ids, m.MediaFileID)
			bestScore[m.MediaFileID] = m.Score
		}
	}

	candidates, err := e.mediaByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]mediaRow, len(candidates))
	for _, c := range candidates {
		byID[c.id] = c
	}

	hits := make([]Hit, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			ContentHash: c.contentHash,
			MimeType:    c.mimeType,
			Description: c.description,
			Score:       bestScore[id],
		})
	}
	return dedupByHash(hits), nil
}

type mediaRow struct {
	id          int64
	contentHash string
	mimeType    string
	description string
	embedding   []float32
}

func (e *Engine) mediaByIDs(ctx context.Context, ids []int64) ([]mediaRow, error) {
	idArgs := make([]interface{}, len(ids))
	for i, id := range ids {
		idArgs[i] = id
	}
	query, args, err := database.Builder.
		Select("id", "content_hash", "mime_type", "description", "description_embedding").
		From("media_files").
		Where(inClause("id", len(ids)), idArgs...).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build media fetch query: %w", err)
	}

	rows, err := e.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidate media: %w", err)
	}
	defer rows.Close()

	var out []mediaRow
	for rows.Next() {
		var r mediaRow
		var description sql.NullString
		var blob []byte
		if err := rows.Scan(&r.id, &r.contentHash, &r.mimeType, &description, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan candidate media: %w", err)
		}
		r.description = description.String
		r.embedding = models.DecodeVector(blob)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("candidate media fetch failed: %w", err)
	}
	return out, nil
}

func inClause(column string, n int) string {
	clause := column + " IN ("
	for i := 0; i < n; i++ {
		if i > 0 {
			clause += ","
		}
		clause += "?"
	}
	return clause + ")"
}

// dedupByHash drops repeats keeping first-seen order
func dedupByHash(hits []Hit) []Hit {
	seen := make(map[string]bool, len(hits))
	out := hits[:0]
	for _, h := range hits {
		if seen[h.ContentHash] {
			continue
		}
		seen[h.ContentHash] = true
		out = append(out, h)
	}
	return out
}
