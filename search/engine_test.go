package search

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/haven-media/haven/database"
	"github.com/haven-media/haven/models"
	"github.com/haven-media/haven/repository"
)

type testStore struct {
	db    *gorm.DB
	sqlDB *sql.DB
	media *repository.MediaRepository
	faces *repository.FaceRepository
	stats *repository.StatsRepository
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	db, err := database.InitGormDB(filepath.Join(t.TempDir(), "search.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	stats := repository.NewStatsRepository(db)
	return &testStore{
		db:    db,
		sqlDB: sqlDB,
		media: repository.NewMediaRepository(db, stats),
		faces: repository.NewFaceRepository(db),
		stats: stats,
	}
}

// addMedia inserts one media row with an optional description embedding and
// one face row per given face vector
func (ts *testStore) addMedia(t *testing.T, hash, description string, descVec []float32, faceVecs ...[]float32) uint {
	t.Helper()
	record := &models.MediaFile{
		ContentHash:  hash,
		OriginalName: hash[:8],
		MimeType:     "image/jpeg",
		Description:  description,
	}
	record.SetDescriptionEmbedding(descVec)
	err := ts.db.Transaction(func(tx *gorm.DB) error {
		return ts.media.CreateInTx(tx, record)
	})
	if err != nil {
		t.Fatalf("failed to insert media %s: %v", hash, err)
	}

	for _, v := range faceVecs {
		face := models.Face{
			MediaFileID: record.ID,
			Score:       0.9,
			Landmarks:   models.EncodeVector(make([]float32, 10)),
		}
		face.SetEmbedding(v)
		if err := ts.faces.CreateBatch([]models.Face{face}); err != nil {
			t.Fatalf("failed to insert face: %v", err)
		}
	}
	return record.ID
}

func hashN(c byte) string {
	b := make([]byte, 64)
	for i := range b {
		b[i] = c
	}
	return string(b)
}

func TestSearchEmptyQuery(t *testing.T) {
	ts := newTestStore(t)
	engine := NewEngine(ts.sqlDB)

	hits, err := engine.Search(context.Background(), nil, nil, 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if hits != nil {
		t.Errorf("empty query returned %v, want nothing", hits)
	}

	if _, err := engine.Search(context.Background(), nil, nil, 0); err == nil {
		t.Error("k=0 should be rejected")
	}
}

func TestDescriptionOnlySearch(t *testing.T) {
	ts := newTestStore(t)
	ts.addMedia(t, hashN('a'), "red sunset", []float32{1, 0, 0})
	ts.addMedia(t, hashN('b'), "blue ocean", []float32{0, 1, 0})
	ts.addMedia(t, hashN('c'), "reddish dusk", []float32{0.9, 0.1, 0})

	engine := NewEngine(ts.sqlDB)
	hits, err := engine.Search(context.Background(), [][]float32{{1, 0, 0}}, nil, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ContentHash != hashN('a') {
		t.Errorf("best hit is %s, want the exact match", hits[0].ContentHash[:8])
	}
	if hits[1].ContentHash != hashN('c') {
		t.Errorf("second hit is %s, want the near match", hits[1].ContentHash[:8])
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits are not ordered by descending similarity")
	}
}

func TestSingleFaceSearch(t *testing.T) {
	ts := newTestStore(t)
	ts.addMedia(t, hashN('a'), "", nil, []float32{1, 0, 0})
	ts.addMedia(t, hashN('b'), "", nil, []float32{0, 1, 0})
	// two near-identical faces in one item must yield one hit
	ts.addMedia(t, hashN('c'), "", nil, []float32{0.99, 0.1, 0}, []float32{0.98, 0.12, 0})

	engine := NewEngine(ts.sqlDB)
	hits, err := engine.Search(context.Background(), nil, [][]float32{{1, 0, 0}}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3 unique media", len(hits))
	}
	if hits[0].ContentHash != hashN('a') {
		t.Errorf("best hit is %s, want the exact face match", hits[0].ContentHash[:8])
	}
	seen := map[string]bool{}
	for _, h := range hits {
		if seen[h.ContentHash] {
			t.Errorf("duplicate hash %s in results", h.ContentHash[:8])
		}
		seen[h.ContentHash] = true
	}
}

func TestMultiFaceRoundRobin(t *testing.T) {
	ts := newTestStore(t)
	// query 1 matches a then b; query 2 matches c then d
	ts.addMedia(t, hashN('a'), "", nil, []float32{1, 0, 0})
	ts.addMedia(t, hashN('b'), "", nil, []float32{0.9, 0.2, 0})
	ts.addMedia(t, hashN('c'), "", nil, []float32{0, 1, 0})
	ts.addMedia(t, hashN('d'), "", nil, []float32{0, 0.9, 0.2})

	engine := NewEngine(ts.sqlDB)
	hits, err := engine.Search(context.Background(), nil, [][]float32{{1, 0, 0}, {0, 1, 0}}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 4 {
		t.Fatalf("got %d hits, want 4", len(hits))
	}
	// rank 0 of each query first, then rank 1 of each
	wantOrder := []string{hashN('a'), hashN('c'), hashN('b'), hashN('d')}
	for i, want := range wantOrder {
		if hits[i].ContentHash != want {
			t.Errorf("position %d: got %s, want %s", i, hits[i].ContentHash[:8], want[:8])
		}
	}
}

func TestHybridSearchOrdering(t *testing.T) {
	ts := newTestStore(t)
	// two face identities over disjoint media; description similarity ranks
	// them against the query's text
	ts.addMedia(t, hashN('a'), "far", []float32{0, 0, 1}, []float32{1, 0, 0})
	ts.addMedia(t, hashN('b'), "close", []float32{1, 0, 0}, []float32{0.9, 0.1, 0})
	ts.addMedia(t, hashN('c'), "middle", []float32{0.5, 0.5, 0}, []float32{0, 1, 0})
	// matches no face query at all: must never appear
	ts.addMedia(t, hashN('e'), "close too", []float32{1, 0, 0}, []float32{0, 0, 1})

	descQuery := []float32{1, 0, 0}
	faceQueries := [][]float32{{1, 0, 0}, {0, 1, 0}}

	engine := NewEngine(ts.sqlDB)
	k := 1
	hits, err := engine.Search(context.Background(), [][]float32{descQuery}, faceQueries, k)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	// bounded by k * number of face vectors
	if len(hits) > k*len(faceQueries) {
		t.Fatalf("got %d hits, want at most %d", len(hits), k*len(faceQueries))
	}
	// candidates are the top-1 per face query: a (face 1) and c (face 2);
	// description ordering then puts c ("middle") above a ("far")
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ContentHash != hashN('c') || hits[1].ContentHash != hashN('a') {
		t.Errorf("got order [%s %s], want [c a]", hits[0].ContentHash[:8], hits[1].ContentHash[:8])
	}
	for _, h := range hits {
		if h.ContentHash == hashN('e') {
			t.Error("media outside the face candidate set leaked into hybrid results")
		}
	}
}

func TestHybridCandidateUnionDedup(t *testing.T) {
	ts := newTestStore(t)
	// one media item carries both queried identities: candidate union must
	// hold it once
	ts.addMedia(t, hashN('a'), "both people", []float32{1, 0, 0},
		[]float32{1, 0, 0}, []float32{0, 1, 0})

	engine := NewEngine(ts.sqlDB)
	hits, err := engine.Search(context.Background(),
		[][]float32{{1, 0, 0}}, [][]float32{{1, 0, 0}, {0, 1, 0}}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
}

func TestRandomSampler(t *testing.T) {
	ts := newTestStore(t)
	for _, c := range []byte{'a', 'b', 'c', 'd'} {
		ts.addMedia(t, hashN(c), "", nil)
	}

	sampler := &Sampler{
		DB: ts.sqlDB,
		RowCount: func(_ context.Context, table string) (int64, error) {
			return ts.stats.RowCount(table)
		},
		Cutoff: 10000,
	}

	hits, err := sampler.RandomMedia(context.Background(), 3)
	if err != nil {
		t.Fatalf("RandomMedia failed: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("got %d hits, want 3", len(hits))
	}

	// large-table probing path
	sampler.Cutoff = 1
	hits, err = sampler.RandomMedia(context.Background(), 2)
	if err != nil {
		t.Fatalf("RandomMedia (probing) failed: %v", err)
	}
	if len(hits) == 0 || len(hits) > 2 {
		t.Errorf("probing sample returned %d hits, want 1..2", len(hits))
	}

	if hits, err := sampler.RandomMedia(context.Background(), 0); err != nil || hits != nil {
		t.Error("n=0 should return nothing")
	}
}
