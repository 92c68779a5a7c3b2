package staging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haven-media/haven/database"
	"github.com/haven-media/haven/repository"
)

func newTestQueue(t *testing.T) (*Queue, *repository.StagingRepository) {
	t.Helper()
	db, err := database.InitStagingDB(filepath.Join(t.TempDir(), "staging.db"))
	if err != nil {
		t.Fatalf("failed to open staging database: %v", err)
	}
	repo := repository.NewStagingRepository(db)
	holding := filepath.Join(t.TempDir(), "holding")
	return NewQueue(repo, holding), repo
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEnqueueValidation(t *testing.T) {
	q, repo := newTestQueue(t)
	dir := t.TempDir()
	good := writeFile(t, dir, "a.jpg", "a")

	accepted, err := q.Enqueue([]string{good, "", filepath.Join(dir, "missing.jpg")})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if accepted != 1 {
		t.Errorf("accepted %d paths, want 1", accepted)
	}

	pending, err := repo.PendingPathCount()
	if err != nil {
		t.Fatal(err)
	}
	if pending != 1 {
		t.Errorf("queue holds %d paths, want 1", pending)
	}

	// the same path again is a duplicate, not a new entry
	accepted, err = q.Enqueue([]string{good})
	if err != nil {
		t.Fatal(err)
	}
	if accepted != 0 {
		t.Errorf("duplicate enqueue accepted %d, want 0", accepted)
	}
}

func TestDrainExpandsAndCopies(t *testing.T) {
	q, repo := newTestQueue(t)
	src := t.TempDir()
	writeFile(t, src, "b.jpg", "bee")
	writeFile(t, src, "a.jpg", "ay")
	sub := filepath.Join(src, "nested")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, sub, "c.jpg", "sea")

	if _, err := q.Enqueue([]string{src}); err != nil {
		t.Fatal(err)
	}
	if err := q.Drain(); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	entries, err := os.ReadDir(q.HoldingDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("holding has %d files, want 3", len(entries))
	}

	// queue fully consumed
	pending, _ := repo.PendingPathCount()
	if pending != 0 {
		t.Errorf("%d paths still queued after Drain", pending)
	}
	files, _ := repo.ListFiles()
	if len(files) != 0 {
		t.Errorf("%d expanded files still recorded after Drain", len(files))
	}

	// a second drain finds nothing and copies nothing
	if err := q.Drain(); err != nil {
		t.Fatal(err)
	}
	entries, _ = os.ReadDir(q.HoldingDir)
	if len(entries) != 3 {
		t.Errorf("second Drain changed holding to %d files", len(entries))
	}
}

func TestDrainCollisionGetsSuffix(t *testing.T) {
	q, _ := newTestQueue(t)
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeFile(t, dirA, "photo.jpg", "first")
	writeFile(t, dirB, "photo.jpg", "second")

	if _, err := q.Enqueue([]string{dirA, dirB}); err != nil {
		t.Fatal(err)
	}
	if err := q.Drain(); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	entries, err := os.ReadDir(q.HoldingDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("holding has %d files, want 2 (collision must not overwrite)", len(entries))
	}

	var plain, suffixed int
	for _, e := range entries {
		if e.Name() == "photo.jpg" {
			plain++
		} else if strings.HasPrefix(e.Name(), "photo.") && strings.HasSuffix(e.Name(), ".jpg") {
			suffixed++
		}
	}
	if plain != 1 || suffixed != 1 {
		t.Errorf("expected one plain and one suffixed name, got %d/%d", plain, suffixed)
	}
}

func TestDrainDropsUnreadablePath(t *testing.T) {
	q, repo := newTestQueue(t)
	dir := t.TempDir()
	victim := writeFile(t, dir, "gone.jpg", "x")

	if _, err := q.Enqueue([]string{victim}); err != nil {
		t.Fatal(err)
	}
	// path disappears between enqueue and drain
	if err := os.Remove(victim); err != nil {
		t.Fatal(err)
	}

	if err := q.Drain(); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	pending, _ := repo.PendingPathCount()
	if pending != 0 {
		t.Error("vanished path should still be consumed from the queue")
	}
}
