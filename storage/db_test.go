package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	batch := db.NewBatch()
	batch.Put([]byte("b"), []byte("2"))
	batch.Delete([]byte("a"))
	if batch.Len() != 2 {
		t.Fatalf("batch len = %d", batch.Len())
	}
	// Nothing is visible before Write.
	if got, err := db.Get([]byte("a")); err != nil || string(got) != "1" {
		t.Fatalf("unexpected pre-write state: %q %v", got, err)
	}
	if err := batch.Write(); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if _, err := db.Get([]byte("a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a deleted, got %v", err)
	}
	if got, err := db.Get([]byte("b")); err != nil || string(got) != "2" {
		t.Fatalf("unexpected b: %q %v", got, err)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	exerciseDatabase(t, db)
	if db.Len() != 1 {
		t.Fatalf("expected 1 key, got %d", db.Len())
	}
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestBoltDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := NewBoltDB(path)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	exerciseDatabase(t, db)
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewBoltDB(path)
	if err != nil {
		t.Fatalf("reopen bolt: %v", err)
	}
	defer reopened.Close()
	if got, err := reopened.Get([]byte("b")); err != nil || string(got) != "2" {
		t.Fatalf("expected b to persist, got %q %v", got, err)
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	for _, backend := range []string{"leveldb", "bolt"} {
		db, err := Open(backend, t.TempDir())
		if err != nil {
			t.Fatalf("%s: open: %v", backend, err)
		}
		exerciseDatabase(t, db)
		db.Close()
	}
	if _, err := Open("rocksdb", t.TempDir()); err == nil {
		t.Fatalf("expected unknown backend to fail")
	}
}
