package db_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"stakeout/pkg/db"
)

func TestDB(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "nested", "db_test.db")

	d, err := db.Init(path)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if d == nil {
		t.Fatal("Init() returned nil DB")
	}
	defer d.Close()

	var n int
	if err := d.QueryRow("SELECT count(*) FROM sqlite_master WHERE type='table' AND name IN ('stakes','persistent_state')").Scan(&n); err != nil {
		t.Fatalf("schema query failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 tables, got %d", n)
	}
}

func TestInit_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	d, err := db.Init(path)
	if err != nil {
		t.Fatalf("first Init() failed: %v", err)
	}
	d.Close()

	d, err = db.Init(path)
	if err != nil {
		t.Fatalf("second Init() failed: %v", err)
	}
	d.Close()
}

func TestPruneStakes(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "prune.db"))
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer d.Close()

	old := time.Now().Add(-48 * time.Hour).UTC()
	fresh := time.Now().UTC()
	for id, ts := range map[string]time.Time{"old": old, "fresh": fresh} {
		if _, err := d.Exec("INSERT INTO stakes (id, created_at) VALUES (?, ?)", id, ts); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	n, err := d.PruneStakes(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneStakes() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned row, got %d", n)
	}

	var left string
	if err := d.QueryRow("SELECT id FROM stakes").Scan(&left); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if left != "fresh" {
		t.Errorf("expected 'fresh' to survive, got %q", left)
	}
}
