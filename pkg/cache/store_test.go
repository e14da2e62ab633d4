package cache

import (
	"database/sql"
	"reflect"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/japaniel/spellbridge/pkg/archive"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Ensure single connection to avoid separate in-memory DBs per connection.
	db.SetMaxOpenConns(1)
	if err := InitDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestInitDBCreatesSchema(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	for _, table := range []string{"archives", "suggestions"} {
		var name string
		if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
	// migrations are idempotent
	if err := InitDB(db); err != nil {
		t.Fatalf("second InitDB: %v", err)
	}
}

func TestRegisterArchive(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	id1, err := RegisterArchive(db, "abc", "/tmp/a.zhfst", "en", "English", 10)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	id2, err := RegisterArchive(db, "abc", "/tmp/moved.zhfst", "en", "English", 10)
	if err != nil {
		t.Fatalf("register again: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same id, got %d and %d", id1, id2)
	}
	rec, err := GetArchive(db, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.OpenCount != 2 || rec.Path != "/tmp/moved.zhfst" || rec.Title != "English" || rec.WordCount != 10 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, err := RegisterArchive(db, "  ", "", "", "", 0); err == nil {
		t.Fatal("expected error for empty digest")
	}
}

func TestSaveAndGetSuggestions(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	id, err := RegisterArchive(db, "d1", "", "", "", 0)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, found, err := GetSuggestions(db, id, "cta", "k"); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	want := []archive.Suggestion{{Value: "cat", Weight: 2}, {Value: "cats", Weight: 2.5}}
	if err := SaveSuggestions(db, id, "cta", "k", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, found, err := GetSuggestions(db, id, "cta", "k")
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// config key is part of the identity
	if _, found, _ := GetSuggestions(db, id, "cta", "other"); found {
		t.Fatal("results leaked across config keys")
	}

	// an empty result set is still a hit
	if err := SaveSuggestions(db, id, "zzzz", "k", nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	got, found, err = GetSuggestions(db, id, "zzzz", "k")
	if err != nil || !found || len(got) != 0 {
		t.Fatalf("expected empty hit, got %v found=%v err=%v", got, found, err)
	}

	n, err := CountSuggestions(db, id)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 cached entries, got %d (%v)", n, err)
	}
	purged, err := PurgeSuggestions(db, id)
	if err != nil || purged != 2 {
		t.Fatalf("expected 2 purged, got %d (%v)", purged, err)
	}
}

func TestSaveSuggestionsOverwrites(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	id, _ := RegisterArchive(db, "d2", "", "", "", 0)
	if err := SaveSuggestions(db, id, "w", "k", []archive.Suggestion{{Value: "a"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := SaveSuggestions(db, id, "w", "k", []archive.Suggestion{{Value: "b"}}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	got, _, _ := GetSuggestions(db, id, "w", "k")
	if len(got) != 1 || got[0].Value != "b" {
		t.Fatalf("expected overwrite, got %v", got)
	}
}
