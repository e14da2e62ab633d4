// Package archivetest compiles small archives for tests.
package archivetest

import (
	"path/filepath"
	"testing"

	"github.com/japaniel/spellbridge/pkg/archive"
)

// Words is a small English lexicon used across package tests.
var Words = []archive.Entry{
	{Word: "cat", Weight: 0},
	{Word: "cats", Weight: 0.5},
	{Word: "dog", Weight: 0},
	{Word: "house", Weight: 0},
	{Word: "mouse", Weight: 0.25},
	{Word: "the", Weight: 0},
	{Word: "sat", Weight: 0.5},
	{Word: "on", Weight: 0},
	{Word: "mat", Weight: 0.5},
	{Word: "Oslo", Weight: 0},
}

// Meta returns a metadata block titled "Foo" in en and "Bar" in se.
func Meta(locale string) *archive.Metadata {
	return &archive.Metadata{Info: archive.Info{
		Locale: locale,
		Titles: []archive.Title{
			archive.Tagged("en", "Foo"),
			archive.Tagged("se", "Bar"),
		},
		Producer: "spellbridge tests",
	}}
}

// Build writes an archive into t.TempDir and returns its path.
func Build(t testing.TB, meta *archive.Metadata, entries []archive.Entry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zhfst")
	if err := archive.WriteFile(path, meta, entries); err != nil {
		t.Fatalf("build archive: %v", err)
	}
	return path
}

// Open builds and opens an archive, closing it when the test ends.
func Open(t testing.TB, meta *archive.Metadata, entries []archive.Entry) *archive.Archive {
	t.Helper()
	a, err := archive.Open(Build(t, meta, entries))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}
