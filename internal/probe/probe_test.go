package probe

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStat_FindsExistingFileLeaves(t *testing.T) {
	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(fileA, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	tree := map[string]any{
		"paths": []any{fileA, filepath.Join(dir, "missing.txt")},
		"note":  "not a path",
	}

	got := Stat(tree, nil, false)
	if len(got) != 1 {
		t.Fatalf("expected 1 stat, got %d: %+v", len(got), got)
	}
	if got[0].Size != 5 {
		t.Fatalf("expected size 5, got %d", got[0].Size)
	}
}

func TestStat_IgnoresDirectoriesByDefault(t *testing.T) {
	dir := t.TempDir()
	got := Stat(dir, nil, false)
	if len(got) != 0 {
		t.Fatalf("expected directories skipped, got %+v", got)
	}
	got = Stat(dir, nil, true)
	if len(got) != 1 || got[0].Size != 0 {
		t.Fatalf("expected 1 zero-size dir stat, got %+v", got)
	}
}

func TestStat_HonorsIgnorePaths(t *testing.T) {
	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(fileA, []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	ignore := map[string]struct{}{fileA: {}}
	got := Stat(fileA, ignore, false)
	if len(got) != 0 {
		t.Fatalf("expected ignored path to be skipped, got %+v", got)
	}
}

func TestStat_DeterministicMapOrder(t *testing.T) {
	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.txt")
	fileB := filepath.Join(dir, "b.txt")
	for _, p := range []string{fileA, fileB} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	tree1 := map[string]any{"z": fileB, "a": fileA}
	tree2 := map[string]any{"a": fileA, "z": fileB}

	got1 := Stat(tree1, nil, false)
	got2 := Stat(tree2, nil, false)

	if len(got1) != 2 || len(got2) != 2 {
		t.Fatalf("expected 2 stats each, got %d and %d", len(got1), len(got2))
	}
	if got1[0].Path != got2[0].Path || got1[1].Path != got2[1].Path {
		t.Fatalf("expected map key order to be canonicalized by sorted key, got %+v vs %+v", got1, got2)
	}
	if got1[0].Path != canonical(fileA) {
		t.Fatalf("expected sorted-key order to visit %q first, got %q", fileA, got1[0].Path)
	}
}
