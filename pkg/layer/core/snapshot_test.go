package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("unable to create parent directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("unable to write file: %v", err)
	}
}

func TestCreateSnapshotMissingRoot(t *testing.T) {
	snapshot, err := CreateSnapshot(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("CreateSnapshot returned unexpected error: %v", err)
	}
	if len(snapshot) != 0 {
		t.Fatalf("CreateSnapshot of a missing root returned %d entries; want 0", len(snapshot))
	}
}

func TestCreateSnapshotWalksFilesAndDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "hello")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "world")
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatalf("unable to create empty directory: %v", err)
	}

	snapshot, err := CreateSnapshot(context.Background(), root)
	if err != nil {
		t.Fatalf("CreateSnapshot returned unexpected error: %v", err)
	}

	for _, path := range []string{"a.txt", "sub", "sub/b.txt", "empty"} {
		if _, ok := snapshot[path]; !ok {
			t.Errorf("snapshot missing expected entry %q", path)
		}
	}

	if entry := snapshot["a.txt"]; entry.Kind != EntryKindFile || entry.Size != 5 {
		t.Errorf("a.txt entry = %+v; want file of size 5", entry)
	}
	if entry := snapshot["sub"]; entry.Kind != EntryKindDirectory {
		t.Errorf("sub entry = %+v; want directory", entry)
	}
}

func TestCreateSnapshotDuplicatePath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Foo.txt"), "one")
	writeFile(t, filepath.Join(root, "foo.txt"), "two")

	_, err := CreateSnapshot(context.Background(), root)
	if err == nil {
		t.Fatal("CreateSnapshot over colliding case-insensitive paths did not fail")
	}
	if _, ok := err.(*DuplicatePathError); !ok {
		t.Fatalf("CreateSnapshot returned %T; want *DuplicatePathError", err)
	}
}

func TestCreateSnapshotSkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "real.txt"), "data")
	if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported on this platform: %v", err)
	}

	snapshot, err := CreateSnapshot(context.Background(), root)
	if err != nil {
		t.Fatalf("CreateSnapshot returned unexpected error: %v", err)
	}
	if _, ok := snapshot["link.txt"]; ok {
		t.Error("snapshot should not contain a symlink entry")
	}
	if _, ok := snapshot["real.txt"]; !ok {
		t.Error("snapshot should still contain the real file")
	}
}
