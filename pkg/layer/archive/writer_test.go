package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mutagen-io/layerfs/pkg/layer/core"
)

func entryNames(t *testing.T, data []byte) map[string]int64 {
	t.Helper()
	names := make(map[string]int64)
	reader := tar.NewReader(bytes.NewReader(data))
	for {
		header, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unable to read archive: %v", err)
		}
		names[header.Name] = header.Size
	}
	return names
}

func TestCreateArchiveAddedFilesAndDirectories(t *testing.T) {
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "src"), 0o755); err != nil {
		t.Fatalf("unable to create source directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(base, "config.json"), []byte(`{"v":1}`), 0o644); err != nil {
		t.Fatalf("unable to write source file: %v", err)
	}

	changes := []core.FileChange{
		{Path: "config.json", Kind: core.ChangeKindAdded, EntryKind: core.EntryKindFile},
		{Path: "src", Kind: core.ChangeKindAdded, EntryKind: core.EntryKindDirectory},
	}

	var buffer bytes.Buffer
	if err := CreateArchive(context.Background(), changes, base, &buffer); err != nil {
		t.Fatalf("CreateArchive returned unexpected error: %v", err)
	}

	names := entryNames(t, buffer.Bytes())
	if size, ok := names["config.json"]; !ok || size != int64(len(`{"v":1}`)) {
		t.Errorf("archive entry for config.json = (size=%d, present=%v); want size %d", size, ok, len(`{"v":1}`))
	}
	if _, ok := names["src"]; !ok {
		t.Error("archive missing directory entry for src")
	}
}

func TestCreateArchiveWhiteouts(t *testing.T) {
	base := t.TempDir()
	changes := []core.FileChange{
		{Path: "a.txt", Kind: core.ChangeKindDeleted, EntryKind: core.EntryKindFile},
		{Path: "d1", Kind: core.ChangeKindDeleted, EntryKind: core.EntryKindDirectory},
		{Path: "d1/x.txt", Kind: core.ChangeKindDeleted, EntryKind: core.EntryKindFile},
	}

	var buffer bytes.Buffer
	if err := CreateArchive(context.Background(), changes, base, &buffer); err != nil {
		t.Fatalf("CreateArchive returned unexpected error: %v", err)
	}

	names := entryNames(t, buffer.Bytes())
	if _, ok := names[".wh.a.txt"]; !ok {
		t.Error("archive missing .wh.a.txt")
	}
	if _, ok := names["d1/.wh..wh..opq"]; !ok {
		t.Error("archive missing d1/.wh..wh..opq")
	}
	if _, ok := names["d1/.wh.x.txt"]; ok {
		t.Error("archive should collapse the descendant deletion under the directory's opaque whiteout")
	}
}

func TestCreateArchiveRejectsDuplicatePaths(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "Foo.txt"), []byte("one"), 0o644); err != nil {
		t.Fatalf("unable to write source file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(base, "foo.txt"), []byte("two"), 0o644); err != nil {
		t.Fatalf("unable to write source file: %v", err)
	}

	changes := []core.FileChange{
		{Path: "Foo.txt", Kind: core.ChangeKindAdded, EntryKind: core.EntryKindFile},
		{Path: "foo.txt", Kind: core.ChangeKindAdded, EntryKind: core.EntryKindFile},
	}

	var buffer bytes.Buffer
	err := CreateArchive(context.Background(), changes, base, &buffer)
	if err == nil {
		t.Fatal("CreateArchive over colliding paths did not fail")
	}
	if _, ok := err.(*core.DuplicatePathError); !ok {
		t.Fatalf("CreateArchive returned %T; want *core.DuplicatePathError", err)
	}
	if buffer.Len() != 0 {
		t.Error("CreateArchive wrote output despite failing duplicate detection")
	}
}
