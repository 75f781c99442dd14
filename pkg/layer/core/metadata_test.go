package core

import (
	"testing"
	"time"
)

func TestFileMetadataEqualDirectories(t *testing.T) {
	a := &FileMetadata{Kind: EntryKindDirectory}
	b := &FileMetadata{Kind: EntryKindDirectory, ModificationTime: time.Now()}
	if !a.Equal(b) {
		t.Error("directory entries with differing mtime should compare equal")
	}
}

func TestFileMetadataEqualFiles(t *testing.T) {
	now := time.Now()
	a := &FileMetadata{Kind: EntryKindFile, Size: 3, ModificationTime: now, Digest: []byte{1, 2, 3}}
	b := &FileMetadata{Kind: EntryKindFile, Size: 3, ModificationTime: now, Digest: []byte{1, 2, 3}}
	if !a.Equal(b) {
		t.Error("identical file entries should compare equal")
	}

	c := &FileMetadata{Kind: EntryKindFile, Size: 4, ModificationTime: now, Digest: []byte{1, 2, 3}}
	if a.Equal(c) {
		t.Error("file entries with differing size should not compare equal")
	}

	d := &FileMetadata{Kind: EntryKindFile, Size: 3, ModificationTime: now, Digest: []byte{1, 2, 4}}
	if a.Equal(d) {
		t.Error("file entries with differing digest should not compare equal")
	}
}

func TestFileMetadataEqualKindMismatch(t *testing.T) {
	file := &FileMetadata{Kind: EntryKindFile}
	dir := &FileMetadata{Kind: EntryKindDirectory}
	if file.Equal(dir) {
		t.Error("entries of different kinds should never compare equal")
	}
}

func TestFileMetadataEqualNil(t *testing.T) {
	var a, b *FileMetadata
	if !a.Equal(b) {
		t.Error("two nil entries should compare equal")
	}
	present := &FileMetadata{Kind: EntryKindFile}
	if a.Equal(present) || present.Equal(a) {
		t.Error("a nil entry should never compare equal to a present one")
	}
}
