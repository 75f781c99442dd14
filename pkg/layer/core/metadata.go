package core

import "time"

// EntryKind identifies the type of filesystem entry a snapshot records.
// Symbolic links, devices, and other non-regular entries are never
// recorded, so only two kinds exist.
type EntryKind uint8

const (
	// EntryKindFile indicates a regular file.
	EntryKindFile EntryKind = iota
	// EntryKindDirectory indicates a directory.
	EntryKindDirectory
)

// String renders a human-readable name for an entry kind, primarily for use
// in log output and error messages.
func (k EntryKind) String() string {
	switch k {
	case EntryKindFile:
		return "file"
	case EntryKindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// FileMetadata records the metadata the snapshot engine tracks for a single
// snapshot entry.
type FileMetadata struct {
	// Kind indicates whether the entry is a file or a directory.
	Kind EntryKind
	// Size is the entry's size in bytes. It is always 0 for directories.
	Size int64
	// ModificationTime is the entry's last-write time.
	ModificationTime time.Time
	// Digest is a collision-resistant digest of the entry's byte stream.
	// It is empty for directories.
	Digest []byte
}

// digestEqual compares two digests for equality.
func digestEqual(first, second []byte) bool {
	if len(first) != len(second) {
		return false
	}
	for i := range first {
		if first[i] != second[i] {
			return false
		}
	}
	return true
}

// Equal determines whether the baseline rule for "modified" is satisfied:
// two file entries are equal iff their size, modification time, and digest
// all match. Directory entries are compared only by kind, since directory
// modification time is explicitly not part of the comparison.
func (m *FileMetadata) Equal(other *FileMetadata) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Kind != other.Kind {
		return false
	}
	if m.Kind == EntryKindDirectory {
		return true
	}
	return m.Size == other.Size &&
		m.ModificationTime.Equal(other.ModificationTime) &&
		digestEqual(m.Digest, other.Digest)
}
