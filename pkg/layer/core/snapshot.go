package core

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// DuplicatePathError indicates that two distinct paths in a snapshot collide
// under ASCII case-insensitive comparison.
type DuplicatePathError struct {
	// First is the first of the two colliding paths encountered.
	First string
	// Second is the second of the two colliding paths encountered.
	Second string
}

// Error implements the error interface.
func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("duplicate path detected: %q collides with %q", e.First, e.Second)
}

// Snapshot is a logical mapping from normalized, root-relative path to file
// metadata. Keys are compared case-insensitively: no two keys in a valid
// Snapshot may collide under ASCII case folding. Iteration order is
// unspecified.
type Snapshot map[string]*FileMetadata

// Paths returns the snapshot's paths as a slice, in no particular order.
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s))
	for path := range s {
		paths = append(paths, path)
	}
	return paths
}

// sortedPaths returns the snapshot's paths sorted in DFS (parent-before-
// child) order.
func (s Snapshot) sortedPaths() []string {
	paths := s.Paths()
	sort.Slice(paths, func(i, j int) bool {
		return pathLess(paths[i], paths[j])
	})
	return paths
}

// hashFile computes a collision-resistant digest of a file's contents. If
// the file cannot be opened, the digest falls back to a hash of its size and
// modification time, per the digest failure policy: this keeps directory
// walks total even when individual files become unreadable between stat and
// open.
func hashFile(path string, info os.FileInfo) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		fallback := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", info.Size(), info.ModTime())))
		return fallback[:], nil
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		fallback := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", info.Size(), info.ModTime())))
		return fallback[:], nil
	}
	return hasher.Sum(nil), nil
}

// insert adds an entry to the snapshot being built, detecting case-
// insensitive collisions against entries already present. folded maps the
// ASCII-folded form of each inserted path back to its original form, for
// collision reporting.
func insert(snapshot Snapshot, folded map[string]string, path string, metadata *FileMetadata) error {
	key := foldASCII(path)
	if existing, collides := folded[key]; collides {
		return &DuplicatePathError{First: existing, Second: path}
	}
	folded[key] = path
	snapshot[path] = metadata
	return nil
}

// CreateSnapshot walks root recursively and returns a metadata snapshot of
// its contents. Directories below root each yield a directory entry;
// regular files yield a file entry with a content digest, size, and
// modification time. Symbolic links and other non-regular entries are
// skipped entirely. Entries that can't be read (permission denied,
// disappeared mid-walk) are silently omitted rather than failing the walk.
// If root does not exist, CreateSnapshot returns an empty snapshot.
//
// CreateSnapshot fails with a *DuplicatePathError if the directory contains
// two sibling entries whose root-relative paths collide under ASCII
// case-insensitive comparison; this is the earliest point at which such a
// collision, introduced by the caller's own filesystem writes, can be
// detected.
func CreateSnapshot(ctx context.Context, root string) (Snapshot, error) {
	snapshot := make(Snapshot)
	folded := make(map[string]string)

	rootInfo, err := os.Lstat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshot, nil
		}
		return snapshot, nil
	}
	if !rootInfo.IsDir() {
		return snapshot, nil
	}

	var walk func(dir, relative string) error
	walk = func(dir, relative string) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			// The directory disappeared or became unreadable after we
			// decided to descend into it; omit it and its descendants.
			return nil
		}

		for _, entry := range entries {
			childPath := filepath.Join(dir, entry.Name())
			childRelative := pathJoin(relative, entry.Name())

			info, err := entry.Info()
			if err != nil {
				// The entry disappeared between ReadDir and Info; skip it.
				continue
			}

			// Resolve symbolic links enough to identify and skip them,
			// without following them into the snapshot.
			if info.Mode()&os.ModeSymlink != 0 {
				continue
			}

			switch {
			case info.IsDir():
				if err := insert(snapshot, folded, childRelative, &FileMetadata{
					Kind: EntryKindDirectory,
				}); err != nil {
					return err
				}
				if err := walk(childPath, childRelative); err != nil {
					return err
				}
			case info.Mode().IsRegular():
				digest, err := hashFile(childPath, info)
				if err != nil {
					continue
				}
				if err := insert(snapshot, folded, childRelative, &FileMetadata{
					Kind:             EntryKindFile,
					Size:             info.Size(),
					ModificationTime: info.ModTime(),
					Digest:           digest,
				}); err != nil {
					return err
				}
			default:
				// Devices, sockets, named pipes, and other non-regular
				// entries are intentionally ignored.
			}
		}
		return nil
	}

	if err := walk(root, ""); err != nil {
		if _, ok := err.(*DuplicatePathError); ok {
			return snapshot, err
		}
		if err == context.Canceled || err == context.DeadlineExceeded {
			return snapshot, err
		}
		return snapshot, nil
	}

	return snapshot, nil
}
