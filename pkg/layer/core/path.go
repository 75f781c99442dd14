package core

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidPath indicates that a path could not be normalized because it
// contained a disallowed segment (".", "..") or a NUL byte.
var ErrInvalidPath = errors.New("invalid path")

// Normalize canonicalizes a root-relative path to forward-slash form. It
// replaces backslashes with forward slashes, collapses repeated slashes,
// strips leading and trailing slashes, and rejects "." or ".." segments and
// NUL bytes. An empty or whitespace-only input yields the empty string,
// which denotes the synchronization (working) root itself.
func Normalize(path string) (string, error) {
	// Treat whitespace-only input as the root path.
	if strings.TrimSpace(path) == "" {
		return "", nil
	}

	// Reject embedded NUL bytes outright; they can never form a valid
	// segment on any platform.
	if strings.IndexByte(path, 0) != -1 {
		return "", errors.Wrap(ErrInvalidPath, "path contains a NUL byte")
	}

	// Normalize separators and collapse runs of slashes.
	unified := strings.ReplaceAll(path, "\\", "/")
	segments := strings.Split(unified, "/")

	kept := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if segment == "." || segment == ".." {
			return "", errors.Wrapf(ErrInvalidPath, "disallowed path segment %q", segment)
		}
		kept = append(kept, segment)
	}

	return strings.Join(kept, "/"), nil
}

// foldASCII performs ASCII-only case folding (A-Z to a-z), leaving all other
// bytes (including multi-byte UTF-8 sequences) untouched. This matches the
// collation the engine uses to detect case-insensitive collisions: ASCII
// letters are folded, nothing else is.
func foldASCII(path string) string {
	hasUpper := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c >= 'A' && c <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return path
	}

	folded := make([]byte, len(path))
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		folded[i] = c
	}
	return string(folded)
}

// EqualFold determines whether two normalized paths collide under
// byte-wise, ASCII case-insensitive comparison.
func EqualFold(first, second string) bool {
	if len(first) != len(second) {
		return false
	}
	return foldASCII(first) == foldASCII(second)
}

// Collides reports whether path collides, under ASCII case-insensitive
// comparison, with any normalized path already present in existing.
func Collides(path string, existing []string) bool {
	for _, candidate := range existing {
		if EqualFold(path, candidate) {
			return true
		}
	}
	return false
}

// pathJoin is a fast alternative to path.Join designed specifically for
// root-relative paths. It avoids the cleaning overhead of path.Join. The
// provided leaf name must be non-empty.
func pathJoin(base, leaf string) string {
	if leaf == "" {
		panic("empty leaf name")
	}
	if base == "" {
		return leaf
	}
	return base + "/" + leaf
}

// pathDir is a fast alternative to path.Dir designed specifically for
// root-relative paths. Unlike path.Dir, it returns the empty string (the
// synchronization root) when path has no parent directory, rather than ".".
func pathDir(path string) string {
	if path == "" {
		panic("empty path")
	}
	if index := strings.LastIndexByte(path, '/'); index != -1 {
		return path[:index]
	}
	return ""
}

// PathBase is a fast alternative to path.Base for root-relative paths. If
// path is the root path, it returns the empty string.
func PathBase(path string) string {
	if path == "" {
		return ""
	}
	if index := strings.LastIndexByte(path, '/'); index != -1 {
		return path[index+1:]
	}
	return path
}

// PathDir is a fast alternative to path.Dir for root-relative paths. It
// returns the empty string (the synchronization root) when path has no
// parent directory.
func PathDir(path string) string {
	return pathDir(path)
}

// PathJoin is a fast alternative to path.Join for root-relative paths. The
// provided leaf name must be non-empty.
func PathJoin(base, leaf string) string {
	return pathJoin(base, leaf)
}

// pathLess performs a DFS-order comparison between two root-relative paths,
// comparing component-by-component so that a parent path always sorts
// before its children.
func pathLess(first, second string) bool {
	if first == second {
		return false
	} else if first == "" {
		return true
	} else if second == "" {
		return false
	}

	for {
		firstSlash := strings.IndexByte(first, '/')
		var firstComponent string
		if firstSlash == -1 {
			firstComponent = first
		} else {
			firstComponent = first[:firstSlash]
		}

		secondSlash := strings.IndexByte(second, '/')
		var secondComponent string
		if secondSlash == -1 {
			secondComponent = second
		} else {
			secondComponent = second[:secondSlash]
		}

		if firstComponent < secondComponent {
			return true
		} else if secondComponent < firstComponent {
			return false
		}

		if firstSlash == -1 {
			return true
		} else if secondSlash == -1 {
			return false
		}
		first = first[firstSlash+1:]
		second = second[secondSlash+1:]
	}
}

// IsAncestor reports whether ancestor is a strict ancestor directory of
// path, i.e. path is nested beneath ancestor. A path is not its own
// ancestor.
func IsAncestor(ancestor, path string) bool {
	if ancestor == "" {
		return path != ""
	}
	return strings.HasPrefix(path, ancestor+"/")
}
