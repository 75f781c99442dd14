package archive

import (
	"strings"

	"github.com/mutagen-io/layerfs/pkg/layer/core"
)

// whiteoutPrefix is prepended to the base name of a deleted file to form its
// sibling whiteout entry name, following the OCI image-layer convention.
const whiteoutPrefix = ".wh."

// opaqueWhiteoutLeaf is the leaf name used to mark an entire directory as
// deleted, following the OCI image-layer convention.
const opaqueWhiteoutLeaf = ".wh..wh..opq"

// whiteoutEntryName computes the tar entry name for a deletion, given the
// deleted path and whether it was a file or a directory in the baseline
// snapshot. Directory deletions produce an opaque whiteout covering the
// entire subtree; file deletions produce a sibling whiteout.
func whiteoutEntryName(path string, kind core.EntryKind) string {
	if kind == core.EntryKindDirectory {
		return core.PathJoin(path, opaqueWhiteoutLeaf)
	}
	dir := core.PathDir(path)
	base := core.PathBase(path)
	return core.PathJoin(dir, whiteoutPrefix+base)
}

// isWhiteoutLeaf reports whether a tar entry's base name marks a deletion,
// and if so whether it's an opaque (whole-directory) whiteout.
func isWhiteoutLeaf(leaf string) (whiteout bool, opaque bool) {
	if leaf == opaqueWhiteoutLeaf {
		return true, true
	}
	if strings.HasPrefix(leaf, whiteoutPrefix) {
		return true, false
	}
	return false, false
}
