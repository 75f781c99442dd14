package archive

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mutagen-io/layerfs/pkg/layer/core"
)

const (
	// neutralFileMode is the permission bits written into every regular-file
	// and whiteout entry. Readers must ignore them; the engine does not model
	// permissions.
	neutralFileMode = 0o644
	// neutralDirMode is the permission bits written into directory entries.
	neutralDirMode = 0o755
)

// CreateArchive streams changes into sink as a POSIX-extended tar archive.
// Added and Modified directory changes produce empty directory entries;
// Added and Modified file changes produce regular file entries streamed
// from baseDir; Deleted changes produce whiteout markers following the OCI
// image-layer convention, collapsed to the minimal set needed (an opaque
// whiteout for a deleted directory implies the deletion of everything
// beneath it, so descendant deletions are not separately written).
//
// Before writing anything, CreateArchive verifies that no two Added or
// Modified paths collide under ASCII case-insensitive comparison, failing
// with a *core.DuplicatePathError if they do. Detection happens before any
// entry is written, so a call that fails duplicate detection writes nothing
// to sink. A failure while streaming entries can leave sink partially
// written.
func CreateArchive(ctx context.Context, changes []core.FileChange, baseDir string, sink io.Writer) error {
	var creates []core.FileChange
	for _, change := range changes {
		if change.Kind != core.ChangeKindDeleted {
			creates = append(creates, change)
		}
	}

	if err := checkDuplicates(creates); err != nil {
		return err
	}

	writer := tar.NewWriter(sink)

	for _, change := range creates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeCreateEntry(writer, change, baseDir); err != nil {
			return err
		}
	}

	for _, change := range core.MinimalDeletions(changes) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeWhiteoutEntry(writer, change); err != nil {
			return err
		}
	}

	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "unable to finalize archive")
	}

	return nil
}

// checkDuplicates verifies that no two paths among creates collide under
// ASCII case-insensitive comparison.
func checkDuplicates(creates []core.FileChange) error {
	var seenPaths []string
	for _, change := range creates {
		if core.Collides(change.Path, seenPaths) {
			for _, existing := range seenPaths {
				if core.EqualFold(existing, change.Path) {
					return &core.DuplicatePathError{First: existing, Second: change.Path}
				}
			}
		}
		seenPaths = append(seenPaths, change.Path)
	}
	return nil
}

// writeCreateEntry writes a single Added or Modified change as a directory
// or regular-file tar entry.
func writeCreateEntry(writer *tar.Writer, change core.FileChange, baseDir string) error {
	if change.EntryKind == core.EntryKindDirectory {
		header := &tar.Header{
			Typeflag: tar.TypeDir,
			Name:     change.Path,
			Mode:     neutralDirMode,
			Format:   tar.FormatPAX,
		}
		return writer.WriteHeader(header)
	}

	sourcePath := filepath.Join(baseDir, filepath.FromSlash(change.Path))
	file, err := os.Open(sourcePath)
	if err != nil {
		return errors.Wrapf(err, "unable to open %q for archiving", change.Path)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errors.Wrapf(err, "unable to stat %q for archiving", change.Path)
	}

	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     change.Path,
		Size:     info.Size(),
		Mode:     neutralFileMode,
		Format:   tar.FormatPAX,
	}
	if err := writer.WriteHeader(header); err != nil {
		return errors.Wrapf(err, "unable to write header for %q", change.Path)
	}
	if _, err := io.Copy(writer, file); err != nil {
		return errors.Wrapf(err, "unable to stream contents of %q", change.Path)
	}
	return nil
}

// writeWhiteoutEntry writes an empty regular-file entry marking a deletion.
func writeWhiteoutEntry(writer *tar.Writer, change core.FileChange) error {
	name := whiteoutEntryName(change.Path, change.EntryKind)
	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     0,
		Mode:     neutralFileMode,
		Format:   tar.FormatPAX,
	}
	if err := writer.WriteHeader(header); err != nil {
		return errors.Wrapf(err, "unable to write whiteout header for %q", name)
	}
	return nil
}
