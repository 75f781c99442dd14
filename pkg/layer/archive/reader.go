package archive

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mutagen-io/layerfs/pkg/layer/core"
)

// ErrCorruptArchive indicates that an archive's contents could not be
// applied because an entry was malformed, truncated, or referenced a path
// outside of the target directory.
var ErrCorruptArchive = errors.New("corrupt archive")

// ApplyArchive reads a tar archive produced by CreateArchive from source and
// applies it to targetDir: directory entries are created, regular file
// entries are written, and whiteout entries (per the OCI image-layer
// convention) remove the file or directory they mark, with an opaque
// whiteout removing the directory it's nested in along with everything
// beneath it.
//
// ApplyArchive rejects any entry whose name is absolute or that contains a
// ".." segment once split on "/", refusing to extract outside targetDir.
func ApplyArchive(ctx context.Context, source io.Reader, targetDir string) error {
	reader := tar.NewReader(source)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := reader.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Wrap(ErrCorruptArchive, err.Error())
		}

		name, err := sanitizeEntryName(header.Name)
		if err != nil {
			return err
		}
		if name == "" {
			continue
		}

		leaf := core.PathBase(name)
		if whiteout, opaque := isWhiteoutLeaf(leaf); whiteout {
			if err := applyWhiteout(targetDir, name, opaque); err != nil {
				return err
			}
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := applyDirectory(targetDir, name); err != nil {
				return err
			}
		case tar.TypeReg, tar.TypeRegA:
			if err := applyFile(targetDir, name, reader, header.Size); err != nil {
				return err
			}
		default:
			// Entry types the engine doesn't model (symlinks, devices,
			// etc.) are silently skipped.
		}
	}
}

// sanitizeEntryName normalizes a tar entry name and rejects any that would
// escape the target directory.
func sanitizeEntryName(raw string) (string, error) {
	if strings.HasPrefix(raw, "/") {
		return "", errors.Wrapf(ErrCorruptArchive, "entry %q has an absolute path", raw)
	}
	for _, segment := range strings.Split(strings.ReplaceAll(raw, "\\", "/"), "/") {
		if segment == ".." {
			return "", errors.Wrapf(ErrCorruptArchive, "entry %q escapes the target directory", raw)
		}
	}
	normalized, err := core.Normalize(raw)
	if err != nil {
		return "", errors.Wrapf(ErrCorruptArchive, "entry %q has an invalid path: %v", raw, err)
	}
	return normalized, nil
}

// applyWhiteout removes the file or directory marked by a whiteout entry.
func applyWhiteout(targetDir, name string, opaque bool) error {
	var victim string
	if opaque {
		victim = core.PathDir(name)
	} else {
		leaf := core.PathBase(name)
		victim = core.PathJoin(core.PathDir(name), strings.TrimPrefix(leaf, whiteoutPrefix))
	}
	fullPath := filepath.Join(targetDir, filepath.FromSlash(victim))
	if err := os.RemoveAll(fullPath); err != nil {
		return errors.Wrapf(err, "unable to apply whiteout for %q", victim)
	}
	return nil
}

// applyDirectory creates a directory entry (and any missing ancestors).
func applyDirectory(targetDir, name string) error {
	fullPath := filepath.Join(targetDir, filepath.FromSlash(name))
	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return errors.Wrapf(err, "unable to create directory %q", name)
	}
	return nil
}

// applyFile writes a regular file entry, creating any missing parent
// directories first.
func applyFile(targetDir, name string, reader io.Reader, size int64) error {
	fullPath := filepath.Join(targetDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return errors.Wrapf(err, "unable to create parent directory for %q", name)
	}

	file, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %q", name)
	}
	defer file.Close()

	written, err := io.Copy(file, reader)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrapf(ErrCorruptArchive, "entry %q is truncated", name)
	} else if err != nil {
		return errors.Wrapf(err, "unable to write contents of %q", name)
	}
	if written != size {
		return errors.Wrapf(ErrCorruptArchive, "entry %q is truncated: expected %d bytes, wrote %d", name, size, written)
	}
	return nil
}
