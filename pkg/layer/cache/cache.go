package cache

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mutagen-io/layerfs/pkg/logging"
	"github.com/mutagen-io/layerfs/pkg/must"
)

// entryExtension is appended to every cache entry's hash to form its
// on-disk file name.
const entryExtension = ".tar"

// shardWidth is the number of leading hex characters of a hash used to
// shard cache entries across subdirectories, keeping any single directory
// from accumulating an unbounded number of entries.
const shardWidth = 2

// Cache provides atomic, content-addressed storage for layer archives
// under a single root directory, sharded by the leading characters of each
// entry's hash.
type Cache struct {
	root   string
	logger *logging.Logger
}

// New creates (if necessary) and opens a cache rooted at root.
func New(root string, logger *logging.Logger) (*Cache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "unable to create cache root")
	}
	return &Cache{root: root, logger: logger}, nil
}

// shardFor returns the shard subdirectory name for a given hash.
func shardFor(hash string) string {
	if len(hash) < shardWidth {
		return hash
	}
	return hash[:shardWidth]
}

// entryPath returns the full on-disk path for a cache entry keyed by hash.
func (c *Cache) entryPath(hash string) string {
	return filepath.Join(c.root, shardFor(hash), hash+entryExtension)
}

// Exists reports whether an archive is cached under hash.
func (c *Cache) Exists(hash string) (bool, error) {
	_, err := os.Stat(c.entryPath(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "unable to stat cache entry")
}

// Open returns a reader for the archive cached under hash. The second
// return value reports whether an entry was found; if false, the returned
// reader is nil and the error is nil.
func (c *Cache) Open(hash string) (io.ReadCloser, bool, error) {
	file, err := os.Open(c.entryPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "unable to open cache entry")
	}
	return file, true, nil
}

// Store writes the contents of source into the cache under hash,
// atomically: the archive is written to a uniquely-named temporary file in
// the same shard directory and then renamed into place, so a concurrent
// Store for the same hash, or a crash mid-write, never leaves a partial
// entry visible to Open or Exists.
func (c *Cache) Store(ctx context.Context, hash string, source io.Reader) error {
	shardDir := filepath.Join(c.root, shardFor(hash))
	if err := os.MkdirAll(shardDir, 0o755); err != nil {
		return errors.Wrap(err, "unable to create cache shard directory")
	}

	tempName := filepath.Join(shardDir, hash+entryExtension+".tmp."+uuid.NewString())
	temp, err := os.OpenFile(tempName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return errors.Wrap(err, "unable to create temporary cache entry")
	}
	defer must.OSRemove(tempName, c.logger)

	if _, err := io.Copy(temp, source); err != nil {
		must.Close(temp, c.logger)
		return errors.Wrap(err, "unable to write temporary cache entry")
	}
	if err := temp.Sync(); err != nil {
		must.Close(temp, c.logger)
		return errors.Wrap(err, "unable to flush temporary cache entry")
	}
	if err := temp.Close(); err != nil {
		return errors.Wrap(err, "unable to close temporary cache entry")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	finalPath := c.entryPath(hash)
	if err := os.Rename(tempName, finalPath); err != nil {
		return errors.Wrap(err, "unable to finalize cache entry")
	}
	if err := syncDirectory(shardDir); err != nil {
		c.logger.Warnf("unable to sync cache shard directory: %s", err.Error())
	}

	c.logger.Debugf("stored cache entry %s", hash)

	return nil
}

// Stats summarizes the contents of a Cache.
type Stats struct {
	// Entries is the number of cached archives.
	Entries int
	// TotalSize is the sum, in bytes, of every cached archive's size.
	TotalSize int64
}

// String renders Stats in human-readable form, e.g. "12 entries, 4.3 MB".
func (s Stats) String() string {
	return humanize.Comma(int64(s.Entries)) + " entries, " + humanize.Bytes(uint64(s.TotalSize))
}

// Stats walks the cache root and reports the number of entries and their
// total size on disk.
func (c *Cache) Stats() (Stats, error) {
	var stats Stats
	err := filepath.Walk(c.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) != entryExtension {
			return nil
		}
		stats.Entries++
		stats.TotalSize += info.Size()
		return nil
	})
	if err != nil {
		return Stats{}, errors.Wrap(err, "unable to compute cache statistics")
	}
	return stats, nil
}
