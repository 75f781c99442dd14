//go:build !windows

package cache

import "golang.org/x/sys/unix"

// syncDirectory flushes directory entry metadata (such as the rename
// performed by Store) to stable storage. Without this, a rename can be
// durable from the perspective of a reader sharing the page cache while
// still being lost after a crash, on filesystems that don't implicitly
// order directory operations.
func syncDirectory(path string) error {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}
