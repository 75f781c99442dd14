//go:build windows

package cache

// syncDirectory is a no-op on Windows, where directory rename durability is
// handled by NTFS's own metadata journal.
func syncDirectory(path string) error {
	return nil
}
