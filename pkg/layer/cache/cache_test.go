package cache

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestCacheExistsOpenMiss(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New returned unexpected error: %v", err)
	}

	exists, err := c.Exists("deadbeef")
	if err != nil {
		t.Fatalf("Exists returned unexpected error: %v", err)
	}
	if exists {
		t.Error("Exists on an empty cache returned true")
	}

	_, found, err := c.Open("deadbeef")
	if err != nil {
		t.Fatalf("Open returned unexpected error: %v", err)
	}
	if found {
		t.Error("Open on an empty cache reported found=true")
	}
}

func TestCacheStoreThenOpen(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New returned unexpected error: %v", err)
	}

	payload := []byte("archive contents")
	if err := c.Store(context.Background(), "cafef00d", bytes.NewReader(payload)); err != nil {
		t.Fatalf("Store returned unexpected error: %v", err)
	}

	exists, err := c.Exists("cafef00d")
	if err != nil || !exists {
		t.Fatalf("Exists after Store = (%v, %v); want (true, nil)", exists, err)
	}

	reader, found, err := c.Open("cafef00d")
	if err != nil || !found {
		t.Fatalf("Open after Store = (found=%v, err=%v); want (true, nil)", found, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unable to read cached entry: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("cached entry contents = %q; want %q", data, payload)
	}
}

func TestCacheStoreShardsByHashPrefix(t *testing.T) {
	root := t.TempDir()
	c, err := New(root, nil)
	if err != nil {
		t.Fatalf("New returned unexpected error: %v", err)
	}

	hash := "abcdef0123456789"
	if err := c.Store(context.Background(), hash, bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("Store returned unexpected error: %v", err)
	}

	expected := filepath.Join(root, "ab", hash+".tar")
	if _, err := os.Stat(expected); err != nil {
		t.Errorf("expected sharded entry at %q: %v", expected, err)
	}
}

func TestCacheStoreLeavesNoTempFileOnSuccess(t *testing.T) {
	root := t.TempDir()
	c, err := New(root, nil)
	if err != nil {
		t.Fatalf("New returned unexpected error: %v", err)
	}

	hash := "feedface"
	if err := c.Store(context.Background(), hash, bytes.NewReader([]byte("y"))); err != nil {
		t.Fatalf("Store returned unexpected error: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "fe"))
	if err != nil {
		t.Fatalf("unable to read shard directory: %v", err)
	}
	for _, entry := range entries {
		if entry.Name() != hash+".tar" {
			t.Errorf("unexpected leftover entry in shard directory: %q", entry.Name())
		}
	}
}

// TestCacheConcurrentStoreLeavesOneCompleteArchive exercises spec scenario
// S6: concurrent Store calls under the same hash must never leave Open
// observing a partial file.
func TestCacheConcurrentStoreLeavesOneCompleteArchive(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New returned unexpected error: %v", err)
	}

	payloadA := bytes.Repeat([]byte("A"), 4096)
	payloadB := bytes.Repeat([]byte("B"), 4096)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = c.Store(context.Background(), "Z", bytes.NewReader(payloadA))
	}()
	go func() {
		defer wg.Done()
		_ = c.Store(context.Background(), "Z", bytes.NewReader(payloadB))
	}()
	wg.Wait()

	reader, found, err := c.Open("Z")
	if err != nil || !found {
		t.Fatalf("Open after concurrent Store = (found=%v, err=%v); want (true, nil)", found, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unable to read cached entry: %v", err)
	}
	if !bytes.Equal(data, payloadA) && !bytes.Equal(data, payloadB) {
		t.Error("Open after concurrent Store returned neither full payload; archive is corrupt")
	}
}

func TestCacheStats(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New returned unexpected error: %v", err)
	}

	if err := c.Store(context.Background(), "aaaa", bytes.NewReader([]byte("12345"))); err != nil {
		t.Fatalf("Store returned unexpected error: %v", err)
	}
	if err := c.Store(context.Background(), "bbbb", bytes.NewReader([]byte("1234567890"))); err != nil {
		t.Fatalf("Store returned unexpected error: %v", err)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats returned unexpected error: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("Stats.Entries = %d; want 2", stats.Entries)
	}
	if stats.TotalSize != 15 {
		t.Errorf("Stats.TotalSize = %d; want 15", stats.TotalSize)
	}
}
