package layer

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mutagen-io/layerfs/pkg/layer/cache"
	"github.com/mutagen-io/layerfs/pkg/logging"
)

// Statistics counts the filesystem entries touched by a single layer.
type Statistics struct {
	FilesAdded         int
	FilesModified      int
	FilesDeleted       int
	DirectoriesAdded   int
	DirectoriesDeleted int
}

// LayerDescriptor records the outcome of a completed layer step, whether it
// was replayed from the cache or freshly committed.
type LayerDescriptor struct {
	// InputHash is the step key the descriptor was recorded under.
	InputHash string
	// CreatedAt is the time the descriptor was recorded.
	CreatedAt time.Time
	// ArchiveSizeBytes is the size of the archive stored for this layer, or
	// zero for cache hits and empty-diff commits.
	ArchiveSizeBytes int64
	// Statistics breaks down the changes the layer applied, or is zero for
	// cache hits and empty-diff commits.
	Statistics Statistics
}

// Session owns a working directory for its lifetime, materializing it one
// layer step at a time against a shared cache directory.
type Session struct {
	workingDir string
	cacheDir   string
	cache      *cache.Cache
	logger     *logging.Logger

	mutex         sync.Mutex
	appliedLayers []LayerDescriptor
	openStep      *LayerStep
	disposed      bool
}

// CreateSession opens a session rooted at workingDir, backed by the shared
// archive cache at cacheDir. workingDir must either not exist (it will be
// created) or exist and be empty; cacheDir is created if it does not exist.
func CreateSession(workingDir, cacheDir string, logger *logging.Logger) (*Session, error) {
	if workingDir == "" || cacheDir == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "working directory and cache directory paths must be non-empty")
	}

	entries, err := os.ReadDir(workingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "unable to inspect working directory")
		}
		if err := os.MkdirAll(workingDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "unable to create working directory")
		}
	} else if len(entries) > 0 {
		return nil, errors.Wrapf(ErrWorkingDirectoryNotEmpty, "%q", workingDir)
	}

	archiveCache, err := cache.New(cacheDir, logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open layer cache")
	}

	return &Session{
		workingDir: workingDir,
		cacheDir:   cacheDir,
		cache:      archiveCache,
		logger:     logger,
	}, nil
}

// WorkingDirectory returns the path the session materializes layers into.
func (s *Session) WorkingDirectory() string {
	return s.workingDir
}

// AppliedLayers returns the descriptors of every layer step that has
// completed initialization (cache hit) or commit (cache miss) on this
// session so far, in completion order. The returned slice is a copy; the
// caller may retain and mutate it freely.
func (s *Session) AppliedLayers() []LayerDescriptor {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	layers := make([]LayerDescriptor, len(s.appliedLayers))
	copy(layers, s.appliedLayers)
	return layers
}

// recordLayer appends a descriptor to the applied-layer list. Callers must
// hold s.mutex.
func (s *Session) recordLayer(descriptor LayerDescriptor) {
	s.appliedLayers = append(s.appliedLayers, descriptor)
}

// Dispose releases the session. It does not delete the working directory
// (caller-owned) and does not touch the cache. Dispose is idempotent; any
// step still open on the session is cancelled without rolling back the
// working directory.
func (s *Session) Dispose() {
	s.mutex.Lock()
	if s.disposed {
		s.mutex.Unlock()
		return
	}
	s.disposed = true
	step := s.openStep
	s.openStep = nil
	s.mutex.Unlock()

	// step.Dispose acquires its own lock and, in turn, s.mutex (now
	// released above) to clear its claim on s.openStep, which is already
	// nil at this point; it's called unlocked to avoid re-entering
	// s.mutex.
	if step != nil {
		step.Dispose()
	}
}
