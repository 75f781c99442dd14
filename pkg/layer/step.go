package layer

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mutagen-io/layerfs/pkg/layer/archive"
	"github.com/mutagen-io/layerfs/pkg/layer/core"
)

// cacheStatus records whether a step's input hash was found in the cache
// at initialization. It transitions exactly once, from unknown to either
// hit or miss.
type cacheStatus uint8

const (
	cacheStatusUnknown cacheStatus = iota
	cacheStatusHit
	cacheStatusMiss
)

// phase records a layer step's position in its lifecycle. It transitions
// open→committed or open→cancelled exactly once; disposed is reachable
// from any phase via Dispose.
type phase uint8

const (
	phaseOpen phase = iota
	phaseCommitted
	phaseCancelled
	phaseDisposed
)

// LayerStep is the transactional scope within which a single layer is
// produced (cache miss) or replayed (cache hit). At most one LayerStep is
// open on a given Session at a time.
type LayerStep struct {
	session   *Session
	inputHash string
	baseline  core.Snapshot
	status    cacheStatus

	state phase
	m     sync.Mutex
}

// BeginLayer opens a new layer step for inputHash against the session's
// working directory. It captures the baseline snapshot, checks the cache,
// and on a hit replays the cached archive into the working directory
// before returning, so that IsFromCache is accurate as soon as BeginLayer
// returns.
func (s *Session) BeginLayer(ctx context.Context, inputHash string) (*LayerStep, error) {
	if strings.TrimSpace(inputHash) == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "input hash must be non-empty")
	}

	s.mutex.Lock()
	if s.disposed {
		s.mutex.Unlock()
		return nil, ErrSessionDisposed
	}
	if s.openStep != nil {
		s.mutex.Unlock()
		return nil, ErrConcurrentStep
	}
	step := &LayerStep{session: s, inputHash: inputHash}
	s.openStep = step
	s.mutex.Unlock()

	baseline, err := core.CreateSnapshot(ctx, s.workingDir)
	if err != nil {
		s.clearOpenStep()
		return nil, errors.Wrap(err, "unable to capture baseline snapshot")
	}
	step.baseline = baseline

	exists, err := s.cache.Exists(inputHash)
	if err != nil {
		s.clearOpenStep()
		return nil, errors.Wrap(ErrCacheIOError, err.Error())
	}

	if !exists {
		step.status = cacheStatusMiss
		return step, nil
	}

	reader, found, err := s.cache.Open(inputHash)
	if err != nil {
		s.clearOpenStep()
		return nil, errors.Wrap(ErrCacheIOError, err.Error())
	}
	if !found {
		// The entry vanished between Exists and Open; treat as a miss
		// rather than failing the step outright.
		step.status = cacheStatusMiss
		return step, nil
	}
	defer reader.Close()

	if err := archive.ApplyArchive(ctx, reader, s.workingDir); err != nil {
		s.clearOpenStep()
		return nil, errors.Wrap(err, "unable to replay cached layer")
	}

	step.status = cacheStatusHit
	s.logger.Debugf("layer %q replayed from cache", inputHash)

	s.mutex.Lock()
	s.recordLayer(LayerDescriptor{
		InputHash: inputHash,
		CreatedAt: time.Now(),
	})
	s.mutex.Unlock()

	return step, nil
}

// clearOpenStep releases the session's open-step slot, used when
// BeginLayer fails partway through initialization.
func (s *Session) clearOpenStep() {
	s.mutex.Lock()
	s.openStep = nil
	s.mutex.Unlock()
}

// IsFromCache reports whether this step's input hash was found in the
// cache at initialization.
func (t *LayerStep) IsFromCache() bool {
	return t.status == cacheStatusHit
}

// Commit finalizes the step. For a cache hit, it transitions to committed
// and returns a zero-statistics descriptor for the step's input hash, whose
// CreatedAt is the commit time; it does not append a second descriptor to
// the one recorded at initialization. For a cache miss, it takes
// an "after" snapshot, diffs it against the baseline, and — if there are
// any changes — streams the diff through the archive writer into the
// cache under the step's input hash, recording a descriptor with the
// resulting statistics and archive size. An empty diff commits without
// touching the cache.
func (t *LayerStep) Commit(ctx context.Context) (LayerDescriptor, error) {
	t.m.Lock()
	defer t.m.Unlock()

	if t.state != phaseOpen {
		return LayerDescriptor{}, ErrAlreadyFinalized
	}

	if t.status == cacheStatusHit {
		t.state = phaseCommitted
		t.finish()
		return LayerDescriptor{InputHash: t.inputHash, CreatedAt: time.Now()}, nil
	}

	after, err := core.CreateSnapshot(ctx, t.session.workingDir)
	if err != nil {
		return LayerDescriptor{}, errors.Wrap(err, "unable to capture commit snapshot")
	}

	changes := core.DetectChanges(t.baseline, after)
	if len(changes) == 0 {
		t.state = phaseCommitted
		t.finish()
		descriptor := LayerDescriptor{InputHash: t.inputHash, CreatedAt: time.Now()}
		t.session.mutex.Lock()
		t.session.recordLayer(descriptor)
		t.session.mutex.Unlock()
		return descriptor, nil
	}

	var buffer bytes.Buffer
	if err := archive.CreateArchive(ctx, changes, t.session.workingDir, &buffer); err != nil {
		return LayerDescriptor{}, errors.Wrap(err, "unable to write layer archive")
	}

	if err := t.session.cache.Store(ctx, t.inputHash, bytes.NewReader(buffer.Bytes())); err != nil {
		return LayerDescriptor{}, errors.Wrap(ErrCacheIOError, err.Error())
	}
	t.session.logger.Debugf("layer %q stored (%d bytes)", t.inputHash, buffer.Len())

	descriptor := LayerDescriptor{
		InputHash:        t.inputHash,
		CreatedAt:        time.Now(),
		ArchiveSizeBytes: int64(buffer.Len()),
		Statistics:       statisticsFor(changes),
	}

	t.state = phaseCommitted
	t.session.mutex.Lock()
	t.session.recordLayer(descriptor)
	t.session.mutex.Unlock()
	t.finish()

	return descriptor, nil
}

// statisticsFor tallies a change list into Statistics.
func statisticsFor(changes []core.FileChange) Statistics {
	var stats Statistics
	for _, change := range changes {
		switch change.Kind {
		case core.ChangeKindAdded:
			if change.EntryKind == core.EntryKindDirectory {
				stats.DirectoriesAdded++
			} else {
				stats.FilesAdded++
			}
		case core.ChangeKindModified:
			stats.FilesModified++
		case core.ChangeKindDeleted:
			if change.EntryKind == core.EntryKindDirectory {
				stats.DirectoriesDeleted++
			} else {
				stats.FilesDeleted++
			}
		}
	}
	return stats
}

// Cancel transitions an open step to cancelled, writing nothing to the
// cache. It does not roll back any changes the caller made to the working
// directory; reconciling the working directory is the caller's
// responsibility.
func (t *LayerStep) Cancel() error {
	t.m.Lock()
	defer t.m.Unlock()

	if t.state != phaseOpen {
		return ErrAlreadyFinalized
	}
	t.state = phaseCancelled
	t.finish()
	return nil
}

// Dispose releases the step. If the step is still open, it behaves like
// Cancel (no rollback). Dispose is idempotent.
func (t *LayerStep) Dispose() {
	t.m.Lock()
	defer t.m.Unlock()
	t.disposeLocked()
}

// disposeLocked implements Dispose assuming t.m is already held.
func (t *LayerStep) disposeLocked() {
	if t.state == phaseDisposed {
		return
	}
	if t.state == phaseOpen {
		t.state = phaseCancelled
	}
	t.state = phaseDisposed
	t.finish()
}

// finish releases this step's claim on its session's open-step slot, if it
// still holds it.
func (t *LayerStep) finish() {
	t.session.mutex.Lock()
	if t.session.openStep == t {
		t.session.openStep = nil
	}
	t.session.mutex.Unlock()
}
