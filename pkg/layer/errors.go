package layer

import "github.com/pkg/errors"

// The following sentinel errors name the abstract error kinds a caller may
// need to distinguish. Use errors.Is to test for them; wrapped context is
// added with errors.Wrap/Wrapf around these sentinels, never replacing
// them, so errors.Is keeps working through the wrapping.
var (
	// ErrInvalidArgument indicates an empty or otherwise invalid argument
	// at a public entry point (an empty working directory path, cache
	// directory path, or input hash).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrWorkingDirectoryNotEmpty indicates that CreateSession was called
	// against a working directory that already exists and is non-empty.
	ErrWorkingDirectoryNotEmpty = errors.New("working directory is not empty")

	// ErrCacheIOError indicates that the underlying cache store failed;
	// any partial temporary file has already been cleaned up and the
	// operation is safe to retry.
	ErrCacheIOError = errors.New("cache I/O error")

	// ErrConcurrentStep indicates that BeginLayer was called while another
	// step is still open on the same session.
	ErrConcurrentStep = errors.New("a layer step is already open on this session")

	// ErrAlreadyFinalized indicates that Commit or Cancel was called on a
	// step that is no longer open.
	ErrAlreadyFinalized = errors.New("layer step is already finalized")

	// ErrSessionDisposed indicates use of a session after Dispose.
	ErrSessionDisposed = errors.New("session is disposed")

	// ErrStepDisposed indicates use of a layer step after Dispose. LayerStep's
	// Commit and Cancel do not return it: after Dispose they report
	// ErrAlreadyFinalized.
	ErrStepDisposed = errors.New("layer step is disposed")
)
