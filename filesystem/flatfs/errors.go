package flatfs

import "errors"

// Error kinds returned by this package. Each is a package-level sentinel
// so callers can recover the original meaning via errors.Is even after a
// call site wraps it with additional context.
var (
	// ErrInvalidArgument covers a nil/malformed path, a mode outside
	// {'r','w','a'}, a seek beyond the current file size, a write in 'r'
	// mode, or a truncate in 'r' mode.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotMounted is returned when an operation requires a mounted
	// partition and none is mounted.
	ErrNotMounted = errors.New("no partition mounted")
	// ErrNotFormatted is returned when an operation requires a formatted
	// partition and the mounted one has not been formatted.
	ErrNotFormatted = errors.New("partition not formatted")
	// ErrNotFound is returned by open('r'/'a') or delete on a
	// non-existent path.
	ErrNotFound = errors.New("file not found")
	// ErrBusy is returned by delete on a file with a nonzero open count,
	// or by a duplicate format of an already-formatted mounted partition.
	ErrBusy = errors.New("resource busy")
	// ErrOutOfSpace is returned when cluster allocation fails during
	// create, write, or the truncate prelude.
	ErrOutOfSpace = errors.New("partition out of space")
	// ErrRaceLost is returned when a thread wakes from an unmount/format
	// wait to find the partition already taken from under it.
	ErrRaceLost = errors.New("lost race for partition state transition")
)
