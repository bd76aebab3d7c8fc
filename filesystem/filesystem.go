// Package filesystem provides interfaces and constants shared by filesystem
// implementations. The interesting implementation lives in the subpackage
// github.com/DimitrijeMilosevic/file-system/filesystem/flatfs.
package filesystem

import "errors"

var (
	ErrNotSupported       = errors.New("method not supported by this filesystem")
	ErrReadonlyFilesystem = errors.New("read-only filesystem")
)

// FileSystem is the façade a mounted filesystem exposes to callers. It is a
// thin, forwarding layer over the core engine: argument validation and
// translation to the core's operations, nothing more.
type FileSystem interface {
	// Type returns the type of filesystem.
	Type() Type
	// Format initializes the mounted partition's metadata. Formatting a
	// partition that is already formatted fails.
	Format() error
	// Exists reports whether a file with the given canonical name exists
	// in the root directory.
	Exists(name string) (bool, error)
	// ReadRootDir returns the number of files currently in the root
	// directory.
	ReadRootDir() (int, error)
	// OpenFile opens a handle to read or write a file in the given mode
	// ('r', 'w', or 'a').
	OpenFile(name string, mode byte) (File, error)
	// Remove deletes the named file, provided it is not open.
	Remove(name string) error
}

// Type represents the type of filesystem this is.
type Type int

const (
	// TypeFlat is a flat, single-root, two-level-indexed filesystem.
	TypeFlat Type = iota
)
