package filesystem

import "io"

// File is a reference to a single open file.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	// Truncate removes bytes from the current cursor to the end of the
	// file.
	Truncate() error
	// Eof reports whether the cursor is at the end of the file.
	Eof() bool
	// Size returns the file's current size in bytes.
	Size() int64
	// Close releases the file, flushing any cached writes.
	Close() error
}
