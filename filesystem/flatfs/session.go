package flatfs

import (
	"fmt"
	"io"
)

// fileSession is the handle callers get back from OpenFile. It adapts the
// lower-level fileIndex to filesystem.File and owns the bookkeeping needed
// to release the handle cleanly on Close. Grounded on the original File/
// KernelFile pair, collapsed into one type since Go has no analogue to the
// original's pimpl split.
type fileSession struct {
	mc     *mountController
	record *fileRecord
	key    string
	mode   byte
	idx    *fileIndex
	closed bool
}

// Read implements filesystem.File (and io.Reader). It returns io.EOF once
// the cursor reaches the end of the file, same as a standard Go reader,
// in addition to the boolean Eof() query the original exposes.
func (s *fileSession) Read(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("flatfs: read on closed file")
	}
	n, err := s.idx.read(p)
	if err != nil {
		return n, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements filesystem.File (and io.Writer).
func (s *fileSession) Write(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("flatfs: write on closed file")
	}
	return s.idx.write(p)
}

// Seek implements filesystem.File (and io.Seeker). The underlying index
// only seeks to absolute offsets, so io.SeekCurrent and io.SeekEnd are
// translated to an absolute offset before delegating; any other whence
// is ErrInvalidArgument.
func (s *fileSession) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, fmt.Errorf("flatfs: seek on closed file")
	}
	abs := offset
	switch whence {
	case 0: // io.SeekStart
	case 1: // io.SeekCurrent
		abs = s.idx.filePos() + offset
	case 2: // io.SeekEnd
		abs = s.idx.getFileSize() + offset
	default:
		return 0, ErrInvalidArgument
	}
	if err := s.idx.seek(abs); err != nil {
		return 0, err
	}
	return abs, nil
}

// Truncate implements filesystem.File: discards everything from the
// cursor to the current end of file.
func (s *fileSession) Truncate() error {
	if s.closed {
		return fmt.Errorf("flatfs: truncate on closed file")
	}
	return s.idx.truncate()
}

// Eof implements filesystem.File.
func (s *fileSession) Eof() bool {
	return s.idx.eof()
}

// Size implements filesystem.File.
func (s *fileSession) Size() int64 {
	return s.idx.getFileSize()
}

// FilePos reports the cursor's current byte offset, matching the
// original's File::filePos.
func (s *fileSession) FilePos() int64 {
	return s.idx.filePos()
}

// Close implements filesystem.File: flushes the per-file cache for
// writers, persists the file's size to its descriptor, and releases the
// per-file lock this session has held since Open.
func (s *fileSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.mc.closeFile(s)
}
