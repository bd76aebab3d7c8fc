// Package flatfs implements a flat, single-root, block-addressable
// filesystem over a fixed-size partition of 2048-byte clusters. Every file
// lives directly under "/"; there are no subdirectories, links,
// permissions, or timestamps. Free space is tracked with a cluster bit
// vector, the root directory is a two-level index of file descriptors,
// and each file's data is itself a two-level index of data clusters.
package flatfs

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/DimitrijeMilosevic/file-system/filesystem"
	"github.com/DimitrijeMilosevic/file-system/partition"
)

// FileSystem is a mounted instance of the flat filesystem. The zero value
// is not usable; construct one with New. A FileSystem is safe for
// concurrent use by multiple goroutines, serialized internally the same
// way the original does: a global reader/writer lock for metadata, plus
// one reader/writer lock per open file.
type FileSystem struct {
	mc  *mountController
	log *logrus.Logger
}

// New returns an unmounted FileSystem. If log is nil, a default logrus
// logger is used.
func New(log *logrus.Logger) *FileSystem {
	if log == nil {
		log = logrus.New()
	}
	return &FileSystem{mc: newMountController(log), log: log}
}

// Type implements filesystem.FileSystem.
func (fs *FileSystem) Type() filesystem.Type { return filesystem.TypeFlat }

// Mount attaches part as the filesystem's backing store. Mounting blocks
// until any previously mounted partition has fully unmounted. A partition
// that was formatted in an earlier mount cycle keeps that status.
func (fs *FileSystem) Mount(ctx context.Context, part partition.Partition) error {
	return fs.mc.mount(ctx, part)
}

// Unmount detaches the mounted partition, blocking until every open file
// handle has been closed.
func (fs *FileSystem) Unmount(ctx context.Context) error {
	return fs.mc.unmount(ctx)
}

// Format implements filesystem.FileSystem, initializing the mounted
// partition's bit vector and empty root directory. It blocks until every
// open file handle has been closed, and fails with ErrBusy if the
// partition is already formatted.
func (fs *FileSystem) Format() error {
	return fs.mc.format(context.Background())
}

// FormatContext is Format with cancellation, for callers that need to
// bound the wait for open handles to drain.
func (fs *FileSystem) FormatContext(ctx context.Context) error {
	return fs.mc.format(ctx)
}

// Exists implements filesystem.FileSystem.
func (fs *FileSystem) Exists(name string) (bool, error) {
	n, ext, err := parseCanonicalName(name)
	if err != nil {
		return false, err
	}
	fs.mc.mu.RLock()
	defer fs.mc.mu.RUnlock()
	if err := fs.mc.requireMountedLocked(); err != nil {
		return false, err
	}
	if _, open := fs.mc.records[canonicalKey(n, ext)]; open {
		return true, nil
	}
	_, _, found, err := fs.mc.dir.lookup(n, ext)
	return found, err
}

// ReadRootDir implements filesystem.FileSystem, returning the number of
// files currently present at the root.
func (fs *FileSystem) ReadRootDir() (int, error) {
	fs.mc.mu.RLock()
	defer fs.mc.mu.RUnlock()
	if err := fs.mc.requireMountedLocked(); err != nil {
		return 0, err
	}
	return fs.mc.dir.countFiles()
}

// OpenFile implements filesystem.FileSystem. mode must be 'r', 'w', or
// 'a': 'r' requires the file to already exist and positions the cursor at
// its start; 'w' creates the file if absent and truncates it to empty;
// 'a' requires the file to exist and positions the cursor at its end.
func (fs *FileSystem) OpenFile(name string, mode byte) (filesystem.File, error) {
	if mode != 'r' && mode != 'w' && mode != 'a' {
		return nil, ErrInvalidArgument
	}
	n, ext, err := parseCanonicalName(name)
	if err != nil {
		return nil, err
	}
	session, err := fs.mc.openFile(n, ext, mode)
	if err != nil {
		return nil, err
	}
	fs.log.WithFields(logrus.Fields{"file": name, "mode": string(mode)}).Debug("file opened")
	return session, nil
}

// Remove implements filesystem.FileSystem.
func (fs *FileSystem) Remove(name string) error {
	n, ext, err := parseCanonicalName(name)
	if err != nil {
		return err
	}
	return fs.mc.removeFile(n, ext)
}
