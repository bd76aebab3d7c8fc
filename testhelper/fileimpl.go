// Package testhelper provides fault-injecting stand-ins for
// backend.Storage, for exercising partition's error paths without a real
// disk image.
package testhelper

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/DimitrijeMilosevic/file-system/backend"
)

type reader func(b []byte, offset int64) (int, error)
type writer func(b []byte, offset int64) (int, error)

// StorageStub is a backend.Storage whose ReadAt/WriteAt are supplied by
// the caller, so a test can inject I/O failures at a chosen offset
// without needing a real file or device underneath partition.Partition.
type StorageStub struct {
	Reader   reader
	Writer   writer
	ReadOnly bool
}

var _ backend.Storage = (*StorageStub)(nil)

func (f *StorageStub) Stat() (fs.FileInfo, error) {
	return nil, nil
}

func (f *StorageStub) Read(b []byte) (int, error) {
	return f.Reader(b, 0)
}

func (f *StorageStub) Close() error {
	return nil
}

// ReadAt reads at a particular offset, delegating to the injected reader.
func (f *StorageStub) ReadAt(b []byte, offset int64) (int, error) {
	return f.Reader(b, offset)
}

// WriteAt writes at a particular offset, delegating to the injected writer.
func (f *StorageStub) WriteAt(b []byte, offset int64) (int, error) {
	return f.Writer(b, offset)
}

// Seek is unsupported; partition never calls it, only ReadAt/WriteAt.
func (f *StorageStub) Seek(offset int64, whence int) (int64, error) {
	return 0, fmt.Errorf("testhelper: StorageStub does not implement Seek()")
}

func (f *StorageStub) Sys() (*os.File, error) {
	return nil, backend.ErrNotSuitable
}

func (f *StorageStub) Writable() (backend.WritableFile, error) {
	if f.ReadOnly {
		return nil, backend.ErrIncorrectOpenMode
	}
	return f, nil
}
