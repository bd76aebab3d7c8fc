package testhelper

import (
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/DimitrijeMilosevic/file-system/backend"
)

// MemoryStorage is a backend.Storage backed by an in-memory byte slice,
// for tests that need a real ReadAt/WriteAt-addressable backing store
// (e.g. to exercise backend.Sub / partition.FromSubStorage) without
// touching disk.
type MemoryStorage struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStorage returns a zeroed MemoryStorage of the given size.
func NewMemoryStorage(size int64) *MemoryStorage {
	return &MemoryStorage{data: make([]byte, size)}
}

var _ backend.Storage = (*MemoryStorage)(nil)

func (m *MemoryStorage) Stat() (fs.FileInfo, error) {
	return nil, nil
}

func (m *MemoryStorage) Read(b []byte) (int, error) {
	return m.ReadAt(b, 0)
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	return n, nil
}

func (m *MemoryStorage) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, io.ErrShortWrite
	}
	n := copy(m.data[off:], p)
	return n, nil
}

func (m *MemoryStorage) Seek(offset int64, whence int) (int64, error) {
	return offset, nil
}

func (m *MemoryStorage) Sys() (*os.File, error) {
	return nil, backend.ErrNotSuitable
}

func (m *MemoryStorage) Writable() (backend.WritableFile, error) {
	return m, nil
}
