package flatfs_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DimitrijeMilosevic/file-system/filesystem/flatfs"
	"github.com/DimitrijeMilosevic/file-system/partition"
)

func mustMount(t *testing.T, numClusters uint32) *flatfs.FileSystem {
	t.Helper()
	fs := flatfs.New(nil)
	part := partition.NewMemory(numClusters)
	if err := fs.Mount(context.Background(), part); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if err := fs.Format(); err != nil {
		t.Fatalf("format: %v", err)
	}
	return fs
}

func writeAll(t *testing.T, f interface {
	Write([]byte) (int, error)
}, data []byte) {
	t.Helper()
	n, err := f.Write(data)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != len(data) {
		t.Fatalf("write: wrote %d bytes, want %d", n, len(data))
	}
}

func readAll(t *testing.T, f interface {
	Read([]byte) (int, error)
}, want int) []byte {
	t.Helper()
	buf := make([]byte, want)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}
	if n != want {
		t.Fatalf("read: got %d bytes, want %d", n, want)
	}
	return buf[:n]
}

// Scenario 1: create by open('w'), write, close, reopen and read back.
func TestScenarioCreateWriteReadBack(t *testing.T) {
	fs := mustMount(t, 512)

	exists, err := fs.Exists("/A.TXT")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatalf("file should not exist before creation")
	}
	if _, err := fs.OpenFile("/A.TXT", 'r'); err != flatfs.ErrNotFound {
		t.Fatalf("open 'r' on missing file: got %v, want ErrNotFound", err)
	}

	f, err := fs.OpenFile("/A.TXT", 'w')
	if err != nil {
		t.Fatalf("open 'w': %v", err)
	}
	writeAll(t, f, []byte("hello"))
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	g, err := fs.OpenFile("/A.TXT", 'r')
	if err != nil {
		t.Fatalf("open 'r': %v", err)
	}
	if g.Size() != 5 {
		t.Fatalf("size = %d, want 5", g.Size())
	}
	got := readAll(t, g, 5)
	if string(got) != "hello" {
		t.Fatalf("read = %q, want %q", got, "hello")
	}
	if err := g.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// Scenario 2: create three files, count, delete one, count and verify gone.
func TestScenarioCreateCountDelete(t *testing.T) {
	fs := mustMount(t, 512)

	for _, name := range []string{"/F1.T", "/F2.T", "/F3.T"} {
		f, err := fs.OpenFile(name, 'w')
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("close %s: %v", name, err)
		}
	}
	n, err := fs.ReadRootDir()
	if err != nil {
		t.Fatalf("readRootDir: %v", err)
	}
	if n != 3 {
		t.Fatalf("readRootDir = %d, want 3", n)
	}

	if err := fs.Remove("/F2.T"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	n, err = fs.ReadRootDir()
	if err != nil {
		t.Fatalf("readRootDir: %v", err)
	}
	if n != 2 {
		t.Fatalf("readRootDir after delete = %d, want 2", n)
	}
	if _, err := fs.OpenFile("/F2.T", 'r'); err != flatfs.ErrNotFound {
		t.Fatalf("open deleted file: got %v, want ErrNotFound", err)
	}
}

// Scenario 3: spans multiple data clusters with consecutive writes.
func TestScenarioMultiClusterWrite(t *testing.T) {
	fs := mustMount(t, 512)

	f, err := fs.OpenFile("/BIG.BIN", 'w')
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	a := bytes.Repeat([]byte{'a'}, 2048)
	b := bytes.Repeat([]byte{'b'}, 2048)
	c := bytes.Repeat([]byte{'c'}, 100)
	writeAll(t, f, a)
	writeAll(t, f, b)
	writeAll(t, f, c)
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	g, err := fs.OpenFile("/BIG.BIN", 'r')
	if err != nil {
		t.Fatalf("open 'r': %v", err)
	}
	if g.Size() != 4196 {
		t.Fatalf("size = %d, want 4196", g.Size())
	}
	got := readAll(t, g, 4196)
	want := append(append(append([]byte{}, a...), b...), c...)
	if !bytes.Equal(got, want) {
		t.Fatalf("content mismatch")
	}
	if err := g.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// Scenario 4: write, append-then-truncate, and verify the surviving prefix.
func TestScenarioAppendAndTruncate(t *testing.T) {
	fs := mustMount(t, 512)

	ones := bytes.Repeat([]byte{1}, 3000)
	f, err := fs.OpenFile("/X.T", 'w')
	if err != nil {
		t.Fatalf("open 'w': %v", err)
	}
	writeAll(t, f, ones)
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	g, err := fs.OpenFile("/X.T", 'a')
	if err != nil {
		t.Fatalf("open 'a': %v", err)
	}
	if _, err := g.Seek(1500, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if err := g.Truncate(); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	h, err := fs.OpenFile("/X.T", 'r')
	if err != nil {
		t.Fatalf("open 'r': %v", err)
	}
	if h.Size() != 1500 {
		t.Fatalf("size = %d, want 1500", h.Size())
	}
	got := readAll(t, h, 1500)
	if !bytes.Equal(got, ones[:1500]) {
		t.Fatalf("content mismatch after truncate")
	}
	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// Scenario 5: a reader opened concurrently with a writer blocks until the
// writer closes, then observes the writer's content.
func TestScenarioReaderBlocksOnWriter(t *testing.T) {
	fs := mustMount(t, 512)

	f, err := fs.OpenFile("/S.T", 'w')
	if err != nil {
		t.Fatalf("open 'w': %v", err)
	}
	writeAll(t, f, []byte("0123456789"))

	done := make(chan struct{})
	var readerErr error
	var readerSize int64
	go func() {
		defer close(done)
		g, err := fs.OpenFile("/S.T", 'r')
		if err != nil {
			readerErr = err
			return
		}
		readerSize = g.Size()
		readerErr = g.Close()
	}()

	select {
	case <-done:
		t.Fatalf("reader returned before writer closed")
	case <-time.After(50 * time.Millisecond):
	}

	if err := f.Close(); err != nil {
		t.Fatalf("writer close: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("reader never unblocked after writer closed")
	}
	if readerErr != nil {
		t.Fatalf("reader: %v", readerErr)
	}
	if readerSize != 10 {
		t.Fatalf("reader saw size %d, want 10", readerSize)
	}
}

// Scenario 6: unmount blocks while a file is open elsewhere and succeeds
// once it's closed; the filesystem is unusable afterward.
func TestScenarioUnmountWaitsForOpenFiles(t *testing.T) {
	fs := mustMount(t, 512)

	f, err := fs.OpenFile("/A.T", 'w')
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	writeAll(t, f, []byte("0123456789"))
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	g, err := fs.OpenFile("/A.T", 'r')
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	unmountDone := make(chan error, 1)
	go func() {
		unmountDone <- fs.Unmount(context.Background())
	}()

	select {
	case <-unmountDone:
		t.Fatalf("unmount returned before the open file closed")
	case <-time.After(50 * time.Millisecond):
	}

	if err := g.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-unmountDone:
		if err != nil {
			t.Fatalf("unmount: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("unmount never returned after the open file closed")
	}

	if _, err := fs.ReadRootDir(); err != flatfs.ErrNotMounted {
		t.Fatalf("readRootDir after unmount: got %v, want ErrNotMounted", err)
	}
}

// Round-trip: open('w') write A, close, open('a') write B, close, read
// back A++B.
func TestRoundTripAppend(t *testing.T) {
	fs := mustMount(t, 512)
	a := []byte("first-chunk-")
	b := []byte("second-chunk")

	f, err := fs.OpenFile("/AB.T", 'w')
	if err != nil {
		t.Fatalf("open 'w': %v", err)
	}
	writeAll(t, f, a)
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	g, err := fs.OpenFile("/AB.T", 'a')
	if err != nil {
		t.Fatalf("open 'a': %v", err)
	}
	writeAll(t, g, b)
	if err := g.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	h, err := fs.OpenFile("/AB.T", 'r')
	if err != nil {
		t.Fatalf("open 'r': %v", err)
	}
	got := readAll(t, h, len(a)+len(b))
	want := append(append([]byte{}, a...), b...)
	if !bytes.Equal(got, want) {
		t.Fatalf("content = %q, want %q", got, want)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// Property (D): an overwrite within the existing file still advances
// fileSize by the full write length, matching the documented (not fixed)
// source behavior.
func TestOverwriteGrowsFileSizeByWriteLength(t *testing.T) {
	fs := mustMount(t, 512)
	f, err := fs.OpenFile("/OV.T", 'w')
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	writeAll(t, f, bytes.Repeat([]byte{'x'}, 100))
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	writeAll(t, f, bytes.Repeat([]byte{'y'}, 10))
	if f.Size() != 110 {
		t.Fatalf("size after overlapping write = %d, want 110 (100 + 10)", f.Size())
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOpenFileInvalidMode(t *testing.T) {
	fs := mustMount(t, 512)
	if _, err := fs.OpenFile("/A.T", 'x'); err != flatfs.ErrInvalidArgument {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}

func TestRemoveBusyFile(t *testing.T) {
	fs := mustMount(t, 512)
	f, err := fs.OpenFile("/A.T", 'w')
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if err := fs.Remove("/A.T"); err != flatfs.ErrBusy {
		t.Fatalf("got %v, want ErrBusy", err)
	}
}

func TestFormatAlreadyFormattedIsBusy(t *testing.T) {
	fs := mustMount(t, 512)
	if err := fs.Format(); err != flatfs.ErrBusy {
		t.Fatalf("got %v, want ErrBusy", err)
	}
}

func TestConcurrentReadersShareAccess(t *testing.T) {
	fs := mustMount(t, 512)
	f, err := fs.OpenFile("/R.T", 'w')
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	writeAll(t, f, []byte("concurrent"))
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := fs.OpenFile("/R.T", 'r')
			if err != nil {
				errs <- err
				return
			}
			defer g.Close()
			if g.Size() != 10 {
				errs <- fmt.Errorf("size = %d, want 10", g.Size())
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent reader: %v", err)
		}
	}
}
