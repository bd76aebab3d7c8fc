package partition_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DimitrijeMilosevic/file-system/backend"
	"github.com/DimitrijeMilosevic/file-system/partition"
	"github.com/DimitrijeMilosevic/file-system/testhelper"
)

func TestMemoryPartitionReadWriteRoundTrips(t *testing.T) {
	part := partition.NewMemory(8)
	want := bytes.Repeat([]byte{0x5}, partition.ClusterSize)
	if err := part.WriteCluster(3, want); err != nil {
		t.Fatalf("WriteCluster: %v", err)
	}
	got := make([]byte, partition.ClusterSize)
	if err := part.ReadCluster(3, got); err != nil {
		t.Fatalf("ReadCluster: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadCluster returned %x, want %x", got, want)
	}
}

func TestMemoryPartitionOutOfRange(t *testing.T) {
	part := partition.NewMemory(2)
	buf := make([]byte, partition.ClusterSize)
	if err := part.ReadCluster(5, buf); !errors.Is(err, partition.ErrClusterOutOfRange) {
		t.Errorf("ReadCluster(5) error = %v, want ErrClusterOutOfRange", err)
	}
	if err := part.WriteCluster(5, buf); !errors.Is(err, partition.ErrClusterOutOfRange) {
		t.Errorf("WriteCluster(5) error = %v, want ErrClusterOutOfRange", err)
	}
}

func TestCreateThenOpenImageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.img")
	const numClusters = 4

	created, err := partition.Create(path, numClusters)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	payload := bytes.Repeat([]byte{0xAA}, partition.ClusterSize)
	if err := created.WriteCluster(1, payload); err != nil {
		t.Fatalf("WriteCluster: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != int64(numClusters)*partition.ClusterSize {
		t.Errorf("image size = %d, want %d", info.Size(), int64(numClusters)*partition.ClusterSize)
	}

	opened, err := partition.Open(path, numClusters, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got := make([]byte, partition.ClusterSize)
	if err := opened.ReadCluster(1, got); err != nil {
		t.Fatalf("ReadCluster: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("round-tripped cluster mismatch")
	}
}

func TestFromSubStorageIsolatesByteRange(t *testing.T) {
	const numClusters = 2
	backing := testhelper.NewMemoryStorage(int64(numClusters) * 2 * partition.ClusterSize)

	first := partition.FromSubStorage(backing, 0, numClusters)
	second := partition.FromSubStorage(backing, int64(numClusters)*partition.ClusterSize, numClusters)

	payload := bytes.Repeat([]byte{0x1}, partition.ClusterSize)
	if err := first.WriteCluster(0, payload); err != nil {
		t.Fatalf("WriteCluster on first partition: %v", err)
	}

	untouched := make([]byte, partition.ClusterSize)
	if err := second.ReadCluster(0, untouched); err != nil {
		t.Fatalf("ReadCluster on second partition: %v", err)
	}
	if bytes.Equal(untouched, payload) {
		t.Errorf("write to first sub-partition leaked into second")
	}
}

func TestStorageStubInjectsReadFailure(t *testing.T) {
	boom := errors.New("injected read failure")
	stub := &testhelper.StorageStub{
		Reader: func(b []byte, offset int64) (int, error) { return 0, boom },
		Writer: func(b []byte, offset int64) (int, error) { return len(b), nil },
	}
	part := partition.New(stub, 4)
	buf := make([]byte, partition.ClusterSize)
	if err := part.ReadCluster(0, buf); !errors.Is(err, boom) {
		t.Errorf("ReadCluster error = %v, want wrapped %v", err, boom)
	}
}

func TestStorageStubReadOnlyRejectsWrite(t *testing.T) {
	stub := &testhelper.StorageStub{
		Reader:   func(b []byte, offset int64) (int, error) { return len(b), nil },
		ReadOnly: true,
	}
	part := partition.New(stub, 4)
	buf := make([]byte, partition.ClusterSize)
	if err := part.WriteCluster(0, buf); !errors.Is(err, backend.ErrIncorrectOpenMode) {
		t.Errorf("WriteCluster on read-only stub error = %v, want ErrIncorrectOpenMode", err)
	}
}
