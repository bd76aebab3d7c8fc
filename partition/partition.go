// Package partition provides the block-addressable Partition device that
// filesystem/flatfs mounts. A Partition is a fixed number of clusters, each
// exactly ClusterSize bytes, addressed by a zero-based cluster number.
//
// This package is deliberately thin: it has no cache and no error model
// beyond success/failure, matching the external collaborator described by
// the filesystem engine's specification.
package partition

import (
	"errors"
	"fmt"

	"github.com/DimitrijeMilosevic/file-system/backend"
)

// ClusterSize is the fixed size, in bytes, of every cluster on a Partition.
const ClusterSize = 2048

// ErrClusterOutOfRange is returned when a cluster number is not addressable
// on the partition.
var ErrClusterOutOfRange = errors.New("cluster number out of range")

// Partition is a block-addressable device made up of fixed-size clusters.
type Partition interface {
	// NumClusters reports how many clusters the partition holds.
	NumClusters() uint32
	// ReadCluster reads the cluster at clusterNo into buf, which must be at
	// least ClusterSize bytes long.
	ReadCluster(clusterNo uint32, buf []byte) error
	// WriteCluster writes buf (at least ClusterSize bytes) to the cluster
	// at clusterNo.
	WriteCluster(clusterNo uint32, buf []byte) error
}

// storagePartition is a Partition backed by a backend.Storage, addressed as
// a contiguous run of clusters starting at byte offset 0 of the storage.
type storagePartition struct {
	storage     backend.Storage
	numClusters uint32
}

// New wraps a backend.Storage as a Partition of numClusters clusters,
// addressed starting at byte offset 0 of the storage. The storage must be
// at least numClusters*ClusterSize bytes.
func New(storage backend.Storage, numClusters uint32) Partition {
	return &storagePartition{storage: storage, numClusters: numClusters}
}

func (p *storagePartition) NumClusters() uint32 {
	return p.numClusters
}

func (p *storagePartition) ReadCluster(clusterNo uint32, buf []byte) error {
	if clusterNo >= p.numClusters {
		return fmt.Errorf("%w: %d", ErrClusterOutOfRange, clusterNo)
	}
	if len(buf) < ClusterSize {
		return fmt.Errorf("buffer too small: need %d bytes, got %d", ClusterSize, len(buf))
	}
	off := int64(clusterNo) * ClusterSize
	if _, err := p.storage.ReadAt(buf[:ClusterSize], off); err != nil {
		return fmt.Errorf("reading cluster %d: %w", clusterNo, err)
	}
	return nil
}

func (p *storagePartition) WriteCluster(clusterNo uint32, buf []byte) error {
	if clusterNo >= p.numClusters {
		return fmt.Errorf("%w: %d", ErrClusterOutOfRange, clusterNo)
	}
	if len(buf) < ClusterSize {
		return fmt.Errorf("buffer too small: need %d bytes, got %d", ClusterSize, len(buf))
	}
	wf, err := p.storage.Writable()
	if err != nil {
		return fmt.Errorf("writing cluster %d: %w", clusterNo, err)
	}
	off := int64(clusterNo) * ClusterSize
	if _, err := wf.WriteAt(buf[:ClusterSize], off); err != nil {
		return fmt.Errorf("writing cluster %d: %w", clusterNo, err)
	}
	return nil
}
