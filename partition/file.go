package partition

import (
	"fmt"

	"github.com/DimitrijeMilosevic/file-system/backend"
	backendfile "github.com/DimitrijeMilosevic/file-system/backend/file"
)

// Create creates a new partition image file at pathName sized for
// numClusters clusters and returns a Partition backed by it.
func Create(pathName string, numClusters uint32) (Partition, error) {
	size := int64(numClusters) * ClusterSize
	storage, err := backendfile.CreateFromPath(pathName, size)
	if err != nil {
		return nil, fmt.Errorf("creating partition image %s: %w", pathName, err)
	}
	return New(storage, numClusters), nil
}

// Open opens an existing partition image file at pathName, addressing it as
// numClusters clusters.
func Open(pathName string, numClusters uint32, readOnly bool) (Partition, error) {
	storage, err := backendfile.OpenFromPath(pathName, readOnly)
	if err != nil {
		return nil, fmt.Errorf("opening partition image %s: %w", pathName, err)
	}
	return New(storage, numClusters), nil
}

// FromSubStorage addresses a byte range of a larger backend.Storage as a
// Partition of numClusters clusters, letting several partitions share one
// backing file.
func FromSubStorage(storage backend.Storage, byteOffset int64, numClusters uint32) Partition {
	size := int64(numClusters) * ClusterSize
	return New(backend.Sub(storage, byteOffset, size), numClusters)
}
