package partition

import "fmt"

// memoryPartition is an in-memory Partition, used by tests in place of a
// real block device or disk image.
type memoryPartition struct {
	clusters [][]byte
}

// NewMemory creates an in-memory Partition of numClusters zeroed clusters.
func NewMemory(numClusters uint32) Partition {
	clusters := make([][]byte, numClusters)
	for i := range clusters {
		clusters[i] = make([]byte, ClusterSize)
	}
	return &memoryPartition{clusters: clusters}
}

func (p *memoryPartition) NumClusters() uint32 {
	return uint32(len(p.clusters))
}

func (p *memoryPartition) ReadCluster(clusterNo uint32, buf []byte) error {
	if clusterNo >= uint32(len(p.clusters)) {
		return fmt.Errorf("%w: %d", ErrClusterOutOfRange, clusterNo)
	}
	if len(buf) < ClusterSize {
		return fmt.Errorf("buffer too small: need %d bytes, got %d", ClusterSize, len(buf))
	}
	copy(buf, p.clusters[clusterNo])
	return nil
}

func (p *memoryPartition) WriteCluster(clusterNo uint32, buf []byte) error {
	if clusterNo >= uint32(len(p.clusters)) {
		return fmt.Errorf("%w: %d", ErrClusterOutOfRange, clusterNo)
	}
	if len(buf) < ClusterSize {
		return fmt.Errorf("buffer too small: need %d bytes, got %d", ClusterSize, len(buf))
	}
	copy(p.clusters[clusterNo], buf[:ClusterSize])
	return nil
}
