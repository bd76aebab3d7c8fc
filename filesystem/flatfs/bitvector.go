package flatfs

import (
	"bytes"
	"fmt"

	"github.com/DimitrijeMilosevic/file-system/partition"
	"github.com/DimitrijeMilosevic/file-system/util/bitmap"
)

// bitVectorAllocator owns the free/used bit for every cluster on the
// mounted partition, one bit vector cluster at a time via bitmap.Bitmap.
// Here a set bit means FREE, the inverse of bitmap.Bitmap's own documented
// convention (it treats a fresh, all-zero bitmap as all-free); the
// inversion is handled entirely at initialization time, so every lookup
// below reads as "first set bit is the first free cluster". All
// operations assume the caller already holds the filesystem's global
// exclusive lock.
type bitVectorAllocator struct {
	part           partition.Partition
	sizeInClusters uint32 // number of clusters the bit vector itself spans
	numClusters    uint32 // total clusters on the partition
}

func newBitVectorAllocator(part partition.Partition, sizeInClusters, numClusters uint32) *bitVectorAllocator {
	return &bitVectorAllocator{part: part, sizeInClusters: sizeInClusters, numClusters: numClusters}
}

// bitVectorSizeInClusters computes ceil(numClusters / (clusterSize*8)).
func bitVectorSizeInClusters(numClusters uint32) uint32 {
	bitsPerCluster := uint32(clusterSize * 8)
	return (numClusters + bitsPerCluster - 1) / bitsPerCluster
}

// clusterLocation splits a global cluster number into the bit vector
// cluster that holds its bit and that bit's location within the cluster's
// own bitmap.
func clusterLocation(clusterNo uint32) (bvCluster uint32, bitLocation int) {
	bitsPerCluster := uint32(clusterSize * 8)
	bvCluster = clusterNo / bitsPerCluster
	bitLocation = int(clusterNo % bitsPerCluster)
	return
}

// allocate scans the bit vector in ascending cluster order for the first
// free (set) bit, marks it in-use (clears it), and returns its cluster
// number. It returns ok=false if the partition is full.
func (a *bitVectorAllocator) allocate() (clusterNo uint32, ok bool, err error) {
	buf := zeroedCluster()
	for bvCluster := uint32(0); bvCluster < a.sizeInClusters; bvCluster++ {
		if err := a.part.ReadCluster(bvCluster, buf); err != nil {
			return 0, false, fmt.Errorf("reading bit vector cluster %d: %w", bvCluster, err)
		}
		bm := bitmap.FromBytes(buf)
		loc := bm.FirstSet()
		if loc == -1 {
			continue
		}
		found := bvCluster*uint32(clusterSize*8) + uint32(loc)
		if found >= a.numClusters {
			// Trailing bits of the bit vector's own last cluster cover no
			// real cluster; treat as exhaustion rather than handing out
			// an out-of-range cluster number.
			return 0, false, nil
		}
		if err := bm.Clear(loc); err != nil {
			return 0, false, fmt.Errorf("clearing bit %d: %w", loc, err)
		}
		if err := a.part.WriteCluster(bvCluster, bm.ToBytes()); err != nil {
			return 0, false, fmt.Errorf("writing bit vector cluster %d: %w", bvCluster, err)
		}
		return found, true, nil
	}
	return 0, false, nil
}

// deallocate marks clusterNo free. The caller guarantees clusterNo was
// previously allocated.
func (a *bitVectorAllocator) deallocate(clusterNo uint32) error {
	bvCluster, bitLocation := clusterLocation(clusterNo)
	buf := zeroedCluster()
	if err := a.part.ReadCluster(bvCluster, buf); err != nil {
		return fmt.Errorf("reading bit vector cluster %d: %w", bvCluster, err)
	}
	bm := bitmap.FromBytes(buf)
	if err := bm.Set(bitLocation); err != nil {
		return fmt.Errorf("setting bit %d: %w", bitLocation, err)
	}
	if err := a.part.WriteCluster(bvCluster, bm.ToBytes()); err != nil {
		return fmt.Errorf("writing bit vector cluster %d: %w", bvCluster, err)
	}
	return nil
}

// initializeBitVector writes the initial bit vector at format time. The
// bit vector spans sizeInClusters clusters, but marking its own clusters
// in-use only takes numOfBitVectorClusters = ceil(sizeInClusters /
// (clusterSize*8)) of them: that many clusters are written in-use (the
// last one only partially, for the sizeInClusters%bitsPerCluster bits that
// don't fill a whole cluster), and every remaining bit-vector cluster
// through sizeInClusters describes ordinary data clusters, all free. The
// root L1 index cluster immediately following is then marked in-use too.
func initializeBitVector(part partition.Partition, sizeInClusters, rootL1ClusterNo uint32) error {
	bitsPerCluster := uint32(clusterSize * 8)
	numOfBitVectorClusters := bitVectorSizeInClusters(sizeInClusters)
	if numOfBitVectorClusters == 0 {
		return nil
	}

	// Clusters fully consumed by marking earlier bit-vector clusters
	// in-use are all-zero (every bit in use): bitmap.NewBytes starts a
	// fresh bitmap with every bit already at its in-use value for us.
	allInUse := bitmap.NewBytes(clusterSize).ToBytes()
	for bvCluster := uint32(0); bvCluster < numOfBitVectorClusters-1; bvCluster++ {
		if err := part.WriteCluster(bvCluster, allInUse); err != nil {
			return fmt.Errorf("zeroing bit vector cluster %d: %w", bvCluster, err)
		}
	}

	// The last of the clusters needed to mark the bit vector's own
	// clusters in-use marks sizeInClusters (mod bitsPerCluster) bits
	// in-use, then the rest free.
	bitsForSelf := int(sizeInClusters % bitsPerCluster)
	lastBVCluster := numOfBitVectorClusters - 1
	bm := bitmap.NewBytes(clusterSize)
	for bit := bitsForSelf; bit < clusterSize*8; bit++ {
		if err := bm.Set(bit); err != nil {
			return fmt.Errorf("marking cluster bit %d free: %w", bit, err)
		}
	}
	if err := part.WriteCluster(lastBVCluster, bm.ToBytes()); err != nil {
		return fmt.Errorf("writing bit vector cluster %d: %w", lastBVCluster, err)
	}

	// Every remaining bit-vector cluster past numOfBitVectorClusters
	// describes ordinary data clusters, all free at format time.
	allFree := bytes.Repeat([]byte{0xff}, clusterSize)
	for bvCluster := numOfBitVectorClusters; bvCluster < sizeInClusters; bvCluster++ {
		if err := part.WriteCluster(bvCluster, allFree); err != nil {
			return fmt.Errorf("writing bit vector cluster %d: %w", bvCluster, err)
		}
	}

	// Finally mark the root L1 index cluster in-use.
	bvCluster, bitLocation := clusterLocation(rootL1ClusterNo)
	buf := zeroedCluster()
	if err := part.ReadCluster(bvCluster, buf); err != nil {
		return fmt.Errorf("reading bit vector cluster %d: %w", bvCluster, err)
	}
	marked := bitmap.FromBytes(buf)
	if err := marked.Clear(bitLocation); err != nil {
		return fmt.Errorf("clearing bit %d: %w", bitLocation, err)
	}
	if err := part.WriteCluster(bvCluster, marked.ToBytes()); err != nil {
		return fmt.Errorf("writing bit vector cluster %d: %w", bvCluster, err)
	}
	return nil
}
