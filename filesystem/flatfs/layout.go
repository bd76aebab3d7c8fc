package flatfs

import "github.com/DimitrijeMilosevic/file-system/partition"

// On-disk geometry constants. All integers on disk are little-endian;
// encode/decode of cluster numbers and descriptor entries lives in this
// file only, keeping wire-format knowledge in one place.
const (
	clusterSize = partition.ClusterSize

	// indexEntrySize is the width, in bytes, of one L1 or L2 index entry
	// (a single little-endian cluster number).
	indexEntrySize = 4
	// entriesPerIndexCluster is how many index entries fit in one cluster.
	entriesPerIndexCluster = clusterSize / indexEntrySize // 512

	// descriptorEntrySize is the width, in bytes, of one file descriptor
	// entry inside a file-descriptor cluster.
	descriptorEntrySize = 32
	// descriptorsPerCluster is how many descriptor entries fit in one
	// file-descriptor cluster.
	descriptorsPerCluster = clusterSize / descriptorEntrySize // 64

	// Descriptor entry field offsets, taken verbatim from the original
	// KernelFS::FILE_NAME_OFFSET / FILE_EXTENSION_OFFSET /
	// LVL1_INDEX_CLUSTER_NUMBER_OFFSET / FILE_SIZE_OFFSET constants.
	descNameOffset      = 0
	descNameLen         = 8
	descExtOffset       = 8
	descExtLen          = 3
	descReservedOffset  = 11
	descL1ClusterOffset = 12
	descFileSizeOffset  = 16

	// maxNameLen/maxExtLen bound the canonical "/NAME.EXT" form (§6.2).
	maxNameLen = descNameLen
	maxExtLen  = descExtLen

	// noCluster is the reserved cluster number meaning "absent entry".
	noCluster uint32 = 0

	// maxFileSize is the largest file size addressable by a two-level
	// index: 512 L1 entries * 512 L2 entries * 2048 bytes/cluster.
	maxFileSize = int64(entriesPerIndexCluster) * int64(entriesPerIndexCluster) * int64(clusterSize)
)

// putUint32LE writes v as 4 little-endian bytes at b[0:4].
func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// uint32LE reads 4 little-endian bytes from b[0:4].
func uint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// indexEntryAt returns the cluster number stored at the given entry index
// (0..511) of an index cluster buffer.
func indexEntryAt(cluster []byte, entry int) uint32 {
	off := entry * indexEntrySize
	return uint32LE(cluster[off : off+indexEntrySize])
}

// setIndexEntryAt writes a cluster number at the given entry index of an
// index cluster buffer.
func setIndexEntryAt(cluster []byte, entry int, clusterNo uint32) {
	off := entry * indexEntrySize
	putUint32LE(cluster[off:off+indexEntrySize], clusterNo)
}

// zeroedCluster returns a fresh, all-zero cluster-sized buffer.
func zeroedCluster() []byte {
	return make([]byte, clusterSize)
}

// offsetToIndices maps a logical byte offset within a file to its
// (l1Index, l2Index, byteInCluster) triple.
func offsetToIndices(off int64) (l1Index, l2Index, byteInCluster int) {
	const l2Span = int64(entriesPerIndexCluster) * int64(clusterSize)
	l1Index = int(off / l2Span)
	rem := off % l2Span
	l2Index = int(rem / int64(clusterSize))
	byteInCluster = int(rem % int64(clusterSize))
	return
}
