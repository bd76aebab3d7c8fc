package flatfs

import (
	"strings"
)

// directoryEntry is the decoded form of one 32-byte descriptor slot inside
// a file-descriptor cluster. Field offsets mirror KernelFS's
// FILE_NAME_OFFSET/FILE_EXTENSION_OFFSET/LVL1_INDEX_CLUSTER_NUMBER_OFFSET/
// FILE_SIZE_OFFSET layout.
type directoryEntry struct {
	name      string // up to 8 characters, space-padded on disk
	extension string // up to 3 characters, space-padded on disk
	l1Cluster uint32 // file's level-1 index cluster
	fileSize  int64
}

// inUse reports whether the slot this entry was decoded from holds a file.
// A zero first name byte on disk marks the slot free.
func (e directoryEntry) inUse() bool {
	return e.name != ""
}

// canonicalName renders "/NAME.EXT" the way doesExist/getFileDescriptor
// build it for comparison.
func (e directoryEntry) canonicalName() string {
	return "/" + e.name + "." + e.extension
}

// decodeDirectoryEntry reads the descriptor slot starting at byte offset
// entryOff within cluster.
func decodeDirectoryEntry(cluster []byte, entryOff int) directoryEntry {
	nameBytes := cluster[entryOff+descNameOffset : entryOff+descNameOffset+descNameLen]
	if nameBytes[0] == 0x00 {
		return directoryEntry{}
	}
	extBytes := cluster[entryOff+descExtOffset : entryOff+descExtOffset+descExtLen]
	l1 := uint32LE(cluster[entryOff+descL1ClusterOffset : entryOff+descL1ClusterOffset+4])
	size := uint32LE(cluster[entryOff+descFileSizeOffset : entryOff+descFileSizeOffset+4])
	return directoryEntry{
		name:      strings.TrimRight(string(nameBytes), " "),
		extension: strings.TrimRight(string(extBytes), " "),
		l1Cluster: l1,
		fileSize:  int64(size),
	}
}

// encodeDirectoryEntry writes e into the descriptor slot starting at byte
// offset entryOff within cluster, space-padding name/extension to their
// fixed widths.
func encodeDirectoryEntry(cluster []byte, entryOff int, e directoryEntry) {
	slot := cluster[entryOff : entryOff+descriptorEntrySize]
	for i := range slot {
		slot[i] = 0x00
	}
	copy(slot[descNameOffset:descNameOffset+descNameLen], padRight(e.name, descNameLen))
	copy(slot[descExtOffset:descExtOffset+descExtLen], padRight(e.extension, descExtLen))
	putUint32LE(slot[descL1ClusterOffset:descL1ClusterOffset+4], e.l1Cluster)
	putUint32LE(slot[descFileSizeOffset:descFileSizeOffset+4], uint32(e.fileSize))
}

// clearDirectoryEntry zeroes a descriptor slot, marking it free.
func clearDirectoryEntry(cluster []byte, entryOff int) {
	slot := cluster[entryOff : entryOff+descriptorEntrySize]
	for i := range slot {
		slot[i] = 0x00
	}
}

// setFileSize rewrites only the file-size field of a descriptor slot.
func setFileSize(cluster []byte, entryOff int, size int64) {
	putUint32LE(cluster[entryOff+descFileSizeOffset:entryOff+descFileSizeOffset+4], uint32(size))
}

func padRight(s string, width int) []byte {
	b := make([]byte, width)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	return b
}
