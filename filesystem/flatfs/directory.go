package flatfs

import (
	"fmt"

	"github.com/DimitrijeMilosevic/file-system/partition"
)

// directoryLocation pins a file's descriptor to its exact slot on disk, so
// later updates to file size don't need to repeat the root traversal.
type directoryLocation struct {
	descCluster uint32
	entryOffset int
}

// directoryIndex is the root directory: a two-level index (L1 -> L2 ->
// file-descriptor clusters -> 32-byte entries) rooted at a single
// well-known L1 cluster. It has no notion of subdirectories; every entry
// names a file directly under "/". Grounded on KernelFS's readRootDir,
// doesExist, getFileDescriptor, allocateFileDescriptor, and deleteFile.
type directoryIndex struct {
	part   partition.Partition
	alloc  *bitVectorAllocator
	rootL1 uint32
}

func newDirectoryIndex(part partition.Partition, alloc *bitVectorAllocator, rootL1 uint32) *directoryIndex {
	return &directoryIndex{part: part, alloc: alloc, rootL1: rootL1}
}

// countFiles walks every allocated file-descriptor cluster and counts
// in-use entries.
func (d *directoryIndex) countFiles() (int, error) {
	count := 0
	err := d.walkDescriptorClusters(func(descCluster uint32, buf []byte) error {
		for entryOff := 0; entryOff < clusterSize; entryOff += descriptorEntrySize {
			if buf[entryOff+descNameOffset] != 0x00 {
				count++
			}
		}
		return nil
	})
	return count, err
}

// lookup finds the descriptor slot for the given canonical name/extension.
func (d *directoryIndex) lookup(name, extension string) (directoryLocation, directoryEntry, bool, error) {
	want := "/" + name + "." + extension
	var loc directoryLocation
	var found directoryEntry
	ok := false
	err := d.walkDescriptorClusters(func(descCluster uint32, buf []byte) error {
		if ok {
			return nil
		}
		for entryOff := 0; entryOff < clusterSize; entryOff += descriptorEntrySize {
			e := decodeDirectoryEntry(buf, entryOff)
			if !e.inUse() {
				continue
			}
			if e.canonicalName() == want {
				loc = directoryLocation{descCluster: descCluster, entryOffset: entryOff}
				found = e
				ok = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return directoryLocation{}, directoryEntry{}, false, err
	}
	return loc, found, ok, nil
}

// walkDescriptorClusters visits every allocated file-descriptor cluster in
// root L1 -> L2 order, reading it once and handing the buffer to fn.
func (d *directoryIndex) walkDescriptorClusters(fn func(descCluster uint32, buf []byte) error) error {
	rootBuf := zeroedCluster()
	if err := d.part.ReadCluster(d.rootL1, rootBuf); err != nil {
		return fmt.Errorf("reading root L1 index: %w", err)
	}
	l2Buf := zeroedCluster()
	descBuf := zeroedCluster()
	for l1Entry := 0; l1Entry < entriesPerIndexCluster; l1Entry++ {
		l2ClusterNo := indexEntryAt(rootBuf, l1Entry)
		if l2ClusterNo == noCluster {
			continue
		}
		if err := d.part.ReadCluster(l2ClusterNo, l2Buf); err != nil {
			return fmt.Errorf("reading root L2 index cluster %d: %w", l2ClusterNo, err)
		}
		for l2Entry := 0; l2Entry < entriesPerIndexCluster; l2Entry++ {
			descCluster := indexEntryAt(l2Buf, l2Entry)
			if descCluster == noCluster {
				continue
			}
			if err := d.part.ReadCluster(descCluster, descBuf); err != nil {
				return fmt.Errorf("reading descriptor cluster %d: %w", descCluster, err)
			}
			if err := fn(descCluster, descBuf); err != nil {
				return err
			}
		}
	}
	return nil
}

// create allocates a descriptor slot for a new file named name.extension
// and gives it a freshly-allocated, empty level-1 index cluster. It
// searches in the exact order the original allocator does: first an
// existing descriptor cluster with a free slot, then a free L2 entry that
// can host a brand new descriptor cluster, then a free L1 entry that can
// host a brand new L2 index cluster (and, under it, a brand new descriptor
// cluster). Returns ErrOutOfSpace if none of these succeed.
func (d *directoryIndex) create(name, extension string) (directoryLocation, uint32, error) {
	rootBuf := zeroedCluster()
	if err := d.part.ReadCluster(d.rootL1, rootBuf); err != nil {
		return directoryLocation{}, 0, fmt.Errorf("reading root L1 index: %w", err)
	}
	l2Buf := zeroedCluster()
	descBuf := zeroedCluster()

	for l1Entry := 0; l1Entry < entriesPerIndexCluster; l1Entry++ {
		l2ClusterNo := indexEntryAt(rootBuf, l1Entry)
		if l2ClusterNo == noCluster {
			continue
		}
		if err := d.part.ReadCluster(l2ClusterNo, l2Buf); err != nil {
			return directoryLocation{}, 0, fmt.Errorf("reading root L2 index cluster %d: %w", l2ClusterNo, err)
		}

		// Pass 1: an existing descriptor cluster with a free slot.
		for l2Entry := 0; l2Entry < entriesPerIndexCluster; l2Entry++ {
			descCluster := indexEntryAt(l2Buf, l2Entry)
			if descCluster == noCluster {
				continue
			}
			if err := d.part.ReadCluster(descCluster, descBuf); err != nil {
				return directoryLocation{}, 0, fmt.Errorf("reading descriptor cluster %d: %w", descCluster, err)
			}
			for entryOff := 0; entryOff < clusterSize; entryOff += descriptorEntrySize {
				if descBuf[entryOff+descNameOffset] != 0x00 {
					continue
				}
				l1ClusterNo, ok, err := d.alloc.allocate()
				if err != nil {
					return directoryLocation{}, 0, err
				}
				if !ok {
					return directoryLocation{}, 0, ErrOutOfSpace
				}
				encodeDirectoryEntry(descBuf, entryOff, directoryEntry{name: name, extension: extension, l1Cluster: l1ClusterNo})
				if err := d.part.WriteCluster(l1ClusterNo, zeroedCluster()); err != nil {
					return directoryLocation{}, 0, fmt.Errorf("initializing file L1 index cluster %d: %w", l1ClusterNo, err)
				}
				if err := d.part.WriteCluster(descCluster, descBuf); err != nil {
					return directoryLocation{}, 0, fmt.Errorf("writing descriptor cluster %d: %w", descCluster, err)
				}
				return directoryLocation{descCluster: descCluster, entryOffset: entryOff}, l1ClusterNo, nil
			}
		}

		// Pass 2: a free L2 entry that can host a brand new descriptor
		// cluster.
		freeL2Entry := -1
		for l2Entry := 0; l2Entry < entriesPerIndexCluster; l2Entry++ {
			if indexEntryAt(l2Buf, l2Entry) == noCluster {
				freeL2Entry = l2Entry
				break
			}
		}
		if freeL2Entry == -1 {
			continue
		}
		descCluster, ok, err := d.alloc.allocate()
		if err != nil {
			return directoryLocation{}, 0, err
		}
		if !ok {
			return directoryLocation{}, 0, ErrOutOfSpace
		}
		l1ClusterNo, ok, err := d.alloc.allocate()
		if err != nil {
			return directoryLocation{}, 0, err
		}
		if !ok {
			return directoryLocation{}, 0, ErrOutOfSpace
		}
		newDescBuf := zeroedCluster()
		encodeDirectoryEntry(newDescBuf, 0, directoryEntry{name: name, extension: extension, l1Cluster: l1ClusterNo})
		setIndexEntryAt(l2Buf, freeL2Entry, descCluster)
		if err := d.part.WriteCluster(l1ClusterNo, zeroedCluster()); err != nil {
			return directoryLocation{}, 0, fmt.Errorf("initializing file L1 index cluster %d: %w", l1ClusterNo, err)
		}
		if err := d.part.WriteCluster(descCluster, newDescBuf); err != nil {
			return directoryLocation{}, 0, fmt.Errorf("writing descriptor cluster %d: %w", descCluster, err)
		}
		if err := d.part.WriteCluster(l2ClusterNo, l2Buf); err != nil {
			return directoryLocation{}, 0, fmt.Errorf("writing root L2 index cluster %d: %w", l2ClusterNo, err)
		}
		return directoryLocation{descCluster: descCluster, entryOffset: 0}, l1ClusterNo, nil
	}

	// Pass 3: a free L1 entry that can host a brand new L2 index cluster.
	freeL1Entry := -1
	for l1Entry := 0; l1Entry < entriesPerIndexCluster; l1Entry++ {
		if indexEntryAt(rootBuf, l1Entry) == noCluster {
			freeL1Entry = l1Entry
			break
		}
	}
	if freeL1Entry == -1 {
		return directoryLocation{}, 0, ErrOutOfSpace
	}
	newL2ClusterNo, ok, err := d.alloc.allocate()
	if err != nil {
		return directoryLocation{}, 0, err
	}
	if !ok {
		return directoryLocation{}, 0, ErrOutOfSpace
	}
	descCluster, ok, err := d.alloc.allocate()
	if err != nil {
		return directoryLocation{}, 0, err
	}
	if !ok {
		return directoryLocation{}, 0, ErrOutOfSpace
	}
	l1ClusterNo, ok, err := d.alloc.allocate()
	if err != nil {
		return directoryLocation{}, 0, err
	}
	if !ok {
		return directoryLocation{}, 0, ErrOutOfSpace
	}
	newDescBuf := zeroedCluster()
	encodeDirectoryEntry(newDescBuf, 0, directoryEntry{name: name, extension: extension, l1Cluster: l1ClusterNo})
	newL2Buf := zeroedCluster()
	setIndexEntryAt(newL2Buf, 0, descCluster)
	setIndexEntryAt(rootBuf, freeL1Entry, newL2ClusterNo)

	if err := d.part.WriteCluster(l1ClusterNo, zeroedCluster()); err != nil {
		return directoryLocation{}, 0, fmt.Errorf("initializing file L1 index cluster %d: %w", l1ClusterNo, err)
	}
	if err := d.part.WriteCluster(descCluster, newDescBuf); err != nil {
		return directoryLocation{}, 0, fmt.Errorf("writing descriptor cluster %d: %w", descCluster, err)
	}
	if err := d.part.WriteCluster(newL2ClusterNo, newL2Buf); err != nil {
		return directoryLocation{}, 0, fmt.Errorf("writing root L2 index cluster %d: %w", newL2ClusterNo, err)
	}
	if err := d.part.WriteCluster(d.rootL1, rootBuf); err != nil {
		return directoryLocation{}, 0, fmt.Errorf("writing root L1 index: %w", err)
	}
	return directoryLocation{descCluster: descCluster, entryOffset: 0}, l1ClusterNo, nil
}

// remove deallocates every cluster owned by the file at loc (its L2 data
// index clusters, data clusters, and L1 index cluster) and clears the
// descriptor slot. Matching the original deleteFile, it does not compact
// now-empty L2 or root L1 entries back to free.
func (d *directoryIndex) remove(loc directoryLocation, l1ClusterNo uint32) error {
	l1Buf := zeroedCluster()
	if err := d.part.ReadCluster(l1ClusterNo, l1Buf); err != nil {
		return fmt.Errorf("reading file L1 index cluster %d: %w", l1ClusterNo, err)
	}
	l2Buf := zeroedCluster()
	for l1Entry := 0; l1Entry < entriesPerIndexCluster; l1Entry++ {
		l2ClusterNo := indexEntryAt(l1Buf, l1Entry)
		if l2ClusterNo == noCluster {
			continue
		}
		if err := d.part.ReadCluster(l2ClusterNo, l2Buf); err != nil {
			return fmt.Errorf("reading file L2 index cluster %d: %w", l2ClusterNo, err)
		}
		for l2Entry := 0; l2Entry < entriesPerIndexCluster; l2Entry++ {
			dataClusterNo := indexEntryAt(l2Buf, l2Entry)
			if dataClusterNo == noCluster {
				continue
			}
			if err := d.alloc.deallocate(dataClusterNo); err != nil {
				return err
			}
		}
		if err := d.alloc.deallocate(l2ClusterNo); err != nil {
			return err
		}
	}
	if err := d.alloc.deallocate(l1ClusterNo); err != nil {
		return err
	}
	descBuf := zeroedCluster()
	if err := d.part.ReadCluster(loc.descCluster, descBuf); err != nil {
		return fmt.Errorf("reading descriptor cluster %d: %w", loc.descCluster, err)
	}
	clearDirectoryEntry(descBuf, loc.entryOffset)
	if err := d.part.WriteCluster(loc.descCluster, descBuf); err != nil {
		return fmt.Errorf("writing descriptor cluster %d: %w", loc.descCluster, err)
	}
	return nil
}

// updateFileSize rewrites just the file-size field of a descriptor slot.
func (d *directoryIndex) updateFileSize(loc directoryLocation, size int64) error {
	buf := zeroedCluster()
	if err := d.part.ReadCluster(loc.descCluster, buf); err != nil {
		return fmt.Errorf("reading descriptor cluster %d: %w", loc.descCluster, err)
	}
	setFileSize(buf, loc.entryOffset, size)
	if err := d.part.WriteCluster(loc.descCluster, buf); err != nil {
		return fmt.Errorf("writing descriptor cluster %d: %w", loc.descCluster, err)
	}
	return nil
}
