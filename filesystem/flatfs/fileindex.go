package flatfs

import (
	"fmt"
	"sync"

	"github.com/DimitrijeMilosevic/file-system/partition"
)

// fileIndex is a single open file's two-level data index (L1 -> L2 ->
// data clusters) plus cursor and size bookkeeping. It is the engine behind
// FileSession; a FileSession is the thin façade callers see, this is where
// the cluster math happens. Grounded on kernelfile.cpp's write/read/seek/
// truncate.
type fileIndex struct {
	part      partition.Partition
	alloc     *bitVectorAllocator
	mu        *sync.RWMutex // the mountController's global lock; held around each allocate/deallocate
	cache     *clusterCache
	l1Cluster uint32
	mode      byte
	cursor    int64
	fileSize  int64
}

func newFileIndex(part partition.Partition, alloc *bitVectorAllocator, mu *sync.RWMutex, cache *clusterCache, l1Cluster uint32, mode byte, fileSize int64) *fileIndex {
	return &fileIndex{part: part, alloc: alloc, mu: mu, cache: cache, l1Cluster: l1Cluster, mode: mode, fileSize: fileSize}
}

// allocateAtomic allocates a single cluster with the global metadata lock
// held, matching allocateClusterAtomic's single-call critical section:
// the bit vector is shared across every open file, so two files writing
// concurrently (each holding only its own per-file lock) must not race
// its read-modify-write.
func (f *fileIndex) allocateAtomic() (uint32, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alloc.allocate()
}

// deallocateAtomic mirrors allocateAtomic for deallocateClusterAtomic.
func (f *fileIndex) deallocateAtomic(clusterNo uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alloc.deallocate(clusterNo)
}

func (f *fileIndex) filePos() int64     { return f.cursor }
func (f *fileIndex) getFileSize() int64 { return f.fileSize }
func (f *fileIndex) eof() bool          { return f.cursor == f.fileSize }

// seek repositions the cursor; positions beyond the current size are
// rejected, matching the original's bounds check (there is no sparse
// extension via seek in this filesystem).
func (f *fileIndex) seek(pos int64) error {
	if pos < 0 || pos > f.fileSize {
		return ErrInvalidArgument
	}
	f.cursor = pos
	return nil
}

// read copies up to len(buf) bytes starting at the cursor, truncating the
// request to whatever remains before fileSize, and advances the cursor by
// the number of bytes actually read. Data clusters are read through the
// file's cluster cache; index clusters are read directly, matching the
// original's split between cached data access and uncached index access.
func (f *fileIndex) read(buf []byte) (int, error) {
	if len(buf) == 0 || f.cursor == f.fileSize {
		return 0, nil
	}
	want := int64(len(buf))
	if remaining := f.fileSize - f.cursor; want > remaining {
		want = remaining
	}

	l1Buf := zeroedCluster()
	if err := f.part.ReadCluster(f.l1Cluster, l1Buf); err != nil {
		return 0, fmt.Errorf("reading file L1 index cluster %d: %w", f.l1Cluster, err)
	}
	l1Index, l2Index, byteInCluster := offsetToIndices(f.cursor)

	l2Buf := zeroedCluster()
	dataBuf := zeroedCluster()
	var read int64
	for ; l1Index < entriesPerIndexCluster; l1Index++ {
		l2ClusterNo := indexEntryAt(l1Buf, l1Index)
		if err := f.part.ReadCluster(l2ClusterNo, l2Buf); err != nil {
			return int(read), fmt.Errorf("reading file L2 index cluster %d: %w", l2ClusterNo, err)
		}
		for ; l2Index < entriesPerIndexCluster; l2Index++ {
			dataClusterNo := indexEntryAt(l2Buf, l2Index)
			if err := f.cache.read(dataClusterNo, dataBuf); err != nil {
				return int(read), fmt.Errorf("reading data cluster %d: %w", dataClusterNo, err)
			}
			chunk := int64(clusterSize) - int64(byteInCluster)
			if remaining := want - read; chunk > remaining {
				chunk = remaining
			}
			copy(buf[read:read+chunk], dataBuf[byteInCluster:int64(byteInCluster)+chunk])
			read += chunk
			if read == want {
				f.cursor += read
				return int(read), nil
			}
			byteInCluster = 0
		}
		l2Index = 0
	}
	return int(read), nil
}

// write copies all of buf starting at the cursor, allocating new L2 index
// clusters and data clusters as needed, and advances the cursor and file
// size. Replicates the original's documented quirk: fileSize grows by
// len(buf) unconditionally on a successful write, even when the write
// lands entirely inside the existing file (an overwrite). Returns
// ErrOutOfSpace if the partition runs out of free clusters mid-write; any
// clusters already allocated before the failure remain allocated.
func (f *fileIndex) write(buf []byte) (int, error) {
	if f.mode == 'r' {
		return 0, ErrInvalidArgument
	}
	if len(buf) == 0 {
		return 0, nil
	}

	l1Buf := zeroedCluster()
	if err := f.part.ReadCluster(f.l1Cluster, l1Buf); err != nil {
		return 0, fmt.Errorf("reading file L1 index cluster %d: %w", f.l1Cluster, err)
	}
	l1Index, l2Index, byteInCluster := offsetToIndices(f.cursor)

	l2Buf := zeroedCluster()
	dataBuf := zeroedCluster()
	var written int64
	want := int64(len(buf))
	for ; l1Index < entriesPerIndexCluster; l1Index++ {
		l2ClusterNo := indexEntryAt(l1Buf, l1Index)
		if l2ClusterNo == noCluster {
			newCluster, ok, err := f.allocateAtomic()
			if err != nil {
				return int(written), err
			}
			if !ok {
				return int(written), ErrOutOfSpace
			}
			l2ClusterNo = newCluster
			if err := f.part.WriteCluster(l2ClusterNo, zeroedCluster()); err != nil {
				return int(written), fmt.Errorf("initializing file L2 index cluster %d: %w", l2ClusterNo, err)
			}
			setIndexEntryAt(l1Buf, l1Index, l2ClusterNo)
			l2Index, byteInCluster = 0, 0
		}
		if err := f.part.ReadCluster(l2ClusterNo, l2Buf); err != nil {
			return int(written), fmt.Errorf("reading file L2 index cluster %d: %w", l2ClusterNo, err)
		}
		for ; l2Index < entriesPerIndexCluster; l2Index++ {
			dataClusterNo := indexEntryAt(l2Buf, l2Index)
			if dataClusterNo == noCluster {
				newCluster, ok, err := f.allocateAtomic()
				if err != nil {
					return int(written), err
				}
				if !ok {
					return int(written), ErrOutOfSpace
				}
				dataClusterNo = newCluster
				if err := f.cache.write(dataClusterNo, zeroedCluster()); err != nil {
					return int(written), err
				}
				setIndexEntryAt(l2Buf, l2Index, dataClusterNo)
				byteInCluster = 0
			}
			if err := f.cache.read(dataClusterNo, dataBuf); err != nil {
				return int(written), fmt.Errorf("reading data cluster %d: %w", dataClusterNo, err)
			}
			chunk := int64(clusterSize) - int64(byteInCluster)
			if remaining := want - written; chunk > remaining {
				chunk = remaining
			}
			copy(dataBuf[byteInCluster:int64(byteInCluster)+chunk], buf[written:written+chunk])
			if err := f.cache.write(dataClusterNo, dataBuf); err != nil {
				return int(written), err
			}
			written += chunk
			if written == want {
				f.fileSize += want
				f.cursor += want
				if err := f.part.WriteCluster(l2ClusterNo, l2Buf); err != nil {
					return int(written), fmt.Errorf("writing file L2 index cluster %d: %w", l2ClusterNo, err)
				}
				if err := f.part.WriteCluster(f.l1Cluster, l1Buf); err != nil {
					return int(written), fmt.Errorf("writing file L1 index cluster %d: %w", f.l1Cluster, err)
				}
				return int(written), nil
			}
			byteInCluster = 0
		}
		l2Index = 0
		if err := f.part.WriteCluster(l2ClusterNo, l2Buf); err != nil {
			return int(written), fmt.Errorf("writing file L2 index cluster %d: %w", l2ClusterNo, err)
		}
	}
	return int(written), ErrOutOfSpace
}

// okToDeallocate reports whether every data-cluster entry in an L2 index
// cluster buffer is empty, meaning the L2 cluster itself can be freed.
func okToDeallocate(l2Buf []byte) bool {
	for entry := 0; entry < entriesPerIndexCluster; entry++ {
		if indexEntryAt(l2Buf, entry) != noCluster {
			return false
		}
	}
	return true
}

// truncate discards every byte from the cursor to the current end of
// file, deallocating now-unused data clusters and, where an L2 index
// cluster ends up wholly empty, that L2 cluster too. It does not touch
// the root directory entry; the caller is responsible for persisting the
// new size.
func (f *fileIndex) truncate() error {
	if f.mode == 'r' {
		return ErrInvalidArgument
	}
	if f.cursor == f.fileSize {
		return nil
	}

	l1Buf := zeroedCluster()
	if err := f.part.ReadCluster(f.l1Cluster, l1Buf); err != nil {
		return fmt.Errorf("reading file L1 index cluster %d: %w", f.l1Cluster, err)
	}
	l1Index, l2Index, byteInCluster := offsetToIndices(f.cursor)
	toTruncate := f.fileSize - f.cursor
	remaining := toTruncate

	l2Buf := zeroedCluster()
	for ; l1Index < entriesPerIndexCluster; l1Index++ {
		l2ClusterNo := indexEntryAt(l1Buf, l1Index)
		if err := f.part.ReadCluster(l2ClusterNo, l2Buf); err != nil {
			return fmt.Errorf("reading file L2 index cluster %d: %w", l2ClusterNo, err)
		}
		for ; l2Index < entriesPerIndexCluster; l2Index++ {
			dataClusterNo := indexEntryAt(l2Buf, l2Index)
			if byteInCluster == 0 {
				if err := f.deallocateAtomic(dataClusterNo); err != nil {
					return err
				}
				f.cache.invalidate(dataClusterNo)
				setIndexEntryAt(l2Buf, l2Index, noCluster)
				remaining -= int64(clusterSize)
			} else {
				remaining -= int64(clusterSize - byteInCluster)
			}
			if remaining <= 0 {
				if okToDeallocate(l2Buf) {
					if err := f.deallocateAtomic(l2ClusterNo); err != nil {
						return err
					}
					setIndexEntryAt(l1Buf, l1Index, noCluster)
				} else if err := f.part.WriteCluster(l2ClusterNo, l2Buf); err != nil {
					return fmt.Errorf("writing file L2 index cluster %d: %w", l2ClusterNo, err)
				}
				if err := f.part.WriteCluster(f.l1Cluster, l1Buf); err != nil {
					return fmt.Errorf("writing file L1 index cluster %d: %w", f.l1Cluster, err)
				}
				f.fileSize -= toTruncate
				return nil
			}
			byteInCluster = 0
		}
		l2Index = 0
		if okToDeallocate(l2Buf) {
			if err := f.deallocateAtomic(l2ClusterNo); err != nil {
				return err
			}
			setIndexEntryAt(l1Buf, l1Index, noCluster)
		} else if err := f.part.WriteCluster(l2ClusterNo, l2Buf); err != nil {
			return fmt.Errorf("writing file L2 index cluster %d: %w", l2ClusterNo, err)
		}
	}
	return nil
}
