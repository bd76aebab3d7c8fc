package flatfs

import (
	"sync"
)

// fileRecord tracks one currently-open file: where its descriptor lives,
// its data index root, how many handles reference it, the per-file lock
// that serializes concurrent handles ('r' opens take it shared, 'w'/'a'
// opens take it exclusive), and the write-back cache those handles share.
// Grounded on FileDesc plus its embedded ClusterCache.
type fileRecord struct {
	loc         directoryLocation
	l1Cluster   uint32
	name        string
	extension   string
	timesOpened int
	lock        sync.RWMutex
	cache       *clusterCache
}

// canonicalKey is the map key under which a fileRecord is tracked while at
// least one handle has it open.
func canonicalKey(name, extension string) string {
	return "/" + name + "." + extension
}

// openFile resolves name to a file, creating it first if mode is 'w' and
// it does not yet exist, and returns a session bound to a freshly acquired
// per-file lock. The global lock is held only long enough to resolve the
// descriptor and register the open; the per-file lock is then held for
// the lifetime of the session, exactly as the original acquires
// fileSRWLock once in KernelFS::open and releases it once in ~File.
func (mc *mountController) openFile(name, extension string, mode byte) (*fileSession, error) {
	mc.mu.Lock()
	if err := mc.requireMountedLocked(); err != nil {
		mc.mu.Unlock()
		return nil, err
	}
	key := canonicalKey(name, extension)
	record, wasOpen := mc.records[key]
	if !wasOpen {
		loc, entry, found, err := mc.dir.lookup(name, extension)
		if err != nil {
			mc.mu.Unlock()
			return nil, err
		}
		if !found {
			if mode != 'w' {
				mc.mu.Unlock()
				return nil, ErrNotFound
			}
			newLoc, l1Cluster, err := mc.dir.create(name, extension)
			if err != nil {
				mc.mu.Unlock()
				return nil, err
			}
			loc, entry = newLoc, directoryEntry{name: name, extension: extension, l1Cluster: l1Cluster, fileSize: 0}
		}
		record = &fileRecord{loc: loc, l1Cluster: entry.l1Cluster, name: name, extension: extension, cache: newClusterCache(mc.part)}
		mc.records[key] = record
	}
	record.timesOpened++
	mc.numOpenFiles++
	part := mc.part
	alloc := mc.alloc
	mc.mu.Unlock()

	if mode == 'r' {
		record.lock.RLock()
	} else {
		record.lock.Lock()
	}

	// The per-file lock held above is enough to make this read safe without
	// the global lock: format/unmount block until numOpenFiles drops back
	// to zero, so mc.part cannot change out from under an open handle.
	descBuf := zeroedCluster()
	var fileSize int64
	if err := part.ReadCluster(record.loc.descCluster, descBuf); err == nil {
		fileSize = decodeDirectoryEntry(descBuf, record.loc.entryOffset).fileSize
	}

	idx := newFileIndex(part, alloc, &mc.mu, record.cache, record.l1Cluster, mode, fileSize)
	session := &fileSession{mc: mc, record: record, key: key, mode: mode, idx: idx}
	if mode == 'w' {
		if err := idx.truncate(); err != nil && err != ErrInvalidArgument {
			session.Close()
			return nil, err
		}
	} else if mode == 'a' {
		if err := idx.seek(idx.getFileSize()); err != nil {
			session.Close()
			return nil, err
		}
	}
	return session, nil
}

// closeFile finalizes a session: persists the file's size, releases the
// handle count, and, once the last handle on the mounted partition
// closes, wakes any goroutines waiting to unmount or format.
func (mc *mountController) closeFile(s *fileSession) error {
	mc.mu.Lock()
	var sizeErr error
	if s.mode == 'w' || s.mode == 'a' {
		sizeErr = mc.dir.updateFileSize(s.record.loc, s.idx.getFileSize())
		if err := s.idx.cache.writeBack(); err != nil && sizeErr == nil {
			sizeErr = err
		}
	}
	s.record.timesOpened--
	mc.numOpenFiles--
	if s.record.timesOpened == 0 {
		delete(mc.records, s.key)
	}
	if mc.numOpenFiles == 0 && mc.waitingToUnmount > 0 {
		mc.okToUnmount.Release(int64(mc.waitingToUnmount))
	} else if mc.numOpenFiles == 0 && mc.waitingToFormat > 0 {
		mc.okToFormat.Release(int64(mc.waitingToFormat))
	}
	mc.mu.Unlock()

	if s.mode == 'r' {
		s.record.lock.RUnlock()
	} else {
		s.record.lock.Unlock()
	}
	return sizeErr
}

// removeFile deletes name's descriptor and reclaims its clusters,
// refusing while any handle is open. Grounded on KernelFS::deleteFile.
func (mc *mountController) removeFile(name, extension string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if err := mc.requireMountedLocked(); err != nil {
		return err
	}
	key := canonicalKey(name, extension)
	if record, open := mc.records[key]; open && record.timesOpened > 0 {
		return ErrBusy
	}
	loc, entry, found, err := mc.dir.lookup(name, extension)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	if err := mc.dir.remove(loc, entry.l1Cluster); err != nil {
		return err
	}
	mc.log.WithField("file", canonicalKey(name, extension)).Info("file removed")
	return nil
}
