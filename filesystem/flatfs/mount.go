package flatfs

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/DimitrijeMilosevic/file-system/partition"
)

// gateCapacity bounds the okToUnmount/okToFormat gates. Both start fully
// acquired (no thread may pass) and are opened by releasing exactly as
// many permits as there are waiters, mirroring a Win32 semaphore created
// with an initial count of 0. The capacity only needs to exceed the
// largest number of goroutines that could plausibly queue on unmount or
// format at once.
const gateCapacity = 1 << 20

// mountController owns the metadata every flatfs operation needs: which
// partition (if any) is mounted, whether it has been formatted, the
// geometry derived from formatting, and the three gating semaphores that
// serialize mount/unmount/format against open file handles. Grounded on
// KernelFS's static state and mount/unmount/format bodies.
type mountController struct {
	log *logrus.Logger

	okToMount   *semaphore.Weighted
	okToUnmount *semaphore.Weighted
	okToFormat  *semaphore.Weighted

	mu sync.RWMutex // guards everything below; acquired before any per-file lock

	part      partition.Partition
	formatted map[partition.Partition]bool
	id        uuid.UUID

	numClusters   uint32
	bitVectorSize uint32
	rootL1Cluster uint32

	waitingToUnmount int
	waitingToFormat  int
	numOpenFiles     int

	alloc *bitVectorAllocator
	dir   *directoryIndex

	records map[string]*fileRecord
}

func newMountController(log *logrus.Logger) *mountController {
	okToUnmount := semaphore.NewWeighted(gateCapacity)
	okToUnmount.Acquire(context.Background(), gateCapacity)
	okToFormat := semaphore.NewWeighted(gateCapacity)
	okToFormat.Acquire(context.Background(), gateCapacity)
	return &mountController{
		log:         log,
		okToMount:   semaphore.NewWeighted(1),
		okToUnmount: okToUnmount,
		okToFormat:  okToFormat,
		formatted:   make(map[partition.Partition]bool),
		records:     make(map[string]*fileRecord),
	}
}

// mount waits for the mount gate, then installs part as the mounted
// partition. A partition that was formatted in a previous mount/unmount
// cycle keeps its formatted status, per formattedPartitions in the
// original.
func (mc *mountController) mount(ctx context.Context, part partition.Partition) error {
	if part == nil {
		return ErrInvalidArgument
	}
	if err := mc.okToMount.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting to mount: %w", err)
	}
	mc.mu.Lock()
	mc.part = part
	if _, ok := mc.formatted[part]; !ok {
		mc.formatted[part] = false
	}
	mc.log.WithField("numClusters", part.NumClusters()).Info("partition mounted")
	mc.mu.Unlock()
	return nil
}

// unmount waits out any currently-open files, then clears the mounted
// partition. If another goroutine unmounts first while this one is
// queued, it reports success without repeating the work, matching the
// original's lost-race handling.
func (mc *mountController) unmount(ctx context.Context) error {
	mc.mu.Lock()
	if mc.part == nil {
		mc.mu.Unlock()
		return ErrNotMounted
	}
	if mc.numOpenFiles > 0 {
		mc.waitingToUnmount++
		mc.mu.Unlock()
		if err := mc.okToUnmount.Acquire(ctx, 1); err != nil {
			mc.mu.Lock()
			mc.waitingToUnmount--
			mc.mu.Unlock()
			return fmt.Errorf("waiting to unmount: %w", err)
		}
		mc.mu.Lock()
		mc.waitingToUnmount--
		if mc.part == nil {
			mc.mu.Unlock()
			return nil
		}
	}
	mc.part = nil
	mc.numOpenFiles = 0
	mc.numClusters = 0
	mc.bitVectorSize = 0
	mc.rootL1Cluster = 0
	mc.alloc = nil
	mc.dir = nil
	mc.records = make(map[string]*fileRecord)
	mc.log.Info("partition unmounted")
	if mc.waitingToFormat > 0 {
		mc.okToFormat.Release(int64(mc.waitingToFormat))
	}
	mc.mu.Unlock()
	mc.okToMount.Release(1)
	return nil
}

// format waits out any currently-open files, then rebuilds the bit vector
// and root directory from scratch. Formatting an already-formatted
// partition is an ErrBusy, matching formattedPartitions[...] == true
// short-circuiting in the original.
func (mc *mountController) format(ctx context.Context) error {
	mc.mu.Lock()
	if mc.part == nil {
		mc.mu.Unlock()
		return ErrNotMounted
	}
	if mc.numOpenFiles > 0 {
		mc.waitingToFormat++
		mc.mu.Unlock()
		if err := mc.okToFormat.Acquire(ctx, 1); err != nil {
			mc.mu.Lock()
			mc.waitingToFormat--
			mc.mu.Unlock()
			return fmt.Errorf("waiting to format: %w", err)
		}
		mc.mu.Lock()
		mc.waitingToFormat--
		if mc.part == nil {
			mc.mu.Unlock()
			return ErrRaceLost
		}
	}
	part := mc.part
	numClusters := part.NumClusters()
	bvSize := bitVectorSizeInClusters(numClusters)
	rootL1 := bvSize
	if mc.formatted[part] {
		mc.mu.Unlock()
		return ErrBusy
	}
	if err := initializeBitVector(part, bvSize, rootL1); err != nil {
		mc.mu.Unlock()
		return fmt.Errorf("initializing bit vector: %w", err)
	}
	if err := part.WriteCluster(rootL1, zeroedCluster()); err != nil {
		mc.mu.Unlock()
		return fmt.Errorf("initializing root directory: %w", err)
	}
	mc.numClusters = numClusters
	mc.bitVectorSize = bvSize
	mc.rootL1Cluster = rootL1
	mc.alloc = newBitVectorAllocator(part, bvSize, numClusters)
	mc.dir = newDirectoryIndex(part, mc.alloc, rootL1)
	mc.records = make(map[string]*fileRecord)
	mc.formatted[part] = true
	mc.id = uuid.New()
	mc.log.WithFields(logrus.Fields{
		"filesystemId":  mc.id,
		"numClusters":   numClusters,
		"bitVectorSize": bvSize,
	}).Info("partition formatted")
	mc.mu.Unlock()
	return nil
}

// requireMountedLocked reports ErrNotMounted/ErrNotFormatted without taking any
// lock of its own; callers hold mc.mu already.
func (mc *mountController) requireMountedLocked() error {
	if mc.part == nil {
		return ErrNotMounted
	}
	if !mc.formatted[mc.part] {
		return ErrNotFormatted
	}
	return nil
}
