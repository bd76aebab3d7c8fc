package flatfs

import (
	"fmt"
	"math/rand"

	"github.com/DimitrijeMilosevic/file-system/partition"
)

// clusterCacheSize is the fixed number of entries a clusterCache holds.
// Each open file has one clusterCache, shared by all of its handles.
const clusterCacheSize = 128

// clusterCache is a write-back cache of whole clusters, sized and
// evicted exactly as the original per-file cache: first an invalid
// slot, then a non-dirty valid slot (discarded without write-back), and
// only when every slot is dirty, a randomly chosen dirty slot flushed to
// make room. Grounded on clustercache.cpp; unlike the original this type
// carries no lock of its own; FileSession serializes access to its own
// cache through the file's lock tier.
type clusterCache struct {
	part  partition.Partition
	valid [clusterCacheSize]bool
	dirty [clusterCacheSize]bool
	tag   [clusterCacheSize]uint32
	data  [clusterCacheSize][]byte
}

func newClusterCache(part partition.Partition) *clusterCache {
	c := &clusterCache{part: part}
	for i := range c.data {
		c.data[i] = zeroedCluster()
	}
	return c
}

// indexOf returns the cache slot holding clusterNo, or -1.
func (c *clusterCache) indexOf(clusterNo uint32) int {
	for i := 0; i < clusterCacheSize; i++ {
		if c.valid[i] && c.tag[i] == clusterNo {
			return i
		}
	}
	return -1
}

// nextSlot picks the slot the next cluster should occupy, writing back a
// dirty victim to the partition if every slot is valid and dirty.
func (c *clusterCache) nextSlot() (int, error) {
	for i := 0; i < clusterCacheSize; i++ {
		if !c.valid[i] {
			return i, nil
		}
	}
	for i := 0; i < clusterCacheSize; i++ {
		if !c.dirty[i] {
			return i, nil
		}
	}
	victim := rand.Intn(clusterCacheSize)
	if err := c.part.WriteCluster(c.tag[victim], c.data[victim]); err != nil {
		return 0, fmt.Errorf("writing back cluster %d: %w", c.tag[victim], err)
	}
	return victim, nil
}

// read fills buf with the contents of clusterNo, pulling from the
// partition on a miss.
func (c *clusterCache) read(clusterNo uint32, buf []byte) error {
	if i := c.indexOf(clusterNo); i != -1 {
		copy(buf, c.data[i])
		return nil
	}
	slot, err := c.nextSlot()
	if err != nil {
		return err
	}
	if err := c.part.ReadCluster(clusterNo, c.data[slot]); err != nil {
		return err
	}
	c.valid[slot] = true
	c.dirty[slot] = false
	c.tag[slot] = clusterNo
	copy(buf, c.data[slot])
	return nil
}

// write stores buf as clusterNo's contents, marking the slot dirty. The
// partition is not touched until writeBack or an eviction forces it out.
func (c *clusterCache) write(clusterNo uint32, buf []byte) error {
	i := c.indexOf(clusterNo)
	if i == -1 {
		slot, err := c.nextSlot()
		if err != nil {
			return err
		}
		i = slot
		c.valid[i] = true
		c.tag[i] = clusterNo
	}
	copy(c.data[i], buf)
	c.dirty[i] = true
	return nil
}

// invalidate drops clusterNo from the cache without writing it back,
// discarding whatever was cached for it.
func (c *clusterCache) invalidate(clusterNo uint32) {
	i := c.indexOf(clusterNo)
	if i == -1 {
		return
	}
	c.valid[i] = false
	c.dirty[i] = false
	c.tag[i] = 0
	for j := range c.data[i] {
		c.data[i][j] = 0
	}
}

// writeBack flushes every dirty valid slot to the partition.
func (c *clusterCache) writeBack() error {
	for i := 0; i < clusterCacheSize; i++ {
		if !c.valid[i] || !c.dirty[i] {
			continue
		}
		if err := c.part.WriteCluster(c.tag[i], c.data[i]); err != nil {
			return fmt.Errorf("writing back cluster %d: %w", c.tag[i], err)
		}
		c.dirty[i] = false
	}
	return nil
}
