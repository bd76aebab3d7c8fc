package flatfs

import "testing"

func TestUint32LERoundTrips(t *testing.T) {
	buf := make([]byte, 4)
	for _, v := range []uint32{0, 1, 255, 256, 0xdeadbeef, 0xffffffff} {
		putUint32LE(buf, v)
		if got := uint32LE(buf); got != v {
			t.Errorf("uint32LE(putUint32LE(%d)) = %d", v, got)
		}
	}
}

func TestIndexEntryAtRoundTrips(t *testing.T) {
	cluster := zeroedCluster()
	setIndexEntryAt(cluster, 0, 7)
	setIndexEntryAt(cluster, 1, 0xabcdef01)
	setIndexEntryAt(cluster, entriesPerIndexCluster-1, 42)

	if got := indexEntryAt(cluster, 0); got != 7 {
		t.Errorf("entry 0 = %d, want 7", got)
	}
	if got := indexEntryAt(cluster, 1); got != 0xabcdef01 {
		t.Errorf("entry 1 = %#x, want %#x", got, 0xabcdef01)
	}
	if got := indexEntryAt(cluster, entriesPerIndexCluster-1); got != 42 {
		t.Errorf("last entry = %d, want 42", got)
	}
}

func TestOffsetToIndices(t *testing.T) {
	l2Span := int64(entriesPerIndexCluster) * int64(clusterSize)

	tests := []struct {
		off                               int64
		wantL1, wantL2, wantByteInCluster int
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 1},
		{int64(clusterSize), 0, 1, 0},
		{int64(clusterSize) + 5, 0, 1, 5},
		{l2Span, 1, 0, 0},
		{l2Span + int64(clusterSize) + 3, 1, 1, 3},
	}
	for _, tt := range tests {
		l1, l2, b := offsetToIndices(tt.off)
		if l1 != tt.wantL1 || l2 != tt.wantL2 || b != tt.wantByteInCluster {
			t.Errorf("offsetToIndices(%d) = (%d,%d,%d), want (%d,%d,%d)",
				tt.off, l1, l2, b, tt.wantL1, tt.wantL2, tt.wantByteInCluster)
		}
	}
}

func TestMaxFileSizeMatchesTwoLevelIndexCapacity(t *testing.T) {
	want := int64(entriesPerIndexCluster) * int64(entriesPerIndexCluster) * int64(clusterSize)
	if maxFileSize != want {
		t.Errorf("maxFileSize = %d, want %d", maxFileSize, want)
	}
}
