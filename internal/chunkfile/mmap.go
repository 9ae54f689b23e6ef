package chunkfile

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mmapRegion maps the first size bytes of f for reading and writing: map
// once at open, msync as the durability barrier, munmap at close.
func mmapRegion(fd int, size int) ([]byte, error) {
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return data, nil
}

// munmapRegion unmaps a region returned by mmapRegion.
func munmapRegion(data []byte) error {
	if data == nil {
		return nil
	}
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

// forceRegion is the durability barrier: it blocks until data is flushed to
// the underlying storage (MS_SYNC).
func forceRegion(data []byte) error {
	if data == nil {
		return nil
	}
	if err := unix.Msync(data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync: %w", err)
	}
	return nil
}
