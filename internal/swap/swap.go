// Package swap implements the paged backing store of spec.md §4.3: a
// bitmap over a fixed-size raw block device, written and read at
// PAGE_SIZE granularity. The device itself is a real on-disk file
// opened with golang.org/x/sys/unix so I/O is genuine block I/O rather
// than an in-memory stand-in, matching the `lhd0raw:` device named in
// spec.md §6.
package swap

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/orizon-lang/orizon-kernel/internal/errno"
)

// Store is the swap backing store. A zero Store with Present=false
// reports no swap device configured, per spec.md §4.3: the evictor
// must never be reached when Present is false.
type Store struct {
	mu       sync.Mutex // swap-bitmap spinlock (leaf lock per spec.md §5)
	fd       int
	pageSize int64
	bits     []bool // bit i set <=> slot i holds a valid swapped page
	Present  bool
}

// Open backs a Store with the file at path, truncated/extended to
// capacityBytes (a multiple of pageSize), and returns the opened
// store. If path is empty, Open returns an absent store (no swap
// device configured) rather than an error, matching the boot-time
// "no swap device" configuration spec.md allows.
func Open(path string, capacityBytes int64, pageSize int64) (*Store, error) {
	if path == "" {
		return &Store{Present: false}, nil
	}
	if capacityBytes%pageSize != 0 {
		return nil, fmt.Errorf("swap: capacity %d is not a multiple of page size %d", capacityBytes, pageSize)
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_SYNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("swap: open %s: %w", path, err)
	}
	if err := unix.Ftruncate(fd, capacityBytes); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("swap: truncate %s to %d: %w", path, capacityBytes, err)
	}

	nslots := int(capacityBytes / pageSize)
	return &Store{
		fd:       fd,
		pageSize: pageSize,
		bits:     make([]bool, nslots),
		Present:  true,
	}, nil
}

// Close releases the backing file descriptor.
func (s *Store) Close() error {
	if !s.Present {
		return nil
	}
	return unix.Close(s.fd)
}

// Slots returns the number of page-sized slots in the store.
func (s *Store) Slots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bits)
}

// allocSlotLocked finds and marks the first clear bit. Caller must hold mu.
func (s *Store) allocSlotLocked() (int, error) {
	for i, set := range s.bits {
		if !set {
			s.bits[i] = true
			return i, nil
		}
	}
	return 0, errno.ENOMEM
}

// WriteSwapDisk implements write_swap_disk(paddr, *out_idx): allocate a
// free bit, then page-sized write to offset idx*PAGE_SIZE. page must be
// exactly one page long.
func (s *Store) WriteSwapDisk(page []byte) (int, error) {
	if !s.Present {
		return 0, errno.ENOMEM
	}
	if int64(len(page)) != s.pageSize {
		return 0, fmt.Errorf("swap: page is %d bytes, want %d", len(page), s.pageSize)
	}

	s.mu.Lock()
	idx, err := s.allocSlotLocked()
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if _, err := unix.Pwrite(s.fd, page, idx64(s, idx)); err != nil {
		return 0, fmt.Errorf("swap: write slot %d: %w", idx, err)
	}
	return idx, nil
}

// ReadSwapDisk implements read_swap_disk(paddr, idx, unmark): asserts
// the bit is set, reads the page, and optionally clears the bit
// atomically with the read.
func (s *Store) ReadSwapDisk(idx int, page []byte, unmark bool) error {
	if !s.Present {
		return errno.EINVAL
	}
	if int64(len(page)) != s.pageSize {
		return fmt.Errorf("swap: page buffer is %d bytes, want %d", len(page), s.pageSize)
	}

	s.mu.Lock()
	if idx < 0 || idx >= len(s.bits) || !s.bits[idx] {
		s.mu.Unlock()
		return fmt.Errorf("swap: slot %d not allocated", idx)
	}
	if unmark {
		s.bits[idx] = false
	}
	s.mu.Unlock()

	if _, err := unix.Pread(s.fd, page, idx64(s, idx)); err != nil {
		return fmt.Errorf("swap: read slot %d: %w", idx, err)
	}
	return nil
}

// UnmarkSwapBitmap implements unmark_swap_bitmap(idx): idempotent,
// clears the bit only if set.
func (s *Store) UnmarkSwapBitmap(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx >= 0 && idx < len(s.bits) {
		s.bits[idx] = false
	}
}

func idx64(s *Store, idx int) int64 { return int64(idx) * s.pageSize }
