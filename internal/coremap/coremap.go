// Package coremap implements the physical-frame bookkeeping and
// allocator of spec.md §4.2: one PhysicalFrame record per page-sized
// slab of RAM, a linear first-fit kernel allocator, a one-page user
// allocator that falls back to the clock evictor under memory
// pressure, and the InEviction hand-off that lets the evictor drop the
// coremap spinlock safely during disk I/O (spec.md §4.5, §9).
package coremap

import (
	"errors"

	"github.com/orizon-lang/orizon-kernel/internal/errno"
	"github.com/orizon-lang/orizon-kernel/internal/ksync"
)

// FrameState is the lifecycle state of one physical frame.
type FrameState int

const (
	Free FrameState = iota
	Fixed
	Used
	InEviction
)

// Owner is implemented by whatever owns a Used frame (an address
// space's page table, in practice). SwapOut is invoked by the evictor
// once a frame has been selected and marked InEviction, after the
// coremap spinlock has been dropped: the owner must locate the PTE for
// vpage, confirm it is Mapped at paddr, write its contents to swap, and
// transition the PTE to Swapped recording the returned slot.
type Owner interface {
	SwapOut(vpage uint32, paddr uintptr) error
	InvalidateTLB(vpage uint32)
}

// Frame is one coremap entry.
type Frame struct {
	State     FrameState
	ChunkSize int // valid at a Fixed kernel-allocation head; 0 elsewhere
	Owner     Owner
	VPage     uint32
	RefBit    bool
}

// Coremap is the physical-frame table, backed by a flat byte arena
// standing in for physical RAM so faults, copies, and swap I/O have
// real page contents to move around.
type Coremap struct {
	spin     ksync.Spinlock
	frames   []Frame
	mem      []byte
	base     uintptr // physical address of frame 0
	pageSize uintptr
	cursor   int // persistent clock-sweep cursor
}

// New builds a coremap covering numPages pages of RAM starting at
// base. kernelPages (covering the kernel image and the coremap itself)
// are marked Fixed; the remainder starts Free, per spec.md §4.2.
func New(base, pageSize uintptr, numPages, kernelPages int) *Coremap {
	frames := make([]Frame, numPages)
	for i := 0; i < kernelPages && i < numPages; i++ {
		frames[i].State = Fixed
	}
	return &Coremap{
		frames:   frames,
		mem:      make([]byte, uintptr(numPages)*pageSize),
		base:     base,
		pageSize: pageSize,
	}
}

// PageBytes returns a mutable view of the physical page at paddr. The
// caller is responsible for any locking its use requires.
func (cm *Coremap) PageBytes(paddr uintptr) []byte {
	idx := cm.indexOf(paddr)
	off := uintptr(idx) * cm.pageSize
	return cm.mem[off : off+cm.pageSize]
}

// zeroPageLocked clears a frame's backing bytes. Caller must hold the
// coremap lock for the duration spanning frame-state mutation.
func (cm *Coremap) zeroPageLocked(idx int) {
	off := uintptr(idx) * cm.pageSize
	clearSlice := cm.mem[off : off+cm.pageSize]
	for i := range clearSlice {
		clearSlice[i] = 0
	}
}

// NumFrames returns the number of frames tracked.
func (cm *Coremap) NumFrames() int { return len(cm.frames) }

// PageSize returns the configured page size.
func (cm *Coremap) PageSize() uintptr { return cm.pageSize }

func (cm *Coremap) frameAddr(i int) uintptr { return cm.base + uintptr(i)*cm.pageSize }

func (cm *Coremap) indexOf(paddr uintptr) int {
	return int((paddr - cm.base) / cm.pageSize)
}

// AllocKpages performs a linear first-fit scan for n contiguous Free
// frames, marks them Fixed, records n in the head entry (0 in the
// rest), and returns the physical base address. Kernel pages are never
// eligible for eviction.
func (cm *Coremap) AllocKpages(n int) (uintptr, error) {
	if n <= 0 {
		return 0, errno.EINVAL
	}
	cm.spin.Acquire()
	defer cm.spin.Release()

	run := 0
	for i := 0; i < len(cm.frames); i++ {
		if cm.frames[i].State == Free {
			run++
			if run == n {
				start := i - n + 1
				for j := start; j <= i; j++ {
					cm.frames[j] = Frame{State: Fixed}
					cm.zeroPageLocked(j)
				}
				cm.frames[start].ChunkSize = n
				return cm.frameAddr(start), nil
			}
		} else {
			run = 0
		}
	}
	return 0, errno.ENOMEM
}

// FreeKpages resets the chunk recorded at paddr's head entry back to
// Free, using the chunk_size recorded there.
func (cm *Coremap) FreeKpages(paddr uintptr) error {
	cm.spin.Acquire()
	defer cm.spin.Release()

	idx := cm.indexOf(paddr)
	if idx < 0 || idx >= len(cm.frames) {
		return errno.EINVAL
	}
	n := cm.frames[idx].ChunkSize
	if n <= 0 {
		return errno.EINVAL
	}
	for j := idx; j < idx+n && j < len(cm.frames); j++ {
		cm.frames[j] = Frame{State: Free}
	}
	return nil
}

// Evictor selects and swaps out one Used frame when the allocator finds
// none free. It is supplied by internal/vm so coremap need not depend
// on address-space internals. On success the returned frame is handed
// back still marked InEviction, not reset to Free — it stays out of
// findFreeLocked's scan until the caller below re-types it Used, so no
// concurrent allocation can steal it in the window between evict's
// return and the caller re-acquiring the lock.
type Evictor func(cm *Coremap) (freedIndex int, err error)

// AllocateUserPage implements allocate_user_page(1, as, vpage,
// copy_call): scan for one Free frame, mark it Used, record the owner
// and virtual page, and set ref_bit = !copyCall. If none are free, run
// evict to reclaim one; the frame evict returns is still InEviction,
// so re-typing it here to Used is the only transition it undergoes
// between the evictor choosing it and this allocation claiming it.
func (cm *Coremap) AllocateUserPage(owner Owner, vpage uint32, copyCall bool, evict Evictor) (uintptr, error) {
	cm.spin.Acquire()
	idx := cm.findFreeLocked()
	if idx < 0 {
		if evict == nil {
			cm.spin.Release()
			return 0, errno.ENOMEM
		}
		cm.spin.Release()
		freed, err := evict(cm)
		if err != nil {
			return 0, err
		}
		cm.spin.Acquire()
		idx = freed
	}
	cm.frames[idx] = Frame{State: Used, Owner: owner, VPage: vpage, RefBit: !copyCall}
	cm.zeroPageLocked(idx)
	cm.spin.Release()
	return cm.frameAddr(idx), nil
}

func (cm *Coremap) findFreeLocked() int {
	for i, f := range cm.frames {
		if f.State == Free {
			return i
		}
	}
	return -1
}

// ReleaseUserPage implements the "release user page" operation: if the
// frame is InEviction it returns a non-zero busy condition (ErrBusy) so
// the caller moves on rather than assuming the frame vanished; otherwise
// it resets the frame to Free.
var ErrBusy = errors.New("coremap: frame busy (in eviction)")

func (cm *Coremap) ReleaseUserPage(paddr uintptr) error {
	cm.spin.Acquire()
	defer cm.spin.Release()

	idx := cm.indexOf(paddr)
	if idx < 0 || idx >= len(cm.frames) {
		return errno.EINVAL
	}
	if cm.frames[idx].State == InEviction {
		return ErrBusy
	}
	cm.frames[idx] = Frame{State: Free}
	return nil
}

// WithLock runs fn with the coremap spinlock held. The evictor uses
// this to inspect/mutate frame state under the same lock the allocator
// uses, and to implement the drop-lock-for-I/O-then-reacquire protocol
// of spec.md §4.5/§9.
func (cm *Coremap) WithLock(fn func()) {
	cm.spin.Acquire()
	defer cm.spin.Release()
	fn()
}

// Unlock/Lock expose the raw spinlock for the evictor's drop-then-
// reacquire sequence around disk I/O.
func (cm *Coremap) Lock()   { cm.spin.Acquire() }
func (cm *Coremap) Unlock() { cm.spin.Release() }

// Frames exposes the frame table for the evictor's clock sweep.
// Callers must hold the coremap lock.
func (cm *Coremap) Frames() []Frame { return cm.frames }

// SetFrame overwrites one frame record. Callers must hold the coremap lock.
func (cm *Coremap) SetFrame(i int, f Frame) { cm.frames[i] = f }

// FrameAt returns frame i. Callers must hold the coremap lock.
func (cm *Coremap) FrameAt(i int) Frame { return cm.frames[i] }

// FrameAddr converts a frame index to its physical address.
func (cm *Coremap) FrameAddr(i int) uintptr { return cm.frameAddr(i) }

// SetRefBit updates the ref_bit of the frame at paddr. Used by the
// fault handler to give a frame a fresh second chance whenever it is
// touched again.
func (cm *Coremap) SetRefBit(paddr uintptr, v bool) error {
	cm.spin.Acquire()
	defer cm.spin.Release()
	idx := cm.indexOf(paddr)
	if idx < 0 || idx >= len(cm.frames) {
		return errno.EINVAL
	}
	cm.frames[idx].RefBit = v
	return nil
}

// Cursor returns the persistent clock-sweep cursor; the evictor
// advances it with SetCursor, which wraps around the frame table.
func (cm *Coremap) Cursor() int { return cm.cursor }

// SetCursor stores the clock-sweep cursor. Callers must hold the coremap lock.
func (cm *Coremap) SetCursor(c int) { cm.cursor = c % len(cm.frames) }
