package vm

import (
	"fmt"
	"sync"

	"github.com/orizon-lang/orizon-kernel/internal/coremap"
	"github.com/orizon-lang/orizon-kernel/internal/errno"
	"github.com/orizon-lang/orizon-kernel/internal/swap"
)

// USERSTACK is the top of the user stack (conventional MIPS-style
// layout); VMStackPages is how many pages below it the fault handler
// treats as valid stack, per spec.md §4.4 Define stack.
const (
	USERSTACK    uintptr = 0x80000000
	VMStackPages uintptr = 18
)

// AddressSpace owns an address space's regions, page table, and heap
// window, per spec.md §3/§4.4.
type AddressSpace struct {
	cm   *coremap.Coremap
	swap *swap.Store
	TLB  *TLB

	mu      sync.Mutex // guards Regions/ptes slice structure
	Regions []*Region
	ptes    []*PTE

	HeapStart, HeapEnd uintptr
}

// New creates an empty address space: no regions, no PTEs, heap bounds
// zero, per spec.md §4.4 Create.
func New(cm *coremap.Coremap, sw *swap.Store) *AddressSpace {
	return &AddressSpace{cm: cm, swap: sw, TLB: &TLB{}}
}

func (as *AddressSpace) pageSize() uintptr { return as.cm.PageSize() }

// DefineRegion appends a page-aligned region. spec.md §4.4 notes
// regions may overlap in the source and implementations SHOULD reject
// overlap without it being mandated; this implementation rejects
// overlap, which is the stricter and safer reading.
func (as *AddressSpace) DefineRegion(vaddr, size uintptr, r, w, x bool) (*Region, error) {
	ps := as.pageSize()
	base := pageAlignDown(vaddr, ps)
	sz := pageAlignUp(size+(vaddr-base), ps)

	as.mu.Lock()
	defer as.mu.Unlock()

	region := &Region{Base: base, Size: sz, Perm: Perm{Read: r, Write: w, Exec: x}, Pages: sz / ps}
	for _, existing := range as.Regions {
		if region.Base < existing.Base+existing.Size && region.Base+region.Size > existing.Base {
			return nil, fmt.Errorf("vm: region [%#x,%#x) overlaps existing [%#x,%#x)", region.Base, region.Base+region.Size, existing.Base, existing.Base+existing.Size)
		}
	}
	as.Regions = append(as.Regions, region)
	return region, nil
}

// PrepareLoad computes heap_start as the page-aligned end of the
// highest region and sets heap_end = heap_start.
func (as *AddressSpace) PrepareLoad() {
	as.mu.Lock()
	defer as.mu.Unlock()

	var top uintptr
	for _, r := range as.Regions {
		if end := r.Base + r.Size; end > top {
			top = end
		}
	}
	as.HeapStart = pageAlignUp(top, as.pageSize())
	as.HeapEnd = as.HeapStart
}

// DefineStack returns the initial user stack pointer. The stack is not
// materialized as a region; the fault handler recognizes any address
// in [USERSTACK-VMStackPages*PAGE_SIZE, USERSTACK) as valid.
func (as *AddressSpace) DefineStack() uintptr {
	return USERSTACK
}

func (as *AddressSpace) findPTELocked(vpage uint32) *PTE {
	for _, p := range as.ptes {
		if p.VPage == vpage {
			return p
		}
	}
	return nil
}

// SwapOut implements coremap.Owner: invoked by the evictor once a frame
// has been marked InEviction and the coremap lock dropped. It locates
// the PTE, verifies it is Mapped at paddr, writes it to swap, and
// transitions it to Swapped.
func (as *AddressSpace) SwapOut(vpage uint32, paddr uintptr) error {
	as.mu.Lock()
	p := as.findPTELocked(vpage)
	as.mu.Unlock()
	if p == nil {
		panic("vm: missing PTE for frame selected by the evictor")
	}

	p.mu.Acquire(as)
	defer p.mu.Release(as)
	if p.State != Mapped || p.Paddr != paddr {
		return fmt.Errorf("vm: PTE for vpage %#x is not Mapped at %#x", vpage, paddr)
	}
	slot, err := as.swap.WriteSwapDisk(as.cm.PageBytes(paddr))
	if err != nil {
		// spec.md §7: swap disk I/O failure during eviction is fatal.
		panic(fmt.Sprintf("vm: swap write failed during eviction: %v", err))
	}
	p.State = Swapped
	p.SwapSlot = slot
	p.Paddr = 0
	return nil
}

// InvalidateTLB implements coremap.Owner, dropping any cached mapping
// for vpage before the evictor writes the frame out.
func (as *AddressSpace) InvalidateTLB(vpage uint32) {
	as.TLB.InvalidateEntry(vpage)
}

// Copy duplicates the address space for fork: every PTE gets a fresh
// physical frame with the same contents (or, for a Swapped PTE, reads
// directly from swap without disturbing the original slot). Regions
// and heap bounds are copied verbatim. On any failure the partial new
// space is destroyed and ENOMEM is returned.
func (as *AddressSpace) Copy(evict coremap.Evictor) (*AddressSpace, error) {
	// Snapshot under as.mu, then release it before touching the
	// coremap: AllocateUserPage below may trigger an eviction whose
	// chosen frame is owned by as itself, and SwapOut re-acquires
	// as.mu — holding it across the call would self-deadlock.
	as.mu.Lock()
	ptesSnapshot := append([]*PTE(nil), as.ptes...)
	regionsSnapshot := append([]*Region(nil), as.Regions...)
	heapStart, heapEnd := as.HeapStart, as.HeapEnd
	as.mu.Unlock()

	newAS := New(as.cm, as.swap)
	newAS.HeapStart, newAS.HeapEnd = heapStart, heapEnd
	for _, r := range regionsSnapshot {
		cp := *r
		newAS.Regions = append(newAS.Regions, &cp)
	}

	for _, p := range ptesSnapshot {
		p.mu.Acquire(as)
		state, paddr, slot, perm, vpage := p.State, p.Paddr, p.SwapSlot, p.Perm, p.VPage
		p.mu.Release(as)

		if state == Unmapped {
			continue
		}

		newPaddr, err := as.cm.AllocateUserPage(newAS, vpage, true, evict)
		if err != nil {
			newAS.Destroy()
			return nil, errno.ENOMEM
		}

		switch state {
		case Mapped:
			copy(as.cm.PageBytes(newPaddr), as.cm.PageBytes(paddr))
		case Swapped:
			if err := as.swap.ReadSwapDisk(slot, as.cm.PageBytes(newPaddr), false); err != nil {
				newAS.Destroy()
				return nil, errno.ENOMEM
			}
		}

		np := newPTE(vpage, perm)
		np.State = Mapped
		np.Paddr = newPaddr
		newAS.ptes = append(newAS.ptes, np)
	}

	return newAS, nil
}

// Destroy walks the PTE list releasing every mapped/swapped page and
// frees the region list. Busy frames (mid-eviction) are skipped; their
// own teardown path (the evictor finishing, or a later release) will
// reclaim them, matching spec.md §4.4/§7.
func (as *AddressSpace) Destroy() {
	as.mu.Lock()
	defer as.mu.Unlock()

	for _, p := range as.ptes {
		p.mu.Acquire(as)
		switch p.State {
		case Swapped:
			as.swap.UnmarkSwapBitmap(p.SwapSlot)
		case Mapped:
			if err := as.cm.ReleaseUserPage(p.Paddr); err != nil && err != coremap.ErrBusy {
				p.mu.Release(as)
				panic(fmt.Sprintf("vm: releasing page for vpage %#x: %v", p.VPage, err))
			}
		}
		p.mu.Release(as)
		p.mu.Destroy()
	}
	as.ptes = nil
	as.Regions = nil
}

// Activate flushes every TLB entry on switching into this address
// space (flush-on-switch), per spec.md §4.4.
func (as *AddressSpace) Activate() {
	as.TLB.InvalidateAll()
}
