package vm

import "github.com/orizon-lang/orizon-kernel/internal/errno"

// Sbrk implements spec.md §4.6 sbrk(delta): delta must be a
// PAGE_SIZE multiple. delta==0 returns the current heap_end unchanged.
// A positive delta must not overflow or collide with the stack window.
// A negative delta must not dip below heap_start; pages given back are
// fully released (swap slot unmarked or frame freed, TLB entry
// invalidated, PTE node dropped). Returns the heap_end *before* the
// call.
func (as *AddressSpace) Sbrk(delta int) (uintptr, error) {
	ps := as.pageSize()
	if delta%int(ps) != 0 {
		return 0, errno.EINVAL
	}

	as.mu.Lock()
	old := as.HeapEnd
	heapStart := as.HeapStart
	as.mu.Unlock()

	if delta == 0 {
		return old, nil
	}

	if delta > 0 {
		grow := uintptr(delta)
		newEnd := old + grow
		if newEnd < old {
			return 0, errno.ENOMEM
		}
		stackBottom := USERSTACK - VMStackPages*ps
		if newEnd > stackBottom {
			return 0, errno.ENOMEM
		}
		as.mu.Lock()
		as.HeapEnd = newEnd
		as.mu.Unlock()
		return old, nil
	}

	shrink := uintptr(-delta)
	if shrink > old-heapStart {
		return 0, errno.EINVAL
	}
	newEnd := old - shrink

	for addr := newEnd; addr < old; addr += ps {
		as.releasePage(uint32(addr / ps))
	}

	as.mu.Lock()
	as.HeapEnd = newEnd
	as.mu.Unlock()
	return old, nil
}

// releasePage drops the PTE for vpage, if any was ever faulted in,
// releasing whatever backing resource it held.
func (as *AddressSpace) releasePage(vpage uint32) {
	as.mu.Lock()
	var p *PTE
	for i, e := range as.ptes {
		if e.VPage == vpage {
			p = e
			as.ptes = append(as.ptes[:i], as.ptes[i+1:]...)
			break
		}
	}
	as.mu.Unlock()
	if p == nil {
		return
	}

	p.mu.Acquire(as)
	switch p.State {
	case Swapped:
		as.swap.UnmarkSwapBitmap(p.SwapSlot)
	case Mapped:
		_ = as.cm.ReleaseUserPage(p.Paddr) // busy (mid-eviction) is fine: teardown reclaims it later
		as.TLB.InvalidateEntry(vpage)
	}
	p.mu.Release(as)
	p.mu.Destroy()
}
