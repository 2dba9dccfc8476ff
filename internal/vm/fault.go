package vm

import (
	"github.com/orizon-lang/orizon-kernel/internal/coremap"
	"github.com/orizon-lang/orizon-kernel/internal/errno"
)

// FaultType classifies the trap that triggered vm_fault. Per spec.md
// §9 (Open Questions) it is not used to enforce permissions in this
// design; it exists only so callers can report which kind of access
// faulted.
type FaultType int

const (
	FaultRead FaultType = iota
	FaultWrite
	FaultReadOnly
)

// Fault implements vm_fault(type, va): validate the address, resolve
// the owning PTE (allocating or swapping in as needed), and insert the
// resulting mapping into the TLB.
func (as *AddressSpace) Fault(_ FaultType, va uintptr, evict coremap.Evictor) error {
	ps := as.pageSize()
	va = pageAlignDown(va, ps)
	if !as.validate(va) {
		return errno.EFAULT
	}
	vpage := uint32(va / ps)

	as.mu.Lock()
	p := as.findPTELocked(vpage)
	if p == nil {
		p = newPTE(vpage, Perm{Read: true, Write: true, Exec: true})
		as.ptes = append(as.ptes, p)
	}
	as.mu.Unlock()

	p.mu.Acquire(as)
	state := p.State
	switch state {
	case Mapped:
		paddr := p.Paddr
		p.mu.Release(as)
		_ = as.cm.SetRefBit(paddr, true)
		as.TLB.Insert(vpage, paddr)
		return nil

	case Swapped:
		slot := p.SwapSlot
		p.mu.Release(as)

		paddr, err := as.cm.AllocateUserPage(as, vpage, false, evict)
		if err != nil {
			return err
		}
		if err := as.swap.ReadSwapDisk(slot, as.cm.PageBytes(paddr), true); err != nil {
			return err
		}
		p.mu.Acquire(as)
		p.State = Mapped
		p.Paddr = paddr
		p.SwapSlot = 0
		p.mu.Release(as)
		as.TLB.Insert(vpage, paddr)
		return nil

	default: // Unmapped: first touch, demand-allocate a zero-filled page
		p.mu.Release(as)
		paddr, err := as.cm.AllocateUserPage(as, vpage, false, evict)
		if err != nil {
			return err
		}
		p.mu.Acquire(as)
		p.State = Mapped
		p.Paddr = paddr
		p.mu.Release(as)
		as.TLB.Insert(vpage, paddr)
		return nil
	}
}

// validate reports whether va lies in a region, the heap window, or
// the stack window.
func (as *AddressSpace) validate(va uintptr) bool {
	as.mu.Lock()
	defer as.mu.Unlock()

	for _, r := range as.Regions {
		if r.contains(va) {
			return true
		}
	}
	if va >= as.HeapStart && va < as.HeapEnd {
		return true
	}
	stackBottom := USERSTACK - VMStackPages*as.pageSize()
	return va >= stackBottom && va < USERSTACK
}
