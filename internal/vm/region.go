// Package vm implements the address-space, fault-handling, and
// eviction components of spec.md §4.4/§4.5: regions, a linked list of
// page-table entries, demand allocation on fault, swap-in/out, and a
// clock-sweep evictor layered on internal/coremap and internal/swap.
package vm

// Perm is the r/w/x permission set requested for a region or PTE. Per
// spec.md §9 (Open Questions), permissions are recorded as requested
// and never enforced at fault time.
type Perm struct {
	Read, Write, Exec bool
}

// Region is a defined virtual-address range with permissions; it
// authorizes faults but carries no physical pages of its own.
type Region struct {
	Base  uintptr // page-aligned
	Size  uintptr // multiple of PAGE_SIZE
	Perm  Perm
	Pages uintptr // Size / PAGE_SIZE, kept for convenience
}

func pageAlignDown(addr, pageSize uintptr) uintptr {
	return addr &^ (pageSize - 1)
}

func pageAlignUp(sz, pageSize uintptr) uintptr {
	return (sz + pageSize - 1) &^ (pageSize - 1)
}

// contains reports whether va falls within the region.
func (r *Region) contains(va uintptr) bool {
	return va >= r.Base && va < r.Base+r.Size
}
