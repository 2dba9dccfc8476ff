package vm

import "github.com/orizon-lang/orizon-kernel/internal/ksync"

// PTEState is the lifecycle state of one page-table entry. Valid
// transitions form the chain Unmapped -> Mapped <-> Swapped.
type PTEState int

const (
	Unmapped PTEState = iota
	Mapped
	Swapped
)

// PTE is one page-table entry. Exactly one of Paddr/SwapSlot is
// meaningful per State: Paddr when Mapped, SwapSlot when Swapped.
type PTE struct {
	VPage    uint32
	Perm     Perm
	State    PTEState
	Paddr    uintptr
	SwapSlot int
	mu       *ksync.Lock // guards State/Paddr/SwapSlot transitions
}

func newPTE(vpage uint32, perm Perm) *PTE {
	return &PTE{VPage: vpage, Perm: perm, State: Unmapped, mu: ksync.NewLock("pte")}
}
