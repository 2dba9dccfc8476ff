package vm

import (
	"github.com/orizon-lang/orizon-kernel/internal/coremap"
	"github.com/orizon-lang/orizon-kernel/internal/errno"
)

// NewClockEvictor returns a coremap.Evictor implementing spec.md §4.5's
// clock-sweep algorithm: sweep forward from the persistent cursor,
// skip non-Used frames, give a referenced Used frame a second chance
// and advance, otherwise select it. The chosen frame is marked
// InEviction and the coremap lock dropped before the owner is asked to
// invalidate its TLB entry and write the page to swap; this hand-off
// is what makes dropping the lock for I/O safe (spec.md §9). The frame
// is handed back to the caller still marked InEviction rather than
// reset to Free: that keeps it out of findFreeLocked's scan, so no
// concurrent allocation can claim it in the window between this
// function unlocking and the caller re-acquiring the lock to re-type
// it Used (spec.md §4.5: "return the frame to the caller, which will
// re-type it as Used for the new owner").
func NewClockEvictor() coremap.Evictor {
	return func(cm *coremap.Coremap) (int, error) {
		cm.Lock()
		n := cm.NumFrames()
		start := cm.Cursor()
		chosen := -1
		next := start

		for i := 0; i < 2*n; i++ {
			idx := (start + i) % n
			f := cm.FrameAt(idx)
			if f.State != coremap.Used {
				continue
			}
			if f.RefBit {
				f.RefBit = false
				cm.SetFrame(idx, f)
				continue
			}
			chosen = idx
			next = idx + 1
			break
		}
		if chosen < 0 {
			cm.Unlock()
			return 0, errno.ENOMEM
		}
		cm.SetCursor(next)

		f := cm.FrameAt(chosen)
		f.State = coremap.InEviction
		owner, vpage := f.Owner, f.VPage
		cm.SetFrame(chosen, f)
		paddr := cm.FrameAddr(chosen)
		cm.Unlock()

		owner.InvalidateTLB(vpage)
		if err := owner.SwapOut(vpage, paddr); err != nil {
			// spec.md §7: internal invariant violations during
			// eviction (missing/mismatched PTE) are fatal.
			panic("vm: eviction hand-off failed: " + err.Error())
		}

		return chosen, nil
	}
}
