package coremap

import (
	"errors"
	"testing"
)

const pageSize = 4096

type fakeOwner struct{}

func (fakeOwner) SwapOut(vpage uint32, paddr uintptr) error { return nil }
func (fakeOwner) InvalidateTLB(vpage uint32)                {}

func TestAllocKpagesContiguousAndFixed(t *testing.T) {
	cm := New(0, pageSize, 8, 2)

	addr, err := cm.AllocKpages(3)
	if err != nil {
		t.Fatalf("AllocKpages: %v", err)
	}
	if addr != 2*pageSize {
		t.Fatalf("addr = %#x, want %#x", addr, 2*pageSize)
	}
	for i := 2; i < 5; i++ {
		if cm.FrameAt(i).State != Fixed {
			t.Fatalf("frame %d state = %v, want Fixed", i, cm.FrameAt(i).State)
		}
	}
	if cm.FrameAt(2).ChunkSize != 3 {
		t.Fatalf("head chunk size = %d, want 3", cm.FrameAt(2).ChunkSize)
	}
	if cm.FrameAt(3).ChunkSize != 0 {
		t.Fatalf("tail chunk size = %d, want 0", cm.FrameAt(3).ChunkSize)
	}
}

func TestAllocKpagesExhaustion(t *testing.T) {
	cm := New(0, pageSize, 4, 0)
	if _, err := cm.AllocKpages(5); err == nil {
		t.Fatal("expected ENOMEM allocating more frames than exist")
	}
}

func TestFreeKpagesRoundTrip(t *testing.T) {
	cm := New(0, pageSize, 8, 0)
	addr, err := cm.AllocKpages(4)
	if err != nil {
		t.Fatalf("AllocKpages: %v", err)
	}
	if err := cm.FreeKpages(addr); err != nil {
		t.Fatalf("FreeKpages: %v", err)
	}
	for i := 0; i < 4; i++ {
		if cm.FrameAt(i).State != Free {
			t.Fatalf("frame %d not Free after FreeKpages", i)
		}
	}
	// Now the whole range should be allocatable again.
	if _, err := cm.AllocKpages(8); err != nil {
		t.Fatalf("re-allocating freed frames: %v", err)
	}
}

func TestAllocateUserPageSetsRefBit(t *testing.T) {
	cm := New(0, pageSize, 4, 0)
	owner := fakeOwner{}

	paddr, err := cm.AllocateUserPage(owner, 7, false, nil)
	if err != nil {
		t.Fatalf("AllocateUserPage: %v", err)
	}
	idx := cm.indexOf(paddr)
	f := cm.FrameAt(idx)
	if f.State != Used || f.VPage != 7 || !f.RefBit {
		t.Fatalf("frame after alloc = %+v, want Used/vpage=7/refbit=true", f)
	}

	paddr2, err := cm.AllocateUserPage(owner, 8, true, nil)
	if err != nil {
		t.Fatalf("AllocateUserPage copyCall: %v", err)
	}
	if cm.FrameAt(cm.indexOf(paddr2)).RefBit {
		t.Fatal("copy-call allocation should start with refbit clear")
	}
}

func TestAllocateUserPageInvokesEvictorWhenFull(t *testing.T) {
	cm := New(0, pageSize, 1, 0)
	owner := fakeOwner{}
	if _, err := cm.AllocateUserPage(owner, 0, false, nil); err != nil {
		t.Fatalf("first alloc: %v", err)
	}

	called := false
	evict := func(cm *Coremap) (int, error) {
		called = true
		cm.Lock()
		cm.SetFrame(0, Frame{State: Free})
		cm.Unlock()
		return 0, nil
	}

	if _, err := cm.AllocateUserPage(owner, 1, false, evict); err != nil {
		t.Fatalf("second alloc: %v", err)
	}
	if !called {
		t.Fatal("evictor was not invoked when coremap was full")
	}
}

func TestReleaseUserPageBusyWhenInEviction(t *testing.T) {
	cm := New(0, pageSize, 2, 0)
	owner := fakeOwner{}
	paddr, _ := cm.AllocateUserPage(owner, 0, false, nil)

	cm.Lock()
	idx := cm.indexOf(paddr)
	f := cm.FrameAt(idx)
	f.State = InEviction
	cm.SetFrame(idx, f)
	cm.Unlock()

	if err := cm.ReleaseUserPage(paddr); !errors.Is(err, ErrBusy) {
		t.Fatalf("ReleaseUserPage = %v, want ErrBusy", err)
	}

	cm.Lock()
	f = cm.FrameAt(idx)
	f.State = Used
	cm.SetFrame(idx, f)
	cm.Unlock()

	if err := cm.ReleaseUserPage(paddr); err != nil {
		t.Fatalf("ReleaseUserPage: %v", err)
	}
	if cm.FrameAt(idx).State != Free {
		t.Fatal("frame not Free after release")
	}
}
