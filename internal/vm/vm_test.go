package vm

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/orizon-lang/orizon-kernel/internal/coremap"
	"github.com/orizon-lang/orizon-kernel/internal/errno"
	"github.com/orizon-lang/orizon-kernel/internal/swap"
)

const pageSize = 4096

func newTestSwap(t *testing.T, pages int) *swap.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swap")
	s, err := swap.Open(path, int64(pages)*pageSize, pageSize)
	if err != nil {
		t.Fatalf("swap.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDefineRegionRejectsOverlap(t *testing.T) {
	cm := coremap.New(0, pageSize, 16, 0)
	as := New(cm, newTestSwap(t, 4))

	if _, err := as.DefineRegion(0x1000, pageSize*2, true, true, false); err != nil {
		t.Fatalf("first region: %v", err)
	}
	if _, err := as.DefineRegion(0x1800, pageSize, true, false, false); err == nil {
		t.Fatal("expected overlap rejection")
	}
}

func TestFaultDemandAllocatesZeroPage(t *testing.T) {
	cm := coremap.New(0, pageSize, 16, 0)
	as := New(cm, newTestSwap(t, 4))
	r, err := as.DefineRegion(0x1000, pageSize, true, true, false)
	if err != nil {
		t.Fatalf("DefineRegion: %v", err)
	}

	if err := as.Fault(FaultRead, r.Base, nil); err != nil {
		t.Fatalf("Fault: %v", err)
	}
	paddr, ok := as.TLB.Probe(uint32(r.Base / pageSize))
	if !ok {
		t.Fatal("TLB has no mapping after fault")
	}
	page := cm.PageBytes(paddr)
	for i, b := range page {
		if b != 0 {
			t.Fatalf("page byte %d = %d, want 0 (zero-filled on first touch)", i, b)
		}
	}
}

func TestFaultOutsideAnyWindowIsEFAULT(t *testing.T) {
	cm := coremap.New(0, pageSize, 16, 0)
	as := New(cm, newTestSwap(t, 4))
	if _, err := as.DefineRegion(0x1000, pageSize, true, true, false); err != nil {
		t.Fatalf("DefineRegion: %v", err)
	}
	as.PrepareLoad()

	err := as.Fault(FaultRead, 0x99999000, nil)
	if err != errno.EFAULT {
		t.Fatalf("Fault outside window = %v, want EFAULT", err)
	}
}

func TestFaultInHeapAndStackWindows(t *testing.T) {
	cm := coremap.New(0, pageSize, 16, 0)
	as := New(cm, newTestSwap(t, 4))
	if _, err := as.DefineRegion(0x1000, pageSize, true, true, false); err != nil {
		t.Fatalf("DefineRegion: %v", err)
	}
	as.PrepareLoad()
	if _, err := as.Sbrk(int(pageSize)); err != nil {
		t.Fatalf("Sbrk: %v", err)
	}

	if err := as.Fault(FaultWrite, as.HeapStart, nil); err != nil {
		t.Fatalf("fault in heap: %v", err)
	}
	sp := as.DefineStack()
	if err := as.Fault(FaultWrite, sp-pageSize, nil); err != nil {
		t.Fatalf("fault in stack window: %v", err)
	}
}

func TestEvictionSwapsOutAndFaultSwapsBackIn(t *testing.T) {
	cm := coremap.New(0, pageSize, 2, 0) // only 2 frames: tight
	as := New(cm, newTestSwap(t, 4))
	evict := NewClockEvictor()

	r, err := as.DefineRegion(0x10000, pageSize*3, true, true, false)
	if err != nil {
		t.Fatalf("DefineRegion: %v", err)
	}

	var faulted []uintptr
	for i := uintptr(0); i < 3; i++ {
		va := r.Base + i*pageSize
		if err := as.Fault(FaultWrite, va, evict); err != nil {
			t.Fatalf("fault %d: %v", i, err)
		}
		faulted = append(faulted, va)
		paddr, _ := as.TLB.Probe(uint32(va / pageSize))
		copy(cm.PageBytes(paddr), bytes.Repeat([]byte{byte(i + 1)}, pageSize))
	}

	// With only 2 frames for 3 distinct pages, at least one must have
	// been evicted to swap; re-faulting every page must still recover
	// byte-identical contents.
	for i, va := range faulted {
		as.TLB.InvalidateEntry(uint32(va / pageSize))
		if err := as.Fault(FaultRead, va, evict); err != nil {
			t.Fatalf("re-fault %d: %v", i, err)
		}
		paddr, ok := as.TLB.Probe(uint32(va / pageSize))
		if !ok {
			t.Fatalf("no TLB mapping after re-fault %d", i)
		}
		want := bytes.Repeat([]byte{byte(i + 1)}, pageSize)
		if !bytes.Equal(cm.PageBytes(paddr), want) {
			t.Fatalf("page %d contents not recovered byte-identical after swap round trip", i)
		}
	}
}

func TestSbrkGrowShrinkRestoresHeapEnd(t *testing.T) {
	cm := coremap.New(0, pageSize, 16, 0)
	as := New(cm, newTestSwap(t, 4))
	if _, err := as.DefineRegion(0x1000, pageSize, true, true, false); err != nil {
		t.Fatalf("DefineRegion: %v", err)
	}
	as.PrepareLoad()
	initial := as.HeapEnd

	old, err := as.Sbrk(int(pageSize))
	if err != nil {
		t.Fatalf("Sbrk(+): %v", err)
	}
	if old != initial {
		t.Fatalf("Sbrk(+) returned %#x, want old heap_end %#x", old, initial)
	}

	old2, err := as.Sbrk(-int(pageSize))
	if err != nil {
		t.Fatalf("Sbrk(-): %v", err)
	}
	if old2 != initial+pageSize {
		t.Fatalf("Sbrk(-) returned %#x, want %#x", old2, initial+pageSize)
	}
	if as.HeapEnd != initial {
		t.Fatalf("heap_end = %#x after grow+shrink, want %#x", as.HeapEnd, initial)
	}
}

func TestSbrkBounds(t *testing.T) {
	cm := coremap.New(0, pageSize, 16, 0)
	as := New(cm, newTestSwap(t, 4))
	if _, err := as.DefineRegion(0x1000, pageSize, true, true, false); err != nil {
		t.Fatalf("DefineRegion: %v", err)
	}
	as.PrepareLoad()

	if _, err := as.Sbrk(int(pageSize)); err != nil {
		t.Fatalf("Sbrk(+1 page): %v", err)
	}
	if _, err := as.Sbrk(-2 * int(pageSize)); err != errno.EINVAL {
		t.Fatalf("Sbrk(-2 pages) = %v, want EINVAL", err)
	}
	if _, err := as.Sbrk(1); err != errno.EINVAL {
		t.Fatalf("Sbrk(1) = %v, want EINVAL (not page-multiple)", err)
	}
	if _, err := as.Sbrk(0); err != nil {
		t.Fatalf("Sbrk(0): %v", err)
	}
}

func TestCopyPreservesMappedPage(t *testing.T) {
	cm := coremap.New(0, pageSize, 16, 0)
	as := New(cm, newTestSwap(t, 4))
	evict := NewClockEvictor()
	r, err := as.DefineRegion(0x2000, pageSize, true, true, false)
	if err != nil {
		t.Fatalf("DefineRegion: %v", err)
	}
	if err := as.Fault(FaultWrite, r.Base, evict); err != nil {
		t.Fatalf("fault: %v", err)
	}
	paddr, _ := as.TLB.Probe(uint32(r.Base / pageSize))
	copy(cm.PageBytes(paddr), []byte("hello-fork"))

	child, err := as.Copy(evict)
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if err := child.Fault(FaultRead, r.Base, evict); err != nil {
		t.Fatalf("child fault: %v", err)
	}
	childPaddr, _ := child.TLB.Probe(uint32(r.Base / pageSize))
	if childPaddr == paddr {
		t.Fatal("child shares the parent's physical frame; fork must copy")
	}
	if !bytes.HasPrefix(cm.PageBytes(childPaddr), []byte("hello-fork")) {
		t.Fatal("child page contents do not match parent's at fork time")
	}
}
