package proc

import (
	"path/filepath"
	"testing"

	"github.com/orizon-lang/orizon-kernel/internal/coremap"
	"github.com/orizon-lang/orizon-kernel/internal/errno"
	"github.com/orizon-lang/orizon-kernel/internal/swap"
	"github.com/orizon-lang/orizon-kernel/internal/vfs"
	"github.com/orizon-lang/orizon-kernel/internal/vm"
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

func newTestProcess(t *testing.T, cm *coremap.Coremap, name string) *Process {
	t.Helper()
	p := New(name)
	p.AS = vm.New(cm, newTestSwap(t, 4))
	root, err := vfs.NewMemFS().Open("/", 0)
	if err != nil {
		t.Fatalf("opening root: %v", err)
	}
	p.Cwd = root
	return p
}

func TestForkWaitExit(t *testing.T) {
	cm := coremap.New(0, pageSize, 64, 0)
	kernel := newTestProcess(t, cm, "kernel")
	pt := NewProcTable(kernel)

	parent := newTestProcess(t, cm, "parent")
	if err := pt.Add(kernel, parent); err != nil {
		t.Fatalf("registering parent: %v", err)
	}

	child, err := pt.Fork(parent, nil)
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if child.PID == 0 {
		t.Fatal("forked child has PID 0")
	}
	if !parent.IsChild(child.PID) {
		t.Fatal("parent does not see the forked child")
	}

	pt.Exit(child, 42<<8)

	code, err := pt.Waitpid(parent, child.PID, 0)
	if err != nil {
		t.Fatalf("Waitpid: %v", err)
	}
	if code != 42<<8 {
		t.Fatalf("waitcode = %d, want %d", code, 42<<8)
	}
	if pt.status[child.PID] != Ready {
		t.Fatalf("child slot status = %v, want Ready after reap", pt.status[child.PID])
	}
}

func TestWaitpidNonChildIsECHILD(t *testing.T) {
	cm := coremap.New(0, pageSize, 64, 0)
	kernel := newTestProcess(t, cm, "kernel")
	pt := NewProcTable(kernel)

	a := newTestProcess(t, cm, "A")
	if err := pt.Add(kernel, a); err != nil {
		t.Fatal(err)
	}
	b, err := pt.Fork(a, nil)
	if err != nil {
		t.Fatal(err)
	}
	c, err := pt.Fork(b, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := pt.Waitpid(a, c.PID, 0); err != errno.ECHILD {
		t.Fatalf("Waitpid(A, C) = %v, want ECHILD", err)
	}
}

func TestExitReparentsRunningChildrenToOrphan(t *testing.T) {
	cm := coremap.New(0, pageSize, 64, 0)
	kernel := newTestProcess(t, cm, "kernel")
	pt := NewProcTable(kernel)

	parent := newTestProcess(t, cm, "parent")
	if err := pt.Add(kernel, parent); err != nil {
		t.Fatal(err)
	}
	child, err := pt.Fork(parent, nil)
	if err != nil {
		t.Fatal(err)
	}

	pt.Exit(parent, 0)
	if pt.status[child.PID] != Orphan {
		t.Fatalf("child status = %v, want Orphan", pt.status[child.PID])
	}
}
