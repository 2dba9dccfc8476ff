package fd

import (
	"testing"

	"github.com/orizon-lang/orizon-kernel/internal/vfs"
)

func TestInstallAndGet(t *testing.T) {
	fsys := vfs.NewMemFS()
	v, err := fsys.Open("/f", vfs.OCREAT|vfs.ORDWR)
	if err != nil {
		t.Fatal(err)
	}
	ft := NewFileTable()
	h := NewFileHandle(v, vfs.ORDWR, 0)
	n, err := ft.Install(h)
	if err != nil {
		t.Fatal(err)
	}
	if n < 3 {
		t.Fatalf("Install returned fd %d, want >= 3", n)
	}
	if _, err := ft.Get(n); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := ft.Get(0); err == nil {
		t.Fatal("Get(0) unexpectedly succeeded before console seeding")
	}
}

func TestInstallExhaustion(t *testing.T) {
	fsys := vfs.NewMemFS()
	ft := NewFileTable()
	for i := 3; i < OpenMax; i++ {
		v, err := fsys.Open("/f", vfs.OCREAT|vfs.ORDWR)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := ft.Install(NewFileHandle(v, vfs.ORDWR, 0)); err != nil {
			t.Fatalf("Install at %d: %v", i, err)
		}
	}
	v, _ := fsys.Open("/f", vfs.OCREAT|vfs.ORDWR)
	if _, err := ft.Install(NewFileHandle(v, vfs.ORDWR, 0)); err == nil {
		t.Fatal("expected EMFILE once the table is full")
	}
}

func TestDup2CloseOnReplace(t *testing.T) {
	fsys := vfs.NewMemFS()
	vf, _ := fsys.Open("/f", vfs.OCREAT|vfs.ORDWR)
	vg, _ := fsys.Open("/g", vfs.OCREAT|vfs.ORDWR)

	ft := NewFileTable()
	fd1, _ := ft.Install(NewFileHandle(vf, vfs.ORDWR, 0))
	fd2, _ := ft.Install(NewFileHandle(vg, vfs.ORDWR, 0))

	holder := "thread-1"
	if err := ft.Dup2(holder, fd1, fd2); err != nil {
		t.Fatalf("Dup2: %v", err)
	}
	h2, err := ft.Get(fd2)
	if err != nil {
		t.Fatal(err)
	}
	if h2.Vnode.Name() != vf.Name() {
		t.Fatalf("fd2 now refers to %q, want %q", h2.Vnode.Name(), vf.Name())
	}
	if err := ft.Close(holder, fd1); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if h2.DCount != 1 {
		t.Fatalf("DCount after close = %d, want 1", h2.DCount)
	}
}

func TestDup2SameFDNoop(t *testing.T) {
	fsys := vfs.NewMemFS()
	v, _ := fsys.Open("/f", vfs.OCREAT|vfs.ORDWR)
	ft := NewFileTable()
	fd1, _ := ft.Install(NewFileHandle(v, vfs.ORDWR, 0))
	if err := ft.Dup2("t", fd1, fd1); err != nil {
		t.Fatalf("Dup2 same-fd: %v", err)
	}
}

func TestForkSharesHandles(t *testing.T) {
	fsys := vfs.NewMemFS()
	v, _ := fsys.Open("/f", vfs.OCREAT|vfs.ORDWR)
	parent := NewFileTable()
	fdnum, _ := parent.Install(NewFileHandle(v, vfs.ORDWR, 0))

	child := parent.Fork("t")
	ph, _ := parent.Get(fdnum)
	ch, err := child.Get(fdnum)
	if err != nil {
		t.Fatal(err)
	}
	if ph != ch {
		t.Fatal("expected parent and child slots to share the same handle")
	}
	if ph.DCount != 2 {
		t.Fatalf("DCount after fork = %d, want 2", ph.DCount)
	}
}
