package boot

import (
	"path/filepath"
	"testing"

	"github.com/orizon-lang/orizon-kernel/internal/elf"
	"github.com/orizon-lang/orizon-kernel/internal/proc"
	"github.com/orizon-lang/orizon-kernel/internal/vfs"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SwapPath = filepath.Join(t.TempDir(), "swap")
	cfg.SwapPages = 64
	cfg.NumPages = 256
	return cfg
}

func TestBootOrdersSingletons(t *testing.T) {
	k, err := Boot(testConfig(t))
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	defer k.Shutdown()

	if k.Coremap == nil || k.Swap == nil || k.Fsys == nil || k.Procs == nil || k.Dispatcher == nil {
		t.Fatal("Boot left a singleton nil")
	}
	if kp := k.Procs.Lookup(proc.KernelPID); kp == nil || kp.Name != "kernel" {
		t.Fatalf("kernel process not registered at pid %d", proc.KernelPID)
	}
	if !k.Swap.Present {
		t.Fatal("swap store reports absent after a successful Open")
	}
}

func TestSpawnInitRegistersAndExecs(t *testing.T) {
	k, err := Boot(testConfig(t))
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	defer k.Shutdown()

	img := elf.Image{
		Entry:    0x10000,
		Segments: []elf.Segment{{Vaddr: 0x10000, Filesz: 4, Memsz: k.Config.PageSize, Flags: elf.SegRead | elf.SegExec}},
	}
	raw := elf.Encode(img, [][]byte{{0, 0, 0, 0}})
	v, err := k.Fsys.Open("/sbin/init", vfs.OCREAT|vfs.ORDWR)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Write(raw, 0); err != nil {
		t.Fatal(err)
	}

	p, res, err := k.SpawnInit("init", "/sbin/init", []string{"/sbin/init"})
	if err != nil {
		t.Fatalf("SpawnInit: %v", err)
	}
	if p.PID != proc.PIDMin {
		t.Fatalf("init pid = %d, want %d", p.PID, proc.PIDMin)
	}
	if res.Entry != uintptr(img.Entry) {
		t.Fatalf("entry = %#x, want %#x", res.Entry, img.Entry)
	}
	if p.ParentPID != proc.KernelPID {
		t.Fatalf("init parent = %d, want %d", p.ParentPID, proc.KernelPID)
	}

	h, err := p.Files.Get(1)
	if err != nil || h.Vnode == nil {
		t.Fatalf("stdout fd not wired: %v", err)
	}
}
