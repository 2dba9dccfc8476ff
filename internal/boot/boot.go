// Package boot wires the kernel's process-wide global state into
// existence in the fixed order spec.md §9 prescribes: synchronization
// primitives are implicit in every package's own constructors (each
// lock/CV/spinlock is built where it is first needed), so the ordering
// that matters here is coremap, then swap, then the proc table. It is
// the concretization of `kernel.DefaultKernelConfig`/
// `kernel.InitializeCompleteKernel` for this module.
package boot

import (
	"fmt"
	"os"

	"github.com/orizon-lang/orizon-kernel/internal/coremap"
	"github.com/orizon-lang/orizon-kernel/internal/fd"
	"github.com/orizon-lang/orizon-kernel/internal/kernlog"
	"github.com/orizon-lang/orizon-kernel/internal/proc"
	"github.com/orizon-lang/orizon-kernel/internal/swap"
	"github.com/orizon-lang/orizon-kernel/internal/syscall"
	"github.com/orizon-lang/orizon-kernel/internal/vfs"
	"github.com/orizon-lang/orizon-kernel/internal/vm"
)

// Config gathers the knobs bootstrap needs to size the coremap and
// swap store and pick a filesystem root, mirroring the role
// kernel.KernelConfig plays in the teacher.
type Config struct {
	// Memory configuration.
	PageSize    uintptr
	NumPages    int
	KernelPages int

	// Swap configuration. Per spec.md §4.3, a swap store that cannot be
	// opened is not itself fatal to boot: it is recorded as absent and
	// the evictor must never be reached.
	SwapPath  string
	SwapPages int

	// Filesystem configuration. An empty FilesystemRoot selects an
	// in-memory filesystem; a non-empty one mounts the real OS
	// filesystem rooted there.
	FilesystemRoot string

	// DeviceWatchDir, if set, is watched for device hot-plug events
	// (see internal/vfs.DeviceWatcher). Empty disables watching.
	DeviceWatchDir string

	LogLevel kernlog.Level
}

// DefaultConfig returns the configuration Boot uses when none is
// supplied, mirroring kernel.DefaultKernelConfig.
func DefaultConfig() *Config {
	return &Config{
		PageSize:    4096,
		NumPages:    4096, // 16 MiB of simulated physical RAM
		KernelPages: 64,

		SwapPath:  "swap.img",
		SwapPages: 1024,

		LogLevel: kernlog.LevelInfo,
	}
}

// Kernel holds the fully wired global state: the singletons spec.md §9
// calls out (coremap, swap store, proc table) plus the filesystem
// namespace, the syscall dispatcher, and an optional device watcher.
// It is valid for the life of the process and is never torn down.
type Kernel struct {
	Config *Config
	Log    *kernlog.Logger

	Coremap *coremap.Coremap
	Swap    *swap.Store
	Evict   coremap.Evictor
	Fsys    vfs.FileSystem
	Procs   *proc.ProcTable
	Watcher *vfs.DeviceWatcher

	Dispatcher *syscall.Dispatcher
}

// Boot constructs every global singleton in order: coremap, swap,
// filesystem, proc table (with PID 1 reserved for the kernel process),
// then the syscall dispatcher that ties them together. A swap store
// that cannot be opened is recorded as absent (see Config); any other
// failure is fatal per spec.md §7 and is returned so the caller
// (cmd/kernel) can panic with context, rather than panicking here
// directly.
func Boot(cfg *Config) (*Kernel, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := kernlog.New(cfg.LogLevel)

	log.Infof("coremap: %d pages of %d bytes (%d reserved for the kernel image)",
		cfg.NumPages, cfg.PageSize, cfg.KernelPages)
	cm := coremap.New(0, cfg.PageSize, cfg.NumPages, cfg.KernelPages)

	log.Infof("swap: opening %s (%d pages)", cfg.SwapPath, cfg.SwapPages)
	sw, err := swap.Open(cfg.SwapPath, int64(cfg.SwapPages)*int64(cfg.PageSize), int64(cfg.PageSize))
	if err != nil {
		log.Errorf("swap: %v; continuing without a swap device", err)
		sw, _ = swap.Open("", 0, int64(cfg.PageSize))
	}

	var fsys vfs.FileSystem
	if cfg.FilesystemRoot != "" {
		fsys = vfs.NewOSFS(cfg.FilesystemRoot)
	} else {
		fsys = vfs.NewMemFS()
	}

	kernelProc := proc.New("kernel")
	pt := proc.NewProcTable(kernelProc)
	log.Infof("proctable: pid %d reserved for the kernel, %d slots free",
		proc.KernelPID, proc.PIDMax-proc.PIDMin+1)

	var watcher *vfs.DeviceWatcher
	if cfg.DeviceWatchDir != "" {
		w, err := vfs.NewDeviceWatcher(cfg.DeviceWatchDir)
		if err != nil {
			return nil, fmt.Errorf("boot: device watcher: %w", err)
		}
		watcher = w
		log.Infof("watching %s for device hot-plug events", cfg.DeviceWatchDir)
	}

	// With no swap device the evictor stays unset, so user-page
	// allocation fails with ENOMEM instead of reaching it.
	var evict coremap.Evictor
	if sw.Present {
		evict = vm.NewClockEvictor()
	}

	return &Kernel{
		Config:  cfg,
		Log:     log,
		Coremap: cm,
		Swap:    sw,
		Evict:   evict,
		Fsys:    fsys,
		Procs:   pt,
		Watcher: watcher,
		Dispatcher: &syscall.Dispatcher{
			Procs: pt,
			Cm:    cm,
			Sw:    sw,
			Fsys:  fsys,
			Evict: evict,
			Log:   log,
		},
	}, nil
}

// SpawnInit registers the first user process under the kernel process,
// per spec.md §4.6 Add, and execs path into it: a fresh address space,
// the process's cwd set to the filesystem root, and fds 0/1/2 wired to
// the host's stdin/stdout/stderr through ConsoleVnode.
func (k *Kernel) SpawnInit(name, path string, argv []string) (*proc.Process, proc.ExecResult, error) {
	p := proc.New(name)
	p.AS = vm.New(k.Coremap, k.Swap)

	root, err := k.Fsys.Open("/", 0)
	if err != nil {
		return nil, proc.ExecResult{}, fmt.Errorf("boot: spawn %s: open root: %w", name, err)
	}
	p.Cwd = root
	p.Files = fd.NewConsoleFileTable(
		vfs.NewConsoleReader("con:", os.Stdin),
		vfs.NewConsoleWriter("con:", os.Stdout),
		vfs.NewConsoleWriter("con:", os.Stderr),
	)

	kernelProc := k.Procs.Lookup(proc.KernelPID)
	if err := k.Procs.Add(kernelProc, p); err != nil {
		return nil, proc.ExecResult{}, fmt.Errorf("boot: spawn %s: %w", name, err)
	}

	res, err := proc.Exec(p, path, argv, k.Fsys, k.Coremap, k.Swap, k.Evict)
	if err != nil {
		return p, proc.ExecResult{}, fmt.Errorf("boot: exec %s: %w", path, err)
	}
	k.Log.Infof("spawned %s as pid %d, entry %#x", name, p.PID, res.Entry)
	return p, res, nil
}

// Shutdown releases resources Boot acquired that outlive a single
// process's lifetime (currently just the device watcher, if any).
func (k *Kernel) Shutdown() {
	if k.Watcher != nil {
		k.Watcher.Close()
	}
	k.Swap.Close()
}
