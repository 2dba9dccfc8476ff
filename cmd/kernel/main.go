// Command kernel boots the simulated kernel and execs the program
// named on the command line as the first user process, mirroring
// cmd/orizon-kernel's role in the teacher repo: a thin entry point
// over internal/boot's initialization sequence.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/orizon-lang/orizon-kernel/internal/boot"
	"github.com/orizon-lang/orizon-kernel/internal/kernlog"
)

func main() {
	var (
		swapPath = flag.String("swap", "swap.img", "path to the swap store backing file")
		swapMiB  = flag.Int("swap-mib", 4, "swap store size in MiB")
		memMiB   = flag.Int("mem", 16, "simulated physical memory size in MiB")
		root     = flag.String("root", "", "filesystem root directory (empty selects an in-memory filesystem)")
		watchDir = flag.String("watch", "", "directory to watch for device hot-plug events (empty disables watching)")
		debug    = flag.Bool("debug", false, "enable debug-level logging")
	)
	flag.Parse()

	init := flag.Arg(0)
	if init == "" {
		fmt.Fprintln(os.Stderr, "usage: kernel [flags] <init-program> [args...]")
		os.Exit(2)
	}

	cfg := boot.DefaultConfig()
	cfg.PageSize = 4096
	cfg.NumPages = (*memMiB * 1024 * 1024) / int(cfg.PageSize)
	cfg.SwapPath = *swapPath
	cfg.SwapPages = (*swapMiB * 1024 * 1024) / int(cfg.PageSize)
	cfg.FilesystemRoot = *root
	cfg.DeviceWatchDir = *watchDir
	if *debug {
		cfg.LogLevel = kernlog.LevelDebug
	}

	k, err := boot.Boot(cfg)
	if err != nil {
		// Inability to allocate the core kernel structures at boot is
		// fatal, per spec.md §7.
		panic(fmt.Sprintf("kernel: boot failed: %v", err))
	}
	defer k.Shutdown()

	argv := append([]string{init}, flag.Args()[1:]...)
	p, res, err := k.SpawnInit("init", init, argv)
	if err != nil {
		k.Log.Errorf("spawn %s: %v", init, err)
		os.Exit(1)
	}
	k.Log.Infof("init running: pid=%d entry=%#x sp=%#x argc=%d", p.PID, res.Entry, res.SP, res.Argc)
}
