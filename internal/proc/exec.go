package proc

import (
	"fmt"

	"github.com/orizon-lang/orizon-kernel/internal/coremap"
	"github.com/orizon-lang/orizon-kernel/internal/elf"
	"github.com/orizon-lang/orizon-kernel/internal/errno"
	"github.com/orizon-lang/orizon-kernel/internal/swap"
	"github.com/orizon-lang/orizon-kernel/internal/vfs"
	"github.com/orizon-lang/orizon-kernel/internal/vm"
)

// PathMax and ArgMax bound exec's path and cumulative-argument-bytes
// validation, per spec.md §4.6 Exec.
const (
	PathMax = 1024
	ArgMax  = 64 * 1024
)

const ptrSize = 4 // 32-bit MIPS-style user pointers, per spec.md §1

// ExecResult carries what the dispatcher needs to resume the calling
// thread in user mode after a successful exec: entry point, the
// stack pointer once argv has been laid out, and argc/argv's base for
// the a0/a1 registers conventionally used to start main.
type ExecResult struct {
	Entry   uintptr
	SP      uintptr
	Argc    int
	ArgvPtr uintptr
}

// Exec implements spec.md §4.6 Exec: validates the path and argument
// vector, opens the program, builds a fresh address space, loads its
// segments, lays argv out on the new stack, and — on success — swaps
// the new address space in, destroying the old one. Exec never
// "returns" into the old program; on success the caller resumes at
// Entry with SP/Argc/ArgvPtr, and the old AddressSpace is gone.
func Exec(p *Process, path string, argv []string, fsys vfs.FileSystem, cm *coremap.Coremap, sw *swap.Store, evict coremap.Evictor) (ExecResult, error) {
	if path == "" {
		return ExecResult{}, errno.EFAULT
	}
	if len(path) > PathMax {
		return ExecResult{}, errno.EINVAL
	}

	total := 0
	for _, a := range argv {
		total += len(a) + 1
		if total > ArgMax {
			return ExecResult{}, errno.E2BIG
		}
	}

	vn, err := fsys.Open(path, vfs.ORDONLY)
	if err != nil {
		return ExecResult{}, fmt.Errorf("proc: exec: opening %s: %w", path, err)
	}

	newAS := vm.New(cm, sw)
	img, err := elf.Load(vn)
	if err != nil {
		return ExecResult{}, fmt.Errorf("proc: exec: loading %s: %w", path, err)
	}

	for _, seg := range img.Segments {
		r := seg.Flags&elf.SegRead != 0
		w := seg.Flags&elf.SegWrite != 0
		x := seg.Flags&elf.SegExec != 0
		if _, err := newAS.DefineRegion(uintptr(seg.Vaddr), uintptr(seg.Memsz), r, w, x); err != nil {
			return ExecResult{}, fmt.Errorf("proc: exec: defining region: %w", err)
		}
	}
	newAS.PrepareLoad()

	for _, seg := range img.Segments {
		if seg.Filesz == 0 {
			continue
		}
		buf := make([]byte, seg.Filesz)
		if err := elf.ReadSegment(vn, seg, buf); err != nil {
			newAS.Destroy()
			return ExecResult{}, fmt.Errorf("proc: exec: reading segment: %w", err)
		}
		if err := newAS.WriteAt(uintptr(seg.Vaddr), buf, evict); err != nil {
			newAS.Destroy()
			return ExecResult{}, fmt.Errorf("proc: exec: writing segment: %w", err)
		}
	}

	sp := newAS.DefineStack()
	argvPtr, newSP, err := layoutArgv(newAS, sp, argv, evict)
	if err != nil {
		newAS.Destroy()
		return ExecResult{}, err
	}

	oldAS := p.AS
	p.AS = newAS
	newAS.Activate()
	if oldAS != nil {
		oldAS.Destroy()
	}

	return ExecResult{Entry: uintptr(img.Entry), SP: newSP, Argc: len(argv), ArgvPtr: argvPtr}, nil
}

// layoutArgv packs argument strings downward from sp, then an argv
// array of pointers to each string terminated by a null pointer, per
// spec.md §4.6 Exec: "strings packed downward; an argv array of user
// pointers ... final null terminator". The returned stack pointer is
// pointer-aligned.
func layoutArgv(as *vm.AddressSpace, sp uintptr, argv []string, evict coremap.Evictor) (uintptr, uintptr, error) {
	strAddrs := make([]uintptr, len(argv))
	cur := sp
	for i := len(argv) - 1; i >= 0; i-- {
		s := argv[i]
		cur -= uintptr(len(s) + 1)
		buf := append([]byte(s), 0)
		if err := as.WriteAt(cur, buf, evict); err != nil {
			return 0, 0, err
		}
		strAddrs[i] = cur
	}

	cur &^= ptrSize - 1 // pointer-align before the argv array

	arraySize := uintptr(len(argv)+1) * ptrSize
	cur -= arraySize
	cur &^= ptrSize - 1
	argvBase := cur

	for i, addr := range strAddrs {
		var word [ptrSize]byte
		putUint32LE(word[:], uint32(addr))
		if err := as.WriteAt(argvBase+uintptr(i)*ptrSize, word[:], evict); err != nil {
			return 0, 0, err
		}
	}
	var null [ptrSize]byte
	if err := as.WriteAt(argvBase+uintptr(len(argv))*ptrSize, null[:], evict); err != nil {
		return 0, 0, err
	}

	return argvBase, argvBase, nil
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
