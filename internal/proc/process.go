// Package proc implements the process table and lifecycle of spec.md
// §4.6: PID allocation, fork, waitpid, _exit, and exec, plus the
// parent/child status protocol used for reaping. Modeled on the
// teacher's internal/runtime/kernel process/scheduler bookkeeping
// (hardware.go's Process/ProcessManager, scheduler.go's table-mutex
// style), adapted to the richer fork/wait/exit semantics this spec
// requires.
package proc

import (
	"github.com/orizon-lang/orizon-kernel/internal/fd"
	"github.com/orizon-lang/orizon-kernel/internal/ksync"
	"github.com/orizon-lang/orizon-kernel/internal/vfs"
	"github.com/orizon-lang/orizon-kernel/internal/vm"
)

// Process holds the fields spec.md §3 lists: name, PID, address space,
// cwd vnode, file table, per-process spinlock, and a children list.
// There is no Thread type here — syscalls execute synchronously on the
// calling goroutine, which plays the role of "the process's one
// thread."
type Process struct {
	spin ksync.Spinlock // guards Children; Cwd and AS are reassigned (chdir, exec) without it

	Name      string
	PID       int
	ParentPID int
	Children  []int

	AS    *vm.AddressSpace
	Cwd   vfs.Vnode
	Files *fd.FileTable
}

// New builds a process record with an empty file table and no
// children; callers install an AddressSpace and cwd before the process
// is runnable. copyin/copyout-style syscall argument passing reads and
// writes directly through AS (see internal/syscall/usercopy.go), so
// there is no separate flat "user memory" arena: the page-fault and
// eviction machinery that backs AS is exercised by ordinary syscall
// buffer traffic, not just by vm's own tests.
func New(name string) *Process {
	return &Process{Name: name, Files: fd.NewFileTable()}
}

func (p *Process) lockFields(fn func()) {
	p.spin.Acquire()
	defer p.spin.Release()
	fn()
}

// AddChild records a child PID under the process spinlock.
func (p *Process) AddChild(pid int) {
	p.lockFields(func() { p.Children = append(p.Children, pid) })
}

// RemoveChild drops a child PID, used after a parent reaps a zombie.
func (p *Process) RemoveChild(pid int) {
	p.lockFields(func() {
		for i, c := range p.Children {
			if c == pid {
				p.Children = append(p.Children[:i], p.Children[i+1:]...)
				return
			}
		}
	})
}

// IsChild reports whether pid is a direct child of p.
func (p *Process) IsChild(pid int) bool {
	var found bool
	p.lockFields(func() {
		for _, c := range p.Children {
			if c == pid {
				found = true
				return
			}
		}
	})
	return found
}

// ChildrenSnapshot copies the current children list under the spinlock.
func (p *Process) ChildrenSnapshot() []int {
	var out []int
	p.lockFields(func() { out = append([]int(nil), p.Children...) })
	return out
}
