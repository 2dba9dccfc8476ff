package proc

import (
	"github.com/orizon-lang/orizon-kernel/internal/coremap"
	"github.com/orizon-lang/orizon-kernel/internal/errno"
	"github.com/orizon-lang/orizon-kernel/internal/ksync"
)

// Status is a process's slot status in the ProcTable, per spec.md §3.
type Status int

const (
	Ready Status = iota
	Running
	Zombie
	Orphan
)

// KernelPID is reserved for the kernel process at boot, per spec.md
// §4.6 Bootstrap ("Reserve PID 1 for the kernel proc").
const KernelPID = 1

// PIDMin and PIDMax bound the allocatable PID range; slot 0 is unused
// and KernelPID(1) is reserved, so ordinary processes start at 2.
const (
	PIDMin = 2
	PIDMax = 128
)

// ProcTable is the process-wide registry indexed by PID, per spec.md
// §3/§4.6: parallel proc/status/waitcode arrays guarded by one mutex
// and one condition variable.
type ProcTable struct {
	mu *ksync.Lock
	cv *ksync.CV

	table    [PIDMax + 1]*Process
	status   [PIDMax + 1]Status
	waitcode [PIDMax + 1]int32

	pidAvailable int
	pidNext      int
}

// NewProcTable bootstraps the table: kernelProc occupies KernelPID,
// every other slot in [PIDMin, PIDMax] starts Ready.
func NewProcTable(kernelProc *Process) *ProcTable {
	pt := &ProcTable{mu: ksync.NewLock("proctable"), cv: ksync.NewCV("proctable")}
	kernelProc.PID = KernelPID
	pt.table[KernelPID] = kernelProc
	pt.status[KernelPID] = Running
	for pid := PIDMin; pid <= PIDMax; pid++ {
		pt.status[pid] = Ready
	}
	pt.pidAvailable = PIDMax - PIDMin + 1
	pt.pidNext = PIDMin
	return pt
}

// Lookup returns the process at pid, or nil if the slot holds none.
func (pt *ProcTable) Lookup(pid int) *Process {
	pt.mu.Acquire(pt)
	defer pt.mu.Release(pt)
	if pid < 0 || pid > PIDMax {
		return nil
	}
	return pt.table[pid]
}

// addLocked implements spec.md §4.6 Add: attach child to parent's children
// list, assign the next PID, mark it Running, and advance the
// pid_next hint to the next Ready slot (or PID_MAX+1 if the table is
// full). Caller must hold pt.mu.
func (pt *ProcTable) addLocked(parent, child *Process) error {
	if pt.pidAvailable < 1 {
		return errno.ENPROC
	}
	pid := pt.pidNext
	child.PID = pid
	child.ParentPID = parent.PID
	pt.table[pid] = child
	pt.status[pid] = Running
	pt.pidAvailable--

	next := PIDMax + 1
	for i := pid + 1; i <= PIDMax; i++ {
		if pt.status[i] == Ready {
			next = i
			break
		}
	}
	pt.pidNext = next
	parent.AddChild(pid)
	return nil
}

// freePidLocked implements the fork-rollback path: reset the slot to
// Ready and bump pid_available. Caller must hold pt.mu.
func (pt *ProcTable) freePidLocked(pid int) {
	pt.table[pid] = nil
	pt.status[pid] = Ready
	pt.pidAvailable++
	if pid < pt.pidNext {
		pt.pidNext = pid
	}
}

// Add implements spec.md §4.6 Add: attach child to parent's children
// list and reserve it a PID, outside of fork (used to register the
// first process under the kernel proc at boot).
func (pt *ProcTable) Add(parent, child *Process) error {
	pt.mu.Acquire(pt)
	defer pt.mu.Release(pt)
	return pt.addLocked(parent, child)
}

// Fork implements spec.md §4.6 Fork: copy the address space, bump the
// cwd vnode reference, duplicate the file table (handles shared,
// d_count bumped), and reserve a PID. On allocate-then-commit failure
// everything already built for the child is unwound.
func (pt *ProcTable) Fork(parent *Process, evict coremap.Evictor) (*Process, error) {
	child := New(parent.Name)

	newAS, err := parent.AS.Copy(evict)
	if err != nil {
		return nil, err
	}
	child.AS = newAS

	parent.Cwd.Ref()
	child.Cwd = parent.Cwd

	child.Files = parent.Files.Fork(parent)

	pt.mu.Acquire(pt)
	err = pt.addLocked(parent, child)
	pt.mu.Release(pt)
	if err != nil {
		child.AS.Destroy()
		child.Cwd.Unref()
		child.Files.CloseAll(parent)
		return nil, err
	}
	return child, nil
}

// Waitpid implements spec.md §4.6 Waitpid(pid, &status, options):
// options must be 0; pid must name a live slot that is a direct child
// of caller; the calling goroutine blocks on the table CV until the
// target is Zombie, then reaps it (destroying its resources and
// freeing its PID) and returns its waitcode.
func (pt *ProcTable) Waitpid(caller *Process, pid int, options int) (int32, error) {
	if options != 0 {
		return 0, errno.EINVAL
	}
	if pid < PIDMin || pid > PIDMax {
		return 0, errno.ESRCH
	}

	pt.mu.Acquire(caller)
	if pt.status[pid] == Ready {
		pt.mu.Release(caller)
		return 0, errno.ESRCH
	}
	pt.mu.Release(caller)

	if !caller.IsChild(pid) {
		return 0, errno.ECHILD
	}

	pt.mu.Acquire(caller)
	for pt.status[pid] != Zombie {
		pt.cv.Wait(caller, pt.mu)
	}
	code := pt.waitcode[pid]
	zombie := pt.table[pid]
	pt.freePidLocked(pid)
	pt.mu.Release(caller)

	if zombie != nil {
		destroyProcess(zombie, caller)
	}
	caller.RemoveChild(pid)
	return code, nil
}

// Exit implements spec.md §4.6 _exit(waitcode): reparent Running
// children to Orphan, reap any already-Zombie children, then either
// become Zombie (Running parent still alive to reap) or destroy self
// immediately (Orphan). Broadcasts the table CV since there is no
// per-PID wait queue.
func (pt *ProcTable) Exit(p *Process, waitcode int32) {
	pt.mu.Acquire(p)

	for _, cpid := range p.ChildrenSnapshot() {
		switch pt.status[cpid] {
		case Running:
			pt.status[cpid] = Orphan
		case Zombie:
			dead := pt.table[cpid]
			pt.freePidLocked(cpid)
			if dead != nil {
				destroyProcess(dead, p)
			}
		}
	}

	selfStatus := pt.status[p.PID]
	var destroySelf bool
	switch selfStatus {
	case Running:
		pt.status[p.PID] = Zombie
		pt.waitcode[p.PID] = waitcode
	case Orphan:
		pt.freePidLocked(p.PID)
		destroySelf = true
	}

	pt.cv.Broadcast(p, pt.mu)
	pt.mu.Release(p)

	if destroySelf {
		destroyProcess(p, p)
	}
}

func destroyProcess(p *Process, holder ksync.Holder) {
	if p.AS != nil {
		p.AS.Destroy()
	}
	if p.Cwd != nil {
		p.Cwd.Unref()
	}
	if p.Files != nil {
		p.Files.CloseAll(holder)
	}
}
