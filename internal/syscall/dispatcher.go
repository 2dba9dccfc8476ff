package syscall

import (
	"github.com/orizon-lang/orizon-kernel/internal/coremap"
	"github.com/orizon-lang/orizon-kernel/internal/errno"
	"github.com/orizon-lang/orizon-kernel/internal/kernlog"
	"github.com/orizon-lang/orizon-kernel/internal/proc"
	"github.com/orizon-lang/orizon-kernel/internal/swap"
	"github.com/orizon-lang/orizon-kernel/internal/vfs"
)

// Syscall numbers. There is no external ABI header to match (the trap
// path is out of scope per spec.md §1); these are assigned in the
// order spec.md §6 lists the recognized signatures.
const (
	SysReboot = iota + 1
	SysTime
	SysOpen
	SysRead
	SysWrite
	SysClose
	SysLseek
	SysDup2
	SysGetcwd
	SysChdir
	SysFork
	SysGetpid
	SysExecv
	SysWaitpid
	SysExit
	SysSbrk
)

// Dispatcher fans a decoded trapframe out to the syscall it names,
// per spec.md §4.8. It holds the process-wide state every handler may
// need to reach: the proc table, the coremap/evictor/swap store
// backing every address space, and the filesystem namespace.
type Dispatcher struct {
	Procs *proc.ProcTable
	Cm    *coremap.Coremap
	Sw    *swap.Store
	Fsys  vfs.FileSystem
	Evict coremap.Evictor
	Log   *kernlog.Logger
}

// Dispatch decodes tf's syscall number and argument registers,
// performs it on behalf of p, and writes back the return convention:
// on failure v0=errno, a3=1; on success v0=retval (v1=high word for
// lseek), a3=0. The saved PC is advanced by one instruction after
// every syscall except _exit (which never returns) and a successful
// execv (which resumes at the new program's entry point instead).
func (d *Dispatcher) Dispatch(p *proc.Process, tf *Trapframe) {
	switch tf.Number() {
	case SysReboot:
		tf.Succeed(0, 0)
	case SysTime:
		tf.Succeed(0, 0) // no wall clock in this model
	case SysOpen:
		d.sysOpen(p, tf)
	case SysRead:
		d.sysRead(p, tf)
	case SysWrite:
		d.sysWrite(p, tf)
	case SysClose:
		d.sysClose(p, tf)
	case SysLseek:
		d.sysLseek(p, tf)
	case SysDup2:
		d.sysDup2(p, tf)
	case SysGetcwd:
		d.sysGetcwd(p, tf)
	case SysChdir:
		d.sysChdir(p, tf)
	case SysFork:
		d.sysFork(p, tf)
	case SysGetpid:
		tf.Succeed(uint32(p.PID), 0)
	case SysExecv:
		d.sysExecv(p, tf)
	case SysWaitpid:
		d.sysWaitpid(p, tf)
	case SysExit:
		d.sysExit(p, tf)
	case SysSbrk:
		d.sysSbrk(p, tf)
	default:
		d.Log.Debugf("unknown syscall number %d from pid %d", tf.Number(), p.PID)
		tf.Fail(errno.ENOSYS.Code())
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
