// Package fd implements the per-process file-descriptor table and
// reference-counted file handles of spec.md §4.7: descriptor slots
// point at a shared FileHandle, whose open-count tracks how many
// slots (across every process that forked from a common ancestor)
// still reference it.
package fd

import (
	"github.com/orizon-lang/orizon-kernel/internal/errno"
	"github.com/orizon-lang/orizon-kernel/internal/ksync"
	"github.com/orizon-lang/orizon-kernel/internal/vfs"
)

// OpenMax is OPEN_MAX: the fixed size of a process's descriptor table.
const OpenMax = 64

// Access-mode bits mirror vfs.O_ACCMODE.
const AccMode = vfs.OACCMODE

// FileHandle is the kernel object shared across every descriptor slot
// that refers to the same open file, per spec.md §3. Its mutex is
// independent of every other lock in the system and is never held
// across acquisition of the process-table lock (spec.md §5 rule 3).
type FileHandle struct {
	mu            *ksync.Lock
	Vnode         vfs.Vnode
	Mode          int
	Offset        int64
	DCount        int
	IsNonSeekable bool
}

// NewFileHandle wraps vn as a freshly opened handle with one reference.
func NewFileHandle(vn vfs.Vnode, mode int, offset int64) *FileHandle {
	return &FileHandle{
		mu:            ksync.NewLock("filehandle"),
		Vnode:         vn,
		Mode:          mode,
		Offset:        offset,
		DCount:        1,
		IsNonSeekable: !vn.IsSeekable(),
	}
}

// FileTable is a process's OPEN_MAX-sized descriptor array; a nil slot
// is closed.
type FileTable struct {
	slots [OpenMax]*FileHandle
}

// NewFileTable returns an empty table.
func NewFileTable() *FileTable { return &FileTable{} }

// NewConsoleFileTable seeds fds 0/1/2 as console handles (stdin
// read-only, stdout/stderr write-only), per spec.md §4.7.
func NewConsoleFileTable(stdin, stdout, stderr vfs.Vnode) *FileTable {
	ft := NewFileTable()
	ft.slots[0] = NewFileHandle(stdin, vfs.ORDONLY, 0)
	ft.slots[1] = NewFileHandle(stdout, vfs.OWRONLY, 0)
	ft.slots[2] = NewFileHandle(stderr, vfs.OWRONLY, 0)
	return ft
}

// Install finds the lowest free slot at index >= 3 and points it at h,
// returning EMFILE if the table is full.
func (ft *FileTable) Install(h *FileHandle) (int, error) {
	for i := 3; i < OpenMax; i++ {
		if ft.slots[i] == nil {
			ft.slots[i] = h
			return i, nil
		}
	}
	return 0, errno.EMFILE
}

// Get returns the handle at fd, or EBADF if fd is out of range or closed.
func (ft *FileTable) Get(fdnum int) (*FileHandle, error) {
	if fdnum < 0 || fdnum >= OpenMax || ft.slots[fdnum] == nil {
		return nil, errno.EBADF
	}
	return ft.slots[fdnum], nil
}

// Close implements spec.md §4.7 close(fd): decrement the handle's
// d_count under its own mutex; at zero, close the vnode and drop the
// reference. The slot is always nulled regardless of the resulting
// d_count.
func (ft *FileTable) Close(holder ksync.Holder, fdnum int) error {
	h, err := ft.Get(fdnum)
	if err != nil {
		return err
	}
	ft.slots[fdnum] = nil

	h.mu.Acquire(holder)
	h.DCount--
	last := h.DCount == 0
	h.mu.Release(holder)
	if last {
		h.mu.Destroy()
		h.Vnode.Unref()
	}
	return nil
}

// Dup2 implements spec.md §4.7 dup2(oldfd, newfd): same-fd is a no-op;
// otherwise any handle already at newfd is closed per the close rules,
// then newfd is pointed at oldfd's handle with its reference count
// bumped.
func (ft *FileTable) Dup2(holder ksync.Holder, oldfd, newfd int) error {
	old, err := ft.Get(oldfd)
	if err != nil {
		return err
	}
	if newfd < 0 || newfd >= OpenMax {
		return errno.EBADF
	}
	if oldfd == newfd {
		return nil
	}
	if ft.slots[newfd] != nil {
		if err := ft.Close(holder, newfd); err != nil {
			return err
		}
	}
	old.mu.Acquire(holder)
	old.DCount++
	old.mu.Release(holder)
	ft.slots[newfd] = old
	return nil
}

// Fork duplicates ft for a child process: every non-null slot is
// shared with the parent, its handle's d_count bumped, per spec.md
// §4.6 Fork.
func (ft *FileTable) Fork(holder ksync.Holder) *FileTable {
	child := NewFileTable()
	for i, h := range ft.slots {
		if h == nil {
			continue
		}
		h.mu.Acquire(holder)
		h.DCount++
		h.mu.Release(holder)
		child.slots[i] = h
	}
	return child
}

// CloseAll closes every open descriptor, used when a process exits.
func (ft *FileTable) CloseAll(holder ksync.Holder) {
	for i := range ft.slots {
		if ft.slots[i] != nil {
			_ = ft.Close(holder, i)
		}
	}
}
