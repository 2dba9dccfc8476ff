package syscall

import (
	"github.com/orizon-lang/orizon-kernel/internal/errno"
	"github.com/orizon-lang/orizon-kernel/internal/fd"
	"github.com/orizon-lang/orizon-kernel/internal/proc"
	"github.com/orizon-lang/orizon-kernel/internal/vfs"
)

// sysOpen implements open(path, flags): copy path in, vfs_open, seed
// the offset from the file's size when O_APPEND is set, install the
// handle at the lowest free descriptor, per spec.md §4.7.
func (d *Dispatcher) sysOpen(p *proc.Process, tf *Trapframe) {
	path, err := CopyInString(p, tf.A0, PathMax, d.Evict)
	if err != nil {
		tf.Fail(errno.FromError(err).Code())
		return
	}
	flags := int(tf.A1)

	vn, err := d.Fsys.Open(path, flags)
	if err != nil {
		tf.Fail(errno.EFAULT.Code())
		return
	}

	var offset int64
	if flags&vfs.OAPPEND != 0 {
		st, err := vn.Stat()
		if err != nil {
			tf.Fail(errno.EFAULT.Code())
			return
		}
		offset = st.Size
	}

	h := fd.NewFileHandle(vn, flags&fd.AccMode, offset)
	fdnum, err := p.Files.Install(h)
	if err != nil {
		tf.Fail(errno.FromError(err).Code())
		return
	}
	tf.Succeed(uint32(fdnum), 0)
}

// sysRead implements read(fd, buf, n): validate fd/mode, then read at
// the handle's current offset straight into the physical pages
// backing the user buffer (no kernel bounce buffer), advancing the
// offset as each page is filled, per spec.md §4.7/§9 (direct-to-user
// uio path).
func (d *Dispatcher) sysRead(p *proc.Process, tf *Trapframe) {
	fdnum, uaddr, n := int(tf.A0), tf.A1, int(tf.A2)
	h, err := p.Files.Get(fdnum)
	if err != nil {
		tf.Fail(errno.FromError(err).Code())
		return
	}
	if h.Mode == vfs.OWRONLY {
		tf.Fail(errno.EBADF.Code())
		return
	}
	if uaddr == 0 {
		tf.Fail(errno.EFAULT.Code())
		return
	}

	got, err := p.AS.ReadInto(uintptr(uaddr), n, d.Evict, func(buf []byte) (int, error) {
		got, err := h.Vnode.Read(buf, h.Offset)
		h.Offset += int64(got)
		return got, err
	})
	if err != nil {
		tf.Fail(errno.FromError(err).Code())
		return
	}
	tf.Succeed(uint32(got), 0)
}

// sysWrite implements write(fd, buf, n), mirroring sysRead: bytes are
// written to the vnode straight out of the physical pages backing the
// user buffer.
func (d *Dispatcher) sysWrite(p *proc.Process, tf *Trapframe) {
	fdnum, uaddr, n := int(tf.A0), tf.A1, int(tf.A2)
	h, err := p.Files.Get(fdnum)
	if err != nil {
		tf.Fail(errno.FromError(err).Code())
		return
	}
	if h.Mode == vfs.ORDONLY {
		tf.Fail(errno.EBADF.Code())
		return
	}
	if uaddr == 0 {
		tf.Fail(errno.EFAULT.Code())
		return
	}

	put, err := p.AS.WriteOut(uintptr(uaddr), n, d.Evict, func(buf []byte) (int, error) {
		put, err := h.Vnode.Write(buf, h.Offset)
		h.Offset += int64(put)
		return put, err
	})
	if err != nil {
		tf.Fail(errno.FromError(err).Code())
		return
	}
	tf.Succeed(uint32(put), 0)
}

// sysClose implements close(fd).
func (d *Dispatcher) sysClose(p *proc.Process, tf *Trapframe) {
	if err := p.Files.Close(p, int(tf.A0)); err != nil {
		tf.Fail(errno.FromError(err).Code())
		return
	}
	tf.Succeed(0, 0)
}

// Whence values for lseek, matching the conventional SEEK_* constants.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// sysLseek implements lseek(fd, off, whence): a 64-bit offset split
// across a2 (high)/a3 (low); whence is read from the user stack at
// sp+16 since it is the syscall's fifth argument, per spec.md §6/§4.8.
// ESPIPE if the handle is not seekable; EINVAL if the result would be
// negative.
func (d *Dispatcher) sysLseek(p *proc.Process, tf *Trapframe) {
	fdnum := int(tf.A0)
	h, err := p.Files.Get(fdnum)
	if err != nil {
		tf.Fail(errno.FromError(err).Code())
		return
	}
	if h.IsNonSeekable {
		tf.Fail(errno.ESPIPE.Code())
		return
	}

	off := int64(tf.A2)<<32 | int64(tf.A3)
	whenceBuf, err := CopyIn(p, tf.SP+16, 4, d.Evict)
	if err != nil {
		tf.Fail(errno.FromError(err).Code())
		return
	}
	whence := int32(le32(whenceBuf))

	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = h.Offset
	case SeekEnd:
		st, err := h.Vnode.Stat()
		if err != nil {
			tf.Fail(errno.EFAULT.Code())
			return
		}
		base = st.Size
	default:
		tf.Fail(errno.EINVAL.Code())
		return
	}

	newOff := base + off
	if newOff < 0 {
		tf.Fail(errno.EINVAL.Code())
		return
	}
	h.Offset = newOff
	tf.Succeed(uint32(newOff), uint32(newOff>>32))
}

// sysDup2 implements dup2(oldfd, newfd).
func (d *Dispatcher) sysDup2(p *proc.Process, tf *Trapframe) {
	if err := p.Files.Dup2(p, int(tf.A0), int(tf.A1)); err != nil {
		tf.Fail(errno.FromError(err).Code())
		return
	}
	tf.Succeed(uint32(tf.A1), 0)
}

// sysGetcwd implements __getcwd(buf, len): a thin wrapper copying the
// cwd vnode's name out, per spec.md §4.7.
func (d *Dispatcher) sysGetcwd(p *proc.Process, tf *Trapframe) {
	name := p.Cwd.Name()
	if err := CopyOutString(p, tf.A0, name, d.Evict); err != nil {
		tf.Fail(errno.FromError(err).Code())
		return
	}
	tf.Succeed(uint32(len(name)), 0)
}

// sysChdir implements chdir(path): resolve the new directory, swap the
// cwd vnode reference, release the old one, per spec.md §4.7.
func (d *Dispatcher) sysChdir(p *proc.Process, tf *Trapframe) {
	path, err := CopyInString(p, tf.A0, PathMax, d.Evict)
	if err != nil {
		tf.Fail(errno.FromError(err).Code())
		return
	}
	vn, err := d.Fsys.Open(path, vfs.ORDONLY)
	if err != nil {
		tf.Fail(errno.EFAULT.Code())
		return
	}
	old := p.Cwd
	p.Cwd = vn
	if old != nil {
		old.Unref()
	}
	tf.Succeed(0, 0)
}
