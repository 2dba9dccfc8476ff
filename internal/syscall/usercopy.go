package syscall

import (
	"github.com/orizon-lang/orizon-kernel/internal/coremap"
	"github.com/orizon-lang/orizon-kernel/internal/errno"
	"github.com/orizon-lang/orizon-kernel/internal/proc"
)

// PathMax bounds copyinstr calls made on behalf of path arguments
// (open/chdir), per spec.md §4.7/§4.6.
const PathMax = 1024

// CopyIn implements copyin(uaddr, len): reads len bytes starting at a
// user virtual address into a freshly allocated kernel buffer, faulting
// pages in as needed through the process's address space. evict is
// threaded through to the fault handler so a copyin under coremap
// pressure can reclaim a frame instead of failing with ENOMEM.
func CopyIn(p *proc.Process, uaddr uint32, n int, evict coremap.Evictor) ([]byte, error) {
	if uaddr == 0 {
		return nil, errno.EFAULT
	}
	buf := make([]byte, n)
	if err := p.AS.ReadAt(uintptr(uaddr), buf, evict); err != nil {
		return nil, errno.EFAULT
	}
	return buf, nil
}

// CopyOut implements copyout(kbuf, uaddr, len): writes data to a user
// virtual address, faulting pages in as needed.
func CopyOut(p *proc.Process, uaddr uint32, data []byte, evict coremap.Evictor) error {
	if uaddr == 0 {
		return errno.EFAULT
	}
	if err := p.AS.WriteAt(uintptr(uaddr), data, evict); err != nil {
		return errno.EFAULT
	}
	return nil
}

// CopyInString implements copyinstr(uaddr, maxlen): reads a
// NUL-terminated string one byte at a time (matching the original's
// uiomove-per-byte approach) up to maxlen, returning EINVAL if no NUL
// is found within bounds.
func CopyInString(p *proc.Process, uaddr uint32, maxlen int, evict coremap.Evictor) (string, error) {
	if uaddr == 0 {
		return "", errno.EFAULT
	}
	buf := make([]byte, 0, 64)
	var b [1]byte
	for i := 0; i < maxlen; i++ {
		if err := p.AS.ReadAt(uintptr(uaddr)+uintptr(i), b[:], evict); err != nil {
			return "", errno.EFAULT
		}
		if b[0] == 0 {
			return string(buf), nil
		}
		buf = append(buf, b[0])
	}
	return "", errno.EINVAL
}

// CopyOutString implements copyoutstr: writes s plus a terminating NUL
// to a user virtual address.
func CopyOutString(p *proc.Process, uaddr uint32, s string, evict coremap.Evictor) error {
	return CopyOut(p, uaddr, append([]byte(s), 0), evict)
}
