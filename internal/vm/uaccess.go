package vm

import "github.com/orizon-lang/orizon-kernel/internal/coremap"

// Translate returns the physical frame currently backing va, faulting
// it in first if necessary. It exists for callers (the ELF loader,
// exec's argv layout) that need to deposit bytes directly into a
// freshly defined region or the stack rather than go through a
// syscall's copyin/copyout path.
func (as *AddressSpace) Translate(va uintptr, evict coremap.Evictor) (uintptr, error) {
	if err := as.Fault(FaultWrite, va, evict); err != nil {
		return 0, err
	}
	ps := as.pageSize()
	vpage := uint32(pageAlignDown(va, ps) / ps)

	as.mu.Lock()
	p := as.findPTELocked(vpage)
	as.mu.Unlock()
	if p == nil || p.State != Mapped {
		panic("vm: Translate: fault succeeded but PTE is not Mapped")
	}
	return p.Paddr, nil
}

// WriteAt copies data into the address space starting at va, faulting
// in and crossing page boundaries as needed. Used to deposit ELF
// segment contents and exec's argv/string stack layout.
func (as *AddressSpace) WriteAt(va uintptr, data []byte, evict coremap.Evictor) error {
	ps := as.pageSize()
	for len(data) > 0 {
		paddr, err := as.Translate(va, evict)
		if err != nil {
			return err
		}
		pageOff := va % ps
		n := ps - pageOff
		if uintptr(len(data)) < n {
			n = uintptr(len(data))
		}
		copy(as.cm.PageBytes(paddr)[pageOff:], data[:n])
		data = data[n:]
		va += n
	}
	return nil
}

// ReadAt copies len(dst) bytes out of the address space starting at va.
func (as *AddressSpace) ReadAt(va uintptr, dst []byte, evict coremap.Evictor) error {
	ps := as.pageSize()
	for len(dst) > 0 {
		paddr, err := as.Translate(va, evict)
		if err != nil {
			return err
		}
		pageOff := va % ps
		n := ps - pageOff
		if uintptr(len(dst)) < n {
			n = uintptr(len(dst))
		}
		copy(dst[:n], as.cm.PageBytes(paddr)[pageOff:])
		dst = dst[n:]
		va += n
	}
	return nil
}

// ReadInto fills up to n bytes of user memory starting at va by
// calling read directly against the physical pages backing it, one
// page at a time, rather than through a separately allocated kernel
// buffer that would need a later copyout: this is the direct-to-user
// uio path spec.md's sys_read contract assumes. read is typically a
// vnode's Read bound to the caller's current file offset; it is called
// once per page crossed and stops early on a short read.
func (as *AddressSpace) ReadInto(va uintptr, n int, evict coremap.Evictor, read func(buf []byte) (int, error)) (int, error) {
	ps := as.pageSize()
	total := 0
	for n > 0 {
		paddr, err := as.Translate(va, evict)
		if err != nil {
			return total, err
		}
		pageOff := va % ps
		chunk := ps - pageOff
		if uintptr(n) < chunk {
			chunk = uintptr(n)
		}
		dst := as.cm.PageBytes(paddr)[pageOff : pageOff+chunk]
		got, err := read(dst[:chunk])
		total += got
		if err != nil {
			return total, err
		}
		if uintptr(got) < chunk {
			break
		}
		va += uintptr(got)
		n -= got
	}
	return total, nil
}

// WriteOut drains up to n bytes of user memory starting at va by
// calling write directly against the physical pages backing it, one
// page at a time, rather than copying into a kernel buffer first.
// write is typically a vnode's Write bound to the caller's current
// file offset.
func (as *AddressSpace) WriteOut(va uintptr, n int, evict coremap.Evictor, write func(buf []byte) (int, error)) (int, error) {
	ps := as.pageSize()
	total := 0
	for n > 0 {
		paddr, err := as.Translate(va, evict)
		if err != nil {
			return total, err
		}
		pageOff := va % ps
		chunk := ps - pageOff
		if uintptr(n) < chunk {
			chunk = uintptr(n)
		}
		src := as.cm.PageBytes(paddr)[pageOff : pageOff+chunk]
		got, err := write(src[:chunk])
		total += got
		if err != nil {
			return total, err
		}
		if uintptr(got) < chunk {
			break
		}
		va += uintptr(got)
		n -= got
	}
	return total, nil
}
