package vfs

import (
	"os"
	"sync"
)

// OSFS is a thin passthrough FileSystem backed by the real filesystem
// under root, used for device nodes (the swap backing file, a console
// log file, raw disk images) that must be actual files on disk rather
// than simulated in memory. Modeled on the teacher's
// internal/runtime/vfs/osfs.go.
type OSFS struct {
	root string
}

// NewOSFS returns a FileSystem rooted at root; paths passed to Open are
// joined onto root verbatim (no chroot-style containment is attempted,
// matching the teacher's osfs.go).
func NewOSFS(root string) *OSFS { return &OSFS{root: root} }

func (o *OSFS) Open(path string, flags int) (Vnode, error) {
	osFlags := osOpenFlags(flags)
	f, err := os.OpenFile(o.root+"/"+path, osFlags, 0o644)
	if err != nil {
		return nil, err
	}
	return &osVnode{f: f}, nil
}

func osOpenFlags(flags int) int {
	var o int
	switch flags & OACCMODE {
	case OWRONLY:
		o = os.O_WRONLY
	case ORDWR:
		o = os.O_RDWR
	default:
		o = os.O_RDONLY
	}
	if flags&OCREAT != 0 {
		o |= os.O_CREATE
	}
	if flags&OTRUNC != 0 {
		o |= os.O_TRUNC
	}
	if flags&OAPPEND != 0 {
		o |= os.O_APPEND
	}
	return o
}

type osVnode struct {
	mu   sync.Mutex
	f    *os.File
	refs int
}

func (v *osVnode) Name() string { return v.f.Name() }

func (v *osVnode) Read(buf []byte, offset int64) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.f.ReadAt(buf, offset)
}

func (v *osVnode) Write(buf []byte, offset int64) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.f.WriteAt(buf, offset)
}

func (v *osVnode) Stat() (Stat, error) {
	fi, err := v.f.Stat()
	if err != nil {
		return Stat{}, err
	}
	return Stat{Size: fi.Size(), Mode: fi.Mode(), Dir: fi.IsDir()}, nil
}

func (v *osVnode) IsSeekable() bool { return true }

func (v *osVnode) Ref() {
	v.mu.Lock()
	v.refs++
	v.mu.Unlock()
}

func (v *osVnode) Unref() {
	v.mu.Lock()
	v.refs--
	closeNow := v.refs <= 0
	v.mu.Unlock()
	if closeNow {
		_ = v.f.Close()
	}
}
