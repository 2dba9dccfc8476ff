// Package vfs is a concrete stand-in for the VFS/vnode layer spec.md
// §1/§6 lists as an external collaborator: vfs_open/close/chdir/getcwd
// and VOP_READ/WRITE/STAT/ISSEEKABLE, plus vnode reference counting.
// It is modeled on the teacher's internal/runtime/vfs package
// (FileSystem/File interfaces, an in-memory filesystem, and an
// fsnotify-backed watcher), adapted to a vnode-refcounting shape a
// kernel file table can share.
package vfs

import "io/fs"

// Open-flag bits, matching the O_* flags spec.md's open() accepts.
const (
	ORDONLY  = 0x0
	OWRONLY  = 0x1
	ORDWR    = 0x2
	OACCMODE = 0x3
	OCREAT   = 0x040
	OAPPEND  = 0x400
	OTRUNC   = 0x200
)

// Stat is the subset of vnode metadata the kernel needs (VOP_STAT).
type Stat struct {
	Size int64
	Mode fs.FileMode
	Dir  bool
}

// Vnode is a reference-counted open file or directory. VOP_INCREF/
// VOP_DECREF are Ref/Unref; the underlying resource closes when the
// refcount reaches zero.
type Vnode interface {
	Name() string
	Read(buf []byte, offset int64) (int, error)
	Write(buf []byte, offset int64) (int, error)
	Stat() (Stat, error)
	IsSeekable() bool
	Ref()
	Unref()
}

// FileSystem abstracts path resolution for vfs_open/vfs_chdir.
type FileSystem interface {
	// Open resolves path under the given flags and returns a vnode
	// with one outstanding reference, mirroring vfs_open.
	Open(path string, flags int) (Vnode, error)
}
