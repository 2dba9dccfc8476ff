// Package elf is the concretization of spec.md's "ELF loader" external
// collaborator (`load_elf(vnode, &entry)`): a minimal reader, not a
// real ELF64 parser, reporting just enough — an entry point and a
// segment table — for execv to build an address space. Modeled on the
// manual binary.LittleEndian encoding used by the teacher's
// internal/debug/elf_writer.go, read in reverse.
package elf

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies a loadable image; anything else is rejected with
// ENOEXEC-equivalent behavior at the caller.
var Magic = [4]byte{'O', 'E', 'X', '1'}

// SegFlag bits mirror the conventional ELF PF_X/PF_W/PF_R bit positions
// spec.md's Open Questions section calls out ("callers pass
// conventional ELF flag bits").
const (
	SegExec  = 1 << 0
	SegWrite = 1 << 1
	SegRead  = 1 << 2
)

// Segment is one loadable program segment.
type Segment struct {
	Vaddr   uint64
	Offset  uint64 // byte offset into the image of the segment's file content
	Filesz  uint64 // bytes to copy from the image
	Memsz   uint64 // total mapped size; Memsz-Filesz is zero-filled
	Flags   uint32
}

// Image is the decoded result of Load: an entry point and its segments.
type Image struct {
	Entry    uint64
	Segments []Segment
}

// Source is the minimal read surface Load needs; vfs.Vnode satisfies it.
type Source interface {
	Read(buf []byte, offset int64) (int, error)
}

const headerSize = 4 + 8 + 4 // magic + entry + nsegs
const segHeaderSize = 8 + 8 + 8 + 8 + 4

// Load reads a fixed-layout header from src: a 4-byte magic, an 8-byte
// little-endian entry point, a 4-byte segment count, then that many
// segment headers (vaddr, offset, filesz, memsz, flags). It reports
// ENOEXEC-equivalent errors for a bad magic or truncated header;
// callers are responsible for mapping the returned segments.
func Load(src Source) (Image, error) {
	hdr := make([]byte, headerSize)
	if _, err := readFull(src, hdr, 0); err != nil {
		return Image{}, fmt.Errorf("elf: reading header: %w", err)
	}
	var magic [4]byte
	copy(magic[:], hdr[0:4])
	if magic != Magic {
		return Image{}, fmt.Errorf("elf: bad magic %q", magic)
	}
	entry := binary.LittleEndian.Uint64(hdr[4:12])
	nsegs := binary.LittleEndian.Uint32(hdr[12:16])

	img := Image{Entry: entry, Segments: make([]Segment, 0, nsegs)}
	off := int64(headerSize)
	for i := uint32(0); i < nsegs; i++ {
		buf := make([]byte, segHeaderSize)
		if _, err := readFull(src, buf, off); err != nil {
			return Image{}, fmt.Errorf("elf: reading segment %d header: %w", i, err)
		}
		seg := Segment{
			Vaddr:  binary.LittleEndian.Uint64(buf[0:8]),
			Offset: binary.LittleEndian.Uint64(buf[8:16]),
			Filesz: binary.LittleEndian.Uint64(buf[16:24]),
			Memsz:  binary.LittleEndian.Uint64(buf[24:32]),
			Flags:  binary.LittleEndian.Uint32(buf[32:36]),
		}
		if seg.Filesz > seg.Memsz {
			return Image{}, fmt.Errorf("elf: segment %d filesz %d exceeds memsz %d", i, seg.Filesz, seg.Memsz)
		}
		img.Segments = append(img.Segments, seg)
		off += segHeaderSize
	}
	return img, nil
}

// ReadSegment copies a segment's file-backed bytes into dst, which must
// be at least int(seg.Filesz) long.
func ReadSegment(src Source, seg Segment, dst []byte) error {
	if uint64(len(dst)) < seg.Filesz {
		return fmt.Errorf("elf: destination buffer too small for segment (%d < %d)", len(dst), seg.Filesz)
	}
	_, err := readFull(src, dst[:seg.Filesz], int64(seg.Offset))
	return err
}

func readFull(src Source, buf []byte, offset int64) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := src.Read(buf[total:], offset+int64(total))
		if n == 0 && err == nil {
			return total, fmt.Errorf("elf: short read at offset %d", offset+int64(total))
		}
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	if total < len(buf) {
		return total, fmt.Errorf("elf: truncated image at offset %d", offset)
	}
	return total, nil
}

// Encode serializes an Image back into the fixed-layout header and
// segment table Load expects, with segment content appended in order;
// it exists so tests can construct an in-memory image without hand-
// packing bytes.
func Encode(img Image, segData [][]byte) []byte {
	buf := make([]byte, headerSize+len(img.Segments)*segHeaderSize)
	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint64(buf[4:12], img.Entry)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(img.Segments)))

	off := headerSize
	dataOff := uint64(len(buf))
	for i, seg := range img.Segments {
		seg.Offset = dataOff
		base := off + i*segHeaderSize
		binary.LittleEndian.PutUint64(buf[base:base+8], seg.Vaddr)
		binary.LittleEndian.PutUint64(buf[base+8:base+16], seg.Offset)
		binary.LittleEndian.PutUint64(buf[base+16:base+24], seg.Filesz)
		binary.LittleEndian.PutUint64(buf[base+24:base+32], seg.Memsz)
		binary.LittleEndian.PutUint32(buf[base+32:base+36], seg.Flags)
		buf = append(buf, segData[i]...)
		dataOff += uint64(len(segData[i]))
	}
	return buf
}
