package elf

import (
	"bytes"
	"testing"
)

type byteSource struct{ data []byte }

func (b *byteSource) Read(buf []byte, offset int64) (int, error) {
	if offset >= int64(len(b.data)) {
		return 0, nil
	}
	return copy(buf, b.data[offset:]), nil
}

func TestEncodeLoadRoundTrip(t *testing.T) {
	img := Image{
		Entry: 0x400000,
		Segments: []Segment{
			{Vaddr: 0x400000, Filesz: 4, Memsz: 8, Flags: SegRead | SegExec},
			{Vaddr: 0x500000, Filesz: 3, Memsz: 3, Flags: SegRead | SegWrite},
		},
	}
	raw := Encode(img, [][]byte{{1, 2, 3, 4}, {9, 9, 9}})

	src := &byteSource{data: raw}
	got, err := Load(src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Entry != img.Entry {
		t.Fatalf("entry = %#x, want %#x", got.Entry, img.Entry)
	}
	if len(got.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(got.Segments))
	}
	if got.Segments[0].Vaddr != 0x400000 || got.Segments[0].Memsz != 8 {
		t.Fatalf("segment 0 mismatch: %+v", got.Segments[0])
	}

	buf := make([]byte, got.Segments[0].Filesz)
	if err := ReadSegment(src, got.Segments[0], buf); err != nil {
		t.Fatalf("ReadSegment: %v", err)
	}
	if !bytes.Equal(buf, []byte{1, 2, 3, 4}) {
		t.Fatalf("segment 0 content = %v, want [1 2 3 4]", buf)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	src := &byteSource{data: make([]byte, headerSize)}
	if _, err := Load(src); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestLoadRejectsFileszOverMemsz(t *testing.T) {
	img := Image{Entry: 1, Segments: []Segment{{Vaddr: 0, Filesz: 10, Memsz: 2}}}
	raw := Encode(img, [][]byte{make([]byte, 10)})
	if _, err := Load(&byteSource{data: raw}); err == nil {
		t.Fatal("expected error for filesz > memsz")
	}
}
