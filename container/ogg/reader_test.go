package ogg

import (
	"bytes"
	"io"
	"testing"
)

// seekableBytes is a minimal io.Reader+io.Seeker over an in-memory buffer,
// the shape any file-backed ByteSource presents to the Reader.
type seekableBytes struct {
	data []byte
	pos  int64
}

func newSeekableBytes(b []byte) *seekableBytes { return &seekableBytes{data: b} }

func (s *seekableBytes) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *seekableBytes) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		target = int64(len(s.data)) + offset
	}
	s.pos = target
	return target, nil
}

func testPage(serial, seq uint32, flags byte, granule uint64, payload []byte, lengths []uint32, final bool) *Page {
	return &Page{
		GranulePosition:       granule,
		SerialNumber:          serial,
		PageSequence:          seq,
		Flags:                 flags,
		PacketLengths:         lengths,
		FinalPacketIsComplete: final,
		Payload:               payload,
	}
}

func TestReadPageRoundTrip(t *testing.T) {
	payload := []byte("hello vorbis")
	page := testPage(42, 0, FlagBeginsStream, NoGranulePosition, payload, []uint32{uint32(len(payload))}, true)
	wire := buildPage(t, page)

	r := NewReader(bytes.NewReader(wire), nil)
	got, err := r.ReadPage()
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if got.SerialNumber != 42 || !bytes.Equal(got.Payload, payload) {
		t.Fatalf("ReadPage = %+v, want serial 42 and payload %q", got, payload)
	}
	if _, err := r.ReadPage(); err != io.EOF {
		t.Fatalf("second ReadPage err = %v, want io.EOF", err)
	}
}

func TestResyncPastGarbage(t *testing.T) {
	payload := []byte("payload")
	page := testPage(7, 0, FlagBeginsStream, NoGranulePosition, payload, []uint32{uint32(len(payload))}, true)
	wire := buildPage(t, page)

	garbage := []byte("this is not an ogg page at all, OggX but not quite")
	stream := append(append([]byte{}, garbage...), wire...)

	r := NewReader(bytes.NewReader(stream), nil)
	got, err := r.ReadPage()
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if got.SeekOffset != int64(len(garbage)) {
		t.Fatalf("SeekOffset = %d, want %d", got.SeekOffset, len(garbage))
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Fatalf("Payload = %q, want %q", got.Payload, payload)
	}
	if !r.TookNonContiguity() {
		t.Fatalf("TookNonContiguity() = false, want true after skipping garbage")
	}
	if r.TookNonContiguity() {
		t.Fatalf("TookNonContiguity() = true on second call, want it to clear after being read")
	}
}

func TestNoNonContiguityOnCleanRead(t *testing.T) {
	payload := []byte("clean page, no garbage ahead of it")
	page := testPage(4, 0, FlagBeginsStream, NoGranulePosition, payload, []uint32{uint32(len(payload))}, true)
	wire := buildPage(t, page)

	r := NewReader(bytes.NewReader(wire), nil)
	if _, err := r.ReadPage(); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if r.TookNonContiguity() {
		t.Fatalf("TookNonContiguity() = true, want false for a page with no leading garbage")
	}
}

func TestCorruptPageCRCFailsThenRecovers(t *testing.T) {
	payload := []byte("intact payload data")
	page := testPage(1, 0, FlagBeginsStream, NoGranulePosition, payload, []uint32{uint32(len(payload))}, true)
	wire := buildPage(t, page)
	lastByte := len(wire) - 1

	wire[lastByte] ^= 0x01 // flip a bit inside the payload
	src := newSeekableBytes(wire)
	r := NewReader(src, nil)
	if _, err := r.ReadPage(); err != ErrCorruptPage {
		t.Fatalf("ReadPage on corrupted page err = %v, want ErrCorruptPage", err)
	}

	wire[lastByte] ^= 0x01 // restore the bit
	if err := r.SeekTo(0); err != nil {
		t.Fatalf("SeekTo(0): %v", err)
	}
	got, err := r.ReadPage()
	if err != nil {
		t.Fatalf("ReadPage on restored page: %v", err)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Fatalf("Payload = %q, want %q", got.Payload, payload)
	}
}

func TestSeekToPageRereadsSamePage(t *testing.T) {
	var wire []byte
	payloads := [][]byte{[]byte("first page"), []byte("second page"), []byte("third page")}
	for i, p := range payloads {
		flags := byte(0)
		if i == 0 {
			flags = FlagBeginsStream
		}
		page := testPage(9, uint32(i), flags, NoGranulePosition, p, []uint32{uint32(len(p))}, true)
		wire = append(wire, buildPage(t, page)...)
	}

	r := NewReader(newSeekableBytes(wire), nil)
	for range payloads {
		if _, err := r.ReadPage(); err != nil {
			t.Fatalf("initial ReadPage: %v", err)
		}
	}

	got, err := r.SeekToPage(1)
	if err != nil {
		t.Fatalf("SeekToPage(1): %v", err)
	}
	if !bytes.Equal(got.Payload, payloads[1]) {
		t.Fatalf("SeekToPage(1).Payload = %q, want %q", got.Payload, payloads[1])
	}
}

func TestSeekToPageDiscardsForwardToUnknownPage(t *testing.T) {
	var wire []byte
	payloads := [][]byte{[]byte("p0"), []byte("p1"), []byte("p2"), []byte("p3")}
	for i, p := range payloads {
		flags := byte(0)
		if i == 0 {
			flags = FlagBeginsStream
		}
		page := testPage(3, uint32(i), flags, NoGranulePosition, p, []uint32{uint32(len(p))}, true)
		wire = append(wire, buildPage(t, page)...)
	}

	r := NewReader(newSeekableBytes(wire), nil)
	if _, err := r.ReadPage(); err != nil {
		t.Fatalf("initial ReadPage: %v", err)
	}

	got, err := r.SeekToPage(3)
	if err != nil {
		t.Fatalf("SeekToPage(3): %v", err)
	}
	if !bytes.Equal(got.Payload, payloads[3]) {
		t.Fatalf("SeekToPage(3).Payload = %q, want %q", got.Payload, payloads[3])
	}
	if len(r.Index()) != 4 {
		t.Fatalf("Index() len = %d, want 4 after discarding forward through pages 1-2", len(r.Index()))
	}
}

func TestDiscontinuousSequenceFlagged(t *testing.T) {
	p1 := testPage(5, 0, FlagBeginsStream, NoGranulePosition, []byte("a"), []uint32{1}, true)
	p2 := testPage(5, 5, 0, NoGranulePosition, []byte("b"), []uint32{1}, true) // gap: expected seq 1

	wire := append(buildPage(t, p1), buildPage(t, p2)...)
	r := NewReader(bytes.NewReader(wire), nil)

	first, err := r.ReadPage()
	if err != nil || first.Discontinuous {
		t.Fatalf("first page: err=%v discontinuous=%v, want nil/false", err, first.Discontinuous)
	}
	second, err := r.ReadPage()
	if err != nil {
		t.Fatalf("second ReadPage: %v", err)
	}
	if !second.Discontinuous {
		t.Fatalf("second.Discontinuous = false, want true")
	}
}
