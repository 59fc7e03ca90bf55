package codec

import (
	"testing"

	"github.com/Khitiara/Voltorb/internal/bitreader"
)

// bitWriter packs bits least-significant-bit first, the same convention
// bitreader.Reader consumes, so tests can hand-assemble packet fragments.
type bitWriter struct {
	buf    []byte
	bitPos int
}

func (w *bitWriter) writeBits(value uint64, n int) {
	for i := 0; i < n; i++ {
		byteIdx := w.bitPos / 8
		for byteIdx >= len(w.buf) {
			w.buf = append(w.buf, 0)
		}
		if (value>>uint(i))&1 == 1 {
			w.buf[byteIdx] |= 1 << uint(w.bitPos%8)
		}
		w.bitPos++
	}
}

func TestReadCodebookOrderedLengths(t *testing.T) {
	w := &bitWriter{}
	w.writeBits(codebookSyncPattern, 24)
	w.writeBits(1, 16) // dimensions
	w.writeBits(4, 24) // entries
	w.writeBits(1, 1)  // ordered
	w.writeBits(0, 5)  // initial length - 1 => length 1

	// Run-lengths for lengths 1,2,3,3 over 4 entries: Ilog(4)=3 bits "1" at
	// length 1, Ilog(3)=2 bits "1" at length 2, Ilog(2)=2 bits "2" at length 3.
	w.writeBits(1, 3)
	w.writeBits(1, 2)
	w.writeBits(2, 2)

	w.writeBits(0, 4) // lookup type 0

	r := bitreader.NewFromBytes(w.buf)
	cb, err := ReadCodebook(r)
	if err != nil {
		t.Fatalf("ReadCodebook: %v", err)
	}
	if cb.Dimensions != 1 || cb.Entries != 4 || cb.MapType != 0 {
		t.Fatalf("cb = %+v, want Dimensions=1 Entries=4 MapType=0", cb)
	}
}

func TestCodebookDecodeScalarRoundTrip(t *testing.T) {
	header := &bitWriter{}
	header.writeBits(codebookSyncPattern, 24)
	header.writeBits(1, 16)
	header.writeBits(4, 24)
	header.writeBits(1, 1)
	header.writeBits(0, 5)
	header.writeBits(1, 3)
	header.writeBits(1, 2)
	header.writeBits(2, 2)
	header.writeBits(0, 4)

	r := bitreader.NewFromBytes(header.buf)
	cb, err := ReadCodebook(r)
	if err != nil {
		t.Fatalf("ReadCodebook: %v", err)
	}

	// Canonical codewords for lengths [1,2,3,3], bit-reversed per the
	// decode table's convention: entry 0 -> 0 (1 bit), entry 1 -> 1 (2
	// bits), entry 2 -> 3 (3 bits), entry 3 -> 7 (3 bits).
	body := &bitWriter{}
	body.writeBits(0, 1)
	body.writeBits(1, 2)
	body.writeBits(3, 3)
	body.writeBits(7, 3)

	br := bitreader.NewFromBytes(body.buf)
	for want := int32(0); want < 4; want++ {
		got := cb.DecodeScalar(br)
		if got != want {
			t.Fatalf("DecodeScalar() = %d, want %d", got, want)
		}
	}
}

func TestCodebookDecodeScalarUnderflowReturnsNegativeOne(t *testing.T) {
	header := &bitWriter{}
	header.writeBits(codebookSyncPattern, 24)
	header.writeBits(1, 16)
	header.writeBits(4, 24)
	header.writeBits(1, 1)
	header.writeBits(0, 5)
	header.writeBits(1, 3)
	header.writeBits(1, 2)
	header.writeBits(2, 2)
	header.writeBits(0, 4)

	r := bitreader.NewFromBytes(header.buf)
	cb, err := ReadCodebook(r)
	if err != nil {
		t.Fatalf("ReadCodebook: %v", err)
	}

	empty := bitreader.NewFromBytes(nil)
	if got := cb.DecodeScalar(empty); got != -1 {
		t.Fatalf("DecodeScalar on empty stream = %d, want -1", got)
	}
}

func TestReadCodebookRejectsBadSignature(t *testing.T) {
	w := &bitWriter{}
	w.writeBits(0x112233, 24)
	r := bitreader.NewFromBytes(w.buf)
	if _, err := ReadCodebook(r); err != ErrBadSignature {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
}
