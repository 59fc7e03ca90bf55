package bitreader

import "testing"

func TestReadSimple(t *testing.T) {
	r := NewFromBytes([]byte{0xFA, 0x23, 0x34, 0x51, 0x25, 0x8F, 0x40, 0x01, 0xF7})

	v, got, err := r.Read(5)
	if err != nil {
		t.Fatalf("Read(5): %v", err)
	}
	if got != 5 || v != 0x1A {
		t.Fatalf("Read(5) = (%#x, %d), want (0x1A, 5)", v, got)
	}
	if pos := r.Position(); pos != 5 {
		t.Fatalf("Position() = %d, want 5", pos)
	}
}

func TestPeekThenBigAdvance(t *testing.T) {
	r := NewFromBytes([]byte{0xFA, 0x23, 0x34, 0x51, 0x25, 0x8F, 0x40, 0x01, 0xF7})

	if _, err := r.Advance(5); err != nil {
		t.Fatalf("Advance(5): %v", err)
	}

	v, got, err := r.Peek(63)
	if err != nil {
		t.Fatalf("Peek(63): %v", err)
	}
	if got != 63 || v != 0x380A04792A89A11F {
		t.Fatalf("Peek(63) = (%#x, %d), want (0x380A04792A89A11F, 63)", v, got)
	}

	if _, err := r.Advance(1); err != nil {
		t.Fatalf("Advance(1): %v", err)
	}
	if _, err := r.Advance(64); err != nil {
		t.Fatalf("Advance(64): %v", err)
	}
	if pos := r.Position(); pos != 70 {
		t.Fatalf("Position() = %d, want 70", pos)
	}

	if err := r.Seek(-69, SeekCurrent); err != nil {
		t.Fatalf("Seek(-69, Current): %v", err)
	}
	if pos := r.Position(); pos != 1 {
		t.Fatalf("Position() after seek = %d, want 1", pos)
	}

	v, got, err = r.Peek(4)
	if err != nil {
		t.Fatalf("Peek(4): %v", err)
	}
	if got != 4 || v != 0xD {
		t.Fatalf("Peek(4) = (%#x, %d), want (0xD, 4)", v, got)
	}

	if err := r.Seek(1, SeekCurrent); err != nil {
		t.Fatalf("Seek(1, Current): %v", err)
	}
	if r.ReadBit() {
		t.Fatalf("ReadBit() = true, want false")
	}
}

func TestOutOfRange(t *testing.T) {
	r := NewFromBytes([]byte{0xFA, 0x23, 0x34, 0x51, 0x25, 0x8F, 0x40, 0x01, 0xF7})

	if _, _, err := r.Peek(65); err != ErrOutOfRange {
		t.Fatalf("Peek(65) err = %v, want ErrOutOfRange", err)
	}
	if _, _, err := r.Read(65); err != ErrOutOfRange {
		t.Fatalf("Read(65) err = %v, want ErrOutOfRange", err)
	}
	if _, _, err := r.Peek(-1); err != ErrOutOfRange {
		t.Fatalf("Peek(-1) err = %v, want ErrOutOfRange", err)
	}
	if _, _, err := r.Read(-1); err != ErrOutOfRange {
		t.Fatalf("Read(-1) err = %v, want ErrOutOfRange", err)
	}
}

func TestPeekIsIdempotent(t *testing.T) {
	r := NewFromBytes([]byte{0xFA, 0x23, 0x34, 0x51})

	v1, got1, _ := r.Peek(13)
	pos1 := r.Position()
	v2, got2, _ := r.Peek(13)
	pos2 := r.Position()

	if v1 != v2 || got1 != got2 || pos1 != pos2 {
		t.Fatalf("Peek not idempotent: (%#x,%d,%d) vs (%#x,%d,%d)", v1, got1, pos1, v2, got2, pos2)
	}
}

func TestReadEqualsPeekThenAdvance(t *testing.T) {
	data := []byte{0xFA, 0x23, 0x34, 0x51, 0x25}

	ra := NewFromBytes(data)
	pv, pgot, _ := ra.Peek(11)
	if _, err := ra.Advance(pgot); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	rb := NewFromBytes(data)
	rv, rgot, _ := rb.Read(11)

	if pv != rv || pgot != rgot || ra.Position() != rb.Position() {
		t.Fatalf("Peek+Advance != Read: (%#x,%d,%d) vs (%#x,%d,%d)",
			pv, pgot, ra.Position(), rv, rgot, rb.Position())
	}
}

func TestSeekThenUnseekRestoresState(t *testing.T) {
	r := NewFromBytes([]byte{0xFA, 0x23, 0x34, 0x51, 0x25, 0x8F})

	before, _, _ := r.Peek(20)
	n := 17
	if _, err := r.Advance(n); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := r.Seek(int64(-n), SeekCurrent); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	after, _, _ := r.Peek(20)

	if before != after {
		t.Fatalf("state not restored: before=%#x after=%#x", before, after)
	}
}
