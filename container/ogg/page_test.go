package ogg

import (
	"reflect"
	"testing"
)

// buildPage encodes p into a well-formed, CRC-valid Ogg page, the inverse
// of what Reader.ReadPage parses. It is the shared fixture builder for
// every test in this package that needs real page bytes on the wire.
func buildPage(t *testing.T, p *Page) []byte {
	t.Helper()
	return EncodePage(p)
}

func TestLacingRoundTrip(t *testing.T) {
	cases := []struct {
		name          string
		lengths       []uint32
		finalComplete bool
	}{
		{"single short packet", []uint32{10}, true},
		{"two short packets", []uint32{10, 20}, true},
		{"exact multiple of 255", []uint32{255}, true},
		{"continues onto next page", []uint32{510}, false},
		{"empty", nil, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			lacing := BuildLacing(c.lengths, c.finalComplete)
			gotLengths, gotFinal := ParseLacing(lacing)
			if !reflect.DeepEqual(gotLengths, c.lengths) {
				t.Errorf("ParseLacing lengths = %v, want %v", gotLengths, c.lengths)
			}
			if gotFinal != c.finalComplete {
				t.Errorf("ParseLacing finalComplete = %v, want %v", gotFinal, c.finalComplete)
			}
		})
	}
}

func TestParseLacingTrailingZero(t *testing.T) {
	// A packet whose length is an exact multiple of 255 is terminated by a
	// trailing zero lacing byte, not left dangling.
	lengths, final := ParseLacing([]byte{255, 0})
	if !final || len(lengths) != 1 || lengths[0] != 255 {
		t.Fatalf("ParseLacing({255,0}) = (%v, %v), want ([255], true)", lengths, final)
	}
}
