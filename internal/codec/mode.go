package codec

import "github.com/Khitiara/Voltorb/internal/bitreader"

// Mode is a per-packet window/transform selector: which block size a
// packet uses and which Mapping projects its channels onto floors and
// residues.
//
// Reference: Vorbis I specification, section 4.2.4 (mode decode).
type Mode struct {
	BlockFlag bool
	Mapping   int
}

// ReadMode parses one mode header entry. windowtype and transformtype are
// each 16-bit fields that must be zero in Vorbis I; together they form the
// 32-bit reserved field the mode design calls out.
func ReadMode(r *bitreader.Reader, mappingCount int) (Mode, error) {
	blockFlag, got, _ := r.Read(1)
	if got != 1 {
		return Mode{}, ErrTruncatedPacket
	}
	windowType, got, _ := r.Read(16)
	if got != 16 {
		return Mode{}, ErrTruncatedPacket
	}
	transformType, got, _ := r.Read(16)
	if got != 16 {
		return Mode{}, ErrTruncatedPacket
	}
	if windowType != 0 || transformType != 0 {
		return Mode{}, ErrInvalidMode
	}
	mapping, got, _ := r.Read(8)
	if got != 8 {
		return Mode{}, ErrTruncatedPacket
	}
	if int(mapping) >= mappingCount {
		return Mode{}, ErrInvalidMode
	}
	return Mode{BlockFlag: blockFlag == 1, Mapping: int(mapping)}, nil
}
