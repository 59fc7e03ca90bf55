package codec

import (
	"errors"

	"github.com/Khitiara/Voltorb/internal/bitreader"
)

// Sentinel errors surfaced while parsing a codebook header out of a setup
// packet. The orchestrator wraps these into its own InvalidData/Unsupported
// error kinds; this package only needs to distinguish them internally.
var (
	ErrBadSignature    = errors.New("codec: bad codebook sync pattern")
	ErrBadHuffmanTree  = errors.New("codec: codebook codeword lengths do not form a complete or singleton tree")
	ErrBadVQType       = errors.New("codec: unsupported codebook lookup type")
	ErrTruncatedPacket = errors.New("codec: packet truncated while reading codebook")
)

const codebookSyncPattern = 0x564342

// codeEntry is one slot in a codebook's prefix table or overflow list.
type codeEntry struct {
	code    uint32
	length  uint8
	value   int32
	present bool
}

// Codebook is a decoded Vorbis codebook: a canonical Huffman decode table
// plus, for map types 1/2, a dense VQ lookup matrix.
//
// Reference: Vorbis I specification, section 3.2 (codebook decode).
type Codebook struct {
	Dimensions int
	Entries    int
	MapType    int

	prefixBits int
	maxBits    int
	prefix     []codeEntry
	overflow   []codeEntry

	// Lookup is the dense entries x Dimensions VQ table; nil for map type 0.
	Lookup []float32
}

// Vector returns entry i's row of the VQ lookup table.
func (c *Codebook) Vector(i int) []float32 {
	return c.Lookup[i*c.Dimensions : (i+1)*c.Dimensions]
}

// ReadCodebook parses one codebook header from r, positioned at the start
// of the codebook's sync pattern.
func ReadCodebook(r *bitreader.Reader) (*Codebook, error) {
	sync, got, _ := r.Read(24)
	if got != 24 {
		return nil, ErrTruncatedPacket
	}
	if sync != codebookSyncPattern {
		return nil, ErrBadSignature
	}

	dim, got, _ := r.Read(16)
	if got != 16 {
		return nil, ErrTruncatedPacket
	}
	entries, got, _ := r.Read(24)
	if got != 24 {
		return nil, ErrTruncatedPacket
	}

	lengths, err := readCodewordLengths(r, int(entries))
	if err != nil {
		return nil, err
	}

	codewords, maxLen, err := buildCodewords(lengths)
	if err != nil {
		return nil, err
	}

	cb := &Codebook{
		Dimensions: int(dim),
		Entries:    int(entries),
		MapType:    0,
	}
	cb.buildDecodeTable(lengths, codewords, maxLen)

	lookupType, got, _ := r.Read(4)
	if got != 4 {
		return nil, ErrTruncatedPacket
	}
	cb.MapType = int(lookupType)
	switch cb.MapType {
	case 0:
		// No VQ lookup.
	case 1, 2:
		if err := cb.readVQLookup(r, lengths); err != nil {
			return nil, err
		}
	default:
		return nil, ErrBadVQType
	}

	return cb, nil
}

// readCodewordLengths reads the per-entry codeword length table, handling
// both the ordered (run-length) and unordered (optionally sparse) layouts.
func readCodewordLengths(r *bitreader.Reader, entries int) ([]int, error) {
	ordered, got, _ := r.Read(1)
	if got != 1 {
		return nil, ErrTruncatedPacket
	}

	lengths := make([]int, entries)

	if ordered == 1 {
		curLen, got, _ := r.Read(5)
		if got != 5 {
			return nil, ErrTruncatedPacket
		}
		length := int(curLen) + 1
		cur := 0
		for cur < entries {
			bits := Ilog(uint32(entries - cur))
			n, got, _ := r.Read(bits)
			if got != bits {
				return nil, ErrTruncatedPacket
			}
			count := int(n)
			if cur+count > entries {
				return nil, ErrBadHuffmanTree
			}
			for i := 0; i < count; i++ {
				lengths[cur+i] = length
			}
			cur += count
			length++
		}
		return lengths, nil
	}

	sparse, got, _ := r.Read(1)
	if got != 1 {
		return nil, ErrTruncatedPacket
	}
	for i := 0; i < entries; i++ {
		if sparse == 1 {
			used, got, _ := r.Read(1)
			if got != 1 {
				return nil, ErrTruncatedPacket
			}
			if used == 0 {
				lengths[i] = 0
				continue
			}
		}
		l, got, _ := r.Read(5)
		if got != 5 {
			return nil, ErrTruncatedPacket
		}
		lengths[i] = int(l) + 1
	}
	return lengths, nil
}

// buildCodewords assigns canonical, bit-reversed Huffman codewords to each
// entry with a nonzero length, rejecting over- and under-specified trees
// (a tree with exactly one used entry is always accepted, as the standard
// allows a trivial singleton codebook of any length).
func buildCodewords(lengths []int) (codewords []uint32, maxLen int, err error) {
	used := 0
	for _, l := range lengths {
		if l > 0 {
			used++
			if l > maxLen {
				maxLen = l
			}
		}
	}
	codewords = make([]uint32, len(lengths))
	if used == 0 {
		return codewords, 0, nil
	}
	if used == 1 {
		return codewords, maxLen, nil
	}

	blCount := make([]uint32, maxLen+2)
	for _, l := range lengths {
		if l > 0 {
			blCount[l]++
		}
	}
	nextCode := make([]uint32, maxLen+2)
	var code uint32
	for length := 1; length <= maxLen; length++ {
		code = (code + blCount[length-1]) << 1
		nextCode[length] = code
	}
	for i, l := range lengths {
		if l == 0 {
			continue
		}
		if nextCode[l] >= uint32(1)<<uint(l) {
			return nil, 0, ErrBadHuffmanTree
		}
		codewords[i] = reverseBits(nextCode[l], l)
		nextCode[l]++
	}
	if nextCode[maxLen] != uint32(1)<<uint(maxLen) {
		return nil, 0, ErrBadHuffmanTree
	}
	return codewords, maxLen, nil
}

func reverseBits(v uint32, n int) uint32 {
	var r uint32
	for i := 0; i < n; i++ {
		r = (r << 1) | (v & 1)
		v >>= 1
	}
	return r
}

// buildDecodeTable constructs the prefix table and overflow list described
// in the codebook decode design: prefix_bits = min(max_used_length, 10).
func (c *Codebook) buildDecodeTable(lengths []int, codewords []uint32, maxLen int) {
	c.maxBits = maxLen
	c.prefixBits = minInt(maxLen, 10)
	if c.prefixBits < 0 {
		c.prefixBits = 0
	}
	size := 1 << uint(c.prefixBits)
	c.prefix = make([]codeEntry, size)

	for i, l := range lengths {
		if l == 0 {
			continue
		}
		entry := codeEntry{code: codewords[i], length: uint8(l), value: int32(i), present: true}
		if l <= c.prefixBits {
			mask := uint32(1)<<uint(l) - 1
			step := 1 << uint(l)
			for slot := int(codewords[i]); slot < size; slot += step {
				if uint32(slot)&mask == codewords[i] {
					c.prefix[slot] = entry
				}
			}
		} else {
			c.overflow = append(c.overflow, entry)
		}
	}
}

// DecodeScalar reads one Huffman-coded entry index from r, or returns -1 on
// underflow or no matching codeword (a corrupt packet, per the scalar
// decode failure contract).
func (c *Codebook) DecodeScalar(r *bitreader.Reader) int32 {
	if c.prefixBits > 0 {
		idx, got, _ := r.Peek(c.prefixBits)
		if got == c.prefixBits {
			if e := c.prefix[idx]; e.present {
				r.Advance(int(e.length))
				return e.value
			}
		}
	}
	if len(c.overflow) == 0 {
		return -1
	}
	bits, got, _ := r.Peek(c.maxBits)
	for _, e := range c.overflow {
		if got < int(e.length) {
			continue
		}
		mask := uint32(1)<<uint(e.length) - 1
		if uint32(bits)&mask == e.code {
			r.Advance(int(e.length))
			return e.value
		}
	}
	return -1
}

// readVQLookup reads the map_type 1/2 VQ lookup header and fills the dense
// entries x Dimensions matrix.
func (c *Codebook) readVQLookup(r *bitreader.Reader, lengths []int) error {
	minBits, got, _ := r.Read(32)
	if got != 32 {
		return ErrTruncatedPacket
	}
	deltaBits, got, _ := r.Read(32)
	if got != 32 {
		return ErrTruncatedPacket
	}
	valueBitsRaw, got, _ := r.Read(4)
	if got != 4 {
		return ErrTruncatedPacket
	}
	seqFlag, got, _ := r.Read(1)
	if got != 1 {
		return ErrTruncatedPacket
	}

	minValue := UnpackFloat32(uint32(minBits))
	deltaValue := UnpackFloat32(uint32(deltaBits))
	valueBits := int(valueBitsRaw) + 1
	sequenceP := seqFlag == 1

	var lookupValues int
	if c.MapType == 1 {
		lookupValues = lookup1Values(c.Entries, c.Dimensions)
	} else {
		lookupValues = c.Entries * c.Dimensions
	}

	multiplicands := make([]uint32, lookupValues)
	for i := range multiplicands {
		v, got, _ := r.Read(valueBits)
		if got != valueBits {
			return ErrTruncatedPacket
		}
		multiplicands[i] = uint32(v)
	}

	c.Lookup = make([]float32, c.Entries*c.Dimensions)
	for i := 0; i < c.Entries; i++ {
		row := c.Lookup[i*c.Dimensions : (i+1)*c.Dimensions]
		var last float32
		if c.MapType == 1 {
			divisor := 1
			for j := 0; j < c.Dimensions; j++ {
				moffset := (i / divisor) % lookupValues
				val := float32(multiplicands[moffset])*deltaValue + minValue + last
				if sequenceP {
					last = val
				}
				row[j] = val
				divisor *= lookupValues
			}
		} else {
			for j := 0; j < c.Dimensions; j++ {
				val := float32(multiplicands[i*c.Dimensions+j])*deltaValue + minValue + last
				if sequenceP {
					last = val
				}
				row[j] = val
			}
		}
	}
	return nil
}

// lookup1Values computes floor(entries^(1/dim)), the number of distinct
// multiplicand values per axis for a map_type 1 (cartesian) VQ lookup.
func lookup1Values(entries, dim int) int {
	if dim <= 0 {
		return 0
	}
	vals := 1
	for ipow(vals+1, dim) <= entries {
		vals++
	}
	for vals > 1 && ipow(vals, dim) > entries {
		vals--
	}
	return vals
}

func ipow(base, exp int) int {
	r := 1
	for i := 0; i < exp; i++ {
		r *= base
		if r < 0 {
			// Overflow guard: no legal codebook header produces a value
			// large enough to matter past this point.
			return r
		}
	}
	return r
}
