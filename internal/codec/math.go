// Package codec implements the Vorbis I setup tree: codebooks, floor
// curves, residue partitions, channel mapping, mode/window selection, and
// the inverse MDCT. It has no knowledge of Ogg framing or packet dispatch;
// the orchestrator package drives it with a bit reader positioned at the
// start of each packet.
package codec

// Ilog returns the position of the highest set bit of v, i.e. the number
// of bits required to represent v (Vorbis I spec section 9.2.1). Ilog(0)
// is 0.
func Ilog(v uint32) int {
	n := 0
	for v != 0 {
		n++
		v >>= 1
	}
	return n
}

// UnpackFloat32 decodes a Vorbis-packed 32-bit float as used by codebook
// headers for min_value/delta_value (Vorbis I spec section 9.2.2).
func UnpackFloat32(bits uint32) float32 {
	mantissa := int32(bits & 0x1FFFFF)
	exponent := int((bits>>21)&0x3FF) - 788
	if bits&0x80000000 != 0 {
		mantissa = -mantissa
	}
	return float32(mantissa) * pow2(exponent)
}

func pow2(exp int) float32 {
	// float32 overflow/underflow outside this range isn't produced by any
	// legal codebook header; a plain loop is sufficient and branch-light.
	result := float32(1.0)
	if exp >= 0 {
		for i := 0; i < exp; i++ {
			result *= 2
		}
		return result
	}
	for i := 0; i < -exp; i++ {
		result /= 2
	}
	return result
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
