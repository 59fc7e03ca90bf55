// errors.go defines the public error kinds the decoder surfaces, per the
// error handling design: truncated input, corrupt container framing,
// invariant violations, unsupported bitstream features, and out-of-range
// seeks are each distinct so callers can decide what's recoverable.

package voltorb

import "errors"

var (
	// ErrUnexpectedEof indicates the byte source ended mid-structure: mid
	// page header, mid packet, or mid setup table.
	ErrUnexpectedEof = errors.New("voltorb: unexpected end of stream")

	// ErrCorruptPage indicates an Ogg page's CRC-32 did not match its
	// header, or its lacing totals were inconsistent.
	ErrCorruptPage = errors.New("voltorb: corrupt page")

	// ErrInvalidData indicates a violated bitstream invariant: bad
	// version, duplicate header packet, nonzero reserved bits, an
	// out-of-range table index, a bad codebook signature, or an
	// incomplete Huffman tree.
	ErrInvalidData = errors.New("voltorb: invalid data")

	// ErrUnsupported indicates a structurally valid but unsupported
	// feature: a floor type other than 0/1, a residue type other than
	// 0/1/2, or a Vorbis version other than 0.
	ErrUnsupported = errors.New("voltorb: unsupported bitstream feature")

	// ErrOutOfRange indicates a seek target fell outside the stream, or a
	// negative relative seek was requested from an absolute origin.
	ErrOutOfRange = errors.New("voltorb: seek target out of range")

	// NonContiguity labels the recoverable resync event: it is never
	// returned by any decoder method. See Decoder.TookNonContiguity.
	NonContiguity = errors.New("voltorb: page resync skipped bytes")
)
