// Package ogg implements resynchronizing, CRC-checked reads of the Ogg
// container format (RFC 3533): page parsing, lacing-to-packet-length
// recovery, a seekable page index, and cross-page packet reassembly.
//
// The package is codec-agnostic; Vorbis-specific header parsing lives in the
// decoder that consumes packets produced here.
package ogg

import "encoding/binary"

// Page flag bits, base zero per the Ogg header_type_flag byte.
const (
	FlagContinuesPacket = 1 << 0
	FlagBeginsStream    = 1 << 1
	FlagEndsStream      = 1 << 2
)

const (
	capturePattern = "OggS"
	fixedHeaderLen = 27
	// NoGranulePosition marks a page on which no packet ends.
	NoGranulePosition = ^uint64(0)
)

// Page is one parsed Ogg page: header metadata plus the packet-length
// table recovered from its lacing values.
type Page struct {
	GranulePosition uint64
	SerialNumber    uint32
	PageSequence    uint32
	CRC32           uint32

	// SeekOffset is the byte offset of the page's capture pattern within
	// the byte source that produced it.
	SeekOffset int64
	// PageIndex is this page's position in the reader's page table.
	PageIndex int32

	Flags byte

	// PacketLengths holds one entry per packet that starts or continues on
	// this page, recovered from the lacing values.
	PacketLengths []uint32

	// FinalPacketIsComplete is false when the page's last lacing value was
	// 255, meaning the final entry in PacketLengths continues onto the next
	// page.
	FinalPacketIsComplete bool

	// Payload is the page's packet data, exactly sum(PacketLengths) bytes,
	// rented from the buffer pool supplied to the Reader.
	Payload []byte

	// Discontinuous is set by Reader when this page's sequence number does
	// not immediately follow the previous page seen for the same serial
	// number, or when it is the first page seen for a serial without the
	// begins-stream flag set.
	Discontinuous bool
}

func (p *Page) ContinuesPacket() bool { return p.Flags&FlagContinuesPacket != 0 }
func (p *Page) BeginsStream() bool    { return p.Flags&FlagBeginsStream != 0 }
func (p *Page) EndsStream() bool      { return p.Flags&FlagEndsStream != 0 }

// ParseLacing derives per-packet lengths and the final-packet-complete flag
// from a raw lacing (segment table) byte sequence.
func ParseLacing(lacing []byte) (lengths []uint32, finalComplete bool) {
	var cur uint32
	finalComplete = true
	for _, b := range lacing {
		cur += uint32(b)
		if b < 255 {
			lengths = append(lengths, cur)
			cur = 0
			finalComplete = true
		} else {
			finalComplete = false
		}
	}
	if !finalComplete {
		lengths = append(lengths, cur)
	}
	return lengths, finalComplete
}

// BuildLacing reconstructs the lacing byte sequence for the given packet
// lengths, the inverse of ParseLacing. finalComplete must match the value
// ParseLacing would have returned for the produced lacing.
func BuildLacing(lengths []uint32, finalComplete bool) []byte {
	var out []byte
	for i, l := range lengths {
		isLast := i == len(lengths)-1
		for l >= 255 {
			out = append(out, 255)
			l -= 255
		}
		if isLast && !finalComplete {
			// The packet's final segment was itself exactly a multiple of
			// 255; it already ended on a 255 above and carries no
			// terminating short segment, since it continues on the next
			// page.
			continue
		}
		out = append(out, byte(l))
	}
	if len(lengths) == 0 {
		return nil
	}
	return out
}

// EncodePage serializes p into a well-formed, CRC-valid Ogg page, the
// inverse of what Reader.ReadPage parses. Useful for muxing and for
// constructing test fixtures.
func EncodePage(p *Page) []byte {
	lacing := BuildLacing(p.PacketLengths, p.FinalPacketIsComplete)
	header := encodeFixedHeader(p, len(lacing))
	full := append(header, lacing...)
	full = append(full, p.Payload...)
	crc := crc32WithZeroedField(full)
	binary.LittleEndian.PutUint32(full[22:26], crc)
	return full
}

func encodeFixedHeader(p *Page, segmentCount int) []byte {
	buf := make([]byte, fixedHeaderLen)
	copy(buf[0:4], capturePattern)
	buf[4] = 0 // version
	buf[5] = p.Flags
	binary.LittleEndian.PutUint64(buf[6:14], p.GranulePosition)
	binary.LittleEndian.PutUint32(buf[14:18], p.SerialNumber)
	binary.LittleEndian.PutUint32(buf[18:22], p.PageSequence)
	// CRC32 at [22:26] is filled in by the caller after zeroing.
	buf[26] = byte(segmentCount)
	return buf
}
