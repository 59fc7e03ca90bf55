// headers.go parses the packet type byte, the "vorbis" signature, and the
// identification and comment header packets that open every logical stream
// (the setup header is parsed by internal/codec's ReadSetup), and holds the
// decoded identification fields and comment multimap for the lifetime of
// the Decoder.
//
// Reference: Vorbis I specification, section 4.2 (header decode).
package voltorb

import (
	"strings"

	"github.com/Khitiara/Voltorb/internal/bitreader"
)

// vorbisSignature is the 6-octet ASCII string "vorbis" packed as a
// 48-bit little-endian integer, required immediately after the packet
// type byte in every header packet.
const vorbisSignature = 0x736962726f76

const (
	packetTypeIdentification = 1
	packetTypeComment        = 3
	packetTypeSetup          = 5
)

// Identification holds the fields decoded from the identification header,
// the first packet of every logical Vorbis stream.
type Identification struct {
	Version        uint32
	Channels       int
	SampleRate     int
	BitrateMax     int32
	BitrateNominal int32
	BitrateMin     int32
	BlockSize0     int
	BlockSize1     int
}

// Comments is the vendor string plus the case-insensitive key/value
// multimap decoded from the comment header.
type Comments struct {
	Vendor string

	// keys preserves first-seen casing per lower-cased key, purely so
	// Keys() can report something a human would recognize; lookups are
	// always case-insensitive.
	keys   map[string]string
	values map[string][]string
}

func newComments() *Comments {
	return &Comments{keys: make(map[string]string), values: make(map[string][]string)}
}

func (c *Comments) add(key, value string) {
	lower := strings.ToLower(key)
	if _, ok := c.keys[lower]; !ok {
		c.keys[lower] = key
	}
	c.values[lower] = append(c.values[lower], value)
}

// Get returns every value stored under key, case-insensitively, in the
// order they appeared in the comment header.
func (c *Comments) Get(key string) []string {
	return c.values[strings.ToLower(key)]
}

// First returns the first value stored under key, case-insensitively.
func (c *Comments) First(key string) (string, bool) {
	vs := c.Get(key)
	if len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// Keys returns the distinct comment keys present, in their first-seen
// casing.
func (c *Comments) Keys() []string {
	out := make([]string, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, k)
	}
	return out
}

// readPacketType reads the leading type byte shared by every Vorbis
// packet: bit 0 clear means an audio packet; otherwise the remaining 7
// bits form N, and the packet type is 2N+1.
func readPacketType(r *bitreader.Reader) (isAudio bool, headerType int, err error) {
	bit, got, _ := r.Read(1)
	if got != 1 {
		return false, 0, ErrUnexpectedEof
	}
	if bit == 0 {
		return true, 0, nil
	}
	n, got, _ := r.Read(7)
	if got != 7 {
		return false, 0, ErrUnexpectedEof
	}
	return false, 2*int(n) + 1, nil
}

// expectVorbisSignature consumes and validates the 6-octet "vorbis" magic
// that follows the type byte in every header packet.
func expectVorbisSignature(r *bitreader.Reader) error {
	sig, got, _ := r.Read(48)
	if got != 48 {
		return ErrUnexpectedEof
	}
	if sig != vorbisSignature {
		return ErrInvalidData
	}
	return nil
}

func readIdentification(r *bitreader.Reader) (*Identification, error) {
	version, got, _ := r.Read(32)
	if got != 32 {
		return nil, ErrUnexpectedEof
	}
	if version != 0 {
		return nil, ErrUnsupported
	}
	channels, got, _ := r.Read(8)
	if got != 8 {
		return nil, ErrUnexpectedEof
	}
	if channels == 0 {
		return nil, ErrInvalidData
	}
	sampleRate, got, _ := r.Read(32)
	if got != 32 {
		return nil, ErrUnexpectedEof
	}
	if sampleRate == 0 {
		return nil, ErrInvalidData
	}
	bitrateMax, got, _ := r.Read(32)
	if got != 32 {
		return nil, ErrUnexpectedEof
	}
	bitrateNominal, got, _ := r.Read(32)
	if got != 32 {
		return nil, ErrUnexpectedEof
	}
	bitrateMin, got, _ := r.Read(32)
	if got != 32 {
		return nil, ErrUnexpectedEof
	}
	bs0Exp, got, _ := r.Read(4)
	if got != 4 {
		return nil, ErrUnexpectedEof
	}
	bs1Exp, got, _ := r.Read(4)
	if got != 4 {
		return nil, ErrUnexpectedEof
	}
	framing, got, _ := r.Read(1)
	if got != 1 || framing != 1 {
		return nil, ErrInvalidData
	}

	bs0 := 1 << bs0Exp
	bs1 := 1 << bs1Exp
	if bs0 < 64 || bs1 > 8192 || bs0 > bs1 {
		return nil, ErrInvalidData
	}

	return &Identification{
		Version:        uint32(version),
		Channels:       int(channels),
		SampleRate:     int(sampleRate),
		BitrateMax:     int32(bitrateMax),
		BitrateNominal: int32(bitrateNominal),
		BitrateMin:     int32(bitrateMin),
		BlockSize0:     bs0,
		BlockSize1:     bs1,
	}, nil
}

func readComments(r *bitreader.Reader) (*Comments, error) {
	vendor, err := readLengthPrefixedUTF8(r)
	if err != nil {
		return nil, err
	}
	count, got, _ := r.Read(32)
	if got != 32 {
		return nil, ErrUnexpectedEof
	}

	c := newComments()
	c.Vendor = vendor
	for i := uint64(0); i < count; i++ {
		entry, err := readLengthPrefixedUTF8(r)
		if err != nil {
			return nil, err
		}
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, ErrInvalidData
		}
		c.add(key, value)
	}

	framing, got, _ := r.Read(1)
	if got != 1 || framing != 1 {
		return nil, ErrInvalidData
	}
	return c, nil
}

func readLengthPrefixedUTF8(r *bitreader.Reader) (string, error) {
	n, got, _ := r.Read(32)
	if got != 32 {
		return "", ErrUnexpectedEof
	}
	buf := make([]byte, n)
	for i := range buf {
		b, got, _ := r.Read(8)
		if got != 8 {
			return "", ErrUnexpectedEof
		}
		buf[i] = byte(b)
	}
	return string(buf), nil
}
