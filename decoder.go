// decoder.go implements the VorbisDecoder orchestrator: the packet-type
// dispatch and header state machine, the per-audio-packet decode loop
// (mode/window selection, mapping decode, inverse MDCT, overlap-add), PCM
// output to the caller's Sink, and granule-position trimming at end of
// stream.
//
// Reference: Vorbis I specification, section 4 (bitstream structure) and
// section 9 (helper equations).
package voltorb

import (
	"io"

	"github.com/Khitiara/Voltorb/container/ogg"
	"github.com/Khitiara/Voltorb/internal/bitreader"
	"github.com/Khitiara/Voltorb/internal/codec"
)

// ClipSample is the ceiling libvorbis-compatible decoders clamp samples to
// when clipping is enabled, rather than the full +/-1.0: it leaves enough
// headroom that a naive float-to-int16 conversion downstream never wraps.
const ClipSample = 0.99999994

// Option configures a Decoder at construction time.
type Option func(*Decoder)

// WithClipping enables or disables sample clipping to +/-ClipSample.
// Clipping is enabled by default.
func WithClipping(enabled bool) Option {
	return func(d *Decoder) { d.clip = enabled }
}

// Decoder decodes one logical Vorbis bitstream carried in an Ogg
// container. It owns the Ogg page reader and packet framer for that
// stream, the fully parsed setup tree, and the long-lived overlap-add
// buffers and window cache derived from it.
//
// A Decoder is not safe for concurrent use and decodes exactly one logical
// stream; chained or multiplexed streams are not supported.
type Decoder struct {
	reader *ogg.Reader
	framer *ogg.Framer
	queued []ogg.Packet

	serial      uint32
	serialKnown bool

	ident    *Identification
	comments *Comments
	setup    *codec.Setup

	windows *codec.WindowCache

	freqScratch [][]float32
	prevBlock   [][]float32
	prevWindow  *codec.Window
	prevValid   bool

	samplePosition int64
	eosSeen        bool
	hasClipped     bool
	clip           bool
	skippedPackets int

	firstAudioPageIndex int32

	totalGranules      uint64
	totalGranulesKnown bool
}

// NewDecoder constructs a Decoder over src, reading and validating the
// identification, comment, and setup header packets of the first logical
// stream encountered before returning. pool may be nil, in which case page
// payloads are allocated directly.
func NewDecoder(src ogg.ByteSource, pool ogg.BufferPool, opts ...Option) (*Decoder, error) {
	d := &Decoder{
		reader: ogg.NewReader(src, pool),
		clip:   true,
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.readHeaders(); err != nil {
		return nil, err
	}
	return d, nil
}

// Channels returns the number of audio channels declared by the
// identification header.
func (d *Decoder) Channels() int { return d.ident.Channels }

// SampleRate returns the sample rate in Hz declared by the identification
// header.
func (d *Decoder) SampleRate() int { return d.ident.SampleRate }

// Identification returns the parsed identification header.
func (d *Decoder) Identification() *Identification { return d.ident }

// Comments returns the parsed comment header.
func (d *Decoder) Comments() *Comments { return d.comments }

// HasClipped reports whether any sample has been clamped to +/-ClipSample
// since the Decoder was constructed or since the last SeekTo, which clears
// the flag.
func (d *Decoder) HasClipped() bool { return d.hasClipped }

// SamplePosition returns the decoder's position in PCM frames: the frames
// emitted so far, or after a SeekTo, the granule position it landed on plus
// the frames emitted since.
func (d *Decoder) SamplePosition() int64 { return d.samplePosition }

// SkippedPackets returns the number of audio packets abandoned mid-decode
// due to a corrupt codeword or out-of-range table index. Setup remains
// valid and decoding resumes at the next packet; see the error handling
// design for packet-level recoverability.
func (d *Decoder) SkippedPackets() int { return d.skippedPackets }

// TookNonContiguity reports, and clears, whether the most recent page read
// during Decode required skipping bytes to resynchronize on its capture
// pattern. Decoding continues regardless; this is purely observational.
func (d *Decoder) TookNonContiguity() bool { return d.reader.TookNonContiguity() }

// readHeaders consumes pages from the byte source until the
// identification, comment, and setup packets of one logical stream have
// all been parsed, in order, rejecting duplicates.
func (d *Decoder) readHeaders() error {
	for i := 0; i < 3; i++ {
		packet, err := d.nextPacket()
		if err != nil {
			return err
		}
		r := bitreader.NewFromBytes(packet.Data)
		isAudio, headerType, err := readPacketType(r)
		if err != nil {
			return err
		}
		if isAudio {
			return ErrInvalidData
		}
		if err := expectVorbisSignature(r); err != nil {
			return err
		}

		switch {
		case headerType == packetTypeIdentification && i == 0:
			ident, err := readIdentification(r)
			if err != nil {
				return err
			}
			d.ident = ident
			d.windows = codec.NewWindowCache(ident.BlockSize0, ident.BlockSize1)
			d.freqScratch = make([][]float32, ident.Channels)
			for ch := range d.freqScratch {
				d.freqScratch[ch] = make([]float32, ident.BlockSize1/2)
			}
		case headerType == packetTypeComment && i == 1:
			comments, err := readComments(r)
			if err != nil {
				return err
			}
			d.comments = comments
		case headerType == packetTypeSetup && i == 2:
			setup, err := codec.ReadSetup(r, d.ident.Channels)
			if err != nil {
				return translateCodecError(err)
			}
			d.setup = setup
		default:
			return ErrInvalidData
		}
	}
	d.firstAudioPageIndex = int32(len(d.reader.Index())) - 1
	if d.firstAudioPageIndex < 0 {
		d.firstAudioPageIndex = 0
	}
	return nil
}

// nextPacket pulls framed packets from the Ogg layer for the decoder's
// logical stream, reading and pushing pages as needed. The first serial
// number seen (the begins-stream page) is adopted as the stream this
// decoder tracks; pages for any other serial are ignored, since one
// Decoder instance handles exactly one logical bitstream.
func (d *Decoder) nextPacket() (ogg.Packet, error) {
	for len(d.queued) == 0 {
		page, err := d.reader.ReadPage()
		if err != nil {
			return ogg.Packet{}, translateCodecError(err)
		}
		if !d.serialKnown {
			d.serial = page.SerialNumber
			d.serialKnown = true
			d.framer = ogg.NewFramer(d.serial)
		}
		if page.SerialNumber != d.serial {
			continue
		}
		packets, err := d.framer.Push(page)
		if err != nil {
			return ogg.Packet{}, translateCodecError(err)
		}
		d.queued = append(d.queued, packets...)
	}
	p := d.queued[0]
	d.queued = d.queued[1:]
	return p, nil
}

// Decode drains the remainder of the stream, decoding every audio packet
// and writing its PCM frames to sink, until the end-of-stream page is
// consumed. It returns nil on a clean end of stream.
func (d *Decoder) Decode(sink Sink) error {
	for {
		packet, err := d.nextPacket()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := d.decodePacket(packet, sink); err != nil {
			return err
		}
		if d.eosSeen {
			return nil
		}
	}
}

// decodePacket dispatches one packet already known to follow the header
// trio: audio packets are decoded and written to sink; any other packet
// type is a duplicate header and fails the stream.
func (d *Decoder) decodePacket(packet ogg.Packet, sink Sink) error {
	r := bitreader.NewFromBytes(packet.Data)
	isAudio, _, err := readPacketType(r)
	if err != nil {
		return err
	}
	if !isAudio {
		return ErrInvalidData
	}

	if err := d.decodeAudioPacket(r, packet, sink); err != nil {
		d.skippedPackets++
		d.prevValid = false
	}
	if packet.EndsStream {
		d.eosSeen = true
	}
	return nil
}

// decodeAudioPacket runs one audio packet through mode selection, mapping
// decode, inverse MDCT, and windowed overlap-add, writing the newly
// finalized PCM region to sink.
//
// Reference: Vorbis I specification, section 4.3 (packet decode) and
// section 9.2 (window selection and overlap-add).
func (d *Decoder) decodeAudioPacket(r *bitreader.Reader, packet ogg.Packet, sink Sink) error {
	n, left, right, mode, err := d.readAudioHeader(r)
	if err != nil {
		return err
	}

	channels := d.ident.Channels
	freq := make([][]float32, channels)
	for ch := range freq {
		freq[ch] = d.freqScratch[ch][:n/2]
	}

	mapping := d.setup.Mappings[mode.Mapping]
	if err := mapping.DecodePacket(r, d.setup, n, freq); err != nil {
		return translateCodecError(err)
	}

	block := make([][]float32, channels)
	for ch := range block {
		block[ch] = codec.IMDCT(freq[ch], n)
	}

	window := d.windows.Get(n, left, right)
	for ch := range block {
		row := block[ch]
		for i, w := range window.Table {
			row[i] *= w
		}
	}

	if !d.prevValid {
		d.prevBlock = block
		d.prevWindow = window
		d.prevValid = true
		return nil
	}

	overlap := left / 2
	for ch := range block {
		prevTail := d.prevBlock[ch][d.prevWindow.SettledEnd:d.prevWindow.End]
		cur := block[ch][window.Start:]
		for i := 0; i < overlap && i < len(prevTail) && i < len(cur); i++ {
			cur[i] += prevTail[i]
		}
	}

	emitLen := window.SettledEnd - window.Start
	emitLen -= d.granuleQuirkAdjustment(mode, right, packet.EndsPage)
	if emitLen < 0 {
		emitLen = 0
	}
	if packet.EndsStream && packet.GranulePosition != ogg.NoGranulePosition {
		target := int64(packet.GranulePosition)
		remaining := target - d.samplePosition
		if remaining < 0 {
			remaining = 0
		}
		if remaining < int64(emitLen) {
			emitLen = int(remaining)
		}
	}

	if err := d.writeFrames(block, window.Start, emitLen, sink); err != nil {
		return err
	}
	d.samplePosition += int64(emitLen)

	d.prevBlock = block
	d.prevWindow = window
	return nil
}

// readAudioHeader reads the per-packet mode selector and, for long blocks,
// the previous/next block-size flags, returning this packet's block size
// and its left/right neighbor sizes for window lookup.
func (d *Decoder) readAudioHeader(r *bitreader.Reader) (n, left, right int, mode codec.Mode, err error) {
	modeIdx, got, _ := r.Read(d.setup.ModeBits)
	if got != d.setup.ModeBits {
		return 0, 0, 0, codec.Mode{}, ErrUnexpectedEof
	}
	if int(modeIdx) >= len(d.setup.Modes) {
		return 0, 0, 0, codec.Mode{}, ErrInvalidData
	}
	mode = d.setup.Modes[modeIdx]

	bs0, bs1 := d.ident.BlockSize0, d.ident.BlockSize1
	if !mode.BlockFlag {
		return bs0, bs0, bs0, mode, nil
	}

	prevFlag, got, _ := r.Read(1)
	if got != 1 {
		return 0, 0, 0, codec.Mode{}, ErrUnexpectedEof
	}
	nextFlag, got, _ := r.Read(1)
	if got != 1 {
		return 0, 0, 0, codec.Mode{}, ErrUnexpectedEof
	}
	left = bs0
	if prevFlag == 1 {
		left = bs1
	}
	right = bs0
	if nextFlag == 1 {
		right = bs1
	}
	return bs1, left, right, mode, nil
}

// granuleQuirkAdjustment returns the libvorbis granule quirk correction for
// one audio packet: when a long block is the last packet on its page and its
// next-block-size flag says the following block (which starts the next
// page) is short, libvorbis's own granule-position accounting undercounts
// this packet's contribution by (bs1-bs0)/4 samples relative to the natural
// valid length. Subtracting that here keeps sample_position and seek
// granule accounting bit-compatible with it at that exact boundary.
//
// Reference: Vorbis I specification, section 4.9 (libvorbis granule quirk).
func (d *Decoder) granuleQuirkAdjustment(mode codec.Mode, right int, isLastInPage bool) int {
	bs0, bs1 := d.ident.BlockSize0, d.ident.BlockSize1
	if !isLastInPage || !mode.BlockFlag || right != bs0 || bs1 <= bs0 {
		return 0
	}
	return (bs1 - bs0) / 4
}

// writeFrames clamps (if enabled) and interleaves channels[*][start:start+n]
// into sink.
func (d *Decoder) writeFrames(channels [][]float32, start, n int, sink Sink) error {
	remaining := n
	offset := start
	for remaining > 0 {
		out := sink.GetWritable(remaining * len(channels))
		frames := len(out) / len(channels)
		if frames <= 0 {
			return ErrUnexpectedEof
		}
		if frames > remaining {
			frames = remaining
		}
		for i := 0; i < frames; i++ {
			for ch := range channels {
				v := channels[ch][offset+i]
				if d.clip {
					if v > ClipSample {
						v = ClipSample
						d.hasClipped = true
					} else if v < -ClipSample {
						v = -ClipSample
						d.hasClipped = true
					}
				}
				out[i*len(channels)+ch] = v
			}
		}
		sink.Advance(frames * len(channels))
		offset += frames
		remaining -= frames
	}
	return nil
}

// translateCodecError maps internal codec and container/ogg sentinel errors
// onto the package's public error kinds.
func translateCodecError(err error) error {
	switch err {
	case nil:
		return nil
	case ogg.ErrCorruptPage:
		return ErrCorruptPage
	case ogg.ErrUnexpectedEOF:
		return ErrUnexpectedEof
	case codec.ErrBadSignature, codec.ErrBadHuffmanTree, codec.ErrBadVQType,
		codec.ErrInvalidMode, codec.ErrInvalidMapping, codec.ErrInvalidResidue,
		codec.ErrInvalidFloor:
		return ErrInvalidData
	case codec.ErrUnsupportedFloor, codec.ErrUnsupportedResid:
		return ErrUnsupported
	case codec.ErrTruncatedPacket:
		return ErrUnexpectedEof
	default:
		return err
	}
}
