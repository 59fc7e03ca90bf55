package voltorb

import (
	"bytes"
	"testing"

	"github.com/Khitiara/Voltorb/container/ogg"
	"github.com/Khitiara/Voltorb/internal/codec"
)

// buildSilentStream encodes one real, CRC-valid Ogg page per entry in
// granules, each carrying a single one-byte silent audio packet (see
// silentAudioPacket), so SeekTo's page search and packet-granule walk run
// against actual wire bytes rather than a hand-positioned reader.
func buildSilentStream(t *testing.T, serial uint32, granules []uint64, endsStream int) []byte {
	t.Helper()
	var wire []byte
	for i, g := range granules {
		flags := byte(0)
		if i == 0 {
			flags |= ogg.FlagBeginsStream
		}
		if i == endsStream {
			flags |= ogg.FlagEndsStream
		}
		page := &ogg.Page{
			GranulePosition:       g,
			SerialNumber:          serial,
			PageSequence:          uint32(i),
			Flags:                 flags,
			PacketLengths:         []uint32{1},
			FinalPacketIsComplete: true,
			Payload:               []byte{0},
		}
		wire = append(wire, ogg.EncodePage(page)...)
	}
	return wire
}

func newSilentStreamDecoder(t *testing.T, bs0 int, granules []uint64, endsStream int) *Decoder {
	t.Helper()
	wire := buildSilentStream(t, 1, granules, endsStream)
	d := &Decoder{
		reader:      ogg.NewReader(bytes.NewReader(wire), nil),
		framer:      ogg.NewFramer(1),
		serial:      1,
		serialKnown: true,
		ident: &Identification{
			Channels: 1, SampleRate: 44100, BlockSize0: bs0, BlockSize1: bs0,
		},
		setup:               silentSetup(bs0),
		windows:             codec.NewWindowCache(bs0, bs0),
		freqScratch:         [][]float32{make([]float32, bs0/2)},
		clip:                true,
		firstAudioPageIndex: 0,
	}
	return d
}

func TestSeekToDelegatesThroughGranuleSeekable(t *testing.T) {
	// Granules reflect what this decoder actually emits for a run of
	// short-block packets: the first packet always primes overlap and
	// contributes nothing, so after page i's packet i*32 samples have been
	// emitted and page i's granule is i*32.
	d := newSilentStreamDecoder(t, 64, []uint64{0, 32, 64, 96}, 3)

	reached, err := d.SeekTo(50)
	if err != nil {
		t.Fatalf("SeekTo: %v", err)
	}
	if reached != 32 {
		t.Fatalf("SeekTo(50) = %d, want 32", reached)
	}
	if d.samplePosition != 32 {
		t.Fatalf("samplePosition = %d, want 32", d.samplePosition)
	}
	if d.prevValid {
		t.Fatalf("prevValid = true, want false so the next packet primes overlap instead of emitting")
	}

	sink := &sliceSink{}
	if err := d.Decode(sink); err != nil {
		t.Fatalf("Decode after seek: %v", err)
	}
	if !d.eosSeen {
		t.Fatalf("eosSeen = false, want true")
	}
	if d.samplePosition != 96 {
		t.Fatalf("final samplePosition = %d, want 96", d.samplePosition)
	}
	if len(sink.collected) != 64 {
		t.Fatalf("collected = %d samples, want 64 (samples remaining after the seek target)", len(sink.collected))
	}
}

func TestSeekToZeroRewindsToStart(t *testing.T) {
	d := newSilentStreamDecoder(t, 64, []uint64{0, 32, 64, 96}, 3)

	// Advance the decoder past the beginning first, so the rewind is
	// actually exercised rather than a no-op.
	if _, err := d.SeekTo(60); err != nil {
		t.Fatalf("SeekTo(60): %v", err)
	}

	reached, err := d.SeekTo(0)
	if err != nil {
		t.Fatalf("SeekTo(0): %v", err)
	}
	if reached != 0 {
		t.Fatalf("SeekTo(0) = %d, want 0", reached)
	}
	if d.samplePosition != 0 {
		t.Fatalf("samplePosition = %d, want 0", d.samplePosition)
	}
}

func TestSeekToPastEndReturnsOutOfRange(t *testing.T) {
	d := newSilentStreamDecoder(t, 64, []uint64{0, 32, 64, 96}, 3)

	if _, err := d.SeekTo(1000); err != ErrOutOfRange {
		t.Fatalf("SeekTo(1000) err = %v, want ErrOutOfRange", err)
	}
}

func TestSeekToNegativeReturnsOutOfRange(t *testing.T) {
	d := newSilentStreamDecoder(t, 64, []uint64{0, 32, 64, 96}, 3)

	if _, err := d.SeekTo(-1); err != ErrOutOfRange {
		t.Fatalf("SeekTo(-1) err = %v, want ErrOutOfRange", err)
	}
}
