// interfaces.go defines the external collaborators the decoder consumes
// but never implements itself: the buffer pool backing page payloads and
// the sink samples are written to. The byte source and Ogg wiring live in
// the container/ogg package.

package voltorb

import "github.com/Khitiara/Voltorb/container/ogg"

// BufferPool rents byte buffers for Ogg page payloads. Re-exported from
// container/ogg so callers only need to import this package.
type BufferPool = ogg.BufferPool

// ByteSource is the pull-style byte stream the decoder reads Ogg pages
// from. Re-exported from container/ogg.
type ByteSource = ogg.ByteSource

// Sink receives decoded PCM frames. GetWritable returns a slice of at
// least minSamples float32s (interleaved across channels) for the decoder
// to fill; Advance commits however many samples were actually written.
type Sink interface {
	GetWritable(minSamples int) []float32
	Advance(samplesWritten int)
}

// PacketGranuleCounter computes how many samples a packet would contribute
// to its logical stream without mutating decoder state, used by seek to
// walk forward from a page's granule position to an exact target.
type PacketGranuleCounter func(packet []byte, isLastInPage bool) (int, error)

// GranuleSeekable is the collaborator that performs the Ogg-page binary
// search a granule-position seek needs; the decoder only supplies the
// per-packet sample-count function it needs to refine a page-level match
// down to an exact granule position.
type GranuleSeekable interface {
	SeekTo(granulePosition uint64, preRollPackets int, packetGranuleCount PacketGranuleCounter) (uint64, error)
	TotalGranules() (uint64, error)
}
