package ogg

// Framer reassembles logical packets from a sequence of pages belonging to
// a single logical bitstream (one serial number). Feed it pages in order
// via Push; it returns zero or more complete packets per page, buffering at
// most one in-progress packet that spans a page boundary.
type Framer struct {
	serial uint32

	pending     []byte // bytes of a packet still awaiting continuation
	havePending bool

	endOfStream bool
}

// NewFramer constructs a Framer that only accepts pages for the given
// serial number; pages for any other serial are rejected with
// ErrUnexpectedEOF-free ErrCorruptPage, since that indicates the caller is
// demultiplexing streams incorrectly upstream of the Framer.
func NewFramer(serial uint32) *Framer {
	return &Framer{serial: serial}
}

// Packet is one reassembled Vorbis packet plus the granule position of the
// page its final byte arrived on, needed for end-of-stream trimming.
type Packet struct {
	Data            []byte
	GranulePosition uint64
	// EndsPage is true when this packet was the last one completed by the
	// page that produced it.
	EndsPage bool
	// EndsStream is true when this packet was the last one completed by a
	// page carrying the end-of-stream flag.
	EndsStream bool
}

// Push feeds one page into the framer and returns the packets it completes,
// in order. A page that only contributes to an in-progress packet without
// finishing it returns no packets.
func (f *Framer) Push(p *Page) ([]Packet, error) {
	if p.SerialNumber != f.serial {
		return nil, ErrCorruptPage
	}

	if p.Discontinuous && f.havePending && !p.ContinuesPacket() {
		// The page that would have continued our in-progress packet never
		// arrived; the partial packet is unrecoverable.
		f.pending = nil
		f.havePending = false
	}

	if !p.ContinuesPacket() && f.havePending {
		// A non-continuation page arriving while a packet is still pending
		// means the continuation was lost; drop it rather than splice
		// unrelated bytes together.
		f.pending = nil
		f.havePending = false
	}

	lastCompleted := len(p.PacketLengths) - 1
	if !p.FinalPacketIsComplete {
		lastCompleted--
	}

	var out []Packet
	off := 0
	for i, plen := range p.PacketLengths {
		seg := p.Payload[off : off+int(plen)]
		off += int(plen)

		isFinalSegment := i == len(p.PacketLengths)-1
		completesHere := !isFinalSegment || p.FinalPacketIsComplete

		if i == 0 && p.ContinuesPacket() {
			if f.havePending {
				f.pending = append(f.pending, seg...)
			} else {
				// Continuation claimed but nothing pending: the page that
				// started this packet was lost. Drop the fragment.
				continue
			}
		} else {
			f.pending = append(f.pending[:0], seg...)
			f.havePending = true
		}

		if completesHere {
			data := f.pending
			f.pending = nil
			f.havePending = false
			out = append(out, Packet{
				Data:            data,
				GranulePosition: p.GranulePosition,
				EndsPage:        i == lastCompleted,
				EndsStream:      isFinalSegment && p.EndsStream(),
			})
		}
	}

	if p.EndsStream() {
		f.endOfStream = true
	}
	return out, nil
}

// EndOfStream reports whether a page with the end-of-stream flag has been
// pushed.
func (f *Framer) EndOfStream() bool { return f.endOfStream }
