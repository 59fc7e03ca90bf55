// seek.go implements granule-position seeking. Decoder.SeekTo delegates to
// decoderGranuleSeeker, the GranuleSeekable collaborator that performs the
// Ogg-page binary search and packet-granule walk directly against the
// Decoder's own reader and framer, so a seek leaves exactly the state
// Decode resumes from.
//
// Reference: Vorbis I specification, section 4.4 (seeking).
package voltorb

import (
	"io"

	"github.com/Khitiara/Voltorb/container/ogg"
	"github.com/Khitiara/Voltorb/internal/bitreader"
)

// TotalGranules returns the granule position of the last page belonging to
// this decoder's logical stream, scanning forward from the current
// position if it hasn't been discovered yet and restoring the reader's
// position afterward. It requires a seekable byte source.
func (d *Decoder) TotalGranules() (uint64, error) {
	if d.totalGranulesKnown {
		return d.totalGranules, nil
	}
	if !d.reader.CanSeek() {
		return 0, ErrOutOfRange
	}

	resumeIdx := int32(len(d.reader.Index()))
	var maxGranule uint64
	for {
		page, err := d.reader.ReadPage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if page.SerialNumber == d.serial && page.GranulePosition != ogg.NoGranulePosition {
			maxGranule = page.GranulePosition
		}
	}

	page, err := d.reader.SeekToPage(resumeIdx)
	if err != nil {
		return 0, err
	}
	d.queued = d.queued[:0]
	d.framer = ogg.NewFramer(d.serial)
	if page.SerialNumber == d.serial {
		packets, err := d.framer.Push(page)
		if err != nil {
			return 0, err
		}
		d.queued = append(d.queued, packets...)
	}

	d.totalGranules = maxGranule
	d.totalGranulesKnown = true
	return maxGranule, nil
}

// SeekTo repositions the decoder so the next Decode call resumes at
// targetSample, returning the granule position actually landed on (which is
// generally a little before targetSample, since decoding can only resume on
// a packet boundary). It delegates the page search and packet-granule walk
// to a GranuleSeekable collaborator with one packet of pre-roll, the
// seek_to(target, pre_roll=1, get_packet_granule_count) shape the source
// calls for. The pre-roll packet is still decoded by the next Decode call,
// but resetting prevValid makes the decode loop treat it as fresh
// overlap-add context rather than emitted output.
func (d *Decoder) SeekTo(targetSample int64) (int64, error) {
	if targetSample < 0 {
		return 0, ErrOutOfRange
	}

	total, err := d.TotalGranules()
	if err != nil {
		return 0, err
	}
	if uint64(targetSample) > total {
		return 0, ErrOutOfRange
	}

	seeker := &decoderGranuleSeeker{d: d}
	reached, err := seeker.SeekTo(uint64(targetSample), 1, d.packetGranuleCount)
	if err != nil {
		return 0, err
	}

	d.samplePosition = int64(reached)
	d.prevValid = false
	d.hasClipped = false
	d.eosSeen = false
	return d.samplePosition, nil
}

// decoderGranuleSeeker implements GranuleSeekable directly over a Decoder's
// own reader and framer rather than opening an independent one, so a seek
// repositions exactly the state Decode resumes from instead of racing a
// second reader over the same underlying byte source. It is constructed
// fresh for each SeekTo call and carries no state beyond the Decoder it
// mutates.
type decoderGranuleSeeker struct {
	d *Decoder
}

var _ GranuleSeekable = (*decoderGranuleSeeker)(nil)

func (s *decoderGranuleSeeker) TotalGranules() (uint64, error) { return s.d.TotalGranules() }

// SeekTo binary-searches the page index for the page at or before
// granulePosition, backs off preRollPackets pages for decode context, then
// repositions the decoder's reader and framer there and walks packets
// forward, calling packetGranuleCount to find the granule nearest the
// target without decoding any audio. The packet that reaches the target is
// left at the front of the decoder's packet queue, unconsumed, so the
// caller's next Decode call is the one that actually produces it.
func (s *decoderGranuleSeeker) SeekTo(granulePosition uint64, preRollPackets int, packetGranuleCount PacketGranuleCounter) (uint64, error) {
	d := s.d
	if !d.reader.CanSeek() {
		return 0, ErrOutOfRange
	}

	for {
		index := d.reader.Index()
		if len(index) > 0 {
			last := index[len(index)-1]
			if last.GranulePosition != ogg.NoGranulePosition && last.GranulePosition >= granulePosition {
				break
			}
		}
		if _, err := d.reader.ReadPage(); err != nil {
			break
		}
	}

	index := d.reader.Index()
	lo, hi := d.firstAudioPageIndex, int32(len(index))-1
	match := d.firstAudioPageIndex
	for lo <= hi {
		mid := lo + (hi-lo)/2
		entry := index[mid]
		if entry.SerialNumber != d.serial {
			lo = mid + 1
			continue
		}
		if entry.GranulePosition == ogg.NoGranulePosition || granulePosition < entry.GranulePosition {
			hi = mid - 1
		} else {
			match = mid
			lo = mid + 1
		}
	}

	pageIdx := match
	for i := 0; i < preRollPackets && pageIdx > d.firstAudioPageIndex; i++ {
		pageIdx--
	}

	page, err := d.reader.SeekToPage(pageIdx)
	if err != nil {
		return 0, err
	}

	d.queued = d.queued[:0]
	d.framer = ogg.NewFramer(d.serial)
	if page.SerialNumber == d.serial {
		packets, err := d.framer.Push(page)
		if err != nil {
			return 0, err
		}
		d.queued = append(d.queued, packets...)
	}

	var running uint64
	if pageIdx > 0 {
		if g := index[pageIdx-1].GranulePosition; g != ogg.NoGranulePosition {
			running = g
		}
	}

	for {
		for len(d.queued) > 0 {
			p := d.queued[0]
			n, err := packetGranuleCount(p.Data, p.EndsPage)
			if err != nil {
				return running, err
			}
			if running+uint64(n) >= granulePosition {
				return running, nil
			}
			running += uint64(n)
			d.queued = d.queued[1:]
		}
		next, err := d.reader.ReadPage()
		if err == io.EOF {
			return running, nil
		}
		if err != nil {
			return running, err
		}
		if next.SerialNumber != d.serial {
			continue
		}
		packets, err := d.framer.Push(next)
		if err != nil {
			return running, err
		}
		d.queued = append(d.queued, packets...)
	}
}

// packetGranuleCount computes how many PCM frames an audio packet
// contributes to the stream, reading only its mode selector and window
// flags - the same quantities decodeAudioPacket reads - without decoding
// any residue or running the inverse MDCT. It applies the same libvorbis
// granule quirk adjustment decodeAudioPacket does (see
// granuleQuirkAdjustment), so seek accounting stays exact across a
// long-to-short page boundary. It satisfies PacketGranuleCounter.
func (d *Decoder) packetGranuleCount(packet []byte, isLastInPage bool) (int, error) {
	r := bitreader.NewFromBytes(packet)
	isAudio, _, err := readPacketType(r)
	if err != nil {
		return 0, err
	}
	if !isAudio {
		return 0, nil
	}
	n, left, right, mode, err := d.readAudioHeader(r)
	if err != nil {
		return 0, err
	}
	window := d.windows.Get(n, left, right)
	count := window.SettledEnd - window.Start
	count -= d.granuleQuirkAdjustment(mode, right, isLastInPage)
	if count < 0 {
		count = 0
	}
	return count, nil
}
