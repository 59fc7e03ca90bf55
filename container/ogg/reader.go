package ogg

import (
	"bufio"
	"encoding/binary"
	"io"
)

// maxPageBytes bounds a single Ogg page: 27-byte fixed header + up to 255
// lacing bytes + up to 255*255 bytes of payload (RFC 3533 section 6).
const maxPageBytes = fixedHeaderLen + 255 + 255*255

// peekBufferBytes is sized comfortably above maxPageBytes so a full page is
// always resident in the bufio buffer during resync, with headroom for the
// single-byte skips a garbage run forces along the way.
const peekBufferBytes = 1 << 17

// IndexEntry records enough about a previously read page to support
// byte-offset based seeking without re-scanning the stream from the start.
type IndexEntry struct {
	SeekOffset      int64
	GranulePosition uint64
	SerialNumber    uint32
	PageSequence    uint32
}

// Reader demuxes Ogg pages from a ByteSource, resynchronizing past corrupt
// or non-Ogg data and validating each page's CRC-32 before handing it back.
//
// Reader is not safe for concurrent use.
type Reader struct {
	buf    *bufio.Reader
	seeker io.Seeker
	pool   BufferPool

	pos int64 // bytes officially consumed (Discard'd) from the source so far

	index       []IndexEntry
	lastSeq     map[uint32]uint32
	nextPageIdx int32

	skipped    int64 // bytes discarded while resynchronizing since the last reported page
	lastResync bool
}

// NewReader constructs a Reader over src. pool may be nil, in which case
// page payloads are allocated directly.
func NewReader(src ByteSource, pool BufferPool) *Reader {
	r := &Reader{
		buf:     bufio.NewReaderSize(src, peekBufferBytes),
		pool:    pool,
		lastSeq: make(map[uint32]uint32),
	}
	if s, ok := src.(io.Seeker); ok {
		r.seeker = s
	}
	return r
}

// CanSeek reports whether the underlying source supports SeekTo.
func (r *Reader) CanSeek() bool { return r.seeker != nil }

// Index returns the page table accumulated so far, one entry per distinct
// page successfully returned by ReadPage; re-reading an already indexed page
// (via SeekToPage) does not add a second entry.
func (r *Reader) Index() []IndexEntry { return r.index }

// Position returns the number of source bytes consumed so far.
func (r *Reader) Position() int64 { return r.pos }

// TookNonContiguity reports, and clears, whether the page most recently
// returned by ReadPage required skipping bytes to resynchronize on its
// capture pattern. This is the pull-style last-event flag for the
// NonContiguity signal: decoding continues regardless, so it is not an
// error, only an observation callers may act on (logging, metrics).
func (r *Reader) TookNonContiguity() bool {
	v := r.lastResync
	r.lastResync = false
	return v
}

// SeekTo repositions the underlying source at an absolute byte offset and
// discards any buffered lookahead and per-serial sequence tracking, so the
// next ReadPage resynchronizes fresh from that point. It requires the
// source to implement io.Seeker.
func (r *Reader) SeekTo(byteOffset int64) error {
	if r.seeker == nil {
		return ErrOutOfRange
	}
	if _, err := r.seeker.Seek(byteOffset, io.SeekStart); err != nil {
		return err
	}
	r.buf.Reset(r.seeker.(io.Reader))
	r.pos = byteOffset
	r.lastSeq = make(map[uint32]uint32)
	return nil
}

// SeekToPage repositions the reader so the next ReadPage call re-produces
// the page at pageIndex. If the page was already seen, its recorded offset
// is seeked to directly and re-read (re-validating its CRC). Otherwise the
// reader reads forward from its current position, discarding intermediate
// pages, until pageIndex is reached.
func (r *Reader) SeekToPage(pageIndex int32) (*Page, error) {
	if int(pageIndex) < len(r.index) {
		entry := r.index[pageIndex]
		if err := r.SeekTo(entry.SeekOffset); err != nil {
			return nil, err
		}
		r.nextPageIdx = pageIndex
		return r.ReadPage()
	}
	for r.nextPageIdx < pageIndex {
		if _, err := r.ReadPage(); err != nil {
			return nil, err
		}
	}
	return r.ReadPage()
}

// ReadPage scans forward for the next well-formed, CRC-valid Ogg page and
// returns it. It returns io.EOF when the source is exhausted with no
// further capture pattern found.
func (r *Reader) ReadPage() (*Page, error) {
	for {
		if err := r.syncCapture(); err != nil {
			return nil, err
		}

		hdr, err := r.buf.Peek(fixedHeaderLen)
		if err != nil {
			return nil, ErrUnexpectedEOF
		}
		if hdr[4] != 0 {
			// Unsupported version; treat the capture as coincidental.
			r.skipByte()
			continue
		}

		segCount := int(hdr[26])
		withTable, err := r.buf.Peek(fixedHeaderLen + segCount)
		if err != nil {
			return nil, ErrUnexpectedEOF
		}
		lacing := make([]byte, segCount)
		copy(lacing, withTable[fixedHeaderLen:])
		lengths, finalComplete := ParseLacing(lacing)

		var payloadLen int
		for _, l := range lengths {
			payloadLen += int(l)
		}

		totalLen := fixedHeaderLen + segCount + payloadLen
		if totalLen > maxPageBytes {
			r.skipByte()
			continue
		}
		full, err := r.buf.Peek(totalLen)
		if err != nil {
			return nil, ErrUnexpectedEOF
		}

		declaredCRC := binary.LittleEndian.Uint32(full[22:26])
		computed := crc32WithZeroedField(full)
		if computed != declaredCRC {
			return nil, ErrCorruptPage
		}

		page := &Page{
			GranulePosition:       binary.LittleEndian.Uint64(full[6:14]),
			SerialNumber:          binary.LittleEndian.Uint32(full[14:18]),
			PageSequence:          binary.LittleEndian.Uint32(full[18:22]),
			CRC32:                 declaredCRC,
			SeekOffset:            r.pos,
			PageIndex:             r.nextPageIdx,
			Flags:                 full[5],
			PacketLengths:         lengths,
			FinalPacketIsComplete: finalComplete,
		}
		page.Payload = rent(r.pool, payloadLen)
		copy(page.Payload, full[fixedHeaderLen+segCount:totalLen])

		r.recordSequence(page)
		if int(r.nextPageIdx) >= len(r.index) {
			r.index = append(r.index, IndexEntry{
				SeekOffset:      page.SeekOffset,
				GranulePosition: page.GranulePosition,
				SerialNumber:    page.SerialNumber,
				PageSequence:    page.PageSequence,
			})
		}
		r.nextPageIdx++
		r.discard(totalLen)
		if r.skipped > 0 {
			r.lastResync = true
			r.skipped = 0
		}
		return page, nil
	}
}

// syncCapture advances the buffer until "OggS" is the next four bytes, or
// returns io.EOF if the source runs out first.
func (r *Reader) syncCapture() error {
	for {
		b, err := r.buf.Peek(4)
		if err != nil {
			if len(b) == 0 {
				return io.EOF
			}
			return io.EOF
		}
		if b[0] == 'O' && b[1] == 'g' && b[2] == 'g' && b[3] == 'S' {
			return nil
		}
		r.skipByte()
	}
}

func (r *Reader) discard(n int) {
	d, _ := r.buf.Discard(n)
	r.pos += int64(d)
}

// skipByte discards one byte as part of resynchronizing on a page's capture
// pattern, rather than consuming an already-parsed page's bytes. Bytes
// skipped this way accumulate into the NonContiguity signal reported by
// TookNonContiguity once a page is successfully returned.
func (r *Reader) skipByte() {
	r.discard(1)
	r.skipped++
}

// recordSequence flags pages whose sequence number does not immediately
// follow the previous page seen for the same serial number.
func (r *Reader) recordSequence(p *Page) {
	if prev, ok := r.lastSeq[p.SerialNumber]; ok {
		if p.PageSequence != prev+1 {
			p.Discontinuous = true
		}
	} else if !p.BeginsStream() {
		p.Discontinuous = true
	}
	r.lastSeq[p.SerialNumber] = p.PageSequence
}

// crc32WithZeroedField computes the Ogg page CRC over page, treating the
// four CRC field bytes at [22:26] as zero without mutating the caller's
// slice.
func crc32WithZeroedField(page []byte) uint32 {
	var crc uint32
	for i, b := range page {
		if i >= 22 && i < 26 {
			b = 0
		}
		crc = (crc << 8) ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}
