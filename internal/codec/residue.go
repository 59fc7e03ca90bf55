package codec

import "github.com/Khitiara/Voltorb/internal/bitreader"

// Residue decodes one of the three Vorbis I residue partition schemes into
// a shared channel x frequency-bin buffer.
//
// Reference: Vorbis I specification, section 8.6 (residue decode).
type Residue struct {
	Type          int
	Begin         int
	End           int
	PartitionSize int
	Classify      int // number of classifications
	ClassBook     int
	Cascade       []int // per classification, bitmask of active stages
	ClassBooks    [][]int // [classification][stage] -> codebook index, -1 if stage inactive

	maxStages int
}

func ReadResidue(r *bitreader.Reader, residueType int) (*Residue, error) {
	begin, got, _ := r.Read(24)
	end, got2, _ := r.Read(24)
	partSize, got3, _ := r.Read(24)
	classifications, got4, _ := r.Read(6)
	classBook, got5, _ := r.Read(8)
	if got != 24 || got2 != 24 || got3 != 24 || got4 != 6 || got5 != 8 {
		return nil, ErrTruncatedPacket
	}

	classCount := int(classifications) + 1
	cascade := make([]int, classCount)
	for i := range cascade {
		low, got, _ := r.Read(3)
		if got != 3 {
			return nil, ErrTruncatedPacket
		}
		hasMore, got, _ := r.Read(1)
		if got != 1 {
			return nil, ErrTruncatedPacket
		}
		bits := int(low)
		if hasMore == 1 {
			high, got, _ := r.Read(5)
			if got != 5 {
				return nil, ErrTruncatedPacket
			}
			bits |= int(high) << 3
		}
		cascade[i] = bits
	}

	maxStages := 0
	classBooks := make([][]int, classCount)
	for i, bits := range cascade {
		stages := make([]int, 8)
		for s := 0; s < 8; s++ {
			stages[s] = -1
			if bits&(1<<uint(s)) != 0 {
				b, got, _ := r.Read(8)
				if got != 8 {
					return nil, ErrTruncatedPacket
				}
				stages[s] = int(b)
				if s+1 > maxStages {
					maxStages = s + 1
				}
			}
		}
		classBooks[i] = stages
	}

	return &Residue{
		Type:          residueType,
		Begin:         int(begin),
		End:           int(end),
		PartitionSize: int(partSize),
		Classify:      classCount,
		ClassBook:     int(classBook),
		Cascade:       cascade,
		ClassBooks:    classBooks,
		maxStages:     maxStages,
	}, nil
}

// Decode runs the partitioned VQ residue decode over the channels selected
// by doNotDecode (true entries are skipped, matching the mapping's
// per-submap channel gating), writing into out[channel][bin].
//
// A scalar decode failure during any stage aborts the whole decode
// immediately; whatever has already been written to out is kept.
func (res *Residue) Decode(r *bitreader.Reader, books []*Codebook, out [][]float32, doNotDecode []bool) {
	channels := len(out)
	if channels == 0 {
		return
	}
	blockHalf := len(out[0])

	if res.Type == 2 {
		active := make([]int, 0, channels)
		for ch := 0; ch < channels; ch++ {
			if !doNotDecode[ch] {
				active = append(active, ch)
			}
		}
		if len(active) == 0 {
			return
		}
		n := len(active)
		virtual := make([]float32, n*blockHalf)
		res.decodeRows(r, books, [][]float32{virtual}, []bool{false}, n*blockHalf)
		for j, ch := range active {
			for i := 0; i < blockHalf; i++ {
				out[ch][i] += virtual[i*n+j]
			}
		}
		return
	}

	res.decodeRows(r, books, out, doNotDecode, blockHalf)
}

// decodeRows runs the partitioned classify/write loop shared by residue
// types 0 and 1, and (over a flattened single virtual row) type 2.
func (res *Residue) decodeRows(r *bitreader.Reader, books []*Codebook, out [][]float32, doNotDecode []bool, rowLen int) {
	rows := len(out)

	end := res.End
	if end > rowLen {
		end = rowLen
	}
	begin := res.Begin
	if begin > end || res.PartitionSize == 0 {
		return
	}

	classBook := books[res.ClassBook]
	partitionsPerRow := (end - begin) / res.PartitionSize
	classifications := make([][]int, rows)
	for ch := range classifications {
		classifications[ch] = make([]int, partitionsPerRow)
	}

	partitionsPerClassword := 1
	if classBook != nil && classBook.Dimensions > 0 {
		partitionsPerClassword = classBook.Dimensions
	}

	for stage := 0; stage < res.maxStages; stage++ {
		partitionCount := 0
		for partitionCount < partitionsPerRow {
			if stage == 0 {
				for ch := 0; ch < rows; ch++ {
					if doNotDecode[ch] {
						continue
					}
					entry := classBook.DecodeScalar(r)
					if entry < 0 {
						return
					}
					val := int(entry)
					temp := make([]int, partitionsPerClassword)
					for j := partitionsPerClassword - 1; j >= 0; j-- {
						temp[j] = val % res.Classify
						val /= res.Classify
					}
					for j := 0; j < partitionsPerClassword && partitionCount+j < partitionsPerRow; j++ {
						classifications[ch][partitionCount+j] = temp[j]
					}
				}
			}

			limit := minInt(partitionsPerClassword, partitionsPerRow-partitionCount)
			for sub := 0; sub < limit; sub++ {
				p := partitionCount + sub
				offset := begin + p*res.PartitionSize
				for ch := 0; ch < rows; ch++ {
					if doNotDecode[ch] {
						continue
					}
					class := classifications[ch][p]
					bookIdx := res.ClassBooks[class][stage]
					if bookIdx < 0 {
						continue
					}
					book := books[bookIdx]
					if book == nil {
						continue
					}
					if !res.writePartition(r, book, out[ch], offset, res.PartitionSize) {
						return
					}
				}
			}
			partitionCount += limit
		}
	}
}

// writePartition decodes one partition's worth of residue values using the
// given book. Types 0 and 1 differ only in how the decoded dimension
// vector is laid out across the partition; type 2's interleave is handled
// by the caller flattening channels into one virtual row first.
func (res *Residue) writePartition(r *bitreader.Reader, book *Codebook, row []float32, offset, size int) bool {
	dim := book.Dimensions
	if dim <= 0 {
		return true
	}
	steps := size / dim

	switch res.Type {
	case 0:
		for s := 0; s < steps; s++ {
			entry := book.DecodeScalar(r)
			if entry < 0 {
				return false
			}
			vec := book.Vector(int(entry))
			for d := 0; d < dim; d++ {
				idx := offset + s + d*steps
				if idx < len(row) {
					row[idx] += vec[d]
				}
			}
		}
	default: // 1 and 2 (2 decodes into a flattened virtual row)
		pos := offset
		for s := 0; s < steps; s++ {
			entry := book.DecodeScalar(r)
			if entry < 0 {
				return false
			}
			vec := book.Vector(int(entry))
			for d := 0; d < dim && pos+d < len(row); d++ {
				row[pos+d] += vec[d]
			}
			pos += dim
		}
	}
	return true
}
