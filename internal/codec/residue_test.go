package codec

import (
	"testing"

	"github.com/Khitiara/Voltorb/internal/bitreader"
)

// trivialCodebook builds a one-entry codebook whose single codeword is a
// single zero bit, so DecodeScalar always returns entry 0 when read from an
// all-zero bitstream. Its VQ lookup row is filled with value.
func trivialCodebook(dim int, value float32) *Codebook {
	lengths := []int{1}
	codewords, maxLen, err := buildCodewords(lengths)
	if err != nil {
		panic(err)
	}
	cb := &Codebook{Dimensions: dim, Entries: 1, MapType: 1}
	cb.buildDecodeTable(lengths, codewords, maxLen)
	cb.Lookup = make([]float32, dim)
	for i := range cb.Lookup {
		cb.Lookup[i] = value
	}
	return cb
}

func TestResidueType2OnlyWritesActiveChannels(t *testing.T) {
	classBook := trivialCodebook(1, 0)
	dataBook := trivialCodebook(1, 5)
	books := []*Codebook{classBook, dataBook}

	stages := make([]int, 8)
	for i := range stages {
		stages[i] = -1
	}
	stages[0] = 1 // index of dataBook in books

	res := &Residue{
		Type:          2,
		Begin:         0,
		End:           4,
		PartitionSize: 1,
		Classify:      1,
		ClassBook:     0,
		Cascade:       []int{1},
		ClassBooks:    [][]int{stages},
		maxStages:     1,
	}

	out := [][]float32{
		make([]float32, 2),
		make([]float32, 2),
		make([]float32, 2),
	}
	doNotDecode := []bool{false, true, false}

	r := bitreader.NewFromBytes(make([]byte, 64))
	res.Decode(r, books, out, doNotDecode)

	if out[0][0] != 5 || out[0][1] != 5 {
		t.Fatalf("out[0] = %v, want [5 5]", out[0])
	}
	if out[1][0] != 0 || out[1][1] != 0 {
		t.Fatalf("out[1] = %v, want [0 0] (doNotDecode channel must stay untouched)", out[1])
	}
	if out[2][0] != 5 || out[2][1] != 5 {
		t.Fatalf("out[2] = %v, want [5 5]", out[2])
	}
}

func TestResidueType2AllChannelsExcludedIsNoop(t *testing.T) {
	classBook := trivialCodebook(1, 0)
	books := []*Codebook{classBook}
	res := &Residue{Type: 2, Begin: 0, End: 2, PartitionSize: 1, Classify: 1, ClassBook: 0}

	out := [][]float32{make([]float32, 2)}
	r := bitreader.NewFromBytes(make([]byte, 8))
	res.Decode(r, books, out, []bool{true})

	if out[0][0] != 0 || out[0][1] != 0 {
		t.Fatalf("out[0] = %v, want [0 0]", out[0])
	}
}
