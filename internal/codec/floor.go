package codec

import (
	"math"
	"sort"
	"sync"

	"github.com/Khitiara/Voltorb/internal/bitreader"
)

// Floor represents one of the two Vorbis I floor curve shapes. Both satisfy
// this capability pair rather than a deeper class hierarchy, per the
// polymorphic-floors design note: unpack reads a channel's per-packet floor
// data (nil meaning "no energy: silence"), apply multiplies a decoded
// residue row by the resulting spectral envelope.
type Floor interface {
	Unpack(r *bitreader.Reader, books []*Codebook) (interface{}, error)
	Apply(data interface{}, blockSize int, out []float32)
}

// ---- Floor0: LSP-derived envelope -----------------------------------------

// Floor0 is the legacy LSP-based floor shape. Virtually no contemporary
// Vorbis encoder emits it (floor 1 dominates in the wild), but the setup
// tree must still be able to parse and apply it.
//
// Reference: Vorbis I specification, section 7.2 (floor 0 decode).
type Floor0 struct {
	Order       int
	Rate        int
	BarkMapSize int
	AmpBits     int
	AmpOffset   int
	Books       []int
	bookBits    int

	mu     sync.Mutex
	caches map[int]*floor0Cache
}

type floor0Cache struct {
	cosMap []float64 // cos(wdel*barkMap[i]) per frequency bin, length n
}

// Floor0Data is one channel's decoded floor-0 parameters for one packet.
type Floor0Data struct {
	Amplitude int
	Coeff     []float32 // order LSP frequencies, radians
}

func ReadFloor0(r *bitreader.Reader) (*Floor0, error) {
	order, got, _ := r.Read(8)
	rate, got2, _ := r.Read(16)
	barkMapSize, got3, _ := r.Read(16)
	ampBits, got4, _ := r.Read(6)
	ampOffset, got5, _ := r.Read(8)
	numBooks, got6, _ := r.Read(4)
	if got != 8 || got2 != 16 || got3 != 16 || got4 != 6 || got5 != 8 || got6 != 4 {
		return nil, ErrTruncatedPacket
	}
	count := int(numBooks) + 1
	books := make([]int, count)
	for i := range books {
		b, got, _ := r.Read(8)
		if got != 8 {
			return nil, ErrTruncatedPacket
		}
		books[i] = int(b)
	}
	return &Floor0{
		Order:       int(order),
		Rate:        int(rate),
		BarkMapSize: int(barkMapSize),
		AmpBits:     int(ampBits),
		AmpOffset:   int(ampOffset),
		Books:       books,
		bookBits:    Ilog(uint32(count - 1)),
		caches:      make(map[int]*floor0Cache),
	}, nil
}

func (f *Floor0) Unpack(r *bitreader.Reader, books []*Codebook) (interface{}, error) {
	if f.AmpBits == 0 {
		return nil, nil
	}
	amp, got, _ := r.Read(f.AmpBits)
	if got != f.AmpBits {
		return nil, ErrTruncatedPacket
	}
	if amp == 0 {
		return nil, nil
	}

	bookSel, got, _ := r.Read(f.bookBits)
	if got != f.bookBits {
		return nil, ErrTruncatedPacket
	}
	if int(bookSel) >= len(f.Books) {
		return nil, ErrInvalidFloor
	}
	book := books[f.Books[bookSel]]
	if book == nil {
		return nil, ErrInvalidFloor
	}

	coeff := make([]float32, 0, f.Order+book.Dimensions)
	var last float32
	for len(coeff) < f.Order {
		entry := book.DecodeScalar(r)
		if entry < 0 {
			return nil, ErrInvalidFloor
		}
		for _, v := range book.Vector(int(entry)) {
			coeff = append(coeff, v+last)
		}
		last = coeff[len(coeff)-1]
	}
	coeff = coeff[:f.Order]

	return &Floor0Data{Amplitude: int(amp), Coeff: coeff}, nil
}

func barkScale(x float64) float64 {
	return 13.1*math.Atan(0.00074*x) + 2.24*math.Atan(x*x*1.85e-8) + 1e-4*x
}

func (f *Floor0) getCache(n int) *floor0Cache {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.caches[n]; ok {
		return c
	}
	barkMap := make([]int32, n)
	denom := barkScale(0.5 * float64(f.Rate))
	for i := 0; i < n; i++ {
		v := int32(barkScale(float64(f.Rate)*float64(i)/(2*float64(n))) * float64(f.BarkMapSize) / denom)
		if int(v) >= f.BarkMapSize {
			v = int32(f.BarkMapSize - 1)
		}
		barkMap[i] = v
	}
	wdel := math.Pi / float64(f.BarkMapSize)
	cosMap := make([]float64, n)
	for i, m := range barkMap {
		cosMap[i] = math.Cos(wdel * float64(m))
	}
	c := &floor0Cache{cosMap: cosMap}
	f.caches[n] = c
	return c
}

// Apply reconstructs the LSP envelope and multiplies it into out, following
// the libvorbis lsp_to_curve product-recurrence shape. Floor 0's exact dB
// normalization constants are reconstructed from the general algorithm
// description rather than verified against a reference decoder output, a
// gap worth closing if floor-0 content is ever encountered in practice; see
// DESIGN.md.
func (f *Floor0) Apply(data interface{}, blockSize int, out []float32) {
	n := blockSize / 2
	d, _ := data.(*Floor0Data)
	if d == nil {
		for i := 0; i < n && i < len(out); i++ {
			out[i] = 0
		}
		return
	}

	cache := f.getCache(n)
	cosCoeff := make([]float64, len(d.Coeff))
	for j, c := range d.Coeff {
		cosCoeff[j] = math.Cos(float64(c))
	}

	ampMax := float64((int64(1) << uint(f.AmpBits)) - 1)
	ampLinearDB := float64(d.Amplitude) / ampMax * float64(f.AmpOffset)

	for i := 0; i < n && i < len(out); i++ {
		w := cache.cosMap[i]
		p, q := 0.5, 0.5
		j := 0
		for ; j+1 < f.Order; j += 2 {
			q *= w - cosCoeff[j]
			p *= w - cosCoeff[j+1]
		}
		if f.Order%2 == 1 {
			p *= 1 - w*w
		} else {
			p *= 1 - w
			q *= 1 + w
		}
		p *= p
		q *= q
		denom := math.Sqrt(p + q)
		if denom < 1e-9 {
			denom = 1e-9
		}
		linear := math.Exp(ampLinearDB*(math.Ln10/20) - math.Log(denom))
		out[i] *= float32(linear)
	}
}

// ---- Floor1: line-segment envelope -----------------------------------------

const floor1MaxClasses = 16

// Floor1 is the partitioned line-segment floor shape used by essentially
// all real-world Vorbis content.
//
// Reference: Vorbis I specification, section 7.3 (floor 1 decode).
type Floor1 struct {
	PartitionClass   []int
	ClassDimensions  []int
	ClassSubclasses  []int
	ClassMasterbooks []int
	SubclassBooks    [][]int // [class][subclass], -1 means "no book"
	Multiplier       int
	XList            []int

	lowNeighbor  []int
	highNeighbor []int
	sortOrder    []int // indices into XList, ascending by X
}

// Floor1Data is one channel's decoded floor-1 posts for one packet.
type Floor1Data struct {
	Y      []int
	Active []bool
}

func ReadFloor1(r *bitreader.Reader) (*Floor1, error) {
	partitionCount, got, _ := r.Read(5)
	if got != 5 {
		return nil, ErrTruncatedPacket
	}
	partitionClass := make([]int, partitionCount)
	maxClass := -1
	for i := range partitionClass {
		c, got, _ := r.Read(4)
		if got != 4 {
			return nil, ErrTruncatedPacket
		}
		partitionClass[i] = int(c)
		if int(c) > maxClass {
			maxClass = int(c)
		}
	}

	classCount := maxClass + 1
	classDims := make([]int, classCount)
	classSubs := make([]int, classCount)
	classMasterbooks := make([]int, classCount)
	subclassBooks := make([][]int, classCount)
	for i := 0; i < classCount; i++ {
		dim, got, _ := r.Read(3)
		if got != 3 {
			return nil, ErrTruncatedPacket
		}
		classDims[i] = int(dim) + 1

		sub, got, _ := r.Read(2)
		if got != 2 {
			return nil, ErrTruncatedPacket
		}
		classSubs[i] = int(sub)

		if classSubs[i] != 0 {
			mb, got, _ := r.Read(8)
			if got != 8 {
				return nil, ErrTruncatedPacket
			}
			classMasterbooks[i] = int(mb)
		}

		n := 1 << uint(classSubs[i])
		books := make([]int, n)
		for j := 0; j < n; j++ {
			b, got, _ := r.Read(8)
			if got != 8 {
				return nil, ErrTruncatedPacket
			}
			books[j] = int(b) - 1
		}
		subclassBooks[i] = books
	}

	mult, got, _ := r.Read(2)
	if got != 2 {
		return nil, ErrTruncatedPacket
	}
	rangeBits, got, _ := r.Read(4)
	if got != 4 {
		return nil, ErrTruncatedPacket
	}

	xList := []int{0, 1 << uint(rangeBits)}
	for i := 0; i < int(partitionCount); i++ {
		class := partitionClass[i]
		for j := 0; j < classDims[class]; j++ {
			v, got, _ := r.Read(int(rangeBits))
			if got != int(rangeBits) {
				return nil, ErrTruncatedPacket
			}
			xList = append(xList, int(v))
		}
	}

	f := &Floor1{
		PartitionClass:   partitionClass,
		ClassDimensions:  classDims,
		ClassSubclasses:  classSubs,
		ClassMasterbooks: classMasterbooks,
		SubclassBooks:    subclassBooks,
		Multiplier:       int(mult) + 1,
		XList:            xList,
	}
	f.precomputeNeighbors()
	return f, nil
}

// precomputeNeighbors finds, for each post after the first two, the
// nearest lower-X and higher-X posts among all posts preceding it in
// XList order, plus the X-ascending traversal order used at render time.
// This depends only on XList, so it runs once at setup.
func (f *Floor1) precomputeNeighbors() {
	n := len(f.XList)
	f.lowNeighbor = make([]int, n)
	f.highNeighbor = make([]int, n)
	for i := 2; i < n; i++ {
		low, high := 0, 1
		for j := 0; j < i; j++ {
			if f.XList[j] > f.XList[low] && f.XList[j] < f.XList[i] {
				low = j
			}
			if f.XList[j] < f.XList[high] && f.XList[j] > f.XList[i] {
				high = j
			}
		}
		f.lowNeighbor[i] = low
		f.highNeighbor[i] = high
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return f.XList[order[a]] < f.XList[order[b]] })
	f.sortOrder = order
}

func (f *Floor1) Unpack(r *bitreader.Reader, books []*Codebook) (interface{}, error) {
	nonzero, got, _ := r.Read(1)
	if got != 1 {
		return nil, ErrTruncatedPacket
	}
	if nonzero == 0 {
		return nil, nil
	}

	n := len(f.XList)
	rangeBits := Ilog(uint32(f.XList[1] - 1))
	y := make([]int, n)

	v0, got, _ := r.Read(rangeBits)
	if got != rangeBits {
		return nil, ErrTruncatedPacket
	}
	v1, got, _ := r.Read(rangeBits)
	if got != rangeBits {
		return nil, ErrTruncatedPacket
	}
	y[0], y[1] = int(v0), int(v1)

	offset := 2
	for _, class := range f.PartitionClass {
		cdim := f.ClassDimensions[class]
		cbits := f.ClassSubclasses[class]
		csub := (1 << uint(cbits)) - 1

		cval := uint32(0)
		if cbits > 0 {
			book := books[f.ClassMasterbooks[class]]
			entry := book.DecodeScalar(r)
			if entry < 0 {
				return nil, ErrInvalidFloor
			}
			cval = uint32(entry)
		}
		for j := 0; j < cdim; j++ {
			bookIdx := f.SubclassBooks[class][int(cval)&csub]
			cval >>= uint(cbits)
			if bookIdx < 0 {
				y[offset+j] = 0
				continue
			}
			entry := books[bookIdx].DecodeScalar(r)
			if entry < 0 {
				return nil, ErrInvalidFloor
			}
			y[offset+j] = int(entry)
		}
		offset += cdim
	}

	data := &Floor1Data{Y: make([]int, n), Active: make([]bool, n)}
	data.Active[0], data.Active[1] = true, true

	finalY := make([]int, n)
	finalY[0], finalY[1] = y[0], y[1]
	rng := f.XList[1]

	for i := 2; i < n; i++ {
		lo, hi := f.lowNeighbor[i], f.highNeighbor[i]
		predicted := renderPoint(f.XList[lo], finalY[lo], f.XList[hi], finalY[hi], f.XList[i])

		val := y[i]
		highroom := rng - predicted
		lowroom := predicted
		var room int
		if highroom < lowroom {
			room = highroom * 2
		} else {
			room = lowroom * 2
		}

		if val != 0 {
			data.Active[i] = true
			if val >= room {
				if highroom > lowroom {
					finalY[i] = val - lowroom + predicted
				} else {
					finalY[i] = predicted - val + highroom - 1
				}
			} else if val&1 != 0 {
				finalY[i] = predicted - (val+1)/2
			} else {
				finalY[i] = predicted + val/2
			}
		} else {
			data.Active[i] = false
			finalY[i] = predicted
		}
	}
	data.Y = finalY
	return data, nil
}

// renderPoint is the standard integer DDA line predictor: the Y value at x
// on the line through (x0,y0)-(x1,y1).
func renderPoint(x0, y0, x1, y1, x int) int {
	dy := y1 - y0
	adx := x1 - x0
	if adx == 0 {
		return y0
	}
	ady := dy
	if ady < 0 {
		ady = -ady
	}
	err := ady * (x - x0)
	off := err / adx
	if dy < 0 {
		return y0 - off
	}
	return y0 + off
}

var (
	inverseDBOnce  sync.Once
	inverseDBTable [256]float32
)

// floor1DBStep is the per-index dB step of the inverse-dB lookup table;
// reconstructed from the general shape of libvorbis's FLOOR1_fromdB_LOOKUP
// rather than copied from a verified constant. See DESIGN.md.
const floor1DBStep = 0.125

func getInverseDBTable() *[256]float32 {
	inverseDBOnce.Do(func() {
		for i := range inverseDBTable {
			db := (float64(i) - 255) * floor1DBStep
			inverseDBTable[i] = float32(math.Pow(10, db/20))
		}
	})
	return &inverseDBTable
}

func (f *Floor1) Apply(data interface{}, blockSize int, out []float32) {
	n := blockSize / 2
	d, _ := data.(*Floor1Data)
	if d == nil {
		for i := 0; i < n && i < len(out); i++ {
			out[i] = 0
		}
		return
	}

	table := getInverseDBTable()
	step2 := make([]int, 0, len(f.sortOrder))
	for _, idx := range f.sortOrder {
		if d.Active[idx] {
			step2 = append(step2, idx)
		}
	}

	hx, hy := 0, 0
	first := true
	for _, idx := range step2 {
		lx, ly := hx, hy
		hx, hy = f.XList[idx], d.Y[idx]*f.Multiplier
		if first {
			first = false
			continue
		}
		renderLineSegment(lx, ly, hx, hy, out, n, table)
	}
}

// renderLineSegment draws the DDA floor curve from (x0,y0) to (x1,y1),
// multiplying the inverse-dB value at each integer x into out[x].
func renderLineSegment(x0, y0, x1, y1 int, out []float32, n int, table *[256]float32) {
	if x0 >= n {
		return
	}
	if x1 > n {
		x1 = n
	}
	dy := y1 - y0
	adx := x1 - x0
	if adx <= 0 {
		return
	}
	ady := dy
	if ady < 0 {
		ady = -ady
	}
	base := dy / adx
	sy := 1
	if dy < 0 {
		sy = -1
	}
	ady -= absInt(base) * adx
	y := y0
	err := 0
	for x := x0; x < x1; x++ {
		out[x] *= sample(table, y)
		y += base
		err += ady
		if err >= adx {
			err -= adx
			y += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sample(table *[256]float32, y int) float32 {
	if y < 0 {
		y = 0
	}
	if y > 255 {
		y = 255
	}
	return table[y]
}
