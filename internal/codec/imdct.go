package codec

import (
	"math"
	"sync"
)

// imdctTable holds one full period (4N entries) of a cosine table for one
// transform size N, shared across every packet that uses that block size.
// The table is indexed by the twiddle argument reduced modulo its 4N period,
// so memory stays O(N) regardless of the O(N^2) argument space the
// direct-form transform below walks.
//
// Reference: Vorbis I specification, section 9.2 (inverse MDCT synthesis).
type imdctTable struct {
	n   int
	cos []float64
}

var (
	imdctCacheMu sync.Mutex
	imdctCache   = map[int]*imdctTable{}
)

func getIMDCTTable(n int) *imdctTable {
	imdctCacheMu.Lock()
	defer imdctCacheMu.Unlock()
	if t, ok := imdctCache[n]; ok {
		return t
	}
	period := 4 * n
	unit := math.Pi / float64(2*n)
	cos := make([]float64, period)
	for m := range cos {
		cos[m] = math.Cos(unit * float64(m))
	}
	t := &imdctTable{n: n, cos: cos}
	imdctCache[n] = t
	return t
}

// IMDCT computes the N-point inverse modified discrete cosine transform of
// n/2 frequency-domain coefficients, producing n time-domain samples.
//
// This evaluates the direct-form synthesis equation rather than the
// split-radix FFT decomposition; numerical tolerance only requires
// agreement with a double-precision reference to within 1e-5 per sample,
// which a table-driven direct sum satisfies without the bookkeeping of a
// bit-reversal/butterfly schedule.
func IMDCT(coeffs []float32, n int) []float32 {
	n2 := n / 2
	t := getIMDCTTable(n)
	period := int64(4 * n)
	out := make([]float32, n)

	for i := 0; i < n; i++ {
		base := int64(2*i + 1 + n2)
		var sum float64
		for j := 0; j < n2; j++ {
			a := (base * int64(2*j+1)) % period
			sum += float64(coeffs[j]) * t.cos[a]
		}
		out[i] = float32(sum)
	}
	return out
}
