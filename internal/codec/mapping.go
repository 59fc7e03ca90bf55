package codec

import "github.com/Khitiara/Voltorb/internal/bitreader"

// CouplingStep is one channel-coupling pair: the magnitude channel's
// energy forces the angle channel's decode, and the two are combined by
// the polar (M,A) rule after residue decode.
type CouplingStep struct {
	Magnitude int
	Angle     int
}

// Mapping links each channel to a submap (one floor, one residue) and
// declares the coupling pairs used for inverse coupling after residue
// decode.
//
// Reference: Vorbis I specification, section 8.1 (mapping decode) and
// section 8.5 (channel coupling).
type Mapping struct {
	SubmapFloor   []int
	SubmapResidue []int
	ChannelSubmap []int
	Coupling      []CouplingStep
}

func ReadMapping(r *bitreader.Reader, channels, floorCount, residueCount int) (*Mapping, error) {
	submapFlag, got, _ := r.Read(1)
	if got != 1 {
		return nil, ErrTruncatedPacket
	}
	submapCount := 1
	if submapFlag == 1 {
		n, got, _ := r.Read(4)
		if got != 4 {
			return nil, ErrTruncatedPacket
		}
		submapCount = int(n) + 1
	}

	couplingFlag, got, _ := r.Read(1)
	if got != 1 {
		return nil, ErrTruncatedPacket
	}
	var coupling []CouplingStep
	if couplingFlag == 1 {
		n, got, _ := r.Read(8)
		if got != 8 {
			return nil, ErrTruncatedPacket
		}
		bits := Ilog(uint32(channels - 1))
		coupling = make([]CouplingStep, int(n)+1)
		for i := range coupling {
			m, got, _ := r.Read(bits)
			if got != bits {
				return nil, ErrTruncatedPacket
			}
			a, got, _ := r.Read(bits)
			if got != bits {
				return nil, ErrTruncatedPacket
			}
			if int(m) == int(a) || int(m) >= channels || int(a) >= channels {
				return nil, ErrInvalidMapping
			}
			coupling[i] = CouplingStep{Magnitude: int(m), Angle: int(a)}
		}
	}

	reserved, got, _ := r.Read(2)
	if got != 2 {
		return nil, ErrTruncatedPacket
	}
	if reserved != 0 {
		return nil, ErrInvalidMapping
	}

	channelSubmap := make([]int, channels)
	if submapCount > 1 {
		for i := range channelSubmap {
			v, got, _ := r.Read(4)
			if got != 4 {
				return nil, ErrTruncatedPacket
			}
			if int(v) >= submapCount {
				return nil, ErrInvalidMapping
			}
			channelSubmap[i] = int(v)
		}
	}

	submapFloor := make([]int, submapCount)
	submapResidue := make([]int, submapCount)
	for i := 0; i < submapCount; i++ {
		r.Advance(8) // unused time-domain placeholder
		fl, got, _ := r.Read(8)
		if got != 8 {
			return nil, ErrTruncatedPacket
		}
		res, got, _ := r.Read(8)
		if got != 8 {
			return nil, ErrTruncatedPacket
		}
		if int(fl) >= floorCount || int(res) >= residueCount {
			return nil, ErrInvalidMapping
		}
		submapFloor[i] = int(fl)
		submapResidue[i] = int(res)
	}

	return &Mapping{
		SubmapFloor:   submapFloor,
		SubmapResidue: submapResidue,
		ChannelSubmap: channelSubmap,
		Coupling:      coupling,
	}, nil
}

// DecodePacket runs one audio packet's worth of floor unpack, residue
// decode, inverse coupling, and floor application, writing spectral
// coefficients into freq[channel][0:blockSize/2] ready for the inverse
// MDCT.
//
// Reference: Vorbis I specification, section 8.6 (audio packet decode).
func (m *Mapping) DecodePacket(r *bitreader.Reader, st *Setup, blockSize int, freq [][]float32) error {
	channels := len(freq)
	n2 := blockSize / 2

	floorData := make([]interface{}, channels)
	hasEnergy := make([]bool, channels)

	for ch := 0; ch < channels; ch++ {
		submap := m.ChannelSubmap[ch]
		floor := st.Floors[m.SubmapFloor[submap]]
		data, err := floor.Unpack(r, st.Codebooks)
		if err != nil {
			return err
		}
		floorData[ch] = data
		hasEnergy[ch] = data != nil
	}

	for _, c := range m.Coupling {
		if hasEnergy[c.Magnitude] || hasEnergy[c.Angle] {
			hasEnergy[c.Magnitude] = true
			hasEnergy[c.Angle] = true
		}
	}

	for ch := range freq {
		for i := range freq[ch] {
			freq[ch][i] = 0
		}
	}

	for submap := 0; submap < len(m.SubmapResidue); submap++ {
		doNotDecode := make([]bool, channels)
		any := false
		for ch := 0; ch < channels; ch++ {
			if m.ChannelSubmap[ch] != submap || !hasEnergy[ch] {
				doNotDecode[ch] = true
			} else {
				any = true
			}
		}
		if !any {
			continue
		}
		residue := st.Residues[m.SubmapResidue[submap]]
		residue.Decode(r, st.Codebooks, freq, doNotDecode)
	}

	for _, c := range m.Coupling {
		mag := freq[c.Magnitude]
		ang := freq[c.Angle]
		for i := 0; i < n2; i++ {
			mv, av := mag[i], ang[i]
			var newM, newA float32
			switch {
			case mv > 0 && av > 0:
				newM, newA = mv, mv-av
			case mv > 0 && av <= 0:
				newM, newA = mv+av, mv
			case mv <= 0 && av > 0:
				newM, newA = mv, mv+av
			default:
				newM, newA = mv-av, mv
			}
			mag[i], ang[i] = newM, newA
		}
	}

	for ch := 0; ch < channels; ch++ {
		submap := m.ChannelSubmap[ch]
		if hasEnergy[ch] {
			floor := st.Floors[m.SubmapFloor[submap]]
			floor.Apply(floorData[ch], blockSize, freq[ch])
		} else {
			for i := 0; i < n2; i++ {
				freq[ch][i] = 0
			}
		}
	}

	return nil
}
