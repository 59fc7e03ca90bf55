package codec

import "github.com/Khitiara/Voltorb/internal/bitreader"

// Setup is the fully parsed Vorbis setup tree: every codebook, floor,
// residue, mapping, and mode declared by a stream's setup packet, stored in
// flat index-addressed slices rather than a graph of shared references.
// Components reference each other by index into these slices, keeping the
// structure acyclic and cheap to copy, per the arena-storage design note.
type Setup struct {
	Codebooks []*Codebook
	Floors    []Floor
	Residues  []*Residue
	Mappings  []*Mapping
	Modes     []Mode

	ModeBits int
}

// ReadSetup parses an entire setup packet body (the portion after the
// "vorbis" + packet-type header has already been consumed) into a Setup.
func ReadSetup(r *bitreader.Reader, channels int) (*Setup, error) {
	st := &Setup{}

	cbCountM1, got, _ := r.Read(8)
	if got != 8 {
		return nil, ErrTruncatedPacket
	}
	st.Codebooks = make([]*Codebook, int(cbCountM1)+1)
	for i := range st.Codebooks {
		cb, err := ReadCodebook(r)
		if err != nil {
			return nil, err
		}
		st.Codebooks[i] = cb
	}

	timeCountM1, got, _ := r.Read(6)
	if got != 6 {
		return nil, ErrTruncatedPacket
	}
	for i := 0; i < int(timeCountM1)+1; i++ {
		placeholder, got, _ := r.Read(16)
		if got != 16 {
			return nil, ErrTruncatedPacket
		}
		if placeholder != 0 {
			return nil, ErrInvalidMapping
		}
	}

	floorCountM1, got, _ := r.Read(6)
	if got != 6 {
		return nil, ErrTruncatedPacket
	}
	st.Floors = make([]Floor, int(floorCountM1)+1)
	for i := range st.Floors {
		floorType, got, _ := r.Read(16)
		if got != 16 {
			return nil, ErrTruncatedPacket
		}
		switch floorType {
		case 0:
			f, err := ReadFloor0(r)
			if err != nil {
				return nil, err
			}
			st.Floors[i] = f
		case 1:
			f, err := ReadFloor1(r)
			if err != nil {
				return nil, err
			}
			st.Floors[i] = f
		default:
			return nil, ErrUnsupportedFloor
		}
	}

	residueCountM1, got, _ := r.Read(6)
	if got != 6 {
		return nil, ErrTruncatedPacket
	}
	st.Residues = make([]*Residue, int(residueCountM1)+1)
	for i := range st.Residues {
		residueType, got, _ := r.Read(16)
		if got != 16 {
			return nil, ErrTruncatedPacket
		}
		if residueType > 2 {
			return nil, ErrUnsupportedResid
		}
		res, err := ReadResidue(r, int(residueType))
		if err != nil {
			return nil, err
		}
		st.Residues[i] = res
	}

	mappingCountM1, got, _ := r.Read(6)
	if got != 6 {
		return nil, ErrTruncatedPacket
	}
	st.Mappings = make([]*Mapping, int(mappingCountM1)+1)
	for i := range st.Mappings {
		mapType, got, _ := r.Read(16)
		if got != 16 {
			return nil, ErrTruncatedPacket
		}
		if mapType != 0 {
			return nil, ErrInvalidMapping
		}
		m, err := ReadMapping(r, channels, len(st.Floors), len(st.Residues))
		if err != nil {
			return nil, err
		}
		st.Mappings[i] = m
	}

	modeCountM1, got, _ := r.Read(6)
	if got != 6 {
		return nil, ErrTruncatedPacket
	}
	modeCount := int(modeCountM1) + 1
	st.Modes = make([]Mode, modeCount)
	for i := range st.Modes {
		mode, err := ReadMode(r, len(st.Mappings))
		if err != nil {
			return nil, err
		}
		st.Modes[i] = mode
	}
	st.ModeBits = Ilog(uint32(modeCount - 1))

	framing, got, _ := r.Read(1)
	if got != 1 || framing != 1 {
		return nil, ErrInvalidMapping
	}

	return st, nil
}
