package codec

import "errors"

// Sentinel errors shared across the setup-tree components. These are
// internal to the codec package; the orchestrator translates them into its
// own InvalidData/Unsupported error kinds.
var (
	ErrInvalidMode      = errors.New("codec: invalid mode header")
	ErrUnsupportedFloor = errors.New("codec: unsupported floor type")
	ErrUnsupportedResid = errors.New("codec: unsupported residue type")
	ErrInvalidMapping   = errors.New("codec: invalid mapping header")
	ErrInvalidResidue   = errors.New("codec: invalid residue header")
	ErrInvalidFloor     = errors.New("codec: invalid floor header")
)
