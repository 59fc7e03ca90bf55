package ogg

import "errors"

// Package-level errors for Ogg page parsing.
var (
	// ErrCorruptPage indicates a page's CRC-32 did not match its header, or
	// its lacing totals were inconsistent with the bytes actually present.
	ErrCorruptPage = errors.New("ogg: corrupt page")

	// ErrUnexpectedEOF indicates the byte source ended in the middle of a
	// page header, segment table, or payload.
	ErrUnexpectedEOF = errors.New("ogg: unexpected end of stream")

	// ErrOutOfRange indicates a seek target fell outside the known page
	// table, or a negative relative seek was requested from an absolute
	// origin.
	ErrOutOfRange = errors.New("ogg: seek target out of range")

	// NonContiguity labels the recoverable resync event, not a failure: it
	// is never returned by ReadPage. It identifies the observable signal
	// Reader raises, via TookNonContiguity, when ReadPage had to skip
	// bytes before it could resynchronize on a page's capture pattern.
	NonContiguity = errors.New("ogg: page resync skipped bytes")
)
