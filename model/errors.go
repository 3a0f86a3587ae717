package model

import "errors"

var (
	// ErrInvalidHierarchy indicates motion was requested on a node without a
	// parent, or a structural change would break the generation rules.
	ErrInvalidHierarchy = errors.New("invalid hierarchy")
	// ErrOutOfRange indicates a value falls outside its computed bounds.
	ErrOutOfRange = errors.New("value out of range")
	// ErrUnknownEntity indicates a named body or constellation does not exist.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrMagnitudeOverflow indicates a rating needs a suffix beyond T.
	ErrMagnitudeOverflow = errors.New("rating magnitude overflow")
)
