package lattice

import "errors"

var (
	// ErrInvalidDimensions indicates a non-positive width or height.
	ErrInvalidDimensions = errors.New("lattice: width and height must be positive")

	// ErrInvalidSpacing indicates a spatial step that would divide by zero.
	ErrInvalidSpacing = errors.New("lattice: spatial step must be positive and finite")

	// ErrShapeMismatch indicates two lattices (or a lattice and a frame) of different size.
	ErrShapeMismatch = errors.New("lattice: shape mismatch")

	// ErrMalformedFrame indicates a text frame that could not be parsed.
	ErrMalformedFrame = errors.New("lattice: malformed frame")
)
