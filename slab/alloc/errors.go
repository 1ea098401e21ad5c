package alloc

import "errors"

var (
	// ErrSlabSize indicates a slab size that is not a power of two in the supported range.
	ErrSlabSize = errors.New("alloc: invalid slab size")

	// ErrZoneSize indicates a zone size that is not a whole number of slab groups
	// within the supported zone range.
	ErrZoneSize = errors.New("alloc: invalid zone size")

	// ErrNoBacking indicates that no zone backing function was configured.
	ErrNoBacking = errors.New("alloc: zone backing function is nil")
)
