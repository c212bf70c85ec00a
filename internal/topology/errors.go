package topology

import "errors"

var (
	// ErrNoDisplays is returned when the environment reports no usable screen region
	ErrNoDisplays = errors.New("no display regions found")

	// ErrDegenerateBounds is returned when bounds have zero or negative extent
	ErrDegenerateBounds = errors.New("bounds have no area")
)
