package pathfinder

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// ErrTypeRegionNotMapped is the type of the error returned when the start
	// or the end of a path lies in a cell that was never visited. Callers
	// should retry once more of the map is discovered.
	ErrTypeRegionNotMapped = "region_not_mapped"

	// ErrTypeNoPathFound is the type of the error returned when no route
	// exists through visited cells.
	ErrTypeNoPathFound = "no_path_found"
)

func IsRegionNotMapped(err error) bool {
	return errors.IsType(err, ErrTypeRegionNotMapped)
}

func IsNoPathFound(err error) bool {
	return errors.IsType(err, ErrTypeNoPathFound)
}
