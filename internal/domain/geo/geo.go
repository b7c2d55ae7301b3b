// internal/domain/geo/geo.go

package geo

import (
	"errors"
	"fmt"
)

// ErrInvalidCoordinates indicates a latitude/longitude pair outside the
// valid WGS84 range
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Coordinates represents a geographic position in decimal degrees
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that the coordinates are within the valid range
func (c Coordinates) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidCoordinates, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidCoordinates, c.Longitude)
	}
	return nil
}
