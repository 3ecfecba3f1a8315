package model

import (
	"fmt"
	"time"
)

// GeoLocation represents a GPS position with motion data
type GeoLocation struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Accuracy  float64   `json:"accuracy"`
	Heading   float64   `json:"heading"`
	SpeedKmh  float64   `json:"speed_kmh"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the location against physical coordinate bounds
func (g *GeoLocation) Validate() error {
	if g.Latitude < -90 || g.Latitude > 90 {
		return fmt.Errorf("latitude %.4f out of range [-90, 90]", g.Latitude)
	}
	if g.Longitude < -180 || g.Longitude > 180 {
		return fmt.Errorf("longitude %.4f out of range [-180, 180]", g.Longitude)
	}
	if g.Heading < 0 || g.Heading > 360 {
		return fmt.Errorf("heading %.1f out of range [0, 360]", g.Heading)
	}
	if g.SpeedKmh < 0 {
		return fmt.Errorf("speed_kmh %.1f must be non-negative", g.SpeedKmh)
	}
	return nil
}
