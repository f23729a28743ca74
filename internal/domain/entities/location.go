package entities

import (
	"math"
	"strconv"
)

const earthRadiusMeters = 6371000.0

// Location represents geographical coordinates in decimal degrees
type Location struct {
	Latitude  float64 `json:"lat" db:"latitude"`
	Longitude float64 `json:"lng" db:"longitude"`
}

// Valid reports whether the coordinates are inside the WGS84 ranges.
func (l Location) Valid() bool {
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) {
		return false
	}
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// Rounded returns the coordinates rounded to the given number of decimals.
func (l Location) Rounded(precision int) Location {
	factor := math.Pow(10, float64(precision))
	return Location{
		Latitude:  math.Round(l.Latitude*factor) / factor,
		Longitude: math.Round(l.Longitude*factor) / factor,
	}
}

// String formats the location as "lat,lng", the form the Google APIs accept.
func (l Location) String() string {
	return strconv.FormatFloat(l.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(l.Longitude, 'f', -1, 64)
}

// DistanceTo returns the great-circle distance in meters (haversine).
func (l Location) DistanceTo(other Location) float64 {
	dLat := degreesToRadians(other.Latitude - l.Latitude)
	dLon := degreesToRadians(other.Longitude - l.Longitude)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degreesToRadians(l.Latitude))*math.Cos(degreesToRadians(other.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
