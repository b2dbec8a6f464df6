// Package geo computes great-circle distances and parses the free-text
// coordinates reporters attach to a report.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

var (
	ErrNoCoordinates      = errors.New("location has no coordinates")
	ErrInvalidCoordinates = errors.New("location coordinates out of range")
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lon float64 `bson:"lon" json:"lon"`
}

func (p Point) String() string {
	return fmt.Sprintf("%g, %g", p.Lat, p.Lon)
}

// Valid reports whether p is finite and inside the lat/lon ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Distance returns the haversine distance between a and b in kilometers.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon) - radians(a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Parse reads a "lat, lon" string. Text without a comma yields ErrNoCoordinates;
// a comma-separated pair that is not numeric or not in range yields ErrInvalidCoordinates.
func Parse(text string) (Point, error) {
	text = strings.TrimSpace(text)
	if text == "" || !strings.Contains(text, ",") {
		return Point{}, ErrNoCoordinates
	}

	parts := strings.Split(text, ",")
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: latitude %q", ErrInvalidCoordinates, parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: longitude %q", ErrInvalidCoordinates, parts[1])
	}

	p := Point{Lat: lat, Lon: lon}
	if !p.Valid() {
		return Point{}, fmt.Errorf("%w: %s", ErrInvalidCoordinates, p)
	}
	return p, nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
