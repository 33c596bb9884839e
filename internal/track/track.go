// Package track is the data model for imported tracks: the typed point
// sequence, waypoints and track level metadata and statistics.
package track

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ID uuid.UUID

func NewID() ID {
	return ID(uuid.New())
}

func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("track id: %w", err)
	}
	return ID(u), nil
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

type Type int

const (
	TypeTrackpoint Type = iota
	TypeSegmentStartAutomatic
	TypeSegmentStartManual
	TypeSegmentEndManual
)

var typeNames = map[Type]string{
	TypeTrackpoint:            "TRACKPOINT",
	TypeSegmentStartAutomatic: "SEGMENT_START_AUTOMATIC",
	TypeSegmentStartManual:    "SEGMENT_START_MANUAL",
	TypeSegmentEndManual:      "SEGMENT_END_MANUAL",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TYPE(%d)", int(t))
}

func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown point type %q", s)
}

// StartsSegment is true for the types that open a new segment.
func (t Type) StartsSegment() bool {
	return t == TypeSegmentStartAutomatic || t == TypeSegmentStartManual
}

// Point is one sample of a track. Latitude and Longitude are only valid when
// HasLocation is true; Altitude only when HasAltitude is true. Points are
// built with the constructors below and not modified afterwards.
type Point struct {
	Type Type
	Time time.Time

	latitude    float64
	longitude   float64
	hasLocation bool
	altitude    float64
	hasAltitude bool
}

// Located returns a point with a location and, if alt is non-nil, an
// altitude.
func Located(typ Type, when time.Time, lat, lon float64, alt *float64) Point {
	p := Point{Type: typ, Time: when, latitude: lat, longitude: lon, hasLocation: true}
	if alt != nil {
		p.altitude = *alt
		p.hasAltitude = true
	}
	return p
}

// Marker returns a point without location or altitude.
func Marker(typ Type, when time.Time) Point {
	return Point{Type: typ, Time: when}
}

func (p Point) HasLocation() bool  { return p.hasLocation }
func (p Point) HasAltitude() bool  { return p.hasAltitude }
func (p Point) Latitude() float64  { return p.latitude }
func (p Point) Longitude() float64 { return p.longitude }
func (p Point) Altitude() float64  { return p.altitude }

// AltitudePtr returns the altitude or nil.
func (p Point) AltitudePtr() *float64 {
	if !p.hasAltitude {
		return nil
	}
	a := p.altitude
	return &a
}

func (p Point) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s@%s", p.Type, p.Time.UTC().Format("2006-01-02T15:04:05.000Z"))
	if p.hasLocation {
		fmt.Fprintf(&sb, " %.6f,%.6f", p.latitude, p.longitude)
	}
	if p.hasAltitude {
		fmt.Fprintf(&sb, " %.1fm", p.altitude)
	}
	return sb.String()
}

// Waypoint is a named position attached to a track.
type Waypoint struct {
	Name        string
	Description string
	Category    string
	Time        time.Time
	Latitude    float64
	Longitude   float64
	Altitude    *float64
}

type Track struct {
	ID          ID
	UUID        string
	Name        string
	Description string
	Category    string
	Icon        string
	ImportedAt  time.Time
	Stats       Statistics
	Points      []Point
	Waypoints   []Waypoint
}
