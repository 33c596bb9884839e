// Package stream holds the decoded form of a legacy position stream, as
// produced by the file readers and consumed by the importer.
package stream

import (
	"fmt"
	"time"
)

// Legacy recorders wrote pause and resume events inline as positions with
// these latitudes and a zero longitude.
const (
	pauseLatitude  = 100
	resumeLatitude = 200
)

type Kind int

const (
	// Located is an ordinary position sample.
	Located Kind = iota
	// Pause marks that recording was paused at Time.
	Pause
	// Resume marks that recording was resumed, at Time when it is set.
	Resume
	// Break is an explicit segment boundary in the file structure.
	Break
)

func (k Kind) String() string {
	switch k {
	case Located:
		return "located"
	case Pause:
		return "pause"
	case Resume:
		return "resume"
	case Break:
		return "break"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Record is one entry of the stream. Lat, Lon and Alt are only meaningful
// for Located records, and Alt only when HasAlt is set.
type Record struct {
	Kind   Kind
	Time   time.Time
	Lat    float64
	Lon    float64
	Alt    float64
	HasAlt bool
}

// Position classifies a raw position, turning the legacy sentinel
// coordinates into Pause and Resume records. alt may be nil.
func Position(when time.Time, lat, lon float64, alt *float64) Record {
	if lon == 0 {
		switch lat {
		case pauseLatitude:
			return Record{Kind: Pause, Time: when}
		case resumeLatitude:
			return Record{Kind: Resume, Time: when}
		}
	}
	r := Record{Kind: Located, Time: when, Lat: lat, Lon: lon}
	if alt != nil {
		r.Alt = *alt
		r.HasAlt = true
	}
	return r
}

// SegmentBreak returns a Break record.
func SegmentBreak() Record {
	return Record{Kind: Break}
}

// Waypoint is a named position that is not part of the point sequence.
type Waypoint struct {
	Name        string
	Description string
	Category    string
	Time        time.Time
	Lat, Lon    float64
	Alt         float64
	HasAlt      bool
}

// Track is everything a reader extracted for one logical track.
type Track struct {
	Name        string
	Description string
	Category    string
	Icon        string // empty when the file carries none
	UUID        string // source identity, empty when the file carries none
	Records     []Record
	Waypoints   []Waypoint
}
