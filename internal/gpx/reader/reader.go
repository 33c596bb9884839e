// Package reader decodes GPX 1.0 and 1.1 documents into position streams.
package reader

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"calmh.dev/track-import/internal/isotime"
	"calmh.dev/track-import/internal/stream"
)

type GPX struct {
	Name     string `xml:"name"`
	Metadata struct {
		Name string `xml:"name"`
		Desc string `xml:"desc"`
	} `xml:"metadata"`
	Waypoints []GPXWaypoint `xml:"wpt"`
	Tracks    []GPXTrack    `xml:"trk"`
}

type GPXTrack struct {
	Name       string          `xml:"name"`
	Desc       string          `xml:"desc"`
	Type       string          `xml:"type"`
	Extensions GPXExtensionSet `xml:"extensions"`
	Segments   []struct {
		Points []GPXTrkPoint `xml:"trkpt"`
	} `xml:"trkseg"`
}

type GPXTrkPoint struct {
	Lat  string `xml:"lat,attr"`
	Lon  string `xml:"lon,attr"`
	Ele  string `xml:"ele"`
	Time string `xml:"time"`
}

type GPXWaypoint struct {
	GPXTrkPoint
	Name string `xml:"name"`
	Desc string `xml:"desc"`
	Type string `xml:"type"`
}

type GPXExtensionSet struct {
	Children []GPXExtension `xml:",any"`
}

func (e GPXExtensionSet) Named(name string) GPXExtension {
	for _, c := range e.Children {
		if c.XMLName.Local == name {
			return c
		}
	}
	return GPXExtension{}
}

type GPXExtension struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// Read decodes every <trk> in r, in document order. Several concatenated
// GPX documents are accepted. Waypoints are attached to the first track.
func Read(r io.Reader) ([]stream.Track, error) {
	dec := xml.NewDecoder(r)
	var tracks []stream.Track
	var waypoints []stream.Waypoint
	for {
		var g GPX
		if err := dec.Decode(&g); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("gpx: %w", err)
		}
		for _, trk := range g.Tracks {
			t, err := convertTrack(trk)
			if err != nil {
				return nil, err
			}
			if t.Name == "" {
				t.Name = firstNonEmpty(g.Metadata.Name, g.Name)
			}
			if t.Description == "" {
				t.Description = g.Metadata.Desc
			}
			tracks = append(tracks, t)
		}
		for _, wpt := range g.Waypoints {
			w, err := convertWaypoint(wpt)
			if err != nil {
				return nil, err
			}
			waypoints = append(waypoints, w)
		}
	}
	if len(tracks) > 0 {
		tracks[0].Waypoints = waypoints
	}
	return tracks, nil
}

func convertTrack(trk GPXTrack) (stream.Track, error) {
	t := stream.Track{
		Name:        strings.TrimSpace(trk.Name),
		Description: strings.TrimSpace(trk.Desc),
		Category:    strings.TrimSpace(trk.Type),
		Icon:        strings.TrimSpace(trk.Extensions.Named("icon").Value),
		UUID:        strings.TrimSpace(trk.Extensions.Named("trackid").Value),
	}
	for i, seg := range trk.Segments {
		if i > 0 {
			t.Records = append(t.Records, stream.SegmentBreak())
		}
		for _, pt := range seg.Points {
			when, lat, lon, alt, err := pt.decode()
			if err != nil {
				return stream.Track{}, err
			}
			t.Records = append(t.Records, stream.Position(when, lat, lon, alt))
		}
	}
	return t, nil
}

func convertWaypoint(wpt GPXWaypoint) (stream.Waypoint, error) {
	when, lat, lon, alt, err := wpt.decode()
	if err != nil {
		return stream.Waypoint{}, err
	}
	w := stream.Waypoint{
		Name:        strings.TrimSpace(wpt.Name),
		Description: strings.TrimSpace(wpt.Desc),
		Category:    strings.TrimSpace(wpt.Type),
		Time:        when,
		Lat:         lat,
		Lon:         lon,
	}
	if alt != nil {
		w.Alt, w.HasAlt = *alt, true
	}
	return w, nil
}

// decode parses the textual fields of a point. A missing <time> gives the
// zero time; a present but unparseable one is an error.
func (p GPXTrkPoint) decode() (time.Time, float64, float64, *float64, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(p.Lat), 64)
	if err != nil {
		return time.Time{}, 0, 0, nil, fmt.Errorf("gpx: latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(p.Lon), 64)
	if err != nil {
		return time.Time{}, 0, 0, nil, fmt.Errorf("gpx: longitude %q: %w", p.Lon, err)
	}

	var alt *float64
	if ele := strings.TrimSpace(p.Ele); ele != "" {
		v, err := strconv.ParseFloat(ele, 64)
		if err != nil {
			return time.Time{}, 0, 0, nil, fmt.Errorf("gpx: elevation %q: %w", p.Ele, err)
		}
		alt = &v
	}

	var when time.Time
	if strings.TrimSpace(p.Time) != "" {
		when, err = isotime.Parse(p.Time)
		if err != nil {
			return time.Time{}, 0, 0, nil, fmt.Errorf("gpx: %w", err)
		}
	}
	return when, lat, lon, alt, nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
