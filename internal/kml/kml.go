// Package kml decodes KML 2.2 track placemarks (gx:Track and gx:MultiTrack)
// and KMZ archives into position streams.
package kml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"calmh.dev/track-import/internal/isotime"
	"calmh.dev/track-import/internal/stream"
)

var ErrNoKML = errors.New("kmz: archive contains no .kml file")

type Placemark struct {
	Name         string `xml:"name"`
	Description  string `xml:"description"`
	TimeStamp    string `xml:"TimeStamp>when"`
	ExtendedData struct {
		Data []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:"value"`
		} `xml:"Data"`
	} `xml:"ExtendedData"`
	Point *struct {
		Coordinates string `xml:"coordinates"`
	} `xml:"Point"`
	MultiTrack *struct {
		Tracks []GxTrack `xml:"Track"`
	} `xml:"MultiTrack"`
	Track *GxTrack `xml:"Track"`
}

// GxTrack holds the parallel <when> and <gx:coord> lists of a gx:Track.
type GxTrack struct {
	When  []string `xml:"when"`
	Coord []string `xml:"coord"`
}

func (p Placemark) data(name string) string {
	for _, d := range p.ExtendedData.Data {
		if d.Name == name {
			return strings.TrimSpace(d.Value)
		}
	}
	return ""
}

func (p Placemark) tracks() []GxTrack {
	var ts []GxTrack
	if p.Track != nil {
		ts = append(ts, *p.Track)
	}
	if p.MultiTrack != nil {
		ts = append(ts, p.MultiTrack.Tracks...)
	}
	return ts
}

// Read decodes every track placemark in r, at any folder depth. Point
// placemarks become waypoints of the first track.
func Read(r io.Reader) ([]stream.Track, error) {
	dec := xml.NewDecoder(r)
	var tracks []stream.Track
	var waypoints []stream.Waypoint
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("kml: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Placemark" {
			continue
		}

		var pm Placemark
		if err := dec.DecodeElement(&pm, &se); err != nil {
			return nil, fmt.Errorf("kml: %w", err)
		}
		switch {
		case len(pm.tracks()) > 0:
			t, err := convertPlacemark(pm)
			if err != nil {
				return nil, err
			}
			tracks = append(tracks, t)
		case pm.Point != nil:
			w, err := convertWaypoint(pm)
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

// ReadKMZ reads the first .kml entry of a KMZ archive, preferring doc.kml.
func ReadKMZ(data []byte) ([]stream.Track, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("kmz: %w", err)
	}
	var entry *zip.File
	for _, f := range zr.File {
		if !strings.EqualFold(path.Ext(f.Name), ".kml") {
			continue
		}
		if entry == nil || strings.EqualFold(path.Base(f.Name), "doc.kml") {
			entry = f
		}
	}
	if entry == nil {
		return nil, ErrNoKML
	}
	fd, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("kmz: %w", err)
	}
	defer fd.Close()
	return Read(fd)
}

func convertPlacemark(pm Placemark) (stream.Track, error) {
	t := stream.Track{
		Name:        strings.TrimSpace(pm.Name),
		Description: strings.TrimSpace(pm.Description),
		Category:    pm.data("type"),
		Icon:        pm.data("icon"),
		UUID:        pm.data("trackid"),
	}
	for i, gt := range pm.tracks() {
		if len(gt.When) != len(gt.Coord) {
			return stream.Track{}, fmt.Errorf("kml: track %q has %d <when> but %d <coord>", t.Name, len(gt.When), len(gt.Coord))
		}
		if i > 0 {
			t.Records = append(t.Records, stream.SegmentBreak())
		}
		for j := range gt.When {
			var when time.Time
			if strings.TrimSpace(gt.When[j]) != "" {
				var err error
				if when, err = isotime.Parse(gt.When[j]); err != nil {
					return stream.Track{}, fmt.Errorf("kml: %w", err)
				}
			}
			lat, lon, alt, err := parseCoord(strings.Fields(gt.Coord[j]))
			if err != nil {
				return stream.Track{}, err
			}
			t.Records = append(t.Records, stream.Position(when, lat, lon, alt))
		}
	}
	return t, nil
}

func convertWaypoint(pm Placemark) (stream.Waypoint, error) {
	lat, lon, alt, err := parseCoord(strings.Split(strings.TrimSpace(pm.Point.Coordinates), ","))
	if err != nil {
		return stream.Waypoint{}, err
	}
	w := stream.Waypoint{
		Name:        strings.TrimSpace(pm.Name),
		Description: strings.TrimSpace(pm.Description),
		Category:    pm.data("type"),
		Lat:         lat,
		Lon:         lon,
	}
	if alt != nil {
		w.Alt, w.HasAlt = *alt, true
	}
	if ts := strings.TrimSpace(pm.TimeStamp); ts != "" {
		if w.Time, err = isotime.Parse(ts); err != nil {
			return stream.Waypoint{}, fmt.Errorf("kml: %w", err)
		}
	}
	return w, nil
}

// parseCoord decodes "lon lat [alt]" fields.
func parseCoord(fields []string) (lat, lon float64, alt *float64, err error) {
	if len(fields) < 2 || len(fields) > 3 {
		return 0, 0, nil, fmt.Errorf("kml: bad coordinate %q", strings.Join(fields, " "))
	}
	if lon, err = strconv.ParseFloat(strings.TrimSpace(fields[0]), 64); err != nil {
		return 0, 0, nil, fmt.Errorf("kml: longitude: %w", err)
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(fields[1]), 64); err != nil {
		return 0, 0, nil, fmt.Errorf("kml: latitude: %w", err)
	}
	if len(fields) == 3 && strings.TrimSpace(fields[2]) != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("kml: altitude: %w", err)
		}
		alt = &v
	}
	return lat, lon, alt, nil
}
