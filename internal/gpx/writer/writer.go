// Package writer exports stored tracks as GPX 1.1.
package writer

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"calmh.dev/track-import/internal/isotime"
	"calmh.dev/track-import/internal/track"
)

const (
	Namespace    = "ti"
	NamespaceURL = "https://calmh.dev/track-import/"
)

// WriteTrack writes t as a single <trk>. A new <trkseg> is opened at every
// segment start; points without a location are not written.
func WriteTrack(w io.Writer, t track.Track, points []track.Point, waypoints []track.Waypoint) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	fmt.Fprintf(bw, `<gpx version="1.1" creator="track-import" xmlns="http://www.topografix.com/GPX/1/1" xmlns:%s="%s">`+"\n", Namespace, NamespaceURL)
	fmt.Fprintf(bw, "<metadata><name>%s</name></metadata>\n", escape(t.Name))

	wpts := append([]track.Waypoint(nil), waypoints...)
	sort.SliceStable(wpts, func(i, j int) bool { return wpts[i].Time.Before(wpts[j].Time) })
	for _, wp := range wpts {
		fmt.Fprintf(bw, `<wpt lat="%s" lon="%s">%s`, number(wp.Latitude), number(wp.Longitude), elevation(wp.Altitude))
		if !wp.Time.IsZero() {
			fmt.Fprintf(bw, "<time>%s</time>", isotime.Format(wp.Time))
		}
		fmt.Fprintf(bw, "<name>%s</name><desc>%s</desc><type>%s</type></wpt>\n", escape(wp.Name), escape(wp.Description), escape(wp.Category))
	}

	fmt.Fprintf(bw, "<trk>\n<name>%s</name>\n<desc>%s</desc>\n<type>%s</type>\n", escape(t.Name), escape(t.Description), escape(t.Category))
	fmt.Fprintf(bw, "<extensions>%s</extensions>\n", extensions(t))

	open := false
	for _, p := range points {
		if p.Type.StartsSegment() && open {
			fmt.Fprintln(bw, "</trkseg>")
			open = false
		}
		if !p.HasLocation() {
			continue
		}
		if !open {
			fmt.Fprintln(bw, "<trkseg>")
			open = true
		}
		fmt.Fprintln(bw, trkpt(p))
	}
	if open {
		fmt.Fprintln(bw, "</trkseg>")
	}
	fmt.Fprintln(bw, "</trk>\n</gpx>")

	return bw.Flush()
}

func trkpt(p track.Point) string {
	return fmt.Sprintf(`<trkpt lat="%s" lon="%s">%s<time>%s</time></trkpt>`, number(p.Latitude()), number(p.Longitude()), elevation(p.AltitudePtr()), isotime.Format(p.Time))
}

func elevation(alt *float64) string {
	if alt == nil {
		return ""
	}
	return "<ele>" + number(*alt) + "</ele>"
}

// number formats v with as many digits as needed to read back the same value.
func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func extensions(t track.Track) string {
	exts := map[string]string{"trackid": t.ID.String()}
	if t.UUID != "" {
		exts["trackid"] = t.UUID
	}
	if t.Icon != "" {
		exts["icon"] = t.Icon
	}
	var parts []string
	for k, v := range exts {
		parts = append(parts, fmt.Sprintf("<%s:%s>%s</%s:%s>", Namespace, k, escape(v), Namespace, k))
	}
	sort.Strings(parts)
	return strings.Join(parts, "")
}

func escape(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}
