// Package nmealog reads recorded NMEA 0183 logs, plain or gzip compressed,
// into a position stream. Position fixes come from RMC sentences, altitude
// from GGA sentences with the same time of day.
package nmealog

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BertoldVdb/go-ais"
	nmea "github.com/adrianmo/go-nmea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"calmh.dev/track-import/internal/stream"
)

var nmeaSentences = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "trackimport",
	Subsystem: "nmea",
	Name:      "sentences_total",
}, []string{"result"})

const (
	DefaultFixTimeout = 5 * time.Minute
	maxLineLength     = 65536
)

type Reader struct {
	// SampleInterval is the minimum time between kept fixes. Zero keeps
	// every fix.
	SampleInterval time.Duration
	// FixTimeout is the longest gap between fixes that is still
	// considered the same segment. Zero means DefaultFixTimeout.
	FixTimeout time.Duration
}

// Report describes what was seen in a log besides the kept fixes.
type Report struct {
	Lines       int
	Bad         int
	Unsupported int
	Fixes       int
	Kept        int
	AISContacts int
}

func IsGzip(prefix []byte) bool {
	return len(prefix) >= 2 && prefix[0] == 0x1f && prefix[1] == 0x8b
}

// Read returns at most one track: the fixes of the log in order, with a
// segment break wherever fixes are further apart than the fix timeout.
func (r *Reader) Read(in io.Reader) ([]stream.Track, Report, error) {
	var rep Report

	br := bufio.NewReader(in)
	if prefix, _ := br.Peek(2); IsGzip(prefix) {
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, rep, fmt.Errorf("nmea: %w", err)
		}
		defer gr.Close()
		br = bufio.NewReader(gr)
	}

	fixTimeout := r.FixTimeout
	if fixTimeout == 0 {
		fixTimeout = DefaultFixTimeout
	}

	var (
		records  []stream.Record
		lastFix  time.Time
		gga      *nmea.GGA
		contacts = make(map[uint32]struct{})
		dec      = ais.CodecNew(false, false)
	)

	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 0, maxLineLength), maxLineLength)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		rep.Lines++
		if line == "" {
			continue
		}
		if line[0] != '\\' {
			// Drop anything logged in front of the sentence itself.
			if idx := strings.IndexAny(line, "$!"); idx > 0 {
				line = line[idx:]
			}
		}

		sent, err := nmea.Parse(line)
		if err != nil {
			if strings.Contains(err.Error(), "not supported") {
				rep.Unsupported++
				nmeaSentences.WithLabelValues("unsupported").Inc()
				continue
			}
			rep.Bad++
			nmeaSentences.WithLabelValues("bad").Inc()
			continue
		}
		nmeaSentences.WithLabelValues("ok").Inc()

		switch sent.DataType() {
		case nmea.TypeRMC:
			rmc := sent.(nmea.RMC)
			if rmc.Validity != nmea.ValidRMC || !rmc.Date.Valid || !rmc.Time.Valid {
				continue
			}
			rep.Fixes++
			when := time.Date(rmc.Date.YY+2000, time.Month(rmc.Date.MM), rmc.Date.DD, rmc.Time.Hour, rmc.Time.Minute, rmc.Time.Second, rmc.Time.Millisecond*int(time.Millisecond), time.UTC)

			if !lastFix.IsZero() && when.Sub(lastFix) < r.SampleInterval {
				continue
			}
			if !lastFix.IsZero() && when.Sub(lastFix) > fixTimeout {
				records = append(records, stream.SegmentBreak())
			}
			lastFix = when

			var alt *float64
			if gga != nil && gga.Time == rmc.Time {
				a := gga.Altitude
				alt = &a
			}
			records = append(records, stream.Position(when, rmc.Latitude, rmc.Longitude, alt))
			rep.Kept++

		case nmea.TypeGGA:
			g := sent.(nmea.GGA)
			if g.FixQuality == nmea.Invalid || !g.Time.Valid {
				continue
			}
			gga = &g
			// GGA after the RMC of the same second.
			if n := len(records); n > 0 {
				last := &records[n-1]
				if last.Kind == stream.Located && !last.HasAlt && sameTimeOfDay(last.Time, g.Time) {
					last.Alt, last.HasAlt = g.Altitude, true
				}
			}

		case nmea.TypeVDM, nmea.TypeVDO:
			vdmvdo := sent.(nmea.VDMVDO)
			if vdmvdo.NumFragments > 1 {
				continue
			}
			pkt := dec.DecodePacket(vdmvdo.Payload)
			if pkt == nil {
				continue
			}
			contacts[pkt.GetHeader().UserID] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, rep, fmt.Errorf("nmea: %w", err)
	}
	rep.AISContacts = len(contacts)

	if rep.Kept == 0 {
		return nil, rep, nil
	}
	first := firstLocated(records)
	trk := stream.Track{
		Name:    first.Format("2006-01-02 15:04"),
		Records: records,
	}
	return []stream.Track{trk}, rep, nil
}

func sameTimeOfDay(t time.Time, nt nmea.Time) bool {
	return t.Hour() == nt.Hour && t.Minute() == nt.Minute && t.Second() == nt.Second && t.Nanosecond()/int(time.Millisecond) == nt.Millisecond
}

func firstLocated(records []stream.Record) time.Time {
	for _, r := range records {
		if r.Kind == stream.Located {
			return r.Time
		}
	}
	return time.Time{}
}
