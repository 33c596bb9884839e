package importer

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	var kmz bytes.Buffer
	zw := zip.NewWriter(&kmz)
	zw.Create("doc.kml")
	zw.Close()

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write([]byte("$GPRMC,215159.179,A,0300.000,N,01400.000,E,0.0,0.0,070121,,,A*69\r\n"))
	gw.Close()

	cases := []struct {
		name string
		data []byte
		want Format
	}{
		{"gpx", []byte(`<?xml version="1.0"?><gpx version="1.1"></gpx>`), FormatGPX},
		{"gpx with bom", []byte("\xef\xbb\xbf\n<gpx></gpx>"), FormatGPX},
		{"kml", []byte(`<kml xmlns="http://www.opengis.net/kml/2.2"><Document/></kml>`), FormatKML},
		{"kmz", kmz.Bytes(), FormatKMZ},
		{"nmea", []byte("$GPRMC,215159.179,A,0300.000,N,01400.000,E,0.0,0.0,070121,,,A*69\r\n"), FormatNMEA},
		{"prefixed nmea", []byte("1610056323.500 !AIVDM,1,1,,A,15RTgt0PAso;90TKcjM8h6g208CQ,0*4A\n"), FormatNMEA},
		{"gzipped nmea", gz.Bytes(), FormatNMEA},
	}

	for _, c := range cases {
		got, data, err := DetectFormat(c.data, 0)
		if err != nil {
			t.Errorf("%s: %v", c.name, err)
			continue
		}
		if got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
		if len(data) == 0 {
			t.Errorf("%s: no data returned", c.name)
		}
	}

	if _, _, err := DetectFormat([]byte("<svg/>"), 0); !errors.Is(err, ErrUnknownFormat) {
		t.Error("svg:", err)
	}
}

func TestDetectFormatDecompressionLimit(t *testing.T) {
	line := "$GPRMC,215159.179,A,0300.000,N,01400.000,E,0.0,0.0,070121,,,A*69\r\n"
	plain := bytes.Repeat([]byte(line), 1000)

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write(plain)
	gw.Close()

	// Nested gzip is bounded the same way.
	var nested bytes.Buffer
	gw = gzip.NewWriter(&nested)
	gw.Write(gz.Bytes())
	gw.Close()

	for _, data := range [][]byte{gz.Bytes(), nested.Bytes()} {
		if _, _, err := DetectFormat(data, int64(len(plain)-1)); !errors.Is(err, ErrTooLarge) {
			t.Errorf("expected ErrTooLarge, got %v", err)
		}
		format, out, err := DetectFormat(data, int64(len(plain)))
		if err != nil {
			t.Fatal(err)
		}
		if format != FormatNMEA || len(out) != len(plain) {
			t.Errorf("got %v with %d bytes, want nmea with %d", format, len(out), len(plain))
		}
	}
}
