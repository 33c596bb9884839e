package importer

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"calmh.dev/track-import/internal/nmealog"
)

type Format int

const (
	FormatUnknown Format = iota
	FormatGPX
	FormatKML
	FormatKMZ
	FormatNMEA
)

func (f Format) String() string {
	switch f {
	case FormatGPX:
		return "gpx"
	case FormatKML:
		return "kml"
	case FormatKMZ:
		return "kmz"
	case FormatNMEA:
		return "nmea"
	default:
		return "unknown"
	}
}

const (
	sniffLen = 4096

	// DefaultMaxDecompressed is the decompression limit used when none is
	// configured.
	DefaultMaxDecompressed = 256 << 20
)

var zipMagic = []byte("PK\x03\x04")

// DetectFormat looks at the content of a file to decide how to read it.
// Gzip compressed content is decompressed first and the decompressed data
// returned along with its format. Decompressing to more than maxSize bytes
// fails with ErrTooLarge; a maxSize of zero means DefaultMaxDecompressed.
func DetectFormat(data []byte, maxSize int64) (Format, []byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxDecompressed
	}
	if nmealog.IsGzip(data) {
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return FormatUnknown, nil, fmt.Errorf("gzip: %w", err)
		}
		defer gr.Close()
		inner, err := io.ReadAll(io.LimitReader(gr, maxSize+1))
		if err != nil {
			return FormatUnknown, nil, fmt.Errorf("gzip: %w", err)
		}
		if int64(len(inner)) > maxSize {
			return FormatUnknown, nil, fmt.Errorf("gzip: more than %d bytes: %w", maxSize, ErrTooLarge)
		}
		return DetectFormat(inner, maxSize)
	}

	if bytes.HasPrefix(data, zipMagic) {
		return FormatKMZ, data, nil
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")), " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		switch rootElement(data) {
		case "gpx":
			return FormatGPX, data, nil
		case "kml":
			return FormatKML, data, nil
		}
		return FormatUnknown, nil, ErrUnknownFormat
	}

	if looksLikeNMEA(head) {
		return FormatNMEA, data, nil
	}
	return FormatUnknown, nil, ErrUnknownFormat
}

func rootElement(data []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			return strings.ToLower(se.Name.Local)
		}
	}
}

func looksLikeNMEA(head []byte) bool {
	for _, line := range strings.Split(string(head), "\n") {
		idx := strings.IndexAny(line, "$!")
		if idx >= 0 && strings.Contains(line[idx:], "*") && strings.Contains(line[idx:], ",") {
			return true
		}
	}
	return false
}
