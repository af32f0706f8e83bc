// Package tracestore persists extraction runs: one directory per video holding
// the relocated video, the time-series CSV and the calibration sidecar.
package tracestore

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Header is the first row of every time-series CSV.
var Header = []string{"time [s]", "x [pixels]", "y [pixels]", "x [mm]", "y [mm]"}

// Record is one accepted detection. Pixel coordinates are absolute frame
// coordinates; millimetres are relative to the reference line in x.
type Record struct {
	TimeS  float64
	XPixel int
	YPixel int
	XMM    float64
	YMM    float64
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (r Record) row() []string {
	return []string{
		formatFloat(r.TimeS),
		strconv.Itoa(r.XPixel),
		strconv.Itoa(r.YPixel),
		formatFloat(r.XMM),
		formatFloat(r.YMM),
	}
}

// Layout identifies which writer produced a time-series CSV.
type Layout int

const (
	// LayoutCurrent stores absolute pixel x.
	LayoutCurrent Layout = iota
	// LayoutLegacy is the older trace format: spaces before the mm headers,
	// a trailing comma on every row, and pixel x stored relative to the
	// reference line.
	LayoutLegacy
)

func (l Layout) String() string {
	if l == LayoutLegacy {
		return "legacy"
	}
	return "current"
}

// ReadRecords parses a time-series CSV and reports its layout. Records are
// returned as stored; for LayoutLegacy the caller must add the reference x
// to XPixel to get frame coordinates.
func ReadRecords(rd io.Reader) ([]Record, Layout, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, LayoutCurrent, fmt.Errorf("empty trace file")
	}
	if err != nil {
		return nil, LayoutCurrent, fmt.Errorf("read header: %w", err)
	}
	layout, err := checkHeader(header)
	if err != nil {
		return nil, LayoutCurrent, err
	}

	var out []Record
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			return out, layout, nil
		}
		if err != nil {
			return nil, layout, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := parseRow(fields)
		if err != nil {
			return nil, layout, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
}

// checkHeader matches header against Header ignoring surrounding spaces and a
// trailing empty column. Any such padding marks the legacy layout.
func checkHeader(header []string) (Layout, error) {
	layout := LayoutCurrent
	trimmed := trimTrailingEmpty(header)
	if len(trimmed) != len(header) {
		layout = LayoutLegacy
	}
	if len(trimmed) != len(Header) {
		return layout, fmt.Errorf("unexpected header %q", trimmed)
	}
	for i, h := range trimmed {
		if t := strings.TrimSpace(h); t != Header[i] {
			return layout, fmt.Errorf("unexpected header column %d %q, want %q", i, h, Header[i])
		} else if t != h {
			layout = LayoutLegacy
		}
	}
	return layout, nil
}

func parseRow(fields []string) (Record, error) {
	fields = trimTrailingEmpty(fields)
	if len(fields) != len(Header) {
		return Record{}, fmt.Errorf("want %d columns, got %d", len(Header), len(fields))
	}
	var v [5]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Record{}, fmt.Errorf("column %q: %w", Header[i], err)
		}
		v[i] = x
	}
	return Record{
		TimeS:  v[0],
		XPixel: int(math.Round(v[1])),
		YPixel: int(math.Round(v[2])),
		XMM:    v[3],
		YMM:    v[4],
	}, nil
}

func trimTrailingEmpty(fields []string) []string {
	for len(fields) > 0 && strings.TrimSpace(fields[len(fields)-1]) == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}
