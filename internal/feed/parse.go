// Package feed ingests vessel position reports from line-oriented
// sources: plain files, a serial-attached AIS receiver, and captured
// UDP packet traces.
package feed

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/crossing.report/internal/track"
)

// ParseLine decodes one "vessel_id,x,y,ts" record. Blank lines and
// lines starting with '#' yield (zero, false, nil).
func ParseLine(line string) (track.PositionReport, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return track.PositionReport{}, false, nil
	}

	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return track.PositionReport{}, false, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}

	vesselID := strings.TrimSpace(fields[0])
	if vesselID == "" {
		return track.PositionReport{}, false, fmt.Errorf("empty vessel id")
	}

	x, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return track.PositionReport{}, false, fmt.Errorf("bad x coordinate: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return track.PositionReport{}, false, fmt.Errorf("bad y coordinate: %w", err)
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
	if err != nil {
		return track.PositionReport{}, false, fmt.Errorf("bad timestamp: %w", err)
	}

	r := track.PositionReport{VesselID: vesselID, X: x, Y: y, Timestamp: ts}
	if !r.Valid() {
		return track.PositionReport{}, false, fmt.Errorf("non-finite coordinates")
	}
	return r, true, nil
}

// ParseStats counts the outcome of a bulk parse.
type ParseStats struct {
	Lines     int64
	Reports   int64
	Malformed int64
}

// ParseReader reads position reports line by line until EOF. Malformed
// lines are counted and skipped, never fatal.
func ParseReader(r io.Reader, stats *ParseStats) ([]track.PositionReport, error) {
	var out []track.PositionReport
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		stats.Lines++
		report, ok, err := ParseLine(scan.Text())
		if err != nil {
			stats.Malformed++
			continue
		}
		if !ok {
			continue
		}
		out = append(out, report)
		stats.Reports++
	}
	if err := scan.Err(); err != nil {
		return out, fmt.Errorf("failed to read feed: %w", err)
	}
	return out, nil
}
