// Package writer renders consolidated track points back into the PhoneTrack
// GPX export format. The envelope and per-point element order reproduce the
// structure the exporting app emits, so downstream consumers of the original
// exports accept timelines unchanged.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"phonetrack-timeline/internal/models"
)

const gpxOpen = `<gpx xmlns="http://www.topografix.com/GPX/1/1" ` +
	`xmlns:gpxx="http://www.garmin.com/xmlschemas/GpxExtensions/v3" ` +
	`xmlns:wptx1="http://www.garmin.com/xmlschemas/WaypointExtension/v1" ` +
	`xmlns:gpxtpx="http://www.garmin.com/xmlschemas/TrackPointExtension/v1" ` +
	`creator="PhoneTrack Timeline Merger" version="1.1" ` +
	`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ` +
	`xsi:schemaLocation="http://www.topografix.com/GPX/1/1 http://www.topografix.com/GPX/1/1/gpx.xsd ` +
	`http://www.garmin.com/xmlschemas/GpxExtensions/v3 http://www8.garmin.com/xmlschemas/GpxExtensionsv3.xsd ` +
	`http://www.garmin.com/xmlschemas/WaypointExtension/v1 http://www8.garmin.com/xmlschemas/WaypointExtensionv1.xsd ` +
	`http://www.garmin.com/xmlschemas/TrackPointExtension/v1 http://www.garmin.com/xmlschemas/TrackPointExtensionv1.xsd">`

// Render produces the timeline document for an already sorted, deduplicated
// point sequence. Per point the element order is fixed: time, ele, sat, then
// an extensions block with whichever recognized fields the source point had.
// Absent fields are omitted, never emitted empty.
func Render(session, user string, points []models.TrackPoint, exportTime time.Time) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="no" ?>` + "\n")
	b.WriteString(gpxOpen + "\n")
	b.WriteString("<metadata>\n")
	fmt.Fprintf(&b, " <time>%s</time>\n", exportTime.UTC().Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&b, " <name>%s</name>\n", session)
	b.WriteString("</metadata>\n")
	b.WriteString("<trk>\n")
	fmt.Fprintf(&b, " <name>%s</name>\n", user)
	b.WriteString(" <trkseg>\n")

	for _, p := range points {
		fmt.Fprintf(&b, "  <trkpt lat=\"%s\" lon=\"%s\">\n", p.Lat, p.Lon)
		fmt.Fprintf(&b, "   <time>%s</time>\n", p.TimeText)
		if p.Ele != "" {
			fmt.Fprintf(&b, "   <ele>%s</ele>\n", p.Ele)
		}
		if p.Sat != "" {
			fmt.Fprintf(&b, "   <sat>%s</sat>\n", p.Sat)
		}
		if p.HasExtensions {
			b.WriteString("   <extensions>\n")
			for _, ext := range []struct{ tag, val string }{
				{"speed", p.Speed},
				{"course", p.Course},
				{"accuracy", p.Accuracy},
				{"batterylevel", p.BatteryLevel},
				{"useragent", p.UserAgent},
			} {
				if ext.val != "" {
					fmt.Fprintf(&b, "     <%s>%s</%s>\n", ext.tag, ext.val, ext.tag)
				}
			}
			b.WriteString("   </extensions>\n")
		}
		b.WriteString("  </trkpt>\n")
	}

	b.WriteString(" </trkseg>\n")
	b.WriteString("</trk>\n")
	b.WriteString("</gpx>")
	return b.String()
}

// WriteTimeline renders the timeline and writes it through a temporary file
// in the destination directory, renamed into place, so readers never observe
// a partially written timeline.
func WriteTimeline(path, session, user string, points []models.TrackPoint) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".timeline-*.gpx")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	content := Render(session, user, points, time.Now())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write timeline: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close timeline: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move timeline into place: %w", err)
	}
	return nil
}
