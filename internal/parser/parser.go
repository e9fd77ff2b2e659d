// Package parser extracts track points from PhoneTrack GPX exports.
package parser

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"phonetrack-timeline/internal/models"
)

// sentinelYear marks points recorded before the device clock was set.
// These are a known exporter defect, not legitimate observations.
const sentinelYear = 2000

// encoding/xml matches unqualified struct tags against the local element
// name, so these decode documents with or without namespace-qualified tags.
type gpxDoc struct {
	Metadata struct {
		Name string `xml:"name"`
	} `xml:"metadata"`
	Tracks []gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Name     string `xml:"name"`
	Segments []struct {
		Points []trkpt `xml:"trkpt"`
	} `xml:"trkseg"`
}

type trkpt struct {
	Lat        string    `xml:"lat,attr"`
	Lon        string    `xml:"lon,attr"`
	Time       string    `xml:"time"`
	Ele        string    `xml:"ele"`
	Sat        string    `xml:"sat"`
	Extensions *trkptExt `xml:"extensions"`
}

type trkptExt struct {
	Speed        string `xml:"speed"`
	Course       string `xml:"course"`
	Accuracy     string `xml:"accuracy"`
	BatteryLevel string `xml:"batterylevel"`
	UserAgent    string `xml:"useragent"`
}

// ExtractFile reads every usable track point from a GPX file in document
// order. Points with a missing or unparseable timestamp and points carrying
// the year-2000 clock sentinel are dropped silently. A file that cannot be
// read or parsed returns a nil slice and the error; callers log a warning and
// continue with the rest of the batch.
func ExtractFile(path string) ([]models.TrackPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Extract(data)
}

// Extract parses raw GPX bytes. See ExtractFile.
func Extract(data []byte) ([]models.TrackPoint, error) {
	var doc gpxDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	var points []models.TrackPoint
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, pt := range seg.Points {
				if pt.Time == "" {
					continue
				}
				ts, err := ParseTimestamp(pt.Time)
				if err != nil {
					continue
				}
				if ts.Year() == sentinelYear {
					continue
				}
				p := models.TrackPoint{
					Lat:      pt.Lat,
					Lon:      pt.Lon,
					TimeText: pt.Time,
					Time:     ts,
					Ele:      pt.Ele,
					Sat:      pt.Sat,
				}
				if pt.Extensions != nil {
					p.HasExtensions = true
					p.Speed = pt.Extensions.Speed
					p.Course = pt.Extensions.Course
					p.Accuracy = pt.Extensions.Accuracy
					p.BatteryLevel = pt.Extensions.BatteryLevel
					p.UserAgent = pt.Extensions.UserAgent
				}
				points = append(points, p)
			}
		}
	}
	return points, nil
}

// timeLayouts accepts the trailing-Z form, explicit numeric offsets, and
// offset-less timestamps (interpreted as UTC).
var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a GPX <time> value. The returned time is normalized
// to UTC; the caller keeps the original text for identity and round-trip.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}

// Names returns the document's metadata name and first track name, or empty
// strings if absent. Used to label scrubbed output when the filename carries
// no identity.
func Names(data []byte) (session, track string) {
	var doc gpxDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", ""
	}
	if len(doc.Tracks) > 0 {
		track = doc.Tracks[0].Name
	}
	return doc.Metadata.Name, track
}
