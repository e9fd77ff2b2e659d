package models

import "time"

// TrackPoint represents a single GPS fix extracted from a PhoneTrack GPX export.
// Latitude, longitude and the time text are kept exactly as they appear in the
// source document so merged output round-trips without reformatting and
// duplicate detection compares the bytes the exporter actually produced.
type TrackPoint struct {
	Lat      string    `json:"lat"`
	Lon      string    `json:"lon"`
	TimeText string    `json:"time"`
	Time     time.Time `json:"-"` // parsed from TimeText, UTC

	Ele string `json:"ele,omitempty"`
	Sat string `json:"sat,omitempty"`

	// HasExtensions records whether the source point carried an <extensions>
	// wrapper at all; an empty wrapper is still emitted on output.
	HasExtensions bool   `json:"-"`
	Speed         string `json:"speed,omitempty"`
	Course        string `json:"course,omitempty"`
	Accuracy      string `json:"accuracy,omitempty"`
	BatteryLevel  string `json:"batterylevel,omitempty"`
	UserAgent     string `json:"useragent,omitempty"`
}

// PointKey is the identity triple used for duplicate detection. Elevation and
// extension readings are deliberately not part of the key: points at the same
// position and time are the same observation.
type PointKey struct {
	Lat  string
	Lon  string
	Time string
}

// Key returns the point's identity key.
func (p TrackPoint) Key() PointKey {
	return PointKey{Lat: p.Lat, Lon: p.Lon, Time: p.TimeText}
}

// Group is one (session, user) consolidation unit. Session and User keep the
// casing of the first file seen during a scan; NormSession and NormUser are
// the accent-stripped, case-folded forms used for matching.
type Group struct {
	Session     string
	User        string
	NormSession string
	NormUser    string
	Files       []string
}

// MergeResult summarizes one group's consolidation.
type MergeResult struct {
	Session     string    `json:"session"`
	User        string    `json:"user"`
	Output      string    `json:"output"`
	SourceFiles []string  `json:"-"`
	PointsIn    int       `json:"points_in"`
	Points      int       `json:"points"`
	Duplicates  int       `json:"duplicates"`
	First       time.Time `json:"first,omitempty"`
	Last        time.Time `json:"last,omitempty"`
}

// TimelineRecord is a catalog row describing one timeline file on disk.
type TimelineRecord struct {
	ID          int64     `json:"id"`
	Session     string    `json:"session"`
	User        string    `json:"user"`
	NormSession string    `json:"-"`
	NormUser    string    `json:"-"`
	Path        string    `json:"path"`
	Points      int       `json:"points"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MergeRun is a catalog row recording one consolidation of one group.
type MergeRun struct {
	ID         int64     `json:"id"`
	Session    string    `json:"session"`
	User       string    `json:"user"`
	Files      int       `json:"files"`
	PointsIn   int       `json:"points_in"`
	PointsOut  int       `json:"points_out"`
	Duplicates int       `json:"duplicates"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}
