package group

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFilename(t *testing.T) {
	cases := []struct {
		name    string
		session string
		user    string
		date    string
		ok      bool
	}{
		{"Trip_daily_2023-06-01_Agi.gpx", "Trip", "Agi", "2023-06-01", true},
		{"Pifi Mifi Day to Day_daily_2023-06-01_Gabor.gpx", "Pifi Mifi Day to Day", "Gabor", "2023-06-01", true},
		{"Trip_Agi.gpx", "Trip", "Agi", "", true},
		{"My_Long_Session_Agi.gpx", "My_Long_Session", "Agi", "", true},
		{"Trip_Agi_TIMELINE.gpx", "", "", "", false},
		{"Trip_timeline.gpx", "", "", "", false},
		{"Trip_Merged.gpx", "", "", "", false},
		{"Trip_combined.gpx", "", "", "", false},
		{"nounderscores.gpx", "", "", "", false},
		{"Trip_Agi.kml", "", "", "", false},
	}
	for _, c := range cases {
		id, ok := ParseFilename(c.name)
		if ok != c.ok {
			t.Errorf("ParseFilename(%q) ok = %v, want %v", c.name, ok, c.ok)
			continue
		}
		if !ok {
			continue
		}
		if id.Session != c.session || id.User != c.user || id.Date != c.date {
			t.Errorf("ParseFilename(%q) = %+v", c.name, id)
		}
	}
}

func TestParseStoragePath(t *testing.T) {
	sid, ok := ParseStoragePath("gabor/files/PhoneTrack_export/Trip_daily_2023-06-01_Ági.gpx")
	if !ok {
		t.Fatal("expected storage path to parse")
	}
	if sid.Owner != "gabor" || sid.Session != "Trip" || sid.Device != "Ági" || sid.Date != "2023-06-01" {
		t.Errorf("unexpected identity: %+v", sid)
	}

	if _, ok := ParseStoragePath("gabor/files/PhoneTrack_export/Trip_Agi.gpx"); ok {
		t.Error("full exports must not trigger updates")
	}
	if _, ok := ParseStoragePath("short"); ok {
		t.Error("expected too-short path to be rejected")
	}
}

func TestScanGroupsAccentVariants(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"Trip_Agi.gpx",
		"Trip_daily_2023-06-01_Ági.gpx",
		"Trip_daily_2023-06-02_AGI.gpx",
		"Trip_Gabor.gpx",
		"Trip_Agi_TIMELINE.gpx",
		"notes.txt",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("<gpx/>"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Files in subdirectories are picked up too.
	sub := filepath.Join(dir, "archive")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "Trip_daily_2023-06-03_agi.gpx"), []byte("<gpx/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	groups, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	// Sorted by normalized key: (trip, agi) before (trip, gabor).
	agi := groups[0]
	if agi.NormSession != "trip" || agi.NormUser != "agi" {
		t.Fatalf("unexpected first group: %+v", agi)
	}
	if len(agi.Files) != 4 {
		t.Errorf("expected 4 files in the agi group, got %d", len(agi.Files))
	}
	// Display names come from the first file in lexical walk order.
	if agi.Session != "Trip" || agi.User != "Agi" {
		t.Errorf("display names = %q/%q, want Trip/Agi", agi.Session, agi.User)
	}

	if groups[1].User != "Gabor" || len(groups[1].Files) != 1 {
		t.Errorf("unexpected second group: %+v", groups[1])
	}
}

func TestOutputName(t *testing.T) {
	if got := OutputName("Trip", "Ági"); got != "Trip_Agi_TIMELINE.gpx" {
		t.Errorf("OutputName = %q", got)
	}
}
