package merge

import (
	"testing"

	"phonetrack-timeline/internal/models"
	"phonetrack-timeline/internal/parser"
)

func pt(lat, lon, timeText string) models.TrackPoint {
	ts, err := parser.ParseTimestamp(timeText)
	if err != nil {
		panic(err)
	}
	return models.TrackPoint{Lat: lat, Lon: lon, TimeText: timeText, Time: ts}
}

func keys(pts []models.TrackPoint) []models.PointKey {
	out := make([]models.PointKey, len(pts))
	for i, p := range pts {
		out[i] = p.Key()
	}
	return out
}

func TestConsolidateBasicMerge(t *testing.T) {
	a := []models.TrackPoint{
		pt("47.5", "19.0", "2023-06-01T10:00:00Z"),
		pt("47.5", "19.0", "2023-06-01T10:05:00Z"),
	}
	b := []models.TrackPoint{
		pt("47.5", "19.0", "2023-06-01T10:05:00Z"), // duplicate
		pt("47.5", "19.0", "2023-06-01T10:10:00Z"),
	}

	got := Consolidate(nil, a, b)
	if len(got) != 3 {
		t.Fatalf("expected 3 points, got %d", len(got))
	}
	for i, want := range []string{"2023-06-01T10:00:00Z", "2023-06-01T10:05:00Z", "2023-06-01T10:10:00Z"} {
		if got[i].TimeText != want {
			t.Errorf("point %d = %s, want %s", i, got[i].TimeText, want)
		}
	}
}

func TestConsolidateSortsOutOfOrderInput(t *testing.T) {
	a := []models.TrackPoint{
		pt("1", "1", "2023-06-01T12:00:00Z"),
		pt("1", "1", "2023-06-01T09:00:00Z"),
		pt("1", "1", "2023-06-01T10:30:00Z"),
	}
	got := Consolidate(nil, a)
	for i := 1; i < len(got); i++ {
		if got[i].Time.Before(got[i-1].Time) {
			t.Fatalf("output not sorted at index %d", i)
		}
	}
}

func TestConsolidateFirstOccurrenceWins(t *testing.T) {
	first := pt("1", "1", "2023-06-01T10:00:00Z")
	first.BatteryLevel = "90"
	second := pt("1", "1", "2023-06-01T10:00:00Z")
	second.BatteryLevel = "85"

	got := Consolidate(nil, []models.TrackPoint{first}, []models.TrackPoint{second})
	if len(got) != 1 {
		t.Fatalf("expected 1 point, got %d", len(got))
	}
	if got[0].BatteryLevel != "90" {
		t.Error("first occurrence of a duplicate key must be kept")
	}
}

func TestConsolidateTimestampTieKeepsBoth(t *testing.T) {
	// Same second, different locations: the identity keys differ, both stay,
	// in concatenation order.
	a := pt("1.0", "1.0", "2023-06-01T10:00:00Z")
	b := pt("2.0", "2.0", "2023-06-01T10:00:00Z")

	got := Consolidate(nil, []models.TrackPoint{a}, []models.TrackPoint{b})
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	if got[0].Lat != "1.0" || got[1].Lat != "2.0" {
		t.Error("stable sort must keep concatenation order on ties")
	}
}

func TestConsolidateIdentityKeyIsTextual(t *testing.T) {
	// Same instant, different original spellings: distinct identity keys.
	a := pt("1", "1", "2023-06-01T10:00:00Z")
	b := pt("1", "1", "2023-06-01T12:00:00+02:00")
	got := Consolidate(nil, []models.TrackPoint{a, b})
	if len(got) != 2 {
		t.Fatalf("expected 2 points (textual identity), got %d", len(got))
	}
}

func TestConsolidateIdempotence(t *testing.T) {
	a := []models.TrackPoint{
		pt("1", "1", "2023-06-01T10:00:00Z"),
		pt("1", "1", "2023-06-01T10:05:00Z"),
	}
	b := []models.TrackPoint{
		pt("1", "1", "2023-06-01T10:05:00Z"),
		pt("2", "2", "2023-06-01T10:03:00Z"),
	}

	merged := Consolidate(a, b)
	again := Consolidate(merged)
	if len(again) != len(merged) {
		t.Fatalf("re-consolidating output changed size: %d -> %d", len(merged), len(again))
	}
	mk, ak := keys(merged), keys(again)
	for i := range mk {
		if mk[i] != ak[i] {
			t.Fatalf("re-consolidating output changed order at %d", i)
		}
	}

	// Merging the same source twice is also a no-op.
	twice := Consolidate(a, b, b)
	if len(twice) != len(merged) {
		t.Errorf("merging a source twice changed size: %d", len(twice))
	}
}

func TestConsolidateIncrementalUpdate(t *testing.T) {
	existing := []models.TrackPoint{
		pt("1", "1", "2023-06-01T10:00:00Z"), // t1
		pt("1", "1", "2023-06-01T10:05:00Z"), // t2
	}
	daily := []models.TrackPoint{
		pt("1", "1", "2023-06-01T10:05:00Z"), // t2 duplicate
		pt("1", "1", "2023-06-01T10:10:00Z"), // t3
	}

	got := Consolidate(existing, daily)
	if len(got) != 3 {
		t.Fatalf("expected 3 points, got %d", len(got))
	}

	// Monotonicity: every existing point is still there.
	seen := make(map[models.PointKey]bool)
	for _, p := range got {
		seen[p.Key()] = true
	}
	for _, p := range existing {
		if !seen[p.Key()] {
			t.Errorf("existing point %v lost", p.Key())
		}
	}

	// Running the same update again is a no-op.
	again := Consolidate(got, daily)
	if len(again) != 3 {
		t.Errorf("repeated update changed size: %d", len(again))
	}
}

func TestConsolidateEmpty(t *testing.T) {
	if got := Consolidate(nil); len(got) != 0 {
		t.Errorf("expected empty output, got %d points", len(got))
	}
	if got := Consolidate(nil, nil, []models.TrackPoint{}); len(got) != 0 {
		t.Errorf("expected empty output, got %d points", len(got))
	}
}
