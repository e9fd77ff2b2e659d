package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"phonetrack-timeline/internal/db"
	"phonetrack-timeline/internal/models"
	"phonetrack-timeline/internal/writer"
)

func newTestServer(t *testing.T) (*Server, *db.Database) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return NewServer(database), database
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	var resp apiResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return rr, resp
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rr, resp := get(t, s, "/health")
	if rr.Code != http.StatusOK || !resp.Success {
		t.Errorf("health check failed: %d %+v", rr.Code, resp)
	}
}

func TestListTimelinesAndStats(t *testing.T) {
	s, database := newTestServer(t)

	database.UpsertTimeline(&models.TimelineRecord{
		Session: "Trip", User: "Ági", NormSession: "trip", NormUser: "agi",
		Path: "/nowhere", Points: 5, UpdatedAt: time.Now().UTC(),
	})
	database.RecordRun(&models.MergeRun{
		Session: "Trip", User: "Ági", Files: 2, PointsIn: 6, PointsOut: 5,
		Duplicates: 1, StartedAt: time.Now().UTC(), DurationMs: 10,
	})

	rr, resp := get(t, s, "/api/v1/timelines")
	if rr.Code != http.StatusOK || !resp.Success {
		t.Fatalf("list timelines failed: %d", rr.Code)
	}

	rr, _ = get(t, s, "/api/v1/runs?limit=10")
	if rr.Code != http.StatusOK {
		t.Errorf("list runs failed: %d", rr.Code)
	}

	rr, resp = get(t, s, "/api/v1/stats")
	if rr.Code != http.StatusOK {
		t.Fatalf("stats failed: %d", rr.Code)
	}
	stats, ok := resp.Data.(map[string]interface{})
	if !ok || stats["timelines"].(float64) != 1 {
		t.Errorf("unexpected stats payload: %+v", resp.Data)
	}
}

func TestGetTimelineNormalizesIdentity(t *testing.T) {
	s, database := newTestServer(t)

	path := filepath.Join(t.TempDir(), "Trip_Agi_TIMELINE.gpx")
	point := models.TrackPoint{Lat: "47.5", Lon: "19.0", TimeText: "2023-06-01T10:00:00Z", Time: time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)}
	if err := writer.WriteTimeline(path, "Trip", "Ági", []models.TrackPoint{point}); err != nil {
		t.Fatal(err)
	}
	database.UpsertTimeline(&models.TimelineRecord{
		Session: "Trip", User: "Ági", NormSession: "trip", NormUser: "agi",
		Path: path, Points: 1, UpdatedAt: time.Now().UTC(),
	})

	// Accent and case variants in the URL resolve to the same timeline.
	for _, url := range []string{"/api/v1/timelines/Trip/Ági", "/api/v1/timelines/trip/AGI"} {
		rr, resp := get(t, s, url)
		if rr.Code != http.StatusOK || !resp.Success {
			t.Errorf("GET %s failed: %d", url, rr.Code)
			continue
		}
		payload := resp.Data.(map[string]interface{})
		if payload["user"] != "Ági" {
			t.Errorf("display name lost: %+v", payload)
		}
		points := payload["points"].([]interface{})
		if len(points) != 1 {
			t.Errorf("expected 1 point, got %d", len(points))
		}
	}

	rr, _ := get(t, s, "/api/v1/timelines/Nope/Nobody")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing timeline should 404, got %d", rr.Code)
	}
}
