package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"phonetrack-timeline/internal/group"
	"phonetrack-timeline/internal/models"
	"phonetrack-timeline/internal/normalize"
	"phonetrack-timeline/internal/parser"
	"phonetrack-timeline/internal/writer"
)

// exportSubdir is where the tracking app drops its exports inside an
// account, and timelinesSubdir is where updated timelines go below that.
const (
	exportSubdir    = "PhoneTrack_export"
	timelinesSubdir = "TIMELINES"
)

// UpdateOptions configures a triggered single-file update: a workflow hook
// hands over a freshly exported daily file plus its storage-relative path.
type UpdateOptions struct {
	File        string // the new GPX file on disk
	StoragePath string // {owner}/files/PhoneTrack_export/{filename}.gpx
	DataDir     string // storage root, e.g. /mnt/ncdata
	DryRun      bool
}

// RescanNotifier is the post-write hook telling the host platform to
// re-index the timeline directory. Failures are logged, never fatal.
type RescanNotifier interface {
	Scan(user, relPath string) error
}

// Update merges one new daily export into its account's timeline. The
// timeline lands at
// {DataDir}/{owner}/files/PhoneTrack_export/TIMELINES/{Session}_{Device}_TIMELINE.gpx
// with accent-stripped names. After a successful write the notifier (if any)
// is fired.
func (r *Runner) Update(opts UpdateOptions, notifier RescanNotifier) (*models.MergeResult, error) {
	sid, ok := group.ParseStoragePath(opts.StoragePath)
	if !ok {
		return nil, fmt.Errorf("unrecognized storage path: %s", opts.StoragePath)
	}
	r.log.Printf("processing: owner=%s session=%s device=%s date=%s",
		sid.Owner, sid.Session, sid.Device, sid.Date)

	timelineDir := filepath.Join(opts.DataDir, sid.Owner, "files", exportSubdir, timelinesSubdir)
	outPath := filepath.Join(timelineDir, group.OutputName(sid.Session, sid.Device))

	res := &models.MergeResult{
		Session:     sid.Session,
		User:        sid.Device,
		Output:      outPath,
		SourceFiles: []string{opts.File},
	}
	if opts.DryRun {
		r.log.Printf("dry run: would update %s", outPath)
		return res, nil
	}

	started := time.Now()

	newPoints, err := parser.ExtractFile(opts.File)
	if err != nil {
		return nil, fmt.Errorf("could not parse new export: %w", err)
	}
	if len(newPoints) == 0 {
		return nil, fmt.Errorf("no valid track points in %s", opts.File)
	}
	r.log.Printf("new export has %d points", len(newPoints))

	var existing []models.TrackPoint
	if _, err := os.Stat(outPath); err == nil {
		existing, err = parser.ExtractFile(outPath)
		if err != nil {
			r.log.Printf("warning: could not parse existing timeline %s: %v", outPath, err)
			existing = nil
		} else {
			r.log.Printf("existing timeline has %d points", len(existing))
		}
	} else {
		r.log.Printf("no existing timeline, creating new one")
	}

	merged := Consolidate(existing, newPoints)
	if err := writer.WriteTimeline(outPath, sid.Session, sid.Device, merged); err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}
	r.log.Printf("timeline updated: %s (%d points)", outPath, len(merged))

	res.PointsIn = len(existing) + len(newPoints)
	res.Points = len(merged)
	res.Duplicates = res.PointsIn - res.Points
	res.First = merged[0].Time
	res.Last = merged[len(merged)-1].Time

	r.record(normalize.Fold(sid.Session), normalize.Fold(sid.Device), res, started)

	if notifier != nil {
		relPath := "/" + sid.Owner + "/files/" + exportSubdir + "/" + timelinesSubdir
		if err := notifier.Scan(sid.Owner, relPath); err != nil {
			r.log.Printf("warning: rescan hook failed: %v", err)
		}
	}
	return res, nil
}
