package merge

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"phonetrack-timeline/internal/db"
	"phonetrack-timeline/internal/group"
	"phonetrack-timeline/internal/models"
	"phonetrack-timeline/internal/parser"
	"phonetrack-timeline/internal/writer"
)

// Options configures one batch merge run.
type Options struct {
	SourceDir       string
	OutputDir       string // default: SourceDir/Timelines
	DryRun          bool
	IncludeExisting bool // fold a pre-existing timeline back in as an input
}

// Summary aggregates a whole batch.
type Summary struct {
	Groups  int
	Files   int
	Points  int
	Results []models.MergeResult
}

// Runner drives scan -> extract -> consolidate -> write for each group. The
// logger and catalog are injected by the caller; the catalog may be nil, in
// which case runs simply go unrecorded.
type Runner struct {
	log     *log.Logger
	catalog *db.Database
}

// NewRunner creates a runner writing diagnostics to logger.
func NewRunner(logger *log.Logger, catalog *db.Database) *Runner {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Runner{log: logger, catalog: catalog}
}

// Run scans opts.SourceDir, consolidates every group found, and writes one
// timeline per group. A failure in one file or one group never aborts the
// others: bad files are skipped with a warning, groups left empty after
// filtering produce no output, and an unwritable destination fails only that
// group's write.
func (r *Runner) Run(opts Options) (*Summary, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = filepath.Join(opts.SourceDir, "Timelines")
	}

	groups, err := group.Scan(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	sum := &Summary{}
	for _, g := range groups {
		res, err := r.mergeGroup(g, opts)
		if err != nil {
			r.log.Printf("warning: [%s] %s: %v", g.Session, g.User, err)
			continue
		}
		if res == nil {
			// Nothing but sentinel or malformed data; treated as absent.
			r.log.Printf("[%s] %s: no valid points, skipping", g.Session, g.User)
			continue
		}
		sum.Groups++
		sum.Files += len(res.SourceFiles)
		sum.Points += res.Points
		sum.Results = append(sum.Results, *res)
	}
	return sum, nil
}

func (r *Runner) mergeGroup(g *models.Group, opts Options) (*models.MergeResult, error) {
	outPath := filepath.Join(opts.OutputDir, group.OutputName(g.Session, g.User))

	res := &models.MergeResult{
		Session:     g.Session,
		User:        g.User,
		Output:      outPath,
		SourceFiles: g.Files,
	}
	if opts.DryRun {
		return res, nil
	}

	started := time.Now()

	var existing []models.TrackPoint
	if opts.IncludeExisting {
		if _, err := os.Stat(outPath); err == nil {
			pts, err := parser.ExtractFile(outPath)
			if err != nil {
				r.log.Printf("warning: could not parse existing timeline %s: %v", outPath, err)
			} else {
				r.log.Printf("[%s] %s: %d existing points", g.Session, g.User, len(pts))
				existing = pts
			}
		}
	}

	var lists [][]models.TrackPoint
	total := len(existing)
	for _, f := range g.Files {
		pts, err := parser.ExtractFile(f)
		if err != nil {
			r.log.Printf("warning: could not parse %s: %v", f, err)
			continue
		}
		if len(pts) == 0 {
			continue
		}
		r.log.Printf("  %s: %d points", filepath.Base(f), len(pts))
		lists = append(lists, pts)
		total += len(pts)
	}

	merged := Consolidate(existing, lists...)
	if len(merged) == 0 {
		return nil, nil
	}

	if err := writer.WriteTimeline(outPath, g.Session, g.User, merged); err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}

	res.PointsIn = total
	res.Points = len(merged)
	res.Duplicates = total - len(merged)
	res.First = merged[0].Time
	res.Last = merged[len(merged)-1].Time

	r.record(g.NormSession, g.NormUser, res, started)
	return res, nil
}

// record books the run in the catalog. Catalog trouble is a warning only;
// the timeline on disk is already written.
func (r *Runner) record(normSession, normUser string, res *models.MergeResult, started time.Time) {
	if r.catalog == nil {
		return
	}
	err := r.catalog.UpsertTimeline(&models.TimelineRecord{
		Session:     res.Session,
		User:        res.User,
		NormSession: normSession,
		NormUser:    normUser,
		Path:        res.Output,
		Points:      res.Points,
		UpdatedAt:   time.Now().UTC(),
	})
	if err == nil {
		err = r.catalog.RecordRun(&models.MergeRun{
			Session:    res.Session,
			User:       res.User,
			Files:      len(res.SourceFiles),
			PointsIn:   res.PointsIn,
			PointsOut:  res.Points,
			Duplicates: res.Duplicates,
			StartedAt:  started.UTC(),
			DurationMs: time.Since(started).Milliseconds(),
		})
	}
	if err != nil {
		r.log.Printf("warning: could not record run in catalog: %v", err)
	}
}
