package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"phonetrack-timeline/internal/api"
	"phonetrack-timeline/internal/db"
	"phonetrack-timeline/internal/group"
	"phonetrack-timeline/internal/merge"
	"phonetrack-timeline/internal/parser"
	"phonetrack-timeline/internal/rescan"
	"phonetrack-timeline/internal/writer"

	"github.com/spf13/cobra"
)

var dbPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "phonetrack-timeline",
		Short: "PhoneTrack Timeline Merger - consolidate GPX exports into timeline files",
		Long: `Consolidates GPX exports from the PhoneTrack tracking app into one
deduplicated, chronologically ordered timeline file per session and device.
Overlapping daily and full exports merge without duplicating points, and
year-2000 clock-bug entries are filtered out.`,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "timeline_catalog.db", "Path to the SQLite merge catalog")

	rootCmd.AddCommand(mergeCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(scrubCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(serverCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openCatalog opens the merge catalog. For merge and update the catalog is a
// nice-to-have ledger: failure to open it is a warning, never a reason to
// skip consolidating.
func openCatalog(logger *log.Logger) *db.Database {
	catalog, err := db.New(dbPath)
	if err != nil {
		logger.Printf("warning: merge catalog unavailable: %v", err)
		return nil
	}
	return catalog
}

// mergeCmd scans a directory and merges every group of exports found.
func mergeCmd() *cobra.Command {
	var outputDir string
	var dryRun bool
	var includeExisting bool

	cmd := &cobra.Command{
		Use:   "merge [source_dir]",
		Short: "Scan a directory and merge GPX exports into timelines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceDir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(sourceDir); err != nil {
				return fmt.Errorf("source directory does not exist: %s", sourceDir)
			}
			if outputDir == "" {
				outputDir = filepath.Join(sourceDir, "Timelines")
			}

			fmt.Printf("Scanning: %s\n", sourceDir)
			fmt.Printf("Output:   %s\n\n", outputDir)

			logger := log.New(os.Stderr, "", log.LstdFlags)
			var catalog *db.Database
			if !dryRun {
				if catalog = openCatalog(logger); catalog != nil {
					defer catalog.Close()
				}
			}

			runner := merge.NewRunner(logger, catalog)
			sum, err := runner.Run(merge.Options{
				SourceDir:       sourceDir,
				OutputDir:       outputDir,
				DryRun:          dryRun,
				IncludeExisting: includeExisting,
			})
			if err != nil {
				return err
			}

			if len(sum.Results) == 0 {
				fmt.Println("No PhoneTrack GPX files found.")
				return nil
			}

			for _, res := range sum.Results {
				fmt.Printf("[%s] - %s\n", res.Session, res.User)
				fmt.Printf("  Files: %d\n", len(res.SourceFiles))
				fmt.Printf("  Output: %s\n", filepath.Base(res.Output))
				if dryRun {
					files := append([]string(nil), res.SourceFiles...)
					sort.Strings(files)
					for _, f := range files {
						fmt.Printf("    - %s\n", filepath.Base(f))
					}
				} else {
					fmt.Printf("  Total unique points: %d", res.Points)
					if res.Duplicates > 0 {
						fmt.Printf(" (%d duplicates removed)", res.Duplicates)
					}
					fmt.Println()
					fmt.Printf("  Date range: %s to %s\n",
						res.First.Format("2006-01-02 15:04:05"),
						res.Last.Format("2006-01-02 15:04:05"))
				}
				fmt.Println()
			}

			if !dryRun {
				fmt.Println(strings.Repeat("=", 50))
				fmt.Printf("Summary: Processed %d files into %d timelines\n", sum.Files, sum.Groups)
				fmt.Printf("         Total points: %d\n", sum.Points)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Output directory for timelines (default: source_dir/Timelines)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without merging")
	cmd.Flags().BoolVar(&includeExisting, "include-existing", false, "Fold an existing timeline back in as an input")
	return cmd
}

// updateCmd merges one freshly exported daily file into its timeline. This is
// the entry point wired to the host platform's workflow trigger.
func updateCmd() *cobra.Command {
	var file string
	var storagePath string
	var dataDir string
	var dryRun bool
	var noRescan bool
	var phpBin string
	var occPath string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Merge a single new daily export into its timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The workflow trigger may hand paths over with quotes attached.
			file = strings.Trim(file, `'"`)
			storagePath = strings.Trim(storagePath, `'"`)

			if _, err := os.Stat(file); err != nil {
				return fmt.Errorf("file does not exist: %s", file)
			}

			logger := log.New(os.Stderr, "", log.LstdFlags)
			var catalog *db.Database
			if !dryRun {
				if catalog = openCatalog(logger); catalog != nil {
					defer catalog.Close()
				}
			}

			var notifier merge.RescanNotifier
			if !noRescan && !dryRun {
				notifier = &rescan.Notifier{PHP: phpBin, OCC: occPath, Logger: logger}
			}

			runner := merge.NewRunner(logger, catalog)
			res, err := runner.Update(merge.UpdateOptions{
				File:        file,
				StoragePath: storagePath,
				DataDir:     dataDir,
				DryRun:      dryRun,
			}, notifier)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Printf("Would update: %s\n", res.Output)
				return nil
			}
			fmt.Printf("Updated %s: %d points", res.Output, res.Points)
			if res.Duplicates > 0 {
				fmt.Printf(" (%d duplicates removed)", res.Duplicates)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the new GPX file")
	cmd.Flags().StringVarP(&storagePath, "path", "p", "", "Storage-relative path ({user}/files/PhoneTrack_export/{filename}.gpx)")
	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", "/mnt/ncdata", "Storage data directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and log but do not write changes")
	cmd.Flags().BoolVar(&noRescan, "no-rescan", false, "Skip the post-write rescan hook")
	cmd.Flags().StringVar(&phpBin, "php", "php", "PHP binary for the rescan hook")
	cmd.Flags().StringVar(&occPath, "occ", "/var/www/html/occ", "occ entry point for the rescan hook")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("path")
	return cmd
}

// scrubCmd rewrites one GPX file with sentinel and unparseable points removed.
func scrubCmd() *cobra.Command {
	var output string
	var session string
	var device string

	cmd := &cobra.Command{
		Use:   "scrub [file.gpx]",
		Short: "Rewrite a GPX file without year-2000 clock-bug entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			points, err := parser.Extract(data)
			if err != nil {
				return fmt.Errorf("could not parse %s: %w", path, err)
			}
			if len(points) == 0 {
				return fmt.Errorf("no valid track points left in %s", path)
			}

			// Identity for the envelope: flags win, then the filename, then
			// whatever names the document itself carries.
			if session == "" || device == "" {
				if id, ok := group.ParseFilename(filepath.Base(path)); ok {
					if session == "" {
						session = id.Session
					}
					if device == "" {
						device = id.User
					}
				} else {
					metaName, trkName := parser.Names(data)
					if session == "" {
						session = metaName
					}
					if device == "" {
						device = trkName
					}
				}
			}

			merged := merge.Consolidate(points)
			if output == "" {
				output = path
			}
			if err := writer.WriteTimeline(output, session, device, merged); err != nil {
				return err
			}

			fmt.Printf("Scrubbed %s: %d points kept\n", path, len(merged))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: rewrite in place)")
	cmd.Flags().StringVarP(&session, "session", "s", "", "Session name for the output envelope")
	cmd.Flags().StringVarP(&device, "device", "D", "", "Device name for the output envelope")
	return cmd
}

// statsCmd shows merge catalog statistics.
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show merge catalog statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := db.New(dbPath)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer catalog.Close()

			stats, err := catalog.GetStats()
			if err != nil {
				return fmt.Errorf("error getting stats: %w", err)
			}

			fmt.Println("PhoneTrack Timeline Merger Statistics")
			fmt.Println("=====================================")
			fmt.Printf("  Timelines:    %v\n", stats["timelines"])
			fmt.Printf("  Total points: %v\n", stats["total_points"])
			fmt.Printf("  Merge runs:   %v\n", stats["merge_runs"])
			if last, ok := stats["last_run"]; ok {
				fmt.Printf("  Last run:     %v\n", last)
			}
			fmt.Printf("  Catalog:      %s\n", dbPath)
			return nil
		},
	}
}

// serverCmd starts the REST API server over the catalog.
func serverCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := db.New(dbPath)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer catalog.Close()

			server := api.NewServer(catalog)
			addr := fmt.Sprintf(":%d", port)

			fmt.Printf("PhoneTrack Timeline API Server\n")
			fmt.Printf("   Listening on http://localhost%s\n", addr)
			fmt.Printf("   Catalog: %s\n\n", dbPath)
			fmt.Println("Available endpoints:")
			fmt.Println("  GET /health")
			fmt.Println("  GET /api/v1/timelines")
			fmt.Println("  GET /api/v1/timelines/{session}/{user}")
			fmt.Println("  GET /api/v1/runs")
			fmt.Println("  GET /api/v1/stats")
			fmt.Println()

			return http.ListenAndServe(addr, server.Router())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Server port")
	return cmd
}
