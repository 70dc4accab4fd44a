package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"vehicle-dynamics-dashboard/internal/api"
	"vehicle-dynamics-dashboard/internal/chart"
	"vehicle-dynamics-dashboard/internal/compat"
	"vehicle-dynamics-dashboard/internal/config"
	"vehicle-dynamics-dashboard/internal/db"
	"vehicle-dynamics-dashboard/internal/models"
	"vehicle-dynamics-dashboard/internal/session"
	"vehicle-dynamics-dashboard/internal/store"

	"github.com/spf13/cobra"
)

var (
	cfgPath   string
	dbPath    string
	sampleDir string
	cfg       *config.Config
	database  *db.Database
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vdash",
		Short: "Vehicle Dynamics Dashboard - synthetic test-drive generation and analysis",
		Long: `A CLI tool for generating synthetic vehicle test-drive data and analysing
speed, acceleration, braking and fuel efficiency per vehicle and driving
profile. Runs can be archived to SQLite and served over a REST API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.LoadOrDefault(cfgPath); err != nil {
				return err
			}
			// flags win over the config file
			if !cmd.Flags().Changed("db") {
				dbPath = cfg.GetDBPath()
			}
			if !cmd.Flags().Changed("sample-dir") {
				sampleDir = cfg.GetSampleDir()
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to JSON config file (default vdash.json if present)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath, "Path to SQLite run archive")
	rootCmd.PersistentFlags().StringVar(&sampleDir, "sample-dir", config.DefaultSampleDir, "Directory generated runs are written to")

	// Add commands
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(filesCmd())
	rootCmd.AddCommand(combosCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(plotCmd())
	rootCmd.AddCommand(serverCmd())
	rootCmd.AddCommand(archiveCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(statsCmd())

	return rootCmd
}

// initDB initializes database connection
func initDB() error {
	var err error
	database, err = db.New(dbPath)
	return err
}

func newSession() *session.Session {
	return session.New(session.Options{
		Store:            store.New(sampleDir),
		BrakingThreshold: cfg.GetBrakingThreshold(),
		Seed:             cfg.GetSeed(),
		DefaultDurationS: cfg.GetDefaultDurationS(),
		DurationWarnS:    cfg.GetDurationWarnS(),
	})
}

// openSelection loads file (or the newest generated file) and selects the
// requested pair, defaulting to the first pair present.
func openSelection(args []string, vehicle, profile string) (*session.Session, error) {
	sess := newSession()

	var file string
	if len(args) > 0 {
		file = args[0]
	} else {
		files, err := sess.Store().List()
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no files in %s; run 'vdash generate' first", sess.Store().Dir())
		}
		file = files[len(files)-1]
	}

	if _, err := sess.Load(file); err != nil {
		return nil, err
	}

	switch {
	case vehicle != "" && profile != "":
		vt, err := models.ParseVehicleType(vehicle)
		if err != nil {
			return nil, err
		}
		pt, err := models.ParseProfileType(profile)
		if err != nil {
			return nil, err
		}
		if _, err := sess.Select(vt, pt); err != nil {
			return nil, err
		}
	case vehicle != "":
		if _, err := sess.Cascade(compat.VehicleAxis, vehicle); err != nil {
			return nil, err
		}
	case profile != "":
		if _, err := sess.Cascade(compat.ProfileAxis, profile); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// generateCmd synthesizes a test-drive run into the sample directory
func generateCmd() *cobra.Command {
	var vehicle, profile string
	var duration int
	var seed uint64
	var archive bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic test-drive run",
		RunE: func(cmd *cobra.Command, args []string) error {
			vt, err := models.ParseVehicleType(vehicle)
			if err != nil {
				return err
			}
			pt, err := models.ParseProfileType(profile)
			if err != nil {
				return err
			}

			req := session.GenerateRequest{Vehicle: vt, Profile: pt}
			if cmd.Flags().Changed("duration") {
				req.DurationS = &duration
			}
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}

			start := time.Now()
			sess := newSession()
			path, snap, err := sess.Generate(req)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Generated %d samples for %s/%s in %v\n", snap.Samples, vt, pt, time.Since(start))
			fmt.Printf("  Saved to %s\n", path)

			if archive {
				if err := initDB(); err != nil {
					return fmt.Errorf("database error: %w", err)
				}
				defer database.Close()

				run, err := database.InsertRun(sess.Dataset())
				if err != nil {
					return fmt.Errorf("archive error: %w", err)
				}
				fmt.Printf("  Archived as run %s\n", run.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&vehicle, "vehicle", "V", string(models.Sedan), "Vehicle type (sedan, SUV, sports)")
	cmd.Flags().StringVarP(&profile, "profile", "P", string(models.Urban), "Driving profile (urban, highway, sport)")
	cmd.Flags().IntVarP(&duration, "duration", "d", 0, "Duration in seconds (default from config, 300)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (default from config, 42)")
	cmd.Flags().BoolVar(&archive, "archive", false, "Also archive the run to the database")
	return cmd
}

// filesCmd lists the sample directory
func filesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List generated data files",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := store.New(sampleDir)
			files, err := st.List()
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Printf("No data files in %s. Use 'vdash generate' to create one.\n", st.Dir())
				return nil
			}
			for _, f := range files {
				fmt.Println(f)
			}
			return nil
		},
	}
}

// combosCmd prints the vehicle/profile combinations present in a file
func combosCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "combos [file]",
		Short: "Show vehicle/profile combinations present in a data file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSelection(args, "", "")
			if err != nil {
				return err
			}
			snap := sess.Snapshot()

			if outputFormat == "json" {
				return printJSON(snap.Combinations)
			}

			fmt.Printf("%s (%d samples)\n\n", snap.Source, snap.Samples)
			fmt.Println("By vehicle:")
			for _, vt := range models.VehicleTypes {
				if profiles, ok := snap.Combinations.ByVehicle[vt]; ok {
					fmt.Printf("  %-8s %v\n", vt, profiles)
				}
			}
			fmt.Println("By profile:")
			for _, pt := range models.ProfileTypes {
				if vehicles, ok := snap.Combinations.ByProfile[pt]; ok {
					fmt.Printf("  %-8s %v\n", pt, vehicles)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// summaryCmd prints statistics for one selection
func summaryCmd() *cobra.Command {
	var vehicle, profile, outputFormat string
	var all, events bool

	cmd := &cobra.Command{
		Use:   "summary [file]",
		Short: "Show speed, braking and fuel statistics for a selection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSelection(args, vehicle, profile)
			if err != nil {
				return err
			}

			if all {
				channels, err := sess.SummaryAll()
				if err != nil {
					return err
				}
				if outputFormat == "json" {
					return printJSON(channels)
				}
				fmt.Printf("%-16s %10s %10s %10s %10s %10s\n", "Channel", "Mean", "Median", "StdDev", "Min", "Max")
				for _, row := range []struct {
					name string
					s    models.ChannelStats
				}{
					{"speed", channels.Speed},
					{"acceleration", channels.Acceleration},
					{"fuel_rate", channels.FuelRate},
					{"fuel_efficiency", channels.FuelEfficiency},
				} {
					fmt.Printf("%-16s %10.2f %10.2f %10.2f %10.2f %10.2f\n",
						row.name, row.s.Mean, row.s.Median, row.s.StdDev, row.s.Min, row.s.Max)
				}
				return nil
			}

			if events {
				list, err := sess.BrakingEvents()
				if err != nil {
					return err
				}
				if outputFormat == "json" {
					return printJSON(list)
				}
				fmt.Printf("%d braking events (threshold %.1f m/s²)\n", len(list), sess.BrakingThreshold())
				for _, e := range list {
					fmt.Printf("  t=%4d..%-4d  %2d samples  peak %.2f m/s²  from %.1f km/h\n",
						e.Start, e.End, e.Samples, e.PeakDecel, e.SpeedAtStart)
				}
				return nil
			}

			sum, err := sess.Summary()
			if err != nil {
				return err
			}
			if outputFormat == "json" {
				return printJSON(sum)
			}

			fmt.Printf("📈 Speed summary for %s (%d samples)\n", sum.Pair, sum.Samples)
			fmt.Println("==========================================")
			fmt.Printf("  Mean:      %.2f km/h\n", sum.Speed.Mean)
			fmt.Printf("  Median:    %.2f km/h\n", sum.Speed.Median)
			fmt.Printf("  Std Dev:   %.2f km/h\n", sum.Speed.StdDev)
			fmt.Printf("  Min / Max: %.2f / %.2f km/h\n", sum.Speed.Min, sum.Speed.Max)
			fmt.Printf("  Range:     %.2f km/h\n", sum.Speed.Range)
			fmt.Printf("  Q1 / Q3:   %.2f / %.2f km/h\n", sum.Speed.Q1, sum.Speed.Q3)
			fmt.Printf("  Braking:   %d samples at or below %.1f m/s²\n", sum.BrakingCount, sum.BrakingThreshold)
			return nil
		},
	}

	cmd.Flags().StringVarP(&vehicle, "vehicle", "V", "", "Vehicle type to select")
	cmd.Flags().StringVarP(&profile, "profile", "P", "", "Driving profile to select")
	cmd.Flags().BoolVar(&all, "all", false, "Describe every channel")
	cmd.Flags().BoolVar(&events, "events", false, "List braking events")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// plotCmd renders one figure of a selection to a file
func plotCmd() *cobra.Command {
	var vehicle, profile, kind, format, output string

	cmd := &cobra.Command{
		Use:   "plot [file]",
		Short: "Render a chart (basic-stats, acceleration, fuel-efficiency, braking, speed)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := chart.ParseKind(kind)
			if err != nil {
				return err
			}
			format = strings.ToLower(format)
			if format != "png" && format != "html" {
				return fmt.Errorf("unsupported format %q (want png or html)", format)
			}

			sess, err := openSelection(args, vehicle, profile)
			if err != nil {
				return err
			}
			fig, err := sess.Figure(k)
			if err != nil {
				return err
			}

			if output == "" {
				pair := sess.Snapshot().Selection
				output = fmt.Sprintf("%s_%s_%s.%s", k, pair.Vehicle, pair.Profile, format)
			}
			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("error creating output file: %w", err)
			}
			defer file.Close()

			if format == "png" {
				err = chart.RenderPNG(file, fig)
			} else {
				err = chart.RenderHTML(file, fig)
			}
			if err != nil {
				return err
			}
			fmt.Printf("✓ %s written to %s\n", fig.Title, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&vehicle, "vehicle", "V", "", "Vehicle type to select")
	cmd.Flags().StringVarP(&profile, "profile", "P", "", "Driving profile to select")
	cmd.Flags().StringVarP(&kind, "kind", "k", string(chart.Speed), "Chart kind")
	cmd.Flags().StringVarP(&format, "format", "f", "png", "Output format (png, html)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <kind>_<vehicle>_<profile>.<format>)")
	return cmd
}

// serverCmd starts the REST API server
func serverCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			if !cmd.Flags().Changed("addr") {
				addr = cfg.GetListenAddr()
			}

			sess := newSession()
			// start on the newest generated file when there is one
			if files, err := sess.Store().List(); err == nil && len(files) > 0 {
				if _, err := sess.Load(files[len(files)-1]); err != nil {
					fmt.Printf("   Could not load %s: %v\n", files[len(files)-1], err)
				}
			}

			server := api.NewServer(sess, database)

			fmt.Printf("🚀 Vehicle Dynamics Dashboard API Server\n")
			fmt.Printf("   Listening on http://%s\n", addr)
			fmt.Printf("   Sample dir: %s\n", sampleDir)
			fmt.Printf("   Database: %s\n\n", dbPath)
			fmt.Println("Available endpoints:")
			fmt.Println("  GET  /health")
			fmt.Println("  GET  /api/v1/files")
			fmt.Println("  POST /api/v1/load")
			fmt.Println("  POST /api/v1/generate")
			fmt.Println("  GET  /api/v1/combinations")
			fmt.Println("  PUT  /api/v1/selection")
			fmt.Println("  GET  /api/v1/summary")
			fmt.Println("  GET  /api/v1/summary/all")
			fmt.Println("  GET  /api/v1/braking-events")
			fmt.Println("  GET  /api/v1/series/{kind}")
			fmt.Println("  GET  /api/v1/charts/{kind}?format=html|png")
			fmt.Println("  GET  /api/v1/runs")
			fmt.Println("  POST /api/v1/runs")
			fmt.Println("  GET  /api/v1/runs/{id}")
			fmt.Println("  DELETE /api/v1/runs/{id}")
			fmt.Println("  POST /api/v1/runs/{id}/load")
			fmt.Println("  GET  /api/v1/stats")
			fmt.Println()

			return http.ListenAndServe(addr, server.Router())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", config.DefaultListenAddr, "Listen address")
	return cmd
}

// archiveCmd stores data files in the run archive
func archiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive [file...]",
		Short: "Archive data files to the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			st := store.New(sampleDir)
			totalRecords := 0
			totalErrors := 0

			for _, file := range args {
				fmt.Printf("Processing %s...\n", file)
				start := time.Now()

				ds, err := st.Load(file)
				if err != nil {
					fmt.Printf("  Error: %v\n", err)
					totalErrors++
					continue
				}

				run, err := database.InsertRun(ds)
				if err != nil {
					fmt.Printf("  Database error: %v\n", err)
					totalErrors++
					continue
				}

				elapsed := time.Since(start)
				fmt.Printf("  ✓ Archived %d samples as run %s in %v\n", run.SampleCount, run.ID, elapsed)
				totalRecords += run.SampleCount
			}

			fmt.Printf("\nTotal: %d samples archived", totalRecords)
			if totalErrors > 0 {
				fmt.Printf(", %d errors", totalErrors)
			}
			fmt.Println()

			if totalErrors == len(args) {
				return fmt.Errorf("no files archived")
			}
			return nil
		},
	}
}

// runsCmd manages archived runs
func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Run archive commands",
	}

	// List subcommand
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			runs, err := database.ListRuns()
			if err != nil {
				return fmt.Errorf("error listing runs: %w", err)
			}

			if len(runs) == 0 {
				fmt.Println("No runs archived. Use 'vdash archive' or 'vdash generate --archive'.")
				return nil
			}

			fmt.Printf("%-36s %-20s %8s  %s\n", "ID", "Created", "Samples", "Pairs")
			fmt.Println(strings.Repeat("-", 90))
			for _, r := range runs {
				pairs := make([]string, len(r.Pairs))
				for i, p := range r.Pairs {
					pairs[i] = p.String()
				}
				fmt.Printf("%-36s %-20s %8d  %s\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.SampleCount, strings.Join(pairs, ", "))
			}
			return nil
		},
	}

	// Show subcommand
	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "Show one archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			run, err := database.GetRun(args[0])
			if err != nil {
				return err
			}
			return printJSON(run)
		},
	}

	// Export subcommand
	var output string
	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "Write an archived run back to a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			ds, err := database.LoadRun(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("run_%s.csv", args[0])
			}
			if err := store.Save(ds, output); err != nil {
				return err
			}
			fmt.Printf("✓ Exported %d samples to %s\n", ds.Len(), output)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "Output CSV file (default run_<id>.csv)")

	cmd.AddCommand(listCmd, showCmd, exportCmd)
	return cmd
}

// statsCmd shows database statistics
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show run archive statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			stats, err := database.GetStats(cfg.GetBrakingThreshold())
			if err != nil {
				return fmt.Errorf("error getting stats: %w", err)
			}
			counts, err := database.GetPairCounts()
			if err != nil {
				return fmt.Errorf("error getting pair counts: %w", err)
			}

			fmt.Println("📊 Vehicle Dynamics Archive Statistics")
			fmt.Println("=====================================")
			fmt.Printf("  Runs:             %v\n", stats["total_runs"])
			fmt.Printf("  Samples:          %v\n", stats["total_samples"])
			fmt.Printf("  Braking samples:  %v\n", stats["braking_samples"])
			fmt.Printf("  Pairs:            %v\n", stats["distinct_pairs"])
			fmt.Printf("  Database:         %s\n", dbPath)
			for _, c := range counts {
				fmt.Printf("    %-16s %7d samples in %d runs\n", c.Pair, c.Samples, c.Runs)
			}
			return nil
		},
	}
}
