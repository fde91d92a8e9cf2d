// crossing-report ingests vessel position feeds, segments them into
// micropaths, filters noise, detects gate crossings and serves the
// aggregated counts.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/banshee-data/crossing.report/internal/api"
	"github.com/banshee-data/crossing.report/internal/config"
	"github.com/banshee-data/crossing.report/internal/db"
	"github.com/banshee-data/crossing.report/internal/feed"
	"github.com/banshee-data/crossing.report/internal/geom"
	"github.com/banshee-data/crossing.report/internal/pipeline"
	"github.com/banshee-data/crossing.report/internal/report"
	"github.com/banshee-data/crossing.report/internal/track"
	"github.com/banshee-data/crossing.report/internal/version"
)

var (
	dbPath        = flag.String("db", "crossing_data.db", "Path to the sqlite database")
	migrationsDir = flag.String("migrations", "migrations", "Path to the migrations directory")
	tuningPath    = flag.String("tuning", "", "Path to a JSON tuning config (defaults apply when empty)")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: crossing-report [flags] <command> [args]

Commands:
  migrate <action>       Manage the database schema (up/down/status/force)
  ingest <flags>         Load position reports into the database
  gates <flags>          Load gate definitions into the database
  run                    Run the crossing pipeline over stored positions
  calibrate <flags>      Estimate noise-threshold quantiles from stored positions
  report <flags>         Write the crossing-counts chart for the latest run
  serve <flags>          Serve counts, crossings and charts over HTTP
  version                Print build information

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	command, rest := args[0], args[1:]
	switch command {
	case "migrate":
		db.RunMigrateCommand(rest, *dbPath, *migrationsDir)
	case "ingest":
		runIngest(rest)
	case "gates":
		runGates(rest)
	case "run":
		runPipeline()
	case "calibrate":
		runCalibrate(rest)
	case "report":
		runReport(rest)
	case "serve":
		runServe(rest)
	case "version":
		fmt.Printf("crossing-report %s (%s, built %s)\n",
			version.Version, version.GitSHA, version.BuildTime)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		usage()
		os.Exit(1)
	}
}

func openDB() *db.DB {
	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return database
}

func loadTuning() *config.TuningConfig {
	if *tuningPath == "" {
		return &config.TuningConfig{}
	}
	cfg, err := config.LoadTuningConfig(*tuningPath)
	if err != nil {
		log.Fatalf("Failed to load tuning config: %v", err)
	}
	return cfg
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	file := fs.String("file", "", "Line-oriented feed file (vessel_id,x,y,ts)")
	pcapFile := fs.String("pcap", "", "Packet capture of the UDP feed")
	port := fs.Uint("port", 0, "UDP destination port filter for pcap ingest (0 = any)")
	serialDev := fs.String("serial", "", "Serial device delivering the live feed")
	fs.Parse(args)

	database := openDB()
	defer database.Close()

	if *serialDev != "" {
		port, err := feed.OpenSerial(*serialDev, feed.SerialOptions{})
		if err != nil {
			log.Fatalf("Failed to open serial device: %v", err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		stats, err := ingestSerial(ctx, port, database)
		if err != nil {
			log.Fatalf("Serial ingest failed: %v", err)
		}
		log.Printf("Ingested %d reports (%d lines, %d malformed)",
			stats.Reports, stats.Lines, stats.Malformed)
		return
	}

	var (
		reports []track.PositionReport
		stats   feed.ParseStats
		err     error
	)
	switch {
	case *file != "":
		f, openErr := os.Open(*file)
		if openErr != nil {
			log.Fatalf("Failed to open feed file: %v", openErr)
		}
		defer f.Close()
		reports, err = feed.ParseReader(f, &stats)
	case *pcapFile != "":
		if *port > 65535 {
			log.Fatalf("Invalid -port %d: must be at most 65535", *port)
		}
		reports, err = feed.ReadPcapFile(*pcapFile, uint16(*port), &stats)
	default:
		log.Fatal("ingest requires -file, -pcap or -serial")
	}
	if err != nil {
		log.Fatalf("Failed to read feed: %v", err)
	}

	if err := database.InsertPositions(context.Background(), reports); err != nil {
		log.Fatalf("Failed to store positions: %v", err)
	}
	log.Printf("Ingested %d reports (%d lines, %d malformed)",
		stats.Reports, stats.Lines, stats.Malformed)
}

// ingestSerial drains the live feed until the port reaches EOF or the
// context is cancelled, then stores everything collected.
func ingestSerial(ctx context.Context, port feed.Porter, database *db.DB) (feed.ParseStats, error) {
	sf := feed.NewSerialFeed(port)
	defer sf.Close()

	out := make(chan track.PositionReport, 64)
	runErr := make(chan error, 1)
	go func() {
		runErr <- sf.Run(ctx, out)
		close(out)
	}()

	var reports []track.PositionReport
	for r := range out {
		reports = append(reports, r)
	}
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return sf.Stats, err
	}

	if err := database.InsertPositions(context.Background(), reports); err != nil {
		return sf.Stats, err
	}
	return sf.Stats, nil
}

// runGates imports gate definitions from a CSV of
// gate_id,name,x1,y1,x2,y2 rows.
func runGates(args []string) {
	fs := flag.NewFlagSet("gates", flag.ExitOnError)
	file := fs.String("file", "", "Gate definition CSV (gate_id,name,x1,y1,x2,y2)")
	fs.Parse(args)

	if *file == "" {
		log.Fatal("gates requires -file")
	}
	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("Failed to open gate file: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		log.Fatalf("Failed to parse gate file: %v", err)
	}

	database := openDB()
	defer database.Close()

	ctx := context.Background()
	for i, row := range rows {
		if len(row) != 6 {
			log.Fatalf("gate row %d: expected 6 fields, got %d", i+1, len(row))
		}
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			log.Fatalf("gate row %d: bad gate id %q: %v", i+1, row[0], err)
		}
		var coords [4]float64
		for j := 0; j < 4; j++ {
			coords[j], err = strconv.ParseFloat(row[j+2], 64)
			if err != nil {
				log.Fatalf("gate row %d: bad coordinate %q: %v", i+1, row[j+2], err)
			}
		}
		seg := geom.Segment{
			A: geom.Point{X: coords[0], Y: coords[1]},
			B: geom.Point{X: coords[2], Y: coords[3]},
		}
		if err := database.InsertGate(ctx, id, row[1], seg); err != nil {
			log.Fatalf("Failed to store gate %d: %v", id, err)
		}
	}
	log.Printf("Loaded %d gates", len(rows))
}

func runPipeline() {
	database := openDB()
	defer database.Close()

	ctx := context.Background()
	reports, err := database.LoadPositions(ctx, 0, 0, nil)
	if err != nil {
		log.Fatalf("Failed to load positions: %v", err)
	}
	gates, err := database.LoadGates(ctx)
	if err != nil {
		log.Fatalf("Failed to load gates: %v", err)
	}
	if len(gates) == 0 {
		log.Fatal("No gates defined; load them with the gates command first")
	}

	pipeline.SetLogWriters(os.Stdout, os.Stderr)
	pc, err := pipeline.NewContext(loadTuning(), gates)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	runID, err := database.BeginRun(ctx)
	if err != nil {
		log.Fatalf("Failed to record run: %v", err)
	}

	result, err := pc.Run(ctx, reports)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	if err := database.WriteMicropaths(ctx, runID, result.Micropaths); err != nil {
		log.Fatalf("Failed to store micropaths: %v", err)
	}
	if err := database.WriteCrossings(ctx, runID, result.Crossings); err != nil {
		log.Fatalf("Failed to store crossings: %v", err)
	}
	if err := database.WriteCrossingCounts(ctx, runID, result.Counts); err != nil {
		log.Fatalf("Failed to store crossing counts: %v", err)
	}
	if err := database.FinishRun(ctx, runID, result.Summary, len(result.Micropaths)); err != nil {
		log.Fatalf("Failed to finish run: %v", err)
	}

	log.Printf("Run %s complete: %s", runID, result.Summary.String())
	for _, cc := range result.Counts {
		log.Printf("  gate %d %s: %d", cc.GateID, cc.Direction, cc.Count)
	}
}

func runCalibrate(args []string) {
	fs := flag.NewFlagSet("calibrate", flag.ExitOnError)
	outputDir := fs.String("out", ".", "Directory for calibration histogram PNGs")
	fs.Parse(args)

	database := openDB()
	defer database.Close()

	ctx := context.Background()
	reports, err := database.LoadPositions(ctx, 0, 0, nil)
	if err != nil {
		log.Fatalf("Failed to load positions: %v", err)
	}

	pipeline.SetLogWriters(os.Stdout, os.Stderr)
	pc, err := pipeline.NewContext(loadTuning(), nil)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	cal, ok := pc.Calibrate(reports)
	if !ok {
		log.Fatal("Calibration unavailable: no segments to sample")
	}

	q := cal.Quantile * 100
	log.Printf("Calibration over %d segments:", cal.Samples)
	log.Printf("  distance p%.0f: sketch=%.2f exact=%.2f", q, cal.DistanceSketch, cal.DistanceExact)
	log.Printf("  dt       p%.0f: sketch=%.2f exact=%.2f", q, cal.DtSketch, cal.DtExact)
	log.Printf("  speed    p%.0f: sketch=%.2f exact=%.2f", q, cal.SpeedSketch, cal.SpeedExact)

	files, err := report.WriteCalibrationHistograms(*outputDir, cal)
	if err != nil {
		log.Fatalf("Failed to write histograms: %v", err)
	}
	for _, f := range files {
		log.Printf("  wrote %s", f)
	}
}

func runReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	out := fs.String("out", "crossing_counts.html", "Output HTML file")
	runID := fs.String("run", "", "Run id (defaults to the latest run)")
	fs.Parse(args)

	database := openDB()
	defer database.Close()

	ctx := context.Background()
	id := *runID
	if id == "" {
		var err error
		id, err = database.LatestRunID(ctx)
		if err != nil {
			log.Fatalf("Failed to resolve run: %v", err)
		}
		if id == "" {
			log.Fatal("No runs recorded")
		}
	}

	counts, err := database.LoadCrossingCounts(ctx, id)
	if err != nil {
		log.Fatalf("Failed to load counts: %v", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	title := fmt.Sprintf("Gate Crossings (run %s)", id)
	if err := report.RenderCountsChart(f, title, counts); err != nil {
		log.Fatalf("Failed to render chart: %v", err)
	}
	log.Printf("Wrote %s", *out)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listen := fs.String("listen", ":8080", "Listen address")
	fs.Parse(args)

	database := openDB()
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := api.LoggingMiddleware(api.NewServer(database).ServeMux())
	server := &http.Server{Addr: *listen, Handler: handler}

	go func() {
		log.Printf("Listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}
