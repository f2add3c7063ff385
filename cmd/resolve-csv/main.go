// Command resolve-csv loads a broadband CSV offline, resolves missing
// coordinates and writes the resulting points as GeoJSON and/or XLSX.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/speedglobe/internal/adapters/geocode"
	app "github.com/okian/speedglobe/internal/app"
	"github.com/okian/speedglobe/internal/config"
	"github.com/okian/speedglobe/internal/domain/viewstate"
	"github.com/okian/speedglobe/pkg/logger"
)

const (
	outputPermission  = 0o644
	logFilePermission = 0o600
)

var errNoOutput = errors.New("at least one of -out-geojson or -out-xlsx is required")

type options struct {
	in         string
	outGeoJSON string
	outXLSX    string
	year       string
	region     string
	workers    int
	offline    bool
	geocodeURL string
}

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute parses args, resolves and reports. It returns the process exit
// code so deferred cleanup runs before main exits.
func execute(args []string) int {
	var (
		opts    options
		logFile string
	)
	fs := flag.NewFlagSet("resolve-csv", flag.ContinueOnError)
	fs.StringVar(&opts.in, "in", "data.csv", "CSV file to resolve")
	fs.StringVar(&opts.outGeoJSON, "out-geojson", "", "GeoJSON output file")
	fs.StringVar(&opts.outXLSX, "out-xlsx", "", "XLSX output file")
	fs.StringVar(&opts.year, "year", "", "year to export (default: configured default year)")
	fs.StringVar(&opts.region, "region", "", "region filter for the GeoJSON export")
	fs.IntVar(&opts.workers, "workers", 0, "resolver workers (default: configured value)")
	fs.BoolVar(&opts.offline, "offline", false, "use only the embedded geocoder")
	fs.StringVar(&opts.geocodeURL, "geocode-url", "", "override the remote geocoder base URL")
	fs.StringVar(&logFile, "log", "", "also write logs to this file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			os.Stderr.WriteString("failed to open log file: " + err.Error() + "\n")
			return 1
		}
		defer f.Close()
		logger.Tee(f)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Get().Error(ctx, "failed to load config", logger.Error(err))
		return 1
	}

	report, err := run(ctx, cfg, opts)
	if err != nil {
		logger.Get().Error(ctx, "resolve failed", logger.Error(err))
		return 1
	}
	logger.Get().Info(ctx, "resolve complete",
		logger.String("in", opts.in),
		logger.Int("records", report.Records),
		logger.Int("resolved", report.Resolved),
		logger.Int("fallbacks", report.Fallbacks),
		logger.Int("diagnostics", report.Diagnostics))
	return 0
}

// run loads opts.in through a private service and writes the requested
// exports. The session cache is always in memory.
func run(ctx context.Context, cfg *config.Config, opts options) (app.LoadReport, error) {
	if opts.outGeoJSON == "" && opts.outXLSX == "" {
		return app.LoadReport{}, errNoOutput
	}

	local := *cfg
	local.CacheBackend = config.CacheMemory
	if opts.geocodeURL != "" {
		local.GeocodeBaseURL = opts.geocodeURL
	}

	svcOpts := []app.Option{app.WithConfig(&local)}
	if opts.offline {
		svcOpts = append(svcOpts, app.WithGeocoders(geocode.NewOffline()))
	}
	if opts.workers > 0 {
		svcOpts = append(svcOpts, app.WithWorkerCount(opts.workers))
	}
	svc := app.New(svcOpts...)
	if err := svc.Start(ctx); err != nil {
		return app.LoadReport{}, err
	}
	defer svc.Stop()

	report, err := svc.Boot(ctx, opts.in)
	if err != nil {
		return report, err
	}

	if opts.year != "" {
		if _, err := svc.Update(ctx, viewstate.SetYear(opts.year)); err != nil {
			return report, fmt.Errorf("year %q: %w", opts.year, err)
		}
	}

	if opts.outGeoJSON != "" {
		b, err := svc.ExportGeoJSON(ctx, app.PointQuery{Year: opts.year, Region: opts.region})
		if err != nil {
			return report, err
		}
		if err := os.WriteFile(opts.outGeoJSON, b, outputPermission); err != nil {
			return report, err
		}
	}

	if opts.outXLSX != "" {
		f, err := os.Create(opts.outXLSX)
		if err != nil {
			return report, err
		}
		if err := svc.ExportXLSX(ctx, f); err != nil {
			_ = f.Close()
			return report, err
		}
		if err := f.Close(); err != nil {
			return report, err
		}
	}
	return report, nil
}
