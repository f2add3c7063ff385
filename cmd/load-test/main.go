package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/okian/speedglobe/internal/config"
	"github.com/okian/speedglobe/internal/loadtest"
)

// Default configuration constants.
const (
	defaultCountries   = 2000
	defaultTopN        = 50
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 5 * time.Minute
	defaultTestTimeout = 15 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		countries  = flag.Int("countries", defaultCountries, "Number of countries to generate")
		years      = flag.String("years", strings.Join(config.DefaultYears, ","), "Comma separated year columns")
		year       = flag.String("year", "", "Year whose rankings are checked (default: last of -years)")
		topN       = flag.Int("top", defaultTopN, "Number of bar race entries to fetch")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent rank lookups")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for the generated CSV (default: loadtest_TIMESTAMP.csv)")
		logFile    = flag.String("log", "", "Log file for test output (default: loadtest_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp()
		return
	}

	closeLog, err := loadtest.SetupLogging(*logFile)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	yearList := strings.Split(*years, ",")
	for i := range yearList {
		yearList[i] = strings.TrimSpace(yearList[i])
	}
	if *year == "" {
		*year = yearList[len(yearList)-1]
	}

	cfg := &loadtest.Config{
		BaseURL:    strings.TrimRight(*baseURL, "/"),
		Countries:  *countries,
		Years:      yearList,
		Year:       *year,
		TopN:       *topN,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if _, err := loadtest.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
