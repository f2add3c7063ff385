// Package loadtest drives a running speedglobe service with a generated
// dataset and checks the rankings it serves.
package loadtest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/okian/speedglobe/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initializes the logger and tees it into a file. If logFile
// is empty, a timestamped filename is generated. The returned func closes
// the file.
func SetupLogging(logFile string) (func() error, error) {
	if err := logger.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		logFile = "loadtest_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger.Tee(file)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return file.Close, nil
}

// ShowHelp prints usage information for the load test tool.
func ShowHelp() {
	os.Stdout.WriteString(`speedglobe load test
====================

Uploads a generated broadband CSV to a running service, then checks the
rank of every generated country and the bar race against the CSV.

Usage:
  go run ./cmd/load-test [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -countries int
        Number of countries to generate (default 2000)
  -years string
        Comma separated year columns (default: the service's default years)
  -year string
        Year whose rankings are checked (default: the last of -years)
  -top int
        Number of bar race entries to fetch (default 50)
  -workers int
        Number of concurrent rank lookups (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 5m; uploads wait for resolution)
  -output string
        Output file for the generated CSV (default: loadtest_TIMESTAMP.csv)
  -log string
        Log file for test output (default: loadtest_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Every fourth country has blank coordinates, so the service resolves or
places them with fallback positions during the upload.

Examples:
  go run ./cmd/load-test -countries 500 -url http://localhost:8080
  go run ./cmd/load-test -years 2023,2024 -year 2023 -verbose
`)
}
