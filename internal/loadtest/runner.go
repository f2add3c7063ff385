package loadtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/speedglobe/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0644
)

// Run executes the complete load test.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting speedglobe load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("countries", config.Countries),
		logger.Any("years", config.Years),
		logger.String("year", config.Year),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Int("topN", config.TopN),
		logger.Bool("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate the dataset
	rows := generateRows(ctx, config, stats)
	data, err := encodeCSV(rows, config.Years)
	if err != nil {
		return stats, fmt.Errorf("csv encoding failed: %w", err)
	}

	// Step 3: Upload it; the response arrives after resolution finishes
	if _, err := uploadDataset(ctx, config, data, stats); err != nil {
		return stats, fmt.Errorf("dataset upload failed: %w", err)
	}

	// Step 4: Point the view at the year under test
	if err := selectYear(ctx, config); err != nil {
		return stats, fmt.Errorf("year selection failed: %w", err)
	}

	// Step 5: Retrieve rankings concurrently
	rankings := retrieveRankings(ctx, config, rows, stats)

	// Step 6: Get the bar race
	leaderboard, err := getLeaderboard(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("bar race retrieval failed: %w", err)
	}

	// Step 7: Verify results
	if err := verifyResults(ctx, config, rows, rankings, leaderboard, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	// Step 8: Keep the dataset for reruns
	if err := saveDataset(ctx, config, data); err != nil {
		logger.Get().Warn(ctx, "failed to save dataset", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "test completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	// The service answers with Prometheus metrics; any 200 is healthy.
	if err := decodeResponse(resp, StatusOK, nil); err != nil {
		return err
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveDataset writes the generated CSV to config.OutputFile or a
// timestamped file.
func saveDataset(ctx context.Context, config *Config, data []byte) error {
	filename := config.OutputFile
	if filename == "" {
		filename = "loadtest_" + time.Now().Format("20060102_150405") + ".csv"
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "dataset saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, lookupsPerSecond float64

	total := stats.RankingsRetrieved + stats.RankingsFailed
	if total > 0 {
		successRate = float64(stats.RankingsRetrieved) / float64(total) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		lookupsPerSecond = float64(total) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("rowsGenerated", stats.RowsGenerated),
		logger.Int("rowsLoaded", stats.RowsLoaded),
		logger.Int("rowsResolved", stats.RowsResolved),
		logger.Int("fallbacks", stats.Fallbacks),
		logger.Int("rankingsRetrieved", stats.RankingsRetrieved),
		logger.Int("rankingsFailed", stats.RankingsFailed),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Int("mismatches", stats.Mismatches),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("lookupsPerSecond", lookupsPerSecond))
}
