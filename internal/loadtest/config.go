package loadtest

import "time"

// Config holds configuration for a load test run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Countries  int           // Number of synthetic countries to generate
	Years      []string      // Year columns written to the CSV
	Year       string        // Year the rankings are checked for
	TopN       int           // Number of bar race entries to fetch
	Workers    int           // Number of concurrent rank lookups
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for the generated CSV
	LogFile    string        // Log file for test output
	Verbose    bool          // Enable verbose logging
}

// Row is one generated country. A nil Lat/Lon leaves both cells blank so
// the server has to resolve the position.
type Row struct {
	Country string
	Region  string
	Lat     *float64
	Lon     *float64
	Values  map[string]float64
}

// Entry represents a bar race entry as served by /top and /rank.
type Entry struct {
	Rank    int     `json:"rank"`
	Key     string  `json:"key"`
	Country string  `json:"country"`
	Region  string  `json:"region"`
	Value   float64 `json:"value"`
	Width   int     `json:"width"`
}

// LoadReport is the subset of the upload response the test checks.
type LoadReport struct {
	ID          string `json:"id"`
	Duplicate   bool   `json:"duplicate"`
	Records     int    `json:"records"`
	Points      int    `json:"points"`
	Resolved    int    `json:"resolved"`
	Fallbacks   int    `json:"fallbacks"`
	Diagnostics int    `json:"diagnostics"`
	DurationMS  int64  `json:"duration_ms"`
}

// Stats holds test statistics
type Stats struct {
	RowsGenerated      int
	RowsLoaded         int
	RowsResolved       int
	Fallbacks          int
	RankingsRetrieved  int
	RankingsFailed     int
	LeaderboardEntries int
	Mismatches         int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
