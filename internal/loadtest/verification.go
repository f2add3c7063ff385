package loadtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/okian/speedglobe/pkg/logger"
)

var (
	// ErrNoRankings is returned when no rank lookup succeeded.
	ErrNoRankings = errors.New("no rankings to verify")
	// ErrMismatch is returned when served rankings disagree with the CSV.
	ErrMismatch = errors.New("served rankings disagree with the generated data")
)

// expected pairs a generated country with the value it should rank by.
type expected struct {
	country string
	value   float64
}

// expectedOrder ranks rows for year by value, fastest first.
func expectedOrder(rows []Row, year string) []expected {
	out := make([]expected, 0, len(rows))
	for _, r := range rows {
		if v, ok := r.Values[year]; ok {
			out = append(out, expected{country: r.Country, value: v})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].value > out[j].value })
	return out
}

// verifyResults checks every served rank against the generated values and
// the bar race against the expected order.
func verifyResults(ctx context.Context, config *Config, rows []Row, rankings, leaderboard []Entry, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "verifying results")

	mismatches := 0
	found := 0
	for i, e := range rankings {
		if e.Key == "" {
			continue
		}
		found++
		want := rows[i].Values[config.Year]
		if math.Abs(e.Value-want) > valueTolerance {
			mismatches++
			if config.Verbose {
				log.Warn(ctx, "rank value mismatch",
					logger.String("country", rows[i].Country),
					logger.Float64("served", e.Value),
					logger.Float64("generated", want))
			}
		}
	}
	if found == 0 {
		return ErrNoRankings
	}

	order := expectedOrder(rows, config.Year)
	if err := verifyLeaderboardConsistency(order, leaderboard); err != nil {
		log.Warn(ctx, "bar race consistency failed", logger.Error(err))
		mismatches++
	}

	stats.Mismatches = mismatches
	displayTopCountries(ctx, order, leaderboard, config.Verbose)

	if mismatches > 0 {
		return fmt.Errorf("%w: %d mismatches", ErrMismatch, mismatches)
	}
	log.Info(ctx, "result verification completed")
	return nil
}

// verifyLeaderboardConsistency checks that the bar race is sorted, starts
// with the fastest generated country and has a full-width leader.
func verifyLeaderboardConsistency(order []expected, leaderboard []Entry) error {
	if len(leaderboard) == 0 {
		return fmt.Errorf("empty bar race")
	}
	if len(order) == 0 {
		return fmt.Errorf("no generated values for the ranked year")
	}

	top := leaderboard[0]
	if math.Abs(top.Value-order[0].value) > valueTolerance {
		return fmt.Errorf("top bar race value (%.2f) does not match fastest generated country (%s, %.2f)",
			top.Value, order[0].country, order[0].value)
	}
	if top.Width != 100 {
		return fmt.Errorf("leader width is %d, want 100", top.Width)
	}

	for i := 1; i < len(leaderboard); i++ {
		if leaderboard[i].Value > leaderboard[i-1].Value {
			return fmt.Errorf("bar race not sorted: entry %d is faster than entry %d", i, i-1)
		}
		if leaderboard[i].Rank != leaderboard[i-1].Rank+1 {
			return fmt.Errorf("bar race ranks not consecutive at entry %d", i)
		}
	}
	return nil
}

// displayTopCountries logs the head of the expected order and the bar race.
func displayTopCountries(ctx context.Context, order []expected, leaderboard []Entry, verbose bool) {
	log := logger.Get()
	n := min(10, len(order), len(leaderboard))
	for i := 0; i < n; i++ {
		log.Info(ctx, "top country",
			logger.Int("rank", i+1),
			logger.String("expected", order[i].country),
			logger.String("served", leaderboard[i].Country),
			logger.Float64("mbps", leaderboard[i].Value))
	}

	if verbose && len(order) > 0 {
		log.Info(ctx, "speed statistics",
			logger.Float64("average", calculateAverage(order)),
			logger.Float64("maximum", order[0].value),
			logger.Float64("minimum", order[len(order)-1].value))
	}
}

// calculateAverage returns the mean generated value.
func calculateAverage(order []expected) float64 {
	if len(order) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range order {
		sum += e.value
	}
	return sum / float64(len(order))
}
