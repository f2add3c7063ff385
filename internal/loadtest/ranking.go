package loadtest

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/speedglobe/pkg/logger"
)

// retrieveRankings fetches /rank for every generated country concurrently.
// Failed lookups leave a zero Entry at that index.
func retrieveRankings(ctx context.Context, config *Config, rows []Row, stats *Stats) []Entry {
	log := logger.Get()
	log.Info(ctx, "retrieving rankings",
		logger.Int("countries", len(rows)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	rankings := make([]Entry, len(rows))
	var (
		retrieved int64
		failed    int64
	)

	var lastReport atomic.Int64
	reportInterval := time.Second

	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range indexChan {
				if ctx.Err() != nil {
					return
				}
				country := rows[index].Country
				entry, err := retrieveSingleRanking(ctx, client, config.BaseURL, country)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Warn(ctx, "failed to get rank", logger.String("country", country), logger.Error(err))
					}
				} else {
					rankings[index] = entry
					atomic.AddInt64(&retrieved, 1)
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(reportInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "ranking progress",
						logger.Int("retrieved", int(atomic.LoadInt64(&retrieved))),
						logger.Int("failed", int(atomic.LoadInt64(&failed))),
						logger.Int("total", len(rows)))
				}
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range rows {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.RankingsRetrieved = int(atomic.LoadInt64(&retrieved))
	stats.RankingsFailed = int(atomic.LoadInt64(&failed))

	log.Info(ctx, "ranking retrieval completed",
		logger.Int("retrieved", stats.RankingsRetrieved),
		logger.Int("failed", stats.RankingsFailed))
	return rankings
}

// retrieveSingleRanking retrieves the bar race entry for one country.
func retrieveSingleRanking(ctx context.Context, client *HTTPClient, baseURL, country string) (Entry, error) {
	resp, err := client.Get(ctx, baseURL+"/rank/"+url.PathEscape(country))
	if err != nil {
		return Entry{}, fmt.Errorf("request failed: %w", err)
	}
	var entry Entry
	if err := decodeResponse(resp, StatusOK, &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// getLeaderboard retrieves the top N bar race entries.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	logger.Get().Info(ctx, "getting bar race", logger.Int("topN", config.TopN))

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, fmt.Sprintf("%s/top?limit=%d", config.BaseURL, config.TopN))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	var leaderboard []Entry
	if err := decodeResponse(resp, StatusOK, &leaderboard); err != nil {
		return nil, err
	}

	stats.LeaderboardEntries = len(leaderboard)
	logger.Get().Info(ctx, "retrieved bar race entries", logger.Int("count", len(leaderboard)))
	return leaderboard, nil
}
