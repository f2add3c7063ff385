package loadtest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/speedglobe/internal/adapters/cache"
	"github.com/okian/speedglobe/internal/adapters/http/api"
	service "github.com/okian/speedglobe/internal/app"
	"github.com/okian/speedglobe/internal/config"
	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/resolver"
	"github.com/okian/speedglobe/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type missGeocoder struct{}

func (missGeocoder) Name() string { return "stub" }
func (missGeocoder) Lookup(context.Context, string) (model.Coordinate, error) {
	return model.Coordinate{}, resolver.ErrGeocodeMiss
}

var testYears = []string{"2023", "2024"}

func TestGenerateRows(t *testing.T) {
	Convey("Given a config for 20 countries", t, func() {
		cfg := &Config{Countries: 20, Years: testYears}
		stats := &Stats{}

		rows := generateRows(context.Background(), cfg, stats)

		Convey("Then every country is unique and has a value per year", func() {
			So(rows, ShouldHaveLength, 20)
			So(stats.RowsGenerated, ShouldEqual, 20)
			seen := map[string]bool{}
			for _, r := range rows {
				So(seen[model.NormalizeName(r.Country)], ShouldBeFalse)
				seen[model.NormalizeName(r.Country)] = true
				So(r.Values, ShouldHaveLength, 2)
				So(r.Region, ShouldBeIn, regions)
			}
		})

		Convey("And every fourth country has no coordinates", func() {
			blank := 0
			for i, r := range rows {
				if r.Lat == nil {
					blank++
					So(i%missingCoordsEvery, ShouldEqual, 0)
				}
			}
			So(blank, ShouldEqual, 5)
		})

		Convey("And the CSV round trips through encoding/csv", func() {
			data, err := encodeCSV(rows, testYears)
			So(err, ShouldBeNil)

			recs, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 21)
			So(recs[0], ShouldResemble, []string{"Country", "Region", "Latitude", "Longitude", "2023", "2024"})
			So(recs[1][2], ShouldEqual, "")
			So(recs[2][2], ShouldNotEqual, "")
		})
	})
}

func TestGenerateSpeed(t *testing.T) {
	Convey("Given many generated speeds", t, func() {
		for i := 0; i < 500; i++ {
			v := generateSpeed()
			So(v, ShouldBeBetweenOrEqual, slowMin, wideMin+wideRange)
		}
	})
}

func TestVerification(t *testing.T) {
	Convey("Given three generated countries", t, func() {
		rows := []Row{
			{Country: "Alba", Values: map[string]float64{"2024": 10}},
			{Country: "Beta", Values: map[string]float64{"2024": 30}},
			{Country: "Gamma", Values: map[string]float64{"2024": 20}},
		}
		cfg := &Config{Year: "2024"}
		good := []Entry{
			{Rank: 3, Key: "alba", Country: "Alba", Value: 10},
			{Rank: 1, Key: "beta", Country: "Beta", Value: 30},
			{Rank: 2, Key: "gamma", Country: "Gamma", Value: 20},
		}
		board := []Entry{
			{Rank: 1, Key: "beta", Country: "Beta", Value: 30, Width: 100},
			{Rank: 2, Key: "gamma", Country: "Gamma", Value: 20, Width: 67},
		}

		Convey("Then the expected order is fastest first", func() {
			order := expectedOrder(rows, "2024")
			So(order[0].country, ShouldEqual, "Beta")
			So(order[2].country, ShouldEqual, "Alba")
			So(calculateAverage(order), ShouldEqual, 20)
		})

		Convey("When the served data agrees", func() {
			stats := &Stats{}
			err := verifyResults(context.Background(), cfg, rows, good, board, stats)
			So(err, ShouldBeNil)
			So(stats.Mismatches, ShouldEqual, 0)
		})

		Convey("When a served value differs", func() {
			bad := append([]Entry(nil), good...)
			bad[0].Value = 11
			stats := &Stats{}
			err := verifyResults(context.Background(), cfg, rows, bad, board, stats)
			So(errors.Is(err, ErrMismatch), ShouldBeTrue)
			So(stats.Mismatches, ShouldEqual, 1)
		})

		Convey("When every lookup failed", func() {
			err := verifyResults(context.Background(), cfg, rows, make([]Entry, 3), board, &Stats{})
			So(err, ShouldEqual, ErrNoRankings)
		})

		Convey("When the bar race is out of order", func() {
			order := expectedOrder(rows, "2024")
			So(verifyLeaderboardConsistency(order, nil), ShouldNotBeNil)
			So(verifyLeaderboardConsistency(order, []Entry{
				{Rank: 1, Value: 30, Width: 100},
				{Rank: 2, Value: 31, Width: 100},
			}), ShouldNotBeNil)
			So(verifyLeaderboardConsistency(order, []Entry{{Rank: 1, Value: 20, Width: 100}}), ShouldNotBeNil)
		})
	})
}

func TestRunAgainstService(t *testing.T) {
	Convey("Given a running service behind an httptest server", t, func() {
		svcCfg := config.New()
		svcCfg.Years = testYears
		svcCfg.DefaultYear = "2024"

		svc := service.New(
			service.WithConfig(svcCfg),
			service.WithCache(cache.NewMemory()),
			service.WithGeocoders(missGeocoder{}),
			service.WithWorkerCount(4),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(context.Background(), mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		cfg := &Config{
			BaseURL:    srv.URL,
			Countries:  40,
			Years:      testYears,
			Year:       "2023",
			TopN:       10,
			Workers:    4,
			Timeout:    10 * time.Second,
			OutputFile: filepath.Join(t.TempDir(), "out", "loadtest.csv"),
		}

		Convey("When the load test runs", func() {
			stats, err := Run(context.Background(), cfg)

			Convey("Then every country ranks with its generated value", func() {
				So(err, ShouldBeNil)
				So(stats.RowsLoaded, ShouldEqual, 40)
				So(stats.Fallbacks, ShouldEqual, 10)
				So(stats.RankingsRetrieved, ShouldEqual, 40)
				So(stats.RankingsFailed, ShouldEqual, 0)
				So(stats.LeaderboardEntries, ShouldEqual, 10)
				So(stats.Mismatches, ShouldEqual, 0)
				_, statErr := os.Stat(cfg.OutputFile)
				So(statErr, ShouldBeNil)
			})

			Convey("And the service view moved to the tested year", func() {
				st, err := svc.State()
				So(err, ShouldBeNil)
				So(st.Year, ShouldEqual, "2023")
			})
		})

		Convey("When the service is unreachable", func() {
			cfg.BaseURL = "http://127.0.0.1:1"
			cfg.Timeout = time.Second
			_, err := Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
		})
	})
}
