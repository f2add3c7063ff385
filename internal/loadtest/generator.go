package loadtest

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/okian/speedglobe/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	speedTierDivisor   = 5
	missingCoordsEvery = 4
)

// Speed tiers in Mbps.
const (
	slowMin      = 0.5
	slowRange    = 4.5
	averageMin   = 5.0
	averageRange = 45.0
	fastMin      = 50.0
	fastRange    = 100.0
	eliteMin     = 150.0
	eliteRange   = 150.0
	wideMin      = 0.5
	wideRange    = 299.5
)

const (
	caseSlow = iota
	caseAverage
	caseFast
	caseElite
	caseWide
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomIndex(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateRows creates config.Countries rows with unique country names.
// Every fourth row has blank coordinates.
func generateRows(ctx context.Context, config *Config, stats *Stats) []Row {
	logger.Get().Info(ctx, "generating countries", logger.Int("countries", config.Countries))

	rows := make([]Row, config.Countries)
	for i := range rows {
		rows[i] = generateSingleRow(i, config.Years)
	}

	stats.RowsGenerated = len(rows)
	logger.Get().Info(ctx, "generated countries", logger.Int("count", len(rows)))
	return rows
}

// generateSingleRow creates one country with a speed for every year.
func generateSingleRow(index int, years []string) Row {
	id := strings.SplitN(uuid.NewString(), "-", 2)[0]
	row := Row{
		Country: "Testland " + strconv.Itoa(index) + " " + id,
		Region:  regions[randomIndex(len(regions))],
		Values:  make(map[string]float64, len(years)),
	}
	if index%missingCoordsEvery != 0 {
		lat := round2(getRandomFloat()*180 - 90)
		lon := round2(getRandomFloat()*360 - 180)
		row.Lat, row.Lon = &lat, &lon
	}
	for _, y := range years {
		row.Values[y] = round2(generateSpeed())
	}
	return row
}

// generateSpeed picks a speed tier and a value inside it.
func generateSpeed() float64 {
	switch randomIndex(speedTierDivisor) {
	case caseSlow:
		return slowMin + getRandomFloat()*slowRange
	case caseAverage:
		return averageMin + getRandomFloat()*averageRange
	case caseFast:
		return fastMin + getRandomFloat()*fastRange
	case caseElite:
		return eliteMin + getRandomFloat()*eliteRange
	default:
		return wideMin + getRandomFloat()*wideRange
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// encodeCSV renders rows with the column names the server maps by default.
func encodeCSV(rows []Row, years []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"Country", "Region", "Latitude", "Longitude"}, years...)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	rec := make([]string, len(header))
	for _, r := range rows {
		rec[0], rec[1], rec[2], rec[3] = r.Country, r.Region, "", ""
		if r.Lat != nil && r.Lon != nil {
			rec[2] = strconv.FormatFloat(*r.Lat, 'f', -1, 64)
			rec[3] = strconv.FormatFloat(*r.Lon, 'f', -1, 64)
		}
		for i, y := range years {
			rec[4+i] = strconv.FormatFloat(r.Values[y], 'f', -1, 64)
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
