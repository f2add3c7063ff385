package service

import (
	"time"

	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/normalize"
	"github.com/okian/speedglobe/internal/domain/points"
)

// dataset is one loaded CSV after normalization and resolution. Records
// are not modified after the dataset is published; points are replaced
// wholesale when the year changes.
type dataset struct {
	id          string
	origin      string
	fingerprint string
	loadedAt    time.Time

	records     []model.Record
	schema      normalize.Schema
	diagnostics []normalize.Diagnostic

	regions   map[string]struct{}
	countries map[string]struct{}

	year   string
	points []model.WorldPoint
}

func newDataset(records []model.Record) *dataset {
	ds := &dataset{
		records:   records,
		regions:   make(map[string]struct{}),
		countries: make(map[string]struct{}),
	}
	for _, r := range points.ObservedRegions(records) {
		ds.regions[r] = struct{}{}
	}
	for i := range records {
		if k := records[i].Key(); k != "" {
			ds.countries[k] = struct{}{}
		}
	}
	return ds
}

// HasRegion implements viewstate.Catalog.
func (d *dataset) HasRegion(region string) bool {
	_, ok := d.regions[region]
	return ok
}

// HasCountry implements viewstate.Catalog.
func (d *dataset) HasCountry(key string) bool {
	_, ok := d.countries[key]
	return ok
}
