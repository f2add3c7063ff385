package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/okian/speedglobe/internal/domain/model"
)

// Sheet names of the workbook.
const (
	SheetData   = "data"
	SheetPoints = "points"
)

// XLSX writes a workbook with the normalized dataset on sheet "data"
// (one column per year, null cells left blank) and the points of the
// active year on sheet "points".
func XLSX(w io.Writer, records []model.Record, years model.Years, pts []model.WorldPoint) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetData); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetPoints); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	header := []interface{}{"country", "major_area", "region", "lat", "lon", "source"}
	for _, y := range years {
		header = append(header, y)
	}
	if err := writeRow(f, SheetData, 1, header); err != nil {
		return err
	}
	if err := boldRow(f, SheetData, len(header), bold); err != nil {
		return err
	}
	for i := range records {
		r := &records[i]
		row := []interface{}{r.Country, r.MajorArea, r.Region, cell(r.Lat), cell(r.Lon), string(r.Source)}
		for _, y := range years {
			row = append(row, cell(r.Value(y)))
		}
		if err := writeRow(f, SheetData, i+2, row); err != nil {
			return err
		}
	}

	pointHeader := []interface{}{"country", "region", "year", "value", "lat", "lon", "geohash", "source", "synthetic"}
	if err := writeRow(f, SheetPoints, 1, pointHeader); err != nil {
		return err
	}
	if err := boldRow(f, SheetPoints, len(pointHeader), bold); err != nil {
		return err
	}
	for i, p := range pts {
		row := []interface{}{p.Country, p.Region, p.Year, p.Value, p.Lat, p.Lon, p.Geohash, string(p.Source), p.Synthetic}
		if err := writeRow(f, SheetPoints, i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cell(v model.Value) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Float
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	axis, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, axis, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func boldRow(f *excelize.File, sheet string, cols, styleID int) error {
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, styleID)
}
