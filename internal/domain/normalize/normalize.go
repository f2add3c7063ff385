package normalize

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/pkg/metrics"
)

// Diagnostic reasons.
const (
	ReasonMissingCountry = "missing_country"
	ReasonBadNumber      = "bad_number"
	ReasonRaggedRow      = "ragged_row"
)

// Diagnostic describes a cell or row that was coerced rather than taken as-is.
type Diagnostic struct {
	Line   int    `json:"line"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

func (d Diagnostic) String() string {
	if d.Column == "" {
		return fmt.Sprintf("line %d: %s", d.Line, d.Reason)
	}
	return fmt.Sprintf("line %d: %s %q in %s", d.Line, d.Reason, d.Value, d.Column)
}

// Result is the outcome of normalizing one CSV document.
type Result struct {
	Records     []model.Record
	Schema      Schema
	Diagnostics []Diagnostic
}

// Normalizer turns CSV rows into canonical records.
type Normalizer struct {
	years   model.Years
	aliases map[Field][]string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithAliases adds header aliases for a field, tried after the defaults.
func WithAliases(field Field, aliases ...string) Option {
	return func(n *Normalizer) {
		for _, a := range aliases {
			n.aliases[field] = append(n.aliases[field], HeaderKey(a))
		}
	}
}

// New creates a Normalizer for the given year set.
func New(years model.Years, opts ...Option) *Normalizer {
	n := &Normalizer{
		years:   append(model.Years(nil), years...),
		aliases: make(map[Field][]string, len(DefaultAliases)),
	}
	for f, a := range DefaultAliases {
		n.aliases[f] = append([]string(nil), a...)
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Schema validates a header row.
func (n *Normalizer) Schema(headers []string) Schema {
	return BuildSchema(headers, n.years, n.aliases)
}

// Read tokenizes r and normalizes every data row.
func (n *Normalizer) Read(ctx context.Context, r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Result{}, ErrEmptyInput
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	res := Result{Schema: n.Schema(headers)}
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		line, _ := cr.FieldPos(0)
		if blank(cells) {
			continue
		}
		rec, diags := n.Row(res.Schema, cells, line)
		res.Records = append(res.Records, rec)
		res.Diagnostics = append(res.Diagnostics, diags...)
	}

	metrics.RecordRowsIngested(len(res.Records))
	for _, d := range res.Diagnostics {
		metrics.RecordRowDiagnostic(d.Reason)
	}
	return res, nil
}

// Row maps one tokenized row onto a Record. Rows are never rejected;
// anything coerced is reported in the returned diagnostics.
func (n *Normalizer) Row(s Schema, cells []string, line int) (model.Record, []Diagnostic) {
	var diags []Diagnostic
	if len(cells) != len(s.Headers) {
		diags = append(diags, Diagnostic{Line: line, Reason: ReasonRaggedRow})
	}

	rec := model.Record{
		Country:   firstText(s.Fields[FieldCountry], cells),
		MajorArea: firstText(s.Fields[FieldMajorArea], cells),
		Region:    firstText(s.Fields[FieldRegion], cells),
		Values:    make(map[string]model.Value, len(n.years)),
		Line:      line,
	}
	if rec.Country == "" {
		diags = append(diags, Diagnostic{Line: line, Column: "country", Reason: ReasonMissingCountry})
	}

	number := func(col int) model.Value {
		raw := cell(cells, col)
		v, ok := Coerce(raw)
		if !ok {
			diags = append(diags, Diagnostic{Line: line, Column: s.Headers[col], Value: raw, Reason: ReasonBadNumber})
		}
		return v
	}

	rec.Lat = firstNumber(s.Fields[FieldLat], cells, number)
	rec.Lon = firstNumber(s.Fields[FieldLon], cells, number)
	if rec.HasCoords() {
		rec.Source = model.SourceCSV
	}

	for _, y := range n.years {
		col, ok := s.YearColumns[y]
		if !ok {
			rec.Values[y] = model.Null
			continue
		}
		rec.Values[y] = number(col)
	}
	return rec, diags
}

// Coerce converts a raw cell to a nullable number. Empty cells and the
// literal null are null and ok; unparseable or non-finite text is null and not ok.
func Coerce(raw string) (model.Value, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "null") {
		return model.Null, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return model.Null, false
	}
	return model.Number(f), true
}

func cell(cells []string, col int) string {
	if col < 0 || col >= len(cells) {
		return ""
	}
	return cells[col]
}

func firstText(cols []int, cells []string) string {
	for _, c := range cols {
		if v := strings.TrimSpace(cell(cells, c)); v != "" {
			return v
		}
	}
	return ""
}

// firstNumber takes the first alias column with a non-empty cell.
func firstNumber(cols []int, cells []string, number func(int) model.Value) model.Value {
	for _, c := range cols {
		if strings.TrimSpace(cell(cells, c)) == "" {
			continue
		}
		return number(c)
	}
	return model.Null
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
