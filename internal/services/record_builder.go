package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/irfndi/finmetrics-go/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RecordBuilder turns mapped raw rows into validated per-period records.
type RecordBuilder struct {
	logger *logrus.Logger
}

// NewRecordBuilder creates a new record builder.
func NewRecordBuilder(logger *logrus.Logger) *RecordBuilder {
	if logger == nil {
		logger = logrus.New()
	}
	return &RecordBuilder{logger: logger}
}

// periodLayouts are the date formats recognised in period labels.
var periodLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01",
	"2006/01",
	"01/2006",
	"Jan 2006",
	"January 2006",
	"Jan-2006",
	"Jan-06",
}

type periodAccumulator struct {
	label  string
	month  int
	sums   map[models.CanonicalField]decimal.Decimal
	latest map[models.CanonicalField]decimal.Decimal
}

// Build converts the dataset into canonical records, one per period label (or
// per row when no period is mapped), and assesses the table's quality.
// Unparseable cells are treated as absent and counted as skipped; the only
// failure is an unusable dataset.
func (b *RecordBuilder) Build(dataset models.RawDataset, mapping models.FieldMapping) ([]models.CanonicalRecord, models.DataQuality, error) {
	if len(dataset.Rows) == 0 {
		return nil, models.DataQuality{}, utils.NewIngestionError("dataset has no rows")
	}

	var numeric []models.CanonicalField
	for _, f := range mapping.Fields() {
		if f.IsNumeric() {
			numeric = append(numeric, f)
		}
	}
	if len(numeric) == 0 {
		return nil, models.DataQuality{}, utils.NewIngestionError("no column could be mapped to a numeric financial field")
	}

	periodColumn, hasPeriod := "", false
	if match, ok := mapping.Lookup(models.FieldPeriod); ok {
		periodColumn, hasPeriod = match.Column, true
	}

	var order []*periodAccumulator
	byLabel := make(map[string]*periodAccumulator)
	skippedCells := 0

	for i, row := range dataset.Rows {
		label := ""
		if hasPeriod {
			label = periodLabel(row[periodColumn])
		}

		var acc *periodAccumulator
		if label == "" {
			acc = newPeriodAccumulator(fmt.Sprintf("P%d", i+1))
			order = append(order, acc)
		} else if existing, ok := byLabel[label]; ok {
			acc = existing
		} else {
			acc = newPeriodAccumulator(label)
			acc.month = parseMonth(label)
			byLabel[label] = acc
			order = append(order, acc)
		}

		for _, f := range numeric {
			raw, present := row[mapping.Column(f)]
			if !present {
				continue
			}
			value, ok := parseNumericCell(raw)
			if !ok {
				if !isBlank(raw) {
					skippedCells++
				}
				continue
			}
			if f.Additive() {
				acc.sums[f] = acc.sums[f].Add(value)
			} else {
				acc.latest[f] = value
			}
		}
	}

	records := make([]models.CanonicalRecord, 0, len(order))
	for idx, acc := range order {
		values := make(map[models.CanonicalField]float64, len(acc.sums)+len(acc.latest))
		for f, d := range acc.sums {
			if v, ok := finiteFloat(d); ok {
				values[f] = v
			}
		}
		for f, d := range acc.latest {
			if v, ok := finiteFloat(d); ok {
				values[f] = v
			}
		}
		records = append(records, models.NewCanonicalRecord(acc.label, idx, acc.month, values))
	}

	quality := assessQuality(dataset)
	quality.SkippedCells = skippedCells

	b.logger.WithFields(logrus.Fields{
		"rows":          len(dataset.Rows),
		"records":       len(records),
		"fields":        len(numeric),
		"skipped_cells": skippedCells,
		"completeness":  quality.CompletenessPct,
	}).Debug("Built canonical records")

	return records, quality, nil
}

func assessQuality(dataset models.RawDataset) models.DataQuality {
	headers := dataset.Headers()
	q := models.DataQuality{TotalRows: len(dataset.Rows), TotalColumns: len(headers)}
	for _, h := range headers {
		present, numeric := 0, true
		for _, row := range dataset.Rows {
			raw, ok := row[h]
			if !ok || isBlank(raw) {
				q.MissingCells++
				continue
			}
			present++
			if _, ok := parseNumericCell(raw); !ok {
				numeric = false
			}
		}
		if present > 0 && numeric {
			q.NumericColumns++
		}
	}
	if cells := q.TotalRows * q.TotalColumns; cells > 0 {
		q.CompletenessPct = 100 * (1 - float64(q.MissingCells)/float64(cells))
	}
	return q
}

func newPeriodAccumulator(label string) *periodAccumulator {
	return &periodAccumulator{
		label:  label,
		sums:   make(map[models.CanonicalField]decimal.Decimal),
		latest: make(map[models.CanonicalField]decimal.Decimal),
	}
}

// Summarize collapses records into one dataset-level record: flows and counts
// are summed, stocks and rates take the latest available value.
func Summarize(records []models.CanonicalRecord) models.CanonicalRecord {
	sums := make(map[models.CanonicalField]decimal.Decimal)
	latest := make(map[models.CanonicalField]float64)
	for _, rec := range records {
		for f, v := range rec.Values() {
			if f.Additive() {
				sums[f] = sums[f].Add(decimal.NewFromFloat(v))
			} else {
				latest[f] = v
			}
		}
	}
	values := make(map[models.CanonicalField]float64, len(sums)+len(latest))
	for f, d := range sums {
		if v, ok := finiteFloat(d); ok {
			values[f] = v
		}
	}
	for f, v := range latest {
		values[f] = v
	}
	label := "total"
	if n := len(records); n > 0 {
		label = records[0].Period + ".." + records[n-1].Period
	}
	return models.NewCanonicalRecord(label, 0, 0, values)
}

// parseNumericCell reads a raw cell as a finite number. Currency symbols and
// digit grouping are ignored, "(x)" is negative and a trailing "%" divides by
// 100. Anything else is absent.
func parseNumericCell(raw any) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case nil, bool:
		return decimal.Zero, false
	case float64:
		return finiteDecimal(v)
	case float32:
		return finiteDecimal(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case decimal.Decimal:
		return v, true
	case fmt.Stringer:
		return parseNumericString(v.String())
	case string:
		return parseNumericString(v)
	default:
		return decimal.Zero, false
	}
}

func parseNumericString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	percent := false
	if strings.HasSuffix(s, "%") {
		percent = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', '¥', '₹', ',', '_', ' ', ' ':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		// Scientific notation and similar forms decimal rejects.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return decimal.Zero, false
		}
		var ok bool
		if d, ok = finiteDecimal(f); !ok {
			return decimal.Zero, false
		}
	}
	if percent {
		d = d.Div(decimal.NewFromInt(100))
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

func finiteDecimal(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func finiteFloat(d decimal.Decimal) (float64, bool) {
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isBlank(raw any) bool {
	if raw == nil {
		return true
	}
	s, ok := raw.(string)
	return ok && strings.TrimSpace(s) == ""
}

func periodLabel(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case time.Time:
		return v.Format("2006-01-02")
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// parseMonth returns the month of a date-like label, or 0.
func parseMonth(label string) int {
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, label); err == nil {
			return int(t.Month())
		}
	}
	return 0
}
