package models

import "sort"

// IndustryTag classifies a dataset into one of the supported verticals.
type IndustryTag string

const (
	IndustryRetail        IndustryTag = "retail"
	IndustryService       IndustryTag = "service"
	IndustryManufacturing IndustryTag = "manufacturing"
	IndustryFinance       IndustryTag = "finance"
	IndustryGeneric       IndustryTag = "generic"
)

// IndustryPriority is the tie-break order used by industry classification.
var IndustryPriority = []IndustryTag{
	IndustryRetail,
	IndustryService,
	IndustryManufacturing,
	IndustryFinance,
}

// RawRow maps a raw header to a raw cell value (number, string, bool or nil).
type RawRow map[string]any

// RawDataset is the tabular input handed over by the ingestion collaborator.
type RawDataset struct {
	Columns []string `json:"columns,omitempty"`
	Rows    []RawRow `json:"rows"`
}

// Headers returns the ordered header list. When no explicit column order was
// supplied, the sorted union of row keys is used.
func (d RawDataset) Headers() []string {
	if len(d.Columns) > 0 {
		out := make([]string, len(d.Columns))
		copy(out, d.Columns)
		return out
	}
	seen := make(map[string]struct{})
	for _, row := range d.Rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CanonicalRecord holds the validated numeric values of one period. A field is
// either a finite number or absent.
type CanonicalRecord struct {
	Period string
	Index  int
	Month  int // 1..12 when the period label is a date, else 0
	values map[CanonicalField]float64
}

// NewCanonicalRecord copies values into a new record.
func NewCanonicalRecord(period string, index int, month int, values map[CanonicalField]float64) CanonicalRecord {
	v := make(map[CanonicalField]float64, len(values))
	for k, val := range values {
		v[k] = val
	}
	return CanonicalRecord{Period: period, Index: index, Month: month, values: v}
}

// Value returns the value of a field and whether it is present.
func (r CanonicalRecord) Value(field CanonicalField) (float64, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Has reports whether the field is present.
func (r CanonicalRecord) Has(field CanonicalField) bool {
	_, ok := r.values[field]
	return ok
}

// HasAll reports whether every given field is present.
func (r CanonicalRecord) HasAll(fields ...CanonicalField) bool {
	for _, f := range fields {
		if !r.Has(f) {
			return false
		}
	}
	return true
}

// Missing returns the given fields that are absent, in argument order.
func (r CanonicalRecord) Missing(fields ...CanonicalField) []CanonicalField {
	var out []CanonicalField
	for _, f := range fields {
		if !r.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Values returns a copy of all present values.
func (r CanonicalRecord) Values() map[CanonicalField]float64 {
	out := make(map[CanonicalField]float64, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Len returns the number of present fields.
func (r CanonicalRecord) Len() int {
	return len(r.values)
}

// Series extracts the values of one field across records, skipping periods
// where it is absent. Labels and positions line up with the returned values.
func Series(records []CanonicalRecord, field CanonicalField) (values []float64, labels []string, months []int) {
	for _, rec := range records {
		if v, ok := rec.Value(field); ok {
			values = append(values, v)
			labels = append(labels, rec.Period)
			months = append(months, rec.Month)
		}
	}
	return values, labels, months
}
