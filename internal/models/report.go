package models

import "time"

// IndustryKPISet holds the KPIs of one vertical. Generic datasets carry an
// empty list.
type IndustryKPISet struct {
	Industry IndustryTag    `json:"industry"`
	KPIs     []MetricResult `json:"kpis"`
}

// MetricGroup is one category of metrics in a report.
type MetricGroup struct {
	Category string         `json:"category"`
	Results  []MetricResult `json:"results"`
}

// StatusSummary counts outcomes across a report.
type StatusSummary struct {
	Total            int `json:"total"`
	OK               int `json:"ok"`
	InsufficientData int `json:"insufficient_data"`
	InvalidInput     int `json:"invalid_input"`
	ComputationError int `json:"computation_error"`
}

// Add counts one outcome.
func (s *StatusSummary) Add(status MetricStatus) {
	s.Total++
	switch status {
	case StatusOK:
		s.OK++
	case StatusInsufficientData:
		s.InsufficientData++
	case StatusInvalidInput:
		s.InvalidInput++
	case StatusComputationError:
		s.ComputationError++
	}
}

// DataQuality describes the completeness of the input table. A cell is missing
// when it is absent, null or blank. A numeric column has at least one value
// and every value parses as a number.
type DataQuality struct {
	TotalRows       int     `json:"total_rows"`
	TotalColumns    int     `json:"total_columns"`
	MissingCells    int     `json:"missing_cells"`
	NumericColumns  int     `json:"numeric_columns"`
	SkippedCells    int     `json:"skipped_cells"`
	CompletenessPct float64 `json:"completeness_pct"`
}

// Report is the full result of one analysis request.
type Report struct {
	ID           string           `json:"id"`
	GeneratedAt  time.Time        `json:"generated_at"`
	Industry     IndustryTag      `json:"industry"`
	Mapping      FieldMappingView `json:"mapping"`
	RecordCount  int              `json:"record_count"`
	DataQuality  DataQuality      `json:"data_quality"`
	Metrics      []MetricGroup    `json:"metrics"`
	Forecasts    []ForecastSeries `json:"forecasts"`
	BreakEven    *BreakEvenResult `json:"break_even,omitempty"`
	IndustryKPIs IndustryKPISet   `json:"industry_kpis"`
	Summary      StatusSummary    `json:"summary"`
}

// Metric finds a metric by name across all groups.
func (r Report) Metric(name string) (MetricResult, bool) {
	for _, g := range r.Metrics {
		for _, m := range g.Results {
			if m.Name == name {
				return m, true
			}
		}
	}
	return MetricResult{}, false
}

// Forecast finds a forecast by series name.
func (r Report) Forecast(series string) (ForecastSeries, bool) {
	for _, f := range r.Forecasts {
		if f.Series == series {
			return f, true
		}
	}
	return ForecastSeries{}, false
}

// Assumptions are the request-level defaults used when a dataset does not
// carry a rate itself. Nil fields fall back to configuration.
type Assumptions struct {
	DiscountRate *float64 `json:"discount_rate,omitempty"`
	CostOfEquity *float64 `json:"cost_of_equity,omitempty"`
	CostOfDebt   *float64 `json:"cost_of_debt,omitempty"`
	TaxRate      *float64 `json:"tax_rate,omitempty"`
	RiskFreeRate *float64 `json:"risk_free_rate,omitempty"`
	Horizon      int      `json:"horizon,omitempty"`
}
