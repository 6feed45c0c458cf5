package models

import (
	"fmt"
	"strings"
)

// MetricStatus is the outcome of a single calculation.
type MetricStatus string

const (
	StatusOK               MetricStatus = "ok"
	StatusInsufficientData MetricStatus = "insufficient_data"
	StatusInvalidInput     MetricStatus = "invalid_input"
	StatusComputationError MetricStatus = "computation_error"
)

// Unit describes how a metric value is to be read. Percentages are fractions.
type Unit string

const (
	UnitCurrency   Unit = "currency"
	UnitPercentage Unit = "percentage"
	UnitRatio      Unit = "ratio"
	UnitCount      Unit = "count"
)

// BenchmarkTier is the interpretation band a KPI falls in.
type BenchmarkTier string

const (
	TierExcellent BenchmarkTier = "excellent"
	TierGood      BenchmarkTier = "good"
	TierAverage   BenchmarkTier = "average"
	TierPoor      BenchmarkTier = "poor"
)

// Metric categories used to group results in a report.
const (
	CategoryProfitability = "profitability"
	CategoryLiquidity     = "liquidity"
	CategoryLeverage      = "leverage"
	CategoryEfficiency    = "efficiency"
	CategoryReturns       = "returns"
	CategoryCostOfCapital = "cost_of_capital"
	CategoryEarnings      = "earnings"
	CategoryIndustry      = "industry"
)

// MetricResult is the immutable outcome of one calculator.
type MetricResult struct {
	Name          string             `json:"name"`
	Category      string             `json:"category"`
	Value         *float64           `json:"value"`
	Unit          Unit               `json:"unit"`
	Formula       string             `json:"formula"`
	Status        MetricStatus       `json:"status"`
	Message       string             `json:"message,omitempty"`
	Benchmark     BenchmarkTier      `json:"benchmark,omitempty"`
	Approximation bool               `json:"approximation,omitempty"`
	Auxiliary     map[string]float64 `json:"auxiliary,omitempty"`
}

// OK reports whether the metric carries a value.
func (m MetricResult) OK() bool {
	return m.Status == StatusOK && m.Value != nil
}

// Float returns the value, or 0 when absent.
func (m MetricResult) Float() float64 {
	if m.Value == nil {
		return 0
	}
	return *m.Value
}

// MetricSpec names a metric and how to read it; results are built from it.
type MetricSpec struct {
	Name     string
	Category string
	Unit     Unit
	Formula  string
}

// Value builds an ok result.
func (s MetricSpec) Value(v float64) MetricResult {
	return MetricResult{
		Name:     s.Name,
		Category: s.Category,
		Unit:     s.Unit,
		Formula:  s.Formula,
		Status:   StatusOK,
		Value:    &v,
	}
}

// Insufficient builds an insufficient_data result naming the missing fields.
func (s MetricSpec) Insufficient(missing ...CanonicalField) MetricResult {
	names := make([]string, len(missing))
	for i, f := range missing {
		names[i] = string(f)
	}
	msg := "required data not available"
	if len(names) > 0 {
		msg = "missing required fields: " + strings.Join(names, ", ")
	}
	return s.Failure(StatusInsufficientData, msg)
}

// Invalid builds an invalid_input result.
func (s MetricSpec) Invalid(format string, args ...any) MetricResult {
	return s.Failure(StatusInvalidInput, fmt.Sprintf(format, args...))
}

// Failure builds a result without a value.
func (s MetricSpec) Failure(status MetricStatus, message string) MetricResult {
	return MetricResult{
		Name:     s.Name,
		Category: s.Category,
		Unit:     s.Unit,
		Formula:  s.Formula,
		Status:   status,
		Message:  message,
	}
}

// WithAux returns a copy of the result with auxiliary values attached.
func (m MetricResult) WithAux(aux map[string]float64) MetricResult {
	out := make(map[string]float64, len(m.Auxiliary)+len(aux))
	for k, v := range m.Auxiliary {
		out[k] = v
	}
	for k, v := range aux {
		out[k] = v
	}
	m.Auxiliary = out
	return m
}

// Approximate returns a copy flagged as an approximation of the exact formula.
func (m MetricResult) Approximate(formula, message string) MetricResult {
	m.Approximation = true
	if formula != "" {
		m.Formula = formula
	}
	if message != "" {
		m.Message = message
	}
	return m
}

// WithMessage returns a copy carrying the message.
func (m MetricResult) WithMessage(message string) MetricResult {
	m.Message = message
	return m
}

// WithBenchmark returns a copy carrying the tier.
func (m MetricResult) WithBenchmark(tier BenchmarkTier) MetricResult {
	m.Benchmark = tier
	return m
}
