package models

// ForecastMethod identifies the extrapolation used for a series.
type ForecastMethod string

const (
	MethodGrowthRate  ForecastMethod = "growth_rate"
	MethodLinearTrend ForecastMethod = "linear_trend"
)

// ForecastPoint is one projected period. Lower and Upper are only set for
// linear trends.
type ForecastPoint struct {
	Period string   `json:"period"`
	Value  float64  `json:"value"`
	Lower  *float64 `json:"lower,omitempty"`
	Upper  *float64 `json:"upper,omitempty"`
}

// SeasonalityResult describes the seasonal profile of a series.
type SeasonalityResult struct {
	Status   MetricStatus    `json:"status"`
	Seasonal bool            `json:"seasonal"`
	Strength float64         `json:"strength"`
	Indices  map[int]float64 `json:"indices,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// ForecastSeries is the projection of one historical series.
type ForecastSeries struct {
	Series        string             `json:"series"`
	Status        MetricStatus       `json:"status"`
	Message       string             `json:"message,omitempty"`
	Method        ForecastMethod     `json:"method,omitempty"`
	GrowthRate    *float64           `json:"growth_rate,omitempty"`
	Slope         *float64           `json:"slope,omitempty"`
	Intercept     *float64           `json:"intercept,omitempty"`
	Seasonal      bool               `json:"seasonal"`
	Seasonality   *SeasonalityResult `json:"seasonality,omitempty"`
	History       int                `json:"history_points"`
	MovingAverage []float64          `json:"moving_average,omitempty"`
	Points        []ForecastPoint    `json:"points"`
}

// BreakEvenResult is the output of the break-even solver.
type BreakEvenResult struct {
	Status                  MetricStatus `json:"status"`
	Message                 string       `json:"message,omitempty"`
	Units                   *float64     `json:"units,omitempty"`
	Revenue                 *float64     `json:"revenue,omitempty"`
	ContributionMargin      *float64     `json:"contribution_margin,omitempty"`
	ContributionMarginRatio *float64     `json:"contribution_margin_ratio,omitempty"`
	Formula                 string       `json:"formula"`
}
