package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/irfndi/finmetrics-go/internal/config"
	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	minForecastPoints    = 3
	minSeasonalityPoints = 12
	confidenceZ          = 1.96
)

// Forecast series names.
const (
	SeriesRevenue  = "revenue"
	SeriesCost     = "cost"
	SeriesProfit   = "profit"
	SeriesCashFlow = "cash_flow"
)

var (
	monthLabel = regexp.MustCompile(`^\d{4}-\d{2}$`)
	yearLabel  = regexp.MustCompile(`^\d{4}$`)
)

// Forecaster projects historical series forward and detects seasonality.
type Forecaster struct {
	volatilityThreshold  float64
	seasonalityThreshold float64
	seasonalPeriod       int
	horizon              int
	window               int
	logger               *logrus.Logger
}

// NewForecaster creates a forecaster from engine settings.
func NewForecaster(engine config.EngineConfig, logger *logrus.Logger) *Forecaster {
	if logger == nil {
		logger = logrus.New()
	}
	f := &Forecaster{
		volatilityThreshold:  engine.VolatilityThreshold,
		seasonalityThreshold: engine.SeasonalityThreshold,
		seasonalPeriod:       engine.SeasonalPeriod,
		horizon:              engine.ForecastHorizon,
		window:               engine.MovingAverageWindow,
		logger:               logger,
	}
	if f.volatilityThreshold <= 0 {
		f.volatilityThreshold = 0.01
	}
	if f.seasonalityThreshold <= 0 {
		f.seasonalityThreshold = 0.1
	}
	if f.seasonalPeriod < 2 {
		f.seasonalPeriod = 12
	}
	if f.horizon <= 0 {
		f.horizon = 6
	}
	if f.window < 2 {
		f.window = 3
	}
	return f
}

// Horizon returns the configured number of projected periods.
func (f *Forecaster) Horizon() int {
	return f.horizon
}

// Project extrapolates a series. Stable, strictly positive series use their
// geometric mean growth; everything else follows an OLS trend with a 95% band.
func (f *Forecaster) Project(name string, values []float64, labels []string, horizon int) models.ForecastSeries {
	out := models.ForecastSeries{Series: name, History: len(values), Points: []models.ForecastPoint{}}
	if horizon <= 0 {
		horizon = f.horizon
	}
	if len(values) < minForecastPoints {
		out.Status = models.StatusInsufficientData
		out.Message = fmt.Sprintf("at least %d periods are required, got %d", minForecastPoints, len(values))
		return out
	}
	for _, v := range values {
		if !isFinite(v) {
			out.Status = models.StatusInvalidInput
			out.Message = "series contains non-finite values"
			return out
		}
	}

	var last string
	if len(labels) == len(values) {
		last = labels[len(labels)-1]
	}
	future := continueLabels(last, horizon)
	n := len(values)

	if rates, ok := growthRates(values); ok && allPositive(values) && sampleVariance(rates) < f.volatilityThreshold {
		g := geometricMeanGrowth(values)
		out.Method = models.MethodGrowthRate
		out.GrowthRate = &g
		base := values[n-1]
		for k := 1; k <= horizon; k++ {
			out.Points = append(out.Points, models.ForecastPoint{
				Period: future[k-1],
				Value:  base * math.Pow(1+g, float64(k)),
			})
		}
	} else {
		fit := fitLinear(values)
		band := confidenceZ * math.Sqrt(populationVariance(fit.residuals(values)))
		slope, intercept := fit.slope, fit.intercept
		out.Method = models.MethodLinearTrend
		out.Slope = &slope
		out.Intercept = &intercept
		for k := 1; k <= horizon; k++ {
			v := fit.at(float64(n - 1 + k))
			lower, upper := v-band, v+band
			out.Points = append(out.Points, models.ForecastPoint{
				Period: future[k-1],
				Value:  v,
				Lower:  &lower,
				Upper:  &upper,
			})
		}
	}

	out.MovingAverage = movingAverage(values, f.window)
	out.Status = models.StatusOK
	return out
}

func sampleVariance(values []float64) float64 {
	sd := calculateStdDev(values)
	return sd * sd
}

func movingAverage(values []float64, window int) []float64 {
	if window < 2 || len(values) < window {
		return nil
	}
	sma := trend.NewSmaWithPeriod[float64](window)
	return helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
}

// continueLabels extends a YYYY-MM or YYYY label sequence, else F1..Fk.
func continueLabels(last string, horizon int) []string {
	out := make([]string, horizon)
	switch {
	case monthLabel.MatchString(last):
		if t, err := time.Parse("2006-01", last); err == nil {
			for k := range out {
				out[k] = t.AddDate(0, k+1, 0).Format("2006-01")
			}
			return out
		}
	case yearLabel.MatchString(last):
		if y, err := strconv.Atoi(last); err == nil {
			for k := range out {
				out[k] = strconv.Itoa(y + k + 1)
			}
			return out
		}
	}
	for k := range out {
		out[k] = "F" + strconv.Itoa(k+1)
	}
	return out
}

// DetectSeasonality measures how much of a series' variance is explained by
// average detrended residuals per seasonal position. Positions are calendar
// months when every month is known, else index mod period.
func (f *Forecaster) DetectSeasonality(values []float64, months []int) models.SeasonalityResult {
	return DetectSeasonality(values, months, f.seasonalPeriod, f.seasonalityThreshold)
}

// DetectSeasonality reports a series as seasonal when the variance of its
// per-position residual means exceeds threshold times the series variance.
// A period below 2 falls back to 12.
func DetectSeasonality(values []float64, months []int, period int, threshold float64) models.SeasonalityResult {
	if len(values) < minSeasonalityPoints {
		return models.SeasonalityResult{
			Status:  models.StatusInsufficientData,
			Message: fmt.Sprintf("at least %d periods are required, got %d", minSeasonalityPoints, len(values)),
		}
	}
	if period < 2 {
		period = 12
	}

	useMonths := len(months) == len(values)
	for _, m := range months {
		if m < 1 || m > 12 {
			useMonths = false
			break
		}
	}

	residuals := detrend(values)
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, r := range residuals {
		pos := i % period
		if useMonths {
			pos = months[i]
		}
		sums[pos] += r
		counts[pos]++
	}
	indices := make(map[int]float64, len(sums))
	list := make([]float64, 0, len(sums))
	for pos, sum := range sums {
		avg := sum / float64(counts[pos])
		indices[pos] = avg
		list = append(list, avg)
	}

	result := models.SeasonalityResult{Status: models.StatusOK, Indices: indices}
	seriesVar := populationVariance(values)
	if seriesVar == 0 {
		result.Message = "series is constant"
		return result
	}
	result.Strength = populationVariance(list) / seriesVar
	result.Seasonal = result.Strength > threshold
	return result
}

// ProjectRecords forecasts revenue, cost, profit and cash flow. Each series is
// always present; missing history yields insufficient_data.
func (f *Forecaster) ProjectRecords(records []models.CanonicalRecord, horizon int) []models.ForecastSeries {
	type source struct {
		name   string
		values []float64
		labels []string
		months []int
	}

	revenue, revLabels, revMonths := models.Series(records, models.FieldRevenue)
	cost, costLabels, costMonths := models.Series(records, models.FieldCost)
	cash, cashLabels, cashMonths := models.Series(records, models.FieldCashFlow)

	var profit []float64
	var profitLabels []string
	var profitMonths []int
	for _, rec := range records {
		if rec.HasAll(models.FieldRevenue, models.FieldCost) {
			r, _ := rec.Value(models.FieldRevenue)
			c, _ := rec.Value(models.FieldCost)
			profit = append(profit, r-c)
			profitLabels = append(profitLabels, rec.Period)
			profitMonths = append(profitMonths, rec.Month)
		}
	}

	sources := []source{
		{SeriesRevenue, revenue, revLabels, revMonths},
		{SeriesCost, cost, costLabels, costMonths},
		{SeriesProfit, profit, profitLabels, profitMonths},
		{SeriesCashFlow, cash, cashLabels, cashMonths},
	}

	out := make([]models.ForecastSeries, 0, len(sources))
	for _, s := range sources {
		fc := f.Project(s.name, s.values, s.labels, horizon)
		if len(s.values) >= minSeasonalityPoints {
			season := f.DetectSeasonality(s.values, s.months)
			fc.Seasonality = &season
			fc.Seasonal = season.Seasonal
		}
		out = append(out, fc)
	}

	f.logger.WithFields(logrus.Fields{
		"series":  len(out),
		"horizon": horizon,
		"records": len(records),
	}).Debug("Projected forecast series")

	return out
}

const breakEvenFormula = "units = fixed_costs / (unit_price - variable_cost_per_unit)"

// BreakEven solves for the units and revenue at which profit is zero.
func BreakEven(fixed, price, variable float64) models.BreakEvenResult {
	out := models.BreakEvenResult{Formula: breakEvenFormula}
	switch {
	case !isFinite(fixed) || !isFinite(price) || !isFinite(variable):
		out.Status = models.StatusInvalidInput
		out.Message = "inputs must be finite"
		return out
	case fixed < 0:
		out.Status = models.StatusInvalidInput
		out.Message = fmt.Sprintf("fixed costs must not be negative, got %g", fixed)
		return out
	case price <= variable:
		out.Status = models.StatusInvalidInput
		out.Message = "unit price must exceed variable cost per unit"
		return out
	}

	priceD := decimal.NewFromFloat(price)
	marginD := priceD.Sub(decimal.NewFromFloat(variable))
	unitsD := decimal.NewFromFloat(fixed).Div(marginD)
	units, _ := unitsD.Float64()
	revenue, _ := unitsD.Mul(priceD).Float64()
	margin, _ := marginD.Float64()
	ratio := 0.0
	if !priceD.IsZero() {
		ratio, _ = marginD.Div(priceD).Float64()
	}
	out.Status = models.StatusOK
	out.Units = &units
	out.Revenue = &revenue
	out.ContributionMargin = &margin
	out.ContributionMarginRatio = &ratio
	return out
}

// BreakEvenFromRecord reads fixed costs, unit price and variable cost per
// unit from a summary record.
func BreakEvenFromRecord(summary models.CanonicalRecord) models.BreakEvenResult {
	missing := summary.Missing(models.FieldFixedCosts, models.FieldUnitPrice, models.FieldVariableCostPerUnit)
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, m := range missing {
			names[i] = string(m)
		}
		return models.BreakEvenResult{
			Status:  models.StatusInsufficientData,
			Message: fmt.Sprintf("missing required fields: %s", strings.Join(names, ", ")),
			Formula: breakEvenFormula,
		}
	}
	fixed, _ := summary.Value(models.FieldFixedCosts)
	price, _ := summary.Value(models.FieldUnitPrice)
	variable, _ := summary.Value(models.FieldVariableCostPerUnit)
	return BreakEven(fixed, price, variable)
}
