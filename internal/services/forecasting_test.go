package services

import (
	"fmt"
	"math"
	"testing"

	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestForecaster() *Forecaster {
	return NewForecaster(testEngineConfig(), quietLogger())
}

func monthLabels(year, n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("%04d-%02d", year+i/12, i%12+1)
	}
	return labels
}

func TestForecaster_Project(t *testing.T) {
	f := newTestForecaster()

	t.Run("steady growth uses geometric mean", func(t *testing.T) {
		values := []float64{100, 105, 110.25, 115.7625}
		fc := f.Project(SeriesRevenue, values, monthLabels(2024, 4), 3)

		require.Equal(t, models.StatusOK, fc.Status)
		assert.Equal(t, models.MethodGrowthRate, fc.Method)
		require.NotNil(t, fc.GrowthRate)
		assert.InDelta(t, 0.05, *fc.GrowthRate, 1e-9)
		require.Len(t, fc.Points, 3)
		assert.Equal(t, "2024-05", fc.Points[0].Period)
		assert.InDelta(t, 115.7625*1.05, fc.Points[0].Value, 1e-6)
		assert.Nil(t, fc.Points[0].Lower)
	})

	t.Run("volatile series uses linear trend with band", func(t *testing.T) {
		values := []float64{100, 60, 140, 90, 160}
		fc := f.Project(SeriesProfit, values, nil, 2)

		require.Equal(t, models.StatusOK, fc.Status)
		assert.Equal(t, models.MethodLinearTrend, fc.Method)
		require.NotNil(t, fc.Slope)
		fit := fitLinear(values)
		assert.InDelta(t, fit.slope, *fc.Slope, 1e-9)
		require.Len(t, fc.Points, 2)
		assert.Equal(t, "F1", fc.Points[0].Period)
		assert.InDelta(t, fit.at(5), fc.Points[0].Value, 1e-9)
		require.NotNil(t, fc.Points[0].Lower)
		require.NotNil(t, fc.Points[0].Upper)
		assert.Less(t, *fc.Points[0].Lower, fc.Points[0].Value)
		assert.Greater(t, *fc.Points[0].Upper, fc.Points[0].Value)
	})

	t.Run("negative values force linear trend", func(t *testing.T) {
		fc := f.Project(SeriesCashFlow, []float64{-10, -5, 0, 5}, nil, 1)
		assert.Equal(t, models.MethodLinearTrend, fc.Method)
		assert.InDelta(t, 10, fc.Points[0].Value, 1e-9)
	})

	t.Run("fewer than three values", func(t *testing.T) {
		fc := f.Project(SeriesRevenue, []float64{1, 2}, nil, 3)
		assert.Equal(t, models.StatusInsufficientData, fc.Status)
		assert.Empty(t, fc.Points)
	})

	t.Run("default horizon", func(t *testing.T) {
		fc := f.Project(SeriesRevenue, []float64{10, 20, 30}, nil, 0)
		assert.Len(t, fc.Points, 6)
	})

	t.Run("moving average", func(t *testing.T) {
		fc := f.Project(SeriesRevenue, []float64{10, 30, 20, 40, 60}, nil, 1)
		require.NotEmpty(t, fc.MovingAverage)
		assert.LessOrEqual(t, len(fc.MovingAverage), 5)
		assert.InDelta(t, 40, fc.MovingAverage[len(fc.MovingAverage)-1], 1e-9)
	})
}

func TestContinueLabels(t *testing.T) {
	tests := []struct {
		last     string
		expected []string
	}{
		{"2024-11", []string{"2024-12", "2025-01", "2025-02"}},
		{"2023", []string{"2024", "2025", "2026"}},
		{"Q4", []string{"F1", "F2", "F3"}},
		{"", []string{"F1", "F2", "F3"}},
	}

	for _, tt := range tests {
		t.Run(tt.last, func(t *testing.T) {
			assert.Equal(t, tt.expected, continueLabels(tt.last, 3))
		})
	}
}

func TestDetectSeasonality(t *testing.T) {
	t.Run("strong monthly pattern", func(t *testing.T) {
		values := make([]float64, 24)
		months := make([]int, 24)
		for i := range values {
			values[i] = 1000 + 2*float64(i) + 300*math.Sin(2*math.Pi*float64(i)/12)
			months[i] = i%12 + 1
		}
		res := DetectSeasonality(values, months, 12, 0.1)
		assert.Equal(t, models.StatusOK, res.Status)
		assert.True(t, res.Seasonal)
		assert.Greater(t, res.Strength, 0.1)
		assert.Len(t, res.Indices, 12)
	})

	t.Run("pure trend is not seasonal", func(t *testing.T) {
		values := make([]float64, 24)
		for i := range values {
			values[i] = 100 + 10*float64(i)
		}
		res := DetectSeasonality(values, nil, 12, 0.1)
		assert.Equal(t, models.StatusOK, res.Status)
		assert.False(t, res.Seasonal)
		assert.InDelta(t, 0, res.Strength, 1e-9)
	})

	t.Run("constant series", func(t *testing.T) {
		values := make([]float64, 12)
		for i := range values {
			values[i] = 5
		}
		res := DetectSeasonality(values, nil, 12, 0.1)
		assert.False(t, res.Seasonal)
	})

	t.Run("fewer than twelve values", func(t *testing.T) {
		res := DetectSeasonality([]float64{1, 2, 3}, nil, 12, 0.1)
		assert.Equal(t, models.StatusInsufficientData, res.Status)
		assert.False(t, res.Seasonal)
	})
}

func TestForecaster_ProjectRecords(t *testing.T) {
	labels := monthLabels(2023, 12)
	records := make([]models.CanonicalRecord, 12)
	for i := range records {
		records[i] = models.NewCanonicalRecord(labels[i], i, i+1, map[models.CanonicalField]float64{
			models.FieldRevenue: 1000 + 50*float64(i),
			models.FieldCost:    600 + 20*float64(i),
		})
	}

	series := newTestForecaster().ProjectRecords(records, 3)
	require.Len(t, series, 4)

	names := make([]string, len(series))
	for i, s := range series {
		names[i] = s.Series
	}
	assert.Equal(t, []string{SeriesRevenue, SeriesCost, SeriesProfit, SeriesCashFlow}, names)

	assert.Equal(t, models.StatusOK, series[0].Status)
	assert.Equal(t, "2024-01", series[0].Points[0].Period)
	require.NotNil(t, series[0].Seasonality)

	profit := series[2]
	assert.Equal(t, models.StatusOK, profit.Status)
	assert.Equal(t, 12, profit.History)

	assert.Equal(t, models.StatusInsufficientData, series[3].Status)
	assert.Nil(t, series[3].Seasonality)
}

func TestBreakEven(t *testing.T) {
	t.Run("solves units and revenue", func(t *testing.T) {
		res := BreakEven(200000, 300, 200)
		require.Equal(t, models.StatusOK, res.Status)
		assert.InDelta(t, 2000, *res.Units, 1e-9)
		assert.InDelta(t, 600000, *res.Revenue, 1e-9)
		assert.InDelta(t, 100, *res.ContributionMargin, 1e-9)
		assert.InDelta(t, 1.0/3.0, *res.ContributionMarginRatio, 1e-12)
	})

	invalid := []struct {
		name                   string
		fixed, price, variable float64
	}{
		{"price equals variable", 1000, 200, 200},
		{"price below variable", 1000, 100, 200},
		{"negative fixed", -1, 300, 200},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			res := BreakEven(tt.fixed, tt.price, tt.variable)
			assert.Equal(t, models.StatusInvalidInput, res.Status)
			assert.Nil(t, res.Units)
		})
	}

	t.Run("from record with missing fields", func(t *testing.T) {
		rec := models.NewCanonicalRecord("total", 0, 0, map[models.CanonicalField]float64{models.FieldFixedCosts: 100})
		res := BreakEvenFromRecord(rec)
		assert.Equal(t, models.StatusInsufficientData, res.Status)
		assert.Contains(t, res.Message, string(models.FieldUnitPrice))
	})
}
