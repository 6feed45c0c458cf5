package services

import (
	"math"
	"testing"

	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatioFunctions(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(models.CanonicalRecord) models.MetricResult
		values map[models.CanonicalField]float64
		want   float64
		approx bool
	}{
		{"gross margin from cogs", GrossMargin, map[models.CanonicalField]float64{
			models.FieldRevenue: 1000, models.FieldCOGS: 600, models.FieldCost: 900,
		}, 0.4, false},
		{"gross margin from cost", GrossMargin, map[models.CanonicalField]float64{
			models.FieldRevenue: 1000, models.FieldCost: 750,
		}, 0.25, true},
		{"net margin from net income", NetMargin, map[models.CanonicalField]float64{
			models.FieldRevenue: 2000, models.FieldNetIncome: 300,
		}, 0.15, false},
		{"net margin from cost", NetMargin, map[models.CanonicalField]float64{
			models.FieldRevenue: 2000, models.FieldCost: 1500,
		}, 0.25, true},
		{"profit loss ratio", ProfitLossRatio, map[models.CanonicalField]float64{
			models.FieldRevenue: 500, models.FieldCost: 400,
		}, 0.2, false},
		{"cash flow margin from net cash flow", CashFlowMargin, map[models.CanonicalField]float64{
			models.FieldRevenue: 1000, models.FieldCashFlow: 100,
		}, 0.1, true},
		{"quick ratio", QuickRatio, map[models.CanonicalField]float64{
			models.FieldCurrentAssets: 500, models.FieldInventory: 100, models.FieldCurrentLiabilities: 200,
		}, 2, false},
		{"working capital", WorkingCapital, map[models.CanonicalField]float64{
			models.FieldCurrentAssets: 500, models.FieldCurrentLiabilities: 200,
		}, 300, false},
		{"debt ratio prefers liabilities", DebtRatio, map[models.CanonicalField]float64{
			models.FieldLiabilities: 400, models.FieldDebt: 100, models.FieldAssets: 1000,
		}, 0.4, false},
		{"days sales outstanding", DaysSalesOutstanding, map[models.CanonicalField]float64{
			models.FieldRevenue: 3650, models.FieldReceivables: 500,
		}, 50, false},
		{"inventory turnover from cost", InventoryTurnover, map[models.CanonicalField]float64{
			models.FieldCost: 800, models.FieldInventory: 200,
		}, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.fn(summaryOf(tt.values))
			require.Equal(t, models.StatusOK, r.Status, r.Message)
			assert.InDelta(t, tt.want, r.Float(), 1e-9)
			assert.Equal(t, tt.approx, r.Approximation)
		})
	}
}

func TestRatioFunctions_Failures(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(models.CanonicalRecord) models.MetricResult
		values map[models.CanonicalField]float64
		want   models.MetricStatus
	}{
		{"gross margin without revenue", GrossMargin, map[models.CanonicalField]float64{models.FieldCOGS: 10}, models.StatusInsufficientData},
		{"gross margin with zero revenue", GrossMargin, map[models.CanonicalField]float64{
			models.FieldRevenue: 0, models.FieldCOGS: 10,
		}, models.StatusInvalidInput},
		{"quick ratio missing inventory", QuickRatio, map[models.CanonicalField]float64{
			models.FieldCurrentAssets: 10, models.FieldCurrentLiabilities: 5,
		}, models.StatusInsufficientData},
		{"days sales outstanding with zero receivables", DaysSalesOutstanding, map[models.CanonicalField]float64{
			models.FieldRevenue: 100, models.FieldReceivables: 0,
		}, models.StatusInvalidInput},
		{"debt to equity without equity", DebtToEquityFromRecord, map[models.CanonicalField]float64{
			models.FieldDebt: 100,
		}, models.StatusInsufficientData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.fn(summaryOf(tt.values))
			assert.Equal(t, tt.want, r.Status)
			assert.Nil(t, r.Value)
			assert.NotEmpty(t, r.Message)
		})
	}
}

func TestDebtToEquityFromRecord_FallsBackToLiabilities(t *testing.T) {
	r := DebtToEquityFromRecord(summaryOf(map[models.CanonicalField]float64{
		models.FieldLiabilities: 300, models.FieldEquity: 600,
	}))
	require.True(t, r.OK())
	assert.InDelta(t, 0.5, r.Float(), 1e-12)
	assert.Contains(t, r.Message, "liabilities")
}

func TestRatioGroups_Sizes(t *testing.T) {
	rec := summaryOf(map[models.CanonicalField]float64{models.FieldRevenue: 100})

	assert.Len(t, ProfitabilityRatios(rec), 7)
	assert.Len(t, LiquidityRatios(rec), 5)
	assert.Len(t, LeverageRatios(rec), 4)
	assert.Len(t, EfficiencyRatios(rec), 4)
}

func TestSalesGrowthAndCAGR(t *testing.T) {
	t.Run("growth of last period", func(t *testing.T) {
		r := SalesGrowth([]float64{100, 120, 150})
		require.True(t, r.OK())
		assert.InDelta(t, 0.25, r.Float(), 1e-12)
	})

	t.Run("growth needs two periods", func(t *testing.T) {
		assert.Equal(t, models.StatusInsufficientData, SalesGrowth([]float64{100}).Status)
	})

	t.Run("growth from zero", func(t *testing.T) {
		assert.Equal(t, models.StatusInvalidInput, SalesGrowth([]float64{0, 100}).Status)
	})

	t.Run("cagr", func(t *testing.T) {
		r := RevenueCAGR([]float64{100, 110, 121})
		require.True(t, r.OK())
		assert.InDelta(t, 0.1, r.Float(), 1e-12)
		assert.InDelta(t, 3, r.Auxiliary["periods"], 0)
	})

	t.Run("cagr rejects non-positive endpoints", func(t *testing.T) {
		assert.Equal(t, models.StatusInvalidInput, RevenueCAGR([]float64{-5, 10}).Status)
	})

	t.Run("cagr matches compounding", func(t *testing.T) {
		r := RevenueCAGR([]float64{1000, 0, 0, 2000})
		require.True(t, r.OK())
		assert.InDelta(t, math.Cbrt(2)-1, r.Float(), 1e-12)
	})
}
