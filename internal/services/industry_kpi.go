package services

import (
	"math"

	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/sirupsen/logrus"
)

// BenchmarkTable maps a KPI value to a tier. Bounds are ordered excellent,
// good, average; anything beyond the last bound is poor.
type BenchmarkTable struct {
	HigherIsBetter bool
	Bounds         [3]float64
}

var benchmarkTiers = [3]models.BenchmarkTier{models.TierExcellent, models.TierGood, models.TierAverage}

// Classify returns the tier of a value.
func (b BenchmarkTable) Classify(v float64) models.BenchmarkTier {
	for i, bound := range b.Bounds {
		if (b.HigherIsBetter && v >= bound) || (!b.HigherIsBetter && v <= bound) {
			return benchmarkTiers[i]
		}
	}
	return models.TierPoor
}

func higherBetter(excellent, good, average float64) BenchmarkTable {
	return BenchmarkTable{HigherIsBetter: true, Bounds: [3]float64{excellent, good, average}}
}

func lowerBetter(excellent, good, average float64) BenchmarkTable {
	return BenchmarkTable{Bounds: [3]float64{excellent, good, average}}
}

// KPIInputs gives a KPI read access to the summary record and to KPIs
// already computed for the same industry.
type KPIInputs struct {
	Record   models.CanonicalRecord
	Computed map[string]float64
}

func (in KPIInputs) value(f models.CanonicalField) float64 {
	v, _ := in.Record.Value(f)
	return v
}

// KPIDefinition is one industry KPI. Compute is only called once every
// required field is present; it returns an invalid_input message instead of
// a value when a denominator is unusable.
type KPIDefinition struct {
	Name      string
	Required  []models.CanonicalField
	Unit      models.Unit
	Formula   string
	Compute   func(in KPIInputs) (float64, string)
	Benchmark BenchmarkTable
}

func (d KPIDefinition) spec() models.MetricSpec {
	return models.MetricSpec{Name: d.Name, Category: models.CategoryIndustry, Unit: d.Unit, Formula: d.Formula}
}

func safeDiv(num, den float64, what string) (float64, string) {
	if den == 0 {
		return 0, what + " is zero"
	}
	return num / den, ""
}

// dependsOn reads a KPI computed earlier in the same industry list.
func dependsOn(in KPIInputs, name string) (float64, string) {
	v, ok := in.Computed[name]
	if !ok {
		return 0, name + " is not available"
	}
	return v, ""
}

var industryKPIs = map[models.IndustryTag][]KPIDefinition{
	models.IndustryRetail: {
		{
			Name:     "inventory_turnover",
			Required: []models.CanonicalField{models.FieldCOGS, models.FieldInventory},
			Unit:     models.UnitRatio,
			Formula:  "cogs / inventory",
			Compute: func(in KPIInputs) (float64, string) {
				return safeDiv(in.value(models.FieldCOGS), in.value(models.FieldInventory), "inventory")
			},
			Benchmark: higherBetter(8, 4, 2),
		},
		{
			Name:     "days_inventory_outstanding",
			Required: []models.CanonicalField{models.FieldCOGS, models.FieldInventory},
			Unit:     models.UnitCount,
			Formula:  "365 / inventory_turnover",
			Compute: func(in KPIInputs) (float64, string) {
				turnover, msg := dependsOn(in, "inventory_turnover")
				if msg != "" {
					return 0, msg
				}
				return safeDiv(daysPerYear, turnover, "inventory_turnover")
			},
			Benchmark: lowerBetter(45, 90, 180),
		},
		{
			Name:     "sales_per_sqft",
			Required: []models.CanonicalField{models.FieldRevenue, models.FieldStoreSqFt},
			Unit:     models.UnitCurrency,
			Formula:  "revenue / store_sq_ft",
			Compute: func(in KPIInputs) (float64, string) {
				return safeDiv(in.value(models.FieldRevenue), in.value(models.FieldStoreSqFt), "store_sq_ft")
			},
			Benchmark: higherBetter(5000, 3000, 1500),
		},
		{
			Name:     "average_basket_value",
			Required: []models.CanonicalField{models.FieldRevenue, models.FieldTransactions},
			Unit:     models.UnitCurrency,
			Formula:  "revenue / transactions",
			Compute: func(in KPIInputs) (float64, string) {
				return safeDiv(in.value(models.FieldRevenue), in.value(models.FieldTransactions), "transactions")
			},
			Benchmark: higherBetter(2500, 1000, 500),
		},
	},
	models.IndustryService: {
		{
			Name:     "customer_acquisition_cost",
			Required: []models.CanonicalField{models.FieldMarketingCost, models.FieldNewCustomers},
			Unit:     models.UnitCurrency,
			Formula:  "marketing_cost / new_customers",
			Compute: func(in KPIInputs) (float64, string) {
				return safeDiv(in.value(models.FieldMarketingCost), in.value(models.FieldNewCustomers), "new_customers")
			},
			Benchmark: lowerBetter(500, 2000, 5000),
		},
		{
			Name:     "customer_lifetime_value",
			Required: []models.CanonicalField{models.FieldRevenue, models.FieldCost, models.FieldCustomers, models.FieldCustomerLifespan},
			Unit:     models.UnitCurrency,
			Formula:  "(revenue / customers) * customer_lifespan * ((revenue - cost) / revenue)",
			Compute: func(in KPIInputs) (float64, string) {
				revenue := in.value(models.FieldRevenue)
				perCustomer, msg := safeDiv(revenue, in.value(models.FieldCustomers), "customers")
				if msg != "" {
					return 0, msg
				}
				margin, msg := safeDiv(revenue-in.value(models.FieldCost), revenue, "revenue")
				if msg != "" {
					return 0, msg
				}
				return perCustomer * in.value(models.FieldCustomerLifespan) * margin, ""
			},
			Benchmark: higherBetter(50000, 20000, 5000),
		},
		{
			Name: "clv_to_cac",
			Required: []models.CanonicalField{
				models.FieldRevenue, models.FieldCost, models.FieldCustomers, models.FieldCustomerLifespan,
				models.FieldMarketingCost, models.FieldNewCustomers,
			},
			Unit:    models.UnitRatio,
			Formula: "customer_lifetime_value / customer_acquisition_cost",
			Compute: func(in KPIInputs) (float64, string) {
				clv, msg := dependsOn(in, "customer_lifetime_value")
				if msg != "" {
					return 0, msg
				}
				cac, msg := dependsOn(in, "customer_acquisition_cost")
				if msg != "" {
					return 0, msg
				}
				return safeDiv(clv, cac, "customer_acquisition_cost")
			},
			Benchmark: higherBetter(5, 3, 1),
		},
		{
			Name:     "utilization_rate",
			Required: []models.CanonicalField{models.FieldBillableHours, models.FieldTotalHours},
			Unit:     models.UnitPercentage,
			Formula:  "billable_hours / total_hours",
			Compute: func(in KPIInputs) (float64, string) {
				return safeDiv(in.value(models.FieldBillableHours), in.value(models.FieldTotalHours), "total_hours")
			},
			Benchmark: higherBetter(0.85, 0.70, 0.50),
		},
		{
			Name:     "revenue_per_hour",
			Required: []models.CanonicalField{models.FieldRevenue, models.FieldTotalHours},
			Unit:     models.UnitCurrency,
			Formula:  "revenue / total_hours",
			Compute: func(in KPIInputs) (float64, string) {
				return safeDiv(in.value(models.FieldRevenue), in.value(models.FieldTotalHours), "total_hours")
			},
			Benchmark: higherBetter(3000, 1500, 500),
		},
	},
	models.IndustryManufacturing: {
		{
			Name:     "production_efficiency",
			Required: []models.CanonicalField{models.FieldUnitsProduced, models.FieldCapacity},
			Unit:     models.UnitPercentage,
			Formula:  "units_produced / capacity",
			Compute: func(in KPIInputs) (float64, string) {
				return safeDiv(in.value(models.FieldUnitsProduced), in.value(models.FieldCapacity), "capacity")
			},
			Benchmark: higherBetter(0.90, 0.75, 0.60),
		},
		{
			Name:     "cost_per_unit",
			Required: []models.CanonicalField{models.FieldCost, models.FieldUnitsProduced},
			Unit:     models.UnitCurrency,
			Formula:  "cost / units_produced",
			Compute: func(in KPIInputs) (float64, string) {
				return safeDiv(in.value(models.FieldCost), in.value(models.FieldUnitsProduced), "units_produced")
			},
			Benchmark: lowerBetter(50, 100, 200),
		},
		{
			Name:     "defect_rate",
			Required: []models.CanonicalField{models.FieldDefectiveUnits, models.FieldTotalUnits},
			Unit:     models.UnitPercentage,
			Formula:  "defective_units / total_units",
			Compute: func(in KPIInputs) (float64, string) {
				return safeDiv(in.value(models.FieldDefectiveUnits), in.value(models.FieldTotalUnits), "total_units")
			},
			Benchmark: lowerBetter(0.01, 0.03, 0.05),
		},
	},
	models.IndustryFinance: {
		{
			Name:     "sharpe_ratio",
			Required: []models.CanonicalField{models.FieldPortfolioReturn, models.FieldRiskFreeRate, models.FieldReturnStdDev},
			Unit:     models.UnitRatio,
			Formula:  "(portfolio_return - risk_free_rate) / return_std_dev",
			Compute: func(in KPIInputs) (float64, string) {
				sd := in.value(models.FieldReturnStdDev)
				if sd <= 0 {
					return 0, "return_std_dev must be greater than zero"
				}
				return (in.value(models.FieldPortfolioReturn) - in.value(models.FieldRiskFreeRate)) / sd, ""
			},
			Benchmark: higherBetter(2, 1, 0),
		},
		{
			Name:     "diversification_index",
			Required: []models.CanonicalField{models.FieldAssetCount, models.FieldAvgCorrelation},
			Unit:     models.UnitCount,
			Formula:  "min(asset_count * 5, 50) + (1 - |avg_correlation|) * 50",
			Compute: func(in KPIInputs) (float64, string) {
				n := in.value(models.FieldAssetCount)
				rho := in.value(models.FieldAvgCorrelation)
				if n < 1 {
					return 0, "asset_count must be at least 1"
				}
				if rho < -1 || rho > 1 {
					return 0, "avg_correlation must be within [-1, 1]"
				}
				return math.Min(n*5, 50) + (1-math.Abs(rho))*50, ""
			},
			Benchmark: higherBetter(80, 60, 40),
		},
	},
}

// KPIDefinitions returns the ordered KPI list of an industry.
func KPIDefinitions(industry models.IndustryTag) []KPIDefinition {
	defs := industryKPIs[industry]
	out := make([]KPIDefinition, len(defs))
	copy(out, defs)
	return out
}

// KPIEngine evaluates the KPI list of a classified industry.
type KPIEngine struct {
	riskFreeRate float64
	logger       *logrus.Logger
}

// NewKPIEngine creates a KPI engine. riskFreeRate is used by the Sharpe
// ratio when the dataset carries no risk-free rate of its own.
func NewKPIEngine(riskFreeRate float64, logger *logrus.Logger) *KPIEngine {
	if logger == nil {
		logger = logrus.New()
	}
	return &KPIEngine{riskFreeRate: riskFreeRate, logger: logger}
}

// Evaluate computes every KPI of the industry against the summary record.
// Each KPI fails independently; Generic yields an empty set.
func (e *KPIEngine) Evaluate(industry models.IndustryTag, summary models.CanonicalRecord) models.IndustryKPISet {
	return e.EvaluateWithRiskFree(industry, summary, e.riskFreeRate)
}

// EvaluateWithRiskFree is Evaluate with a per-request risk-free rate.
func (e *KPIEngine) EvaluateWithRiskFree(industry models.IndustryTag, summary models.CanonicalRecord, riskFree float64) models.IndustryKPISet {
	set := models.IndustryKPISet{Industry: industry, KPIs: []models.MetricResult{}}
	defs := industryKPIs[industry]
	if len(defs) == 0 {
		return set
	}

	record := summary
	if industry == models.IndustryFinance && !summary.Has(models.FieldRiskFreeRate) {
		values := summary.Values()
		values[models.FieldRiskFreeRate] = riskFree
		record = models.NewCanonicalRecord(summary.Period, summary.Index, summary.Month, values)
	}

	in := KPIInputs{Record: record, Computed: make(map[string]float64, len(defs))}
	for _, def := range defs {
		s := def.spec()
		if missing := record.Missing(def.Required...); len(missing) > 0 {
			set.KPIs = append(set.KPIs, s.Insufficient(missing...))
			continue
		}
		v, msg := def.Compute(in)
		if msg != "" {
			set.KPIs = append(set.KPIs, s.Invalid("%s", msg))
			continue
		}
		if !isFinite(v) {
			set.KPIs = append(set.KPIs, s.Failure(models.StatusComputationError, "result is not finite"))
			continue
		}
		in.Computed[def.Name] = v
		result := s.Value(v).WithBenchmark(def.Benchmark.Classify(v))
		if def.Name == "sharpe_ratio" && !summary.Has(models.FieldRiskFreeRate) {
			result = result.WithMessage("assumed risk-free rate")
		}
		set.KPIs = append(set.KPIs, result)
	}

	e.logger.WithFields(logrus.Fields{
		"industry": industry,
		"kpis":     len(set.KPIs),
	}).Debug("Evaluated industry KPIs")

	return set
}
