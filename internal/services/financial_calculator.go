package services

import (
	"fmt"
	"math"

	"github.com/irfndi/finmetrics-go/internal/models"
)

const (
	DefaultIRRTolerance     = 1e-6
	DefaultIRRMaxIterations = 1000

	irrGridMax      = 10.0
	irrGridStepUp   = 0.05
	irrGridMin      = -0.99
	irrGridStepDown = 0.01
)

var (
	roiSpec = models.MetricSpec{
		Name: "roi", Category: models.CategoryReturns, Unit: models.UnitPercentage,
		Formula: "(final_value - investment) / investment",
	}
	debtToEquitySpec = models.MetricSpec{
		Name: "debt_to_equity", Category: models.CategoryLeverage, Unit: models.UnitRatio,
		Formula: "debt / equity",
	}
	npvSpec = models.MetricSpec{
		Name: "npv", Category: models.CategoryReturns, Unit: models.UnitCurrency,
		Formula: "sum(cf_t / (1 + r)^t), t = 0..n",
	}
	irrSpec = models.MetricSpec{
		Name: "irr", Category: models.CategoryReturns, Unit: models.UnitPercentage,
		Formula: "r such that npv(r) = 0",
	}
	waccSpec = models.MetricSpec{
		Name: "wacc", Category: models.CategoryCostOfCapital, Unit: models.UnitPercentage,
		Formula: "(E/V) * Re + (D/V) * Rd * (1 - Tc)",
	}
	ebitdaSpec = models.MetricSpec{
		Name: "ebitda", Category: models.CategoryEarnings, Unit: models.UnitCurrency,
		Formula: "revenue - operating_expenses + depreciation + amortization",
	}
	paybackSpec = models.MetricSpec{
		Name: "payback_period", Category: models.CategoryReturns, Unit: models.UnitCount,
		Formula: "periods until cumulative cash flow >= 0",
	}
	profitabilityIndexSpec = models.MetricSpec{
		Name: "profitability_index", Category: models.CategoryReturns, Unit: models.UnitRatio,
		Formula: "pv(cf_1..cf_n) / |cf_0|",
	}
)

// ROI computes the relative gain over an initial investment.
func ROI(initial, final float64) models.MetricResult {
	if !isFinite(initial) || !isFinite(final) {
		return roiSpec.Invalid("investment and final value must be finite")
	}
	if initial <= 0 {
		return roiSpec.Invalid("investment must be greater than zero, got %g", initial)
	}
	return roiSpec.Value((final - initial) / initial).WithAux(map[string]float64{
		"investment":  initial,
		"final_value": final,
		"gain":        final - initial,
	})
}

// DebtToEquity computes leverage as debt over equity.
func DebtToEquity(debt, equity float64) models.MetricResult {
	if equity == 0 {
		return debtToEquitySpec.Invalid("equity is zero")
	}
	return debtToEquitySpec.Value(debt / equity)
}

// npvAt evaluates the discounted sum of flows at rate r, flows[0] undiscounted.
func npvAt(rate float64, flows []float64) float64 {
	total := 0.0
	factor := 1.0
	for _, cf := range flows {
		total += cf / factor
		factor *= 1 + rate
	}
	return total
}

// npvDerivative is d/dr of npvAt.
func npvDerivative(rate float64, flows []float64) float64 {
	total := 0.0
	for t, cf := range flows {
		if t == 0 {
			continue
		}
		total -= float64(t) * cf / math.Pow(1+rate, float64(t+1))
	}
	return total
}

// NPV discounts the ordered flows at rate. Flows start at t=0.
func NPV(rate float64, flows []float64) models.MetricResult {
	if len(flows) == 0 {
		return npvSpec.Insufficient(models.FieldCashFlow)
	}
	if !isFinite(rate) || rate <= -1 {
		return npvSpec.Invalid("discount rate must be greater than -1, got %g", rate)
	}

	npv := npvAt(rate, flows)
	if !isFinite(npv) {
		return npvSpec.Failure(models.StatusComputationError, "net present value is not finite")
	}

	inflows := 0.0
	factor := 1.0
	for _, cf := range flows {
		if cf > 0 {
			inflows += cf / factor
		}
		factor *= 1 + rate
	}

	decision := "reject"
	if npv > 0 {
		decision = "accept"
	}
	return npvSpec.Value(npv).
		WithAux(map[string]float64{
			"present_value_sum_of_inflows": inflows,
			"periods":                      float64(len(flows)),
			"discount_rate":                rate,
		}).
		WithMessage(fmt.Sprintf("%s: net present value at a %.2f%% discount rate is %.2f", decision, rate*100, npv))
}

// IRRSolver finds the internal rate of return with a bracketed Newton method.
type IRRSolver struct {
	tolerance     float64
	maxIterations int
}

// NewIRRSolver creates a solver. Non-positive settings take the defaults.
func NewIRRSolver(tolerance float64, maxIterations int) *IRRSolver {
	if tolerance <= 0 {
		tolerance = DefaultIRRTolerance
	}
	if maxIterations <= 0 || maxIterations > DefaultIRRMaxIterations {
		maxIterations = DefaultIRRMaxIterations
	}
	return &IRRSolver{tolerance: tolerance, maxIterations: maxIterations}
}

// IRR solves with the default tolerance and iteration budget.
func IRR(flows []float64) models.MetricResult {
	return NewIRRSolver(DefaultIRRTolerance, DefaultIRRMaxIterations).Solve(flows)
}

// Solve returns the rate at which the flows have zero net present value. The
// flows are scaled by their largest magnitude first, so the tolerance bounds
// NPV relative to that magnitude and the result does not depend on units.
func (s *IRRSolver) Solve(flows []float64) models.MetricResult {
	if len(flows) < 2 {
		return irrSpec.Insufficient(models.FieldCashFlow).
			WithMessage("at least two cash flows are required")
	}
	for _, cf := range flows {
		if !isFinite(cf) {
			return irrSpec.Invalid("cash flows must be finite")
		}
	}
	if !hasSignChange(flows) {
		return irrSpec.Failure(models.StatusComputationError, "no real root: cash flows never change sign")
	}

	original := flows
	flows = scaledFlows(flows)

	lo, hi, exact, found := bracketIRR(flows)
	if !found {
		return irrSpec.Failure(models.StatusComputationError,
			fmt.Sprintf("no real root: no sign change of npv between %.2f and %.2f", irrGridMin, irrGridMax))
	}
	if exact {
		return s.converged(lo, original, 0)
	}

	flo := npvAt(lo, flows)
	x := (lo + hi) / 2
	for i := 1; i <= s.maxIterations; i++ {
		fx := npvAt(x, flows)
		if math.Abs(fx) < s.tolerance {
			return s.converged(x, original, i)
		}

		if (fx < 0) == (flo < 0) {
			lo, flo = x, fx
		} else {
			hi = x
		}

		next := math.NaN()
		if d := npvDerivative(x, flows); d != 0 && isFinite(d) {
			next = x - fx/d
		}
		if !isFinite(next) || next <= lo || next >= hi {
			next = (lo + hi) / 2
		}
		x = next
	}

	return irrSpec.Failure(models.StatusComputationError,
		fmt.Sprintf("did not converge within %d iterations", s.maxIterations))
}

func (s *IRRSolver) converged(rate float64, flows []float64, iterations int) models.MetricResult {
	return irrSpec.Value(rate).WithAux(map[string]float64{
		"iterations":   float64(iterations),
		"npv_residual": npvAt(rate, flows),
	})
}

// scaledFlows divides every flow by the largest magnitude.
func scaledFlows(flows []float64) []float64 {
	peak := maxAbs(flows)
	out := make([]float64, len(flows))
	for i, cf := range flows {
		out[i] = cf / peak
	}
	return out
}

func maxAbs(values []float64) float64 {
	peak := 0.0
	for _, v := range values {
		peak = math.Max(peak, math.Abs(v))
	}
	return peak
}

// bracketIRR scans upward from 0 to irrGridMax, then downward to irrGridMin,
// for adjacent rates where NPV changes sign.
func bracketIRR(flows []float64) (lo, hi float64, exact, found bool) {
	prevRate := 0.0
	prev := npvAt(prevRate, flows)
	if prev == 0 {
		return 0, 0, true, true
	}
	for r := irrGridStepUp; r <= irrGridMax+1e-9; r += irrGridStepUp {
		cur := npvAt(r, flows)
		if cur == 0 {
			return r, r, true, true
		}
		if (cur < 0) != (prev < 0) {
			return prevRate, r, false, true
		}
		prevRate, prev = r, cur
	}

	prevRate = 0.0
	prev = npvAt(prevRate, flows)
	for r := -irrGridStepDown; r >= irrGridMin-1e-9; r -= irrGridStepDown {
		cur := npvAt(r, flows)
		if cur == 0 {
			return r, r, true, true
		}
		if (cur < 0) != (prev < 0) {
			return r, prevRate, false, true
		}
		prevRate, prev = r, cur
	}
	return 0, 0, false, false
}

func hasSignChange(flows []float64) bool {
	pos, neg := false, false
	for _, cf := range flows {
		if cf > 0 {
			pos = true
		} else if cf < 0 {
			neg = true
		}
	}
	return pos && neg
}

// WACC weighs the cost of equity and the after-tax cost of debt by their
// shares of total capital.
func WACC(equity, debt, costOfEquity, costOfDebt, taxRate float64) models.MetricResult {
	switch {
	case equity <= 0:
		return waccSpec.Invalid("equity must be positive, got %g", equity)
	case debt <= 0:
		return waccSpec.Invalid("debt must be positive, got %g", debt)
	case costOfEquity < 0:
		return waccSpec.Invalid("cost of equity must not be negative, got %g", costOfEquity)
	case costOfDebt < 0:
		return waccSpec.Invalid("cost of debt must not be negative, got %g", costOfDebt)
	case taxRate < 0 || taxRate > 1:
		return waccSpec.Invalid("tax rate must be within [0, 1], got %g", taxRate)
	}

	total := equity + debt
	we := equity / total
	wd := debt / total
	afterTax := costOfDebt * (1 - taxRate)

	return waccSpec.Value(we*costOfEquity + wd*afterTax).WithAux(map[string]float64{
		"equity_weight":          we,
		"debt_weight":            wd,
		"after_tax_cost_of_debt": afterTax,
		"total_capital":          total,
		"cost_of_equity":         costOfEquity,
		"cost_of_debt":           costOfDebt,
		"tax_rate":               taxRate,
	})
}

// EBITDA uses the exact formula when operating expenses and both non-cash
// charges are known, else falls back to revenue minus cost.
func EBITDA(rec models.CanonicalRecord) models.MetricResult {
	revenue, ok := rec.Value(models.FieldRevenue)
	if !ok {
		return ebitdaSpec.Insufficient(models.FieldRevenue)
	}

	var result models.MetricResult
	if rec.HasAll(models.FieldOperatingExpenses, models.FieldDepreciation, models.FieldAmortization) {
		opex, _ := rec.Value(models.FieldOperatingExpenses)
		dep, _ := rec.Value(models.FieldDepreciation)
		amort, _ := rec.Value(models.FieldAmortization)
		result = ebitdaSpec.Value(revenue - opex + dep + amort)
	} else if cost, ok := rec.Value(models.FieldCost); ok {
		result = ebitdaSpec.Value(revenue - cost).Approximate(
			"revenue - cost (approximation)",
			"operating expenses, depreciation or amortization not available; using revenue - cost",
		)
	} else {
		return ebitdaSpec.Insufficient(rec.Missing(models.FieldOperatingExpenses, models.FieldDepreciation, models.FieldAmortization)...)
	}

	if revenue != 0 {
		result = result.WithAux(map[string]float64{"ebitda_margin": result.Float() / revenue})
	}
	return result
}

// PaybackPeriod counts periods until cumulative flows turn non-negative,
// interpolating within the recovering period.
func PaybackPeriod(flows []float64) models.MetricResult {
	if len(flows) < 2 {
		return paybackSpec.Insufficient(models.FieldCashFlow)
	}
	if flows[0] >= 0 {
		return paybackSpec.Invalid("first cash flow must be an outlay (negative), got %g", flows[0])
	}

	cumulative := flows[0]
	for t := 1; t < len(flows); t++ {
		before := cumulative
		cumulative += flows[t]
		if cumulative >= 0 {
			fraction := 0.0
			if flows[t] != 0 {
				fraction = -before / flows[t]
			}
			return paybackSpec.Value(float64(t-1) + fraction)
		}
	}
	return paybackSpec.Failure(models.StatusInsufficientData,
		fmt.Sprintf("investment not recovered within %d periods", len(flows)-1))
}

// ProfitabilityIndex divides the present value of future flows by the outlay.
func ProfitabilityIndex(rate float64, flows []float64) models.MetricResult {
	if len(flows) < 2 {
		return profitabilityIndexSpec.Insufficient(models.FieldCashFlow)
	}
	if !isFinite(rate) || rate <= -1 {
		return profitabilityIndexSpec.Invalid("discount rate must be greater than -1, got %g", rate)
	}
	if flows[0] >= 0 {
		return profitabilityIndexSpec.Invalid("first cash flow must be an outlay (negative), got %g", flows[0])
	}
	pv := npvAt(rate, flows) - flows[0]
	pi := pv / -flows[0]
	decision := "reject"
	if pi > 1 {
		decision = "accept"
	}
	return profitabilityIndexSpec.Value(pi).
		WithAux(map[string]float64{"present_value_of_future_flows": pv}).
		WithMessage(decision)
}
