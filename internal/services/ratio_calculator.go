package services

import (
	"math"

	"github.com/irfndi/finmetrics-go/internal/models"
)

const daysPerYear = 365.0

func newSpec(name, category string, unit models.Unit, formula string) models.MetricSpec {
	return models.MetricSpec{Name: name, Category: category, Unit: unit, Formula: formula}
}

var (
	grossMarginSpec      = newSpec("gross_margin", models.CategoryProfitability, models.UnitPercentage, "(revenue - cogs) / revenue")
	netMarginSpec        = newSpec("net_margin", models.CategoryProfitability, models.UnitPercentage, "net_income / revenue")
	profitLossSpec       = newSpec("profit_loss_ratio", models.CategoryProfitability, models.UnitPercentage, "(revenue - cost) / revenue")
	operatingMarginSpec  = newSpec("operating_margin", models.CategoryProfitability, models.UnitPercentage, "operating_income / revenue")
	cashFlowMarginSpec   = newSpec("cash_flow_margin", models.CategoryProfitability, models.UnitPercentage, "operating_cash_flow / revenue")
	returnOnAssetsSpec   = newSpec("return_on_assets", models.CategoryProfitability, models.UnitPercentage, "net_income / assets")
	returnOnEquitySpec   = newSpec("return_on_equity", models.CategoryProfitability, models.UnitPercentage, "net_income / equity")
	currentRatioSpec     = newSpec("current_ratio", models.CategoryLiquidity, models.UnitRatio, "current_assets / current_liabilities")
	quickRatioSpec       = newSpec("quick_ratio", models.CategoryLiquidity, models.UnitRatio, "(current_assets - inventory) / current_liabilities")
	cashRatioSpec        = newSpec("cash_ratio", models.CategoryLiquidity, models.UnitRatio, "cash / current_liabilities")
	workingCapitalSpec   = newSpec("working_capital", models.CategoryLiquidity, models.UnitCurrency, "current_assets - current_liabilities")
	ocfRatioSpec         = newSpec("operating_cash_flow_ratio", models.CategoryLiquidity, models.UnitRatio, "operating_cash_flow / current_liabilities")
	debtRatioSpec        = newSpec("debt_ratio", models.CategoryLeverage, models.UnitRatio, "liabilities / assets")
	equityMultiplierSpec = newSpec("equity_multiplier", models.CategoryLeverage, models.UnitRatio, "assets / equity")
	interestCoverageSpec = newSpec("interest_coverage", models.CategoryLeverage, models.UnitRatio, "operating_income / interest_expense")
	assetTurnoverSpec    = newSpec("asset_turnover", models.CategoryEfficiency, models.UnitRatio, "revenue / assets")
	receivablesTurnSpec  = newSpec("receivables_turnover", models.CategoryEfficiency, models.UnitRatio, "revenue / receivables")
	dsoSpec              = newSpec("days_sales_outstanding", models.CategoryEfficiency, models.UnitCount, "365 / (revenue / receivables)")
	inventoryTurnSpec    = newSpec("inventory_turnover", models.CategoryEfficiency, models.UnitRatio, "cogs / inventory")
	salesGrowthSpec      = newSpec("sales_growth", models.CategoryReturns, models.UnitPercentage, "(revenue_t - revenue_t-1) / revenue_t-1")
	cagrSpec             = newSpec("revenue_cagr", models.CategoryReturns, models.UnitPercentage, "(revenue_n / revenue_1)^(1/(n-1)) - 1")
)

// ratioOf divides two fields of a record, guarding absence and a zero
// denominator.
func ratioOf(s models.MetricSpec, rec models.CanonicalRecord, num, den models.CanonicalField) models.MetricResult {
	if missing := rec.Missing(num, den); len(missing) > 0 {
		return s.Insufficient(missing...)
	}
	n, _ := rec.Value(num)
	d, _ := rec.Value(den)
	return divide(s, n, d, string(den))
}

func divide(s models.MetricSpec, num, den float64, denName string) models.MetricResult {
	if den == 0 {
		return s.Invalid("%s is zero", denName)
	}
	v := num / den
	if !isFinite(v) {
		return s.Failure(models.StatusComputationError, "result is not finite")
	}
	return s.Value(v)
}

// ProfitabilityRatios evaluates margin and return ratios on a summary record.
func ProfitabilityRatios(rec models.CanonicalRecord) []models.MetricResult {
	return []models.MetricResult{
		GrossMargin(rec),
		NetMargin(rec),
		ProfitLossRatio(rec),
		ratioOf(operatingMarginSpec, rec, models.FieldOperatingIncome, models.FieldRevenue),
		CashFlowMargin(rec),
		ratioOf(returnOnAssetsSpec, rec, models.FieldNetIncome, models.FieldAssets),
		ratioOf(returnOnEquitySpec, rec, models.FieldNetIncome, models.FieldEquity),
	}
}

// GrossMargin prefers COGS and falls back to total cost.
func GrossMargin(rec models.CanonicalRecord) models.MetricResult {
	revenue, ok := rec.Value(models.FieldRevenue)
	if !ok {
		return grossMarginSpec.Insufficient(models.FieldRevenue)
	}
	if cogs, ok := rec.Value(models.FieldCOGS); ok {
		return divide(grossMarginSpec, revenue-cogs, revenue, string(models.FieldRevenue))
	}
	if cost, ok := rec.Value(models.FieldCost); ok {
		r := divide(grossMarginSpec, revenue-cost, revenue, string(models.FieldRevenue))
		if r.OK() {
			r = r.Approximate("(revenue - cost) / revenue (approximation)", "cogs not available; using total cost")
		}
		return r
	}
	return grossMarginSpec.Insufficient(models.FieldCOGS)
}

// NetMargin prefers reported net income and falls back to revenue - cost.
func NetMargin(rec models.CanonicalRecord) models.MetricResult {
	revenue, ok := rec.Value(models.FieldRevenue)
	if !ok {
		return netMarginSpec.Insufficient(models.FieldRevenue)
	}
	if income, ok := rec.Value(models.FieldNetIncome); ok {
		return divide(netMarginSpec, income, revenue, string(models.FieldRevenue))
	}
	if cost, ok := rec.Value(models.FieldCost); ok {
		r := divide(netMarginSpec, revenue-cost, revenue, string(models.FieldRevenue))
		if r.OK() {
			r = r.Approximate("(revenue - cost) / revenue (approximation)", "net income not available; using revenue - cost")
		}
		return r
	}
	return netMarginSpec.Insufficient(models.FieldNetIncome)
}

// ProfitLossRatio is profit as a share of revenue.
func ProfitLossRatio(rec models.CanonicalRecord) models.MetricResult {
	if missing := rec.Missing(models.FieldRevenue, models.FieldCost); len(missing) > 0 {
		return profitLossSpec.Insufficient(missing...)
	}
	revenue, _ := rec.Value(models.FieldRevenue)
	cost, _ := rec.Value(models.FieldCost)
	r := divide(profitLossSpec, revenue-cost, revenue, string(models.FieldRevenue))
	if r.OK() {
		r = r.WithAux(map[string]float64{"profit": revenue - cost})
	}
	return r
}

// CashFlowMargin prefers operating cash flow over net cash flow.
func CashFlowMargin(rec models.CanonicalRecord) models.MetricResult {
	if rec.Has(models.FieldOperatingCashFlow) {
		return ratioOf(cashFlowMarginSpec, rec, models.FieldOperatingCashFlow, models.FieldRevenue)
	}
	if rec.Has(models.FieldCashFlow) {
		r := ratioOf(cashFlowMarginSpec, rec, models.FieldCashFlow, models.FieldRevenue)
		if r.OK() {
			r = r.Approximate("cash_flow / revenue (approximation)", "operating cash flow not available; using net cash flow")
		}
		return r
	}
	return cashFlowMarginSpec.Insufficient(models.FieldOperatingCashFlow)
}

// LiquidityRatios evaluates short-term solvency on a summary record.
func LiquidityRatios(rec models.CanonicalRecord) []models.MetricResult {
	return []models.MetricResult{
		ratioOf(currentRatioSpec, rec, models.FieldCurrentAssets, models.FieldCurrentLiabilities),
		QuickRatio(rec),
		ratioOf(cashRatioSpec, rec, models.FieldCash, models.FieldCurrentLiabilities),
		WorkingCapital(rec),
		ratioOf(ocfRatioSpec, rec, models.FieldOperatingCashFlow, models.FieldCurrentLiabilities),
	}
}

// QuickRatio excludes inventory from current assets.
func QuickRatio(rec models.CanonicalRecord) models.MetricResult {
	fields := []models.CanonicalField{models.FieldCurrentAssets, models.FieldInventory, models.FieldCurrentLiabilities}
	if missing := rec.Missing(fields...); len(missing) > 0 {
		return quickRatioSpec.Insufficient(missing...)
	}
	ca, _ := rec.Value(models.FieldCurrentAssets)
	inv, _ := rec.Value(models.FieldInventory)
	cl, _ := rec.Value(models.FieldCurrentLiabilities)
	return divide(quickRatioSpec, ca-inv, cl, string(models.FieldCurrentLiabilities))
}

// WorkingCapital is current assets minus current liabilities, in currency.
func WorkingCapital(rec models.CanonicalRecord) models.MetricResult {
	if missing := rec.Missing(models.FieldCurrentAssets, models.FieldCurrentLiabilities); len(missing) > 0 {
		return workingCapitalSpec.Insufficient(missing...)
	}
	ca, _ := rec.Value(models.FieldCurrentAssets)
	cl, _ := rec.Value(models.FieldCurrentLiabilities)
	return workingCapitalSpec.Value(ca - cl)
}

// LeverageRatios evaluates capital structure on a summary record.
func LeverageRatios(rec models.CanonicalRecord) []models.MetricResult {
	return []models.MetricResult{
		DebtRatio(rec),
		ratioOf(equityMultiplierSpec, rec, models.FieldAssets, models.FieldEquity),
		ratioOf(interestCoverageSpec, rec, models.FieldOperatingIncome, models.FieldInterestExpense),
		DebtToEquityFromRecord(rec),
	}
}

// debtOf returns Debt, else Liabilities.
func debtOf(rec models.CanonicalRecord) (float64, models.CanonicalField, bool) {
	if v, ok := rec.Value(models.FieldDebt); ok {
		return v, models.FieldDebt, true
	}
	if v, ok := rec.Value(models.FieldLiabilities); ok {
		return v, models.FieldLiabilities, true
	}
	return 0, models.FieldDebt, false
}

// DebtRatio divides total liabilities, or debt when liabilities are unknown,
// by total assets.
func DebtRatio(rec models.CanonicalRecord) models.MetricResult {
	if rec.Has(models.FieldLiabilities) {
		return ratioOf(debtRatioSpec, rec, models.FieldLiabilities, models.FieldAssets)
	}
	return ratioOf(debtRatioSpec, rec, models.FieldDebt, models.FieldAssets)
}

// DebtToEquityFromRecord reads debt (or liabilities) and equity from a record.
func DebtToEquityFromRecord(rec models.CanonicalRecord) models.MetricResult {
	debt, source, ok := debtOf(rec)
	var missing []models.CanonicalField
	if !ok {
		missing = append(missing, models.FieldDebt)
	}
	if !rec.Has(models.FieldEquity) {
		missing = append(missing, models.FieldEquity)
	}
	if len(missing) > 0 {
		return debtToEquitySpec.Insufficient(missing...)
	}
	equity, _ := rec.Value(models.FieldEquity)
	r := DebtToEquity(debt, equity)
	if r.OK() && source == models.FieldLiabilities {
		r = r.WithMessage("debt not available; using total liabilities")
	}
	return r
}

// EfficiencyRatios evaluates asset utilisation on a summary record.
func EfficiencyRatios(rec models.CanonicalRecord) []models.MetricResult {
	return []models.MetricResult{
		ratioOf(assetTurnoverSpec, rec, models.FieldRevenue, models.FieldAssets),
		ratioOf(receivablesTurnSpec, rec, models.FieldRevenue, models.FieldReceivables),
		DaysSalesOutstanding(rec),
		InventoryTurnover(rec),
	}
}

// DaysSalesOutstanding is 365 over the receivables turnover.
func DaysSalesOutstanding(rec models.CanonicalRecord) models.MetricResult {
	turnover := ratioOf(receivablesTurnSpec, rec, models.FieldRevenue, models.FieldReceivables)
	if !turnover.OK() {
		return dsoSpec.Failure(turnover.Status, turnover.Message)
	}
	return divide(dsoSpec, daysPerYear, turnover.Float(), "receivables_turnover")
}

// InventoryTurnover prefers COGS and falls back to total cost.
func InventoryTurnover(rec models.CanonicalRecord) models.MetricResult {
	if rec.Has(models.FieldCOGS) || !rec.Has(models.FieldCost) {
		return ratioOf(inventoryTurnSpec, rec, models.FieldCOGS, models.FieldInventory)
	}
	r := ratioOf(inventoryTurnSpec, rec, models.FieldCost, models.FieldInventory)
	if r.OK() {
		r = r.Approximate("cost / inventory (approximation)", "cogs not available; using total cost")
	}
	return r
}

// SalesGrowth compares the last two revenue periods.
func SalesGrowth(revenue []float64) models.MetricResult {
	if len(revenue) < 2 {
		return salesGrowthSpec.Insufficient(models.FieldRevenue).
			WithMessage("at least two revenue periods are required")
	}
	prev, last := revenue[len(revenue)-2], revenue[len(revenue)-1]
	return divide(salesGrowthSpec, last-prev, prev, "previous revenue")
}

// RevenueCAGR is the compound growth rate from the first to the last period.
func RevenueCAGR(revenue []float64) models.MetricResult {
	n := len(revenue)
	if n < 2 {
		return cagrSpec.Insufficient(models.FieldRevenue).
			WithMessage("at least two revenue periods are required")
	}
	first, last := revenue[0], revenue[n-1]
	if first <= 0 || last <= 0 {
		return cagrSpec.Invalid("first and last revenue must be positive")
	}
	v := math.Pow(last/first, 1/float64(n-1)) - 1
	return cagrSpec.Value(v).WithAux(map[string]float64{"periods": float64(n)})
}
