package services

import (
	"fmt"
	"strings"

	"github.com/irfndi/finmetrics-go/internal/config"
	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/sirupsen/logrus"
)

// ResolvedAssumptions are the rates in effect for one report after merging
// request values over configuration defaults.
type ResolvedAssumptions struct {
	DiscountRate float64
	CostOfEquity float64
	CostOfDebt   float64
	TaxRate      float64
	RiskFreeRate float64
	Horizon      int
}

// ResolveAssumptions overlays the request assumptions on the configured ones.
func ResolveAssumptions(defaults config.AssumptionsConfig, horizon int, req models.Assumptions) ResolvedAssumptions {
	pick := func(v *float64, fallback float64) float64 {
		if v != nil && isFinite(*v) {
			return *v
		}
		return fallback
	}
	out := ResolvedAssumptions{
		DiscountRate: pick(req.DiscountRate, defaults.DiscountRate),
		CostOfEquity: pick(req.CostOfEquity, defaults.CostOfEquity),
		CostOfDebt:   pick(req.CostOfDebt, defaults.CostOfDebt),
		TaxRate:      pick(req.TaxRate, defaults.TaxRate),
		RiskFreeRate: pick(req.RiskFreeRate, defaults.RiskFreeRate),
		Horizon:      horizon,
	}
	if req.Horizon > 0 {
		out.Horizon = req.Horizon
	}
	return out
}

// CashFlowSeries is the ordered flow sequence used by the discounting metrics.
type CashFlowSeries struct {
	Flows   []float64
	Derived bool
}

// CashFlows returns the CashFlow series when the dataset has one. Otherwise
// per-period revenue - cost is used, preceded by the investment outlay when it
// is known.
func CashFlows(records []models.CanonicalRecord, summary models.CanonicalRecord) CashFlowSeries {
	if flows, _, _ := models.Series(records, models.FieldCashFlow); len(flows) > 0 {
		return CashFlowSeries{Flows: flows}
	}

	var flows []float64
	if inv, ok := summary.Value(models.FieldInvestment); ok && inv > 0 {
		flows = append(flows, -inv)
	}
	periods := 0
	for _, rec := range records {
		if rec.HasAll(models.FieldRevenue, models.FieldCost) {
			rev, _ := rec.Value(models.FieldRevenue)
			cost, _ := rec.Value(models.FieldCost)
			flows = append(flows, rev-cost)
			periods++
		}
	}
	if periods == 0 {
		return CashFlowSeries{}
	}
	return CashFlowSeries{Flows: flows, Derived: true}
}

// MetricSuite runs every ratio family and the capital-budgeting metrics over a
// dataset.
type MetricSuite struct {
	irr      *IRRSolver
	defaults config.AssumptionsConfig
	horizon  int
	logger   *logrus.Logger
}

// NewMetricSuite creates a metric suite from engine and assumption settings.
func NewMetricSuite(engine config.EngineConfig, defaults config.AssumptionsConfig, logger *logrus.Logger) *MetricSuite {
	if logger == nil {
		logger = logrus.New()
	}
	return &MetricSuite{
		irr:      NewIRRSolver(engine.IRRTolerance, engine.IRRMaxIterations),
		defaults: defaults,
		horizon:  engine.ForecastHorizon,
		logger:   logger,
	}
}

// Resolve merges request assumptions with the suite defaults.
func (s *MetricSuite) Resolve(req models.Assumptions) ResolvedAssumptions {
	return ResolveAssumptions(s.defaults, s.horizon, req)
}

// Evaluate returns all metric results in a fixed order. It never fails; each
// result carries its own status.
func (s *MetricSuite) Evaluate(records []models.CanonicalRecord, req models.Assumptions) []models.MetricResult {
	assumptions := s.Resolve(req)
	summary := Summarize(records)
	revenue, _, _ := models.Series(records, models.FieldRevenue)
	flows := CashFlows(records, summary)
	rate, rateSource := rateOf(summary, models.FieldDiscountRate, assumptions.DiscountRate)

	results := make([]models.MetricResult, 0, 32)
	results = append(results, ProfitabilityRatios(summary)...)
	results = append(results, LiquidityRatios(summary)...)
	results = append(results, LeverageRatios(summary)...)
	results = append(results, EfficiencyRatios(summary)...)

	results = append(results,
		s.roi(summary),
		s.npv(rate, rateSource, flows),
		s.irrResult(rate, flows),
		markDerived(PaybackPeriod(flows.Flows), flows),
		markDerived(ProfitabilityIndex(rate, flows.Flows), flows),
		SalesGrowth(revenue),
		RevenueCAGR(revenue),
		s.wacc(summary, assumptions),
		EBITDA(summary),
	)

	ok := 0
	for _, r := range results {
		if r.OK() {
			ok++
		}
	}
	s.logger.WithFields(logrus.Fields{
		"records":       len(records),
		"metrics":       len(results),
		"ok":            ok,
		"derived_flows": flows.Derived,
	}).Debug("Evaluated metric suite")

	return results
}

// rateOf prefers a rate carried by the dataset over the assumption.
func rateOf(summary models.CanonicalRecord, field models.CanonicalField, assumed float64) (float64, string) {
	if v, ok := summary.Value(field); ok {
		return v, "dataset"
	}
	return assumed, "assumed"
}

func markDerived(r models.MetricResult, flows CashFlowSeries) models.MetricResult {
	if !flows.Derived || !r.OK() {
		return r
	}
	msg := "cash flows derived from revenue - cost"
	if r.Message != "" {
		msg = r.Message + "; " + msg
	}
	return r.Approximate("", msg)
}

func (s *MetricSuite) roi(summary models.CanonicalRecord) models.MetricResult {
	initial, ok := summary.Value(models.FieldInvestment)
	if !ok {
		return roiSpec.Insufficient(models.FieldInvestment)
	}
	if final, ok := summary.Value(models.FieldFinalValue); ok {
		return ROI(initial, final)
	}
	if missing := summary.Missing(models.FieldRevenue, models.FieldCost); len(missing) > 0 {
		return roiSpec.Insufficient(append([]models.CanonicalField{models.FieldFinalValue}, missing...)...)
	}
	revenue, _ := summary.Value(models.FieldRevenue)
	cost, _ := summary.Value(models.FieldCost)
	r := ROI(initial, initial+(revenue-cost))
	if r.OK() {
		r = r.Approximate("(revenue - cost) / investment (approximation)", "final value not available; using investment + revenue - cost")
	}
	return r
}

func (s *MetricSuite) npv(rate float64, source string, flows CashFlowSeries) models.MetricResult {
	r := NPV(rate, flows.Flows)
	if r.OK() && source == "assumed" {
		r = r.WithMessage(r.Message + " (assumed discount rate)")
	}
	return markDerived(r, flows)
}

func (s *MetricSuite) irrResult(hurdle float64, flows CashFlowSeries) models.MetricResult {
	return markDerived(s.IRRAgainst(hurdle, flows.Flows), flows)
}

// IRRAgainst solves the IRR and compares it with a hurdle rate.
func (s *MetricSuite) IRRAgainst(hurdle float64, flows []float64) models.MetricResult {
	r := s.irr.Solve(flows)
	if r.OK() {
		verdict := "reconsider"
		if r.Float() > hurdle {
			verdict = "invest"
		}
		r = r.WithMessage(fmt.Sprintf("%s: irr %.2f%% against a %.2f%% hurdle rate", verdict, r.Float()*100, hurdle*100))
	}
	return r
}

func (s *MetricSuite) wacc(summary models.CanonicalRecord, a ResolvedAssumptions) models.MetricResult {
	debt, _, hasDebt := debtOf(summary)
	var missing []models.CanonicalField
	if !summary.Has(models.FieldEquity) {
		missing = append(missing, models.FieldEquity)
	}
	if !hasDebt {
		missing = append(missing, models.FieldDebt)
	}
	if len(missing) > 0 {
		return waccSpec.Insufficient(missing...)
	}
	equity, _ := summary.Value(models.FieldEquity)

	var assumed []string
	re, src := rateOf(summary, models.FieldCostOfEquity, a.CostOfEquity)
	if src == "assumed" {
		assumed = append(assumed, fmt.Sprintf("cost of equity %.2f%%", re*100))
	}
	rd, src := rateOf(summary, models.FieldCostOfDebt, a.CostOfDebt)
	if src == "assumed" {
		assumed = append(assumed, fmt.Sprintf("cost of debt %.2f%%", rd*100))
	}
	tc, src := rateOf(summary, models.FieldTaxRate, a.TaxRate)
	if src == "assumed" {
		assumed = append(assumed, fmt.Sprintf("tax rate %.2f%%", tc*100))
	}

	r := WACC(equity, debt, re, rd, tc)
	if r.OK() && len(assumed) > 0 {
		r = r.WithMessage("assumed " + strings.Join(assumed, ", "))
	}
	return r
}
