package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/irfndi/finmetrics-go/internal/services"
	"github.com/irfndi/finmetrics-go/internal/utils"
)

// ROIRequest is the body of POST /api/v1/calculators/roi.
type ROIRequest struct {
	Initial *float64 `json:"initial" binding:"required"`
	Final   *float64 `json:"final" binding:"required"`
}

// NPVRequest is the body of POST /api/v1/calculators/npv. A missing rate
// uses the configured discount rate.
type NPVRequest struct {
	Rate      *float64  `json:"rate" binding:"omitempty,gt=-1"`
	CashFlows []float64 `json:"cash_flows" binding:"required,min=1"`
}

// IRRRequest is the body of POST /api/v1/calculators/irr.
type IRRRequest struct {
	CashFlows  []float64 `json:"cash_flows" binding:"required,min=2"`
	HurdleRate *float64  `json:"hurdle_rate"`
}

// WACCRequest is the body of POST /api/v1/calculators/wacc. Missing rates use
// the configured assumptions.
type WACCRequest struct {
	Equity       *float64 `json:"equity" binding:"required"`
	Debt         *float64 `json:"debt" binding:"required"`
	CostOfEquity *float64 `json:"cost_of_equity"`
	CostOfDebt   *float64 `json:"cost_of_debt"`
	TaxRate      *float64 `json:"tax_rate" binding:"omitempty,gte=0,lte=1"`
}

// BreakEvenRequest is the body of POST /api/v1/calculators/break-even.
type BreakEvenRequest struct {
	FixedCosts          *float64 `json:"fixed_costs" binding:"required"`
	UnitPrice           *float64 `json:"unit_price" binding:"required"`
	VariableCostPerUnit *float64 `json:"variable_cost_per_unit" binding:"required"`
}

// ForecastRequest is the body of POST /api/v1/forecast.
type ForecastRequest struct {
	Series  string    `json:"series"`
	Values  []float64 `json:"values" binding:"required,min=1"`
	Labels  []string  `json:"labels"`
	Months  []int     `json:"months"`
	Horizon int       `json:"horizon" binding:"omitempty,gte=1,lte=120"`
}

// CalculatorHandler gives direct access to single calculators.
type CalculatorHandler struct {
	suite      *services.MetricSuite
	forecaster *services.Forecaster
}

// NewCalculatorHandler serves the direct calculator and forecast endpoints.
func NewCalculatorHandler(suite *services.MetricSuite, forecaster *services.Forecaster) *CalculatorHandler {
	return &CalculatorHandler{suite: suite, forecaster: forecaster}
}

func (h *CalculatorHandler) defaults() services.ResolvedAssumptions {
	return h.suite.Resolve(models.Assumptions{})
}

// ROI computes (final - initial) / initial.
func (h *CalculatorHandler) ROI(c *gin.Context) {
	var req ROIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	c.JSON(http.StatusOK, services.ROI(*req.Initial, *req.Final))
}

// NPV discounts the flows, first flow at t=0.
func (h *CalculatorHandler) NPV(c *gin.Context) {
	var req NPVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	rate := h.defaults().DiscountRate
	if req.Rate != nil {
		rate = *req.Rate
	}
	c.JSON(http.StatusOK, services.NPV(rate, req.CashFlows))
}

// IRR solves the internal rate of return against a hurdle rate, which
// defaults to the configured discount rate.
func (h *CalculatorHandler) IRR(c *gin.Context) {
	var req IRRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	hurdle := h.defaults().DiscountRate
	if req.HurdleRate != nil {
		hurdle = *req.HurdleRate
	}
	c.JSON(http.StatusOK, h.suite.IRRAgainst(hurdle, req.CashFlows))
}

// WACC computes the weighted average cost of capital.
func (h *CalculatorHandler) WACC(c *gin.Context) {
	var req WACCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	resolved := h.suite.Resolve(models.Assumptions{
		CostOfEquity: req.CostOfEquity,
		CostOfDebt:   req.CostOfDebt,
		TaxRate:      req.TaxRate,
	})
	c.JSON(http.StatusOK, services.WACC(*req.Equity, *req.Debt, resolved.CostOfEquity, resolved.CostOfDebt, resolved.TaxRate))
}

// BreakEven solves units and revenue where profit is zero.
func (h *CalculatorHandler) BreakEven(c *gin.Context) {
	var req BreakEvenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	c.JSON(http.StatusOK, services.BreakEven(*req.FixedCosts, *req.UnitPrice, *req.VariableCostPerUnit))
}

// Forecast projects a single series, with seasonality when months are given.
func (h *CalculatorHandler) Forecast(c *gin.Context) {
	var req ForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	if len(req.Labels) > 0 && len(req.Labels) != len(req.Values) {
		respondError(c, utils.NewFieldValidationError("labels", "must have one label per value"))
		return
	}
	if len(req.Months) > 0 && len(req.Months) != len(req.Values) {
		respondError(c, utils.NewFieldValidationError("months", "must have one month per value"))
		return
	}
	if req.Series == "" {
		req.Series = "series"
	}

	fc := h.forecaster.Project(req.Series, req.Values, req.Labels, req.Horizon)
	if len(req.Months) > 0 {
		season := h.forecaster.DetectSeasonality(req.Values, req.Months)
		fc.Seasonality = &season
		fc.Seasonal = season.Seasonal
	}
	c.JSON(http.StatusOK, fc)
}
