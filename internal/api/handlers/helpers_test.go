package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/finmetrics-go/internal/config"
	"github.com/irfndi/finmetrics-go/internal/ingest"
	"github.com/irfndi/finmetrics-go/internal/logging"
	"github.com/irfndi/finmetrics-go/internal/services"
	"github.com/stretchr/testify/require"
)

func testReportService() *services.ReportService {
	engine := config.EngineConfig{
		FuzzyThreshold:       0.75,
		VolatilityThreshold:  0.01,
		SeasonalityThreshold: 0.1,
		SeasonalPeriod:       12,
		ForecastHorizon:      6,
		MovingAverageWindow:  3,
		IRRTolerance:         1e-6,
		IRRMaxIterations:     1000,
		Parallel:             true,
	}
	assumptions := config.AssumptionsConfig{
		DiscountRate: 0.10,
		CostOfEquity: 0.12,
		CostOfDebt:   0.06,
		TaxRate:      0.30,
		RiskFreeRate: 0.05,
	}
	return services.NewReportService(engine, assumptions, nil, nil, logging.NewDiscardLogrusLogger())
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := testReportService()
	logger := logging.NewDiscardLogrusLogger()

	reports := NewReportHandler(svc, ingest.NewReader(logger), 1, logger)
	calc := NewCalculatorHandler(svc.Suite(), svc.Forecaster())

	router := gin.New()
	router.POST("/reports", reports.GenerateReport)
	router.POST("/reports/upload", reports.UploadReport)
	router.POST("/schema/map", reports.MapSchema)
	router.POST("/forecast", calc.Forecast)
	router.POST("/calculators/roi", calc.ROI)
	router.POST("/calculators/npv", calc.NPV)
	router.POST("/calculators/irr", calc.IRR)
	router.POST("/calculators/wacc", calc.WACC)
	router.POST("/calculators/break-even", calc.BreakEven)
	return router
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
