package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/finmetrics-go/internal/ingest"
	"github.com/irfndi/finmetrics-go/internal/middleware"
	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/irfndi/finmetrics-go/internal/services"
	"github.com/irfndi/finmetrics-go/internal/utils"
	"github.com/sirupsen/logrus"
)

// AssumptionsRequest carries optional per-request overrides. It binds from
// JSON bodies and from multipart form fields.
type AssumptionsRequest struct {
	DiscountRate *float64 `json:"discount_rate" form:"discount_rate" binding:"omitempty,gt=-1"`
	CostOfEquity *float64 `json:"cost_of_equity" form:"cost_of_equity" binding:"omitempty,gt=-1"`
	CostOfDebt   *float64 `json:"cost_of_debt" form:"cost_of_debt" binding:"omitempty,gt=-1"`
	TaxRate      *float64 `json:"tax_rate" form:"tax_rate" binding:"omitempty,gte=0,lte=1"`
	RiskFreeRate *float64 `json:"risk_free_rate" form:"risk_free_rate" binding:"omitempty,gt=-1"`
	Horizon      int      `json:"horizon" form:"horizon" binding:"omitempty,gte=1,lte=120"`
}

func (r *AssumptionsRequest) toModel() models.Assumptions {
	if r == nil {
		return models.Assumptions{}
	}
	return models.Assumptions{
		DiscountRate: r.DiscountRate,
		CostOfEquity: r.CostOfEquity,
		CostOfDebt:   r.CostOfDebt,
		TaxRate:      r.TaxRate,
		RiskFreeRate: r.RiskFreeRate,
		Horizon:      r.Horizon,
	}
}

// ReportRequest is the JSON body of POST /api/v1/reports.
type ReportRequest struct {
	Columns     []string            `json:"columns"`
	Rows        []models.RawRow     `json:"rows" binding:"required"`
	Assumptions *AssumptionsRequest `json:"assumptions"`
}

// SchemaMapRequest is the body of POST /api/v1/schema/map.
type SchemaMapRequest struct {
	Columns []string `json:"columns" binding:"required,min=1"`
}

// SchemaMapResponse describes how headers were resolved.
type SchemaMapResponse struct {
	Mapping  models.FieldMappingView `json:"mapping"`
	Industry models.IndustryTag      `json:"industry"`
	Cached   bool                    `json:"cached"`
}

// ReportHandler serves report generation and schema mapping.
type ReportHandler struct {
	service        *services.ReportService
	reader         *ingest.Reader
	maxUploadBytes int64
	logger         *logrus.Logger
}

// NewReportHandler creates a ReportHandler. maxUploadMB bounds upload size.
func NewReportHandler(service *services.ReportService, reader *ingest.Reader, maxUploadMB int64, logger *logrus.Logger) *ReportHandler {
	if logger == nil {
		logger = logrus.New()
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &ReportHandler{
		service:        service,
		reader:         reader,
		maxUploadBytes: maxUploadMB << 20,
		logger:         logger,
	}
}

// GenerateReport analyses a JSON dataset.
func (h *ReportHandler) GenerateReport(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	dataset := models.RawDataset{Columns: req.Columns, Rows: req.Rows}
	h.generate(c, dataset, req.Assumptions.toModel())
}

// UploadReport analyses a CSV or XLSX upload sent as multipart field "file".
func (h *ReportHandler) UploadReport(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "upload exceeds the size limit",
				"kind":  KindValidation,
			})
			return
		}
		respondError(c, utils.NewFieldValidationError("file", "a .csv or .xlsx file is required"))
		return
	}

	var assumptions AssumptionsRequest
	if err := c.ShouldBind(&assumptions); err != nil {
		respondError(c, bindError(err))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, utils.WrapIngestionError("cannot open upload", err))
		return
	}
	defer file.Close()

	middleware.AddSpanAttribute(c, "upload.filename", fileHeader.Filename)
	middleware.AddSpanAttribute(c, "upload.size", fileHeader.Size)

	dataset, err := h.reader.Read(c.Request.Context(), file, fileHeader.Filename)
	if err != nil {
		respondError(c, err)
		return
	}
	h.generate(c, dataset, assumptions.toModel())
}

func (h *ReportHandler) generate(c *gin.Context, dataset models.RawDataset, assumptions models.Assumptions) {
	report, err := h.service.Generate(c.Request.Context(), dataset, assumptions)
	if err != nil {
		h.logger.WithError(err).WithField("request_id", middleware.GetRequestID(c)).Warn("Report generation failed")
		respondError(c, err)
		return
	}
	middleware.AddSpanAttribute(c, "report.id", report.ID)
	c.JSON(http.StatusOK, report)
}

// MapSchema resolves column headers without computing anything.
func (h *ReportHandler) MapSchema(c *gin.Context) {
	var req SchemaMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	mapping, industry, cached := h.service.MapSchema(c.Request.Context(), req.Columns)
	c.JSON(http.StatusOK, SchemaMapResponse{
		Mapping:  mapping.View(),
		Industry: industry,
		Cached:   cached,
	})
}
