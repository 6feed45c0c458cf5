package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/finmetrics-go/internal/config"
	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/irfndi/finmetrics-go/internal/telemetry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Report stages, used as span and metric labels.
const (
	StageSchemaMapping = "schema_mapping"
	StageRecordBuild   = "record_build"
	StageMetricSuite   = "metric_suite"
	StageForecasting   = "forecasting"
	StageIndustryKPIs  = "industry_kpis"
)

// MappingCache remembers schema resolutions by header set.
type MappingCache interface {
	Get(ctx context.Context, headers []string) (models.FieldMapping, models.IndustryTag, bool)
	Set(ctx context.Context, headers []string, mapping models.FieldMapping, industry models.IndustryTag) error
}

// ReportRecorder receives operational metrics of report generation.
type ReportRecorder interface {
	RecordReport(industry string, summary models.StatusSummary, duration time.Duration)
	RecordStage(stage string, duration time.Duration)
	RecordIngestionFailure(source string)
	RecordCacheMetrics(operation, key string, hit bool, duration time.Duration)
}

// ReportService runs the full analysis pipeline for one dataset.
type ReportService struct {
	mapper     *SchemaMapper
	builder    *RecordBuilder
	suite      *MetricSuite
	forecaster *Forecaster
	kpis       *KPIEngine
	cache      MappingCache
	recorder   ReportRecorder
	tracer     *telemetry.ReportTracer
	parallel   bool
	logger     *logrus.Logger
}

// NewReportService wires the calculators from configuration. cache and
// recorder are optional.
func NewReportService(engine config.EngineConfig, assumptions config.AssumptionsConfig, cache MappingCache, recorder ReportRecorder, logger *logrus.Logger) *ReportService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ReportService{
		mapper:     NewSchemaMapper(DefaultSynonymTable(), engine.FuzzyThreshold, logger),
		builder:    NewRecordBuilder(logger),
		suite:      NewMetricSuite(engine, assumptions, logger),
		forecaster: NewForecaster(engine, logger),
		kpis:       NewKPIEngine(assumptions.RiskFreeRate, logger),
		cache:      cache,
		recorder:   recorder,
		tracer:     telemetry.NewReportTracer(),
		parallel:   engine.Parallel,
		logger:     logger,
	}
}

// Forecaster exposes the forecasting engine for direct projections.
func (s *ReportService) Forecaster() *Forecaster {
	return s.forecaster
}

// Suite exposes the metric suite for direct calculator access.
func (s *ReportService) Suite() *MetricSuite {
	return s.suite
}

// MapSchema resolves headers to canonical fields and classifies the
// industry, consulting the mapping cache first.
func (s *ReportService) MapSchema(ctx context.Context, headers []string) (models.FieldMapping, models.IndustryTag, bool) {
	ctx, span := s.tracer.TraceStage(ctx, StageSchemaMapping)
	defer span.End()
	start := time.Now()

	if s.cache != nil {
		mapping, industry, ok := s.cache.Get(ctx, headers)
		if s.recorder != nil {
			s.recorder.RecordCacheMetrics("get", "field_mapping", ok, time.Since(start))
		}
		if ok {
			s.tracer.RecordMapping(span, mapping.Len(), len(mapping.Unmapped()), string(industry), true)
			s.observeStage(StageSchemaMapping, start)
			return mapping, industry, true
		}
	}

	mapping := s.mapper.Map(headers)
	industry := s.mapper.ClassifyIndustry(mapping)
	s.tracer.RecordMapping(span, mapping.Len(), len(mapping.Unmapped()), string(industry), false)

	if s.cache != nil {
		if err := s.cache.Set(ctx, headers, mapping, industry); err != nil {
			s.logger.WithError(err).Warn("Failed to cache field mapping")
		}
	}
	s.observeStage(StageSchemaMapping, start)
	return mapping, industry, false
}

// Generate maps, validates and analyses a dataset. Only an unusable dataset
// or a cancelled context returns an error; every calculator failure is
// reported as a status inside the report.
func (s *ReportService) Generate(ctx context.Context, dataset models.RawDataset, assumptions models.Assumptions) (*models.Report, error) {
	start := time.Now()
	headers := dataset.Headers()

	ctx, span := s.tracer.TraceReportGeneration(ctx, len(dataset.Rows), headers)
	defer span.End()

	mapping, industry, cached := s.MapSchema(ctx, headers)

	buildStart := time.Now()
	records, quality, err := s.builder.Build(dataset, mapping)
	if err != nil {
		if s.recorder != nil {
			s.recorder.RecordIngestionFailure("dataset")
		}
		s.tracer.RecordFailure(span, "ingestion_error", err)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"rows":    len(dataset.Rows),
			"columns": len(headers),
		}).Warn("Dataset rejected")
		return nil, err
	}
	s.observeStage(StageRecordBuild, buildStart)
	s.tracer.RecordDataQuality(span, quality.MissingCells, quality.NumericColumns, quality.CompletenessPct)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := Summarize(records)
	resolved := s.suite.Resolve(assumptions)

	var (
		metrics   []models.MetricResult
		forecasts []models.ForecastSeries
		breakEven models.BreakEvenResult
		kpis      models.IndustryKPISet
	)
	s.runStages(ctx, []reportStage{
		{StageMetricSuite, func() {
			metrics = s.suite.Evaluate(records, assumptions)
		}},
		{StageForecasting, func() {
			forecasts = s.forecaster.ProjectRecords(records, resolved.Horizon)
			breakEven = BreakEvenFromRecord(summary)
		}},
		{StageIndustryKPIs, func() {
			kpis = s.kpis.EvaluateWithRiskFree(industry, summary, resolved.RiskFreeRate)
		}},
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := Aggregate(metrics, forecasts, &breakEven, kpis)
	report.ID = uuid.NewString()
	report.GeneratedAt = time.Now().UTC()
	report.Industry = industry
	report.Mapping = mapping.View()
	report.RecordCount = len(records)
	report.DataQuality = quality

	elapsed := time.Since(start)
	if s.recorder != nil {
		s.recorder.RecordReport(string(industry), report.Summary, elapsed)
	}
	s.tracer.RecordReportSummary(span, telemetry.ReportSummary{
		ReportID: report.ID,
		Industry: string(industry),
		Records:  len(records),
		Total:    report.Summary.Total,
		OK:       report.Summary.OK,
		Failed:   report.Summary.Total - report.Summary.OK,
		Duration: elapsed,
	})
	s.logger.WithFields(logrus.Fields{
		"report_id":      report.ID,
		"industry":       industry,
		"records":        len(records),
		"mapping_cached": cached,
		"ok":             report.Summary.OK,
		"total":          report.Summary.Total,
		"duration_ms":    elapsed.Milliseconds(),
	}).Info("Report generated")

	return &report, nil
}

type reportStage struct {
	name string
	run  func()
}

// runStages executes independent stages. Each stage writes only its own
// result, so no locking is needed.
func (s *ReportService) runStages(ctx context.Context, stages []reportStage) {
	if !s.parallel {
		for _, st := range stages {
			s.runStage(ctx, st)
		}
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range stages {
		g.Go(func() error {
			s.runStage(gctx, st)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *ReportService) runStage(ctx context.Context, st reportStage) {
	_, span := s.tracer.TraceStage(ctx, st.name)
	defer span.End()
	start := time.Now()
	st.run()
	s.observeStage(st.name, start)
}

func (s *ReportService) observeStage(stage string, start time.Time) {
	elapsed := time.Since(start)
	if s.recorder != nil {
		s.recorder.RecordStage(stage, elapsed)
	}
	s.logger.WithFields(logrus.Fields{
		"stage":       stage,
		"duration_ms": elapsed.Milliseconds(),
	}).Debug("Report stage finished")
}
