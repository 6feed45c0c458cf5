package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReportTracer traces the stages of report generation.
type ReportTracer struct {
	tracer trace.Tracer
}

// NewReportTracer creates a ReportTracer on the global provider.
func NewReportTracer() *ReportTracer {
	return &ReportTracer{tracer: GetReportTracer()}
}

// TraceReportGeneration starts the root span of one report request.
//
// Parameters:
//   - ctx: The context to attach the span to.
//   - rows: The number of raw rows in the dataset.
//   - columns: The raw headers of the dataset.
//
// Returns:
//   - A context containing the new span.
//   - The created span.
func (rt *ReportTracer) TraceReportGeneration(ctx context.Context, rows int, columns []string) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "report_generation", trace.WithAttributes(
		attribute.Int("dataset.rows", rows),
		attribute.Int("dataset.columns", len(columns)),
		StringSliceAttribute("dataset.headers", columns),
	))
}

// TraceStage starts a child span for one stage such as schema mapping or
// forecasting.
func (rt *ReportTracer) TraceStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "report."+stage, trace.WithAttributes(attribute.String("report.stage", stage)))
}

// RecordMapping adds the schema mapping outcome to a span.
func (rt *ReportTracer) RecordMapping(span trace.Span, mapped, unmapped int, industry string, cached bool) {
	span.SetAttributes(
		attribute.Int("mapping.mapped", mapped),
		attribute.Int("mapping.unmapped", unmapped),
		attribute.String("mapping.industry", industry),
		BoolAttribute("mapping.cached", cached),
	)
}

// RecordDataQuality adds input table completeness to a span.
func (rt *ReportTracer) RecordDataQuality(span trace.Span, missingCells, numericColumns int, completenessPct float64) {
	span.SetAttributes(
		attribute.Int("dataset.missing_cells", missingCells),
		attribute.Int("dataset.numeric_columns", numericColumns),
		Float64Attribute("dataset.completeness_pct", completenessPct),
	)
}

// RecordReportSummary adds the outcome counts of a finished report to a span.
//
// Parameters:
//   - span: The span to update.
//   - summary: The report outcome to record.
func (rt *ReportTracer) RecordReportSummary(span trace.Span, summary ReportSummary) {
	span.SetAttributes(
		attribute.String("report.id", summary.ReportID),
		attribute.String("report.industry", summary.Industry),
		attribute.Int("report.records", summary.Records),
		attribute.Int("report.total", summary.Total),
		attribute.Int("report.ok", summary.OK),
		attribute.Int("report.failed", summary.Failed),
		attribute.Int64("report.duration_ms", summary.Duration.Milliseconds()),
	)
	SetSpanStatus(span, codes.Ok, "")
}

// RecordFailure marks a span failed with the error that aborted the report.
func (rt *ReportTracer) RecordFailure(span trace.Span, kind string, err error) {
	span.SetAttributes(attribute.String("error.kind", kind))
	RecordError(span, err)
}

// ReportSummary defines the outcome of one report in telemetry.
type ReportSummary struct {
	ReportID string
	Industry string
	Records  int
	Total    int
	OK       int
	Failed   int
	Duration time.Duration
}
