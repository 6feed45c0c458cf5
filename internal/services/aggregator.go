package services

import (
	"github.com/irfndi/finmetrics-go/internal/models"
)

// Aggregate assembles calculator outputs into a report. Metrics are grouped by
// category in first-seen order and every outcome is counted, including
// failures, so no category disappears from the report.
func Aggregate(metrics []models.MetricResult, forecasts []models.ForecastSeries, breakEven *models.BreakEvenResult, kpis models.IndustryKPISet) models.Report {
	report := models.Report{
		Industry:     kpis.Industry,
		Metrics:      groupByCategory(metrics),
		Forecasts:    forecasts,
		BreakEven:    breakEven,
		IndustryKPIs: kpis,
	}
	if report.Forecasts == nil {
		report.Forecasts = []models.ForecastSeries{}
	}
	if report.IndustryKPIs.KPIs == nil {
		report.IndustryKPIs.KPIs = []models.MetricResult{}
	}

	for _, m := range metrics {
		report.Summary.Add(m.Status)
	}
	for _, k := range report.IndustryKPIs.KPIs {
		report.Summary.Add(k.Status)
	}
	for _, f := range report.Forecasts {
		report.Summary.Add(f.Status)
	}
	if breakEven != nil {
		report.Summary.Add(breakEven.Status)
	}
	return report
}

func groupByCategory(metrics []models.MetricResult) []models.MetricGroup {
	groups := make([]models.MetricGroup, 0, 8)
	index := make(map[string]int)
	for _, m := range metrics {
		i, ok := index[m.Category]
		if !ok {
			i = len(groups)
			index[m.Category] = i
			groups = append(groups, models.MetricGroup{Category: m.Category})
		}
		groups[i].Results = append(groups[i].Results, m)
	}
	return groups
}
