// Package ingest turns uploaded CSV and XLSX files into raw datasets for the
// report pipeline. Cells are kept as trimmed strings; numeric parsing belongs
// to the record builder.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/irfndi/finmetrics-go/internal/telemetry"
	"github.com/irfndi/finmetrics-go/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Format is a supported upload format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const utf8BOM = "\ufeff"

// DetectFormat picks the format from the file extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", utils.NewIngestionError(fmt.Sprintf("unsupported file type %q, expected .csv or .xlsx", filepath.Ext(filename)))
	}
}

// Reader parses uploads into RawDataset values.
type Reader struct {
	logger *logrus.Logger
}

// NewReader creates a Reader.
func NewReader(logger *logrus.Logger) *Reader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reader{logger: logger}
}

// Read parses r according to the extension of filename.
func (rd *Reader) Read(ctx context.Context, r io.Reader, filename string) (models.RawDataset, error) {
	_, span := telemetry.StartSpan(ctx, telemetry.GetIngestTracer(), "ingest.read",
		telemetry.StringAttribute("ingest.filename", filename),
	)
	defer span.End()

	format, err := DetectFormat(filename)
	if err != nil {
		telemetry.RecordError(span, err)
		return models.RawDataset{}, err
	}

	var dataset models.RawDataset
	switch format {
	case FormatCSV:
		dataset, err = rd.ReadCSV(r)
	case FormatXLSX:
		dataset, err = rd.ReadXLSX(r)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		rd.logger.WithError(err).WithFields(logrus.Fields{
			"filename": filename,
			"format":   format,
		}).Warn("Failed to read upload")
		return models.RawDataset{}, err
	}

	telemetry.SetSpanAttributes(span,
		telemetry.StringAttribute("ingest.format", string(format)),
		telemetry.Int64Attribute("ingest.rows", int64(len(dataset.Rows))),
		telemetry.Int64Attribute("ingest.columns", int64(len(dataset.Columns))),
	)
	rd.logger.WithFields(logrus.Fields{
		"filename": filename,
		"format":   format,
		"rows":     len(dataset.Rows),
		"columns":  len(dataset.Columns),
	}).Info("Upload parsed")
	return dataset, nil
}

// ReadCSV parses comma separated data. Ragged rows are accepted.
func (rd *Reader) ReadCSV(r io.Reader) (models.RawDataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return models.RawDataset{}, utils.WrapIngestionError("cannot parse CSV", err)
	}
	return toDataset(rows)
}

// ReadXLSX parses the first worksheet of a workbook.
func (rd *Reader) ReadXLSX(r io.Reader) (models.RawDataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return models.RawDataset{}, utils.WrapIngestionError("cannot open workbook", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			rd.logger.WithError(cerr).Debug("Failed to close workbook")
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return models.RawDataset{}, utils.NewIngestionError("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return models.RawDataset{}, utils.WrapIngestionError(fmt.Sprintf("cannot read sheet %q", sheets[0]), err)
	}
	rd.logger.WithFields(logrus.Fields{
		"sheet":  sheets[0],
		"sheets": len(sheets),
		"rows":   len(rows),
	}).Debug("Reading worksheet")
	return toDataset(rows)
}

var errNoHeader = errors.New("no header row found")

// toDataset uses the first non-empty row as headers. Blank headers become
// "Column N" and repeated headers get a numeric suffix. Fully blank data rows
// are skipped and blank cells are left out of the row.
func toDataset(rows [][]string) (models.RawDataset, error) {
	start := -1
	for i, row := range rows {
		if !blankRow(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return models.RawDataset{}, utils.WrapIngestionError("file is empty", errNoHeader)
	}

	headers := normalizeHeaders(rows[start])
	dataset := models.RawDataset{Columns: headers, Rows: []models.RawRow{}}
	for _, row := range rows[start+1:] {
		if blankRow(row) {
			continue
		}
		raw := make(models.RawRow, len(headers))
		for j, cell := range row {
			if j >= len(headers) {
				break
			}
			if v := strings.TrimSpace(cell); v != "" {
				raw[headers[j]] = v
			}
		}
		dataset.Rows = append(dataset.Rows, raw)
	}
	return dataset, nil
}

func normalizeHeaders(row []string) []string {
	last := len(row)
	for last > 0 && strings.TrimSpace(row[last-1]) == "" {
		last--
	}

	headers := make([]string, last)
	seen := make(map[string]int, last)
	for i := 0; i < last; i++ {
		h := strings.TrimSpace(strings.TrimPrefix(row[i], utf8BOM))
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		name := h
		for n := 2; seen[name] > 0; n++ {
			name = fmt.Sprintf("%s_%d", h, n)
		}
		seen[name]++
		headers[i] = name
	}
	return headers
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
