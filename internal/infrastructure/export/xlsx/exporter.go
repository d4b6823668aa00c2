package xlsx

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

const (
	SheetSummary = "Summary"
	SheetPairs   = "Pairs"
	SheetMetrics = "Metrics"
)

var pairHeader = []any{"Document 1", "Document 2", "BERT %", "FastText %", "LSA %", "Plagiarism"}

// Exporter writes a check result as an .xlsx workbook.
type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Export(result domain.CheckResult, resultType domain.ResultType, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeSummary(f, result, resultType, bold); err != nil {
		return err
	}
	if err := writePairs(f, result.Pairs, bold); err != nil {
		return err
	}
	if len(result.AlgorithmMetrics) > 0 {
		if err := writeMetrics(f, result.AlgorithmMetrics, bold); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, result domain.CheckResult, resultType domain.ResultType, bold int) error {
	total, positive := len(result.Pairs), 0
	for _, p := range result.Pairs {
		if p.FinalResult {
			positive++
		}
	}
	if total == 0 && result.Summary != nil {
		total, positive = result.Summary.TotalPairs, result.Summary.FinalResultCount
	}

	rows := [][]any{
		{"Scope", string(resultType)},
		{"Documents", result.DocumentCount},
		{"Execution time (s)", result.ExecutionTimeSeconds},
		{"Pairs", total},
		{"Plagiarism pairs", positive},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	if err := f.SetColStyle(SheetSummary, "A", bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	return f.SetColWidth(SheetSummary, "A", "A", 22)
}

func writePairs(f *excelize.File, pairs []domain.PairRecord, bold int) error {
	if _, err := f.NewSheet(SheetPairs); err != nil {
		return fmt.Errorf("create pairs sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetPairs, "A1", &pairHeader); err != nil {
		return fmt.Errorf("write pairs header: %w", err)
	}
	if err := f.SetRowStyle(SheetPairs, 1, 1, bold); err != nil {
		return fmt.Errorf("style pairs header: %w", err)
	}

	for i, p := range pairs {
		verdict := "no"
		if p.FinalResult {
			verdict = "yes"
		}
		row := []any{p.Doc1Filename, p.Doc2Filename, scoreCell(p.BERT), scoreCell(p.FastText), scoreCell(p.LSA), verdict}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetPairs, cell, &row); err != nil {
			return fmt.Errorf("write pair %d: %w", i, err)
		}
	}
	if err := f.SetColWidth(SheetPairs, "A", "B", 32); err != nil {
		return fmt.Errorf("size pairs columns: %w", err)
	}
	if len(pairs) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(pairHeader), len(pairs)+1)
		if err := f.AutoFilter(SheetPairs, "A1:"+last, nil); err != nil {
			return fmt.Errorf("filter pairs: %w", err)
		}
	}
	return nil
}

func writeMetrics(f *excelize.File, metrics map[string]domain.AlgorithmMetric, bold int) error {
	if _, err := f.NewSheet(SheetMetrics); err != nil {
		return fmt.Errorf("create metrics sheet: %w", err)
	}
	header := []any{"Algorithm", "Precision", "Recall", "F1", "Time (s)"}
	if err := f.SetSheetRow(SheetMetrics, "A1", &header); err != nil {
		return fmt.Errorf("write metrics header: %w", err)
	}
	if err := f.SetRowStyle(SheetMetrics, 1, 1, bold); err != nil {
		return fmt.Errorf("style metrics header: %w", err)
	}

	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		m := metrics[name]
		row := []any{name, m.Precision, m.Recall, m.F1, m.Time}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetMetrics, cell, &row); err != nil {
			return fmt.Errorf("write metric %s: %w", name, err)
		}
	}
	return nil
}

func scoreCell(score *float64) any {
	if score == nil {
		return ""
	}
	return *score
}
