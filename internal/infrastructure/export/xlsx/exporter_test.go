package xlsx

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

func TestExportWritesSheets(t *testing.T) {
	result := domain.CheckResult{
		DocumentCount:        3,
		ExecutionTimeSeconds: 4.5,
		Pairs: []domain.PairRecord{
			{Doc1Filename: "a.pdf", Doc2Filename: "b.pdf", BERT: domain.Score(91.5), FastText: domain.Score(80), FinalResult: true},
			{Doc1Filename: "a.pdf", Doc2Filename: "c.pdf", LSA: domain.Score(12)},
		},
		AlgorithmMetrics: map[string]domain.AlgorithmMetric{
			"lsa":  {Precision: 0.5},
			"bert": {Precision: 0.9, Recall: 0.8, F1: 0.85},
		},
	}

	var buf bytes.Buffer
	if err := NewExporter().Export(result, domain.ResultQueue, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	summary, err := f.GetRows(SheetSummary)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if summary[0][1] != "queue" || summary[3][1] != "2" || summary[4][1] != "1" {
		t.Fatalf("unexpected summary: %v", summary)
	}

	pairs, err := f.GetRows(SheetPairs)
	if err != nil {
		t.Fatalf("read pairs: %v", err)
	}
	if len(pairs) != 3 || pairs[0][0] != "Document 1" {
		t.Fatalf("unexpected pairs sheet: %v", pairs)
	}
	if pairs[1][2] != "91.5" || pairs[1][5] != "yes" || pairs[2][2] != "" || pairs[2][4] != "12" || pairs[2][5] != "no" {
		t.Fatalf("unexpected pair rows: %v", pairs)
	}

	metrics, err := f.GetRows(SheetMetrics)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if len(metrics) != 3 || metrics[1][0] != "bert" || metrics[2][0] != "lsa" {
		t.Fatalf("metrics should be sorted by name: %v", metrics)
	}
}

func TestExportEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	result := domain.CheckResult{Summary: &domain.ResultSummary{TotalPairs: 10, FinalResultCount: 2}}
	if err := NewExporter().Export(result, domain.ResultAll, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(SheetMetrics); idx != -1 {
		t.Fatalf("metrics sheet should be omitted without metrics")
	}
	summary, _ := f.GetRows(SheetSummary)
	if summary[3][1] != "10" || summary[4][1] != "2" {
		t.Fatalf("summary should fall back to summary block: %v", summary)
	}
}
