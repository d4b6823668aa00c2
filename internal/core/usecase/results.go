package usecase

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/ports"
)

// DocumentRow aggregates every pair a document takes part in.
type DocumentRow struct {
	Document             string  `json:"document" yaml:"document"`
	MaxSimilarity        float64 `json:"max_similarity" yaml:"max_similarity"`
	MatchedDocumentCount int     `json:"matched_document_count" yaml:"matched_document_count"`
	HasPositiveVerdict   bool    `json:"has_positive_verdict" yaml:"has_positive_verdict"`
}

type SortKey string

const (
	SortBERT     SortKey = "bert"
	SortFastText SortKey = "fasttext"
	SortLSA      SortKey = "lsa"
	SortFilename SortKey = "filename"
)

func ParseSortKey(raw string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(raw))); key {
	case "":
		return SortBERT, nil
	case SortBERT, SortFastText, SortLSA, SortFilename:
		return key, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "results.sort", fmt.Errorf("unknown sort key %q", raw))
	}
}

type PairFilter string

const (
	FilterAll      PairFilter = "all"
	FilterPositive PairFilter = "positive"
	FilterNegative PairFilter = "negative"
)

func ParsePairFilter(raw string) (PairFilter, error) {
	switch f := PairFilter(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterPositive, FilterNegative:
		return f, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "results.filter", fmt.Errorf("unknown filter %q", raw))
	}
}

// ToDocumentView folds both sides of every pair into one row per document,
// ordered by highest similarity and then by name.
func ToDocumentView(result domain.CheckResult) []DocumentRow {
	type agg struct {
		row     DocumentRow
		matches map[string]struct{}
	}
	byName := make(map[string]*agg)
	get := func(name string) *agg {
		a, ok := byName[name]
		if !ok {
			a = &agg{row: DocumentRow{Document: name}, matches: map[string]struct{}{}}
			byName[name] = a
		}
		return a
	}
	fold := func(self, other string, score float64, positive bool) {
		a := get(self)
		if score > a.row.MaxSimilarity {
			a.row.MaxSimilarity = score
		}
		if other != "" && other != self {
			a.matches[other] = struct{}{}
		}
		if positive {
			a.row.HasPositiveVerdict = true
		}
	}

	for _, pair := range result.Pairs {
		score := pair.PrimaryScore()
		if pair.Doc1Filename != "" {
			fold(pair.Doc1Filename, pair.Doc2Filename, score, pair.FinalResult)
		}
		if pair.Doc2Filename != "" {
			fold(pair.Doc2Filename, pair.Doc1Filename, score, pair.FinalResult)
		}
	}

	rows := make([]DocumentRow, 0, len(byName))
	for _, a := range byName {
		a.row.MatchedDocumentCount = len(a.matches)
		rows = append(rows, a.row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].MaxSimilarity != rows[j].MaxSimilarity {
			return rows[i].MaxSimilarity > rows[j].MaxSimilarity
		}
		return rows[i].Document < rows[j].Document
	})
	return rows
}

// ToPairView returns a sorted copy of the pairs. Ties keep their original
// order; a missing score sorts below any present one.
func ToPairView(result domain.CheckResult, key SortKey, ascending bool) []domain.PairRecord {
	pairs := append([]domain.PairRecord{}, result.Pairs...)

	less := func(a, b domain.PairRecord) int {
		if key == SortFilename {
			return strings.Compare(pairName(a), pairName(b))
		}
		return compareScores(scoreFor(a, key), scoreFor(b, key))
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		c := less(pairs[i], pairs[j])
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return pairs
}

func pairName(p domain.PairRecord) string {
	return strings.ToLower(p.Doc1Filename + "\x00" + p.Doc2Filename)
}

func scoreFor(p domain.PairRecord, key SortKey) *float64 {
	switch key {
	case SortFastText:
		return p.FastText
	case SortLSA:
		return p.LSA
	default:
		return p.BERT
	}
}

func compareScores(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}

// FilterPairs keeps pairs matching the verdict filter whose primary score is
// at least minScore.
func FilterPairs(pairs []domain.PairRecord, filter PairFilter, minScore float64) []domain.PairRecord {
	out := make([]domain.PairRecord, 0, len(pairs))
	for _, p := range pairs {
		switch filter {
		case FilterPositive:
			if !p.FinalResult {
				continue
			}
		case FilterNegative:
			if p.FinalResult {
				continue
			}
		}
		if p.PrimaryScore() < minScore {
			continue
		}
		out = append(out, p)
	}
	return out
}

type ResultTotals struct {
	Documents            int     `json:"documents" yaml:"documents"`
	ExecutionTimeSeconds float64 `json:"execution_time_seconds" yaml:"execution_time_seconds"`
	Pairs                int     `json:"pairs" yaml:"pairs"`
	Positive             int     `json:"positive" yaml:"positive"`
}

// Summarize counts from the pair list when present and falls back to the
// backend's summary block otherwise.
func Summarize(result domain.CheckResult) ResultTotals {
	totals := ResultTotals{
		Documents:            result.DocumentCount,
		ExecutionTimeSeconds: result.ExecutionTimeSeconds,
	}
	if len(result.Pairs) > 0 {
		totals.Pairs = len(result.Pairs)
		for _, p := range result.Pairs {
			if p.FinalResult {
				totals.Positive++
			}
		}
		return totals
	}
	if result.Summary != nil {
		totals.Pairs = result.Summary.TotalPairs
		totals.Positive = result.Summary.FinalResultCount
	}
	return totals
}

// ResultsUseCase serves the last persisted result to the presentation layer.
type ResultsUseCase struct {
	store    ports.ClientStore
	exporter ports.ResultExporter
}

func NewResultsUseCase(store ports.ClientStore, exporter ports.ResultExporter) *ResultsUseCase {
	return &ResultsUseCase{store: store, exporter: exporter}
}

func (uc *ResultsUseCase) Current() (*domain.CheckResult, domain.ResultType) {
	return uc.store.GetResult(), uc.store.GetResultType()
}

func (uc *ResultsUseCase) LastRunCompleted() bool {
	return uc.store.LastRunCompleted()
}

func (uc *ResultsUseCase) Clear() {
	uc.store.ClearResult()
}

func (uc *ResultsUseCase) Export(w io.Writer) error {
	result, resultType := uc.Current()
	if result == nil {
		return domain.WrapError(domain.ErrNotFound, "results.export", fmt.Errorf("no results yet"))
	}
	if uc.exporter == nil {
		return fmt.Errorf("results.export: no exporter configured")
	}
	return uc.exporter.Export(*result, resultType, w)
}
