package domain

import "strings"

// ResultType tags whether a persisted result covers the queue or the whole corpus.
type ResultType string

const (
	ResultQueue ResultType = "queue"
	ResultAll   ResultType = "all"
)

func ParseResultType(raw string) ResultType {
	switch ResultType(strings.Trim(strings.ToLower(strings.TrimSpace(raw)), `"`)) {
	case ResultQueue:
		return ResultQueue
	default:
		return ResultAll
	}
}

// CheckResult is the outcome of one completed detection run.
type CheckResult struct {
	DocumentCount        int                        `json:"document_count"`
	ExecutionTimeSeconds float64                    `json:"execution_time_seconds"`
	Pairs                []PairRecord               `json:"all_document_pairs"`
	Summary              *ResultSummary             `json:"summary,omitempty"`
	AlgorithmMetrics     map[string]AlgorithmMetric `json:"algorithm_metrics,omitempty"`
}

type PairRecord struct {
	Doc1ID       string   `json:"doc1_id,omitempty" yaml:"doc1_id,omitempty"`
	Doc1Filename string   `json:"doc1_filename" yaml:"doc1_filename"`
	Doc2ID       string   `json:"doc2_id,omitempty" yaml:"doc2_id,omitempty"`
	Doc2Filename string   `json:"doc2_filename" yaml:"doc2_filename"`
	BERT         *float64 `json:"bert_similarity_percentage,omitempty" yaml:"bert_similarity_percentage,omitempty"`
	FastText     *float64 `json:"fasttext_similarity_percentage,omitempty" yaml:"fasttext_similarity_percentage,omitempty"`
	LSA          *float64 `json:"lsa_similarity_percentage,omitempty" yaml:"lsa_similarity_percentage,omitempty"`
	FinalResult  bool     `json:"final_result" yaml:"final_result"`
}

// PrimaryScore is the score used when a single similarity figure is needed.
func (p PairRecord) PrimaryScore() float64 {
	for _, score := range []*float64{p.BERT, p.FastText, p.LSA} {
		if score != nil {
			return *score
		}
	}
	return 0
}

type ResultSummary struct {
	TotalPairs       int `json:"total_pairs"`
	FinalResultCount int `json:"final_result_count"`
}

type AlgorithmMetric struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Time      float64 `json:"time"`
}

// PairComparison is the detailed answer for a single two-document comparison.
type PairComparison struct {
	PairRecord
	Details map[string]any `json:"-"`
}

// Score returns a pointer to v, for building pair records.
func Score(v float64) *float64 {
	return &v
}
