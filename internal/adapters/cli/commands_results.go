package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/usecase"
)

func (c *CLI) runResults(ctx context.Context, args []string) error {
	sub, rest, err := subcommand("results", args)
	if err != nil {
		return err
	}
	switch sub {
	case "show":
		return c.resultsShow(rest)
	case "export":
		return c.resultsExport(rest)
	case "clear":
		c.svc.Results.Clear()
		c.success("results cleared")
		return nil
	default:
		return usageErrorf("results: unknown subcommand %q", sub)
	}
}

type resultsView struct {
	Scope     domain.ResultType     `json:"scope" yaml:"scope"`
	Totals    usecase.ResultTotals  `json:"totals" yaml:"totals"`
	Pairs     []domain.PairRecord   `json:"pairs,omitempty" yaml:"pairs,omitempty"`
	Documents []usecase.DocumentRow `json:"documents,omitempty" yaml:"documents,omitempty"`
}

func (c *CLI) resultsShow(args []string) error {
	fs := c.flagSet("results show")
	view := fs.String("view", "pairs", "pairs or documents")
	sortKey := fs.String("sort", string(usecase.SortBERT), "sort pairs by bert, fasttext, lsa or filename")
	ascending := fs.Bool("asc", false, "sort ascending")
	filter := fs.String("filter", string(usecase.FilterAll), "all, positive or negative pairs")
	minScore := fs.Float64("min", 0, "hide pairs whose primary score is below this percentage")
	limit := fs.Int("limit", 0, "show at most this many rows (0 shows all)")
	format := fs.String("format", formatTable, "output format: table, json or yaml")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if err := validFormat(*format); err != nil {
		return err
	}
	key, err := usecase.ParseSortKey(*sortKey)
	if err != nil {
		return err
	}
	pairFilter, err := usecase.ParsePairFilter(*filter)
	if err != nil {
		return err
	}
	if *view != "pairs" && *view != "documents" {
		return usageErrorf("results show: unknown view %q (pairs or documents)", *view)
	}

	result, scope := c.svc.Results.Current()
	if result == nil {
		c.empty("no results yet, run `plagctl check` first")
		return nil
	}

	out := resultsView{Scope: scope, Totals: usecase.Summarize(*result)}
	if *view == "documents" {
		out.Documents = usecase.ToDocumentView(*result)
		if *limit > 0 && len(out.Documents) > *limit {
			out.Documents = out.Documents[:*limit]
		}
	} else {
		out.Pairs = usecase.FilterPairs(usecase.ToPairView(*result, key, *ascending), pairFilter, *minScore)
		if *limit > 0 && len(out.Pairs) > *limit {
			out.Pairs = out.Pairs[:*limit]
		}
	}

	return emit(c.stdout, *format, out, func() {
		c.printResultsHeader(out)
		if *view == "documents" {
			c.printDocumentRows(out.Documents)
			return
		}
		c.printPairRows(out.Pairs)
	})
}

func (c *CLI) printResultsHeader(out resultsView) {
	label := "all documents"
	if out.Scope == domain.ResultQueue {
		label = "queued documents"
	}
	fmt.Fprintln(c.stdout, headingStyle.Render("Results for "+label))
	fmt.Fprintf(c.stdout, "%d documents, %d pairs, %d flagged, %.1fs\n",
		out.Totals.Documents, out.Totals.Pairs, out.Totals.Positive, out.Totals.ExecutionTimeSeconds)
	if !c.svc.Results.LastRunCompleted() {
		fmt.Fprintln(c.stdout, warnStyle.Render("the last check did not finish, these results are from an earlier run"))
	}
}

func (c *CLI) printPairRows(pairs []domain.PairRecord) {
	if len(pairs) == 0 {
		c.empty("no pairs match")
		return
	}
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{
			p.Doc1Filename, p.Doc2Filename,
			formatScore(p.BERT), formatScore(p.FastText), formatScore(p.LSA),
			yesNo(p.FinalResult),
		})
	}
	renderTable(c.stdout, []string{"Document 1", "Document 2", "BERT", "FastText", "LSA", "Plagiarism"}, rows)
}

func (c *CLI) printDocumentRows(docs []usecase.DocumentRow) {
	if len(docs) == 0 {
		c.empty("no documents in this result")
		return
	}
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, []string{
			d.Document,
			fmt.Sprintf("%.1f%%", d.MaxSimilarity),
			fmt.Sprint(d.MatchedDocumentCount),
			yesNo(d.HasPositiveVerdict),
		})
	}
	renderTable(c.stdout, []string{"Document", "Max similarity", "Matches", "Flagged"}, rows)
}

func (c *CLI) resultsExport(args []string) error {
	fs := c.flagSet("results export")
	out := fs.String("out", "plagiarism-results.xlsx", "destination .xlsx file")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	if result, _ := c.svc.Results.Current(); result == nil {
		c.empty("no results yet, run `plagctl check` first")
		return nil
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	if err := c.svc.Results.Export(f); err != nil {
		f.Close()
		_ = os.Remove(*out)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", *out, err)
	}
	c.success("exported to " + *out)
	return nil
}
