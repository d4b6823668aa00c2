package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/usecase"
)

func (c *CLI) runCheck(ctx context.Context, args []string) error {
	fs := c.flagSet("check")
	all := fs.Bool("all", false, "check every uploaded document instead of the queue")
	live := fs.Bool("tui", false, "show a live progress view")
	timeout := fs.Duration("timeout", 0, "give up waiting after this long (0 waits for the server)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	scope, action := domain.ResultQueue, domain.ActionCheckQueue
	if *all {
		scope, action = domain.ResultAll, domain.ActionCheckAll
	}
	if err := c.svc.Auth.Authorize(action); err != nil {
		return err
	}
	if scope == domain.ResultQueue && c.svc.Check.State() == domain.CheckQueueEmpty {
		return domain.WrapError(domain.ErrEmptyQueue, "check", errors.New("queue is empty"))
	}

	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	var (
		snap domain.CheckSnapshot
		err  error
	)
	if *live && c.live != nil {
		snap, err = c.live(ctx, c.svc.Check, scope, c.stdin, c.stdout)
	} else {
		snap, err = c.followCheck(ctx, scope)
	}

	for _, w := range snap.Warnings {
		fmt.Fprintln(c.stderr, warnStyle.Render("warning: "+w))
	}
	if err != nil {
		return err
	}
	switch snap.State {
	case domain.CheckCompleted:
		c.printCheckSummary(snap)
		return nil
	case domain.CheckFailed:
		if snap.Err != nil {
			return snap.Err
		}
		return errors.New("check failed")
	default:
		return usecase.ErrOrchestratorClosed
	}
}

// followCheck prints progress lines as they arrive and waits for the run.
func (c *CLI) followCheck(ctx context.Context, scope domain.ResultType) (domain.CheckSnapshot, error) {
	unsubscribe := c.svc.Check.Subscribe(func(u domain.CheckUpdate) {
		if u.Event == nil {
			return
		}
		line := u.Event.Text
		if u.Event.Kind != domain.ProgressStatus {
			line = headingStyle.Render(line)
		}
		fmt.Fprintln(c.stdout, line)
	})
	defer unsubscribe()

	runID, err := c.svc.Check.Start(ctx, scope)
	if err != nil {
		return c.svc.Check.Snapshot(), err
	}
	c.logger.Debug("check_started", "run_id", runID, "scope", scope)
	fmt.Fprintln(c.stdout, mutedStyle.Render(fmt.Sprintf("check started (%s), waiting for the server...", scope)))

	return c.svc.Check.Wait(ctx)
}

func (c *CLI) printCheckSummary(snap domain.CheckSnapshot) {
	if snap.Result == nil {
		return
	}
	totals := usecase.Summarize(*snap.Result)
	elapsed := snap.FinishedAt.Sub(snap.StartedAt).Round(time.Second)
	c.success(fmt.Sprintf("check completed in %s: %d documents, %d pairs, %d flagged",
		elapsed, totals.Documents, totals.Pairs, totals.Positive))
	fmt.Fprintln(c.stdout, mutedStyle.Render("see details with `plagctl results show`"))
}

func (c *CLI) runCompare(ctx context.Context, args []string) error {
	fs := c.flagSet("compare")
	format := fs.String("format", formatTable, "output format: table, json or yaml")
	files, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := validFormat(*format); err != nil {
		return err
	}
	if len(files) != 2 {
		return usageErrorf("compare: exactly two filenames are required")
	}

	result, err := c.svc.Compare.Compare(ctx, files[0], files[1])
	if err != nil {
		return err
	}

	out := struct {
		domain.PairRecord `yaml:",inline"`
		Details           map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	}{result.PairRecord, result.Details}
	return emit(c.stdout, *format, out, func() {
		rows := [][]string{
			{"BERT", formatScore(result.BERT)},
			{"FastText", formatScore(result.FastText)},
			{"LSA", formatScore(result.LSA)},
			{"Plagiarism", yesNo(result.FinalResult)},
		}
		keys := make([]string, 0, len(result.Details))
		for k := range result.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rows = append(rows, []string{k, fmt.Sprint(result.Details[k])})
		}
		fmt.Fprintln(c.stdout, headingStyle.Render(strings.Join([]string{result.Doc1Filename, result.Doc2Filename}, " vs ")))
		renderTable(c.stdout, []string{"Measure", "Value"}, rows)
	})
}
