package tui

import (
	"fmt"
	"strings"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/usecase"
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Plagiarism check (%s)", m.scope)))
	b.WriteString("\n")
	b.WriteString(m.stateLine())
	b.WriteString("\n\n")

	b.WriteString(progressBar(m.snapshot.Progress, m.barWidth()))
	b.WriteString("\n\n")

	log := m.snapshot.Log
	if len(log) > visibleLogLines {
		log = log[len(log)-visibleLogLines:]
	}
	for _, ev := range log {
		b.WriteString(renderEvent(ev))
		b.WriteString("\n")
	}
	if len(log) == 0 && m.snapshot.State == domain.CheckRunning {
		b.WriteString(infoStyle.Render("waiting for progress from the server..."))
		b.WriteString("\n")
	}

	for _, w := range m.snapshot.Warnings {
		b.WriteString(warningStyle.Render("! " + w))
		b.WriteString("\n")
	}

	if m.snapshot.State == domain.CheckCompleted && m.snapshot.Result != nil {
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(summaryBox(*m.snapshot.Result)))
		b.WriteString("\n")
	}

	if !m.snapshot.State.Terminal() && m.startErr == nil {
		b.WriteString("\n")
		b.WriteString(infoStyle.Render("press q to stop watching"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) stateLine() string {
	if m.startErr != nil {
		return errorStyle.Render("could not start: " + m.startErr.Error())
	}
	switch m.snapshot.State {
	case domain.CheckRunning:
		return statusStyle.Render(fmt.Sprintf("running (%d lines received)", len(m.snapshot.Log)))
	case domain.CheckCompleted:
		return statusStyle.Render("completed")
	case domain.CheckFailed:
		msg := "failed"
		if m.snapshot.Err != nil {
			msg += ": " + m.snapshot.Err.Error()
		}
		return errorStyle.Render(msg)
	case domain.CheckQueueEmpty:
		return infoStyle.Render("no documents queued")
	default:
		return infoStyle.Render("starting...")
	}
}

func (m Model) barWidth() int {
	w := m.width - 10
	if w < 10 {
		return 10
	}
	if w > 60 {
		return 60
	}
	return w
}

func progressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(width))
	return barFilled.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %3.0f%%", progress*100)
}

func renderEvent(ev domain.ProgressEvent) string {
	switch ev.Kind {
	case domain.ProgressStarted, domain.ProgressComplete:
		return markerStyle.Render(ev.Text)
	default:
		return infoStyle.Render(ev.Text)
	}
}

func summaryBox(result domain.CheckResult) string {
	totals := usecase.Summarize(result)
	var b strings.Builder
	fmt.Fprintf(&b, "Documents: %d   Pairs: %d   Plagiarism: %d   Time: %.1fs",
		totals.Documents, totals.Pairs, totals.Positive, totals.ExecutionTimeSeconds)

	top := usecase.ToPairView(result, usecase.SortBERT, false)
	if len(top) > 5 {
		top = top[:5]
	}
	for _, p := range top {
		mark := " "
		if p.FinalResult {
			mark = "*"
		}
		fmt.Fprintf(&b, "\n%s %5.1f%%  %s / %s", mark, p.PrimaryScore(), p.Doc1Filename, p.Doc2Filename)
	}
	return b.String()
}
