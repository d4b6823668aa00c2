package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

func validFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return usageErrorf("unknown format %q (table, json or yaml)", format)
	}
}

// emit writes v as JSON or YAML, or calls human for the table form.
func emit(w io.Writer, format string, v any, human func()) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		human()
		return nil
	}
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.String())
}

func (c *CLI) empty(msg string) {
	fmt.Fprintln(c.stdout, mutedStyle.Render(msg))
}

func (c *CLI) success(msg string) {
	fmt.Fprintln(c.stdout, okStyle.Render(msg))
}

// notice reports on stderr when data did not come from the live backend.
func (c *CLI) notice(source domain.DataSource) {
	switch source {
	case domain.SourceCache:
		fmt.Fprintln(c.stderr, warnStyle.Render("server unreachable, showing the last cached copy"))
	case domain.SourceMock:
		fmt.Fprintln(c.stderr, warnStyle.Render("server unreachable, showing sample data"))
	}
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *score)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
