package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sadiqj/opamsnap/pkg/pipeline"
)

// Color palette shared by all terminal output.
var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	styleNumber  = lipgloss.NewStyle().Foreground(colorCyan)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleError   = lipgloss.NewStyle().Foreground(colorRed)
	styleHeader  = lipgloss.NewStyle().Bold(true).Foreground(colorGray)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
)

func printSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", styleSuccess.Render(iconSuccess), fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", styleWarning.Render(iconWarning), fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", styleError.Render(iconError), fmt.Sprintf(format, args...))
}

// renderSummary formats a completed run as a small table for the terminal.
func renderSummary(result *pipeline.Result) string {
	var b strings.Builder

	title := "Snapshot published"
	if result.Outcome == pipeline.OutcomePartial {
		title = "Snapshot published (partial)"
	}
	b.WriteString(styleTitle.Render(title))
	b.WriteString("\n")
	b.WriteString(styleDim.Render(fmt.Sprintf("version %s", result.Pointer.VersionID)))
	b.WriteString("\n\n")

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleDim).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader.Padding(0, 1)
			}
			if col == 1 {
				return styleNumber.Padding(0, 1).Align(lipgloss.Right)
			}
			return styleValue.Padding(0, 1)
		}).
		Headers("Stage", "Count", "Duration").
		Row("discovered", strconv.Itoa(result.Stats.Discovered), result.Stats.ListTime.Round(10 * time.Millisecond).String()).
		Row("skipped", strconv.Itoa(result.Stats.Skipped), "").
		Row("resolved", strconv.Itoa(result.Stats.Resolved), result.Stats.HarvestTime.Round(10 * time.Millisecond).String()).
		Row("failed", strconv.Itoa(result.Stats.Failed), "").
		Row("published rows", strconv.Itoa(result.Stats.Rows), result.Stats.PublishTime.Round(10 * time.Millisecond).String())
	b.WriteString(t.Render())
	b.WriteString("\n")

	if len(result.Failed) > 0 {
		b.WriteString("\n")
		b.WriteString(styleWarning.Render(fmt.Sprintf("%d packages failed:", len(result.Failed))))
		b.WriteString("\n")
		for i, f := range result.Failed {
			if i == 10 {
				b.WriteString(styleDim.Render(fmt.Sprintf("  … and %d more\n", len(result.Failed)-i)))
				break
			}
			b.WriteString(fmt.Sprintf("  %s %s (%s)\n", styleError.Render(iconError), f.Name, f.Category))
		}
	}
	return b.String()
}
