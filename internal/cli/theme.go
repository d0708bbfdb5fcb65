package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/raphaelgruber/contractflow/internal/validation"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Approved lipgloss.Color
	Review   lipgloss.Color
	Error    lipgloss.Color
	Label    lipgloss.Color
	Hint     lipgloss.Color
	Border   lipgloss.Color
}

var defaultTheme = Theme{
	Approved: lipgloss.Color("#00D787"), // green
	Review:   lipgloss.Color("#FFAF00"), // amber
	Error:    lipgloss.Color("#FF005F"), // red
	Label:    lipgloss.Color("#5FAFD7"), // light blue
	Hint:     lipgloss.Color("#6C6C6C"), // dim gray
	Border:   lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) labelStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Label).Width(14)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) boxStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)
}

// statusStyle colors a route or status value.
func (t Theme) statusStyle(status string) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch status {
	case models.RouteAutoApprove, models.StatusApproved:
		return style.Foreground(t.Approved)
	case models.StatusRejected:
		return style.Foreground(t.Error)
	default:
		return style.Foreground(t.Review)
	}
}

func (t Theme) row(label, value string) string {
	return t.labelStyle().Render(label) + value
}

// renderResult formats a completed pipeline run.
func renderResult(t Theme, result models.PipelineResult) string {
	c := result.Contract
	lines := []string{
		t.statusStyle(result.Routing.Route).Render(strings.ToUpper(result.Routing.Route)),
		"",
		t.row("Contract", result.ContractID),
		t.row("Vendor", orDash(c.VendorName)),
		t.row("Term", fmt.Sprintf("%s → %s", orDash(c.ContractStartDate), orDash(c.ContractEndDate))),
		t.row("Total value", validation.FormatAmount(c.TotalValue)),
		t.row("Confidence", fmt.Sprintf("%.2f", c.ConfidenceScore)),
		t.row("Risk", result.Validation.RiskLevel),
	}
	if len(result.Validation.PolicyViolations) > 0 {
		lines = append(lines, t.row("Violations", strings.Join(result.Validation.PolicyViolations, "\n"+strings.Repeat(" ", 14))))
	}
	lines = append(lines,
		t.row("Reasons", strings.Join(result.Routing.Reasons, ", ")),
		"",
		t.hintStyle().Render(fmt.Sprintf("request %s · %d ms", result.RequestID, result.ProcessingTimeMS)),
	)
	return t.boxStyle().Render(strings.Join(lines, "\n"))
}

// renderReviewItems formats the pending review queue.
func renderReviewItems(t Theme, items []models.ReviewItem) string {
	if len(items) == 0 {
		return "No pending reviews."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pending reviews (%d):\n\n", len(items))
	for _, item := range items {
		vendor, risk := "-", "-"
		if item.Contract != nil {
			vendor = orDash(item.Contract.ExtractedData.VendorName)
			risk = orDash(item.Contract.ValidationResult.RiskLevel)
		}
		fmt.Fprintf(&b, "- %s %s [risk: %s]\n", item.ID, vendor, risk)
		fmt.Fprintf(&b, "  %s\n", t.hintStyle().Render(item.Reason))
		if verbose {
			fmt.Fprintf(&b, "  Contract: %s  Created: %s\n", item.ContractID, item.CreatedAt.Format("2006-01-02 15:04"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderContracts formats a list of stored contracts.
func renderContracts(t Theme, contracts []models.ProcessedContract) string {
	if len(contracts) == 0 {
		return "No approved contracts."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Approved contracts (%d):\n\n", len(contracts))
	for _, c := range contracts {
		fmt.Fprintf(&b, "- %s %s %s [%s]\n",
			c.ID,
			orDash(c.ExtractedData.VendorName),
			validation.FormatAmount(c.ExtractedData.TotalValue),
			t.statusStyle(c.Route).Render(c.Route),
		)
		if verbose {
			fmt.Fprintf(&b, "  From: %s  Subject: %s  Updated: %s\n", c.Sender, c.Subject, c.UpdatedAt.Format("2006-01-02 15:04"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderLogs formats processing log entries, newest first.
func renderLogs(t Theme, logs []models.ProcessingLog) string {
	if len(logs) == 0 {
		return "No processing logs."
	}

	var b strings.Builder
	for _, l := range logs {
		stage := l.Stage
		if stage == models.LogStagePipelineError {
			stage = lipgloss.NewStyle().Foreground(t.Error).Render(stage)
		}
		contract := "-"
		if l.ContractID != nil {
			contract = *l.ContractID
		}
		fmt.Fprintf(&b, "%s  %-8s %s  %s\n", l.CreatedAt.Format("2006-01-02 15:04:05"), stage, contract, l.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
