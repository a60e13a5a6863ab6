package report

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/signalnine/scriptgate/internal/config"
	"github.com/signalnine/scriptgate/internal/result"
)

// maxIssues caps the issues listed per script in the Markdown report.
const maxIssues = 5

// byConfidence returns results sorted by confidence, highest first. Ties
// keep their input order.
func byConfidence(results []result.ScriptResult) []result.ScriptResult {
	sorted := append([]result.ScriptResult{}, results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	return sorted
}

// WriteScripts renders per-script results as "table", "markdown" or "json".
func WriteScripts(results []result.ScriptResult, th config.Thresholds, format string, w io.Writer) error {
	if format == "json" {
		return writeJSON(results, w)
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Script", "Syntax", "Compliance", "Functional", "Confidence", "Verdict"})
	for _, r := range byConfidence(results) {
		verdict := "ready"
		if !r.ReadyForPR() {
			verdict = r.Reason(th)
		}
		tw.AppendRow(table.Row{
			filepath.Base(r.Path),
			yesNo(r.SyntaxValid),
			fmt.Sprintf("%.1f%%", r.ComplianceScore),
			fmt.Sprintf("%.1f%%", r.FunctionalScore),
			fmt.Sprintf("%.1f%%", r.Confidence),
			verdict,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	var out string
	switch format {
	case "markdown":
		out = tw.RenderMarkdown()
	case "table", "":
		out = tw.Render()
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
	_, err := fmt.Fprintln(w, out)
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// TestReport renders the long-form Markdown report for a batch: summary,
// one section per script and the ready / needs-review split.
func TestReport(results []result.ScriptResult, th config.Thresholds, now time.Time) string {
	ready := 0
	for _, r := range results {
		if r.ReadyForPR() {
			ready++
		}
	}
	total := len(results)
	rate := 0.0
	if total > 0 {
		rate = float64(ready) / float64(total) * 100
	}
	sorted := byConfidence(results)

	var b strings.Builder
	b.WriteString("# Script Validation Report\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", now.Format(time.RFC3339))
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- **Total Scripts**: %d\n", total)
	fmt.Fprintf(&b, "- **Ready for Auto-PR**: %d\n", ready)
	fmt.Fprintf(&b, "- **Need Manual Review**: %d\n", total-ready)
	fmt.Fprintf(&b, "- **Success Rate**: %.1f%%\n\n", rate)
	b.WriteString("## Test Results by Script\n")

	for _, r := range sorted {
		status := "MANUAL REVIEW"
		if r.ReadyForPR() {
			status = "AUTO-PR READY"
		}
		fmt.Fprintf(&b, "\n### %s\n", filepath.Base(r.Path))
		fmt.Fprintf(&b, "- **Status**: %s\n", status)
		fmt.Fprintf(&b, "- **Overall Confidence**: %.1f%%\n", r.Confidence)
		fmt.Fprintf(&b, "- **Compliance Score**: %.1f%%\n", r.ComplianceScore)
		fmt.Fprintf(&b, "- **Functional Score**: %.1f%%\n", r.FunctionalScore)
		fmt.Fprintf(&b, "- **Syntax Valid**: %s\n", yesNo(r.SyntaxValid))
		fmt.Fprintf(&b, "- **Execution Time**: %.2fs\n", r.ExecutionTime.Seconds())
		if len(r.Failed) > 0 {
			b.WriteString("\n**Issues to Address:**\n")
			for _, issue := range r.Failed[:min(maxIssues, len(r.Failed))] {
				fmt.Fprintf(&b, "- %s\n", issue)
			}
			if extra := len(r.Failed) - maxIssues; extra > 0 {
				fmt.Fprintf(&b, "- ... and %d more\n", extra)
			}
		}
		if len(r.Warnings) > 0 {
			b.WriteString("\n**Warnings:**\n")
			for _, w := range r.Warnings {
				fmt.Fprintf(&b, "- %s\n", w)
			}
		}
	}

	b.WriteString("\n## Recommendations\n")
	fmt.Fprintf(&b, "\n### Ready for Auto-PR (%d scripts)\n", ready)
	b.WriteString("These scripts meet all quality thresholds and can be automatically submitted:\n")
	for _, r := range sorted {
		if r.ReadyForPR() {
			fmt.Fprintf(&b, "- %s (%.1f%%)\n", filepath.Base(r.Path), r.Confidence)
		}
	}
	fmt.Fprintf(&b, "\n### Need Manual Review (%d scripts)\n", total-ready)
	b.WriteString("These scripts need attention before auto-PR submission:\n")
	for _, r := range sorted {
		if !r.ReadyForPR() {
			fmt.Fprintf(&b, "- %s (%.1f%%) - %s\n", filepath.Base(r.Path), r.Confidence, r.Reason(th))
		}
	}
	return b.String()
}
