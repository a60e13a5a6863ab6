package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/signalnine/scriptgate/internal/result"
)

// JobSummary is one row of the job report.
type JobSummary struct {
	JobID           string           `json:"job_id"`
	Feature         string           `json:"feature"`
	Timestamp       time.Time        `json:"timestamp"`
	Status          result.JobStatus `json:"status"`
	Scripts         int              `json:"scripts"`
	Ready           int              `json:"ready"`
	FinalAction     result.Action    `json:"final_action"`
	FinalConfidence float64          `json:"final_confidence"`
	Error           string           `json:"error,omitempty"`
}

// Summarize flattens job records into report rows, keeping their order.
func Summarize(jobs []*result.JobRecord) []JobSummary {
	out := make([]JobSummary, 0, len(jobs))
	for _, j := range jobs {
		s := JobSummary{
			JobID:           j.JobID,
			Feature:         j.Descriptor.FeatureName,
			Timestamp:       j.Timestamp,
			Status:          j.Status,
			FinalAction:     j.FinalAction,
			FinalConfidence: j.FinalConfidence,
			Error:           j.Error,
		}
		var test result.TestSummary
		if st := j.Stages.Get(result.StageTest); st != nil && st.Status == result.StageCompleted && st.Decode(&test) == nil {
			s.Scripts = test.TotalScripts
			s.Ready = test.PassedScripts
		}
		out = append(out, s)
	}
	return out
}

// Generate writes a summary of jobs as "table", "markdown" or "json".
func Generate(jobs []*result.JobRecord, format string, w io.Writer) error {
	summaries := Summarize(jobs)
	switch format {
	case "json":
		return writeJSON(summaries, w)
	case "markdown":
		_, err := fmt.Fprintln(w, jobTable(summaries).RenderMarkdown())
		return err
	case "table", "":
		_, err := fmt.Fprintln(w, jobTable(summaries).Render())
		return err
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func jobTable(summaries []JobSummary) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Job", "Feature", "Started", "Status", "Scripts", "Ready", "Action", "Confidence"})
	for _, s := range summaries {
		tw.AppendRow(table.Row{
			s.JobID,
			s.Feature,
			s.Timestamp.Format("2006-01-02 15:04:05"),
			s.Status,
			s.Scripts,
			s.Ready,
			s.FinalAction,
			fmt.Sprintf("%.1f%%", s.FinalConfidence),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 40},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	return tw
}

func writeJSON(v any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
