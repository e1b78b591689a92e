package output

import (
	"fmt"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/coinsync/coinsync/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatReport renders a sync report as a summary plus the mapped pairs.
func (f *TableFormatter) FormatReport(report *core.SyncReport) (string, error) {
	if report == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Coin", "Pair", "Base", "Target", "Alt Name"})

	ids := make([]string, 0, len(report.Mapping))
	for id := range report.Mapping {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		listing := report.Mapping[id]
		t.AppendRow(table.Row{id, listing.PairName, listing.Base, listing.Target, listing.AltName})
	}

	summary := fmt.Sprintf("%d/%d mapped, %d failed", report.Mapped, report.Total, report.Failed)
	if report.Resumed {
		summary += " (resumed)"
	}
	t.AppendFooter(table.Row{"", "", "", summary, report.Duration.Round(time.Second)})

	return t.Render(), nil
}

// FormatCheckpoints renders stored checkpoints as a table, one row per job.
func (f *TableFormatter) FormatCheckpoints(checkpoints map[string]*core.Checkpoint) (string, error) {
	if len(checkpoints) == 0 {
		return "no checkpoints found", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Job", "Status", "Progress", "Last Index", "Started", "Last Checkpoint"})

	jobs := make([]string, 0, len(checkpoints))
	for job := range checkpoints {
		jobs = append(jobs, job)
	}
	sort.Strings(jobs)

	for _, job := range jobs {
		cp := checkpoints[job]
		if cp == nil {
			continue
		}
		t.AppendRow(table.Row{
			job,
			string(cp.Status),
			fmt.Sprintf("%d/%d", cp.ProcessedCount, cp.TotalEntities),
			cp.LastProcessedIndex,
			cp.StartedAt.Format(time.RFC3339),
			cp.LastCheckpointAt.Format(time.RFC3339),
		})
	}

	return t.Render(), nil
}
