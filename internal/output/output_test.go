package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coinsync/coinsync/internal/core"
)

func sampleReport() *core.SyncReport {
	return &core.SyncReport{
		RunID:     "run-1",
		Job:       "kraken-sync",
		Total:     10,
		Processed: 10,
		Mapped:    2,
		Failed:    8,
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:  90 * time.Second,
		Mapping: map[string]core.ExchangeListing{
			"bitcoin": {
				Exchange: "kraken",
				PairName: "XXBTZUSD",
				Base:     "XBT",
				Target:   "USD",
				AltName:  "XBTUSD",
			},
			"ethereum": {
				Exchange: "kraken",
				PairName: "XETHZUSD",
				Base:     "ETH",
				Target:   "USD",
				AltName:  "ETHUSD",
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat(" JSON ")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestTableFormatReport(t *testing.T) {
	rendered, err := (&TableFormatter{}).FormatReport(sampleReport())
	require.NoError(t, err)

	require.Contains(t, rendered, "XXBTZUSD")
	require.Contains(t, rendered, "XETHZUSD")
	require.Contains(t, rendered, "2/10 mapped, 8 failed")

	// Rows come out in coin id order.
	require.Less(t, strings.Index(rendered, "bitcoin"), strings.Index(rendered, "ethereum"))
}

func TestTableFormatReportResumed(t *testing.T) {
	report := sampleReport()
	report.Resumed = true

	rendered, err := (&TableFormatter{}).FormatReport(report)
	require.NoError(t, err)
	require.Contains(t, rendered, "(resumed)")
}

func TestTableFormatCheckpoints(t *testing.T) {
	checkpoints := map[string]*core.Checkpoint{
		"kraken-sync": {
			Status:             core.CheckpointInProgress,
			TotalEntities:      100,
			ProcessedCount:     40,
			LastProcessedIndex: 39,
			StartedAt:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			LastCheckpointAt:   time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
		},
	}

	rendered, err := (&TableFormatter{}).FormatCheckpoints(checkpoints)
	require.NoError(t, err)
	require.Contains(t, rendered, "kraken-sync")
	require.Contains(t, rendered, "in-progress")
	require.Contains(t, rendered, "40/100")
}

func TestTableFormatCheckpointsEmpty(t *testing.T) {
	rendered, err := (&TableFormatter{}).FormatCheckpoints(nil)
	require.NoError(t, err)
	require.Equal(t, "no checkpoints found", rendered)
}

func TestJSONFormatReport(t *testing.T) {
	rendered, err := (&JSONFormatter{Indent: true}).FormatReport(sampleReport())
	require.NoError(t, err)

	var decoded core.SyncReport
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, "kraken-sync", decoded.Job)
	require.Len(t, decoded.Mapping, 2)
	require.Equal(t, "XXBTZUSD", decoded.Mapping["bitcoin"].PairName)
}

func TestNewFormatter(t *testing.T) {
	require.IsType(t, &TableFormatter{}, NewFormatter(FormatTable))
	require.IsType(t, &JSONFormatter{}, NewFormatter(FormatJSON))
}
