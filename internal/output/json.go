package output

import (
	"encoding/json"

	"github.com/coinsync/coinsync/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatReport renders a sync report as JSON.
func (f *JSONFormatter) FormatReport(report *core.SyncReport) (string, error) {
	if report == nil {
		return "", nil
	}
	return f.marshal(report)
}

// FormatCheckpoints renders stored checkpoints as JSON keyed by job.
func (f *JSONFormatter) FormatCheckpoints(checkpoints map[string]*core.Checkpoint) (string, error) {
	return f.marshal(checkpoints)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
