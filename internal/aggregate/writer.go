package aggregate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"neoswaps/internal/model"
)

// JSONLWriter appends window metrics to a JSONL file. Re-aggregated windows
// are appended again; readers keep the last line per window.
type JSONLWriter struct {
	Path string
}

var _ MetricsWriter = (*JSONLWriter)(nil)

func (w *JSONLWriter) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	if dir := filepath.Dir(w.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(w.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open metrics file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	enc := json.NewEncoder(writer)
	for _, m := range metrics {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("write window metrics: %w", err)
		}
	}
	return writer.Flush()
}
