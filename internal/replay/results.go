package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Result is the outcome of one script call.
type Result struct {
	Line    int            `json:"line"`
	Op      string         `json:"op"`
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Class   string         `json:"class,omitempty"`
	Soft    bool           `json:"soft,omitempty"`
	Outputs map[string]any `json:"outputs,omitempty"`
}

// ResultWriter receives results in script order.
type ResultWriter interface {
	WriteResult(res Result) error
}

// JSONLResults writes results as JSON lines, replacing any previous file.
type JSONLResults struct {
	file   *os.File
	writer *bufio.Writer
	enc    *json.Encoder
}

var _ ResultWriter = (*JSONLResults)(nil)

func NewJSONLResults(path string) (*JSONLResults, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	writer := bufio.NewWriter(file)
	return &JSONLResults{file: file, writer: writer, enc: json.NewEncoder(writer)}, nil
}

func (r *JSONLResults) WriteResult(res Result) error {
	if err := r.enc.Encode(res); err != nil {
		return fmt.Errorf("write result of line %d: %w", res.Line, err)
	}
	return nil
}

// Close flushes buffered results and closes the file.
func (r *JSONLResults) Close() error {
	if err := r.writer.Flush(); err != nil {
		r.file.Close()
		return fmt.Errorf("flush results: %w", err)
	}
	return r.file.Close()
}
