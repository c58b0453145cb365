package datasource

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/evalgrid/evalgrid"
)

// JSONL is a Source over a file with one JSON datum per line. The file is
// re-read on every Batches call so the source is restartable.
type JSONL struct {
	path      string
	batchSize int
}

// NewJSONL returns a source reading the file at path.
func NewJSONL(path string, batchSize int) *JSONL {
	return &JSONL{
		path:      path,
		batchSize: batchSize,
	}
}

type datumRecord struct {
	ID      string            `json:"id"`
	Content string            `json:"content"`
	Meta    map[string]string `json:"meta"`
}

// Batches satisfies Source interface.
func (j *JSONL) Batches(_ context.Context) ([][]evalgrid.Datum, error) {
	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var data []evalgrid.Datum
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec datumRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode dataset line %d: %w", line, err)
		}

		// Missing IDs get a deterministic one so re-reads produce the
		// same datum identity.
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("datum-%d", line)
		}

		data = append(data, evalgrid.Datum{
			ID:      rec.ID,
			Content: rec.Content,
			Meta:    rec.Meta,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	return batch(data, j.batchSize), nil
}
