package datasource

import (
	"context"

	"github.com/evalgrid/evalgrid"
)

// Memory is a Source over a fixed in-memory datum slice, mostly used on
// tests and examples.
type Memory struct {
	data      []evalgrid.Datum
	batchSize int
}

// NewMemory returns a restartable source over the received data.
func NewMemory(data []evalgrid.Datum, batchSize int) *Memory {
	return &Memory{
		data:      data,
		batchSize: batchSize,
	}
}

// Batches satisfies Source interface.
func (m *Memory) Batches(_ context.Context) ([][]evalgrid.Datum, error) {
	return batch(m.data, m.batchSize), nil
}
