/*
Package datasource implements the data-source collaborator: it produces
finite, restartable sequences of datum batches, re-read and re-batched
per call.
*/
package datasource

import (
	"context"

	"github.com/evalgrid/evalgrid"
)

const defaultBatchSize = 50

// Source produces the datum batches of a run. Batches must be
// restartable: every call re-reads the underlying data.
type Source interface {
	Batches(ctx context.Context) ([][]evalgrid.Datum, error)
}

// BuildTasks reads every batch from the source and pairs each datum with
// the full variation set, one task per datum.
func BuildTasks(ctx context.Context, src Source, variations []evalgrid.Variation) ([]evalgrid.Task, error) {
	batches, err := src.Batches(ctx)
	if err != nil {
		return nil, err
	}

	var tasks []evalgrid.Task
	for _, batch := range batches {
		for _, d := range batch {
			tasks = append(tasks, evalgrid.Task{
				Datum:      d,
				Variations: variations,
			})
		}
	}

	return tasks, nil
}

func batch(data []evalgrid.Datum, size int) [][]evalgrid.Datum {
	if size <= 0 {
		size = defaultBatchSize
	}

	var batches [][]evalgrid.Datum
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		batches = append(batches, data[:n])
		data = data[n:]
	}

	return batches
}
