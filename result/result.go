/*
Package result accumulates the per-task result batches of a run into one
complete, duplicate-free collection, regardless of completion order.
*/
package result

import (
	"fmt"
	"sort"
	"sync"

	"github.com/evalgrid/evalgrid"
)

// ProgressFunc receives (completed tasks, total tasks) updates. It is
// purely observational, there is no backpressure from it onto the run.
type ProgressFunc func(completed, total int)

// Failure records a datum whose task reached a fatal state. The datum
// contributes no entries to the set, but its failure is accounted for.
type Failure struct {
	DatumID string
	Err     error
}

// Set is the full collection of results of a run, keyed by the
// (datum, variation) pair. Safe for concurrent use.
type Set struct {
	mu       sync.Mutex
	results  map[evalgrid.Key]evalgrid.Result
	failures []Failure
}

// NewSet returns an empty result set.
func NewSet() *Set {
	return &Set{
		results: map[evalgrid.Key]evalgrid.Result{},
	}
}

// Merge adds the full result batch of one completed task. The merge is
// all-or-nothing: a duplicate key rejects the whole batch, no partial
// task ever enters the set.
func (s *Set) Merge(results []evalgrid.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range results {
		if _, ok := s.results[r.Key]; ok {
			return fmt.Errorf("duplicate result for datum %q variation %q", r.Key.DatumID, r.Key.VariationID)
		}
	}

	for _, r := range results {
		s.results[r.Key] = r
	}

	return nil
}

// Fail records a fatal task outcome for the datum.
func (s *Set) Fail(datumID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures = append(s.failures, Failure{DatumID: datumID, Err: err})
}

// Len returns the number of (datum, variation) results in the set.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.results)
}

// Lookup returns the result for the key, if present.
func (s *Set) Lookup(k evalgrid.Key) (evalgrid.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.results[k]
	return r, ok
}

// Results returns a copy of all the results of the set, ordered by key so
// the output is stable.
func (s *Set) Results() []evalgrid.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := make([]evalgrid.Result, 0, len(s.results))
	for _, r := range s.results {
		rs = append(rs, r)
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Key.DatumID != rs[j].Key.DatumID {
			return rs[i].Key.DatumID < rs[j].Key.DatumID
		}
		return rs[i].Key.VariationID < rs[j].Key.VariationID
	})

	return rs
}

// Keys returns the key set of the collection, ordered.
func (s *Set) Keys() []evalgrid.Key {
	rs := s.Results()

	keys := make([]evalgrid.Key, 0, len(rs))
	for _, r := range rs {
		keys = append(keys, r.Key)
	}

	return keys
}

// Failures returns a copy of the fatal task outcomes of the run.
func (s *Set) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := make([]Failure, len(s.failures))
	copy(fs, s.failures)
	return fs
}
