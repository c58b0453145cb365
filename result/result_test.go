package result_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evalgrid/evalgrid"
	"github.com/evalgrid/evalgrid/result"
)

func res(datumID, variationID, payload string) evalgrid.Result {
	return evalgrid.Result{
		Key:     evalgrid.Key{DatumID: datumID, VariationID: variationID},
		Payload: payload,
	}
}

func TestSetMerge(t *testing.T) {
	tests := []struct {
		name    string
		batches [][]evalgrid.Result
		expErr  bool
		expKeys []evalgrid.Key
	}{
		{
			name: "Merging batches of different tasks should accumulate every entry.",
			batches: [][]evalgrid.Result{
				{res("d0", "v0", "a"), res("d0", "v1", "b")},
				{res("d1", "v0", "c"), res("d1", "v1", "d")},
			},
			expKeys: []evalgrid.Key{
				{DatumID: "d0", VariationID: "v0"},
				{DatumID: "d0", VariationID: "v1"},
				{DatumID: "d1", VariationID: "v0"},
				{DatumID: "d1", VariationID: "v1"},
			},
		},
		{
			name: "Merging a batch with an already present key should reject the whole batch.",
			batches: [][]evalgrid.Result{
				{res("d0", "v0", "a")},
				{res("d0", "v1", "b"), res("d0", "v0", "dup")},
			},
			expErr: true,
			expKeys: []evalgrid.Key{
				{DatumID: "d0", VariationID: "v0"},
			},
		},
		{
			name: "Merging a batch that duplicates a key within itself should leave the set untouched.",
			batches: [][]evalgrid.Result{
				{res("d0", "v0", "a"), res("d0", "v0", "b")},
			},
			expErr:  true,
			expKeys: []evalgrid.Key{},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := assert.New(t)

			set := result.NewSet()
			var lastErr error
			for _, batch := range test.batches {
				lastErr = set.Merge(batch)
			}

			if test.expErr {
				assert.Error(lastErr)
			} else {
				assert.NoError(lastErr)
			}
			assert.Equal(test.expKeys, set.Keys())
			assert.Equal(len(test.expKeys), set.Len())
		})
	}
}

func TestSetLookup(t *testing.T) {
	assert := assert.New(t)

	set := result.NewSet()
	err := set.Merge([]evalgrid.Result{res("d0", "v0", "payload")})
	assert.NoError(err)

	got, ok := set.Lookup(evalgrid.Key{DatumID: "d0", VariationID: "v0"})
	assert.True(ok)
	assert.Equal("payload", got.Payload)

	_, ok = set.Lookup(evalgrid.Key{DatumID: "d0", VariationID: "missing"})
	assert.False(ok)
}

func TestSetResultsOrdered(t *testing.T) {
	assert := assert.New(t)

	set := result.NewSet()
	assert.NoError(set.Merge([]evalgrid.Result{res("d1", "v1", ""), res("d1", "v0", "")}))
	assert.NoError(set.Merge([]evalgrid.Result{res("d0", "v1", ""), res("d0", "v0", "")}))

	rs := set.Results()
	exp := []evalgrid.Key{
		{DatumID: "d0", VariationID: "v0"},
		{DatumID: "d0", VariationID: "v1"},
		{DatumID: "d1", VariationID: "v0"},
		{DatumID: "d1", VariationID: "v1"},
	}
	got := make([]evalgrid.Key, 0, len(rs))
	for _, r := range rs {
		got = append(got, r.Key)
	}
	assert.Equal(exp, got)
}

func TestSetFailures(t *testing.T) {
	assert := assert.New(t)

	wantedErr := errors.New("wanted error")
	set := result.NewSet()
	set.Fail("d7", wantedErr)

	fs := set.Failures()
	assert.Len(fs, 1)
	assert.Equal("d7", fs[0].DatumID)
	assert.Equal(wantedErr, fs[0].Err)
	assert.Equal(0, set.Len())

	// The returned slice is a copy, mutating it must not leak back.
	fs[0].DatumID = "mutated"
	assert.Equal("d7", set.Failures()[0].DatumID)
}

func TestSetConcurrentMerge(t *testing.T) {
	assert := assert.New(t)

	set := result.NewSet()

	const tasks = 50
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			datumID := fmt.Sprintf("d%03d", i)
			err := set.Merge([]evalgrid.Result{
				res(datumID, "v0", ""),
				res(datumID, "v1", ""),
			})
			assert.NoError(err)
		}(i)
	}
	wg.Wait()

	assert.Equal(tasks*2, set.Len())
}
