package buffered

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txdetect/pkg/api"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (r *recorder) flush(txs []*api.DetectedTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(txs))
	for _, t := range txs {
		ids = append(ids, t.ID)
	}
	r.batches = append(r.batches, ids)
	return r.err
}

func (r *recorder) got() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

func TestWrite_FlushesOnBatchSizeAndClose(t *testing.T) {
	rec := &recorder{}
	w := New(rec.flush, Config{BatchSize: 2, FlushInterval: time.Hour}, nil)

	in := make(chan *api.DetectedTransaction)
	done := make(chan error, 1)
	go func() { done <- w.Write(context.Background(), in) }()

	for _, id := range []string{"a", "b", "c"} {
		in <- &api.DetectedTransaction{ID: id}
	}
	in <- nil
	close(in)

	require.NoError(t, <-done)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, rec.got())
	assert.Equal(t, 0, w.BufferLen())
}

func TestWrite_FlushesOnInterval(t *testing.T) {
	rec := &recorder{}
	w := New(rec.flush, Config{BatchSize: 100, FlushInterval: 5 * time.Millisecond}, nil)

	in := make(chan *api.DetectedTransaction, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Write(ctx, in) }()

	in <- &api.DetectedTransaction{ID: "a"}

	require.Eventually(t, func() bool { return len(rec.got()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"a"}, rec.got()[0])
}

func TestWrite_FlushesOnCancel(t *testing.T) {
	rec := &recorder{}
	w := New(rec.flush, Config{BatchSize: 100, FlushInterval: time.Hour}, nil)

	in := make(chan *api.DetectedTransaction)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Write(ctx, in) }()

	in <- &api.DetectedTransaction{ID: "a"}
	require.Eventually(t, func() bool { return w.BufferLen() == 1 }, time.Second, time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, [][]string{{"a"}}, rec.got())
}

func TestWrite_FlushErrorOnClose(t *testing.T) {
	rec := &recorder{err: errors.New("disk full")}
	w := New(rec.flush, Config{BatchSize: 100, FlushInterval: time.Hour}, nil)

	in := make(chan *api.DetectedTransaction, 1)
	in <- &api.DetectedTransaction{ID: "a"}
	close(in)

	assert.EqualError(t, w.Write(context.Background(), in), "disk full")
}

func TestNew_Defaults(t *testing.T) {
	w := New(func([]*api.DetectedTransaction) error { return nil }, Config{}, nil)
	assert.Equal(t, DefaultBatchSize, w.config.BatchSize)
	assert.Equal(t, DefaultFlushInterval, w.config.FlushInterval)
}
