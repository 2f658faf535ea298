package common

import (
	"context"
	stdliberrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Revenue-Intelligence/internal/testutil"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

func TestNewBatchProcessor_Defaults(t *testing.T) {
	bp := NewBatchProcessor[string, string]()
	assert.NotNil(t, bp)
}

func TestProcess_AllSuccessInInputOrder(t *testing.T) {
	bp := NewBatchProcessor[int, int](WithMaxConcurrency(4))
	items := []int{5, 4, 3, 2, 1}
	fn := func(ctx context.Context, item int) (int, error) {
		// later items finish first
		time.Sleep(time.Duration(item) * time.Millisecond)
		return item * 10, nil
	}

	res, err := bp.Process(context.Background(), items, fn)
	require.NoError(t, err)
	assert.Equal(t, 5, res.SuccessCount)
	for i, r := range res.Results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, items[i]*10, r.Result)
	}
}

func TestProcess_FailureIsolated(t *testing.T) {
	bp := NewBatchProcessor[string, string]()
	fn := func(ctx context.Context, item string) (string, error) {
		if item == "bad" {
			return "", stdliberrors.New("failed")
		}
		return item, nil
	}

	res, err := bp.Process(context.Background(), []string{"a", "bad", "c"}, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.FailureCount)
	assert.Equal(t, ItemStatusFailed, res.Results[1].Status)
	assert.Error(t, res.Results[1].Error)
}

func TestProcess_PanicBecomesItemError(t *testing.T) {
	logger := testutil.NewMockLogger()
	bp := NewBatchProcessor[int, int](WithBatchLogger(logger))
	fn := func(ctx context.Context, item int) (int, error) {
		if item == 2 {
			panic("boom")
		}
		return item, nil
	}

	res, err := bp.Process(context.Background(), []int{1, 2, 3}, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.True(t, errors.IsCode(res.Results[1].Error, errors.ErrCodeInternal))
	assert.True(t, logger.HasMessage("error", "batch item panicked"))
}

func TestProcess_ConcurrencyLimit(t *testing.T) {
	var current, peak int32
	bp := NewBatchProcessor[int, int](WithMaxConcurrency(2))
	fn := func(ctx context.Context, item int) (int, error) {
		c := atomic.AddInt32(&current, 1)
		defer atomic.AddInt32(&current, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if c <= p || atomic.CompareAndSwapInt32(&peak, p, c) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return item, nil
	}

	_, err := bp.Process(context.Background(), []int{1, 2, 3, 4, 5, 6}, fn)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestProcess_ItemTimeout(t *testing.T) {
	bp := NewBatchProcessor[int, int](WithItemTimeout(10 * time.Millisecond))
	fn := func(ctx context.Context, item int) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	res, err := bp.Process(context.Background(), []int{1}, fn)
	require.NoError(t, err)
	assert.Equal(t, ItemStatusTimeout, res.Results[0].Status)
	assert.Equal(t, 1, res.TimeoutCount)
}

func TestProcess_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bp := NewBatchProcessor[int, int](WithMaxConcurrency(1))
	fn := func(ctx context.Context, item int) (int, error) {
		return item, ctx.Err()
	}

	res, err := bp.Process(ctx, []int{1, 2, 3}, fn)
	require.NoError(t, err)
	assert.Equal(t, 0, res.SuccessCount)
	assert.Equal(t, 3, res.CancelledCount)
}

func TestProcess_FailedItemRunsOnce(t *testing.T) {
	var calls int32
	bp := NewBatchProcessor[int, int]()
	fn := func(ctx context.Context, item int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, stdliberrors.New("permanent")
	}

	res, err := bp.Process(context.Background(), []int{1}, fn)
	require.NoError(t, err)
	assert.Equal(t, ItemStatusFailed, res.Results[0].Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestProcess_EmptyAndNilFunc(t *testing.T) {
	bp := NewBatchProcessor[int, int]()
	res, err := bp.Process(context.Background(), nil, func(ctx context.Context, item int) (int, error) { return item, nil })
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalCount)
	assert.NotNil(t, res.Results)

	_, err = bp.Process(context.Background(), []int{1}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestProcess_Backpressure(t *testing.T) {
	bp := NewBatchProcessor[int, int](WithBackpressureThreshold(2))
	_, err := bp.Process(context.Background(), []int{1, 2, 3}, func(ctx context.Context, item int) (int, error) { return item, nil })
	require.Error(t, err)
	assert.True(t, stdliberrors.Is(err, ErrBackpressure))
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestProcess_BackpressureSpansConcurrentBatches(t *testing.T) {
	bp := NewBatchProcessor[int, int](WithBackpressureThreshold(3))
	started := make(chan struct{})
	unblock := make(chan struct{})
	var once atomic.Bool
	blocking := func(ctx context.Context, item int) (int, error) {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-unblock
		return item, nil
	}
	quick := func(ctx context.Context, item int) (int, error) { return item, nil }

	done := make(chan error, 1)
	go func() {
		_, err := bp.Process(context.Background(), []int{1, 2}, blocking)
		done <- err
	}()
	<-started

	_, err := bp.Process(context.Background(), []int{3, 4}, quick)
	assert.True(t, stdliberrors.Is(err, ErrBackpressure))
	res, err := bp.Process(context.Background(), []int{5}, quick)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)

	close(unblock)
	require.NoError(t, <-done)
	res, err = bp.Process(context.Background(), []int{3, 4}, quick)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
}

func TestShutdown_WaitsForInFlightBatch(t *testing.T) {
	bp := NewBatchProcessor[int, int]()
	started := make(chan struct{})
	unblock := make(chan struct{})
	var finished atomic.Bool
	go func() {
		_, _ = bp.Process(context.Background(), []int{1}, func(ctx context.Context, item int) (int, error) {
			close(started)
			<-unblock
			finished.Store(true)
			return item, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := bp.Shutdown(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))

	close(unblock)
	require.NoError(t, bp.Shutdown(context.Background()))
	assert.True(t, finished.Load())
}

func TestShutdown_RejectsNewBatches(t *testing.T) {
	bp := NewBatchProcessor[int, int]()
	require.NoError(t, bp.Shutdown(context.Background()))

	_, err := bp.Process(context.Background(), []int{1}, func(ctx context.Context, item int) (int, error) { return item, nil })
	require.Error(t, err)
	assert.True(t, stdliberrors.Is(err, ErrShutdown))
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestProcess_RecordsBatchMetrics(t *testing.T) {
	m := NewInMemoryPipelineMetrics()
	bp := NewBatchProcessor[int, int](WithBatchMetrics(m), WithBatchName("customers"), WithMaxConcurrency(3))
	fn := func(ctx context.Context, item int) (int, error) {
		if item < 0 {
			return 0, stdliberrors.New("negative")
		}
		return item, nil
	}

	_, err := bp.Process(context.Background(), []int{1, -1, 2}, fn)
	require.NoError(t, err)
	batches := m.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, "customers", batches[0].BatchName)
	assert.Equal(t, 3, batches[0].TotalItems)
	assert.Equal(t, 2, batches[0].SuccessItems)
	assert.Equal(t, 1, batches[0].SkippedItems)
	assert.Equal(t, 3, batches[0].MaxConcurrency)
}

func TestItemStatus_String(t *testing.T) {
	assert.Equal(t, "SUCCESS", ItemStatusSuccess.String())
	assert.Equal(t, "TIMEOUT", ItemStatusTimeout.String())
	assert.Equal(t, "UNKNOWN(9)", ItemStatus(9).String())
}
