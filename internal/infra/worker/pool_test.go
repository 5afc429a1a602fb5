//go:build !integration

package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"coldmail-copywriter/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestPool(workers, queue int) *Pool {
	l := zerolog.Nop()
	return NewPool(workers, queue, &l)
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	p := newTestPool(3, 10)
	p.Start(context.Background())
	defer p.Stop()

	var n atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, p.SubmitWait(context.Background(), func(context.Context) error {
			defer wg.Done()
			n.Add(1)
			return nil
		}))
	}
	wg.Wait()
	assert.Equal(t, int32(20), n.Load())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := newTestPool(2, 10)
	p.Start(context.Background())
	defer p.Stop()

	var cur, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		require.NoError(t, p.SubmitWait(context.Background(), func(context.Context) error {
			defer wg.Done()
			c := cur.Add(1)
			for {
				old := peak.Load()
				if c <= old || peak.CompareAndSwap(old, c) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			cur.Add(-1)
			return nil
		}))
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_SubmitReportsFullQueue(t *testing.T) {
	p := newTestPool(1, 1)
	// not started: nothing drains the queue
	require.NoError(t, p.Submit(func(context.Context) error { return nil }))
	assert.ErrorIs(t, p.Submit(func(context.Context) error { return nil }), domain.ErrQueueFull)
	p.Stop()
	assert.ErrorIs(t, p.Submit(func(context.Context) error { return nil }), ErrPoolStopped)
}

func TestPool_SubmitWaitHonoursContext(t *testing.T) {
	p := newTestPool(1, 1)
	defer p.Stop()
	require.NoError(t, p.Submit(func(context.Context) error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.SubmitWait(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_RecoversFromPanics(t *testing.T) {
	p := newTestPool(1, 2)
	p.Start(context.Background())
	defer p.Stop()

	done := make(chan struct{})
	require.NoError(t, p.SubmitWait(context.Background(), func(context.Context) error { panic("boom") }))
	require.NoError(t, p.SubmitWait(context.Background(), func(context.Context) error {
		close(done)
		return nil
	}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after a panic")
	}
}

func TestPool_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := newTestPool(2, 2)
	p.Start(ctx)
	cancel()
	p.Stop()
}

type recordingProcessor struct {
	mu  sync.Mutex
	ids []string
	wg  *sync.WaitGroup
}

func (r *recordingProcessor) Process(_ context.Context, id string) error {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
	r.wg.Done()
	return nil
}

func TestPoolDispatcher_PreservesOrderWithOneWorker(t *testing.T) {
	p := newTestPool(1, 1)
	p.Start(context.Background())
	defer p.Stop()

	var wg sync.WaitGroup
	rec := &recordingProcessor{wg: &wg}
	d := NewPoolDispatcher(p, rec)
	want := []string{"a", "b", "c", "d", "e"}
	wg.Add(len(want))
	for _, id := range want {
		require.NoError(t, d.Dispatch(context.Background(), id))
	}
	wg.Wait()
	assert.Equal(t, want, rec.ids)
}
