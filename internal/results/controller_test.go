package results

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend is a scripted Backend. When gate is non-nil, RetryImage blocks
// until a value is received on it.
type fakeBackend struct {
	mu       sync.Mutex
	results  []Result
	loadErr  error
	patch    Patch
	retryErr error
	gate     chan struct{}
	started  chan string
	images   []string
	tokens   []string

	inflight    int
	maxInflight int
}

func (f *fakeBackend) Results(ctx context.Context, token string) ([]Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.results, nil
}

func (f *fakeBackend) RetryImage(ctx context.Context, token, image string) (Patch, error) {
	f.mu.Lock()
	f.images = append(f.images, image)
	f.tokens = append(f.tokens, token)
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	gate, started := f.gate, f.started
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if started != nil {
		started <- image
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Patch{}, ctx.Err()
		}
	}
	return f.patch, f.retryErr
}

func loadedController(t *testing.T, fb *fakeBackend) *Controller {
	t.Helper()
	fb.results = sampleResults()
	c := NewController(fb)
	require.NoError(t, c.Load(context.Background(), "tok"))
	return c
}

func TestController_Load(t *testing.T) {
	t.Run("replaces wholesale", func(t *testing.T) {
		fb := &fakeBackend{results: sampleResults()}
		c := NewController(fb)

		require.NoError(t, c.Load(context.Background(), "tok-1"))
		snap := c.Snapshot()
		assert.True(t, snap.Loaded)
		assert.Equal(t, 3, snap.Results.Len())
		assert.Equal(t, -1, snap.Active)
		assert.Equal(t, []string{"tok-1"}, fb.tokens)
	})

	t.Run("failure keeps previous results", func(t *testing.T) {
		fb := &fakeBackend{}
		c := loadedController(t, fb)
		before := c.Snapshot().Results

		fb.loadErr = errors.New("connection refused")
		err := c.Load(context.Background(), "tok")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")

		after := c.Snapshot().Results
		require.Equal(t, before.Len(), after.Len())
		for i := range before {
			assert.Same(t, before[i], after[i])
		}
	})

	t.Run("empty backend reports no results", func(t *testing.T) {
		c := NewController(&fakeBackend{})
		err := c.Load(context.Background(), "tok")
		assert.ErrorIs(t, err, ErrNoResults)
		assert.True(t, c.Snapshot().Loaded)
	})
}

func TestController_Retry(t *testing.T) {
	t.Run("patches only the retried index", func(t *testing.T) {
		fb := &fakeBackend{patch: Patch{ExtractedText: "The cat sat.", MarkedText: "The cat sat."}}
		c := loadedController(t, fb)
		before := c.Snapshot().Results

		updated, err := c.Retry(context.Background(), "tok", 0)
		require.NoError(t, err)
		assert.Equal(t, "The cat sat.", updated.ExtractedText)
		assert.Empty(t, updated.ErrorTable)
		assert.Equal(t, []string{"a.jpg"}, fb.images)

		after := c.Snapshot().Results
		assert.Same(t, before[1], after[1])
		assert.Same(t, before[2], after[2])
		assert.Equal(t, "She go home.", after[1].ExtractedText)
		assert.Equal(t, before[1].ErrorTable, after[1].ErrorTable)
		assert.Equal(t, "a.jpg", after[0].Image)
	})

	t.Run("failure leaves the previous result intact", func(t *testing.T) {
		fb := &fakeBackend{
			patch:    Patch{ExtractedText: "partial"},
			retryErr: errors.New("status 500"),
		}
		c := loadedController(t, fb)
		before := c.Snapshot().Results

		_, err := c.Retry(context.Background(), "tok", 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "image 2")

		snap := c.Snapshot()
		assert.Equal(t, -1, snap.Active, "controller returns to idle after failure")
		for i := range before {
			assert.Same(t, before[i], snap.Results[i])
		}
		assert.Equal(t, "She go home.", snap.Results[1].ExtractedText)
	})

	t.Run("missing image is rejected without a request", func(t *testing.T) {
		fb := &fakeBackend{}
		c := loadedController(t, fb)

		_, err := c.Retry(context.Background(), "tok", 2)
		assert.ErrorIs(t, err, ErrMissingImage)
		assert.Empty(t, fb.images)
		_, inFlight := c.Active()
		assert.False(t, inFlight)
	})

	t.Run("out of range", func(t *testing.T) {
		c := loadedController(t, &fakeBackend{})
		_, err := c.Retry(context.Background(), "tok", 7)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	})

	t.Run("before load", func(t *testing.T) {
		c := NewController(&fakeBackend{})
		_, err := c.Retry(context.Background(), "tok", 0)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	})
}

func TestController_SingleActiveSlot(t *testing.T) {
	fb := &fakeBackend{
		patch:   Patch{ExtractedText: "fixed"},
		gate:    make(chan struct{}),
		started: make(chan string, 1),
	}
	c := loadedController(t, fb)

	done := make(chan error, 1)
	go func() {
		_, err := c.Retry(context.Background(), "tok", 0)
		done <- err
	}()

	select {
	case img := <-fb.started:
		assert.Equal(t, "a.jpg", img)
	case <-time.After(2 * time.Second):
		t.Fatal("first retry never reached the backend")
	}

	active, inFlight := c.Active()
	assert.True(t, inFlight)
	assert.Equal(t, 0, active)
	assert.True(t, c.Snapshot().Retrying(0))

	// A different index is rejected too: the tracker is a single slot, not a set.
	_, err := c.Retry(context.Background(), "tok", 1)
	assert.ErrorIs(t, err, ErrRetryInFlight)
	_, err = c.Retry(context.Background(), "tok", 0)
	assert.ErrorIs(t, err, ErrRetryInFlight)

	close(fb.gate)
	require.NoError(t, <-done)

	_, inFlight = c.Active()
	assert.False(t, inFlight)

	// Once idle, the next retry goes through.
	fb.mu.Lock()
	fb.gate = nil
	fb.started = nil
	fb.mu.Unlock()
	_, err = c.Retry(context.Background(), "tok", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, fb.images)
}

func TestController_ConcurrentRetriesOneWins(t *testing.T) {
	fb := &fakeBackend{
		patch:   Patch{ExtractedText: "fixed"},
		gate:    make(chan struct{}),
		started: make(chan string, 8),
	}
	c := loadedController(t, fb)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := c.Retry(context.Background(), "tok", idx%2)
			errs <- err
		}(i)
	}

	<-fb.started
	close(fb.gate)
	wg.Wait()
	close(errs)

	var ok, busy int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrRetryInFlight):
			busy++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	// Late callers may succeed after the first one finishes; what matters is
	// that every request that reached the backend held the slot alone.
	assert.GreaterOrEqual(t, ok, 1)
	assert.Equal(t, callers, ok+busy)
	fb.mu.Lock()
	assert.Len(t, fb.images, ok)
	assert.Equal(t, 1, fb.maxInflight)
	fb.mu.Unlock()
}

func TestController_ReplaceDuringRetryDiscardsPatch(t *testing.T) {
	fb := &fakeBackend{
		patch:   Patch{ExtractedText: "late answer"},
		gate:    make(chan struct{}),
		started: make(chan string, 1),
	}
	c := loadedController(t, fb)

	done := make(chan error, 1)
	go func() {
		_, err := c.Retry(context.Background(), "tok", 0)
		done <- err
	}()
	<-fb.started

	c.Replace([]Result{{ExtractedText: "new upload", Image: "z.jpg"}})
	close(fb.gate)

	assert.ErrorIs(t, <-done, ErrStaleResult)
	snap := c.Snapshot()
	require.Equal(t, 1, snap.Results.Len())
	assert.Equal(t, "new upload", snap.Results[0].ExtractedText)
	assert.Equal(t, -1, snap.Active)
}

func TestController_Reset(t *testing.T) {
	c := loadedController(t, &fakeBackend{})
	c.Reset()
	snap := c.Snapshot()
	assert.False(t, snap.Loaded)
	assert.Equal(t, 0, snap.Results.Len())
}
