package results

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrRetryInFlight is returned when a retry is requested while another is running.
	ErrRetryInFlight = errors.New("a retry is already in progress")
	// ErrIndexOutOfRange is returned for indices outside the current set.
	ErrIndexOutOfRange = errors.New("result index out of range")
	// ErrMissingImage is returned when retrying a result that has no image reference.
	ErrMissingImage = errors.New("result has no image to retry")
	// ErrStaleResult is returned when the set was replaced while a retry was in flight.
	ErrStaleResult = errors.New("results changed while retry was in flight")
	// ErrNoResults is returned by Load when the backend has nothing graded yet.
	ErrNoResults = errors.New("no results found")
)

// Backend is the part of the grading service the controller depends on.
// token is the caller's session credential; it is never stored by the controller.
type Backend interface {
	Results(ctx context.Context, token string) ([]Result, error)
	RetryImage(ctx context.Context, token, image string) (Patch, error)
}

// idle is the value of the active slot when no retry is running.
const idle = -1

// Controller owns one page's result set and serializes per-item retries
// through a single active-index slot.
type Controller struct {
	backend Backend

	mu         sync.Mutex
	set        Set
	generation uint64
	active     int
	loaded     bool
}

// NewController creates an idle controller with no results.
func NewController(backend Backend) *Controller {
	return &Controller{backend: backend, active: idle}
}

// Snapshot is a consistent view of the controller for rendering.
type Snapshot struct {
	Results Set
	// Active is the index currently being retried, or -1.
	Active int
	// Loaded is false until results were fetched or replaced at least once.
	Loaded bool
}

// Retrying reports whether index i is the one in flight.
func (s Snapshot) Retrying(i int) bool {
	return s.Active == i
}

// Snapshot returns the current results and retry state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Results: c.set, Active: c.active, Loaded: c.loaded}
}

// Active returns the index being retried and whether a retry is in flight.
func (c *Controller) Active() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != idle
}

// Replace swaps the whole result set, e.g. after a fresh upload.
// A retry still in flight for the old set will be discarded.
func (c *Controller) Replace(rs []Result) {
	c.replace(NewSet(rs))
}

// Reset drops all results so the next page view loads them again.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = nil
	c.generation++
	c.loaded = false
}

func (c *Controller) replace(s Set) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = s
	c.generation++
	c.loaded = true
}

// Load fetches all results from the backend and replaces the set wholesale.
// On failure the previous set is left untouched.
func (c *Controller) Load(ctx context.Context, token string) error {
	rs, err := c.backend.Results(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to fetch results: %w", err)
	}
	c.Replace(rs)
	if len(rs) == 0 {
		return ErrNoResults
	}
	return nil
}

// Retry re-runs grading for the image at index i and patches only that entry.
// The controller always returns to idle, whatever the outcome.
func (c *Controller) Retry(ctx context.Context, token string, i int) (*Result, error) {
	image, gen, err := c.begin(i)
	if err != nil {
		return nil, err
	}
	defer c.finish()

	patch, err := c.backend.RetryImage(ctx, token, image)
	if err != nil {
		return nil, fmt.Errorf("retry of image %d failed: %w", i+1, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return nil, ErrStaleResult
	}
	next, err := c.set.With(i, patch)
	if err != nil {
		return nil, err
	}
	c.set = next
	return next[i], nil
}

// begin claims the active slot for index i.
func (c *Controller) begin(i int) (string, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != idle {
		return "", 0, ErrRetryInFlight
	}
	r := c.set.At(i)
	if r == nil {
		return "", 0, ErrIndexOutOfRange
	}
	if !r.HasImage() {
		return "", 0, ErrMissingImage
	}
	c.active = i
	return r.Image, c.generation, nil
}

func (c *Controller) finish() {
	c.mu.Lock()
	c.active = idle
	c.mu.Unlock()
}
