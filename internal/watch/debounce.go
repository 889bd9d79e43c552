package watch

import (
	"context"
	"sync"
	"time"
)

// DefaultDebounce is how long input must settle before the debounced
// fetch runs.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer delays a side-effecting fetch until input stops changing.
// Each Trigger cancels the previous pending run; only the last input
// within the window is acted on. Used for on-demand quote refresh
// after user input, not for streaming state.
type Debouncer struct {
	delay time.Duration
	fn    func(ctx context.Context, input string)

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewDebouncer creates a Debouncer invoking fn after input settles for
// delay (default 500ms).
func NewDebouncer(delay time.Duration, fn func(ctx context.Context, input string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		delay:  delay,
		fn:     fn,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Trigger schedules a run for the given input, cancelling any pending
// run scheduled by an earlier Trigger.
func (d *Debouncer) Trigger(input string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		closed := d.closed
		d.mu.Unlock()
		if closed {
			return
		}
		d.fn(d.ctx, input)
	})
}

// Close cancels any pending run and the context passed to fn. A timer
// that fires after Close is a no-op.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.cancel()
}
