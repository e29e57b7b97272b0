// Package attach holds short-lived waits for an item image. An operator
// opens a wait for an item; the image arrives later on a separate request
// and completes it, or the wait is cancelled or times out.
package attach

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultTimeout is how long a wait stays open.
const DefaultTimeout = 120 * time.Second

// DefaultMaxPending bounds the number of open waits.
const DefaultMaxPending = 64

// Outcome is how a wait ended.
type Outcome string

const (
	Attached  Outcome = "attached"
	Cancelled Outcome = "cancelled"
	TimedOut  Outcome = "timed_out"
)

var (
	ErrNoWait       = errors.New("no open wait for token")
	ErrTooManyWaits = errors.New("too many open image waits")
)

// Key identifies what a wait is for. One operator has at most one open
// wait per item.
type Key struct {
	OperatorID int64
	GuildID    int64
	ItemID     int64
}

// Result is delivered once per wait.
type Result struct {
	Outcome Outcome `json:"outcome"`
	URL     string  `json:"url,omitempty"`
}

type wait struct {
	key      Key
	token    string
	done     chan Result
	timer    clockwork.Timer
	finished bool
}

// Waiter tracks open waits.
type Waiter struct {
	clock   clockwork.Clock
	timeout time.Duration
	max     int

	mu sync.Mutex
	// byToken holds open waits and finished ones not yet collected; byKey
	// holds open waits only.
	byToken map[string]*wait
	byKey   map[Key]*wait
}

// New creates a Waiter. Zero values select the defaults.
func New(clk clockwork.Clock, timeout time.Duration, maxPending int) *Waiter {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	return &Waiter{
		clock:   clk,
		timeout: timeout,
		max:     maxPending,
		byToken: make(map[string]*wait),
		byKey:   make(map[Key]*wait),
	}
}

// Timeout returns the wait window.
func (w *Waiter) Timeout() time.Duration { return w.timeout }

// Begin opens a wait for key and returns its token. An earlier wait for the
// same key is cancelled.
func (w *Waiter) Begin(key Key) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if old, ok := w.byKey[key]; ok {
		w.finishLocked(old, Result{Outcome: Cancelled})
	}
	if len(w.byKey) >= w.max {
		return "", ErrTooManyWaits
	}

	wt := &wait{key: key, token: uuid.NewString(), done: make(chan Result, 1)}
	wt.timer = w.clock.AfterFunc(w.timeout, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.byToken[wt.token] == wt && !wt.finished {
			w.finishLocked(wt, Result{Outcome: TimedOut})
		}
	})
	w.byToken[wt.token] = wt
	w.byKey[key] = wt
	return wt.token, nil
}

// Lookup returns the key of a wait that is open or finished but not yet
// collected.
func (w *Waiter) Lookup(token string) (Key, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wt, ok := w.byToken[token]
	if !ok {
		return Key{}, false
	}
	return wt.key, true
}

// Open reports whether the wait for token still accepts an image.
func (w *Waiter) Open(token string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	wt, ok := w.byToken[token]
	return ok && !wt.finished
}

// Complete ends a wait with the stored image URL.
func (w *Waiter) Complete(token, url string) error {
	return w.finish(token, Result{Outcome: Attached, URL: url})
}

// Cancel ends a wait without an image.
func (w *Waiter) Cancel(token string) error {
	return w.finish(token, Result{Outcome: Cancelled})
}

// Wait blocks until the wait for token ends or ctx is done. The result of
// a finished wait is kept for one more timeout window and can be collected
// once.
func (w *Waiter) Wait(ctx context.Context, token string) (Result, error) {
	w.mu.Lock()
	wt, ok := w.byToken[token]
	w.mu.Unlock()
	if !ok {
		return Result{}, ErrNoWait
	}

	select {
	case res := <-wt.done:
		w.mu.Lock()
		if w.byToken[token] == wt {
			delete(w.byToken, token)
		}
		w.mu.Unlock()
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Pending returns the number of open waits.
func (w *Waiter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.byKey)
}

func (w *Waiter) finish(token string, res Result) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	wt, ok := w.byToken[token]
	if !ok || wt.finished {
		return ErrNoWait
	}
	w.finishLocked(wt, res)
	return nil
}

// finishLocked closes wt with res and schedules removal of the uncollected
// result. Callers hold mu.
func (w *Waiter) finishLocked(wt *wait, res Result) {
	wt.timer.Stop()
	wt.finished = true
	if w.byKey[wt.key] == wt {
		delete(w.byKey, wt.key)
	}
	wt.done <- res
	wt.timer = w.clock.AfterFunc(w.timeout, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.byToken[wt.token] == wt {
			delete(w.byToken, wt.token)
		}
	})
}
