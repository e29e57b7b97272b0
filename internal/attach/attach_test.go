package attach

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = Key{OperatorID: 7, GuildID: 1001, ItemID: 3}

func TestCompleteDeliversURL(t *testing.T) {
	w := New(clockwork.NewFakeClock(), 0, 0)
	token, err := w.Begin(key)
	require.NoError(t, err)

	got, ok := w.Lookup(token)
	require.True(t, ok)
	assert.Equal(t, key, got)
	assert.True(t, w.Open(token))

	require.NoError(t, w.Complete(token, "/images/1001/item-3.jpg"))
	assert.Equal(t, 0, w.Pending())

	assert.False(t, w.Open(token))
	_, ok = w.Lookup(token)
	assert.True(t, ok, "the key stays visible until the result is collected")
	assert.ErrorIs(t, w.Complete(token, "again"), ErrNoWait)

	res, err := w.Wait(context.Background(), token)
	require.NoError(t, err, "a result delivered before the wait is kept")
	assert.Equal(t, Result{Outcome: Attached, URL: "/images/1001/item-3.jpg"}, res)

	_, err = w.Wait(context.Background(), token)
	assert.ErrorIs(t, err, ErrNoWait, "a result is collected once")
}

func TestUncollectedResultExpires(t *testing.T) {
	fake := clockwork.NewFakeClock()
	w := New(fake, time.Minute, 0)
	token, err := w.Begin(key)
	require.NoError(t, err)
	require.NoError(t, w.Cancel(token))

	fake.Advance(time.Minute)
	assert.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(w.byToken) == 0
	}, time.Second, 5*time.Millisecond)

	_, err = w.Wait(context.Background(), token)
	assert.ErrorIs(t, err, ErrNoWait)
}

func TestWaitReceivesOutcome(t *testing.T) {
	w := New(clockwork.NewFakeClock(), 0, 0)
	token, err := w.Begin(key)
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() {
		res, err := w.Wait(context.Background(), token)
		assert.NoError(t, err)
		done <- res
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, w.Complete(token, "/images/x.jpg"))

	select {
	case res := <-done:
		assert.Equal(t, Result{Outcome: Attached, URL: "/images/x.jpg"}, res)
	case <-time.After(time.Second):
		t.Fatal("wait did not return")
	}
}

func TestTimeout(t *testing.T) {
	fake := clockwork.NewFakeClock()
	w := New(fake, 0, 0)
	token, err := w.Begin(key)
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() {
		res, _ := w.Wait(context.Background(), token)
		done <- res
	}()

	fake.Advance(DefaultTimeout - time.Second)
	assert.Equal(t, 1, w.Pending())

	fake.Advance(time.Second)
	select {
	case res := <-done:
		assert.Equal(t, TimedOut, res.Outcome)
	case <-time.After(time.Second):
		t.Fatal("wait did not time out")
	}
	assert.ErrorIs(t, w.Complete(token, "late"), ErrNoWait)
}

func TestBeginReplacesEarlierWait(t *testing.T) {
	w := New(clockwork.NewFakeClock(), 0, 0)
	first, err := w.Begin(key)
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() {
		res, _ := w.Wait(context.Background(), first)
		done <- res
	}()
	time.Sleep(10 * time.Millisecond)

	second, err := w.Begin(key)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, w.Pending())

	select {
	case res := <-done:
		assert.Equal(t, Cancelled, res.Outcome)
	case <-time.After(time.Second):
		t.Fatal("first wait was not cancelled")
	}
}

func TestCancelAndBound(t *testing.T) {
	w := New(clockwork.NewFakeClock(), time.Minute, 2)

	a, err := w.Begin(Key{ItemID: 1})
	require.NoError(t, err)
	_, err = w.Begin(Key{ItemID: 2})
	require.NoError(t, err)

	_, err = w.Begin(Key{ItemID: 3})
	assert.ErrorIs(t, err, ErrTooManyWaits)

	require.NoError(t, w.Cancel(a))
	assert.ErrorIs(t, w.Cancel(a), ErrNoWait)

	_, err = w.Begin(Key{ItemID: 3})
	assert.NoError(t, err)
}

func TestWaitHonoursContext(t *testing.T) {
	w := New(clockwork.NewFakeClock(), 0, 0)
	token, err := w.Begin(key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = w.Wait(ctx, token)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, w.Pending(), "a client giving up leaves the wait open")
}
