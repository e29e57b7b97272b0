package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	rec := &recorder{}
	h := newHarness(t, time.Date(2026, 5, 12, 19, 0, 0, 0, kst), rec, nil)
	h.guild(t, 1, 100, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Start(ctx, time.Minute) }()

	require.Eventually(t, func() bool { return len(rec.all()) > 0 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
