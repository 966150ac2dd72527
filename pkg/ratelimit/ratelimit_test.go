package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSlidingWindowAllow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	sw := NewSlidingWindow(2, time.Second)
	sw.now = func() time.Time { return now }

	require.True(t, sw.Allow())
	require.True(t, sw.Allow())
	require.False(t, sw.Allow())
	require.Equal(t, 0, sw.Remaining())

	now = now.Add(1100 * time.Millisecond)
	require.Equal(t, 2, sw.Remaining())
	require.True(t, sw.Allow())
}

func TestSlidingWindowWaitHonorsContext(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	require.NoError(t, sw.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, sw.Wait(ctx), context.DeadlineExceeded)
}

func TestUnlimited(t *testing.T) {
	sw := NewSlidingWindow(0, time.Second)
	for i := 0; i < 100; i++ {
		require.True(t, sw.Allow())
	}
	var nilWindow *SlidingWindow
	require.True(t, nilWindow.Allow())
}
