package throttle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/productr-api/internal/domain"
)

func TestLimiter_BlocksAfterLimit(t *testing.T) {
	l := NewLimiter(NewMemoryCounter(), RequestPrefix, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow(ctx, "user@example.com"))
	}
	err := l.Allow(ctx, "user@example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTooManyRequests))

	// other identifiers are unaffected
	assert.NoError(t, l.Allow(ctx, "other@example.com"))
}

func TestMemoryCounter_WindowResets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCounter()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	n, _ := c.IncrWithExpire(ctx, "k", time.Minute)
	assert.EqualValues(t, 1, n)
	n, _ = c.IncrWithExpire(ctx, "k", time.Minute)
	assert.EqualValues(t, 2, n)

	now = now.Add(time.Minute)
	n, _ = c.IncrWithExpire(ctx, "k", time.Minute)
	assert.EqualValues(t, 1, n)
}

type failingCounter struct{}

func (failingCounter) IncrWithExpire(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func (failingCounter) Count(context.Context, string) (int64, error) {
	return 0, errors.New("redis down")
}

func TestLimiter_CounterError(t *testing.T) {
	err := NewLimiter(failingCounter{}, RequestPrefix, 1, time.Minute).Allow(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrTooManyRequests))
}

func TestLimiter_CheckAndRecord(t *testing.T) {
	c := NewMemoryCounter()
	l := NewLimiter(c, VerifyPrefix, 2, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Check(ctx, "a@b.com"))
	require.NoError(t, l.Record(ctx, "a@b.com"))
	require.NoError(t, l.Check(ctx, "a@b.com"))
	require.NoError(t, l.Record(ctx, "a@b.com"))

	err := l.Check(ctx, "a@b.com")
	assert.True(t, errors.Is(err, domain.ErrTooManyRequests))

	n, _ := c.Count(ctx, VerifyPrefix+"a@b.com")
	assert.EqualValues(t, 2, n, "Check must not add hits")
	n, _ = c.Count(ctx, RequestPrefix+"a@b.com")
	assert.Zero(t, n)
}

func TestMemoryCounter_CountExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCounter()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = c.IncrWithExpire(ctx, "k", time.Minute)
	n, _ := c.Count(ctx, "k")
	assert.EqualValues(t, 1, n)

	now = now.Add(time.Minute)
	n, _ = c.Count(ctx, "k")
	assert.Zero(t, n)
}
