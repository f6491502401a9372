package membercache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryFresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := Entry{Present: true, CheckedAt: now.Add(-30 * time.Second)}

	assert.True(t, e.Fresh(now, time.Minute))
	assert.False(t, e.Fresh(now, 10*time.Second))
	assert.False(t, e.Fresh(now, 0), "zero ttl disables reads")
}

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory()

	_, ok, err := c.Get(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Now()
	require.NoError(t, c.Put(ctx, "U1", Entry{Present: true, CheckedAt: at}))
	require.NoError(t, c.Put(ctx, "U1", Entry{Present: false, CheckedAt: at.Add(time.Second)}))

	e, ok, err := c.Get(ctx, "U1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, e.Present, "later check overwrites")
	assert.Equal(t, 1, c.Len())
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisWithClient(client, "", time.Hour)
	t.Cleanup(func() { _ = c.Close() })

	_, ok, err := c.Get(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, c.Put(ctx, "U1", Entry{Present: true, CheckedAt: at}))

	e, ok, err := c.Get(ctx, "U1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, e.Present)
	assert.True(t, at.Equal(e.CheckedAt))

	assert.True(t, mr.Exists(defaultKeyPrefix+"U1"))
	assert.Equal(t, time.Hour, mr.TTL(defaultKeyPrefix+"U1"))
}
