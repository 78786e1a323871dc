package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/tally/internal/config"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "view_42_abc", Key("view", "42", "abc"))
}

func TestAllowAll(t *testing.T) {
	ok, err := AllowAll{}.Admit(context.Background(), "k", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryGate_Window(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	g, err := NewMemoryGate(16, "t:", clock)
	require.NoError(t, err)

	ok, err := g.Admit(ctx, "view_42_a", 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "first event opens a visit")

	clock.Advance(20 * time.Minute)
	ok, err = g.Admit(ctx, "view_42_a", 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "inside window")

	// The rejected event extended the window to 12:50.
	clock.Advance(20 * time.Minute)
	ok, err = g.Admit(ctx, "view_42_a", 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "window was extended")

	clock.Advance(30 * time.Minute)
	ok, err = g.Admit(ctx, "view_42_a", 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "marker expired")
}

func TestMemoryGate_ZeroTTLAlwaysAdmits(t *testing.T) {
	g, err := NewMemoryGate(16, "", clockwork.NewFakeClock())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := g.Admit(context.Background(), "k", 0)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Zero(t, g.Len())
}

func TestMemoryGate_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	g, err := NewMemoryGate(16, "", clockwork.NewFakeClock())
	require.NoError(t, err)

	ok, _ := g.Admit(ctx, Key("unique", "42", "a"), time.Minute)
	assert.True(t, ok)
	ok, _ = g.Admit(ctx, Key("unique", "42", "b"), time.Minute)
	assert.True(t, ok)
	ok, _ = g.Admit(ctx, Key("unique", "43", "a"), time.Minute)
	assert.True(t, ok)
	ok, _ = g.Admit(ctx, Key("unique", "42", "a"), time.Minute)
	assert.False(t, ok)
}

func TestMemoryGate_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	g, err := NewMemoryGate(2, "", clockwork.NewFakeClock())
	require.NoError(t, err)

	g.Admit(ctx, "a", time.Hour)
	g.Admit(ctx, "b", time.Hour)
	g.Admit(ctx, "c", time.Hour)
	assert.Equal(t, 2, g.Len())

	ok, _ := g.Admit(ctx, "a", time.Hour)
	assert.True(t, ok, "a was evicted")
}

func TestMemoryGate_Forget(t *testing.T) {
	ctx := context.Background()
	g, err := NewMemoryGate(10, "tally:", clockwork.NewFakeClock())
	require.NoError(t, err)

	ok, _ := g.Admit(ctx, "unique_42_a", time.Hour)
	require.True(t, ok)
	require.NoError(t, g.Forget(ctx, "unique_42_a"))
	assert.Zero(t, g.Len())

	ok, _ = g.Admit(ctx, "unique_42_a", time.Hour)
	assert.True(t, ok, "forgotten marker does not reject")
	assert.NoError(t, g.Forget(ctx, "missing"))
}

func TestNewMemoryGate_BadSize(t *testing.T) {
	_, err := NewMemoryGate(0, "", nil)
	assert.Error(t, err)
}

func newRedisGate(t *testing.T) (*RedisGate, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisGate(client, "tally:"), mr
}

func TestRedisGate_Window(t *testing.T) {
	ctx := context.Background()
	g, mr := newRedisGate(t)

	ok, err := g.Admit(ctx, "unique_42_a", 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("tally:unique_42_a"))

	mr.FastForward(20 * time.Minute)
	ok, err = g.Admit(ctx, "unique_42_a", 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 30*time.Minute, mr.TTL("tally:unique_42_a"), "marker extended")

	mr.FastForward(31 * time.Minute)
	ok, err = g.Admit(ctx, "unique_42_a", 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGate_ZeroTTLStoresNothing(t *testing.T) {
	g, mr := newRedisGate(t)

	ok, err := g.Admit(context.Background(), "view_42_a", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, mr.Keys())
}

func TestRedisGate_Forget(t *testing.T) {
	ctx := context.Background()
	g, mr := newRedisGate(t)

	_, err := g.Admit(ctx, "unique_42_a", 30*time.Minute)
	require.NoError(t, err)
	require.NoError(t, g.Forget(ctx, "unique_42_a"))
	assert.False(t, mr.Exists("tally:unique_42_a"))

	ok, err := g.Admit(ctx, "unique_42_a", 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGate_ServerDown(t *testing.T) {
	g, mr := newRedisGate(t)
	mr.Close()

	_, err := g.Admit(context.Background(), "unique_42_a", time.Minute)
	assert.ErrorContains(t, err, "set marker")
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.DedupConfig{RedisAddr: mr.Addr()}

	client, err := DialRedis(context.Background(), cfg)
	require.NoError(t, err)
	client.Close()

	mr.Close()
	_, err = DialRedis(context.Background(), cfg)
	assert.Error(t, err)
}
