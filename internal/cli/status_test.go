package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_EmptyDB(t *testing.T) {
	rt := newTestRuntime(t, clockwork.NewFakeClock())
	cmd := &StatusCommand{globals: &GlobalFlags{}, version: "dev", rt: rt}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	assert.Contains(t, output, "Tally Status")
	assert.Contains(t, output, "Version:       dev")
	assert.Contains(t, output, "Group:         default")
	assert.Contains(t, output, "Tables:        stats, stats_history")
	assert.Contains(t, output, "History:       enabled")
	assert.Contains(t, output, "Timezone:      UTC")
	assert.Contains(t, output, "Dedup:         memory")
	assert.Contains(t, output, "unique               30 minutes")
	assert.Contains(t, output, "view                 always counted")
	assert.Contains(t, output, "Counters:      0")
	assert.NotContains(t, output, "Oldest:")
}

func TestStatus_WithData(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	rt := newTestRuntime(t, clock)
	ctx := context.Background()

	for _, item := range []string{"1", "2", "3"} {
		_, err := rt.svc.Record(ctx, item, "view")
		require.NoError(t, err)
	}
	clock.Advance(24 * time.Hour)
	_, err := rt.svc.Record(ctx, "1", "view")
	require.NoError(t, err)

	cmd := &StatusCommand{globals: &GlobalFlags{}, version: "dev", rt: rt}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	assert.Contains(t, output, "Counters:      3")
	assert.Contains(t, output, "History rows:  1")
	assert.Contains(t, output, "Events:        4")
	assert.Contains(t, output, "Oldest:        2024-03-01")
	assert.Contains(t, output, "Last activity: 2024-03-02 10:00")
}

func TestStatus_JSON(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	rt := newTestRuntime(t, clock)
	_, err := rt.svc.Record(context.Background(), "42", "view")
	require.NoError(t, err)

	cmd := &StatusCommand{globals: &GlobalFlags{JSON: true}, version: "dev", rt: rt}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	var got statusJSON
	require.NoError(t, json.Unmarshal([]byte(output), &got))
	assert.Equal(t, "dev", got.Version)
	assert.Equal(t, "sqlite3", got.Driver)
	assert.NotEmpty(t, got.DatabasePath)
	assert.Greater(t, got.DatabaseSizeBytes, int64(0))
	assert.Equal(t, "stats", got.MainTable)
	assert.Equal(t, "stats_history", got.HistoryTable)
	assert.True(t, got.HistoryEnabled)
	assert.Equal(t, "UTC", got.Timezone)
	assert.Equal(t, map[string]string{"unique": "30m0s", "view": "0s"}, got.Types)
	assert.Equal(t, int64(1), got.Counters)
	assert.Equal(t, int64(1), got.EventsTotal)
	assert.Equal(t, "2024-03-01T10:00:00Z", got.OldestCounter)
	assert.Equal(t, "2024-03-01T10:00:00Z", got.LastActivity)
}

func TestStatus_EndToEnd(t *testing.T) {
	cfgPath := writeTestConfig(t, `
stats:
  blog:
    main_table: blog_stats
    history_table: blog_history
    history_enabled: false
    timezone: UTC
`)

	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("test", []string{"--config", cfgPath, "--group", "blog", "status"})
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Group:         blog")
	assert.Contains(t, output, "Tables:        blog_stats, blog_history")
	assert.Contains(t, output, "History:       disabled")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
	assert.Equal(t, "1.0 GB", formatBytes(1<<30))
}
