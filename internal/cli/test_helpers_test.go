package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	goflags "github.com/jessevdk/go-flags"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/runnerr0/tally/internal/config"
	"github.com/runnerr0/tally/internal/stats"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// writeTestConfig writes a config whose database lives in a temp dir and
// returns its path. extra is appended verbatim.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := "storage:\n  path: " + dir + "\n" + extra
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// newTestRuntime opens a runtime on a temp SQLite database using the
// default group in UTC, with the service driven by clock.
func newTestRuntime(t *testing.T, clock clockwork.Clock) *runtime {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = t.TempDir()
	def := cfg.Stats[config.DefaultGroup]
	def.Timezone = "UTC"
	cfg.Stats[config.DefaultGroup] = def

	group, err := cfg.Group("")
	require.NoError(t, err)

	rt := &runtime{cfg: cfg, group: group, logger: zap.NewNop(), registry: prometheus.NewRegistry()}
	require.NoError(t, rt.open(context.Background(), stats.WithClock(clock)))
	t.Cleanup(func() { rt.Close() })
	return rt
}

// parseOnly parses args without executing the matched command.
func parseOnly(t *testing.T, args ...string) (*GlobalFlags, *commands, error) {
	t.Helper()
	parser, globals, cmds := buildParser("test")
	parser.CommandHandler = func(goflags.Commander, []string) error { return nil }
	_, err := parser.ParseArgs(args)
	return globals, cmds, err
}
