package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/runnerr0/tally/internal/config"
	"github.com/runnerr0/tally/internal/dedup"
	"github.com/runnerr0/tally/internal/logging"
	"github.com/runnerr0/tally/internal/stats"
	"github.com/runnerr0/tally/internal/storage"
)

// runtime bundles everything a command needs for one stats group.
type runtime struct {
	cfg      *config.Config
	group    config.Group
	dbPath   string // empty for postgres
	db       *sql.DB
	store    *storage.SQLStore
	svc      *stats.Service
	logger   *zap.Logger
	registry *prometheus.Registry
	closers  []func() error
}

// loadConfig loads --config, or the default config file (created if missing).
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		return config.Load(globals.Config)
	}
	return config.LoadOrCreate()
}

// openRuntime loads config, opens the database and builds the service for
// the group selected by the global flags.
func openRuntime(ctx context.Context, globals *GlobalFlags) (*runtime, error) {
	if globals == nil {
		globals = &GlobalFlags{}
	}

	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}
	group, err := cfg.Group(globals.Group)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Logging
	if logCfg.File, err = cfg.LogPath(); err != nil {
		return nil, err
	}
	var console io.Writer
	if globals.Verbose {
		logCfg.Level = "debug"
		console = os.Stderr
	}
	logger, err := logging.New(logCfg, console)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, group: group, logger: logger, registry: prometheus.NewRegistry()}
	if err := rt.open(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) open(ctx context.Context, extra ...stats.Option) error {
	dsn := rt.cfg.Storage.DSN
	if rt.cfg.Storage.Driver == storage.DriverSQLite {
		path, err := rt.cfg.Storage.SQLitePath()
		if err != nil {
			return err
		}
		rt.dbPath = path
		dsn = storage.SQLiteDSN(path, rt.cfg.Storage.BusyTimeoutMS)
	}

	db, err := storage.Open(ctx, rt.cfg.Storage.Driver, dsn, rt.dbPath)
	if err != nil {
		return err
	}
	rt.db = db
	rt.closers = append(rt.closers, db.Close)

	tables := storage.Tables{Main: rt.group.MainTable, History: rt.group.HistoryTable}
	store, err := storage.OpenStore(db, rt.cfg.Storage.Driver, tables)
	if err != nil {
		return err
	}
	rt.store = store
	rt.closers = append(rt.closers, store.Close)

	gate, err := rt.openGate(ctx)
	if err != nil {
		return err
	}

	opts := append([]stats.Option{
		stats.WithLogger(rt.logger),
		stats.WithMetrics(stats.NewMetrics(rt.registry)),
		stats.WithGate(gate),
	}, extra...)
	rt.svc = stats.NewService(store, stats.Options{
		Group:          rt.group.Name,
		HistoryEnabled: rt.group.HistoryEnabled,
		Location:       rt.group.Location,
		Types:          rt.group.Types(),
	}, opts...)

	rt.logger.Debug("runtime ready",
		zap.String("group", rt.group.Name),
		zap.String("driver", rt.cfg.Storage.Driver),
		zap.String("main_table", tables.Main),
		zap.String("history_table", tables.History),
		zap.String("dedup", rt.cfg.Dedup.Backend))
	return nil
}

func (rt *runtime) openGate(ctx context.Context) (dedup.Gate, error) {
	d := rt.cfg.Dedup
	switch d.Backend {
	case "redis":
		client, err := dedup.DialRedis(ctx, d)
		if err != nil {
			return nil, err
		}
		gate := dedup.NewRedisGate(client, d.KeyPrefix)
		rt.closers = append(rt.closers, gate.Close)
		return gate, nil
	case "memory":
		return dedup.NewMemoryGate(d.MemorySize, d.KeyPrefix, nil)
	default:
		return dedup.AllowAll{}, nil
	}
}

// Close writes the metrics textfile (when configured) and releases all
// resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var firstErr error
	if path := rt.cfg.Metrics.Textfile; path != "" && rt.svc != nil {
		if err := prometheus.WriteToTextfile(path, rt.registry); err != nil {
			firstErr = fmt.Errorf("write metrics: %w", err)
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = rt.logger.Sync()
	return firstErr
}

// withRuntime runs fn against an injected runtime, or one opened from config.
func withRuntime(globals *GlobalFlags, injected *runtime, fn func(context.Context, *runtime) error) error {
	ctx := context.Background()
	if injected != nil {
		return fn(ctx, injected)
	}

	rt, err := openRuntime(ctx, globals)
	if err != nil {
		return err
	}
	err = fn(ctx, rt)
	if cerr := rt.Close(); err == nil {
		err = cerr
	}
	return err
}

// formatDurationHuman formats a duration into a human-readable string like "30 minutes".
func formatDurationHuman(d time.Duration) string {
	if d <= 0 {
		return "always counted"
	}
	days := int(d.Hours() / 24)
	if days > 0 && d%(24*time.Hour) == 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 && d%time.Hour == 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(d.Minutes())
	if minutes > 0 && d%time.Minute == 0 {
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return d.String()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
