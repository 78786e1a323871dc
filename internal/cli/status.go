package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/runnerr0/tally/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string            `json:"version"`
	Group             string            `json:"group"`
	Driver            string            `json:"driver"`
	DatabasePath      string            `json:"database_path,omitempty"`
	DatabaseSizeBytes int64             `json:"database_size_bytes,omitempty"`
	MainTable         string            `json:"main_table"`
	HistoryTable      string            `json:"history_table"`
	HistoryEnabled    bool              `json:"history_enabled"`
	Timezone          string            `json:"timezone"`
	Types             map[string]string `json:"types"`
	Dedup             string            `json:"dedup"`
	Counters          int64             `json:"counters"`
	HistoryEntries    int64             `json:"history_entries"`
	EventsTotal       int64             `json:"events_total"`
	OldestCounter     string            `json:"oldest_counter,omitempty"`
	LastActivity      string            `json:"last_activity,omitempty"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	return withRuntime(c.globals, c.rt, c.execute)
}

func (c *StatusCommand) execute(ctx context.Context, rt *runtime) error {
	st, err := rt.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	var dbSize int64
	if rt.dbPath != "" {
		dbSize = getDatabaseSize(rt.db, rt.dbPath)
	}

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(rt, st, dbSize)
	}
	return c.printStatusHuman(rt, st, dbSize)
}

func (c *StatusCommand) printStatusHuman(rt *runtime, st *storage.Stats, dbSize int64) error {
	g := rt.group

	fmt.Println("Tally Status")
	fmt.Println("============")
	fmt.Printf("Version:       %s\n", c.version)
	if rt.dbPath != "" {
		fmt.Printf("Database:      %s (%s)\n", rt.dbPath, formatBytes(dbSize))
	} else {
		fmt.Printf("Database:      %s\n", rt.cfg.Storage.Driver)
	}
	fmt.Printf("Group:         %s\n", g.Name)
	tables := rt.store.Tables()
	fmt.Printf("Tables:        %s, %s\n", tables.Main, tables.History)
	if g.HistoryEnabled {
		fmt.Println("History:       enabled")
	} else {
		fmt.Println("History:       disabled")
	}
	loc := rt.svc.Calendar().Location()
	fmt.Printf("Timezone:      %s\n", loc)
	fmt.Printf("Dedup:         %s\n", rt.cfg.Dedup.Backend)

	types := g.Types()
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println()
	fmt.Println("Types:")
	for _, name := range names {
		fmt.Printf("  %-20s %s\n", name, formatDurationHuman(types[name]))
	}

	fmt.Println()
	fmt.Printf("Counters:      %s\n", formatNumber(st.Counters))
	fmt.Printf("History rows:  %s\n", formatNumber(st.HistoryEntries))
	fmt.Printf("Events:        %s\n", formatNumber(st.EventsTotal))
	if st.Counters > 0 {
		fmt.Printf("Oldest:        %s\n", st.OldestCreated.In(loc).Format("2006-01-02"))
		fmt.Printf("Last activity: %s\n", st.NewestActivity.In(loc).Format("2006-01-02 15:04"))
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(rt *runtime, st *storage.Stats, dbSize int64) error {
	g := rt.group
	out := statusJSON{
		Version:           c.version,
		Group:             g.Name,
		Driver:            rt.cfg.Storage.Driver,
		DatabasePath:      rt.dbPath,
		DatabaseSizeBytes: dbSize,
		MainTable:         rt.store.Tables().Main,
		HistoryTable:      rt.store.Tables().History,
		HistoryEnabled:    g.HistoryEnabled,
		Timezone:          rt.svc.Calendar().Location().String(),
		Types:             map[string]string{},
		Dedup:             rt.cfg.Dedup.Backend,
		Counters:          st.Counters,
		HistoryEntries:    st.HistoryEntries,
		EventsTotal:       st.EventsTotal,
	}

	for name, ttl := range g.Types() {
		out.Types[name] = ttl.String()
	}

	if st.Counters > 0 {
		out.OldestCounter = st.OldestCreated.UTC().Format(time.RFC3339)
		out.LastActivity = st.NewestActivity.UTC().Format(time.RFC3339)
	}

	return printJSON(out)
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. Otherwise it queries
// page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}

	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
