package storage

import "time"

// Counter is the live counter record for one (item_id, name) key.
type Counter struct {
	ID      string
	ItemID  string
	Name    string
	Daily   int64     // events since the last rollover
	Sum     int64     // events across all time
	Created time.Time // set once at insertion
	Updated time.Time // zero until the first update after creation
}

// LastActivity returns the later of Created and Updated.
func (c *Counter) LastActivity() time.Time {
	if c.Updated.After(c.Created) {
		return c.Updated
	}
	return c.Created
}

// HistoryEntry is the frozen daily value of a closed day.
type HistoryEntry struct {
	ID      string
	StatID  string
	Counter int64
	Date    time.Time // day-start of the archived day
}

// HistoryRow is a history entry joined with its owning counter.
type HistoryRow struct {
	HistoryEntry
	Stat Counter
}

// Tables names the main and history tables of one stat group.
type Tables struct {
	Main    string
	History string
}

// Stats holds row counts for one pair of tables.
type Stats struct {
	Counters       int64
	HistoryEntries int64
	EventsTotal    int64
	OldestCreated  time.Time
	NewestActivity time.Time
}
