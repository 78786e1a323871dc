package stats

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no counter exists for the key.
	ErrNotFound = errors.New("no stats recorded")
	// ErrInvalidRange is returned when a range starts after it ends.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrUnknownType is returned by Hit for a type the group does not define.
	ErrUnknownType = errors.New("unknown stats type")
)

// Snapshot is the live view of one counter.
type Snapshot struct {
	Today int64 `json:"today"`
	Sum   int64 `json:"sum"`
}

// DayCount is the archived count of one closed day.
type DayCount struct {
	Day   time.Time `json:"day"`
	Count int64     `json:"count"`
}

// History is a snapshot plus per-day counts ordered by day. Days is nil
// when the query fell back to the current snapshot.
type History struct {
	Snapshot
	Days []DayCount `json:"days,omitempty"`
}

// Query selects either one day or an inclusive range of days. The zero
// Query asks for the current snapshot.
type Query struct {
	From, To time.Time
	single   bool
}

// OnDay queries a single calendar day.
func OnDay(day time.Time) Query {
	return Query{From: day, To: day, single: true}
}

// Between queries the inclusive range [from, to].
func Between(from, to time.Time) Query {
	return Query{From: from, To: to}
}

// IsZero reports whether q selects no date at all.
func (q Query) IsZero() bool {
	return q.From.IsZero() && q.To.IsZero()
}

// Status tags a Result.
type Status int

const (
	StatusFound Status = iota
	StatusNotFound
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Result is what Get returns. Snapshot and Days are set only for
// StatusFound; Reason only for StatusInvalid.
type Result struct {
	Status Status
	Snapshot
	Days   []DayCount
	Reason string
}
