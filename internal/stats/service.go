// Package stats counts events per (item, name) key with a daily and a
// cumulative tally, archives each closed day, and answers per-day and
// date-range queries.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/runnerr0/tally/internal/dedup"
	"github.com/runnerr0/tally/internal/storage"
)

// Options is the resolved configuration of one stats group.
type Options struct {
	Group          string
	HistoryEnabled bool
	Location       *time.Location
	Types          map[string]time.Duration // dedup type -> window
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithClock replaces the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithGate sets the dedup gate used by Hit. Without one every event is admitted.
func WithGate(g dedup.Gate) Option {
	return func(s *Service) {
		s.gate = g
	}
}

// Service implements recording and querying for one stats group.
type Service struct {
	store          storage.Store
	group          string
	historyEnabled bool
	types          map[string]time.Duration
	cal            Calendar

	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *Metrics
	gate    dedup.Gate
}

// NewService creates a Service over store. opts is copied.
func NewService(store storage.Store, opts Options, options ...Option) *Service {
	types := make(map[string]time.Duration, len(opts.Types))
	for k, v := range opts.Types {
		types[k] = v
	}

	s := &Service{
		store:          store,
		group:          opts.Group,
		historyEnabled: opts.HistoryEnabled,
		types:          types,
		cal:            NewCalendar(opts.Location),
		clock:          clockwork.NewRealClock(),
		logger:         zap.NewNop(),
		gate:           dedup.AllowAll{},
	}
	for _, o := range options {
		o(s)
	}
	s.logger = s.logger.With(zap.String("group", s.group))
	return s
}

// Calendar returns the calendar used for day boundaries.
func (s *Service) Calendar() Calendar {
	return s.cal
}

// Now returns the current time of the service clock.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// Record counts one event for (itemID, name) and returns the updated
// snapshot. The first event of a new day archives the previous day's count
// (when history is enabled) and restarts the daily tally at 1. The lookup
// and the writes happen in one transaction.
func (s *Service) Record(ctx context.Context, itemID, name string) (Snapshot, error) {
	now := s.clock.Now()
	today := s.cal.DayStart(now)

	var (
		snap     Snapshot
		archived *storage.HistoryEntry
		rolled   bool
	)
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		c, err := tx.FindCounter(ctx, itemID, name)
		if errors.Is(err, storage.ErrNotFound) {
			c = &storage.Counter{
				ID:      uuid.NewString(),
				ItemID:  itemID,
				Name:    name,
				Daily:   1,
				Sum:     1,
				Created: now,
			}
			var inserted bool
			if inserted, err = tx.InsertCounter(ctx, c); err != nil {
				return err
			}
			if inserted {
				snap = Snapshot{Today: 1, Sum: 1}
				return nil
			}
			// Lost the race to create the key; count against the winner's row.
			c, err = tx.FindCounter(ctx, itemID, name)
		}
		if err != nil {
			return err
		}

		prevSum := c.Sum
		last := c.LastActivity()
		if last.Before(today) {
			rolled = true
			if s.historyEnabled {
				entry := &storage.HistoryEntry{
					ID:      uuid.NewString(),
					StatID:  c.ID,
					Counter: c.Daily,
					Date:    s.cal.DayStart(last),
				}
				written, err := tx.InsertHistory(ctx, entry)
				if err != nil {
					return err
				}
				if written {
					archived = entry
				}
			}
			c.Daily = 1
		} else {
			c.Daily++
		}
		c.Sum++
		c.Updated = now

		if err := tx.UpdateCounter(ctx, c, prevSum); err != nil {
			return err
		}
		snap = Snapshot{Today: c.Daily, Sum: c.Sum}
		return nil
	})
	if err != nil {
		s.metrics.storageError("record")
		s.logger.Error("record event failed",
			zap.String("item_id", itemID), zap.String("name", name), zap.Error(err))
		return Snapshot{}, err
	}

	s.metrics.recorded(name)
	if rolled {
		s.metrics.rollover(name)
		fields := []zap.Field{zap.String("item_id", itemID), zap.String("name", name)}
		if archived != nil {
			fields = append(fields,
				zap.String("day", archived.Date.Format(DayLayout)),
				zap.Int64("archived", archived.Counter))
		}
		s.logger.Debug("day rolled over", fields...)
	}
	return snap, nil
}

// Current returns the live snapshot for (itemID, name) without modifying
// anything. Today is 0 when the counter was last touched before today.
func (s *Service) Current(ctx context.Context, itemID, name string) (Snapshot, error) {
	c, err := s.store.FindCounter(ctx, itemID, name)
	if errors.Is(err, storage.ErrNotFound) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		s.metrics.storageError("current")
		return Snapshot{}, err
	}
	return s.snapshot(c, s.clock.Now()), nil
}

func (s *Service) snapshot(c *storage.Counter, now time.Time) Snapshot {
	snap := Snapshot{Today: c.Daily, Sum: c.Sum}
	if c.LastActivity().Before(s.cal.DayStart(now)) {
		snap.Today = 0
	}
	return snap
}

// Historical answers q from the archive. A range result lists every day in
// [From, To) with zero for days without an archived count, plus any
// archived count for To itself. A single-day result holds that one day. The
// snapshot fields always come from the live counter. When nothing is
// archived for q the current snapshot is returned with nil Days.
func (s *Service) Historical(ctx context.Context, itemID, name string, q Query) (History, error) {
	from, to := s.cal.DayStart(q.From), s.cal.DayStart(q.To)
	if from.After(to) {
		return History{}, fmt.Errorf("%w: %s is after %s",
			ErrInvalidRange, from.Format(DayLayout), to.Format(DayLayout))
	}

	rows, err := s.store.HistoryRange(ctx, itemID, name, from, to)
	if err != nil {
		s.metrics.storageError("history")
		return History{}, err
	}

	if len(rows) == 0 || (q.single && len(rows) != 1) {
		snap, err := s.Current(ctx, itemID, name)
		if err != nil {
			return History{}, err
		}
		return History{Snapshot: snap}, nil
	}

	// Every row joins the same counter, so its live fields are the snapshot.
	h := History{Snapshot: s.snapshot(&rows[0].Stat, s.clock.Now())}

	if q.single {
		h.Days = []DayCount{{Day: from, Count: rows[0].Counter}}
		return h, nil
	}

	days := make(map[int64]*DayCount)
	for _, d := range s.cal.Days(from, to) {
		days[d.Unix()] = &DayCount{Day: d}
	}
	for _, r := range rows {
		d := s.cal.DayStart(r.Date)
		days[d.Unix()] = &DayCount{Day: d, Count: r.Counter}
	}

	h.Days = make([]DayCount, 0, len(days))
	for _, dc := range days {
		h.Days = append(h.Days, *dc)
	}
	sort.Slice(h.Days, func(i, j int) bool {
		return h.Days[i].Day.Before(h.Days[j].Day)
	})
	return h, nil
}

// Get routes q to Current or Historical. The current snapshot answers a zero
// query, any query when history is disabled, and a single-day query for
// today. Only storage failures are returned as errors.
func (s *Service) Get(ctx context.Context, itemID, name string, q Query) (Result, error) {
	var (
		h   History
		err error
	)
	if q.IsZero() || !s.historyEnabled || (q.single && s.cal.DayStart(q.From).Equal(s.cal.DayStart(s.clock.Now()))) {
		h.Snapshot, err = s.Current(ctx, itemID, name)
	} else {
		h, err = s.Historical(ctx, itemID, name, q)
	}

	switch {
	case err == nil:
		return Result{Status: StatusFound, Snapshot: h.Snapshot, Days: h.Days}, nil
	case errors.Is(err, ErrNotFound):
		return Result{Status: StatusNotFound}, nil
	case errors.Is(err, ErrInvalidRange):
		return Result{Status: StatusInvalid, Reason: err.Error()}, nil
	default:
		return Result{}, err
	}
}

// Hit passes one event of the given type from clientID through the dedup
// gate. An admitted event is recorded; otherwise the current snapshot is
// returned unchanged. The bool reports whether the event was recorded. When
// recording fails the marker set by the gate is dropped again.
func (s *Service) Hit(ctx context.Context, itemID, name, kind, clientID string) (Snapshot, bool, error) {
	ttl, ok := s.types[kind]
	if !ok {
		return Snapshot{}, false, fmt.Errorf("%w %q", ErrUnknownType, kind)
	}

	key := dedup.Key(name, itemID, clientID)
	admitted, err := s.gate.Admit(ctx, key, ttl)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("dedup: %w", err)
	}
	if !admitted {
		s.metrics.dedupRejected(name)
		snap, err := s.Current(ctx, itemID, name)
		if errors.Is(err, ErrNotFound) {
			return Snapshot{}, false, nil
		}
		return snap, false, err
	}

	snap, err := s.Record(ctx, itemID, name)
	if err != nil {
		if ferr := s.gate.Forget(ctx, key); ferr != nil {
			s.logger.Warn("drop dedup marker failed", zap.String("key", key), zap.Error(ferr))
		}
		return Snapshot{}, false, err
	}
	return snap, true, nil
}
