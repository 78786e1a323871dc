package config

import (
	"fmt"
	"time"
)

// Group is a stats group with its parent chain and defaults applied.
// It is built once by Config.Group and not modified afterwards.
type Group struct {
	Name           string
	MainTable      string
	HistoryTable   string
	HistoryEnabled bool
	Location       *time.Location
	types          map[string]time.Duration
}

// TTL returns the dedup window configured for kind.
func (g Group) TTL(kind string) (time.Duration, bool) {
	ttl, ok := g.types[kind]
	return ttl, ok
}

// Types returns a copy of the group's type table.
func (g Group) Types() map[string]time.Duration {
	out := make(map[string]time.Duration, len(g.types))
	for k, v := range g.types {
		out[k] = v
	}
	return out
}

// Group resolves the named stats group. Fields a group leaves unset are
// taken from its parent, recursively, and finally from the built-in
// defaults. An empty name means DefaultGroup; DefaultGroup itself resolves
// to the built-in defaults even when the file does not define it.
func (c *Config) Group(name string) (Group, error) {
	if name == "" {
		name = DefaultGroup
	}
	if _, ok := c.Stats[name]; !ok && name != DefaultGroup {
		return Group{}, fmt.Errorf("stats group %q is not configured", name)
	}

	var (
		merged  GroupConfig
		types   = map[string]time.Duration{}
		seen    = map[string]bool{}
		current = name
	)
	for current != "" {
		if seen[current] {
			return Group{}, fmt.Errorf("stats group %q: parent cycle through %q", name, current)
		}
		seen[current] = true

		gc, ok := c.Stats[current]
		if !ok {
			if current == DefaultGroup {
				break
			}
			return Group{}, fmt.Errorf("stats group %q: unknown parent %q", name, current)
		}

		if merged.MainTable == "" {
			merged.MainTable = gc.MainTable
		}
		if merged.HistoryTable == "" {
			merged.HistoryTable = gc.HistoryTable
		}
		if merged.HistoryEnabled == nil {
			merged.HistoryEnabled = gc.HistoryEnabled
		}
		if merged.Timezone == "" {
			merged.Timezone = gc.Timezone
		}
		for k, v := range gc.Types {
			if _, ok := types[k]; !ok {
				types[k] = v
			}
		}
		current = gc.Parent
	}

	g := Group{
		Name:           name,
		MainTable:      merged.MainTable,
		HistoryTable:   merged.HistoryTable,
		HistoryEnabled: true,
		types:          types,
	}
	if g.MainTable == "" {
		g.MainTable = DefaultMainTable
	}
	if g.HistoryTable == "" {
		g.HistoryTable = DefaultHistoryTable
	}
	if merged.HistoryEnabled != nil {
		g.HistoryEnabled = *merged.HistoryEnabled
	}
	if len(g.types) == 0 {
		g.types = DefaultTypes()
	}
	for k, v := range g.types {
		if v < 0 {
			return Group{}, fmt.Errorf("stats group %q: negative ttl for type %q", name, k)
		}
	}

	loc, err := loadLocation(merged.Timezone)
	if err != nil {
		return Group{}, fmt.Errorf("stats group %q: %w", name, err)
	}
	g.Location = loc

	return g, nil
}

func loadLocation(tz string) (*time.Location, error) {
	if tz == "" || tz == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}
