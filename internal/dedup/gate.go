// Package dedup decides whether an event from a client starts a new visit
// or continues one that is still inside its dedup window.
package dedup

import (
	"context"
	"time"
)

// Gate admits or rejects events by key. Admit reports true when no live
// marker exists for key, and sets one lasting ttl. When a marker is live it
// is extended by ttl and Admit reports false. A ttl of zero or less always
// admits and stores nothing. Forget drops the marker for key, if any.
type Gate interface {
	Admit(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Key builds the marker key for one client visiting one item.
func Key(name, itemID, clientID string) string {
	return name + "_" + itemID + "_" + clientID
}

// AllowAll admits every event.
type AllowAll struct{}

func (AllowAll) Admit(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

func (AllowAll) Forget(context.Context, string) error { return nil }
