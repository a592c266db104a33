package storage

import (
	"context"
	"sync"
	"time"
)

// Denylist remembers revoked credential ids until they would have expired anyway.
type Denylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewDenylist() *Denylist {
	return &Denylist{entries: make(map[string]time.Time), now: time.Now}
}

func (d *Denylist) Revoke(_ context.Context, id string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries[id] = until
	d.sweep()
	return nil
}

func (d *Denylist) IsRevoked(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	until, ok := d.entries[id]
	if !ok {
		return false, nil
	}
	if !d.now().Before(until) {
		delete(d.entries, id)
		return false, nil
	}
	return true, nil
}

func (d *Denylist) sweep() {
	now := d.now()
	for id, until := range d.entries {
		if !now.Before(until) {
			delete(d.entries, id)
		}
	}
}
