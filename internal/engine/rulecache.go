package engine

import (
	"sync"
	"time"

	"github.com/copperline/copperline/internal/store"
)

// ruleCache is a read-mostly cache over model/rule definitions. Each
// snapshot is loaded in a single transaction (store.SnapshotModel), so
// evaluation never sees a half-edited rule. Admin writes call
// Invalidate; the TTL bounds staleness everywhere else.
type ruleCache struct {
	db  *store.DB
	ttl time.Duration

	mu        sync.Mutex
	snapshots map[int64]*cachedSnapshot
	defaultID int64
	defaultAt time.Time
}

type cachedSnapshot struct {
	snap     *store.ModelSnapshot
	loadedAt time.Time
}

func newRuleCache(db *store.DB, ttl time.Duration) *ruleCache {
	return &ruleCache{
		db:        db,
		ttl:       ttl,
		snapshots: make(map[int64]*cachedSnapshot),
	}
}

// Snapshot returns a point-in-time view of the model and its rules,
// or nil if the model does not exist.
func (c *ruleCache) Snapshot(modelID int64) (*store.ModelSnapshot, error) {
	c.mu.Lock()
	cached, ok := c.snapshots[modelID]
	c.mu.Unlock()
	if ok && time.Since(cached.loadedAt) < c.ttl {
		return cached.snap, nil
	}

	snap, err := c.db.SnapshotModel(modelID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	c.mu.Lock()
	c.snapshots[modelID] = &cachedSnapshot{snap: snap, loadedAt: time.Now()}
	c.mu.Unlock()
	return snap, nil
}

// Default returns the snapshot of the system default model, or nil if
// no model is flagged default.
func (c *ruleCache) Default() (*store.ModelSnapshot, error) {
	c.mu.Lock()
	id := c.defaultID
	fresh := id != 0 && time.Since(c.defaultAt) < c.ttl
	c.mu.Unlock()

	if !fresh {
		m, err := c.db.DefaultModel()
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, nil
		}
		id = m.ID
		c.mu.Lock()
		c.defaultID = id
		c.defaultAt = time.Now()
		c.mu.Unlock()
	}

	return c.Snapshot(id)
}

// Invalidate drops all cached snapshots. Called after any model or rule
// mutation.
func (c *ruleCache) Invalidate() {
	c.mu.Lock()
	c.snapshots = make(map[int64]*cachedSnapshot)
	c.defaultID = 0
	c.mu.Unlock()
}
