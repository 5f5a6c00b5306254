package access

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

type decisionKey struct {
	username string
	path     string
}

// decisionEntry pins the snapshot the decision was computed from. An entry
// is only valid against that exact snapshot; once a mutation swaps in a new
// one the entry is dead no matter whether an invalidation event reached us.
type decisionEntry struct {
	snap   *Snapshot
	action Action
}

// DecisionCache memoizes resolved decisions keyed by user and normalized
// path. Every entry records the snapshot it was computed from and a lookup
// against any other snapshot is a miss, so a decision can never outlive the
// permission state that produced it — not even when a mutation lands between
// computing the decision and storing it. It also implements Notifier so the
// store can drop a user's entries synchronously on every mutation.
type DecisionCache struct {
	entries *lru.Cache[decisionKey, decisionEntry]
}

// NewDecisionCache creates a cache bounded to size entries.
func NewDecisionCache(size int) (*DecisionCache, error) {
	entries, err := lru.New[decisionKey, decisionEntry](size)
	if err != nil {
		return nil, err
	}
	return &DecisionCache{entries: entries}, nil
}

// Get returns the decision cached for the user at the given normalized path,
// provided it was computed from snap. Entries computed from any other
// snapshot are evicted and reported as a miss.
func (c *DecisionCache) Get(username, path string, snap *Snapshot) (Action, bool) {
	key := decisionKey{username: username, path: path}
	entry, ok := c.entries.Get(key)
	if !ok {
		return ActionDeny, false
	}
	if entry.snap != snap {
		c.entries.Remove(key)
		return ActionDeny, false
	}
	return entry.action, true
}

// Set stores a decision computed from snap.
func (c *DecisionCache) Set(username, path string, snap *Snapshot, action Action) {
	c.entries.Add(decisionKey{username: username, path: path}, decisionEntry{
		snap:   snap,
		action: action,
	})
}

// Invalidate drops every cached decision for the user.
func (c *DecisionCache) Invalidate(username string) {
	for _, key := range c.entries.Keys() {
		if key.username == username {
			c.entries.Remove(key)
		}
	}
}

// PermissionsChanged implements Notifier. The store calls it inline on the
// mutation path, so the drop happens before the mutation returns; the
// snapshot pin in Get backstops orderings this cannot see.
func (c *DecisionCache) PermissionsChanged(username string) {
	c.Invalidate(username)
}

// Len returns the number of cached decisions.
func (c *DecisionCache) Len() int {
	return c.entries.Len()
}

var _ Notifier = (*DecisionCache)(nil)
