package access

import (
	"context"
	"fmt"
)

// SnapshotSource hands out the current snapshot for a user. The Store is
// the production implementation.
type SnapshotSource interface {
	Snapshot(username string) (*Snapshot, bool)
}

// Resolver answers "what is the highest action this user may perform at
// this path". It is stateless over the snapshots it reads, so any number
// of resolutions may run concurrently with each other and with mutations.
type Resolver struct {
	src   SnapshotSource
	cache *DecisionCache
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDecisionCache memoizes resolved decisions in the given cache.
func WithDecisionCache(cache *DecisionCache) ResolverOption {
	return func(r *Resolver) {
		r.cache = cache
	}
}

func NewResolver(src SnapshotSource, opts ...ResolverOption) *Resolver {
	r := &Resolver{src: src}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the effective action for the user at the given path.
//
// The most specific matching record wins: a record at a deeper node beats
// any inherited ancestor grant. Among records tied at the same depth the
// greatest action wins. With no matching record at all the user's default
// access applies. Unknown users fail with ErrNotFound, malformed paths
// with ErrValidation.
func (r *Resolver) Resolve(ctx context.Context, username, path string) (Action, error) {
	if err := ctx.Err(); err != nil {
		return ActionDeny, err
	}

	norm, err := NormPath(path)
	if err != nil {
		return ActionDeny, err
	}

	snap, ok := r.src.Snapshot(username)
	if !ok {
		return ActionDeny, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}

	// Cache entries are pinned to the snapshot they were computed from, so
	// a mutation that swapped the snapshot while we held the old one can at
	// worst seed an entry nobody will ever read back.
	if r.cache != nil {
		if action, ok := r.cache.Get(username, norm, snap); ok {
			return action, nil
		}
	}

	action := resolveSnapshot(snap, norm)

	if r.cache != nil {
		r.cache.Set(username, norm, snap, action)
	}

	// The walk itself is O(depth) and non-blocking; honoring cancellation
	// here is about not handing out a decision nobody is listening for.
	if err := ctx.Err(); err != nil {
		return ActionDeny, err
	}
	return action, nil
}

// Require resolves the user's action at path and fails with ErrAccessDenied
// when it does not imply the needed one.
func (r *Resolver) Require(ctx context.Context, username, path string, need Action) error {
	if !need.Valid() {
		return fmt.Errorf("%w: action out of range: %d", ErrValidation, uint8(need))
	}
	got, err := r.Resolve(ctx, username, path)
	if err != nil {
		return err
	}
	if !got.Implies(need) {
		return fmt.Errorf("%w: user %q has %s on %s, needs %s", ErrAccessDenied, username, got, path, need)
	}
	return nil
}

func resolveSnapshot(snap *Snapshot, normPath string) Action {
	matches := snap.Match(normPath)
	if len(matches) == 0 {
		return snap.DefaultAccess()
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.Depth > best.Depth {
			best = m
		} else if m.Depth == best.Depth && m.Record.Action > best.Record.Action {
			best = m
		}
	}
	return best.Record.Action
}
