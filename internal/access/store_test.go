package access

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// memRepo is an in-memory Repository for store tests. failNext makes the
// next persistence call fail, to exercise the "failed mutation leaves
// visible state untouched" guarantee.
type memRepo struct {
	mu       sync.Mutex
	users    map[string]User
	perms    map[int64]Permission
	nextID   int64
	failNext error
}

func newMemRepo() *memRepo {
	return &memRepo{
		users: make(map[string]User),
		perms: make(map[int64]Permission),
	}
}

func (r *memRepo) fail() error {
	if err := r.failNext; err != nil {
		r.failNext = nil
		return err
	}
	return nil
}

func (r *memRepo) LoadUsers(ctx context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	return users, nil
}

func (r *memRepo) LoadUser(ctx context.Context, username string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	return &u, nil
}

func (r *memRepo) SaveUser(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	r.users[user.Username] = *user
	return nil
}

func (r *memRepo) LoadPermissions(ctx context.Context, username string) ([]*Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Permission
	for _, p := range r.perms {
		if p.Owner == username {
			p := p
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r *memRepo) SavePermission(ctx context.Context, perm *Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	r.nextID++
	perm.ID = r.nextID
	r.perms[perm.ID] = *perm
	return nil
}

func (r *memRepo) DeletePermission(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	if _, ok := r.perms[id]; !ok {
		return fmt.Errorf("%w: permission %d", ErrNotFound, id)
	}
	delete(r.perms, id)
	return nil
}

func (r *memRepo) DeleteUser(ctx context.Context, username string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return 0, err
	}
	if _, ok := r.users[username]; !ok {
		return 0, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	delete(r.users, username)
	var removed int64
	for id, p := range r.perms {
		if p.Owner == username {
			delete(r.perms, id)
			removed++
		}
	}
	return removed, nil
}

func (r *memRepo) permCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.perms)
}

func newStoreWithUser(t *testing.T, opts ...StoreOption) (*Store, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	store := NewStore(repo, opts...)
	require.NoError(t, store.Start(context.Background()))
	_, err := store.EnsureUser(context.Background(), "alice", "Alice")
	require.NoError(t, err)
	return store, repo
}

func TestStoreEnsureUser(t *testing.T) {
	store, _ := newStoreWithUser(t)

	user, err := store.GetUser("alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, DefaultUserAccess, user.DefaultAccess)

	// second sight refreshes the display name only
	_, err = store.EnsureUser(context.Background(), "alice", "Alice L.")
	require.NoError(t, err)
	user, err = store.GetUser("alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", user.Name)
	assert.Equal(t, DefaultUserAccess, user.DefaultAccess)
}

func TestStoreAssign(t *testing.T) {
	store, repo := newStoreWithUser(t)

	p, err := store.Assign(context.Background(), "alice", "/docs/", ActionRead, true)
	require.NoError(t, err)
	assert.Equal(t, "/docs", p.Path, "path is normalized before storage")
	assert.NotZero(t, p.ID)
	assert.Equal(t, 1, repo.permCount())

	// duplicate grants at the same path are legal
	p2, err := store.Assign(context.Background(), "alice", "/docs", ActionAdmin, false)
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, p2.ID)

	_, err = store.Assign(context.Background(), "alice", "no-slash", ActionRead, false)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = store.Assign(context.Background(), "alice", "/docs", Action(99), false)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = store.Assign(context.Background(), "nobody", "/docs", ActionRead, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreAssignStorageFailure(t *testing.T) {
	store, repo := newStoreWithUser(t)
	resolver := NewResolver(store)

	repo.failNext = fmt.Errorf("%w: disk full", ErrStorage)
	_, err := store.Assign(context.Background(), "alice", "/docs", ActionDeny, true)
	assert.ErrorIs(t, err, ErrStorage)

	// the failed record must not be visible to resolution
	action, err := resolver.Resolve(context.Background(), "alice", "/docs")
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAccess, action)
	assert.Equal(t, 0, repo.permCount())
}

func TestStoreRevoke(t *testing.T) {
	store, repo := newStoreWithUser(t)
	resolver := NewResolver(store)

	before, err := resolver.Resolve(context.Background(), "alice", "/docs")
	require.NoError(t, err)

	p, err := store.Assign(context.Background(), "alice", "/docs", ActionDeny, true)
	require.NoError(t, err)

	during, err := resolver.Resolve(context.Background(), "alice", "/docs")
	require.NoError(t, err)
	assert.Equal(t, ActionDeny, during)

	require.NoError(t, store.Revoke(context.Background(), p.ID))
	assert.Equal(t, 0, repo.permCount())

	// resolution returns to the pre-assign value
	after, err := resolver.Resolve(context.Background(), "alice", "/docs")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// double revocation is a reportable not-found, not a silent no-op
	assert.ErrorIs(t, store.Revoke(context.Background(), p.ID), ErrNotFound)
	assert.ErrorIs(t, store.Revoke(context.Background(), 424242), ErrNotFound)
}

func TestStoreSetDefaultAccess(t *testing.T) {
	store, _ := newStoreWithUser(t)
	resolver := NewResolver(store)

	user, err := store.SetDefaultAccess(context.Background(), "alice", ActionDeny)
	require.NoError(t, err)
	assert.Equal(t, ActionDeny, user.DefaultAccess, "returns the record this mutation produced")

	action, err := resolver.Resolve(context.Background(), "alice", "/anywhere")
	require.NoError(t, err)
	assert.Equal(t, ActionDeny, action)

	_, err = store.SetDefaultAccess(context.Background(), "nobody", ActionRead)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.SetDefaultAccess(context.Background(), "alice", Action(99))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStoreDeleteUserCascades(t *testing.T) {
	store, repo := newStoreWithUser(t)
	_, err := store.EnsureUser(context.Background(), "bob", "Bob")
	require.NoError(t, err)

	p1, err := store.Assign(context.Background(), "alice", "/docs", ActionRead, true)
	require.NoError(t, err)
	_, err = store.Assign(context.Background(), "alice", "/music", ActionAdmin, false)
	require.NoError(t, err)

	removed, err := store.DeleteUser(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	// no trace of the user or their records
	_, err = store.GetUser("alice")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.ListForUser("alice")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Revoke(context.Background(), p1.ID), ErrNotFound)
	assert.Equal(t, 0, repo.permCount())

	resolver := NewResolver(store)
	_, err = resolver.Resolve(context.Background(), "alice", "/docs")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDeleteUserSelf(t *testing.T) {
	store, _ := newStoreWithUser(t)

	_, err := store.DeleteUser(context.Background(), "alice", "alice")
	assert.ErrorIs(t, err, ErrForbidden)

	// no state change
	_, err = store.GetUser("alice")
	assert.NoError(t, err)

	_, err = store.DeleteUser(context.Background(), "", "alice")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStoreListUsers(t *testing.T) {
	store, _ := newStoreWithUser(t)
	_, err := store.EnsureUser(context.Background(), "bob", "Bob")
	require.NoError(t, err)

	users := store.ListUsers()
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
}

func TestStoreListForUser(t *testing.T) {
	store, _ := newStoreWithUser(t)

	_, err := store.Assign(context.Background(), "alice", "/b", ActionRead, false)
	require.NoError(t, err)
	_, err = store.Assign(context.Background(), "alice", "/a", ActionRead, false)
	require.NoError(t, err)

	perms, err := store.ListForUser("alice")
	require.NoError(t, err)
	require.Len(t, perms, 2)
	assert.Less(t, perms[0].ID, perms[1].ID, "ordered by id")
}

func TestStoreStartRebuildsFromRepository(t *testing.T) {
	repo := newMemRepo()
	store := NewStore(repo)
	require.NoError(t, store.Start(context.Background()))
	_, err := store.EnsureUser(context.Background(), "alice", "Alice")
	require.NoError(t, err)
	_, err = store.Assign(context.Background(), "alice", "/docs", ActionDeny, true)
	require.NoError(t, err)

	// a second store over the same repository sees identical state
	reloaded := NewStore(repo)
	require.NoError(t, reloaded.Start(context.Background()))

	resolver := NewResolver(reloaded)
	action, err := resolver.Resolve(context.Background(), "alice", "/docs/sub")
	require.NoError(t, err)
	assert.Equal(t, ActionDeny, action)
}

func TestStoreNotifierFanout(t *testing.T) {
	notifier := NewChangeNotifier()
	events, cancel := notifier.Subscribe(16)
	defer cancel()

	repo := newMemRepo()
	store := NewStore(repo, WithNotifier(notifier))
	require.NoError(t, store.Start(context.Background()))
	_, err := store.EnsureUser(context.Background(), "alice", "Alice")
	require.NoError(t, err)

	p, err := store.Assign(context.Background(), "alice", "/docs", ActionRead, false)
	require.NoError(t, err)
	assert.Equal(t, "alice", <-events)

	_, err = store.SetDefaultAccess(context.Background(), "alice", ActionDeny)
	require.NoError(t, err)
	assert.Equal(t, "alice", <-events)

	require.NoError(t, store.Revoke(context.Background(), p.ID))
	assert.Equal(t, "alice", <-events)

	_, err = store.EnsureUser(context.Background(), "bob", "Bob")
	require.NoError(t, err)
	_, err = store.DeleteUser(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", <-events)
}

// TestStoreInvalidatesCacheInline verifies that a store-registered decision
// cache is emptied on the mutation path itself, so no event delivery (and no
// dropped event) can leave a stale decision behind.
func TestStoreInvalidatesCacheInline(t *testing.T) {
	cache, err := NewDecisionCache(16)
	require.NoError(t, err)

	repo := newMemRepo()
	store := NewStore(repo, WithNotifier(cache))
	require.NoError(t, store.Start(context.Background()))
	_, err = store.EnsureUser(context.Background(), "alice", "Alice")
	require.NoError(t, err)

	resolver := NewResolver(store, WithDecisionCache(cache))
	ctx := context.Background()

	p, err := store.Assign(ctx, "alice", "/docs", ActionAdmin, true)
	require.NoError(t, err)

	action, err := resolver.Resolve(ctx, "alice", "/docs/report")
	require.NoError(t, err)
	assert.Equal(t, ActionAdmin, action)
	assert.Equal(t, 1, cache.Len())

	// the cached decision is gone before Revoke returns
	require.NoError(t, store.Revoke(ctx, p.ID))
	assert.Equal(t, 0, cache.Len())

	action, err = resolver.Resolve(ctx, "alice", "/docs/report")
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAccess, action)
}

func TestStoreTokens(t *testing.T) {
	store, _ := newStoreWithUser(t)

	// no token yet: everything fails verification
	assert.False(t, store.VerifyToken("alice", "anything"))

	token, err := store.RegenerateToken(context.Background(), "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.True(t, store.VerifyToken("alice", token))
	assert.False(t, store.VerifyToken("alice", "wrong"))
	assert.False(t, store.VerifyToken("nobody", token))

	// regeneration invalidates the old token
	token2, err := store.RegenerateToken(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, store.VerifyToken("alice", token))
	assert.True(t, store.VerifyToken("alice", token2))

	require.NoError(t, store.RevokeToken(context.Background(), "alice"))
	assert.False(t, store.VerifyToken("alice", token2))
}

// TestStoreSnapshotConsistency hammers resolution during concurrent
// mutation. Every observed decision must be one of the two legal full
// states, never a partially applied one.
func TestStoreSnapshotConsistency(t *testing.T) {
	store, _ := newStoreWithUser(t)
	resolver := NewResolver(store)
	_, err := store.SetDefaultAccess(context.Background(), "alice", ActionDeny)
	require.NoError(t, err)

	_, err = store.Assign(context.Background(), "alice", "/a", ActionRead, true)
	require.NoError(t, err)

	ctx := context.Background()
	done := make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		// flip /a/b between "no record" (inherits Read) and an Admin grant
		for i := 0; i < 200; i++ {
			p, err := store.Assign(ctx, "alice", "/a/b", ActionAdmin, false)
			if err != nil {
				return err
			}
			if err := store.Revoke(ctx, p.ID); err != nil {
				return err
			}
		}
		return nil
	})

	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for {
				select {
				case <-done:
					return nil
				default:
				}
				action, err := resolver.Resolve(ctx, "alice", "/a/b")
				if err != nil {
					return err
				}
				if action != ActionRead && action != ActionAdmin {
					return fmt.Errorf("observed partial state: %s", action)
				}
			}
		})
	}

	require.NoError(t, g.Wait())
}

// TestStoreConcurrentUsersIndependent verifies mutations on different
// users proceed in parallel without corrupting each other's snapshots.
func TestStoreConcurrentUsersIndependent(t *testing.T) {
	repo := newMemRepo()
	store := NewStore(repo)
	require.NoError(t, store.Start(context.Background()))

	ctx := context.Background()
	usernames := []string{"u0", "u1", "u2", "u3"}
	for _, u := range usernames {
		_, err := store.EnsureUser(ctx, u, u)
		require.NoError(t, err)
	}

	var g errgroup.Group
	for _, u := range usernames {
		u := u
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				p, err := store.Assign(ctx, u, "/data", ActionRead, false)
				if err != nil {
					return err
				}
				if err := store.Revoke(ctx, p.ID); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, u := range usernames {
		perms, err := store.ListForUser(u)
		require.NoError(t, err)
		assert.Empty(t, perms, u)
	}
	assert.Equal(t, 0, repo.permCount())
}
