package access

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultUserAccess is the default access assigned to newly created users.
const DefaultUserAccess = ActionModify

// Repository persists users and permission records. Implementations wrap
// missing rows in ErrNotFound and I/O failures in ErrStorage; the store
// propagates both unchanged and never retries.
type Repository interface {
	LoadUsers(ctx context.Context) ([]User, error)
	LoadUser(ctx context.Context, username string) (*User, error)
	SaveUser(ctx context.Context, user *User) error
	LoadPermissions(ctx context.Context, username string) ([]*Permission, error)
	SavePermission(ctx context.Context, perm *Permission) error
	DeletePermission(ctx context.Context, id int64) error
	DeleteUser(ctx context.Context, username string) (int64, error)
}

// Store owns the authoritative permission state: one snapshot per user,
// kept in lockstep with the repository. Reads run against immutable
// snapshots and never block; writes for a user serialize on that user's
// mutex and are independent across users. Every mutation persists first and
// swaps the snapshot only on success, so a failed write leaves the visible
// state untouched.
type Store struct {
	repo      Repository
	notifiers []Notifier

	mu     sync.RWMutex
	users  map[string]*userState
	owners map[int64]string // permission id -> owner username
}

// userState pairs a user's write lock with the atomically swapped snapshot
// pointer readers load.
type userState struct {
	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithNotifier registers a notifier called inline after every successful
// mutation, in registration order. A co-located DecisionCache registers here
// so its invalidation is synchronous with the mutation, never riding a
// droppable channel.
func WithNotifier(n Notifier) StoreOption {
	return func(s *Store) {
		s.notifiers = append(s.notifiers, n)
	}
}

func NewStore(repo Repository, opts ...StoreOption) *Store {
	s := &Store{
		repo:   repo,
		users:  make(map[string]*userState),
		owners: make(map[int64]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads every user and their permission records from the repository
// and builds the initial snapshots.
func (s *Store) Start(ctx context.Context) error {
	start := time.Now()

	users, err := s.repo.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	records := 0
	for _, user := range users {
		perms, err := s.repo.LoadPermissions(ctx, user.Username)
		if err != nil {
			return fmt.Errorf("load permissions for %q: %w", user.Username, err)
		}

		st := &userState{}
		st.snap.Store(NewSnapshot(user, perms))

		s.mu.Lock()
		s.users[user.Username] = st
		for _, p := range perms {
			s.owners[p.ID] = user.Username
		}
		s.mu.Unlock()
		records += len(perms)
	}

	slog.Debug("access store loaded", "users", len(users), "records", records, "took", time.Since(start))
	return nil
}

// Snapshot returns the current snapshot for the user.
func (s *Store) Snapshot(username string) (*Snapshot, bool) {
	s.mu.RLock()
	st, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return st.snap.Load(), true
}

// EnsureUser creates the user on first sight or refreshes their display
// name, mirroring upsert-on-login identity flows. New users start with
// DefaultUserAccess and no permission records.
func (s *Store) EnsureUser(ctx context.Context, username, name string) (User, error) {
	if username == "" {
		return User{}, fmt.Errorf("%w: empty username", ErrValidation)
	}

	if st, err := s.lockUser(username); err == nil {
		defer st.mu.Unlock()
		snap := st.snap.Load()
		user := snap.User()
		if name == "" || user.Name == name {
			return user, nil
		}
		user.Name = name
		if err := s.repo.SaveUser(ctx, &user); err != nil {
			return User{}, err
		}
		st.snap.Store(snap.withUser(user))
		return user, nil
	}

	user := User{Username: username, Name: name, DefaultAccess: DefaultUserAccess}
	if err := s.repo.SaveUser(ctx, &user); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[username]; ok {
		// lost a creation race; the persisted row is an upsert so the
		// concurrent registration wins
		return existing.snap.Load().User(), nil
	}
	st := &userState{}
	st.snap.Store(NewSnapshot(user, nil))
	s.users[username] = st
	slog.Info("user created", "user", username, "defaultAccess", user.DefaultAccess)
	return user, nil
}

// Assign creates a new permission record for the owner at the given path,
// persists it, and publishes an updated snapshot.
func (s *Store) Assign(ctx context.Context, owner, path string, action Action, affectsChildren bool) (*Permission, error) {
	norm, err := NormPath(path)
	if err != nil {
		return nil, err
	}
	if !action.Valid() {
		return nil, fmt.Errorf("%w: action out of range: %d", ErrValidation, uint8(action))
	}

	st, err := s.lockUser(owner)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()

	perm := &Permission{
		Owner:           owner,
		Path:            norm,
		Action:          action,
		AffectsChildren: affectsChildren,
	}
	if err := s.repo.SavePermission(ctx, perm); err != nil {
		return nil, err
	}

	old := st.snap.Load()
	perms := append(clonePerms(old.Permissions()), perm)
	st.snap.Store(NewSnapshot(old.User(), perms))

	s.mu.Lock()
	s.owners[perm.ID] = owner
	s.mu.Unlock()

	s.notify(owner)
	slog.Debug("permission assigned", "id", perm.ID, "user", owner, "path", norm, "action", action, "affectsChildren", affectsChildren)
	return perm, nil
}

// Revoke deletes the permission record with the given id. Revoking an id
// that is already gone fails with ErrNotFound so callers can detect
// double-revocation races.
func (s *Store) Revoke(ctx context.Context, id int64) error {
	s.mu.RLock()
	owner, ok := s.owners[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: permission %d", ErrNotFound, id)
	}

	st, err := s.lockUser(owner)
	if err != nil {
		return err
	}
	defer st.mu.Unlock()

	old := st.snap.Load()
	idx := -1
	for i, p := range old.Permissions() {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		// revoked by a concurrent call between the index lookup and the lock
		return fmt.Errorf("%w: permission %d", ErrNotFound, id)
	}

	if err := s.repo.DeletePermission(ctx, id); err != nil {
		return err
	}

	perms := clonePerms(old.Permissions())
	perms = append(perms[:idx], perms[idx+1:]...)
	st.snap.Store(NewSnapshot(old.User(), perms))

	s.mu.Lock()
	delete(s.owners, id)
	s.mu.Unlock()

	s.notify(owner)
	slog.Debug("permission revoked", "id", id, "user", owner)
	return nil
}

// SetDefaultAccess replaces the user's fallback action and returns the user
// record this mutation produced. Callers echoing the result must use the
// returned value; a separate lookup could observe a later mutation.
func (s *Store) SetDefaultAccess(ctx context.Context, username string, action Action) (User, error) {
	if !action.Valid() {
		return User{}, fmt.Errorf("%w: action out of range: %d", ErrValidation, uint8(action))
	}

	st, err := s.lockUser(username)
	if err != nil {
		return User{}, err
	}
	defer st.mu.Unlock()

	snap := st.snap.Load()
	user := snap.User()
	user.DefaultAccess = action
	if err := s.repo.SaveUser(ctx, &user); err != nil {
		return User{}, err
	}
	st.snap.Store(snap.withUser(user))

	s.notify(username)
	slog.Debug("default access updated", "user", username, "action", action)
	return user, nil
}

// DeleteUser removes the user and every permission record they own in one
// unit: a resolution in flight sees either the full pre-deletion state or
// no user at all. The acting identity may not delete itself.
func (s *Store) DeleteUser(ctx context.Context, actor, username string) (int64, error) {
	if actor == "" {
		return 0, fmt.Errorf("%w: missing acting identity", ErrValidation)
	}
	if actor == username {
		return 0, fmt.Errorf("%w: cannot delete yourself", ErrForbidden)
	}

	st, err := s.lockUser(username)
	if err != nil {
		return 0, err
	}
	defer st.mu.Unlock()

	removed, err := s.repo.DeleteUser(ctx, username)
	if err != nil {
		return 0, err
	}

	old := st.snap.Load()
	s.mu.Lock()
	delete(s.users, username)
	for _, p := range old.Permissions() {
		delete(s.owners, p.ID)
	}
	s.mu.Unlock()

	s.notify(username)
	slog.Info("user deleted", "user", username, "by", actor, "recordsRemoved", removed)
	return removed, nil
}

// GetUser returns the user's current record.
func (s *Store) GetUser(username string) (User, error) {
	snap, ok := s.Snapshot(username)
	if !ok {
		return User{}, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	return snap.User(), nil
}

// ListForUser returns the user's permission records ordered by id.
func (s *Store) ListForUser(username string) ([]*Permission, error) {
	snap, ok := s.Snapshot(username)
	if !ok {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	perms := clonePerms(snap.Permissions())
	sort.Slice(perms, func(i, j int) bool { return perms[i].ID < perms[j].ID })
	return perms, nil
}

// ListUsers returns every known user ordered by username.
func (s *Store) ListUsers() []User {
	s.mu.RLock()
	users := make([]User, 0, len(s.users))
	for _, st := range s.users {
		users = append(users, st.snap.Load().User())
	}
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// lockUser acquires the write lock for the user, re-checking registration
// after the lock lands so a writer never operates on a state a concurrent
// DeleteUser already unhooked.
func (s *Store) lockUser(username string) (*userState, error) {
	for {
		s.mu.RLock()
		st, ok := s.users[username]
		s.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
		}

		st.mu.Lock()
		s.mu.RLock()
		current := s.users[username] == st
		s.mu.RUnlock()
		if current {
			return st, nil
		}
		st.mu.Unlock()
	}
}

func (s *Store) notify(username string) {
	for _, n := range s.notifiers {
		n.PermissionsChanged(username)
	}
}

func clonePerms(perms []*Permission) []*Permission {
	return append([]*Permission(nil), perms...)
}

var _ SnapshotSource = (*Store)(nil)
