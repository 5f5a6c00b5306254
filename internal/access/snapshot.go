package access

// Snapshot is an immutable point-in-time view of one user's permission
// state: their trie plus default access. Writers build a replacement and
// atomically swap it in; a reader that grabbed the old snapshot finishes
// against a consistent view without ever blocking on the writer.
type Snapshot struct {
	user  User
	perms []*Permission
	trie  *Trie
}

// NewSnapshot builds a snapshot from a user and their full permission set.
// Record paths must already be normalized. The permission slice is owned by
// the snapshot after the call.
func NewSnapshot(user User, perms []*Permission) *Snapshot {
	trie := NewTrie()
	for _, p := range perms {
		// Paths were normalized at assign time; Insert only rejects nil.
		_ = trie.Insert(p)
	}
	return &Snapshot{
		user:  user,
		perms: perms,
		trie:  trie,
	}
}

// User returns the user this snapshot belongs to.
func (s *Snapshot) User() User {
	return s.user
}

// DefaultAccess is the fallback action for paths with no matching record.
func (s *Snapshot) DefaultAccess() Action {
	return s.user.DefaultAccess
}

// Match returns the records governing the given normalized path.
func (s *Snapshot) Match(path string) []RecordMatch {
	return s.trie.Match(path)
}

// Permissions returns the snapshot's record set. Callers must treat the
// returned slice as read-only.
func (s *Snapshot) Permissions() []*Permission {
	return s.perms
}

// withUser derives a snapshot with the same records but updated user
// metadata, reusing the already built trie.
func (s *Snapshot) withUser(user User) *Snapshot {
	return &Snapshot{
		user:  user,
		perms: s.perms,
		trie:  s.trie,
	}
}
