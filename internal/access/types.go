package access

// User is an identity known to the engine. The username is the immutable
// key; DefaultAccess applies at any path no permission record matches.
type User struct {
	Username      string  `db:"username" json:"username"`
	Name          string  `db:"name" json:"name"`
	TokenHash     *string `db:"access_token" json:"-"`
	DefaultAccess Action  `db:"default_access" json:"defaultAccess"`
}

// Permission grants an action on a path to a single user. Records are
// immutable once created; changing a grant is modeled as revoke + assign.
// When AffectsChildren is set the grant projects onto every descendant of
// Path, otherwise it applies to the exact path only.
type Permission struct {
	ID              int64  `db:"id" json:"id"`
	Owner           string `db:"applies_to" json:"owner"`
	Path            string `db:"path" json:"path"`
	Action          Action `db:"action" json:"action"`
	AffectsChildren bool   `db:"affects_children" json:"affectsChildren"`
}
