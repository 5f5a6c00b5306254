package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/accessd/accessd/internal/access"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	access_token TEXT,
	default_access TEXT NOT NULL DEFAULT 'modify'
);

CREATE TABLE IF NOT EXISTS permissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	applies_to TEXT NOT NULL REFERENCES users(username),
	path TEXT NOT NULL,
	action TEXT NOT NULL,
	affects_children INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_permissions_applies_to ON permissions(applies_to);
`

// SqliteRepository persists users and permission records in SQLite.
// Permission ids come from AUTOINCREMENT, so a revoked id is never reused.
type SqliteRepository struct {
	db *sqlx.DB
}

func NewSqliteRepository(db *sqlx.DB) (*SqliteRepository, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SqliteRepository{db: db}, nil
}

func (r *SqliteRepository) LoadUsers(ctx context.Context) ([]access.User, error) {
	var users []access.User
	err := r.db.SelectContext(ctx, &users,
		"SELECT username, name, access_token, default_access FROM users")
	if err != nil {
		return nil, wrapStorage("load users", err)
	}
	return users, nil
}

func (r *SqliteRepository) LoadUser(ctx context.Context, username string) (*access.User, error) {
	var user access.User
	err := r.db.GetContext(ctx, &user,
		"SELECT username, name, access_token, default_access FROM users WHERE username = ?", username)
	if err != nil {
		return nil, wrapStorage(fmt.Sprintf("load user %q", username), err)
	}
	return &user, nil
}

// SaveUser inserts or fully replaces the user's row.
func (r *SqliteRepository) SaveUser(ctx context.Context, user *access.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, name, access_token, default_access) VALUES (?, ?, ?, ?)
		 ON CONFLICT (username) DO UPDATE SET
		 	name = excluded.name,
		 	access_token = excluded.access_token,
		 	default_access = excluded.default_access`,
		user.Username, user.Name, user.TokenHash, user.DefaultAccess)
	return wrapStorage(fmt.Sprintf("save user %q", user.Username), err)
}

func (r *SqliteRepository) LoadPermissions(ctx context.Context, username string) ([]*access.Permission, error) {
	var perms []*access.Permission
	err := r.db.SelectContext(ctx, &perms,
		`SELECT id, applies_to, path, action, affects_children FROM permissions
		 WHERE applies_to = ? ORDER BY id`, username)
	if err != nil {
		return nil, wrapStorage(fmt.Sprintf("load permissions for %q", username), err)
	}
	return perms, nil
}

// SavePermission inserts the record and fills in its store-assigned id.
func (r *SqliteRepository) SavePermission(ctx context.Context, perm *access.Permission) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO permissions (applies_to, path, action, affects_children) VALUES (?, ?, ?, ?)`,
		perm.Owner, perm.Path, perm.Action, perm.AffectsChildren)
	if err != nil {
		return wrapStorage(fmt.Sprintf("save permission for %q", perm.Owner), err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return wrapStorage("read permission id", err)
	}
	perm.ID = id
	return nil
}

func (r *SqliteRepository) DeletePermission(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM permissions WHERE id = ?", id)
	if err != nil {
		return wrapStorage(fmt.Sprintf("delete permission %d", id), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete permission %d: %w", id, access.ErrNotFound)
	}
	return nil
}

// DeleteUser removes the user and every record they own in one transaction
// and returns the number of removed permission records.
func (r *SqliteRepository) DeleteUser(ctx context.Context, username string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, wrapStorage("begin delete user", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM permissions WHERE applies_to = ?", username)
	if err != nil {
		return 0, wrapStorage(fmt.Sprintf("delete permissions for %q", username), err)
	}
	removed, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, "DELETE FROM users WHERE username = ?", username)
	if err != nil {
		return 0, wrapStorage(fmt.Sprintf("delete user %q", username), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("delete user %q: %w", username, access.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapStorage("commit delete user", err)
	}
	return removed, nil
}

// wrapStorage maps driver errors into the engine's taxonomy: missing rows
// become ErrNotFound, everything else ErrStorage with the cause attached.
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, access.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, errors.Join(access.ErrStorage, err))
}

var _ access.Repository = (*SqliteRepository)(nil)
