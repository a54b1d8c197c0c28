package repository

import (
	"context"
	"database/sql"

	"github.com/visualscripts/license-api/internal/model"
)

// ScriptRepo provides data access to the scripts table. In shared-key
// deployments the script key is the credential clients present, so
// GetByKey sits on the hot verification path.
type ScriptRepo struct {
	db *sql.DB
}

// NewScriptRepo returns a new ScriptRepo bound to the given database.
func NewScriptRepo(db *sql.DB) *ScriptRepo { return &ScriptRepo{db: db} }

// Create registers a new script with its generated key. ErrConflict is
// returned when the key or an identical script already exists.
func (r *ScriptRepo) Create(ctx context.Context, name, description, scriptKey, scriptURL string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scripts (name, description, script_key, script_url) VALUES (?, ?, ?, ?)`,
		name, description, scriptKey, scriptURL)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// GetByKey resolves a shared credential to its script record.
// sql.ErrNoRows when the key is unknown.
func (r *ScriptRepo) GetByKey(ctx context.Context, scriptKey string) (model.Script, error) {
	var s model.Script
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, script_key, script_url, version, created_at
		 FROM scripts WHERE script_key = ? LIMIT 1`, scriptKey).
		Scan(&s.ID, &s.Name, &s.Description, &s.ScriptKey, &s.ScriptURL, &s.Version, &s.CreatedAt)
	if err != nil {
		return model.Script{}, err
	}
	return s, nil
}

// Count returns the number of registered scripts.
func (r *ScriptRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scripts`).Scan(&n)
	return n, err
}
