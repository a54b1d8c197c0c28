package repository

import (
	"context"
	"database/sql"

	"github.com/visualscripts/license-api/internal/model"
)

// BlacklistRepo provides data access to the blacklist table. The
// fingerprint digest is the table's natural key; presence of a row is a
// standing veto checked before any grant. Entries are created and
// removed only by administrative action, never expired automatically.
type BlacklistRepo struct {
	db *sql.DB
}

// NewBlacklistRepo returns a new BlacklistRepo bound to the given database.
func NewBlacklistRepo(db *sql.DB) *BlacklistRepo { return &BlacklistRepo{db: db} }

// AddTx inserts a ban inside an existing transaction so the caller can
// cascade subscriber deactivation atomically with the insert. A
// fingerprint that is already banned surfaces as ErrConflict.
func (r *BlacklistRepo) AddTx(ctx context.Context, tx *sql.Tx, fingerprint, reason, actor string, externalID *string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO blacklist (hwid, reason, blacklisted_by, external_id) VALUES (?, ?, ?, ?)`,
		fingerprint, reason, actor, externalID)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// Check looks up a fingerprint. It returns the entry when banned and
// sql.ErrNoRows when not; no mutation either way.
func (r *BlacklistRepo) Check(ctx context.Context, fingerprint string) (model.BlacklistEntry, error) {
	return scanBlacklistRow(r.db.QueryRowContext(ctx,
		`SELECT id, hwid, reason, blacklisted_by, external_id, created_at
		 FROM blacklist WHERE hwid = ? LIMIT 1`, fingerprint))
}

// CheckTx is Check scoped to an existing transaction, used when the
// blacklist verdict must be consistent with a grant-dependent mutation
// in the same unit of work.
func (r *BlacklistRepo) CheckTx(ctx context.Context, tx *sql.Tx, fingerprint string) (model.BlacklistEntry, error) {
	return scanBlacklistRow(tx.QueryRowContext(ctx,
		`SELECT id, hwid, reason, blacklisted_by, external_id, created_at
		 FROM blacklist WHERE hwid = ? LIMIT 1`, fingerprint))
}

func scanBlacklistRow(row *sql.Row) (model.BlacklistEntry, error) {
	var (
		e          model.BlacklistEntry
		externalID sql.NullString
	)
	err := row.Scan(&e.ID, &e.HWID, &e.Reason, &e.BannedBy, &externalID, &e.CreatedAt)
	if err != nil {
		return model.BlacklistEntry{}, err
	}
	if externalID.Valid {
		v := externalID.String
		e.ExternalID = &v
	}
	return e, nil
}

// Remove deletes a ban. It does not reactivate subscribers that the ban
// deactivated; reinstatement is an explicit separate action so an unban
// can never silently restore access. sql.ErrNoRows when the
// fingerprint was not banned.
func (r *BlacklistRepo) Remove(ctx context.Context, fingerprint string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blacklist WHERE hwid = ?`, fingerprint)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the number of banned fingerprints.
func (r *BlacklistRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blacklist`).Scan(&n)
	return n, err
}
