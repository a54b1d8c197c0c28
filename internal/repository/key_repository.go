package repository

import (
	"context"
	"database/sql"

	"github.com/visualscripts/license-api/internal/model"
)

// KeyRepo owns the lifecycle of redeemable license keys in the
// keys_ledger table. A key moves unused -> redeemed exactly once and
// never back; the transition is a single conditional UPDATE so that
// concurrent redemption attempts on the same code produce exactly one
// winner. All timestamps are stored in UTC.
type KeyRepo struct {
	db *sql.DB
}

// NewKeyRepo returns a new KeyRepo bound to the given database.
func NewKeyRepo(db *sql.DB) *KeyRepo { return &KeyRepo{db: db} }

// Issue inserts a fresh unredeemed key with the given duration. A
// key-code collision (the generator is random, the column is UNIQUE)
// surfaces as ErrConflict so the caller can generate a new code instead
// of silently overwriting.
func (r *KeyRepo) Issue(ctx context.Context, keyCode string, durationDays int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO keys_ledger (key_code, duration_days) VALUES (?, ?)`,
		keyCode, durationDays)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// GetByCode fetches a key by its code regardless of redemption state.
// sql.ErrNoRows is returned when the code is unknown.
func (r *KeyRepo) GetByCode(ctx context.Context, keyCode string) (model.LicenseKey, error) {
	var (
		k          model.LicenseKey
		redeemedBy sql.NullString
		redeemedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, key_code, duration_days, is_redeemed, redeemed_by, redeemed_at, created_at
		 FROM keys_ledger WHERE key_code = ? LIMIT 1`, keyCode).
		Scan(&k.ID, &k.KeyCode, &k.DurationDays, &k.IsRedeemed, &redeemedBy, &redeemedAt, &k.CreatedAt)
	if err != nil {
		return model.LicenseKey{}, err
	}
	if redeemedBy.Valid {
		v := redeemedBy.String
		k.RedeemedBy = &v
	}
	if redeemedAt.Valid {
		t := redeemedAt.Time
		k.RedeemedAt = &t
	}
	return k, nil
}

// RedeemTx consumes an unused key on behalf of an external identity and
// returns its duration. The check-then-set is a single conditional
// UPDATE: when RowsAffected is zero the key was either never issued
// (sql.ErrNoRows) or already consumed (ErrKeyRedeemed), distinguished
// by a follow-up read inside the same transaction. Callers pair this
// with SubscriberRepo.ActivateTx in one transaction so the key flip and
// the subscriber extension commit or roll back together.
func (r *KeyRepo) RedeemTx(ctx context.Context, tx *sql.Tx, keyCode, externalID string) (int, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE keys_ledger SET is_redeemed = 1, redeemed_by = ?, redeemed_at = UTC_TIMESTAMP()
		 WHERE key_code = ? AND is_redeemed = 0`,
		externalID, keyCode)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		var redeemed bool
		err := tx.QueryRowContext(ctx,
			`SELECT is_redeemed FROM keys_ledger WHERE key_code = ? LIMIT 1`, keyCode).Scan(&redeemed)
		if err != nil {
			return 0, err // sql.ErrNoRows: no such key
		}
		return 0, ErrKeyRedeemed
	}
	var duration int
	err = tx.QueryRowContext(ctx,
		`SELECT duration_days FROM keys_ledger WHERE key_code = ? LIMIT 1`, keyCode).Scan(&duration)
	if err != nil {
		return 0, err
	}
	return duration, nil
}

// Delete removes a key record. Deleting a redeemed key is permitted
// and does not retroactively deactivate the subscriber who consumed
// it: redemption effects are independent of the key record's lifetime.
// It returns sql.ErrNoRows when the code is unknown.
func (r *KeyRepo) Delete(ctx context.Context, keyCode string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM keys_ledger WHERE key_code = ?`, keyCode)
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

// CountRedeemed returns how many keys have been consumed.
func (r *KeyRepo) CountRedeemed(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM keys_ledger WHERE is_redeemed = 1`).Scan(&n)
	return n, err
}
