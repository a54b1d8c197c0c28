package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/visualscripts/license-api/internal/model"
)

// SubscriberRepo provides data access to the subscribers table. A
// subscriber row is the one-per-external-identity record carrying the
// active flag, expiry and the bound device fingerprint. All timestamp
// fields are stored in UTC. Binding mutations are deliberately narrow:
// BindDeviceTx only sets an unset fingerprint, RebindDeviceTx is the
// explicit overwrite used by the mismatch policy, and ResetDeviceTx is
// the only operation that clears one. Nothing here changes a binding
// implicitly.
type SubscriberRepo struct {
	db *sql.DB
}

// NewSubscriberRepo returns a new SubscriberRepo bound to the given database.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// that span multiple repositories.
func (r *SubscriberRepo) DB() *sql.DB { return r.db }

const subscriberCols = `id, external_id, username, hwid, license_key, is_active, expiry_date, created_at, last_reset`

// scanSubscriber reads one subscriber row from any row scanner.
func scanSubscriber(row *sql.Row) (model.Subscriber, error) {
	var (
		s          model.Subscriber
		hwid       sql.NullString
		licenseKey sql.NullString
		expiry     sql.NullTime
		lastReset  sql.NullTime
	)
	err := row.Scan(&s.ID, &s.ExternalID, &s.Username, &hwid, &licenseKey, &s.IsActive, &expiry, &s.CreatedAt, &lastReset)
	if err != nil {
		return model.Subscriber{}, err
	}
	if hwid.Valid {
		v := hwid.String
		s.HWID = &v
	}
	if licenseKey.Valid {
		v := licenseKey.String
		s.LicenseKey = &v
	}
	if expiry.Valid {
		t := expiry.Time
		s.ExpiryDate = &t
	}
	if lastReset.Valid {
		t := lastReset.Time
		s.LastReset = &t
	}
	return s, nil
}

// GetByExternalID fetches a subscriber by the stable external identity.
// sql.ErrNoRows is returned when no row exists.
func (r *SubscriberRepo) GetByExternalID(ctx context.Context, externalID string) (model.Subscriber, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriberCols+` FROM subscribers WHERE external_id = ? LIMIT 1`, externalID)
	return scanSubscriber(row)
}

// GetByCredential fetches a subscriber by their personal license key.
// Used in personal-key deployments where the credential identifies the
// subscriber directly.
func (r *SubscriberRepo) GetByCredential(ctx context.Context, licenseKey string) (model.Subscriber, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriberCols+` FROM subscribers WHERE license_key = ? LIMIT 1`, licenseKey)
	return scanSubscriber(row)
}

// GetByExternalIDTx is GetByExternalID scoped to an existing transaction,
// used when a decision must read and mutate the row atomically.
func (r *SubscriberRepo) GetByExternalIDTx(ctx context.Context, tx *sql.Tx, externalID string) (model.Subscriber, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+subscriberCols+` FROM subscribers WHERE external_id = ? LIMIT 1`, externalID)
	return scanSubscriber(row)
}

// Upsert creates or overwrites the subscriber row for an external
// identity. It is idempotent per identity: calling it twice with the
// same data leaves a single row. Expiry may be nil for no expiry. The
// bound fingerprint and last_reset are never touched here; those change
// only through the explicit bind and reset operations.
func (r *SubscriberRepo) Upsert(ctx context.Context, externalID, username string, expiry *time.Time, active bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscribers (external_id, username, expiry_date, is_active)
		 VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE username = VALUES(username), expiry_date = VALUES(expiry_date), is_active = VALUES(is_active)`,
		externalID, username, expiry, active)
	return err
}

// ActivateTx sets the credential, expiry and active flag for an
// identity as part of a redemption, inserting the row when the identity
// is new. Runs inside the redemption transaction so the key flip and
// the subscriber extension commit together.
func (r *SubscriberRepo) ActivateTx(ctx context.Context, tx *sql.Tx, externalID, username, licenseKey string, expiry time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO subscribers (external_id, username, license_key, expiry_date, is_active)
		 VALUES (?, ?, ?, ?, 1)
		 ON DUPLICATE KEY UPDATE username = VALUES(username), license_key = VALUES(license_key),
		                         expiry_date = VALUES(expiry_date), is_active = 1`,
		externalID, username, licenseKey, expiry.UTC().Format(sqlDatetime))
	if isDuplicate(err) {
		// The UNIQUE collision here can only be the license_key column,
		// since external_id duplicates are absorbed by the upsert.
		return ErrConflict
	}
	return err
}

// BindDeviceTx sets the bound fingerprint only if none is currently
// set: a compare-and-set on hwid IS NULL. When the update matches no
// row, the current value is re-read to distinguish an idempotent
// re-bind (same fingerprint, nil error) from a genuine mismatch
// (ErrDeviceMismatch) or a missing subscriber (sql.ErrNoRows). Two
// concurrent first binds therefore resolve to exactly one winner; the
// loser observes the winner's fingerprint.
func (r *SubscriberRepo) BindDeviceTx(ctx context.Context, tx *sql.Tx, externalID, fingerprint string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE subscribers SET hwid = ? WHERE external_id = ? AND hwid IS NULL`,
		fingerprint, externalID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var current sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT hwid FROM subscribers WHERE external_id = ? LIMIT 1`, externalID).Scan(&current)
	if err != nil {
		return err
	}
	if current.Valid && current.String == fingerprint {
		return nil // already bound to this device
	}
	return ErrDeviceMismatch
}

// RebindDeviceTx overwrites the bound fingerprint unconditionally. Only
// the engine's device-change policy calls this, after it has observed a
// mismatch and decided to allow the move.
func (r *SubscriberRepo) RebindDeviceTx(ctx context.Context, tx *sql.Tx, externalID, fingerprint string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE subscribers SET hwid = ? WHERE external_id = ?`, fingerprint, externalID)
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

// ResetDeviceTx clears the bound fingerprint and stamps last_reset,
// returning the fingerprint that was cleared. ErrNoDeviceBound is
// returned when nothing was bound; sql.ErrNoRows when the subscriber
// does not exist. The cooldown between resets is policy enforced by
// the caller using last_reset, keeping it externally configurable.
func (r *SubscriberRepo) ResetDeviceTx(ctx context.Context, tx *sql.Tx, externalID string) (string, error) {
	var current sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT hwid FROM subscribers WHERE external_id = ? LIMIT 1 FOR UPDATE`, externalID).Scan(&current)
	if err != nil {
		return "", err
	}
	if !current.Valid || strings.TrimSpace(current.String) == "" {
		return "", ErrNoDeviceBound
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE subscribers SET hwid = NULL, last_reset = UTC_TIMESTAMP() WHERE external_id = ?`, externalID)
	if err != nil {
		return "", err
	}
	return current.String, nil
}

// DeactivateByFingerprintTx flips is_active off for every subscriber
// currently bound to the fingerprint. Used by the blacklist cascade,
// inside the same transaction as the blacklist insert. It returns the
// number of subscribers deactivated.
func (r *SubscriberRepo) DeactivateByFingerprintTx(ctx context.Context, tx *sql.Tx, fingerprint string) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE subscribers SET is_active = 0 WHERE hwid = ?`, fingerprint)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountTotal returns the number of subscriber rows.
func (r *SubscriberRepo) CountTotal(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&n)
	return n, err
}

// CountActive returns the number of subscribers with is_active set.
func (r *SubscriberRepo) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers WHERE is_active = 1`).Scan(&n)
	return n, err
}

// sqlDatetime is the MySQL DATETIME layout used when binding explicit
// timestamps; the connection is pinned to UTC in the DSN.
const sqlDatetime = "2006-01-02 15:04:05"
