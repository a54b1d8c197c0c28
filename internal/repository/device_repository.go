package repository

import (
	"context"
	"database/sql"
	"time"
)

// DeviceRepo provides data access to the hwid_registry table, the
// many-to-many record of which fingerprints have been seen for which
// identities. It exists for audit and the admin device list; the
// authoritative single binding lives on the subscriber row.
type DeviceRepo struct {
	db *sql.DB
}

// NewDeviceRepo returns a new DeviceRepo bound to the given database.
func NewDeviceRepo(db *sql.DB) *DeviceRepo { return &DeviceRepo{db: db} }

// Touch records that a fingerprint was seen for an identity, updating
// last_seen when the pair already exists. Idempotent by construction,
// so repeated registration calls with the same fingerprint are safe.
func (r *DeviceRepo) Touch(ctx context.Context, externalID, fingerprint string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO hwid_registry (external_id, hwid) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE last_seen = UTC_TIMESTAMP()`,
		externalID, fingerprint)
	return err
}

// DeviceListing is one row of the admin device list: a subscriber and
// the fingerprint currently bound to them, with the registry's
// last-seen timestamp when available.
type DeviceListing struct {
	ExternalID string     `json:"external_id"`
	Username   string     `json:"username"`
	HWID       string     `json:"hwid"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
}

// ListBound returns every subscriber with a bound fingerprint, most
// recently seen first.
func (r *DeviceRepo) ListBound(ctx context.Context) ([]DeviceListing, error) {
	const q = `SELECT s.external_id, s.username, s.hwid, h.last_seen
	           FROM subscribers s
	           LEFT JOIN hwid_registry h ON h.external_id = s.external_id AND h.hwid = s.hwid
	           WHERE s.hwid IS NOT NULL
	           ORDER BY h.last_seen DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	listings := make([]DeviceListing, 0)
	for rows.Next() {
		var (
			d        DeviceListing
			lastSeen sql.NullTime
		)
		if err := rows.Scan(&d.ExternalID, &d.Username, &d.HWID, &lastSeen); err != nil {
			return nil, err
		}
		if lastSeen.Valid {
			t := lastSeen.Time
			d.LastSeen = &t
		}
		listings = append(listings, d)
	}
	return listings, rows.Err()
}

// CountDistinct returns how many distinct fingerprints the registry has
// ever seen.
func (r *DeviceRepo) CountDistinct(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT hwid) FROM hwid_registry`).Scan(&n)
	return n, err
}
