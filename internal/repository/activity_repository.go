package repository

import (
	"context"
	"database/sql"

	"github.com/visualscripts/license-api/internal/model"
)

// ActivityRepo appends to the insert-only activity_logs table. The
// authorization engine treats it as write-only: records are never read
// back to make a decision, only listed for operators.
type ActivityRepo struct {
	db *sql.DB
}

// NewActivityRepo returns a new ActivityRepo bound to the given database.
func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{db: db} }

// Append inserts one activity record. Either identity or fingerprint
// may be nil when unknown (anonymous verification attempts).
func (r *ActivityRepo) Append(ctx context.Context, externalID, fingerprint *string, action, details string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (external_id, hwid, action, details) VALUES (?, ?, ?, ?)`,
		externalID, fingerprint, action, details)
	return err
}

// ListRecent returns the newest records first, bounded by limit. Used
// by the admin surface only.
func (r *ActivityRepo) ListRecent(ctx context.Context, limit int) ([]model.ActivityRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, external_id, hwid, action, details, timestamp
		 FROM activity_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := make([]model.ActivityRecord, 0, limit)
	for rows.Next() {
		var (
			rec        model.ActivityRecord
			externalID sql.NullString
			hwid       sql.NullString
		)
		if err := rows.Scan(&rec.ID, &externalID, &hwid, &rec.Action, &rec.Details, &rec.Timestamp); err != nil {
			return nil, err
		}
		if externalID.Valid {
			v := externalID.String
			rec.ExternalID = &v
		}
		if hwid.Valid {
			v := hwid.String
			rec.HWID = &v
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
