package model

import "time"

// ActivityRecord models a row in the insert-only `activity_logs` table.
// Every authorization decision and administrative mutation is appended
// here for audit. The engine never reads this table back; it exists for
// operators and downstream consumers only.
type ActivityRecord struct {
	ID         uint64    // activity_logs.id
	ExternalID *string   // activity_logs.external_id (nullable)
	HWID       *string   // activity_logs.hwid (nullable)
	Action     string    // activity_logs.action
	Details    string    // activity_logs.details
	Timestamp  time.Time // activity_logs.timestamp
}
