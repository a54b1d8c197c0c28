package model

import "time"

// Subscriber represents a licensed user record as stored in the
// `subscribers` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags.
//
// A subscriber is keyed by the stable external identity (for example a
// Discord user ID). The bound device fingerprint is stored as the
// canonical SHA-256 digest of the raw HWID and is NULL until first use.
// Subscribers are never hard-deleted; deactivation flips IsActive so
// that the activity history stays attached to the row.
//
// Fields:
//  ID         – primary key identifier.
//  ExternalID – unique, stable external identity.
//  Username   – display name captured at provisioning time.
//  HWID       – bound device fingerprint digest (nil = no device bound).
//  LicenseKey – personal credential (nil in shared-key deployments).
//  IsActive   – whether the subscription is active.
//  ExpiryDate – when access lapses (nil = no expiry).
//  CreatedAt  – timestamp of creation.
//  LastReset  – when the device binding was last reset (nil = never).
type Subscriber struct {
	ID         uint64     // subscribers.id
	ExternalID string     // subscribers.external_id
	Username   string     // subscribers.username
	HWID       *string    // subscribers.hwid (nullable)
	LicenseKey *string    // subscribers.license_key (nullable)
	IsActive   bool       // subscribers.is_active
	ExpiryDate *time.Time // subscribers.expiry_date (nullable)
	CreatedAt  time.Time  // subscribers.created_at
	LastReset  *time.Time // subscribers.last_reset (nullable)
}

// Expired reports whether the subscriber's access has lapsed at the
// given instant. A nil expiry means the subscription never expires.
func (s *Subscriber) Expired(now time.Time) bool {
	return s.ExpiryDate != nil && s.ExpiryDate.Before(now)
}
