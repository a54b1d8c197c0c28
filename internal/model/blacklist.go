package model

import "time"

// BlacklistEntry models a row in the `blacklist` table. The device
// fingerprint digest is the natural key: its presence is a standing,
// credential-independent veto over every subscriber and key currently
// carrying that fingerprint. Entries are only ever removed manually.
//
// Fields:
//  ID         – primary key identifier.
//  HWID       – unique fingerprint digest being banned.
//  Reason     – free-text reason shown to the denied client.
//  BannedBy   – actor who placed the ban.
//  ExternalID – external identity linked at ban time (nil when unknown).
//  CreatedAt  – when the ban was placed.
type BlacklistEntry struct {
	ID         uint64    // blacklist.id
	HWID       string    // blacklist.hwid
	Reason     string    // blacklist.reason
	BannedBy   string    // blacklist.blacklisted_by
	ExternalID *string   // blacklist.external_id (nullable)
	CreatedAt  time.Time // blacklist.created_at
}
