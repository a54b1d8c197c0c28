package model

import "time"

// LicenseKey models an entry in the `keys_ledger` table. A key is minted by an
// administrator with a fixed duration and can be redeemed exactly once;
// the redeemed flag is monotonic and there is no un-redeem. Deleting a
// key record after redemption does not retract the access it granted.
//
// Fields:
//  ID           – primary key identifier.
//  KeyCode      – unique, human-transcribable key string.
//  DurationDays – subscription length granted on redemption.
//  IsRedeemed   – whether the key has been consumed.
//  RedeemedBy   – external identity of the redeemer (nil until redeemed).
//  RedeemedAt   – when the key was consumed (nil until redeemed).
//  CreatedAt    – timestamp of creation.
type LicenseKey struct {
	ID           uint64     // keys_ledger.id
	KeyCode      string     // keys_ledger.key_code
	DurationDays int        // keys_ledger.duration_days
	IsRedeemed   bool       // keys_ledger.is_redeemed
	RedeemedBy   *string    // keys_ledger.redeemed_by (nullable)
	RedeemedAt   *time.Time // keys_ledger.redeemed_at (nullable)
	CreatedAt    time.Time  // keys_ledger.created_at
}
