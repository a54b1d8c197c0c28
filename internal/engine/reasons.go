package engine

import "time"

// Reason classifies the outcome of an access decision. Exactly one
// reason applies per decision; when several could, the earlier check in
// the verification order wins, so a banned device on an expired
// subscription reports EXPIRED, not BLACKLISTED.
type Reason string

const (
	ReasonValid             Reason = "VALID"
	ReasonInvalidCredential Reason = "INVALID_CREDENTIAL"
	ReasonRevoked           Reason = "REVOKED"
	ReasonExpired           Reason = "EXPIRED"
	ReasonBlacklisted       Reason = "BLACKLISTED"
	ReasonDeviceMismatch    Reason = "DEVICE_MISMATCH"
)

// Journal action labels. These are stable strings consumed by the
// operators' tooling; renaming one is a breaking change.
const (
	ActionKeyRedeemed   = "KEY_REDEEMED"
	ActionKeysIssued    = "KEYS_ISSUED"
	ActionKeyRevoked    = "KEY_REVOKED"
	ActionDeviceBound   = "HWID_BOUND"
	ActionDeviceChanged = "DEVICE_CHANGED"
	ActionDeviceReset   = "HWID_RESET"
	ActionBlacklisted   = "BLACKLISTED"
	ActionUnblacklisted = "UNBLACKLISTED"
	ActionVerifyDenied  = "VERIFY_DENIED"
	ActionVerifyGranted = "VERIFY_OK"
	ActionTamperAlert   = "TAMPER_ALERT"
	ActionWhitelisted   = "WHITELISTED"
	ActionScriptAdded   = "SCRIPT_ADDED"
)

// Decision is the result of a verification. Allowed is true only for
// ReasonValid; the remaining fields carry grant details the client
// needs to proceed (script location and version in shared-key mode,
// subscription expiry in both modes).
type Decision struct {
	Allowed    bool       `json:"allowed"`
	Reason     Reason     `json:"reason"`
	Message    string     `json:"message,omitempty"`
	ExternalID string     `json:"external_id,omitempty"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	ScriptURL  string     `json:"script_url,omitempty"`
	Version    string     `json:"version,omitempty"`
}

func deny(reason Reason, msg string) Decision {
	return Decision{Allowed: false, Reason: reason, Message: msg}
}
