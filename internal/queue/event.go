// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names used by publishers and consumers.
const (
	QueueTamperAlert = "tamper.alert"
	QueueActivity    = "license.activity"
)

// TamperAlertEvent is published when a client reports that its loader
// detected tampering (debugger, patched binary, hook). Consumers forward
// it to the operators' webhook and keep a local trail.
type TamperAlertEvent struct {
	ExternalID  string `json:"external_id,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Detail      string `json:"detail"`
	ClientIP    string `json:"client_ip,omitempty"`
	ReportedAt  string `json:"reported_at"`
}

// ActivityEvent mirrors a journal entry for downstream consumers that
// want the activity stream without querying the primary database.
type ActivityEvent struct {
	ExternalID  string `json:"external_id,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Action      string `json:"action"`
	Details     string `json:"details,omitempty"`
	OccurredAt  string `json:"occurred_at"`
}
