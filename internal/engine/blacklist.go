package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/visualscripts/license-api/internal/model"
	"github.com/visualscripts/license-api/internal/queue"
)

// BlacklistStatus is a read-only blacklist verdict for one device.
type BlacklistStatus struct {
	Banned bool                  `json:"banned"`
	Entry  *model.BlacklistEntry `json:"entry,omitempty"`
}

// CheckBlacklist reports whether a device is banned without changing
// any state. Clients poll this during a session to catch bans issued
// after startup.
func (e *Engine) CheckBlacklist(ctx context.Context, fingerprint string) (BlacklistStatus, error) {
	fp := canonicalFingerprint(fingerprint)
	entry, err := e.bans.Check(ctx, fp)
	if errors.Is(err, sql.ErrNoRows) {
		return BlacklistStatus{Banned: false}, nil
	}
	if err != nil {
		return BlacklistStatus{}, err
	}
	return BlacklistStatus{Banned: true, Entry: &entry}, nil
}

// Ban puts a device on the blacklist and deactivates every subscriber
// currently bound to it, in one transaction. The insert and the cascade
// commit together so there is no window where the device is banned but
// a bound subscriber still reads active. Returns how many subscribers
// the cascade deactivated.
func (e *Engine) Ban(ctx context.Context, fingerprint, reason, actor string, externalID *string) (int64, error) {
	fp := canonicalFingerprint(fingerprint)

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := e.bans.AddTx(ctx, tx, fp, reason, actor, externalID); err != nil {
		return 0, err
	}
	n, err := e.subs.DeactivateByFingerprintTx(ctx, tx, fp)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true

	e.record(ctx, externalID, &fp, ActionBlacklisted,
		fmt.Sprintf("%s by %s, %d subscribers deactivated", reason, actor, n))
	return n, nil
}

// Unban removes a device from the blacklist. Subscribers the ban
// deactivated stay deactivated; restoring them is a separate, explicit
// whitelist action so lifting a ban never silently re-grants access.
func (e *Engine) Unban(ctx context.Context, fingerprint, actor string) error {
	fp := canonicalFingerprint(fingerprint)
	if err := e.bans.Remove(ctx, fp); err != nil {
		return err
	}
	e.record(ctx, nil, &fp, ActionUnblacklisted, "by "+actor)
	return nil
}

// ReportTamper journals a client-side tamper report and pushes it to
// the alert queue. The report itself never changes authorization state;
// operators decide whether it warrants a ban.
func (e *Engine) ReportTamper(ctx context.Context, externalID, fingerprint, detail, clientIP string) error {
	var extPtr, fpPtr *string
	if externalID != "" {
		extPtr = &externalID
	}
	var fp string
	if fingerprint != "" {
		fp = canonicalFingerprint(fingerprint)
		fpPtr = &fp
	}
	e.record(ctx, extPtr, fpPtr, ActionTamperAlert, detail)
	if e.pub == nil {
		return nil
	}
	return e.pub.PublishTamperAlert(ctx, queue.TamperAlertEvent{
		ExternalID:  externalID,
		Fingerprint: fp,
		Detail:      detail,
		ClientIP:    clientIP,
		ReportedAt:  time.Now().UTC().Format(time.RFC3339),
	})
}
