package engine

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/visualscripts/license-api/internal/config"
	"github.com/visualscripts/license-api/internal/model"
	"github.com/visualscripts/license-api/internal/repository"
	"github.com/visualscripts/license-api/internal/utils"
)

// VerifyInput is one access check from a running client. Credential is
// the script key (shared mode) or the subscriber's personal license key
// (personal mode). Fingerprint is the device identifier as collected on
// the client; it is canonicalized before any lookup.
type VerifyInput struct {
	ExternalID  string
	Credential  string
	Fingerprint string
}

// VerifyAccess runs the full access decision in a fixed order:
// credential resolution, active flag, expiry, blacklist, then device
// binding. The first failing check decides; later checks are not
// consulted. The blacklist lookup and the binding mutation run in one
// transaction so a concurrent ban cannot slip between them. A nil
// error with Allowed=false is a definitive denial; a non-nil error
// means the check could not be completed and the caller must not treat
// it as a verdict either way.
func (e *Engine) VerifyAccess(ctx context.Context, in VerifyInput) (Decision, error) {
	fp := canonicalFingerprint(in.Fingerprint)
	cred := utils.NormalizeKey(in.Credential)

	var (
		sub model.Subscriber
		scr model.Script
		err error
	)
	switch e.policy.AuthMode {
	case config.ModePersonal:
		sub, err = e.subs.GetByCredential(ctx, cred)
		if errors.Is(err, sql.ErrNoRows) {
			e.record(ctx, nil, &fp, ActionVerifyDenied, "unknown license key")
			return deny(ReasonInvalidCredential, "invalid license key"), nil
		}
		if err != nil {
			return Decision{}, err
		}
		if in.ExternalID != "" && in.ExternalID != sub.ExternalID {
			e.record(ctx, &in.ExternalID, &fp, ActionVerifyDenied, "license key belongs to another identity")
			return deny(ReasonInvalidCredential, "invalid license key"), nil
		}
	default:
		scr, err = e.scripts.GetByKey(ctx, cred)
		if errors.Is(err, sql.ErrNoRows) {
			e.record(ctx, &in.ExternalID, &fp, ActionVerifyDenied, "unknown script key")
			return deny(ReasonInvalidCredential, "invalid script key"), nil
		}
		if err != nil {
			return Decision{}, err
		}
		sub, err = e.subs.GetByExternalID(ctx, in.ExternalID)
		if errors.Is(err, sql.ErrNoRows) {
			e.record(ctx, &in.ExternalID, &fp, ActionVerifyDenied, "no subscription")
			return deny(ReasonInvalidCredential, "no subscription for this identity"), nil
		}
		if err != nil {
			return Decision{}, err
		}
	}

	if !sub.IsActive {
		e.record(ctx, &sub.ExternalID, &fp, ActionVerifyDenied, "subscription revoked")
		return deny(ReasonRevoked, "subscription revoked"), nil
	}
	if sub.Expired(time.Now().UTC()) {
		e.record(ctx, &sub.ExternalID, &fp, ActionVerifyDenied, "subscription expired")
		return deny(ReasonExpired, "subscription expired"), nil
	}

	firstBind := sub.HWID == nil
	changed := false

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return Decision{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	bindErr := e.subs.BindDeviceTx(ctx, tx, sub.ExternalID, fp)
	if bindErr != nil && !errors.Is(bindErr, repository.ErrDeviceMismatch) {
		return Decision{}, bindErr
	}

	// The blacklist read shares the transaction with the binding write.
	// A ban committed while this request is in flight either ordered its
	// cascade after our row lock, in which case it deactivates the
	// binding we wrote, or it ordered before, in which case the read
	// below sees the entry and the binding rolls back with the denial.
	// Either way no grant survives a ban.
	if _, err := e.bans.CheckTx(ctx, tx, fp); err == nil {
		e.record(ctx, &sub.ExternalID, &fp, ActionVerifyDenied, "device blacklisted")
		return deny(ReasonBlacklisted, "device blacklisted"), nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Decision{}, err
	}

	if errors.Is(bindErr, repository.ErrDeviceMismatch) {
		if e.policy.MismatchPolicy == config.MismatchDeny {
			e.record(ctx, &sub.ExternalID, &fp, ActionVerifyDenied, "device mismatch")
			return deny(ReasonDeviceMismatch, "credential bound to another device"), nil
		}
		if err := e.subs.RebindDeviceTx(ctx, tx, sub.ExternalID, fp); err != nil {
			return Decision{}, err
		}
		changed = true
	}
	if err := tx.Commit(); err != nil {
		return Decision{}, err
	}
	committed = true

	// Registry and journal writes happen after commit; both are
	// idempotent or append-only, so losing them cannot corrupt state.
	if err := e.devices.Touch(ctx, sub.ExternalID, fp); err != nil {
		log.Printf("engine: device touch failed: %v", err)
	}
	switch {
	case changed:
		prev := ""
		if sub.HWID != nil {
			prev = *sub.HWID
		}
		e.record(ctx, &sub.ExternalID, &fp, ActionDeviceChanged, "rebound from "+prev)
	case firstBind:
		e.record(ctx, &sub.ExternalID, &fp, ActionDeviceBound, "first use")
	}
	e.record(ctx, &sub.ExternalID, &fp, ActionVerifyGranted, "")

	d := Decision{
		Allowed:    true,
		Reason:     ReasonValid,
		ExternalID: sub.ExternalID,
		ExpiryDate: sub.ExpiryDate,
	}
	if e.policy.AuthMode != config.ModePersonal {
		d.ScriptURL = scr.ScriptURL
		d.Version = scr.Version
	}
	return d, nil
}
