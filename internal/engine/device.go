package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/visualscripts/license-api/internal/config"
	"github.com/visualscripts/license-api/internal/repository"
)

// RegisterDevice binds a device to a subscriber outside of a full
// verification, as done by the loader on first launch. The blacklist is
// read inside the binding transaction, so a banned device can never end
// up in a committed binding. Registering the already-bound device is a
// no-op success. A different device follows the configured mismatch
// policy.
func (e *Engine) RegisterDevice(ctx context.Context, externalID, fingerprint string) (Decision, error) {
	fp := canonicalFingerprint(fingerprint)

	sub, err := e.subs.GetByExternalID(ctx, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return deny(ReasonInvalidCredential, "no subscription for this identity"), nil
	}
	if err != nil {
		return Decision{}, err
	}
	if !sub.IsActive {
		return deny(ReasonRevoked, "subscription revoked"), nil
	}

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

	firstBind := sub.HWID == nil
	changed := false
	bindErr := e.subs.BindDeviceTx(ctx, tx, externalID, fp)
	if bindErr != nil && !errors.Is(bindErr, repository.ErrDeviceMismatch) {
		return Decision{}, bindErr
	}

	// Same transaction as the binding write, same reasoning as the
	// verify path: a ban is seen here or its cascade sees our binding.
	if _, err := e.bans.CheckTx(ctx, tx, fp); err == nil {
		e.record(ctx, &externalID, &fp, ActionVerifyDenied, "registration from blacklisted device")
		return deny(ReasonBlacklisted, "device blacklisted"), nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Decision{}, err
	}

	if errors.Is(bindErr, repository.ErrDeviceMismatch) {
		if e.policy.MismatchPolicy == config.MismatchDeny {
			e.record(ctx, &externalID, &fp, ActionVerifyDenied, "registration device mismatch")
			return deny(ReasonDeviceMismatch, "another device is bound"), nil
		}
		if err := e.subs.RebindDeviceTx(ctx, tx, externalID, fp); err != nil {
			return Decision{}, err
		}
		changed = true
	}
	if err := tx.Commit(); err != nil {
		return Decision{}, err
	}
	committed = true

	if err := e.devices.Touch(ctx, externalID, fp); err != nil {
		log.Printf("engine: device touch failed: %v", err)
	}
	switch {
	case changed:
		e.record(ctx, &externalID, &fp, ActionDeviceChanged, "rebound via registration")
	case firstBind:
		e.record(ctx, &externalID, &fp, ActionDeviceBound, "registered")
	}
	return Decision{Allowed: true, Reason: ReasonValid, ExternalID: externalID, ExpiryDate: sub.ExpiryDate}, nil
}

// ResetOutcome reports a device reset, or the cooldown that blocked it.
type ResetOutcome struct {
	Cleared       string    `json:"-"`
	NextAllowedAt time.Time `json:"next_allowed_at,omitempty"`
	DaysRemaining int       `json:"days_remaining,omitempty"`
}

// ResetDevice clears a subscriber's bound device so their next launch
// binds fresh. Self-service resets are rate limited by the cooldown
// policy measured from last_reset; a blocked reset returns
// ErrCooldownActive together with when it unblocks. The read of
// last_reset and the clear run under one row lock, so two concurrent
// resets cannot both pass the cooldown gate.
func (e *Engine) ResetDevice(ctx context.Context, externalID string) (ResetOutcome, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return ResetOutcome{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sub, err := e.subs.GetByExternalIDTx(ctx, tx, externalID)
	if err != nil {
		return ResetOutcome{}, err
	}
	// Nothing bound outranks the cooldown: right after a reset the
	// subscriber has a fresh last_reset and no device, and the useful
	// answer is "nothing to clear", not a countdown.
	if sub.HWID == nil || strings.TrimSpace(*sub.HWID) == "" {
		return ResetOutcome{}, repository.ErrNoDeviceBound
	}
	if sub.LastReset != nil && e.policy.ResetCooldownDays > 0 {
		next := sub.LastReset.Add(time.Duration(e.policy.ResetCooldownDays) * 24 * time.Hour)
		now := time.Now().UTC()
		if now.Before(next) {
			remaining := int(math.Ceil(next.Sub(now).Hours() / 24))
			return ResetOutcome{NextAllowedAt: next, DaysRemaining: remaining}, ErrCooldownActive
		}
	}

	cleared, err := e.subs.ResetDeviceTx(ctx, tx, externalID)
	if err != nil {
		return ResetOutcome{}, err
	}
	if err := tx.Commit(); err != nil {
		return ResetOutcome{}, err
	}
	committed = true

	e.record(ctx, &externalID, &cleared, ActionDeviceReset, fmt.Sprintf("cleared %s", cleared))
	return ResetOutcome{Cleared: cleared}, nil
}
