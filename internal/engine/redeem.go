package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/visualscripts/license-api/internal/repository"
	"github.com/visualscripts/license-api/internal/utils"
)

// RedeemResult describes a successful redemption.
type RedeemResult struct {
	KeyCode      string     `json:"key_code"`
	DurationDays int        `json:"duration_days"`
	ExpiryDate   time.Time  `json:"expiry_date"`
	PreviousEnd  *time.Time `json:"previous_end,omitempty"`
}

// RedeemKey consumes an unused key for an external identity and
// activates or extends their subscription. The key flip and the
// subscriber update commit in one transaction, so a crash between them
// cannot burn a key without granting time. Redeeming on top of an
// unexpired subscription stacks: the new expiry extends the current one
// rather than restarting from now. The redeemed code becomes the
// subscriber's personal credential.
func (e *Engine) RedeemKey(ctx context.Context, externalID, username, keyCode string) (RedeemResult, error) {
	code := utils.NormalizeKey(keyCode)
	now := time.Now().UTC()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return RedeemResult{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	base := now
	var prevEnd *time.Time
	sub, err := e.subs.GetByExternalIDTx(ctx, tx, externalID)
	switch {
	case err == nil:
		if sub.ExpiryDate != nil && sub.ExpiryDate.After(now) {
			base = *sub.ExpiryDate
			prevEnd = sub.ExpiryDate
		}
	case errors.Is(err, sql.ErrNoRows):
		// first redemption for this identity
	default:
		return RedeemResult{}, err
	}

	duration, err := e.keys.RedeemTx(ctx, tx, code, externalID)
	if err != nil {
		return RedeemResult{}, err
	}
	expiry := base.Add(time.Duration(duration) * 24 * time.Hour)

	if err := e.subs.ActivateTx(ctx, tx, externalID, username, code, expiry); err != nil {
		return RedeemResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return RedeemResult{}, err
	}
	committed = true

	e.record(ctx, &externalID, nil, ActionKeyRedeemed,
		fmt.Sprintf("%s for %d days, expires %s", code, duration, expiry.Format(time.RFC3339)))
	return RedeemResult{KeyCode: code, DurationDays: duration, ExpiryDate: expiry, PreviousEnd: prevEnd}, nil
}

// issueAttempts bounds collision retries per generated key. The code
// space is 36^32 so a second collision in a row means something is
// broken, not unlucky.
const issueAttempts = 3

// IssueKeys generates count fresh keys of the given duration and
// persists them unredeemed. The count is capped by policy. Returns the
// generated codes; on a mid-batch failure the keys already inserted
// remain valid and the error reports how far it got.
func (e *Engine) IssueKeys(ctx context.Context, count, durationDays int, actor string) ([]string, error) {
	if count < 1 || count > e.policy.MaxKeysPerBatch {
		return nil, ErrBatchTooLarge
	}
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		var lastErr error
		for attempt := 0; attempt < issueAttempts; attempt++ {
			code, err := utils.GenerateKey()
			if err != nil {
				return codes, err
			}
			lastErr = e.keys.Issue(ctx, code, durationDays)
			if lastErr == nil {
				codes = append(codes, code)
				break
			}
			if !errors.Is(lastErr, repository.ErrConflict) {
				return codes, lastErr
			}
		}
		if lastErr != nil {
			return codes, lastErr
		}
	}
	e.record(ctx, nil, nil, ActionKeysIssued,
		fmt.Sprintf("%d keys x %d days by %s", len(codes), durationDays, actor))
	return codes, nil
}

// RevokeKey deletes an issued key. Unknown codes surface as
// sql.ErrNoRows. Revoking an already redeemed key removes the record
// only; the redemption it granted stands.
func (e *Engine) RevokeKey(ctx context.Context, keyCode, actor string) error {
	code := utils.NormalizeKey(keyCode)
	if err := e.keys.Delete(ctx, code); err != nil {
		return err
	}
	e.record(ctx, nil, nil, ActionKeyRevoked, code+" by "+actor)
	return nil
}
