package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/visualscripts/license-api/internal/model"
	"github.com/visualscripts/license-api/internal/repository"
	"github.com/visualscripts/license-api/internal/utils"
)

// Whitelist provisions or extends a subscription directly, bypassing
// key redemption. days <= 0 grants a subscription with no expiry. The
// bound device is untouched, so whitelisting after a ban-induced
// deactivation restores access without unbinding.
func (e *Engine) Whitelist(ctx context.Context, externalID, username string, days int, actor string) (*time.Time, error) {
	var expiry *time.Time
	if days > 0 {
		t := time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)
		expiry = &t
	}
	if err := e.subs.Upsert(ctx, externalID, username, expiry, true); err != nil {
		return nil, err
	}
	detail := fmt.Sprintf("by %s, %d days", actor, days)
	if days <= 0 {
		detail = "by " + actor + ", no expiry"
	}
	e.record(ctx, &externalID, nil, ActionWhitelisted, detail)
	return expiry, nil
}

// AddScript registers a script and returns its generated shared key.
// The key reuses the license-key format so operators handle one shape
// of secret everywhere.
func (e *Engine) AddScript(ctx context.Context, name, description, scriptURL, actor string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < issueAttempts; attempt++ {
		key, err := utils.GenerateKey()
		if err != nil {
			return "", err
		}
		lastErr = e.scripts.Create(ctx, name, description, key, scriptURL)
		if lastErr == nil {
			e.record(ctx, nil, nil, ActionScriptAdded, name+" by "+actor)
			return key, nil
		}
		if !errors.Is(lastErr, repository.ErrConflict) {
			return "", lastErr
		}
	}
	return "", lastErr
}

// KeyInfo returns the issued key record for a code, redeemed or not.
func (e *Engine) KeyInfo(ctx context.Context, keyCode string) (model.LicenseKey, error) {
	return e.keys.GetByCode(ctx, utils.NormalizeKey(keyCode))
}

// Stats aggregates the counters shown on the admin dashboard.
type Stats struct {
	TotalSubscribers  int64 `json:"total_subscribers"`
	ActiveSubscribers int64 `json:"active_subscribers"`
	KeysRedeemed      int64 `json:"keys_redeemed"`
	BannedDevices     int64 `json:"banned_devices"`
	DistinctDevices   int64 `json:"distinct_devices"`
	Scripts           int64 `json:"scripts"`
}

// CollectStats gathers the dashboard counters in independent reads.
// The counters are informational; they do not need to be a consistent
// snapshot, so no transaction.
func (e *Engine) CollectStats(ctx context.Context) (Stats, error) {
	var (
		s   Stats
		err error
	)
	if s.TotalSubscribers, err = e.subs.CountTotal(ctx); err != nil {
		return Stats{}, err
	}
	if s.ActiveSubscribers, err = e.subs.CountActive(ctx); err != nil {
		return Stats{}, err
	}
	if s.KeysRedeemed, err = e.keys.CountRedeemed(ctx); err != nil {
		return Stats{}, err
	}
	if s.BannedDevices, err = e.bans.Count(ctx); err != nil {
		return Stats{}, err
	}
	if s.DistinctDevices, err = e.devices.CountDistinct(ctx); err != nil {
		return Stats{}, err
	}
	if s.Scripts, err = e.scripts.Count(ctx); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// ListDevices returns the admin device list.
func (e *Engine) ListDevices(ctx context.Context) ([]repository.DeviceListing, error) {
	return e.devices.ListBound(ctx)
}

// RecentActivity returns the newest journal entries.
func (e *Engine) RecentActivity(ctx context.Context, limit int) ([]model.ActivityRecord, error) {
	return e.journal.ListRecent(ctx, limit)
}

// Profile returns the subscriber record for an external identity.
func (e *Engine) Profile(ctx context.Context, externalID string) (model.Subscriber, error) {
	return e.subs.GetByExternalID(ctx, externalID)
}
