// Package engine implements the authorization core: key redemption,
// device binding, blacklist enforcement and the access decision itself.
// It is transport independent; HTTP handlers translate requests into
// calls here and decisions back into responses. All multi-step
// mutations run in a single database transaction so partial states are
// never observable.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	"github.com/visualscripts/license-api/internal/config"
	"github.com/visualscripts/license-api/internal/queue"
	"github.com/visualscripts/license-api/internal/repository"
	"github.com/visualscripts/license-api/internal/utils"
)

// Engine-level sentinel errors surfaced to handlers.
var (
	// ErrCooldownActive is returned by ResetDevice when the subscriber
	// reset their device too recently.
	ErrCooldownActive = errors.New("reset cooldown active")
	// ErrBatchTooLarge is returned by IssueKeys when the requested count
	// exceeds the configured per-batch cap.
	ErrBatchTooLarge = errors.New("key batch exceeds maximum")
)

// Policy holds the tunable rules the engine applies. Values come from
// configuration at startup and do not change at runtime.
type Policy struct {
	AuthMode          string // config.ModeShared or config.ModePersonal
	MismatchPolicy    string // config.MismatchRebind or config.MismatchDeny
	ResetCooldownDays int
	MaxKeysPerBatch   int
}

// Publisher pushes engine events onto the message broker. Publishing is
// best effort; the engine never fails an operation because the broker
// was unreachable.
type Publisher interface {
	PublishActivity(ctx context.Context, ev queue.ActivityEvent) error
	PublishTamperAlert(ctx context.Context, ev queue.TamperAlertEvent) error
}

// Engine wires the repositories together under the configured policy.
type Engine struct {
	db      *sql.DB
	subs    *repository.SubscriberRepo
	keys    *repository.KeyRepo
	bans    *repository.BlacklistRepo
	scripts *repository.ScriptRepo
	journal *repository.ActivityRepo
	devices *repository.DeviceRepo
	policy  Policy
	pub     Publisher // nil disables broker publishing
}

// New constructs an Engine. pub may be nil when no broker is configured.
func New(db *sql.DB,
	subs *repository.SubscriberRepo,
	keys *repository.KeyRepo,
	bans *repository.BlacklistRepo,
	scripts *repository.ScriptRepo,
	journal *repository.ActivityRepo,
	devices *repository.DeviceRepo,
	policy Policy,
	pub Publisher,
) *Engine {
	return &Engine{
		db:      db,
		subs:    subs,
		keys:    keys,
		bans:    bans,
		scripts: scripts,
		journal: journal,
		devices: devices,
		policy:  policy,
		pub:     pub,
	}
}

// PolicyFromConfig builds the Policy out of a loaded Config.
func PolicyFromConfig(cfg config.Config) Policy {
	return Policy{
		AuthMode:          cfg.AuthMode,
		MismatchPolicy:    cfg.MismatchPolicy,
		ResetCooldownDays: cfg.ResetCooldownDays,
		MaxKeysPerBatch:   cfg.MaxKeysPerBatch,
	}
}

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

// canonicalFingerprint maps any client-supplied device identifier to
// the canonical digest stored in the database. Raw identifiers are
// hashed; values that already are a digest (admin tooling works with
// the digests it sees in listings) pass through unchanged.
func canonicalFingerprint(v string) string {
	if hexDigest.MatchString(v) {
		return v
	}
	return utils.HashFingerprint(v)
}
