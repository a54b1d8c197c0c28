package engine

import (
	"context"
	"log"
	"time"

	"github.com/visualscripts/license-api/internal/queue"
)

// record appends an entry to the activity journal and mirrors it onto
// the broker. Journaling is observability, not correctness: a failed
// append is logged and swallowed so it can never turn a valid decision
// into an error.
func (e *Engine) record(ctx context.Context, externalID, fingerprint *string, action, details string) {
	if err := e.journal.Append(ctx, externalID, fingerprint, action, details); err != nil {
		log.Printf("journal: append %s failed: %v", action, err)
	}
	if e.pub == nil {
		return
	}
	ev := queue.ActivityEvent{
		Action:     action,
		Details:    details,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if externalID != nil {
		ev.ExternalID = *externalID
	}
	if fingerprint != nil {
		ev.Fingerprint = *fingerprint
	}
	if err := e.pub.PublishActivity(ctx, ev); err != nil {
		log.Printf("journal: publish %s failed: %v", action, err)
	}
}
