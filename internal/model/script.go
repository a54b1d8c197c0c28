package model

import "time"

// Script models a row in the `scripts` table. In shared-key deployments
// the script key is the credential every client presents; the record
// also carries display metadata returned on a successful verification.
// Script content itself is delivered by a separate collaborator and is
// not stored through this service.
type Script struct {
	ID          uint64    // scripts.id
	Name        string    // scripts.name
	Description string    // scripts.description
	ScriptKey   string    // scripts.script_key
	ScriptURL   string    // scripts.script_url
	Version     string    // scripts.version
	CreatedAt   time.Time // scripts.created_at
}
