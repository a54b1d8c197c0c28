// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// authorization engine and handlers to distinguish between different
// failure scenarios without string matching. Absent rows are reported
// as sql.ErrNoRows, the convention used throughout the codebase.
package repository

import (
	"errors"
	"strings"
)

// ErrConflict is returned when an insert collides with an existing
// unique row, such as generating a key code that already exists or
// blacklisting a fingerprint that is already banned. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrKeyRedeemed is returned when a redemption targets a key that
// exists but has already been consumed. Redemption is monotonic, so
// this state never clears.
var ErrKeyRedeemed = errors.New("key already redeemed")

// ErrNoDeviceBound is returned by a device reset when the subscriber
// has no fingerprint bound, so there is nothing to clear.
var ErrNoDeviceBound = errors.New("no device bound")

// ErrDeviceMismatch is returned by a conditional bind when the
// subscriber already carries a different fingerprint. The engine
// decides what to do with it according to the configured policy; the
// repository never overwrites a binding implicitly.
var ErrDeviceMismatch = errors.New("device fingerprint mismatch")

// isDuplicate reports whether err is a MySQL duplicate-entry error
// (code 1062) raised by a UNIQUE constraint.
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
