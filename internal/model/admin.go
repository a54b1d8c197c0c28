package model

import "time"

// Admin represents an operator account as stored in the `admins` table.
// Operators authenticate with a username and bcrypt-hashed password and
// receive JWT access tokens carrying their role.
type Admin struct {
	ID           uint64    // admins.id
	Username     string    // admins.username
	PasswordHash string    // admins.password_hash
	Role         string    // admins.role (ADMIN or PANEL)
	CreatedAt    time.Time // admins.created_at
}

// RefreshToken models an entry in the `refresh_tokens` table. Each
// refresh token belongs to an admin and contains metadata for expiry
// and revocation. The plain token is not stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	AdminID   uint64     // refresh_tokens.admin_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
