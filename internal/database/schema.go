package database

import (
	"context"
	"database/sql"
)

// schema contains the DDL for every table the service owns. Statements
// are idempotent (CREATE TABLE IF NOT EXISTS) so InitSchema can run at
// every startup. All timestamps are DATETIME stored in UTC; the DSN
// built by Open pins the session to UTC so DEFAULT CURRENT_TIMESTAMP
// values stay unambiguous.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS subscribers (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		external_id VARCHAR(64) NOT NULL UNIQUE,
		username VARCHAR(128) NOT NULL,
		hwid CHAR(64) NULL,
		license_key VARCHAR(64) NULL UNIQUE,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		expiry_date DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_reset DATETIME NULL,
		INDEX idx_subscribers_hwid (hwid)
	)`,
	`CREATE TABLE IF NOT EXISTS keys_ledger (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		key_code VARCHAR(64) NOT NULL UNIQUE,
		duration_days INT NOT NULL,
		is_redeemed TINYINT(1) NOT NULL DEFAULT 0,
		redeemed_by VARCHAR(64) NULL,
		redeemed_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS scripts (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		name VARCHAR(128) NOT NULL,
		description VARCHAR(255) NOT NULL DEFAULT '',
		script_key VARCHAR(64) NOT NULL UNIQUE,
		script_url VARCHAR(255) NOT NULL DEFAULT '',
		version VARCHAR(32) NOT NULL DEFAULT '1.0.0',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS blacklist (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		hwid CHAR(64) NOT NULL UNIQUE,
		reason VARCHAR(255) NOT NULL,
		blacklisted_by VARCHAR(64) NOT NULL,
		external_id VARCHAR(64) NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		external_id VARCHAR(64) NULL,
		hwid CHAR(64) NULL,
		action VARCHAR(64) NOT NULL,
		details VARCHAR(255) NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS hwid_registry (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		external_id VARCHAR(64) NOT NULL,
		hwid CHAR(64) NOT NULL,
		registered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_hwid_registry (external_id, hwid)
	)`,
	`CREATE TABLE IF NOT EXISTS admins (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		username VARCHAR(64) NOT NULL UNIQUE,
		password_hash VARCHAR(128) NOT NULL,
		role VARCHAR(16) NOT NULL DEFAULT 'ADMIN',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		admin_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_refresh_tokens_hash (token_hash)
	)`,
}

// InitSchema creates any missing tables. It is safe to call on every
// startup and returns the first DDL error encountered.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
