package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Deployment modes for credential resolution. In shared mode every
// client presents the same script key; in personal mode each subscriber
// presents their own license key.
const (
	ModeShared   = "shared"
	ModePersonal = "personal"
)

// Device-mismatch policies applied when a verification arrives from a
// device other than the one bound to the credential.
const (
	MismatchRebind = "rebind"
	MismatchDeny   = "deny"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable. The types reflect how the values are used
// in the application: strings for identifiers and secrets, ints for
// durations and costs.
type Config struct {
	Env               string // application environment (e.g. "dev", "prod")
	Port              string // HTTP port to listen on
	DBUser            string // database username
	DBPass            string // database password (optional)
	DBHost            string // database host address
	DBPort            string // database port number
	DBName            string // database name
	JWTSecret         string // secret used to sign operator JWTs
	AccessTTLMin      int    // access token time-to-live in minutes
	RefreshTTLDays    int    // refresh token time-to-live in days
	BcryptCost        int    // bcrypt cost for operator password hashing
	AuthMode          string // credential mode: "shared" or "personal"
	MismatchPolicy    string // device-mismatch policy: "rebind" or "deny"
	ResetCooldownDays int    // minimum days between self-service device resets
	MaxKeysPerBatch   int    // upper bound on keys issued in one request
	TamperWebhookURL  string // Discord-compatible webhook for tamper alerts (optional)
}

// Load reads configuration values from environment variables and returns
// a Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message. Policy knobs fall
// back to the defaults the product shipped with: shared-key mode,
// implicit re-bind on device change, a 7 day reset cooldown and at most
// 20 keys per generation batch.
func Load() Config {
	return Config{
		Env:               must("APP_ENV"),
		Port:              must("APP_PORT"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"), // empty allowed
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		JWTSecret:         must("JWT_SECRET"),
		AccessTTLMin:      mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:    mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:        mustInt("BCRYPT_COST"),
		AuthMode:          mode(envStr("AUTH_MODE", ModeShared)),
		MismatchPolicy:    policy(envStr("DEVICE_MISMATCH_POLICY", MismatchRebind)),
		ResetCooldownDays: envInt("HWID_RESET_COOLDOWN_DAYS", 7),
		MaxKeysPerBatch:   envInt("MAX_KEYS_PER_BATCH", 20),
		TamperWebhookURL:  os.Getenv("DISCORD_WEBHOOK_URL"),
	}
}

// mode validates the AUTH_MODE value; anything unrecognized falls back
// to shared so a typo cannot silently turn on per-subscriber checks.
func mode(v string) string {
	if strings.EqualFold(v, ModePersonal) {
		return ModePersonal
	}
	return ModeShared
}

// policy validates DEVICE_MISMATCH_POLICY, defaulting to the observed
// reference behavior of re-binding with a logged device change.
func policy(v string) string {
	if strings.EqualFold(v, MismatchDeny) {
		return MismatchDeny
	}
	return MismatchRebind
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
