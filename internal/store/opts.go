package store

import (
	"strings"
	"time"
)

// DefaultSessionTTL is how long an idle session survives before expiry.
const DefaultSessionTTL = 30 * time.Minute

// Opts holds configuration for store backends.
type Opts struct {
	// DSN selects the backend: a postgres:// or host= DSN for PostgreSQL,
	// a redis:// DSN for Redis, anything else is treated as a SQLite path.
	DSN string
	// SessionTTL is the idle lifetime backends with native expiry apply on
	// every save.
	SessionTTL time.Duration
}

// Option configures store construction.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisDSN sets a Redis connection URL.
func WithRedisDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSessionTTL sets the idle session lifetime for backends with native
// expiry (currently Redis).
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Opts) {
		if ttl > 0 {
			o.SessionTTL = ttl
		}
	}
}

// DetectDSNType reports which backend a DSN selects: "postgres", "redis",
// or "sqlite".
func DetectDSNType(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return "postgres"
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return "redis"
	default:
		return "sqlite"
	}
}
