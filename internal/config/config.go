package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"
)

// defaultCORSOrigins are the local frontends allowed when CORS_ORIGINS is unset.
var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://127.0.0.1:3000",
}

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Nested sections (mail) are loaded by their own
// helpers so they can be reused by the worker process.
type Config struct {
	Env             string   // application environment (e.g. "dev", "prod")
	Port            string   // HTTP port to listen on
	DBUser          string   // database username
	DBPass          string   // database password (optional)
	DBHost          string   // database host address
	DBPort          string   // database port number
	DBName          string   // database name
	DBAutoMigrate   bool     // apply migrations on startup
	DBMigrations    string   // migration source URL, e.g. file://migrations
	JWTSecret       string   // secret used to sign admin access tokens
	AccessTTLMin    int      // access token time-to-live in minutes
	RefreshTTLDays  int      // session token time-to-live in days
	BcryptCost      int      // bcrypt cost for password hashing
	PaymentKey      string   // 32-byte key (hex or base64) for payment field encryption
	CORSOrigins     []string // allowed browser origins
	CodeCleanupSpec string   // cron spec for purging stale verification codes
	LogLevel        string   // zap level: debug, info, warn, error
	LogDev          bool     // human readable console logs
	Mail            MailConfig
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"), // empty allowed
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		DBAutoMigrate:   envBool("DB_AUTO_MIGRATE", false),
		DBMigrations:    envStr("DB_MIGRATIONS", "file://migrations"),
		JWTSecret:       must("JWT_SECRET"),
		AccessTTLMin:    mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:  mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:      mustInt("BCRYPT_COST"),
		PaymentKey:      must("PAYMENT_ENC_KEY"),
		CORSOrigins:     parseList(os.Getenv("CORS_ORIGINS"), defaultCORSOrigins),
		CodeCleanupSpec: envStr("CODE_CLEANUP_SPEC", "@every 1h"),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		LogDev:          envBool("LOG_DEV", false),
		Mail:            LoadMailConfig(),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// parseList splits a comma separated value, falling back to def when empty.
func parseList(raw string, def []string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), def...)
	}
	return out
}
