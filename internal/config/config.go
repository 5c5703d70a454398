// Package config loads application configuration from environment
// variables. Required variables halt startup when missing; tunables fall
// back to documented defaults.
package config

import (
	"log"
	"os"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	AMQPURL string // broker URL for notification queues

	GatewayBaseURL string // payment gateway base URL
	GatewayAPIKey  string // payment gateway API key

	FreeCancelWindow time.Duration // full refund at or above this lead time
	LateCancelWindow time.Duration // fee-reduced refund at or above this lead time
	LateCancelFeePct int64         // percent retained on late cancellations
	RejectNoRefund   bool          // reject instead of permit zero-refund cancellations
	WaitlistClaimTTL time.Duration // how long a promoted client may claim the seat
	ClaimSweepEvery  time.Duration // claim-expiry sweeper interval
	NotifyBufferSize int           // dispatcher queue depth
}

// Load reads configuration from environment variables. Required
// variables are enforced by must(); missing values exit with a fatal log
// message.
func Load() Config {
	return Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		AMQPURL: must("AMQP_URL"),

		GatewayBaseURL: must("PAYMENT_GATEWAY_URL"),
		GatewayAPIKey:  must("PAYMENT_GATEWAY_API_KEY"),

		FreeCancelWindow: time.Duration(envInt("FREE_CANCEL_WINDOW_HOURS", 24)) * time.Hour,
		LateCancelWindow: time.Duration(envInt("LATE_CANCEL_WINDOW_HOURS", 12)) * time.Hour,
		LateCancelFeePct: int64(envInt("LATE_CANCEL_FEE_PERCENT", 50)),
		RejectNoRefund:   envBool("REJECT_NO_REFUND_CANCEL", false),
		WaitlistClaimTTL: time.Duration(envInt("WAITLIST_CLAIM_WINDOW_HOURS", 2)) * time.Hour,
		ClaimSweepEvery:  envDur("CLAIM_SWEEP_INTERVAL", time.Minute),
		NotifyBufferSize: envInt("NOTIFY_BUFFER_SIZE", 256),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
