package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	Environment   string
	DatabaseURL   string
	RedisURL      string
	JWTSigningKey string

	// Webhook signature verification secret shared with the payment processor.
	WebhookSecret string

	// Payment processor client settings.
	ProcessorBaseURL string
	ProcessorAPIKey  string
	ProcessorTimeout time.Duration

	// Horizon before end date in which an active lease counts as expiring
	// and becomes renewable.
	RenewalHorizon time.Duration

	// Interval for the lease expiry sweep. Zero disables the sweep.
	ExpirySweepInterval time.Duration
}

const (
	defaultAddr             = ":8080"
	defaultProcessorTimeout = 10 * time.Second
	defaultRenewalHorizon   = 30 * 24 * time.Hour
	defaultSweepInterval    = time.Hour
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                envOr("LODGER_ADDR", defaultAddr),
		Environment:         envOr("LODGER_ENV", "development"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		JWTSigningKey:       envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		WebhookSecret:       os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		ProcessorBaseURL:    os.Getenv("PAYMENT_PROCESSOR_URL"),
		ProcessorAPIKey:     os.Getenv("PAYMENT_PROCESSOR_API_KEY"),
		ProcessorTimeout:    durationOr("PAYMENT_PROCESSOR_TIMEOUT", defaultProcessorTimeout),
		RenewalHorizon:      durationOr("LEASE_RENEWAL_HORIZON", defaultRenewalHorizon),
		ExpirySweepInterval: durationOr("LEASE_EXPIRY_SWEEP_INTERVAL", defaultSweepInterval),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Plain integers are treated as seconds for operator convenience.
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
