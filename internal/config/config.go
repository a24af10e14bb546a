package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Confirmation escalation windows, measured before the appointment start.
	InitialConfirmWindow time.Duration
	ReminderWindow       time.Duration
	AutoCancelWindow     time.Duration
	NoShowGracePeriod    time.Duration

	// ShortLeadAutoConfirm treats appointments booked with less lead time than
	// the initial confirmation window as pre-confirmed instead of leaving them
	// stuck in a pending state the escalation jobs can never reach.
	ShortLeadAutoConfirm bool

	// Waitlist claim arbitration.
	WaitlistNotifyLimit int
	WaitlistClaimWindow time.Duration

	// Deposit handling.
	DepositAmountCents int
	PlatformFeePercent int

	// Scheduler cadences.
	EscalationInterval    time.Duration
	AutoCancelInterval    time.Duration
	NoShowInterval        time.Duration
	WaitlistSweepInterval time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		InitialConfirmWindow: getEnvAsDuration("CONFIRM_INITIAL_WINDOW", 72*time.Hour),
		ReminderWindow:       getEnvAsDuration("CONFIRM_REMINDER_WINDOW", 48*time.Hour),
		AutoCancelWindow:     getEnvAsDuration("CONFIRM_AUTO_CANCEL_WINDOW", 24*time.Hour),
		NoShowGracePeriod:    getEnvAsDuration("NO_SHOW_GRACE_PERIOD", 15*time.Minute),
		ShortLeadAutoConfirm: getEnvAsBool("SHORT_LEAD_AUTO_CONFIRM", true),

		WaitlistNotifyLimit: getEnvAsInt("WAITLIST_NOTIFY_LIMIT", 5),
		WaitlistClaimWindow: getEnvAsDuration("WAITLIST_CLAIM_WINDOW", 30*time.Minute),

		DepositAmountCents: getEnvAsInt("DEPOSIT_AMOUNT_CENTS", 5000),
		PlatformFeePercent: getEnvAsInt("PLATFORM_FEE_PERCENT", 0),

		EscalationInterval:    getEnvAsDuration("ESCALATION_INTERVAL", time.Hour),
		AutoCancelInterval:    getEnvAsDuration("AUTO_CANCEL_INTERVAL", 30*time.Minute),
		NoShowInterval:        getEnvAsDuration("NO_SHOW_INTERVAL", 15*time.Minute),
		WaitlistSweepInterval: getEnvAsDuration("WAITLIST_SWEEP_INTERVAL", 5*time.Minute),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
