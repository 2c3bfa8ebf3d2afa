package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays environment variables onto config.
//
// When envFile is set it is loaded with godotenv and a failure panics, like
// a broken JSON file. Otherwise a .env in the working directory is loaded if
// present. godotenv never overrides variables that are already set.
func parseEnv(config *Config, envFile string) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			panic(err)
		}
	} else {
		_ = godotenv.Load()
	}

	config.EndpointAddrHTTP = getEnvAsString("HTTP_ADDRESS", config.EndpointAddrHTTP)
	config.DatabaseDSN = getEnvAsString("DATABASE_DSN", config.DatabaseDSN)
	config.SecretKey = getEnvAsString("SECRET_KEY", config.SecretKey)
	config.MagicLinkMaxAge = getEnvAsDuration("MAGIC_LINK_MAX_AGE", config.MagicLinkMaxAge)
	config.PassportValidityDuration = getEnvAsDuration("PASSPORT_VALIDITY", config.PassportValidityDuration)
	config.PassportBudgetCap = getEnvAsInt64("PASSPORT_BUDGET_CAP", config.PassportBudgetCap)
	config.PassportBudgetDivisor = getEnvAsInt64("PASSPORT_BUDGET_DIVISOR", config.PassportBudgetDivisor)
	config.PublicURL = getEnvAsString("PUBLIC_URL", config.PublicURL)
	config.DashboardPath = getEnvAsString("DASHBOARD_PATH", config.DashboardPath)
	config.SessionCookieName = getEnvAsString("SESSION_COOKIE_NAME", config.SessionCookieName)
	config.SessionMaxAge = getEnvAsDuration("SESSION_MAX_AGE", config.SessionMaxAge)
	config.ServiceToken = getEnvAsString("SERVICE_TOKEN", config.ServiceToken)
	config.EmailProvider = getEnvAsString("EMAIL_PROVIDER", config.EmailProvider)
	config.EmailAPIKey = getEnvAsString("EMAIL_API_KEY", config.EmailAPIKey)
	if config.EmailAPIKey == "" {
		switch config.EmailProvider {
		case "resend":
			config.EmailAPIKey = os.Getenv("RESEND_API_KEY")
		case "sendgrid":
			config.EmailAPIKey = os.Getenv("SENDGRID_API_KEY")
		}
	}
	config.EmailSender = getEnvAsString("EMAIL_SENDER", config.EmailSender)
	config.RedisAddr = getEnvAsString("REDIS_ADDR", config.RedisAddr)
	config.RedisPassword = getEnvAsString("REDIS_PASSWORD", config.RedisPassword)
	config.LoginRateLimit = getEnvAsInt("LOGIN_RATE_LIMIT", config.LoginRateLimit)
	config.LoginRateWindow = getEnvAsDuration("LOGIN_RATE_WINDOW", config.LoginRateWindow)
	config.S3RootUser = getEnvAsString("S3_ROOT_USER", config.S3RootUser)
	config.S3RootPassword = getEnvAsString("S3_ROOT_PASSWORD", config.S3RootPassword)
	config.S3Bucket = getEnvAsString("S3_BUCKET", config.S3Bucket)
	config.S3Region = getEnvAsString("S3_REGION", config.S3Region)
	config.S3BaseEndpoint = getEnvAsString("S3_BASE_ENDPOINT", config.S3BaseEndpoint)
	config.LogLevel = getEnvAsString("LOG_LEVEL", config.LogLevel)
}

func getEnvAsString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("15m") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
