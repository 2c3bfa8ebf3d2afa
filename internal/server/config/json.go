package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/tokenbank/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON configuration file.
// Durations accept both "15m" strings and integer nanoseconds.
//
// Zero values mean "not set": the matching Config field keeps whatever the
// defaults put there.
type JsonConfig struct {
	EndpointAddrHTTP         string         `json:"endpoint_addr_http"`
	DatabaseDSN              string         `json:"database_dsn"`
	SecretKey                string         `json:"secret_key"`
	MagicLinkMaxAge          timex.Duration `json:"magic_link_max_age"`
	PassportValidityDuration timex.Duration `json:"passport_validity_duration"`
	PassportBudgetCap        int64          `json:"passport_budget_cap"`
	PassportBudgetDivisor    int64          `json:"passport_budget_divisor"`
	PublicURL                string         `json:"public_url"`
	DashboardPath            string         `json:"dashboard_path"`
	SessionCookieName        string         `json:"session_cookie_name"`
	SessionMaxAge            timex.Duration `json:"session_max_age"`
	ServiceToken             string         `json:"service_token"`
	EmailProvider            string         `json:"email_provider"`
	EmailAPIKey              string         `json:"email_api_key"`
	EmailSender              string         `json:"email_sender"`
	RedisAddr                string         `json:"redis_addr"`
	RedisPassword            string         `json:"redis_password"`
	LoginRateLimit           int            `json:"login_rate_limit"`
	LoginRateWindow          timex.Duration `json:"login_rate_window"`
	S3RootUser               string         `json:"s3_root_user"`
	S3RootPassword           string         `json:"s3_root_password"`
	S3Bucket                 string         `json:"s3_bucket"`
	S3Region                 string         `json:"s3_region"`
	S3BaseEndpoint           string         `json:"s3_base_endpoint"`
	LogLevel                 string         `json:"log_level"`
}

// parseJson overlays the JSON file at path onto config. An empty path is a
// no-op. If the file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config, path string) {
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.MagicLinkMaxAge.Duration > 0 {
		config.MagicLinkMaxAge = c.MagicLinkMaxAge.Duration
	}
	if c.PassportValidityDuration.Duration > 0 {
		config.PassportValidityDuration = c.PassportValidityDuration.Duration
	}
	if c.PassportBudgetCap > 0 {
		config.PassportBudgetCap = c.PassportBudgetCap
	}
	if c.PassportBudgetDivisor > 0 {
		config.PassportBudgetDivisor = c.PassportBudgetDivisor
	}
	setString(&config.PublicURL, c.PublicURL)
	setString(&config.DashboardPath, c.DashboardPath)
	setString(&config.SessionCookieName, c.SessionCookieName)
	if c.SessionMaxAge.Duration > 0 {
		config.SessionMaxAge = c.SessionMaxAge.Duration
	}
	setString(&config.ServiceToken, c.ServiceToken)
	setString(&config.EmailProvider, c.EmailProvider)
	setString(&config.EmailAPIKey, c.EmailAPIKey)
	setString(&config.EmailSender, c.EmailSender)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.LoginRateLimit > 0 {
		config.LoginRateLimit = c.LoginRateLimit
	}
	if c.LoginRateWindow.Duration > 0 {
		config.LoginRateWindow = c.LoginRateWindow.Duration
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
