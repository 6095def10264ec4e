package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

var validBackends = []string{BackendMemory, BackendSQLite, BackendRedis}

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	// CIDRs whose X-Forwarded-For / X-Real-IP headers are believed.
	TrustedProxies []string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	RedisURL     string

	// AMQP (disabled when AMQPURL is empty)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Total resolver
	AnalysisEndpoint string
	AnalysisTimeout  time.Duration
	MaxUploadBytes   int64

	// Ledger analytics
	DefaultCurrency string
	VATRate         float64
	SummaryCacheTTL time.Duration

	// Google Sheets mirror (worker)
	GoogleSpreadsheetID string
	GoogleSheetName     string

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		DataBackend:  strings.ToLower(getEnv("DATA_BACKEND", BackendMemory)),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/pricewatch.db"),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pricewatch"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "invoice_recorded"),

		AnalysisEndpoint: getEnv("ANALYSIS_ENDPOINT", ""),
		AnalysisTimeout:  getEnvDuration("ANALYSIS_TIMEOUT", 30*time.Second),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", 5*1024*1024)),

		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "GBP")),
		VATRate:         getEnvFloat("VAT_RATE", 0.20),
		SummaryCacheTTL: getEnvDuration("SUMMARY_CACHE_TTL", 5*time.Minute),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Invoices"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy %q: must be a CIDR such as 10.0.0.0/8", cidr))
		}
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case BackendRedis:
		if msg := checkURL("Redis", c.RedisURL, "redis", "rediss"); msg != "" {
			errors = append(errors, msg)
		}
	}

	if c.AMQPURL != "" {
		if msg := checkURL("AMQP", c.AMQPURL, "amqp", "amqps"); msg != "" {
			errors = append(errors, msg)
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.AnalysisEndpoint != "" {
		if msg := checkURL("analysis endpoint", c.AnalysisEndpoint, "http", "https"); msg != "" {
			errors = append(errors, msg)
		}
	}
	if c.AnalysisTimeout < time.Second || c.AnalysisTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid analysis timeout %v: must be between 1s and 2m", c.AnalysisTimeout))
	}
	if c.MaxUploadBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be positive", c.MaxUploadBytes))
	}

	if len(c.DefaultCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid default currency '%s': must be a 3-letter code", c.DefaultCurrency))
	}
	if !(c.VATRate >= 0 && c.VATRate < 1) {
		errors = append(errors, fmt.Sprintf("invalid VAT rate %v: must be at least 0 and below 1", c.VATRate))
	}
	if c.SummaryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must not be negative", c.SummaryCacheTTL))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateSheets reports what the sheet mirror needs beyond Validate.
func (c *Config) ValidateSheets() error {
	if strings.TrimSpace(c.GoogleSpreadsheetID) == "" {
		return fmt.Errorf("configuration validation failed:\n- Google Spreadsheet ID is required for the sheet mirror")
	}
	return nil
}

func checkURL(name, raw string, schemes ...string) string {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid %s URL '%s': %v", name, raw, err)
	}
	for _, s := range schemes {
		if parsedURL.Scheme == s {
			return ""
		}
	}
	return fmt.Sprintf("invalid %s URL scheme '%s': must be one of %v", name, parsedURL.Scheme, schemes)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
