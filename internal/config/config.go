package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string

	// Calendar
	CalendarProvider          string // google | memory
	GoogleCalendarID          string
	GoogleServiceAccountEmail string
	GoogleServiceAccountKey   string
	CalendarTimeout           time.Duration
	ClinicTimezone            string

	// Audit log spreadsheet; empty GSheetID logs entries instead.
	GSheetID  string
	GSheetTab string

	// Chat completion
	ChatProvider  string // retell | gemini
	RetellAPIKey  string
	RetellBaseURL string
	ChatModel     string
	GeminiAPIKey  string
	GeminiModelID string

	// Free/busy cache; disabled when RedisAddr is empty.
	RedisAddr        string
	RedisPassword    string
	FreeBusyCacheTTL time.Duration

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	ToolsJWTSecret string
	RateLimitRPS   float64
	RateLimitBurst int

	AvailabilityMaxSlots   int
	AvailabilityWindowDays int
	AvailabilityMaxWindow  int // days
	SlotStepMinutes        int
}

// Load reads configuration from environment variables
func Load() *Config {
	calendarID := getEnv("GOOGLE_CALENDAR_ID", "")
	calendarProvider := "memory"
	if calendarID != "" {
		calendarProvider = "google"
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		CalendarProvider:          strings.ToLower(strings.TrimSpace(getEnv("CALENDAR_PROVIDER", calendarProvider))),
		GoogleCalendarID:          calendarID,
		GoogleServiceAccountEmail: getEnv("GOOGLE_SERVICE_ACCOUNT_EMAIL", ""),
		GoogleServiceAccountKey:   getEnv("GOOGLE_SERVICE_ACCOUNT_KEY", ""),
		CalendarTimeout:           getEnvAsDuration("CALENDAR_TIMEOUT", 20*time.Second),
		ClinicTimezone:            getEnv("CLINIC_TIMEZONE", "UTC"),

		GSheetID:  getEnv("GSHEET_ID", ""),
		GSheetTab: getEnv("GSHEET_TAB", "Bookings"),

		ChatProvider:  strings.ToLower(strings.TrimSpace(getEnv("CHAT_PROVIDER", "retell"))),
		RetellAPIKey:  getEnv("RETELL_API_KEY", ""),
		RetellBaseURL: getEnv("RETELL_BASE_URL", "https://api.retellai.com/v2"),
		ChatModel:     getEnv("CHAT_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		FreeBusyCacheTTL: getEnvAsDuration("FREEBUSY_CACHE_TTL", 30*time.Second),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Pharmacy Appointments"),

		ToolsJWTSecret: getEnv("TOOLS_JWT_SECRET", ""),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 20),

		AvailabilityMaxSlots:   getEnvAsInt("AVAILABILITY_MAX_SLOTS", 10),
		AvailabilityWindowDays: getEnvAsInt("AVAILABILITY_WINDOW_DAYS", 14),
		AvailabilityMaxWindow:  getEnvAsInt("AVAILABILITY_MAX_WINDOW_DAYS", 90),
		SlotStepMinutes:        getEnvAsInt("SLOT_STEP_MINUTES", 15),
	}
}

// Validate checks that the selected providers have their credentials.
func (c *Config) Validate() error {
	var errs []error
	switch c.CalendarProvider {
	case "google":
		if c.GoogleCalendarID == "" || c.GoogleServiceAccountEmail == "" || c.GoogleServiceAccountKey == "" {
			errs = append(errs, errors.New("config: google calendar requires GOOGLE_CALENDAR_ID, GOOGLE_SERVICE_ACCOUNT_EMAIL and GOOGLE_SERVICE_ACCOUNT_KEY"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("config: unknown CALENDAR_PROVIDER %q", c.CalendarProvider))
	}
	switch c.ChatProvider {
	case "retell", "gemini", "":
	default:
		errs = append(errs, fmt.Errorf("config: unknown CHAT_PROVIDER %q", c.ChatProvider))
	}
	if c.GSheetID != "" && (c.GoogleServiceAccountEmail == "" || c.GoogleServiceAccountKey == "") {
		errs = append(errs, errors.New("config: GSHEET_ID requires the google service account credentials"))
	}
	if _, err := time.LoadLocation(c.ClinicTimezone); err != nil {
		errs = append(errs, fmt.Errorf("config: invalid CLINIC_TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

// Location returns the clinic time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
