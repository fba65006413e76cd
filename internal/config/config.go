package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Apple    AppleConfig
	Google   GoogleConfig
	Vip      VipConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type AppleConfig struct {
	SharedSecret string
	BundleId     string
}

type GoogleConfig struct {
	PackageName        string
	ServiceAccountJSON string
}

// VipConfig drives the entitlement lifecycle: grace window after nominal
// expiry, day offsets for pre-expiry warnings, and the static catalog that
// maps platform product ids onto local plans.
type VipConfig struct {
	GracePeriodHours    int
	WarningDayOffsets   []int
	MonthlyProductIds   []string
	QuarterlyProductIds []string
	YearlyProductIds    []string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "LinguaExchange"),
		},
		Apple: AppleConfig{
			SharedSecret: getEnv("APPLE_SHARED_SECRET", ""),
			BundleId:     getEnv("APPLE_BUNDLE_ID", "com.linguaexchange.app"),
		},
		Google: GoogleConfig{
			PackageName:        getEnv("GOOGLE_PACKAGE_NAME", "com.linguaexchange.app"),
			ServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		},
		Vip: VipConfig{
			GracePeriodHours:    getEnvAsInt("VIP_GRACE_PERIOD_HOURS", 24),
			WarningDayOffsets:   getEnvAsIntSlice("VIP_WARNING_DAY_OFFSETS", []int{7, 3, 1}),
			MonthlyProductIds:   getEnvAsSlice("VIP_MONTHLY_PRODUCT_IDS", []string{"vip_monthly", "com.linguaexchange.vip.monthly"}),
			QuarterlyProductIds: getEnvAsSlice("VIP_QUARTERLY_PRODUCT_IDS", []string{"vip_quarterly", "com.linguaexchange.vip.quarterly"}),
			YearlyProductIds:    getEnvAsSlice("VIP_YEARLY_PRODUCT_IDS", []string{"vip_yearly", "com.linguaexchange.vip.yearly"}),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsSlice(key string, fallback []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	parts := strings.Split(strValue, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvAsIntSlice(key string, fallback []int) []int {
	parts := getEnvAsSlice(key, nil)
	if parts == nil {
		return fallback
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if v, err := strconv.Atoi(p); err == nil {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
