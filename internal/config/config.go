package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	ReportTTLSeconds      int
	ReportTimezone        string
	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string
	ReorderWindowDays     int
	ReorderLeadTimeDays   float64
	ReorderSafetyFactor   float64
	AlertIntervalMinutes  int
	ExpiryWarningDays     int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	reportTTL, err := strconv.Atoi(getEnv("REPORT_TTL_SECONDS", "30"))
	if err != nil || reportTTL < 1 {
		reportTTL = 30
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	windowDays, err := strconv.Atoi(getEnv("REORDER_WINDOW_DAYS", "30"))
	if err != nil || windowDays < 1 {
		windowDays = 30
	}
	leadDays, err := strconv.ParseFloat(getEnv("REORDER_DEFAULT_LEAD_DAYS", "7"), 64)
	if err != nil || leadDays <= 0 {
		leadDays = 7
	}
	safety, err := strconv.ParseFloat(getEnv("REORDER_SAFETY_FACTOR", "0.2"), 64)
	if err != nil || safety <= 0 {
		safety = 0.2
	}
	alertMinutes, err := strconv.Atoi(getEnv("ALERT_INTERVAL_MINUTES", "60"))
	if err != nil || alertMinutes < 1 {
		alertMinutes = 60
	}
	expiryDays, err := strconv.Atoi(getEnv("EXPIRY_WARNING_DAYS", "30"))
	if err != nil || expiryDays < 1 {
		expiryDays = 30
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		ReportTTLSeconds:      reportTTL,
		ReportTimezone:        getEnv("REPORT_TIMEZONE", "Asia/Jakarta"),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		ManagerPIN:            strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		ReorderWindowDays:     windowDays,
		ReorderLeadTimeDays:   leadDays,
		ReorderSafetyFactor:   safety,
		AlertIntervalMinutes:  alertMinutes,
		ExpiryWarningDays:     expiryDays,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
