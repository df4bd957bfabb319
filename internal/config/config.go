package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string
	LogLevel   string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	JWTSecret          string        // HS256 signing key
	JWTExpirationHours time.Duration // token lifetime

	// AdminUsername/AdminPassword seed a superuser at startup when no such user exists.
	AdminUsername string
	AdminPassword string

	MediaRoot      string
	MaxUploadBytes int64
	ExportTemplate string // .docx used for record export; empty selects the built-in template

	AWSRegion       string
	OCRJobQueueURL  string // empty disables the async OCR worker
	CORSAllowOrigin string
	SecureCookies   bool

	// Warnings collects problems found while loading; main logs them once the logger exists.
	Warnings []string
}

func Load() *Config {
	l := &loader{}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		l.warn("could not load .env file: %v", err)
	}

	getEnv, getEnvInt, getEnvBool := l.getEnv, l.getEnvInt, l.getEnvBool
	jwtExpHours := getEnvInt("JWT_EXPIRATION_HOURS", 24)

	cfg := &Config{
		ServerPort: getEnv("SERVER_PORT", "8000"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "inspection"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "inspection"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:          getEnv("JWT_SECRET", "change-me-in-production"),
		JWTExpirationHours: time.Duration(jwtExpHours) * time.Hour,

		AdminUsername: getEnv("ADMIN_USERNAME", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		MediaRoot:      getEnv("MEDIA_ROOT", "media"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 5*1024*1024)),
		ExportTemplate: getEnv("EXPORT_TEMPLATE_PATH", ""),

		AWSRegion:       getEnv("AWS_REGION", "cn-north-1"),
		OCRJobQueueURL:  getEnv("OCR_JOB_QUEUE_URL", ""),
		CORSAllowOrigin: getEnv("CORS_ALLOW_ORIGIN", "*"),
		SecureCookies:   getEnvBool("SECURE_COOKIES", false),
	}
	cfg.Warnings = l.warnings
	return cfg
}

// DSN builds the key/value connection string understood by the pgx stdlib driver.
func (c *Config) DSN() string {
	parts := []string{
		"host=" + c.DBHost,
		"port=" + strconv.Itoa(c.DBPort),
		"user=" + c.DBUser,
		"dbname=" + c.DBName,
		"sslmode=" + c.DBSslMode,
	}
	if c.DBPassword != "" {
		parts = append(parts, "password="+c.DBPassword)
	}
	return strings.Join(parts, " ")
}

type loader struct {
	warnings []string
}

func (l *loader) warn(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func (l *loader) getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func (l *loader) getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
		l.warn("%s=%q is not an integer, using %d", key, value, fallback)
	}
	return fallback
}

func (l *loader) getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
		l.warn("%s=%q is not a boolean, using %t", key, value, fallback)
	}
	return fallback
}
