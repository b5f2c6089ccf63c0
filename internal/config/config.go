// Package config loads the service configuration from environment variables,
// applying defaults, normalization and validation in one place.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines response hardening settings.
type SecurityConfig struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	MaxBodyBytes int64 // JSON bodies; multipart uploads use UploadConfig.MaxBytes
}

// OTELConfig defines OpenTelemetry tracing settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the gorm dialect and its connection target.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // sqlite file
	URL    string // postgres DSN
}

// JWTConfig holds signing secrets and token lifetimes.
type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// OTPConfig holds the validity windows of one-time codes and reset tokens.
type OTPConfig struct {
	RegisterTTL   time.Duration // account verification and forgot-password codes
	LoginTTL      time.Duration // second factor after password login
	ResetTokenTTL time.Duration
	BcryptCost    int
}

// LLMConfig configures the completion client.
type LLMConfig struct {
	Model   string
	APIKey  string
	Timeout time.Duration
}

// RedisConfig is optional; an empty Addr disables the client cache and the mail outbox.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	ClientCacheTTL time.Duration
}

// UploadConfig selects where profile images go.
type UploadConfig struct {
	Backend   string // disk|s3
	Dir       string
	PublicURL string // prefix for disk-backed file references
	MaxBytes  int64

	S3Bucket    string
	S3Region    string
	S3Endpoint  string // MinIO or other S3-compatible endpoint
	S3AccessKey string
	S3SecretKey string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	DB     DBConfig
	JWT    JWTConfig
	OTP    OTPConfig
	LLM    LLMConfig
	Redis  RedisConfig
	Upload UploadConfig

	// Conversations and listings
	QuestionMaxLen   int
	RoomSerialize    bool
	ListDefaultLimit int
	MailQueueSize    int
	MailWorkers      int

	// Rate limiting
	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "app.db"),
			URL:    getenv("DATABASE_URL", ""),
		},
		JWT: JWTConfig{
			AccessSecret:  getenv("JWT_SECRET", ""),
			RefreshSecret: getenv("JWT_REFRESH_SECRET", ""),
			AccessTTL:     getdur("JWT_EXPIRES_IN", 24*time.Hour),
			RefreshTTL:    getdur("JWT_REFRESH_EXPIRES_IN", 30*24*time.Hour),
			Issuer:        getenv("JWT_ISSUER", "go-advisor-backend"),
		},
		OTP: OTPConfig{
			RegisterTTL:   getdur("OTP_TTL", 3*time.Minute),
			LoginTTL:      getdur("LOGIN_OTP_TTL", 30*time.Minute),
			ResetTokenTTL: getdur("RESET_TOKEN_TTL", 5*time.Minute),
			BcryptCost:    getint("BCRYPT_SALT_ROUNDS", 12),
		},
		LLM: LLMConfig{
			Model:   getenv("LLM_MODEL", "gemini-2.5-flash"),
			APIKey:  getenv("LLM_API_KEY", ""),
			Timeout: getdur("LLM_TIMEOUT", 60*time.Second),
		},
		Redis: RedisConfig{
			Addr:           getenv("REDIS_ADDR", ""),
			Password:       getenv("REDIS_PASSWORD", ""),
			DB:             getint("REDIS_DB", 0),
			ClientCacheTTL: getdur("CLIENT_CACHE_TTL", 5*time.Minute),
		},
		Upload: UploadConfig{
			Backend:     strings.ToLower(getenv("UPLOAD_BACKEND", "disk")),
			Dir:         getenv("UPLOAD_DIR", "uploads"),
			PublicURL:   getenv("UPLOAD_PUBLIC_URL", "/uploads"),
			MaxBytes:    int64(getint("UPLOAD_MAX_BYTES", 5<<20)),
			S3Bucket:    getenv("S3_BUCKET", ""),
			S3Region:    getenv("S3_REGION", "us-east-1"),
			S3Endpoint:  getenv("S3_ENDPOINT", ""),
			S3AccessKey: getenv("S3_ACCESS_KEY", ""),
			S3SecretKey: getenv("S3_SECRET_KEY", ""),
		},

		QuestionMaxLen:   getint("QUESTION_MAX_LEN", 4000),
		RoomSerialize:    getbool("ROOM_SERIALIZE", false),
		ListDefaultLimit: getint("LIST_DEFAULT_LIMIT", 10),
		MailQueueSize:    getint("MAIL_QUEUE_SIZE", 256),
		MailWorkers:      getint("MAIL_WORKERS", 2),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS:   getbool("ENABLE_HSTS", false),
			HSTSMaxAge:   getdur("HSTS_MAX_AGE", 180*24*time.Hour),
			MaxBodyBytes: int64(getint("MAX_BODY_BYTES", 1<<20)),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-advisor-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" || cfg.DB.Driver == "pg" {
		cfg.DB.Driver = "postgres"
	}
	cfg.Upload.PublicURL = strings.TrimRight(cfg.Upload.PublicURL, "/")

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, fmt.Errorf("DB_DRIVER %q is not supported (sqlite|postgres)", cfg.DB.Driver)
	}
	if len(cfg.JWT.AccessSecret) < 16 || len(cfg.JWT.RefreshSecret) < 16 {
		return cfg, errors.New("JWT_SECRET and JWT_REFRESH_SECRET must be at least 16 characters")
	}
	if cfg.JWT.AccessSecret == cfg.JWT.RefreshSecret {
		return cfg, errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if cfg.JWT.AccessTTL <= 0 || cfg.JWT.RefreshTTL <= 0 {
		return cfg, errors.New("JWT lifetimes must be positive durations")
	}
	if cfg.OTP.RegisterTTL <= 0 || cfg.OTP.LoginTTL <= 0 || cfg.OTP.ResetTokenTTL <= 0 {
		return cfg, errors.New("OTP and reset token lifetimes must be positive durations")
	}
	if cfg.OTP.BcryptCost < 4 || cfg.OTP.BcryptCost > 31 {
		return cfg, errors.New("BCRYPT_SALT_ROUNDS must be in [4,31]")
	}
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		return cfg, errors.New("LLM_MODEL must not be empty")
	}
	if cfg.LLM.Timeout <= 0 {
		return cfg, errors.New("LLM_TIMEOUT must be > 0")
	}
	if cfg.Redis.ClientCacheTTL <= 0 {
		return cfg, errors.New("CLIENT_CACHE_TTL must be > 0")
	}
	switch cfg.Upload.Backend {
	case "disk":
		if strings.TrimSpace(cfg.Upload.Dir) == "" {
			return cfg, errors.New("UPLOAD_DIR must not be empty")
		}
	case "s3":
		if cfg.Upload.S3Bucket == "" {
			return cfg, errors.New("S3_BUCKET is required when UPLOAD_BACKEND=s3")
		}
	default:
		return cfg, fmt.Errorf("UPLOAD_BACKEND %q is not supported (disk|s3)", cfg.Upload.Backend)
	}
	if cfg.Upload.MaxBytes <= 0 {
		return cfg, errors.New("UPLOAD_MAX_BYTES must be > 0")
	}
	if cfg.QuestionMaxLen <= 0 {
		return cfg, errors.New("QUESTION_MAX_LEN must be > 0")
	}
	if cfg.ListDefaultLimit < 1 || cfg.ListDefaultLimit > 100 {
		return cfg, errors.New("LIST_DEFAULT_LIMIT must be in [1,100]")
	}
	if cfg.MailQueueSize < 1 || cfg.MailWorkers < 1 {
		return cfg, errors.New("MAIL_QUEUE_SIZE and MAIL_WORKERS must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.Security.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
