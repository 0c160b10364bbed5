package config

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

type Config struct {
	Env  string
	Port int

	DBURL     string
	UserStore string // "postgres" | "memory"

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionStore  string // "redis" | "memory"
	SessionTTL    time.Duration

	JWTSecret    string
	JWTIssuer    string
	JWTAudience  string
	JWTTTL       time.Duration
	JWTClockSkew time.Duration

	ImageDir        string
	ImagePublicPath string
	ImageMaxBytes   int64

	StoreTimeout      time.Duration
	PasswordMinLength int

	CORSAllowedOrigins []string
	OTELEndpoint       string
	OTELEnabled        bool
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("PORT", 8080)
	v.SetDefault("USER_STORE", "postgres")
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_STORE", "redis")
	v.SetDefault("SESSION_TTL", "20m")
	v.SetDefault("JWT_ISSUER", "profilehub")
	v.SetDefault("JWT_AUDIENCE", "profilehub")
	v.SetDefault("JWT_TTL", "30m")
	v.SetDefault("JWT_CLOCK_SKEW", "1m")
	v.SetDefault("IMAGE_DIR", "UserImages")
	v.SetDefault("IMAGE_PUBLIC_PATH", "/UserImages")
	v.SetDefault("IMAGE_MAX_BYTES", 5<<20)
	v.SetDefault("STORE_TIMEOUT", "3s")
	v.SetDefault("PASSWORD_MIN_LENGTH", 6)
	v.SetDefault("OTEL_ENABLED", false)

	cfg := Config{
		Env:                v.GetString("APP_ENV"),
		Port:               v.GetInt("PORT"),
		DBURL:              buildDBURL(v),
		UserStore:          v.GetString("USER_STORE"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		SessionStore:       v.GetString("SESSION_STORE"),
		SessionTTL:         v.GetDuration("SESSION_TTL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTIssuer:          v.GetString("JWT_ISSUER"),
		JWTAudience:        v.GetString("JWT_AUDIENCE"),
		JWTTTL:             v.GetDuration("JWT_TTL"),
		JWTClockSkew:       v.GetDuration("JWT_CLOCK_SKEW"),
		ImageDir:           v.GetString("IMAGE_DIR"),
		ImagePublicPath:    v.GetString("IMAGE_PUBLIC_PATH"),
		ImageMaxBytes:      v.GetInt64("IMAGE_MAX_BYTES"),
		StoreTimeout:       v.GetDuration("STORE_TIMEOUT"),
		PasswordMinLength:  v.GetInt("PASSWORD_MIN_LENGTH"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		OTELEndpoint:       v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTELEnabled:        v.GetBool("OTEL_ENABLED"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, ErrMissingJWTSecret
	}

	return cfg, nil
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func buildDBURL(v *viper.Viper) string {
	if url := v.GetString("DATABASE_URL"); url != "" {
		return url
	}

	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "profilehub")
	v.SetDefault("DB_PASSWORD", "profilehub")
	v.SetDefault("DB_NAME", "profilehub")
	v.SetDefault("DB_SSLMODE", "disable")

	return "postgres://" + v.GetString("DB_USER") + ":" + v.GetString("DB_PASSWORD") +
		"@" + v.GetString("DB_HOST") + ":" + v.GetString("DB_PORT") +
		"/" + v.GetString("DB_NAME") + "?sslmode=" + v.GetString("DB_SSLMODE")
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
