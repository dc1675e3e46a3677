package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix          = "LIREDDIT"
	defaultHTTPAddress = "0.0.0.0:8080"
	defaultLogLevel    = "info"
	defaultDBHost      = "localhost"
	defaultDBPort      = "5432"
	defaultDBUser      = "postgres"
	defaultDBName      = "lireddit"
	defaultDBSSLMode   = "disable"
	defaultRedisAddr   = "localhost:6379"
	defaultResetTTL    = 72 * time.Hour
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress string
	LogLevel    string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret     string
	ResetTokenTTL time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// ResetURLBase is the frontend URL the password-reset link points at.
	ResetURLBase string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)

	configViper.SetDefault("db.host", defaultDBHost)
	configViper.SetDefault("db.port", defaultDBPort)
	configViper.SetDefault("db.user", defaultDBUser)
	configViper.SetDefault("db.password", "")
	configViper.SetDefault("db.name", defaultDBName)
	configViper.SetDefault("db.sslmode", defaultDBSSLMode)

	configViper.SetDefault("redis.addr", defaultRedisAddr)
	configViper.SetDefault("redis.password", "")
	configViper.SetDefault("redis.db", 0)

	configViper.SetDefault("auth.jwt_secret", "")
	configViper.SetDefault("auth.reset_token_ttl", defaultResetTTL)

	configViper.SetDefault("smtp.host", "")
	configViper.SetDefault("smtp.port", "587")
	configViper.SetDefault("smtp.username", "")
	configViper.SetDefault("smtp.password", "")
	configViper.SetDefault("smtp.from", "lireddit <noreply@lireddit.dev>")

	configViper.SetDefault("frontend.reset_url_base", "http://localhost:3030/change-password")
}

// Load validates the viper state and returns the resolved configuration.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress: configViper.GetString("http.address"),
		LogLevel:    configViper.GetString("log.level"),

		DBHost:     configViper.GetString("db.host"),
		DBPort:     configViper.GetString("db.port"),
		DBUser:     configViper.GetString("db.user"),
		DBPassword: configViper.GetString("db.password"),
		DBName:     configViper.GetString("db.name"),
		DBSSLMode:  configViper.GetString("db.sslmode"),

		RedisAddr:     configViper.GetString("redis.addr"),
		RedisPassword: configViper.GetString("redis.password"),
		RedisDB:       configViper.GetInt("redis.db"),

		JWTSecret:     configViper.GetString("auth.jwt_secret"),
		ResetTokenTTL: configViper.GetDuration("auth.reset_token_ttl"),

		SMTPHost:     configViper.GetString("smtp.host"),
		SMTPPort:     configViper.GetString("smtp.port"),
		SMTPUsername: configViper.GetString("smtp.username"),
		SMTPPassword: configViper.GetString("smtp.password"),
		SMTPFrom:     configViper.GetString("smtp.from"),

		ResetURLBase: configViper.GetString("frontend.reset_url_base"),
	}

	if cfg.JWTSecret == "" {
		return AppConfig{}, fmt.Errorf("auth.jwt_secret is required (set %s_AUTH_JWT_SECRET)", envPrefix)
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = defaultResetTTL
	}

	return cfg, nil
}
