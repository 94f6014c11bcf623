package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Defaults for the listener. The mBaaS runtime always binds all interfaces on 8001.
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8001
)

// PasswordField is always part of the auth response exclusion list
const PasswordField = "password"

// Config holds all configuration for the service
type Config struct {
	// Core service configuration
	Environment string `mapstructure:"ENVIRONMENT"`
	Host        string `mapstructure:"HOST"`
	Port        int    `mapstructure:"PORT"`
	StaticDir   string `mapstructure:"STATIC_DIR"`
	CloudPrefix string `mapstructure:"CLOUD_PREFIX"`

	// User module configuration
	Users struct {
		ExclusionList string        `mapstructure:"AUTH_RESPONSE_EXCLUSION_LIST"`
		SeedPath      string        `mapstructure:"USER_SEED_PATH"`
		SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`
	} `mapstructure:",squash"`

	// Store selects where users and mbaas data live
	Store struct {
		Driver string `mapstructure:"STORE_DRIVER"`
	} `mapstructure:",squash"`

	// Database configuration
	DB struct {
		Host     string `mapstructure:"DB_HOST"`
		Port     int    `mapstructure:"DB_PORT"`
		User     string `mapstructure:"DB_USER"`
		Password string `mapstructure:"DB_PASSWORD"`
		Name     string `mapstructure:"DB_NAME"`
		SSLMode  string `mapstructure:"DB_SSLMODE"`
	} `mapstructure:",squash"`

	// Blob storage configuration
	Blob struct {
		Driver string `mapstructure:"BLOB_DRIVER"`
	} `mapstructure:",squash"`

	// S3 storage configuration
	S3 struct {
		Region          string `mapstructure:"S3_REGION"`
		Bucket          string `mapstructure:"S3_BUCKET"`
		AccessKeyID     string `mapstructure:"S3_ACCESS_KEY_ID"`
		SecretAccessKey string `mapstructure:"S3_SECRET_ACCESS_KEY"`
		Endpoint        string `mapstructure:"S3_ENDPOINT"`
		CDNBaseURL      string `mapstructure:"S3_CDN_BASE_URL"`
		UsePathStyle    bool   `mapstructure:"S3_USE_PATH_STYLE"`
	} `mapstructure:",squash"`

	// JWT session configuration
	JWT struct {
		PublicKeyURL string `mapstructure:"JWT_PUBLIC_KEY_URL"`
		Secret       string `mapstructure:"JWT_SECRET"`
		Algorithm    string `mapstructure:"JWT_ALGORITHM"`
	} `mapstructure:",squash"`
}

// Load reads the configuration from environment variables and returns a Config struct
func Load() (*Config, error) {
	// Values from a local .env file never override the real environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()

	// Set default values
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Optional: Read from config file if specified
	configFile := v.GetString("CONFIG_FILE")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal config into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ExclusionList returns the fields stripped from user responses.
// The password field is always present.
func (c *Config) ExclusionList() []string {
	list := []string{PasswordField}
	for _, field := range strings.Split(c.Users.ExclusionList, ",") {
		field = strings.TrimSpace(field)
		if field == "" || field == PasswordField {
			continue
		}
		list = append(list, field)
	}
	return list
}

// Addr returns host:port for logging
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	switch c.Blob.Driver {
	case "memory", "s3":
	default:
		return fmt.Errorf("unsupported blob driver %q", c.Blob.Driver)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Core service defaults
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("HOST", DefaultHost)
	v.SetDefault("PORT", DefaultPort)
	v.SetDefault("STATIC_DIR", "public")
	v.SetDefault("CLOUD_PREFIX", "/cloud")

	// User module defaults
	v.SetDefault("AUTH_RESPONSE_EXCLUSION_LIST", PasswordField)
	v.SetDefault("USER_SEED_PATH", "config/users.yaml")
	v.SetDefault("SESSION_TTL", 12*time.Hour)

	v.SetDefault("STORE_DRIVER", "memory")

	// Database defaults
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "wfm")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("BLOB_DRIVER", "memory")

	// S3 defaults
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_BUCKET", "wfm-files")
	v.SetDefault("S3_ACCESS_KEY_ID", "")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_CDN_BASE_URL", "")
	v.SetDefault("S3_USE_PATH_STYLE", false)

	// JWT defaults
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("JWT_PUBLIC_KEY_URL", "")
}
