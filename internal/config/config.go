// Package config loads server settings from environment variables and an
// optional config file.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/Musab74/OnAir-backend/internal/database"
	"github.com/Musab74/OnAir-backend/internal/storage"
)

// Config is the fully resolved server configuration.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string

	AuthSecret string
	AuthIssuer string

	RecognizerURL    string
	TranslateBaseURL string

	SampleRate       int
	ReadyTimeout     time.Duration
	WatchdogInterval time.Duration

	Database database.Config
	Storage  storage.Config
}

func setDefaults() {
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("allowed_origins", []string{})

	viper.SetDefault("auth_issuer", "onair")

	viper.SetDefault("recognizer_url", "ws://localhost:9090/stream")
	viper.SetDefault("translate_base_url", "http://localhost:9091")

	viper.SetDefault("sample_rate", 16000)
	viper.SetDefault("ready_timeout", 5*time.Second)
	viper.SetDefault("watchdog_interval", 60*time.Second)

	viper.SetDefault("db_host", "localhost")
	viper.SetDefault("db_port", "5432")
	viper.SetDefault("db_user", "postgres")
	viper.SetDefault("db_password", "")
	viper.SetDefault("db_name", "onair")

	viper.SetDefault("minio_enabled", false)
	viper.SetDefault("minio_endpoint", "")
	viper.SetDefault("minio_access_key", "")
	viper.SetDefault("minio_secret_key", "")
	viper.SetDefault("minio_bucket", "onair-recordings")
	viper.SetDefault("minio_use_ssl", false)
}

// Load reads config.yaml from the working directory if present, then applies
// environment overrides.
func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return &Config{
		ListenAddr:     viper.GetString("listen_addr"),
		AllowedOrigins: viper.GetStringSlice("allowed_origins"),

		AuthSecret: viper.GetString("auth_secret"),
		AuthIssuer: viper.GetString("auth_issuer"),

		RecognizerURL:    viper.GetString("recognizer_url"),
		TranslateBaseURL: viper.GetString("translate_base_url"),

		SampleRate:       viper.GetInt("sample_rate"),
		ReadyTimeout:     viper.GetDuration("ready_timeout"),
		WatchdogInterval: viper.GetDuration("watchdog_interval"),

		Database: database.Config{
			Host:     viper.GetString("db_host"),
			Port:     viper.GetString("db_port"),
			User:     viper.GetString("db_user"),
			Password: viper.GetString("db_password"),
			DBName:   viper.GetString("db_name"),
		},
		Storage: storage.Config{
			Enabled:   viper.GetBool("minio_enabled"),
			Endpoint:  viper.GetString("minio_endpoint"),
			AccessKey: viper.GetString("minio_access_key"),
			SecretKey: viper.GetString("minio_secret_key"),
			Bucket:    viper.GetString("minio_bucket"),
			UseSSL:    viper.GetBool("minio_use_ssl"),
		},
	}, nil
}
