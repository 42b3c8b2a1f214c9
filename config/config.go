package config

import (
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host           string
	Port           int
	SaveDir        string
	ShowPreview    bool
	StrictLength   bool
	ConnectTimeout time.Duration
	PollInterval   time.Duration

	ApiURL     string
	AccessKey  string
	SecretKey  string
	BucketName string
	Region     string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found, using environment variables only")
	}

	config := &Config{
		Host:           getEnv("PKT_HOST", "localhost"),
		Port:           getEnvInt("PKT_PORT", 8888),
		SaveDir:        getEnv("PKT_SAVE_DIR", "./pktriggercord"),
		ShowPreview:    getEnvBool("PKT_SHOW_PREVIEW", false),
		StrictLength:   getEnvBool("PKT_STRICT_LENGTH", false),
		ConnectTimeout: getEnvMillis("PKT_CONNECT_TIMEOUT_MS", 3000*time.Millisecond),
		PollInterval:   getEnvMillis("PKT_POLL_INTERVAL_MS", 200*time.Millisecond),

		ApiURL:     getEnv("API_URL", ""),
		AccessKey:  getEnv("ACCESS_KEY", ""),
		SecretKey:  getEnv("SECRET_KEY", ""),
		BucketName: getEnv("BUCKET_NAME", ""),
		Region:     getEnv("REGION", ""),
	}

	return config, nil
}

// Address joins Host and Port into a dialable address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("Invalid boolean in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return b
}

func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	ms := getEnvInt(key, -1)
	if ms < 0 {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}
