package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Projects ProjectsConfig
	Consul   ConsulConfig
	S3       S3Config
}

type ServerConfig struct {
	Address        string
	AllowedOrigins []string
	LogLevel       string
	// LogCapacity is the number of log entries kept per process. Zero
	// keeps the supervisor default.
	LogCapacity int
}

type ProjectsConfig struct {
	Path  string
	Watch bool
}

// ConsulConfig enables service registration when Address is set.
type ConsulConfig struct {
	Address string
}

// S3Config enables the log archive when Endpoint is set.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

func (c S3Config) Enabled() bool {
	return c.Endpoint != ""
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        envOr("DEVDASH_ADDR", ":3100"),
			AllowedOrigins: splitList(os.Getenv("DEVDASH_ALLOWED_ORIGINS")),
			LogLevel:       envOr("DEVDASH_LOG_LEVEL", "info"),
			LogCapacity:    envInt("DEVDASH_LOG_CAPACITY"),
		},
		Projects: ProjectsConfig{
			Path:  envOr("DEVDASH_CONFIG", "devdash.yaml"),
			Watch: os.Getenv("DEVDASH_WATCH_CONFIG") != "false",
		},
		Consul: ConsulConfig{
			Address: os.Getenv("DEVDASH_CONSUL_ADDR"),
		},
		S3: S3Config{
			Endpoint:  os.Getenv("DEVDASH_S3_ENDPOINT"),
			AccessKey: os.Getenv("DEVDASH_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("DEVDASH_S3_SECRET_KEY"),
			Bucket:    envOr("DEVDASH_S3_BUCKET", "devdash-logs"),
			Region:    envOr("DEVDASH_S3_REGION", "us-east-1"),
			UseSSL:    os.Getenv("DEVDASH_S3_USE_SSL") != "false",
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt parses a positive integer setting, returning 0 when it is unset
// or malformed.
func envInt(key string) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
