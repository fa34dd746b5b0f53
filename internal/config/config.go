package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	DockerHost             string
	ExtractorImage         string
	ExtractorTimeout       time.Duration
	CppcheckImage          string
	CppcheckTimeout        time.Duration
	ToolMemoryMB           int
	ToolCPUShares          int
	PipelineWorkers        int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CEGAS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "CEGAS API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "cegas/submissions")
	v.SetDefault("extractor.image", "cegas-extractor:latest")
	v.SetDefault("extractor.timeout_ms", 30000)
	v.SetDefault("cppcheck.image", "cppcheck:2.13")
	v.SetDefault("cppcheck.timeout_ms", 15000)
	v.SetDefault("tool_memory_mb", 256)
	v.SetDefault("tool_cpu_shares", 512)
	v.SetDefault("pipeline.workers", 4)

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		DockerHost:             v.GetString("docker_host"),
		ExtractorImage:         v.GetString("extractor.image"),
		ExtractorTimeout:       time.Duration(v.GetInt("extractor.timeout_ms")) * time.Millisecond,
		CppcheckImage:          v.GetString("cppcheck.image"),
		CppcheckTimeout:        time.Duration(v.GetInt("cppcheck.timeout_ms")) * time.Millisecond,
		ToolMemoryMB:           v.GetInt("tool_memory_mb"),
		ToolCPUShares:          v.GetInt("tool_cpu_shares"),
		PipelineWorkers:        v.GetInt("pipeline.workers"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.ExtractorTimeout <= 0 {
		cfg.ExtractorTimeout = 30 * time.Second
	}
	if cfg.CppcheckTimeout <= 0 {
		cfg.CppcheckTimeout = 15 * time.Second
	}
	if cfg.ToolMemoryMB <= 0 {
		cfg.ToolMemoryMB = 256
	}
	if cfg.ToolCPUShares <= 0 {
		cfg.ToolCPUShares = 512
	}

	return cfg, nil
}
