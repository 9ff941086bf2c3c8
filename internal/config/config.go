// Load envs from .env
// Load YAML config
// Validate config
// Provide default values

package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int    `yaml:"port" env:"PORT"`
	DatabaseDSN string `yaml:"database_dsn" env:"DATABASE_DSN"`

	// LLM settings
	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	GeminiModel  string `yaml:"gemini_model" env:"GEMINI_MODEL"`

	// Render settings
	RenderCacheSize int  `yaml:"render_cache_size"`
	DisableRenderer bool `yaml:"disable_renderer" env:"DISABLE_RENDERER"`

	// "dev" or "prod", controls log encoding
	LogMode string `yaml:"log_mode" env:"LOG_MODE"`
}

func Load() *Config {
	_ = godotenv.Load()

	//Load yaml config
	cfg := &Config{}

	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Printf("Warning: Could not read config.yaml: %v", err)
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Fatalf("Error parsing config.yaml: %v", err)
		}
	}

	//Override with env vars
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			log.Fatalf("Invalid PORT: %v", err)
		}
		cfg.Port = p
	}

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.DatabaseDSN = dsn
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.GeminiAPIKey = key
	}

	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg.GeminiModel = model
	}

	if v := os.Getenv("DISABLE_RENDERER"); v != "" {
		cfg.DisableRenderer = v == "1" || v == "true"
	}

	if mode := os.Getenv("LOG_MODE"); mode != "" {
		cfg.LogMode = mode
	}

	//Set default values if not set
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	if cfg.GeminiModel == "" {
		cfg.GeminiModel = "gemini-2.5-flash"
	}

	if cfg.RenderCacheSize == 0 {
		cfg.RenderCacheSize = 25
	}

	if cfg.LogMode == "" {
		cfg.LogMode = "dev"
	}

	//Validate required fields
	if cfg.DatabaseDSN == "" {
		log.Fatal("DATABASE_DSN is required")
	}

	if cfg.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY is required")
	}

	return cfg
}
