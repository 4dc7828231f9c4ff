package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis — optional wake-up channel for the scheduler. Empty disables it;
	// the scheduler then relies on the in-process nudge and periodic polling.
	RedisURL string

	// Object storage (Supabase-style)
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Local image resolution
	StorageRoot   string // root directory for scene images referenced by relative path
	PublicBaseURL string // base address for resolving relative image URLs remotely

	// Rendering
	TempDir              string
	RenderResolution     string // default resolution when the caller omits one
	RenderFPS            int
	RenderQuality        string
	ClipTimeoutSeconds   int // wall-clock limit per clip synthesis
	ConcatTimeoutSeconds int // wall-clock limit for concatenation
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "storyreel-videos"),
		StorageRoot:           getEnv("STORAGE_ROOT", "storage"),
		PublicBaseURL:         getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		TempDir:               getEnv("TEMP_DIR", "/tmp/storyreel"),
		RenderResolution:      getEnv("RENDER_RESOLUTION", "1080p"),
		RenderFPS:             getEnvInt("RENDER_FPS", 30),
		RenderQuality:         getEnv("RENDER_QUALITY", "standard"),
		ClipTimeoutSeconds:    getEnvInt("CLIP_TIMEOUT_SECONDS", 90),
		ConcatTimeoutSeconds:  getEnvInt("CONCAT_TIMEOUT_SECONDS", 300),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
