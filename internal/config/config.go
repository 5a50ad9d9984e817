package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port string

	GCPProjectID string
	GCPLocation  string
	GeminiAPIKey string
	ModelName    string

	StorageBackend string // "memory" or "firestore"
	UseMockLLM     bool   // true = use mock even on GCP

	CredentialsFile string
	StateTTL        time.Duration
	LLMRetryDelay   time.Duration

	// PlanSubTopics lifts the root-only Planner gate.
	PlanSubTopics bool
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "TRUE"
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

// Load reads all env vars (with .env support) and builds the config.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment")
	}

	modeStr := getEnv("TUTOR_MODE", "local")
	var mode Mode
	switch modeStr {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port: getEnv("TUTOR_PORT", "8080"),

		GCPProjectID: getEnv("TUTOR_GCP_PROJECT", ""),
		GCPLocation:  getEnv("TUTOR_GCP_LOCATION", "us-central1"),
		GeminiAPIKey: getEnv("TUTOR_GEMINI_API_KEY", ""),
		ModelName:    getEnv("TUTOR_MODEL_NAME", "gemini-2.5-flash"),

		StorageBackend: getEnv("TUTOR_STORAGE_BACKEND", "memory"),
		UseMockLLM:     getBoolEnv("TUTOR_USE_MOCK_LLM", mode == ModeLocal),

		CredentialsFile: getEnv("TUTOR_CREDENTIALS_FILE", "credentials.yaml"),
		StateTTL:        getDurationEnv("TUTOR_STATE_TTL", 12*time.Hour),
		LLMRetryDelay:   getDurationEnv("TUTOR_LLM_RETRY_DELAY", 10*time.Second),

		PlanSubTopics: getBoolEnv("TUTOR_PLAN_SUBTOPICS", false),
	}

	if cfg.Mode == ModeGCP && cfg.GCPProjectID == "" && cfg.GeminiAPIKey == "" {
		log.Fatal("TUTOR_GCP_PROJECT or TUTOR_GEMINI_API_KEY must be set in gcp mode")
	}

	return cfg
}
