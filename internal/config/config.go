package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderDebug  = "debug"
)

type Config struct {
	Host     string
	Port     string
	Env      string
	LogLevel string

	CORSOrigins []string

	Provider        string
	OpenAIKey       string
	OpenAIModel     string
	OpenAIBaseURL   string
	GeminiKey       string
	GeminiModel     string
	ProviderTimeout time.Duration

	// DatabaseURL empty means the in-memory session store.
	DatabaseURL string
	DBDriver    string

	// CasesFile empty means the embedded catalog.
	CasesFile  string
	CasesWatch bool

	CacheSize    int
	HistoryTurns int
	MaxTextRunes int
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	c := Config{
		Host:     env("HOST", "0.0.0.0"),
		Port:     env("PORT", "3001"),
		Env:      env("APP_ENV", "local"),
		LogLevel: os.Getenv("LOG_LEVEL"),

		CORSOrigins: splitList(env("CORS_ORIGIN", "http://localhost:3000")),

		Provider:      strings.ToLower(env("AI_PROVIDER", ProviderOpenAI)),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   firstNonEmpty(os.Getenv("MODEL_NAME"), os.Getenv("OPENAI_MODEL")),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		GeminiKey:     firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
		GeminiModel:   os.Getenv("GEMINI_MODEL"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBDriver:    strings.ToLower(env("DB_DRIVER", "postgres")),
		CasesFile:   os.Getenv("CASES_FILE"),
	}
	if os.Getenv("DEBUG_AI") == "1" {
		c.Provider = ProviderDebug
	}

	var err error
	if c.ProviderTimeout, err = envDuration("PROVIDER_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if c.CasesWatch, err = envBool("CASES_WATCH", false); err != nil {
		return Config{}, err
	}
	if c.CacheSize, err = envInt("CACHE_SIZE", 200); err != nil {
		return Config{}, err
	}
	if c.HistoryTurns, err = envInt("HISTORY_TURNS", 6); err != nil {
		return Config{}, err
	}
	if c.MaxTextRunes, err = envInt("MAX_TEXT_RUNES", 1000); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderDebug:
	default:
		return fmt.Errorf("config: unknown AI_PROVIDER %q", c.Provider)
	}
	switch c.DBDriver {
	case "postgres", "pgx", "sqlite":
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.CasesWatch && c.CasesFile == "" {
		return fmt.Errorf("config: CASES_WATCH needs CASES_FILE")
	}
	return nil
}

func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

func env(key, def string) string {
	return firstNonEmpty(strings.TrimSpace(os.Getenv(key)), def)
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
