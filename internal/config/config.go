package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the configuration for the application.
type Config struct {
	APIURL string

	GeminiAPIKey string
	GroqAPIKey   string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64

	DatabasePath      string
	LocalStorePath    string
	KnowledgeBasePath string
	Port              string
	PlanDays          int

	// WebUserID owns the plans shown on the companion web page.
	WebUserID string
}

// NewFromEnv creates a new Config object from environment variables.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment take precedence.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	allowed, err := parseUserIDs(os.Getenv("TELEGRAM_ALLOWED_USER_IDS"))
	if err != nil {
		return nil, err
	}

	planDays := 7
	if v := os.Getenv("PLAN_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("PLAN_DAYS must be a positive integer, got %q", v)
		}
		planDays = n
	}

	return &Config{
		APIURL:                 strings.TrimRight(os.Getenv("NUTRILANKA_API_URL"), "/"),
		GeminiAPIKey:           os.Getenv("GEMINI_API_KEY"),
		GroqAPIKey:             os.Getenv("GROQ_API_KEY"),
		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:     os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowedUserIDs: allowed,
		DatabasePath:           getenvDefault("DATABASE_PATH", "data/nutrilanka.db"),
		LocalStorePath:         getenvDefault("LOCAL_STORE_PATH", "data/local"),
		KnowledgeBasePath:      getenvDefault("KNOWLEDGE_BASE_PATH", "data/kb.yaml"),
		Port:                   getenvDefault("PORT", "8080"),
		PlanDays:               planDays,
		WebUserID:              getenvDefault("WEB_USER_ID", "web"),
	}, nil
}

// RequireAPI checks the settings the remote service commands need.
func (c *Config) RequireAPI() error {
	if c.APIURL == "" {
		return fmt.Errorf("NUTRILANKA_API_URL environment variable not set")
	}
	return nil
}

// RequireTelegram checks the settings the bot cannot run without.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}

// RequireGemini checks the settings local plan generation needs.
func (c *Config) RequireGemini() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	return nil
}

// RequireGroq checks the settings the chat assistant needs.
func (c *Config) RequireGroq() error {
	if c.GroqAPIKey == "" {
		return fmt.Errorf("GROQ_API_KEY environment variable not set")
	}
	return nil
}

// IsAllowed reports whether a Telegram user may use the bot. An empty
// allow list admits nobody.
func (c *Config) IsAllowed(userID int64) bool {
	for _, id := range c.TelegramAllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func parseUserIDs(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
