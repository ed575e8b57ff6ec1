package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const prefix = "artvision"

// Config holds the settings shared by the bot and the console.
type Config struct {
	APIBaseURL     string        `envconfig:"API_BASE_URL" default:"http://127.0.0.1:8000"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
	LegacyRoutes   bool          `envconfig:"LEGACY_ROUTES" default:"false"`
	MaxImagePixels int           `envconfig:"MAX_IMAGE_PIXELS" default:"18000000"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogPath  string `envconfig:"LOG_PATH" default:""`

	AuditRetention time.Duration `envconfig:"AUDIT_RETENTION" default:"2160h"`

	// Bot only, read without the prefix like the platform sets them.
	TelegramBotToken string `ignored:"true"`
	WebhookURL       string `ignored:"true"`
	Port             string `ignored:"true"`
}

// Parse reads the environment into a Config. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Parse() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process(prefix, &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		return nil, fmt.Errorf("config: %s_API_BASE_URL is empty", strings.ToUpper(prefix))
	}
	if c.RequestTimeout < 0 {
		return nil, fmt.Errorf("config: negative request timeout %s", c.RequestTimeout)
	}
	if c.MaxImagePixels < 0 {
		c.MaxImagePixels = 0
	}

	c.TelegramBotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	c.WebhookURL = strings.TrimSpace(os.Getenv("WEBHOOK_URL"))
	c.Port = getEnv("PORT", "8080")
	return &c, nil
}

// Load is Parse that exits the process on failure.
func Load() *Config {
	c, err := Parse()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	return c
}

// MustEnv returns the value of k or exits when it is unset.
func MustEnv(k string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
