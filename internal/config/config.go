package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DefaultReservationURL = "https://lafitness.com/Pages/RacquetballReservation.aspx"
	DefaultZip            = "92780"
	DefaultClub           = "IRVINE - JAMBOREE"
	DefaultDuration       = "60"
	DefaultCourt          = 2
	DefaultSeleniumURL    = "http://localhost:4444/wd/hub"
	DefaultModel          = "gpt-4o-mini"
)

// Drivers accepted by BROWSER_DRIVER / --driver.
const (
	DriverRod        = "rod"
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
	DriverSelenium   = "selenium"
)

// Config holds the application configuration
type Config struct {
	ReservationURL  string `yaml:"reservation_url"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	Headless        bool   `yaml:"headless"`
	Zip             string `yaml:"zip"`
	Club            string `yaml:"club"`
	DurationMinutes string `yaml:"duration_minutes"`
	Court           int    `yaml:"court"`
	DryRun          bool   `yaml:"dry_run"`
	ScreenshotDir   string `yaml:"screenshot_dir"`

	Driver      string `yaml:"driver"`
	SeleniumURL string `yaml:"selenium_url"`

	LLM      LLM      `yaml:"llm"`
	Timeouts Timeouts `yaml:"timeouts"`
}

// LLM configures the optional selector-recovery model. Empty APIKey disables it.
type LLM struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// Timeouts for the individual waits of the booking flow.
type Timeouts struct {
	Controls     time.Duration `yaml:"controls"`
	Login        time.Duration `yaml:"login"`
	ZipField     time.Duration `yaml:"zip_field"`
	ClubRow      time.Duration `yaml:"club_row"`
	ClubNav      time.Duration `yaml:"club_nav"`
	Confirm      time.Duration `yaml:"confirm"`
	RetryPause   time.Duration `yaml:"retry_pause"`
	LoadAttempts int           `yaml:"load_attempts"`
}

// Default returns a Config with every field at its built-in value.
func Default() *Config {
	return &Config{
		ReservationURL:  DefaultReservationURL,
		Headless:        true,
		Zip:             DefaultZip,
		Club:            DefaultClub,
		DurationMinutes: DefaultDuration,
		Court:           DefaultCourt,
		Driver:          DriverRod,
		SeleniumURL:     DefaultSeleniumURL,
		LLM:             LLM{Model: DefaultModel},
		Timeouts:        DefaultTimeouts(),
	}
}

// DefaultTimeouts mirrors the waits the portal needs in practice.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Controls:     45 * time.Second,
		Login:        30 * time.Second,
		ZipField:     15 * time.Second,
		ClubRow:      20 * time.Second,
		ClubNav:      20 * time.Second,
		Confirm:      15 * time.Second,
		RetryPause:   3 * time.Second,
		LoadAttempts: 3,
	}
}

// LoadConfig builds the configuration: defaults, then the optional YAML file
// at path, then .env and process environment.
func LoadConfig(path string, logger *zap.Logger) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("could not load .env file", zap.Error(err))
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.ReservationURL = getEnvOrDefault("RESERVATION_URL", c.ReservationURL)
	c.User = getEnvOrDefault("RB_USER", c.User)
	c.Password = getEnvOrDefault("RB_PASS", c.Password)
	c.Zip = getEnvOrDefault("LOCATION_ZIP", c.Zip)
	c.Club = getEnvOrDefault("CLUB_NAME", c.Club)
	c.DurationMinutes = getEnvOrDefault("DURATION_MINUTES", c.DurationMinutes)
	c.Driver = strings.ToLower(getEnvOrDefault("BROWSER_DRIVER", c.Driver))
	c.SeleniumURL = getEnvOrDefault("SELENIUM_URL", c.SeleniumURL)
	c.ScreenshotDir = getEnvOrDefault("SCREENSHOT_DIR", c.ScreenshotDir)
	c.LLM.APIKey = getEnvOrDefault("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.Model = getEnvOrDefault("LLM_MODEL", c.LLM.Model)
	c.LLM.BaseURL = getEnvOrDefault("LLM_BASE_URL", c.LLM.BaseURL)

	// Anything but an explicit "false" keeps the browser hidden.
	if v, ok := os.LookupEnv("HEADLESS"); ok {
		c.Headless = v != "false"
	}

	if v, ok := os.LookupEnv("COURT_NUMBER"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("COURT_NUMBER must be a number, got %q", v)
		}
		c.Court = n
	}
	return nil
}

// Validate checks the fields the booking flow cannot run without.
func (c *Config) Validate() error {
	if c.ReservationURL == "" {
		return errors.New("RESERVATION_URL is empty")
	}
	if c.User == "" || c.Password == "" {
		return errors.New("RB_USER and RB_PASS are required but not set in environment, .env or config file")
	}
	if c.Court < 1 {
		return fmt.Errorf("court number must be positive, got %d", c.Court)
	}
	switch c.Driver {
	case DriverRod, DriverChromedp, DriverPlaywright, DriverSelenium:
	default:
		return fmt.Errorf("unknown browser driver %q", c.Driver)
	}
	if c.Timeouts.LoadAttempts < 1 {
		return fmt.Errorf("load_attempts must be at least 1, got %d", c.Timeouts.LoadAttempts)
	}
	return nil
}

// getEnvOrDefault retrieves an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
