package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "GRANTSCRAPER_"

// Config holds every setting of a scrape run.
type Config struct {
	Site     string `yaml:"site"`
	BaseURL  string `yaml:"base_url"`
	MaxPages int    `yaml:"max_pages"`

	Browser     BrowserConfig    `yaml:"browser"`
	Waits       WaitConfig       `yaml:"waits"`
	Screenshots ScreenshotConfig `yaml:"screenshots"`
	Output      OutputConfig     `yaml:"output"`
	Logging     LoggingConfig    `yaml:"logging"`
}

type BrowserConfig struct {
	ShowUI    bool          `yaml:"show_ui"`
	ProxyURL  string        `yaml:"proxy_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// WaitConfig holds the fixed sleeps between browser actions.
type WaitConfig struct {
	Initial time.Duration `yaml:"initial"`
	Scroll  time.Duration `yaml:"scroll"`
	Page    time.Duration `yaml:"page"`
}

type ScreenshotConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type OutputConfig struct {
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		Site:     "rockefeller",
		BaseURL:  "https://www.rockefellerfoundation.org/grants/",
		MaxPages: 5,
		Browser: BrowserConfig{
			Timeout: 30 * time.Second,
		},
		Waits: WaitConfig{
			Initial: 5 * time.Second,
			Scroll:  2 * time.Second,
			Page:    5 * time.Second,
		},
		Screenshots: ScreenshotConfig{
			Enabled: true,
			Dir:     "debug_screenshots",
		},
		Output: OutputConfig{
			File:   "grants_data.json",
			Format: "json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromFile reads a YAML file over c. An empty path searches the default
// locations; finding nothing there is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".grantscraper.yaml",
		".grantscraper.yml",
		filepath.Join(home, ".config", "grantscraper", "config.yaml"),
		filepath.Join(home, ".config", "grantscraper", "config.yml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// LoadFromEnv applies GRANTSCRAPER_* variables. Malformed numbers, booleans
// and durations are reported together.
func (c *Config) LoadFromEnv() error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("SITE", &c.Site)
	str("BASE_URL", &c.BaseURL)
	if v := os.Getenv(EnvPrefix + "MAX_PAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_PAGES: %w", EnvPrefix, err))
		} else {
			c.MaxPages = n
		}
	}

	boolean("SHOW_UI", &c.Browser.ShowUI)
	str("PROXY", &c.Browser.ProxyURL)
	str("USER_AGENT", &c.Browser.UserAgent)
	duration("TIMEOUT", &c.Browser.Timeout)

	duration("WAIT_INITIAL", &c.Waits.Initial)
	duration("WAIT_SCROLL", &c.Waits.Scroll)
	duration("WAIT_PAGE", &c.Waits.Page)

	boolean("SCREENSHOTS", &c.Screenshots.Enabled)
	str("SCREENSHOTS_DIR", &c.Screenshots.Dir)

	str("OUTPUT", &c.Output.File)
	str("FORMAT", &c.Output.Format)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LogLevels lists the accepted logging.level values. An empty level means info.
var LogLevels = []string{"debug", "info", "warn", "warning", "error", "disabled"}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Site == "" {
		errs = append(errs, errors.New("site is required"))
	}
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	} else if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("base URL must be http(s): %s", c.BaseURL))
	}
	if c.Browser.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.Waits.Initial < 0 || c.Waits.Scroll < 0 || c.Waits.Page < 0 {
		errs = append(errs, errors.New("waits cannot be negative"))
	}
	if c.Screenshots.Enabled && c.Screenshots.Dir == "" {
		errs = append(errs, errors.New("screenshot directory is required when screenshots are enabled"))
	}
	if c.Output.File == "" {
		errs = append(errs, errors.New("output file is required"))
	}

	validFormats := map[string]bool{"json": true, "csv": true, "markdown": true, "text": true, "html": true}
	if !validFormats[c.Output.Format] {
		errs = append(errs, fmt.Errorf("invalid output format: %s", c.Output.Format))
	}

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level != "" && !slices.Contains(LogLevels, level) {
		errs = append(errs, fmt.Errorf("invalid log level: %s", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// ScreenshotDir returns the directory to capture into, or "" when disabled.
func (c *Config) ScreenshotDir() string {
	if !c.Screenshots.Enabled {
		return ""
	}
	return c.Screenshots.Dir
}

// Load builds the configuration from defaults, the config file, .env files and
// the environment, in increasing precedence. Flags are applied by the caller
// afterwards, followed by Validate.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".grantscraper.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	return cfg, nil
}
