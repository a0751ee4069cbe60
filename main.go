package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"grantscraper/internal/config"
	"grantscraper/internal/formatter"
	"grantscraper/internal/logger"
	"grantscraper/internal/output"
	"grantscraper/internal/scraper"
	_ "grantscraper/internal/sites/rockefeller"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath    string
	site          string
	maxPages      int
	outputFile    string
	outputFormat  string
	timeout       time.Duration
	showUI        bool
	proxyURL      string
	screenshotDir string
	noScreenshots bool
	logLevel      string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "grantscraper [BASE_URL]",
		Short:   "Collect grant listings from a paginated grants page",
		Version: version,
		Long: `grantscraper drives a headless browser through a paginated grants listing,
extracts the date, organization, amount, description and link of every grant
card, and writes them as a JSON array (or CSV, Markdown, text, HTML).`,
		Example: `  # Scrape the first 5 pages into grants_data.json
  grantscraper

  # Scrape every page and export CSV
  grantscraper --max-pages -1 -o grants.csv

  # Watch the browser and print JSON to stdout
  grantscraper --showui -o - --no-screenshots`,
		Args:         cobra.MaximumNArgs(1),
		RunE:         run,
		SilenceUsage: true,
	}

	flags := rootCmd.Flags()
	flags.StringVar(&configPath, "config", "", "Config file (default .grantscraper.yaml or ~/.config/grantscraper/config.yaml)")
	flags.StringVar(&site, "site", "rockefeller", "Site to scrape ("+strings.Join(scraper.Names(), ", ")+")")
	flags.IntVar(&maxPages, "max-pages", 5, "Max pages to paginate (-1 for no limit)")
	flags.StringVarP(&outputFile, "output", "o", "grants_data.json", "Output file path, '-' for stdout (format inferred from extension if -f not specified)")
	flags.StringVarP(&outputFormat, "format", "f", "json", "Output format ("+strings.Join(formatter.Formats, ", ")+")")
	flags.DurationVarP(&timeout, "timeout", "t", 30*time.Second, "Navigation timeout")
	flags.BoolVar(&showUI, "showui", false, "Show browser UI (disable headless mode)")
	flags.StringVarP(&proxyURL, "proxy", "p", "", "Proxy URL (e.g. http://127.0.0.1:7890), defaults to GRANTSCRAPER_PROXY env var")
	flags.StringVar(&screenshotDir, "screenshots-dir", "debug_screenshots", "Directory for debug screenshots")
	flags.BoolVar(&noScreenshots, "no-screenshots", false, "Disable debug screenshots")
	flags.StringVar(&logLevel, "log-level", "info", "Log level ("+strings.Join(config.LogLevels, ", ")+")")

	return rootCmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, args, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, closer, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()

	s, ok := scraper.Get(cfg.Site)
	if !ok {
		return fmt.Errorf("unknown site: %s", cfg.Site)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := scraper.Options{
		BaseURL:  cfg.BaseURL,
		MaxPages: cfg.MaxPages,
		Timeout:  cfg.Browser.Timeout,
		Waits: scraper.Waits{
			Initial: cfg.Waits.Initial,
			Scroll:  cfg.Waits.Scroll,
			Page:    cfg.Waits.Page,
		},
		ShowUI:        cfg.Browser.ShowUI,
		ProxyURL:      cfg.Browser.ProxyURL,
		UserAgent:     cfg.Browser.UserAgent,
		ScreenshotDir: cfg.ScreenshotDir(),
		Logger:        log,
	}

	content, scrapeErr := s.Scrape(ctx, opts)
	if scrapeErr != nil {
		log.Error().Err(scrapeErr).Msg("critical error")
		if content == nil {
			return scrapeErr
		}
		log.Warn().Msg("saving grants collected before the error")
	}

	rendered, err := formatter.Format(content, cfg.Output.Format)
	if err != nil {
		return errors.Join(scrapeErr, fmt.Errorf("failed to format output: %w", err))
	}
	if err := output.Write(cfg.Output.File, rendered, os.Stdout); err != nil {
		return errors.Join(scrapeErr, err)
	}
	if cfg.Output.File != output.Stdout {
		log.Info().Str("file", cfg.Output.File).Str("format", cfg.Output.Format).Msg("data saved")
	}

	return scrapeErr
}

// applyFlags overrides the loaded configuration with explicitly set flags and
// the optional BASE_URL argument. An output file given without -f picks the
// format from its extension.
func applyFlags(cmd *cobra.Command, args []string, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if len(args) == 1 {
		cfg.BaseURL = normalizeURL(args[0])
	}
	if changed("site") {
		cfg.Site = site
	}
	if changed("max-pages") {
		cfg.MaxPages = maxPages
	}
	if changed("output") {
		cfg.Output.File = outputFile
	}
	if changed("format") {
		cfg.Output.Format = outputFormat
	} else if changed("output") {
		if inferred := formatter.InferFromExtension(outputFile); inferred != "" {
			cfg.Output.Format = inferred
		}
	}
	if changed("timeout") {
		cfg.Browser.Timeout = timeout
	}
	if changed("showui") {
		cfg.Browser.ShowUI = showUI
	}
	if changed("proxy") {
		cfg.Browser.ProxyURL = proxyURL
	}
	if changed("screenshots-dir") {
		cfg.Screenshots.Dir = screenshotDir
	}
	if changed("no-screenshots") {
		cfg.Screenshots.Enabled = !noScreenshots
	}
	if changed("log-level") {
		cfg.Logging.Level = logLevel
	}
}

// normalizeURL adds https:// when the URL has no scheme.
func normalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return rawURL
	}
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "https://" + rawURL
	}
	return rawURL
}
