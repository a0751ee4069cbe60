package rockefeller

import (
	"context"
	"fmt"

	"grantscraper/internal/browser"
	"grantscraper/internal/scraper"
)

// DefaultBaseURL is the grants listing crawled when no URL is given.
const DefaultBaseURL = "https://www.rockefellerfoundation.org/grants/"

func init() {
	scraper.Register(&RockefellerScraper{})
}

// RockefellerScraper paginates the Rockefeller Foundation grants listing.
type RockefellerScraper struct{}

func (s *RockefellerScraper) Name() string { return "rockefeller" }

// Scrape runs one crawl. When the crawl stops on an error the returned content
// still holds the grants collected so far, alongside the error.
func (s *RockefellerScraper) Scrape(ctx context.Context, opts scraper.Options) (scraper.Content, error) {
	log := opts.Logger.With().Str("site", s.Name()).Logger()
	opts.Logger = log
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	shots, err := browser.NewScreenshotter(opts.ScreenshotDir, log)
	if err != nil {
		return nil, err
	}

	b, err := browser.New(browser.Config{
		ProxyURL:  opts.ProxyURL,
		Headless:  !opts.ShowUI,
		UserAgent: opts.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}
	if proxy := b.ProxyURL(); proxy != "" {
		log.Info().Str("proxy", proxy).Msg("browser initialized")
	} else {
		log.Info().Msg("browser initialized")
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close browser")
			return
		}
		log.Info().Msg("browser closed")
	}()

	client := NewClient(b, shots, opts.Timeout)
	if err := client.Open(ctx); err != nil {
		return nil, err
	}
	defer client.Close()

	grants, err := NewCrawler(client, opts).Run(ctx)
	content := NewGrantsContent(opts.BaseURL, grants)
	if err != nil {
		return content, fmt.Errorf("scrape stopped early: %w", err)
	}

	log.Info().Int("count", len(grants)).Msg("scraping complete")
	return content, nil
}
