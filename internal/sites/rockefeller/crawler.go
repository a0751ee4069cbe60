package rockefeller

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"grantscraper/internal/scraper"
)

// Session is the slice of browser behaviour the crawler needs. Client is the
// rod-backed implementation.
type Session interface {
	Navigate(url string) error
	CurrentURL() (string, error)
	Cards() ([]RawCard, error)
	CountCards() (int, error)
	HasPagination() (bool, error)
	// FindNextLink locates the "next page" anchor and remembers it for
	// ScrollToNextLink and ClickNextLink.
	FindNextLink() (bool, error)
	ScrollToNextLink() error
	ClickNextLink() error
	Screenshot(name string)
}

var errNoNextLink = errors.New("next page link not found")

// Crawler walks the paginated listing and collects grants page by page.
type Crawler struct {
	session  Session
	baseURL  string
	maxPages int
	waits    scraper.Waits
	log      zerolog.Logger
}

// NewCrawler creates a Crawler from the scrape options.
func NewCrawler(s Session, opts scraper.Options) *Crawler {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Crawler{
		session:  s,
		baseURL:  baseURL,
		maxPages: opts.MaxPages,
		waits:    opts.Waits,
		log:      opts.Logger,
	}
}

// Run loads the base URL and extracts up to maxPages pages. The grants
// collected so far are returned even when the context is cancelled midway.
func (c *Crawler) Run(ctx context.Context) ([]Grant, error) {
	grants := []Grant{}

	c.log.Info().Str("url", c.baseURL).Msg("navigating to base URL")
	if err := c.session.Navigate(c.baseURL); err != nil {
		return grants, fmt.Errorf("failed to load %s: %w", c.baseURL, err)
	}

	c.log.Info().Msg("waiting for initial page to load")
	if err := sleep(ctx, c.waits.Initial); err != nil {
		return grants, err
	}
	c.session.Screenshot("initial_page")

	for page := 1; c.maxPages < 0 || page <= c.maxPages; page++ {
		c.log.Info().Int("page", page).Msg("processing page")

		found := c.extractPage(page)
		c.log.Info().Int("page", page).Int("count", len(found)).Msg("processed grants on page")
		grants = append(grants, found...)

		if err := ctx.Err(); err != nil {
			return grants, err
		}

		more, err := c.advance(ctx, page)
		if err != nil {
			return grants, err
		}
		if !more {
			break
		}
	}

	return grants, nil
}

// extractPage parses every card on the current page. Cards that fail or
// yield nothing are skipped.
func (c *Crawler) extractPage(page int) []Grant {
	cards, err := c.session.Cards()
	if err != nil {
		c.log.Error().Err(err).Int("page", page).Msg("failed to read grant elements")
		return nil
	}
	c.log.Info().Int("page", page).Int("count", len(cards)).Msg("found potential grant elements")

	pageURL, err := c.session.CurrentURL()
	if err != nil {
		pageURL = c.baseURL
	}

	var grants []Grant
	for i, card := range cards {
		g, err := ParseCard(card, pageURL)
		if err != nil {
			c.log.Warn().Err(err).Int("page", page).Int("index", i+1).Msg("error processing grant element")
			continue
		}
		if g.IsEmpty() {
			continue
		}
		grants = append(grants, g)

		date := g.Date
		if date == "" {
			date = "Unknown"
		}
		c.log.Debug().Int("page", page).Int("index", i+1).Str("date", date).Msg("processed grant")
	}
	return grants
}

// advance moves to page+1. It reports false when pagination has ended. The
// only error returned is context cancellation; navigation failures fall back
// to the /page/N/ path and then end pagination.
func (c *Crawler) advance(ctx context.Context, page int) (bool, error) {
	more, err := c.followPagination(ctx, page)
	if err == nil {
		return more, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}

	c.log.Warn().Err(err).Int("page", page).Msg("error navigating to next page")
	c.session.Screenshot(fmt.Sprintf("pagination_error_page%d", page))

	c.log.Info().Msg("trying fallback pagination approach")
	more, err = c.navigateAndCheck(ctx, PagePathURL(c.baseURL, page+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		c.log.Warn().Err(err).Msg("all pagination approaches failed, ending pagination")
		return false, nil
	}
	return more, nil
}

func (c *Crawler) followPagination(ctx context.Context, page int) (bool, error) {
	hasPagination, err := c.session.HasPagination()
	if err != nil {
		return false, fmt.Errorf("failed to look for pagination: %w", err)
	}

	if !hasPagination {
		if page != 1 {
			c.log.Info().Int("page", page).Msg("cannot determine next page URL, pagination complete")
			return false, nil
		}
		c.log.Info().Msg("no pagination elements found, trying direct URL navigation")
		return c.navigateAndCheck(ctx, PagePathURL(c.baseURL, 2))
	}
	c.log.Debug().Msg("found pagination container")

	found, err := c.session.FindNextLink()
	if err != nil {
		return false, fmt.Errorf("failed to look for next page link: %w", err)
	}
	if !found {
		return false, errNoNextLink
	}

	return c.clickNext(ctx, page)
}

func (c *Crawler) clickNext(ctx context.Context, page int) (bool, error) {
	c.log.Info().Int("next", page+1).Msg("found next page link")
	c.session.Screenshot(fmt.Sprintf("before_next_click_page%d", page))

	if err := c.session.ScrollToNextLink(); err != nil {
		return false, fmt.Errorf("failed to scroll to next page link: %w", err)
	}
	if err := sleep(ctx, c.waits.Scroll); err != nil {
		return false, err
	}
	c.session.Screenshot(fmt.Sprintf("after_scroll_page%d", page))

	if err := c.session.ClickNextLink(); err != nil {
		return false, fmt.Errorf("failed to click next page link: %w", err)
	}
	if err := sleep(ctx, c.waits.Page); err != nil {
		return false, err
	}
	c.session.Screenshot(fmt.Sprintf("after_click_page%d", page+1))

	return true, nil
}

// navigateAndCheck loads target and reports whether it shows any cards.
func (c *Crawler) navigateAndCheck(ctx context.Context, target string) (bool, error) {
	c.log.Info().Str("url", target).Msg("navigating to next page")
	if err := c.session.Navigate(target); err != nil {
		return false, fmt.Errorf("failed to navigate to %s: %w", target, err)
	}
	if err := sleep(ctx, c.waits.Page); err != nil {
		return false, err
	}

	n, err := c.session.CountCards()
	if err != nil {
		return false, fmt.Errorf("failed to count grant elements: %w", err)
	}
	if n == 0 {
		c.log.Info().Str("url", target).Msg("no grants found on new page, ending pagination")
		return false, nil
	}
	return true, nil
}

// PagePathURL returns base with "page/<n>/" appended to its path.
func PagePathURL(base string, n int) string {
	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimSuffix(base, "/") + "/page/" + strconv.Itoa(n) + "/"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/page/" + strconv.Itoa(n) + "/"
	return u.String()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
