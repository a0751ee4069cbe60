package scraper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Scraper interface {
	Name() string
	Scrape(ctx context.Context, opts Options) (Content, error)
}

type Content interface {
	ToHTML() (string, error)
	ToText() (string, error)
	ToMarkdown() (string, error)
	ToJSON() ([]byte, error)
	ToCSV() (string, error)
}

// Waits are the fixed pauses taken between browser actions.
type Waits struct {
	Initial time.Duration // after the first page load
	Scroll  time.Duration // after scrolling the next link into view
	Page    time.Duration // after every navigation
}

type Options struct {
	BaseURL       string
	MaxPages      int // < 0 means no limit
	Timeout       time.Duration
	Waits         Waits
	ShowUI        bool
	ProxyURL      string // --proxy flag or GRANTSCRAPER_PROXY env var
	UserAgent     string
	ScreenshotDir string // empty disables debug screenshots
	Logger        zerolog.Logger
}
