package rockefeller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"grantscraper/internal/browser"

	"github.com/go-rod/rod"
)

const (
	cardSelector       = "article"
	paginationSelector = ".pagination, .nav-links, nav.pagination"
	nextLinkXPath      = "//a[contains(text(), 'Next') or contains(@class, 'next')]"
)

// Client drives a single browser page over the grants listing.
type Client struct {
	browser *browser.Browser
	shots   *browser.Screenshotter
	timeout time.Duration
	page    *rod.Page
	next    *rod.Element
}

// NewClient creates a new Client instance.
func NewClient(b *browser.Browser, shots *browser.Screenshotter, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{browser: b, shots: shots, timeout: timeout}
}

// Open creates the page. Every later call is bound to ctx.
func (c *Client) Open(ctx context.Context) error {
	page, err := c.browser.NewPage()
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	c.page = page.Context(ctx)
	return nil
}

// Close closes the page.
func (c *Client) Close() {
	if c.page != nil {
		c.page.Close()
	}
}

func (c *Client) Navigate(url string) error {
	c.next = nil
	if err := c.page.Timeout(c.timeout).Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if err := c.page.Timeout(c.timeout).WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

func (c *Client) CurrentURL() (string, error) {
	info, err := c.page.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// Cards reads every card in one evaluation. Each element is read inside its
// own try block so a broken card only carries an error string.
func (c *Client) Cards() ([]RawCard, error) {
	val, err := c.page.Timeout(10 * time.Second).Eval(`(selector) => {
		return Array.from(document.querySelectorAll(selector)).map(el => {
			try {
				const a = el.querySelector('a');
				const text = el.innerText || '';
				return {
					text: text,
					href: a ? (typeof a.href === 'string' ? a.href : (a.getAttribute('href') || '')) : '',
					html: text.trim() === '' ? el.outerHTML : '',
				};
			} catch (e) {
				return {error: String(e)};
			}
		});
	}`, cardSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to extract cards: %w", err)
	}

	raw, err := val.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode cards: %w", err)
	}
	return decodeCards(raw)
}

// decodeCards decodes the evaluated card array element by element. A card
// that does not fit RawCard carries the decode error instead of failing the
// whole page.
func decodeCards(raw []byte) ([]RawCard, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to parse cards: %w", err)
	}

	cards := make([]RawCard, 0, len(items))
	for _, item := range items {
		var card RawCard
		if err := json.Unmarshal(item, &card); err != nil {
			card = RawCard{Error: err.Error()}
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func (c *Client) CountCards() (int, error) {
	val, err := c.page.Timeout(10 * time.Second).Eval(`(selector) => document.querySelectorAll(selector).length`, cardSelector)
	if err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return val.Value.Int(), nil
}

func (c *Client) HasPagination() (bool, error) {
	has, _, err := c.page.Has(paginationSelector)
	return has, err
}

func (c *Client) FindNextLink() (bool, error) {
	has, el, err := c.page.HasX(nextLinkXPath)
	if err != nil {
		return false, err
	}
	c.next = el
	return has, nil
}

func (c *Client) ScrollToNextLink() error {
	if c.next == nil {
		return fmt.Errorf("next page link not located")
	}
	_, err := c.next.Timeout(5 * time.Second).Eval(`function () {
		this.scrollIntoView({behavior: 'smooth', block: 'center'});
	}`)
	return err
}

// ClickNextLink clicks through JS so overlays covering the link do not
// swallow the click.
func (c *Client) ClickNextLink() error {
	if c.next == nil {
		return fmt.Errorf("next page link not located")
	}
	_, err := c.next.Timeout(5 * time.Second).Eval(`function () { this.click(); }`)
	return err
}

func (c *Client) Screenshot(name string) {
	c.shots.Capture(c.page, name)
}
