package rockefeller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantscraper/internal/scraper"
)

const testBase = "https://grants.example.org/grants/"

type fakePage struct {
	cards      []RawCard
	pagination bool
	next       string // URL reached by clicking the next link; "" means no link
}

type fakeSession struct {
	pages         map[string]fakePage
	navErrs       map[string]error
	paginationErr error
	scrollErr     error
	clickErr      error
	onClick       func()
	current       string
	navigations   []string
	shots         []string
	clicks        int
}

func newFakeSession(pages map[string]fakePage) *fakeSession {
	return &fakeSession{pages: pages, navErrs: map[string]error{}}
}

func (f *fakeSession) Navigate(url string) error {
	f.navigations = append(f.navigations, url)
	if err := f.navErrs[url]; err != nil {
		return err
	}
	f.current = url
	return nil
}

func (f *fakeSession) CurrentURL() (string, error) { return f.current, nil }

func (f *fakeSession) Cards() ([]RawCard, error) { return f.pages[f.current].cards, nil }

func (f *fakeSession) CountCards() (int, error) { return len(f.pages[f.current].cards), nil }

func (f *fakeSession) HasPagination() (bool, error) {
	if f.paginationErr != nil {
		return false, f.paginationErr
	}
	return f.pages[f.current].pagination, nil
}

func (f *fakeSession) FindNextLink() (bool, error) { return f.pages[f.current].next != "", nil }

func (f *fakeSession) ScrollToNextLink() error { return f.scrollErr }

func (f *fakeSession) ClickNextLink() error {
	if f.clickErr != nil {
		return f.clickErr
	}
	f.clicks++
	f.current = f.pages[f.current].next
	if f.onClick != nil {
		f.onClick()
	}
	return nil
}

func (f *fakeSession) Screenshot(name string) { f.shots = append(f.shots, name) }

func card(org string) RawCard {
	return RawCard{
		Text: "AWARDED 2024\n" + org + "\n$100,000\nA grant.",
		Href: "https://grants.example.org/grant/" + org,
	}
}

func testOptions(maxPages int) scraper.Options {
	return scraper.Options{
		BaseURL:  testBase,
		MaxPages: maxPages,
		Logger:   zerolog.Nop(),
	}
}

func organizations(grants []Grant) []string {
	var orgs []string
	for _, g := range grants {
		orgs = append(orgs, g.Organization)
	}
	return orgs
}

func TestCrawlerFollowsNextLink(t *testing.T) {
	s := newFakeSession(map[string]fakePage{
		testBase:        {cards: []RawCard{card("A"), card("B")}, pagination: true, next: testBase + "p2"},
		testBase + "p2": {cards: []RawCard{card("C")}, pagination: true, next: testBase + "p3"},
		testBase + "p3": {cards: []RawCard{card("D")}, pagination: true},
	})

	grants, err := NewCrawler(s, testOptions(2)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, organizations(grants))
	assert.Equal(t, 2, s.clicks, "advances past the last extracted page before the limit check")
	assert.Equal(t, []string{
		"initial_page",
		"before_next_click_page1", "after_scroll_page1", "after_click_page2",
		"before_next_click_page2", "after_scroll_page2", "after_click_page3",
	}, s.shots)
	assert.Equal(t, []string{testBase}, s.navigations)
}

func TestCrawlerUnlimitedPagesStopsWhenNoPagination(t *testing.T) {
	s := newFakeSession(map[string]fakePage{
		testBase:        {cards: []RawCard{card("A")}, pagination: true, next: testBase + "p2"},
		testBase + "p2": {cards: []RawCard{card("B")}, pagination: true, next: testBase + "p3"},
		testBase + "p3": {cards: []RawCard{card("C")}},
	})

	grants, err := NewCrawler(s, testOptions(-1)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, organizations(grants))
}

func TestCrawlerPathFallbackOnFirstPage(t *testing.T) {
	s := newFakeSession(map[string]fakePage{
		testBase:             {cards: []RawCard{card("A")}},
		testBase + "page/2/": {cards: []RawCard{card("B")}},
	})

	grants, err := NewCrawler(s, testOptions(5)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, organizations(grants))
	// page 2 has no pagination either, and the path guess is only made from page 1
	assert.Equal(t, []string{testBase, testBase + "page/2/"}, s.navigations)
}

func TestCrawlerStopsWhenFallbackPageIsEmpty(t *testing.T) {
	s := newFakeSession(map[string]fakePage{
		testBase: {cards: []RawCard{card("A")}},
	})

	grants, err := NewCrawler(s, testOptions(5)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, organizations(grants))
	assert.Equal(t, []string{testBase, testBase + "page/2/"}, s.navigations)
}

func TestCrawlerMissingNextLinkFallsBackToPagePath(t *testing.T) {
	s := newFakeSession(map[string]fakePage{
		testBase:             {cards: []RawCard{card("A")}, pagination: true},
		testBase + "page/2/": {cards: []RawCard{card("B")}, pagination: true},
	})

	grants, err := NewCrawler(s, testOptions(-1)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, organizations(grants))
	assert.Equal(t, []string{"initial_page", "pagination_error_page1", "pagination_error_page2"}, s.shots)
	assert.Equal(t, []string{testBase, testBase + "page/2/", testBase + "page/3/"}, s.navigations)
}

func TestCrawlerMissingNextLinkNeverUsesQueryParameter(t *testing.T) {
	// every URL serves the same card
	same := fakePage{cards: []RawCard{card("A")}, pagination: true}
	urls := []string{testBase, testBase + "page/2/", testBase + "page/3/", testBase + "page/4/", testBase + "page/5/"}
	pages := map[string]fakePage{}
	for _, u := range urls {
		pages[u] = same
	}
	s := newFakeSession(pages)

	grants, err := NewCrawler(s, testOptions(4)).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, grants, 4)
	assert.Equal(t, urls, s.navigations)
	for _, u := range s.navigations {
		assert.NotContains(t, u, "page=")
	}
	assert.Contains(t, s.shots, "pagination_error_page1")
}

func TestCrawlerClickPathFailuresFallBackToPagePath(t *testing.T) {
	tests := []struct {
		name   string
		inject func(*fakeSession)
	}{
		{"scroll fails", func(f *fakeSession) { f.scrollErr = errors.New("node detached") }},
		{"click fails", func(f *fakeSession) { f.clickErr = errors.New("element not visible") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeSession(map[string]fakePage{
				testBase:             {cards: []RawCard{card("A")}, pagination: true, next: testBase + "p2"},
				testBase + "page/2/": {cards: []RawCard{card("B")}},
			})
			tt.inject(s)

			grants, err := NewCrawler(s, testOptions(5)).Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, []string{"A", "B"}, organizations(grants))
			assert.Equal(t, 0, s.clicks)
			assert.Contains(t, s.shots, "before_next_click_page1")
			assert.Contains(t, s.shots, "pagination_error_page1")
			assert.Equal(t, []string{testBase, testBase + "page/2/"}, s.navigations)
		})
	}
}

func TestCrawlerErrorFallsBackToPagePath(t *testing.T) {
	s := newFakeSession(map[string]fakePage{
		testBase:             {cards: []RawCard{card("A")}},
		testBase + "page/2/": {cards: []RawCard{card("B")}},
		testBase + "page/3/": {cards: []RawCard{card("C")}},
	})
	s.paginationErr = errors.New("detached node")

	grants, err := NewCrawler(s, testOptions(3)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, organizations(grants))
	assert.Contains(t, s.shots, "pagination_error_page1")
	assert.Contains(t, s.shots, "pagination_error_page2")
	assert.Contains(t, s.shots, "pagination_error_page3")
	assert.Equal(t, testBase+"page/4/", s.navigations[len(s.navigations)-1])
}

func TestCrawlerEndsWhenAllApproachesFail(t *testing.T) {
	s := newFakeSession(map[string]fakePage{
		testBase: {cards: []RawCard{card("A")}},
	})
	s.paginationErr = errors.New("boom")
	s.navErrs[testBase+"page/2/"] = errors.New("net::ERR_NAME_NOT_RESOLVED")

	grants, err := NewCrawler(s, testOptions(5)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, organizations(grants))
}

func TestCrawlerInitialNavigationFailure(t *testing.T) {
	s := newFakeSession(nil)
	s.navErrs[testBase] = errors.New("timeout")

	grants, err := NewCrawler(s, testOptions(5)).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load "+testBase)
	assert.NotNil(t, grants)
	assert.Empty(t, grants)
}

func TestCrawlerHonorsCancelledContext(t *testing.T) {
	s := newFakeSession(map[string]fakePage{
		testBase: {cards: []RawCard{card("A")}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	grants, err := NewCrawler(s, testOptions(5)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, grants)
}

func TestCrawlerKeepsGrantsWhenCancelledBetweenPages(t *testing.T) {
	s := newFakeSession(map[string]fakePage{
		testBase:        {cards: []RawCard{card("A"), card("B")}, pagination: true, next: testBase + "p2"},
		testBase + "p2": {cards: []RawCard{card("C")}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	s.onClick = cancel

	opts := testOptions(5)
	opts.Waits.Page = time.Hour
	grants, err := NewCrawler(s, opts).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"A", "B"}, organizations(grants))
	assert.NotContains(t, s.shots, "pagination_error_page1")
}

func TestCrawlerZeroPagesExtractsNothing(t *testing.T) {
	s := newFakeSession(map[string]fakePage{
		testBase: {cards: []RawCard{card("A")}, pagination: true, next: testBase + "p2"},
	})

	grants, err := NewCrawler(s, testOptions(0)).Run(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, grants)
	assert.Empty(t, grants)
	assert.Equal(t, 0, s.clicks)
}

func TestCrawlerSkipsBrokenAndEmptyCards(t *testing.T) {
	s := newFakeSession(map[string]fakePage{
		testBase: {cards: []RawCard{
			card("A"),
			{Error: "TypeError: el.querySelector is not a function"},
			{Text: "   \n  "},
			{Text: "single line only"},
			card("B"),
		}},
	})

	grants, err := NewCrawler(s, testOptions(1)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, organizations(grants))
}

func TestCrawlerDefaultsBaseURL(t *testing.T) {
	c := NewCrawler(newFakeSession(nil), scraper.Options{Logger: zerolog.Nop()})
	assert.Equal(t, DefaultBaseURL, c.baseURL)
}

func TestPagePathURL(t *testing.T) {
	assert.Equal(t, "https://x.org/grants/page/2/", PagePathURL("https://x.org/grants/", 2))
	assert.Equal(t, "https://x.org/grants/page/3/", PagePathURL("https://x.org/grants", 3))
	assert.Equal(t, "https://x.org/grants/page/4/?sort=new", PagePathURL("https://x.org/grants/?sort=new", 4))
}
