package rockefeller

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Grant is one extracted grant card. Fields are left empty when the card
// text did not contain them, and empty fields are omitted from JSON.
type Grant struct {
	Date         string `json:"date,omitempty"`
	Organization string `json:"organization,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Description  string `json:"description,omitempty"`
	URL          string `json:"url,omitempty"`
}

// IsEmpty reports whether no field was populated.
func (g Grant) IsEmpty() bool {
	return g == Grant{}
}

// RawCard is what the browser returns for a single card element.
type RawCard struct {
	Text string `json:"text"` // rendered text (innerText)
	Href string `json:"href"` // absolute href of the first <a>, if any
	HTML string `json:"html"` // outerHTML, used when Text is empty

	Error string `json:"error"` // set when reading the element failed in the page
}

// ParseCard turns the card's rendered lines into a Grant. Fields are
// positional: line 0 is the award date, line 1 the organization, line 2 the
// amount and the rest the description.
func ParseCard(raw RawCard, pageURL string) (Grant, error) {
	if raw.Error != "" {
		return Grant{}, fmt.Errorf("failed to read card: %s", raw.Error)
	}

	lines := splitLines(raw.Text)
	href := raw.Href

	if len(lines) == 0 && strings.TrimSpace(raw.HTML) != "" {
		var err error
		lines, href, err = linesFromHTML(raw.HTML, pageURL)
		if err != nil {
			return Grant{}, err
		}
		if raw.Href != "" {
			href = raw.Href
		}
	}

	var g Grant
	if len(lines) >= 2 {
		if strings.HasPrefix(lines[0], "AWARDED") {
			g.Date = lines[0]
		}
		g.Organization = lines[1]
		if len(lines) > 2 && strings.Contains(lines[2], "$") {
			g.Amount = lines[2]
		}
		if len(lines) > 3 {
			g.Description = strings.Join(lines[3:], " ")
		}
	}
	g.URL = href

	return g, nil
}

// splitLines splits rendered text into trimmed, non-blank lines.
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "tr": true,
	"ul": true,
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "svg": true,
}

// linesFromHTML approximates innerText for a card whose rendered text came
// back empty: text is broken at block elements and <br>. It also returns the
// first anchor's href resolved against pageURL.
func linesFromHTML(fragment, pageURL string) ([]string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse card HTML: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			words := strings.Fields(n.Data)
			if len(words) == 0 {
				if n.Data != "" {
					sb.WriteString(" ")
				}
				return
			}
			if startsWithSpace(n.Data) {
				sb.WriteString(" ")
			}
			sb.WriteString(strings.Join(words, " "))
			if endsWithSpace(n.Data) {
				sb.WriteString(" ")
			}
			return
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
			if n.Data == "br" {
				sb.WriteString("\n")
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			sb.WriteString("\n")
		}
	}
	for _, n := range doc.Find("body").Nodes {
		walk(n)
	}

	href := ""
	if a := doc.Find("a").First(); a.Length() > 0 {
		v, _ := a.Attr("href")
		href = resolveURL(pageURL, v)
	}

	lines := splitLines(sb.String())
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return lines, href, nil
}

func startsWithSpace(s string) bool {
	return s != "" && strings.TrimLeft(s[:1], " \t\r\n") == ""
}

func endsWithSpace(s string) bool {
	return s != "" && strings.TrimRight(s[len(s)-1:], " \t\r\n") == ""
}

// resolveURL makes ref absolute against base. Unparseable input is returned
// unchanged.
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return r.String()
	}
	return b.ResolveReference(r).String()
}
