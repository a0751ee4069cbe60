package rockefeller

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// GrantsContent holds the grants of one run and implements scraper.Content.
type GrantsContent struct {
	sourceURL string
	grants    []Grant
}

// NewGrantsContent creates a new GrantsContent instance.
func NewGrantsContent(sourceURL string, grants []Grant) *GrantsContent {
	if grants == nil {
		grants = []Grant{}
	}
	return &GrantsContent{sourceURL: sourceURL, grants: grants}
}

// ToJSON writes the records as an array indented with four spaces. Non-ASCII
// and HTML characters are kept verbatim.
func (c *GrantsContent) ToJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(c.grants); err != nil {
		return nil, fmt.Errorf("failed to encode grants: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (c *GrantsContent) ToCSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"date", "organization", "amount", "description", "url"}); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, g := range c.grants {
		if err := w.Write([]string{g.Date, g.Organization, g.Amount, g.Description, g.URL}); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.String(), nil
}

func (c *GrantsContent) ToMarkdown() (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Grants: %s\n\n", c.sourceURL))
	sb.WriteString(fmt.Sprintf("%d grants\n\n", len(c.grants)))
	for i, g := range c.grants {
		title := g.Organization
		if title == "" {
			title = "Unknown organization"
		}
		if g.URL != "" {
			sb.WriteString(fmt.Sprintf("## %d. [%s](%s)\n\n", i+1, title, g.URL))
		} else {
			sb.WriteString(fmt.Sprintf("## %d. %s\n\n", i+1, title))
		}
		if g.Date != "" {
			sb.WriteString("- " + g.Date + "\n")
		}
		if g.Amount != "" {
			sb.WriteString("- " + g.Amount + "\n")
		}
		if g.Date != "" || g.Amount != "" {
			sb.WriteString("\n")
		}
		if g.Description != "" {
			sb.WriteString(g.Description + "\n\n")
		}
	}
	return sb.String(), nil
}

func (c *GrantsContent) ToHTML() (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<h1>Grants: %s</h1>\n<ol>\n", html.EscapeString(c.sourceURL)))
	for _, g := range c.grants {
		sb.WriteString("  <li>")
		org := html.EscapeString(g.Organization)
		if g.URL != "" {
			sb.WriteString(fmt.Sprintf("<a href=%q>%s</a>", html.EscapeString(g.URL), org))
		} else {
			sb.WriteString(org)
		}
		if g.Date != "" {
			sb.WriteString("<p>" + html.EscapeString(g.Date) + "</p>")
		}
		if g.Amount != "" {
			sb.WriteString("<p>" + html.EscapeString(g.Amount) + "</p>")
		}
		if g.Description != "" {
			sb.WriteString("<p>" + html.EscapeString(g.Description) + "</p>")
		}
		sb.WriteString("</li>\n")
	}
	sb.WriteString("</ol>\n")
	return sb.String(), nil
}

// ToText renders the HTML view through the markdown converter.
func (c *GrantsContent) ToText() (string, error) {
	htmlContent, err := c.ToHTML()
	if err != nil {
		return "", err
	}
	converter := md.NewConverter("", true, nil)
	text, err := converter.ConvertString(htmlContent)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to text: %w", err)
	}
	return text, nil
}
