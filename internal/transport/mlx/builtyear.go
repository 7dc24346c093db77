package mlx

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// BuiltYear scrapes a listing detail page for the construction year. Some
// records omit YEAR_BUILT in the search payload; the detail page renders
// it as <span class="year">…<span class="highlight">1998</span></span>.
func (c *Client) BuiltYear(ctx context.Context, detailURL string) (int, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
				return 0, err
			}
		}

		year, err := c.fetchBuiltYear(ctx, detailURL)
		if err == nil {
			return year, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		lastErr = err
	}
	return 0, fmt.Errorf("built year from %s: %w", detailURL, lastErr)
}

func (c *Client) fetchBuiltYear(ctx context.Context, detailURL string) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return 0, err
		}
		defer c.limiter.Release()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, detailURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("parse html: %w", err)
	}

	text, ok := findYearHighlight(doc)
	if !ok {
		return 0, fmt.Errorf("no year element in page")
	}
	year, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("year text %q: %w", text, err)
	}
	return year, nil
}

// findYearHighlight walks the tree for span.year and returns the text of
// its nested span.highlight.
func findYearHighlight(n *html.Node) (string, bool) {
	if isSpanWithClass(n, "year") {
		if hl := findSpanWithClass(n, "highlight"); hl != nil {
			return nodeText(hl), true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if text, ok := findYearHighlight(c); ok {
			return text, ok
		}
	}
	return "", false
}

func findSpanWithClass(n *html.Node, class string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isSpanWithClass(c, class) {
			return c
		}
		if found := findSpanWithClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func isSpanWithClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode || n.Data != "span" {
		return false
	}
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
