// Package fetcher downloads lab reports published as web pages and reduces
// them to plain text for extraction.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// MaxPDFSize is the largest PDF report accepted
const MaxPDFSize = 50_000_000

// maxText caps the extracted text size
const maxText = 60 * 1024

// ErrTooLarge is returned when a report body exceeds its size limit
var ErrTooLarge = errors.New("report too large")

// body limits per content kind
var (
	maxPDFBody  int64 = MaxPDFSize
	maxHTMLBody int64 = 5 * 1024 * 1024
)

// Report is a downloaded report: PDF bytes or extracted HTML text
type Report struct {
	URL  string
	PDF  []byte
	Text string
}

// Fetch retrieves a lab report URL. PDF responses are returned as bytes,
// anything else is parsed as HTML and reduced to readable text.
func Fetch(ctx context.Context, rawURL string) (*Report, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "holoself/1.0 (lab-import)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	isPDF := strings.HasPrefix(resp.Header.Get("Content-Type"), "application/pdf")
	limit := maxHTMLBody
	if isPDF {
		limit = maxPDFBody
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, resp.ContentLength, limit)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, limit)
	}

	report := &Report{URL: u.String()}
	if isPDF {
		report.PDF = body
		return report, nil
	}

	report.Text = ExtractText(string(body))
	if report.Text == "" {
		return nil, fmt.Errorf("no text content found")
	}
	return report, nil
}

// IsURL checks if a string looks like a URL
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

var (
	// skipped subtrees carry page chrome, never results
	skipTags = map[string]bool{
		"script": true, "style": true, "nav": true, "header": true,
		"footer": true, "noscript": true, "iframe": true,
	}
	cellTags  = map[string]bool{"td": true, "th": true}
	blockTags = map[string]bool{
		"tr": true, "p": true, "div": true, "li": true, "br": true,
		"h1": true, "h2": true, "h3": true, "h4": true,
	}
)

// ExtractText parses HTML and returns its readable text, one block per line.
// Table cells end with "| " so marker, value and unit stay distinguishable.
func ExtractText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	walk(&sb, doc)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.TrimSpace(truncate(strings.Join(lines, "\n"), maxText))
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func walk(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		if skipTags[n.Data] {
			return
		}
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteByte(' ')
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(sb, c)
	}

	if n.Type != html.ElementNode {
		return
	}
	switch {
	case cellTags[n.Data]:
		sb.WriteString("| ")
	case blockTags[n.Data]:
		sb.WriteByte('\n')
	}
}
