package sec

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/diligenceops/pkg/models"
)

const (
	maxProxyBytes = 500_000
	maxRawDoc     = 20 << 20
)

var (
	blankLines = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)
	spaceRuns  = regexp.MustCompile(`[ \t\x{00a0}]+`)

	riskStart = regexp.MustCompile(`(?i)item\s*1a\.?[\s:\-\x{2013}\x{2014}]*risk\s+factors`)
	riskEnd   = regexp.MustCompile(`(?i)item\s*1b\.?|item\s*2\.?[\s:\-\x{2013}\x{2014}]*properties`)
)

// htmlText converts an HTML document to plain text, keeping one line per
// block element so row-oriented forms stay parseable.
func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, tr, li, h1, h2, h3, h4, h5, h6, table").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("td, th").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return normalizeText(doc.Text()), nil
}

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// documentText fetches a filing document as text. Plain-text submissions
// are returned as-is.
func (c *Client) documentText(ctx context.Context, cik string, f filing, limit int64) (string, string, error) {
	u := c.documentURL(cik, f.Accession, f.PrimaryDocument)
	data, err := c.http.GetBytes(ctx, u, nil, limit)
	if err != nil {
		return "", u, err
	}
	if strings.HasSuffix(strings.ToLower(f.PrimaryDocument), ".txt") {
		return normalizeText(string(data)), u, nil
	}
	text, err := htmlText(data)
	return text, u, err
}

// RiskFactorText returns the Item 1A section of the latest 10-K, or "" when
// the section cannot be located.
func (c *Client) RiskFactorText(ctx context.Context, cik string) (string, error) {
	sub, err := c.submissions(ctx, cik)
	if err != nil {
		return "", err
	}
	tenK := sub.Filings.Recent.rows("10-K")
	if len(tenK) == 0 {
		return "", fmt.Errorf("%w: 10-K", ErrNoFiling)
	}
	text, _, err := c.documentText(ctx, cik, tenK[0], maxRawDoc)
	if err != nil {
		return "", fmt.Errorf("sec 10-K document: %w", err)
	}
	return riskSection(text), nil
}

// riskSection slices Item 1A up to Item 1B (or Item 2). The table of
// contents also matches, so the longest candidate wins.
func riskSection(text string) string {
	best := ""
	for _, loc := range riskStart.FindAllStringIndex(text, -1) {
		rest := text[loc[0]:]
		end := len(rest)
		if m := riskEnd.FindStringIndex(rest[loc[1]-loc[0]:]); m != nil {
			end = loc[1] - loc[0] + m[0]
		}
		if section := strings.TrimSpace(rest[:end]); len(section) > len(best) {
			best = section
		}
	}
	return best
}

// ProxyStatement returns the text of the latest DEF 14A, capped at 500 KB.
// A company with no proxy on file yields an empty document.
func (c *Client) ProxyStatement(ctx context.Context, cik string) (*models.ProxyDocument, error) {
	sub, err := c.submissions(ctx, cik)
	if err != nil {
		return nil, err
	}
	proxies := sub.Filings.Recent.rows("DEF 14A")
	if len(proxies) == 0 {
		return &models.ProxyDocument{}, nil
	}
	f := proxies[0]
	text, u, err := c.documentText(ctx, cik, f, maxRawDoc)
	if err != nil {
		return nil, fmt.Errorf("sec DEF 14A document: %w", err)
	}
	return &models.ProxyDocument{
		FilingDate: f.FilingDate,
		Text:       truncateBytes(text, maxProxyBytes),
		SourceURL:  u,
	}, nil
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
