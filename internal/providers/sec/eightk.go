package sec

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/pkg/models"
	"github.com/seenimoa/diligenceops/pkg/utils"
)

var (
	accNoRe    = regexp.MustCompile(`AccNo:\s*([\d-]+)`)
	feedMetaRe = regexp.MustCompile(`(?s)^.*?Size:\s*\S+\s*(?:KB|MB|B)?[;\s]*`)
)

// EightKFilings lists 8-K filings made in the last months months. The
// submissions index supplies dates and item codes; the company Atom feed
// supplies descriptions. A feed failure is logged and tolerated.
func (c *Client) EightKFilings(ctx context.Context, cik string, months int) ([]models.EightKFiling, error) {
	sub, err := c.submissions(ctx, cik)
	if err != nil {
		return nil, err
	}

	descriptions, err := c.eightKFeed(ctx, cik)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn("8-K feed unavailable", zap.String("cik", cik), zap.Error(err))
	}

	cutoff := utils.MonthsAgo(c.now(), months)
	var out []models.EightKFiling
	for _, f := range sub.Filings.Recent.rows("8-K") {
		if f.FilingDate != "" && f.FilingDate < cutoff {
			break
		}
		items := splitItems(f.Items)
		desc := descriptions[f.Accession]
		if desc == "" && len(items) > 0 {
			parts := make([]string, len(items))
			for i, it := range items {
				parts[i] = "Item " + it
			}
			desc = strings.Join(parts, ", ")
		}
		if desc == "" {
			desc = f.Description
		}
		out = append(out, models.EightKFiling{
			FilingDate:  f.FilingDate,
			Form:        f.Form,
			Description: desc,
			Accession:   f.Accession,
			Items:       items,
		})
	}
	return out, nil
}

// eightKFeed reads the browse-edgar Atom feed and maps accession number to
// a plain-text description.
func (c *Client) eightKFeed(ctx context.Context, cik string) (map[string]string, error) {
	u := fmt.Sprintf("%s/cgi-bin/browse-edgar?action=getcompany&CIK=%s&type=8-K&dateb=&owner=include&count=100&output=atom",
		c.wwwURL, padCIK(cik))
	data, err := c.http.GetBytes(ctx, u, map[string]string{"Accept": "application/atom+xml"}, maxRawDoc)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse 8-K feed: %w", err)
	}

	out := make(map[string]string, len(feed.Items))
	for _, item := range feed.Items {
		summary := feedText(item.Description)
		m := accNoRe.FindStringSubmatch(summary)
		if m == nil {
			continue
		}
		desc := strings.TrimSpace(feedMetaRe.ReplaceAllString(summary, ""))
		if desc == "" {
			desc = strings.TrimSpace(item.Title)
		}
		out[m[1]] = desc
	}
	return out, nil
}

// feedText flattens an HTML feed summary to one line per <br>.
func feedText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("br").ReplaceWithHtml("; ")
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// splitItems turns the submissions "2.02,9.01" items column into codes.
func splitItems(s string) []string {
	var items []string
	for _, it := range strings.Split(s, ",") {
		if it = strings.TrimSpace(it); it != "" {
			items = append(items, it)
		}
	}
	return items
}
