package sec

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/pkg/models"
	"github.com/seenimoa/diligenceops/pkg/utils"
)

var factTaxonomies = []string{"us-gaap", "dei"}

// ResolveCIK maps a ticker to its 10-digit zero-padded CIK. The ticker map
// is downloaded once per client.
func (c *Client) ResolveCIK(ctx context.Context, ticker string) (string, error) {
	v, err := c.cache.GetOrLoad("tickers", func() (any, error) {
		var raw map[string]tickerEntry
		if err := c.http.GetJSON(ctx, c.wwwURL+"/files/company_tickers.json", &raw); err != nil {
			return nil, fmt.Errorf("fetch company tickers: %w", err)
		}
		byTicker := make(map[string]tickerEntry, len(raw))
		for _, e := range raw {
			byTicker[strings.ToUpper(e.Ticker)] = e
		}
		return byTicker, nil
	})
	if err != nil {
		return "", err
	}

	sym := utils.NormalizeTicker(ticker)
	e, ok := v.(map[string]tickerEntry)[sym]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTickerNotFound, sym)
	}
	return padCIK(strconv.FormatInt(e.CIK, 10)), nil
}

// CompanyInfo reads company metadata from the submissions index.
func (c *Client) CompanyInfo(ctx context.Context, cik string) (*models.CompanyInfo, error) {
	sub, err := c.submissions(ctx, cik)
	if err != nil {
		return nil, err
	}

	info := &models.CompanyInfo{
		CompanyName:    sub.Name,
		CIK:            padCIK(cik),
		SIC:            sub.SIC,
		SICDescription: sub.SICDescription,
		FiscalYearEnd:  sub.FiscalYearEnd,
		Exchanges:      sub.Exchanges,
		EntityType:     sub.EntityType,
		Category:       sub.Category,
	}
	if len(sub.Tickers) > 0 {
		info.Ticker = sub.Tickers[0]
	}
	if tenK := sub.Filings.Recent.rows("10-K"); len(tenK) > 0 {
		info.Latest10KDate = models.String(tenK[0].FilingDate)
	}
	return info, nil
}

// CompanyFacts returns every annual (10-K) XBRL fact in the us-gaap and dei
// taxonomies. Entries missing end, filed, accn, fy or val are dropped.
func (c *Client) CompanyFacts(ctx context.Context, cik string) ([]models.FinancialFact, error) {
	var resp companyFactsResponse
	u := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", c.dataURL, padCIK(cik))
	if err := c.http.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("sec company facts: %w", err)
	}

	var facts []models.FinancialFact
	dropped := 0
	for _, taxonomy := range factTaxonomies {
		concepts := resp.Facts[taxonomy]
		for _, tag := range slices.Sorted(maps.Keys(concepts)) {
			concept := concepts[tag]
			label := concept.Label
			if label == "" {
				label = tag
			}
			for _, unit := range slices.Sorted(maps.Keys(concept.Units)) {
				for _, e := range concept.Units[unit] {
					if e.Form != "10-K" {
						continue
					}
					if e.End == "" || e.Filed == "" || e.Accn == "" || e.FY == nil || e.Val == nil {
						dropped++
						continue
					}
					fp := e.FP
					if fp == "" {
						fp = "FY"
					}
					facts = append(facts, models.FinancialFact{
						Tag:       tag,
						Label:     label,
						Value:     *e.Val,
						Unit:      unit,
						Start:     e.Start,
						End:       e.End,
						FY:        *e.FY,
						FP:        fp,
						Form:      e.Form,
						Filed:     e.Filed,
						Accession: e.Accn,
						Frame:     e.Frame,
						Taxonomy:  taxonomy,
					})
				}
			}
		}
	}
	if dropped > 0 {
		c.log.Warn("skipped malformed facts", zap.String("cik", cik), zap.Int("count", dropped))
	}
	return facts, nil
}
