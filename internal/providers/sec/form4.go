package sec

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/diligenceops/pkg/models"
	"github.com/seenimoa/diligenceops/pkg/utils"
)

// form4Concurrency caps parallel Form 4 document fetches. The shared rate
// limiter still bounds the aggregate request rate.
const form4Concurrency = 4

// --- Form 4 ownership document (XML) ---

type ownershipDocument struct {
	XMLName         xml.Name         `xml:"ownershipDocument"`
	ReportingOwners []reportingOwner `xml:"reportingOwner"`
	NonDerivative   []ownershipTx    `xml:"nonDerivativeTable>nonDerivativeTransaction"`
	Derivative      []ownershipTx    `xml:"derivativeTable>derivativeTransaction"`
}

type reportingOwner struct {
	Name         string `xml:"reportingOwnerId>rptOwnerName"`
	IsDirector   string `xml:"reportingOwnerRelationship>isDirector"`
	IsTenPercent string `xml:"reportingOwnerRelationship>isTenPercentOwner"`
	OfficerTitle string `xml:"reportingOwnerRelationship>officerTitle"`
}

// xmlValue is EDGAR's <x><value>...</value></x> wrapper.
type xmlValue struct {
	Value string `xml:"value"`
}

type ownershipTx struct {
	Date        xmlValue `xml:"transactionDate"`
	Code        string   `xml:"transactionCoding>transactionCode"`
	Shares      xmlValue `xml:"transactionAmounts>transactionShares"`
	Price       xmlValue `xml:"transactionAmounts>transactionPricePerShare"`
	SharesAfter xmlValue `xml:"postTransactionAmounts>sharesOwnedFollowingTransaction"`
	Ownership   xmlValue `xml:"ownershipNature>directOrIndirectOwnership"`
}

// Form4Transactions returns insider transactions from Form 4 filings made in
// the last months months, reading at most limit filings. Documents that fail
// to download or parse are skipped.
func (c *Client) Form4Transactions(ctx context.Context, cik string, months, limit int) ([]models.InsiderTransaction, error) {
	sub, err := c.submissions(ctx, cik)
	if err != nil {
		return nil, err
	}

	cutoff := utils.MonthsAgo(c.now(), months)
	var filings []filing
	for _, f := range sub.Filings.Recent.rows("4") {
		if len(filings) >= limit {
			break
		}
		if f.FilingDate != "" && f.FilingDate < cutoff {
			break
		}
		filings = append(filings, f)
	}

	results := make([][]models.InsiderTransaction, len(filings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(form4Concurrency)
	for i, f := range filings {
		g.Go(func() error {
			u := c.documentURL(cik, f.Accession, rawXMLDocument(f.PrimaryDocument))
			data, err := c.http.GetBytes(gctx, u, nil, maxRawDoc)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.log.Warn("form 4 fetch failed", zap.String("url", u), zap.Error(err))
				return nil
			}
			txs, err := parseForm4(data, f.FilingDate)
			if err != nil {
				c.log.Warn("failed to parse Form 4 filing", zap.String("url", u), zap.Error(err))
				return nil
			}
			results[i] = txs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []models.InsiderTransaction
	for _, txs := range results {
		out = append(out, txs...)
	}
	return out, nil
}

// rawXMLDocument strips the XSL rendering prefix ("xslF345X05/") EDGAR puts
// on Form 4 primary documents, yielding the raw XML path.
func rawXMLDocument(doc string) string {
	if strings.HasPrefix(doc, "xsl") {
		if _, rest, ok := strings.Cut(doc, "/"); ok {
			return rest
		}
	}
	return doc
}

// parseForm4 decodes one ownership document. The first reporting owner
// names every transaction.
func parseForm4(data []byte, filingDate string) ([]models.InsiderTransaction, error) {
	var doc ownershipDocument
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode ownership document: %w", err)
	}

	var name, title string
	if len(doc.ReportingOwners) > 0 {
		o := doc.ReportingOwners[0]
		name = strings.TrimSpace(o.Name)
		title = strings.TrimSpace(o.OfficerTitle)
		switch {
		case title != "":
		case xmlBool(o.IsDirector):
			title = "Director"
		case xmlBool(o.IsTenPercent):
			title = "10% Owner"
		}
	}

	txs := make([]models.InsiderTransaction, 0, len(doc.NonDerivative)+len(doc.Derivative))
	for _, t := range append(doc.NonDerivative, doc.Derivative...) {
		shares := 0.0
		if v := xmlFloat(t.Shares.Value); v != nil {
			shares = *v
		}
		price := xmlFloat(t.Price.Value)
		var value *float64
		if price != nil && *price != 0 && shares != 0 {
			value = models.Float(math.Abs(shares * *price))
		}
		date := strings.TrimSpace(t.Date.Value)
		if date == "" {
			date = filingDate
		} else if len(date) > len(utils.DateLayout) {
			date = date[:len(utils.DateLayout)]
		}
		txs = append(txs, models.InsiderTransaction{
			InsiderName:      name,
			InsiderTitle:     title,
			TransactionDate:  date,
			TransactionCode:  strings.TrimSpace(t.Code),
			Shares:           shares,
			PricePerShare:    price,
			Value:            value,
			SharesOwnedAfter: xmlFloat(t.SharesAfter.Value),
			IsDirect:         strings.TrimSpace(t.Ownership.Value) != "I",
			FilingDate:       filingDate,
		})
	}
	return txs, nil
}

func xmlBool(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	return s == "1" || s == "true"
}

// xmlFloat parses an optional numeric value; NaN and Inf count as missing.
func xmlFloat(s string) *float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
