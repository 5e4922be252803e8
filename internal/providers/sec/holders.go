package sec

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/pkg/models"
)

const (
	maxHolders      = 20
	max13GTextBytes = 8000
	minHolderShares = 1000
)

var (
	holderForms = []string{"SC 13G", "SC 13G/A", "SCHEDULE 13G", "SCHEDULE 13G/A"}

	// Row 9 of the cover page: AGGREGATE AMOUNT BENEFICIALLY OWNED.
	row9Re = regexp.MustCompile(`(?i)(?:9\.\s*AGGREGATE|AGGREGATE\s+AMOUNT\s+BENEFICIALLY)[^\n]*\n+\s*([\d,]+)`)
	// Row 11: PERCENT OF CLASS.
	row11Re = regexp.MustCompile(`(?i)(?:11\.\s*PERCENT|PERCENT\s+OF\s+CLASS)[^\n]*\n+\s*([\d.]+)\s*%?`)
	// Row 1: NAME(S) OF REPORTING PERSON(S).
	row1Re = regexp.MustCompile(`(?i)NAMES?\s+OF\s+REPORTING\s+PERSONS?`)
)

// InstitutionalHolders reads beneficial owners from SC 13G and SC 13G/A
// filings, newest first. At most limit filings are parsed and at most 20
// holders returned; only the most recent filing per filer is kept.
func (c *Client) InstitutionalHolders(ctx context.Context, cik string, limit int) ([]models.InstitutionalHolder, error) {
	sub, err := c.submissions(ctx, cik)
	if err != nil {
		return nil, err
	}

	var holders []models.InstitutionalHolder
	seen := make(map[string]bool)
	parsed := 0
	for _, f := range sub.Filings.Recent.rows(holderForms...) {
		if len(holders) >= maxHolders || parsed >= limit {
			break
		}
		parsed++

		text, _, err := c.documentText(ctx, cik, f, maxRawDoc)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn("failed to fetch SC 13G filing", zap.String("accession", f.Accession), zap.Error(err))
			continue
		}
		text = truncateBytes(text, max13GTextBytes)

		name := filerName(text, f.Accession)
		key := strings.ToUpper(name)
		if seen[key] {
			continue
		}
		seen[key] = true

		shares, pct := parseCoverPage(text)
		holders = append(holders, models.InstitutionalHolder{
			HolderName:     name,
			Shares:         shares,
			PctOfPortfolio: pct,
			HolderType:     models.HolderInstitutional,
			FilingDate:     f.FilingDate,
		})
	}
	return holders, nil
}

// parseCoverPage extracts aggregate shares (row 9) and percent of class
// (row 11). Share counts under 1,000 are treated as noise.
func parseCoverPage(text string) (float64, *float64) {
	var shares float64
	if m := row9Re.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64); err == nil && v >= minHolderShares {
			shares = float64(v)
		}
	}
	var pct *float64
	if m := row11Re.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			pct = &v
		}
	}
	return shares, pct
}

// filerName reads the first reporting person from the cover page, falling
// back to the filer CIK that prefixes the accession number.
func filerName(text, accession string) string {
	if loc := row1Re.FindStringIndex(text); loc != nil {
		lines := strings.Split(text[loc[1]:], "\n")
		for i, line := range lines {
			if i > 6 {
				break
			}
			line = strings.Trim(strings.TrimSpace(line), ".:")
			upper := strings.ToUpper(line)
			if line == "" || strings.Contains(upper, "I.R.S.") || strings.Contains(upper, "IDENTIFICATION") ||
				strings.Contains(upper, "(ENTITIES ONLY)") {
				continue
			}
			return strings.TrimSpace(line)
		}
	}
	prefix, _, _ := strings.Cut(accession, "-")
	if prefix == "" {
		return "Unknown"
	}
	return "CIK " + prefix
}
