package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/internal/pipeline"
	"github.com/seenimoa/diligenceops/internal/store"
	"github.com/seenimoa/diligenceops/pkg/models"
)

// errNoCIK is reported by fetchers when the resolver fell back offline.
var errNoCIK = errors.New("no CIK available")

// EDGAR lineage URLs recorded on bronze tables.
const (
	submissionsURL  = "https://data.sec.gov/submissions/"
	companyFactsURL = "https://data.sec.gov/api/xbrl/companyfacts/"
	browseURL       = "https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&type="
)

// OfflineFactsPath is where the XBRL stage looks for a fallback facts CSV.
func OfflineFactsPath(dir, ticker string) string {
	return filepath.Join(dir, strings.ToUpper(ticker)+"_bronze_facts.csv")
}

// fetchErr turns a fetch failure into a stage error string. Cancellation
// is returned instead so the run aborts.
func fetchErr(ctx context.Context, form string, err error) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return fmt.Sprintf("Bronze %s: %v", form, err), nil
}

func lineage(paths ...string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *stages) writeBronze(table string, t *store.Table, sourceURL string) (string, error) {
	path, err := s.Artifacts.WriteBronze(table, t, sourceURL)
	if err != nil {
		return "", fmt.Errorf("write bronze %s: %w", table, err)
	}
	return path, nil
}

func cikOf(rec *pipeline.Record) (string, bool) {
	if !rec.CompanyInfo.Resolved() {
		return "", false
	}
	return rec.CompanyInfo.CIK, true
}

// ════════════════════════════════════════════════════════════════════
// Resolver
// ════════════════════════════════════════════════════════════════════

func (s *stages) resolver(ctx context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	ticker := strings.ToUpper(rec.Ticker)
	var u pipeline.Update

	info, err := s.resolve(ctx, ticker)
	if err != nil {
		msg, cerr := fetchErr(ctx, "resolver", err)
		if cerr != nil {
			return u, cerr
		}
		s.logFor(ctx, rec, pipeline.StageResolver).Warn("resolve failed, continuing offline", zap.Error(err))
		u.Errors = append(u.Errors, msg)
		info = &models.CompanyInfo{Ticker: ticker, CompanyName: ticker + " (offline)", CIK: models.OfflineCIK}
	}

	t := store.NewTable("ticker", "company_name", "cik", "sic", "sic_description", "fiscal_year_end",
		"exchanges", "entity_type", "category", "latest_10k_date")
	t.Add(info.Ticker, info.CompanyName, info.CIK, info.SIC, info.SICDescription, info.FiscalYearEnd,
		strings.Join(info.Exchanges, ","), info.EntityType, info.Category, store.Str(info.Latest10KDate))
	path, err := s.writeBronze("company_info", t, submissionsURL)
	if err != nil {
		return u, err
	}

	u.CompanyInfo = info
	u.Artifacts = lineage(path)
	u.Status = pipeline.StatusBronze
	u.ProgressMessages = []string{fmt.Sprintf("Resolved %s → %s", ticker, info.CompanyName)}
	return u, nil
}

func (s *stages) resolve(ctx context.Context, ticker string) (*models.CompanyInfo, error) {
	cik, err := s.Filings.ResolveCIK(ctx, ticker)
	if err != nil {
		return nil, err
	}
	info, err := s.Filings.CompanyInfo(ctx, cik)
	if err != nil {
		return nil, err
	}
	if info.Ticker == "" {
		info.Ticker = ticker
	}
	return info, nil
}

// ════════════════════════════════════════════════════════════════════
// XBRL facts
// ════════════════════════════════════════════════════════════════════

func (s *stages) xbrl(ctx context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	offline := OfflineFactsPath(s.Settings.OfflineDir, rec.Ticker)
	log := s.logFor(ctx, rec, pipeline.StageXBRL)

	var facts []models.FinancialFact
	if cik, ok := cikOf(rec); !ok {
		fb, err := store.LoadFactsCSV(offline)
		if err != nil {
			log.Debug("no offline facts", zap.String("path", offline), zap.Error(err))
			u.Facts = []models.FinancialFact{}
			u.Errors = []string{"No CIK available and no offline data for XBRL facts"}
			u.ProgressMessages = []string{"Bronze XBRL: no data available"}
			return u, nil
		}
		facts = fb
		u.Errors = append(u.Errors, "Using offline fallback for XBRL facts")
	} else {
		fetched, err := s.Filings.CompanyFacts(ctx, cik)
		if err != nil {
			if ctx.Err() != nil {
				return u, ctx.Err()
			}
			fb, ferr := store.LoadFactsCSV(offline)
			if ferr != nil {
				u.Facts = []models.FinancialFact{}
				u.Errors = []string{fmt.Sprintf("Bronze XBRL: %v", err)}
				u.ProgressMessages = []string{fmt.Sprintf("Bronze XBRL: fetch failed — %v", err)}
				return u, nil
			}
			log.Warn("company facts failed, using offline fallback", zap.String("path", offline), zap.Error(err))
			fetched = fb
			u.Errors = append(u.Errors, fmt.Sprintf("Using offline fallback: %v", err))
		}
		facts = fetched
	}

	path, err := s.writeBronze("xbrl_facts", store.FactsTable(facts), companyFactsURL)
	if err != nil {
		return u, err
	}
	u.Facts = facts
	u.Artifacts = lineage(path)
	u.ProgressMessages = []string{fmt.Sprintf("Fetched %d XBRL facts", len(facts))}
	return u, nil
}

// ════════════════════════════════════════════════════════════════════
// 10-K Item 1A
// ════════════════════════════════════════════════════════════════════

func (s *stages) tenK(ctx context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	text, err := s.fetchRiskText(ctx, rec)
	if err != nil {
		msg, cerr := fetchErr(ctx, "10-K", err)
		if cerr != nil {
			return u, cerr
		}
		u.Errors = []string{msg}
	}
	if text == "" {
		u.ProgressMessages = []string{"Bronze 10-K: no risk text available"}
		return u, nil
	}

	t := store.NewTable("ticker", "risk_text")
	t.Add(rec.Ticker, text)
	path, err := s.writeBronze("10k_risk_text", t, browseURL+"10-K")
	if err != nil {
		return u, err
	}
	u.RiskText = text
	u.Artifacts = lineage(path)
	u.ProgressMessages = []string{fmt.Sprintf("Fetched 10-K risk text (%d chars)", len(text))}
	return u, nil
}

func (s *stages) fetchRiskText(ctx context.Context, rec *pipeline.Record) (string, error) {
	cik, ok := cikOf(rec)
	if !ok {
		return "", errNoCIK
	}
	return s.Filings.RiskFactorText(ctx, cik)
}

// ════════════════════════════════════════════════════════════════════
// Form 4
// ════════════════════════════════════════════════════════════════════

func (s *stages) form4(ctx context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	var trades []models.InsiderTransaction
	cik, ok := cikOf(rec)
	err := errNoCIK
	if ok {
		trades, err = s.Filings.Form4Transactions(ctx, cik, s.Settings.LookbackMonths, s.Settings.MaxForm4)
	}
	if err != nil {
		msg, cerr := fetchErr(ctx, "Form 4", err)
		if cerr != nil {
			return u, cerr
		}
		u.Errors = []string{msg}
	}
	if len(trades) == 0 {
		u.Form4 = []models.InsiderTransaction{}
		u.ProgressMessages = []string{"Bronze Form 4: no transactions found"}
		return u, nil
	}

	path, err := s.writeBronze("form4_transactions", TradesTable(trades), browseURL+"4")
	if err != nil {
		return u, err
	}
	u.Form4 = trades
	u.Artifacts = lineage(path)
	u.ProgressMessages = []string{fmt.Sprintf("Fetched %d Form 4 transactions", len(trades))}
	return u, nil
}

// TradesTable renders insider transactions.
func TradesTable(trades []models.InsiderTransaction) *store.Table {
	t := store.NewTable("insider_name", "insider_title", "transaction_date", "transaction_code", "shares",
		"price_per_share", "value", "shares_owned_after", "is_direct", "filing_date")
	for _, tx := range trades {
		t.Add(tx.InsiderName, tx.InsiderTitle, tx.TransactionDate, tx.TransactionCode,
			strconv.FormatFloat(tx.Shares, 'f', -1, 64), store.Float(tx.PricePerShare), store.Float(tx.Value),
			store.Float(tx.SharesOwnedAfter), strconv.FormatBool(tx.IsDirect), tx.FilingDate)
	}
	return t
}

// ════════════════════════════════════════════════════════════════════
// SC 13G
// ════════════════════════════════════════════════════════════════════

func (s *stages) thirteenG(ctx context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	var holders []models.InstitutionalHolder
	cik, ok := cikOf(rec)
	err := errNoCIK
	if ok {
		holders, err = s.Filings.InstitutionalHolders(ctx, cik, s.Settings.Max13G)
	}
	if err != nil {
		msg, cerr := fetchErr(ctx, "SC 13G", err)
		if cerr != nil {
			return u, cerr
		}
		u.Errors = []string{msg}
	}
	if len(holders) == 0 {
		u.Holdings = []models.InstitutionalHolder{}
		u.ProgressMessages = []string{"Bronze SC 13G: no institutional holders found"}
		return u, nil
	}

	path, err := s.writeBronze("13f_holdings", HoldersTable(holders), browseURL+"SC+13G")
	if err != nil {
		return u, err
	}
	u.Holdings = holders
	u.Artifacts = lineage(path)
	u.ProgressMessages = []string{fmt.Sprintf("Fetched %d institutional holders from SC 13G", len(holders))}
	return u, nil
}

// HoldersTable renders institutional holders.
func HoldersTable(holders []models.InstitutionalHolder) *store.Table {
	t := store.NewTable("holder_name", "shares", "value", "pct_of_portfolio", "change_shares", "change_pct",
		"holder_type", "filing_date")
	for _, h := range holders {
		t.Add(h.HolderName, strconv.FormatFloat(h.Shares, 'f', -1, 64), store.Float(h.Value),
			store.Float(h.PctOfPortfolio), store.Float(h.ChangeShares), store.Float(h.ChangePct),
			h.HolderType, h.FilingDate)
	}
	return t
}

// ════════════════════════════════════════════════════════════════════
// 8-K
// ════════════════════════════════════════════════════════════════════

func (s *stages) eightK(ctx context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	var filings []models.EightKFiling
	cik, ok := cikOf(rec)
	err := errNoCIK
	if ok {
		filings, err = s.Filings.EightKFilings(ctx, cik, s.Settings.LookbackMonths)
	}
	if err != nil {
		msg, cerr := fetchErr(ctx, "8-K", err)
		if cerr != nil {
			return u, cerr
		}
		u.Errors = []string{msg}
	}
	if len(filings) == 0 {
		u.EightK = []models.EightKFiling{}
		u.ProgressMessages = []string{"Bronze 8-K: no filings found"}
		return u, nil
	}

	t := store.NewTable("filing_date", "form", "description", "accession", "items")
	for _, f := range filings {
		t.Add(f.FilingDate, f.Form, f.Description, f.Accession, strings.Join(f.Items, ","))
	}
	path, err := s.writeBronze("8k_filings", t, browseURL+"8-K")
	if err != nil {
		return u, err
	}
	u.EightK = filings
	u.Artifacts = lineage(path)
	u.ProgressMessages = []string{fmt.Sprintf("Fetched %d 8-K filings", len(filings))}
	return u, nil
}

// ════════════════════════════════════════════════════════════════════
// DEF 14A
// ════════════════════════════════════════════════════════════════════

func (s *stages) def14a(ctx context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	var doc *models.ProxyDocument
	cik, ok := cikOf(rec)
	err := errNoCIK
	if ok {
		doc, err = s.Filings.ProxyStatement(ctx, cik)
	}
	if err != nil {
		msg, cerr := fetchErr(ctx, "DEF 14A", err)
		if cerr != nil {
			return u, cerr
		}
		u.Errors = []string{msg}
	}
	if doc == nil || doc.Text == "" {
		u.Proxy = &models.ProxyDocument{}
		u.ProgressMessages = []string{"Bronze DEF 14A: no proxy data available"}
		return u, nil
	}

	t := store.NewTable("ticker", "filing_date", "proxy_text")
	t.Add(rec.Ticker, doc.FilingDate, doc.Text)
	path, err := s.writeBronze("def14a_proxy", t, browseURL+"DEF+14A")
	if err != nil {
		return u, err
	}
	u.Proxy = doc
	u.Artifacts = lineage(path)
	u.ProgressMessages = []string{fmt.Sprintf("Fetched DEF 14A proxy (%d chars)", len(doc.Text))}
	return u, nil
}
