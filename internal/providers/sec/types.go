package sec

import "strings"

// --- EDGAR Submissions (data.sec.gov/submissions) ---

type submissionsResponse struct {
	CIK            string      `json:"cik"`
	EntityType     string      `json:"entityType"`
	SIC            string      `json:"sic"`
	SICDescription string      `json:"sicDescription"`
	Name           string      `json:"name"`
	Tickers        []string    `json:"tickers"`
	Exchanges      []string    `json:"exchanges"`
	FiscalYearEnd  string      `json:"fiscalYearEnd"`
	Category       string      `json:"category"`
	Filings        filingsList `json:"filings"`
}

type filingsList struct {
	Recent filingSet `json:"recent"`
}

// filingSet is EDGAR's column-oriented filing index: one slice per field,
// newest filing first.
type filingSet struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
	Items           []string `json:"items"`
	Description     []string `json:"primaryDocDescription"`
}

// filing is one row of a filingSet.
type filing struct {
	Accession       string
	FilingDate      string
	Form            string
	PrimaryDocument string
	Items           string
	Description     string
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

// rows returns the filings whose form is one of forms, newest first.
func (fs filingSet) rows(forms ...string) []filing {
	var out []filing
	for i, form := range fs.Form {
		match := false
		for _, f := range forms {
			if strings.EqualFold(form, f) {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		out = append(out, filing{
			Accession:       at(fs.AccessionNumber, i),
			FilingDate:      at(fs.FilingDate, i),
			Form:            form,
			PrimaryDocument: at(fs.PrimaryDocument, i),
			Items:           at(fs.Items, i),
			Description:     at(fs.Description, i),
		})
	}
	return out
}

// --- EDGAR Company Facts (XBRL) ---

type companyFactsResponse struct {
	CIK        int                               `json:"cik"`
	EntityName string                            `json:"entityName"`
	Facts      map[string]map[string]factConcept `json:"facts"` // taxonomy -> concept -> fact
}

type factConcept struct {
	Label string                 `json:"label"`
	Units map[string][]factEntry `json:"units"` // unit ("USD", "shares") -> values
}

// factEntry keeps the required fields as pointers or strings so missing
// values can be told apart from zero.
type factEntry struct {
	Start *string  `json:"start"`
	End   string   `json:"end"`
	Val   *float64 `json:"val"`
	Accn  string   `json:"accn"`
	FY    *int     `json:"fy"`
	FP    string   `json:"fp"`
	Form  string   `json:"form"`
	Filed string   `json:"filed"`
	Frame *string  `json:"frame"`
}

// --- CIK / Ticker Mapping ---

// tickerEntry is a row of company_tickers.json, which is keyed by index:
// {"0": {cik_str, ticker, title}, ...}
type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}
