package models

// --- Form 4 ---

// Form 4 transaction codes used by the insider workstream.
const (
	TxPurchase = "P"
	TxSale     = "S"
	TxAward    = "A"
	TxExercise = "M"
)

// InsiderTransaction is a single insider trade reported on Form 4.
type InsiderTransaction struct {
	InsiderName      string   `json:"insider_name"`
	InsiderTitle     string   `json:"insider_title,omitempty"`
	TransactionDate  string   `json:"transaction_date"` // YYYY-MM-DD
	TransactionCode  string   `json:"transaction_code"` // P, S, A, M
	Shares           float64  `json:"shares"`
	PricePerShare    *float64 `json:"price_per_share"`
	Value            *float64 `json:"value"`
	SharesOwnedAfter *float64 `json:"shares_owned_after"`
	IsDirect         bool     `json:"is_direct"`
	FilingDate       string   `json:"filing_date"`
}

// --- SC 13G ---

// Holder classifications.
const (
	HolderPassive       = "passive"
	HolderActive        = "active"
	HolderInstitutional = "institutional" // unclassified, as ingested
)

// InstitutionalHolder is a beneficial owner reported on SC 13G.
type InstitutionalHolder struct {
	HolderName     string   `json:"holder_name"`
	Shares         float64  `json:"shares"`
	Value          *float64 `json:"value"`
	PctOfPortfolio *float64 `json:"pct_of_portfolio"`
	ChangeShares   *float64 `json:"change_shares"`
	ChangePct      *float64 `json:"change_pct"`
	HolderType     string   `json:"holder_type"`
	FilingDate     string   `json:"filing_date,omitempty"`
}

// --- 8-K ---

// EightKFiling is a raw 8-K listing entry.
type EightKFiling struct {
	FilingDate  string   `json:"filing_date"`
	Form        string   `json:"form"`
	Description string   `json:"description"`
	Accession   string   `json:"accession,omitempty"`
	Items       []string `json:"items,omitempty"` // item codes from the submissions index, e.g. "2.02"
}

// --- DEF 14A ---

// ProxyDocument is the text of the latest DEF 14A proxy statement.
type ProxyDocument struct {
	FilingDate string `json:"filing_date,omitempty"`
	Text       string `json:"text,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
}
