package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Output layers. Each prefixes its file names and appends two lineage
// columns to non-empty tables.
const (
	LayerBronze  = "bronze"
	LayerSilver  = "silver"
	LayerGold    = "gold"
	LayerResults = "results"
)

var lineageColumns = map[string][2]string{
	LayerBronze: {"ingested_at", "source_url"},
	LayerSilver: {"processed_at", "source_bronze"},
	LayerGold:   {"analyzed_at", "source_tables"},
}

// MetadataFile is the per-run summary written next to the tables.
const MetadataFile = "run_metadata.json"

// CSVWriter writes one ticker's artifacts under <root>/<TICKER>/. It is safe
// for concurrent use by stages writing distinct tables.
type CSVWriter struct {
	dir string
	now func() time.Time
}

// NewCSVWriter returns a writer for ticker rooted at root.
func NewCSVWriter(root, ticker string) *CSVWriter {
	return &CSVWriter{
		dir: filepath.Join(root, strings.ToUpper(strings.TrimSpace(ticker))),
		now: time.Now,
	}
}

// WithClock overrides the lineage timestamp source.
func (w *CSVWriter) WithClock(now func() time.Time) *CSVWriter {
	w.now = now
	return w
}

// Dir returns the ticker's output directory.
func (w *CSVWriter) Dir() string { return w.dir }

// WriteBronze writes bronze_<table>.csv with ingested_at and source_url.
func (w *CSVWriter) WriteBronze(table string, t *Table, sourceURL string) (string, error) {
	return w.writeTable(LayerBronze, table, t, sourceURL)
}

// WriteSilver writes silver_<table>.csv with processed_at and source_bronze.
func (w *CSVWriter) WriteSilver(table string, t *Table, sourceBronze string) (string, error) {
	return w.writeTable(LayerSilver, table, t, sourceBronze)
}

// WriteGold writes gold_<table>.csv with analyzed_at and source_tables.
func (w *CSVWriter) WriteGold(table string, t *Table, sourceTables string) (string, error) {
	return w.writeTable(LayerGold, table, t, sourceTables)
}

// WriteResult writes results_<name>.md.
func (w *CSVWriter) WriteResult(name, content string) (string, error) {
	if err := w.ensureDir(); err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, LayerResults+"_"+name+".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write result %s: %w", name, err)
	}
	return path, nil
}

func (w *CSVWriter) writeTable(layer, name string, t *Table, lineage string) (string, error) {
	if err := w.ensureDir(); err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, layer+"_"+name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s table %s: %w", layer, name, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if t == nil {
		t = &Table{}
	}
	if len(t.Rows) == 0 {
		if len(t.Columns) > 0 {
			if err := cw.Write(t.Columns); err != nil {
				return "", fmt.Errorf("write %s table %s: %w", layer, name, err)
			}
		}
	} else {
		cols := lineageColumns[layer]
		stamp := w.now().UTC().Format(time.RFC3339)
		header := append(append([]string{}, t.Columns...), cols[0], cols[1])
		if err := cw.Write(header); err != nil {
			return "", fmt.Errorf("write %s table %s: %w", layer, name, err)
		}
		for _, row := range t.Rows {
			if err := cw.Write(append(append([]string{}, row...), stamp, lineage)); err != nil {
				return "", fmt.Errorf("write %s table %s: %w", layer, name, err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush %s table %s: %w", layer, name, err)
	}
	return path, f.Close()
}

func (w *CSVWriter) ensureDir() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

// RunMetadata summarises the files one run left in the output directory.
type RunMetadata struct {
	RunID        string   `json:"run_id"`
	Ticker       string   `json:"ticker"`
	StartedAt    string   `json:"started_at"`
	CompletedAt  string   `json:"completed_at"`
	BronzeCount  int      `json:"bronze_count"`
	SilverCount  int      `json:"silver_count"`
	GoldCount    int      `json:"gold_count"`
	ResultsCount int      `json:"results_count"`
	Errors       []string `json:"errors"`
}

// WriteRunMetadata counts the output files by layer and writes
// run_metadata.json.
func (w *CSVWriter) WriteRunMetadata(runID string, startedAt time.Time, errs []string) (*RunMetadata, error) {
	if err := w.ensureDir(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("list output dir: %w", err)
	}
	if errs == nil {
		errs = []string{}
	}
	md := &RunMetadata{
		RunID:       runID,
		Ticker:      filepath.Base(w.dir),
		StartedAt:   startedAt.UTC().Format(time.RFC3339),
		CompletedAt: w.now().UTC().Format(time.RFC3339),
		Errors:      errs,
	}
	for _, e := range entries {
		switch name := e.Name(); {
		case strings.HasPrefix(name, LayerBronze+"_"):
			md.BronzeCount++
		case strings.HasPrefix(name, LayerSilver+"_"):
			md.SilverCount++
		case strings.HasPrefix(name, LayerGold+"_"):
			md.GoldCount++
		case strings.HasPrefix(name, LayerResults+"_"):
			md.ResultsCount++
		}
	}
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal run metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, MetadataFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("write run metadata: %w", err)
	}
	return md, nil
}

// Files lists the artifact names currently in the output directory.
func (w *CSVWriter) Files() ([]string, error) { return ListFiles(w.dir) }

// ListFiles lists the regular files in a run output directory. A missing
// directory has no files.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list output dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
