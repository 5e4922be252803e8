package store

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/seenimoa/diligenceops/internal/config"
	"github.com/seenimoa/diligenceops/internal/pipeline"
	"github.com/seenimoa/diligenceops/pkg/models"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

// ════════════════════════════════════════════════════════════════════
// Table
// ════════════════════════════════════════════════════════════════════

func TestTableAddPadsAndTruncates(t *testing.T) {
	tbl := NewTable("a", "b", "c")
	tbl.Add("1")
	tbl.Add("1", "2", "3", "4")
	assert.Equal(t, [][]string{{"1", "", ""}, {"1", "2", "3"}}, tbl.Rows)
	assert.Equal(t, 2, tbl.Len())
}

func TestCellFormatting(t *testing.T) {
	assert.Equal(t, "", Float(nil))
	assert.Equal(t, "0.4621", Float(models.Float(0.4621)))
	assert.Equal(t, "391035000000", Float(models.Float(391_035_000_000)))
	assert.Equal(t, "", Int(nil))
	assert.Equal(t, "8", Int(models.Int(8)))
	assert.Equal(t, "true", Bool(models.Bool(true)))
	assert.Equal(t, "CEO", Str(models.String("CEO")))
	assert.Equal(t, "Audit; Nominating", List([]string{"Audit", "Nominating"}, "; "))
}

// ════════════════════════════════════════════════════════════════════
// CSVWriter
// ════════════════════════════════════════════════════════════════════

func TestCSVWriterLayers(t *testing.T) {
	root := t.TempDir()
	w := NewCSVWriter(root, " aapl ").WithClock(func() time.Time { return fixedNow })
	assert.Equal(t, filepath.Join(root, "AAPL"), w.Dir())

	tbl := NewTable("ticker", "risk_text")
	tbl.Add("AAPL", "Our business, operations and \"results\" are subject to risks.")

	tests := []struct {
		name    string
		write   func() (string, error)
		file    string
		lineage []string
	}{
		{"bronze", func() (string, error) { return w.WriteBronze("10k_risk_text", tbl, "https://sec.gov") }, "bronze_10k_risk_text.csv", []string{"ingested_at", "source_url"}},
		{"silver", func() (string, error) { return w.WriteSilver("risk_factors", tbl, "bronze_10k_risk_text.csv") }, "silver_risk_factors.csv", []string{"processed_at", "source_bronze"}},
		{"gold", func() (string, error) { return w.WriteGold("risk_assessment", tbl, "silver_financial_kpis.csv") }, "gold_risk_assessment.csv", []string{"analyzed_at", "source_tables"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := tt.write()
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(root, "AAPL", tt.file), path)

			rows := readCSV(t, path)
			require.Len(t, rows, 2)
			assert.Equal(t, append([]string{"ticker", "risk_text"}, tt.lineage...), rows[0])
			assert.Equal(t, tbl.Rows[0][1], rows[1][1])
			assert.Equal(t, "2025-03-01T12:00:00Z", rows[1][2])
		})
	}
}

func TestCSVWriterEmptyTableHasNoLineage(t *testing.T) {
	w := NewCSVWriter(t.TempDir(), "MSFT")
	path, err := w.WriteBronze("form4_transactions", NewTable("insider_name", "shares"), "https://sec.gov")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"insider_name", "shares"}}, readCSV(t, path))
}

func TestWriteResultAndMetadata(t *testing.T) {
	w := NewCSVWriter(t.TempDir(), "AAPL").WithClock(func() time.Time { return fixedNow })

	tbl := NewTable("metric", "value")
	tbl.Add("revenue", "1")
	for _, write := range []func() (string, error){
		func() (string, error) { return w.WriteBronze("company_info", tbl, "") },
		func() (string, error) { return w.WriteBronze("xbrl_facts", tbl, "") },
		func() (string, error) { return w.WriteSilver("financial_kpis", tbl, "") },
		func() (string, error) { return w.WriteGold("risk_assessment", tbl, "") },
		func() (string, error) { return w.WriteResult("diligence_memo", "# Report\n") },
	} {
		_, err := write()
		require.NoError(t, err)
	}

	data, err := os.ReadFile(filepath.Join(w.Dir(), "results_diligence_memo.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Report\n", string(data))

	md, err := w.WriteRunMetadata("abc12345", fixedNow.Add(-time.Minute), nil)
	require.NoError(t, err)
	want := &RunMetadata{
		RunID: "abc12345", Ticker: "AAPL",
		StartedAt: "2025-03-01T11:59:00Z", CompletedAt: "2025-03-01T12:00:00Z",
		BronzeCount: 2, SilverCount: 1, GoldCount: 1, ResultsCount: 1,
		Errors: []string{},
	}
	if diff := cmp.Diff(want, md); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}

	raw, err := os.ReadFile(filepath.Join(w.Dir(), MetadataFile))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, []any{}, decoded["errors"])

	files, err := w.Files()
	require.NoError(t, err)
	assert.Len(t, files, 6)
}

func TestFilesOnMissingDir(t *testing.T) {
	files, err := NewCSVWriter(t.TempDir(), "NONE").Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}

// ════════════════════════════════════════════════════════════════════
// Facts CSV
// ════════════════════════════════════════════════════════════════════

func TestFactsRoundTripThroughBronzeTable(t *testing.T) {
	start := "2023-10-01"
	facts := []models.FinancialFact{
		{Tag: "Revenues", Label: "Revenue", Value: 391035000000, Unit: "USD", Start: &start, End: "2024-09-28",
			FY: 2024, FP: "FY", Form: "10-K", Filed: "2024-11-01", Accession: "0000320193-24-000123", Taxonomy: "us-gaap"},
		{Tag: "Assets", Value: 364980000000, Unit: "USD", End: "2024-09-28",
			FY: 2024, FP: "FY", Form: "10-K", Filed: "2024-11-01", Accession: "0000320193-24-000123", Taxonomy: "us-gaap"},
	}
	w := NewCSVWriter(t.TempDir(), "AAPL")
	path, err := w.WriteBronze("xbrl_facts", FactsTable(facts), "https://data.sec.gov/api/xbrl/companyfacts/")
	require.NoError(t, err)

	got, err := LoadFactsCSV(path)
	require.NoError(t, err)
	if diff := cmp.Diff(facts, got); diff != "" {
		t.Errorf("facts mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFactsSkipsBadRows(t *testing.T) {
	in := "tag,value,end,fy\nRevenues,100,2024-09-28,2024\nRevenues,,2024-09-28,2024\n,5,2024-09-28,2024\nAssets,7,2024-09-28,2024.0\n"
	got, err := ReadFacts(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2024, got[1].FY)
	assert.Nil(t, got[0].Start)
}

func TestReadFactsMissingColumn(t *testing.T) {
	_, err := ReadFacts(strings.NewReader("tag,unit\nRevenues,USD\n"))
	assert.ErrorContains(t, err, `missing "value" column`)
}

func TestLoadFactsMissingFile(t *testing.T) {
	_, err := LoadFactsCSV(filepath.Join(t.TempDir(), "AAPL_bronze_facts.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// ════════════════════════════════════════════════════════════════════
// RunStore
// ════════════════════════════════════════════════════════════════════

func openMemStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := OpenRunStore(config.StoreConfig{InMemory: true}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunStoreSaveGet(t *testing.T) {
	s := openMemStore(t)

	rec := pipeline.NewRecord("abc12345", "AAPL")
	rec.Recommendation = models.RecommendProceed
	rec.Confidence = 0.84
	rec.Statuses[pipeline.StageMemo] = pipeline.StatusComplete

	run := &RunRecord{ID: "abc12345", Ticker: "AAPL", Status: RunComplete, StartedAt: fixedNow, CompletedAt: fixedNow.Add(time.Minute), Result: rec}
	require.NoError(t, s.Save(run))

	got, err := s.Get("abc12345")
	require.NoError(t, err)
	assert.True(t, got.Done())
	assert.Equal(t, "AAPL", got.Ticker)
	require.NotNil(t, got.Result)
	assert.Equal(t, 0.84, got.Result.Confidence)
	assert.Equal(t, pipeline.StatusComplete, got.Result.Statuses[pipeline.StageMemo])
	assert.True(t, got.StartedAt.Equal(fixedNow))
}

func TestRunStoreGetUnknown(t *testing.T) {
	_, err := openMemStore(t).Get("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunStoreSaveRequiresID(t *testing.T) {
	assert.Error(t, openMemStore(t).Save(&RunRecord{}))
}

func TestRunStoreListNewestFirst(t *testing.T) {
	s := openMemStore(t)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.Save(&RunRecord{ID: id, Ticker: "AAPL", Status: RunRunning, StartedAt: fixedNow.Add(time.Duration(i) * time.Minute)}))
	}
	// Updating a run keeps a single entry.
	require.NoError(t, s.Save(&RunRecord{ID: "r1", Ticker: "AAPL", Status: RunError, Error: "boom", StartedAt: fixedNow}))

	all, err := s.List(0)
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, r := range all {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"r3", "r2", "r1"}, ids)
	assert.Equal(t, RunError, all[2].Status)

	top, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
	assert.Equal(t, "r3", top[0].ID)
}

func TestOpenRunStoreRequiresPath(t *testing.T) {
	_, err := OpenRunStore(config.StoreConfig{}, nil)
	assert.Error(t, err)
}
