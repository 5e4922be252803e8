package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/seenimoa/diligenceops/pkg/models"
)

// FactColumns is the bronze XBRL facts header, in write order.
var FactColumns = []string{"tag", "label", "value", "unit", "start", "end", "fy", "fp", "form", "filed", "accession", "frame", "taxonomy"}

// FactsTable renders facts as a bronze table.
func FactsTable(facts []models.FinancialFact) *Table {
	t := NewTable(FactColumns...)
	for _, f := range facts {
		t.Add(f.Tag, f.Label, strconv.FormatFloat(f.Value, 'f', -1, 64), f.Unit, Str(f.Start), f.End,
			strconv.Itoa(f.FY), f.FP, f.Form, f.Filed, f.Accession, Str(f.Frame), f.Taxonomy)
	}
	return t
}

// LoadFactsCSV reads a bronze facts CSV. Columns are matched by header
// name so lineage columns are ignored. Rows without a tag, end date or
// numeric value are skipped.
func LoadFactsCSV(path string) ([]models.FinancialFact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open facts csv: %w", err)
	}
	defer f.Close()
	return ReadFacts(f)
}

// ReadFacts decodes facts from CSV.
func ReadFacts(r io.Reader) ([]models.FinancialFact, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []models.FinancialFact{}, nil
		}
		return nil, fmt.Errorf("read facts header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"tag", "value", "end"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("facts csv: missing %q column", required)
		}
	}

	facts := []models.FinancialFact{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read facts row: %w", err)
		}
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		value, err := strconv.ParseFloat(get("value"), 64)
		if err != nil || get("tag") == "" || get("end") == "" {
			continue
		}
		fy, _ := strconv.ParseFloat(get("fy"), 64)
		fact := models.FinancialFact{
			Tag:       get("tag"),
			Label:     get("label"),
			Value:     value,
			Unit:      get("unit"),
			End:       get("end"),
			FY:        int(fy),
			FP:        get("fp"),
			Form:      get("form"),
			Filed:     get("filed"),
			Accession: get("accession"),
			Taxonomy:  get("taxonomy"),
		}
		if s := get("start"); s != "" {
			fact.Start = &s
		}
		if s := get("frame"); s != "" {
			fact.Frame = &s
		}
		facts = append(facts, fact)
	}
	return facts, nil
}
