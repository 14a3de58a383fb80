// Package catalog turns tabular reagent inventories into typed antibody
// records for the rule engine. Headers must use the canonical column names;
// rows missing a required field are dropped and counted rather than failing
// the load.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"slideapp/pkg/reagent"
)

// Canonical primary catalog columns.
const (
	ColAntibody      = "antibody"
	ColConcentration = "concentration"
	ColAnimal        = "animal"
	ColCatalogNumber = "catalog_number"
	ColIgGSubtype    = "igg_subtype"
)

// Canonical secondary catalog columns.
const (
	ColSecondary   = "secondary_antibody"
	ColRaisedIn    = "raised_in"
	ColAnti        = "anti"
	ColFluorophore = "fluorophore"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("catalog: missing required column")

// LoadReport summarises a load.
type LoadReport struct {
	Rows    int `json:"rows"`
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
}

type table struct {
	index  map[string]int
	record []string
}

func (t table) get(col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(t.record) {
		return ""
	}
	return strings.TrimSpace(t.record[i])
}

// ReadPrimaries parses a primary antibody CSV.
func ReadPrimaries(r io.Reader) ([]reagent.PrimaryAntibody, LoadReport, error) {
	var out []reagent.PrimaryAntibody
	report, err := scan(r, []string{ColAntibody, ColAnimal}, func(t table) bool {
		ab := reagent.PrimaryAntibody{
			Name:          t.get(ColAntibody),
			Concentration: parseConcentration(t.get(ColConcentration)),
			Animal:        reagent.NormalizeHost(t.get(ColAnimal)),
			CatalogNumber: t.get(ColCatalogNumber),
			IgGSubtype:    t.get(ColIgGSubtype),
		}
		if !ab.Valid() {
			return false
		}
		out = append(out, ab)
		return true
	})
	return out, report, err
}

// ReadSecondaries parses a secondary antibody CSV. The mouse isotype is
// inferred from the product name for anti-mouse secondaries.
func ReadSecondaries(r io.Reader) ([]reagent.SecondaryAntibody, LoadReport, error) {
	var out []reagent.SecondaryAntibody
	required := []string{ColSecondary, ColRaisedIn, ColAnti, ColFluorophore}
	report, err := scan(r, required, func(t table) bool {
		sec := reagent.NewSecondary(
			t.get(ColSecondary),
			t.get(ColConcentration),
			t.get(ColRaisedIn),
			t.get(ColAnti),
			t.get(ColFluorophore),
		)
		if !sec.Valid() {
			return false
		}
		out = append(out, sec)
		return true
	})
	return out, report, err
}

// LoadPrimariesFile reads a primary catalog from path.
func LoadPrimariesFile(path string) ([]reagent.PrimaryAntibody, LoadReport, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("open primary catalog: %w", err)
	}
	defer func() { _ = fh.Close() }()
	return ReadPrimaries(fh)
}

// LoadSecondariesFile reads a secondary catalog from path.
func LoadSecondariesFile(path string) ([]reagent.SecondaryAntibody, LoadReport, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("open secondary catalog: %w", err)
	}
	defer func() { _ = fh.Close() }()
	return ReadSecondaries(fh)
}

func scan(r io.Reader, required []string, row func(table) bool) (LoadReport, error) {
	var report LoadReport
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return report, fmt.Errorf("%w %q", ErrMissingColumn, col)
		}
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return report, fmt.Errorf("read row %d: %w", report.Rows+1, err)
		}
		report.Rows++
		if row(table{index: index, record: record}) {
			report.Loaded++
		} else {
			report.Skipped++
		}
	}
	return report, nil
}

func parseConcentration(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return nil
	}
	return &v
}
