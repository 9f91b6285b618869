// Package medicamentsparser reads the raw medication dataset, enriches every
// label with extracted features and persists the enriched table.
package medicamentsparser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/giygas/medicaments-alternatives/medicamentsparser/entities"
	"golang.org/x/text/encoding/charmap"
)

// ErrMissingInputFile is returned when a dataset or artifact file does not
// exist. It matches os.ErrNotExist as well.
var ErrMissingInputFile = errors.New("input file not found")

// Raw dataset columns.
const (
	colFullName          = "libelle_long"
	colShortName         = "libelle_court"
	colActiveIngredient  = "dci"
	colPriceBrousse      = "prix_brousse"
	colPriceNoumea       = "prix_iles"
	colApplicationDate   = "date_application"
	colReimbursementCode = "code_remboursement"
)

var rawColumns = []string{
	colFullName, colShortName, colActiveIngredient, colPriceBrousse,
	colPriceNoumea, colApplicationDate, colReimbursementCode,
}

// RateUndefined is the rate of a missing or unknown reimbursement code.
const RateUndefined = "Undefined"

var reimbursementRates = map[int]string{
	0: "0%",
	3: "65%",
	5: "100%",
}

// ParseStats counts what was coerced while reading and enriching. Malformed
// fields never abort a batch.
type ParseStats struct {
	Rows             int
	MissingColumns   []string
	InvalidPrices    int
	InvalidCodes     int
	DosageMatched    int
	UnspecifiedForms int
}

// ReimbursementRate maps a reimbursement code to its rate label.
func ReimbursementRate(code *int) string {
	if code == nil {
		return RateUndefined
	}
	if rate, ok := reimbursementRates[*code]; ok {
		return rate
	}
	return RateUndefined
}

// ReadRaw reads the raw CSV at path.
func ReadRaw(path string) ([]entities.RawMedication, ParseStats, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ParseStats{}, fmt.Errorf("%w: %s: %w", ErrMissingInputFile, path, err)
		}
		return nil, ParseStats{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DecodeRaw(bytes.NewReader(content))
}

// DecodeRaw parses a raw dataset. Columns are looked up by header name; absent
// columns read as empty. Content that is not valid UTF-8 is decoded as
// ISO-8859-1.
func DecodeRaw(r io.Reader) ([]entities.RawMedication, ParseStats, error) {
	var stats ParseStats

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read dataset: %w", err)
	}

	reader := csv.NewReader(textReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []entities.RawMedication{}, stats, nil
	}
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read header: %w", err)
	}

	columns := indexColumns(header)
	for _, name := range rawColumns {
		if _, ok := columns[name]; !ok {
			stats.MissingColumns = append(stats.MissingColumns, name)
		}
	}

	records := make([]entities.RawMedication, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("failed to read row %d: %w", stats.Rows+1, err)
		}

		field := func(name string) string {
			if i, ok := columns[name]; ok && i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		rec := entities.RawMedication{
			FullName:         field(colFullName),
			ShortName:        field(colShortName),
			ActiveIngredient: field(colActiveIngredient),
			ApplicationDate:  field(colApplicationDate),
		}

		var ok bool
		if rec.PriceBrousse, ok = parsePrice(field(colPriceBrousse)); !ok {
			stats.InvalidPrices++
		}
		if rec.PriceNoumea, ok = parsePrice(field(colPriceNoumea)); !ok {
			stats.InvalidPrices++
		}
		if rec.ReimbursementCode, ok = parseCode(field(colReimbursementCode)); !ok {
			stats.InvalidCodes++
		}

		records = append(records, rec)
		stats.Rows++
	}

	return records, stats, nil
}

func textReader(content []byte) io.Reader {
	if utf8.Valid(content) {
		return bytes.NewReader(bytes.TrimPrefix(content, []byte("\ufeff")))
	}
	return charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(content))
}

func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	}
	return columns
}

// parsePrice coerces a price field. An empty field is a missing price; a
// field that is not a finite number is also missing and reported with
// ok == false. Spaces are thousands separators; with several commas only the
// last one is the decimal separator.
func parsePrice(s string) (price *float64, ok bool) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, true
	}

	if n := strings.Count(s, ","); n > 0 {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", "", n-1)
			s = strings.Replace(s, ",", ".", 1)
		}
	}

	p, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
		return nil, false
	}
	return &p, true
}

// parseCode reads a reimbursement code written as an integer or an integral
// float ("3" or "3.0").
func parseCode(s string) (code *int, ok bool) {
	if s == "" {
		return nil, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return nil, false
	}
	n := int(f)
	return &n, true
}
