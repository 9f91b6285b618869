package medicamentsparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/giygas/medicaments-alternatives/extractor"
	"github.com/giygas/medicaments-alternatives/logging"
	"github.com/giygas/medicaments-alternatives/medicamentsparser/entities"
)

// ErrInvalidEnrichedFile is returned when an enriched table lacks a column or
// holds a value it could not have been written with.
var ErrInvalidEnrichedFile = errors.New("invalid enriched dataset")

var enrichedColumns = []string{
	"full_name", "short_name", "active_ingredient", "price_brousse",
	"price_noumea", "application_date", "reimbursement_code",
	"reimbursement_rate", "brand", "dosage", "form",
}

// Enrich turns raw rows into medications, running the extractor over the full
// names in parallel. Row order is kept and Index is the row position.
func Enrich(raw []entities.RawMedication, ex *extractor.Extractor, stats *ParseStats) []entities.Medication {
	labels := make([]string, len(raw))
	for i, r := range raw {
		labels[i] = r.FullName
	}
	features := ex.ExtractAll(labels)

	meds := make([]entities.Medication, len(raw))
	for i, r := range raw {
		f := features[i]

		ingredient := r.ActiveIngredient
		if ingredient == "" {
			ingredient = extractor.Unspecified
		}

		meds[i] = entities.Medication{
			Index:             i,
			FullName:          r.FullName,
			ShortName:         r.ShortName,
			ActiveIngredient:  ingredient,
			PriceBrousse:      r.PriceBrousse,
			PriceNoumea:       r.PriceNoumea,
			ApplicationDate:   r.ApplicationDate,
			ReimbursementCode: r.ReimbursementCode,
			ReimbursementRate: ReimbursementRate(r.ReimbursementCode),
			Brand:             f.Brand,
			Dosage:            f.Dosage,
			Form:              f.Form,
		}

		if stats != nil {
			if f.Dosage != nil {
				stats.DosageMatched++
			}
			if strings.HasPrefix(f.Form, extractor.Unspecified) {
				stats.UnspecifiedForms++
			}
		}
	}
	return meds
}

// WriteEnriched writes meds to path, creating parent directories. The file is
// written next to its destination and renamed into place.
func WriteEnriched(path string, meds []entities.Medication) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	w := bufio.NewWriter(f)
	if err = EncodeEnriched(w, meds); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// EncodeEnriched writes the enriched table with a header row.
func EncodeEnriched(w io.Writer, meds []entities.Medication) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(enrichedColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, m := range meds {
		row := []string{
			m.FullName,
			m.ShortName,
			m.ActiveIngredient,
			formatFloat(m.PriceBrousse),
			formatFloat(m.PriceNoumea),
			m.ApplicationDate,
			formatInt(m.ReimbursementCode),
			m.ReimbursementRate,
			m.Brand,
			formatString(m.Dosage),
			m.Form,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", m.Index, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadEnriched loads an enriched table written by WriteEnriched.
func ReadEnriched(path string) ([]entities.Medication, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrMissingInputFile, path, err)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("Failed to close enriched dataset", "path", path, "error", err)
		}
	}()

	return DecodeEnriched(bufio.NewReader(f))
}

// DecodeEnriched parses an enriched table. Index is the row position.
func DecodeEnriched(r io.Reader) ([]entities.Medication, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidEnrichedFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := indexColumns(header)
	var missing []string
	for _, name := range enrichedColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrInvalidEnrichedFile, strings.Join(missing, ", "))
	}

	meds := make([]entities.Medication, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(meds)+1, err)
		}

		field := func(name string) string {
			if i := columns[name]; i < len(row) {
				return row[i]
			}
			return ""
		}

		m := entities.Medication{
			Index:             len(meds),
			FullName:          field("full_name"),
			ShortName:         field("short_name"),
			ActiveIngredient:  field("active_ingredient"),
			ApplicationDate:   field("application_date"),
			ReimbursementRate: field("reimbursement_rate"),
			Brand:             field("brand"),
			Form:              field("form"),
		}

		var ok bool
		if m.PriceBrousse, ok = parsePrice(field("price_brousse")); !ok {
			return nil, fmt.Errorf("%w: row %d: price_brousse %q", ErrInvalidEnrichedFile, m.Index+1, field("price_brousse"))
		}
		if m.PriceNoumea, ok = parsePrice(field("price_noumea")); !ok {
			return nil, fmt.Errorf("%w: row %d: price_noumea %q", ErrInvalidEnrichedFile, m.Index+1, field("price_noumea"))
		}
		if m.ReimbursementCode, ok = parseCode(field("reimbursement_code")); !ok {
			return nil, fmt.Errorf("%w: row %d: reimbursement_code %q", ErrInvalidEnrichedFile, m.Index+1, field("reimbursement_code"))
		}
		if d := field("dosage"); d != "" {
			m.Dosage = &d
		}

		meds = append(meds, m)
	}

	return meds, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
