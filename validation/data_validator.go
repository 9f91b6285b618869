// Package validation checks user input and reports on the quality of a loaded
// dataset.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/giygas/medicaments-alternatives/embeddings"
	"github.com/giygas/medicaments-alternatives/extractor"
	"github.com/giygas/medicaments-alternatives/interfaces"
	"github.com/giygas/medicaments-alternatives/medicamentsparser"
	"github.com/giygas/medicaments-alternatives/medicamentsparser/entities"
)

// Pre-compiled regex patterns, compiled once at package initialization
var (
	// Input validation: letters (accents included), digits and the punctuation
	// found in medication labels
	inputRegex = regexp.MustCompile(`^[\p{L}\p{N}\s\-\.\+'%/,µ]+$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"eval(", "expression(", "url(", "@import",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/", "exec(",
		// Command injection patterns
		"; ", "| ", "& ", "`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
	}
)

const (
	minInputLength = 2
	maxInputLength = 80
	maxInputWords  = 8
	maxIndexDigits = 9

	// sampleSize bounds the example lists kept in a quality report
	sampleSize = 10
)

// Compile-time check to ensure DataValidatorImpl implements DataValidator
var _ interfaces.DataValidator = (*DataValidatorImpl)(nil)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateInput validates search strings
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if len(input) < minInputLength {
		return fmt.Errorf("input too short: minimum %d characters", minInputLength)
	}

	if len(input) > maxInputLength {
		return fmt.Errorf("input too long: maximum %d characters", maxInputLength)
	}

	// Word count validation to prevent DoS attacks with many short words
	if words := strings.Fields(input); len(words) > maxInputWords {
		return fmt.Errorf("search query too complex: maximum %d words allowed", maxInputWords)
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters. Only letters, numbers, spaces and the punctuation - . + ' %% / , are allowed")
	}

	if v.hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateIndex parses a medication index. Bounds against the dataset are
// checked by the data store.
func (v *DataValidatorImpl) ValidateIndex(input string) (int, error) {
	trimmedInput := strings.TrimSpace(input)
	if trimmedInput == "" {
		return -1, fmt.Errorf("index cannot be empty")
	}

	// Reject if original input contained whitespace (spaces, tabs, etc.)
	if len(input) != len(trimmedInput) {
		return -1, fmt.Errorf("index contains invalid characters. Only digits are allowed")
	}

	if len(trimmedInput) > maxIndexDigits {
		return -1, fmt.Errorf("index too long: maximum %d digits", maxIndexDigits)
	}

	for _, r := range trimmedInput {
		if r < '0' || r > '9' {
			return -1, fmt.Errorf("index contains invalid characters. Only digits are allowed")
		}
	}

	index, err := strconv.Atoi(trimmedInput)
	if err != nil {
		return -1, fmt.Errorf("invalid index: %w", err)
	}
	return index, nil
}

// ReportDataQuality counts the records the extractor or the source data left
// incomplete and checks the embedding store against the records.
func (v *DataValidatorImpl) ReportDataQuality(
	medications []entities.Medication,
	store *embeddings.Store,
) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		TotalRecords:       len(medications),
		DuplicateFullNames: []string{},
		EmbeddingRows:      store.Len(),
		EmbeddingDim:       store.Dim(),
		Aligned:            len(medications) == store.Len(),
	}

	seen := make(map[string]int, len(medications))
	for _, m := range medications {
		if m.Dosage == nil {
			report.MissingDosage++
		}
		if strings.HasPrefix(m.Form, extractor.Unspecified) {
			report.UnspecifiedForm++
		}
		if m.ActiveIngredient == extractor.Unspecified {
			report.UnspecifiedIngredient++
		}
		if m.ReimbursementRate == medicamentsparser.RateUndefined {
			report.UndefinedRate++
		}
		if m.PriceNoumea == nil {
			report.MissingPriceNoumea++
		}

		seen[m.FullName]++
		if seen[m.FullName] == 2 && len(report.DuplicateFullNames) < sampleSize {
			report.DuplicateFullNames = append(report.DuplicateFullNames, m.FullName)
		}
	}

	return report
}

// hasExcessiveRepetition checks for the same byte repeated more than 10 times
// consecutively
func (v *DataValidatorImpl) hasExcessiveRepetition(input string) bool {
	run := 1
	for i := 1; i < len(input); i++ {
		if input[i] == input[i-1] {
			run++
			if run > 10 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
