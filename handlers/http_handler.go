// Package handlers provides the HTTP handlers of the alternatives API: search,
// medication details, alternatives, dataset statistics and health.
package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/medicaments-alternatives/alternatives"
	"github.com/giygas/medicaments-alternatives/interfaces"
	"github.com/giygas/medicaments-alternatives/logging"
	"github.com/giygas/medicaments-alternatives/medicamentsparser"
	"github.com/giygas/medicaments-alternatives/medicamentsparser/entities"
	"github.com/giygas/medicaments-alternatives/metrics"
	"github.com/go-chi/chi/v5"
)

// PageSize is the number of medications per search page.
const PageSize = 10

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler interface
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.DataValidator
	healthChecker interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(dataStore interfaces.DataStore, validator interfaces.DataValidator, healthChecker interfaces.HealthChecker) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		validator:     validator,
		healthChecker: healthChecker,
	}
}

// SearchResponse is one page of search results
type SearchResponse struct {
	Data       []entities.Medication `json:"data"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
	TotalItems int                   `json:"totalItems"`
	MaxPage    int                   `json:"maxPage"`
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status string         `json:"status"`
	Uptime string         `json:"uptime"`
	Data   map[string]any `json:"data"`
	System map[string]any `json:"system"`
}

// searchFilter holds the parsed query parameters of a search
type searchFilter struct {
	query    string
	rates    map[string]bool
	minPrice *float64
	maxPrice *float64
}

func (f searchFilter) matches(m entities.Medication) bool {
	if f.query != "" && !strings.Contains(strings.ToLower(m.FullName), f.query) {
		return false
	}
	if len(f.rates) > 0 && !f.rates[m.ReimbursementRate] {
		return false
	}
	// Records without a price always pass the price filter
	if m.PriceNoumea != nil {
		if f.minPrice != nil && *m.PriceNoumea < *f.minPrice {
			return false
		}
		if f.maxPrice != nil && *m.PriceNoumea > *f.maxPrice {
			return false
		}
	}
	return true
}

var validRates = map[string]bool{
	"0%":                            true,
	"65%":                           true,
	"100%":                          true,
	medicamentsparser.RateUndefined: true,
}

// parseSearchFilter reads q, rate (repeatable or comma separated), min_price
// and max_price
func (h *HTTPHandlerImpl) parseSearchFilter(r *http.Request) (searchFilter, error) {
	params := r.URL.Query()
	var f searchFilter

	if q := strings.TrimSpace(params.Get("q")); q != "" {
		if err := h.validator.ValidateInput(q); err != nil {
			return f, err
		}
		f.query = strings.ToLower(q)
	}

	for _, value := range params["rate"] {
		for _, rate := range strings.Split(value, ",") {
			rate = strings.TrimSpace(rate)
			if rate == "" {
				continue
			}
			if rate != medicamentsparser.RateUndefined && !strings.HasSuffix(rate, "%") {
				rate += "%"
			}
			if !validRates[rate] {
				return f, fmt.Errorf("invalid rate %q: expected 0%%, 65%%, 100%% or %s", rate, medicamentsparser.RateUndefined)
			}
			if f.rates == nil {
				f.rates = make(map[string]bool)
			}
			f.rates[rate] = true
		}
	}

	var err error
	if f.minPrice, err = parsePriceParam(params.Get("min_price"), "min_price"); err != nil {
		return f, err
	}
	if f.maxPrice, err = parsePriceParam(params.Get("max_price"), "max_price"); err != nil {
		return f, err
	}
	if f.minPrice != nil && f.maxPrice != nil && *f.minPrice > *f.maxPrice {
		return f, fmt.Errorf("min_price cannot be greater than max_price")
	}

	return f, nil
}

func parsePriceParam(value, name string) (*float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	price, err := strconv.ParseFloat(value, 64)
	if err != nil || price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("%s must be a non-negative number", name)
	}
	return &price, nil
}

// SearchMedications returns a page of medications matching the search filters
func (h *HTTPHandlerImpl) SearchMedications(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseSearchFilter(r)
	if err != nil {
		logging.Warn("Unusual user input", "query", r.URL.RawQuery, "error", err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	page := 1
	if pageParam := r.URL.Query().Get("page"); pageParam != "" {
		page, err = strconv.Atoi(pageParam)
		if err != nil || page < 1 {
			logging.Warn("Unusual user input", "page", pageParam)
			RespondWithError(w, http.StatusBadRequest, "Invalid page number")
			return
		}
	}

	dataset := h.dataStore.GetDataset()
	results := make([]entities.Medication, 0)
	for _, m := range dataset.Medications() {
		if filter.matches(m) {
			results = append(results, m)
		}
	}

	totalItems := len(results)
	maxPage := (totalItems + PageSize - 1) / PageSize
	start := (page - 1) * PageSize
	if page > 1 && start >= totalItems {
		RespondWithError(w, http.StatusNotFound, "Page not found")
		return
	}
	end := min(start+PageSize, totalItems)

	RespondWithETag(w, r, dataset.Fingerprint(), SearchResponse{
		Data:       results[start:end],
		Page:       page,
		PageSize:   PageSize,
		TotalItems: totalItems,
		MaxPage:    maxPage,
	})
}

// GetMedication returns the medication at the index path parameter
func (h *HTTPHandlerImpl) GetMedication(w http.ResponseWriter, r *http.Request) {
	index, err := h.validator.ValidateIndex(chi.URLParam(r, "index"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	dataset := h.dataStore.GetDataset()
	medication, err := dataset.Medication(index)
	if err != nil {
		h.respondWithLookupError(w, index, err)
		return
	}

	RespondWithETag(w, r, dataset.Fingerprint(), medication)
}

// GetAlternatives returns the validated alternatives of the medication at the
// index path parameter, most similar first. An empty list is a valid result.
func (h *HTTPHandlerImpl) GetAlternatives(w http.ResponseWriter, r *http.Request) {
	index, err := h.validator.ValidateIndex(chi.URLParam(r, "index"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	dataset := h.dataStore.GetDataset()
	start := time.Now()
	found, err := dataset.Alternatives(index)
	metrics.ObserveAlternatives(alternativesOutcome(found, err), time.Since(start))
	if err != nil {
		h.respondWithLookupError(w, index, err)
		return
	}

	if found == nil {
		found = []alternatives.Alternative{}
	}
	RespondWithETag(w, r, dataset.Fingerprint(), found)
}

func alternativesOutcome(found []alternatives.Alternative, err error) string {
	switch {
	case errors.Is(err, alternatives.ErrIndexOutOfRange):
		return "out_of_range"
	case errors.Is(err, alternatives.ErrDatasetEmbeddingMismatch):
		return "mismatch"
	case err != nil:
		return "error"
	case len(found) == 0:
		return "empty"
	default:
		return "found"
	}
}

func (h *HTTPHandlerImpl) respondWithLookupError(w http.ResponseWriter, index int, err error) {
	switch {
	case errors.Is(err, alternatives.ErrIndexOutOfRange):
		RespondWithError(w, http.StatusNotFound, fmt.Sprintf("Medication %d not found", index))
	case errors.Is(err, alternatives.ErrDatasetEmbeddingMismatch):
		RespondWithError(w, http.StatusServiceUnavailable, "Alternatives are unavailable: the dataset and its embeddings are not aligned")
	default:
		logging.Error("Medication lookup failed", "index", index, "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// GetStats returns the dataset statistics
func (h *HTTPHandlerImpl) GetStats(w http.ResponseWriter, r *http.Request) {
	dataset := h.dataStore.GetDataset()
	RespondWithETag(w, r, dataset.Fingerprint(), dataset.Stats())
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, httpStatus := h.healthChecker.HealthCheck()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Duration(0)
	if startTime := h.dataStore.GetServerStartTime(); !startTime.IsZero() {
		uptime = time.Since(startTime)
	}

	response := HealthResponse{
		Status: status,
		Uptime: formatUptimeHuman(uptime),
		Data:   data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	}

	RespondWithJSON(w, httpStatus, response)
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}
