// Package health provides health checking functionality for the alternatives API.
package health

import (
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/giygas/medicaments-alternatives/interfaces"
)

// DefaultSchedule is used when the configured reload schedule has no valid time.
const DefaultSchedule = "06:00;18:00"

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore interfaces.DataStore
	reloadAt  []time.Duration // offsets from midnight, ascending
}

// NewHealthChecker creates a health checker for the given reload schedule,
// a ";"-separated list of HH:MM times.
func NewHealthChecker(dataStore interfaces.DataStore, schedule string) interfaces.HealthChecker {
	reloadAt := parseSchedule(schedule)
	if len(reloadAt) == 0 {
		reloadAt = parseSchedule(DefaultSchedule)
	}
	return &HealthCheckerImpl{
		dataStore: dataStore,
		reloadAt:  reloadAt,
	}
}

func parseSchedule(schedule string) []time.Duration {
	var out []time.Duration
	for _, at := range strings.Split(schedule, ";") {
		t, err := time.Parse("15:04", strings.TrimSpace(at))
		if err != nil {
			continue
		}
		out = append(out, time.Duration(t.Hour())*time.Hour+time.Duration(t.Minute())*time.Minute)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HealthCheck returns the health status, the data behind it and the HTTP
// status for the /health endpoint
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	medications := h.dataStore.GetMedications()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()
	loadErr := h.dataStore.GetLoadError()

	dataAge := time.Since(lastUpdate)

	switch {
	case len(medications) == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case loadErr != nil:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 24*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && dataAge > 6*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"last_update":    lastUpdate.Format(time.RFC3339),
		"data_age_hours": math.Round(dataAge.Hours()*10) / 10,
		"medications":    len(medications),
		"is_updating":    isUpdating,
		"fingerprint":    h.dataStore.GetFingerprint(),
		"next_update":    h.CalculateNextUpdate().Format(time.RFC3339),
	}
	if loadErr != nil {
		data["last_load_error"] = loadErr.Error()
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled reload time
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	return h.nextUpdateAfter(time.Now())
}

func (h *HealthCheckerImpl) nextUpdateAfter(now time.Time) time.Time {
	at := func(day int, offset time.Duration) time.Time {
		return time.Date(now.Year(), now.Month(), now.Day()+day, 0, int(offset.Minutes()), 0, 0, now.Location())
	}

	for _, offset := range h.reloadAt {
		if next := at(0, offset); now.Before(next) {
			return next
		}
	}

	// Past the last reload of the day: first reload tomorrow
	return at(1, h.reloadAt[0])
}
