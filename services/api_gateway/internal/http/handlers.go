package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fuelguard/fuelguard/pkg/storage"
	"github.com/fuelguard/fuelguard/services/api_gateway/internal/metrics"
)

// Store is the read side of the result tables.
type Store interface {
	GetLatestReading(ctx context.Context, siteID string) (storage.LatestReading, error)
	ListAlertEvents(ctx context.Context, siteID string, openOnly bool) ([]storage.AlertEvent, error)
	ListAlertStatus(ctx context.Context, siteID string) ([]storage.AlertStatus, error)
	ListDailyAggregates(ctx context.Context, siteID string, from, to *time.Time) ([]storage.DailyAggregate, error)
}

type API struct {
	storage Store
	offset  time.Duration
	timeout time.Duration
}

// New serves the stored results. offset is the site UTC offset used to read
// the from/to dates of the daily endpoint.
func New(storage Store, offset, timeout time.Duration) *API {
	return &API{storage: storage, offset: offset, timeout: timeout}
}

func (a *API) Register(mux *http.ServeMux) {
	mux.Handle("GET /sites/{site}/latest", a.instrument("latest", a.latest))
	mux.Handle("GET /sites/{site}/alerts", a.instrument("alerts", a.alerts))
	mux.Handle("GET /sites/{site}/status", a.instrument("status", a.status))
	mux.Handle("GET /sites/{site}/daily", a.instrument("daily", a.daily))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (a *API) instrument(endpoint string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		if a.timeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
			defer cancel()
			r = r.WithContext(ctx)
		}
		h(rec, r)

		status := strconv.Itoa(rec.status)
		metrics.APIRequests.WithLabelValues(endpoint, r.Method, status).Inc()
		metrics.APILatency.WithLabelValues(endpoint, r.Method, status).Observe(time.Since(start).Seconds())
	})
}

func (a *API) latest(w http.ResponseWriter, r *http.Request) {
	siteID := r.PathValue("site")

	reading, err := a.storage.GetLatestReading(r.Context(), siteID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, fmt.Sprintf("no readings for site %s", siteID), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to get latest reading: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"site_id":            reading.SiteID,
		"update_time":        reading.UpdateTime,
		"power_state":        reading.PowerState,
		"gateway":            reading.Gateway,
		"hw_code":            reading.HWCode,
		"levels":             []float64{reading.Level1, reading.Level2, reading.Level3},
		"total_level":        reading.TotalLevel,
		"cumulative_change":  reading.CumulativeChange,
		"significant_change": reading.SignificantChange,
		"time":               reading.Time,
	})
}

func (a *API) alerts(w http.ResponseWriter, r *http.Request) {
	siteID := r.PathValue("site")

	openOnly := false
	if v := r.URL.Query().Get("open"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid open", http.StatusBadRequest)
			return
		}
		openOnly = b
	}

	events, err := a.storage.ListAlertEvents(r.Context(), siteID, openOnly)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list alerts: %v", err), http.StatusInternalServerError)
		return
	}

	response := make([]map[string]interface{}, 0, len(events))
	for _, e := range events {
		item := map[string]interface{}{
			"id":          e.ID,
			"category":    e.Category,
			"severity":    e.Severity,
			"gateway":     e.Gateway,
			"hw_code":     e.HWCode,
			"open_time":   e.OpenTime,
			"start_level": e.StartLevel,
			"open":        e.CloseTime == nil,
		}
		if e.CloseTime != nil {
			item["close_time"] = *e.CloseTime
		}
		if e.EndLevel != nil {
			item["end_level"] = *e.EndLevel
		}
		response = append(response, item)
	}

	writeJSON(w, map[string]interface{}{"site_id": siteID, "alerts": response})
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	siteID := r.PathValue("site")

	statuses, err := a.storage.ListAlertStatus(r.Context(), siteID)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list alert status: %v", err), http.StatusInternalServerError)
		return
	}

	response := make([]map[string]interface{}, 0, len(statuses))
	for _, st := range statuses {
		response = append(response, map[string]interface{}{
			"category":    st.Category,
			"active":      st.Active,
			"severity":    st.Severity,
			"update_time": st.UpdateTime,
		})
	}

	writeJSON(w, map[string]interface{}{"site_id": siteID, "status": response})
}

func (a *API) daily(w http.ResponseWriter, r *http.Request) {
	siteID := r.PathValue("site")

	from, err := a.dayParam(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := a.dayParam(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		http.Error(w, "to must not be before from", http.StatusBadRequest)
		return
	}

	days, err := a.storage.ListDailyAggregates(r.Context(), siteID, from, to)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list daily aggregates: %v", err), http.StatusInternalServerError)
		return
	}

	response := make([]map[string]interface{}, 0, len(days))
	for _, d := range days {
		response = append(response, map[string]interface{}{
			"day":                d.Day.UTC().Add(a.offset).Format(time.DateOnly),
			"day_start_level":    d.DayStartLevel,
			"day_end_level":      d.DayEndLevel,
			"fuel_diff":          d.FuelDiff,
			"cumulative_change":  d.CumulativeChange,
			"theft_litres":       d.TheftLitres,
			"refill_litres":      d.RefillLitres,
			"consumption_litres": d.ConsumptionLitres,
			"generator_activity": d.GeneratorActivity,
		})
	}

	writeJSON(w, map[string]interface{}{"site_id": siteID, "days": response})
}

func (a *API) dayParam(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	day, err := storage.ParseDay(v, a.offset)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return &day, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
