package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthHandler answers liveness probes. With MaxCycleAge set it also
// reports 503 once the last completed cycle is older than that.
type HealthHandler struct {
	LastCycle   func() time.Time
	MaxCycleAge time.Duration
	Now         func() time.Time
}

type healthResponse struct {
	Status    string     `json:"status"`
	LastCycle *time.Time `json:"last_cycle,omitempty"`
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	code := http.StatusOK
	if h.LastCycle != nil {
		if last := h.LastCycle(); !last.IsZero() {
			resp.LastCycle = &last
			now := time.Now
			if h.Now != nil {
				now = h.Now
			}
			if h.MaxCycleAge > 0 && now().Sub(last) > h.MaxCycleAge {
				resp.Status = "stale"
				code = http.StatusServiceUnavailable
			}
		}
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response to JSON", http.StatusInternalServerError)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
