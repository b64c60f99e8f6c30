package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker reports liveness over HTTP. Components push state into
// it; the handler turns that into a status code.
type HealthChecker struct {
	mu           sync.RWMutex
	lastCycle    time.Time
	lastPrice    float64
	isConnected  bool
	tradingPaused bool
	errors       []string
}

type HealthStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	LastCycle     time.Time `json:"last_cycle"`
	LastPrice     float64   `json:"last_price"`
	IsConnected   bool      `json:"is_connected"`
	TradingPaused bool      `json:"trading_paused"`
	Uptime        string    `json:"uptime"`
	Errors        []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// SetConnected marks exchange connectivity.
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isConnected = connected
}

// CycleCompleted marks a finished analysis cycle.
func (h *HealthChecker) CycleCompleted(lastPrice float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = time.Now()
	h.lastPrice = lastPrice
}

// SetPaused mirrors the risk manager's pause flag.
func (h *HealthChecker) SetPaused(paused bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tradingPaused = paused
}

// RecordError appends an error, keeping only the most recent few.
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 10 {
		h.errors = h.errors[len(h.errors)-10:]
	}
}

// ClearErrors resets the error list after recovery.
func (h *HealthChecker) ClearErrors() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = h.errors[:0]
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.isConnected || (!h.lastCycle.IsZero() && time.Since(h.lastCycle) > time.Hour) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	json.NewEncoder(w).Encode(HealthStatus{
		Status:        status,
		Timestamp:     time.Now(),
		LastCycle:     h.lastCycle,
		LastPrice:     h.lastPrice,
		IsConnected:   h.isConnected,
		TradingPaused: h.tradingPaused,
		Uptime:        time.Since(startTime).String(),
		Errors:        h.errors,
	})
}
