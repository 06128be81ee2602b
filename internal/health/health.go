// Package health exposes a daemon-mode health endpoint.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// RPCProbe is the connectivity check against the node provider
type RPCProbe interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Checker performs health checks on application dependencies
type Checker struct {
	rpc            RPCProbe
	interval       time.Duration
	lastRunTime    time.Time
	lastRunSuccess bool
	mu             sync.RWMutex
}

// NewChecker creates a health checker. interval is the expected gap between
// report runs; zero disables the schedule check.
func NewChecker(rpc RPCProbe, interval time.Duration) *Checker {
	return &Checker{
		rpc:      rpc,
		interval: interval,
	}
}

// UpdateLastRun records the timestamp and status of the last report run
func (c *Checker) UpdateLastRun(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRunTime = time.Now()
	c.lastRunSuccess = success
}

// CheckStatus represents the health status of a component
type CheckStatus string

const (
	StatusOK       CheckStatus = "ok"
	StatusDegraded CheckStatus = "degraded"
	StatusError    CheckStatus = "error"
)

// Response is the JSON health payload
type Response struct {
	Status    CheckStatus            `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckDetail `json:"checks"`
	Uptime    string                 `json:"uptime,omitempty"`
}

// CheckDetail contains details about a specific health check
type CheckDetail struct {
	Status  CheckStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

var startTime = time.Now()

// Check performs all health checks and returns the aggregated status
func (c *Checker) Check(ctx context.Context) Response {
	checks := make(map[string]CheckDetail)
	overallStatus := StatusOK

	rpcCheck := c.checkRPC(ctx)
	checks["rpc"] = rpcCheck
	if rpcCheck.Status != StatusOK {
		overallStatus = StatusError
	}

	if c.interval > 0 {
		reportCheck := c.checkReportRuns()
		checks["report"] = reportCheck
		if reportCheck.Status != StatusOK && overallStatus == StatusOK {
			overallStatus = StatusDegraded
		}
	}

	return Response{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    checks,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}
}

// checkRPC verifies the node provider answers a chain ID query
func (c *Checker) checkRPC(ctx context.Context) CheckDetail {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := c.rpc.ChainID(ctx); err != nil {
		slog.Error("Health check: RPC endpoint failed", "error", err)
		return CheckDetail{
			Status:  StatusError,
			Message: "RPC endpoint not responding: " + err.Error(),
		}
	}
	return CheckDetail{
		Status:  StatusOK,
		Message: "RPC endpoint healthy",
	}
}

// checkReportRuns verifies reports are being produced on schedule
func (c *Checker) checkReportRuns() CheckDetail {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.lastRunTime.IsZero() {
		return CheckDetail{
			Status:  StatusOK,
			Message: "no report generated yet (startup)",
		}
	}

	if !c.lastRunSuccess {
		return CheckDetail{
			Status:  StatusDegraded,
			Message: "last report run failed",
		}
	}

	// Allow a 2x interval grace period before flagging a stalled daemon
	timeSinceLastRun := time.Since(c.lastRunTime)
	if timeSinceLastRun > c.interval*2 {
		return CheckDetail{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("no report in %s (expected every %s)", timeSinceLastRun.Round(time.Second), c.interval),
		}
	}

	return CheckDetail{
		Status:  StatusOK,
		Message: fmt.Sprintf("last report %s ago", timeSinceLastRun.Round(time.Second)),
	}
}

// Router returns the HTTP routes for the health server
func (c *Checker) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status := c.Check(req.Context())

		statusCode := http.StatusOK
		if status.Status == StatusError {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			slog.Error("Failed to encode health response", "error", err)
		}
	})
	return r
}
