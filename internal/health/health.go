// Package health serves the liveness and readiness probes for the parlo
// service.
//
// Liveness only proves the process answers HTTP. Readiness walks the
// service's collaborators — the word catalog and the transcription chain —
// and reports each one individually, so an operator can tell a missing
// catalog file apart from a fully tripped provider chain without reading
// logs.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe. A collaborator that cannot
// answer within it counts as not ready.
const probeTimeout = 5 * time.Second

// Check probes one collaborator of the service.
type Check struct {
	// Component names the collaborator in the readiness report, e.g.
	// "catalog", "transcriber", "database".
	Component string

	// Probe returns nil when the collaborator can serve requests. It must
	// respect context cancellation.
	Probe func(ctx context.Context) error

	// Detail, when non-nil, supplies a short operator-facing note that is
	// reported alongside the probe outcome, e.g. the provider chain in
	// failover order.
	Detail func() string
}

// componentStatus is one entry of the readiness report.
type componentStatus struct {
	Component string `json:"component"`
	Ready     bool   `json:"ready"`
	Error     string `json:"error,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type livenessBody struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type readinessBody struct {
	Status string            `json:"status"`
	Checks []componentStatus `json:"checks,omitempty"`
}

// Handler serves the /healthz and /readyz routes. It is safe for concurrent
// use; the check list is fixed at construction.
type Handler struct {
	service string
	checks  []Check
}

// New creates a [Handler] for the named service. Checks run sequentially in
// the order given on every readiness request.
func New(service string, checks ...Check) *Handler {
	c := make([]Check, len(checks))
	copy(c, checks)
	return &Handler{service: service, checks: c}
}

// Liveness always answers 200: a process that reached this handler is
// alive. The body names the service so probes against the wrong port fail
// loudly.
func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, livenessBody{Status: "ok", Service: h.service})
}

// Readiness probes every registered component and answers 200 only when
// all of them are ready, 503 with status "degraded" otherwise. Each probe
// gets its own [probeTimeout] deadline derived from the request context.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	statuses := make([]componentStatus, 0, len(h.checks))
	ready := true

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := c.Probe(ctx)
		cancel()

		cs := componentStatus{Component: c.Component, Ready: err == nil}
		if err != nil {
			cs.Error = err.Error()
			ready = false
		}
		if c.Detail != nil {
			cs.Detail = c.Detail()
		}
		statuses = append(statuses, cs)
	}

	body := readinessBody{Status: "ready", Checks: statuses}
	code := http.StatusOK
	if !ready {
		body.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
