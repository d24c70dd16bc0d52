// Package transport implements the Evaluation API (§6): the HTTP surface
// in front of the Rule Evaluator, plus the admin introspection endpoints
// SPEC_FULL.md adds so the startup loader and hot-reload watcher are
// externally observable. Authentication of the ingress is out of scope
// per spec.md §1 — the router assumes a trusted caller.
package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cardguard/fraudengine/internal/evaluator"
	"github.com/cardguard/fraudengine/internal/fieldreg"
	"github.com/cardguard/fraudengine/internal/loadshed"
	"github.com/cardguard/fraudengine/internal/metrics"
	"github.com/cardguard/fraudengine/internal/outbox"
	"github.com/cardguard/fraudengine/internal/registry"
	"github.com/cardguard/fraudengine/internal/txcontext"
)

// Server wires the evaluation and admin HTTP routes to the core
// components. One Server instance is constructed at startup and handed to
// http.Server as its handler (via Router).
type Server struct {
	fieldRegistry   *fieldreg.Registry
	rulesetRegistry *registry.Registry
	eval            *evaluator.Evaluator
	shedder         *loadshed.Shedder
	queue           *outbox.Queue
	metrics         *metrics.Metrics

	defaultRulesetKey string
}

// New constructs a Server. fieldRegistry and eval are fixed for the
// Server's lifetime; nothing reloads the field registry while serving. The
// ruleset registry's own atomic pointers absorb per-ruleset hot swaps
// without touching the Server at all.
func New(
	fieldRegistry *fieldreg.Registry,
	rulesetRegistry *registry.Registry,
	eval *evaluator.Evaluator,
	shedder *loadshed.Shedder,
	queue *outbox.Queue,
	m *metrics.Metrics,
	defaultRulesetKey string,
) *Server {
	return &Server{
		fieldRegistry:     fieldRegistry,
		rulesetRegistry:   rulesetRegistry,
		eval:              eval,
		shedder:           shedder,
		queue:             queue,
		metrics:           m,
		defaultRulesetKey: defaultRulesetKey,
	}
}

// Router builds the gorilla/mux router exposing every route this server
// answers.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/evaluate/auth", s.handleAuth).Methods(http.MethodPost)
	r.HandleFunc("/v1/evaluate/replay", s.handleReplay).Methods(http.MethodPost)
	r.HandleFunc("/v1/registry/status", s.handleRegistryStatus).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func (s *Server) rulesetKeyFor(req evaluateRequest) string {
	if req.RulesetKey != "" {
		return req.RulesetKey
	}
	return s.defaultRulesetKey
}

// handleAuth is POST /v1/evaluate/auth (§6): the real-time authorization
// path. Always HTTP 200 except for malformed input — fail-open outcomes
// ride in-band via engine_mode/engine_error_code per §7.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	if !s.shedder.TryAcquire() {
		w.Header().Set("X-Load-Shed", "true")
		writeJSON(w, http.StatusOK, toSlimResponse(evaluator.ShedDecision(peekTransactionID(r))))
		return
	}
	defer s.shedder.Release()

	tx, req, err := s.decode(r)
	if err != nil {
		writeInvalidRequest(w, err)
		return
	}

	rs := s.rulesetRegistry.GetWithFallback(req.Country, s.rulesetKeyFor(req))
	occurredAt := time.Now()
	decision := s.eval.Evaluate(r.Context(), tx, rs, evaluator.Options{})
	decision.DecisionID = uuid.NewString()

	s.recordMetrics(decision)
	s.enqueue(decision, occurredAt)

	writeJSON(w, http.StatusOK, toSlimResponse(decision))
}

// handleReplay is POST /v1/evaluate/replay: the REPLAY mode evaluator path
// (§4.4), exposed as its own route per SPEC_FULL.md's supplemented
// admin/replay contract point. No side effects: no velocity mutation, no
// outbox enqueue.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	tx, req, err := s.decode(r)
	if err != nil {
		writeInvalidRequest(w, err)
		return
	}

	rs := s.rulesetRegistry.GetWithFallback(req.Country, s.rulesetKeyFor(req))
	decision := s.eval.Evaluate(r.Context(), tx, rs, evaluator.Options{Replay: true})
	decision.DecisionID = uuid.NewString()

	writeJSON(w, http.StatusOK, toReplayResponse(decision))
}

func (s *Server) decode(r *http.Request) (*txcontext.Context, evaluateRequest, error) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, req, errors.Join(ErrInvalidRequest, err)
	}
	tx, err := buildContext(s.fieldRegistry, req)
	if err != nil {
		return nil, req, err
	}
	return tx, req, nil
}

func (s *Server) recordMetrics(d evaluator.Decision) {
	s.metrics.DecisionsTotal.WithLabelValues(d.Decision, string(d.EngineMode)).Inc()
	s.metrics.DecisionLatencyMs.Observe(d.ProcessingTimeMs)
}

// enqueue hands the decision off to the async durability queue. Never
// called for shed or replay decisions, matching §4.6/§4.4's "no side
// effects" contracts.
func (s *Server) enqueue(d evaluator.Decision, occurredAt time.Time) {
	s.queue.Enqueue(outbox.FromDecision(d, occurredAt, time.Now()))
}

func (s *Server) handleRegistryStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ready":   s.rulesetRegistry.Ready(),
		"loaded":  s.rulesetRegistry.Status(),
		"version": s.fieldRegistry.Version(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !s.rulesetRegistry.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeInvalidRequest(w http.ResponseWriter, err error) {
	slog.Warn("transport: invalid request", "error", err)
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":             err.Error(),
		"engine_error_code": "INVALID_REQUEST",
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// peekTransactionID best-effort extracts transaction_id for the shed
// response without running full validation — a shed request never reaches
// the evaluator, so a missing/malformed body still gets a clean 200.
func peekTransactionID(r *http.Request) string {
	var req evaluateRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	return req.TransactionID
}
