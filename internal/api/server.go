// Package api serves read-only views of the ledger over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tokenLedger/internal/ledger"
	"tokenLedger/internal/metrics"
	"tokenLedger/internal/storage"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

type Server struct {
	ledger *ledger.Ledger
	events storage.EventLog
	logger *zap.Logger
	router *chi.Mux
}

// New builds the router. events may be nil, in which case the events route
// answers 404.
func New(l *ledger.Ledger, events storage.EventLog, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{ledger: l, events: events, logger: logger, router: chi.NewRouter()}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer wraps the router with the timeouts used by `ledger serve`.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.observe)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/v1/pools", func(r chi.Router) {
		r.Get("/", s.handlePools)
		r.Route("/{mint}", func(r chi.Router) {
			r.Get("/", s.handlePool)
			r.Get("/positions", s.handlePositions)
			r.Get("/positions/{owner}", s.handlePosition)
			r.Get("/proposals", s.handleProposals)
			r.Get("/proposals/{id}", s.handleProposal)
			r.Get("/lp", s.handleVault)
			r.Get("/lp/deployments", s.handleDeployments)
			r.Get("/burns", s.handleBurns)
			r.Get("/airdrops", s.handleAirdrops)
			r.Get("/audit", s.handleAudit)
			r.Get("/events", s.handleEvents)
		})
	})
}

// observe records request metrics under the route pattern and logs at debug.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ObserveHTTP(r.Method, path, status)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	class := ledger.Classify(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrPoolNotFound),
		errors.Is(err, ledger.ErrVaultNotFound),
		errors.Is(err, ledger.ErrProposalNotFound):
		status = http.StatusNotFound
	case class == ledger.ClassValidation:
		status = http.StatusBadRequest
	case class == ledger.ClassState, class == ledger.ClassGovernance:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("api request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Class: string(class)})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Class: string(ledger.ClassValidation)})
}

func addressParam(w http.ResponseWriter, r *http.Request, name string) (common.Address, bool) {
	raw := chi.URLParam(r, name)
	if !common.IsHexAddress(raw) {
		badRequest(w, "invalid "+name+" address: "+raw)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	pools, err := s.ledger.Pools(r.Context())
	if err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "pools": len(pools)})
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.ledger.Pools(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]PoolView, 0, len(pools))
	for _, cfg := range pools {
		out = append(out, NewPoolView(cfg))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	mint, ok := addressParam(w, r, "mint")
	if !ok {
		return
	}
	cfg, err := s.ledger.Pool(r.Context(), mint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewPoolView(cfg))
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	mint, ok := addressParam(w, r, "mint")
	if !ok {
		return
	}
	cfg, err := s.ledger.Pool(r.Context(), mint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	positions, err := s.ledger.Positions(r.Context(), mint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		out = append(out, NewPositionView(p, cfg.Decimals))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	mint, ok := addressParam(w, r, "mint")
	if !ok {
		return
	}
	owner, ok := addressParam(w, r, "owner")
	if !ok {
		return
	}
	cfg, err := s.ledger.Pool(r.Context(), mint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	pos, err := s.ledger.Position(r.Context(), mint, owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewPositionView(pos, cfg.Decimals))
}

func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	mint, ok := addressParam(w, r, "mint")
	if !ok {
		return
	}
	proposals, err := s.ledger.Proposals(r.Context(), mint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]ProposalView, 0, len(proposals))
	for _, p := range proposals {
		out = append(out, NewProposalView(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProposal(w http.ResponseWriter, r *http.Request) {
	mint, ok := addressParam(w, r, "mint")
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid proposal id: "+err.Error())
		return
	}
	p, err := s.ledger.Proposal(r.Context(), mint, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewProposalView(p))
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	mint, ok := addressParam(w, r, "mint")
	if !ok {
		return
	}
	v, err := s.ledger.Vault(r.Context(), mint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeployments(w http.ResponseWriter, r *http.Request) {
	mint, ok := addressParam(w, r, "mint")
	if !ok {
		return
	}
	deployments, err := s.ledger.Deployments(r.Context(), mint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deployments)
}

func (s *Server) handleBurns(w http.ResponseWriter, r *http.Request) {
	mint, ok := addressParam(w, r, "mint")
	if !ok {
		return
	}
	rec, err := s.ledger.BurnRecord(r.Context(), mint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAirdrops(w http.ResponseWriter, r *http.Request) {
	mint, ok := addressParam(w, r, "mint")
	if !ok {
		return
	}
	c, err := s.ledger.Airdrop(r.Context(), mint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	mint, ok := addressParam(w, r, "mint")
	if !ok {
		return
	}
	report, err := s.ledger.Audit(r.Context(), mint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	mint, ok := addressParam(w, r, "mint")
	if !ok {
		return
	}
	if s.events == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no event log configured"})
		return
	}
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		if n > maxEventLimit {
			n = maxEventLimit
		}
		limit = n
	}
	events, err := s.events.Events(r.Context(), mint, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
