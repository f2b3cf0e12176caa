package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clearhold/core/events"
	"clearhold/native/dispute"
	"clearhold/native/escrow"
	"clearhold/native/reputation"
	"clearhold/native/token"
	"clearhold/observability"
)

// EscrowReader is the slice of the escrow manager served by the gateway.
type EscrowReader interface {
	GetEscrow(id uint64) (*escrow.Escrow, bool)
	GetMilestones(id uint64) ([]*escrow.Milestone, bool)
}

// DisputeReader exposes dispute cases and arbitrator records.
type DisputeReader interface {
	GetCase(escrowID uint64) (*dispute.Case, bool)
	GetArbitratorStats(addr [20]byte) (dispute.Stats, bool)
	IsArbitratorActive(addr [20]byte) bool
}

// ReputationReader exposes participant trust profiles.
type ReputationReader interface {
	GetReputationData(addr [20]byte) (*reputation.Record, bool)
}

// TokenReader exposes the settlement asset registry.
type TokenReader interface {
	GetTokenInfo(addr [20]byte) (*token.Info, bool)
}

// Server is the read-only HTTP query surface consumed by external callers
// (chat agent, dashboards). All mutations go through the engines directly.
type Server struct {
	escrows     EscrowReader
	disputes    DisputeReader
	reputations ReputationReader
	tokens      TokenReader
	audit       *events.Recorder
	metrics     *observability.SettlementMetrics
}

// NewServer wires the gateway against the settlement engines. The audit
// recorder is optional; when nil the events route returns an empty log.
func NewServer(escrows EscrowReader, disputes DisputeReader, reputations ReputationReader, tokens TokenReader, audit *events.Recorder) *Server {
	return &Server{
		escrows:     escrows,
		disputes:    disputes,
		reputations: reputations,
		tokens:      tokens,
		audit:       audit,
		metrics:     observability.Metrics(),
	}
}

// Handler builds the chi router serving the query surface.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/escrows/{id}", s.instrument("escrow", s.handleGetEscrow))
		v1.Get("/escrows/{id}/milestones", s.instrument("milestones", s.handleGetMilestones))
		v1.Get("/escrows/{id}/dispute", s.instrument("dispute", s.handleGetDispute))
		v1.Get("/tokens/{address}", s.instrument("token", s.handleGetToken))
		v1.Get("/reputation/{address}", s.instrument("reputation", s.handleGetReputation))
		v1.Get("/arbitrators/{address}", s.instrument("arbitrator", s.handleGetArbitrator))
		v1.Get("/events", s.instrument("events", s.handleGetEvents))
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.metrics.ObserveRequest(route, strconv.Itoa(rec.status), time.Since(start).Seconds())
	}
}
