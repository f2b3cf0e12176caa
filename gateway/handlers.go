package gateway

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"clearhold/core/types"
	"clearhold/native/escrow"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func parseID(r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func parseAddr(r *http.Request) ([20]byte, bool) {
	var out [20]byte
	raw := strings.TrimPrefix(chi.URLParam(r, "address"), "0x")
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != 20 {
		return out, false
	}
	copy(out[:], decoded)
	return out, true
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

type milestoneJSON struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	CompletedAt int64  `json:"completedAt,omitempty"`
}

type escrowJSON struct {
	ID          uint64          `json:"id"`
	Buyer       string          `json:"buyer"`
	Seller      string          `json:"seller"`
	Asset       string          `json:"asset"`
	Amount      string          `json:"amount"`
	PlatformFee string          `json:"platformFee"`
	Status      string          `json:"status"`
	CreatedAt   int64           `json:"createdAt"`
	FundedAt    int64           `json:"fundedAt,omitempty"`
	Deadline    int64           `json:"deadline,omitempty"`
	Description string          `json:"description,omitempty"`
	MetaHash    string          `json:"metaHash"`
	Milestones  []milestoneJSON `json:"milestones,omitempty"`
	Resolved    bool            `json:"resolved,omitempty"`
	Outcome     string          `json:"outcome,omitempty"`
}

func marshalMilestones(milestones []*escrow.Milestone) []milestoneJSON {
	out := make([]milestoneJSON, 0, len(milestones))
	for _, m := range milestones {
		if m == nil {
			continue
		}
		entry := milestoneJSON{Description: m.Description, Completed: m.Completed, CompletedAt: m.CompletedAt}
		if m.Amount != nil {
			entry.Amount = m.Amount.String()
		}
		out = append(out, entry)
	}
	return out
}

func marshalEscrow(esc *escrow.Escrow) escrowJSON {
	out := escrowJSON{
		ID:          esc.ID,
		Buyer:       hexAddr(esc.Buyer),
		Seller:      hexAddr(esc.Seller),
		Asset:       hexAddr(esc.Asset),
		Status:      esc.Status.String(),
		CreatedAt:   esc.CreatedAt,
		FundedAt:    esc.FundedAt,
		Deadline:    esc.Deadline,
		Description: esc.Description,
		MetaHash:    hex.EncodeToString(esc.MetaHash[:]),
		Milestones:  marshalMilestones(esc.Milestones),
		Resolved:    esc.Resolved,
		Outcome:     esc.ResolveOutcome,
	}
	if esc.Amount != nil {
		out.Amount = esc.Amount.String()
	}
	if esc.PlatformFee != nil {
		out.PlatformFee = esc.PlatformFee.String()
	}
	return out
}

func (s *Server) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid escrow id")
		return
	}
	esc, ok := s.escrows.GetEscrow(id)
	if !ok {
		writeError(w, http.StatusNotFound, "escrow not found")
		return
	}
	writeJSON(w, http.StatusOK, marshalEscrow(esc))
}

func (s *Server) handleGetMilestones(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid escrow id")
		return
	}
	milestones, ok := s.escrows.GetMilestones(id)
	if !ok {
		writeError(w, http.StatusNotFound, "escrow not found")
		return
	}
	writeJSON(w, http.StatusOK, marshalMilestones(milestones))
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid escrow id")
		return
	}
	c, ok := s.disputes.GetCase(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no dispute for escrow")
		return
	}
	payload := map[string]any{
		"escrowId":  c.EscrowID,
		"initiator": hexAddr(c.Initiator),
		"reason":    c.Reason,
		"filedAt":   c.FiledAt,
		"outcome":   c.Outcome.String(),
	}
	if c.ResolvedAt > 0 {
		payload["resolvedAt"] = c.ResolvedAt
		payload["arbitrator"] = hexAddr(c.Arbitrator)
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddr(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid token address")
		return
	}
	info, ok := s.tokens.GetTokenInfo(addr)
	if !ok {
		writeError(w, http.StatusNotFound, "token not registered")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":  hexAddr(info.Address),
		"chainId":  info.ChainID,
		"symbol":   info.Symbol,
		"decimals": info.Decimals,
		"active":   info.Active,
	})
}

func (s *Server) handleGetReputation(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddr(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	record, ok := s.reputations.GetReputationData(addr)
	if !ok {
		writeError(w, http.StatusNotFound, "user not registered")
		return
	}
	payload := map[string]any{
		"address":               hexAddr(record.Address),
		"contact":               record.Contact,
		"isVendor":              record.IsVendor,
		"score":                 record.Score,
		"totalTransactions":     record.TotalTransactions,
		"completedTransactions": record.CompletedTransactions,
		"disputeCount":          record.DisputeCount,
	}
	if record.TotalVolume != nil {
		payload["totalVolume"] = record.TotalVolume.String()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGetArbitrator(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddr(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	stats, ok := s.disputes.GetArbitratorStats(addr)
	if !ok {
		writeError(w, http.StatusNotFound, "arbitrator not registered")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":         hexAddr(addr),
		"totalCases":      stats.TotalCases,
		"successfulCases": stats.SuccessfulCases,
		"successRate":     stats.SuccessRate,
		"active":          stats.Active,
	})
}

type typedEvent interface {
	Event() *types.Event
}

func (s *Server) handleGetEvents(w http.ResponseWriter, _ *http.Request) {
	out := make([]*types.Event, 0)
	if s.audit != nil {
		for _, evt := range s.audit.Events() {
			if typed, ok := evt.(typedEvent); ok && typed.Event() != nil {
				out = append(out, typed.Event())
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}
