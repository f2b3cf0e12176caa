package gateway

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"clearhold/core/events"
	"clearhold/core/types"
	"clearhold/native/dispute"
	"clearhold/native/escrow"
	"clearhold/native/reputation"
	"clearhold/native/token"
)

func testAddr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

type stubEscrows struct {
	escrows map[uint64]*escrow.Escrow
}

func (s *stubEscrows) GetEscrow(id uint64) (*escrow.Escrow, bool) {
	esc, ok := s.escrows[id]
	return esc, ok
}

func (s *stubEscrows) GetMilestones(id uint64) ([]*escrow.Milestone, bool) {
	esc, ok := s.escrows[id]
	if !ok {
		return nil, false
	}
	return esc.Milestones, true
}

type stubDisputes struct {
	cases map[uint64]*dispute.Case
	stats map[[20]byte]dispute.Stats
}

func (s *stubDisputes) GetCase(escrowID uint64) (*dispute.Case, bool) {
	c, ok := s.cases[escrowID]
	return c, ok
}

func (s *stubDisputes) GetArbitratorStats(addr [20]byte) (dispute.Stats, bool) {
	stats, ok := s.stats[addr]
	return stats, ok
}

func (s *stubDisputes) IsArbitratorActive(addr [20]byte) bool {
	stats, ok := s.stats[addr]
	return ok && stats.Active
}

type stubReputations struct {
	records map[[20]byte]*reputation.Record
}

func (s *stubReputations) GetReputationData(addr [20]byte) (*reputation.Record, bool) {
	record, ok := s.records[addr]
	return record, ok
}

type auditEvent struct {
	evt *types.Event
}

func (e auditEvent) EventType() string { return e.evt.Type }

func (e auditEvent) Event() *types.Event { return e.evt }

type stubTokens struct {
	tokens map[[20]byte]*token.Info
}

func (s *stubTokens) GetTokenInfo(addr [20]byte) (*token.Info, bool) {
	info, ok := s.tokens[addr]
	return info, ok
}

func newTestServer(t *testing.T) (*httptest.Server, *events.Recorder) {
	t.Helper()
	buyer := testAddr(0x01)
	seller := testAddr(0x02)
	asset := testAddr(0x0F)
	arb := testAddr(0x03)

	escrows := &stubEscrows{escrows: map[uint64]*escrow.Escrow{
		1: {
			ID:          1,
			Buyer:       buyer,
			Seller:      seller,
			Asset:       asset,
			Amount:      big.NewInt(1_000),
			PlatformFee: big.NewInt(25),
			Status:      escrow.StatusFunded,
			CreatedAt:   1_700_000_000,
			FundedAt:    1_700_000_100,
			Deadline:    1_702_592_100,
			Milestones: []*escrow.Milestone{
				{Amount: big.NewInt(400), Description: "design", Completed: true, CompletedAt: 1_700_100_000},
				{Amount: big.NewInt(600), Description: "delivery"},
			},
		},
	}}
	disputes := &stubDisputes{
		cases: map[uint64]*dispute.Case{
			1: {EscrowID: 1, Initiator: buyer, Reason: "undelivered", FiledAt: 1_700_200_000, Outcome: dispute.OutcomePending},
		},
		stats: map[[20]byte]dispute.Stats{
			arb: {TotalCases: 4, SuccessfulCases: 2, SuccessRate: 0.5, Active: true},
		},
	}
	reputations := &stubReputations{records: map[[20]byte]*reputation.Record{
		seller: {
			Address:               seller,
			Contact:               "seller@example.com",
			IsVendor:              true,
			Score:                 510,
			TotalTransactions:     3,
			CompletedTransactions: 2,
			DisputeCount:          1,
			TotalVolume:           big.NewInt(5_000),
		},
	}}
	tokens := &stubTokens{tokens: map[[20]byte]*token.Info{
		asset: {Address: asset, ChainID: 1, Symbol: "USDC", Decimals: 6, Active: true},
	}}

	audit := events.NewRecorder()
	server := NewServer(escrows, disputes, reputations, tokens, audit)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, audit
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/healthz", nil))
}

func TestGetEscrow(t *testing.T) {
	ts, _ := newTestServer(t)
	var payload escrowJSON
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/v1/escrows/1", &payload))
	require.Equal(t, uint64(1), payload.ID)
	require.Equal(t, "0x0101010101010101010101010101010101010101", payload.Buyer)
	require.Equal(t, "1000", payload.Amount)
	require.Equal(t, "25", payload.PlatformFee)
	require.Equal(t, "funded", payload.Status)
	require.Len(t, payload.Milestones, 2)
	require.True(t, payload.Milestones[0].Completed)

	require.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/v1/escrows/99", nil))
	require.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/v1/escrows/0", nil))
	require.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/v1/escrows/abc", nil))
}

func TestGetMilestones(t *testing.T) {
	ts, _ := newTestServer(t)
	var payload []milestoneJSON
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/v1/escrows/1/milestones", &payload))
	require.Len(t, payload, 2)
	require.Equal(t, "400", payload[0].Amount)
	require.Equal(t, "delivery", payload[1].Description)

	require.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/v1/escrows/99/milestones", nil))
}

func TestGetDispute(t *testing.T) {
	ts, _ := newTestServer(t)
	var payload map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/v1/escrows/1/dispute", &payload))
	require.Equal(t, "undelivered", payload["reason"])
	require.Equal(t, "pending", payload["outcome"])
	require.NotContains(t, payload, "resolvedAt")

	require.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/v1/escrows/99/dispute", nil))
}

func TestGetToken(t *testing.T) {
	ts, _ := newTestServer(t)
	var payload map[string]any
	addr := "0x0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f"
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/v1/tokens/"+addr, &payload))
	require.Equal(t, "USDC", payload["symbol"])
	require.Equal(t, true, payload["active"])

	require.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/v1/tokens/0x0202020202020202020202020202020202020202", nil))
	require.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/v1/tokens/nothex", nil))
}

func TestGetReputation(t *testing.T) {
	ts, _ := newTestServer(t)
	var payload map[string]any
	addr := "0x0202020202020202020202020202020202020202"
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/v1/reputation/"+addr, &payload))
	require.Equal(t, float64(510), payload["score"])
	require.Equal(t, true, payload["isVendor"])
	require.Equal(t, "5000", payload["totalVolume"])

	require.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/v1/reputation/0x0909090909090909090909090909090909090909", nil))
}

func TestGetArbitrator(t *testing.T) {
	ts, _ := newTestServer(t)
	var payload map[string]any
	addr := "0x0303030303030303030303030303030303030303"
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/v1/arbitrators/"+addr, &payload))
	require.Equal(t, float64(4), payload["totalCases"])
	require.Equal(t, 0.5, payload["successRate"])

	require.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/v1/arbitrators/0x0909090909090909090909090909090909090909", nil))
}

func TestGetEvents(t *testing.T) {
	ts, audit := newTestServer(t)

	var empty []json.RawMessage
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/v1/events", &empty))
	require.Empty(t, empty)

	audit.Emit(auditEvent{evt: &types.Event{
		Type:       escrow.EventTypeEscrowCreated,
		Attributes: map[string]string{"id": "7"},
	}})

	var populated []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/v1/events", &populated))
	require.Len(t, populated, 1)
	require.Equal(t, escrow.EventTypeEscrowCreated, populated[0]["type"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/metrics", nil))
}
