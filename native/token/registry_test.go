package token

import (
	"errors"
	"testing"

	"clearhold/core/events"
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func testAddr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func newTestRegistry() (*Registry, *capturingEmitter, [20]byte) {
	admin := testAddr(0xAA)
	emitter := &capturingEmitter{}
	r := NewRegistry(admin)
	r.SetEmitter(emitter)
	r.SetNowFunc(func() int64 { return 1_700_000_000 })
	return r, emitter, admin
}

func TestAddToken(t *testing.T) {
	r, emitter, admin := newTestRegistry()
	asset := testAddr(0x01)
	info := &Info{Address: asset, ChainID: 1, Symbol: " usdc ", Decimals: 6, Active: true}

	if err := r.AddToken(testAddr(0x02), info); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := r.AddToken(admin, info); err != nil {
		t.Fatalf("add token: %v", err)
	}
	stored, ok := r.GetTokenInfo(asset)
	if !ok {
		t.Fatalf("token missing after add")
	}
	if stored.Symbol != "USDC" {
		t.Fatalf("symbol must be trimmed and uppercased, got %q", stored.Symbol)
	}
	if stored.AddedAt != 1_700_000_000 {
		t.Fatalf("AddedAt %d", stored.AddedAt)
	}
	if err := r.AddToken(admin, info); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected ErrTokenExists, got %v", err)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != EventTypeTokenAdded {
		t.Fatalf("expected one token.added event, got %v", emitter.events)
	}
}

func TestAddTokenValidation(t *testing.T) {
	r, _, admin := newTestRegistry()
	cases := []struct {
		name string
		info *Info
	}{
		{"nil", nil},
		{"zero address", &Info{ChainID: 1, Symbol: "ABC"}},
		{"empty symbol", &Info{Address: testAddr(0x01), ChainID: 1, Symbol: "  "}},
		{"zero chain", &Info{Address: testAddr(0x01), Symbol: "ABC"}},
	}
	for _, tc := range cases {
		if err := r.AddToken(admin, tc.info); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", tc.name, err)
		}
	}
}

func TestUpdateTokenStatus(t *testing.T) {
	r, _, admin := newTestRegistry()
	asset := testAddr(0x01)
	if err := r.AddToken(admin, &Info{Address: asset, ChainID: 1, Symbol: "DAI", Decimals: 18, Active: true}); err != nil {
		t.Fatalf("add token: %v", err)
	}
	if err := r.UpdateTokenStatus(testAddr(0x02), asset, false); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := r.UpdateTokenStatus(admin, testAddr(0x03), false); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
	if err := r.UpdateTokenStatus(admin, asset, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if r.IsActive(asset) {
		t.Fatalf("deactivated token must not be active")
	}
	stored, _ := r.GetTokenInfo(asset)
	if stored.Active {
		t.Fatalf("stored record must reflect deactivation")
	}
	if err := r.UpdateTokenStatus(admin, asset, true); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if !r.IsActive(asset) {
		t.Fatalf("reactivated token must be active")
	}
}

func TestNativeAssetAlwaysActive(t *testing.T) {
	r, _, _ := newTestRegistry()
	if !r.IsActive(NativeAsset) {
		t.Fatalf("native asset must be implicitly active")
	}
	if _, ok := r.GetTokenInfo(NativeAsset); ok {
		t.Fatalf("native asset must never appear in the registry")
	}
	if r.IsActive(testAddr(0x01)) {
		t.Fatalf("unknown asset must be inactive")
	}
}

func TestGetTokenInfoCloneIsolation(t *testing.T) {
	r, _, admin := newTestRegistry()
	asset := testAddr(0x01)
	if err := r.AddToken(admin, &Info{Address: asset, ChainID: 1, Symbol: "WBTC", Decimals: 8, Active: true}); err != nil {
		t.Fatalf("add token: %v", err)
	}
	stored, _ := r.GetTokenInfo(asset)
	stored.Active = false
	stored.Symbol = "HACKED"

	fresh, _ := r.GetTokenInfo(asset)
	if !fresh.Active || fresh.Symbol != "WBTC" {
		t.Fatalf("stored record leaked through the returned clone")
	}
}
