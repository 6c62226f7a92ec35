package normalize

import (
	"errors"
	"testing"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/logging"
)

// Well-formed 32-byte base58 addresses for fixtures.
const (
	testMint   = "So11111111111111111111111111111111111111112"
	testTrader = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
)

func newTestNormalizer() *Normalizer {
	n := New(domain.SideBuy, logging.NewNop(), nil)
	n.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return n
}

func TestNormalize_Create(t *testing.T) {
	n := newTestNormalizer()
	raw := `{"txType":"create","mint":"` + testMint + `","name":"Test Token","symbol":"TST",` +
		`"uri":"https://meta.example/t.json","traderPublicKey":"` + testTrader + `",` +
		`"solAmount":2.0,"initialBuy":1000000,"marketCapSol":30.5,"pool":"pump"}`

	ev, err := n.Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	d, ok := ev.(*domain.Discovery)
	if !ok {
		t.Fatalf("event type = %T, want *domain.Discovery", ev)
	}
	if d.Mint != testMint || d.Name != "Test Token" || d.Symbol != "TST" {
		t.Errorf("identity fields wrong: %+v", d)
	}
	if d.Creator != testTrader {
		t.Errorf("creator = %q, want trader key", d.Creator)
	}
	if d.MarketCapSol == nil || *d.MarketCapSol != 30.5 {
		t.Errorf("marketCapSol = %v, want 30.5", d.MarketCapSol)
	}
	if d.InitialTrade == nil {
		t.Fatal("embedded initial trade missing")
	}
	if d.InitialTrade.Side != domain.SideBuy || d.InitialTrade.SolAmount != 2.0 {
		t.Errorf("initial trade = %+v", d.InitialTrade)
	}
	if d.InitialTrade.PriceSol == nil || *d.InitialTrade.PriceSol != 2.0/1000000 {
		t.Errorf("initial trade price = %v", d.InitialTrade.PriceSol)
	}
}

func TestNormalize_ExplicitTradeSides(t *testing.T) {
	n := newTestNormalizer()

	for _, side := range []string{"buy", "sell"} {
		raw := `{"txType":"` + side + `","mint":"` + testMint + `","traderPublicKey":"` + testTrader + `",` +
			`"solAmount":0.5,"tokenAmount":1000,"marketCapSol":42.0,"pool":"pump"}`

		ev, err := n.Normalize([]byte(raw))
		if err != nil {
			t.Fatalf("Normalize(%s): %v", side, err)
		}
		tr, ok := ev.(*domain.Trade)
		if !ok {
			t.Fatalf("event type = %T, want *domain.Trade", ev)
		}
		if string(tr.Side) != side || tr.SideInferred {
			t.Errorf("side = %s inferred=%v, want explicit %s", tr.Side, tr.SideInferred, side)
		}
		if tr.PriceSol == nil || *tr.PriceSol != 0.5/1000 {
			t.Errorf("price = %v, want 0.0005", tr.PriceSol)
		}
	}
}

func TestNormalize_MigrationWithNegativeDelta(t *testing.T) {
	n := newTestNormalizer()
	raw := `{"txType":"migrate","mint":"` + testMint + `","pool":"pump-amm",` +
		`"solAmount":-3.25,"tokenAmount":500000,"marketCapSol":120.0}`

	ev, err := n.Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	m, ok := ev.(*domain.Migration)
	if !ok {
		t.Fatalf("event type = %T, want *domain.Migration", ev)
	}
	if m.Pool != "pump-amm" {
		t.Errorf("pool = %q", m.Pool)
	}
	if m.SeedTrade == nil {
		t.Fatal("seed trade missing")
	}
	if m.SeedTrade.Side != domain.SideSell || !m.SeedTrade.SideInferred {
		t.Errorf("seed side = %s inferred=%v, want inferred sell", m.SeedTrade.Side, m.SeedTrade.SideInferred)
	}
	if m.SeedTrade.SolAmount != 3.25 {
		t.Errorf("seed volume = %v, want absolute 3.25", m.SeedTrade.SolAmount)
	}
}

func TestNormalize_FallbackSide(t *testing.T) {
	n := New(domain.SideSell, logging.NewNop(), nil)
	// No txType, no sol delta sign, no balance signal: fallback side,
	// but the trade is still produced.
	raw := `{"mint":"` + testMint + `","solAmount":0,"tokenAmount":0}`

	ev, err := n.Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	tr := ev.(*domain.Trade)
	if tr.Side != domain.SideSell || !tr.SideInferred {
		t.Errorf("fallback side = %s inferred=%v", tr.Side, tr.SideInferred)
	}
}

func TestNormalize_TokenBalanceSignal(t *testing.T) {
	n := newTestNormalizer()
	raw := `{"mint":"` + testMint + `","solAmount":0,"tokenAmount":100,"newTokenBalance":40}`

	ev, err := n.Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	tr := ev.(*domain.Trade)
	// Balance below the traded amount: position shrank, a sell.
	if tr.Side != domain.SideSell {
		t.Errorf("side = %s, want sell from balance signal", tr.Side)
	}
}

func TestNormalize_Discards(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", `{{{not json`},
		{"service message", `{"message":"Successfully subscribed to token creation events."}`},
		{"missing mint", `{"txType":"buy","solAmount":1}`},
		{"invalid mint", `{"txType":"buy","mint":"zz-not-base58-!!","solAmount":1}`},
		{"unknown txType", `{"txType":"burn","mint":"` + testMint + `"}`},
		{"no usable fields", `{"mint":"` + testMint + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize([]byte(tt.raw))
			if !errors.Is(err, ErrDiscard) {
				t.Errorf("err = %v, want ErrDiscard", err)
			}
		})
	}
}

func TestNormalize_PartialFieldFailure(t *testing.T) {
	n := newTestNormalizer()
	// marketCapSol is junk: the field degrades to nil, the trade still
	// applies with everything else intact.
	raw := `{"txType":"buy","mint":"` + testMint + `","solAmount":1.5,"tokenAmount":3000,` +
		`"marketCapSol":{"oops":true}}`

	ev, err := n.Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	tr := ev.(*domain.Trade)
	if tr.MarketCapSol != nil {
		t.Errorf("marketCapSol = %v, want nil (unchanged)", tr.MarketCapSol)
	}
	if tr.SolAmount != 1.5 {
		t.Errorf("solAmount = %v, want 1.5", tr.SolAmount)
	}
}

func TestNormalize_NumericStrings(t *testing.T) {
	n := newTestNormalizer()
	raw := `{"txType":"sell","mint":"` + testMint + `","solAmount":"0.75","tokenAmount":"1500"}`

	ev, err := n.Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	tr := ev.(*domain.Trade)
	if tr.SolAmount != 0.75 || tr.TokenAmount != 1500 {
		t.Errorf("string numerics not parsed: %+v", tr)
	}
}

func TestNormalize_BonkVolumeEstimate(t *testing.T) {
	n := newTestNormalizer()
	raw := `{"txType":"buy","mint":"` + testMint + `","pool":"bonk","solAmount":0,` +
		`"tokenAmount":2000000,"marketCapSol":50}`

	ev, err := n.Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	tr := ev.(*domain.Trade)
	want := 2000000.0 * 50 / 1_000_000_000
	if tr.SolAmount != want {
		t.Errorf("estimated volume = %v, want %v", tr.SolAmount, want)
	}
}

func TestNormalize_SecondTimestampsScaled(t *testing.T) {
	n := newTestNormalizer()
	raw := `{"txType":"buy","mint":"` + testMint + `","solAmount":1,"timestamp":1700000123}`

	ev, err := n.Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if ev.OccurredAt() != 1700000123000 {
		t.Errorf("timestamp = %d, want milliseconds", ev.OccurredAt())
	}
}

func TestValidAddress(t *testing.T) {
	if !ValidAddress(testMint) {
		t.Error("known mint rejected")
	}
	if ValidAddress("short") || ValidAddress("") || ValidAddress("0OIl+/") {
		t.Error("invalid strings accepted")
	}
}

func TestIsOnCurve(t *testing.T) {
	// The ed25519 generator is on-curve by definition.
	gen := base58.Encode(edwards25519.NewGeneratorPoint().Bytes())
	if !IsOnCurve(gen) {
		t.Error("generator point reported off-curve")
	}

	// A non-canonical encoding must be rejected.
	bad := make([]byte, 32)
	for i := range bad {
		bad[i] = 0xff
	}
	if IsOnCurve(base58.Encode(bad)) {
		t.Error("non-canonical point reported on-curve")
	}
	if IsOnCurve("not-base58!") {
		t.Error("junk string reported on-curve")
	}
}
