package aggregate

import (
	"testing"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"github.com/a2-stuff/pumpTUI/internal/candles"
	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/logging"
	"github.com/a2-stuff/pumpTUI/internal/velocity"
)

const (
	mintA = "So11111111111111111111111111111111111111112"
	mintB = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
)

// onCurveKey is a base58 key guaranteed to sit on the ed25519 curve,
// standing in for a real wallet address.
var onCurveKey = base58.Encode(edwards25519.NewGeneratorPoint().Bytes())

func newTestEngine() *Engine {
	return New(Options{
		Candles: candles.NewBuilder(15*time.Second, 96, nil),
		Meter:   velocity.NewMeter(time.Minute),
	}, logging.NewNop())
}

func fp(v float64) *float64 { return &v }

func discovery(mint, creator string, ts int64) *domain.Discovery {
	return &domain.Discovery{
		Mint:      mint,
		Name:      "Test",
		Symbol:    "TST",
		Creator:   creator,
		Timestamp: ts,
		Signature: "sig-create-" + mint,
	}
}

func trade(mint string, side domain.TradeSide, sol, price float64, ts int64, sig string) *domain.Trade {
	return &domain.Trade{
		Mint:      mint,
		Side:      side,
		SolAmount: sol,
		PriceSol:  fp(price),
		Timestamp: ts,
		Signature: sig,
	}
}

func TestEngine_DiscoveryThenTrades(t *testing.T) {
	e := newTestEngine()
	base := int64(1700000010000)

	e.Apply(discovery(mintA, onCurveKey, base))
	e.Apply(trade(mintA, domain.SideBuy, 2.0, 1.0, base+1000, "sig-1"))
	e.Apply(trade(mintA, domain.SideSell, 1.0, 0.9, base+2000, "sig-2"))

	st, ok := e.Token(mintA)
	if !ok {
		t.Fatal("token not tracked")
	}
	if st.BuyCount != 1 || st.SellCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", st.BuyCount, st.SellCount)
	}
	if st.PriceSol != 0.9 {
		t.Errorf("price = %v, want last trade 0.9", st.PriceSol)
	}
	if st.VolumeSol != 3.0 {
		t.Errorf("volume = %v, want 3.0", st.VolumeSol)
	}
	if st.PoolKind != domain.PoolBondingCurve {
		t.Errorf("pool = %s, want bonding curve", st.PoolKind)
	}
	if len(st.Candles) != 1 {
		t.Fatalf("candles = %d, want 1", len(st.Candles))
	}
	if st.Candles[0].Open != 1.0 || st.Candles[0].Close != 0.9 {
		t.Errorf("candle = %+v, want open 1.0 close 0.9", st.Candles[0])
	}
}

func TestEngine_DiscoveryAppliesEmbeddedInitialBuy(t *testing.T) {
	e := newTestEngine()
	base := int64(1700000010000)

	d := discovery(mintA, onCurveKey, base)
	d.InitialTrade = trade(mintA, domain.SideBuy, 2.0, 0.000002, base, "sig-create-"+mintA)
	e.Apply(d)

	st, _ := e.Token(mintA)
	if st.BuyCount != 1 {
		t.Errorf("buy count = %d, want the initial buy counted", st.BuyCount)
	}
	if st.VolumeSol != 2.0 {
		t.Errorf("volume = %v, want 2.0", st.VolumeSol)
	}
}

func TestEngine_MigrationFirstSeedSell(t *testing.T) {
	e := newTestEngine()
	base := int64(1700000010000)

	seed := trade(mintA, domain.SideSell, 3.25, 0.0000065, base, "sig-mig")
	seed.SideInferred = true
	e.Apply(&domain.Migration{
		Mint:      mintA,
		Pool:      "pump-amm",
		Timestamp: base,
		Signature: "sig-mig",
		SeedTrade: seed,
	})

	st, ok := e.Token(mintA)
	if !ok {
		t.Fatal("migration-first token not tracked")
	}
	if st.PoolKind != domain.PoolMigratedAMM {
		t.Errorf("pool = %s, want migrated AMM", st.PoolKind)
	}
	if st.SellCount != 1 || st.BuyCount != 0 {
		t.Errorf("counts = %d/%d, want the seed sell counted", st.BuyCount, st.SellCount)
	}
	if st.VolumeSol != 3.25 {
		t.Errorf("volume = %v, want 3.25", st.VolumeSol)
	}
}

func TestEngine_MigrationIsOneWayAndIdempotent(t *testing.T) {
	e := newTestEngine()
	base := int64(1700000010000)

	e.Apply(discovery(mintA, onCurveKey, base))
	e.Apply(&domain.Migration{Mint: mintA, Timestamp: base + 1000, Signature: "sig-m1"})
	e.Apply(&domain.Migration{Mint: mintA, Timestamp: base + 2000, Signature: "sig-m2"})

	st, _ := e.Token(mintA)
	if st.PoolKind != domain.PoolMigratedAMM {
		t.Errorf("pool = %s", st.PoolKind)
	}

	// A later discovery redelivery must not regress the pool kind.
	d := discovery(mintA, onCurveKey, base+3000)
	d.Signature = "sig-create-late"
	e.Apply(d)
	st, _ = e.Token(mintA)
	if st.PoolKind != domain.PoolMigratedAMM {
		t.Errorf("pool regressed to %s after late discovery", st.PoolKind)
	}
}

func TestEngine_DuplicateEventsIgnored(t *testing.T) {
	e := newTestEngine()
	base := int64(1700000010000)

	tr := trade(mintA, domain.SideBuy, 1.0, 1.0, base, "sig-dup")
	e.Apply(tr)
	e.Apply(tr)
	e.Apply(trade(mintA, domain.SideBuy, 1.0, 1.0, base, "sig-dup"))

	st, _ := e.Token(mintA)
	if st.BuyCount != 1 {
		t.Errorf("buy count = %d, want redeliveries dropped", st.BuyCount)
	}
	if st.VolumeSol != 1.0 {
		t.Errorf("volume = %v, want 1.0", st.VolumeSol)
	}
}

func TestEngine_TradeFirstThenDiscoveryBackfills(t *testing.T) {
	e := newTestEngine()
	base := int64(1700000010000)

	e.Apply(trade(mintA, domain.SideBuy, 1.5, 1.0, base, "sig-early"))
	e.Apply(discovery(mintA, onCurveKey, base-5000))

	st, _ := e.Token(mintA)
	if st.Name != "Test" || st.Creator != onCurveKey {
		t.Errorf("identity not backfilled: %+v", st)
	}
	if st.BuyCount != 1 || st.VolumeSol != 1.5 {
		t.Errorf("counters reset by discovery: %+v", st)
	}
	if st.CreatedAt != base-5000 {
		t.Errorf("createdAt = %d, want the earlier creation time", st.CreatedAt)
	}
}

func TestEngine_DevSoldOnCreatorSell(t *testing.T) {
	e := newTestEngine()
	base := int64(1700000010000)

	e.Apply(discovery(mintA, onCurveKey, base))

	// Stranger sells: dev still holding.
	s1 := trade(mintA, domain.SideSell, 0.5, 0.9, base+1000, "sig-s1")
	s1.Trader = mintB
	e.Apply(s1)
	st, _ := e.Token(mintA)
	if st.DevStatus != domain.DevHolding {
		t.Fatalf("dev status = %s after stranger sell", st.DevStatus)
	}

	// Creator buys: still holding.
	b1 := trade(mintA, domain.SideBuy, 0.5, 0.9, base+2000, "sig-b1")
	b1.Trader = onCurveKey
	e.Apply(b1)
	st, _ = e.Token(mintA)
	if st.DevStatus != domain.DevHolding {
		t.Fatalf("dev status = %s after creator buy", st.DevStatus)
	}

	// Creator sells: flips, and stays flipped.
	s2 := trade(mintA, domain.SideSell, 0.5, 0.9, base+3000, "sig-s2")
	s2.Trader = onCurveKey
	e.Apply(s2)
	st, _ = e.Token(mintA)
	if st.DevStatus != domain.DevSold {
		t.Fatalf("dev status = %s, want sold", st.DevStatus)
	}
}

func TestEngine_SnapshotOrderingAndIsolation(t *testing.T) {
	e := newTestEngine()
	base := int64(1700000010000)

	e.Apply(discovery(mintA, "", base))
	e.Apply(discovery(mintB, "", base+1000))

	snap := e.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(snap))
	}
	if snap[0].Mint != mintB || snap[1].Mint != mintA {
		t.Errorf("order = [%s %s], want most recent first", snap[0].Mint, snap[1].Mint)
	}

	// Mutating the copy must not leak into engine state.
	snap[0].BuyCount = 999
	snap[0].Candles = append(snap[0].Candles, domain.Candle{})
	st, _ := e.Token(mintB)
	if st.BuyCount == 999 || len(st.Candles) != 0 {
		t.Error("snapshot mutation leaked into engine state")
	}
}

func TestEngine_DiscoveryRate(t *testing.T) {
	e := newTestEngine()
	base := time.Now().UnixMilli()

	for i := 0; i < 3; i++ {
		d := discovery(mintA, "", base+int64(i))
		d.Mint = mintA
		d.Signature = string(rune('a' + i))
		e.Apply(d)
	}
	// Three discovery events inside the minute window.
	if got := e.DiscoveryRate(); got != 3 {
		t.Errorf("rate = %v, want 3", got)
	}
}
