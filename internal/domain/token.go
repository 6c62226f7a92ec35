package domain

// PoolKind identifies the trading venue of a token.
type PoolKind string

const (
	// PoolBondingCurve is the initial pump.fun bonding-curve venue.
	PoolBondingCurve PoolKind = "BONDING_CURVE"
	// PoolMigratedAMM is the post-migration AMM pool venue.
	PoolMigratedAMM PoolKind = "MIGRATED_AMM"
)

// DevStatus tracks whether the creator still holds the initial allocation.
type DevStatus string

const (
	DevHolding DevStatus = "HOLDING"
	DevSold    DevStatus = "SOLD"
)

// TokenState is the aggregated running state for a single mint.
// It is owned and mutated exclusively by the aggregation engine;
// readers only ever see copies taken under the engine's lock.
type TokenState struct {
	Mint      string // token mint address, primary key
	Creator   string // creator wallet address (may be empty if never seen)
	Name      string
	Symbol    string
	URI       string // metadata URI, opaque to the core
	CreatedAt int64  // Unix timestamp in milliseconds

	PoolKind  PoolKind
	DevStatus DevStatus

	PriceSol     float64 // last trade price in SOL
	MarketCapSol float64 // last reported market cap in SOL
	VolumeSol    float64 // cumulative traded volume in SOL

	BuyCount  uint64
	SellCount uint64

	Candles []Candle // bounded OHLC series, oldest first

	LastUpdate int64 // Unix timestamp in milliseconds
}

// TradeCount returns the total number of trades applied to this token.
func (t *TokenState) TradeCount() uint64 {
	return t.BuyCount + t.SellCount
}

// MarketCapUSD derives the USD market cap from the latest oracle snapshot.
// It is computed at read time and never stored, so a fresh oracle price
// is always reflected without touching the token record.
func (t *TokenState) MarketCapUSD(p PriceSnapshot) float64 {
	return t.MarketCapSol * p.SolUSD
}

// VolumeUSD derives the USD volume from the latest oracle snapshot.
func (t *TokenState) VolumeUSD(p PriceSnapshot) float64 {
	return t.VolumeSol * p.SolUSD
}

// Clone returns a deep copy safe to hand to readers.
func (t *TokenState) Clone() *TokenState {
	cp := *t
	cp.Candles = make([]Candle, len(t.Candles))
	copy(cp.Candles, t.Candles)
	return &cp
}
