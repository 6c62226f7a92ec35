package domain

// EventKind discriminates the closed set of normalized feed events.
type EventKind string

const (
	EventDiscovery EventKind = "DISCOVERY"
	EventTrade     EventKind = "TRADE"
	EventMigration EventKind = "MIGRATION"
)

// TradeSide is the direction of a trade relative to the token.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Event is the closed variant type produced by the normalizer.
// The only implementations are Discovery, Trade and Migration.
type Event interface {
	Kind() EventKind
	// TokenID returns the mint the event refers to.
	TokenID() string
	// OccurredAt returns the event timestamp in Unix milliseconds.
	OccurredAt() int64
}

// Discovery announces a previously-unseen token.
type Discovery struct {
	Mint      string
	Name      string
	Symbol    string
	URI       string
	Creator   string // traderPublicKey of the create transaction
	Pool      string // raw feed pool label ("pump", "bonk", ...)
	Signature string

	MarketCapSol *float64 // nil when the field failed to parse
	Timestamp    int64    // Unix milliseconds

	// InitialTrade is the trade embedded in the creation payload
	// (the creator's initial buy). Applied in the same logical step
	// as the discovery itself.
	InitialTrade *Trade
}

func (d *Discovery) Kind() EventKind   { return EventDiscovery }
func (d *Discovery) TokenID() string   { return d.Mint }
func (d *Discovery) OccurredAt() int64 { return d.Timestamp }

// Trade is a single buy or sell applied against a token.
type Trade struct {
	Mint string
	Side TradeSide
	// SideInferred is set when the payload carried no explicit side and
	// the direction was derived from balance deltas or the configured
	// fallback.
	SideInferred bool
	Trader       string
	Pool         string
	Signature    string

	SolAmount    float64  // trade size in SOL (volume contribution)
	TokenAmount  float64  // trade size in tokens
	PriceSol     *float64 // per-token price in SOL, nil when underivable
	MarketCapSol *float64 // nil when the field failed to parse

	Timestamp int64 // Unix milliseconds
}

func (t *Trade) Kind() EventKind   { return EventTrade }
func (t *Trade) TokenID() string   { return t.Mint }
func (t *Trade) OccurredAt() int64 { return t.Timestamp }

// Migration marks the one-time move of a token from the bonding curve
// to an AMM pool. The feed sometimes attaches the pool-seeding trade.
type Migration struct {
	Mint      string
	Pool      string // destination AMM pool label
	Signature string
	Timestamp int64 // Unix milliseconds

	// SeedTrade is the trade embedded in the migration payload, when
	// present. For a token first observed via migration this is the
	// token's first countable trade.
	SeedTrade *Trade
}

func (m *Migration) Kind() EventKind   { return EventMigration }
func (m *Migration) TokenID() string   { return m.Mint }
func (m *Migration) OccurredAt() int64 { return m.Timestamp }
