// Package normalize turns raw feed frames into the closed set of
// domain events. It is the only package that knows the PumpPortal
// payload shape; everything downstream works on typed events.
package normalize

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/observability"
)

// ErrDiscard marks a raw message that carries no usable event. The
// enclosing stream must treat it as a per-message outcome, never as a
// stream failure.
var ErrDiscard = errors.New("message discarded")

// Feed txType discriminator values.
const (
	txTypeCreate  = "create"
	txTypeBuy     = "buy"
	txTypeSell    = "sell"
	txTypeMigrate = "migrate"
)

// Normalizer parses raw feed messages. Safe for use from a single
// goroutine (the stream read path).
type Normalizer struct {
	log     *zap.SugaredLogger
	metrics *observability.Metrics

	// fallbackSide classifies trades with no directional signal at
	// all. They are still counted (a genesis trade must never vanish);
	// the side is a configured best-effort guess.
	fallbackSide domain.TradeSide

	now func() time.Time
}

// New creates a normalizer. metrics may be nil.
func New(fallbackSide domain.TradeSide, log *zap.SugaredLogger, metrics *observability.Metrics) *Normalizer {
	return &Normalizer{
		log:          log,
		metrics:      metrics,
		fallbackSide: fallbackSide,
		now:          time.Now,
	}
}

// Normalize parses one raw message into a typed event. It returns
// ErrDiscard (wrapped with a reason) for malformed frames, service
// messages and unrecognized kinds. Partial numeric failures degrade to
// "field unchanged" on the returned event rather than rejecting it.
func (n *Normalizer) Normalize(raw []byte) (domain.Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, n.discard("malformed_json", raw)
	}

	// Subscription confirmations and other service chatter.
	if _, ok := fields["message"]; ok {
		return nil, n.discard("service_message", raw)
	}

	mint, _ := str(fields, "mint")
	if mint == "" {
		return nil, n.discard("missing_mint", raw)
	}
	if !ValidAddress(mint) {
		return nil, n.discard("invalid_mint", raw)
	}

	txType, _ := str(fields, "txType")

	var ev domain.Event
	switch txType {
	case txTypeCreate:
		ev = n.discovery(mint, fields)
	case txTypeBuy, txTypeSell:
		ev = n.trade(mint, domain.TradeSide(txType), false, fields)
	case txTypeMigrate:
		ev = n.migration(mint, fields)
	case "":
		// Creation notifications historically arrived without a
		// txType; anything with name/symbol metadata is a discovery,
		// anything with trade figures is a side-inferred trade.
		if _, hasName := str(fields, "name"); hasName {
			ev = n.discovery(mint, fields)
			break
		}
		if _, ok := num(fields, "solAmount"); ok {
			side, inferred, signal := n.inferSide(fields)
			n.countInference(signal)
			ev = n.trade(mint, side, inferred, fields)
			break
		}
		return nil, n.discard("unknown_kind", raw)
	default:
		return nil, n.discard("unknown_tx_type", raw)
	}

	if n.metrics != nil {
		n.metrics.EventsNormalized.WithLabelValues(string(ev.Kind())).Inc()
	}
	return ev, nil
}

// discovery builds a Discovery event, folding the creator's initial buy
// into an embedded trade when the payload carries one.
func (n *Normalizer) discovery(mint string, fields map[string]json.RawMessage) *domain.Discovery {
	d := &domain.Discovery{Mint: mint, Timestamp: n.timestamp(fields)}
	d.Name, _ = str(fields, "name")
	d.Symbol, _ = str(fields, "symbol")
	d.URI, _ = str(fields, "uri")
	d.Creator, _ = str(fields, "traderPublicKey")
	d.Pool, _ = str(fields, "pool")
	d.Signature, _ = str(fields, "signature")

	if mc, ok := num(fields, "marketCapSol"); ok {
		d.MarketCapSol = &mc
	}

	// The create transaction includes the dev's initial buy: solAmount
	// is the SOL spent, initialBuy the tokens received.
	if sol, ok := num(fields, "solAmount"); ok && sol > 0 {
		t := &domain.Trade{
			Mint:         mint,
			Side:         domain.SideBuy,
			Trader:       d.Creator,
			Pool:         d.Pool,
			Signature:    d.Signature,
			SolAmount:    sol,
			MarketCapSol: d.MarketCapSol,
			Timestamp:    d.Timestamp,
		}
		if tokens, ok := num(fields, "initialBuy"); ok {
			t.TokenAmount = tokens
			if tokens > 0 {
				price := sol / tokens
				t.PriceSol = &price
			}
		}
		d.InitialTrade = t
	}

	return d
}

// trade builds a Trade event. explicit side comes from txType; inferred
// sides are flagged so the engine can log them.
func (n *Normalizer) trade(mint string, side domain.TradeSide, inferred bool, fields map[string]json.RawMessage) *domain.Trade {
	t := &domain.Trade{
		Mint:         mint,
		Side:         side,
		SideInferred: inferred,
		Timestamp:    n.timestamp(fields),
	}
	t.Trader, _ = str(fields, "traderPublicKey")
	t.Pool, _ = str(fields, "pool")
	t.Signature, _ = str(fields, "signature")

	sol, _ := num(fields, "solAmount")
	t.SolAmount = math.Abs(sol)
	t.TokenAmount, _ = num(fields, "tokenAmount")

	if mc, ok := num(fields, "marketCapSol"); ok {
		t.MarketCapSol = &mc
	}

	// Bonk-pool trades sometimes report solAmount=0; estimate the SOL
	// volume from the token amount and market cap against the nominal
	// 1e9 supply, as the original tracker did.
	if t.SolAmount == 0 && t.Pool == "bonk" && t.MarketCapSol != nil && t.TokenAmount > 0 {
		t.SolAmount = t.TokenAmount * *t.MarketCapSol / 1_000_000_000
	}

	if t.TokenAmount > 0 && t.SolAmount > 0 {
		price := t.SolAmount / t.TokenAmount
		t.PriceSol = &price
	}

	return t
}

// migration builds a Migration event with an optional embedded seed
// trade (present when the feed reports the pool-funding swap inline).
func (n *Normalizer) migration(mint string, fields map[string]json.RawMessage) *domain.Migration {
	m := &domain.Migration{Mint: mint, Timestamp: n.timestamp(fields)}
	m.Pool, _ = str(fields, "pool")
	m.Signature, _ = str(fields, "signature")

	if sol, ok := num(fields, "solAmount"); ok && sol != 0 {
		side, inferred, signal := n.inferSide(fields)
		n.countInference(signal)
		t := n.trade(mint, side, inferred, fields)
		m.SeedTrade = t
	}

	return m
}

// inferSide derives a trade side for payloads without an explicit
// txType. The signed base-asset delta wins; with no signal at all the
// configured fallback applies and the trade is still counted.
func (n *Normalizer) inferSide(fields map[string]json.RawMessage) (side domain.TradeSide, inferred bool, signal string) {
	if sol, ok := num(fields, "solAmount"); ok && sol != 0 {
		if sol < 0 {
			return domain.SideSell, true, "sol_delta"
		}
		return domain.SideBuy, true, "sol_delta"
	}

	// Token balance direction: a balance that grew by the traded
	// amount is a buy, one that shrank is a sell.
	if bal, ok := num(fields, "newTokenBalance"); ok {
		if amt, ok := num(fields, "tokenAmount"); ok && amt > 0 {
			if bal >= amt {
				return domain.SideBuy, true, "token_balance"
			}
			return domain.SideSell, true, "token_balance"
		}
	}

	return n.fallbackSide, true, "fallback"
}

func (n *Normalizer) countInference(signal string) {
	if n.metrics != nil {
		n.metrics.SidesInferred.WithLabelValues(signal).Inc()
	}
}

// timestamp extracts the event time in Unix milliseconds, stamping the
// local receive time when the payload has none. Second-resolution
// values are scaled up.
func (n *Normalizer) timestamp(fields map[string]json.RawMessage) int64 {
	if ts, ok := num(fields, "timestamp"); ok && ts > 0 {
		ms := int64(ts)
		if ms < 1_000_000_000_000 {
			ms *= 1000
		}
		return ms
	}
	return n.now().UnixMilli()
}

func (n *Normalizer) discard(reason string, raw []byte) error {
	if n.metrics != nil {
		n.metrics.MessagesDiscarded.WithLabelValues(reason).Inc()
	}
	n.log.Debugw("discarding message", "reason", reason, "payload", truncate(raw, 512))
	return errors.Join(ErrDiscard, errors.New(reason))
}

// str extracts a string field, tolerating absence and wrong types.
func str(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// num extracts a numeric field. Numbers encoded as strings are common
// in this feed and accepted; anything else degrades to "absent" so a
// single bad field never rejects the whole event.
func num(fields map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
