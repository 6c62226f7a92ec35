// Command replay feeds a captured NDJSON feed dump through the
// normalizer and aggregation engine, then prints a summary. Useful for
// checking parser changes against real captured traffic.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/a2-stuff/pumpTUI/internal/aggregate"
	"github.com/a2-stuff/pumpTUI/internal/candles"
	"github.com/a2-stuff/pumpTUI/internal/config"
	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/logging"
	"github.com/a2-stuff/pumpTUI/internal/normalize"
	"github.com/a2-stuff/pumpTUI/internal/velocity"
)

func main() {
	file := flag.String("file", "", "Path to NDJSON capture (one raw feed frame per line)")
	fallbackSide := flag.String("fallback-side", "buy", "Side for trades with no directional signal: buy or sell")
	top := flag.Int("top", 10, "Number of tokens to print, ranked by volume")
	flag.Parse()

	if *file == "" {
		log.Fatal("-file is required")
	}
	if *fallbackSide != "buy" && *fallbackSide != "sell" {
		log.Fatalf("invalid -fallback-side %q", *fallbackSide)
	}

	if err := run(*file, domain.TradeSide(*fallbackSide), *top); err != nil {
		log.Fatalf("replay: %v", err)
	}
}

func run(path string, fallbackSide domain.TradeSide, top int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	logger := logging.NewNop()
	defaults := config.Defaults()
	builder := candles.NewBuilder(defaults.Candles.BucketWidth.Duration, defaults.Candles.Capacity, nil)
	meter := velocity.NewMeter(defaults.Velocity.Window.Duration)
	engine := aggregate.New(aggregate.Options{
		Candles: builder,
		Meter:   meter,
	}, logger)
	normalizer := normalize.New(fallbackSide, logger, nil)

	start := time.Now()
	var lines, applied, discarded int
	kinds := map[domain.EventKind]int{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lines++

		ev, err := normalizer.Normalize(line)
		if err != nil {
			if errors.Is(err, normalize.ErrDiscard) {
				discarded++
				continue
			}
			return fmt.Errorf("line %d: %w", lines, err)
		}
		engine.Apply(ev)
		applied++
		kinds[ev.Kind()]++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read capture: %w", err)
	}

	snap := engine.Snapshot()
	fmt.Printf("replayed %d frames in %v: %d applied (%d discovery, %d trade, %d migration), %d discarded, %d tokens\n",
		lines, time.Since(start).Round(time.Millisecond),
		applied, kinds[domain.EventDiscovery], kinds[domain.EventTrade], kinds[domain.EventMigration],
		discarded, len(snap))

	sort.Slice(snap, func(i, j int) bool { return snap[i].VolumeSol > snap[j].VolumeSol })
	if len(snap) > top {
		snap = snap[:top]
	}

	for _, t := range snap {
		symbol := t.Symbol
		if symbol == "" {
			symbol = "?"
		}
		fmt.Printf("  %-44s %-8s vol=%.3f SOL trades=%d pool=%s dev=%s\n",
			t.Mint, symbol, t.VolumeSol, t.TradeCount(), t.PoolKind, t.DevStatus)
	}
	return nil
}
