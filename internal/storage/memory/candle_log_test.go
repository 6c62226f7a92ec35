package memory

import (
	"context"
	"testing"

	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/storage"
)

func TestCandleLog_InsertReplacesBucket(t *testing.T) {
	ctx := context.Background()
	s := NewCandleLog()

	err := s.InsertBulk(ctx, []*storage.CandleRecord{
		{Mint: "mint-1", Candle: domain.Candle{BucketStart: 15000, Close: 1.0}},
		{Mint: "mint-1", Candle: domain.Candle{BucketStart: 30000, Close: 1.1}},
	})
	if err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	// Same bucket again: the later repaint wins.
	err = s.InsertBulk(ctx, []*storage.CandleRecord{
		{Mint: "mint-1", Candle: domain.Candle{BucketStart: 30000, Close: 1.5}},
	})
	if err != nil {
		t.Fatalf("InsertBulk repaint: %v", err)
	}

	got, err := s.GetByMint(ctx, "mint-1")
	if err != nil {
		t.Fatalf("GetByMint: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("candles = %d, want 2", len(got))
	}
	if got[0].BucketStart != 15000 || got[1].BucketStart != 30000 {
		t.Errorf("buckets out of order: %+v", got)
	}
	if got[1].Close != 1.5 {
		t.Errorf("repaint not applied: %+v", got[1])
	}

	ranged, err := s.GetByTimeRange(ctx, "mint-1", 20000, 40000)
	if err != nil {
		t.Fatalf("GetByTimeRange: %v", err)
	}
	if len(ranged) != 1 || ranged[0].BucketStart != 30000 {
		t.Errorf("range = %+v", ranged)
	}
}
