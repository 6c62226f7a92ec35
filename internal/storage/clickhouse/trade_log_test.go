package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/storage"
)

func TestTradeLog_Clickhouse(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := NewTradeLog(conn)

	trades := []*domain.Trade{
		{
			Mint: "mint-1", Side: domain.SideBuy, Trader: "trader-1",
			Pool: "pump", Signature: "sig-1",
			SolAmount: 1.5, TokenAmount: 3000, PriceSol: ptr(0.0005),
			MarketCapSol: ptr(42.0), Timestamp: 1700000001000,
		},
		{
			Mint: "mint-1", Side: domain.SideSell, SideInferred: true,
			Trader: "trader-2", Pool: "pump", Signature: "sig-2",
			SolAmount: 0.5, TokenAmount: 1000, Timestamp: 1700000002000,
		},
		{
			Mint: "mint-2", Side: domain.SideBuy, Trader: "trader-3",
			Pool: "bonk", Signature: "sig-3",
			SolAmount: 0.1, TokenAmount: 200, Timestamp: 1700000003000,
		},
	}

	require.NoError(t, s.InsertBulk(ctx, trades))

	t.Run("get by mint", func(t *testing.T) {
		got, err := s.GetByMint(ctx, "mint-1")
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, domain.SideBuy, got[0].Side)
		assert.False(t, got[0].SideInferred)
		require.NotNil(t, got[0].PriceSol)
		assert.InDelta(t, 0.0005, *got[0].PriceSol, 1e-12)

		assert.Equal(t, domain.SideSell, got[1].Side)
		assert.True(t, got[1].SideInferred)
		assert.Nil(t, got[1].PriceSol)
	})

	t.Run("get by time range", func(t *testing.T) {
		got, err := s.GetByTimeRange(ctx, "mint-1", 1700000001500, 1700000003000)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "sig-2", got[0].Signature)
	})

	t.Run("invalid input", func(t *testing.T) {
		err := s.InsertBulk(ctx, []*domain.Trade{{Mint: ""}})
		assert.ErrorIs(t, err, storage.ErrInvalidInput)
	})
}
