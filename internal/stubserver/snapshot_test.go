package stubserver

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/tradedash/internal/protocol"
)

func trade(symbol, pnl string, closedAt time.Time) TradeRecord {
	return TradeRecord{Symbol: symbol, Pnl: decimal.RequireFromString(pnl), Status: "CLOSED", ClosedAt: closedAt}
}

func TestBuildSnapshotStats(t *testing.T) {
	day1 := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	trades := []TradeRecord{
		trade("A", "10", day1),
		trade("B", "-4.5", day1.Add(24*time.Hour)),
		trade("C", "2.25", day1.Add(48*time.Hour)),
	}
	positions := []PositionRecord{{Symbol: "BTC/USDT", Side: "buy", UnrealizedPnl: decimal.RequireFromString("1.5")}}

	snap := BuildSnapshot(positions, trades)
	assert.Equal(t, protocol.Number("7.75"), snap.Stats.TotalPnl)
	assert.Equal(t, protocol.Number("66.67"), snap.Stats.WinRate)
	assert.Equal(t, 3, snap.Stats.TotalTrades)
	require.NotNil(t, snap.Stats.WinningTrades)
	assert.Equal(t, 2, *snap.Stats.WinningTrades)
	assert.Equal(t, 1, *snap.Stats.LosingTrades)
	assert.Equal(t, protocol.Number("10"), snap.Stats.BestTradePnl)
	assert.Equal(t, protocol.Number("-4.5"), snap.Stats.WorstTradePnl)

	require.Len(t, snap.OpenPositions, 1)
	assert.Equal(t, protocol.SideLong, snap.OpenPositions[0].Side)

	// 曲线：前一天的 0 点 + 每笔交易的累计值
	require.Len(t, snap.PnlTimeline, 4)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), snap.PnlTimeline[0].Timestamp.Time())
	assert.Equal(t, protocol.Number("0"), snap.PnlTimeline[0].Value)
	assert.Equal(t, protocol.Number("10"), snap.PnlTimeline[1].Value)
	assert.Equal(t, protocol.Number("5.5"), snap.PnlTimeline[2].Value)
	assert.Equal(t, protocol.Number("7.75"), snap.PnlTimeline[3].Value)
}

func TestBuildSnapshotEmpty(t *testing.T) {
	snap := BuildSnapshot(nil, nil)
	assert.Equal(t, protocol.Number("0"), snap.Stats.TotalPnl)
	assert.Equal(t, protocol.Number("0"), snap.Stats.WinRate)
	assert.Zero(t, snap.Stats.TotalTrades)
	assert.Empty(t, snap.PnlTimeline)
	assert.NotNil(t, snap.OpenPositions, "空列表编码为 []")
}

func TestSnapshotRoundTripsThroughDashboardDecoder(t *testing.T) {
	day := time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)
	snap := BuildSnapshot(
		[]PositionRecord{{Symbol: "ETH/USDT", Side: "sell", UnrealizedPnl: decimal.RequireFromString("-3.15")}},
		[]TradeRecord{trade("SOL/USDT", "29", day)},
	)
	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded protocol.Snapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, snap.Stats.TotalPnl, decoded.Stats.TotalPnl)
	require.Len(t, decoded.OpenPositions, 1)
	assert.Equal(t, protocol.SideShort, decoded.OpenPositions[0].Side)
	assert.Equal(t, protocol.Number("-3.15"), decoded.OpenPositions[0].UnrealizedPnl)
	require.Len(t, decoded.TradeHistory, 1)
	assert.Equal(t, day, decoded.TradeHistory[0].ClosedAt.Time())
}
