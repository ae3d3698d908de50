package stubserver

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/tradedash/internal/protocol"
)

var hundred = decimal.NewFromInt(100)

// BuildSnapshot computes the dashboard payload from the stored rows.
//
// 统计与 /api/data 一致：胜率按 pnl > 0 计算，曲线从第一笔交易前一天的 0 开始累加。
func BuildSnapshot(positions []PositionRecord, trades []TradeRecord) protocol.Snapshot {
	snap := protocol.Snapshot{
		OpenPositions: make([]protocol.Position, 0, len(positions)),
		TradeHistory:  make([]protocol.Trade, 0, len(trades)),
		PnlTimeline:   make([]protocol.TimelinePoint, 0, len(trades)+1),
	}

	for _, p := range positions {
		snap.OpenPositions = append(snap.OpenPositions, protocol.Position{
			Symbol:        p.Symbol,
			Side:          protocol.ParseSide(p.Side),
			UnrealizedPnl: protocol.Number(p.UnrealizedPnl.String()),
		})
	}

	total := decimal.Zero
	winners := 0
	best, worst := decimal.Zero, decimal.Zero
	for i, t := range trades {
		total = total.Add(t.Pnl)
		if t.Pnl.IsPositive() {
			winners++
		}
		if i == 0 || t.Pnl.GreaterThan(best) {
			best = t.Pnl
		}
		if i == 0 || t.Pnl.LessThan(worst) {
			worst = t.Pnl
		}

		if i == 0 {
			start := t.ClosedAt.Truncate(24 * time.Hour).Add(-24 * time.Hour)
			snap.PnlTimeline = append(snap.PnlTimeline, protocol.TimelinePoint{
				Timestamp: protocol.Time(start),
				Value:     "0",
			})
		}
		snap.PnlTimeline = append(snap.PnlTimeline, protocol.TimelinePoint{
			Timestamp: protocol.Time(t.ClosedAt),
			Value:     protocol.Number(total.String()),
		})
		snap.TradeHistory = append(snap.TradeHistory, protocol.Trade{
			Symbol:   t.Symbol,
			Pnl:      protocol.Number(t.Pnl.String()),
			Status:   t.Status,
			ClosedAt: protocol.Time(t.ClosedAt),
		})
	}

	n := len(trades)
	losers := n - winners
	winRate := decimal.Zero
	if n > 0 {
		winRate = decimal.NewFromInt(int64(winners)).Mul(hundred).Div(decimal.NewFromInt(int64(n))).Round(2)
	}
	snap.Stats = protocol.Stats{
		TotalPnl:      protocol.Number(total.String()),
		WinRate:       protocol.Number(winRate.String()),
		TotalTrades:   n,
		WinningTrades: &winners,
		LosingTrades:  &losers,
		BestTradePnl:  protocol.Number(best.String()),
		WorstTradePnl: protocol.Number(worst.String()),
	}
	return snap
}

// Snapshot reads the store and builds the current snapshot.
func (s *Store) Snapshot(ctx context.Context) (protocol.Snapshot, error) {
	positions, err := s.ListPositions(ctx)
	if err != nil {
		return protocol.Snapshot{}, err
	}
	trades, err := s.ListTrades(ctx)
	if err != nil {
		return protocol.Snapshot{}, err
	}
	return BuildSnapshot(positions, trades), nil
}
