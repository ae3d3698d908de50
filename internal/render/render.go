// Package render turns a dashboard snapshot into display rows. Build is pure:
// the same snapshot always produces the same View.
package render

import (
	"strconv"
	"strings"
	"time"

	"github.com/betbot/tradedash/internal/protocol"
)

// Empty-state texts.
const (
	NoPositionsText = "No managed open positions."
	NoHistoryText   = "No completed trades yet."
	NoChartText     = "No P&L history yet."
)

// Tone colours a value.
type Tone int

const (
	ToneNeutral Tone = iota
	TonePositive
	ToneNegative
)

// Action is a row-level affordance on an open position.
type Action string

const (
	ActionReanalyze Action = "reanalyze"
	ActionClose     Action = "close"
)

// ActionRef binds an action to the symbol of its row.
type ActionRef struct {
	Action Action
	Symbol string
}

// Field is a labelled value.
type Field struct {
	Label string
	Value string
	Tone  Tone
}

// StatsView is the formatted stats block.
type StatsView struct {
	TotalPnl    Field
	WinRate     Field
	TotalTrades Field
	Extras      []Field
}

// PositionRow is one formatted open position.
type PositionRow struct {
	Symbol   string
	Side     string
	SideTone Tone
	Pnl      string
	PnlTone  Tone
	Actions  []ActionRef
}

// TradeRow is one formatted closed trade.
type TradeRow struct {
	Symbol   string
	Pnl      string
	PnlTone  Tone
	Status   string
	ClosedAt string
}

// Series is the chart input, in supplied order.
type Series struct {
	Labels []string
	Values []float64
}

// View is everything the dashboard draws from one snapshot.
type View struct {
	Stats       StatsView
	Positions   []PositionRow
	NoPositions string
	History     []TradeRow
	NoHistory   string
	Chart       Series
}

// Build formats snap. Times are shown in loc; nil means time.Local.
func Build(snap protocol.Snapshot, loc *time.Location) View {
	if loc == nil {
		loc = time.Local
	}

	v := View{
		Stats:     buildStats(snap.Stats),
		Positions: make([]PositionRow, 0, len(snap.OpenPositions)),
		History:   make([]TradeRow, 0, len(snap.TradeHistory)),
	}

	for _, p := range snap.OpenPositions {
		v.Positions = append(v.Positions, buildPosition(p))
	}
	if len(v.Positions) == 0 {
		v.NoPositions = NoPositionsText
	}

	for _, t := range snap.TradeHistory {
		v.History = append(v.History, TradeRow{
			Symbol:   t.Symbol,
			Pnl:      t.Pnl.Fixed(2),
			PnlTone:  toneOf(t.Pnl),
			Status:   t.Status,
			ClosedAt: formatTime(t.ClosedAt, loc),
		})
	}
	if len(v.History) == 0 {
		v.NoHistory = NoHistoryText
	}

	for _, pt := range snap.PnlTimeline {
		v.Chart.Labels = append(v.Chart.Labels, formatDate(pt.Timestamp, loc))
		v.Chart.Values = append(v.Chart.Values, pt.Value.Float64())
	}
	return v
}

func buildStats(s protocol.Stats) StatsView {
	pnl := s.TotalPnl.String()
	if pnl == "" {
		pnl = "0"
	}
	rate := s.WinRate.String()
	if rate == "" {
		rate = "0"
	}

	out := StatsView{
		TotalPnl:    Field{Label: "Total P&L", Value: pnl + " USDT", Tone: toneOf(s.TotalPnl)},
		WinRate:     Field{Label: "Win rate", Value: rate + "%"},
		TotalTrades: Field{Label: "Trades", Value: strconv.Itoa(s.TotalTrades)},
	}
	if s.WinningTrades != nil {
		out.Extras = append(out.Extras, Field{Label: "Winners", Value: strconv.Itoa(*s.WinningTrades), Tone: TonePositive})
	}
	if s.LosingTrades != nil {
		out.Extras = append(out.Extras, Field{Label: "Losers", Value: strconv.Itoa(*s.LosingTrades), Tone: ToneNegative})
	}
	if s.BestTradePnl != "" {
		out.Extras = append(out.Extras, Field{Label: "Best", Value: s.BestTradePnl.Fixed(2) + " USDT", Tone: toneOf(s.BestTradePnl)})
	}
	if s.WorstTradePnl != "" {
		out.Extras = append(out.Extras, Field{Label: "Worst", Value: s.WorstTradePnl.Fixed(2) + " USDT", Tone: toneOf(s.WorstTradePnl)})
	}
	return out
}

func buildPosition(p protocol.Position) PositionRow {
	sideTone := ToneNegative
	if p.Side == protocol.SideLong {
		sideTone = TonePositive
	}
	return PositionRow{
		Symbol:   p.Symbol,
		Side:     strings.ToUpper(string(p.Side)),
		SideTone: sideTone,
		Pnl:      p.UnrealizedPnl.Fixed(2) + " USDT",
		PnlTone:  toneOf(p.UnrealizedPnl),
		Actions: []ActionRef{
			{Action: ActionReanalyze, Symbol: p.Symbol},
			{Action: ActionClose, Symbol: p.Symbol},
		},
	}
}

// toneOf: 非负为正色，负数为负色，无法解析时中性
func toneOf(n protocol.Number) Tone {
	d, err := n.Decimal()
	if err != nil {
		return ToneNeutral
	}
	if d.Sign() < 0 {
		return ToneNegative
	}
	return TonePositive
}

func formatTime(t protocol.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	return t.Time().In(loc).Format("2006-01-02 15:04:05")
}

func formatDate(t protocol.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.Time().In(loc).Format("2006-01-02")
}
