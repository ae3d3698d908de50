package protocol

import (
	"encoding/json"
	"strings"
)

// Snapshot is the full dashboard state pushed by the server. The newest one
// replaces whatever is displayed.
type Snapshot struct {
	Stats         Stats           `json:"stats"`
	OpenPositions []Position      `json:"open_positions"`
	TradeHistory  []Trade         `json:"trade_history"`
	PnlTimeline   []TimelinePoint `json:"pnl_timeline"`
}

// Stats is the aggregate block. TotalPnl and WinRate keep the server's text.
type Stats struct {
	TotalPnl    Number `json:"total_pnl"`
	WinRate     Number `json:"win_rate"`
	TotalTrades int    `json:"total_trades"`

	WinningTrades *int   `json:"winning_trades,omitempty"`
	LosingTrades  *int   `json:"losing_trades,omitempty"`
	BestTradePnl  Number `json:"best_trade_pnl,omitempty"`
	WorstTradePnl Number `json:"worst_trade_pnl,omitempty"`
}

// Position is one open position row.
type Position struct {
	Symbol        string `json:"symbol"`
	Side          Side   `json:"side"`
	UnrealizedPnl Number `json:"unrealized_pnl"`
}

// Trade is one closed trade.
type Trade struct {
	Symbol   string `json:"symbol"`
	Pnl      Number `json:"pnl"`
	Status   string `json:"status"`
	ClosedAt Time   `json:"closed_at"`
}

// TimelinePoint is one point of the cumulative P&L series.
type TimelinePoint struct {
	Timestamp Time   `json:"timestamp"`
	Value     Number `json:"value"`
}

// Opportunity is a proposed trade awaiting confirmation. The payload it was
// decoded from is kept so confirm_trade can echo it unchanged.
type Opportunity struct {
	Symbol         string `json:"symbol"`
	Recommendation string `json:"recommendation"`
	CurrentPrice   Number `json:"current_price"`
	Reason         string `json:"reason"`
	Timeframe      string `json:"timeframe,omitempty"`

	raw json.RawMessage
}

// ReanalysisResult is the reply to reanalyze_position.
type ReanalysisResult struct {
	Status  string   `json:"status"`
	Data    *Verdict `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Verdict is the reanalysis outcome. Recommendation holds the label as sent
// (for example KAPAT or TUT); Action gives the normalised form.
type Verdict struct {
	Symbol         string `json:"symbol,omitempty"`
	Recommendation string `json:"recommendation"`
	Reason         string `json:"reason"`
}

// Toast is a server-pushed notification.
type Toast struct {
	Message  string   `json:"message"`
	Severity Severity `json:"type"`
}

// ScanStatus reports scan progress.
type ScanStatus struct {
	Message string    `json:"message"`
	State   ScanState `json:"state,omitempty"`
}

// ActionResponse is the body returned by the one-shot endpoints.
type ActionResponse struct {
	Status  Severity `json:"status"`
	Message string   `json:"message"`
}

// fields 用于宽松解码：同时接受 snake_case 和 camelCase 键
type fields map[string]json.RawMessage

func decodeFields(b []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func (f fields) pick(keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := f[k]; ok && len(v) > 0 && string(v) != "null" {
			return v
		}
	}
	return nil
}

func (f fields) str(keys ...string) string {
	raw := f.pick(keys...)
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}

func (f fields) number(keys ...string) Number {
	var n Number
	if raw := f.pick(keys...); raw != nil {
		_ = n.UnmarshalJSON(raw)
	}
	return n
}

func (f fields) integer(keys ...string) (int, bool) {
	d, err := f.number(keys...).Decimal()
	if err != nil {
		return 0, false
	}
	return int(d.IntPart()), true
}

func (f fields) time(keys ...string) Time {
	var t Time
	if raw := f.pick(keys...); raw != nil {
		_ = t.UnmarshalJSON(raw)
	}
	return t
}

// decodeList decodes an array element by element and skips elements that
// fail to decode.
func decodeList[T any](raw json.RawMessage) []T {
	if raw == nil {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// UnmarshalJSON accepts the snake_case keys of the bot and the camelCase keys
// of the web dashboard. Malformed members fall back to zero values.
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	f, err := decodeFields(b)
	if err != nil {
		return err
	}

	var out Snapshot
	if raw := f.pick("stats"); raw != nil {
		_ = json.Unmarshal(raw, &out.Stats)
	}
	out.OpenPositions = decodeList[Position](f.pick("open_positions", "openPositions", "active_positions", "activePositions"))
	out.TradeHistory = decodeList[Trade](f.pick("trade_history", "tradeHistory"))

	timeline := f.pick("pnl_timeline", "pnlTimeline")
	if timeline == nil {
		// /api/data 的旧格式: chart_data.points
		if chart := f.pick("chart_data", "chartData"); chart != nil {
			if cf, err := decodeFields(chart); err == nil {
				timeline = cf.pick("points")
			}
		}
	}
	out.PnlTimeline = decodeList[TimelinePoint](timeline)

	*s = out
	return nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (s *Stats) UnmarshalJSON(b []byte) error {
	f, err := decodeFields(b)
	if err != nil {
		return err
	}
	out := Stats{
		TotalPnl:      f.number("total_pnl", "totalPnl"),
		WinRate:       f.number("win_rate", "winRate"),
		BestTradePnl:  f.number("best_trade_pnl", "bestTradePnl"),
		WorstTradePnl: f.number("worst_trade_pnl", "worstTradePnl"),
	}
	out.TotalTrades, _ = f.integer("total_trades", "totalTrades")
	if v, ok := f.integer("winning_trades", "winningTrades"); ok {
		out.WinningTrades = &v
	}
	if v, ok := f.integer("losing_trades", "losingTrades"); ok {
		out.LosingTrades = &v
	}
	*s = out
	return nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (p *Position) UnmarshalJSON(b []byte) error {
	f, err := decodeFields(b)
	if err != nil {
		return err
	}
	*p = Position{
		Symbol:        f.str("symbol"),
		Side:          ParseSide(f.str("side")),
		UnrealizedPnl: f.number("unrealized_pnl", "unrealizedPnl", "pnl"),
	}
	return nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (t *Trade) UnmarshalJSON(b []byte) error {
	f, err := decodeFields(b)
	if err != nil {
		return err
	}
	*t = Trade{
		Symbol:   f.str("symbol"),
		Pnl:      f.number("pnl"),
		Status:   f.str("status"),
		ClosedAt: f.time("closed_at", "closedAt"),
	}
	return nil
}

// UnmarshalJSON accepts {timestamp, value} and the chart's {x, y}.
func (p *TimelinePoint) UnmarshalJSON(b []byte) error {
	f, err := decodeFields(b)
	if err != nil {
		return err
	}
	*p = TimelinePoint{
		Timestamp: f.time("timestamp", "x", "time"),
		Value:     f.number("value", "y"),
	}
	return nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (o *Opportunity) UnmarshalJSON(b []byte) error {
	f, err := decodeFields(b)
	if err != nil {
		return err
	}
	*o = Opportunity{
		Symbol:         f.str("symbol"),
		Recommendation: f.str("recommendation"),
		CurrentPrice:   f.number("current_price", "currentPrice", "price"),
		Reason:         f.str("reason"),
		Timeframe:      f.str("timeframe"),
		raw:            append(json.RawMessage(nil), b...),
	}
	return nil
}

// MarshalJSON echoes the received payload when there is one.
func (o Opportunity) MarshalJSON() ([]byte, error) {
	if len(o.raw) > 0 {
		return o.raw, nil
	}
	type wire Opportunity
	return json.Marshal(wire(o))
}

// IsBuy reports a long-side proposal (AL / BUY / LONG).
func (o Opportunity) IsBuy() bool {
	switch strings.ToUpper(strings.TrimSpace(o.Recommendation)) {
	case "AL", "BUY", "LONG":
		return true
	}
	return false
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (r *ReanalysisResult) UnmarshalJSON(b []byte) error {
	f, err := decodeFields(b)
	if err != nil {
		return err
	}
	out := ReanalysisResult{
		Status:  f.str("status"),
		Message: f.str("message"),
	}
	if raw := f.pick("data"); raw != nil {
		var v Verdict
		if err := json.Unmarshal(raw, &v); err == nil {
			out.Data = &v
		}
	}
	*r = out
	return nil
}

// OK reports a successful result that carries a verdict.
func (r ReanalysisResult) OK() bool {
	return strings.EqualFold(strings.TrimSpace(r.Status), "success") && r.Data != nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (v *Verdict) UnmarshalJSON(b []byte) error {
	f, err := decodeFields(b)
	if err != nil {
		return err
	}
	*v = Verdict{
		Symbol:         f.str("symbol"),
		Recommendation: strings.TrimSpace(f.str("recommendation")),
		Reason:         f.str("reason"),
	}
	return nil
}

// Action is the normalised recommendation.
func (v Verdict) Action() Recommendation {
	return ParseRecommendation(v.Recommendation)
}

// UnmarshalJSON accepts the severity under type, severity or status.
func (t *Toast) UnmarshalJSON(b []byte) error {
	f, err := decodeFields(b)
	if err != nil {
		return err
	}
	*t = Toast{
		Message:  f.str("message"),
		Severity: ParseSeverity(f.str("type", "severity", "status")),
	}
	return nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (s *ScanStatus) UnmarshalJSON(b []byte) error {
	f, err := decodeFields(b)
	if err != nil {
		return err
	}
	*s = ScanStatus{
		Message: f.str("message"),
		State:   ParseScanState(f.str("state", "status")),
	}
	return nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (r *ActionResponse) UnmarshalJSON(b []byte) error {
	f, err := decodeFields(b)
	if err != nil {
		return err
	}
	*r = ActionResponse{
		Status:  ParseSeverity(f.str("status")),
		Message: f.str("message"),
	}
	return nil
}
