package stubserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/betbot/tradedash/internal/protocol"
)

// 模拟扫描时依次检查的交易对
var scanUniverse = []string{"BTC/USDT", "ETH/USDT", "SOL/USDT", "BNB/USDT", "XRP/USDT", "ADA/USDT"}

var referencePrices = map[string]string{
	"BTC/USDT": "65000",
	"ETH/USDT": "3150",
	"SOL/USDT": "142.5",
	"BNB/USDT": "585",
	"XRP/USDT": "0.52",
	"ADA/USDT": "0.61",
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("ws upgrade: %v", err)
		return
	}
	p := s.hub.add(conn)
	defer s.hub.remove(p)
	log.Infof("dashboard connected from %s (%d online)", c.Request.RemoteAddr, s.hub.Len())

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugf("ws read: %v", err)
			}
			return
		}
		if string(frame) == "PING" {
			_ = p.write([]byte("PONG"))
			continue
		}
		if protocol.IsHeartbeat(frame) {
			continue
		}
		env, err := protocol.Decode(frame)
		if err != nil {
			log.Warnf("bad frame: %v", err)
			continue
		}
		s.handleCommand(p, env)
	}
}

func (s *Server) handleCommand(p *peer, env protocol.Envelope) {
	var err error
	switch env.Event {
	case protocol.CmdRequestDashboardData:
		err = s.sendSnapshot(p)
	case protocol.CmdStartScan:
		err = s.startScan(p)
	case protocol.CmdConfirmTrade:
		s.confirmTrade(env.Data)
	case protocol.CmdReanalyzePosition:
		err = s.reanalyze(p, env.Data)
	default:
		log.Warnf("unknown command %q", env.Event)
	}
	if err != nil {
		log.Warnf("%s: %v", env.Event, err)
	}
}

func (s *Server) sendSnapshot(p *peer) error {
	snap, err := s.store.Snapshot(s.ctx)
	if err != nil {
		return err
	}
	return p.Send(protocol.EventDashboardData, snap)
}

// startScan runs one simulated scan. Only one scan runs at a time.
func (s *Server) startScan(p *peer) error {
	s.scanMu.Lock()
	if s.scanning {
		s.scanMu.Unlock()
		return p.Send(protocol.EventScanStatus, protocol.ScanStatus{
			Message: "A scan is already running.",
			State:   protocol.ScanInProgress,
		})
	}
	s.scanning = true
	s.scanMu.Unlock()

	scanID := uuid.NewString()
	log.Infof("scan %s started", scanID)
	s.goBackground(func(ctx context.Context) {
		defer func() {
			s.scanMu.Lock()
			s.scanning = false
			s.scanMu.Unlock()
		}()
		s.runScan(ctx, scanID)
	})
	return nil
}

func (s *Server) runScan(ctx context.Context, scanID string) {
	s.hub.Broadcast(protocol.EventScanStatus, protocol.ScanStatus{Message: "Starting scan...", State: protocol.ScanStarting})
	if !s.sleep(ctx, s.cfg.ScanStepDelay) {
		return
	}
	s.hub.Broadcast(protocol.EventScanStatus, protocol.ScanStatus{
		Message: fmt.Sprintf("Scanning %d markets...", len(scanUniverse)),
		State:   protocol.ScanInProgress,
	})
	if !s.sleep(ctx, s.cfg.ScanStepDelay) {
		return
	}

	symbol, err := s.pickCandidate(ctx)
	if err != nil {
		log.Errorf("scan %s: %v", scanID, err)
		s.hub.Broadcast(protocol.EventScanStatus, protocol.ScanStatus{Message: "Scan failed.", State: protocol.ScanFailed})
		return
	}
	if symbol == "" {
		s.hub.Broadcast(protocol.EventScanStatus, protocol.ScanStatus{Message: "Scan completed. No opportunities found.", State: protocol.ScanCompleted})
		return
	}
	s.hub.Broadcast(protocol.EventNewOpportunity, proposal(symbol, "1h"))
	s.hub.Broadcast(protocol.EventScanStatus, protocol.ScanStatus{Message: "Scan completed. 1 opportunity found.", State: protocol.ScanCompleted})
	log.Infof("scan %s proposed %s", scanID, symbol)
}

// pickCandidate returns the first symbol without an open position.
func (s *Server) pickCandidate(ctx context.Context) (string, error) {
	positions, err := s.store.ListPositions(ctx)
	if err != nil {
		return "", err
	}
	open := make(map[string]bool, len(positions))
	for _, p := range positions {
		open[p.Symbol] = true
	}
	for _, symbol := range scanUniverse {
		if !open[symbol] {
			return symbol, nil
		}
	}
	return "", nil
}

// proposal builds a new_opportunity payload. The id field is not part of
// the dashboard model; it comes back unchanged in confirm_trade.
func proposal(symbol, timeframe string) json.RawMessage {
	price := referencePrices[symbol]
	if price == "" {
		price = "1"
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"id":             uuid.NewString(),
		"symbol":         symbol,
		"recommendation": "AL",
		"current_price":  json.Number(price),
		"timeframe":      timeframe,
		"reason":         fmt.Sprintf("%s broke above its %s range with rising volume.", symbol, timeframe),
	})
	return raw
}

type confirmPayload struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Recommendation string          `json:"recommendation"`
	CurrentPrice   protocol.Number `json:"current_price"`
	Timeframe      string          `json:"timeframe"`
}

// confirmTrade opens the proposed position and tells every dashboard.
func (s *Server) confirmTrade(data json.RawMessage) {
	var req confirmPayload
	if err := json.Unmarshal(data, &req); err != nil || strings.TrimSpace(req.Symbol) == "" {
		s.hub.Broadcast(protocol.EventToast, protocol.Toast{Message: "Invalid trade confirmation.", Severity: protocol.SeverityError})
		return
	}

	side := "sell"
	if (protocol.Opportunity{Recommendation: req.Recommendation}).IsBuy() {
		side = "buy"
	}
	price, err := req.CurrentPrice.Decimal()
	if err != nil {
		price = decimal.Zero
	}
	timeframe := req.Timeframe
	if timeframe == "" {
		timeframe = "1h"
	}

	err = s.store.AddPosition(s.ctx, PositionRecord{
		Symbol:     req.Symbol,
		Side:       side,
		Amount:     decimal.NewFromInt(1),
		EntryPrice: price,
		Timeframe:  timeframe,
	})
	switch {
	case errors.Is(err, ErrPositionExists):
		s.hub.Broadcast(protocol.EventToast, protocol.Toast{Message: fmt.Sprintf("%s already has an open position.", req.Symbol), Severity: protocol.SeverityInfo})
		return
	case err != nil:
		log.Errorf("open %s: %v", req.Symbol, err)
		s.hub.Broadcast(protocol.EventToast, protocol.Toast{Message: fmt.Sprintf("Could not open %s.", req.Symbol), Severity: protocol.SeverityError})
		return
	}

	log.Infof("opened %s %s at %s (proposal %s)", side, req.Symbol, price, req.ID)
	s.hub.Broadcast(protocol.EventToast, protocol.Toast{Message: fmt.Sprintf("%s position opened.", req.Symbol), Severity: protocol.SeveritySuccess})
	s.broadcastSnapshot()
}

type reanalysisReply struct {
	Status  string            `json:"status"`
	Data    *protocol.Verdict `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
}

// reanalyze answers the requester: losing positions get KAPAT, others TUT.
func (s *Server) reanalyze(p *peer, data json.RawMessage) error {
	var req protocol.SymbolRequest
	_ = json.Unmarshal(data, &req)
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		return p.Send(protocol.EventReanalysisResult, reanalysisReply{Status: "error", Message: "Symbol is required."})
	}

	pos, err := s.store.GetPosition(s.ctx, symbol)
	if errors.Is(err, ErrPositionNotFound) {
		return p.Send(protocol.EventReanalysisResult, reanalysisReply{Status: "error", Message: fmt.Sprintf("No open position for %s.", symbol)})
	}
	if err != nil {
		return err
	}

	verdict := protocol.Verdict{
		Symbol:         pos.Symbol,
		Recommendation: "TUT",
		Reason:         fmt.Sprintf("%s is in profit (%s USDT); the trend is intact.", pos.Symbol, pos.UnrealizedPnl.StringFixed(2)),
	}
	if pos.UnrealizedPnl.IsNegative() {
		verdict.Recommendation = "KAPAT"
		verdict.Reason = fmt.Sprintf("%s is losing %s USDT and momentum has turned.", pos.Symbol, pos.UnrealizedPnl.Abs().StringFixed(2))
	}
	return p.Send(protocol.EventReanalysisResult, reanalysisReply{Status: "success", Data: &verdict})
}
