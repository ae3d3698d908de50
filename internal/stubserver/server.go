// Package stubserver is a development bot that speaks the dashboard
// protocol: it serves snapshots from SQLite, simulates scans and answers
// the one-shot HTTP actions.
package stubserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/betbot/tradedash/internal/protocol"
)

var log = logrus.WithField("module", "stubserver")

// Config represents configuration for the stub server
type Config struct {
	DBPath            string
	BroadcastInterval time.Duration // <= 0 关闭定时推送
	ScanStepDelay     time.Duration
	Seed              bool
}

// DefaultConfig returns a default server configuration
func DefaultConfig() Config {
	return Config{
		DBPath:            "data/trades.db",
		BroadcastInterval: 5 * time.Second,
		ScanStepDelay:     1500 * time.Millisecond,
		Seed:              true,
	}
}

// Server wires the store, the websocket hub and the scheduler.
type Server struct {
	cfg   Config
	store *Store
	hub   *Hub
	cron  *cron.Cron

	scanMu   sync.Mutex
	scanning bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens the store (seeding it if asked) and prepares the server.
func New(cfg Config) (*Server, error) {
	def := DefaultConfig()
	if cfg.DBPath == "" {
		cfg.DBPath = def.DBPath
	}
	if cfg.ScanStepDelay <= 0 {
		cfg.ScanStepDelay = def.ScanStepDelay
	}

	store, err := OpenStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if cfg.Seed {
		if err := store.Seed(context.Background()); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		store:  store,
		hub:    NewHub(),
		cron:   cron.New(),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Store exposes the underlying store.
func (s *Server) Store() *Store { return s.store }

// Hub exposes the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start schedules the periodic snapshot broadcast.
func (s *Server) Start() error {
	if s.cfg.BroadcastInterval > 0 {
		spec := fmt.Sprintf("@every %s", s.cfg.BroadcastInterval)
		if _, err := s.cron.AddFunc(spec, s.broadcastSnapshot); err != nil {
			return fmt.Errorf("schedule broadcast: %w", err)
		}
	}
	s.cron.Start()
	log.Infof("stub server started, broadcast every %s", s.cfg.BroadcastInterval)
	return nil
}

// Close stops background work, disconnects peers and closes the store.
func (s *Server) Close() error {
	<-s.cron.Stop().Done()
	s.cancel()
	s.hub.CloseAll()
	s.wg.Wait()
	return s.store.Close()
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/ws", s.handleWS)

	api := r.Group("/api")
	api.GET("/data", s.handleData)
	api.POST("/close-position", s.handleClosePosition)
	api.POST("/new-analysis", s.handleNewAnalysis)
	return r
}

func (s *Server) broadcastSnapshot() {
	if s.hub.Len() == 0 {
		return
	}
	snap, err := s.store.Snapshot(s.ctx)
	if err != nil {
		log.Errorf("build snapshot: %v", err)
		return
	}
	s.hub.Broadcast(protocol.EventDashboardData, snap)
}

func (s *Server) handleData(c *gin.Context) {
	snap, err := s.store.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func reply(c *gin.Context, code int, status protocol.Severity, message string) {
	c.JSON(code, protocol.ActionResponse{Status: status, Message: message})
}

func (s *Server) handleClosePosition(c *gin.Context) {
	var req protocol.SymbolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		reply(c, http.StatusBadRequest, protocol.SeverityError, "Invalid request body.")
		return
	}
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		reply(c, http.StatusBadRequest, protocol.SeverityError, "Symbol is required.")
		return
	}

	trade, err := s.store.ClosePosition(c.Request.Context(), symbol, "CLOSED_MANUAL")
	if errors.Is(err, ErrPositionNotFound) {
		reply(c, http.StatusNotFound, protocol.SeverityError, fmt.Sprintf("No open position for %s.", symbol))
		return
	}
	if err != nil {
		log.Errorf("close %s: %v", symbol, err)
		reply(c, http.StatusInternalServerError, protocol.SeverityError, "Could not close position.")
		return
	}

	log.Infof("closed %s pnl=%s", symbol, trade.Pnl.StringFixed(2))
	s.broadcastSnapshot()
	reply(c, http.StatusOK, protocol.SeveritySuccess,
		fmt.Sprintf("%s position closed. P&L: %s USDT", symbol, trade.Pnl.StringFixed(2)))
}

func (s *Server) handleNewAnalysis(c *gin.Context) {
	var req protocol.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		reply(c, http.StatusBadRequest, protocol.SeverityError, "Invalid request body.")
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	timeframe := strings.TrimSpace(req.Timeframe)
	if symbol == "" || timeframe == "" {
		reply(c, http.StatusBadRequest, protocol.SeverityError, "Symbol and timeframe are required.")
		return
	}
	if _, err := s.store.GetPosition(c.Request.Context(), symbol); err == nil {
		reply(c, http.StatusOK, protocol.SeverityInfo, fmt.Sprintf("%s already has an open position.", symbol))
		return
	}

	s.goBackground(func(ctx context.Context) {
		if !s.sleep(ctx, s.cfg.ScanStepDelay) {
			return
		}
		s.hub.Broadcast(protocol.EventNewOpportunity, proposal(symbol, timeframe))
	})
	reply(c, http.StatusOK, protocol.SeveritySuccess, fmt.Sprintf("Analysis for %s (%s) started.", symbol, timeframe))
}

func (s *Server) goBackground(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

func (s *Server) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
