// Package session manages the persistent channel to the trading bot: it
// connects, reconnects, decodes inbound events into UI messages and writes
// outbound commands.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/betbot/tradedash/internal/protocol"
)

var log = logrus.WithField("module", "session")

// ErrNotConnected is returned by Send while the channel is down.
var ErrNotConnected = errors.New("channel is not connected")

// Config represents configuration for the session client
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration

	Reconnect         bool
	ReconnectDelay    time.Duration // 线性退避的基数
	MaxReconnectDelay time.Duration // 退避上限
	// MaxReconnectAttempts 连续重连失败的上限，0 表示不限
	MaxReconnectAttempts int

	EventBuffer int
}

// DefaultConfig returns a default client configuration
func DefaultConfig() *Config {
	return &Config{
		URL:               "ws://127.0.0.1:5001/ws",
		HandshakeTimeout:  10 * time.Second,
		PingInterval:      10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       60 * time.Second,
		Reconnect:         true,
		ReconnectDelay:    2 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		EventBuffer:       256,
	}
}

// Client owns one websocket connection at a time.
type Client struct {
	cfg        Config
	dialer     *websocket.Dialer
	dispatcher *Dispatcher
	limiter    *rate.Limiter
	events     chan tea.Msg

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	writeMu   sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// NewClient creates a client. A nil config uses DefaultConfig and a nil
// dispatcher uses NewDispatcher.
func NewClient(config *Config, dispatcher *Dispatcher) *Client {
	def := DefaultConfig()
	if config == nil {
		config = def
	}
	cfg := *config
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = 0
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	if dispatcher == nil {
		dispatcher = NewDispatcher()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:        cfg,
		dialer:     &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		dispatcher: dispatcher,
		limiter:    rate.NewLimiter(rate.Every(cfg.ReconnectDelay), 1),
		events:     make(chan tea.Msg, cfg.EventBuffer),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Events is the stream of UI messages. It is closed when the client stops.
func (c *Client) Events() <-chan tea.Msg {
	return c.events
}

// Start begins connecting in the background. Later calls do nothing.
func (c *Client) Start() {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.supervise()
	})
}

// Close stops reconnecting and closes the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.conn != nil {
			err = c.conn.Close()
		}
		c.mu.Unlock()

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			log.Warn("等待 goroutine 退出超时（3秒），继续关闭")
		}
	})
	return err
}

// IsConnected returns whether the channel is currently up
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Send writes one command frame. It never buffers: while the channel is
// down it returns ErrNotConnected.
func (c *Client) Send(event string, payload interface{}) error {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}

	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		// 写失败时关闭连接，读循环退出后进入重连流程
		_ = conn.Close()
		return pkgerrors.Wrapf(err, "send %s", event)
	}
	log.Debugf("sent %s", event)
	return nil
}

func (c *Client) supervise() {
	defer c.wg.Done()
	defer close(c.events)

	attempt := 0
	everConnected := false
	announced := false
	for {
		if c.ctx.Err() != nil {
			return
		}
		if attempt > 0 {
			if c.cfg.MaxReconnectAttempts > 0 && attempt > c.cfg.MaxReconnectAttempts {
				log.Errorf("重连失败次数达到上限 (%d)，放弃", c.cfg.MaxReconnectAttempts)
				c.publish(ReconnectFailedMsg{Attempts: attempt - 1})
				return
			}
			if !c.sleep(c.backoff(attempt)) {
				return
			}
			if err := c.limiter.Wait(c.ctx); err != nil {
				return
			}
			log.Infof("Attempting to reconnect (%d)...", attempt)
		}

		conn, err := c.dial()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			log.Warnf("connect failed: %v", err)
			if !announced {
				c.publish(DisconnectedMsg{Err: err, Dropped: everConnected})
				announced = true
			}
			if !c.cfg.Reconnect {
				return
			}
			attempt++
			continue
		}

		attempt = 0
		announced = false
		c.setConn(conn)
		log.Infof("connected to %s", c.cfg.URL)
		c.publish(ConnectedMsg{Reconnected: everConnected})
		everConnected = true

		// 建立连接后立即请求完整快照
		if err := c.Send(protocol.CmdRequestDashboardData, nil); err != nil {
			log.Warnf("request snapshot: %v", err)
		}

		err = c.serve(conn)
		c.clearConn(conn)
		if c.ctx.Err() != nil {
			return
		}
		log.Warnf("connection lost: %v", err)
		c.publish(DisconnectedMsg{Err: err, Dropped: true})
		announced = true
		if !c.cfg.Reconnect {
			return
		}
		attempt = 1
	}
}

// backoff is linear in attempt and capped at MaxReconnectDelay.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.ReconnectDelay * time.Duration(attempt)
	if d > c.cfg.MaxReconnectDelay {
		d = c.cfg.MaxReconnectDelay
	}
	return d
}

func (c *Client) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Client) dial() (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.HandshakeTimeout)
	defer cancel()
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "dial %s", c.cfg.URL)
	}
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.connected = true
}

func (c *Client) clearConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connected = false
}

// serve runs the read and ping loops for conn and returns when it fails.
func (c *Client) serve(conn *websocket.Conn) error {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.pingLoop(conn, done)
	}()

	err := c.readLoop(conn)
	close(done)
	_ = conn.Close()
	wg.Wait()
	return err
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	extend := func() {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		extend()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		// 兼容服务器的文本心跳
		trimmed := strings.TrimSpace(string(data))
		if trimmed == "PING" {
			c.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			_ = conn.WriteMessage(websocket.TextMessage, []byte("PONG"))
			c.writeMu.Unlock()
			continue
		}
		if protocol.IsHeartbeat(data) {
			continue
		}

		env, err := protocol.Decode(data)
		if err != nil {
			log.Warnf("drop undecodable frame: %v (len=%d)", err, len(data))
			continue
		}
		msg, err := c.dispatcher.Dispatch(env)
		if err != nil {
			log.Warnf("drop %s: %v", env.Event, err)
			continue
		}
		c.publish(msg)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Warnf("Failed to send ping: %v", err)
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Client) publish(msg tea.Msg) {
	select {
	case c.events <- msg:
	case <-c.ctx.Done():
	}
}
