package stubserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"

	"github.com/betbot/tradedash/internal/protocol"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// peer is one connected dashboard.
type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) write(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(websocket.TextMessage, frame)
}

// Send writes one event to this peer only.
func (p *peer) Send(event string, payload interface{}) error {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	return pkgerrors.Wrapf(p.write(frame), "send %s", event)
}

// Hub tracks connected dashboards and fans events out to them.
type Hub struct {
	mu    sync.RWMutex
	peers map[*peer]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{peers: make(map[*peer]struct{})}
}

func (h *Hub) add(conn *websocket.Conn) *peer {
	p := &peer{conn: conn}
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
	return p
}

func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
	_ = p.conn.Close()
}

// Len is the number of connected peers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Broadcast sends one event to every peer. Peers that fail are dropped.
func (h *Hub) Broadcast(event string, payload interface{}) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		log.Errorf("encode %s: %v", event, err)
		return
	}

	h.mu.RLock()
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		if err := p.write(frame); err != nil {
			log.Warnf("broadcast %s failed, dropping peer: %v", event, err)
			h.remove(p)
		}
	}
}

// CloseAll disconnects every peer.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[*peer]struct{})
	h.mu.Unlock()
	for p := range peers {
		_ = p.conn.Close()
	}
}
