package www

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Listener is a websocket connection that wants quote summaries, either
// for one industry or, when industry is empty, for all of them.
type Listener struct {
	logger   *slog.Logger
	hub      *Hub
	conn     *ws.Conn
	send     chan []byte
	industry string
}

func NewListener(hub *Hub, w http.ResponseWriter, r *http.Request) (*Listener, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	industry := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("industry")))
	l := &Listener{
		logger: hub.logger.With(
			slog.String("remoteAddr", r.RemoteAddr),
			slog.String("industry", industry)),
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		industry: industry,
	}
	go l.readPump()
	return l, nil
}

func (l *Listener) wants(industry string) bool {
	return l.industry == "" || strings.EqualFold(l.industry, industry)
}

// readPump only keeps the connection alive. Anything the browser sends is
// discarded.
func (l *Listener) readPump() {
	defer l.hub.leave(l)

	l.conn.SetReadLimit(maxMessageSize)
	if err := l.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := l.conn.ReadMessage(); err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				l.logger.Debug("listener went away", slog.Any("error", err))
			}
			return
		}
	}
}

func (l *Listener) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		l.hub.leave(l)
		l.conn.Close()
	}()

	for {
		var (
			kind    int
			payload []byte
		)
		select {
		case summary, ok := <-l.send:
			if !ok {
				kind = ws.CloseMessage
				payload = ws.FormatCloseMessage(ws.CloseGoingAway, "server stopping")
			} else {
				kind, payload = ws.TextMessage, summary
			}
		case <-ticker.C:
			kind = ws.PingMessage
		}

		if err := l.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			l.logger.Warn("setting write deadline failed", slog.Any("error", err))
			return
		}
		if err := l.conn.WriteMessage(kind, payload); err != nil {
			l.logger.Debug("writing to listener failed", slog.Int("kind", kind), slog.Any("error", err))
			return
		}
		if kind == ws.CloseMessage {
			return
		}
	}
}

type summaryMessage struct {
	industry string
	payload  []byte
}

// Hub fans encoded quote summaries out to the listeners that want them.
// A listener that cannot keep up misses summaries rather than stalling
// the others.
type Hub struct {
	logger    *slog.Logger
	summaries chan summaryMessage
	joins     chan *Listener
	leaves    chan *Listener

	mu        sync.Mutex
	listeners map[*Listener]struct{}

	done     chan struct{}
	stopOnce sync.Once
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:    logger,
		summaries: make(chan summaryMessage),
		joins:     make(chan *Listener),
		leaves:    make(chan *Listener),
		listeners: make(map[*Listener]struct{}),
		done:      make(chan struct{}),
	}
}

// Send queues a summary for the listeners of industry. It reports false
// once the hub has stopped.
func (h *Hub) Send(industry string, payload []byte) bool {
	select {
	case h.summaries <- summaryMessage{industry: industry, payload: payload}:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) join(l *Listener) bool {
	select {
	case h.joins <- l:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(l *Listener) {
	select {
	case h.leaves <- l:
	case <-h.done:
	}
}

// Stop ends Run and says goodbye to every listener.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for l := range h.listeners {
				delete(h.listeners, l)
				close(l.send)
			}
			h.mu.Unlock()
			return

		case l := <-h.joins:
			h.mu.Lock()
			h.listeners[l] = struct{}{}
			n := len(h.listeners)
			h.mu.Unlock()
			l.logger.Debug("listener joined", slog.Int("listeners", n))

		case l := <-h.leaves:
			h.mu.Lock()
			if _, ok := h.listeners[l]; ok {
				delete(h.listeners, l)
				close(l.send)
			}
			h.mu.Unlock()

		case msg := <-h.summaries:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg summaryMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for l := range h.listeners {
		if !l.wants(msg.industry) {
			continue
		}
		select {
		case l.send <- msg.payload:
		default:
			l.logger.Warn("listener is behind, summary dropped")
		}
	}
}
