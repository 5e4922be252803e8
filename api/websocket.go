package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; CORS governs the REST surface
	},
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Per-client send buffer; a run emits well under this many events.
	sendBuffer = 64
)

// WebSocket message types.
const (
	MsgProgress = "progress"
	MsgComplete = "complete"
	MsgError    = "error"
	MsgPong     = "pong"
)

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ============================================================
// Hub
// ============================================================

// Hub fans each run's events out to that run's subscribers. Events are
// kept until the run finishes so late subscribers get a replay.
type Hub struct {
	mu   sync.Mutex
	runs map[string]*runTopic
}

type runTopic struct {
	backlog []WSMessage
	subs    map[*WSClient]struct{}
}

// WSClient is one subscriber's outbound queue.
type WSClient struct {
	send   chan WSMessage
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{runs: make(map[string]*runTopic)}
}

// Open starts accepting events and subscribers for runID.
func (h *Hub) Open(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.runs[runID]; !ok {
		h.runs[runID] = &runTopic{subs: make(map[*WSClient]struct{})}
	}
}

// Publish queues msg for every subscriber of runID. A subscriber whose
// buffer is full is disconnected.
func (h *Hub) Publish(runID string, msg WSMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.runs[runID]
	if !ok {
		return
	}
	t.backlog = append(t.backlog, msg)
	for c := range t.subs {
		select {
		case c.send <- msg:
		default:
			delete(t.subs, c)
			h.closeLocked(c)
		}
	}
}

// Finish publishes the terminal msg, disconnects all subscribers of runID
// and forgets the run.
func (h *Hub) Finish(runID string, msg WSMessage) {
	h.Publish(runID, msg)
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.runs[runID]; ok {
		for c := range t.subs {
			h.closeLocked(c)
		}
		delete(h.runs, runID)
	}
}

// Subscribe registers a client for runID, preloaded with the events so far.
// It reports false when the run is not live.
func (h *Hub) Subscribe(runID string) (*WSClient, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.runs[runID]
	if !ok {
		return nil, false
	}
	c := &WSClient{send: make(chan WSMessage, max(sendBuffer, len(t.backlog)+sendBuffer))}
	for _, m := range t.backlog {
		c.send <- m
	}
	t.subs[c] = struct{}{}
	return c, true
}

// Unsubscribe removes c from runID.
func (h *Hub) Unsubscribe(runID string, c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.runs[runID]; ok {
		delete(t.subs, c)
	}
	h.closeLocked(c)
}

// Send queues msg to a single client unless it is closed or full.
func (h *Hub) Send(c *WSClient, msg WSMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// SubscriberCount returns the number of live subscribers of runID.
func (h *Hub) SubscriberCount(runID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.runs[runID]; ok {
		return len(t.subs)
	}
	return 0
}

func (h *Hub) closeLocked(c *WSClient) {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// finishedClient is a closed client carrying only msg, for runs that ended
// before the subscriber connected.
func finishedClient(msg WSMessage) *WSClient {
	c := &WSClient{send: make(chan WSMessage, 1), closed: true}
	c.send <- msg
	close(c.send)
	return c
}

// ============================================================
// Handler
// ============================================================

// handlePipelineWS streams one run's progress events, ending with a
// complete or error message.
func (s *Server) handlePipelineWS(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rr, err := s.runs.Get(runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client, live := s.hub.Subscribe(runID)
	if !live {
		// Finished between the lookup and the upgrade, or long before.
		if latest, err := s.runs.Get(runID); err == nil {
			rr = latest
		}
		client = finishedClient(terminalMessage(rr))
	}

	go wsWritePump(conn, client, s.log)
	go wsReadPump(conn, client, s.hub, runID, s.log)
}

// wsReadPump drains the connection, answering pings, until the peer goes away.
func wsReadPump(conn *websocket.Conn, client *WSClient, hub *Hub, runID string, log *zap.Logger) {
	defer func() {
		hub.Unsubscribe(runID, client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read", zap.String("run_id", runID), zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			hub.Send(client, WSMessage{Type: MsgPong})
		}
	}
}

// wsWritePump writes queued messages to the connection and closes it once
// the client's queue is closed.
func wsWritePump(conn *websocket.Conn, client *WSClient, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				log.Error("websocket marshal", zap.Error(err))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
