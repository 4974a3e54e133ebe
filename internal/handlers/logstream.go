package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"devdash/internal/models"
	"devdash/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// maxPending bounds the outbox of a client that stopped reading.
	maxPending = 8192
)

// LogSource is what the gateway needs from the supervisor.
type LogSource interface {
	Logs(id string, count int) []models.LogEntry
	SubscribeLogs(fn service.Subscriber) (unsubscribe func())
}

// directive is a client to server message.
type directive struct {
	Type      string `json:"type"`
	ProcessID string `json:"processId"`
}

// StreamMessage is a server to client message.
type StreamMessage struct {
	Type      string           `json:"type"`
	ProcessID string           `json:"processId,omitempty"`
	Entry     *models.LogEntry `json:"entry,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// LogStream serves the /logs WebSocket. Each connection subscribes to
// process ids and receives their retained history followed by live lines.
type LogStream struct {
	source   LogSource
	upgrader websocket.Upgrader
	logger   *log.Logger
}

func NewLogStream(source LogSource, allowedOrigins []string, logger *log.Logger) *LogStream {
	if logger == nil {
		logger = log.Default()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &LogStream{
		source: source,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed[origin] {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				host := u.Hostname()
				return host == "localhost" || host == "127.0.0.1" || host == "::1"
			},
		},
	}
}

// session is one connected client.
type session struct {
	id     string
	conn   *websocket.Conn
	logger *log.Logger
	source LogSource

	// mu guards subs and outbox. subs maps a subscribed process id to the
	// sequence number of the last entry queued for it.
	mu     sync.Mutex
	subs   map[string]uint64
	outbox [][]byte

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (ls *LogStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ls.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ls.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s := &session{
		id:     uuid.NewString(),
		conn:   conn,
		logger: ls.logger,
		source: ls.source,
		subs:   make(map[string]uint64),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	// Subscribe before reading any directive so nothing published after a
	// replay snapshot can be missed.
	unsubscribe := ls.source.SubscribeLogs(s.deliver)

	ls.logger.Debug("client connected", "session", s.id, "remote", r.RemoteAddr)
	go s.writePump()
	go func() {
		s.readPump()
		unsubscribe()
		s.close()
		ls.logger.Debug("client disconnected", "session", s.id)
	}()
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// queue appends msgs to the outbox. Caller holds s.mu.
func (s *session) queue(msgs ...[]byte) {
	select {
	case <-s.done:
		return
	default:
	}
	if len(s.outbox)+len(msgs) > maxPending {
		s.logger.Warn("client too slow, closing", "session", s.id, "pending", len(s.outbox))
		s.outbox = nil
		s.close()
		return
	}
	s.outbox = append(s.outbox, msgs...)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session) encode(msg StreamMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("marshal stream message", "session", s.id, "error", err)
		return nil
	}
	return data
}

func (s *session) logMessage(processID string, entry models.LogEntry) []byte {
	return s.encode(StreamMessage{Type: "log", ProcessID: processID, Entry: &entry})
}

// deliver is the live subscriber. Entries at or below the last queued
// sequence for the process were already sent by a replay.
func (s *session) deliver(processID string, entry models.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.subs[processID]
	if !ok || entry.Seq <= last {
		return
	}
	s.subs[processID] = entry.Seq
	if msg := s.logMessage(processID, entry); msg != nil {
		s.queue(msg)
	}
}

func (s *session) subscribe(processID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.source.Logs(processID, 0)
	last := s.subs[processID]
	msgs := make([][]byte, 0, len(history))
	for _, entry := range history {
		if msg := s.logMessage(processID, entry); msg != nil {
			msgs = append(msgs, msg)
		}
		if entry.Seq > last {
			last = entry.Seq
		}
	}
	s.subs[processID] = last
	s.queue(msgs...)
	s.logger.Debug("subscribed", "session", s.id, "process", processID, "replayed", len(history))
}

func (s *session) unsubscribe(processID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, processID)
}

func (s *session) sendError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg := s.encode(StreamMessage{Type: "error", Message: message}); msg != nil {
		s.queue(msg)
	}
}

func (s *session) readPump() {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "session", s.id, "error", err)
			}
			return
		}

		var d directive
		if err := json.Unmarshal(data, &d); err != nil {
			s.sendError("malformed message: " + err.Error())
			continue
		}
		if d.ProcessID == "" {
			s.sendError("processId required")
			continue
		}

		switch d.Type {
		case "subscribe":
			s.subscribe(d.ProcessID)
		case "unsubscribe":
			s.unsubscribe(d.ProcessID)
		default:
			s.sendError("unknown message type: " + d.Type)
		}
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			return

		case <-s.wake:
			s.mu.Lock()
			batch := s.outbox
			s.outbox = nil
			s.mu.Unlock()

			for _, msg := range batch {
				s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
