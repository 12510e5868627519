package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long one subscriber's socket may block a publish.
// A viewer that cannot drain within this window is dropped rather than
// allowed to stall token delivery to everyone else.
const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The chat page is served from a different origin than the API in
	// development; access control happens at join time via the passcode.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub is a topic-keyed websocket fan-out. Subscribers attach to a topic (the
// conversation passcode); Publish writes the payload to every subscriber
// currently attached.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*subscriber]struct{}
	logger *slog.Logger
}

type subscriber struct {
	conn *websocket.Conn
	// writeMu serializes writes; gorilla connections allow one writer at a time.
	writeMu sync.Mutex
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		topics: make(map[string]map[*subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe upgrades the request to a websocket and attaches it to topic.
// It blocks until the client disconnects.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, topic string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade failed: %w", err)
	}

	sub := &subscriber{conn: conn}
	h.attach(topic, sub)
	h.logger.Debug("subscriber attached", "topic", topic)

	defer func() {
		h.detach(topic, sub)
		conn.Close()
		h.logger.Debug("subscriber detached", "topic", topic)
	}()

	// Drain the read side: subscribers only listen, but reads are how the
	// peer's close frames and disconnects surface.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

// Publish sends payload to every current subscriber of topic. Subscribers
// whose writes fail are dropped. Publishing to an empty topic succeeds.
func (h *Hub) Publish(ctx context.Context, topic string, payload []byte) error {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.topics[topic]))
	for s := range h.topics[topic] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := s.conn.WriteMessage(websocket.TextMessage, payload)
		s.writeMu.Unlock()
		if err != nil {
			h.logger.Warn("dropping subscriber after failed write", "topic", topic, "error", err)
			h.detach(topic, s)
			s.conn.Close()
		}
	}
	return nil
}

// SubscriberCount returns how many connections are attached to topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) attach(topic string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*subscriber]struct{})
	}
	h.topics[topic][s] = struct{}{}
}

func (h *Hub) detach(topic string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.topics[topic], s)
	if len(h.topics[topic]) == 0 {
		delete(h.topics, topic)
	}
}

var _ Notifier = (*Hub)(nil)
