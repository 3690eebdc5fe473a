package routes

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"yieldpool/core"
)

const (
	wsWriteTimeout   = 5 * time.Second
	streamBufferSize = 64
)

// Hub fans committed receipts out to websocket subscribers. It is registered
// with the node as a receipt subscriber; slow clients are disconnected
// rather than allowed to hold up commits.
type Hub struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
	logger  *slog.Logger
}

type streamClient struct {
	ops     map[string]struct{}
	updates chan *core.Receipt
	dropped chan struct{}
	once    sync.Once
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[*streamClient]struct{}), logger: logger}
}

// Publish implements core.Subscriber.
func (h *Hub) Publish(_ context.Context, receipt *core.Receipt) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if len(client.ops) > 0 {
			if _, ok := client.ops[receipt.Operation]; !ok {
				continue
			}
		}
		select {
		case client.updates <- receipt:
		default:
			delete(h.clients, client)
			client.drop()
			h.logger.Warn("stream client dropped: buffer full")
		}
	}
	return nil
}

// Clients reports the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) subscribe(ops []string) *streamClient {
	client := &streamClient{
		ops:     make(map[string]struct{}, len(ops)),
		updates: make(chan *core.Receipt, streamBufferSize),
		dropped: make(chan struct{}),
	}
	for _, op := range ops {
		if op = strings.TrimSpace(op); op != "" {
			client.ops[op] = struct{}{}
		}
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	return client
}

func (h *Hub) unsubscribe(client *streamClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
}

func (c *streamClient) drop() {
	c.once.Do(func() { close(c.dropped) })
}

// serveStream upgrades the request and streams receipts until the client
// leaves. ?op=pool.deposit,pool.withdraw limits the stream to those operations.
func (h *Hub) serveStream(w http.ResponseWriter, r *http.Request) {
	var ops []string
	if raw := r.URL.Query().Get("op"); raw != "" {
		ops = strings.Split(raw, ",")
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	client := h.subscribe(ops)
	defer h.unsubscribe(client)

	// Reads are only needed to notice the client closing.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.dropped:
			_ = conn.Close(websocket.StatusPolicyViolation, "too slow")
			return
		case receipt := <-client.updates:
			if err := writeReceipt(ctx, conn, receipt); err != nil {
				if websocket.CloseStatus(err) == -1 {
					_ = conn.Close(websocket.StatusInternalError, "stream error")
				}
				return
			}
		}
	}
}

func writeReceipt(ctx context.Context, conn *websocket.Conn, receipt *core.Receipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
