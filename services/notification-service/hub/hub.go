// Package hub fans report notifications out to connected dashboard clients.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"civic-reporting-system/pkg/middleware"
	"civic-reporting-system/services/report-service/models"
)

const clientBuffer = 10

// Client is one open dashboard stream.
type Client struct {
	UserID     string
	Role       string
	Department string
	Send       chan models.NotificationEvent
}

func NewClient(claims *middleware.UserClaims) *Client {
	return &Client{
		UserID:     claims.UserID,
		Role:       claims.Role,
		Department: claims.Department,
		Send:       make(chan models.NotificationEvent, clientBuffer),
	}
}

type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.NotificationEvent
	done       chan struct{}
	logger     *zap.Logger
}

func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan models.NotificationEvent, 100),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client set until ctx is cancelled, then closes every stream.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.Send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client registered", zap.String("user_id", c.UserID), zap.Int("clients", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.Send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client unregistered", zap.String("user_id", c.UserID), zap.Int("clients", total))

		case e := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !Deliverable(c, e) {
					continue
				}
				select {
				case c.Send <- e:
				default:
					h.logger.Warn("client buffer full, dropping event",
						zap.String("user_id", c.UserID),
						zap.String("report_id", e.ReportID),
					)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds c. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues e for fan-out. It blocks only while the broadcast buffer is full.
func (h *Hub) Publish(ctx context.Context, e models.NotificationEvent) error {
	select {
	case h.broadcast <- e:
		return nil
	case <-h.done:
		return errors.New("hub stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle decodes a queued event and publishes it. It matches queue.Handler.
func (h *Hub) Handle(ctx context.Context, routingKey string, body []byte) error {
	var e models.NotificationEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return fmt.Errorf("decode %s: %w", routingKey, err)
	}
	h.logger.Debug("notification received",
		zap.String("report_id", e.ReportID),
		zap.String("kind", string(e.Kind)),
	)
	return h.Publish(ctx, e)
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Deliverable decides whether c should see e. Completion notices go only to
// the reporter; everything else goes to admins, narrowed to their department
// when they have one.
func Deliverable(c *Client, e models.NotificationEvent) bool {
	if e.Kind == models.NotifyCompletion || e.Audience == models.AudienceReporter {
		return e.UserID != "" && c.UserID == e.UserID
	}
	if c.Role != middleware.RoleAdmin {
		return false
	}
	dept := strings.ToLower(strings.TrimSpace(c.Department))
	if dept == "" || dept == "general" || dept == "all" {
		return true
	}
	return models.ParseDepartment(dept) == e.Department
}
