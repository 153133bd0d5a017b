package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/savelx/grocery-shop/internal/domain/models"
	"github.com/savelx/grocery-shop/internal/lib/metrics"
)

// Имена событий websocket-канала
const (
	EventNewOrder          = "new_order"
	EventOrderStatusUpdate = "order_status_update"
	EventSubscribed        = "subscribed"
	EventAdminOnlineAck    = "admin_online_ack"
	EventError             = "error"
)

const adminRoom = "admins"

func orderRoom(orderID int64) string {
	return fmt.Sprintf("order_%d", orderID)
}

// OutboundEvent — событие, отправляемое клиентам
type OutboundEvent struct {
	Event           string             `json:"event"`
	Order           *models.Order      `json:"order,omitempty"`
	OrderID         int64              `json:"order_id,omitempty"`
	Status          models.OrderStatus `json:"status,omitempty"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	Message         string             `json:"message,omitempty"`
	UpdatedAt       *time.Time         `json:"updated_at,omitempty"`
}

// Hub ведет комнаты подписок: одну админскую и по одной на заказ.
// Доставка best-effort at-most-once: без буферизации, без повтора —
// подписавшийся после публикации прошлое событие не получит.
type Hub struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	rooms map[string]map[*Client]struct{}
}

func NewHub(log *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		log:     log,
		metrics: m,
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

// Subscribe добавляет соединение в комнату заказа;
// одно соединение может подписаться на несколько заказов
func (h *Hub) Subscribe(c *Client, orderID int64) {
	h.join(orderRoom(orderID), c)
}

// JoinAdmins добавляет соединение в админскую комнату.
// Проверка прав выполняется до вызова, на границе канала.
func (h *Hub) JoinAdmins(c *Client) {
	h.join(adminRoom, c)
}

func (h *Hub) join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

// Remove вычищает соединение из всех комнат; вызывается при дисконнекте,
// висячих подписок не остаётся
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// PublishNewOrder рассылает новый заказ только админской комнате
func (h *Hub) PublishNewOrder(order *models.Order) {
	h.publish(OutboundEvent{Event: EventNewOrder, Order: order}, adminRoom)
}

// PublishStatusUpdate рассылает смену статуса комнате заказа и админам
func (h *Hub) PublishStatusUpdate(orderID int64, status models.OrderStatus, reason string) {
	now := time.Now()
	h.publish(OutboundEvent{
		Event:           EventOrderStatusUpdate,
		OrderID:         orderID,
		Status:          status,
		RejectionReason: reason,
		UpdatedAt:       &now,
	}, orderRoom(orderID), adminRoom)
}

// publish доставляет событие объединению комнат; соединение, состоящее
// в нескольких из них, получает событие один раз. Медленный получатель
// (полный буфер) отключается, а не блокирует публикацию.
func (h *Hub) publish(event OutboundEvent, rooms ...string) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal event", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	targets := make(map[*Client]struct{})
	for _, room := range rooms {
		for c := range h.rooms[room] {
			targets[c] = struct{}{}
		}
	}
	h.mu.Unlock()

	var dropped []*Client
	for c := range targets {
		if !c.enqueue(payload) {
			dropped = append(dropped, c)
		}
	}

	// ошибки доставки не моделируются: отставшие клиенты просто отключаются
	for _, c := range dropped {
		h.log.Warn("dropping slow subscriber", slog.String("event", event.Event))
		h.Remove(c)
		c.close()
	}

	h.metrics.WSEventsPublished.WithLabelValues(event.Event).Inc()
}
