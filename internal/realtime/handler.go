package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/savelx/grocery-shop/internal/config"
	"github.com/savelx/grocery-shop/internal/domain/models"
	security "github.com/savelx/grocery-shop/internal/jwt-new"
	"github.com/savelx/grocery-shop/internal/lib/metrics"
)

// StatusUpdater — переходы статуса, инициированные админом через websocket.
// Реализуется сервисом заказов; фан-аут результата идет обратно через Hub.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID int64, target models.OrderStatus, reason string) (*models.Order, error)
}

// inboundEvent — событие от клиента
type inboundEvent struct {
	Event           string `json:"event"`
	OrderID         int64  `json:"order_id"`
	Token           string `json:"token"`
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason"`
}

// Handler апгрейдит HTTP-соединения и обслуживает протокол канала
type Handler struct {
	log      *slog.Logger
	hub      *Hub
	updater  StatusUpdater
	metrics  *metrics.Metrics
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
}

func NewHandler(log *slog.Logger, hub *Hub, updater StatusUpdater, m *metrics.Metrics, cfg config.RealtimeConfig) *Handler {
	return &Handler{
		log:     log,
		hub:     hub,
		updater: updater,
		metrics: m,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// источники фильтрует внешний слой (reverse proxy)
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS обрабатывает GET /ws. Токен в query необязателен: анонимные
// соединения допускаются (подписка на заказ), закрывается только
// неудачный вход в админскую комнату.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	const op = "realtime.Handler.ServeWS"
	logger := h.log.With(slog.String("op", op))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := newClient(conn, h.cfg.SendBuffer)

	// токен на хендшейке проверяется один раз и кэшируется на соединении
	if token := r.URL.Query().Get("token"); token != "" {
		if claims, err := security.ParseToken(token); err == nil {
			client.setClaims(claims)
		} else {
			logger.Warn("handshake token rejected", slog.Any("error", err))
		}
	}

	h.metrics.WSConnections.Inc()
	logger.Info("websocket connected")

	// после возврата из хендлера request context отменяется, а соединение
	// живет дальше, поэтому пампы работают на собственном контексте
	go client.writePump(h.cfg.WriteTimeout, h.cfg.PongTimeout)
	go h.readPump(context.Background(), client, logger)
}

// readPump читает события клиента до дисконнекта,
// затем вычищает все членства соединения
func (h *Handler) readPump(ctx context.Context, client *Client, logger *slog.Logger) {
	defer func() {
		h.hub.Remove(client)
		client.close()
		h.metrics.WSConnections.Dec()
		logger.Info("websocket disconnected")
	}()

	_ = client.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var event inboundEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			h.sendError(client, "malformed event")
			continue
		}

		switch event.Event {
		case "subscribe":
			h.handleSubscribe(client, event)
		case "admin_online":
			if !h.handleAdminOnline(client, event, logger) {
				return // неавторизованный admin_online: соединение закрывается
			}
		case EventOrderStatusUpdate:
			h.handleStatusUpdate(ctx, client, event, logger)
		default:
			h.sendError(client, "unknown event: "+event.Event)
		}
	}
}

func (h *Handler) handleSubscribe(client *Client, event inboundEvent) {
	if event.OrderID <= 0 {
		h.sendError(client, "subscribe requires order_id")
		return
	}
	h.hub.Subscribe(client, event.OrderID)
	h.sendEvent(client, OutboundEvent{Event: EventSubscribed, OrderID: event.OrderID})
}

// handleAdminOnline пускает в админскую комнату только валидный админский токен;
// при отказе соединение информируется об ошибке и принудительно закрывается
func (h *Handler) handleAdminOnline(client *Client, event inboundEvent, logger *slog.Logger) bool {
	claims, err := security.ParseToken(event.Token)
	if err != nil || claims.Role != models.RoleAdmin {
		logger.Warn("admin_online rejected")
		h.sendError(client, "admin authentication failed")
		client.close()
		return false
	}

	client.setClaims(claims)
	h.hub.JoinAdmins(client)
	h.sendEvent(client, OutboundEvent{Event: EventAdminOnlineAck})
	logger.Info("admin joined", slog.Int64("adminID", claims.UserID))
	return true
}

func (h *Handler) handleStatusUpdate(ctx context.Context, client *Client, event inboundEvent, logger *slog.Logger) {
	if !client.isAdmin() {
		h.sendError(client, "order_status_update requires admin")
		return
	}

	_, err := h.updater.UpdateStatus(ctx, event.OrderID, models.OrderStatus(event.Status), event.RejectionReason)
	if err != nil {
		logger.Warn("status update via websocket failed", slog.Any("error", err))
		h.sendError(client, err.Error())
		return
	}
	// успешный переход рассылается сервисом через Hub, отдельного ack нет
}

func (h *Handler) sendEvent(client *Client, event OutboundEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if !client.enqueue(payload) {
		h.hub.Remove(client)
		client.close()
	}
}

func (h *Handler) sendError(client *Client, message string) {
	h.sendEvent(client, OutboundEvent{Event: EventError, Message: message})
}
