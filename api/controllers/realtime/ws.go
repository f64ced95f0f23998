package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orderflowhq/orderflow-backend/api/middleware"
	"github.com/orderflowhq/orderflow-backend/api/responses"
	hub "github.com/orderflowhq/orderflow-backend/internal/realtime"
	"github.com/orderflowhq/orderflow-backend/pkg/config"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
	"github.com/orderflowhq/orderflow-backend/pkg/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxInboundSize = 4 << 10
)

// Inbound events clients may send.
const eventTrackOrder = "track-order"

// Outbound events beyond the hub's broadcast channels.
const (
	eventOrderStatus = "order-status"
	eventError       = "error"
)

// Tracker resolves the public snapshot for an order number.
type Tracker interface {
	Track(ctx context.Context, orderNumber string) (*types.OrderSnapshot, error)
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type trackOrderPayload struct {
	OrderNumber string `json:"order_number"`
}

func newUpgrader(cfg config.RealtimeConfig) *websocket.Upgrader {
	allowed := map[string]struct{}{}
	allowAll := false
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients carry no Origin; auth already ran.
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// Websocket upgrades the connection and subscribes the authenticated caller
// to live order updates. Admins additionally receive the admin broadcast.
// Clients may send track-order frames to poll a snapshot on demand.
func Websocket(h *hub.Hub, tracker Tracker, cfg config.RealtimeConfig, logg *logger.Logger) http.HandlerFunc {
	upgrader := newUpgrader(cfg)

	return func(w http.ResponseWriter, r *http.Request) {
		if h == nil || tracker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "realtime unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		isAdmin := middleware.IsAdmin(middleware.RoleFromContext(r.Context()))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the handshake failure.
			if logg != nil {
				logg.Warn(r.Context(), "websocket upgrade failed: "+err.Error())
			}
			return
		}

		client := h.Register(userID, isAdmin)
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithUserID(ctx, userID)
			logg.Info(ctx, "websocket connected")
		}

		go writePump(conn, client)
		readPump(ctx, conn, h, client, tracker, logg)
	}
}

// writePump owns all writes on the connection: hub messages plus pings.
// Exits when the client queue closes, which closes the socket and unblocks
// the reader.
func writePump(conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Receive():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func readPump(ctx context.Context, conn *websocket.Conn, h *hub.Hub, client *hub.Client, tracker Tracker, logg *logger.Logger) {
	defer func() {
		h.Unregister(client)
		conn.Close()
		if logg != nil {
			logg.Info(ctx, "websocket disconnected")
		}
	}()

	conn.SetReadLimit(maxInboundSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			sendError(h, client, "malformed frame")
			continue
		}

		switch frame.Event {
		case eventTrackOrder:
			handleTrack(ctx, h, client, tracker, frame.Data)
		default:
			sendError(h, client, "unknown event")
		}
	}
}

func handleTrack(ctx context.Context, h *hub.Hub, client *hub.Client, tracker Tracker, data json.RawMessage) {
	var payload trackOrderPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.OrderNumber == "" {
		sendError(h, client, "order_number is required")
		return
	}

	snapshot, err := tracker.Track(ctx, payload.OrderNumber)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			sendError(h, client, "order not found")
			return
		}
		sendError(h, client, "tracking unavailable")
		return
	}

	h.Send(client, hub.Message{Event: eventOrderStatus, Data: snapshot})
}

func sendError(h *hub.Hub, client *hub.Client, message string) {
	h.Send(client, hub.Message{Event: eventError, Data: map[string]string{"message": message}})
}
