package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/orderflowhq/orderflow-backend/api/middleware"
	hub "github.com/orderflowhq/orderflow-backend/internal/realtime"
	"github.com/orderflowhq/orderflow-backend/pkg/config"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/types"
)

type stubTracker struct {
	snapshots map[string]*types.OrderSnapshot
}

func (s *stubTracker) Track(ctx context.Context, orderNumber string) (*types.OrderSnapshot, error) {
	if snapshot, ok := s.snapshots[orderNumber]; ok {
		return snapshot, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func wsServer(t *testing.T, h *hub.Hub, tracker Tracker, cfg config.RealtimeConfig, userID, role string) *httptest.Server {
	t.Helper()
	handler := Websocket(h, tracker, cfg, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(middleware.WithIdentity(r.Context(), userID, role))
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) hub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg hub.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebsocketTrackAndBroadcast(t *testing.T) {
	userID := "user-1"
	snapshot := &types.OrderSnapshot{
		OrderID:     "o-1",
		OrderNumber: "ORD-20260101-AAAA",
		UserID:      userID,
		Status:      "confirmed",
	}
	tracker := &stubTracker{snapshots: map[string]*types.OrderSnapshot{snapshot.OrderNumber: snapshot}}
	h := hub.NewHub(config.RealtimeConfig{SendBuffer: 4}, nil)

	srv := wsServer(t, h, tracker, config.RealtimeConfig{AllowedOrigins: []string{"*"}}, userID, "customer")
	conn := dial(t, srv, nil)

	// On-demand snapshot.
	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": "track-order",
		"data":  map[string]string{"order_number": snapshot.OrderNumber},
	}))
	frame := readFrame(t, conn)
	require.Equal(t, "order-status", frame.Event)

	// The round trip above guarantees registration; broadcasts now reach us.
	h.NotifyOrderUpdate(*snapshot)
	frame = readFrame(t, conn)
	require.Equal(t, "order-update", frame.Event)
}

func TestWebsocketUnknownOrderGetsErrorFrame(t *testing.T) {
	tracker := &stubTracker{snapshots: map[string]*types.OrderSnapshot{}}
	h := hub.NewHub(config.RealtimeConfig{SendBuffer: 4}, nil)

	srv := wsServer(t, h, tracker, config.RealtimeConfig{AllowedOrigins: []string{"*"}}, "user-2", "customer")
	conn := dial(t, srv, nil)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": "track-order",
		"data":  map[string]string{"order_number": "ORD-00000000-XXXX"},
	}))
	frame := readFrame(t, conn)
	require.Equal(t, "error", frame.Event)
}

func TestWebsocketRejectsDisallowedOrigin(t *testing.T) {
	tracker := &stubTracker{snapshots: map[string]*types.OrderSnapshot{}}
	h := hub.NewHub(config.RealtimeConfig{SendBuffer: 4}, nil)

	srv := wsServer(t, h, tracker,
		config.RealtimeConfig{AllowedOrigins: []string{"https://app.example.com"}}, "user-3", "customer")

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	if resp != nil {
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestWebsocketAdminReceivesAdminChannel(t *testing.T) {
	tracker := &stubTracker{snapshots: map[string]*types.OrderSnapshot{
		"ORD-20260101-BBBB": {OrderNumber: "ORD-20260101-BBBB", UserID: "someone-else", Status: "pending"},
	}}
	h := hub.NewHub(config.RealtimeConfig{SendBuffer: 4}, nil)

	srv := wsServer(t, h, tracker, config.RealtimeConfig{AllowedOrigins: []string{"*"}}, "admin-1", "admin")
	conn := dial(t, srv, nil)

	// Round trip to guarantee registration.
	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": "track-order",
		"data":  map[string]string{"order_number": "ORD-20260101-BBBB"},
	}))
	readFrame(t, conn)

	h.NotifyOrderUpdate(types.OrderSnapshot{OrderNumber: "ORD-20260101-BBBB", UserID: "someone-else", Status: "confirmed"})
	frame := readFrame(t, conn)
	require.Equal(t, "admin-order-update", frame.Event)
}
