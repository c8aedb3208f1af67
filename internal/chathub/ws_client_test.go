package chathub_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"projecthub/backend/internal/chathub"
	"projecthub/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T, hub *chathub.ManagerService) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(chathub.NewWebSocketClient(hub, conn, r.URL.Query().Get("id"), "", 16))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) models.InboundFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f models.InboundFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebSocketClient_EndToEnd(t *testing.T) {
	hub := chathub.NewManagerService(new(MockStorage), new(MockGenerator))
	go hub.Run()
	defer hub.Shutdown(time.Second)
	srv := newWSServer(t, hub)

	a := dial(t, srv, "A")
	b := dial(t, srv, "B")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, frame(models.EventPresenceAnnounce, `"alice"`)))
	for _, conn := range []*websocket.Conn{a, b} {
		f := readEnvelope(t, conn)
		assert.Equal(t, models.EventPresenceList, f.Event)
		assert.JSONEq(t, `["alice"]`, string(f.Data))
	}

	require.NoError(t, a.WriteMessage(websocket.TextMessage, frame(models.EventSignalJoin, `{"roomId":"call"}`)))
	assert.Equal(t, models.EventSignalAllUsers, readEnvelope(t, a).Event)
	require.NoError(t, b.WriteMessage(websocket.TextMessage, frame(models.EventSignalJoin, `{"roomId":"call"}`)))
	assert.JSONEq(t, `{"users":[{"connectionId":"A"}]}`, string(readEnvelope(t, b).Data))
	assert.JSONEq(t, `{"connectionId":"B"}`, string(readEnvelope(t, a).Data))

	require.NoError(t, b.WriteMessage(websocket.TextMessage, frame(models.EventSignalOffer,
		`{"target":"A","roomId":"call","payload":{"type":"offer","sdp":"a<b&c"}}`)))
	require.NoError(t, a.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := a.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sdp":"a<b&c"`)
	var offer struct {
		Event string `json:"event"`
		Data  struct {
			From    string          `json:"from"`
			Payload json.RawMessage `json:"payload"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &offer))
	assert.Equal(t, models.EventSignalOffer, offer.Event)
	assert.Equal(t, "B", offer.Data.From)
	assert.JSONEq(t, `{"type":"offer","sdp":"a<b&c"}`, string(offer.Data.Payload))

	// Closing A cleans up its presence and signaling state.
	require.NoError(t, a.Close())
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[readEnvelope(t, b).Event] = true
	}
	assert.True(t, seen[models.EventPresenceList])
	assert.True(t, seen[models.EventSignalUserLeft])
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketClient_InvalidFrameKeepsConnection(t *testing.T) {
	hub := chathub.NewManagerService(new(MockStorage), new(MockGenerator))
	go hub.Run()
	defer hub.Shutdown(time.Second)
	srv := newWSServer(t, hub)

	a := dial(t, srv, "A")
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`nonsense`)))
	assert.Equal(t, models.EventError, readEnvelope(t, a).Event)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, frame(models.EventPresenceAnnounce, `"u"`)))
	assert.Equal(t, models.EventPresenceList, readEnvelope(t, a).Event)
}
