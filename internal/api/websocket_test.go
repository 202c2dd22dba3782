package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/ipfeed/internal/feed"
	"grimm.is/ipfeed/internal/notify"
)

type wsEnvelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

func readWS(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wsEnvelope
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebsocket_PublishEvents(t *testing.T) {
	env := newTestEnv(t, feed.Strict)
	env.submit(t, "192.0.2.1")

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	first := readWS(t, conn)
	require.Equal(t, "status", first.Topic)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(first.Data, &status))
	assert.Equal(t, uint64(1), status.Version)
	assert.Equal(t, 1, env.hub.Subscribers())

	_, err = env.pub.Add(context.Background(), feed.RawEntry{Text: "192.0.2.9"})
	require.NoError(t, err)

	msg := readWS(t, conn)
	require.Equal(t, "published", msg.Topic)
	var evt notify.Event
	require.NoError(t, json.Unmarshal(msg.Data, &evt))
	assert.Equal(t, uint64(2), evt.Version)
	assert.Equal(t, "add", evt.Operation)
	assert.Equal(t, 2, evt.V4Entries)
}

func TestWebsocket_RejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, feed.Strict)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebsocket_Disabled(t *testing.T) {
	env := newTestEnv(t, feed.Strict)
	env.server.hub = nil

	rr := env.do(http.MethodGet, "/api/ws", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
