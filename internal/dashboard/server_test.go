package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/logging"
	"gridbot/internal/orchestrator"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snap orchestrator.Snapshot
}

func (f fakeSource) Snapshot() orchestrator.Snapshot { return f.snap }

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServerSnapshotEndpointReturnsSourceState(t *testing.T) {
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)

	src := fakeSource{snap: orchestrator.Snapshot{
		Status:      core.StatusRunning,
		TotalEquity: decimal.NewFromInt(1000),
	}}
	addr := freeAddr(t)
	srv := New(Config{Addr: addr, PushInterval: 20 * time.Millisecond}, src, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/snapshot", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var got orchestrator.Snapshot
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		return got.Status == core.StatusRunning && got.TotalEquity.Equal(decimal.NewFromInt(1000))
	}, time.Second, 10*time.Millisecond)
}

func TestServerPushesSnapshotsToConnectedClients(t *testing.T) {
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)

	src := fakeSource{snap: orchestrator.Snapshot{Status: core.StatusRunning}}
	addr := freeAddr(t)
	srv := New(Config{Addr: addr, PushInterval: 20 * time.Millisecond}, src, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws", addr), nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, time.Second, 10*time.Millisecond)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, TypeSnapshot, msg.Type)
}

func TestCheckOriginRejectsUnlistedOriginInProduction(t *testing.T) {
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)

	srv := New(Config{
		Addr:           "127.0.0.1:0",
		Production:     true,
		AllowedOrigins: []string{"https://dash.example.com"},
	}, fakeSource{}, logger)

	req, err := http.NewRequest(http.MethodGet, "/ws", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example.com")
	require.False(t, srv.checkOrigin(req))

	req.Header.Set("Origin", "https://dash.example.com")
	require.True(t, srv.checkOrigin(req))
}

func TestRemoteIPStripsPort(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	req.RemoteAddr = "10.0.0.5:54321"
	require.Equal(t, "10.0.0.5", remoteIP(req))

	req.RemoteAddr = "not-a-host-port"
	require.True(t, strings.Contains(remoteIP(req), "not-a-host-port"))
}
