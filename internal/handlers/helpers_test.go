package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"haventory/internal/areas"
	"haventory/internal/config"
	"haventory/internal/handlers"
	"haventory/internal/protocol"
	"haventory/internal/repo"
	"haventory/internal/service"
	"haventory/internal/storage"
	"haventory/internal/subscription"
)

type testEnv struct {
	srv    *httptest.Server
	store  *repo.Store
	router *subscription.Router
	svc    *service.InventoryService
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop().Sugar()
	store := repo.NewStore()
	router := subscription.NewRouter(logger)
	persister := storage.NewPersister(storage.NewMemorySink(), store, 0, logger)
	svc := service.NewInventoryService(store, router, persister, logger, service.WithAreas(areas.Parse("garage=Garage")))
	cfg := &config.Config{BuildVersion: "test"}

	h := handlers.NewHandler(svc, router, logger, cfg)
	srv := httptest.NewServer(h.Router)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store, router: router, svc: svc}
}

// wsClient — минимальный клиент канала для тестов
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	seq  atomic.Int64
}

func (e *testEnv) dial(t *testing.T) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(op protocol.Op, payload any) string {
	c.t.Helper()
	id := fmt.Sprintf("req-%d", c.seq.Add(1))
	raw, err := json.Marshal(payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(protocol.Request{ID: id, Type: op, Payload: raw}))
	return id
}

func (c *wsClient) read() protocol.Inbound {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var in protocol.Inbound
	require.NoError(c.t, c.conn.ReadJSON(&in))
	return in
}

// call sends a request and returns its response; events arriving first are collected.
func (c *wsClient) call(op protocol.Op, payload any) (protocol.Inbound, []protocol.Inbound) {
	c.t.Helper()
	id := c.send(op, payload)
	var events []protocol.Inbound
	for {
		in := c.read()
		if in.Type == protocol.TypeResult && in.ID == id {
			return in, events
		}
		events = append(events, in)
	}
}

func (c *wsClient) mustCall(op protocol.Op, payload any, out any) []protocol.Inbound {
	c.t.Helper()
	in, events := c.call(op, payload)
	require.True(c.t, in.Success, "op %s failed: %+v", op, in.Error)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(in.Result, out))
	}
	return events
}
