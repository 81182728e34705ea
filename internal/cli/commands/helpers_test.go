package commands

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"haventory/internal/config"
	"haventory/internal/handlers"
	"haventory/internal/repo"
	"haventory/internal/service"
	"haventory/internal/storage"
	"haventory/internal/subscription"
)

// syncBuffer — буфер вывода, безопасный для фоновых команд вроде watch.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// перехват вывода на время теста
func withStdoutCapture(t *testing.T, fn func()) string {
	t.Helper()
	old := Out
	var buf syncBuffer
	Out = &buf
	defer func() { Out = old }()
	fn()
	return buf.String()
}

// startServer поднимает настоящий сервер в памяти и возвращает конфиг клиента.
func startServer(t *testing.T) (*config.Config, *service.InventoryService) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	store := repo.NewStore()
	router := subscription.NewRouter(logger)
	persister := storage.NewPersister(storage.NewMemorySink(), store, 0, logger)
	svc := service.NewInventoryService(store, router, persister, logger)
	h := handlers.NewHandler(svc, router, logger, &config.Config{BuildVersion: "test"})
	srv := httptest.NewServer(h.Router)
	t.Cleanup(srv.Close)

	host := strings.TrimPrefix(srv.URL, "http://")
	return &config.Config{
		BaseURL:      host,
		ServerURL:    srv.URL,
		WebSocketURL: "ws://" + host + "/api/ws",
		PageSize:     10,
	}, svc
}
