package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"haventory/internal/apperr"
	"haventory/internal/model"
	"haventory/internal/protocol"
	"haventory/internal/subscription"
)

const (
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingPeriod   = 25 * time.Second
	sendBuffer   = 256
	maxMessage   = 1 << 20
)

var (
	errConnClosed   = errors.New("connection closed")
	errSlowConsumer = errors.New("send buffer full")
)

// wsConn — одно WebSocket-соединение; реализует subscription.Conn.
type wsConn struct {
	id     string
	ws     *websocket.Conn
	out    chan any
	done   chan struct{}
	once   sync.Once
	logger *zap.SugaredLogger
}

var _ subscription.Conn = (*wsConn)(nil)

func newWSConn(ws *websocket.Conn, logger *zap.SugaredLogger) *wsConn {
	return &wsConn{
		id:     model.NewID(),
		ws:     ws,
		out:    make(chan any, sendBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (c *wsConn) ID() string { return c.id }

// Send queues an event without blocking; a consumer that cannot keep up loses events.
func (c *wsConn) Send(subID string, ev subscription.Event) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.out <- protocol.Event(subID, ev):
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errSlowConsumer
	}
}

// reply blocks until the response is queued: responses are never dropped.
func (c *wsConn) reply(resp protocol.Response) {
	select {
	case c.out <- resp:
	case <-c.done:
	}
}

func (c *wsConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case msg := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Debugw("write failed", "conn", c.id, "error", err)
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop processes requests sequentially, so responses leave in request order.
func (c *wsConn) readLoop(d *Dispatcher) {
	c.ws.SetReadLimit(maxMessage)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debugw("read failed", "conn", c.id, "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongTimeout))

		var req protocol.Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(protocol.Failure("", "", apperr.Validation("malformed message: %v", err)))
			continue
		}
		c.reply(d.Handle(c, req))
	}
}

// WSHandler upgrades HTTP requests to the bidirectional message channel.
type WSHandler struct {
	upgrader   websocket.Upgrader
	dispatcher *Dispatcher
	router     *subscription.Router
	logger     *zap.SugaredLogger
}

func NewWSHandler(d *Dispatcher, router *subscription.Router, logger *zap.SugaredLogger) *WSHandler {
	return &WSHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// аутентификации нет, origin не проверяем
			CheckOrigin: func(*http.Request) bool { return true },
		},
		dispatcher: d,
		router:     router,
		logger:     logger,
	}
}

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := newWSConn(ws, h.logger)
	h.logger.Infow("connection opened", "conn", c.id, "remote", r.RemoteAddr)

	go c.writeLoop()
	c.readLoop(h.dispatcher)

	// все подписки соединения уходят вместе с ним
	h.router.Drop(c.id)
	c.close()
	h.logger.Infow("connection closed", "conn", c.id)
}
