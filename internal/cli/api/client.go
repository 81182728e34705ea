package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"haventory/internal/apperr"
	"haventory/internal/protocol"
	"haventory/internal/subscription"
)

// ErrClosed is returned by calls on a client whose channel is gone.
var ErrClosed = errors.New("channel closed")

const (
	writeTimeout = 5 * time.Second
	eventBuffer  = 256
)

// Event is a push message together with the subscription that matched it.
type Event struct {
	Subscription string
	Event        subscription.Event
}

// Client — клиент двунаправленного канала: запросы коррелируются по id, события идут в Events().
type Client struct {
	conn   *websocket.Conn
	logger *zap.SugaredLogger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan protocol.Inbound
	err     error

	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Dial connects to the server channel, e.g. ws://localhost:8081/api/ws.
func Dial(ctx context.Context, url string, logger *zap.SugaredLogger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		conn:    conn,
		logger:  logger,
		pending: make(map[string]chan protocol.Inbound),
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// NewRequestID returns a fresh correlation id.
func NewRequestID() string { return ulid.Make().String() }

// Events delivers push messages; the channel is closed when the connection ends.
func (c *Client) Events() <-chan Event { return c.events }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Call sends one request and decodes its result into out (out may be nil).
// A failed response comes back as *apperr.Error.
func (c *Client) Call(ctx context.Context, op protocol.Op, payload any, out any) error {
	return c.call(ctx, NewRequestID(), op, payload, out)
}

// Subscribe registers a subscription; its id is the id of the subscribe request.
func (c *Client) Subscribe(ctx context.Context, p protocol.Subscribe) (string, error) {
	id := NewRequestID()
	if err := c.call(ctx, id, protocol.OpSubscribe, p, nil); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) Unsubscribe(ctx context.Context, subID string) error {
	return c.Call(ctx, protocol.OpUnsubscribe, protocol.Unsubscribe{Subscription: subID}, nil)
}

func (c *Client) call(ctx context.Context, id string, op protocol.Op, payload any, out any) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", op, err)
		}
		raw = b
	}

	ch := make(chan protocol.Inbound, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	if err := c.write(protocol.Request{ID: id, Type: op, Payload: raw}); err != nil {
		return err
	}

	select {
	case in := <-ch:
		if !in.Success {
			if in.Error == nil {
				return apperr.Unknown(fmt.Errorf("%s failed without error details", op))
			}
			return in.Error
		}
		if out == nil || len(in.Result) == 0 || string(in.Result) == "null" {
			return nil
		}
		if err := json.Unmarshal(in.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.closeErr()
	}
}

func (c *Client) write(req protocol.Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send %s: %w", req.Type, err)
	}
	return nil
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		var in protocol.Inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			c.shutdown(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}
		switch in.Type {
		case protocol.TypeEvent:
			var ev subscription.Event
			if err := json.Unmarshal(in.Event, &ev); err != nil {
				c.logger.Warnw("malformed event", "subscription", in.ID, "error", err)
				continue
			}
			select {
			case c.events <- Event{Subscription: in.ID, Event: ev}:
			default:
				// читатель не успевает: ответы важнее событий
				c.logger.Warnw("event buffer full, dropping event", "subscription", in.ID, "action", ev.Action)
			}
		default:
			c.mu.Lock()
			ch, ok := c.pending[in.ID]
			c.mu.Unlock()
			if !ok {
				// ответ на отменённый или чужой запрос
				c.logger.Debugw("dropping response with unknown id", "id", in.ID)
				continue
			}
			select {
			case ch <- in:
			default:
			}
		}
	}
}

func (c *Client) shutdown(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		_ = c.conn.Close()
	})
}

// Close ends the connection; pending calls fail with ErrClosed.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
	c.writeMu.Unlock()
	c.shutdown(ErrClosed)
	return nil
}
