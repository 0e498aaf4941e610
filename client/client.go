package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/syncable/syncable"
)

// notificationBuffer bounds queued change notifications; drain
// Notifications() or the read loop stalls.
const notificationBuffer = 64

// ErrClosed reports a call on a closed client.
var ErrClosed = errors.New("client closed")

// Client speaks the synchronization protocol over one websocket. Calls are
// serialized: the protocol pairs each request with exactly one response on
// the same connection. Change notifications arrive on Notifications().
type Client struct {
	conn *websocket.Conn

	mu        sync.Mutex // one in-flight request at a time
	responses chan json.RawMessage
	notifs    chan syncable.ChangesNotification
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to a synchronization server, e.g.
// "ws://localhost:8000/sync".
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial failed")
	}

	c := &Client{
		conn:      conn,
		responses: make(chan json.RawMessage, 1),
		notifs:    make(chan syncable.ChangesNotification, notificationBuffer),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

// Notifications delivers changes made by other users to subscribed
// documents.
func (c *Client) Notifications() <-chan syncable.ChangesNotification {
	return c.notifs
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env syncable.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}

		if env.Type == syncable.MessageTypeChanges && env.Status == 0 {
			var notif syncable.ChangesNotification
			if err := json.Unmarshal(raw, &notif); err != nil {
				continue
			}
			select {
			case c.notifs <- notif:
			case <-c.done:
				return
			}
			continue
		}

		select {
		case c.responses <- raw:
		case <-c.done:
			return
		}
	}
}

// do sends one request and decodes the paired response into out.
func (c *Client) do(ctx context.Context, req any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	if err := c.conn.WriteJSON(req); err != nil {
		return errors.Wrap(err, "write failed")
	}

	select {
	case raw := <-c.responses:
		return json.Unmarshal(raw, out)
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Hello authenticates the connection and returns the assigned display name,
// which may carry a disambiguating suffix.
func (c *Client) Hello(ctx context.Context, name string) (syncable.HelloResponse, error) {
	req := syncable.HelloRequest{
		Envelope: syncable.Envelope{Type: syncable.MessageTypeHello},
		Name:     name,
	}
	var resp syncable.HelloResponse
	err := c.do(ctx, req, &resp)
	return resp, err
}

// Create makes a new document. Pass an empty name to let the server pick
// one.
func (c *Client) Create(ctx context.Context, name string, schema json.RawMessage, value any) (syncable.CreateResponse, error) {
	req := syncable.CreateRequest{
		Envelope: syncable.Envelope{Type: syncable.MessageTypeCreate},
		Name:     name,
		Schema:   schema,
		Value:    value,
	}
	var resp syncable.CreateResponse
	err := c.do(ctx, req, &resp)
	return resp, err
}

func (c *Client) Delete(ctx context.Context, name string) (syncable.DeleteResponse, error) {
	req := syncable.DeleteRequest{
		Envelope: syncable.Envelope{Type: syncable.MessageTypeDelete},
		Name:     name,
	}
	var resp syncable.DeleteResponse
	err := c.do(ctx, req, &resp)
	return resp, err
}

func (c *Client) Get(ctx context.Context, name string) (syncable.GetResponse, error) {
	req := syncable.GetRequest{
		Envelope: syncable.Envelope{Type: syncable.MessageTypeGet},
		Name:     name,
	}
	var resp syncable.GetResponse
	err := c.do(ctx, req, &resp)
	return resp, err
}

func (c *Client) Schema(ctx context.Context, name string) (syncable.SchemaResponse, error) {
	req := syncable.SchemaRequest{
		Envelope: syncable.Envelope{Type: syncable.MessageTypeSchema},
		Name:     name,
	}
	var resp syncable.SchemaResponse
	err := c.do(ctx, req, &resp)
	return resp, err
}

// Update submits changes to a document. Each change applies atomically;
// results come back in submission order.
func (c *Client) Update(ctx context.Context, name string, updates []syncable.Change) (syncable.UpdateResponse, error) {
	req := syncable.UpdateRequest{
		Envelope: syncable.Envelope{Type: syncable.MessageTypeUpdate},
		Name:     name,
		Updates:  updates,
	}
	var resp syncable.UpdateResponse
	err := c.do(ctx, req, &resp)
	return resp, err
}

// Subscribe registers for a document's changes. A cursor resumes from a
// previously seen change; the zero cursor replays the full log.
func (c *Client) Subscribe(ctx context.Context, name string, cursor syncable.Cursor) (syncable.SubscribeResponse, error) {
	req := syncable.SubscribeRequest{
		Envelope:     syncable.Envelope{Type: syncable.MessageTypeSubscribe},
		Name:         name,
		LastChangeID: cursor.ChangeID,
		LastChangeAt: cursor.ChangeAt,
	}
	var resp syncable.SubscribeResponse
	err := c.do(ctx, req, &resp)
	return resp, err
}

func (c *Client) Unsubscribe(ctx context.Context, name string) (syncable.UnsubscribeResponse, error) {
	req := syncable.UnsubscribeRequest{
		Envelope: syncable.Envelope{Type: syncable.MessageTypeUnsubscribe},
		Name:     name,
	}
	var resp syncable.UnsubscribeResponse
	err := c.do(ctx, req, &resp)
	return resp, err
}
