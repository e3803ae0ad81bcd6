package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/leonardcser/imoney-mcp/internal/broker"
	"github.com/leonardcser/imoney-mcp/internal/logger"
	"github.com/leonardcser/imoney-mcp/internal/store"
)

const dialTimeout = 500 * time.Millisecond

// Client implements store.KV over the daemon socket and sends channel messages.
type Client struct {
	socketPath string
}

var _ store.KV = (*Client)(nil)

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Ping checks that the daemon accepts connections.
func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	return d.DialContext(ctx, "unix", c.socketPath)
}

func (c *Client) withConn(ctx context.Context, fn func(conn net.Conn) error) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	if err := fn(conn); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// roundTrip sends req and decodes exactly one response carrying the same ID.
func (c *Client) roundTrip(ctx context.Context, req Request) (Response, error) {
	req.ID = uuid.NewString()
	var resp Response
	err := c.withConn(ctx, func(conn net.Conn) error {
		if err := json.NewEncoder(conn).Encode(&req); err != nil {
			return err
		}
		if err := json.NewDecoder(conn).Decode(&resp); err != nil {
			return err
		}
		if resp.ID != req.ID {
			return fmt.Errorf("ipc: response id %q does not match request %q", resp.ID, req.ID)
		}
		return nil
	})
	return resp, err
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := c.roundTrip(ctx, Request{Op: OpGet, Key: key})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, remoteError(resp.Error)
	}
	return append([]byte(nil), resp.Value...), nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	resp, err := c.roundTrip(ctx, Request{Op: OpSet, Key: key, Value: value})
	if err != nil {
		return err
	}
	if !resp.OK {
		return remoteError(resp.Error)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	resp, err := c.roundTrip(ctx, Request{Op: OpDelete, Key: key})
	if err != nil {
		return err
	}
	if !resp.OK {
		return remoteError(resp.Error)
	}
	return nil
}

// Send delivers msg to the daemon's broker and waits for its response.
func (c *Client) Send(ctx context.Context, msg broker.Message) (broker.Response, error) {
	resp, err := c.roundTrip(ctx, Request{Op: OpMessage, Message: &msg})
	if err != nil {
		return broker.Response{}, err
	}
	if !resp.OK {
		return broker.Response{}, remoteError(resp.Error)
	}
	if resp.Reply == nil {
		return broker.Response{}, errors.New("ipc: no response from background")
	}
	return *resp.Reply, nil
}

// Watch holds a dedicated connection open and streams changes until ctx is
// done or the daemon goes away; in both cases the channel is closed.
func (c *Client) Watch(ctx context.Context) (<-chan store.Change, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	req := Request{ID: uuid.NewString(), Op: OpWatch}
	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(conn)
	if err := enc.Encode(&req); err != nil {
		_ = conn.Close()
		return nil, err
	}
	var ack Response
	if err := dec.Decode(&ack); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if !ack.OK {
		_ = conn.Close()
		return nil, remoteError(ack.Error)
	}

	out := make(chan store.Change, 16)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	go func() {
		defer close(out)
		defer stop()
		defer conn.Close()
		for {
			var resp Response
			if err := dec.Decode(&resp); err != nil {
				if ctx.Err() == nil {
					logger.Warnf("ipc: watch stream ended: %v", err)
				}
				return
			}
			if resp.Change == nil {
				continue
			}
			select {
			case out <- *resp.Change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// remoteError maps daemon error strings back to sentinel errors.
func remoteError(msg string) error {
	if msg == store.ErrNotFound.Error() {
		return store.ErrNotFound
	}
	return errors.New(msg)
}
