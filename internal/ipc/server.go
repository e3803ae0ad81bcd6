package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/leonardcser/imoney-mcp/internal/broker"
	"github.com/leonardcser/imoney-mcp/internal/logger"
	"github.com/leonardcser/imoney-mcp/internal/store"
)

// Handler serves channel messages; the returned channel yields one response.
type Handler interface {
	Handle(ctx context.Context, msg broker.Message) <-chan broker.Response
}

// Server exposes a store and a message handler on a listener.
type Server struct {
	kv      store.KV
	handler Handler
}

func NewServer(kv store.KV, handler Handler) *Server {
	return &Server{kv: kv, handler: handler}
}

// Serve accepts connections until ctx is done or the listener fails.
// Each connection runs in its own goroutine, so a slow request only
// delays the connection that issued it.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			logger.Warnf("ipc: accept: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		if req.Op == OpWatch {
			s.stream(ctx, dec, enc, req)
			return
		}
		if err := enc.Encode(s.dispatch(ctx, req)); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID}
	switch req.Op {
	case OpGet:
		v, err := s.kv.Get(ctx, req.Key)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.OK, resp.Value = true, v
	case OpSet:
		if err := s.kv.Set(ctx, req.Key, req.Value); err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.OK = true
	case OpDelete:
		if err := s.kv.Delete(ctx, req.Key); err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.OK = true
	case OpMessage:
		if req.Message == nil || s.handler == nil {
			resp.Error = "missing message"
			return resp
		}
		reply, ok := <-s.handler.Handle(ctx, *req.Message)
		if !ok {
			reply = broker.Response{Error: "no response"}
		}
		resp.OK, resp.Reply = true, &reply
	default:
		resp.Error = "unknown op"
	}
	return resp
}

// stream acknowledges a watch request and forwards changes until the peer
// disconnects or the server shuts down.
func (s *Server) stream(ctx context.Context, dec *json.Decoder, enc *json.Encoder, req Request) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes, err := s.kv.Watch(ctx)
	if err != nil {
		_ = enc.Encode(Response{ID: req.ID, Error: err.Error()})
		return
	}
	if err := enc.Encode(Response{ID: req.ID, OK: true}); err != nil {
		return
	}
	// The peer sends nothing after watch; a read returning means it hung up.
	go func() {
		var discard json.RawMessage
		_ = dec.Decode(&discard)
		cancel()
	}()
	for c := range changes {
		change := c
		if err := enc.Encode(Response{ID: req.ID, OK: true, Change: &change}); err != nil {
			return
		}
	}
	logger.Debugf("ipc: watch %s closed", req.ID)
}
