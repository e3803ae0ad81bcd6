package ipc

import (
	"github.com/leonardcser/imoney-mcp/internal/broker"
	"github.com/leonardcser/imoney-mcp/internal/store"
)

// Simple JSON protocol between the rates daemon and UI contexts over a Unix domain socket.
// One request -> one response using json.Encoder/Decoder per connection,
// except "watch", which turns the connection into a stream of change responses.

const (
	OpGet     = "get"
	OpSet     = "set"
	OpDelete  = "delete"
	OpWatch   = "watch"
	OpMessage = "message"
)

type Request struct {
	ID      string          `json:"id"`
	Op      string          `json:"op"` // get | set | delete | watch | message
	Key     string          `json:"key,omitempty"`
	Value   []byte          `json:"value,omitempty"`
	Message *broker.Message `json:"message,omitempty"`
}

type Response struct {
	ID     string           `json:"id"`
	OK     bool             `json:"ok"`
	Value  []byte           `json:"value,omitempty"`
	Error  string           `json:"error,omitempty"`
	Reply  *broker.Response `json:"reply,omitempty"`
	Change *store.Change    `json:"change,omitempty"`
}
