// Package broker answers rate requests sent by UI contexts over the message channel.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leonardcser/imoney-mcp/internal/logger"
	"github.com/leonardcser/imoney-mcp/internal/rates"
)

// ActionGetRates is the only action the broker serves.
const ActionGetRates = "GET_RATES"

// ErrUnknownAction is the error string for unrecognized actions.
const ErrUnknownAction = "UNKNOWN_ACTION"

// Message is a request sent over the channel.
type Message struct {
	Action string `json:"action"`
}

// Response carries either Data or Error, never both.
type Response struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// OK reports whether the response carries data.
func (r Response) OK() bool { return r.Error == "" && len(r.Data) > 0 }

// RateSource is what the broker delegates GET_RATES to.
type RateSource interface {
	GetRates(ctx context.Context) (*rates.Payload, error)
}

type Broker struct {
	rates RateSource
}

func New(source RateSource) *Broker {
	return &Broker{rates: source}
}

// Handle starts serving msg and returns the pending response. The channel
// always receives exactly one Response and is then closed; failures,
// including panics, are reported as Response.Error.
func (b *Broker) Handle(ctx context.Context, msg Message) <-chan Response {
	out := make(chan Response, 1)
	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("broker: panic handling %q: %v", msg.Action, r)
				out <- Response{Error: fmt.Sprint(r)}
			}
		}()
		out <- b.dispatch(ctx, msg)
	}()
	return out
}

func (b *Broker) dispatch(ctx context.Context, msg Message) Response {
	switch msg.Action {
	case ActionGetRates:
		return b.getRates(ctx)
	default:
		logger.Warnf("broker: unknown action %q", msg.Action)
		return Response{Error: ErrUnknownAction}
	}
}

func (b *Broker) getRates(ctx context.Context) Response {
	p, err := b.rates.GetRates(ctx)
	if err != nil {
		if !errors.Is(err, rates.ErrNoDataAvailable) {
			logger.Errorf("broker: get rates: %v", err)
		}
		return Response{Error: err.Error()}
	}
	if p == nil {
		return Response{Error: rates.ErrNoDataAvailable.Error()}
	}
	return Response{Data: p.Raw()}
}
