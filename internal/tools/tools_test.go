package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/imoney-mcp/internal/broker"
	"github.com/leonardcser/imoney-mcp/internal/prefs"
	"github.com/leonardcser/imoney-mcp/internal/session"
	"github.com/leonardcser/imoney-mcp/internal/store"
)

type fakeSender struct {
	resp broker.Response
	err  error
}

func (f fakeSender) Send(context.Context, broker.Message) (broker.Response, error) {
	return f.resp, f.err
}

const ratesBody = `{"result":"success","base_code":"USD","conversion_rates":{"USD":1,"CNY":7.2,"JPY":150,"GBP":0.8,"EUR":0.9}}`

func newSession(t *testing.T, snd session.Sender) *session.Session {
	t.Helper()
	s := session.New(prefs.New(store.NewMemory()), snd)
	s.Load(context.Background())
	return s
}

func call(t *testing.T, h handler, args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text, res.IsError
}

func TestConvert(t *testing.T) {
	sess := newSession(t, fakeSender{resp: broker.Response{Data: json.RawMessage(ratesBody)}})
	h := ConvertHandler(sess)

	text, isErr := call(t, h, nil)
	assert.False(t, isErr)
	assert.Contains(t, text, "100.00")
	assert.Contains(t, text, "720.00")
	assert.Contains(t, text, "15000.00")

	text, isErr = call(t, h, map[string]any{"amount": 720.0, "currency": "cny"})
	assert.False(t, isErr)
	assert.Contains(t, text, "100.00")
	assert.Contains(t, text, "90.00")

	text, isErr = call(t, h, map[string]any{"amount": -1.0})
	assert.True(t, isErr)
	assert.Equal(t, "Please enter a valid amount.", text)

	text, isErr = call(t, h, map[string]any{"currency": "XXX"})
	assert.True(t, isErr)
	assert.Equal(t, "That currency is not supported.", text)
}

func TestConvert_RatesUnavailable(t *testing.T) {
	sess := newSession(t, fakeSender{resp: broker.Response{Error: "NO_DATA_AVAILABLE"}})
	text, isErr := call(t, ConvertHandler(sess), nil)
	assert.True(t, isErr)
	assert.Equal(t, "Failed to load exchange rates.", text)

	sess = newSession(t, fakeSender{err: errors.New("dial unix: no such file")})
	text, isErr = call(t, ConvertHandler(sess), nil)
	assert.True(t, isErr)
	assert.Equal(t, "Failed to load exchange rates.", text)
}

func TestCurrencyEditing(t *testing.T) {
	sess := newSession(t, fakeSender{})

	text, isErr := call(t, ListCurrenciesHandler(sess), nil)
	assert.False(t, isErr)
	assert.Contains(t, text, "Displayed Currencies")

	_, isErr = call(t, AddCurrencyHandler(sess), map[string]any{"code": " chf "})
	assert.False(t, isErr)
	assert.Equal(t, []string{"USD", "CNY", "JPY", "GBP", "EUR", "CHF"}, sess.Currencies())

	_, isErr = call(t, RemoveCurrencyHandler(sess), map[string]any{"code": "JPY"})
	assert.False(t, isErr)
	assert.Equal(t, []string{"USD", "CNY", "GBP", "EUR", "CHF"}, sess.Currencies())

	_, isErr = call(t, RemoveCurrencyHandler(sess), map[string]any{"code": "USD"})
	assert.False(t, isErr)
	assert.Equal(t, "USD", sess.Currencies()[0])

	text, isErr = call(t, AddCurrencyHandler(sess), map[string]any{"code": "ABC"})
	assert.True(t, isErr)
	assert.Equal(t, "That currency is not supported.", text)

	_, isErr = call(t, AddCurrencyHandler(sess), nil)
	assert.True(t, isErr)
}

func TestLanguage(t *testing.T) {
	sess := newSession(t, fakeSender{})

	text, isErr := call(t, SetLanguageHandler(sess), map[string]any{"language": "ZH"})
	assert.False(t, isErr)
	assert.Equal(t, "语言已切换为中文。", text)

	text, isErr = call(t, SetLanguageHandler(sess), map[string]any{"language": "fr"})
	assert.True(t, isErr)
	assert.Equal(t, "支持的语言为 en 和 zh。", text)

	text, isErr = call(t, ToggleLanguageHandler(sess), nil)
	assert.False(t, isErr)
	assert.Equal(t, "Language set to English.", text)
}
