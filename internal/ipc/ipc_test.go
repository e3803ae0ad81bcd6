package ipc

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/imoney-mcp/internal/broker"
	"github.com/leonardcser/imoney-mcp/internal/i18n"
	"github.com/leonardcser/imoney-mcp/internal/prefs"
	"github.com/leonardcser/imoney-mcp/internal/rates"
	"github.com/leonardcser/imoney-mcp/internal/session"
	"github.com/leonardcser/imoney-mcp/internal/store"
)

type sourceFunc func(ctx context.Context) (*rates.Payload, error)

func (f sourceFunc) GetRates(ctx context.Context) (*rates.Payload, error) { return f(ctx) }

func socketPath(t *testing.T) string {
	t.Helper()
	// Keep the path short; Unix socket paths are limited to ~100 bytes.
	dir, err := os.MkdirTemp("", "ipc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func startServer(t *testing.T, kv store.KV, src broker.RateSource) *Client {
	t.Helper()
	sock := socketPath(t)
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = NewServer(kv, broker.New(src)).Serve(ctx, l)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return NewClient(sock)
}

func TestClient_KV(t *testing.T) {
	c := startServer(t, store.NewMemory(), nil)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	_, err := c.Get(ctx, "languagePreference")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, c.Set(ctx, "languagePreference", []byte(`"zh"`)))
	v, err := c.Get(ctx, "languagePreference")
	require.NoError(t, err)
	assert.Equal(t, `"zh"`, string(v))

	require.NoError(t, c.Delete(ctx, "languagePreference"))
	_, err = c.Get(ctx, "languagePreference")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClient_SendGetRates(t *testing.T) {
	body := `{"result":"success","conversion_rates":{"USD":1,"JPY":150}}`
	c := startServer(t, store.NewMemory(), sourceFunc(func(context.Context) (*rates.Payload, error) {
		return rates.ParsePayload([]byte(body))
	}))

	resp, err := c.Send(context.Background(), broker.Message{Action: broker.ActionGetRates})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.JSONEq(t, body, string(resp.Data))
}

func TestClient_SendErrorResponse(t *testing.T) {
	c := startServer(t, store.NewMemory(), sourceFunc(func(context.Context) (*rates.Payload, error) {
		return nil, rates.ErrNoDataAvailable
	}))

	resp, err := c.Send(context.Background(), broker.Message{Action: broker.ActionGetRates})
	require.NoError(t, err)
	assert.Equal(t, "NO_DATA_AVAILABLE", resp.Error)

	resp, err = c.Send(context.Background(), broker.Message{Action: "NOPE"})
	require.NoError(t, err)
	assert.Equal(t, broker.ErrUnknownAction, resp.Error)
}

func TestClient_SlowRequestDoesNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	c := startServer(t, store.NewMemory(), sourceFunc(func(ctx context.Context) (*rates.Payload, error) {
		<-release
		return nil, rates.ErrNoDataAvailable
	}))
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.Send(ctx, broker.Message{Action: broker.ActionGetRates})
		assert.NoError(t, err)
	}()

	require.NoError(t, c.Set(ctx, "k", []byte("1")))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))

	close(release)
	wg.Wait()
}

func TestClient_Watch(t *testing.T) {
	kv := store.NewMemory()
	c := startServer(t, kv, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := c.Watch(ctx)
	require.NoError(t, err)

	// A write from another context, and one through the daemon itself.
	require.NoError(t, NewClient(c.socketPath).Set(ctx, "userCurrencyList", []byte(`["USD","EUR"]`)))
	require.NoError(t, kv.Set(ctx, "languagePreference", []byte(`"zh"`)))

	for _, key := range []string{"userCurrencyList", "languagePreference"} {
		select {
		case ch := <-changes:
			assert.Equal(t, key, ch.Key)
		case <-time.After(2 * time.Second):
			t.Fatalf("no change for %s", key)
		}
	}

	cancel()
	select {
	case _, ok := <-changes:
		for ok {
			_, ok = <-changes
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
}

func TestClient_DaemonDown(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	assert.Error(t, c.Ping(context.Background()))
	_, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestClient_SessionResubscribesAfterDaemonRestart(t *testing.T) {
	kv := store.NewMemory()
	sock := socketPath(t)
	serve := func() (stop func()) {
		l, err := net.Listen("unix", sock)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = NewServer(kv, nil).Serve(ctx, l)
		}()
		return func() {
			cancel()
			<-done
		}
	}
	stop := serve()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := NewClient(sock)
	sess := session.New(prefs.New(client), client)
	sess.Load(ctx)
	followed := make(chan error, 1)
	go func() { followed <- sess.Follow(ctx, backoff.NewConstantBackOff(20*time.Millisecond)) }()

	other := prefs.New(NewClient(sock))
	require.Eventually(t, func() bool {
		_ = other.SetLanguage(ctx, i18n.Chinese)
		return sess.Language() == i18n.Chinese
	}, 3*time.Second, 20*time.Millisecond)

	stop()
	// Written while nothing listens; the resubscription re-reads it.
	_, err := prefs.New(kv).AddCurrency(ctx, "CHF")
	require.NoError(t, err)
	stop = serve()
	defer stop()

	require.Eventually(t, func() bool {
		return slices.Contains(sess.Currencies(), "CHF")
	}, 3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		_ = other.SetLanguage(ctx, i18n.English)
		return sess.Language() == i18n.English
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-followed:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Follow did not stop")
	}
}
