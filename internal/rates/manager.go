package rates

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/leonardcser/imoney-mcp/internal/currency"
	"github.com/leonardcser/imoney-mcp/internal/logger"
	"github.com/leonardcser/imoney-mcp/internal/store"
)

const (
	// CacheKey is the store key holding the cache entry.
	CacheKey = "exchangeRates"
	// DefaultTTL is how long an entry is served without contacting the provider.
	DefaultTTL = 30 * time.Minute
)

// Fetcher is the upstream the Manager refreshes from.
type Fetcher interface {
	FetchLatest(ctx context.Context, base string) (*Payload, error)
}

// Entry is the durable cache record. It is always replaced as a whole.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
}

// Manager is a read-through rate cache that serves a stale entry when a
// refresh fails. Refresh only happens on demand; there is no background
// revalidation.
type Manager struct {
	kv      store.KV
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time
	group   *singleflight.Group
}

type Option func(*Manager)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithCoalescing makes concurrent misses share one provider call.
func WithCoalescing(enabled bool) Option {
	return func(m *Manager) {
		if enabled {
			m.group = &singleflight.Group{}
		} else {
			m.group = nil
		}
	}
}

func NewManager(kv store.KV, fetcher Fetcher, opts ...Option) *Manager {
	m := &Manager{
		kv:      kv,
		fetcher: fetcher,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetRates returns the cached payload while fresh, otherwise fetches and
// caches a new one. Fetch failures fall back to the cached payload however
// old it is; only the absence of any entry yields ErrNoDataAvailable.
func (m *Manager) GetRates(ctx context.Context) (*Payload, error) {
	if m.group == nil {
		return m.getRates(ctx)
	}
	v, err, shared := m.group.Do(CacheKey, func() (any, error) {
		return m.getRates(ctx)
	})
	if shared {
		logger.Debugf("rates: coalesced request")
	}
	if err != nil {
		return nil, err
	}
	return v.(*Payload), nil
}

func (m *Manager) getRates(ctx context.Context) (*Payload, error) {
	entry := m.readEntry(ctx)
	now := m.now()

	if entry != nil && m.fresh(entry, now) {
		if p, err := ParsePayload(entry.Data); err == nil {
			logger.Debugf("rates: serving cached rates, age %s", m.age(entry, now))
			return p, nil
		}
		logger.Warnf("rates: cached payload unreadable, refreshing")
	}

	payload, err := m.fetcher.FetchLatest(ctx, currency.Base)
	if err == nil && payload.Rejected() {
		err = &FetchError{Kind: ProviderRejected, Reason: payload.ErrorType}
	}
	if err != nil {
		logger.Errorf("rates: fetch failed: %v", err)
		return m.fallback(entry)
	}

	m.writeEntry(ctx, payload, now)
	logger.Infof("rates: cached latest %s rates (%d currencies)", currency.Base, len(payload.ConversionRates))
	return payload, nil
}

func (m *Manager) fallback(entry *Entry) (*Payload, error) {
	if entry == nil {
		return nil, ErrNoDataAvailable
	}
	p, err := ParsePayload(entry.Data)
	if err != nil {
		logger.Errorf("rates: stale entry unreadable: %v", err)
		return nil, ErrNoDataAvailable
	}
	logger.Warnf("rates: serving stale rates from %s", time.UnixMilli(entry.Timestamp).UTC().Format(time.RFC3339))
	return p, nil
}

// readEntry treats a missing, unreadable or empty entry as absent.
func (m *Manager) readEntry(ctx context.Context) *Entry {
	b, err := m.kv.Get(ctx, CacheKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		logger.Warnf("rates: read cache entry: %v", err)
		return nil
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		logger.Warnf("rates: decode cache entry: %v", err)
		return nil
	}
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return &e
}

// writeEntry is best-effort: a failed write is logged and the fetched payload is still served.
func (m *Manager) writeEntry(ctx context.Context, p *Payload, now time.Time) {
	b, err := json.Marshal(Entry{Data: p.Raw(), Timestamp: now.UnixMilli()})
	if err != nil {
		logger.Warnf("rates: encode cache entry: %v", err)
		return
	}
	if err := m.kv.Set(ctx, CacheKey, b); err != nil {
		logger.Warnf("rates: persist cache entry: %v", err)
	}
}

func (m *Manager) fresh(e *Entry, now time.Time) bool {
	return e.Timestamp > 0 && m.age(e, now) < m.ttl
}

func (m *Manager) age(e *Entry, now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(e.Timestamp))
}

// Warm runs a lookup for lifecycle hooks (install, startup) and logs the outcome.
func (m *Manager) Warm(ctx context.Context, reason string) error {
	p, err := m.GetRates(ctx)
	if err != nil {
		logger.Errorf("rates: %s warm-up failed: %v", reason, err)
		return err
	}
	logger.Infof("rates: %s warm-up ok (%d rates)", reason, len(p.ConversionRates))
	return nil
}
