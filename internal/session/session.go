// Package session holds the state of one UI context: the displayed
// currencies, the language and the last rate snapshot. The store stays the
// source of truth; this state is refreshed from its change notifications.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/leonardcser/imoney-mcp/internal/broker"
	"github.com/leonardcser/imoney-mcp/internal/currency"
	"github.com/leonardcser/imoney-mcp/internal/i18n"
	"github.com/leonardcser/imoney-mcp/internal/logger"
	"github.com/leonardcser/imoney-mcp/internal/prefs"
	"github.com/leonardcser/imoney-mcp/internal/rates"
)

// Sender delivers a message to the background broker.
type Sender interface {
	Send(ctx context.Context, msg broker.Message) (broker.Response, error)
}

// ErrRatesUnavailable wraps every failure to obtain rates.
var ErrRatesUnavailable = errors.New("session: rates unavailable")

// DefaultRatesMaxAge bounds how long a snapshot is reused before the
// broker is asked again. The broker answers from its own cache while that
// is fresh, so a short window only saves round trips within a burst.
const DefaultRatesMaxAge = time.Minute

type Session struct {
	prefs  *prefs.Adapter
	sender Sender
	maxAge time.Duration
	now    func() time.Time

	mu         sync.RWMutex
	currencies []string
	lang       i18n.Language
	snapshot   *rates.Snapshot
	fetchedAt  time.Time
}

type Option func(*Session)

// WithRatesMaxAge overrides DefaultRatesMaxAge. Zero or less disables reuse.
func WithRatesMaxAge(d time.Duration) Option {
	return func(s *Session) { s.maxAge = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func New(p *prefs.Adapter, sender Sender, opts ...Option) *Session {
	s := &Session{
		prefs:      p,
		sender:     sender,
		maxAge:     DefaultRatesMaxAge,
		now:        time.Now,
		currencies: currency.DefaultDisplayed(),
		lang:       i18n.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads both preferences from the store.
func (s *Session) Load(ctx context.Context) {
	list := s.prefs.GetCurrencyList(ctx)
	lang := s.prefs.GetLanguage(ctx)
	s.mu.Lock()
	s.currencies, s.lang = list, lang
	s.mu.Unlock()
}

// Run subscribes to preference changes, re-reads both preferences so
// nothing written before the subscription is missed, then applies events
// until ctx is done or the stream ends. A stream that ends while ctx is
// still live returns nil.
func (s *Session) Run(ctx context.Context) error {
	events, err := s.prefs.Watch(ctx)
	if err != nil {
		return err
	}
	s.resync(ctx)
	for ev := range events {
		s.Apply(ev)
	}
	return ctx.Err()
}

// Follow keeps Run going until ctx is done, waiting between attempts as
// policy dictates. The policy is reset after every stream that was
// established, so a daemon restart is picked up quickly.
func (s *Session) Follow(ctx context.Context, policy backoff.BackOff) error {
	b := backoff.WithContext(policy, ctx)
	for {
		err := s.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logger.Warnf("session: subscribe to changes: %v", err)
		} else {
			logger.Warnf("session: change stream ended, resubscribing")
			b.Reset()
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == nil {
				err = errors.New("stream ended")
			}
			return fmt.Errorf("session: giving up on change stream: %w", err)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// DefaultFollowPolicy retries forever, from 200ms up to 10s between attempts.
func DefaultFollowPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// resync adopts the stored preferences. Values that cannot be read keep
// their in-memory copy.
func (s *Session) resync(ctx context.Context) {
	list, listErr := s.prefs.LoadCurrencyList(ctx)
	lang, langErr := s.prefs.LoadLanguage(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if listErr == nil {
		s.currencies = list
	}
	if langErr == nil {
		s.lang = lang
	}
	s.snapshot = nil
}

// Apply updates the in-memory state from one event.
func (s *Session) Apply(ev prefs.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Kind {
	case prefs.CurrencyListChanged:
		s.currencies = slices.Clone(ev.Currencies)
	case prefs.LanguageChanged:
		s.lang = ev.Language
	case prefs.RatesUpdated:
		s.snapshot = nil
	}
}

func (s *Session) Currencies() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.currencies)
}

func (s *Session) Language() i18n.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lang
}

// Rates returns the in-memory snapshot while it is younger than the max
// age and no cache write was observed since; otherwise it asks the broker,
// which is what lets the background refresh an expired cache entry.
func (s *Session) Rates(ctx context.Context) (rates.Snapshot, error) {
	now := s.now()
	s.mu.RLock()
	snap, fetchedAt := s.snapshot, s.fetchedAt
	s.mu.RUnlock()
	if snap != nil && now.Sub(fetchedAt) < s.maxAge {
		return *snap, nil
	}

	resp, err := s.sender.Send(ctx, broker.Message{Action: broker.ActionGetRates})
	if err != nil {
		return rates.Snapshot{}, fmt.Errorf("%w: %v", ErrRatesUnavailable, err)
	}
	if resp.Error != "" {
		return rates.Snapshot{}, fmt.Errorf("%w: %s", ErrRatesUnavailable, resp.Error)
	}
	p, err := rates.ParsePayload(resp.Data)
	if err != nil {
		return rates.Snapshot{}, fmt.Errorf("%w: decode: %v", ErrRatesUnavailable, err)
	}
	fresh := p.Snapshot(currency.Base)
	s.mu.Lock()
	s.snapshot, s.fetchedAt = &fresh, now
	s.mu.Unlock()
	return fresh, nil
}

// AddCurrency persists the addition, then re-reads the normalized list.
func (s *Session) AddCurrency(ctx context.Context, code string) ([]string, error) {
	list, err := s.prefs.AddCurrency(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, list), nil
}

// RemoveCurrency persists the removal, then re-reads the normalized list.
func (s *Session) RemoveCurrency(ctx context.Context, code string) ([]string, error) {
	list, err := s.prefs.RemoveCurrency(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, list), nil
}

// settle adopts the list read back from the store, which may include
// writes from other contexts. When the store cannot be read the local
// result stays authoritative for this session.
func (s *Session) settle(ctx context.Context, local []string) []string {
	list, err := s.prefs.LoadCurrencyList(ctx)
	if err != nil {
		logger.Warnf("session: re-read currency list: %v", err)
		list = local
	}
	s.mu.Lock()
	s.currencies = list
	s.mu.Unlock()
	return slices.Clone(list)
}

// SetLanguage persists lang and adopts it.
func (s *Session) SetLanguage(ctx context.Context, lang i18n.Language) error {
	if err := s.prefs.SetLanguage(ctx, lang); err != nil {
		return err
	}
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
	return nil
}

// ToggleLanguage switches to the other language and returns it.
func (s *Session) ToggleLanguage(ctx context.Context) (i18n.Language, error) {
	next := s.Language().Other()
	if err := s.SetLanguage(ctx, next); err != nil {
		return s.Language(), err
	}
	return next, nil
}
