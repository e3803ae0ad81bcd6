package prefs

import (
	"context"
	"encoding/json"

	"github.com/leonardcser/imoney-mcp/internal/currency"
	"github.com/leonardcser/imoney-mcp/internal/i18n"
	"github.com/leonardcser/imoney-mcp/internal/logger"
	"github.com/leonardcser/imoney-mcp/internal/rates"
	"github.com/leonardcser/imoney-mcp/internal/store"
)

// EventKind identifies which shared value changed.
type EventKind int

const (
	CurrencyListChanged EventKind = iota + 1
	LanguageChanged
	// RatesUpdated means the rate cache entry was rewritten.
	RatesUpdated
)

// Event is a decoded store change relevant to a UI context.
type Event struct {
	Kind       EventKind
	Currencies []string      // CurrencyListChanged, normalized
	Language   i18n.Language // LanguageChanged
}

// Watch converts store changes into Events until ctx is done. Invalid
// language values are skipped, matching how a reader would ignore them.
func (a *Adapter) Watch(ctx context.Context) (<-chan Event, error) {
	changes, err := a.kv.Watch(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for c := range changes {
			ev, ok := decodeChange(c)
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func decodeChange(c store.Change) (Event, bool) {
	switch c.Key {
	case CurrencyListKey:
		list, ok := decodeList(c.NewValue)
		if !ok || !hasSupported(list) {
			return Event{Kind: CurrencyListChanged, Currencies: currency.DefaultDisplayed()}, true
		}
		return Event{Kind: CurrencyListChanged, Currencies: currency.Normalize(list)}, true
	case LanguageKey:
		var s string
		if c.Deleted() {
			return Event{Kind: LanguageChanged, Language: i18n.Default}, true
		}
		if err := json.Unmarshal(c.NewValue, &s); err != nil {
			logger.Warnf("prefs: ignoring undecodable language change: %v", err)
			return Event{}, false
		}
		lang, ok := i18n.Parse(s)
		if !ok {
			return Event{}, false
		}
		return Event{Kind: LanguageChanged, Language: lang}, true
	case rates.CacheKey:
		return Event{Kind: RatesUpdated}, true
	default:
		return Event{}, false
	}
}
