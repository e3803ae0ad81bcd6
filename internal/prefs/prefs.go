// Package prefs reads and writes the user preferences shared by every UI context.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/leonardcser/imoney-mcp/internal/currency"
	"github.com/leonardcser/imoney-mcp/internal/i18n"
	"github.com/leonardcser/imoney-mcp/internal/logger"
	"github.com/leonardcser/imoney-mcp/internal/store"
)

// Store keys.
const (
	CurrencyListKey = "userCurrencyList"
	LanguageKey     = "languagePreference"
)

var (
	ErrUnsupportedCurrency = errors.New("prefs: unsupported currency")
	ErrInvalidLanguage     = errors.New("prefs: invalid language")
)

// Adapter wraps a store.KV with typed, normalized preference access.
// Writes go through the store only; other contexts learn about them from
// the store's change notifications.
type Adapter struct {
	kv       store.KV
	validate *validator.Validate
}

func New(kv store.KV) *Adapter {
	return &Adapter{kv: kv, validate: validator.New()}
}

// GetCurrencyList returns the normalized displayed list. An absent or
// unusable stored value is replaced by the default list, which is persisted.
// A read failure yields the default list without persisting it.
func (a *Adapter) GetCurrencyList(ctx context.Context) []string {
	list, err := a.LoadCurrencyList(ctx)
	if err != nil {
		logger.Warnf("prefs: load currency list: %v", err)
		return currency.DefaultDisplayed()
	}
	return list
}

// LoadCurrencyList is GetCurrencyList but reports store read failures
// instead of substituting the default list.
func (a *Adapter) LoadCurrencyList(ctx context.Context) ([]string, error) {
	b, err := a.kv.Get(ctx, CurrencyListKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return a.persistDefault(ctx), nil
	case err != nil:
		return nil, err
	}
	list, ok := decodeList(b)
	if !ok || !hasSupported(list) {
		return a.persistDefault(ctx), nil
	}
	return currency.Normalize(list), nil
}

func (a *Adapter) persistDefault(ctx context.Context) []string {
	list := currency.DefaultDisplayed()
	a.write(ctx, CurrencyListKey, list)
	return list
}

// SetCurrencyList normalizes list, replaces the stored value and returns what was written.
func (a *Adapter) SetCurrencyList(ctx context.Context, list []string) []string {
	normalized := currency.Normalize(list)
	a.write(ctx, CurrencyListKey, normalized)
	return normalized
}

// AddCurrency appends code to the displayed list.
func (a *Adapter) AddCurrency(ctx context.Context, code string) ([]string, error) {
	code = currency.Sanitize(code)
	if err := a.validate.Var(code, "required,len=3,alpha"); err != nil || !currency.IsSupported(code) {
		return nil, ErrUnsupportedCurrency
	}
	list := a.GetCurrencyList(ctx)
	if slices.Contains(list, code) {
		return list, nil
	}
	return a.SetCurrencyList(ctx, append(list, code)), nil
}

// RemoveCurrency drops code from the displayed list. Removing the base
// currency is silently ignored.
func (a *Adapter) RemoveCurrency(ctx context.Context, code string) ([]string, error) {
	code = currency.Sanitize(code)
	list := a.GetCurrencyList(ctx)
	if code == currency.Base {
		return list, nil
	}
	if !currency.IsSupported(code) {
		return nil, ErrUnsupportedCurrency
	}
	if !slices.Contains(list, code) {
		return list, nil
	}
	return a.SetCurrencyList(ctx, slices.DeleteFunc(list, func(c string) bool { return c == code })), nil
}

// GetLanguage returns the stored language or the default when absent or invalid.
func (a *Adapter) GetLanguage(ctx context.Context) i18n.Language {
	lang, err := a.LoadLanguage(ctx)
	if err != nil {
		logger.Warnf("prefs: load language: %v", err)
		return i18n.Default
	}
	return lang
}

// LoadLanguage is GetLanguage but reports store read failures.
func (a *Adapter) LoadLanguage(ctx context.Context) (i18n.Language, error) {
	b, err := a.kv.Get(ctx, LanguageKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return i18n.Default, nil
	case err != nil:
		return "", err
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return i18n.Default, nil
	}
	lang, _ := i18n.Parse(s)
	return lang, nil
}

// SetLanguage persists lang. Unrecognized values are rejected without writing.
func (a *Adapter) SetLanguage(ctx context.Context, lang i18n.Language) error {
	if err := a.validate.Var(string(lang), "oneof=en zh"); err != nil {
		return ErrInvalidLanguage
	}
	a.write(ctx, LanguageKey, string(lang))
	return nil
}

// write is best-effort: failures are logged and the caller keeps its in-memory value.
func (a *Adapter) write(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("prefs: encode %s: %v", key, err)
		return
	}
	if err := a.kv.Set(ctx, key, b); err != nil {
		logger.Warnf("prefs: save %s: %v", key, err)
	}
}

func decodeList(b []byte) ([]string, bool) {
	var list []string
	if err := json.Unmarshal(b, &list); err != nil || len(list) == 0 {
		return nil, false
	}
	return list, true
}

func hasSupported(list []string) bool {
	return slices.ContainsFunc(list, func(c string) bool { return currency.IsSupported(currency.Sanitize(c)) })
}
