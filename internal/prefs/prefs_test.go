package prefs

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/imoney-mcp/internal/currency"
	"github.com/leonardcser/imoney-mcp/internal/i18n"
	"github.com/leonardcser/imoney-mcp/internal/store"
)

func stored(t *testing.T, kv store.KV, key string) string {
	t.Helper()
	b, err := kv.Get(context.Background(), key)
	require.NoError(t, err)
	return string(b)
}

func TestGetCurrencyList_EmptyStorePersistsDefault(t *testing.T) {
	kv := store.NewMemory()
	a := New(kv)

	list := a.GetCurrencyList(context.Background())
	assert.Equal(t, []string{"USD", "CNY", "JPY", "GBP", "EUR"}, list)
	assert.JSONEq(t, `["USD","CNY","JPY","GBP","EUR"]`, stored(t, kv, CurrencyListKey))
}

func TestGetCurrencyList_Normalizes(t *testing.T) {
	kv := store.NewMemory()
	require.NoError(t, kv.Set(context.Background(), CurrencyListKey, []byte(`["EUR","USD","USD","XXX"]`)))

	assert.Equal(t, []string{"USD", "EUR"}, New(kv).GetCurrencyList(context.Background()))
}

func TestGetCurrencyList_GarbageFallsBackToDefault(t *testing.T) {
	for _, raw := range []string{`"USD"`, `[]`, `["XXX"]`, `{`, `[1,2]`} {
		t.Run(raw, func(t *testing.T) {
			kv := store.NewMemory()
			require.NoError(t, kv.Set(context.Background(), CurrencyListKey, []byte(raw)))
			assert.Equal(t, currency.DefaultDisplayed(), New(kv).GetCurrencyList(context.Background()))
		})
	}
}

type brokenKV struct{ store.KV }

func (brokenKV) Get(context.Context, string) ([]byte, error) { return nil, errors.New("io error") }
func (brokenKV) Set(context.Context, string, []byte) error   { return errors.New("io error") }

func TestAdapter_StoreFailuresAreBestEffort(t *testing.T) {
	a := New(brokenKV{KV: store.NewMemory()})
	ctx := context.Background()

	assert.Equal(t, currency.DefaultDisplayed(), a.GetCurrencyList(ctx))
	assert.Equal(t, i18n.English, a.GetLanguage(ctx))
	assert.NoError(t, a.SetLanguage(ctx, i18n.Chinese))
	assert.Equal(t, []string{"USD", "EUR"}, a.SetCurrencyList(ctx, []string{"EUR"}))

	_, err := a.LoadCurrencyList(ctx)
	assert.Error(t, err)
	_, err = a.LoadLanguage(ctx)
	assert.Error(t, err)
}

func TestAddRemoveCurrency(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	a := New(kv)

	list, err := a.AddCurrency(ctx, " sar ")
	require.NoError(t, err)
	assert.Equal(t, []string{"USD", "CNY", "JPY", "GBP", "EUR", "SAR"}, list)

	list, err = a.AddCurrency(ctx, "SAR")
	require.NoError(t, err)
	assert.Equal(t, 1, countOf(list, "SAR"))

	list, err = a.RemoveCurrency(ctx, "JPY")
	require.NoError(t, err)
	assert.Equal(t, []string{"USD", "CNY", "GBP", "EUR", "SAR"}, list)
	assert.JSONEq(t, `["USD","CNY","GBP","EUR","SAR"]`, stored(t, kv, CurrencyListKey))

	_, err = a.AddCurrency(ctx, "XXX")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
	_, err = a.RemoveCurrency(ctx, "XXX")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestRemoveBaseIsNoop(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	a := New(kv)
	before := a.GetCurrencyList(ctx)

	after, err := a.RemoveCurrency(ctx, "usd")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, before, a.GetCurrencyList(ctx))
}

func TestCurrencyListInvariantUnderRandomOps(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	codes := append(slices.Clone(currency.Supported), "XXX", "usd", " eur")

	for run := 0; run < 20; run++ {
		a := New(store.NewMemory())
		for op := 0; op < 60; op++ {
			code := codes[rng.Intn(len(codes))]
			if rng.Intn(2) == 0 {
				_, _ = a.AddCurrency(ctx, code)
			} else {
				_, _ = a.RemoveCurrency(ctx, code)
			}

			list := a.GetCurrencyList(ctx)
			require.NotEmpty(t, list)
			require.Equal(t, currency.Base, list[0])
			seen := map[string]bool{}
			for _, c := range list {
				require.True(t, currency.IsSupported(c), c)
				require.False(t, seen[c], "duplicate %s in %v", c, list)
				seen[c] = true
			}
		}
	}
}

func TestLanguageRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	a := New(kv)

	assert.Equal(t, i18n.English, a.GetLanguage(ctx))
	require.NoError(t, a.SetLanguage(ctx, i18n.Chinese))
	assert.Equal(t, i18n.Chinese, a.GetLanguage(ctx))

	err := a.SetLanguage(ctx, i18n.Language("fr"))
	assert.ErrorIs(t, err, ErrInvalidLanguage)
	assert.Equal(t, i18n.Chinese, a.GetLanguage(ctx))
	assert.Equal(t, `"zh"`, stored(t, kv, LanguageKey))
}

func TestGetLanguage_InvalidStoredValue(t *testing.T) {
	kv := store.NewMemory()
	require.NoError(t, kv.Set(context.Background(), LanguageKey, []byte(`"de"`)))
	assert.Equal(t, i18n.English, New(kv).GetLanguage(context.Background()))
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	kv := store.NewMemory()
	a := New(kv)

	events, err := a.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, a.SetLanguage(ctx, i18n.Chinese))
	require.NoError(t, kv.Set(ctx, LanguageKey, []byte(`"fr"`))) // skipped
	a.SetCurrencyList(ctx, []string{"GBP", "USD"})
	require.NoError(t, kv.Set(ctx, "exchangeRates", []byte(`{"data":{},"timestamp":1}`)))
	require.NoError(t, kv.Set(ctx, "unrelated", []byte(`1`))) // skipped

	want := []Event{
		{Kind: LanguageChanged, Language: i18n.Chinese},
		{Kind: CurrencyListChanged, Currencies: []string{"USD", "GBP"}},
		{Kind: RatesUpdated},
	}
	for _, w := range want {
		select {
		case ev := <-events:
			assert.Equal(t, w, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %v", w)
		}
	}
}

func countOf(list []string, code string) int {
	n := 0
	for _, c := range list {
		if c == code {
			n++
		}
	}
	return n
}
