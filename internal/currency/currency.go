// Package currency holds the catalogue of currencies the converter supports.
package currency

import (
	"slices"
	"strings"

	"github.com/leonardcser/imoney-mcp/internal/i18n"
)

// Base is the currency every stored rate is quoted against. It is always
// displayed first and cannot be removed.
const Base = "USD"

// Details carries the display names of a currency.
type Details struct {
	Name   string // Chinese
	EnName string
}

// Supported lists the selectable currencies in catalogue order.
var Supported = []string{
	"USD", "CNY", "JPY", "GBP", "EUR", "HKD", "CAD", "AUD", "CHF", "SGD",
	"KRW", "TWD", "THB", "MYR", "NZD", "INR", "RUB", "BRL", "MXN", "SAR",
}

var details = map[string]Details{
	"USD": {Name: "美元", EnName: "US Dollar"},
	"CNY": {Name: "人民币", EnName: "Chinese Yuan"},
	"JPY": {Name: "日元", EnName: "Japanese Yen"},
	"GBP": {Name: "英镑", EnName: "British Pound"},
	"EUR": {Name: "欧元", EnName: "Euro"},
	"HKD": {Name: "港币", EnName: "Hong Kong Dollar"},
	"CAD": {Name: "加元", EnName: "Canadian Dollar"},
	"AUD": {Name: "澳元", EnName: "Australian Dollar"},
	"CHF": {Name: "瑞士法郎", EnName: "Swiss Franc"},
	"SGD": {Name: "新加坡元", EnName: "Singapore Dollar"},
	"KRW": {Name: "韩元", EnName: "South Korean Won"},
	"TWD": {Name: "新台币", EnName: "New Taiwan Dollar"},
	"THB": {Name: "泰铢", EnName: "Thai Baht"},
	"MYR": {Name: "马来西亚令吉", EnName: "Malaysian Ringgit"},
	"NZD": {Name: "新西兰元", EnName: "New Zealand Dollar"},
	"INR": {Name: "印度卢比", EnName: "Indian Rupee"},
	"RUB": {Name: "俄罗斯卢布", EnName: "Russian Ruble"},
	"BRL": {Name: "巴西雷亚尔", EnName: "Brazilian Real"},
	"MXN": {Name: "墨西哥比索", EnName: "Mexican Peso"},
	"SAR": {Name: "沙特里亚尔", EnName: "Saudi Riyal"},
}

// DefaultDisplayed returns a fresh copy of the list shown on first use.
func DefaultDisplayed() []string {
	return []string{"USD", "CNY", "JPY", "GBP", "EUR"}
}

// IsSupported reports whether code is in the catalogue.
func IsSupported(code string) bool { return slices.Contains(Supported, code) }

// Sanitize trims and upper-cases a user supplied code.
func Sanitize(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

// Lookup returns the details for code; unknown codes use the code as both names.
func Lookup(code string) Details {
	if d, ok := details[code]; ok {
		return d
	}
	return Details{Name: code, EnName: code}
}

// DisplayName picks the name matching lang.
func DisplayName(code string, lang i18n.Language) string {
	d := Lookup(code)
	if lang == i18n.Chinese {
		return d.Name
	}
	return d.EnName
}

// Normalize applies the displayed-list invariant: sanitized supported codes,
// no duplicates, base first. An input with no supported code yields the
// default list.
func Normalize(list []string) []string {
	out := make([]string, 0, len(list)+1)
	for _, raw := range list {
		code := Sanitize(raw)
		if code == "" || code == Base || !IsSupported(code) || slices.Contains(out, code) {
			continue
		}
		out = append(out, code)
	}
	if len(out) == 0 && !slices.ContainsFunc(list, func(c string) bool { return Sanitize(c) == Base }) {
		return DefaultDisplayed()
	}
	return append([]string{Base}, out...)
}
