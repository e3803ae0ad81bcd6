package rates

import (
	"encoding/json"
	"math"
)

// ResultSuccess is the provider's business status for a usable response.
const ResultSuccess = "success"

// Payload is the provider response for one base currency. The raw bytes
// are kept so the cache and the message channel carry the full response,
// not only the fields decoded here.
// See: https://www.exchangerate-api.com/docs/standard-requests
type Payload struct {
	Result             string             `json:"result"`
	BaseCode           string             `json:"base_code"`
	TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
	TimeNextUpdateUnix int64              `json:"time_next_update_unix"`
	ConversionRates    map[string]float64 `json:"conversion_rates"`
	ErrorType          string             `json:"error-type,omitempty"`

	raw json.RawMessage
}

// ParsePayload decodes b and retains it as the raw payload.
func ParsePayload(b []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	p.raw = append(json.RawMessage(nil), b...)
	return &p, nil
}

// Raw returns the payload as received from the provider.
func (p *Payload) Raw() json.RawMessage {
	if p.raw != nil {
		return p.raw
	}
	b, _ := json.Marshal(p)
	return b
}

// Rejected reports a business failure flagged in the body. A missing
// result field is accepted.
func (p *Payload) Rejected() bool {
	return p.Result != "" && p.Result != ResultSuccess
}

// Snapshot is the usable subset of a payload: rates relative to Base.
type Snapshot struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Snapshot drops rates that are not finite and positive and pins the base to 1.
func (p *Payload) Snapshot(base string) Snapshot {
	if p.BaseCode != "" {
		base = p.BaseCode
	}
	s := Snapshot{Base: base, Rates: make(map[string]float64, len(p.ConversionRates))}
	for code, r := range p.ConversionRates {
		if usable(r) {
			s.Rates[code] = r
		}
	}
	s.Rates[base] = 1
	return s
}

// Rate returns the multiplier for code when it is usable.
func (s Snapshot) Rate(code string) (float64, bool) {
	r, ok := s.Rates[code]
	if !ok || !usable(r) {
		return 0, false
	}
	return r, true
}

func usable(r float64) bool {
	return r > 0 && !math.IsInf(r, 0) && !math.IsNaN(r)
}
