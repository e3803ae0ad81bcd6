package rates

import (
	"errors"
	"fmt"
)

// ErrNoDataAvailable means the fetch failed and no cache entry exists to fall back to.
// Its text is the error string sent across the message channel.
var ErrNoDataAvailable = errors.New("NO_DATA_AVAILABLE")

// ErrorKind classifies a failed provider fetch.
type ErrorKind int

const (
	// Transport covers network failures and unreadable bodies.
	Transport ErrorKind = iota
	// HTTPStatus is a non-2xx response.
	HTTPStatus
	// ProviderRejected is a 2xx response whose body reports a non-success result.
	ProviderRejected
)

func (k ErrorKind) String() string {
	switch k {
	case Transport:
		return "transport"
	case HTTPStatus:
		return "http_status"
	case ProviderRejected:
		return "provider_rejected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FetchError is returned by the provider client.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int    // set for HTTPStatus
	Reason     string // provider error-type, or an HTML error page title for HTTPStatus
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case HTTPStatus:
		if e.Reason != "" {
			return fmt.Sprintf("rates: HTTP %d: %s", e.StatusCode, e.Reason)
		}
		return fmt.Sprintf("rates: HTTP %d", e.StatusCode)
	case ProviderRejected:
		if e.Reason != "" {
			return "rates: provider rejected request: " + e.Reason
		}
		return "rates: provider rejected request"
	default:
		if e.Err != nil {
			return "rates: transport: " + e.Err.Error()
		}
		return "rates: transport failure"
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsKind reports whether err is a FetchError of kind k.
func IsKind(err error, k ErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == k
}
