package rates

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/leonardcser/imoney-mcp/internal/logger"
)

const (
	DefaultProviderURL = "https://v6.exchangerate-api.com/v6"
	RequestTimeout     = 20 * time.Second
	MaxResponseSize    = 1 * 1024 * 1024 // 1MB
	userAgent          = "imoney-rates/0.1"
)

// Provider fetches the latest quotation set from exchangerate-api.
// It performs exactly one GET per call; retries and fallback belong to the Manager.
type Provider struct {
	c       *colly.Collector
	baseURL string
	apiKey  string
}

// NewProvider builds a client for GET {baseURL}/{apiKey}/latest/{base}.
func NewProvider(baseURL, apiKey string, timeout time.Duration) *Provider {
	if baseURL == "" {
		baseURL = DefaultProviderURL
	}
	if timeout <= 0 {
		timeout = RequestTimeout
	}
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.Async(false),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(MaxResponseSize),
		colly.UserAgent(userAgent),
	)
	c.SetRequestTimeout(timeout)
	return &Provider{c: c, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (p *Provider) endpoint(base string) string {
	return fmt.Sprintf("%s/%s/latest/%s", p.baseURL, p.apiKey, base)
}

// FetchLatest returns the provider payload for base or a *FetchError.
func (p *Provider) FetchLatest(ctx context.Context, base string) (*Payload, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Kind: Transport, Err: err}
	}

	// Clone per call so response callbacks never accumulate on the shared collector.
	c := p.c.Clone()
	c.Context = ctx
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
	})

	var (
		status      int
		body        []byte
		contentType string
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
		if r.Headers != nil {
			contentType = r.Headers.Get("Content-Type")
		}
	})

	logger.Debugf("rates: fetching latest %s from %s", base, p.baseURL)
	if err := c.Visit(p.endpoint(base)); err != nil {
		return nil, &FetchError{Kind: Transport, Err: err}
	}
	if status < 200 || status > 299 {
		return nil, &FetchError{Kind: HTTPStatus, StatusCode: status, Reason: errorReason(contentType, body)}
	}

	payload, err := ParsePayload(body)
	if err != nil {
		return nil, &FetchError{Kind: Transport, Err: fmt.Errorf("decode response: %w", err)}
	}
	if payload.Rejected() {
		return nil, &FetchError{Kind: ProviderRejected, Reason: payload.ErrorType}
	}
	return payload, nil
}

// errorReason summarizes a non-2xx body: the provider's error-type, or the
// title of an HTML error page served by something in front of it.
func errorReason(contentType string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return ""
		}
		return strings.Join(strings.Fields(doc.Find("head > title").First().Text()), " ")
	}
	if p, err := ParsePayload(body); err == nil {
		return p.ErrorType
	}
	return ""
}
