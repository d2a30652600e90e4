package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// HTTPStatusError captures non-2xx responses from the rate API.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("currency: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPProvider reads rates from a currencyapi.com compatible endpoint.
// Concurrent lookups of the same pair share one upstream request.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	group      singleflight.Group
}

type ProviderOption func(*HTTPProvider)

func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *HTTPProvider) {
		p.httpClient = httpClient
	}
}

// NewHTTPProvider builds a provider for baseURL.
func NewHTTPProvider(baseURL, apiKey string, opts ...ProviderOption) *HTTPProvider {
	p := &HTTPProvider{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Rate fetches the unrounded base->target rate. The shared request is
// detached from the caller that started it and bounded by the client
// timeout, so one cancelled session cannot fail the others waiting on it.
func (p *HTTPProvider) Rate(ctx context.Context, base, target Code) (decimal.Decimal, error) {
	detached := context.WithoutCancel(ctx)
	ch := p.group.DoChan(string(base)+"/"+string(target), func() (any, error) {
		return p.fetch(detached, base, target)
	})
	select {
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return decimal.Zero, res.Err
		}
		return res.Val.(decimal.Decimal), nil
	}
}

func (p *HTTPProvider) fetch(ctx context.Context, base, target Code) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("apikey", p.apiKey)
	q.Set("base_currency", string(base))
	q.Set("currencies", string(target))
	endpoint := p.baseURL + "/latest?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("currency: create request: %w", err)
	}
	res, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("currency: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return decimal.Zero, &HTTPStatusError{StatusCode: res.StatusCode, Body: string(buf)}
	}

	var payload struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("currency: decode response: %w", err)
	}
	raw, ok := payload.Data[string(target)]
	if !ok {
		return decimal.Zero, fmt.Errorf("currency: no rate for %s in response", target)
	}
	return parseRate(raw)
}

// parseRate accepts either a bare number or an object carrying "value".
func parseRate(raw json.RawMessage) (decimal.Decimal, error) {
	var direct decimal.Decimal
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct, nil
	}
	var wrapped struct {
		Value decimal.Decimal `json:"value"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return decimal.Zero, fmt.Errorf("currency: parse rate %s: %w", string(raw), err)
	}
	return wrapped.Value, nil
}
