package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTermiiBaseURL = "https://api.ng.termii.com"

// HTTPStatusError captures non-2xx responses from the SMS provider.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("termii: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

type smsRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	SMS     string `json:"sms"`
	Type    string `json:"type"`
	Channel string `json:"channel"`
	APIKey  string `json:"api_key"`
}

// TermiiNotifier delivers SMS through the Termii messaging API.
type TermiiNotifier struct {
	baseURL    string
	apiKey     string
	sender     string
	channel    string
	httpClient *http.Client
}

type TermiiOption func(*TermiiNotifier)

func WithTermiiBaseURL(baseURL string) TermiiOption {
	return func(n *TermiiNotifier) {
		n.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithTermiiHTTPClient(httpClient *http.Client) TermiiOption {
	return func(n *TermiiNotifier) {
		n.httpClient = httpClient
	}
}

func WithSender(sender string) TermiiOption {
	return func(n *TermiiNotifier) {
		n.sender = sender
	}
}

func WithChannel(channel string) TermiiOption {
	return func(n *TermiiNotifier) {
		n.channel = channel
	}
}

// NewTermiiNotifier builds a Termii client. The API key is mandatory.
func NewTermiiNotifier(apiKey string, opts ...TermiiOption) (*TermiiNotifier, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("termii: api key must not be empty")
	}
	n := &TermiiNotifier{
		baseURL:    defaultTermiiBaseURL,
		apiKey:     apiKey,
		channel:    "generic",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Send posts a plain SMS to the destination in international format.
func (n *TermiiNotifier) Send(ctx context.Context, message Message) error {
	if message.Destination == "" {
		return errors.New("termii: destination must not be empty")
	}
	body, err := json.Marshal(smsRequest{
		To:      InternationalPhone(message.Destination),
		From:    n.sender,
		SMS:     message.Body,
		Type:    "plain",
		Channel: n.channel,
		APIKey:  n.apiKey,
	})
	if err != nil {
		return fmt.Errorf("termii: marshal request: %w", err)
	}

	url := n.baseURL + "/api/sms/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("termii: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("termii: send: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<16))
	return nil
}

// InternationalPhone strips '+' and rewrites a local leading 0 to the 234 country code.
func InternationalPhone(phone string) string {
	phone = strings.ReplaceAll(phone, "+", "")
	if !strings.HasPrefix(phone, "234") && strings.HasPrefix(phone, "0") {
		phone = "234" + phone[1:]
	}
	return phone
}
