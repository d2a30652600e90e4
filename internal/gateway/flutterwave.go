package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skaet/ussd_bank/internal/apperr"
	"github.com/skaet/ussd_bank/internal/logging"
)

const (
	// FlutterwaveName is the registry name of the Flutterwave gateway.
	FlutterwaveName = "flutterwave"

	defaultFlutterwaveBaseURL = "https://api.flutterwave.com/v3"
	defaultDepositBank        = "058"
	currencyNGN               = "NGN"
)

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("flutterwave: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

type chargeRequest struct {
	AccountBank string      `json:"account_bank"`
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	Email       string      `json:"email"`
	TxRef       string      `json:"tx_ref"`
	PhoneNumber string      `json:"phone_number"`
	FullName    string      `json:"fullname"`
}

type transferRequest struct {
	AccountBank   string      `json:"account_bank"`
	AccountNumber string      `json:"account_number"`
	Amount        json.Number `json:"amount"`
	Currency      string      `json:"currency"`
	Reference     string      `json:"reference"`
	Narration     string      `json:"narration"`
	DebitCurrency string      `json:"debit_currency"`
}

type flutterwaveResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID        int64           `json:"id"`
		TxRef     string          `json:"tx_ref"`
		FlwRef    string          `json:"flw_ref"`
		Reference string          `json:"reference"`
		Status    string          `json:"status"`
		Amount    decimal.Decimal `json:"amount"`
		Currency  string          `json:"currency"`
	} `json:"data"`
	Meta struct {
		Authorization struct {
			Mode string `json:"mode"`
			Note string `json:"note"`
		} `json:"authorization"`
	} `json:"meta"`
}

// Flutterwave talks to the Flutterwave v3 API. Any transport error, timeout,
// non-2xx status, or non-success payload becomes ErrFailed.
type Flutterwave struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *slog.Logger
	reference  func() string
}

type Option func(*Flutterwave)

func WithBaseURL(baseURL string) Option {
	return func(f *Flutterwave) {
		f.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(f *Flutterwave) {
		f.httpClient = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Flutterwave) {
		f.logger = logger
	}
}

// WithReferenceFunc replaces the reference generator. Tests pin references with it.
func WithReferenceFunc(fn func() string) Option {
	return func(f *Flutterwave) {
		f.reference = fn
	}
}

// NewFlutterwave builds the client. The secret key is mandatory.
func NewFlutterwave(secretKey string, opts ...Option) (*Flutterwave, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("flutterwave: secret key must not be empty")
	}
	f := &Flutterwave{
		baseURL:    defaultFlutterwaveBaseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
		reference:  NewReference,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Flutterwave) Name() string { return FlutterwaveName }

func (f *Flutterwave) Available(context.Context) bool { return f.secretKey != "" }

// InitiateDeposit opens a USSD charge. The dial code from meta.authorization.note
// is returned as the instructions.
func (f *Flutterwave) InitiateDeposit(ctx context.Context, req DepositRequest) (Initiation, error) {
	ref := f.reference()
	payload := chargeRequest{
		AccountBank: defaultDepositBank,
		Amount:      json.Number(req.Amount.String()),
		Currency:    currencyNGN,
		Email:       req.Phone + "@skaet.com",
		TxRef:       ref,
		PhoneNumber: req.Phone,
		FullName:    "SKAET Customer",
	}

	res, err := f.post(ctx, "/charges?type=ussd", payload)
	if err != nil {
		f.logger.Error("flutterwave deposit failed", logging.Phone(req.Phone), "reference", ref, "error", err)
		return Initiation{}, apperr.Wrap(apperr.KindGateway, "deposit initiation", errors.Join(ErrFailed, err))
	}

	txRef := res.Data.TxRef
	if txRef == "" {
		txRef = ref
	}
	return Initiation{Reference: txRef, Instructions: res.Meta.Authorization.Note}, nil
}

// InitiateWithdrawal queues a bank transfer.
func (f *Flutterwave) InitiateWithdrawal(ctx context.Context, req WithdrawalRequest) (Initiation, error) {
	ref := f.reference()
	payload := transferRequest{
		AccountBank:   req.BankCode,
		AccountNumber: req.AccountNumber,
		Amount:        json.Number(req.Amount.String()),
		Currency:      currencyNGN,
		Reference:     ref,
		Narration:     "Withdrawal to bank account",
		DebitCurrency: currencyNGN,
	}

	res, err := f.post(ctx, "/transfers", payload)
	if err != nil {
		f.logger.Error("flutterwave withdrawal failed", logging.Phone(req.Phone), "reference", ref, "error", err)
		return Initiation{}, apperr.Wrap(apperr.KindGateway, "withdrawal initiation", errors.Join(ErrFailed, err))
	}

	reference := res.Data.Reference
	if reference == "" {
		reference = ref
	}
	return Initiation{Reference: reference}, nil
}

// Verify fetches the processor's record for reference.
func (f *Flutterwave) Verify(ctx context.Context, reference string) (Verification, error) {
	endpoint := f.baseURL + "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(reference)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Verification{}, fmt.Errorf("flutterwave: create request: %w", err)
	}
	res, err := f.do(httpReq, endpoint)
	if err != nil {
		return Verification{}, apperr.Wrap(apperr.KindGateway, "verify transaction", err)
	}
	return Verification{
		Reference: reference,
		Status:    res.Data.Status,
		Amount:    res.Data.Amount,
		Currency:  res.Data.Currency,
	}, nil
}

func (f *Flutterwave) post(ctx context.Context, path string, payload any) (flutterwaveResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return flutterwaveResponse{}, fmt.Errorf("flutterwave: marshal request: %w", err)
	}
	endpoint := f.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return flutterwaveResponse{}, fmt.Errorf("flutterwave: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return f.do(req, endpoint)
}

func (f *Flutterwave) do(req *http.Request, endpoint string) (flutterwaveResponse, error) {
	req.Header.Set("Authorization", "Bearer "+f.secretKey)

	res, err := f.httpClient.Do(req)
	if err != nil {
		return flutterwaveResponse{}, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return flutterwaveResponse{}, &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}

	var payload flutterwaveResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload); err != nil {
		return flutterwaveResponse{}, fmt.Errorf("flutterwave: decode response: %w", err)
	}
	if !strings.EqualFold(payload.Status, "success") {
		return flutterwaveResponse{}, fmt.Errorf("flutterwave: status %q: %s", payload.Status, payload.Message)
	}
	return payload, nil
}
