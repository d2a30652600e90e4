package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/skaet/ussd_bank/internal/apperr"
	"github.com/skaet/ussd_bank/internal/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Flutterwave {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewFlutterwave("FLWSECK-test",
		WithBaseURL(srv.URL),
		WithLogger(logging.Discard()),
		WithReferenceFunc(func() string { return "FLW-ABCD1234" }),
	)
	require.NoError(t, err)
	return c
}

func TestNewReferenceFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^FLW-[0-9A-F]{16}$`)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		ref := NewReference()
		require.Regexp(t, pattern, ref)
		_, dup := seen[ref]
		require.False(t, dup, "duplicate reference %s", ref)
		seen[ref] = struct{}{}
	}
}

func TestNewFlutterwave_RequiresKey(t *testing.T) {
	_, err := NewFlutterwave("")
	require.Error(t, err)
}

func TestFlutterwave_InitiateDeposit(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/charges", r.URL.Path)
		require.Equal(t, "ussd", r.URL.Query().Get("type"))
		require.Equal(t, "Bearer FLWSECK-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"status":"success","message":"Charge initiated","data":{"id":1,"tx_ref":"FLW-ABCD1234","flw_ref":"X1","status":"pending","amount":500,"currency":"NGN"},"meta":{"authorization":{"mode":"ussd","note":"*889*767*7682#"}}}`))
	})

	init, err := c.InitiateDeposit(context.Background(), DepositRequest{Phone: "08012345678", Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)
	require.Equal(t, "FLW-ABCD1234", init.Reference)
	require.Equal(t, "*889*767*7682#", init.Instructions)

	require.Equal(t, "058", body["account_bank"])
	require.Equal(t, float64(500), body["amount"])
	require.Equal(t, "NGN", body["currency"])
	require.Equal(t, "08012345678@skaet.com", body["email"])
	require.Equal(t, "FLW-ABCD1234", body["tx_ref"])
	require.Equal(t, "08012345678", body["phone_number"])
	require.Equal(t, "SKAET Customer", body["fullname"])
}

func TestFlutterwave_InitiateWithdrawal(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transfers", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"status":"success","message":"Transfer Queued","data":{"id":7,"reference":"FLW-ABCD1234","status":"NEW","amount":250.5,"currency":"NGN"}}`))
	})

	init, err := c.InitiateWithdrawal(context.Background(), WithdrawalRequest{
		Phone:         "08012345678",
		Amount:        decimal.RequireFromString("250.50"),
		BankCode:      "058",
		AccountNumber: "8012345678",
	})
	require.NoError(t, err)
	require.Equal(t, "FLW-ABCD1234", init.Reference)
	require.Equal(t, "8012345678", body["account_number"])
	require.Equal(t, "Withdrawal to bank account", body["narration"])
	require.Equal(t, "NGN", body["debit_currency"])
	require.Equal(t, 250.5, body["amount"])
}

func TestFlutterwave_FailureSentinels(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-2xx": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"status":"error"}`, http.StatusBadRequest)
		},
		"error payload": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"error","message":"Invalid bank"}`))
		},
		"garbage": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, h)
			_, err := c.InitiateDeposit(context.Background(), DepositRequest{Phone: "0801", Amount: decimal.NewFromInt(10)})
			require.ErrorIs(t, err, ErrFailed)
			require.Equal(t, apperr.KindGateway, apperr.KindOf(err))

			_, err = c.InitiateWithdrawal(context.Background(), WithdrawalRequest{Phone: "0801", Amount: decimal.NewFromInt(10)})
			require.ErrorIs(t, err, ErrFailed)
		})
	}
}

func TestFlutterwave_TimeoutIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewFlutterwave("k", WithBaseURL(srv.URL), WithLogger(logging.Discard()),
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	require.NoError(t, err)

	_, err = c.InitiateDeposit(context.Background(), DepositRequest{Phone: "0801", Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, ErrFailed)
}

func TestFlutterwave_Verify(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transactions/verify_by_reference", r.URL.Path)
		require.Equal(t, "FLW-ABCD1234", r.URL.Query().Get("tx_ref"))
		_, _ = w.Write([]byte(`{"status":"success","data":{"tx_ref":"FLW-ABCD1234","status":"successful","amount":"500.00","currency":"NGN"}}`))
	})

	v, err := c.Verify(context.Background(), "FLW-ABCD1234")
	require.NoError(t, err)
	require.Equal(t, "successful", v.Status)
	require.True(t, v.Amount.Equal(decimal.NewFromInt(500)))
	require.Equal(t, "NGN", v.Currency)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(Static{GatewayName: "Flutterwave"}, Static{})
	g, err := r.Get(" FLUTTERWAVE ")
	require.NoError(t, err)
	require.Equal(t, "Flutterwave", g.Name())
	require.Equal(t, []string{"flutterwave", "static"}, r.Names())

	_, err = r.Get("paystack")
	require.ErrorIs(t, err, ErrUnknownGateway)
}

func TestStaticGateway(t *testing.T) {
	var g Gateway = Static{}
	require.True(t, g.Available(context.Background()))
	init, err := g.InitiateDeposit(context.Background(), DepositRequest{Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)
	require.Regexp(t, `^FLW-`, init.Reference)

	_, err = g.InitiateWithdrawal(context.Background(), WithdrawalRequest{Amount: decimal.Zero})
	require.ErrorIs(t, err, ErrFailed)
}
