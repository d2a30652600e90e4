package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skaet/ussd_bank/internal/config"
	"github.com/skaet/ussd_bank/internal/gateway"
	"github.com/skaet/ussd_bank/internal/logging"
	"github.com/skaet/ussd_bank/internal/notification"
)

func TestGatewaysSimulatedInDev(t *testing.T) {
	cfg := config.Config{AppEnv: "development", PaymentGateway: gateway.FlutterwaveName}
	registry, err := Gateways(cfg, http.DefaultClient, logging.Discard())
	require.NoError(t, err)

	g, err := registry.Get(gateway.FlutterwaveName)
	require.NoError(t, err)
	require.IsType(t, gateway.Static{}, g)
}

func TestGatewaysRequireKeyOutsideDev(t *testing.T) {
	cfg := config.Config{AppEnv: "production", PaymentGateway: gateway.FlutterwaveName}
	_, err := Gateways(cfg, http.DefaultClient, logging.Discard())
	require.Error(t, err)
}

func TestGatewaysRejectUnknownSelection(t *testing.T) {
	cfg := config.Config{AppEnv: "production", PaymentGateway: "paystack", FlutterwaveSecretKey: "FLWSECK-test"}
	_, err := Gateways(cfg, http.DefaultClient, logging.Discard())
	require.ErrorIs(t, err, gateway.ErrUnknownGateway)

	cfg.PaymentGateway = gateway.FlutterwaveName
	registry, err := Gateways(cfg, http.DefaultClient, logging.Discard())
	require.NoError(t, err)
	g, err := registry.Get(gateway.FlutterwaveName)
	require.NoError(t, err)
	require.IsType(t, &gateway.Flutterwave{}, g)
}

func TestNotifierSelection(t *testing.T) {
	n, err := Notifier(config.Config{}, http.DefaultClient, logging.Discard())
	require.NoError(t, err)
	require.IsType(t, &notification.LoggerNotifier{}, n)

	n, err = Notifier(config.Config{TermiiAPIKey: "key", SMSSender: "SKAET"}, http.DefaultClient, logging.Discard())
	require.NoError(t, err)
	require.IsType(t, &notification.TermiiNotifier{}, n)
}

func TestAdminTokensRoundTrip(t *testing.T) {
	tokens, err := AdminTokens(config.Config{AdminJWTSecret: "s3cret"})
	require.NoError(t, err)
	token, err := tokens.Issue("ops", "admin")
	require.NoError(t, err)
	claims, err := tokens.Parse(token.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "ops", claims.Subject)
}
