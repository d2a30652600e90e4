package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/skaet/ussd_bank/internal/account"
	"github.com/skaet/ussd_bank/internal/config"
	"github.com/skaet/ussd_bank/internal/funding"
	"github.com/skaet/ussd_bank/internal/infra"
	"github.com/skaet/ussd_bank/internal/ledger"
	"github.com/skaet/ussd_bank/internal/logging"
	"github.com/skaet/ussd_bank/internal/server"
)

type settlement struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	Transitioned  bool   `json:"transitioned"`
	FailureReason string `json:"failure_reason,omitempty"`
	GatewayStatus string `json:"gateway_status,omitempty"`
}

func settleCmd() *cobra.Command {
	var (
		outcome string
		reason  string
	)
	cmd := &cobra.Command{
		Use:   "settle [reference]",
		Short: "Apply a settlement outcome to a transaction",
		Long: `Apply a settlement outcome to an initiated transaction, exactly as a
processor webhook would. Settling a transaction that is already terminal is
reported with transitioned=false and changes nothing.

Examples:
  ussd-admin settle FLW-1a2b3c4d5e6f --outcome success
  ussd-admin settle FLW-1a2b3c4d5e6f --outcome failure --reason "charge reversed"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := ledger.Outcome(outcome)
			if o != ledger.OutcomeSuccess && o != ledger.OutcomeFailure {
				return fmt.Errorf("--outcome must be %q or %q", ledger.OutcomeSuccess, ledger.OutcomeFailure)
			}
			return withFunding(cmd.Context(), func(svc *funding.Service) error {
				res, err := svc.Settle(cmd.Context(), args[0], o, reason)
				if err != nil {
					return err
				}
				return printSettlement(cmd, res, "")
			})
		},
	}

	cmd.Flags().StringVarP(&outcome, "outcome", "o", string(ledger.OutcomeSuccess), "success or failure")
	cmd.Flags().StringVar(&reason, "reason", "operator settlement", "failure reason recorded on the transaction")

	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [reference]",
		Short: "Ask the gateway for a transaction's status and settle it when final",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFunding(cmd.Context(), func(svc *funding.Service) error {
				v, res, err := svc.Reconcile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printSettlement(cmd, res, v.Status)
			})
		},
	}
}

// withFunding builds the settlement coordinator on the Postgres ledger.
// Settlement SMS are sent synchronously.
func withFunding(ctx context.Context, fn func(*funding.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	logger := logging.New(cfg.LogLevel)

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	gateways, err := server.Gateways(cfg, httpClient, logger)
	if err != nil {
		return err
	}
	notifier, err := server.Notifier(cfg, httpClient, logger)
	if err != nil {
		return err
	}

	l := ledger.NewPostgresLedger(db)
	accounts := account.NewService(account.NewPostgresRepository(db), l, notifier, logger)
	svc, err := funding.NewService(l, accounts, gateways, notifier, logger, funding.WithWithdrawalBank(cfg.WithdrawalBankCode))
	if err != nil {
		return err
	}
	return fn(svc)
}

func printSettlement(cmd *cobra.Command, res ledger.SettleResult, gatewayStatus string) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(settlement{
		Reference:     res.Transaction.Reference,
		Status:        string(res.Transaction.Status),
		Transitioned:  res.Transitioned,
		FailureReason: res.Transaction.FailureReason,
		GatewayStatus: gatewayStatus,
	})
}
