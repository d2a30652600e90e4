package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/skaet/ussd_bank/internal/auth"
)

func tokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		role    string
		issuer  string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := auth.NewService(secret, issuer, ttl)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(subject, role)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(token)
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("ADMIN_JWT_SECRET"), "HS256 signing secret")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "operator the token is issued to")
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "role claim")
	cmd.Flags().StringVar(&issuer, "issuer", auth.DefaultIssuer, "issuer claim, must match the server")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
