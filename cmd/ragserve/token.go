package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/ragserve/internal/auth"
)

func tokenCMD(load loader) *cobra.Command {
	var user, password string
	var token = &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an account, or a guest token when none are configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			accounts, err := auth.ParseAccounts(cfg.Auth.Accounts)
			if err != nil {
				return err
			}
			tokens, err := auth.NewJWTManager(cfg.Auth.TokenSecret, cfg.Auth.TokenExpire, cfg.Auth.GuestTokenExpire)
			if err != nil {
				return err
			}
			var tok string
			if !accounts.Configured() {
				tok, err = tokens.CreateToken("guest", auth.RoleGuest, map[string]any{"auth_mode": "disabled"})
			} else {
				if !accounts.Verify(user, password) {
					return fmt.Errorf("incorrect credentials for %q", user)
				}
				tok, err = tokens.CreateToken(user, auth.RoleUser, map[string]any{"auth_mode": "enabled"})
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	token.Flags().StringVarP(&user, "user", "u", "", "account name")
	token.Flags().StringVarP(&password, "password", "p", "", "account password")
	return token
}
