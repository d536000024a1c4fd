package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"therapyhub/internal/adapters/auth"
	"therapyhub/internal/domain"
)

func newTokenCommand() *cobra.Command {
	var (
		email  string
		admin  bool
		expiry time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Issue a signed bearer token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			if a.cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required to issue tokens")
			}
			identity := domain.Identity{UserID: args[0], Email: email}
			if admin {
				identity.Roles = []string{domain.RoleAdmin}
			}
			token, err := auth.NewJWTIssuer(a.cfg.JWTSecret).Issue(identity, expiry)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	cmd.Flags().DurationVar(&expiry, "expiry", 24*time.Hour, "token lifetime")
	return cmd
}
