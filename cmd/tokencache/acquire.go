package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/tokenops/auth"
)

func newRemoveAccountCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-account HOME_ACCOUNT_ID",
		Short: "Remove an account and every token issued to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, shutdown, err := opts.openClient(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(ctx) }()

			account, err := client.Account(ctx, args[0])
			if err != nil {
				return fmt.Errorf("account %s: %w", args[0], err)
			}
			if err := client.RemoveAccount(ctx, account); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed account %s\n", account.HomeAccountID)
			return nil
		},
	}
}

func newAcquireCmd(opts *options) *cobra.Command {
	var (
		home         string
		scopes       []string
		forceRefresh bool
		showToken    bool
	)
	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Acquire a token silently for a cached account",
		Long: `acquire returns a cached access token covering the scopes, or redeems the
account's refresh token. It never prompts: when the account must sign in
again it exits with status 2, and with status 3 while throttled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, shutdown, err := opts.openClient(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(ctx) }()

			account, err := client.Account(ctx, home)
			if err != nil {
				return fmt.Errorf("account %s: %w", home, err)
			}
			res, err := client.AcquireTokenSilent(ctx, auth.SilentParams{
				Scopes:       scopes,
				Account:      account,
				ForceRefresh: forceRefresh,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "source: %s\n", res.Source)
			_, _ = fmt.Fprintf(out, "expires_on: %s\n", res.ExpiresOn.UTC().Format(time.RFC3339))
			_, _ = fmt.Fprintf(out, "scopes: %s\n", strings.Join(res.Scopes, " "))
			_, _ = fmt.Fprintf(out, "correlation_id: %s\n", res.CorrelationID)
			if showToken {
				_, _ = fmt.Fprintf(out, "access_token: %s\n", res.AccessToken)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&home, "home", "", "home account id of the cached account")
	flags.StringSliceVar(&scopes, "scope", nil, "scope to request (repeatable)")
	flags.BoolVar(&forceRefresh, "force-refresh", false, "skip the cached access token")
	flags.BoolVar(&showToken, "show-token", false, "print the access token")
	_ = cmd.MarkFlagRequired("home")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}
