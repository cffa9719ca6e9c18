package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/tokenops/tokencache"
)

func newAccountsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List cached accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts := opts.openStore().Accounts(cmd.Context())
			if len(accounts) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No accounts cached.")
				return nil
			}
			rows := make([][]string, 0, len(accounts))
			for _, a := range accounts {
				rows = append(rows, []string{a.HomeAccountID, a.Environment, a.Realm, a.Username, a.Name})
			}
			return renderTable(cmd.OutOrStdout(), []string{"Home Account ID", "Environment", "Realm", "Username", "Name"}, rows)
		},
	}
}

func newTokensCmd(opts *options) *cobra.Command {
	var home string
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "List cached tokens without their secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := opts.openStore().Contents(cmd.Context())
			rows := tokenRows(c, home, time.Now())
			if len(rows) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No tokens cached.")
				return nil
			}
			return renderTable(cmd.OutOrStdout(), []string{"Kind", "Client", "Home Account ID", "Environment", "Realm", "Target", "Expires"}, rows)
		},
	}
	cmd.Flags().StringVar(&home, "home", "", "only tokens of this home account id")
	return cmd
}

func tokenRows(c tokencache.Contents, home string, now time.Time) [][]string {
	keep := func(h string) bool { return home == "" || strings.EqualFold(h, home) }

	var rows [][]string
	for _, t := range c.AccessTokens {
		if !keep(t.HomeAccountID) {
			continue
		}
		rows = append(rows, []string{"access", t.ClientID, t.HomeAccountID, t.Environment, t.Realm, t.Target, expiry(t.ExpiresOn, now)})
	}
	for _, t := range c.RefreshTokens {
		if !keep(t.HomeAccountID) {
			continue
		}
		target := ""
		if t.FamilyID != "" {
			target = "family " + t.FamilyID
		}
		rows = append(rows, []string{"refresh", t.ClientID, t.HomeAccountID, t.Environment, "", target, "-"})
	}
	for _, t := range c.IDTokens {
		if !keep(t.HomeAccountID) {
			continue
		}
		rows = append(rows, []string{"id", t.ClientID, t.HomeAccountID, t.Environment, t.Realm, "", "-"})
	}
	return rows
}

func expiry(t, now time.Time) string {
	s := t.UTC().Format(time.RFC3339)
	if !now.Before(t) {
		s += " (expired)"
	}
	return s
}

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Options(
		tablewriter.WithHeader(headers),
		tablewriter.WithRendition(
			tw.Rendition{
				Borders: tw.Border{
					Left:   tw.State(1),
					Top:    tw.State(1),
					Right:  tw.State(1),
					Bottom: tw.State(1),
				},
			},
		),
		tablewriter.WithAlignment(tw.MakeAlign(len(headers), tw.AlignLeft)),
	)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
