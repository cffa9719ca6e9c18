package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/tokenops/auth"
	"github.com/jonwraymond/tokenops/discovery"
	"github.com/jonwraymond/tokenops/health"
	"github.com/jonwraymond/tokenops/persist"
	"github.com/jonwraymond/tokenops/tokencache"
)

var errUnhealthy = errors.New("one or more checks failed")

func newDoctorCmd(opts *options) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that tokens can be acquired silently from the cache",
		Long: `doctor checks that the cache file is readable, that every cached account
still holds a refresh token, and, with --config, that the authority's
aliases can be discovered. It exits with status 1 when a check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			r := health.NewRunner(health.Config{Timeout: timeout})
			r.Register(health.CacheReadable(persist.NewFileStore(opts.cachePath)))
			r.Register(health.SignInState(opts.openStore()))

			if opts.configPath != "" {
				cfg, err := opts.loadConfig(ctx)
				if err != nil {
					return err
				}
				a, err := auth.ParseAuthority(cfg.Authority)
				if err != nil {
					return err
				}
				// ADFS and B2C hosts are their own only alias.
				if a.Type == tokencache.AuthorityTypeAAD {
					fetcher := discovery.NewHTTPFetcher(discovery.HTTPFetcherConfig{
						Endpoint:   cfg.DiscoveryEndpoint,
						HTTPClient: &http.Client{Timeout: cfg.Timeout},
					})
					resolver := discovery.NewResolver(fetcher, discovery.Config{
						ValidateAuthority: true,
						Logger:            opts.logger(),
					})
					r.Register(health.AuthorityDiscovery(resolver, a.Host))
				}
			}

			report := r.Run(ctx)
			rows := make([][]string, 0, len(report.Checks))
			for _, c := range report.Checks {
				msg := c.Message
				if c.Err != nil {
					msg += ": " + c.Err.Error()
				}
				rows = append(rows, []string{c.Name, c.Status.String(), msg, c.Duration.Round(time.Millisecond).String()})
			}
			out := cmd.OutOrStdout()
			if err := renderTable(out, []string{"Check", "Status", "Message", "Duration"}, rows); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "overall: %s\n", report.Status)
			if report.Status == health.StatusUnhealthy {
				return errUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", health.DefaultTimeout, "overall time limit for the checks")
	return cmd
}
