package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/tokenops/auth"
	"github.com/jonwraymond/tokenops/observe"
	"github.com/jonwraymond/tokenops/persist"
	"github.com/jonwraymond/tokenops/secret"
	"github.com/jonwraymond/tokenops/tokencache"
)

// Exit codes.
const (
	exitOK = 0
	// exitError is any failure not covered below.
	exitError = 1
	// exitInteractionRequired means the account must sign in again.
	exitInteractionRequired = 2
	// exitThrottled means the provider asked us to back off.
	exitThrottled = 3
)

type options struct {
	cachePath  string
	configPath string
	logLevel   string
	errOut     io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &options{errOut: errOut}
	cmd := &cobra.Command{
		Use:   "tokencache",
		Short: "Inspect and use a persisted OAuth2 token cache",
		Long: `tokencache reads the token cache file written by tokenops clients.
It lists cached accounts and tokens without printing secrets, removes
accounts, and acquires tokens silently from the cache.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.cachePath, "cache", defaultCachePath(), "token cache file")
	flags.StringVar(&opts.configPath, "config", "", "client configuration file (YAML)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newAccountsCmd(opts),
		newTokensCmd(opts),
		newRemoveAccountCmd(opts),
		newAcquireCmd(opts),
		newDoctorCmd(opts),
	)
	return cmd
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	cmd := newRootCmd(out, errOut)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(errOut, "Error:", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case auth.IsInteractionRequired(err):
		return exitInteractionRequired
	case auth.IsThrottled(err):
		return exitThrottled
	default:
		return exitError
	}
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "tokencache.json"
	}
	return filepath.Join(dir, "tokenops", "tokencache.json")
}

func (o *options) logger() observe.Logger {
	return observe.NewLoggerWithWriter(o.logLevel, o.errOut)
}

func (o *options) cacheHook(logger observe.Logger) *persist.Hook {
	return persist.NewHook(persist.NewFileStore(o.cachePath), logger)
}

// openStore returns a store backed by the cache file, for commands that do
// not need a client configuration.
func (o *options) openStore() *tokencache.Store {
	logger := o.logger()
	return tokencache.NewStore(
		tokencache.WithHook(o.cacheHook(logger)),
		tokencache.WithLogger(logger),
	)
}

// loadConfig reads --config, resolving secretref: values from the
// environment and the OS keyring.
func (o *options) loadConfig(ctx context.Context) (auth.ClientConfig, error) {
	if o.configPath == "" {
		return auth.ClientConfig{}, errors.New("--config is required")
	}
	resolver, err := secret.Builtin().Open(true, nil)
	if err != nil {
		return auth.ClientConfig{}, err
	}
	defer func() { _ = resolver.Close() }()
	return auth.LoadConfig(ctx, o.configPath, resolver)
}

// openClient loads --config and builds a client over the cache file. The
// returned shutdown flushes telemetry when the configuration enables it.
func (o *options) openClient(ctx context.Context) (*auth.Client, func(context.Context) error, error) {
	cfg, err := o.loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	logger := o.logger()
	clientOpts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithCacheHook(o.cacheHook(logger)),
	}
	shutdown := func(context.Context) error { return nil }
	if cfg.Telemetry != nil {
		obs, err := observe.NewObserver(ctx, *cfg.Telemetry)
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: %w", err)
		}
		mw, err := observe.MiddlewareFromObserver(obs)
		if err != nil {
			_ = obs.Shutdown(ctx)
			return nil, nil, fmt.Errorf("telemetry: %w", err)
		}
		clientOpts = append(clientOpts, auth.WithMiddleware(mw))
		shutdown = obs.Shutdown
	}

	client, err := auth.New(cfg, clientOpts...)
	if err != nil {
		_ = shutdown(ctx)
		return nil, nil, err
	}
	return client, shutdown, nil
}
