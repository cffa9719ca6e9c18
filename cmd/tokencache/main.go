// Command tokencache inspects and maintains a persisted token cache and
// acquires tokens from it.
//
//	tokencache accounts
//	tokencache tokens --home uid.utid
//	tokencache remove-account --config client.yaml uid.utid
//	tokencache acquire --config client.yaml --home uid.utid --scope User.Read
//	tokencache doctor --config client.yaml
//
// acquire exits with status 2 when the account must sign in again and 3
// while the provider is throttling the client.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
