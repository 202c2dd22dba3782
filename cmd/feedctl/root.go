package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"grimm.is/ipfeed/internal/client"
)

type ctxKey string

const clientKey ctxKey = "feedclient"

type rootOptions struct {
	api         string
	timeout     time.Duration
	fingerprint string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	root := &cobra.Command{
		Use:   "feedctl",
		Short: "ipfeed admin CLI",
		Example: `	feedctl --api http://127.0.0.1:8080 submit --file blocklist.txt
	feedctl add 203.0.113.0/24 --comment "scanner"
	feedctl diff --from 3 --to 4 --unified`,
		SilenceUsage: true,
		// the client is created once and carried in the command context
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			copts := []client.ClientOption{client.WithTimeout(opts.timeout)}
			if opts.fingerprint != "" {
				copts = append(copts, client.WithFingerprint(opts.fingerprint))
			}
			c := client.NewHTTPClient(opts.api, copts...)
			cmd.SetContext(context.WithValue(cmd.Context(), clientKey, c))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.api, "api",
		getenv("IPFEED_API", "http://127.0.0.1:8080"), "ipfeed API base URL (or IPFEED_API)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	root.PersistentFlags().StringVar(&opts.fingerprint, "fingerprint",
		os.Getenv("IPFEED_FINGERPRINT"), "pin the server certificate by SHA-256 fingerprint")

	root.AddCommand(
		newSubmitCmd(),
		newAddCmd(),
		newRemoveCmd(),
		newRollbackCmd(),
		newVersionsCmd(),
		newShowCmd(),
		newDiffCmd(),
		newStatusCmd(),
		newAuditCmd(),
		newWatchCmd(),
	)
	return root
}

func getClient(cmd *cobra.Command) *client.HTTPClient {
	c, _ := cmd.Context().Value(clientKey).(*client.HTTPClient)
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
