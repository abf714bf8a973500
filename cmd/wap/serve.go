package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	wap "github.com/blackarrowsec/wap"
	"github.com/blackarrowsec/wap/pkg/serve"
)

var serveRulesetPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming fingerprint server over stdin/stdout",
	Long: `Run wap as a long-lived streaming server that accepts already-fetched
HTTP responses via stdin and outputs technology matches via stdout using
NDJSON format.

This mode is designed for integration with crawlers and proxy tooling.
The process loads the ruleset once at startup and serves requests until
stdin closes or SIGTERM is received.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveRulesetPath, "ruleset", "", "Path to custom technologies ruleset (JSON or YAML)")
}

func runServe(cmd *cobra.Command, args []string) error {
	c, err := loadCatalog(serveRulesetPath, "", "", nil)
	if err != nil {
		return err
	}

	scanner, err := wap.NewScanner(
		wap.WithCatalog(c),
		wap.WithLogger(logrus.StandardLogger()),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigChan
		cancel()
	}()

	srv := serve.NewServer(scanner, cmd.InOrStdin(), cmd.OutOrStdout())
	return srv.Run(ctx)
}
