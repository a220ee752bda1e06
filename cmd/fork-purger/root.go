package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Sternrassler/fork-purger/internal/config"
	"github.com/spf13/cobra"
)

// app carries the output streams and the error detail level of one
// invocation.
type app struct {
	out    io.Writer
	errOut io.Writer
	debug  bool
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut}
}

func (a *app) rootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "fork-purger",
		Short: "Find and delete the forked repositories of a GitHub account",
		Long: `fork-purger walks the repository listing of a GitHub account and acts on
every fork it finds. By default the forks are only listed; pass --delete to
remove them.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(a.out, banner)
			fmt.Fprintln(a.out)

			// --debug is honoured even when loading fails.
			a.debug, _ = cmd.Flags().GetBool("debug")

			cfg, err := config.Load(config.LoadOptions{
				ConfigFile: configFile,
				Flags:      cmd.Flags(),
			})
			if err != nil {
				return err
			}
			a.debug = cfg.Debug
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err = a.run(ctx, cfg)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Configuration file path (YAML or TOML)")
	flags.String("username", "", "Your GitHub username")
	flags.String("token", "", "GitHub access token with delete_repo scope (or GITHUB_TOKEN)")
	flags.Bool("delete", false, "Delete the forked repos instead of listing them")
	flags.Bool("debug", false, "Show full error detail and debug logs")
	flags.Int("concurrency", config.DefaultConcurrency, "Number of concurrent consumers")
	flags.Int("max-pages", 0, "Stop after this many listing pages (0 = all)")
	flags.Int("max-items", 0, "Stop a consumer after this many repos (0 = no limit)")
	flags.Duration("page-pause", config.DefaultPagePause, "Pause between listing pages")
	flags.Int("per-page", 100, "Listing page size (1-100)")
	flags.String("base-url", "https://api.github.com", "GitHub REST API base URL")
	flags.String("redis-url", "", "Redis URL for shared rate limit state and the listing cache")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error, disabled)")

	return cmd
}

// reportError prints err. Without --debug only the outermost message is
// shown; with it, every wrapped layer follows on its own line.
func (a *app) reportError(err error) {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(a.errOut, "Error: interrupted")
		return
	}

	fmt.Fprintf(a.errOut, "Error: %v\n", err)
	if !a.debug {
		return
	}

	depth := 1
	for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(inner) {
		fmt.Fprintf(a.errOut, "%s%T: %+v\n", strings.Repeat("  ", depth), inner, inner)
		depth++
	}
}
