// Command smpctl operates an SMP registry: bulk import and export, service
// group administration, SML DNS verification and the operational server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-smp/internal/app"
	"github.com/sirosfoundation/go-smp/internal/config"
)

var version = "dev"

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "smpctl",
		Short:        "Operate an SMP service metadata registry",
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "",
		"config file (default: in-memory registry without SML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")

	cmd.AddCommand(
		newImportCmd(opts),
		newExportCmd(opts),
		newServiceGroupCmd(opts),
		newSMLCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	hopts := &slog.HandlerOptions{Level: l}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// openApp loads the configuration and wires the registry. The caller
// closes the returned app.
func openApp(cmd *cobra.Command, opts *rootOptions) (*app.App, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	if opts.configFile != "" {
		cfg, err = config.Load(opts.configFile)
		if err != nil {
			return nil, err
		}
	}
	return app.New(cmd.Context(), cfg, logger)
}
