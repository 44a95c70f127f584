// Package main provides the scout CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/richinex/scout/cli"
	"github.com/richinex/scout/config"
	"github.com/richinex/scout/server"
	"github.com/richinex/scout/storage"
)

var (
	// Global flags
	configPath string
	logLevel   string
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "scout",
		Short: "Single-turn question answering with optional web search",
		Long: `scout answers a question in one turn. The model either answers directly
or asks for one web search and answers over the results. Every turn is
recorded as a trace (Langfuse, local SQLite log, OpenTelemetry).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML settings file (default $SCOUT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tracesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openApp loads settings and wires the components. Configuration
// failures end the process before any turn runs.
func openApp(ctx context.Context) (*cli.App, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cli.NewApp(ctx, settings, cli.Options{OTelWriter: os.Stderr})
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [query]...",
		Short: "Answer one or more questions, one turn each",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			if failed := cli.Ask(ctx, app.Agent, args, os.Stdout, os.Stderr); failed > 0 {
				log.Debug().Int("failed", failed).Msg("some turns failed")
			}
			return nil
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Answer questions read from stdin, one per line",
		Long:  "Reads one question per line until EOF, 'exit' or 'quit'. Each line is an independent turn.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			return cli.Chat(ctx, app.Agent, os.Stdin, os.Stdout, os.Stderr)
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve turns over HTTP",
		Long: `Serve turns over HTTP. Each request is an independent turn.

  POST /v1/turns  {"query": "..."}
  GET  /health
  GET  /metrics   Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			return server.Run(ctx, addr, server.NewHandler(app.Agent, app.Metrics.Handler()))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	return cmd
}

func tracesCmd() *cobra.Command {
	var dbPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "traces",
		Short: "List traces from the local trace log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.OpenSqlite(traceDB(dbPath))
			if err != nil {
				return err
			}
			defer store.Close()
			return cli.ListTraces(cmd.Context(), store, limit, os.Stdout)
		},
	}

	show := &cobra.Command{
		Use:   "show [trace-id]",
		Short: "Show one trace as a span tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.OpenSqlite(traceDB(dbPath))
			if err != nil {
				return err
			}
			defer store.Close()
			return cli.ShowTrace(cmd.Context(), store, args[0], os.Stdout)
		},
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Trace log path (default $SCOUT_TRACE_DB or "+config.DefaultTraceDB+")")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of traces to list")
	cmd.AddCommand(show)
	return cmd
}

func traceDB(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("SCOUT_TRACE_DB"); v != "" {
		return v
	}
	return config.DefaultTraceDB
}
