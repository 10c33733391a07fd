// Package main is the entry point for the ainewsldo bot.
// It relays Telegram messages to a chat-completion service under a
// selectable personality and sends the replies back.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/syho-lab/ainewsldo/internal/brain"
	"github.com/syho-lab/ainewsldo/internal/channels/telegram"
	"github.com/syho-lab/ainewsldo/internal/config"
	"github.com/syho-lab/ainewsldo/internal/gateway"
	"github.com/syho-lab/ainewsldo/internal/logging"
	"github.com/syho-lab/ainewsldo/internal/metrics"
	"github.com/syho-lab/ainewsldo/internal/persona"
)

var (
	version  = "0.1.0"
	cfgPath  string
	envFiles []string
	verbose  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ainewsldo",
		Short: "ainewsldo - Telegram bot with a switchable personality",
		Long: `ainewsldo forwards chat messages to an OpenRouter-compatible
completion endpoint and replies in the selected personality.

Run the bot:             ainewsldo
Show configuration:      ainewsldo config show
List personalities:      ainewsldo personas

Secrets come from the environment (OPENROUTER_API_KEY, TELEGRAM_TOKEN),
optionally loaded from a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBot,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.ainewsldo/config.yaml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files to load (default .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ainewsldo v%s\n", version)
		},
	})

	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(personasCmd())

	return rootCmd
}

// loadConfig resolves configuration: env files, config file, env overlay.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// runBot starts the bot and blocks until SIGINT/SIGTERM.
func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	log, err := logging.NewWithConfig(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return err
	}
	defer log.Close()

	store, err := persona.NewStore(cfg.Persona.Personalities, cfg.Persona.Default)
	if err != nil {
		return err
	}
	client := brain.NewClient(cfg.Completion, log.Component("brain"))
	adapter := telegram.New(cfg.Telegram, log.Component("telegram"))
	router := gateway.New(gateway.Config{
		Transport: adapter,
		Store:     store,
		Client:    client,
		Logger:    log.Logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := adapter.Start(ctx); err != nil {
		return fmt.Errorf("starting telegram: %w", err)
	}

	log.Info("bot started",
		"version", version,
		"model", client.Model(),
		"timeout", client.Timeout(),
		"personality", store.Get(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The event stream ending means the adapter is gone; shut down.
		defer stop()
		return router.Run(gctx, adapter.Events())
	})
	g.Go(func() error {
		return metrics.Serve(gctx, cfg.Metrics.Addr, log.Component("metrics"))
	})
	g.Go(func() error {
		<-gctx.Done()
		return adapter.Stop()
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("shutdown with error", "error", err)
		return err
	}
	log.Info("bot stopped")
	return nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := cfg.Redacted().YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			path := cfgPath
			if path == "" {
				path = config.DefaultPath()
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
		},
	})

	return cmd
}

func personasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the configured personalities",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := persona.NewStore(cfg.Persona.Personalities, cfg.Persona.Default)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\tLABEL\tBUTTON")
			for _, p := range store.Personas() {
				marker := ""
				if p.Label == store.Get() {
					marker = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", marker, p.Label, p.Caption)
			}
			return w.Flush()
		},
	}
}
