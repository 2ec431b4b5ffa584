package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"
	"github.com/spf13/cobra"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/features/indexrun"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/app"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/config"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/ingest"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/logger"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "chatbot",
	Short: "Answers questions about Tauqeer Ali Khan from his indexed profile documents",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		slog.SetDefault(slog.New(logger.NewContextHandler(h)))
	},
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the profile index once and exit",
	RunE:  runIndex,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	indexCmd.Flags().StringP("mode", "m", string(ingest.ModeAuto), "Index mode: auto, create or upsert")

	rootCmd.AddCommand(serveCmd, indexCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return run(ctx, cfg)
}

func run(ctx context.Context, cfg *config.Config) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	a, err := app.New(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("failed to close app", "error", err)
		}
	}()

	if cfg.NSQEnabled && cfg.EnableIndexWorker {
		var consumer *nsq.Consumer
		consumer, err = a.StartIndexWorker()
		if err != nil {
			return err
		}
		defer consumer.Stop()
	}

	if err := a.PrepareIndex(ctx); err != nil {
		return err
	}

	if cfg.WatchDataDir {
		go func() {
			if err := a.WatchDataDir(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("data dir watcher stopped", "error", err)
			}
		}()
	}

	return a.Run(ctx)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	modeFlag, _ := cmd.Flags().GetString("mode")
	mode, err := ingest.ParseMode(modeFlag)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// A one-shot run writes the index itself; it neither queues nor consumes tasks.
	cfg.NSQEnabled = false

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	a, err := app.New(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer a.Close()

	r, runErr := a.Runs.Execute(ctx, mode, indexrun.TriggerManual)
	if r != nil {
		out, _ := json.MarshalIndent(r, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	return runErr
}
