package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"birdcam/internal/app"
	"birdcam/internal/config"
	"birdcam/internal/logger"
	"birdcam/internal/model"
	"birdcam/internal/service/detection"
)

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "birdcam",
		Short:         "Watch a video stream and save evidence when target objects appear",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngestion(cmd.Context(), configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Configuration file path")

	rootCmd.AddCommand(newRunCommand(&configPath))
	rootCmd.AddCommand(newLabelsCommand(&configPath))
	return rootCmd
}

func newRunCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the ingestion loop until interrupted or the source ends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngestion(cmd.Context(), *configPath)
		},
	}
}

func runIngestion(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.LogDirectory, cfg.Debug)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, log, app.Components{})
	if err != nil {
		log.Error("Startup failed: %v", err)
		return err
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		log.Error("Ingestion stopped with error: %v", err)
		return err
	}
	return nil
}

func newLabelsCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "Print the detector vocabulary and which configured targets resolve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			vocab, err := detection.LoadLabels(cfg.LabelsPath)
			if err != nil {
				return err
			}
			return printLabels(cmd.OutOrStdout(), vocab, cfg)
		},
	}
}

func printLabels(w io.Writer, vocab map[model.ClassID]string, cfg *config.Config) error {
	ids := make([]int, 0, len(vocab))
	for id := range vocab {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "%4d  %s\n", id, vocab[model.ClassID(id)])
	}

	var warnings strings.Builder
	targets, err := detection.ResolveTargets(vocab, cfg.Targets, cfg.Colors, logger.New(&warnings))
	fmt.Fprintln(w)
	for _, t := range targets {
		fmt.Fprintf(w, "✅ %s (id %d, color #%02x%02x%02x)\n", t.Name, t.ID, t.Color.R, t.Color.G, t.Color.B)
	}
	if warnings.Len() > 0 {
		fmt.Fprint(w, warnings.String())
	}
	return err
}
