package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "bank-support",
		Short:         "Bank support bot: FAQ retrieval and dialogue service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("CONFIG_PATH", configPath)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config (overrides CONFIG_PATH)")
	root.AddCommand(newServeCmd(), newBuildCmd(), newSearchCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Build the knowledge store and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := initializeApp()
			if err != nil {
				return fmt.Errorf("failed to wire application: %w", err)
			}
			defer cleanup()
			return app.Run(cmd.Context())
		},
	}
}

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Embed the FAQ corpus into the configured index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := initializeKnowledge()
			if err != nil {
				return fmt.Errorf("failed to wire knowledge store: %w", err)
			}
			defer cleanup()

			report, err := rt.store.BuildFromFile(cmd.Context(), rt.cfg.Knowledge.CorpusPath)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"entries":     report.Entries,
				"dimensions":  report.Dimensions,
				"fingerprint": report.Fingerprint,
				"skipped":     report.Skipped,
				"durationMs":  report.Duration.Milliseconds(),
			})
		},
	}
}

func newSearchCmd() *cobra.Command {
	var (
		k         int
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "search <question>",
		Short: "Retrieve FAQ matches for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := initializeKnowledge()
			if err != nil {
				return fmt.Errorf("failed to wire knowledge store: %w", err)
			}
			defer cleanup()

			if _, err := rt.store.BuildFromFile(cmd.Context(), rt.cfg.Knowledge.CorpusPath); err != nil {
				return err
			}
			cfg := rt.gate.Config()
			if !cmd.Flags().Changed("k") {
				k = cfg.TopK
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = cfg.Threshold
			}
			outcome, err := rt.gate.RetrieveWith(cmd.Context(), strings.Join(args, " "), k, threshold)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), outcome.Context())
			return err
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "number of nearest entries to consider")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "minimum similarity in [0,1]")
	return cmd
}
