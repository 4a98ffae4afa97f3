package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/shelf/internal/api"
	"github.com/jackzampolin/shelf/internal/config"
	"github.com/jackzampolin/shelf/internal/providers"
	"github.com/jackzampolin/shelf/internal/tocpipe/llmclient"
	"github.com/jackzampolin/shelf/internal/tocpipe/pdfload"
	"github.com/jackzampolin/shelf/internal/tocpipe/pipectx"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocpipeline"
)

var (
	tocModel            string
	tocCheckPages       int
	tocMaxPagesPerNode  int
	tocMaxTokensPerNode int
	tocOverlapPages     int
)

var tocCmd = &cobra.Command{
	Use:   "toc",
	Short: "Table of contents discovery commands",
	Long: `Commands that run the table of contents discovery, indexing, and
validation pipeline directly against a local PDF, without a running
server or task registry.`,
}

var tocRunCmd = &cobra.Command{
	Use:   "run <pdf>",
	Short: "Discover and emit the structure tree for a single PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runTocRun,
}

func init() {
	// Defaults here only seed --help output; the values actually used at
	// runtime come from the loaded config file unless the flag was passed
	// explicitly (see runTocRun).
	d := config.DefaultConfig().TocPipeline
	tocRunCmd.Flags().StringVar(&tocModel, "model", d.Model, "LLM identifier used for every pipeline call")
	tocRunCmd.Flags().IntVar(&tocCheckPages, "toc-check-pages", d.TocCheckPages, "upper bound on pages scanned for a table of contents")
	tocRunCmd.Flags().IntVar(&tocMaxPagesPerNode, "max-pages-per-node", d.MaxPagesPerNode, "page-count subdivision threshold")
	tocRunCmd.Flags().IntVar(&tocMaxTokensPerNode, "max-tokens-per-node", d.MaxTokensPerNode, "token subdivision threshold, also the page grouper window budget")
	tocRunCmd.Flags().IntVar(&tocOverlapPages, "overlap-pages", d.OverlapPages, "pages repeated between consecutive page grouper windows")

	tocCmd.AddCommand(tocRunCmd)
	rootCmd.AddCommand(tocCmd)
}

func runTocRun(cmd *cobra.Command, args []string) error {
	pdfPath := args[0]

	cfgMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: GetLogLevel()}))

	cfgMgr.OnChange(func(cfg *config.Config) {
		logger.Info("config file changed, reload will apply to the next run", "model", cfg.TocPipeline.Model)
	})
	cfgMgr.WatchConfig()

	pipeCfg := cfgMgr.Get().TocPipeline
	if cmd.Flags().Changed("model") {
		pipeCfg.Model = tocModel
	}
	if cmd.Flags().Changed("toc-check-pages") {
		pipeCfg.TocCheckPages = tocCheckPages
	}
	if cmd.Flags().Changed("max-pages-per-node") {
		pipeCfg.MaxPagesPerNode = tocMaxPagesPerNode
	}
	if cmd.Flags().Changed("max-tokens-per-node") {
		pipeCfg.MaxTokensPerNode = tocMaxTokensPerNode
	}
	if cmd.Flags().Changed("overlap-pages") {
		pipeCfg.OverlapPages = tocOverlapPages
	}

	apiKey := cfgMgr.Get().ResolveAPIKey("openrouter")
	if apiKey == "" {
		return fmt.Errorf("openrouter API key not set: configure api_keys.openrouter or export OPENROUTER_API_KEY")
	}

	pages, err := pdfload.Load(pdfPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", pdfPath, err)
	}

	inner := providers.NewOpenRouterClient(providers.OpenRouterConfig{
		APIKey:       apiKey,
		DefaultModel: pipeCfg.Model,
	})
	client := llmclient.New(inner)

	ctx := pipectx.WithLogger(cmd.Context(), logger)

	result, err := tocpipeline.Run(ctx, client, filepath.Base(pdfPath), pages, tocpipeline.Config{
		Model:            pipeCfg.Model,
		TocCheckPages:    pipeCfg.TocCheckPages,
		MaxPagesPerNode:  pipeCfg.MaxPagesPerNode,
		MaxTokensPerNode: pipeCfg.MaxTokensPerNode,
		OverlapPages:     pipeCfg.OverlapPages,
	})
	if err != nil {
		return fmt.Errorf("toc discovery failed: %w", err)
	}

	return api.Output(result)
}
