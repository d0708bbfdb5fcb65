package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/contractflow/internal/app"
	"github.com/raphaelgruber/contractflow/internal/llm"
	"github.com/raphaelgruber/contractflow/internal/retrieval"
	"github.com/spf13/cobra"
)

var (
	indexReset bool
	indexDir   string
)

var indexCmd = &cobra.Command{
	Use:   "index-policies",
	Short: "Index policy documents for retrieval",
	Long: `Chunk, embed and store every .txt, .md and .pdf file in the policy
directory. Chunk IDs are stable, so re-running without --reset updates
existing chunks in place.

Examples:
  contractflow index-policies
  contractflow index-policies --reset
  contractflow index-policies --dir ./data/policies`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexReset, "reset", false, "delete all indexed chunks before indexing")
	indexCmd.Flags().StringVar(&indexDir, "dir", "", "policy directory (default: POLICY_DIR)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dir := indexDir
	if dir == "" {
		dir = cfg.PolicyDir
	}

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore(context.Background(), store)

	embedder, err := llm.NewEmbedder(cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}

	count, err := retrieval.NewIndexer(embedder, store, logger).BuildIndex(ctx, dir, indexReset)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d policy chunks from %s\n", count, dir)
	return nil
}
