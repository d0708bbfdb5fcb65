package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	reviewLimit  int
	reviewOffset int
	logsLimit    int
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work the human review queue",
	Long: `List and resolve contracts waiting for human review.

Subcommands:
  list      List pending review items (default)
  approved  List approved contracts
  approve   Approve a pending review item
  reject    Reject a pending review item

Examples:
  contractflow review
  contractflow review approved -n 20
  contractflow review approve 3f1c...`,
	RunE: runReviewList,
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending review items",
	Args:  cobra.NoArgs,
	RunE:  runReviewList,
}

var reviewApprovedCmd = &cobra.Command{
	Use:   "approved",
	Short: "List approved contracts",
	Args:  cobra.NoArgs,
	RunE:  runReviewApproved,
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <review-id>",
	Short: "Approve a pending review item",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runResolve(cmd, args[0], true) },
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <review-id>",
	Short: "Reject a pending review item",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runResolve(cmd, args[0], false) },
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent processing log entries",
	Args:  cobra.NoArgs,
	RunE:  runLogs,
}

func init() {
	reviewApprovedCmd.Flags().IntVarP(&reviewLimit, "limit", "n", 50, "max results")
	reviewApprovedCmd.Flags().IntVar(&reviewOffset, "offset", 0, "results to skip")
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 20, "max entries")

	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewApprovedCmd)
	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewRejectCmd)
}

func runReviewList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	reviews, store, err := openReviews(ctx)
	if err != nil {
		return err
	}
	defer closeStore(ctx, store)

	items, err := reviews.Pending(ctx)
	if err != nil {
		return fmt.Errorf("list review queue: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderReviewItems(defaultTheme, items))
	return nil
}

func runReviewApproved(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	reviews, store, err := openReviews(ctx)
	if err != nil {
		return err
	}
	defer closeStore(ctx, store)

	contracts, err := reviews.Approved(ctx, reviewLimit, reviewOffset)
	if err != nil {
		return fmt.Errorf("list approved contracts: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderContracts(defaultTheme, contracts))
	return nil
}

func runResolve(cmd *cobra.Command, id string, approve bool) error {
	ctx := context.Background()
	reviews, store, err := openReviews(ctx)
	if err != nil {
		return err
	}
	defer closeStore(ctx, store)

	resolve := reviews.Reject
	if approve {
		resolve = reviews.Approve
	}
	item, err := resolve(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", id, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Review %s %s (contract %s)\n",
		item.ID, defaultTheme.statusStyle(item.Status).Render(item.Status), item.ContractID)
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	_, store, err := openReviews(ctx)
	if err != nil {
		return err
	}
	defer closeStore(ctx, store)

	logs, err := store.ListProcessingLogs(ctx, logsLimit)
	if err != nil {
		return fmt.Errorf("list processing logs: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderLogs(defaultTheme, logs))
	return nil
}
