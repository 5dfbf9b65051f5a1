package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"matchmaker/feature/matching/models"
	mreconcile "matchmaker/feature/matching/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dryRunReconcile bool
	yesConfirm      bool
	jsonReport      bool
)

// reconcileCmd repairs drift between the queue cache and the waiting store.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile <category|all>",
	Short: "Reconcile the queue cache against the waiting store",
	Long: `Compares the queue cache of a category with the durable waiting store and
repairs the difference. The store is authoritative: store-only users are queued
again, cache-only users are either recorded or dropped depending on their history.

Examples:
  # Report only
  reconcile 1 --dry-run

  # Apply with auto-confirm (non-interactive)
  reconcile all --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&dryRunReconcile, "dry-run", false, "Plan only, change nothing")
	reconcileCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	reconcileCmd.Flags().BoolVar(&jsonReport, "json", false, "Print the full report as JSON")
	RootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	categories := []string{args[0]}
	if args[0] == "all" {
		categories = categories[:0]
		for _, c := range models.Categories {
			categories = append(categories, c.String())
		}
	} else if _, ok := models.ParseCategory(args[0]); !ok {
		return fmt.Errorf("invalid category %q", args[0])
	}

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	l := a.logger

	for _, category := range categories {
		// Step 1: Plan (always runs)
		plan, err := a.reconcile.Reconcile(ctx, category, true)
		if err != nil {
			return fmt.Errorf("failed to plan reconciliation: %w", err)
		}
		if err := printReconcileReport(cmd, l, plan); err != nil {
			return err
		}

		if dryRunReconcile {
			l.Info("Dry-run mode: No changes were made.", zap.String("category", category))
			continue
		}
		if len(plan.Plan.Actions) == 0 {
			l.Info("No actions required.", zap.String("category", category))
			continue
		}
		if !confirmDestructiveAction() {
			l.Warn("Operation cancelled by user. No changes were made.")
			return nil
		}

		// Step 2: Apply. The plan is rebuilt so users that moved meanwhile are not touched.
		report, err := a.reconcile.Reconcile(ctx, category, false)
		if report != nil {
			if perr := printReconcileReport(cmd, l, report); perr != nil {
				return perr
			}
		}
		if err != nil {
			return fmt.Errorf("failed to apply plan: %w", err)
		}
	}
	return nil
}

// printReconcileReport logs the report summary, or prints it as JSON with --json.
func printReconcileReport(cmd *cobra.Command, l *zap.Logger, r *mreconcile.Report) error {
	if jsonReport {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	s := r.Plan.Summary
	l.Info("Reconciliation report",
		zap.String("category", r.Category),
		zap.Bool("dry_run", r.DryRun),
		zap.Int("total_users", s.TotalItems),
		zap.Int("in_sync", s.InSync),
		zap.Int("missing_cache", s.MissingCache),
		zap.Int("missing_store", s.MissingStore),
		zap.Int("planned_actions", len(r.Plan.Actions)),
	)
	if !r.DryRun {
		l.Info("Applied actions",
			zap.Int("added_to_cache", r.AddedToCache),
			zap.Int("removed_from_cache", r.RemovedFromCache),
			zap.Int("added_to_store", r.AddedToStore),
			zap.Int("deactivated_in_store", r.DeactivatedInStore),
			zap.Int("failed", len(r.Failed)),
		)
	}

	const maxShow = 5
	for i, action := range r.Plan.Actions {
		if i == maxShow {
			l.Info("Additional actions not shown", zap.Int("count", len(r.Plan.Actions)-maxShow))
			break
		}
		l.Info("Planned action",
			zap.String("type", string(action.Type)),
			zap.String("user", action.Key),
			zap.String("reason", action.Reason),
		)
	}
	return nil
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if yesConfirm {
		fmt.Println("Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("Type 'yes' to apply the planned actions: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}
