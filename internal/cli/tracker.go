package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tutu-network/studytrack/internal/domain"
)

// ─── Tracker CLI ────────────────────────────────────────────────────────────
// Each command runs one engine operation against the same ledger and
// folders the server uses. Don't run them while the server is mutating the
// same ledger; the engine lock is per process.

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(prizeCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(reconcileCmd)

	prizeCmd.AddCommand(prizeAddCmd)
	prizeCmd.AddCommand(prizeRemoveCmd)

	prizeAddCmd.Flags().String("cost", "", "Prize cost (a number)")
	resetCmd.Flags().Bool("yes", false, "Confirm moving every completed PDF back and clearing the ledger")
}

// ─── status ─────────────────────────────────────────────────────────────────

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show completed units and prizes",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	l, err := rt.engine.State()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Completed units (%d):\n", len(l.Completed))
	for _, u := range l.Completed {
		fmt.Fprintf(out, "  • %s\n", u)
	}
	fmt.Fprintf(out, "Prizes (%d):\n", len(l.Prizes))
	for _, p := range l.Prizes {
		fmt.Fprintf(out, "  • %s\n", describePrize(p))
	}
	return nil
}

// ─── files ──────────────────────────────────────────────────────────────────

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List pending and done PDFs",
	Args:  cobra.NoArgs,
	RunE:  runFiles,
}

func runFiles(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	a, err := rt.engine.ListArtifacts()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printList(out, fmt.Sprintf("Available in %s", rt.files.PendingDir()), a.Available)
	printList(out, fmt.Sprintf("Done in %s", rt.files.DoneDir()), a.Done)
	return nil
}

// ─── complete / undo ────────────────────────────────────────────────────────

var completeCmd = &cobra.Command{
	Use:   "complete UNIT",
	Short: "Mark a unit as done and move its PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runComplete,
}

func runComplete(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	res, err := rt.engine.Complete(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !res.OK {
		fmt.Fprintf(out, "Not completed: %s\n", res.Reason)
		return nil
	}
	fmt.Fprintf(out, "✅ %s completed\n", args[0])
	if !res.Moved {
		fmt.Fprintln(out, "   (no PDF found to move)")
	}
	return nil
}

var undoCmd = &cobra.Command{
	Use:   "undo UNIT",
	Short: "Reopen a completed unit and move its PDF back",
	Args:  cobra.ExactArgs(1),
	RunE:  runUndo,
}

func runUndo(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	res, err := rt.engine.Undo(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !res.OK {
		fmt.Fprintf(out, "%s is not completed\n", args[0])
		return nil
	}
	fmt.Fprintf(out, "↩️  %s reopened\n", args[0])
	if !res.MovedBack {
		fmt.Fprintln(out, "   (no PDF found to move back)")
	}
	return nil
}

// ─── prize ──────────────────────────────────────────────────────────────────

var prizeCmd = &cobra.Command{
	Use:   "prize",
	Short: "Manage prizes",
}

var prizeAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a prize",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrizeAdd,
}

func runPrizeAdd(cmd *cobra.Command, args []string) error {
	p := domain.Prize{"name": args[0]}
	if cost, _ := cmd.Flags().GetString("cost"); cost != "" {
		n := json.Number(strings.TrimSpace(cost))
		if _, err := n.Float64(); err != nil {
			return fmt.Errorf("cost %q is not a number", cost)
		}
		p["cost"] = n
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	if err := rt.engine.AddPrize(p); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "🎁 Added %s\n", describePrize(p))
	return nil
}

var prizeRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the most recently added prize",
	Args:  cobra.NoArgs,
	RunE:  runPrizeRemove,
}

func runPrizeRemove(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	if err := rt.engine.RemovePrize(); err != nil {
		return err
	}
	if a := rt.engine.LastAction(); a != nil && a.Kind == domain.ActionRemovePrize {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", describePrize(a.Prize))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "No prizes to remove.")
	return nil
}

// ─── reset ──────────────────────────────────────────────────────────────────

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Move every completed PDF back and clear the ledger",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

var errResetNotConfirmed = errors.New("reset clears all completions and prizes; rerun with --yes to confirm")

func runReset(cmd *cobra.Command, args []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return errResetNotConfirmed
	}
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	if err := rt.engine.Reset(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Tracker reset.")
	return nil
}

// ─── reconcile ──────────────────────────────────────────────────────────────

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Report where the ledger and the folders disagree",
	Long: `Compare the ledger with the folders. Lists completed units whose PDF is
still pending and PDFs in the done folder that the ledger doesn't know.
Nothing is changed.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	rec, err := rt.engine.Reconcile()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rec.InSync {
		fmt.Fprintln(out, "Ledger and folders are in sync.")
		return nil
	}
	printList(out, "Completed but PDF still pending", rec.Misplaced)
	printList(out, "In done folder but not completed", rec.Untracked)
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func printList(out io.Writer, title string, items []string) {
	fmt.Fprintf(out, "%s (%d):\n", title, len(items))
	for _, it := range items {
		fmt.Fprintf(out, "  • %s\n", it)
	}
}

func describePrize(p domain.Prize) string {
	name := p.Name()
	if name == "" {
		name = "(unnamed)"
	}
	if cost := p.Cost(); cost != "" {
		return fmt.Sprintf("%s (cost %s)", name, cost)
	}
	return name
}
