package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/dedup"
	"github.com/tallyhq/tally/internal/engine"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/ofx"
	"github.com/tallyhq/tally/internal/statement"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import bank exports into the ledger",
		Long: `Parse OFX/QFX or activity-CSV bank exports, reconcile them against the
ledger and preview the result. Nothing is written without --commit.

Examples:
  # Preview an OFX export
  tally import ~/Downloads/march.ofx

  # Commit a CSV export, tagging every imported entry
  tally import --commit --tag trip-rome ~/Downloads/activity.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().Bool("commit", false, "Write accepted rows to the ledger")
	cmd.Flags().StringSlice("tag", nil, "Tag applied to every imported entry (repeatable)")
	cmd.Flags().Bool("create-rules", false, "Create vendor rules from categorized rows")
	cmd.Flags().String("format", "auto", "Input format (auto, ofx, csv)")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	commit, _ := cmd.Flags().GetBool("commit")
	tags, _ := cmd.Flags().GetStringSlice("tag")
	createRules, _ := cmd.Flags().GetBool("create-rules")
	format, _ := cmd.Flags().GetString("format")

	ctx := cmd.Context()
	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	rows, err := a.parseFiles(cmd, args, format)
	if err != nil {
		return err
	}

	session := engine.NewSession(a.settings.UserID)
	if err := session.AttachRows(rows); err != nil {
		return err
	}

	snapshot, err := a.snapshot(ctx)
	if err != nil {
		return err
	}

	reconciler := engine.NewReconciler(a.store, a.store, a.rates, engine.Options{
		BaseCurrency: a.settings.BaseCurrency,
		Dedup:        dedup.Options{DateToleranceDays: a.settings.DateToleranceDays},
	})

	preview, err := reconciler.Preview(session, snapshot)
	if err != nil {
		return err
	}

	printPreview(cmd, preview)

	if !commit {
		fmt.Fprintln(cmd.OutOrStdout(), "\nPreview only. Re-run with --commit to import.")
		return nil
	}

	if createRules {
		for i := range preview.Rows {
			if preview.Rows[i].CategoryID != nil {
				_ = session.SetCreateRule(i, true)
			}
		}
	}

	result, err := reconciler.Commit(ctx, session, engine.CommitOptions{
		GenericTags: tags,
		CreateRules: createRules,
	})
	if err != nil {
		return err
	}

	printResult(cmd, result)
	return nil
}

// parseFiles reads every input file with the parser its format calls for.
func (a *app) parseFiles(cmd *cobra.Command, paths []string, format string) ([]model.RawRow, error) {
	var rows []model.RawRow

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}

		var parsed []model.RawRow
		switch fileFormat(path, format) {
		case "ofx":
			parsed, err = ofx.NewParser(a.settings.BaseCurrency).ParseFile(cmd.Context(), f)
		case "csv":
			parsed, err = statement.NewParser(a.settings.BaseCurrency).ParseFile(cmd.Context(), f)
		default:
			err = fmt.Errorf("cannot determine format of %s, use --format", path)
		}
		_ = f.Close()

		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		rows = append(rows, parsed...)
	}

	return rows, nil
}

func fileFormat(path, override string) string {
	if override != "" && override != "auto" {
		return override
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx":
		return "ofx"
	case ".csv":
		return "csv"
	default:
		return ""
	}
}

func printPreview(cmd *cobra.Command, preview *model.ImportPreview) {
	out := cmd.OutOrStdout()
	s := preview.Summary

	fmt.Fprintf(out, "Import preview: %d rows (%d new, %d duplicates)\n",
		s.TotalRows, s.NewRows, s.DuplicateRows)
	fmt.Fprintf(out, "Dates %s to %s, total %s %s\n",
		s.DateStart.Format("2006-01-02"), s.DateEnd.Format("2006-01-02"),
		s.TotalAmount, s.Currency)
	fmt.Fprintf(out, "Suggestions: %d by rule, %d by history, %d unmatched\n\n",
		s.RuleMatches, s.HeuristicMatches, s.NoSuggestions)

	for i := range preview.Rows {
		row := &preview.Rows[i]
		marker := " "
		if row.IsDuplicate {
			marker = "D"
		}
		suggestion := "-"
		if row.SuggestionSource != model.SuggestionNone {
			suggestion = fmt.Sprintf("%s (%d%%)", row.SuggestionReason, row.SuggestionConfidence)
		}
		fmt.Fprintf(out, "%s %3d  %s  %10s  %-30.30s  %s\n",
			marker, i,
			row.Raw.Date.Format("2006-01-02"),
			row.Raw.Amount.String(),
			row.Raw.Description,
			suggestion)
	}
}

func printResult(cmd *cobra.Command, result *model.ImportResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nImported %d entries, %d errors", result.ImportedCount, result.ErrorCount)
	if len(result.CreatedRuleIDs) > 0 {
		fmt.Fprintf(out, ", %d rules created", len(result.CreatedRuleIDs))
	}
	fmt.Fprintln(out)

	for _, importErr := range result.Errors {
		fmt.Fprintf(out, "  row %d: %s\n", importErr.Row, importErr.Reason)
	}
}
