package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesDeactivateCmd())
	cmd.AddCommand(rulesStatsCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in match order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")

			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			var ruleList []model.CategorizationRule
			if all {
				ruleList, err = a.store.GetRules(cmd.Context(), a.settings.UserID)
			} else {
				ruleList, err = a.store.GetActiveRules(cmd.Context(), a.settings.UserID)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i := range ruleList {
				rule := &ruleList[i]
				status := ""
				if !rule.IsActive {
					status = " (inactive)"
				}
				fmt.Fprintf(out, "%4d  %-30.30s  %s %s on %s  applied %d times%s\n",
					rule.Priority, rule.Name,
					rule.PatternType, quoted(rule.Pattern), rule.FieldToMatch,
					rule.TimesApplied, status)
				fmt.Fprintf(out, "      id %s\n", rule.ID)
			}
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Include inactive rules")
	return cmd
}

func quoted(s string) string {
	return fmt.Sprintf("%q", s)
}

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [pattern]",
		Short: "Create a categorization rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			categoryName, _ := cmd.Flags().GetString("category")
			patternType, _ := cmd.Flags().GetString("type")
			field, _ := cmd.Flags().GetString("field")
			priority, _ := cmd.Flags().GetInt("priority")
			confidence, _ := cmd.Flags().GetInt("confidence")
			name, _ := cmd.Flags().GetString("name")

			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			cat, err := a.findCategory(cmd.Context(), categoryName)
			if err != nil {
				return err
			}

			rule := &model.CategorizationRule{
				ID:           uuid.New(),
				UserID:       a.settings.UserID,
				Pattern:      args[0],
				PatternType:  model.PatternType(patternType),
				FieldToMatch: model.FieldToMatch(field),
				Name:         name,
				Priority:     priority,
				Confidence:   confidence,
				IsActive:     true,
				CreatedAt:    time.Now(),
			}
			if cat.IsSubcategory() {
				rule.CategoryID = cat.ParentID
				rule.SubcategoryID = &cat.ID
			} else {
				rule.CategoryID = &cat.ID
			}
			if rule.Name == "" {
				rule.Name = fmt.Sprintf("%s -> %s", args[0], cat.Name)
			}

			if err := a.store.CreateRule(cmd.Context(), rule); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created rule %q (%s)\n", rule.Name, rule.ID)
			return nil
		},
	}

	cmd.Flags().String("category", "", "Target category name or ID (required)")
	cmd.Flags().String("type", string(model.PatternContains), "Pattern type (contains, exact, regex, starts_with)")
	cmd.Flags().String("field", string(model.FieldVendor), "Field to match (vendor, description, notes)")
	cmd.Flags().Int("priority", 100, "Match priority, lower runs first")
	cmd.Flags().Int("confidence", 90, "Suggestion confidence (0-100)")
	cmd.Flags().String("name", "", "Rule name")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func rulesDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate [rule-id]",
		Short: "Deactivate a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid rule id %q: %w", args[0], err)
			}

			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.DeactivateRule(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Rule deactivated.")
			return nil
		},
	}
}

func rulesStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show rule usage statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.store.GetRuleStats(cmd.Context(), a.settings.UserID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rules:        %d (%d active)\n", stats.TotalRules, stats.ActiveRules)
			fmt.Fprintf(out, "Applications: %d\n", stats.TotalApplications)
			return nil
		},
	}
}
