package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/budget"
	"github.com/tallyhq/tally/internal/category"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/money"
	"github.com/tallyhq/tally/internal/service"
)

func budgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budgets",
		Short: "Manage budgets and budget groups",
	}

	cmd.AddCommand(budgetsAddCmd())
	cmd.AddCommand(budgetsGroupCmd())
	cmd.AddCommand(budgetsReportCmd())

	return cmd
}

func budgetsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Create a budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amountStr, _ := cmd.Flags().GetString("amount")
			currency, _ := cmd.Flags().GetString("currency")
			period, _ := cmd.Flags().GetString("period")
			startStr, _ := cmd.Flags().GetString("start")
			endStr, _ := cmd.Flags().GetString("end")
			categoryName, _ := cmd.Flags().GetString("category")
			groupName, _ := cmd.Flags().GetString("group")
			threshold, _ := cmd.Flags().GetInt("alert-threshold")

			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if currency == "" {
				currency = a.settings.BaseCurrency
			}
			amount, err := money.Parse(amountStr, currency)
			if err != nil {
				return err
			}

			start, err := time.Parse("2006-01-02", startStr)
			if err != nil {
				return fmt.Errorf("invalid start date %q, want YYYY-MM-DD: %w", startStr, err)
			}

			b := &model.Budget{
				ID:             uuid.New(),
				UserID:         a.settings.UserID,
				Name:           strings.TrimSpace(args[0]),
				Amount:         amount,
				PeriodType:     model.PeriodType(period),
				StartDate:      start,
				AlertThreshold: decimal.NewFromInt(int64(threshold)),
				IsActive:       true,
			}

			if endStr != "" {
				end, parseErr := time.Parse("2006-01-02", endStr)
				if parseErr != nil {
					return fmt.Errorf("invalid end date %q, want YYYY-MM-DD: %w", endStr, parseErr)
				}
				b.EndDate = &end
			}

			if categoryName != "" {
				cat, findErr := a.findCategory(cmd.Context(), categoryName)
				if findErr != nil {
					return findErr
				}
				b.CategoryID = &cat.ID
			}

			if groupName != "" {
				group, findErr := a.findBudgetGroup(cmd, groupName)
				if findErr != nil {
					return findErr
				}
				b.BudgetGroupID = &group.ID
			}

			if err := a.store.SaveBudget(cmd.Context(), b); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created budget %q: %s %s\n",
				b.Name, b.Amount.String(), b.PeriodType)
			return nil
		},
	}

	cmd.Flags().String("amount", "", "Budget amount as a decimal string (required)")
	cmd.Flags().String("currency", "", "Budget currency (defaults to base currency)")
	cmd.Flags().String("period", string(model.PeriodMonthly), "Period (weekly, monthly, yearly, custom)")
	cmd.Flags().String("start", "", "Period start date, YYYY-MM-DD (required)")
	cmd.Flags().String("end", "", "Period end date for custom periods")
	cmd.Flags().String("category", "", "Scope the budget to a category")
	cmd.Flags().String("group", "", "Attach the budget to a group")
	cmd.Flags().Int("alert-threshold", 80, "Warning threshold as a percentage")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func budgetsGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group [name]",
		Short: "Create a budget group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			currency, _ := cmd.Flags().GetString("currency")
			startStr, _ := cmd.Flags().GetString("start")
			endStr, _ := cmd.Flags().GetString("end")
			period, _ := cmd.Flags().GetString("period")

			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if currency == "" {
				currency = a.settings.BaseCurrency
			}
			start, err := time.Parse("2006-01-02", startStr)
			if err != nil {
				return fmt.Errorf("invalid start date %q: %w", startStr, err)
			}
			end, err := time.Parse("2006-01-02", endStr)
			if err != nil {
				return fmt.Errorf("invalid end date %q: %w", endStr, err)
			}

			group := &model.BudgetGroup{
				ID:         uuid.New(),
				UserID:     a.settings.UserID,
				Name:       strings.TrimSpace(args[0]),
				PeriodType: model.PeriodType(period),
				Currency:   strings.ToUpper(currency),
				StartDate:  start,
				EndDate:    end,
				IsActive:   true,
			}

			if err := a.store.SaveBudgetGroup(cmd.Context(), group); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created budget group %q in %s\n", group.Name, group.Currency)
			return nil
		},
	}

	cmd.Flags().String("currency", "", "Comparison currency for the rollup (defaults to base currency)")
	cmd.Flags().String("start", "", "Group start date, YYYY-MM-DD (required)")
	cmd.Flags().String("end", "", "Group end date, YYYY-MM-DD (required)")
	cmd.Flags().String("period", string(model.PeriodMonthly), "Period label (weekly, monthly, yearly, custom)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func budgetsReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report budget performance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			groupName, _ := cmd.Flags().GetString("group")

			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			cats, err := a.store.GetCategories(ctx, a.settings.UserID)
			if err != nil {
				return err
			}
			tree, err := category.NewTree(cats)
			if err != nil {
				return err
			}
			entries, err := a.store.GetEntries(ctx, a.settings.UserID, service.LedgerFilter{})
			if err != nil {
				return err
			}
			aggregator := budget.NewAggregator(tree)

			if groupName != "" {
				return a.reportGroup(cmd, aggregator, groupName, entries)
			}
			return a.reportBudgets(cmd, aggregator, tree, entries)
		},
	}

	cmd.Flags().String("group", "", "Report a budget group rollup")
	return cmd
}

func (a *app) reportBudgets(cmd *cobra.Command, aggregator *budget.Aggregator, tree *category.Tree, entries []model.LedgerEntry) error {
	budgets, err := a.store.GetBudgets(cmd.Context(), a.settings.UserID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i := range budgets {
		b := &budgets[i]
		if !b.IsActive {
			continue
		}
		perf := aggregator.Performance(b, entries)

		scope := "all spending"
		if b.CategoryID != nil {
			if cat, resolveErr := tree.Resolve(*b.CategoryID); resolveErr == nil {
				scope = cat.Name
			}
		}

		fmt.Fprintf(out, "%-25.25s  %s of %s (%s%%)  %s  [%s]\n",
			b.Name,
			perf.Spent.String(), b.Amount.String(),
			perf.PercentageUsed.StringFixed(1),
			scope,
			perf.Status)
	}
	return nil
}

func (a *app) reportGroup(cmd *cobra.Command, aggregator *budget.Aggregator, groupName string, entries []model.LedgerEntry) error {
	group, err := a.findBudgetGroup(cmd, groupName)
	if err != nil {
		return err
	}

	budgets, err := a.store.GetBudgetsByGroup(cmd.Context(), group.ID)
	if err != nil {
		return err
	}

	summary := aggregator.GroupSummary(cmd.Context(), group, budgets, entries, a.rates)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s to %s)\n", group.Name,
		group.StartDate.Format("2006-01-02"), group.EndDate.Format("2006-01-02"))
	fmt.Fprintf(out, "Budgeted %s, spent %s, remaining %s (%s%%) [%s]\n",
		summary.TotalBudgeted.String(), summary.TotalSpent.String(),
		summary.TotalRemaining.String(), summary.PercentageUsed.StringFixed(1),
		summary.Status)
	if summary.DegradedCount > 0 {
		fmt.Fprintf(out, "Warning: %d budgets excluded, no conversion rate to %s\n",
			summary.DegradedCount, group.Currency)
	}

	names := make([]string, 0, len(summary.Categories))
	for name := range summary.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cat := summary.Categories[name]
		fmt.Fprintf(out, "\n%s: %s of %s (%s%%)\n",
			cat.CategoryName, cat.TotalSpent.String(), cat.TotalBudgeted.String(),
			cat.PercentageUsed.StringFixed(1))

		subNames := make([]string, 0, len(cat.Subcategories))
		for subName := range cat.Subcategories {
			subNames = append(subNames, subName)
		}
		sort.Strings(subNames)
		for _, subName := range subNames {
			sub := cat.Subcategories[subName]
			fmt.Fprintf(out, "  └─ %s: %s of %s\n",
				sub.CategoryName, sub.Spent.String(), sub.Budgeted.String())
		}
	}
	return nil
}

// findBudgetGroup resolves a group by name or ID.
func (a *app) findBudgetGroup(cmd *cobra.Command, nameOrID string) (*model.BudgetGroup, error) {
	if id, err := uuid.Parse(nameOrID); err == nil {
		return a.store.GetBudgetGroupByID(cmd.Context(), id)
	}

	groups, err := a.store.GetBudgetGroups(cmd.Context(), a.settings.UserID)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		if strings.EqualFold(groups[i].Name, nameOrID) {
			return &groups[i], nil
		}
	}
	return nil, fmt.Errorf("budget group %q not found", nameOrID)
}
