package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage expense categories",
	}

	cmd.AddCommand(categoriesListCmd())
	cmd.AddCommand(categoriesAddCmd())
	cmd.AddCommand(categoriesDeactivateCmd())

	return cmd
}

func categoriesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			cats, err := a.store.GetCategories(cmd.Context(), a.settings.UserID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			byParent := make(map[uuid.UUID][]model.Category)
			var primaries []model.Category
			for _, cat := range cats {
				if cat.IsPrimary() {
					primaries = append(primaries, cat)
				} else {
					byParent[*cat.ParentID] = append(byParent[*cat.ParentID], cat)
				}
			}

			for _, primary := range primaries {
				fmt.Fprintf(out, "%s%s\n", primary.Name, inactiveSuffix(&primary))
				for _, sub := range byParent[primary.ID] {
					fmt.Fprintf(out, "  └─ %s%s\n", sub.Name, inactiveSuffix(&sub))
				}
			}
			return nil
		},
	}
}

func inactiveSuffix(cat *model.Category) string {
	if cat.IsActive {
		return ""
	}
	return " (inactive)"
}

func categoriesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentName, _ := cmd.Flags().GetString("parent")

			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			cat := &model.Category{
				ID:        uuid.New(),
				UserID:    a.settings.UserID,
				Name:      strings.TrimSpace(args[0]),
				IsActive:  true,
				CreatedAt: time.Now(),
			}

			if parentName != "" {
				parent, findErr := a.findCategory(cmd.Context(), parentName)
				if findErr != nil {
					return findErr
				}
				cat.ParentID = &parent.ID
			}

			if err := a.store.CreateCategory(cmd.Context(), cat); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created category %q (%s)\n", cat.Name, cat.ID)
			return nil
		},
	}

	cmd.Flags().String("parent", "", "Parent category name (creates a subcategory)")
	return cmd
}

func categoriesDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate [name]",
		Short: "Deactivate a category and its subcategories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			cat, err := a.findCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeactivateCategory(cmd.Context(), cat.ID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %q. Ledger history is preserved.\n", cat.Name)
			return nil
		},
	}
}

// findCategory resolves a category by name or ID.
func (a *app) findCategory(ctx context.Context, nameOrID string) (*model.Category, error) {
	if id, err := uuid.Parse(nameOrID); err == nil {
		return a.store.GetCategoryByID(ctx, id)
	}

	cats, err := a.store.GetCategories(ctx, a.settings.UserID)
	if err != nil {
		return nil, err
	}
	for i := range cats {
		if strings.EqualFold(cats[i].Name, nameOrID) {
			return &cats[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", common.ErrCategoryNotFound, nameOrID)
}
