// Package category provides an in-memory index over a user's category
// hierarchy. The hierarchy is at most two levels deep: primary categories and
// their subcategories.
package category

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/model"
)

// Tree is an immutable category index built once from the flat category list.
type Tree struct {
	byID     map[uuid.UUID]*model.Category
	children map[uuid.UUID][]*model.Category
	primary  []*model.Category
}

// NewTree builds a tree from a flat category list. It rejects subcategories
// whose parent is missing or is itself a subcategory.
func NewTree(categories []model.Category) (*Tree, error) {
	t := &Tree{
		byID:     make(map[uuid.UUID]*model.Category, len(categories)),
		children: make(map[uuid.UUID][]*model.Category),
	}

	for i := range categories {
		cat := &categories[i]
		t.byID[cat.ID] = cat
	}

	for i := range categories {
		cat := &categories[i]
		if cat.ParentID == nil {
			t.primary = append(t.primary, cat)
			continue
		}
		parent, ok := t.byID[*cat.ParentID]
		if !ok {
			return nil, fmt.Errorf("category %q: %w: parent %s",
				cat.Name, common.ErrCategoryNotFound, *cat.ParentID)
		}
		if parent.ParentID != nil {
			return nil, fmt.Errorf("category %q under %q: %w",
				cat.Name, parent.Name, common.ErrCategoryNesting)
		}
		t.children[parent.ID] = append(t.children[parent.ID], cat)
	}

	sortCategories(t.primary)
	for _, subs := range t.children {
		sortCategories(subs)
	}

	return t, nil
}

func sortCategories(cats []*model.Category) {
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].SortOrder != cats[j].SortOrder {
			return cats[i].SortOrder < cats[j].SortOrder
		}
		return cats[i].Name < cats[j].Name
	})
}

// Resolve returns the category with the given ID. Inactive categories
// resolve normally so historical references keep working.
func (t *Tree) Resolve(id uuid.UUID) (*model.Category, error) {
	cat, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrCategoryNotFound, id)
	}
	return cat, nil
}

// AncestorsOf returns the chain of ancestors for a category, nearest first.
// With one level of nesting this is at most the primary parent.
func (t *Tree) AncestorsOf(id uuid.UUID) ([]*model.Category, error) {
	cat, err := t.Resolve(id)
	if err != nil {
		return nil, err
	}
	if cat.ParentID == nil {
		return nil, nil
	}
	parent, err := t.Resolve(*cat.ParentID)
	if err != nil {
		return nil, err
	}
	return []*model.Category{parent}, nil
}

// IsDescendant reports whether candidate sits under parent in the hierarchy.
// A category is not considered its own descendant.
func (t *Tree) IsDescendant(parentID, candidateID uuid.UUID) bool {
	cat, ok := t.byID[candidateID]
	if !ok || cat.ParentID == nil {
		return false
	}
	return *cat.ParentID == parentID
}

// Children returns the subcategories of a primary category, in sort order.
func (t *Tree) Children(id uuid.UUID) []*model.Category {
	return t.children[id]
}

// Primaries returns all top-level categories in sort order.
func (t *Tree) Primaries() []*model.Category {
	return t.primary
}

// IsUsable reports whether a category exists and is active, the precondition
// for a rule or suggestion to target it.
func (t *Tree) IsUsable(id uuid.UUID) bool {
	cat, ok := t.byID[id]
	return ok && cat.IsActive
}

// PrimaryOf returns the primary category an ID falls under: the category
// itself when primary, otherwise its parent.
func (t *Tree) PrimaryOf(id uuid.UUID) (*model.Category, error) {
	cat, err := t.Resolve(id)
	if err != nil {
		return nil, err
	}
	if cat.ParentID == nil {
		return cat, nil
	}
	return t.Resolve(*cat.ParentID)
}
