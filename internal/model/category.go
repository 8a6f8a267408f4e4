// Package model defines the core domain types for the tally engine.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Category organizes ledger entries. Categories nest at most one level:
// a primary category has no parent, a subcategory references a primary.
type Category struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ParentID  *uuid.UUID
	Name      string
	Color     string
	Icon      string
	ID        uuid.UUID
	UserID    uuid.UUID
	SortOrder int
	IsActive  bool
}

// IsPrimary reports whether this is a top-level category.
func (c *Category) IsPrimary() bool {
	return c.ParentID == nil
}

// IsSubcategory reports whether this category has a parent.
func (c *Category) IsSubcategory() bool {
	return c.ParentID != nil
}
