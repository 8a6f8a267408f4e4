package model

import (
	"time"

	"github.com/google/uuid"
)

// PatternType selects how a rule's pattern is evaluated against a field.
type PatternType string

// Pattern type constants.
const (
	PatternContains   PatternType = "contains"
	PatternExact      PatternType = "exact"
	PatternRegex      PatternType = "regex"
	PatternStartsWith PatternType = "starts_with"
)

// FieldToMatch names the import-row field a rule inspects.
type FieldToMatch string

// Matchable field constants.
const (
	FieldVendor      FieldToMatch = "vendor"
	FieldDescription FieldToMatch = "description"
	FieldNotes       FieldToMatch = "notes"
)

// CategorizationRule is a user-owned rule that proposes a category for
// matching import rows. Lower priority numbers run first; ties go to the
// most recently created rule.
type CategorizationRule struct {
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastAppliedAt *time.Time
	CategoryID    *uuid.UUID
	SubcategoryID *uuid.UUID
	Pattern       string
	PatternType   PatternType
	FieldToMatch  FieldToMatch
	Name          string
	Notes         string
	ID            uuid.UUID
	UserID        uuid.UUID
	Priority      int
	Confidence    int
	TimesApplied  int
	IsActive      bool
}
