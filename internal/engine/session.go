// Package engine orchestrates import reconciliation: duplicate detection,
// category suggestion, the user-editable preview, and the transactional
// per-row commit.
package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/category"
	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/model"
)

// SessionState tracks an import session through its lifecycle.
type SessionState string

// Session states. Transitions: Uploaded -> Parsed -> Previewed ->
// (edited)* -> Committed | Aborted.
const (
	StateUploaded  SessionState = "uploaded"
	StateParsed    SessionState = "parsed"
	StatePreviewed SessionState = "previewed"
	StateCommitted SessionState = "committed"
	StateAborted   SessionState = "aborted"
)

// Session is one import run. It holds no external resources and performs no
// writes before commit, so it can be discarded at any earlier point.
type Session struct {
	rawRows []model.RawRow
	preview *model.ImportPreview
	// tree is the category snapshot the preview was computed against;
	// commit validates category pairings against it.
	tree   *category.Tree
	State  SessionState
	ID     uuid.UUID
	UserID uuid.UUID
}

// NewSession starts an import session for a user's uploaded file.
func NewSession(userID uuid.UUID) *Session {
	return &Session{
		ID:     uuid.New(),
		UserID: userID,
		State:  StateUploaded,
	}
}

// AttachRows records the parsed rows and moves the session to Parsed.
func (s *Session) AttachRows(rows []model.RawRow) error {
	if s.State != StateUploaded {
		return fmt.Errorf("%w: cannot attach rows in state %s", common.ErrSessionState, s.State)
	}
	if len(rows) == 0 {
		return common.ErrNoRows
	}
	s.rawRows = rows
	s.State = StateParsed
	return nil
}

// Preview returns the current preview, or nil before one is generated.
func (s *Session) Preview() *model.ImportPreview {
	return s.preview
}

// Abort discards the session. Committed sessions cannot be aborted.
func (s *Session) Abort() error {
	if s.State == StateCommitted {
		return fmt.Errorf("%w: session already committed", common.ErrSessionState)
	}
	s.State = StateAborted
	return nil
}

// row returns a pointer to a preview row for editing.
func (s *Session) row(index int) (*model.ImportRow, error) {
	if s.State != StatePreviewed {
		return nil, fmt.Errorf("%w: edits require a previewed session, got %s", common.ErrSessionState, s.State)
	}
	if index < 0 || index >= len(s.preview.Rows) {
		return nil, fmt.Errorf("%w: %d", common.ErrRowOutOfRange, index)
	}
	return &s.preview.Rows[index], nil
}

// SetCategory reassigns a row's category and subcategory.
func (s *Session) SetCategory(index int, categoryID, subcategoryID *uuid.UUID) error {
	row, err := s.row(index)
	if err != nil {
		return err
	}
	row.CategoryID = categoryID
	row.SubcategoryID = subcategoryID
	return nil
}

// SetExcluded toggles whether a row is excluded from commit.
func (s *Session) SetExcluded(index int, excluded bool) error {
	row, err := s.row(index)
	if err != nil {
		return err
	}
	row.Excluded = excluded
	return nil
}

// SetForceImport lets a user import a legitimate repeat transaction that was
// flagged as a duplicate.
func (s *Session) SetForceImport(index int, force bool) error {
	row, err := s.row(index)
	if err != nil {
		return err
	}
	row.ForceImport = force
	return nil
}

// SetCreateRule flags a row for rule synthesis at commit time.
func (s *Session) SetCreateRule(index int, create bool) error {
	row, err := s.row(index)
	if err != nil {
		return err
	}
	row.CreateRule = create
	return nil
}

// AddTags appends tags to a row, skipping ones already present.
func (s *Session) AddTags(index int, tags ...string) error {
	row, err := s.row(index)
	if err != nil {
		return err
	}
	row.Tags = unionTags(row.Tags, tags)
	return nil
}

// BulkSetCategory assigns the same category to several rows at once.
func (s *Session) BulkSetCategory(indices []int, categoryID, subcategoryID *uuid.UUID) error {
	for _, index := range indices {
		if err := s.SetCategory(index, categoryID, subcategoryID); err != nil {
			return err
		}
	}
	return nil
}

// unionTags merges tag lists, removing duplicates while preserving order.
func unionTags(lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, tag := range list {
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
