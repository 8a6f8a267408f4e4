package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/category"
	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/model"
)

// heuristicMaxConfidence caps heuristic suggestions below every plausible
// rule so a heuristic never outranks an explicit rule in the UI.
const heuristicMaxConfidence = 70

// heuristicBaseConfidence is the score for a vendor seen with a category
// exactly once; each additional co-occurrence adds heuristicStepConfidence.
const (
	heuristicBaseConfidence = 40
	heuristicStepConfidence = 5
)

type categoryPair struct {
	categoryID    uuid.UUID
	subcategoryID *uuid.UUID
}

type vendorHistory struct {
	counts map[string]int
	pairs  map[string]categoryPair
}

// Heuristic suggests categories from vendor/category co-occurrence in the
// existing ledger snapshot. It is built once per preview and never mutated.
type Heuristic struct {
	byVendor map[string]*vendorHistory
	tree     *category.Tree
}

// NewHeuristic indexes the snapshot's categorized entries by normalized
// vendor name.
func NewHeuristic(entries []model.LedgerEntry, tree *category.Tree) *Heuristic {
	h := &Heuristic{
		byVendor: make(map[string]*vendorHistory),
		tree:     tree,
	}

	for i := range entries {
		entry := &entries[i]
		if entry.CategoryID == nil {
			continue
		}
		vendor := common.NormalizeText(entry.Vendor)
		if vendor == "" {
			continue
		}

		hist, ok := h.byVendor[vendor]
		if !ok {
			hist = &vendorHistory{
				counts: make(map[string]int),
				pairs:  make(map[string]categoryPair),
			}
			h.byVendor[vendor] = hist
		}

		pair := categoryPair{categoryID: *entry.CategoryID, subcategoryID: entry.SubcategoryID}
		key := pairKey(pair)
		hist.counts[key]++
		hist.pairs[key] = pair
	}

	return h
}

func pairKey(p categoryPair) string {
	if p.subcategoryID != nil {
		return p.categoryID.String() + "/" + p.subcategoryID.String()
	}
	return p.categoryID.String()
}

// Suggest returns a heuristic suggestion for the row's vendor, or nil when
// the vendor has no usable history. Lookup is by substring in both
// directions so "AMAZON MKTP IT" still finds history stored under "amazon".
func (h *Heuristic) Suggest(row model.RawRow) *Suggestion {
	vendor := common.NormalizeText(row.Vendor)
	if vendor == "" {
		return nil
	}

	hist := h.byVendor[vendor]
	matchedVendor := vendor
	if hist == nil {
		hist, matchedVendor = h.substringLookup(vendor)
	}
	if hist == nil {
		return nil
	}

	pair, count := dominantPair(hist)
	if count == 0 || !h.tree.IsUsable(pair.categoryID) {
		return nil
	}
	if pair.subcategoryID != nil && !h.tree.IsUsable(*pair.subcategoryID) {
		return nil
	}

	confidence := heuristicBaseConfidence + heuristicStepConfidence*(count-1)
	if confidence > heuristicMaxConfidence {
		confidence = heuristicMaxConfidence
	}

	catID := pair.categoryID
	return &Suggestion{
		CategoryID:    &catID,
		SubcategoryID: pair.subcategoryID,
		Source:        model.SuggestionHeuristic,
		Confidence:    confidence,
		Reason:        fmt.Sprintf("seen %d times for vendor %q", count, matchedVendor),
	}
}

// substringLookup scans known vendors for a substring relationship with the
// queried vendor, preferring the longest match for determinism.
func (h *Heuristic) substringLookup(vendor string) (*vendorHistory, string) {
	var bestVendor string
	for known := range h.byVendor {
		if !strings.Contains(vendor, known) && !strings.Contains(known, vendor) {
			continue
		}
		if len(known) > len(bestVendor) || (len(known) == len(bestVendor) && known < bestVendor) {
			bestVendor = known
		}
	}
	if bestVendor == "" {
		return nil, ""
	}
	return h.byVendor[bestVendor], bestVendor
}

// dominantPair picks the most frequent category pairing for a vendor, with
// lexical key order as the deterministic tiebreak.
func dominantPair(hist *vendorHistory) (categoryPair, int) {
	keys := make([]string, 0, len(hist.counts))
	for key := range hist.counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var bestKey string
	bestCount := 0
	for _, key := range keys {
		if hist.counts[key] > bestCount {
			bestKey = key
			bestCount = hist.counts[key]
		}
	}
	if bestKey == "" {
		return categoryPair{}, 0
	}
	return hist.pairs[bestKey], bestCount
}
