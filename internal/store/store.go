// Package store implements the similarity-aware entity store: upserts that
// locate existing rows through fuzzy string matching under row locks, and
// the link-table reconciliation between them.
//
// Every lookup runs inside a caller-provided transaction and locks its
// candidate with FOR UPDATE. Combined with the dispatcher's process-wide
// serialisation of parsers, this keeps each logical entity on exactly one
// row under concurrent ingestion.
package store

import (
	"strings"
	"time"

	"github.com/gwngames/persister/internal/config"
	"github.com/gwngames/persister/internal/match"
	"github.com/gwngames/persister/internal/model"
)

// Store exposes per-entity upsert operations against the relational schema.
type Store struct {
	thresholds config.SimilarityConfig
}

// New creates a Store with the given similarity thresholds.
func New(thresholds config.SimilarityConfig) *Store {
	return &Store{thresholds: thresholds}
}

// normKey produces the canonical match key for free-text columns: trimmed,
// SQL-unsafe characters stripped, accents folded, lowercased. Both sides of
// every similarity comparison see this form.
func normKey(text string) string {
	return match.Fold(match.Sanitize(text))
}

// normAcronym produces the canonical conference acronym: sanitized and
// uppercased.
func normAcronym(text string) string {
	return strings.ToUpper(match.Sanitize(text))
}

// metaDate returns the row update date: the envelope's update_date when
// set, otherwise now.
func metaDate(updateDate time.Time) time.Time {
	if updateDate.IsZero() {
		return time.Now().UTC()
	}
	return updateDate
}

// meta builds the bookkeeping columns for a freshly inserted row.
func meta(classID, variantID int, updateDate time.Time) model.Meta {
	return model.Meta{
		ClassID:     classID,
		VariantID:   variantID,
		UpdateDate:  metaDate(updateDate),
		UpdateCount: 1,
	}
}
