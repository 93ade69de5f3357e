package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/gwngames/persister/internal/match"
	"github.com/gwngames/persister/internal/model"
)

// JournalFields carries the optional SJR attributes of a journal payload.
type JournalFields struct {
	Type              *string
	Year              int
	Link              *string
	SJR               *string
	QRank             *string
	HIndex            *int
	TotalDocs         *int
	TotalDocs3Years   *int
	TotalRefs         *int
	TotalCites3Years  *int
	CitableDocs3Years *int
	CitesPerDoc2Years *string
	RefsPerDoc        *string
	FemalePercent     *string
}

const journalSelectSQL = `
SELECT id, title, type, year, link, sjr, q_rank, h_index, update_count
FROM journal
WHERE title LIKE '%' || $1 || '%'
  AND jaro_similarity(title, $2) >= $3
ORDER BY jaro_similarity(title, $2) DESC
LIMIT 1
FOR UPDATE`

const journalInsertSQL = `
INSERT INTO journal (title, type, year, link, sjr, q_rank, h_index, total_docs, total_docs_3years, total_refs, total_cites_3years, citable_docs_3years, cites_per_doc_2years, refs_per_doc, female_percent, class_id, variant_id, update_date, update_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, 1)
RETURNING id`

const journalUpdateSQL = `
UPDATE journal SET
	type = COALESCE($2, type),
	year = $3,
	link = COALESCE($4, link),
	sjr = COALESCE($5, sjr),
	q_rank = COALESCE($6, q_rank),
	h_index = COALESCE($7, h_index),
	total_docs = COALESCE($8, total_docs),
	total_docs_3years = COALESCE($9, total_docs_3years),
	total_refs = COALESCE($10, total_refs),
	total_cites_3years = COALESCE($11, total_cites_3years),
	citable_docs_3years = COALESCE($12, citable_docs_3years),
	cites_per_doc_2years = COALESCE($13, cites_per_doc_2years),
	refs_per_doc = COALESCE($14, refs_per_doc),
	female_percent = COALESCE($15, female_percent),
	update_date = $16,
	update_count = COALESCE(update_count, 0) + 1
WHERE id = $1`

// UpsertJournal resolves a journal by fuzzy title match at the given
// threshold and creates or updates the row. The SJR parser uses the
// journal_title threshold; the DBLP association path the stricter
// journal_attach one.
func (s *Store) UpsertJournal(ctx context.Context, tx pgx.Tx, title string, threshold float64, fields JournalFields, updateDate time.Time) (*model.Journal, error) {
	key := normKey(title)
	if key == "" {
		return nil, eris.New("store: journal title is empty")
	}

	var j model.Journal
	err := tx.QueryRow(ctx, journalSelectSQL, match.FirstAfterFifth(key), key, threshold).
		Scan(&j.ID, &j.Title, &j.Type, &j.Year, &j.Link, &j.SJR, &j.QRank, &j.HIndex, &j.UpdateCount)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "store: lock journal %q", key)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		m := meta(model.ClassJournal, model.VariantBase, updateDate)
		j = model.Journal{
			Title: key,
			Type:  fields.Type,
			Year:  fields.Year,
			Link:  fields.Link,
			SJR:   fields.SJR,
			QRank: fields.QRank,
			Meta:  m,
		}
		err = tx.QueryRow(ctx, journalInsertSQL,
			key, fields.Type, fields.Year, fields.Link, fields.SJR, fields.QRank, fields.HIndex,
			fields.TotalDocs, fields.TotalDocs3Years, fields.TotalRefs, fields.TotalCites3Years,
			fields.CitableDocs3Years, fields.CitesPerDoc2Years, fields.RefsPerDoc, fields.FemalePercent,
			m.ClassID, m.VariantID, m.UpdateDate,
		).Scan(&j.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "store: insert journal %q", key)
		}
		return &j, nil
	}

	j.Year = fields.Year
	j.UpdateDate = metaDate(updateDate)
	_, err = tx.Exec(ctx, journalUpdateSQL,
		j.ID, fields.Type, fields.Year, fields.Link, fields.SJR, fields.QRank, fields.HIndex,
		fields.TotalDocs, fields.TotalDocs3Years, fields.TotalRefs, fields.TotalCites3Years,
		fields.CitableDocs3Years, fields.CitesPerDoc2Years, fields.RefsPerDoc, fields.FemalePercent,
		j.UpdateDate)
	if err != nil {
		return nil, eris.Wrapf(err, "store: update journal %q", key)
	}
	return &j, nil
}

// JournalTitleThreshold returns the configured SJR upsert threshold.
func (s *Store) JournalTitleThreshold() float64 { return s.thresholds.JournalTitle }

// JournalAttachThreshold returns the configured DBLP attach threshold.
func (s *Store) JournalAttachThreshold() float64 { return s.thresholds.JournalAttach }
