package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/gwngames/persister/internal/model"
)

// CitationFields carries the optional attributes of a citation entry.
type CitationFields struct {
	CitationLink *string
	Title        *string
	Link         *string
	Summary      *string
	DocumentLink *string
	Year         *string
	Citations    *int
}

const citationSelectSQL = `
SELECT id, scholar_publication_fk, year, update_count
FROM scholar_citation
WHERE cites_id = $1
FOR UPDATE`

const citationInsertSQL = `
INSERT INTO scholar_citation (scholar_publication_fk, cites_id, citation_link, title, link, summary, document_link, year, citations, class_id, variant_id, update_date, update_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
RETURNING id`

// An already-known citation keeps its year once set.
const citationUpdateSQL = `
UPDATE scholar_citation SET
	citation_link = COALESCE($2, citation_link),
	title = COALESCE($3, title),
	link = COALESCE($4, link),
	summary = COALESCE($5, summary),
	document_link = COALESCE($6, document_link),
	year = COALESCE(year, $7),
	citations = COALESCE($8, citations),
	update_date = $9,
	update_count = COALESCE(update_count, 0) + 1
WHERE id = $1`

// UpsertScholarCitation resolves a citation by exact cites id and links it
// to the scholar publication it cites.
func (s *Store) UpsertScholarCitation(ctx context.Context, tx pgx.Tx, citesID string, scholarPublicationID int64, fields CitationFields, updateDate time.Time) (*model.ScholarCitation, error) {
	if citesID == "" {
		return nil, eris.New("store: citation cites_id is empty")
	}

	var c model.ScholarCitation
	err := tx.QueryRow(ctx, citationSelectSQL, citesID).
		Scan(&c.ID, &c.ScholarPublicationFK, &c.Year, &c.UpdateCount)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "store: lock citation %q", citesID)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		m := meta(model.ClassCitation, model.VariantScholarCitation, updateDate)
		c = model.ScholarCitation{
			ScholarPublicationFK: scholarPublicationID,
			CitesID:              citesID,
			CitationLink:         fields.CitationLink,
			Title:                fields.Title,
			Link:                 fields.Link,
			Summary:              fields.Summary,
			DocumentLink:         fields.DocumentLink,
			Year:                 fields.Year,
			Citations:            fields.Citations,
			Meta:                 m,
		}
		err = tx.QueryRow(ctx, citationInsertSQL,
			scholarPublicationID, citesID, fields.CitationLink, fields.Title, fields.Link,
			fields.Summary, fields.DocumentLink, fields.Year, fields.Citations,
			m.ClassID, m.VariantID, m.UpdateDate,
		).Scan(&c.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "store: insert citation %q", citesID)
		}
		return &c, nil
	}

	c.CitesID = citesID
	c.UpdateDate = metaDate(updateDate)
	_, err = tx.Exec(ctx, citationUpdateSQL,
		c.ID, fields.CitationLink, fields.Title, fields.Link, fields.Summary,
		fields.DocumentLink, fields.Year, fields.Citations, c.UpdateDate)
	if err != nil {
		return nil, eris.Wrapf(err, "store: update citation %q", citesID)
	}
	return &c, nil
}
