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

// PublicationFields carries the optional publication attributes of a
// payload.
type PublicationFields struct {
	URL             *string
	PublicationYear *int
	Pages           *string
	Publisher       *string
	Description     *string
}

// Title probes prefilter on the word covering the one-fifth position; the
// jaro-winkler predicate then picks the best candidate.
const publicationSelectSQL = `
SELECT id, title, url, publication_year, pages, publisher, description, journal_id, conference_id, update_count
FROM publication
WHERE title LIKE '%' || $1 || '%'
  AND jaro_winkler_similarity(title, $2) >= $3
ORDER BY jaro_winkler_similarity(title, $2) DESC
LIMIT 1
FOR UPDATE`

const publicationInsertSQL = `
INSERT INTO publication (title, url, publication_year, pages, publisher, description, class_id, variant_id, update_date, update_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
RETURNING id`

const publicationUpdateSQL = `
UPDATE publication SET
	title = $2,
	url = COALESCE($3, url),
	publication_year = COALESCE($4, publication_year),
	pages = COALESCE($5, pages),
	publisher = COALESCE($6, publisher),
	description = COALESCE($7, description),
	update_date = $8,
	update_count = COALESCE(update_count, 0) + 1
WHERE id = $1
RETURNING url, publication_year, pages, publisher, description, update_count`

// UpsertPublication resolves a publication by fuzzy title match and
// creates or updates the row.
func (s *Store) UpsertPublication(ctx context.Context, tx pgx.Tx, title string, fields PublicationFields, updateDate time.Time) (*model.Publication, error) {
	key := normKey(title)
	if key == "" {
		return nil, eris.New("store: publication title is empty")
	}

	pub, err := s.lockPublication(ctx, tx, key)
	if err != nil {
		return nil, err
	}

	if pub == nil {
		m := meta(model.ClassPublication, model.VariantBase, updateDate)
		pub = &model.Publication{
			Title:           key,
			URL:             fields.URL,
			PublicationYear: fields.PublicationYear,
			Pages:           fields.Pages,
			Publisher:       fields.Publisher,
			Description:     fields.Description,
			Meta:            m,
		}
		err = tx.QueryRow(ctx, publicationInsertSQL,
			key, fields.URL, fields.PublicationYear, fields.Pages, fields.Publisher, fields.Description,
			m.ClassID, m.VariantID, m.UpdateDate,
		).Scan(&pub.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "store: insert publication %q", key)
		}
		return pub, nil
	}

	pub.Title = key
	pub.UpdateDate = metaDate(updateDate)
	err = tx.QueryRow(ctx, publicationUpdateSQL,
		pub.ID, key, fields.URL, fields.PublicationYear, fields.Pages, fields.Publisher, fields.Description,
		pub.UpdateDate,
	).Scan(&pub.URL, &pub.PublicationYear, &pub.Pages, &pub.Publisher, &pub.Description, &pub.UpdateCount)
	if err != nil {
		return nil, eris.Wrapf(err, "store: update publication %q", key)
	}
	return pub, nil
}

// FindPublication resolves a publication by fuzzy title match without
// creating one. Returns nil when no candidate passes the threshold.
func (s *Store) FindPublication(ctx context.Context, tx pgx.Tx, title string) (*model.Publication, error) {
	key := normKey(title)
	if key == "" {
		return nil, nil
	}
	return s.lockPublication(ctx, tx, key)
}

func (s *Store) lockPublication(ctx context.Context, tx pgx.Tx, key string) (*model.Publication, error) {
	var p model.Publication
	err := tx.QueryRow(ctx, publicationSelectSQL, match.FirstAfterFifth(key), key, s.thresholds.PublicationTitle).
		Scan(&p.ID, &p.Title, &p.URL, &p.PublicationYear, &p.Pages, &p.Publisher, &p.Description,
			&p.JournalID, &p.ConferenceID, &p.UpdateCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: lock publication %q", key)
	}
	return &p, nil
}

const attachJournalSQL = `UPDATE publication SET journal_id = $2, update_date = $3 WHERE id = $1`

const attachConferenceSQL = `UPDATE publication SET conference_id = $2, update_date = $3 WHERE id = $1`

// AttachJournal points the publication at a journal.
func (s *Store) AttachJournal(ctx context.Context, tx pgx.Tx, publicationID, journalID int64, updateDate time.Time) error {
	_, err := tx.Exec(ctx, attachJournalSQL, publicationID, journalID, metaDate(updateDate))
	return eris.Wrapf(err, "store: attach journal %d to publication %d", journalID, publicationID)
}

// AttachConference points the publication at a conference.
func (s *Store) AttachConference(ctx context.Context, tx pgx.Tx, publicationID, conferenceID int64, updateDate time.Time) error {
	_, err := tx.Exec(ctx, attachConferenceSQL, publicationID, conferenceID, metaDate(updateDate))
	return eris.Wrapf(err, "store: attach conference %d to publication %d", conferenceID, publicationID)
}

// ScholarPublicationFields carries the optional Google Scholar publication
// attributes.
type ScholarPublicationFields struct {
	TitleLink          *string
	PDFLink            *string
	TotalCitations     *int
	RelatedArticlesURL *string
	AllVersionsURL     *string
}

// cites_id is nullable, so the identity comparison must treat two NULLs as
// equal.
const scholarPublicationSelectSQL = `
SELECT id, publication_fk, title_link, pdf_link, total_citations, related_articles_url, all_versions_url, update_count
FROM scholar_publication
WHERE publication_id = $1 AND cites_id IS NOT DISTINCT FROM $2
FOR UPDATE`

const scholarPublicationInsertSQL = `
INSERT INTO scholar_publication (publication_fk, publication_id, cites_id, title_link, pdf_link, total_citations, related_articles_url, all_versions_url, class_id, variant_id, update_date, update_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
RETURNING id`

const scholarPublicationUpdateSQL = `
UPDATE scholar_publication SET
	title_link = COALESCE($2, title_link),
	pdf_link = COALESCE($3, pdf_link),
	total_citations = COALESCE($4, total_citations),
	related_articles_url = COALESCE($5, related_articles_url),
	all_versions_url = COALESCE($6, all_versions_url),
	update_date = $7,
	update_count = COALESCE(update_count, 0) + 1
WHERE id = $1`

// UpsertScholarPublication resolves the variant row by exact
// (publication_id, cites_id) and keeps it linked to its base publication.
func (s *Store) UpsertScholarPublication(ctx context.Context, tx pgx.Tx, publicationID string, citesID *string, basePub *model.Publication, fields ScholarPublicationFields, updateDate time.Time) (*model.ScholarPublication, error) {
	if publicationID == "" {
		return nil, eris.New("store: scholar publication id is empty")
	}

	var sp model.ScholarPublication
	err := tx.QueryRow(ctx, scholarPublicationSelectSQL, publicationID, citesID).
		Scan(&sp.ID, &sp.PublicationFK, &sp.TitleLink, &sp.PDFLink, &sp.TotalCitations,
			&sp.RelatedArticlesURL, &sp.AllVersionsURL, &sp.UpdateCount)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "store: lock scholar publication %q", publicationID)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		m := meta(model.ClassPublication, model.VariantScholarPublication, updateDate)
		sp = model.ScholarPublication{
			PublicationFK:      basePub.ID,
			PublicationID:      publicationID,
			CitesID:            citesID,
			TitleLink:          fields.TitleLink,
			PDFLink:            fields.PDFLink,
			TotalCitations:     fields.TotalCitations,
			RelatedArticlesURL: fields.RelatedArticlesURL,
			AllVersionsURL:     fields.AllVersionsURL,
			Meta:               m,
		}
		err = tx.QueryRow(ctx, scholarPublicationInsertSQL,
			basePub.ID, publicationID, citesID, fields.TitleLink, fields.PDFLink,
			fields.TotalCitations, fields.RelatedArticlesURL, fields.AllVersionsURL,
			m.ClassID, m.VariantID, m.UpdateDate,
		).Scan(&sp.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "store: insert scholar publication %q", publicationID)
		}
		return &sp, nil
	}

	sp.PublicationID = publicationID
	sp.CitesID = citesID
	sp.UpdateDate = metaDate(updateDate)
	_, err = tx.Exec(ctx, scholarPublicationUpdateSQL,
		sp.ID, fields.TitleLink, fields.PDFLink, fields.TotalCitations,
		fields.RelatedArticlesURL, fields.AllVersionsURL, sp.UpdateDate)
	if err != nil {
		return nil, eris.Wrapf(err, "store: update scholar publication %q", publicationID)
	}
	return &sp, nil
}

const scholarPublicationByCitesSQL = `
SELECT sp.id, sp.publication_fk, sp.total_citations, p.publication_year
FROM scholar_publication sp
JOIN publication p ON p.id = sp.publication_fk
WHERE sp.cites_id = $1
FOR UPDATE OF sp`

// CitedPublication is the slice of a scholar publication the citation
// parser needs: its row id, citation total and the base publication year.
type CitedPublication struct {
	ID              int64
	PublicationFK   int64
	TotalCitations  *int
	PublicationYear *int
}

// FindScholarPublicationByCitesID locks the scholar publication a citation
// batch refers to. Returns nil when the cites id is unknown.
func (s *Store) FindScholarPublicationByCitesID(ctx context.Context, tx pgx.Tx, citesID string) (*CitedPublication, error) {
	var cp CitedPublication
	err := tx.QueryRow(ctx, scholarPublicationByCitesSQL, citesID).
		Scan(&cp.ID, &cp.PublicationFK, &cp.TotalCitations, &cp.PublicationYear)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: find scholar publication by cites_id %q", citesID)
	}
	return &cp, nil
}
