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

// AuthorFields carries the optional author attributes of a payload. Nil
// fields leave existing column values intact.
type AuthorFields struct {
	Role         *string
	Organization *string
	ImageURL     *string
	HomepageURL  *string
}

// The candidate probe narrows with two cheap LIKE bounds (leading initials,
// trailing surname) before the trigram word-similarity predicate, and locks
// the best-scoring row.
const authorSelectSQL = `
SELECT id, name, role, organization, image_url, homepage_url, update_count
FROM author
WHERE name LIKE $1 || '%'
  AND name LIKE '%' || $2
  AND word_similarity(name, $3) >= $4
ORDER BY word_similarity(name, $3) DESC
LIMIT 1
FOR UPDATE`

const authorInsertSQL = `
INSERT INTO author (name, role, organization, image_url, homepage_url, class_id, variant_id, update_date, update_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
RETURNING id`

const authorUpdateSQL = `
UPDATE author SET
	name = $2,
	role = COALESCE($3, role),
	organization = COALESCE($4, organization),
	image_url = COALESCE($5, image_url),
	homepage_url = COALESCE($6, homepage_url),
	update_date = $7,
	update_count = COALESCE(update_count, 0) + 1
WHERE id = $1
RETURNING role, organization, image_url, homepage_url, update_count`

// UpsertAuthor resolves an author by fuzzy name match and creates or
// updates the row.
func (s *Store) UpsertAuthor(ctx context.Context, tx pgx.Tx, name string, fields AuthorFields, updateDate time.Time) (*model.Author, error) {
	key := normKey(name)
	if key == "" {
		return nil, eris.New("store: author name is empty")
	}

	author, err := s.lockAuthor(ctx, tx, key)
	if err != nil {
		return nil, err
	}

	if author == nil {
		m := meta(model.ClassAuthor, model.VariantBase, updateDate)
		author = &model.Author{
			Name:         key,
			Role:         fields.Role,
			Organization: fields.Organization,
			ImageURL:     fields.ImageURL,
			HomepageURL:  fields.HomepageURL,
			Meta:         m,
		}
		err = tx.QueryRow(ctx, authorInsertSQL,
			key, fields.Role, fields.Organization, fields.ImageURL, fields.HomepageURL,
			m.ClassID, m.VariantID, m.UpdateDate,
		).Scan(&author.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "store: insert author %q", key)
		}
		return author, nil
	}

	author.Name = key
	author.UpdateDate = metaDate(updateDate)
	err = tx.QueryRow(ctx, authorUpdateSQL,
		author.ID, key, fields.Role, fields.Organization, fields.ImageURL, fields.HomepageURL,
		author.UpdateDate,
	).Scan(&author.Role, &author.Organization, &author.ImageURL, &author.HomepageURL, &author.UpdateCount)
	if err != nil {
		return nil, eris.Wrapf(err, "store: update author %q", key)
	}
	return author, nil
}

// FindAuthor resolves an author by fuzzy name match without creating one.
// Returns nil when no candidate passes the threshold.
func (s *Store) FindAuthor(ctx context.Context, tx pgx.Tx, name string) (*model.Author, error) {
	key := normKey(name)
	if key == "" {
		return nil, nil
	}
	return s.lockAuthor(ctx, tx, key)
}

func (s *Store) lockAuthor(ctx context.Context, tx pgx.Tx, key string) (*model.Author, error) {
	initials, surname := match.AuthorPrefilter(key)

	var a model.Author
	err := tx.QueryRow(ctx, authorSelectSQL, initials, surname, key, s.thresholds.AuthorName).
		Scan(&a.ID, &a.Name, &a.Role, &a.Organization, &a.ImageURL, &a.HomepageURL, &a.UpdateCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: lock author %q", key)
	}
	return &a, nil
}

// ScholarAuthorFields carries the optional Google Scholar profile
// attributes.
type ScholarAuthorFields struct {
	ProfileURL *string
	Verified   *bool
	HIndex     *int
	I10Index   *int
}

const scholarAuthorSelectSQL = `
SELECT id, author_fk, profile_url, verified, h_index, i10_index, update_count
FROM scholar_author
WHERE author_id = $1
FOR UPDATE`

const scholarAuthorInsertSQL = `
INSERT INTO scholar_author (author_fk, author_id, profile_url, verified, h_index, i10_index, class_id, variant_id, update_date, update_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
RETURNING id`

const scholarAuthorUpdateSQL = `
UPDATE scholar_author SET
	profile_url = COALESCE($2, profile_url),
	verified = COALESCE($3, verified),
	h_index = COALESCE($4, h_index),
	i10_index = COALESCE($5, i10_index),
	update_date = $6,
	update_count = COALESCE(update_count, 0) + 1
WHERE id = $1`

// UpsertScholarAuthor resolves the variant row by exact provider author id
// and keeps it linked to its base author.
func (s *Store) UpsertScholarAuthor(ctx context.Context, tx pgx.Tx, authorID string, baseAuthor *model.Author, fields ScholarAuthorFields, updateDate time.Time) (*model.ScholarAuthor, error) {
	if authorID == "" {
		return nil, eris.New("store: scholar author id is empty")
	}

	var sa model.ScholarAuthor
	err := tx.QueryRow(ctx, scholarAuthorSelectSQL, authorID).
		Scan(&sa.ID, &sa.AuthorFK, &sa.ProfileURL, &sa.Verified, &sa.HIndex, &sa.I10Index, &sa.UpdateCount)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "store: lock scholar author %q", authorID)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		m := meta(model.ClassAuthor, model.VariantScholarAuthor, updateDate)
		sa = model.ScholarAuthor{
			AuthorFK:   baseAuthor.ID,
			AuthorID:   authorID,
			ProfileURL: fields.ProfileURL,
			Verified:   fields.Verified,
			HIndex:     fields.HIndex,
			I10Index:   fields.I10Index,
			Meta:       m,
		}
		err = tx.QueryRow(ctx, scholarAuthorInsertSQL,
			baseAuthor.ID, authorID, fields.ProfileURL, fields.Verified, fields.HIndex, fields.I10Index,
			m.ClassID, m.VariantID, m.UpdateDate,
		).Scan(&sa.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "store: insert scholar author %q", authorID)
		}
		return &sa, nil
	}

	sa.AuthorID = authorID
	sa.UpdateDate = metaDate(updateDate)
	_, err = tx.Exec(ctx, scholarAuthorUpdateSQL,
		sa.ID, fields.ProfileURL, fields.Verified, fields.HIndex, fields.I10Index, sa.UpdateDate)
	if err != nil {
		return nil, eris.Wrapf(err, "store: update scholar author %q", authorID)
	}
	return &sa, nil
}
