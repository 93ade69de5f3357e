package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gwngames/persister/internal/model"
)

// ConferenceFields carries the optional conference attributes of a
// payload.
type ConferenceFields struct {
	Title         *string
	Publisher     *string
	Rank          *string
	Note          *string
	DBLPLink      *string
	PrimaryFor    *string
	Comments      *string
	AverageRating *string
	Year          *int
}

// acronymSeparators is the fallback split order for compound acronyms
// such as "ICSE@ESEC" or "ESEC/FSE".
var acronymSeparators = []string{"@", "/", "-"}

const conferenceSelectSQL = `
SELECT id, title, acronym, publisher, rank, note, dblp_link, primary_for, comments, average_rating, year, update_count
FROM conference
WHERE jaro_winkler_similarity(acronym, $1) >= $2
ORDER BY jaro_winkler_similarity(acronym, $1) DESC
LIMIT 1
FOR UPDATE`

const conferenceInsertSQL = `
INSERT INTO conference (title, acronym, publisher, rank, note, dblp_link, primary_for, comments, average_rating, year, class_id, variant_id, update_date, update_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1)
RETURNING id`

const conferenceUpdateSQL = `
UPDATE conference SET
	title = COALESCE($2, title),
	publisher = COALESCE($3, publisher),
	rank = COALESCE($4, rank),
	note = COALESCE($5, note),
	dblp_link = COALESCE($6, dblp_link),
	primary_for = COALESCE($7, primary_for),
	comments = COALESCE($8, comments),
	average_rating = COALESCE($9, average_rating),
	year = COALESCE($10, year),
	update_date = $11,
	update_count = COALESCE(update_count, 0) + 1
WHERE id = $1`

// UpsertConference resolves a conference by acronym similarity at the
// strict upsert threshold and creates or updates the row.
func (s *Store) UpsertConference(ctx context.Context, tx pgx.Tx, acronym string, fields ConferenceFields, updateDate time.Time) (*model.Conference, error) {
	acr := normAcronym(acronym)
	if acr == "" {
		return nil, eris.New("store: conference acronym is empty")
	}

	conf, err := s.lockConference(ctx, tx, acr, s.thresholds.AcronymUpsert)
	if err != nil {
		return nil, err
	}

	if conf == nil {
		return s.insertConference(ctx, tx, acr, fields, updateDate)
	}

	conf.UpdateDate = metaDate(updateDate)
	_, err = tx.Exec(ctx, conferenceUpdateSQL,
		conf.ID, fields.Title, fields.Publisher, fields.Rank, fields.Note, fields.DBLPLink,
		fields.PrimaryFor, fields.Comments, fields.AverageRating, fields.Year, conf.UpdateDate)
	if err != nil {
		return nil, eris.Wrapf(err, "store: update conference %q", acr)
	}
	return conf, nil
}

// ResolveConferenceAcronym locates a conference for a DBLP association at
// the lookup threshold. When the raw acronym has no candidate, the acronym
// is split successively on "@", "/" and "-" and each part is probed; the
// first match wins. When nothing matches, a new Unranked conference is
// inserted under the last part of the last split performed (or the
// original acronym when no separator occurs).
func (s *Store) ResolveConferenceAcronym(ctx context.Context, tx pgx.Tx, acronym string, updateDate time.Time) (*model.Conference, error) {
	acr := normAcronym(acronym)
	if acr == "" {
		return nil, eris.New("store: conference acronym is empty")
	}

	conf, err := s.lockConference(ctx, tx, acr, s.thresholds.AcronymLookup)
	if err != nil {
		return nil, err
	}
	if conf != nil {
		return conf, nil
	}

	insertAs := acr
	for _, sep := range acronymSeparators {
		if !strings.Contains(acr, sep) {
			continue
		}
		parts := strings.Split(acr, sep)
		zap.L().Debug("probing compound acronym",
			zap.String("acronym", acr),
			zap.String("separator", sep))
		for _, part := range parts {
			if part == "" {
				continue
			}
			conf, err = s.lockConference(ctx, tx, part, s.thresholds.AcronymLookup)
			if err != nil {
				return nil, err
			}
			if conf != nil {
				return conf, nil
			}
		}
		insertAs = parts[len(parts)-1]
	}

	rank := "Unranked"
	return s.insertConference(ctx, tx, insertAs, ConferenceFields{Rank: &rank}, updateDate)
}

func (s *Store) lockConference(ctx context.Context, tx pgx.Tx, acronym string, threshold float64) (*model.Conference, error) {
	var c model.Conference
	err := tx.QueryRow(ctx, conferenceSelectSQL, acronym, threshold).
		Scan(&c.ID, &c.Title, &c.Acronym, &c.Publisher, &c.Rank, &c.Note, &c.DBLPLink,
			&c.PrimaryFor, &c.Comments, &c.AverageRating, &c.Year, &c.UpdateCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: lock conference %q", acronym)
	}
	return &c, nil
}

func (s *Store) insertConference(ctx context.Context, tx pgx.Tx, acronym string, fields ConferenceFields, updateDate time.Time) (*model.Conference, error) {
	m := meta(model.ClassConference, model.VariantBase, updateDate)
	c := model.Conference{
		Title:         fields.Title,
		Acronym:       acronym,
		Publisher:     fields.Publisher,
		Rank:          fields.Rank,
		Note:          fields.Note,
		DBLPLink:      fields.DBLPLink,
		PrimaryFor:    fields.PrimaryFor,
		Comments:      fields.Comments,
		AverageRating: fields.AverageRating,
		Year:          fields.Year,
		Meta:          m,
	}
	err := tx.QueryRow(ctx, conferenceInsertSQL,
		fields.Title, acronym, fields.Publisher, fields.Rank, fields.Note, fields.DBLPLink,
		fields.PrimaryFor, fields.Comments, fields.AverageRating, fields.Year,
		m.ClassID, m.VariantID, m.UpdateDate,
	).Scan(&c.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: insert conference %q", acronym)
	}
	return &c, nil
}
