package parser

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gwngames/persister/internal/db"
	"github.com/gwngames/persister/internal/model"
	"github.com/gwngames/persister/internal/store"
)

type conferencePayload struct {
	Conferences []conferenceRecord `json:"conferences"`
}

type conferenceRecord struct {
	Title         *string `json:"title"`
	Acronym       string  `json:"acronym"`
	Source        *string `json:"source"`
	Rank          *string `json:"rank"`
	Note          *string `json:"note"`
	DBLPLink      *string `json:"dblp_link"`
	PrimaryFor    *string `json:"primary_for"`
	Comments      *string `json:"comments"`
	AverageRating *string `json:"average_rating"`
}

// ConferenceProcessor persists CORE conference rankings. The source field
// names the ranking edition and feeds both publisher and the edition year.
type ConferenceProcessor struct {
	pool  db.Pool
	store *store.Store
	log   *zap.Logger
}

func NewConferenceProcessor(pool db.Pool, st *store.Store) *ConferenceProcessor {
	return &ConferenceProcessor{
		pool:  pool,
		store: st,
		log:   zap.L().With(zap.String("component", "conference_processor")),
	}
}

func (p *ConferenceProcessor) Kind() model.Kind {
	return model.Kind{ClassID: model.ClassConference, VariantID: model.VariantBase}
}

func (p *ConferenceProcessor) Parse(ctx context.Context, env *model.Envelope) error {
	var payload conferencePayload
	if err := json.Unmarshal(env.Raw, &payload); err != nil {
		return eris.Wrap(err, "parser: decode conference payload")
	}

	return inTx(ctx, p.pool, func(tx pgx.Tx) error {
		for _, rec := range payload.Conferences {
			if rec.Acronym == "" {
				p.log.Warn("conference record without acronym", zap.Stringp("title", rec.Title))
				continue
			}

			var source string
			if rec.Source != nil {
				source = *rec.Source
			}
			year := extractYear(source)

			_, err := p.store.UpsertConference(ctx, tx, rec.Acronym, store.ConferenceFields{
				Title:         rec.Title,
				Publisher:     rec.Source,
				Rank:          rec.Rank,
				Note:          rec.Note,
				DBLPLink:      rec.DBLPLink,
				PrimaryFor:    rec.PrimaryFor,
				Comments:      rec.Comments,
				AverageRating: rec.AverageRating,
				Year:          &year,
			}, env.UpdateDate)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
