package parser

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gwngames/persister/internal/db"
	"github.com/gwngames/persister/internal/model"
	"github.com/gwngames/persister/internal/store"
)

type citationPayload struct {
	CitesID   string           `json:"cites_id"`
	Citations []citationRecord `json:"citations"`
}

type citationRecord struct {
	CitesID      string      `json:"cites_id"`
	Link         *string     `json:"link"`
	Title        *string     `json:"title"`
	Summary      *string     `json:"summary"`
	DocumentLink *string     `json:"document_link"`
	Year         *flexString `json:"year"`
	Citations    *flexInt    `json:"citations"`
}

// ScholarCitationParser persists the citing documents of a scholar
// publication. The envelope's cites_id must resolve to an already-persisted
// publication; an unknown id is an error so the batch is retried once the
// publication arrives.
type ScholarCitationParser struct {
	pool  db.Pool
	store *store.Store
	log   *zap.Logger
}

func NewScholarCitationParser(pool db.Pool, st *store.Store) *ScholarCitationParser {
	return &ScholarCitationParser{
		pool:  pool,
		store: st,
		log:   zap.L().With(zap.String("component", "scholar_citation_parser")),
	}
}

func (p *ScholarCitationParser) Kind() model.Kind {
	return model.Kind{ClassID: model.ClassCitation, VariantID: model.VariantScholarCitation}
}

func (p *ScholarCitationParser) Parse(ctx context.Context, env *model.Envelope) error {
	var payload citationPayload
	if err := json.Unmarshal(env.Raw, &payload); err != nil {
		return eris.Wrap(err, "parser: decode citation payload")
	}
	if payload.CitesID == "" {
		return eris.New("parser: citation payload missing cites_id")
	}
	if len(payload.Citations) == 0 {
		return eris.New("parser: citation payload carries no citations")
	}

	return inTx(ctx, p.pool, func(tx pgx.Tx) error {
		cited, err := p.store.FindScholarPublicationByCitesID(ctx, tx, payload.CitesID)
		if err != nil {
			return err
		}
		if cited == nil {
			return eris.Errorf("parser: no publication with cites_id %q", payload.CitesID)
		}

		for _, rec := range payload.Citations {
			if rec.CitesID == "" || rec.Link == nil {
				return eris.New("parser: citation entry missing cites_id or link")
			}

			_, err := p.store.UpsertScholarCitation(ctx, tx, rec.CitesID, cited.ID, store.CitationFields{
				CitationLink: rec.Link,
				Title:        rec.Title,
				Link:         rec.Link,
				Summary:      rec.Summary,
				DocumentLink: rec.DocumentLink,
				Year:         citationYear(rec, cited),
				Citations:    citationCount(rec, cited),
			}, env.UpdateDate)
			if err != nil {
				return err
			}
		}

		p.log.Debug("persisted citation batch",
			zap.String("cites_id", payload.CitesID),
			zap.Int("citations", len(payload.Citations)))
		return nil
	})
}

// citationYear falls back to the cited publication's own year, then
// "Unknown".
func citationYear(rec citationRecord, cited *store.CitedPublication) *string {
	if y := strPtr(rec.Year); y != nil && *y != "" {
		return y
	}
	if cited.PublicationYear != nil {
		y := strconv.Itoa(*cited.PublicationYear)
		return &y
	}
	y := "Unknown"
	return &y
}

// citationCount falls back to the cited publication's citation total.
func citationCount(rec citationRecord, cited *store.CitedPublication) *int {
	if c := intPtr(rec.Citations); c != nil {
		return c
	}
	return cited.TotalCitations
}
