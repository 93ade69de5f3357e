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

type journalPayload struct {
	Journals []journalRecord `json:"journals"`
}

type journalRecord struct {
	Title             string      `json:"title"`
	Type              *string     `json:"type"`
	Year              *flexInt    `json:"year"`
	Link              *string     `json:"link"`
	SJR               *flexString `json:"sjr"`
	QRank             *string     `json:"q_rank"`
	HIndex            *flexInt    `json:"h_index"`
	TotalDocs         *flexInt    `json:"total_docs"`
	TotalDocs3Years   *flexInt    `json:"total_docs_3years"`
	TotalRefs         *flexInt    `json:"total_refs"`
	TotalCites3Years  *flexInt    `json:"total_cites_3years"`
	CitableDocs3Years *flexInt    `json:"citable_docs_3years"`
	CitesPerDoc2Years *flexString `json:"cites_per_doc_2years"`
	RefsPerDoc        *flexString `json:"refs_per_doc"`
	FemalePercent     *flexString `json:"female_percent"`
}

// JournalParser persists SJR journal rankings. The year is taken verbatim
// from the payload; a missing year persists as 0.
type JournalParser struct {
	pool  db.Pool
	store *store.Store
	log   *zap.Logger
}

func NewJournalParser(pool db.Pool, st *store.Store) *JournalParser {
	return &JournalParser{
		pool:  pool,
		store: st,
		log:   zap.L().With(zap.String("component", "journal_parser")),
	}
}

func (p *JournalParser) Kind() model.Kind {
	return model.Kind{ClassID: model.ClassJournal, VariantID: model.VariantBase}
}

func (p *JournalParser) Parse(ctx context.Context, env *model.Envelope) error {
	var payload journalPayload
	if err := json.Unmarshal(env.Raw, &payload); err != nil {
		return eris.Wrap(err, "parser: decode journal payload")
	}

	return inTx(ctx, p.pool, func(tx pgx.Tx) error {
		for _, rec := range payload.Journals {
			if rec.Title == "" {
				p.log.Warn("journal record without title")
				continue
			}

			year := 0
			if y := intPtr(rec.Year); y != nil {
				year = *y
			}

			_, err := p.store.UpsertJournal(ctx, tx, rec.Title, p.store.JournalTitleThreshold(),
				store.JournalFields{
					Type:              rec.Type,
					Year:              year,
					Link:              rec.Link,
					SJR:               strPtr(rec.SJR),
					QRank:             rec.QRank,
					HIndex:            intPtr(rec.HIndex),
					TotalDocs:         intPtr(rec.TotalDocs),
					TotalDocs3Years:   intPtr(rec.TotalDocs3Years),
					TotalRefs:         intPtr(rec.TotalRefs),
					TotalCites3Years:  intPtr(rec.TotalCites3Years),
					CitableDocs3Years: intPtr(rec.CitableDocs3Years),
					CitesPerDoc2Years: strPtr(rec.CitesPerDoc2Years),
					RefsPerDoc:        strPtr(rec.RefsPerDoc),
					FemalePercent:     strPtr(rec.FemalePercent),
				}, env.UpdateDate)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
