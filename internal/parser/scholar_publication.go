package parser

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gwngames/persister/internal/db"
	"github.com/gwngames/persister/internal/match"
	"github.com/gwngames/persister/internal/model"
	"github.com/gwngames/persister/internal/store"
)

type scholarPublicationPayload struct {
	Title              string   `json:"title"`
	PublicationID      string   `json:"publication_id"`
	PublicationURL     *string  `json:"publication_url"`
	PublicationDate    *flexInt `json:"publication_date"`
	Pages              *string  `json:"pages"`
	Publisher          *string  `json:"publisher"`
	Description        *string  `json:"description"`
	TitleLink          *string  `json:"title_link"`
	PDFLink            *string  `json:"pdf_link"`
	TotalCitations     *flexInt `json:"total_citations"`
	CitesID            *string  `json:"cites_id"`
	RelatedArticlesURL *string  `json:"related_articles_url"`
	AllVersionsURL     *string  `json:"all_versions_url"`
	Authors            []string `json:"authors"`

	// The embedded citation graph is owned by the citation parser and
	// deliberately ignored here.
	CitationGraph json.RawMessage `json:"citation_graph"`
}

// ScholarPublicationParser persists a Google Scholar publication: the base
// publication, its scholar variant and its author links.
type ScholarPublicationParser struct {
	pool  db.Pool
	store *store.Store
	log   *zap.Logger
}

func NewScholarPublicationParser(pool db.Pool, st *store.Store) *ScholarPublicationParser {
	return &ScholarPublicationParser{
		pool:  pool,
		store: st,
		log:   zap.L().With(zap.String("component", "scholar_publication_parser")),
	}
}

func (p *ScholarPublicationParser) Kind() model.Kind {
	return model.Kind{ClassID: model.ClassPublication, VariantID: model.VariantScholarPublication}
}

func (p *ScholarPublicationParser) Parse(ctx context.Context, env *model.Envelope) error {
	var payload scholarPublicationPayload
	if err := json.Unmarshal(env.Raw, &payload); err != nil {
		return eris.Wrap(err, "parser: decode scholar publication payload")
	}
	if payload.Title == "" || payload.PublicationID == "" {
		return eris.New("parser: scholar publication payload missing title or publication_id")
	}

	return inTx(ctx, p.pool, func(tx pgx.Tx) error {
		pub, err := p.store.UpsertPublication(ctx, tx, payload.Title, store.PublicationFields{
			URL:             payload.PublicationURL,
			PublicationYear: intPtr(payload.PublicationDate),
			Pages:           payload.Pages,
			Publisher:       payload.Publisher,
			Description:     payload.Description,
		}, env.UpdateDate)
		if err != nil {
			return err
		}

		_, err = p.store.UpsertScholarPublication(ctx, tx, payload.PublicationID, payload.CitesID, pub,
			store.ScholarPublicationFields{
				TitleLink:          payload.TitleLink,
				PDFLink:            payload.PDFLink,
				TotalCitations:     intPtr(payload.TotalCitations),
				RelatedArticlesURL: payload.RelatedArticlesURL,
				AllVersionsURL:     payload.AllVersionsURL,
			}, env.UpdateDate)
		if err != nil {
			return err
		}

		for _, name := range payload.Authors {
			if strings.TrimSpace(name) == "" {
				continue
			}
			// Initials-only entries cannot be matched against the author
			// table and would seed junk rows.
			if match.IsFirstWordShort(name) {
				p.log.Debug("skipping initials-only author", zap.String("name", name))
				continue
			}
			author, err := p.store.UpsertAuthor(ctx, tx, name, store.AuthorFields{}, env.UpdateDate)
			if err != nil {
				return err
			}
			if err := p.store.LinkPublicationAuthor(ctx, tx, pub.ID, author.ID); err != nil {
				return err
			}
		}

		p.log.Debug("persisted scholar publication",
			zap.String("publication_id", payload.PublicationID),
			zap.Int64("publication_fk", pub.ID))
		return nil
	})
}
