package parser

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gwngames/persister/internal/db"
	"github.com/gwngames/persister/internal/model"
	"github.com/gwngames/persister/internal/store"
)

type associationPayload struct {
	Publications []associationPublication `json:"publications"`
}

type associationPublication struct {
	Title             string   `json:"title"`
	Type              string   `json:"type"`
	Authors           []string `json:"authors"`
	JournalName       *string  `json:"journal_name"`
	PublicationYear   *flexInt `json:"publication_year"`
	ConferenceAcronym *string  `json:"conference_acronym"`
}

// PublicationAssociationProcessor reconciles DBLP association data against
// entities other scrapers already persisted. It never creates publications
// or authors: unmatched records are logged and skipped so that a partial
// DBLP view cannot seed duplicate entities.
type PublicationAssociationProcessor struct {
	pool  db.Pool
	store *store.Store
	log   *zap.Logger
}

func NewPublicationAssociationProcessor(pool db.Pool, st *store.Store) *PublicationAssociationProcessor {
	return &PublicationAssociationProcessor{
		pool:  pool,
		store: st,
		log:   zap.L().With(zap.String("component", "publication_association_processor")),
	}
}

func (p *PublicationAssociationProcessor) Kind() model.Kind {
	return model.Kind{ClassID: model.ClassPublication, VariantID: model.VariantDBLPAssociation}
}

func (p *PublicationAssociationProcessor) Parse(ctx context.Context, env *model.Envelope) error {
	var payload associationPayload
	if err := json.Unmarshal(env.Raw, &payload); err != nil {
		return eris.Wrap(err, "parser: decode association payload")
	}

	return inTx(ctx, p.pool, func(tx pgx.Tx) error {
		for _, pub := range payload.Publications {
			if err := p.processPublication(ctx, tx, pub, env); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *PublicationAssociationProcessor) processPublication(ctx context.Context, tx pgx.Tx, pub associationPublication, env *model.Envelope) error {
	publication, err := p.store.FindPublication(ctx, tx, pub.Title)
	if err != nil {
		return err
	}
	if publication == nil {
		p.log.Warn("no matching publication", zap.String("title", pub.Title))
		return nil
	}

	authorIDs := make([]int64, 0, len(pub.Authors))
	for _, name := range pub.Authors {
		if strings.TrimSpace(name) == "" {
			continue
		}
		author, err := p.store.FindAuthor(ctx, tx, name)
		if err != nil {
			return err
		}
		if author == nil {
			p.log.Warn("no matching author",
				zap.String("name", name),
				zap.String("title", pub.Title))
			continue
		}
		authorIDs = append(authorIDs, author.ID)
		if err := p.store.LinkPublicationAuthor(ctx, tx, publication.ID, author.ID); err != nil {
			return err
		}
	}
	if err := p.store.LinkCoauthors(ctx, tx, authorIDs); err != nil {
		return err
	}

	switch pub.Type {
	case "Journal":
		if pub.JournalName == nil {
			return nil
		}
		year := 0
		if y := intPtr(pub.PublicationYear); y != nil {
			year = *y
		}
		journal, err := p.store.UpsertJournal(ctx, tx, *pub.JournalName,
			p.store.JournalAttachThreshold(), store.JournalFields{Year: year}, env.UpdateDate)
		if err != nil {
			return err
		}
		return p.store.AttachJournal(ctx, tx, publication.ID, journal.ID, env.UpdateDate)
	case "Conference":
		if pub.ConferenceAcronym == nil {
			return nil
		}
		conference, err := p.store.ResolveConferenceAcronym(ctx, tx, *pub.ConferenceAcronym, env.UpdateDate)
		if err != nil {
			return err
		}
		return p.store.AttachConference(ctx, tx, publication.ID, conference.ID, env.UpdateDate)
	}
	return nil
}
