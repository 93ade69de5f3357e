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

type scholarAuthorPayload struct {
	Name         string    `json:"name"`
	AuthorID     string    `json:"author_id"`
	Role         *string   `json:"role"`
	Organization *string   `json:"org"`
	ImageURL     *string   `json:"image_url"`
	HomepageURL  *string   `json:"homepage_url"`
	ProfileURL   *string   `json:"profile_url"`
	Verified     *bool     `json:"verified"`
	HIndex       *flexInt  `json:"h_index"`
	I10Index     *flexInt  `json:"i10_index"`
	Interests    []string  `json:"interests"`
	Coauthors    []string  `json:"coauthors"`
}

// ScholarAuthorParser persists a Google Scholar author profile: the base
// author, its scholar variant, its interests and its co-author edges.
type ScholarAuthorParser struct {
	pool  db.Pool
	store *store.Store
	log   *zap.Logger
}

func NewScholarAuthorParser(pool db.Pool, st *store.Store) *ScholarAuthorParser {
	return &ScholarAuthorParser{
		pool:  pool,
		store: st,
		log:   zap.L().With(zap.String("component", "scholar_author_parser")),
	}
}

func (p *ScholarAuthorParser) Kind() model.Kind {
	return model.Kind{ClassID: model.ClassAuthor, VariantID: model.VariantScholarAuthor}
}

func (p *ScholarAuthorParser) Parse(ctx context.Context, env *model.Envelope) error {
	var payload scholarAuthorPayload
	if err := json.Unmarshal(env.Raw, &payload); err != nil {
		return eris.Wrap(err, "parser: decode scholar author payload")
	}
	if payload.Name == "" || payload.AuthorID == "" {
		return eris.New("parser: scholar author payload missing name or author_id")
	}

	return inTx(ctx, p.pool, func(tx pgx.Tx) error {
		author, err := p.store.UpsertAuthor(ctx, tx, payload.Name, store.AuthorFields{
			Role:         payload.Role,
			Organization: payload.Organization,
			ImageURL:     payload.ImageURL,
			HomepageURL:  payload.HomepageURL,
		}, env.UpdateDate)
		if err != nil {
			return err
		}

		_, err = p.store.UpsertScholarAuthor(ctx, tx, payload.AuthorID, author, store.ScholarAuthorFields{
			ProfileURL: payload.ProfileURL,
			Verified:   payload.Verified,
			HIndex:     intPtr(payload.HIndex),
			I10Index:   intPtr(payload.I10Index),
		}, env.UpdateDate)
		if err != nil {
			return err
		}

		for _, name := range payload.Interests {
			if strings.TrimSpace(name) == "" {
				continue
			}
			interest, err := p.store.UpsertInterest(ctx, tx, name, env.UpdateDate)
			if err != nil {
				return err
			}
			if err := p.store.LinkAuthorInterest(ctx, tx, author.ID, interest.ID); err != nil {
				return err
			}
		}

		for _, name := range payload.Coauthors {
			if strings.TrimSpace(name) == "" {
				continue
			}
			coauthor, err := p.store.UpsertAuthor(ctx, tx, name, store.AuthorFields{}, env.UpdateDate)
			if err != nil {
				return err
			}
			if err := p.store.LinkCoauthorPair(ctx, tx, author.ID, coauthor.ID); err != nil {
				return err
			}
		}

		p.log.Debug("persisted scholar author",
			zap.String("author_id", payload.AuthorID),
			zap.Int("interests", len(payload.Interests)),
			zap.Int("coauthors", len(payload.Coauthors)))
		return nil
	})
}
