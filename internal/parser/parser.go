// Package parser implements the per-kind payload handlers: each parser
// decodes one envelope kind, opens its own transaction and drives the
// entity store. A parser either commits the whole envelope or rolls back
// and reports the error to the dispatcher.
package parser

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/gwngames/persister/internal/db"
	"github.com/gwngames/persister/internal/model"
	"github.com/gwngames/persister/internal/store"
)

// Parser handles all envelopes of one kind.
type Parser interface {
	Kind() model.Kind
	Parse(ctx context.Context, env *model.Envelope) error
}

// Registry maps envelope kinds to their parsers.
type Registry map[model.Kind]Parser

// NewRegistry wires every parser against the given pool and store.
func NewRegistry(pool db.Pool, st *store.Store) Registry {
	parsers := []Parser{
		NewScholarAuthorParser(pool, st),
		NewScholarPublicationParser(pool, st),
		NewPublicationAssociationProcessor(pool, st),
		NewConferenceProcessor(pool, st),
		NewJournalParser(pool, st),
		NewScholarCitationParser(pool, st),
	}
	r := make(Registry, len(parsers))
	for _, p := range parsers {
		r[p.Kind()] = p
	}
	return r
}

// Lookup returns the parser for a kind.
func (r Registry) Lookup(k model.Kind) (Parser, bool) {
	p, ok := r[k]
	return p, ok
}

// inTx runs fn inside a transaction. The rollback is a no-op once fn
// succeeded and the commit went through.
func inTx(ctx context.Context, pool db.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "parser: begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "parser: commit transaction")
}

var yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

// extractYear returns the first four-digit run in text, falling back to
// the current calendar year.
func extractYear(text string) int {
	if m := yearPattern.FindString(text); m != "" {
		if y, err := strconv.Atoi(m); err == nil {
			return y
		}
	}
	return time.Now().Year()
}
