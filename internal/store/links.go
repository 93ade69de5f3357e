package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Link inserts rely on the composite primary keys: an existing pair is a
// no-op, which keeps link reconciliation idempotent under replay.

const linkPublicationAuthorSQL = `
INSERT INTO publication_author (publication_id, author_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`

const linkAuthorInterestSQL = `
INSERT INTO author_interest (author_id, interest_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`

const linkCoauthorSQL = `
INSERT INTO author_coauthor (author_id, coauthor_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`

// LinkPublicationAuthor records that the author wrote the publication.
func (s *Store) LinkPublicationAuthor(ctx context.Context, tx pgx.Tx, publicationID, authorID int64) error {
	_, err := tx.Exec(ctx, linkPublicationAuthorSQL, publicationID, authorID)
	return eris.Wrapf(err, "store: link publication %d to author %d", publicationID, authorID)
}

// LinkAuthorInterest records the author's interest.
func (s *Store) LinkAuthorInterest(ctx context.Context, tx pgx.Tx, authorID, interestID int64) error {
	_, err := tx.Exec(ctx, linkAuthorInterestSQL, authorID, interestID)
	return eris.Wrapf(err, "store: link author %d to interest %d", authorID, interestID)
}

// LinkCoauthorPair records the undirected co-author edge by inserting both
// directions.
func (s *Store) LinkCoauthorPair(ctx context.Context, tx pgx.Tx, authorID, coauthorID int64) error {
	if authorID == coauthorID {
		return nil
	}
	if _, err := tx.Exec(ctx, linkCoauthorSQL, authorID, coauthorID); err != nil {
		return eris.Wrapf(err, "store: link coauthor %d to %d", authorID, coauthorID)
	}
	if _, err := tx.Exec(ctx, linkCoauthorSQL, coauthorID, authorID); err != nil {
		return eris.Wrapf(err, "store: link coauthor %d to %d", coauthorID, authorID)
	}
	return nil
}

// LinkCoauthors records the co-author edges between every pair of the
// given authors.
func (s *Store) LinkCoauthors(ctx context.Context, tx pgx.Tx, authorIDs []int64) error {
	for i := 0; i < len(authorIDs); i++ {
		for j := i + 1; j < len(authorIDs); j++ {
			if err := s.LinkCoauthorPair(ctx, tx, authorIDs[i], authorIDs[j]); err != nil {
				return err
			}
		}
	}
	return nil
}
