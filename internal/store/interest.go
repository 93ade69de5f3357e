package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/gwngames/persister/internal/model"
)

// Interest names are short, so a two-character prefix is a sufficient
// prefilter before the jaro-winkler predicate.
const interestSelectSQL = `
SELECT id, name, update_count
FROM interest
WHERE name LIKE $1 || '%'
  AND jaro_winkler_similarity(name, $2) >= $3
ORDER BY jaro_winkler_similarity(name, $2) DESC
LIMIT 1
FOR UPDATE`

const interestInsertSQL = `
INSERT INTO interest (name, class_id, variant_id, update_date, update_count)
VALUES ($1, $2, $3, $4, 1)
RETURNING id`

const interestTouchSQL = `
UPDATE interest SET update_date = $2, update_count = COALESCE(update_count, 0) + 1
WHERE id = $1`

// UpsertInterest resolves an interest by fuzzy name match and creates the
// row when absent.
func (s *Store) UpsertInterest(ctx context.Context, tx pgx.Tx, name string, updateDate time.Time) (*model.Interest, error) {
	key := normKey(name)
	if key == "" {
		return nil, eris.New("store: interest name is empty")
	}

	prefix := key
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}

	var in model.Interest
	err := tx.QueryRow(ctx, interestSelectSQL, prefix, key, s.thresholds.InterestName).
		Scan(&in.ID, &in.Name, &in.UpdateCount)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "store: lock interest %q", key)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		m := meta(model.ClassInterest, model.VariantBase, updateDate)
		in = model.Interest{Name: key, Meta: m}
		err = tx.QueryRow(ctx, interestInsertSQL, key, m.ClassID, m.VariantID, m.UpdateDate).Scan(&in.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "store: insert interest %q", key)
		}
		return &in, nil
	}

	in.UpdateDate = metaDate(updateDate)
	if _, err := tx.Exec(ctx, interestTouchSQL, in.ID, in.UpdateDate); err != nil {
		return nil, eris.Wrapf(err, "store: touch interest %q", key)
	}
	return &in, nil
}
