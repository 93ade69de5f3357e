package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS pg_trgm").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS pg_trgm").
		WillReturnError(fmt.Errorf("permission denied"))

	err = Migrate(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: migrate")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchema_CoversAllTables(t *testing.T) {
	for _, table := range []string{
		"author", "scholar_author", "publication", "scholar_publication",
		"scholar_citation", "journal", "conference", "interest",
		"publication_author", "author_coauthor", "author_interest",
	} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" (", "missing table %s", table)
	}
	// Variant identity columns must be globally unique within their kind.
	assert.Contains(t, schema, "author_id    TEXT NOT NULL UNIQUE")
	assert.Contains(t, schema, "UNIQUE (publication_id, cites_id)")
	assert.Contains(t, schema, "cites_id               TEXT NOT NULL UNIQUE")
	// UNIQUE alone lets two NULL-cites_id rows through; the partial index
	// closes that gap.
	assert.Contains(t, schema, "ON scholar_publication(publication_id) WHERE cites_id IS NULL")
}
