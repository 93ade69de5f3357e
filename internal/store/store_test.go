package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gwngames/persister/internal/config"
	"github.com/gwngames/persister/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func testThresholds() config.SimilarityConfig {
	return config.SimilarityConfig{
		PublicationTitle: 0.87,
		AuthorName:       0.70,
		InterestName:     0.80,
		JournalTitle:     0.75,
		JournalAttach:    0.80,
		AcronymLookup:    0.94,
		AcronymUpsert:    0.95,
	}
}

func newMockTx(t *testing.T) (pgxmock.PgxPoolIface, pgx.Tx) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	return mock, tx
}

func TestUpsertAuthorInsertsWhenNoCandidate(t *testing.T) {
	mock, tx := newMockTx(t)
	s := New(testThresholds())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, role, organization, image_url, homepage_url, update_count")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "john doe", 0.70).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO author")).
		WithArgs("john doe", (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
			model.ClassAuthor, model.VariantBase, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	a, err := s.UpsertAuthor(context.Background(), tx, "  John Doe ", AuthorFields{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.ID)
	assert.Equal(t, "john doe", a.Name)
	assert.Equal(t, 1, a.UpdateCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAuthorUpdatesMatchedRow(t *testing.T) {
	mock, tx := newMockTx(t)
	s := New(testThresholds())

	role := "Professor"
	org := "MIT"
	mock.ExpectQuery(regexp.QuoteMeta("FROM author")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "j doe", 0.70).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "role", "organization", "image_url", "homepage_url", "update_count"}).
			AddRow(int64(3), "john doe", &role, nil, nil, nil, 4))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE author SET")).
		WithArgs(int64(3), "j doe", (*string)(nil), &org, (*string)(nil), (*string)(nil), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"role", "organization", "image_url", "homepage_url", "update_count"}).
			AddRow(&role, &org, nil, nil, 5))

	a, err := s.UpsertAuthor(context.Background(), tx, "J. Doe", AuthorFields{Organization: &org}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), a.ID)
	assert.Equal(t, "j doe", a.Name)
	require.NotNil(t, a.Role)
	assert.Equal(t, "Professor", *a.Role)
	assert.Equal(t, 5, a.UpdateCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAuthorReturnsNilOnMiss(t *testing.T) {
	mock, tx := newMockTx(t)
	s := New(testThresholds())

	mock.ExpectQuery(regexp.QuoteMeta("FROM author")).
		WithArgs(anyArgs(4)...).
		WillReturnError(pgx.ErrNoRows)

	a, err := s.FindAuthor(context.Background(), tx, "nobody here")
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPublicationPrefiltersOnFifthWord(t *testing.T) {
	mock, tx := newMockTx(t)
	s := New(testThresholds())

	title := "Avalanche: A PyTorch Library for Deep Continual Learning"
	key := normKey(title)
	mock.ExpectQuery(regexp.QuoteMeta("FROM publication")).
		WithArgs("pytorch", key, 0.87).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO publication")).
		WithArgs(key, (*string)(nil), (*int)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
			model.ClassPublication, model.VariantBase, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	p, err := s.UpsertPublication(context.Background(), tx, title, PublicationFields{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(11), p.ID)
	assert.Equal(t, key, p.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertScholarPublicationMatchesExactIdentity(t *testing.T) {
	mock, tx := newMockTx(t)
	s := New(testThresholds())

	cites := "cid123"
	total := 42
	mock.ExpectQuery(regexp.QuoteMeta("FROM scholar_publication")).
		WithArgs("pub1", &cites).
		WillReturnRows(pgxmock.NewRows([]string{"id", "publication_fk", "title_link", "pdf_link", "total_citations", "related_articles_url", "all_versions_url", "update_count"}).
			AddRow(int64(9), int64(2), nil, nil, &total, nil, nil, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE scholar_publication SET")).
		WithArgs(int64(9), (*string)(nil), (*string)(nil), &total, (*string)(nil), (*string)(nil), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	base := &model.Publication{ID: 2}
	sp, err := s.UpsertScholarPublication(context.Background(), tx, "pub1", &cites, base,
		ScholarPublicationFields{TotalCitations: &total}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(9), sp.ID)
	assert.Equal(t, int64(2), sp.PublicationFK)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertJournalUsesCallerThreshold(t *testing.T) {
	mock, tx := newMockTx(t)
	s := New(testThresholds())

	key := normKey("ACM Computing Surveys")
	mock.ExpectQuery(regexp.QuoteMeta("FROM journal")).
		WithArgs(pgxmock.AnyArg(), key, 0.80).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO journal")).
		WithArgs(anyArgs(18)...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))

	j, err := s.UpsertJournal(context.Background(), tx, "ACM Computing Surveys",
		s.JournalAttachThreshold(), JournalFields{Year: 2024}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), j.ID)
	assert.Equal(t, 2024, j.Year)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveConferenceAcronymProbesCompoundParts(t *testing.T) {
	mock, tx := newMockTx(t)
	s := New(testThresholds())

	// Raw acronym misses, first part of the "@" split matches.
	mock.ExpectQuery(regexp.QuoteMeta("FROM conference")).
		WithArgs("ICSE@ESEC", 0.94).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM conference")).
		WithArgs("ICSE", 0.94).
		WillReturnRows(conferenceRow(int64(4), "ICSE"))

	c, err := s.ResolveConferenceAcronym(context.Background(), tx, "icse@esec", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), c.ID)
	assert.Equal(t, "ICSE", c.Acronym)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveConferenceAcronymInsertsUnrankedOnFullMiss(t *testing.T) {
	mock, tx := newMockTx(t)
	s := New(testThresholds())

	mock.ExpectQuery(regexp.QuoteMeta("FROM conference")).
		WithArgs("ESEC/FSE", 0.94).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM conference")).
		WithArgs("ESEC", 0.94).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM conference")).
		WithArgs("FSE", 0.94).
		WillReturnError(pgx.ErrNoRows)
	rank := "Unranked"
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO conference")).
		WithArgs((*string)(nil), "FSE", (*string)(nil), &rank, (*string)(nil), (*string)(nil),
			(*string)(nil), (*string)(nil), (*string)(nil), (*int)(nil),
			model.ClassConference, model.VariantBase, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(8)))

	c, err := s.ResolveConferenceAcronym(context.Background(), tx, "esec/fse", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(8), c.ID)
	assert.Equal(t, "FSE", c.Acronym)
	require.NotNil(t, c.Rank)
	assert.Equal(t, "Unranked", *c.Rank)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func conferenceRow(id int64, acronym string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "title", "acronym", "publisher", "rank", "note",
		"dblp_link", "primary_for", "comments", "average_rating", "year", "update_count"}).
		AddRow(id, nil, acronym, nil, nil, nil, nil, nil, nil, nil, nil, 1)
}

func TestUpsertInterestTouchesExistingRow(t *testing.T) {
	mock, tx := newMockTx(t)
	s := New(testThresholds())

	mock.ExpectQuery(regexp.QuoteMeta("FROM interest")).
		WithArgs("ma", "machine learning", 0.80).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "update_count"}).
			AddRow(int64(6), "machine learning", 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE interest SET")).
		WithArgs(int64(6), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	in, err := s.UpsertInterest(context.Background(), tx, "Machine Learning", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), in.ID)
	assert.Equal(t, "machine learning", in.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertScholarCitationKeepsExistingYear(t *testing.T) {
	mock, tx := newMockTx(t)
	s := New(testThresholds())

	existingYear := "2019"
	newYear := "2021"
	mock.ExpectQuery(regexp.QuoteMeta("FROM scholar_citation")).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "scholar_publication_fk", "year", "update_count"}).
			AddRow(int64(12), int64(9), &existingYear, 2))
	mock.ExpectExec(regexp.QuoteMeta("year = COALESCE(year, $7)")).
		WithArgs(int64(12), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
			(*string)(nil), &newYear, (*int)(nil), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	c, err := s.UpsertScholarCitation(context.Background(), tx, "c1", 9,
		CitationFields{Year: &newYear}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(12), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkCoauthorsInsertsBothDirections(t *testing.T) {
	mock, tx := newMockTx(t)
	s := New(testThresholds())

	for _, pair := range [][2]int64{{1, 2}, {2, 1}, {1, 3}, {3, 1}, {2, 3}, {3, 2}} {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO author_coauthor")).
			WithArgs(pair[0], pair[1]).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	err := s.LinkCoauthors(context.Background(), tx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkCoauthorPairSkipsSelf(t *testing.T) {
	mock, tx := newMockTx(t)
	s := New(testThresholds())

	err := s.LinkCoauthorPair(context.Background(), tx, 5, 5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
