package db

import (
	"context"

	"github.com/rotisserie/eris"
)

// schema is the full DDL of the persistence tier. Variant records live in
// their own tables and reference their base row by foreign key; the unique
// indexes on the provider identity columns make every variant row globally
// unique within its kind. Similarity lookups rely on pg_trgm
// (word_similarity) and on the jaro/jaro-winkler SQL functions installed
// alongside the database.
const schema = `
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS author (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	role          TEXT,
	organization  TEXT,
	image_url     TEXT,
	homepage_url  TEXT,
	class_id      INTEGER NOT NULL,
	variant_id    INTEGER NOT NULL,
	update_date   TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_count  INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_author_name_trgm ON author USING gin (name gin_trgm_ops);

CREATE TABLE IF NOT EXISTS scholar_author (
	id           BIGSERIAL PRIMARY KEY,
	author_fk    BIGINT NOT NULL REFERENCES author(id),
	author_id    TEXT NOT NULL UNIQUE,
	profile_url  TEXT,
	verified     BOOLEAN,
	h_index      INTEGER,
	i10_index    INTEGER,
	class_id     INTEGER NOT NULL,
	variant_id   INTEGER NOT NULL,
	update_date  TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_count INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS journal (
	id                   BIGSERIAL PRIMARY KEY,
	title                TEXT NOT NULL,
	type                 TEXT,
	year                 INTEGER NOT NULL DEFAULT 0,
	link                 TEXT,
	sjr                  TEXT,
	q_rank               TEXT,
	h_index              INTEGER,
	total_docs           INTEGER,
	total_docs_3years    INTEGER,
	total_refs           INTEGER,
	total_cites_3years   INTEGER,
	citable_docs_3years  INTEGER,
	cites_per_doc_2years TEXT,
	refs_per_doc         TEXT,
	female_percent       TEXT,
	class_id             INTEGER NOT NULL,
	variant_id           INTEGER NOT NULL,
	update_date          TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_count         INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_journal_title_trgm ON journal USING gin (title gin_trgm_ops);

CREATE TABLE IF NOT EXISTS conference (
	id             BIGSERIAL PRIMARY KEY,
	title          TEXT,
	acronym        TEXT NOT NULL,
	publisher      TEXT,
	rank           TEXT,
	note           TEXT,
	dblp_link      TEXT,
	primary_for    TEXT,
	comments       TEXT,
	average_rating TEXT,
	year           INTEGER,
	class_id       INTEGER NOT NULL,
	variant_id     INTEGER NOT NULL,
	update_date    TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_count   INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS publication (
	id               BIGSERIAL PRIMARY KEY,
	title            TEXT NOT NULL,
	url              TEXT,
	publication_year INTEGER,
	pages            TEXT,
	publisher        TEXT,
	description      TEXT,
	journal_id       BIGINT REFERENCES journal(id),
	conference_id    BIGINT REFERENCES conference(id),
	class_id         INTEGER NOT NULL,
	variant_id       INTEGER NOT NULL,
	update_date      TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_count     INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_publication_title_trgm ON publication USING gin (title gin_trgm_ops);

CREATE TABLE IF NOT EXISTS scholar_publication (
	id                   BIGSERIAL PRIMARY KEY,
	publication_fk       BIGINT NOT NULL REFERENCES publication(id),
	publication_id       TEXT NOT NULL,
	cites_id             TEXT,
	title_link           TEXT,
	pdf_link             TEXT,
	total_citations      INTEGER,
	related_articles_url TEXT,
	all_versions_url     TEXT,
	class_id             INTEGER NOT NULL,
	variant_id           INTEGER NOT NULL,
	update_date          TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_count         INTEGER NOT NULL DEFAULT 1,
	UNIQUE (publication_id, cites_id)
);

CREATE INDEX IF NOT EXISTS idx_scholar_publication_cites_id ON scholar_publication(cites_id);

-- UNIQUE treats NULLs as distinct; rows without a cites_id still must be
-- unique per provider publication id.
CREATE UNIQUE INDEX IF NOT EXISTS idx_scholar_publication_null_cites
	ON scholar_publication(publication_id) WHERE cites_id IS NULL;

CREATE TABLE IF NOT EXISTS scholar_citation (
	id                     BIGSERIAL PRIMARY KEY,
	scholar_publication_fk BIGINT NOT NULL REFERENCES scholar_publication(id),
	cites_id               TEXT NOT NULL UNIQUE,
	citation_link          TEXT,
	title                  TEXT,
	link                   TEXT,
	summary                TEXT,
	document_link          TEXT,
	year                   TEXT,
	citations              INTEGER,
	class_id               INTEGER NOT NULL,
	variant_id             INTEGER NOT NULL,
	update_date            TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_count           INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS interest (
	id           BIGSERIAL PRIMARY KEY,
	name         TEXT NOT NULL,
	class_id     INTEGER NOT NULL,
	variant_id   INTEGER NOT NULL,
	update_date  TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_count INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS publication_author (
	publication_id BIGINT NOT NULL REFERENCES publication(id),
	author_id      BIGINT NOT NULL REFERENCES author(id),
	PRIMARY KEY (publication_id, author_id)
);

CREATE TABLE IF NOT EXISTS author_coauthor (
	author_id   BIGINT NOT NULL REFERENCES author(id),
	coauthor_id BIGINT NOT NULL REFERENCES author(id),
	PRIMARY KEY (author_id, coauthor_id)
);

CREATE TABLE IF NOT EXISTS author_interest (
	author_id   BIGINT NOT NULL REFERENCES author(id),
	interest_id BIGINT NOT NULL REFERENCES interest(id),
	PRIMARY KEY (author_id, interest_id)
);
`

// Migrate applies the schema. Every statement is idempotent; the command
// is safe to run on every deploy.
func Migrate(ctx context.Context, pool Pool) error {
	_, err := pool.Exec(ctx, schema)
	return eris.Wrap(err, "db: migrate")
}
