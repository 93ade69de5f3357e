// Package model defines the persisted bibliographic entities and the wire
// envelope exchanged with scrapers.
package model

import "time"

// Class identifiers. A variant record shares the class id of its base
// entity and is distinguished by its variant id.
const (
	ClassAuthor      = 1000
	ClassPublication = 1010
	ClassConference  = 1020
	ClassJournal     = 1030
	ClassInterest    = 1040
	ClassCitation    = 1050
)

// Variant identifiers.
const (
	VariantBase               = 1
	VariantScholarAuthor      = 40
	VariantScholarPublication = 50
	VariantScholarCitation    = 60
	VariantDBLPAssociation    = 100
)

// Kind identifies the handler for an envelope.
type Kind struct {
	ClassID   int
	VariantID int
}

// Meta carries the bookkeeping columns shared by every entity row.
type Meta struct {
	ClassID     int
	VariantID   int
	UpdateDate  time.Time
	UpdateCount int
}

// Author is a person resolved by fuzzy name matching. Names are stored
// lowercased.
type Author struct {
	ID           int64
	Name         string
	Role         *string
	Organization *string
	ImageURL     *string
	HomepageURL  *string
	Meta
}

// ScholarAuthor augments an Author with Google Scholar profile data,
// keyed exactly by the provider's author id.
type ScholarAuthor struct {
	ID         int64
	AuthorFK   int64
	AuthorID   string
	ProfileURL *string
	Verified   *bool
	HIndex     *int
	I10Index   *int
	Meta
}

// Publication is a paper resolved by fuzzy title matching. Titles are
// stored lowercased.
type Publication struct {
	ID              int64
	Title           string
	URL             *string
	PublicationYear *int
	Pages           *string
	Publisher       *string
	Description     *string
	JournalID       *int64
	ConferenceID    *int64
	Meta
}

// ScholarPublication augments a Publication with Google Scholar data,
// keyed exactly by (publication_id, cites_id).
type ScholarPublication struct {
	ID                 int64
	PublicationFK      int64
	PublicationID      string
	CitesID            *string
	TitleLink          *string
	PDFLink            *string
	TotalCitations     *int
	RelatedArticlesURL *string
	AllVersionsURL     *string
	Meta
}

// ScholarCitation is a citing document attached to a ScholarPublication,
// keyed exactly by its own cites id. Year is free text ("Unknown" when
// neither the citation nor the cited publication carries one).
type ScholarCitation struct {
	ID                   int64
	ScholarPublicationFK int64
	CitesID              string
	CitationLink         *string
	Title                *string
	Link                 *string
	Summary              *string
	DocumentLink         *string
	Year                 *string
	Citations            *int
	Meta
}

// Journal is an SJR-ranked venue resolved by fuzzy title matching.
type Journal struct {
	ID                int64
	Title             string
	Type              *string
	Year              int
	Link              *string
	SJR               *string
	QRank             *string
	HIndex            *int
	TotalDocs         *int
	TotalDocs3Years   *int
	TotalRefs         *int
	TotalCites3Years  *int
	CitableDocs3Years *int
	CitesPerDoc2Years *string
	RefsPerDoc        *string
	FemalePercent     *string
	Meta
}

// Conference is a CORE-ranked venue resolved primarily by acronym
// similarity. Acronyms are stored uppercased.
type Conference struct {
	ID            int64
	Title         *string
	Acronym       string
	Publisher     *string
	Rank          *string
	Note          *string
	DBLPLink      *string
	PrimaryFor    *string
	Comments      *string
	AverageRating *string
	Year          *int
	Meta
}

// Interest is a research topic resolved by fuzzy name matching.
type Interest struct {
	ID   int64
	Name string
	Meta
}
