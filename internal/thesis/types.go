package thesis

import "strings"

// Type is the normalized thesis type. The portal renders these as Turkish
// labels; TypeFromLabel maps them back.
type Type string

const (
	TypeMasters          Type = "masters"
	TypeDoctorate        Type = "doctorate"
	TypeMedicalSpecialty Type = "medical_specialty"
	TypeArtProficiency   Type = "proficiency_in_art"
	TypeUnknown          Type = ""
)

// TypeFromLabel maps a portal label (e.g. "Yüksek Lisans") to a Type.
// Unrecognized labels map to TypeUnknown rather than erroring, since the
// portal has rendered type names differently across template versions.
func TypeFromLabel(label string) Type {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, "yüksek lisans") || strings.Contains(l, "yuksek lisans"):
		return TypeMasters
	case strings.Contains(l, "doktora"):
		return TypeDoctorate
	case strings.Contains(l, "tıpta uzmanlık") || strings.Contains(l, "tipta uzmanlik"):
		return TypeMedicalSpecialty
	case strings.Contains(l, "sanatta yeterli"):
		return TypeArtProficiency
	}
	return TypeUnknown
}

// Field selects which part of a thesis record a search term applies to.
type Field string

const (
	FieldTitle    Field = "title"
	FieldAuthor   Field = "author"
	FieldAdvisor  Field = "advisor"
	FieldSubject  Field = "subject"
	FieldIndex    Field = "index"
	FieldAbstract Field = "abstract"
	FieldAll      Field = "all"
)

// Match is the match mode for an advanced search clause.
type Match string

const (
	MatchExact    Match = "exact"
	MatchContains Match = "contains"
)

// Operator joins advanced search clauses, applied left to right.
type Operator string

const (
	OperatorAnd Operator = "and"
	OperatorOr  Operator = "or"
	OperatorNot Operator = "not"
)

// Summary is a single row of a search or recent-theses listing.
// ID is always populated; a row without one is a parse artifact and never
// reaches callers.
type Summary struct {
	ID              string `json:"thesis_id"`
	Title           string `json:"title"`
	TitleTranslated string `json:"title_translated,omitempty"`
	Author          string `json:"author"`
	Year            *int   `json:"year"`
	University      string `json:"university,omitempty"`
	Type            Type   `json:"thesis_type"`
	Language        string `json:"language,omitempty"`
	Subject         string `json:"subject,omitempty"`
}

// Detail is the full record behind a thesis id. Abstract and Purpose may be
// empty on backends that cannot execute the portal's modal script.
type Detail struct {
	Summary
	Advisor    string   `json:"advisor,omitempty"`
	CoAdvisor  string   `json:"co_advisor,omitempty"`
	Institute  string   `json:"institute,omitempty"`
	Department string   `json:"department,omitempty"`
	PageCount  *int     `json:"page_count"`
	Keywords   []string `json:"keywords,omitempty"`
	Abstract   string   `json:"abstract,omitempty"`
	Purpose    string   `json:"purpose,omitempty"`
}

// SearchRequest describes a single-field search against the portal form.
type SearchRequest struct {
	Query      string `json:"query"`
	Field      Field  `json:"field,omitempty"`
	YearStart  int    `json:"year_start,omitempty"`
	YearEnd    int    `json:"year_end,omitempty"`
	Type       Type   `json:"thesis_type,omitempty"`
	University string `json:"university,omitempty"`
	Language   string `json:"language,omitempty"`
	Permission string `json:"permission,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

// Clause is one keyword of an advanced search.
type Clause struct {
	Keyword string `json:"keyword"`
	Field   Field  `json:"field,omitempty"`
	Match   Match  `json:"match,omitempty"`
}

// AdvancedSearchRequest holds up to three clauses joined by boolean
// operators, applied left to right without precedence (the portal's own
// evaluation order).
type AdvancedSearchRequest struct {
	Clauses    []Clause   `json:"clauses"`
	Operators  []Operator `json:"operators,omitempty"`
	YearStart  int        `json:"year_start,omitempty"`
	YearEnd    int        `json:"year_end,omitempty"`
	Type       Type       `json:"thesis_type,omitempty"`
	University string     `json:"university,omitempty"`
	Language   string     `json:"language,omitempty"`
	MaxResults int        `json:"max_results,omitempty"`
}

// StatisticsFilter narrows the sample used for aggregation.
type StatisticsFilter struct {
	Query      string `json:"query,omitempty"`
	University string `json:"university,omitempty"`
	Year       int    `json:"year,omitempty"`
	Type       Type   `json:"thesis_type,omitempty"`
}

// Statistics is a client-side aggregation over a bounded sample of search
// results. The portal exposes no aggregation endpoint, so counts are
// best-effort over TotalSampled records, not exact totals.
type Statistics struct {
	TotalSampled int            `json:"total_sampled"`
	ByType       map[string]int `json:"by_type"`
	ByLanguage   map[string]int `json:"by_language"`
	ByYear       map[int]int    `json:"by_year"`
}
