// Package query translates retrieval requests into the form parameters
// the portal's search pages expect.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"yoktez/tezworker/internal/thesis"
	"yoktez/tezworker/pkg/errors"
)

const (
	// DefaultMaxResults applies when a request leaves MaxResults unset
	DefaultMaxResults = 20
	// MaxResultsCap is the hard upper bound on results per request
	MaxResultsCap = 100
	// MaxClauses is the number of keyword slots on the advanced form
	MaxClauses = 3

	minYear = 1900
	maxYear = 2100
)

// Form field names on the simple search tab. Each searchable field posts
// into its own input; "keyword" searches all fields at once.
var fieldParams = map[thesis.Field]string{
	thesis.FieldTitle:    "TezAd",
	thesis.FieldAuthor:   "AdSoyad",
	thesis.FieldAdvisor:  "DanismanAdSoyad",
	thesis.FieldSubject:  "Dizin",
	thesis.FieldIndex:    "Dizin",
	thesis.FieldAbstract: "Ozet",
	thesis.FieldAll:      "keyword",
}

// Numeric field codes used by the advanced form's nevi selects.
var fieldCodes = map[thesis.Field]string{
	thesis.FieldTitle:    "1",
	thesis.FieldAuthor:   "2",
	thesis.FieldAdvisor:  "3",
	thesis.FieldSubject:  "4",
	thesis.FieldIndex:    "5",
	thesis.FieldAbstract: "6",
	thesis.FieldAll:      "7",
}

var matchCodes = map[thesis.Match]string{
	thesis.MatchExact:    "1",
	thesis.MatchContains: "2",
}

// Operator values the form's ops_field selects expect. The portal uses
// the English words as literal option values.
var operatorCodes = map[thesis.Operator]string{
	thesis.OperatorAnd: "and",
	thesis.OperatorOr:  "or",
	thesis.OperatorNot: "not",
}

var typeCodes = map[thesis.Type]string{
	thesis.TypeMasters:          "1",
	thesis.TypeDoctorate:        "2",
	thesis.TypeMedicalSpecialty: "3",
	thesis.TypeArtProficiency:   "4",
}

// Universities the builder canonicalizes case-insensitively. Unknown names
// pass through verbatim so new institutions keep working without a release.
var knownUniversities = []string{
	"Ankara Üniversitesi",
	"Atatürk Üniversitesi",
	"Boğaziçi Üniversitesi",
	"Dokuz Eylül Üniversitesi",
	"Ege Üniversitesi",
	"Gazi Üniversitesi",
	"Hacettepe Üniversitesi",
	"İstanbul Teknik Üniversitesi",
	"İstanbul Üniversitesi",
	"Koç Üniversitesi",
	"Marmara Üniversitesi",
	"Orta Doğu Teknik Üniversitesi",
	"Sabancı Üniversitesi",
	"Yıldız Teknik Üniversitesi",
}

// CanonicalUniversity resolves a university name against the known list,
// ignoring case. Unknown names are returned trimmed but otherwise as given.
func CanonicalUniversity(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	for _, u := range knownUniversities {
		if strings.ToLower(u) == lower {
			return u
		}
	}
	return trimmed
}

// NormalizeMaxResults clamps a requested result count to [1, MaxResultsCap],
// substituting the default when unset.
func NormalizeMaxResults(n int) int {
	if n <= 0 {
		return DefaultMaxResults
	}
	if n > MaxResultsCap {
		return MaxResultsCap
	}
	return n
}

// BuildSearch validates a SearchRequest and produces the simple search
// form values. An empty request (no term and no filter) is rejected so a
// worker bug cannot turn into an unbounded portal dump.
func BuildSearch(req thesis.SearchRequest) (url.Values, error) {
	const op = "search"

	query := strings.TrimSpace(req.Query)
	if query == "" && req.YearStart == 0 && req.YearEnd == 0 &&
		req.Type == thesis.TypeUnknown && req.University == "" {
		return nil, errors.NewInvalidQuery(op, "query or at least one filter is required")
	}

	if err := validateYears(op, req.YearStart, req.YearEnd); err != nil {
		return nil, err
	}

	form := baseForm()

	if query != "" {
		field := req.Field
		if field == "" {
			field = thesis.FieldAll
		}
		param, ok := fieldParams[field]
		if !ok {
			return nil, errors.NewInvalidQuery(op, fmt.Sprintf("unknown search field %q", field))
		}
		form.Set(param, query)
	}

	setYears(form, req.YearStart, req.YearEnd)
	if err := setType(form, op, req.Type); err != nil {
		return nil, err
	}
	if req.University != "" {
		form.Set("uniad", CanonicalUniversity(req.University))
	}
	if req.Language != "" {
		form.Set("Dil", strings.TrimSpace(req.Language))
	}
	if req.Permission != "" {
		form.Set("izin", strings.TrimSpace(req.Permission))
	}

	return form, nil
}

// BuildAdvanced validates an AdvancedSearchRequest and produces the
// advanced form values. Up to three clauses post into numbered keyword,
// nevi and tip slots; the two operator selects join clause 2 and 3 to
// whatever precedes them, strictly left to right.
func BuildAdvanced(req thesis.AdvancedSearchRequest) (url.Values, error) {
	const op = "advanced_search"

	clauses := make([]thesis.Clause, 0, len(req.Clauses))
	for _, c := range req.Clauses {
		c.Keyword = strings.TrimSpace(c.Keyword)
		if c.Keyword != "" {
			clauses = append(clauses, c)
		}
	}
	if len(clauses) == 0 {
		return nil, errors.NewInvalidQuery(op, "at least one clause with a keyword is required")
	}
	if len(clauses) > MaxClauses {
		return nil, errors.NewInvalidQuery(op, fmt.Sprintf("at most %d clauses are supported", MaxClauses))
	}
	if len(req.Operators) > len(clauses)-1 {
		return nil, errors.NewInvalidQuery(op, "more operators than clause joints")
	}
	if err := validateYears(op, req.YearStart, req.YearEnd); err != nil {
		return nil, err
	}

	form := baseForm()

	keywordParams := []string{"keyword", "keyword1", "keyword2"}
	fieldSelects := []string{"nevi", "nevi2", "nevi3"}
	matchSelects := []string{"tip", "tip2", "tip3"}
	operatorSelects := []string{"ops_field", "ops_field1"}

	for i, c := range clauses {
		form.Set(keywordParams[i], c.Keyword)

		field := c.Field
		if field == "" {
			field = thesis.FieldAll
		}
		code, ok := fieldCodes[field]
		if !ok {
			return nil, errors.NewInvalidQuery(op, fmt.Sprintf("unknown search field %q", field))
		}
		form.Set(fieldSelects[i], code)

		match := c.Match
		if match == "" {
			match = thesis.MatchContains
		}
		mcode, ok := matchCodes[match]
		if !ok {
			return nil, errors.NewInvalidQuery(op, fmt.Sprintf("unknown match mode %q", match))
		}
		form.Set(matchSelects[i], mcode)
	}

	for i := 0; i < len(clauses)-1; i++ {
		operator := thesis.OperatorAnd
		if i < len(req.Operators) && req.Operators[i] != "" {
			operator = req.Operators[i]
		}
		code, ok := operatorCodes[operator]
		if !ok {
			return nil, errors.NewInvalidQuery(op, fmt.Sprintf("unknown operator %q", operator))
		}
		form.Set(operatorSelects[i], code)
	}

	setYears(form, req.YearStart, req.YearEnd)
	if err := setType(form, op, req.Type); err != nil {
		return nil, err
	}
	if req.University != "" {
		form.Set("uniad", CanonicalUniversity(req.University))
	}
	if req.Language != "" {
		form.Set("Dil", strings.TrimSpace(req.Language))
	}

	return form, nil
}

// BuildRecent produces the recent-theses form values. days selects how far
// back the listing reaches.
func BuildRecent(days int) (url.Values, error) {
	const op = "recent"
	if days < 1 || days > 90 {
		return nil, errors.NewInvalidQuery(op, fmt.Sprintf("days must be between 1 and 90, got %d", days))
	}
	form := baseForm()
	form.Set("gun", strconv.Itoa(days))
	return form, nil
}

// BuildDetail produces the detail lookup form for a thesis id. Ids are
// numeric; anything else is rejected before it reaches the portal.
func BuildDetail(thesisID string) (url.Values, error) {
	const op = "detail"
	id := strings.TrimSpace(thesisID)
	if id == "" {
		return nil, errors.NewInvalidQuery(op, "thesis id is required")
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return nil, errors.NewInvalidQuery(op, fmt.Sprintf("thesis id must be numeric, got %q", thesisID))
		}
	}
	form := baseForm()
	form.Set("TezNo", id)
	return form, nil
}

func baseForm() url.Values {
	form := url.Values{}
	form.Set("-find", "Bul")
	form.Set("submitted", "1")
	return form
}

func validateYears(op string, start, end int) error {
	for _, y := range []int{start, end} {
		if y != 0 && (y < minYear || y > maxYear) {
			return errors.NewInvalidQuery(op, fmt.Sprintf("year %d out of range", y))
		}
	}
	if start != 0 && end != 0 && start > end {
		return errors.NewInvalidQuery(op, fmt.Sprintf("year range inverted: %d > %d", start, end))
	}
	return nil
}

func setYears(form url.Values, start, end int) {
	if start != 0 {
		form.Set("yil1", strconv.Itoa(start))
	}
	if end != 0 {
		form.Set("yil2", strconv.Itoa(end))
	}
}

func setType(form url.Values, op string, t thesis.Type) error {
	if t == thesis.TypeUnknown {
		return nil
	}
	code, ok := typeCodes[t]
	if !ok {
		return errors.NewInvalidQuery(op, fmt.Sprintf("unknown thesis type %q", t))
	}
	form.Set("Tur", code)
	return nil
}
