// Package scraper provides the transport backends that talk to the
// national thesis portal and return raw page HTML for extraction.
package scraper

import (
	"context"
	"net/url"
)

const (
	// DefaultBaseURL is the portal root
	DefaultBaseURL = "https://tez.yok.gov.tr"
	// SearchPath serves every search tab (detailed, advanced, recent)
	SearchPath = "/UlusalTezMerkezi/tarama.jsp"
	// DetailPath serves single thesis records
	DetailPath = "/UlusalTezMerkezi/tezDetay.jsp"
)

// Operation identifies a retrieval operation for capability checks.
type Operation string

const (
	OpSearch         Operation = "search"
	OpAdvancedSearch Operation = "advanced_search"
	OpDetail         Operation = "detail"
	OpRecent         Operation = "recent"
)

// Backend fetches raw portal pages. Implementations differ in how much of
// the portal they can drive: plain HTTP covers form posts, while tabs that
// require script execution need a browser. Callers must check Supports
// before invoking an operation; unsupported operations return a
// capability error.
type Backend interface {
	// Name identifies the backend in logs and errors
	Name() string

	// Supports reports whether this backend can perform the operation
	Supports(op Operation) bool

	// SubmitSearch posts the simple search form and returns the results page
	SubmitSearch(ctx context.Context, form url.Values) (string, error)

	// SubmitAdvanced drives the advanced search tab and returns the results page
	SubmitAdvanced(ctx context.Context, form url.Values) (string, error)

	// FetchDetail returns the detail page for a thesis id
	FetchDetail(ctx context.Context, thesisID string) (string, error)

	// FetchRecent returns the recent-theses listing for the past days
	FetchRecent(ctx context.Context, days int) (string, error)

	// Close releases any held resources
	Close() error
}
