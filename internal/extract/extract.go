// Package extract recovers thesis records from the portal's rendered
// HTML. The portal has shipped several table layouts over the years, so
// every extractor walks an ordered list of strategies and takes the first
// one that yields anything.
package extract

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	digitsRe     = regexp.MustCompile(`\d+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanText decodes HTML entities and collapses all runs of whitespace to
// single spaces.
func CleanText(s string) string {
	decoded := html.UnescapeString(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(decoded, " "))
}

// Year pulls a four digit year out of arbitrary cell text, e.g. "(2023)."
// or "2023 / Doktora". Returns nil when no plausible year is present.
func Year(s string) *int {
	for _, m := range digitsRe.FindAllString(s, -1) {
		if len(m) != 4 {
			continue
		}
		y, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if y >= 1900 && y <= 2100 {
			return &y
		}
	}
	return nil
}

// PageCount pulls a positive page count out of cell text like "145 s." or
// "Sayfa: 145". Returns nil when absent or zero.
func PageCount(s string) *int {
	m := digitsRe.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// Keywords splits a keyword field on semicolons, falling back to commas
// when the field uses comma delimiters. Both delimiters normalize to the
// same slice, so re-splitting an already split list is a no-op.
func Keywords(s string) []string {
	cleaned := CleanText(s)
	if cleaned == "" {
		return nil
	}

	parts := strings.Split(cleaned, ";")
	if len(parts) == 1 {
		parts = strings.Split(cleaned, ",")
	}

	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		if kw := strings.TrimSpace(p); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		return nil
	}
	return keywords
}

// Error page markers the portal serves with a 200 status. Pages carrying
// one of these hold no records and should be retried, not cached.
var errorMarkers = []string{
	"beklenmeyen bir hata",
	"sistem hatası",
	"bir hata oluştu",
	"oturum zaman aşımı",
	"session expired",
	"an unexpected error",
}

// IsErrorPage reports whether the portal returned one of its soft error
// pages instead of results.
func IsErrorPage(pageHTML string) bool {
	lower := strings.ToLower(pageHTML)
	for _, marker := range errorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
