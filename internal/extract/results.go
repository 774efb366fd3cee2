package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"yoktez/tezworker/internal/thesis"
)

// Result table selectors in order of likelihood. The portal's main layout
// uses watable; older templates and the printable view use the rest.
var resultTableSelectors = []string{
	"table.watable",
	"table.table-striped",
	"table.tablo",
	"#resulttable",
}

var (
	tezDetayRe = regexp.MustCompile(`tezDetay\('(\d+)'`)
	jsRowRe    = regexp.MustCompile(`(?s)var\s+doc\s*=\s*\{(.*?)\}\s*;\s*rows\.push\(doc\)`)
	jsPairRe   = regexp.MustCompile(`(\w+)\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// Results extracts summary rows from a search or recent-theses page. It
// returns at most max rows plus the number of rows dropped because no
// thesis id could be recovered. Rows from the HTML table win; when no
// known table matches, the embedded script rows are tried.
func Results(doc *goquery.Document, max int) ([]thesis.Summary, int) {
	rows, dropped := tableResults(doc, max)
	if len(rows) > 0 || dropped > 0 {
		return rows, dropped
	}

	pageHTML, err := doc.Html()
	if err != nil {
		return nil, 0
	}
	embedded := EmbeddedRows(pageHTML)
	if max > 0 && len(embedded) > max {
		embedded = embedded[:max]
	}
	return embedded, 0
}

func tableResults(doc *goquery.Document, max int) ([]thesis.Summary, int) {
	var table *goquery.Selection
	for _, selector := range resultTableSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			table = sel
			break
		}
	}
	if table == nil {
		return nil, 0
	}

	var summaries []thesis.Summary
	dropped := 0

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if max > 0 && len(summaries) >= max {
			return
		}

		cells := row.Find("td")
		if cells.Length() < 5 {
			// header or layout row
			return
		}

		summary, ok := rowSummary(row, cells)
		if !ok {
			dropped++
			return
		}
		summaries = append(summaries, summary)
	})

	return summaries, dropped
}

func rowSummary(row, cells *goquery.Selection) (thesis.Summary, bool) {
	id := rowThesisID(row, cells)
	if id == "" {
		return thesis.Summary{}, false
	}

	title, translated := splitTitleCell(cells.Eq(4))

	summary := thesis.Summary{
		ID:              id,
		Author:          CleanText(cells.Eq(2).Text()),
		Year:            Year(cells.Eq(3).Text()),
		Title:           title,
		TitleTranslated: translated,
		Type:            thesis.TypeFromLabel(cells.Eq(5).Text()),
	}
	if cells.Length() > 6 {
		summary.Subject = CleanText(cells.Eq(6).Text())
	}
	return summary, true
}

// rowThesisID recovers the id from the row's detail-popup onclick, falling
// back to the digits of the id cell.
func rowThesisID(row, cells *goquery.Selection) string {
	id := ""
	row.Find("[onclick]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		onclick, _ := el.Attr("onclick")
		if m := tezDetayRe.FindStringSubmatch(onclick); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	if id != "" {
		return id
	}

	text := CleanText(cells.Eq(1).Text())
	return digitsRe.FindString(text)
}

// splitTitleCell separates a title cell into the original title and the
// translated title the portal renders in a trailing span.
func splitTitleCell(cell *goquery.Selection) (title, translated string) {
	span := cell.Find("span").First()
	translated = CleanText(span.Text())

	clone := cell.Clone()
	clone.Find("span").Remove()
	title = CleanText(clone.Text())

	if title == "" && translated != "" {
		title, translated = translated, ""
	}
	return title, translated
}

// JS object keys the advanced-results script uses for each column. The
// names are misleading on purpose: name carries the author and weight
// carries the title markup.
var jsRowKeys = map[string]string{
	"userId":    "id",
	"name":      "author",
	"age":       "year",
	"weight":    "title",
	"uni":       "university",
	"height":    "language",
	"important": "type",
	"someDate":  "subject",
}

// EmbeddedRows extracts summaries from the script blocks the advanced
// results page builds its table from. Each row is pushed as a literal
// object; the field names are the page's own, unrelated to their content.
func EmbeddedRows(pageHTML string) []thesis.Summary {
	var summaries []thesis.Summary

	for _, block := range jsRowRe.FindAllStringSubmatch(pageHTML, -1) {
		fields := make(map[string]string)
		for _, pair := range jsPairRe.FindAllStringSubmatch(block[1], -1) {
			if name, ok := jsRowKeys[pair[1]]; ok {
				fields[name] = CleanText(unescapeJS(pair[2]))
			}
		}

		id := digitsRe.FindString(fields["id"])
		if id == "" {
			continue
		}

		title, translated := splitEmbeddedTitle(fields["title"])
		summaries = append(summaries, thesis.Summary{
			ID:              id,
			Title:           title,
			TitleTranslated: translated,
			Author:          fields["author"],
			Year:            Year(fields["year"]),
			University:      fields["university"],
			Language:        fields["language"],
			Type:            thesis.TypeFromLabel(fields["type"]),
			Subject:         fields["subject"],
		})
	}

	return summaries
}

var (
	brRe  = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagRe = regexp.MustCompile(`(?i)</?\w[^>]*>`)
)

// splitEmbeddedTitle handles title strings that carry the translated
// title after a <br>, usually wrapped in a span.
func splitEmbeddedTitle(s string) (title, translated string) {
	parts := brRe.Split(s, 2)
	if len(parts) == 2 {
		return CleanText(stripTags(parts[0])), CleanText(stripTags(parts[1]))
	}
	return CleanText(stripTags(s)), ""
}

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, " ")
}

func unescapeJS(s string) string {
	replacer := strings.NewReplacer(`\"`, `"`, `\'`, `'`, `\\`, `\`, `\/`, `/`, `\n`, " ", `\t`, " ")
	return replacer.Replace(s)
}
