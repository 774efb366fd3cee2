package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"yoktez/tezworker/internal/thesis"
)

// Detail table containers in order of likelihood.
var detailTableSelectors = []string{
	"table.bilgi",
	"div.thesis-detail table",
	"#iceriktablo",
	"table",
}

// Abstract containers tried before falling back to labeled rows.
var abstractSelectors = []string{
	".ozet",
	"#ozet",
	".abstract",
	"#abstract",
}

var abstractTextRe = regexp.MustCompile(`(?si)Özet\s*[:\n]\s*(.+?)(?:Abstract\b|$)`)

// Detail extracts the full record for a thesis from its detail page or
// popup modal. found is false when the page holds no record, which the
// portal signals by rendering the layout with every field blank.
func Detail(doc *goquery.Document, thesisID string) (*thesis.Detail, bool) {
	d := &thesis.Detail{}
	d.ID = thesisID

	fromLabeledRows(doc, d)
	if d.Title == "" && d.Author == "" {
		fromModal(doc, d)
	}
	if d.Abstract == "" {
		d.Abstract = abstractText(doc)
	}

	if d.Title == "" && d.Author == "" {
		return nil, false
	}
	return d, true
}

// fromLabeledRows walks label/value table rows. Label spellings vary
// slightly between the detail page and the popup, so matching is prefix
// based and case insensitive.
func fromLabeledRows(doc *goquery.Document, d *thesis.Detail) {
	var table *goquery.Selection
	for _, selector := range detailTableSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 && sel.Find("tr").Length() > 0 {
			table = sel
			break
		}
	}
	if table == nil {
		return
	}

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		label := normalizeLabel(cells.Eq(0).Text())
		if label == "" {
			return
		}
		applyLabel(d, label, cells.Eq(1))
	})
}

func applyLabel(d *thesis.Detail, label string, cell *goquery.Selection) {
	value := CleanText(cell.Text())
	if value == "" {
		return
	}
	switch {
	case labelIs(label, "tez no"):
		if d.ID == "" {
			d.ID = digitsRe.FindString(value)
		}
	case labelIs(label, "tez adı", "tez adi"):
		d.Title, d.TitleTranslated = splitTitleCell(cell)
	case labelIs(label, "yazar"):
		d.Author = value
	case labelIs(label, "eş danışman", "es danisman"):
		d.CoAdvisor = value
	case labelIs(label, "danışman", "danisman"):
		d.Advisor = value
	case labelIs(label, "yıl", "yil"):
		d.Year = Year(value)
	case labelIs(label, "üniversite", "universite"):
		d.University = value
	case labelIs(label, "enstitü", "enstitu"):
		d.Institute = value
	case labelIs(label, "anabilim dalı", "anabilim dali"):
		d.Department = value
	case labelIs(label, "tez türü", "tez turu"):
		d.Type = thesis.TypeFromLabel(value)
	case labelIs(label, "dil"):
		d.Language = value
	case labelIs(label, "sayfa"):
		d.PageCount = PageCount(value)
	case labelIs(label, "anahtar"):
		d.Keywords = Keywords(value)
	case labelIs(label, "konu", "dizin"):
		d.Subject = value
	case labelIs(label, "özet", "ozet"):
		d.Abstract = value
	case labelIs(label, "amaç", "amac"):
		d.Purpose = value
	}
}

// fromModal parses the popup's line oriented layout: the title in the
// heading, then "Yazar:", "Danışman:", "Yer Bilgisi:" and "Dizin:" lines.
func fromModal(doc *goquery.Document, d *thesis.Detail) {
	modal := doc.Find("#dialog-modal").First()
	if modal.Length() == 0 {
		modal = doc.Selection
	}

	if heading := CleanText(modal.Find("b, strong, h3, h4").First().Text()); heading != "" {
		d.Title, d.TitleTranslated = splitEmbeddedTitle(heading)
	}

	text := modal.Text()
	for _, line := range strings.Split(text, "\n") {
		line = CleanText(line)
		switch {
		case strings.HasPrefix(line, "Yazar:"):
			d.Author = CleanText(strings.TrimPrefix(line, "Yazar:"))
		case strings.HasPrefix(line, "Danışman:"):
			d.Advisor = CleanText(strings.TrimPrefix(line, "Danışman:"))
		case strings.HasPrefix(line, "Yer Bilgisi:"):
			applyPlace(d, strings.TrimPrefix(line, "Yer Bilgisi:"))
		case strings.HasPrefix(line, "Dizin:"):
			d.Subject = CleanText(strings.TrimPrefix(line, "Dizin:"))
		}
	}
}

// applyPlace splits a "university / institute / department" line.
func applyPlace(d *thesis.Detail, place string) {
	parts := strings.Split(place, "/")
	if len(parts) > 0 {
		d.University = CleanText(parts[0])
	}
	if len(parts) > 1 {
		d.Institute = CleanText(parts[1])
	}
	if len(parts) > 2 {
		d.Department = CleanText(parts[2])
	}
}

func abstractText(doc *goquery.Document) string {
	for _, selector := range abstractSelectors {
		if text := CleanText(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}

	if m := abstractTextRe.FindStringSubmatch(doc.Text()); m != nil {
		return CleanText(m[1])
	}
	return ""
}

func normalizeLabel(s string) string {
	label := CleanText(s)
	label = strings.TrimSuffix(label, ":")
	return strings.TrimSpace(label)
}

func labelIs(label string, candidates ...string) bool {
	lower := strings.ToLower(label)
	for _, c := range candidates {
		if strings.HasPrefix(lower, c) {
			return true
		}
	}
	return false
}
