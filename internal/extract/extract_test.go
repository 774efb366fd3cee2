package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yoktez/tezworker/internal/thesis"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Derin Öğrenme", CleanText("  Derin\n\t  Öğrenme  "))
	assert.Equal(t, `Ağ & "Model"`, CleanText("Ağ &amp; &quot;Model&quot;"))
	assert.Equal(t, "", CleanText("   \n\t "))
}

func TestYear(t *testing.T) {
	cases := map[string]*int{
		"(2023).":         intPtr(2023),
		"2019 / Doktora":  intPtr(2019),
		"tarih yok":       nil,
		"":                nil,
		"sayfa 123":       nil,
		"12345 ve 2021":   intPtr(2021),
		"1899":            nil,
		"2101":            nil,
	}
	for input, want := range cases {
		got := Year(input)
		if want == nil {
			assert.Nil(t, got, "input %q", input)
		} else {
			require.NotNil(t, got, "input %q", input)
			assert.Equal(t, *want, *got, "input %q", input)
		}
	}
}

func TestPageCount(t *testing.T) {
	require.NotNil(t, PageCount("145 s."))
	assert.Equal(t, 145, *PageCount("145 s."))
	assert.Nil(t, PageCount("bilinmiyor"))
	assert.Nil(t, PageCount("0"))
}

func TestKeywordsDelimiters(t *testing.T) {
	want := []string{"a", "b", "c"}
	assert.Equal(t, want, Keywords("a; b; c"))
	assert.Equal(t, want, Keywords("a, b, c"))
	// re-splitting a normalized list changes nothing
	assert.Equal(t, want, Keywords(strings.Join(Keywords("a; b; c"), "; ")))
	assert.Nil(t, Keywords("  "))
	assert.Equal(t, []string{"tek kelime"}, Keywords("tek kelime"))
}

const resultsPage = `
<html><body>
<table class="watable">
<tr><th>#</th><th>No</th><th>Yazar</th><th>Yıl</th><th>Ad</th><th>Tür</th><th>Konu</th></tr>
<tr>
  <td>1</td>
  <td><span onclick="tezDetay('700001','x')">700001</span></td>
  <td>AYŞE YILMAZ</td>
  <td>2020</td>
  <td>Derin öğrenme ile görüntü analizi<br><span>Image analysis with deep learning</span></td>
  <td>Yüksek Lisans</td>
  <td>Bilgisayar Mühendisliği</td>
</tr>
<tr>
  <td>2</td>
  <td>700002</td>
  <td>MEHMET KAYA</td>
  <td>(2021).</td>
  <td>Makine çevirisi</td>
  <td>Doktora</td>
  <td>Dilbilim</td>
</tr>
<tr>
  <td>3</td>
  <td>yok</td>
  <td>İSİMSİZ</td>
  <td>tarih yok</td>
  <td>Kayıp kayıt</td>
  <td>Yüksek Lisans</td>
  <td></td>
</tr>
</table>
</body></html>`

func TestResultsTable(t *testing.T) {
	doc := mustDoc(t, resultsPage)

	rows, dropped := Results(doc, 10)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, dropped)

	first := rows[0]
	assert.Equal(t, "700001", first.ID)
	assert.Equal(t, "AYŞE YILMAZ", first.Author)
	require.NotNil(t, first.Year)
	assert.Equal(t, 2020, *first.Year)
	assert.Equal(t, "Derin öğrenme ile görüntü analizi", first.Title)
	assert.Equal(t, "Image analysis with deep learning", first.TitleTranslated)
	assert.Equal(t, thesis.TypeMasters, first.Type)
	assert.Equal(t, "Bilgisayar Mühendisliği", first.Subject)

	second := rows[1]
	assert.Equal(t, "700002", second.ID)
	require.NotNil(t, second.Year)
	assert.Equal(t, 2021, *second.Year)
	assert.Equal(t, thesis.TypeDoctorate, second.Type)
	assert.Empty(t, second.TitleTranslated)
}

func TestResultsRespectsMax(t *testing.T) {
	doc := mustDoc(t, resultsPage)
	rows, _ := Results(doc, 1)
	require.Len(t, rows, 1)
	assert.Equal(t, "700001", rows[0].ID)
}

func TestResultsEveryRowHasID(t *testing.T) {
	doc := mustDoc(t, resultsPage)
	rows, _ := Results(doc, 10)
	for _, r := range rows {
		assert.NotEmpty(t, r.ID)
	}
}

func TestResultsFallbackTable(t *testing.T) {
	page := strings.Replace(resultsPage, `class="watable"`, `class="table-striped"`, 1)
	doc := mustDoc(t, page)
	rows, _ := Results(doc, 10)
	assert.Len(t, rows, 2)
}

func TestResultsNoTable(t *testing.T) {
	doc := mustDoc(t, "<html><body><p>Kayıt bulunamadı</p></body></html>")
	rows, dropped := Results(doc, 10)
	assert.Empty(t, rows)
	assert.Zero(t, dropped)
}

const embeddedRowsPage = `
<html><body><script>
var rows = [];
var doc = {userId:"800100", name:"FATMA DEMİR", age:"2022", weight:"Yapay sinir ağları<br><span>Artificial neural networks</span>", uni:"Ege Üniversitesi", height:"Türkçe", important:"Doktora", someDate:"İstatistik"};
rows.push(doc);
var doc = {userId:"800101", name:"ALİ VURAL", age:"2023", weight:"Kuantum hesaplama", uni:"Boğaziçi Üniversitesi", height:"İngilizce", important:"Yüksek Lisans", someDate:"Fizik"};
rows.push(doc);
</script></body></html>`

func TestEmbeddedRows(t *testing.T) {
	rows := EmbeddedRows(embeddedRowsPage)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "800100", first.ID)
	assert.Equal(t, "Yapay sinir ağları", first.Title)
	assert.Equal(t, "Artificial neural networks", first.TitleTranslated)
	assert.Equal(t, "FATMA DEMİR", first.Author)
	require.NotNil(t, first.Year)
	assert.Equal(t, 2022, *first.Year)
	assert.Equal(t, "Ege Üniversitesi", first.University)
	assert.Equal(t, "Türkçe", first.Language)
	assert.Equal(t, thesis.TypeDoctorate, first.Type)
	assert.Equal(t, "İstatistik", first.Subject)

	assert.Equal(t, thesis.TypeMasters, rows[1].Type)
}

func TestResultsFallsBackToEmbeddedRows(t *testing.T) {
	doc := mustDoc(t, embeddedRowsPage)
	rows, dropped := Results(doc, 1)
	require.Len(t, rows, 1)
	assert.Zero(t, dropped)
	assert.Equal(t, "800100", rows[0].ID)
}

const detailPage = `
<html><body>
<table class="bilgi">
<tr><td>Tez No</td><td>700001</td></tr>
<tr><td>Tez Adı:</td><td>Derin öğrenme ile görüntü analizi<br><span>Image analysis with deep learning</span></td></tr>
<tr><td>Yazar</td><td>AYŞE YILMAZ</td></tr>
<tr><td>Danışman</td><td>PROF. DR. KEMAL ARSLAN</td></tr>
<tr><td>Eş Danışman</td><td>DOÇ. DR. SEDA KORKMAZ</td></tr>
<tr><td>Yıl</td><td>2020</td></tr>
<tr><td>Üniversite</td><td>Hacettepe Üniversitesi</td></tr>
<tr><td>Enstitü</td><td>Fen Bilimleri Enstitüsü</td></tr>
<tr><td>Anabilim Dalı</td><td>Bilgisayar Mühendisliği</td></tr>
<tr><td>Tez Türü</td><td>Yüksek Lisans</td></tr>
<tr><td>Dil</td><td>Türkçe</td></tr>
<tr><td>Sayfa Sayısı</td><td>145</td></tr>
<tr><td>Anahtar Kelimeler</td><td>derin öğrenme; görüntü işleme; evrişimli ağlar</td></tr>
</table>
<div class="ozet">Bu çalışmada evrişimli sinir ağları incelenmiştir.</div>
</body></html>`

func TestDetail(t *testing.T) {
	doc := mustDoc(t, detailPage)

	d, found := Detail(doc, "700001")
	require.True(t, found)
	require.NotNil(t, d)

	assert.Equal(t, "700001", d.ID)
	assert.Equal(t, "Derin öğrenme ile görüntü analizi", d.Title)
	assert.Equal(t, "Image analysis with deep learning", d.TitleTranslated)
	assert.Equal(t, "AYŞE YILMAZ", d.Author)
	assert.Equal(t, "PROF. DR. KEMAL ARSLAN", d.Advisor)
	assert.Equal(t, "DOÇ. DR. SEDA KORKMAZ", d.CoAdvisor)
	require.NotNil(t, d.Year)
	assert.Equal(t, 2020, *d.Year)
	assert.Equal(t, "Hacettepe Üniversitesi", d.University)
	assert.Equal(t, "Fen Bilimleri Enstitüsü", d.Institute)
	assert.Equal(t, "Bilgisayar Mühendisliği", d.Department)
	assert.Equal(t, thesis.TypeMasters, d.Type)
	assert.Equal(t, "Türkçe", d.Language)
	require.NotNil(t, d.PageCount)
	assert.Equal(t, 145, *d.PageCount)
	assert.Equal(t, []string{"derin öğrenme", "görüntü işleme", "evrişimli ağlar"}, d.Keywords)
	assert.Equal(t, "Bu çalışmada evrişimli sinir ağları incelenmiştir.", d.Abstract)
}

func TestDetailNotFound(t *testing.T) {
	empty := `<html><body><table class="bilgi">
<tr><td>Tez No</td><td></td></tr>
<tr><td>Tez Adı</td><td></td></tr>
<tr><td>Yazar</td><td></td></tr>
</table></body></html>`
	doc := mustDoc(t, empty)

	d, found := Detail(doc, "999999")
	assert.False(t, found)
	assert.Nil(t, d)
}

const modalPage = `
<html><body>
<div id="dialog-modal">
<b>Kentsel dönüşüm ve toplumsal etki</b>
<p>Yazar: HASAN ÇELİK</p>
<p>Danışman: PROF. DR. NURAY AK</p>
<p>Yer Bilgisi: Ankara Üniversitesi / Sosyal Bilimler Enstitüsü / Sosyoloji</p>
<p>Dizin: Kentleşme</p>
</div>
</body></html>`

func TestDetailFromModal(t *testing.T) {
	doc := mustDoc(t, modalPage)

	d, found := Detail(doc, "700500")
	require.True(t, found)

	assert.Equal(t, "Kentsel dönüşüm ve toplumsal etki", d.Title)
	assert.Equal(t, "HASAN ÇELİK", d.Author)
	assert.Equal(t, "PROF. DR. NURAY AK", d.Advisor)
	assert.Equal(t, "Ankara Üniversitesi", d.University)
	assert.Equal(t, "Sosyal Bilimler Enstitüsü", d.Institute)
	assert.Equal(t, "Sosyoloji", d.Department)
	assert.Equal(t, "Kentleşme", d.Subject)
}

func TestIsErrorPage(t *testing.T) {
	assert.True(t, IsErrorPage("<html><body>Beklenmeyen bir hata oluştu</body></html>"))
	assert.True(t, IsErrorPage("<html>Session expired</html>"))
	assert.False(t, IsErrorPage(resultsPage))
}

func intPtr(v int) *int { return &v }
