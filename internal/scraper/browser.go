package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"yoktez/tezworker/logger"
	"yoktez/tezworker/pkg/errors"
)

const browserBackendName = "browser"

// Page function for the search tabs: open the portal, switch to the
// requested tab, fill the form and return the rendered results document.
const tabScript = `
module.exports = async ({ page, context }) => {
  await page.setUserAgent(context.userAgent);
  await page.goto(context.url, { waitUntil: 'networkidle2', timeout: 30000 });
  await page.click('a[href="#' + context.tab + '"]');
  const tab = await page.$('#' + context.tab);
  for (const [name, value] of Object.entries(context.fields)) {
    const field = await tab.$('[name="' + name + '"]');
    if (!field) continue;
    const tag = await field.evaluate(el => el.tagName.toLowerCase());
    if (tag === 'select') {
      await field.select(value);
    } else {
      await field.click({ clickCount: 3 });
      await field.type(value);
    }
  }
  await Promise.all([
    page.waitForNavigation({ waitUntil: 'networkidle2', timeout: 30000 }),
    tab.$eval('input[type="submit"], button[type="submit"]', el => el.click()),
  ]);
  return { data: await page.content(), type: 'text/html' };
};
`

// Page function for detail lookup: search by thesis number, open the
// record's popup and return the page with the modal rendered.
const detailScript = `
module.exports = async ({ page, context }) => {
  await page.setUserAgent(context.userAgent);
  await page.goto(context.url, { waitUntil: 'networkidle2', timeout: 30000 });
  await page.click('a[href="#tabs-1"]');
  await page.type('[name="TezNo"]', context.thesisId);
  await Promise.all([
    page.waitForNavigation({ waitUntil: 'networkidle2', timeout: 30000 }),
    page.$eval('#tabs-1 input[type="submit"]', el => el.click()),
  ]);
  const row = await page.$('[onclick*="tezDetay"]');
  if (row) {
    await row.click();
    await page.waitForSelector('#dialog-modal', { timeout: 10000 }).catch(() => {});
  }
  return { data: await page.content(), type: 'text/html' };
};
`

// BrowserBackend drives a remote headless Chrome service through its
// /function endpoint. It supports every operation, including the tabs
// the portal renders with page script.
type BrowserBackend struct {
	client  *resty.Client
	addr    string
	baseURL string
	log     *logger.Logger
}

// NewBrowserBackend creates the browser transport backend and verifies
// the service is reachable.
func NewBrowserBackend(addr, baseURL string, timeout time.Duration) (*BrowserBackend, error) {
	if addr == "" {
		return nil, errors.NewConfiguration("browser service address is required", nil)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(addr, "/"))
	client.SetTimeout(timeout)

	b := &BrowserBackend{
		client:  client,
		addr:    addr,
		baseURL: baseURL,
		log:     logger.ForBackend(browserBackendName),
	}

	resp, err := client.R().Get("/pressure")
	if err != nil {
		return nil, errors.NewTransport(browserBackendName, "health", "browser service unreachable", err)
	}
	if resp.StatusCode() >= 500 {
		return nil, errors.NewBadStatus(browserBackendName, "health", resp.StatusCode())
	}
	b.log.Info().Str("addr", addr).Msg("Browser service connected")

	return b, nil
}

// Name implements Backend.Name
func (b *BrowserBackend) Name() string { return browserBackendName }

// Supports implements Backend.Supports
func (b *BrowserBackend) Supports(op Operation) bool { return true }

// SubmitSearch implements Backend.SubmitSearch
func (b *BrowserBackend) SubmitSearch(ctx context.Context, form url.Values) (string, error) {
	return b.runTab(ctx, string(OpSearch), "tabs-1", form)
}

// SubmitAdvanced implements Backend.SubmitAdvanced
func (b *BrowserBackend) SubmitAdvanced(ctx context.Context, form url.Values) (string, error) {
	return b.runTab(ctx, string(OpAdvancedSearch), "tabs-2", form)
}

// FetchDetail implements Backend.FetchDetail
func (b *BrowserBackend) FetchDetail(ctx context.Context, thesisID string) (string, error) {
	return b.runFunction(ctx, string(OpDetail), detailScript, map[string]interface{}{
		"url":       b.baseURL + SearchPath,
		"userAgent": defaultUserAgent,
		"thesisId":  thesisID,
	})
}

// FetchRecent implements Backend.FetchRecent
func (b *BrowserBackend) FetchRecent(ctx context.Context, days int) (string, error) {
	form := url.Values{}
	form.Set("gun", strconv.Itoa(days))
	return b.runTab(ctx, string(OpRecent), "tabs-3", form)
}

// Close implements Backend.Close
func (b *BrowserBackend) Close() error { return nil }

func (b *BrowserBackend) runTab(ctx context.Context, op, tab string, form url.Values) (string, error) {
	fields := make(map[string]string, len(form))
	for name := range form {
		fields[name] = form.Get(name)
	}
	// submit buttons are clicked, not posted
	delete(fields, "-find")
	delete(fields, "submitted")

	return b.runFunction(ctx, op, tabScript, map[string]interface{}{
		"url":       b.baseURL + SearchPath,
		"userAgent": defaultUserAgent,
		"tab":       tab,
		"fields":    fields,
	})
}

func (b *BrowserBackend) runFunction(ctx context.Context, op, script string, fnContext map[string]interface{}) (string, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"code":    script,
			"context": fnContext,
		}).
		Post("/function")
	if err != nil {
		return "", errors.NewTransport(browserBackendName, op, "browser service request failed", err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusTooManyRequests:
		return "", errors.NewRateLimit(browserBackendName, op, resp.Header().Get("Retry-After"))
	case status >= 500:
		return "", errors.NewTransport(browserBackendName, op,
			"browser service error", errors.NewBadStatus(browserBackendName, op, status))
	case status != http.StatusOK:
		return "", errors.NewBadStatus(browserBackendName, op, status)
	}

	return extractPageContent(op, resp.Body())
}

// extractPageContent unwraps the service response. Depending on the
// deployment the HTML arrives raw or wrapped in a JSON envelope under
// one of a few field names. The envelope is tried first: a raw page is
// never a JSON object, while an envelope's payload almost always
// contains HTML markers.
func extractPageContent(op string, body []byte) (string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err == nil {
		for _, field := range []string{"data", "content", "result", "html"} {
			value, ok := envelope[field]
			if !ok {
				continue
			}
			var page string
			if err := json.Unmarshal(value, &page); err == nil && looksLikeHTML(page) {
				return page, nil
			}
		}
		return "", errors.NewParse(browserBackendName, op, "browser response contains no HTML document", nil)
	}

	raw := string(body)
	if looksLikeHTML(raw) {
		return raw, nil
	}
	return "", errors.NewParse(browserBackendName, op, "browser response contains no HTML document", nil)
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range []string{"<html", "<!doctype", "<body", "<table", "<div"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
