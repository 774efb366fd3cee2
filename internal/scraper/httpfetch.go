package scraper

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"

	"yoktez/tezworker/logger"
	"yoktez/tezworker/pkg/errors"
)

const (
	httpBackendName = "http"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// HTTPBackend drives the portal with plain form posts. The portal keys
// its session to a JSESSIONID cookie handed out on the search page, so
// the first request primes the cookie jar with a GET before any POST.
// Advanced search and the recent tab need script execution and are not
// supported here.
type HTTPBackend struct {
	client  *resty.Client
	baseURL string
	log     *logger.Logger

	primeMu sync.Mutex
	primed  bool
}

// NewHTTPBackend creates the HTTP transport backend.
func NewHTTPBackend(baseURL string, timeout time.Duration) *HTTPBackend {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	jar, _ := cookiejar.New(nil)

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(timeout)
	client.SetBaseURL(baseURL)
	client.SetHeader("User-Agent", defaultUserAgent)
	client.SetHeader("Accept-Language", "tr-TR,tr;q=0.9,en-US;q=0.8,en;q=0.7")
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	return &HTTPBackend{
		client:  client,
		baseURL: baseURL,
		log:     logger.ForBackend(httpBackendName),
	}
}

// Name implements Backend.Name
func (b *HTTPBackend) Name() string { return httpBackendName }

// Supports implements Backend.Supports
func (b *HTTPBackend) Supports(op Operation) bool {
	switch op {
	case OpSearch, OpDetail:
		return true
	}
	return false
}

// SubmitSearch implements Backend.SubmitSearch
func (b *HTTPBackend) SubmitSearch(ctx context.Context, form url.Values) (string, error) {
	return b.postForm(ctx, string(OpSearch), SearchPath, form)
}

// SubmitAdvanced implements Backend.SubmitAdvanced. The advanced tab
// builds its result table in page script, which a form post cannot run.
func (b *HTTPBackend) SubmitAdvanced(ctx context.Context, form url.Values) (string, error) {
	return "", errors.NewCapability(httpBackendName, string(OpAdvancedSearch),
		"advanced search requires a browser backend")
}

// FetchDetail implements Backend.FetchDetail
func (b *HTTPBackend) FetchDetail(ctx context.Context, thesisID string) (string, error) {
	form := url.Values{}
	form.Set("TezNo", thesisID)
	form.Set("-find", "Bul")
	form.Set("submitted", "1")
	return b.postForm(ctx, string(OpDetail), DetailPath, form)
}

// FetchRecent implements Backend.FetchRecent. The recent tab is rendered
// client side, so it needs the browser backend too.
func (b *HTTPBackend) FetchRecent(ctx context.Context, days int) (string, error) {
	return "", errors.NewCapability(httpBackendName, string(OpRecent),
		"recent listing requires a browser backend")
}

// Close implements Backend.Close
func (b *HTTPBackend) Close() error { return nil }

// prime latches only on success, so a transient failure or a cancelled
// context does not wedge every later request.
func (b *HTTPBackend) prime(ctx context.Context) error {
	b.primeMu.Lock()
	defer b.primeMu.Unlock()
	if b.primed {
		return nil
	}

	resp, err := b.client.R().SetContext(ctx).Get(SearchPath)
	if err != nil {
		return errors.NewTransport(httpBackendName, "prime", "session priming failed", err)
	}
	switch status := resp.StatusCode(); {
	case status >= 500:
		return errors.NewTransport(httpBackendName, "prime",
			"server error", errors.NewBadStatus(httpBackendName, "prime", status))
	case status != http.StatusOK:
		return errors.NewBadStatus(httpBackendName, "prime", status)
	}

	b.primed = true
	b.log.Debug().Msg("Session primed")
	return nil
}

func (b *HTTPBackend) postForm(ctx context.Context, op, path string, form url.Values) (string, error) {
	if err := b.prime(ctx); err != nil {
		return "", err
	}

	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("Referer", b.baseURL+SearchPath).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(form.Encode()).
		Post(path)
	if err != nil {
		return "", errors.NewTransport(httpBackendName, op, "request failed", err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusTooManyRequests || status == 430:
		return "", errors.NewRateLimit(httpBackendName, op, resp.Header().Get("Retry-After"))
	case status >= 500:
		return "", errors.NewTransport(httpBackendName, op,
			"server error", errors.NewBadStatus(httpBackendName, op, status))
	case status != http.StatusOK:
		return "", errors.NewBadStatus(httpBackendName, op, status)
	}

	return decodeBody(op, resp.Body(), resp.Header().Get("Content-Type"))
}

// decodeBody normalizes the response to UTF-8. The portal has served both
// UTF-8 and ISO-8859-9 depending on the page.
func decodeBody(op string, body []byte, contentType string) (string, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", errors.NewParse(httpBackendName, op, "charset detection failed", err)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", errors.NewParse(httpBackendName, op, "charset decoding failed", err)
	}
	return string(decoded), nil
}
