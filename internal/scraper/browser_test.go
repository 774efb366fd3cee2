package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yoktez/tezworker/pkg/errors"
)

type functionCall struct {
	Code    string                 `json:"code"`
	Context map[string]interface{} `json:"context"`
}

func newBrowserService(t *testing.T, handle func(call functionCall, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pressure":
			w.Write([]byte(`{"pressure":{"isAvailable":true}}`))
		case "/function":
			var call functionCall
			require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
			handle(call, w)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestBrowserBackendRequiresAddress(t *testing.T) {
	_, err := NewBrowserBackend("", "", 0)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
}

func TestBrowserBackendHealthCheckFails(t *testing.T) {
	_, err := NewBrowserBackend("http://127.0.0.1:1", "", time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}

func TestBrowserBackendSupportsEverything(t *testing.T) {
	server := newBrowserService(t, func(call functionCall, w http.ResponseWriter) {})
	defer server.Close()

	b, err := NewBrowserBackend(server.URL, "", time.Second)
	require.NoError(t, err)

	for _, op := range []Operation{OpSearch, OpAdvancedSearch, OpDetail, OpRecent} {
		assert.True(t, b.Supports(op))
	}
}

func TestBrowserBackendSubmitSearch(t *testing.T) {
	var got functionCall
	server := newBrowserService(t, func(call functionCall, w http.ResponseWriter) {
		got = call
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><table class='watable'></table></body></html>"))
	})
	defer server.Close()

	b, err := NewBrowserBackend(server.URL, "", 5*time.Second)
	require.NoError(t, err)

	form := url.Values{}
	form.Set("TezAd", "yapay zeka")
	form.Set("-find", "Bul")
	form.Set("submitted", "1")

	page, err := b.SubmitSearch(context.Background(), form)
	require.NoError(t, err)
	assert.Contains(t, page, "watable")

	assert.Contains(t, got.Code, "page.goto")
	assert.Equal(t, "tabs-1", got.Context["tab"])
	fields, ok := got.Context["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "yapay zeka", fields["TezAd"])
	// button params are clicked by the script, never typed
	assert.NotContains(t, fields, "-find")
	assert.NotContains(t, fields, "submitted")
}

func TestBrowserBackendAdvancedUsesSecondTab(t *testing.T) {
	var got functionCall
	server := newBrowserService(t, func(call functionCall, w http.ResponseWriter) {
		got = call
		w.Write([]byte("<html><body></body></html>"))
	})
	defer server.Close()

	b, err := NewBrowserBackend(server.URL, "", 5*time.Second)
	require.NoError(t, err)

	_, err = b.SubmitAdvanced(context.Background(), url.Values{"keyword": {"a"}})
	require.NoError(t, err)
	assert.Equal(t, "tabs-2", got.Context["tab"])
}

func TestBrowserBackendRecentUsesThirdTab(t *testing.T) {
	var got functionCall
	server := newBrowserService(t, func(call functionCall, w http.ResponseWriter) {
		got = call
		w.Write([]byte("<html><body></body></html>"))
	})
	defer server.Close()

	b, err := NewBrowserBackend(server.URL, "", 5*time.Second)
	require.NoError(t, err)

	_, err = b.FetchRecent(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "tabs-3", got.Context["tab"])
	fields := got.Context["fields"].(map[string]interface{})
	assert.Equal(t, "7", fields["gun"])
}

func TestBrowserBackendDetailScript(t *testing.T) {
	var got functionCall
	server := newBrowserService(t, func(call functionCall, w http.ResponseWriter) {
		got = call
		w.Write([]byte("<html><body><div id='dialog-modal'></div></body></html>"))
	})
	defer server.Close()

	b, err := NewBrowserBackend(server.URL, "", 5*time.Second)
	require.NoError(t, err)

	page, err := b.FetchDetail(context.Background(), "700001")
	require.NoError(t, err)
	assert.Contains(t, page, "dialog-modal")
	assert.Equal(t, "700001", got.Context["thesisId"])
	assert.Contains(t, got.Code, "dialog-modal")
}

func TestBrowserBackendJSONEnvelope(t *testing.T) {
	server := newBrowserService(t, func(call functionCall, w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"data": "<html><body>enveloped</body></html>",
		})
	})
	defer server.Close()

	b, err := NewBrowserBackend(server.URL, "", 5*time.Second)
	require.NoError(t, err)

	page, err := b.SubmitSearch(context.Background(), url.Values{"keyword": {"x"}})
	require.NoError(t, err)
	assert.Equal(t, "<html><body>enveloped</body></html>", page)
}

func TestBrowserBackendRejectsNonHTML(t *testing.T) {
	server := newBrowserService(t, func(call functionCall, w http.ResponseWriter) {
		w.Write([]byte(`{"error":"no result"}`))
	})
	defer server.Close()

	b, err := NewBrowserBackend(server.URL, "", 5*time.Second)
	require.NoError(t, err)

	_, err = b.SubmitSearch(context.Background(), url.Values{"keyword": {"x"}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}

func TestExtractPageContent(t *testing.T) {
	page, err := extractPageContent("search", []byte("<html><body>raw</body></html>"))
	require.NoError(t, err)
	assert.Equal(t, "<html><body>raw</body></html>", page)

	page, err = extractPageContent("search", []byte(`{"content":"<div>wrapped</div>"}`))
	require.NoError(t, err)
	assert.Equal(t, "<div>wrapped</div>", page)

	// the envelope must be unwrapped even though the raw body itself
	// contains HTML markers inside the JSON string
	page, err = extractPageContent("search", []byte(`{"data":"<html><body><table class=\"watable\"></table></body></html>"}`))
	require.NoError(t, err)
	assert.Equal(t, `<html><body><table class="watable"></table></body></html>`, page)

	_, err = extractPageContent("search", []byte(`{"data":"plain text"}`))
	assert.Error(t, err)
}
