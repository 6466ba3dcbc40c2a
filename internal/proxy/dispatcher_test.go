package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keyrelay/keyrelay/internal/clients/oauth"
	"github.com/keyrelay/keyrelay/internal/common"
	"github.com/keyrelay/keyrelay/internal/interfaces"
	"github.com/keyrelay/keyrelay/internal/models"
)

func newTestDispatcher(t *testing.T, store interfaces.StorageManager) *Dispatcher {
	t.Helper()
	return NewDispatcher(store, oauth.NewClient(), common.NewSilentLogger(), 5*time.Second)
}

func saveProject(t *testing.T, store interfaces.StorageManager, id string, active bool) {
	t.Helper()
	err := store.Projects().Save(context.Background(), &models.Project{
		ID: id, Name: id, Type: models.ProjectTypeWeb, Active: active,
	})
	if err != nil {
		t.Fatalf("Save project: %v", err)
	}
}

func setSecret(t *testing.T, store interfaces.StorageManager, projectID, name, value string) {
	t.Helper()
	if err := store.Secrets().Set(context.Background(), projectID, name, value); err != nil {
		t.Fatalf("Set secret %s: %v", name, err)
	}
}

func proxyRequest(d *Dispatcher, projectID, method, targetURL, body string) *httptest.ResponseRecorder {
	path := "/proxy/" + projectID
	if targetURL != "" {
		path += "?target_url=" + url.QueryEscape(targetURL)
	}
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("User-Agent", "dispatcher-test")
	rec := httptest.NewRecorder()
	d.Dispatch(rec, req, projectID)
	return rec
}

func TestDispatch_ProjectNotFoundOrInactive(t *testing.T) {
	store := newTestStorage(t)
	d := newTestDispatcher(t, store)

	rec := proxyRequest(d, "missing", http.MethodGet, "https://api.example.com/x", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing project: status = %d", rec.Code)
	}

	saveProject(t, store, "inactive-app", false)
	rec = proxyRequest(d, "inactive-app", http.MethodGet, "https://api.example.com/x", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("inactive project: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Project not found or inactive") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestDispatch_BadTargetURL(t *testing.T) {
	store := newTestStorage(t)
	d := newTestDispatcher(t, store)
	saveProject(t, store, "p1", true)

	rec := proxyRequest(d, "p1", http.MethodGet, "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing target_url: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Missing target_url") {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = proxyRequest(d, "p1", http.MethodGet, "/relative/path", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("relative target_url: status = %d", rec.Code)
	}
}

func TestDispatch_LegacyHeaderInjection(t *testing.T) {
	var gotHeaders http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	store := newTestStorage(t)
	d := newTestDispatcher(t, store)
	saveProject(t, store, "p1", true)
	setSecret(t, store, "p1", "header_x-api-key", "v")
	setSecret(t, store, "p1", "unrelated", "ignored")

	req := httptest.NewRequest(http.MethodGet,
		"/proxy/p1?target_url="+url.QueryEscape(upstream.URL+"/v1/data"), nil)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	rec := httptest.NewRecorder()
	d.Dispatch(rec, req, "p1")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"ok":true}` {
		t.Errorf("body = %s", rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q", got)
	}

	if got := gotHeaders.Get("x-api-key"); got != "v" {
		t.Errorf("upstream x-api-key = %q", got)
	}
	if got := gotHeaders.Get("Accept"); got != "application/json" {
		t.Errorf("Accept not forwarded: %q", got)
	}
	if got := gotHeaders.Get("X-Forwarded-For"); got != "" {
		t.Errorf("forwarding header leaked upstream: %q", got)
	}
}

func TestDispatch_QueryParamInjection(t *testing.T) {
	var gotQuery url.Values
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	store := newTestStorage(t)
	d := newTestDispatcher(t, store)
	saveProject(t, store, "p1", true)
	setSecret(t, store, "p1", "api_key", "k1")

	err := store.Configs().Set(context.Background(), "p1", "127.0.0.1", &models.APIAuthConfig{
		AuthType: models.AuthTypeQueryParam, SecretKey: "api_key", Param: "api_key",
	})
	if err != nil {
		t.Fatalf("Set config: %v", err)
	}

	rec := proxyRequest(d, "p1", http.MethodGet, upstream.URL+"/v1/data?limit=10&offset=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	if gotQuery.Get("api_key") != "k1" {
		t.Errorf("api_key = %q", gotQuery.Get("api_key"))
	}
	if gotQuery.Get("limit") != "10" || gotQuery.Get("offset") != "5" {
		t.Errorf("original query not preserved: %v", gotQuery)
	}
}

// oauthFixture wires an upstream that rejects everything but the fresh
// token, plus a token endpoint, behind an oauth config for the upstream host.
type oauthFixture struct {
	store         interfaces.StorageManager
	dispatcher    *Dispatcher
	upstream      *httptest.Server
	upstreamCalls *atomic.Int32
	tokenCalls    *atomic.Int32
	authSeen      []string
	bodiesSeen    []string
}

func newOAuthFixture(t *testing.T, tokenStatus int, tokenBody string, upstreamAccepts string) *oauthFixture {
	t.Helper()

	f := &oauthFixture{
		store:         newTestStorage(t),
		upstreamCalls: &atomic.Int32{},
		tokenCalls:    &atomic.Int32{},
	}
	f.dispatcher = newTestDispatcher(t, f.store)

	f.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.upstreamCalls.Add(1)
		f.authSeen = append(f.authSeen, r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		f.bodiesSeen = append(f.bodiesSeen, string(body))

		if upstreamAccepts != "" && r.Header.Get("Authorization") == "Bearer "+upstreamAccepts {
			w.Write([]byte(`{"ok":true}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(f.upstream.Close)

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		w.WriteHeader(tokenStatus)
		w.Write([]byte(tokenBody))
	}))
	t.Cleanup(tokenServer.Close)

	saveProject(t, f.store, "p2", true)
	setSecret(t, f.store, "p2", "cid", "X")
	setSecret(t, f.store, "p2", "csec", "Y")
	setSecret(t, f.store, "p2", "access_tok", "old")

	err := f.store.Configs().Set(context.Background(), "p2", "127.0.0.1", &models.APIAuthConfig{
		AuthType:                models.AuthTypeOAuth,
		SecretKey:               "access_tok",
		OAuthTokenURL:           tokenServer.URL,
		OAuthClientIDSecret:     "cid",
		OAuthClientSecretSecret: "csec",
	})
	if err != nil {
		t.Fatalf("Set config: %v", err)
	}
	return f
}

func TestDispatch_OAuthRetrySuccess(t *testing.T) {
	f := newOAuthFixture(t, http.StatusOK, `{"access_token":"new","expires_in":60}`, "new")

	rec := proxyRequest(f.dispatcher, "p2", http.MethodPost, f.upstream.URL+"/api/data", `{"q":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"ok":true}` {
		t.Errorf("body = %s", rec.Body.String())
	}

	if n := f.upstreamCalls.Load(); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
	if f.authSeen[0] != "Bearer old" || f.authSeen[1] != "Bearer new" {
		t.Errorf("Authorization sequence = %v", f.authSeen)
	}
	if f.bodiesSeen[0] != `{"q":1}` || f.bodiesSeen[1] != `{"q":1}` {
		t.Errorf("body not re-sent on retry: %v", f.bodiesSeen)
	}

	ctx := context.Background()
	secret, err := f.store.Secrets().Get(ctx, "p2", "access_tok")
	if err != nil || secret.Value != "new" {
		t.Errorf("stored token = %+v, %v", secret, err)
	}

	meta, err := f.store.TokenMeta().Get(ctx, "p2", "access_tok")
	if err != nil {
		t.Fatalf("token meta: %v", err)
	}
	if meta.ExpiresAt <= meta.RefreshedAt {
		t.Errorf("meta = %+v", meta)
	}
}

func TestDispatch_OAuthRefreshFailureRelaysOriginal401(t *testing.T) {
	f := newOAuthFixture(t, http.StatusBadRequest, `{"error":"invalid_client"}`, "")

	rec := proxyRequest(f.dispatcher, "p2", http.MethodGet, f.upstream.URL+"/api/data", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if n := f.upstreamCalls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1 (no retry)", n)
	}

	// Token was not overwritten.
	secret, err := f.store.Secrets().Get(context.Background(), "p2", "access_tok")
	if err != nil || secret.Value != "old" {
		t.Errorf("stored token = %+v, %v", secret, err)
	}
}

func TestDispatch_NoDoubleRetry(t *testing.T) {
	// Upstream never accepts any token, refresh always succeeds.
	f := newOAuthFixture(t, http.StatusOK, `{"access_token":"new","expires_in":60}`, "")

	rec := proxyRequest(f.dispatcher, "p2", http.MethodGet, f.upstream.URL+"/api/data", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want the retried 401 relayed", rec.Code)
	}
	if n := f.upstreamCalls.Load(); n != 2 {
		t.Errorf("upstream calls = %d, want exactly 2", n)
	}
	if n := f.tokenCalls.Load(); n != 1 {
		t.Errorf("token endpoint calls = %d, want exactly 1", n)
	}
}

func TestDispatch_UpstreamErrorRelayedTransparently(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer upstream.Close()

	store := newTestStorage(t)
	d := newTestDispatcher(t, store)
	saveProject(t, store, "p1", true)

	rec := proxyRequest(d, "p1", http.MethodGet, upstream.URL+"/x", "")
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want upstream status relayed", rec.Code)
	}
}

func TestDispatch_TransportFailureIs500(t *testing.T) {
	store := newTestStorage(t)
	d := newTestDispatcher(t, store)
	saveProject(t, store, "p1", true)

	// Nothing listens here.
	rec := proxyRequest(d, "p1", http.MethodGet, "http://127.0.0.1:1/x", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if body["error"] != "Proxy request failed" {
		t.Errorf("error = %q, internals must not leak", body["error"])
	}
}

func TestDispatch_WritesRequestLog(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	store := newTestStorage(t)
	d := newTestDispatcher(t, store)
	saveProject(t, store, "p1", true)

	rec := proxyRequest(d, "p1", http.MethodGet, upstream.URL+"/v1/data", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	// The log write is fire-and-forget; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := store.Logs().List(context.Background(), "p1", 0)
		if err == nil && len(entries) == 1 {
			entry := entries[0]
			if entry.Method != "GET" || entry.Status != 200 || entry.Path != "/v1/data" ||
				entry.UserAgent != "dispatcher-test" {
				t.Errorf("log entry = %+v", entry)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("log entry never appeared (%d entries, err %v)", len(entries), err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSanitizeHeaders(t *testing.T) {
	in := http.Header{}
	in.Set("Accept", "application/json")
	in.Set("Cf-Connecting-Ip", "1.2.3.4")
	in.Set("X-Real-Ip", "1.2.3.4")
	in.Set("Connection", "keep-alive")

	out := sanitizeHeaders(in)
	if out.Get("Accept") != "application/json" {
		t.Errorf("Accept dropped")
	}
	for _, name := range []string{"Cf-Connecting-Ip", "X-Real-Ip", "Connection"} {
		if out.Get(name) != "" {
			t.Errorf("%s not stripped", name)
		}
	}
	// The original is untouched.
	if in.Get("Connection") != "keep-alive" {
		t.Error("sanitizeHeaders mutated its input")
	}
}
