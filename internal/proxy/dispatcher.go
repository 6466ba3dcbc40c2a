package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/keyrelay/keyrelay/internal/clients/oauth"
	"github.com/keyrelay/keyrelay/internal/common"
	"github.com/keyrelay/keyrelay/internal/interfaces"
	"github.com/keyrelay/keyrelay/internal/models"
)

// strippedHeaders never reach the upstream: hop-by-hop headers plus
// anything that identifies the proxy hop or the original client address.
var strippedHeaders = []string{
	"Host",
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Accept-Encoding",
	"Content-Length",
	"X-Forwarded-For",
	"X-Forwarded-Proto",
	"X-Forwarded-Host",
	"X-Real-Ip",
	"True-Client-Ip",
	"Cf-Connecting-Ip",
	"Cf-Ray",
	"Cf-Visitor",
	"Cf-Ipcountry",
}

// Dispatcher orchestrates one proxy call end-to-end: resolve project, load
// secrets, inject auth, call upstream, retry once on 401 for oauth configs,
// relay the final response, and log the outcome.
type Dispatcher struct {
	projects   interfaces.ProjectStore
	secrets    interfaces.SecretStore
	resolver   *Resolver
	tokens     *TokenManager
	logs       interfaces.LogStore
	httpClient *http.Client
	logger     *common.Logger
}

// NewDispatcher wires a Dispatcher over the storage manager. The token
// client performs OAuth exchanges; upstreamTimeout bounds each proxied call.
func NewDispatcher(storage interfaces.StorageManager, tokenClient *oauth.Client, logger *common.Logger, upstreamTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		projects: storage.Projects(),
		secrets:  storage.Secrets(),
		resolver: NewResolver(storage.Configs(), logger),
		tokens:   NewTokenManager(tokenClient, storage.Secrets(), storage.TokenMeta(), logger),
		logs:     storage.Logs(),
		httpClient: &http.Client{
			Timeout: upstreamTimeout,
		},
		logger: logger,
	}
}

// Dispatch handles ANY /proxy/{projectID}?target_url=... for one request.
func (d *Dispatcher) Dispatch(w http.ResponseWriter, r *http.Request, projectID string) {
	ctx := r.Context()

	project, err := d.projects.Get(ctx, projectID)
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		d.logger.Error().Str("project_id", projectID).Err(err).Msg("Project lookup failed")
		d.fail(w, r, projectID, "", http.StatusInternalServerError)
		return
	}
	if err != nil || !project.Active {
		d.respondError(w, http.StatusNotFound, "Project not found or inactive")
		d.logRequest(projectID, r.Method, r.URL.Path, http.StatusNotFound, r.UserAgent())
		return
	}

	rawTarget := r.URL.Query().Get("target_url")
	if rawTarget == "" {
		d.respondError(w, http.StatusBadRequest, "Missing target_url parameter")
		d.logRequest(projectID, r.Method, r.URL.Path, http.StatusBadRequest, r.UserAgent())
		return
	}

	target, err := url.Parse(rawTarget)
	if err != nil || !target.IsAbs() || target.Host == "" {
		d.respondError(w, http.StatusBadRequest, "Invalid target_url")
		d.logRequest(projectID, r.Method, r.URL.Path, http.StatusBadRequest, r.UserAgent())
		return
	}

	secrets, err := d.secrets.GetAll(ctx, projectID)
	if err != nil {
		d.logger.Error().Str("project_id", projectID).Err(err).Msg("Secret load failed")
		d.fail(w, r, projectID, target.Path, http.StatusInternalServerError)
		return
	}

	// Stored configs are keyed by lowercase domain, URL hostnames may not be.
	cfg := d.resolver.Resolve(ctx, projectID, strings.ToLower(target.Hostname()))

	var body []byte
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Body != nil {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			d.logger.Error().Str("project_id", projectID).Err(err).Msg("Failed to read request body")
			d.fail(w, r, projectID, target.Path, http.StatusInternalServerError)
			return
		}
	}

	resp, err := d.callUpstream(ctx, r, target, secrets, cfg, body)
	if err != nil {
		d.logger.Error().Str("project_id", projectID).Str("target", target.Host).Err(err).Msg("Upstream call failed")
		d.fail(w, r, projectID, target.Path, http.StatusInternalServerError)
		return
	}

	// Exactly one retry, and only for an oauth config answered with 401.
	if resp.StatusCode == http.StatusUnauthorized && cfg != nil && cfg.AuthType == models.AuthTypeOAuth {
		if retried := d.retryWithFreshToken(ctx, r, projectID, target, cfg, body); retried != nil {
			resp.Body.Close()
			resp = retried
		}
	}
	defer resp.Body.Close()

	d.relay(w, resp)
	d.logRequest(projectID, r.Method, target.Path, resp.StatusCode, r.UserAgent())
}

// callUpstream builds and performs one outbound request. The target URL and
// inbound headers are copied fresh on every call so a retry starts from the
// original request, not an already-mutated one.
func (d *Dispatcher) callUpstream(ctx context.Context, r *http.Request, target *url.URL, secrets map[string]models.SecretValue, cfg *models.APIAuthConfig, body []byte) (*http.Response, error) {
	outURL := *target
	headers := sanitizeHeaders(r.Header)
	InjectAuth(headers, &outURL, secrets, cfg)

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, outURL.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header = headers

	return d.httpClient.Do(req)
}

// retryWithFreshToken refreshes the access token and performs the single
// retried upstream call. A nil return means the caller should relay the
// original 401 unchanged.
func (d *Dispatcher) retryWithFreshToken(ctx context.Context, r *http.Request, projectID string, target *url.URL, cfg *models.APIAuthConfig, body []byte) *http.Response {
	secrets, err := d.secrets.GetAll(ctx, projectID)
	if err != nil {
		d.logger.Warn().Str("project_id", projectID).Err(err).Msg("Secret reload before refresh failed")
		return nil
	}

	if _, err := d.tokens.Refresh(ctx, projectID, cfg, secrets); err != nil {
		d.logger.Warn().Str("project_id", projectID).Err(err).Msg("OAuth refresh failed, relaying original 401")
		return nil
	}

	// Reload again to pick up the freshly written token.
	secrets, err = d.secrets.GetAll(ctx, projectID)
	if err != nil {
		d.logger.Warn().Str("project_id", projectID).Err(err).Msg("Secret reload after refresh failed")
		return nil
	}

	resp, err := d.callUpstream(ctx, r, target, secrets, cfg, body)
	if err != nil {
		d.logger.Warn().Str("project_id", projectID).Err(err).Msg("Retried upstream call failed, relaying original 401")
		return nil
	}
	return resp
}

// relay copies the final upstream response to the caller with CORS attached.
func (d *Dispatcher) relay(w http.ResponseWriter, resp *http.Response) {
	for key, values := range resp.Header {
		if key == "Connection" || key == "Keep-Alive" || key == "Transfer-Encoding" {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	setCORSHeaders(w.Header())
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// fail responds 500 without leaking internal detail, and still logs the call.
func (d *Dispatcher) fail(w http.ResponseWriter, r *http.Request, projectID, path string, status int) {
	if path == "" {
		path = r.URL.Path
	}
	d.respondError(w, status, "Proxy request failed")
	d.logRequest(projectID, r.Method, path, status, r.UserAgent())
}

func (d *Dispatcher) respondError(w http.ResponseWriter, status int, message string) {
	setCORSHeaders(w.Header())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// logRequest appends the call record fire-and-forget: a failed write is
// logged and never affects the relayed response.
func (d *Dispatcher) logRequest(projectID, method, path string, status int, userAgent string) {
	entry := &models.LogEntry{
		ProjectID: projectID,
		Timestamp: time.Now(),
		Method:    method,
		Path:      path,
		Status:    status,
		UserAgent: userAgent,
	}
	go func() {
		if err := d.logs.Append(context.Background(), entry); err != nil {
			d.logger.Warn().Str("project_id", projectID).Err(err).Msg("Request log write failed")
		}
	}()
}

func sanitizeHeaders(in http.Header) http.Header {
	out := in.Clone()
	for _, name := range strippedHeaders {
		out.Del(name)
	}
	return out
}

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}
