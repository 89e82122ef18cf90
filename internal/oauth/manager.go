// Package oauth obtains and caches access tokens for the OAuth-protected
// export API, using the refresh grant and falling back to the device
// authorization flow.
package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/stanstork/stratum-etl/internal/etlerr"
)

const (
	deviceCodePath  = "/oauth/v3/device/code"
	deviceTokenPath = "/oauth/v3/device/token"
	refreshPath     = "/oauth/v2/token"
)

var errPending = errors.New("authorization pending")

type Config struct {
	ClientID     string
	ClientSecret string
	// AccountsURL is the authorization server base, e.g. https://accounts.zoho.in.
	AccountsURL  string
	Scope        string
	PollInterval time.Duration
	MaxAttempts  uint64
}

// Manager hands out access tokens. It is safe for concurrent use; only one
// caller talks to the authorization server at a time.
type Manager struct {
	cfg    Config
	store  TokenStore
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	token  *Token
	loaded bool
}

func NewManager(cfg Config, store TokenStore, client *http.Client, logger zerolog.Logger) *Manager {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 60
	}
	cfg.AccountsURL = strings.TrimRight(cfg.AccountsURL, "/")
	return &Manager{
		cfg:    cfg,
		store:  store,
		client: client,
		logger: logger.With().Str("component", "oauth").Logger(),
		now:    time.Now,
	}
}

// currentState loads the persisted token once and classifies it. The caller
// holds mu.
func (m *Manager) currentState() State {
	m.load()
	return m.token.StateAt(m.now())
}

// AccessToken returns a usable access token, refreshing or re-authorizing
// as needed. Every new token is persisted before it is returned.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.currentState()
	if state == HaveAccessToken {
		return m.token.AccessToken, nil
	}

	if state == HaveRefreshToken {
		tok, err := m.refresh(ctx, m.token.RefreshToken)
		if err == nil {
			return m.accept(tok)
		}
		m.logger.Warn().Err(err).Msg("Refresh token rejected, starting device authorization")
	}

	tok, err := m.deviceFlow(ctx)
	if err != nil {
		return "", err
	}
	return m.accept(tok)
}

func (m *Manager) load() {
	if m.loaded {
		return
	}
	m.loaded = true
	tok, err := m.store.Load()
	if err != nil {
		m.logger.Warn().Err(err).Msg("Ignoring unreadable token file")
		return
	}
	m.token = tok
}

func (m *Manager) accept(tok *Token) (string, error) {
	m.token = tok
	if err := m.store.Save(tok); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist token")
	}
	return tok.AccessToken, nil
}

type tokenResponse struct {
	Token
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (m *Manager) refresh(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{
		"refresh_token": {refreshToken},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"grant_type":    {"refresh_token"},
	}
	resp, err := m.postForm(ctx, m.cfg.AccountsURL+refreshPath, form)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, etlerr.New(etlerr.ErrProtocol, "refresh failed: %s", describe(resp))
	}

	tok := m.stamp(resp.Token)
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	m.logger.Info().Msg("Access token refreshed")
	return tok, nil
}

type deviceCodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURL         string `json:"verification_url"`
	VerificationURLComplete string `json:"verification_uri_complete"`
	Interval                int    `json:"interval"`
	Error                   string `json:"error"`
}

func (m *Manager) deviceFlow(ctx context.Context) (*Token, error) {
	q := url.Values{
		"scope":       {m.cfg.Scope},
		"client_id":   {m.cfg.ClientID},
		"grant_type":  {"device_request"},
		"access_type": {"offline"},
		"prompt":      {"consent"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.AccountsURL+deviceCodePath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.ErrConfig, err, "build device code request")
	}
	var dc deviceCodeResponse
	if err := m.do(req, &dc); err != nil {
		return nil, err
	}
	if dc.DeviceCode == "" {
		return nil, etlerr.New(etlerr.ErrProtocol, "device code request failed: %s", dc.Error)
	}

	link := dc.VerificationURLComplete
	if link == "" {
		link = dc.VerificationURL
	}
	m.logger.Warn().
		Str("verification_url", link).
		Str("user_code", dc.UserCode).
		Msg("Authorize API access by visiting the verification URL")

	return m.poll(ctx, dc.DeviceCode)
}

func (m *Manager) poll(ctx context.Context, deviceCode string) (*Token, error) {
	form := url.Values{
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"grant_type":    {"device_token"},
		"code":          {deviceCode},
	}

	backoff := retry.WithMaxRetries(m.cfg.MaxAttempts-1, retry.NewConstant(m.cfg.PollInterval))

	var tok *Token
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := m.postForm(ctx, m.cfg.AccountsURL+deviceTokenPath, form)
		if err != nil {
			return err
		}
		switch {
		case resp.AccessToken != "":
			tok = m.stamp(resp.Token)
			return nil
		case resp.Error == "authorization_pending" || resp.Error == "slow_down":
			m.logger.Debug().Str("status", resp.Error).Msg("Waiting for user authorization")
			return retry.RetryableError(errPending)
		default:
			return etlerr.New(etlerr.ErrProtocol, "token polling failed: %s", describe(resp))
		}
	})

	switch {
	case err == nil:
		m.logger.Info().Msg("Access token received")
		return tok, nil
	case errors.Is(err, errPending):
		return nil, etlerr.New(etlerr.ErrTimeout, "authorization not granted after %d attempts", m.cfg.MaxAttempts)
	case ctx.Err() != nil:
		return nil, etlerr.Wrap(etlerr.ErrTimeout, ctx.Err(), "device authorization aborted")
	default:
		return nil, err
	}
}

func (m *Manager) stamp(t Token) *Token {
	if t.ExpiresIn > 0 {
		t.Expiry = m.now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return &t
}

func (m *Manager) postForm(ctx context.Context, endpoint string, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, etlerr.Wrap(etlerr.ErrConfig, err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out tokenResponse
	if err := m.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends req and decodes a JSON body. Error payloads are decoded too since
// the authorization server reports grant errors in the body.
func (m *Manager) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := m.client.Do(req)
	if err != nil {
		return etlerr.Wrap(etlerr.ErrConnection, err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return etlerr.Wrap(etlerr.ErrConnection, err, "read %s", req.URL.Path)
	}
	if err := json.Unmarshal(body, out); err != nil {
		if resp.StatusCode >= 400 {
			return etlerr.New(etlerr.ErrConnection, "%s returned %d", req.URL.Path, resp.StatusCode)
		}
		return etlerr.Wrap(etlerr.ErrProtocol, err, "decode %s", req.URL.Path)
	}
	if resp.StatusCode >= 500 {
		return etlerr.New(etlerr.ErrConnection, "%s returned %d", req.URL.Path, resp.StatusCode)
	}
	return nil
}

func describe(r *tokenResponse) string {
	if r.ErrorDescription != "" {
		return r.Error + ": " + r.ErrorDescription
	}
	if r.Error != "" {
		return r.Error
	}
	return "no access token in response"
}
