package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"biopaper-tutor/internal/domain"
)

const (
	authorizePath = "/oauth/authorize"
	tokenPath     = "/auth/oauth/token"
	userinfoPath  = "/auth/oauth/userinfo"
	clientsPath   = "/auth/oauth/clients"
)

// Alias de campos que distintos proveedores usan para el mismo dato.
// Gana el primero no vacío.
var (
	idAliases     = []string{"sub", "_id", "id", "user_id"}
	nameAliases   = []string{"name", "username", "display_name"}
	avatarAliases = []string{"picture", "avatar", "avatar_url"}
)

// Provider habla con la autoridad OAuth remota. No reintenta: el caller decide.
type Provider struct {
	baseURL      string
	clientID     string
	clientSecret string
	scopes       []string
	httpClient   *http.Client
	logger       *zap.Logger
}

type Option func(*Provider)

func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

func NewProvider(baseURL, clientID, clientSecret string, scopes []string, logger *zap.Logger, opts ...Option) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		scopes:       scopes,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configured indica si hay credenciales de cliente para el flujo authorization_code.
func (p *Provider) Configured() bool {
	return p.clientID != "" && p.clientSecret != ""
}

func (p *Provider) BaseURL() string  { return p.baseURL }
func (p *Provider) ClientID() string { return p.clientID }

func (p *Provider) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       p.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.baseURL + authorizePath,
			TokenURL:  p.baseURL + tokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// AuthorizeURL arma la URL a la que el popup redirige al usuario.
func (p *Provider) AuthorizeURL(redirectURI, state string) string {
	return p.oauthConfig(redirectURI).AuthCodeURL(state)
}

// ExchangeCodeForSession canjea el código y resuelve el perfil normalizado.
func (p *Provider) ExchangeCodeForSession(ctx context.Context, code, redirectURI string) (domain.User, domain.Tokens, error) {
	if strings.TrimSpace(code) == "" {
		return domain.User{}, domain.Tokens{}, domain.Validation("missing authorization code")
	}
	if !p.Configured() {
		return domain.User{}, domain.Tokens{}, domain.Configuration("OAuth configuration incomplete: OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET are required")
	}

	tokens, err := p.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return domain.User{}, domain.Tokens{}, err
	}
	p.logger.Info("oauth token obtained",
		zap.String("token_type", tokens.TokenType),
		zap.Int64("expires_in", tokens.ExpiresIn),
	)

	user, err := p.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return domain.User{}, domain.Tokens{}, err
	}
	p.logger.Info("oauth profile resolved", zap.String("user_id", user.ID))
	return user, tokens, nil
}

// ExchangeCode llama al token endpoint con grant_type=authorization_code.
func (p *Provider) ExchangeCode(ctx context.Context, code, redirectURI string) (domain.Tokens, error) {
	tok, err := p.oauthConfig(redirectURI).Exchange(p.clientContext(ctx), code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			p.logger.Warn("oauth token exchange rejected",
				zap.Int("status", re.Response.StatusCode),
				zap.String("body", string(re.Body)),
			)
			return domain.Tokens{}, &TokenExchangeError{StatusCode: re.Response.StatusCode, Body: string(re.Body), Err: err}
		}
		p.logger.Warn("oauth token exchange failed", zap.Error(err))
		return domain.Tokens{}, &TokenExchangeError{Err: err}
	}
	return domain.Tokens{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresIn:   expiresIn(tok),
	}, nil
}

func expiresIn(tok *oauth2.Token) int64 {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	if tok.Expiry.IsZero() {
		return 0
	}
	return int64(time.Until(tok.Expiry).Round(time.Second).Seconds())
}

// FetchProfile consulta userinfo con el bearer token y normaliza la respuesta.
func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (domain.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+userinfoPath, nil)
	if err != nil {
		return domain.User{}, fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.User{}, &ProfileFetchError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.User{}, &ProfileFetchError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn("oauth userinfo rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return domain.User{}, &ProfileFetchError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return domain.User{}, &ProfileFetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode userinfo: %w", err)}
	}

	user := NormalizeProfile(raw)
	if user.ID == "" {
		return domain.User{}, &ProfileFetchError{StatusCode: resp.StatusCode, Err: errors.New("userinfo without subject id")}
	}
	return user, nil
}

// NormalizeProfile mapea el perfil crudo del proveedor a domain.User.
func NormalizeProfile(raw map[string]any) domain.User {
	return domain.User{
		ID:    firstNonEmpty(raw, idAliases),
		Name:  firstNonEmpty(raw, nameAliases),
		Email: stringValue(raw["email"]),
		Image: firstNonEmpty(raw, avatarAliases),
	}
}

func firstNonEmpty(raw map[string]any, keys []string) string {
	for _, key := range keys {
		if v := stringValue(raw[key]); v != "" {
			return v
		}
	}
	return ""
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}
