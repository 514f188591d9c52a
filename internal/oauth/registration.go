package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultClientName        = "生物论文学习助手"
	DefaultClientDescription = "专为高中生设计的AI驱动生物医学论文理解工具"
)

var DefaultScopes = []string{"read", "write"}

type Registration struct {
	ClientName        string   `json:"client_name"`
	ClientDescription string   `json:"client_description"`
	RedirectURIs      []string `json:"redirect_uris"`
	Scopes            []string `json:"scopes"`
	PreauthKey        string   `json:"preauth_key"`
}

type ClientCredentials struct {
	ClientID          string   `json:"client_id"`
	ClientSecret      string   `json:"client_secret"`
	ClientName        string   `json:"client_name"`
	ClientDescription string   `json:"client_description"`
	RedirectURIs      []string `json:"redirect_uris"`
	Scopes            []string `json:"scopes"`
	CreatedAt         string   `json:"created_at"`
}

// RegisterClient da de alta un cliente OAuth usando la preauth key del proveedor.
func (p *Provider) RegisterClient(ctx context.Context, reg Registration) (ClientCredentials, error) {
	if reg.ClientName == "" {
		reg.ClientName = DefaultClientName
	}
	if reg.ClientDescription == "" {
		reg.ClientDescription = DefaultClientDescription
	}
	if len(reg.Scopes) == 0 {
		reg.Scopes = DefaultScopes
	}

	payload, err := json.Marshal(reg)
	if err != nil {
		return ClientCredentials{}, fmt.Errorf("marshal registration: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+clientsPath, bytes.NewReader(payload))
	if err != nil {
		return ClientCredentials{}, fmt.Errorf("create registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return ClientCredentials{}, fmt.Errorf("registration request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ClientCredentials{}, fmt.Errorf("read registration response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var detail struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(body, &detail)
		return ClientCredentials{}, &RegistrationError{StatusCode: resp.StatusCode, Detail: detail.Detail}
	}

	var creds ClientCredentials
	if err := json.Unmarshal(body, &creds); err != nil {
		return ClientCredentials{}, fmt.Errorf("decode registration response: %w", err)
	}
	p.logger.Info("oauth client registered",
		zap.String("client_id", creds.ClientID),
		zap.String("client_name", creds.ClientName),
	)
	return creds, nil
}

// VerifyClient prueba las credenciales pidiendo un token client_credentials.
// Cualquier fallo cuenta como credenciales inválidas.
func (p *Provider) VerifyClient(ctx context.Context, clientID, clientSecret string) bool {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     p.baseURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if _, err := cfg.Token(p.clientContext(ctx)); err != nil {
		p.logger.Warn("oauth client verification failed", zap.Error(err))
		return false
	}
	return true
}
