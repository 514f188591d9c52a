package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biopaper-tutor/internal/oauth"
)

type fakeAuthority struct {
	validSecret string
	registered  []oauth.Registration
}

func (f *fakeAuthority) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("grant_type") != "client_credentials" || r.Form.Get("client_secret") != f.validSecret {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"cc","token_type":"Bearer","expires_in":60}`))
	})
	mux.HandleFunc("/auth/oauth/clients", func(w http.ResponseWriter, r *http.Request) {
		var reg oauth.Registration
		_ = json.NewDecoder(r.Body).Decode(&reg)
		f.registered = append(f.registered, reg)
		if reg.PreauthKey != "pk" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"detail":"invalid preauth key"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(oauth.ClientCredentials{
			ClientID:     "new-id",
			ClientSecret: "new-secret",
			RedirectURIs: reg.RedirectURIs,
		})
	})
	return mux
}

func newTestEnv(t *testing.T, authority *fakeAuthority) (oauthEnv, *oauth.Provider) {
	t.Helper()
	srv := httptest.NewServer(authority.handler())
	t.Cleanup(srv.Close)
	cfg := oauthEnv{
		AppBaseURL: "http://localhost:8080",
		BaseURL:    srv.URL,
		Scopes:     []string{"read", "write"},
	}
	return cfg, oauth.NewProvider(cfg.BaseURL, cfg.ClientID, cfg.ClientSecret, cfg.Scopes, zap.NewNop())
}

func TestRunRegister_PrintsEnvLines(t *testing.T) {
	authority := &fakeAuthority{}
	cfg, provider := newTestEnv(t, authority)

	var out bytes.Buffer
	err := runRegister(context.Background(), &out, provider, cfg, registerFlags{preauthKey: "pk", name: "n"})
	require.NoError(t, err)
	require.Contains(t, out.String(), "OAUTH_CLIENT_ID=new-id")
	require.Contains(t, out.String(), "OAUTH_CLIENT_SECRET=new-secret")
	require.Len(t, authority.registered, 1)
	require.Equal(t, []string{"http://localhost:8080/api/auth/callback/oauth"}, authority.registered[0].RedirectURIs)
	require.Equal(t, []string{"read", "write"}, authority.registered[0].Scopes)
}

func TestRunRegister_SurfacesProviderDetail(t *testing.T) {
	cfg, provider := newTestEnv(t, &fakeAuthority{})

	err := runRegister(context.Background(), &bytes.Buffer{}, provider, cfg, registerFlags{preauthKey: "wrong"})
	var regErr *oauth.RegistrationError
	require.True(t, errors.As(err, &regErr))
	require.Equal(t, "invalid preauth key", regErr.Detail)
}

func TestRunVerify(t *testing.T) {
	authority := &fakeAuthority{validSecret: "s3cret"}
	cfg, provider := newTestEnv(t, authority)
	cfg.ClientID, cfg.ClientSecret = "id", "s3cret"

	var out bytes.Buffer
	require.NoError(t, runVerify(context.Background(), &out, provider, cfg))
	require.Contains(t, out.String(), "client id is valid")

	cfg.ClientSecret = "wrong"
	require.ErrorIs(t, runVerify(context.Background(), &out, provider, cfg), errInvalidClient)
}

func TestRunEnsure_RegistersWhenInvalid(t *testing.T) {
	authority := &fakeAuthority{validSecret: "s3cret"}
	cfg, provider := newTestEnv(t, authority)
	cfg.ClientID, cfg.ClientSecret, cfg.PreauthKey = "id", "stale", "pk"

	var out bytes.Buffer
	require.NoError(t, runEnsure(context.Background(), &out, provider, cfg))
	require.True(t, strings.Contains(out.String(), "registering a new one"))
	require.Len(t, authority.registered, 1)
}

func TestRunEnsure_FailsWithoutPreauthKey(t *testing.T) {
	cfg, provider := newTestEnv(t, &fakeAuthority{validSecret: "s3cret"})
	require.ErrorIs(t, runEnsure(context.Background(), &bytes.Buffer{}, provider, cfg), errInvalidClient)
	require.NotNil(t, newRootCmd())
}
