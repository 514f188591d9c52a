package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biopaper-tutor/internal/domain"
)

type fakeAuthority struct {
	tokenStatus    int
	userinfoStatus int
	profile        map[string]any
	lastForm       url.Values
	lastAuth       string
	registerStatus int
	registerBody   string
	lastRegister   Registration
}

func (f *fakeAuthority) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.lastForm = r.PostForm
		if f.tokenStatus != 0 && f.tokenStatus != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc(userinfoPath, func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		if f.userinfoStatus != 0 && f.userinfoStatus != http.StatusOK {
			w.WriteHeader(f.userinfoStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.profile)
	})
	mux.HandleFunc(clientsPath, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&f.lastRegister)
		w.Header().Set("Content-Type", "application/json")
		if f.registerStatus != 0 {
			w.WriteHeader(f.registerStatus)
		}
		_, _ = w.Write([]byte(f.registerBody))
	})
	return mux
}

func newTestProvider(t *testing.T, f *fakeAuthority) *Provider {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewProvider(srv.URL, "client-1", "secret-1", []string{"read", "write"}, zap.NewNop(), WithHTTPClient(srv.Client()))
}

func TestExchangeCodeForSession_Success(t *testing.T) {
	f := &fakeAuthority{profile: map[string]any{
		"_id":        "abc123",
		"username":   "neo",
		"email":      "neo@example.com",
		"avatar_url": "https://img.example.com/neo.png",
	}}
	p := newTestProvider(t, f)

	user, tokens, err := p.ExchangeCodeForSession(context.Background(), "code-1", "http://app/cb")
	require.NoError(t, err)
	require.Equal(t, domain.User{ID: "abc123", Name: "neo", Email: "neo@example.com", Image: "https://img.example.com/neo.png"}, user)
	require.Equal(t, "at-1", tokens.AccessToken)
	require.Equal(t, "Bearer", tokens.TokenType)
	require.Equal(t, int64(3600), tokens.ExpiresIn)

	require.Equal(t, "authorization_code", f.lastForm.Get("grant_type"))
	require.Equal(t, "code-1", f.lastForm.Get("code"))
	require.Equal(t, "client-1", f.lastForm.Get("client_id"))
	require.Equal(t, "secret-1", f.lastForm.Get("client_secret"))
	require.Equal(t, "http://app/cb", f.lastForm.Get("redirect_uri"))
	require.Equal(t, "Bearer at-1", f.lastAuth)
}

func TestExchangeCodeForSession_TokenRejected(t *testing.T) {
	f := &fakeAuthority{tokenStatus: http.StatusUnauthorized}
	p := newTestProvider(t, f)

	_, _, err := p.ExchangeCodeForSession(context.Background(), "bad", "http://app/cb")
	var te *TokenExchangeError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusUnauthorized, te.StatusCode)
	require.Contains(t, te.Error(), "401")
}

func TestExchangeCodeForSession_ProfileRejected(t *testing.T) {
	f := &fakeAuthority{userinfoStatus: http.StatusForbidden}
	p := newTestProvider(t, f)

	_, _, err := p.ExchangeCodeForSession(context.Background(), "code-1", "http://app/cb")
	var pe *ProfileFetchError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, http.StatusForbidden, pe.StatusCode)
}

func TestExchangeCodeForSession_ProfileWithoutID(t *testing.T) {
	f := &fakeAuthority{profile: map[string]any{"name": "nobody"}}
	p := newTestProvider(t, f)

	_, _, err := p.ExchangeCodeForSession(context.Background(), "code-1", "http://app/cb")
	var pe *ProfileFetchError
	require.ErrorAs(t, err, &pe)
}

func TestExchangeCodeForSession_Preconditions(t *testing.T) {
	p := NewProvider("http://unused", "", "", nil, nil)

	_, _, err := p.ExchangeCodeForSession(context.Background(), "  ", "http://app/cb")
	require.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, _, err = p.ExchangeCodeForSession(context.Background(), "code", "http://app/cb")
	require.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}

func TestNormalizeProfile_AliasPrecedence(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		want domain.User
	}{
		{
			name: "sub wins over id",
			raw:  map[string]any{"sub": "s1", "id": "i1", "name": "A", "username": "a"},
			want: domain.User{ID: "s1", Name: "A"},
		},
		{
			name: "empty values are skipped",
			raw:  map[string]any{"sub": "", "_id": "  ", "user_id": "u9", "display_name": "D", "picture": "", "avatar": "av"},
			want: domain.User{ID: "u9", Name: "D", Image: "av"},
		},
		{
			name: "numeric id",
			raw:  map[string]any{"id": json.Number("42"), "email": "x@example.com"},
			want: domain.User{ID: "42", Email: "x@example.com"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NormalizeProfile(tc.raw))
		})
	}
}

func TestAuthorizeURL(t *testing.T) {
	p := NewProvider("https://auth.example.com/", "client-1", "secret-1", []string{"read", "write"}, nil)
	raw := p.AuthorizeURL("http://app/cb", "state-1")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/oauth/authorize", u.Path)
	q := u.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "client-1", q.Get("client_id"))
	require.Equal(t, "http://app/cb", q.Get("redirect_uri"))
	require.Equal(t, "read write", q.Get("scope"))
	require.Equal(t, "state-1", q.Get("state"))
}

func TestRegisterClient(t *testing.T) {
	f := &fakeAuthority{registerBody: `{"client_id":"new-id","client_secret":"new-secret","client_name":"x"}`}
	p := newTestProvider(t, f)

	creds, err := p.RegisterClient(context.Background(), Registration{
		RedirectURIs: []string{"http://app/cb"},
		PreauthKey:   "pre-1",
	})
	require.NoError(t, err)
	require.Equal(t, "new-id", creds.ClientID)
	require.Equal(t, "new-secret", creds.ClientSecret)
	require.Equal(t, DefaultClientName, f.lastRegister.ClientName)
	require.Equal(t, DefaultScopes, f.lastRegister.Scopes)
	require.Equal(t, "pre-1", f.lastRegister.PreauthKey)
}

func TestRegisterClient_ErrorDetail(t *testing.T) {
	f := &fakeAuthority{registerStatus: http.StatusForbidden, registerBody: `{"detail":"invalid preauth key"}`}
	p := newTestProvider(t, f)

	_, err := p.RegisterClient(context.Background(), Registration{PreauthKey: "bad"})
	var re *RegistrationError
	require.True(t, errors.As(err, &re))
	require.Equal(t, http.StatusForbidden, re.StatusCode)
	require.Equal(t, "invalid preauth key", re.Error())
}

func TestVerifyClient(t *testing.T) {
	ok := newTestProvider(t, &fakeAuthority{})
	require.True(t, ok.VerifyClient(context.Background(), "client-1", "secret-1"))

	bad := newTestProvider(t, &fakeAuthority{tokenStatus: http.StatusUnauthorized})
	require.False(t, bad.VerifyClient(context.Background(), "client-1", "wrong"))
}
