package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"biopaper-tutor/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestSessionStore(t *testing.T, clock *fakeClock) *SessionStore {
	t.Helper()
	store, err := NewSessionStore("test-secret", time.Hour, false, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	return store
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatalf("expected %s cookie in response", SessionCookieName)
	return nil
}

func TestSessionStore_IssueThenRead(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := newTestSessionStore(t, clock)
	user := domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}
	tokens := domain.Tokens{AccessToken: "at-123", TokenType: "Bearer", ExpiresIn: 3600}

	rec := httptest.NewRecorder()
	issued, err := store.Issue(rec, user, tokens)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	cookie := sessionCookie(t, rec)
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode || cookie.Path != "/" {
		t.Fatalf("unexpected cookie attributes: %+v", cookie)
	}
	if cookie.MaxAge != 3600 {
		t.Fatalf("expected max-age 3600, got %d", cookie.MaxAge)
	}
	if strings.Contains(cookie.Value, "at-123") {
		t.Fatalf("access token must not be readable in cookie")
	}

	clock.now = clock.now.Add(30 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(cookie)
	session, ok := store.Read(httptest.NewRecorder(), req)
	if !ok {
		t.Fatalf("expected session within ttl")
	}
	if session.User != user || session.Tokens != tokens {
		t.Fatalf("unexpected session: %+v", session)
	}
	if !session.Expires.Equal(issued.Expires) {
		t.Fatalf("expected expires %v, got %v", issued.Expires, session.Expires)
	}
}

func TestSessionStore_ReadAfterExpiryClearsCookie(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := newTestSessionStore(t, clock)

	rec := httptest.NewRecorder()
	if _, err := store.Issue(rec, domain.User{ID: "u1"}, domain.Tokens{}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	cookie := sessionCookie(t, rec)

	clock.now = clock.now.Add(2 * time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	readRec := httptest.NewRecorder()
	if _, ok := store.Read(readRec, req); ok {
		t.Fatalf("expected expired session to be anonymous")
	}
	cleared := sessionCookie(t, readRec)
	if cleared.MaxAge >= 0 || cleared.Value != "" {
		t.Fatalf("expected cookie to be cleared, got %+v", cleared)
	}

	if _, err := store.ParseToken(cookie.Value); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestSessionStore_MalformedCookieIsAnonymous(t *testing.T) {
	store := newTestSessionStore(t, &fakeClock{now: time.Now().UTC()})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-token"})
	rec := httptest.NewRecorder()
	if _, ok := store.Read(rec, req); ok {
		t.Fatalf("expected malformed cookie to be anonymous")
	}
	if sessionCookie(t, rec).MaxAge >= 0 {
		t.Fatalf("expected malformed cookie to be cleared")
	}
}

func TestSessionStore_RejectsForeignSignature(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC()}
	store := newTestSessionStore(t, clock)
	other, err := NewSessionStore("other-secret", time.Hour, false, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}

	token, _, err := other.Sign(domain.User{ID: "u1"}, domain.Tokens{AccessToken: "x"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := store.ParseToken(token); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
}

func TestSessionStore_NoCookieDoesNotTouchResponse(t *testing.T) {
	store := newTestSessionStore(t, &fakeClock{now: time.Now().UTC()})
	rec := httptest.NewRecorder()
	if _, ok := store.Read(rec, httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Fatalf("expected anonymous")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("expected no Set-Cookie when no cookie was sent")
	}
}

func TestSessionStore_RequiresUserAndSecret(t *testing.T) {
	if _, err := NewSessionStore(" ", time.Hour, false); domain.KindOf(err) != domain.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	store := newTestSessionStore(t, &fakeClock{now: time.Now().UTC()})
	if _, _, err := store.Sign(domain.User{}, domain.Tokens{}); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
