package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"biopaper-tutor/internal/domain"
)

const (
	SessionCookieName = "auth-session"
	DefaultSessionTTL = 7 * 24 * time.Hour
	sessionIssuer     = "biopaper-tutor"
)

var (
	ErrSessionInvalid = errors.New("session invalid")
	ErrSessionExpired = errors.New("session expired")
)

type sessionClaims struct {
	User domain.User `json:"user"`
	// Tokens va sellado con secretbox: el JWT firmado es legible por el cliente.
	Tokens string `json:"tok,omitempty"`
	jwt.RegisteredClaims
}

// SessionStore guarda la sesión completa en una cookie firmada y con expiración.
// La cookie es la única fuente de verdad: no hay tabla de sesiones.
type SessionStore struct {
	signKey []byte
	sealKey [32]byte
	ttl     time.Duration
	secure  bool
	now     func() time.Time
}

type SessionOption func(*SessionStore)

// WithClock reemplaza time.Now, usado para simular expiración en tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSessionStore(secret string, ttl time.Duration, secure bool, opts ...SessionOption) (*SessionStore, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, domain.Configuration("SESSION_SECRET is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	signKey, err := deriveKey(secret, "session-signing", 32)
	if err != nil {
		return nil, err
	}
	sealKey, err := deriveKey(secret, "session-token-seal", 32)
	if err != nil {
		return nil, err
	}
	s := &SessionStore{
		signKey: signKey,
		ttl:     ttl,
		secure:  secure,
		now:     func() time.Time { return time.Now().UTC() },
	}
	copy(s.sealKey[:], sealKey)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func deriveKey(secret, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}

func (s *SessionStore) TTL() time.Duration { return s.ttl }

// Issue firma la sesión y la escribe como cookie HttpOnly/SameSite=Lax.
func (s *SessionStore) Issue(w http.ResponseWriter, user domain.User, tokens domain.Tokens) (domain.Session, error) {
	token, session, err := s.Sign(user, tokens)
	if err != nil {
		return domain.Session{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		Expires:  session.Expires,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return session, nil
}

// Sign produce el token de sesión sin tocar la respuesta.
func (s *SessionStore) Sign(user domain.User, tokens domain.Tokens) (string, domain.Session, error) {
	user.ID = strings.TrimSpace(user.ID)
	if user.ID == "" {
		return "", domain.Session{}, domain.Validation("incomplete user information")
	}
	sealed, err := s.seal(tokens)
	if err != nil {
		return "", domain.Session{}, err
	}
	now := s.now()
	expires := now.Add(s.ttl)
	claims := sessionClaims{
		User:   user,
		Tokens: sealed,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("sign session: %w", err)
	}
	return token, domain.Session{
		User:    user,
		Tokens:  tokens,
		Expires: claims.ExpiresAt.Time,
	}, nil
}

// Read devuelve la sesión de la cookie. Ausente, vencida o corrupta se
// colapsan en "sin sesión"; en los dos últimos casos la cookie se borra.
func (s *SessionStore) Read(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return domain.Session{}, false
	}
	session, err := s.ParseToken(cookie.Value)
	if err != nil {
		s.Revoke(w)
		return domain.Session{}, false
	}
	return session, true
}

// Revoke borra la cookie sin condiciones.
func (s *SessionStore) Revoke(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ParseToken valida firma, issuer y expiración contra el reloj del store.
func (s *SessionStore) ParseToken(token string) (domain.Session, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Session{}, ErrSessionInvalid
	}
	var claims sessionClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return s.signKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Session{}, ErrSessionExpired
		}
		return domain.Session{}, ErrSessionInvalid
	}
	if claims.User.ID == "" || claims.Subject != claims.User.ID {
		return domain.Session{}, ErrSessionInvalid
	}
	tokens, err := s.open(claims.Tokens)
	if err != nil {
		return domain.Session{}, ErrSessionInvalid
	}
	return domain.Session{
		User:    claims.User,
		Tokens:  tokens,
		Expires: claims.ExpiresAt.Time,
	}, nil
}

func (s *SessionStore) seal(tokens domain.Tokens) (string, error) {
	plain, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("marshal tokens: %w", err)
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("session nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, &s.sealKey)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

func (s *SessionStore) open(sealed string) (domain.Tokens, error) {
	if sealed == "" {
		return domain.Tokens{}, nil
	}
	box, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(box) < 24 {
		return domain.Tokens{}, ErrSessionInvalid
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, &s.sealKey)
	if !ok {
		return domain.Tokens{}, ErrSessionInvalid
	}
	var tokens domain.Tokens
	if err := json.Unmarshal(plain, &tokens); err != nil {
		return domain.Tokens{}, ErrSessionInvalid
	}
	return tokens, nil
}
