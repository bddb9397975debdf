// Package session handles visitor accounts and the signed cookie that
// proves "signed in as". Passwords are hashed with argon2id; the cookie
// carries an HS256 JWT instead of raw identity, so a tampered cookie is
// just an anonymous request.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"

	"github.com/travelika/forest-bookings/internal/domain"
	"github.com/travelika/forest-bookings/internal/ledger"
	"github.com/travelika/forest-bookings/internal/utils"
	"github.com/travelika/forest-bookings/pkg/logger"
)

// CookieName is the session cookie. VisitCookieName remembers the last
// trip configuration for prefill and carries no identity.
const (
	CookieName      = "travelika_session"
	VisitCookieName = "travelika_visit"

	minPasswordLen = 6
)

type sessionClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Manager owns account registration, credential checks and session token
// issue and verification.
type Manager struct {
	store        ledger.Store
	secret       []byte
	ttl          time.Duration
	cookieSecure bool
}

func NewManager(store ledger.Store, secret string, ttl time.Duration, cookieSecure bool) *Manager {
	return &Manager{
		store:        store,
		secret:       []byte(secret),
		ttl:          ttl,
		cookieSecure: cookieSecure,
	}
}

// Register creates an account. The email is normalized before storage;
// registering an email twice fails with ErrDuplicateAccount regardless of
// case.
func (m *Manager) Register(ctx context.Context, name, email, password string) (*domain.Account, error) {
	name = strings.TrimSpace(name)
	email = utils.NormalizeEmail(email)

	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: all fields are required", domain.ErrValidation)
	}
	if !utils.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: invalid email address", domain.ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := domain.Account{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.store.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, ledger.ErrDuplicateKey) {
			return nil, domain.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	logger.InfoContext(ctx, "account registered", "email", email)
	return &acc, nil
}

// Login checks credentials and returns the session plus a signed token
// for the cookie. A missing account and a wrong password are
// indistinguishable to the caller.
func (m *Manager) Login(ctx context.Context, email, password string) (*domain.Session, string, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}

	acc, err := m.store.GetAccount(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("load account: %w", err)
	}
	if acc == nil {
		return nil, "", domain.ErrInvalidCredentials
	}

	match, err := argon2id.ComparePasswordAndHash(password, acc.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("compare password: %w", err)
	}
	if !match {
		return nil, "", domain.ErrInvalidCredentials
	}

	sess := domain.Session{
		Email:    acc.Email,
		Name:     acc.Name,
		IssuedAt: time.Now().UTC(),
	}
	token, err := m.sign(sess)
	if err != nil {
		return nil, "", err
	}

	logger.InfoContext(ctx, "session issued", "email", acc.Email)
	return &sess, token, nil
}

func (m *Manager) sign(sess domain.Session) (string, error) {
	claims := sessionClaims{
		Name: sess.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.Email,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.IssuedAt.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and checks a session token. Any failure maps to
// ErrAuthRequired; the caller only needs "signed in or not".
func (m *Manager) Verify(tokenString string) (*domain.Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, domain.ErrAuthRequired
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || claims.Subject == "" {
		return nil, domain.ErrAuthRequired
	}

	sess := domain.Session{
		Email: claims.Subject,
		Name:  claims.Name,
	}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	return &sess, nil
}

// Cookie wraps a signed token in the session cookie.
func (m *Manager) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearVisitCookie expires the trip-prefill cookie.
func (m *Manager) ClearVisitCookie() *http.Cookie {
	return &http.Cookie{
		Name:     VisitCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// VisitCookie remembers the raw trip config payload for form prefill.
func (m *Manager) VisitCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     VisitCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
