package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xraph/escrow/access"
)

// CallerHeader carries the caller address for HeaderAuthenticator.
const CallerHeader = "X-Escrow-Caller"

// ErrUnauthenticated is returned when a request carries no usable identity.
var ErrUnauthenticated = errors.New("api: caller not authenticated")

// Authenticator resolves the address a request acts as.
type Authenticator interface {
	Authenticate(r *http.Request) (access.Address, error)
}

// HeaderAuthenticator trusts a request header. Use it behind a gateway that
// has already proven the identity.
type HeaderAuthenticator struct {
	// Header defaults to CallerHeader.
	Header string
}

func (a HeaderAuthenticator) Authenticate(r *http.Request) (access.Address, error) {
	name := a.Header
	if name == "" {
		name = CallerHeader
	}
	addr := access.Address(strings.TrimSpace(r.Header.Get(name)))
	if !addr.Valid() {
		return "", fmt.Errorf("%w: %s header missing", ErrUnauthenticated, name)
	}
	return addr, nil
}

// JWTAuthenticator accepts an HMAC-signed bearer token and uses its subject
// claim as the caller address.
type JWTAuthenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTAuthenticator verifies tokens with secret. Extra parser options, such
// as jwt.WithIssuer or jwt.WithAudience, are applied after the method check.
func NewJWTAuthenticator(secret []byte, opts ...jwt.ParserOption) *JWTAuthenticator {
	opts = append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}, opts...)
	return &JWTAuthenticator{secret: secret, parser: jwt.NewParser(opts...)}
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (access.Address, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", fmt.Errorf("%w: bearer token required", ErrUnauthenticated)
	}

	var claims jwt.RegisteredClaims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	addr := access.Address(claims.Subject)
	if !addr.Valid() {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return addr, nil
}
