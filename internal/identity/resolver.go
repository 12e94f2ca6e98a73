package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/feral-file/ff-minter/internal/adapter"
	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/logger"
)

// Credentials is what the host environment hands over at session bootstrap
type Credentials struct {
	// Token is the host-issued session token, without the "Bearer " prefix
	Token string
	// DisplayNameHint is used when the token carries no username claim
	DisplayNameHint string
}

// Config holds the token verification settings
type Config struct {
	PublicKey string // PEM encoded RSA, ECDSA or Ed25519 public key
	Issuer    string
	Audience  string
}

// Claims are the session token claims the resolver reads
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Resolver resolves the caller's identity from the host session
//
//go:generate mockgen -source=resolver.go -destination=../mocks/identity_resolver.go -package=mocks -mock_names=Resolver=MockIdentityResolver
type Resolver interface {
	// Resolve returns the verified identity or domain.ErrIneligible
	Resolve(ctx context.Context, creds Credentials) (*domain.Identity, error)
}

type jwtResolver struct {
	publicKey any
	issuer    string
	audience  string
	clock     adapter.Clock
}

// NewResolver creates a resolver that verifies session tokens with the configured public key
func NewResolver(cfg Config, clock adapter.Clock) (Resolver, error) {
	if cfg.PublicKey == "" {
		return nil, domain.NewError(domain.KindConfiguration, "identity", errors.New("public key not configured"))
	}

	publicKey, err := parsePublicKey(cfg.PublicKey)
	if err != nil {
		return nil, domain.NewError(domain.KindConfiguration, "identity", err)
	}

	return &jwtResolver{
		publicKey: publicKey,
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		clock:     clock,
	}, nil
}

// Resolve verifies the token and extracts the identity from its subject
func (r *jwtResolver) Resolve(ctx context.Context, creds Credentials) (*domain.Identity, error) {
	claims, err := r.verify(creds.Token)
	if err != nil {
		logger.WarnCtx(ctx, "Identity resolution failed", zap.Error(err))
		return nil, domain.ErrIneligible
	}

	displayName := claims.Username
	if displayName == "" {
		displayName = strings.TrimSpace(creds.DisplayNameHint)
	}

	id := &domain.Identity{ID: claims.Subject, DisplayName: displayName}
	logger.DebugCtx(ctx, "Identity resolved", zap.String("identity", id.ID))

	return id, nil
}

func (r *jwtResolver) verify(token string) (*Claims, error) {
	if token == "" {
		return nil, errors.New("missing session token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "EdDSA"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.clock.Now),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}
	if r.audience != "" {
		opts = append(opts, jwt.WithAudience(r.audience))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return r.publicKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}

	if _, err := (domain.Identity{ID: claims.Subject}).Numeric(); err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}

	return claims, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// parsePublicKey parses an RSA, ECDSA or Ed25519 public key from PEM format
func parsePublicKey(publicKeyPEM string) (any, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing public key")
	}

	// Try parsing as PKIX (most common format)
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		// Try parsing as PKCS1 format
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	switch key := pub.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported public key type %T", pub)
	}
}
