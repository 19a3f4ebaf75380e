package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type Config struct {
	Issuer   string
	Audience string
	// ClientID selects the resource_access entry whose roles are merged in.
	ClientID string
	// SigningKey enables HS256 verification. Used in development and tests.
	SigningKey   string
	JWKSURL      string
	JWKSCacheTTL time.Duration
	// JWKSMinRefresh rate-limits fetches triggered by unknown key ids.
	JWKSMinRefresh time.Duration
	Leeway         time.Duration
}

const defaultJWKSMinRefresh = 30 * time.Second

// Verifier checks token signatures and claims and returns the Identity.
type Verifier struct {
	cfg    Config
	keys   *cache.Cache
	client *http.Client
	parser *jwt.Parser

	mu          sync.Mutex
	lastRefresh time.Time
	now         func() time.Time
}

func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.SigningKey == "" && cfg.JWKSURL == "" {
		return nil, fmt.Errorf("auth: either a signing key or a JWKS URL is required")
	}
	if cfg.JWKSCacheTTL <= 0 {
		cfg.JWKSCacheTTL = 5 * time.Minute
	}
	if cfg.JWKSMinRefresh <= 0 {
		cfg.JWKSMinRefresh = defaultJWKSMinRefresh
	}

	opts := []jwt.ParserOption{jwt.WithLeeway(cfg.Leeway), jwt.WithExpirationRequired()}
	if cfg.SigningKey != "" {
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	} else {
		opts = append(opts, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{
		cfg:    cfg,
		keys:   cache.New(cfg.JWKSCacheTTL, 2*cfg.JWKSCacheTTL),
		client: &http.Client{Timeout: 10 * time.Second},
		parser: jwt.NewParser(opts...),
		now:    time.Now,
	}, nil
}

// ClientID is the client whose resource roles are merged into identities.
func (v *Verifier) ClientID() string {
	return v.cfg.ClientID
}

// Verify parses a raw token and maps its claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrMissingToken
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.key(ctx, t)
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return FromClaims(claims, v.cfg.ClientID), nil
}

func (v *Verifier) key(ctx context.Context, t *jwt.Token) (interface{}, error) {
	if v.cfg.SigningKey != "" {
		return []byte(v.cfg.SigningKey), nil
	}

	kid, ok := t.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("token has no kid header")
	}
	if key, found := v.keys.Get(kid); found {
		return key, nil
	}
	if err := v.maybeRefresh(ctx, kid); err != nil {
		return nil, err
	}
	if key, found := v.keys.Get(kid); found {
		return key, nil
	}
	return nil, fmt.Errorf("key with kid %q not found in JWKS", kid)
}

// maybeRefresh fetches the JWKS unless another fetch happened within
// JWKSMinRefresh. Concurrent callers wait for the one in flight.
func (v *Verifier) maybeRefresh(ctx context.Context, kid string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, found := v.keys.Get(kid); found {
		return nil
	}
	now := v.now()
	if !v.lastRefresh.IsZero() && now.Sub(v.lastRefresh) < v.cfg.JWKSMinRefresh {
		return nil
	}
	v.lastRefresh = now
	return v.refreshKeys(ctx)
}

type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksResponse struct {
	Keys []jwksKey `json:"keys"`
}

func (v *Verifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.JWKSURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build JWKS request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var set jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("failed to decode JWKS: %w", err)
	}

	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := parseRSAPublicKey(k)
		if err != nil {
			continue
		}
		v.keys.SetDefault(k.Kid, pub)
	}
	return nil
}

func parseRSAPublicKey(k jwksKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
