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
	"go.uber.org/zap"
)

const (
	defaultJWKSCacheTTL = 10 * time.Minute
	jwksPath            = "/.well-known/jwks.json"
	keyIDHeader         = "kid"
)

var (
	errKeyNotFound           = errors.New("signing key not found in JWKS")
	errMissingAudienceConfig = errors.New("audience configuration required")
	errMissingJWKSURL        = errors.New("domain or jwks url configuration required")
	errMissingIssuer         = errors.New("domain or issuer configuration required")
	ErrInvalidVerifierConfig = errors.New("auth: invalid jwks verifier config")
)

// JWKSVerifierConfig bundles configuration required to instantiate a JWKSVerifier.
// JWKSURL and Issuer are derived from Domain when left empty.
type JWKSVerifierConfig struct {
	Domain     string
	JWKSURL    string
	Issuer     string
	Audience   string
	HTTPClient *http.Client
	CacheTTL   time.Duration
	Logger     *zap.Logger
	Clock      func() time.Time
}

// JWKSVerifier verifies RS256 bearer tokens against the identity provider's cached key set.
type JWKSVerifier struct {
	jwksURL    string
	issuer     string
	audience   string
	logger     *zap.Logger
	httpClient *http.Client
	clock      func() time.Time
	cache      *jwksCache
}

// NewJWKSVerifier constructs a verifier with validated configuration.
func NewJWKSVerifier(cfg JWKSVerifierConfig) (*JWKSVerifier, error) {
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerifierConfig, errMissingAudienceConfig)
	}

	domain := normalizeDomain(cfg.Domain)
	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" && domain != "" {
		jwksURL = "https://" + domain + jwksPath
	}
	if jwksURL == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerifierConfig, errMissingJWKSURL)
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" && domain != "" {
		issuer = "https://" + domain + "/"
	}
	if issuer == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerifierConfig, errMissingIssuer)
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultJWKSCacheTTL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &JWKSVerifier{
		jwksURL:    jwksURL,
		issuer:     issuer,
		audience:   audience,
		logger:     logger,
		httpClient: httpClient,
		clock:      clock,
		cache:      &jwksCache{ttl: cacheTTL},
	}, nil
}

type tokenClaims struct {
	Permissions *[]string `json:"permissions"`
	jwt.RegisteredClaims
}

// Verify validates the token signature and standard claims and returns the payload.
// Key set transport failures are returned as plain errors, everything else as *AuthError.
func (v *JWKSVerifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return Claims{}, errInvalidHeader("Token not found.", nil)
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(rawToken, &tokenClaims{})
	if err != nil {
		return Claims{}, errInvalidHeader("Authorization malformed.", err)
	}
	keyID, _ := unverified.Header[keyIDHeader].(string)
	if keyID == "" {
		return Claims{}, errInvalidHeader("Authorization malformed.", nil)
	}

	key, err := v.lookupKey(ctx, keyID)
	if errors.Is(err, errKeyNotFound) {
		return Claims{}, errInvalidHeader("Unable to find the appropriate key.", err)
	}
	if err != nil {
		return Claims{}, fmt.Errorf("auth: fetch jwks: %w", err)
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(
		rawToken,
		claims,
		func(*jwt.Token) (interface{}, error) {
			return key, nil
		},
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(v.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(v.clock),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, errTokenExpired(err)
		case errors.Is(err, jwt.ErrTokenInvalidAudience), errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return Claims{}, errInvalidClaims("Incorrect claims. Please, check the audience and issuer.", err)
		default:
			return Claims{}, errInvalidHeader("Unable to parse authentication token.", err)
		}
	}
	if !token.Valid {
		return Claims{}, errInvalidHeader("Unable to parse authentication token.", nil)
	}

	return claims.toClaims(), nil
}

func (c *tokenClaims) toClaims() Claims {
	result := Claims{
		Subject:  c.Subject,
		Issuer:   c.Issuer,
		Audience: append([]string{}, c.Audience...),
	}
	if c.Permissions != nil {
		result.Permissions = append([]string{}, (*c.Permissions)...)
		result.permissionsPresent = true
	}
	if c.ExpiresAt != nil {
		result.ExpiresAt = c.ExpiresAt.Time
	}
	if c.IssuedAt != nil {
		result.IssuedAt = c.IssuedAt.Time
	}
	return result
}

func (v *JWKSVerifier) lookupKey(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	now := v.clock()
	if key := v.cache.get(keyID, now); key != nil {
		return key, nil
	}

	if err := v.refreshKeys(ctx, now); err != nil {
		return nil, err
	}

	if key := v.cache.get(keyID, now); key != nil {
		return key, nil
	}

	return nil, errKeyNotFound
}

func (v *JWKSVerifier) refreshKeys(ctx context.Context, fetchedAt time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}

	response, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks request returned status %d", response.StatusCode)
	}

	var document jwksDocument
	if err := json.NewDecoder(response.Body).Decode(&document); err != nil {
		return err
	}

	keyMap := make(map[string]*rsa.PublicKey, len(document.Keys))
	for _, key := range document.Keys {
		if key.KeyType != "RSA" || (key.Use != "" && key.Use != "sig") {
			continue
		}
		publicKey, err := key.toRSAPublicKey()
		if err != nil {
			v.logger.Debug("skipping jwk", zap.String("kid", key.KeyID), zap.Error(err))
			continue
		}
		keyMap[key.KeyID] = publicKey
	}

	if len(keyMap) == 0 {
		return errors.New("jwks document contained no usable keys")
	}

	v.cache.store(keyMap, fetchedAt)
	v.logger.Debug("jwks refreshed", zap.Int("keys", len(keyMap)))
	return nil
}

func normalizeDomain(domain string) string {
	trimmed := strings.TrimSpace(domain)
	trimmed = strings.TrimPrefix(trimmed, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	return strings.TrimSuffix(trimmed, "/")
}

type jwksCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
	ttl       time.Duration
}

func (c *jwksCache) get(keyID string, now time.Time) *rsa.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.keys == nil || now.After(c.expiresAt) {
		return nil
	}
	return c.keys[keyID]
}

func (c *jwksCache) store(keys map[string]*rsa.PublicKey, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = keys
	c.expiresAt = now.Add(c.ttl)
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	KeyType string `json:"kty"`
	Alg     string `json:"alg"`
	KeyID   string `json:"kid"`
	Use     string `json:"use"`
	Modulus string `json:"n"`
	Exp     string `json:"e"`
}

func (k jwk) toRSAPublicKey() (*rsa.PublicKey, error) {
	modulusBytes, err := base64.RawURLEncoding.DecodeString(k.Modulus)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus encoding: %w", err)
	}
	exponentBytes, err := base64.RawURLEncoding.DecodeString(k.Exp)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent encoding: %w", err)
	}

	if len(exponentBytes) == 0 {
		return nil, errors.New("missing exponent bytes")
	}

	exponent := 0
	for _, b := range exponentBytes {
		exponent = exponent<<8 + int(b)
	}
	if exponent == 0 {
		return nil, errors.New("invalid exponent value")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(modulusBytes),
		E: exponent,
	}, nil
}
