package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCredential means the token is malformed, expired, revoked or carries no usable subject.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrProviderUnavailable means the identity provider could not be asked.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// Claims is the verified identity of a caller.
type Claims struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	Picture     string `json:"picture,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	// Unverified is set when the signature was not checked.
	Unverified bool `json:"-"`
}

// Verifier turns a bearer token into claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// TokenVerifier is the part of the Firebase auth client used here.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// UserDeleter is the part of the Firebase auth client used to remove identities.
type UserDeleter interface {
	DeleteUser(ctx context.Context, uid string) error
}

// unverifiedLeeway absorbs clock skew when checking exp of a decoded-only token.
const unverifiedLeeway = 30 * time.Second

// FirebaseVerifier verifies Firebase ID tokens. When allowUnverified is set and the
// provider cannot be reached (or no client is configured) it decodes the token without
// checking the signature; this is only for local development. Tokens the provider
// actually rejected are never decoded.
type FirebaseVerifier struct {
	client          TokenVerifier
	allowUnverified bool
	logger          *zap.Logger
}

// NewFirebaseVerifier creates a verifier around a Firebase auth client.
func NewFirebaseVerifier(client TokenVerifier, allowUnverified bool, logger *zap.Logger) *FirebaseVerifier {
	if allowUnverified {
		logger.Warn("Unverified token decoding is ENABLED. Never use this outside development.")
	}
	return &FirebaseVerifier{client: client, allowUnverified: allowUnverified, logger: logger}
}

// Verify checks the token signature, expiry and audience.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", ErrInvalidCredential)
	}

	if v.client == nil {
		return v.fallback(token, errors.New("no identity provider client configured"))
	}

	verified, err := v.client.VerifyIDToken(ctx, token)
	if err == nil {
		claims := claimsFromMap(verified.UID, verified.Claims)
		if claims.UID == "" {
			return nil, fmt.Errorf("token has no subject: %w", ErrInvalidCredential)
		}
		return claims, nil
	}

	if providerUnavailable(ctx, err) {
		return v.fallback(token, err)
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
}

// fallback handles a provider that could not be asked.
func (v *FirebaseVerifier) fallback(token string, cause error) (*Claims, error) {
	if !v.allowUnverified {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, cause)
	}
	v.logger.Warn("Identity provider unavailable, decoding ID token without verification", zap.Error(cause))
	return DecodeUnverified(token)
}

func providerUnavailable(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.DeadlineExceeded) ||
		auth.IsCertificateFetchFailed(err)
}

// DecodeUnverified reads the token payload without checking its signature.
// The time claims are still enforced: exp is required and must not have passed.
// The uid is user_id, falling back to sub.
func DecodeUnverified(token string) (*Claims, error) {
	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mapClaims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	validator := jwt.NewValidator(jwt.WithExpirationRequired(), jwt.WithLeeway(unverifiedLeeway))
	if err := validator.Validate(mapClaims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	uid := stringClaim(mapClaims, "user_id")
	if uid == "" {
		uid = stringClaim(mapClaims, "sub")
	}
	claims := claimsFromMap(uid, mapClaims)
	if claims.UID == "" {
		return nil, fmt.Errorf("token has no subject: %w", ErrInvalidCredential)
	}
	claims.Unverified = true
	return claims, nil
}

func claimsFromMap(uid string, m map[string]interface{}) *Claims {
	return &Claims{
		UID:         uid,
		Email:       strings.ToLower(strings.TrimSpace(stringClaim(m, "email"))),
		Name:        strings.TrimSpace(stringClaim(m, "name")),
		Picture:     stringClaim(m, "picture"),
		PhoneNumber: stringClaim(m, "phone_number"),
	}
}

func stringClaim(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
