package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fawzii0x3/breath-school-api/internal/db"
	"github.com/fawzii0x3/breath-school-api/internal/identity"
	"github.com/fawzii0x3/breath-school-api/internal/models"
)

const (
	ctxUserKey   = "user"
	ctxClaimsKey = "claims"
	// CtxUserIDKey holds the local user ID of the authenticated caller.
	CtxUserIDKey = "userID"
)

// ErrorResponse is a local definition for sending standardized error messages.
// It mirrors the one in internal/api/dto_models.go to avoid import cycles.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// UserResolver is the part of the user service the gate needs.
type UserResolver interface {
	GetByFirebaseUID(ctx context.Context, uid string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	LinkFirebaseUID(ctx context.Context, user *models.User, uid string) error
}

// ContactEnsurer mirrors newly created users into the CRM.
type ContactEnsurer interface {
	EnsureCRMContact(ctx context.Context, user *models.User) error
}

// AuthGateConfig holds the gate's time bounds.
type AuthGateConfig struct {
	LookupTimeout    time.Duration
	CRMCreateTimeout time.Duration
}

// AuthGate authenticates requests with a bearer token and attaches the local user,
// creating or linking the user record on first sight.
type AuthGate struct {
	verifier identity.Verifier
	users    UserResolver
	contacts ContactEnsurer
	cfg      AuthGateConfig
	logger   *zap.Logger

	background sync.WaitGroup
}

var errNoEmail = errors.New("token carries no email")

// NewAuthGate creates a new AuthGate instance.
func NewAuthGate(v identity.Verifier, users UserResolver, contacts ContactEnsurer, cfg AuthGateConfig, logger *zap.Logger) *AuthGate {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 3 * time.Second
	}
	if cfg.CRMCreateTimeout <= 0 {
		cfg.CRMCreateTimeout = 5 * time.Second
	}
	return &AuthGate{verifier: v, users: users, contacts: contacts, cfg: cfg, logger: logger}
}

// Wait blocks until background CRM work started by the gate has finished.
func (g *AuthGate) Wait() {
	g.background.Wait()
}

func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization header is required"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", "Authorization header format must be 'Bearer {token}'"
	}
	return parts[1], ""
}

// Required rejects requests without a valid token with 401.
func (g *AuthGate) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearerToken(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: problem})
			return
		}

		claims, err := g.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			g.logger.Info("Token verification failed", zap.Error(err), zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
			return
		}

		user, err := g.resolve(c.Request.Context(), claims)
		if err != nil {
			if errors.Is(err, errNoEmail) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication token has no email"})
				return
			}
			g.logger.Error("Failed to resolve authenticated user", zap.String("uid", claims.UID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load user account"})
			return
		}

		attach(c, user, claims)
		c.Next()
	}
}

// Optional attaches the user when a valid token is present and never rejects.
func (g *AuthGate) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearerToken(c)
		if problem != "" {
			c.Next()
			return
		}
		claims, err := g.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.Next()
			return
		}
		user, err := g.resolve(c.Request.Context(), claims)
		if err != nil {
			g.logger.Warn("Optional auth could not resolve user", zap.String("uid", claims.UID), zap.Error(err))
			c.Next()
			return
		}
		attach(c, user, claims)
		c.Next()
	}
}

func attach(c *gin.Context, user *models.User, claims *identity.Claims) {
	c.Set(ctxUserKey, user)
	c.Set(ctxClaimsKey, claims)
	c.Set(CtxUserIDKey, user.ID)
}

// resolve finds the local user for claims: by UID, then by email (linking the UID),
// and finally by creating one.
func (g *AuthGate) resolve(ctx context.Context, claims *identity.Claims) (*models.User, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, g.cfg.LookupTimeout)
	user, err := g.users.GetByFirebaseUID(lookupCtx, claims.UID)
	cancel()
	if err == nil {
		return user, nil
	}
	g.logger.Debug("No user for firebase uid", zap.String("uid", claims.UID), zap.Error(err))

	if claims.Email == "" {
		return nil, errNoEmail
	}

	lookupCtx, cancel = context.WithTimeout(ctx, g.cfg.LookupTimeout)
	user, err = g.users.GetByEmail(lookupCtx, claims.Email)
	cancel()
	if err == nil {
		if user.FirebaseUID == "" || user.HasSyntheticUID() {
			if linkErr := g.users.LinkFirebaseUID(ctx, user, claims.UID); linkErr != nil {
				g.logger.Warn("Failed to backfill firebase uid", zap.String("user_id", user.ID), zap.String("uid", claims.UID), zap.Error(linkErr))
			} else {
				g.logger.Info("Linked firebase uid to existing user", zap.String("user_id", user.ID), zap.String("uid", claims.UID))
			}
		}
		return user, nil
	}

	return g.create(ctx, claims)
}

func (g *AuthGate) create(ctx context.Context, claims *identity.Claims) (*models.User, error) {
	fullName := claims.Name
	if fullName == "" {
		fullName = models.EmailLocalPart(claims.Email)
	}
	if fullName == "" {
		fullName = models.DefaultFullName
	}

	user, err := g.users.CreateUser(ctx, &models.User{
		Email:       claims.Email,
		FullName:    fullName,
		Role:        models.RoleUser,
		FirebaseUID: claims.UID,
		Picture:     claims.Picture,
	})
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return g.reread(ctx, claims)
		}
		return nil, err
	}

	created := *user
	g.background.Add(1)
	go func() {
		defer g.background.Done()
		crmCtx, cancel := context.WithTimeout(context.Background(), g.cfg.CRMCreateTimeout)
		defer cancel()
		if err := g.contacts.EnsureCRMContact(crmCtx, &created); err != nil {
			g.logger.Warn("Failed to create CRM contact for new user", zap.String("user_id", created.ID), zap.Error(err))
		}
	}()
	return user, nil
}

// reread loads the record a concurrent request created first. The UID is the stronger key:
// the winner may have stored a different email casing or a later email change.
func (g *AuthGate) reread(ctx context.Context, claims *identity.Claims) (*models.User, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, g.cfg.LookupTimeout)
	user, err := g.users.GetByFirebaseUID(lookupCtx, claims.UID)
	cancel()
	if err == nil {
		return user, nil
	}
	lookupCtx, cancel = context.WithTimeout(ctx, g.cfg.LookupTimeout)
	defer cancel()
	return g.users.GetByEmail(lookupCtx, claims.Email)
}

// CurrentUser returns the user attached by the gate.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// CurrentClaims returns the verified token claims attached by the gate.
func CurrentClaims(c *gin.Context) (*identity.Claims, bool) {
	v, ok := c.Get(ctxClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*identity.Claims)
	return claims, ok && claims != nil
}

// RequireAdmin must run after Required.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "Administrator role required"})
			return
		}
		c.Next()
	}
}
