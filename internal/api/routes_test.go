package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fawzii0x3/breath-school-api/internal/config"
	"github.com/fawzii0x3/breath-school-api/internal/core"
	"github.com/fawzii0x3/breath-school-api/internal/identity"
	"github.com/fawzii0x3/breath-school-api/internal/middleware"
	"github.com/fawzii0x3/breath-school-api/internal/models"
)

// MockUserService is a mock implementation of core.UserService.
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) user(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	return m.user(m.Called(ctx, userID))
}

func (m *MockUserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.user(m.Called(ctx, email))
}

func (m *MockUserService) GetByFirebaseUID(ctx context.Context, uid string) (*models.User, error) {
	return m.user(m.Called(ctx, uid))
}

func (m *MockUserService) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	return m.user(m.Called(ctx, u))
}

func (m *MockUserService) LinkFirebaseUID(ctx context.Context, u *models.User, uid string) error {
	return m.Called(ctx, u, uid).Error(0)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	return m.user(m.Called(ctx, userID, req))
}

func (m *MockUserService) UpdateSubscriptionStatus(ctx context.Context, userID string, req models.UpdateSubscriptionRequest) (*models.User, error) {
	return m.user(m.Called(ctx, userID, req))
}

func (m *MockUserService) favorite(args mock.Arguments) (*models.FavoriteResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FavoriteResult), args.Error(1)
}

func (m *MockUserService) AddFavoriteMusic(ctx context.Context, userID, musicID string) (*models.FavoriteResult, error) {
	return m.favorite(m.Called(ctx, userID, musicID))
}

func (m *MockUserService) AddFavoriteVideo(ctx context.Context, userID, videoID string) (*models.FavoriteResult, error) {
	return m.favorite(m.Called(ctx, userID, videoID))
}

func (m *MockUserService) DeleteUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

// MockReconciliationService is a mock implementation of core.ReconciliationService.
type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) ResolveOrCreateUser(ctx context.Context, email string) (*core.ResolveResult, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.ResolveResult), args.Error(1)
}

func (m *MockReconciliationService) EnsureCRMContact(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

type stubCourses struct {
	core.CourseService
	err error
}

func (s stubCourses) GetCourse(context.Context, string, *models.User) (*models.Course, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Course{ID: "c1", Title: "Intro"}, nil
}

func (s stubCourses) ListCourses(context.Context, *models.User) ([]*models.Course, error) {
	return nil, nil
}

type stubThemes struct{ core.ThemeService }

type stubVerifier map[string]*identity.Claims

func (s stubVerifier) Verify(_ context.Context, token string) (*identity.Claims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, identity.ErrInvalidCredential
}

var ana = &models.User{ID: "u1", Email: "ana@example.com", FullName: "Ana", FirebaseUID: "uid-ana", Role: models.RoleUser}

type testServer struct {
	router *gin.Engine
	users  *MockUserService
	recon  *MockReconciliationService
}

func newTestServer(t *testing.T, courses core.CourseService) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := &MockUserService{}
	users.On("GetByFirebaseUID", mock.Anything, "uid-ana").Return(ana, nil).Maybe()
	recon := &MockReconciliationService{}

	gate := middleware.NewAuthGate(stubVerifier{"ana-token": {UID: "uid-ana", Email: "ana@example.com"}},
		users, recon, middleware.AuthGateConfig{}, zap.NewNop())
	router := gin.New()
	SetupRoutes(router, &config.Config{RateLimitRPS: 100, RateLimitBurst: 100}, zap.NewNop(), gate, Services{
		Users:          users,
		Reconciliation: recon,
		Courses:        courses,
		Themes:         stubThemes{},
	})
	return &testServer{router: router, users: users, recon: recon}
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestCheckAndCreateReturnsEnvelope(t *testing.T) {
	s := newTestServer(t, stubCourses{})
	s.recon.On("ResolveOrCreateUser", mock.Anything, "new@example.com").
		Return(&core.ResolveResult{User: &models.User{ID: "u9", Email: "new@example.com"}, Created: true}, nil)

	w := s.do(http.MethodGet, "/api/v1/check-and-create/new@example.com", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool        `json:"success"`
		Created *bool       `json:"created"`
		Data    models.User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.NotNil(t, body.Created)
	assert.True(t, *body.Created)
	assert.Equal(t, "u9", body.Data.ID)
}

func TestCheckAndCreateInvalidEmail(t *testing.T) {
	s := newTestServer(t, stubCourses{})
	s.recon.On("ResolveOrCreateUser", mock.Anything, " ").Return(nil, core.ErrInvalidEmail)

	w := s.do(http.MethodGet, "/api/v1/users/%20", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestUpdateSubscriptionStatus(t *testing.T) {
	s := newTestServer(t, stubCourses{})
	updated := *ana
	updated.Suscription = true
	s.users.On("UpdateSubscriptionStatus", mock.Anything, "u1", mock.MatchedBy(func(req models.UpdateSubscriptionRequest) bool {
		return req.Suscription != nil && *req.Suscription && req.IsStartSubscription == nil
	})).Return(&updated, nil)

	w := s.do(http.MethodPut, "/api/v1/updateSubscriptionStatus", "ana-token", `{"suscription":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"suscription":true`)
	s.users.AssertExpectations(t)
}

func TestUpdateSubscriptionStatusRequiresAField(t *testing.T) {
	s := newTestServer(t, stubCourses{})
	w := s.do(http.MethodPut, "/api/v1/updateSubscriptionStatus", "ana-token", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t, stubCourses{})
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/me", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodDelete, "/api/v1/delete", "bad", "").Code)
}

func TestAddFavoriteMusicNotFound(t *testing.T) {
	s := newTestServer(t, stubCourses{})
	s.users.On("AddFavoriteMusic", mock.Anything, "u1", "track-7").Return(nil, core.ErrUserNotFound)

	w := s.do(http.MethodPut, "/api/v1/add-favorite/music/track-7", "ana-token", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddFavoriteUnknownItem(t *testing.T) {
	s := newTestServer(t, stubCourses{})
	s.users.On("AddFavoriteVideo", mock.Anything, "u1", "nope").Return(nil, fmt.Errorf("%w: video 'nope'", core.ErrMediaNotFound))

	w := s.do(http.MethodPut, "/api/v1/add-favorite/video/nope", "ana-token", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Item not found")
}

func TestAddFavoriteToggleResponses(t *testing.T) {
	s := newTestServer(t, stubCourses{})
	s.users.On("AddFavoriteMusic", mock.Anything, "u1", "track-1").
		Return(&models.FavoriteResult{ItemID: "track-1", Kind: models.FavoriteMusic, Favorited: true}, nil).Once()
	s.users.On("AddFavoriteMusic", mock.Anything, "u1", "track-1").
		Return(&models.FavoriteResult{ItemID: "track-1", Kind: models.FavoriteMusic, Favorited: false}, nil).Once()

	added := s.do(http.MethodPut, "/api/v1/add-favorite/music/track-1", "ana-token", "")
	require.Equal(t, http.StatusOK, added.Code)
	assert.JSONEq(t, `{"success":true,"message":"Added to favorites","data":{"_id":"track-1","kind":"music","favorited":true}}`, added.Body.String())

	removed := s.do(http.MethodPut, "/api/v1/add-favorite/music/track-1", "ana-token", "")
	require.Equal(t, http.StatusOK, removed.Code)
	assert.Contains(t, removed.Body.String(), `"favorited":false`)
	assert.Contains(t, removed.Body.String(), "Removed from favorites")
	s.users.AssertExpectations(t)
}

func TestPremiumCourseStatusCodes(t *testing.T) {
	anon := newTestServer(t, stubCourses{err: core.ErrAuthRequired})
	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodGet, "/api/v1/courses/c1", "", "").Code)

	free := newTestServer(t, stubCourses{err: core.ErrPremiumRequired})
	assert.Equal(t, http.StatusForbidden, free.do(http.MethodGet, "/api/v1/courses/c1", "ana-token", "").Code)

	missing := newTestServer(t, stubCourses{err: core.ErrCourseNotFound})
	assert.Equal(t, http.StatusNotFound, missing.do(http.MethodGet, "/api/v1/courses/zzz", "", "").Code)

	list := newTestServer(t, stubCourses{})
	w := list.do(http.MethodGet, "/api/v1/courses", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestThemeWritesNeedAdmin(t *testing.T) {
	s := newTestServer(t, stubCourses{})
	w := s.do(http.MethodPost, "/api/v1/themes", "ana-token", `{"name":"dark"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, stubCourses{})
	w := s.do(http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"UP"`)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/metrics", "", "").Code)
}
