package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/lantern/internal/auth"
	"github.com/BradenHooton/lantern/internal/migrations"
	"github.com/BradenHooton/lantern/internal/models"
	"github.com/BradenHooton/lantern/internal/services"
	pkghttp "github.com/BradenHooton/lantern/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithIdentity attaches a resolved identity to the request, as Resolver.Middleware would
func WithIdentity(req *http.Request, user *models.User, method models.AuthMethod) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &models.Identity{User: user, Method: method}))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc  func(ctx context.Context, username, password string, rememberMe bool, meta models.SessionMetadata) (*services.LoginResult, error)
	LogoutFunc func(ctx context.Context, token string, user *models.User, meta models.SessionMetadata) error

	LogoutEverywhereFunc func(ctx context.Context, user *models.User, meta models.SessionMetadata) (int64, error)
}

func (m *MockAuthService) Login(ctx context.Context, username, password string, rememberMe bool, meta models.SessionMetadata) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, username, password, rememberMe, meta)
}

func (m *MockAuthService) Logout(ctx context.Context, token string, user *models.User, meta models.SessionMetadata) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, token, user, meta)
}

func (m *MockAuthService) LogoutEverywhere(ctx context.Context, user *models.User, meta models.SessionMetadata) (int64, error) {
	if m.LogoutEverywhereFunc == nil {
		return 0, nil
	}
	return m.LogoutEverywhereFunc(ctx, user, meta)
}

// MockSettingsService implements SettingsServiceInterface for testing
type MockSettingsService struct {
	GetProxyTrustConfigFunc    func(ctx context.Context) (models.ProxyTrustConfig, error)
	UpdateProxyTrustConfigFunc func(ctx context.Context, cfg models.ProxyTrustConfig, actor *models.User) (models.ProxyTrustConfig, []error, error)
}

func (m *MockSettingsService) GetProxyTrustConfig(ctx context.Context) (models.ProxyTrustConfig, error) {
	if m.GetProxyTrustConfigFunc == nil {
		return models.ProxyTrustConfig{}, nil
	}
	return m.GetProxyTrustConfigFunc(ctx)
}

func (m *MockSettingsService) UpdateProxyTrustConfig(ctx context.Context, cfg models.ProxyTrustConfig, actor *models.User) (models.ProxyTrustConfig, []error, error) {
	if m.UpdateProxyTrustConfigFunc == nil {
		return cfg, nil, nil
	}
	return m.UpdateProxyTrustConfigFunc(ctx, cfg, actor)
}

// MockDatabasePinger implements DatabasePinger for testing
type MockDatabasePinger struct {
	HealthCheckFunc func(ctx context.Context) error
}

func (m *MockDatabasePinger) HealthCheck(ctx context.Context) error {
	if m.HealthCheckFunc == nil {
		return nil
	}
	return m.HealthCheckFunc(ctx)
}

// MockSchemaChecker implements SchemaChecker for testing
type MockSchemaChecker struct {
	CheckStatusFunc func(ctx context.Context) (*migrations.Status, error)
}

func (m *MockSchemaChecker) CheckStatus(ctx context.Context) (*migrations.Status, error) {
	if m.CheckStatusFunc == nil {
		return &migrations.Status{State: migrations.StateCurrent}, nil
	}
	return m.CheckStatusFunc(ctx)
}
