package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicwatch/internal/auth"
	"civicwatch/internal/config"
	"civicwatch/internal/db"
	"civicwatch/internal/errors"
	"civicwatch/internal/handler"
	"civicwatch/internal/model"
	"civicwatch/internal/notify"
	"civicwatch/internal/ratelimit"
	"civicwatch/internal/repository"
	"civicwatch/internal/service"
	"civicwatch/internal/storage"
)

type testServer struct {
	e         *echo.Echo
	adminRepo repository.AdminRepository
}

func testConfig() *config.Config {
	return &config.Config{
		Env:              config.EnvDevelopment,
		CORSOrigin:       "http://localhost:3000",
		RateLimitWindow:  time.Minute,
		RateLimitMax:     100,
		AuthRateLimitMax: 20,
		UploadMaxBytes:   1 << 20,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	gormDB, err := db.Open(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	userRepo := repository.NewUserRepository(gormDB)
	adminRepo := repository.NewAdminRepository(gormDB)
	reportRepo := repository.NewReportRepository(gormDB)

	jwtService := auth.NewJWTService("test-secret", time.Hour)
	registry := notify.NewRegistry()
	notifier := notify.NewNotifier(registry, nil)
	store := storage.NewLocal(t.TempDir(), "/uploads")

	authService := service.NewAuthService(userRepo, adminRepo, jwtService, nil)
	reportService := service.NewReportService(reportRepo, notifier, store, nil)
	adminService := service.NewAdminService(reportRepo, reportService)

	e := echo.New()
	Register(e, cfg, Dependencies{
		AuthHandler:         handler.NewAuthHandler(authService),
		ReportHandler:       handler.NewReportHandler(reportService, cfg.UploadMaxBytes),
		AdminHandler:        handler.NewAdminHandler(adminService),
		NotificationHandler: handler.NewNotificationHandler(notifier),
		WebSocket:           notify.NewHub(registry, jwtService, cfg.CORSOrigin, nil),
		JWTService:          jwtService,
		AuthLimiter:         ratelimit.New(nil, "auth", cfg.RateLimitWindow, cfg.AuthRateLimitMax),
		APILimiter:          ratelimit.New(nil, "api", cfg.RateLimitWindow, cfg.RateLimitMax),
		UploadDir:           store.Root(),
	})
	return &testServer{e: e, adminRepo: adminRepo}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", handler.RegisterRequest{
		Email: email, Password: "secret123", Name: "Citizen",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[handler.AuthResponse](t, rec).Token
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	hashed, err := auth.HashPassword("admin-secret")
	require.NoError(t, err)
	require.NoError(t, s.adminRepo.Create(context.Background(), &model.Admin{
		Email: "ops@city.gov", Name: "Ops", PasswordHash: hashed,
	}))

	rec := s.do(t, http.MethodPost, "/api/admin/login", handler.LoginRequest{Email: "ops@city.gov", Password: "admin-secret"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[handler.AdminAuthResponse](t, rec).Token
}

func newReportBody(status string) map[string]interface{} {
	return map[string]interface{}{
		"title":       "Overflowing bin " + status,
		"description": "Bin on 5th avenue has not been emptied",
		"category":    "waste",
		"severity":    "medium",
		"location":    map[string]interface{}{"type": "Point", "coordinates": []float64{-79.347015, 43.65107}},
	}
}

func TestRouter_Healthz(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, testConfig())

	for _, path := range []string{"/api/reports/mine", "/api/auth/verify", "/api/admin/stats"} {
		rec := s.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		body := decode[errors.ErrorResponse](t, rec)
		assert.False(t, body.Success)
		assert.Equal(t, "AUTHENTICATION_ERROR", body.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/reports/mine", nil, "garbage.token.value")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RegisterAndVerify(t *testing.T) {
	s := newTestServer(t, testConfig())
	token := s.register(t, "jane@example.com")

	rec := s.do(t, http.MethodGet, "/api/auth/verify", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]map[string]interface{}](t, rec)
	assert.Equal(t, "jane@example.com", body["user"]["email"])
	assert.NotContains(t, body["user"], "passwordHash")

	dup := s.do(t, http.MethodPost, "/api/auth/register", handler.RegisterRequest{
		Email: "jane@example.com", Password: "secret123", Name: "Jane",
	}, "")
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Equal(t, "CONFLICT", decode[errors.ErrorResponse](t, dup).Code)

	bad := s.do(t, http.MethodPost, "/api/auth/register", handler.RegisterRequest{
		Email: "not-an-email", Password: "secret123", Name: "Jane",
	}, "")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "email", decode[errors.ErrorResponse](t, bad).Field)

	wrong := s.do(t, http.MethodPost, "/api/auth/login", handler.LoginRequest{Email: "jane@example.com", Password: "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
}

func TestRouter_ReportOwnership(t *testing.T) {
	s := newTestServer(t, testConfig())
	alice := s.register(t, "alice@example.com")
	bob := s.register(t, "bob@example.com")

	created := s.do(t, http.MethodPost, "/api/reports", newReportBody("a"), alice)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	report := decode[handler.ReportResponse](t, created).Report
	assert.Equal(t, model.StatusPending, report.Status)
	assert.Equal(t, []float64{-79.347015, 43.65107}, report.Location.Coordinates)

	mine := decode[handler.ReportListResponse](t, s.do(t, http.MethodGet, "/api/reports/mine", nil, bob))
	assert.Empty(t, mine.Reports)

	forbidden := s.do(t, http.MethodDelete, "/api/reports/"+report.ID.String(), nil, bob)
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	deleted := s.do(t, http.MethodDelete, "/api/reports/"+report.ID.String(), nil, alice)
	assert.Equal(t, http.StatusOK, deleted.Code)
	assert.True(t, decode[handler.MessageResponse](t, deleted).Success)

	gone := s.do(t, http.MethodGet, "/api/reports/"+report.ID.String(), nil, alice)
	assert.Equal(t, http.StatusNotFound, gone.Code)

	badID := s.do(t, http.MethodGet, "/api/reports/not-a-uuid", nil, alice)
	assert.Equal(t, http.StatusBadRequest, badID.Code)
}

func TestRouter_CreateReportValidation(t *testing.T) {
	s := newTestServer(t, testConfig())
	token := s.register(t, "jane@example.com")

	body := newReportBody("x")
	body["severity"] = "critical"
	rec := s.do(t, http.MethodPost, "/api/reports", body, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "severity", decode[errors.ErrorResponse](t, rec).Field)

	body = newReportBody("x")
	body["location"] = map[string]interface{}{"type": "Point", "coordinates": []float64{1}}
	rec = s.do(t, http.MethodPost, "/api/reports", body, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "location", decode[errors.ErrorResponse](t, rec).Field)

	body = newReportBody("x")
	delete(body, "category")
	rec = s.do(t, http.MethodPost, "/api/reports", body, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.CategoryOther, decode[handler.ReportResponse](t, rec).Report.Category)
}

func TestRouter_AdminTriage(t *testing.T) {
	s := newTestServer(t, testConfig())
	user := s.register(t, "jane@example.com")
	admin := s.adminToken(t)

	var ids []string
	for _, tag := range []string{"one", "two", "three"} {
		rec := s.do(t, http.MethodPost, "/api/reports", newReportBody(tag), user)
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, decode[handler.ReportResponse](t, rec).Report.ID.String())
	}

	userOnAdmin := s.do(t, http.MethodGet, "/api/admin/stats", nil, user)
	assert.Equal(t, http.StatusForbidden, userOnAdmin.Code)

	rec := s.do(t, http.MethodPatch, "/api/admin/reports/"+ids[0]+"/status", handler.UpdateStatusRequest{Status: "resolved"}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[handler.ReportResponse](t, rec).Report
	assert.Equal(t, model.StatusResolved, updated.Status)
	require.NotNil(t, updated.UpdatedBy)

	invalid := s.do(t, http.MethodPatch, "/api/admin/reports/"+ids[1]+"/status", handler.UpdateStatusRequest{Status: "closed"}, admin)
	assert.Equal(t, http.StatusBadRequest, invalid.Code)

	page := decode[service.ReportPage](t, s.do(t, http.MethodGet, "/api/admin/reports?status=pending&page=1&limit=1", nil, admin))
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Len(t, page.Reports, 1)

	unknown := s.do(t, http.MethodGet, "/api/admin/reports?severity=critical", nil, admin)
	assert.Equal(t, http.StatusBadRequest, unknown.Code)

	badPage := s.do(t, http.MethodGet, "/api/admin/reports?page=abc", nil, admin)
	assert.Equal(t, http.StatusBadRequest, badPage.Code)

	stats := decode[service.Stats](t, s.do(t, http.MethodGet, "/api/admin/stats", nil, admin))
	assert.Equal(t, service.Stats{Total: 3, Open: 2, InProgress: 0, Resolved: 1}, stats)
}

func TestRouter_AuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.AuthRateLimitMax = 2
	s := newTestServer(t, cfg)

	login := handler.LoginRequest{Email: "nobody@example.com", Password: "whatever"}
	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/api/auth/login", login, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := s.do(t, http.MethodPost, "/api/auth/login", login, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decode[errors.ErrorResponse](t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, "RATE_LIMITED", body.Code)

	// The general API keeps its own window.
	other := s.do(t, http.MethodGet, "/api/reports/mine", nil, "")
	assert.Equal(t, http.StatusUnauthorized, other.Code)
}

func TestRouter_TestNotificationOnlyOutsideProduction(t *testing.T) {
	dev := newTestServer(t, testConfig())
	rec := dev.do(t, http.MethodPost, "/api/test-notification", handler.TestNotificationRequest{
		UserID: "3f1c8a8e-4a53-4c34-9a8e-1f6d4c8b9e21", Message: "hello",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[handler.TestNotificationResponse](t, rec)
	assert.True(t, resp.Success)
	assert.False(t, resp.Delivered, "no live connection")

	cfg := testConfig()
	cfg.Env = config.EnvProduction
	prod := newTestServer(t, cfg)
	rec = prod.do(t, http.MethodPost, "/api/test-notification", handler.TestNotificationRequest{
		UserID: "3f1c8a8e-4a53-4c34-9a8e-1f6d4c8b9e21", Message: "hello",
	}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_UnknownRouteKeepsEchoStatus(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(t, http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[errors.ErrorResponse](t, rec)
	assert.Equal(t, "NOT_FOUND", body.Code)
}
