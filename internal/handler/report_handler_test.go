package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"civicwatch/internal/auth"
	"civicwatch/internal/errors"
	"civicwatch/internal/model"
	"civicwatch/internal/service"
)

// MockReportService is a mock implementation of ReportService.
type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) Create(ctx context.Context, userID uuid.UUID, input service.CreateReportInput) (*model.Report, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *MockReportService) ListOwn(ctx context.Context, userID uuid.UUID) ([]model.Report, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Report), args.Error(1)
}

func (m *MockReportService) GetByID(ctx context.Context, id uuid.UUID) (*model.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *MockReportService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockReportService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReportStatus, adminID uuid.UUID) (*model.Report, error) {
	args := m.Called(ctx, id, status, adminID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *MockReportService) Nearby(ctx context.Context, query service.NearbyQuery) ([]model.Report, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Report), args.Error(1)
}

func (m *MockReportService) AttachImage(ctx context.Context, id, userID uuid.UUID, image []byte) (*model.Report, error) {
	args := m.Called(ctx, id, userID, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func newAuthedContext(req *http.Request, rec *httptest.ResponseRecorder, userID uuid.UUID) echo.Context {
	e := echo.New()
	e.Validator = NewCustomValidator()
	c := e.NewContext(req, rec)
	c.Set(ContextKeyIdentity, auth.Identity{ID: userID, Role: model.RoleUser})
	return c
}

func multipartImage(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, "photo.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestReportHandler_UploadImage(t *testing.T) {
	userID, reportID := uuid.New(), uuid.New()
	image := []byte("\x89PNG\r\n\x1a\nrest-of-image")

	svc := new(MockReportService)
	svc.On("AttachImage", mock.Anything, reportID, userID, image).
		Return(&model.Report{ID: reportID, ImageURL: "/uploads/reports/x.png"}, nil)
	h := NewReportHandler(svc, 1<<20)

	body, contentType := multipartImage(t, "image", image)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	c := newAuthedContext(req, rec, userID)
	c.SetParamNames("id")
	c.SetParamValues(reportID.String())

	require.NoError(t, h.UploadImage(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/uploads/reports/x.png")
	svc.AssertExpectations(t)
}

func TestReportHandler_UploadImage_TooLarge(t *testing.T) {
	svc := new(MockReportService)
	h := NewReportHandler(svc, 4)

	body, contentType := multipartImage(t, "image", []byte("0123456789"))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	c := newAuthedContext(req, httptest.NewRecorder(), uuid.New())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.UploadImage(c)
	var vErr *errors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "image", vErr.Field)
	svc.AssertNotCalled(t, "AttachImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReportHandler_Nearby_ParsesQuery(t *testing.T) {
	svc := new(MockReportService)
	svc.On("Nearby", mock.Anything, service.NearbyQuery{Longitude: -79.3, Latitude: 43.6, RadiusMeters: 1500, Limit: 5}).
		Return([]model.Report{}, nil)
	h := NewReportHandler(svc, 0)

	req := httptest.NewRequest(http.MethodGet, "/?lng=-79.3&lat=43.6&radius=1500&limit=5", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Nearby(newAuthedContext(req, rec, uuid.New())))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reports":[]}`, rec.Body.String())

	missing := httptest.NewRequest(http.MethodGet, "/?lat=43.6", nil)
	err := h.Nearby(newAuthedContext(missing, httptest.NewRecorder(), uuid.New()))
	var vErr *errors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "lng", vErr.Field)
	svc.AssertExpectations(t)
}
