package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"civicwatch/internal/errors"
	"civicwatch/internal/model"
	"civicwatch/internal/service"
)

// ReportHandler handles citizen report endpoints.
type ReportHandler struct {
	reportService  service.ReportService
	maxUploadBytes int64
}

// NewReportHandler creates a new report handler.
func NewReportHandler(reportService service.ReportService, maxUploadBytes int64) *ReportHandler {
	return &ReportHandler{reportService: reportService, maxUploadBytes: maxUploadBytes}
}

// CreateReportRequest represents a new report.
type CreateReportRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"required,max=5000"`
	Category    string          `json:"category" validate:"omitempty,oneof=road water sanitation electricity waste other"`
	Severity    string          `json:"severity" validate:"required,oneof=low medium high"`
	Location    *model.GeoPoint `json:"location" validate:"required"`
}

// ReportResponse wraps a single report.
type ReportResponse struct {
	Report *model.Report `json:"report"`
}

// ReportListResponse wraps a list of reports.
type ReportListResponse struct {
	Reports []model.Report `json:"reports"`
}

// Create godoc
// @Summary Submit a report
// @Tags reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateReportRequest true "Report data"
// @Success 201 {object} ReportResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /reports [post]
func (h *ReportHandler) Create(c echo.Context) error {
	identity, err := mustIdentity(c)
	if err != nil {
		return err
	}

	var req CreateReportRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	report, err := h.reportService.Create(c.Request().Context(), identity.ID, service.CreateReportInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    model.Category(req.Category),
		Severity:    model.Severity(req.Severity),
		Location:    *req.Location,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ReportResponse{Report: report})
}

// ListMine godoc
// @Summary List the caller's reports
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ReportListResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /reports/mine [get]
func (h *ReportHandler) ListMine(c echo.Context) error {
	identity, err := mustIdentity(c)
	if err != nil {
		return err
	}

	reports, err := h.reportService.ListOwn(c.Request().Context(), identity.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ReportListResponse{Reports: reports})
}

// Nearby godoc
// @Summary List reports around a point, closest first
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param lng query number true "Longitude"
// @Param lat query number true "Latitude"
// @Param radius query number false "Radius in meters (default 5000, max 50000)"
// @Param limit query int false "Maximum results (default 20, max 100)"
// @Success 200 {object} ReportListResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /reports/nearby [get]
func (h *ReportHandler) Nearby(c echo.Context) error {
	var query service.NearbyQuery
	err := echo.QueryParamsBinder(c).
		MustFloat64("lng", &query.Longitude).
		MustFloat64("lat", &query.Latitude).
		Float64("radius", &query.RadiusMeters).
		Int("limit", &query.Limit).
		BindError()
	if err != nil {
		return invalidBody(err)
	}

	reports, err := h.reportService.Nearby(c.Request().Context(), query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ReportListResponse{Reports: reports})
}

// Get godoc
// @Summary Get a report
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} ReportResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	report, err := h.reportService.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ReportResponse{Report: report})
}

// UploadImage godoc
// @Summary Attach an image to the caller's report
// @Tags reports
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param image formData file true "JPEG, PNG, GIF or WebP image"
// @Success 200 {object} ReportResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /reports/{id}/image [post]
func (h *ReportHandler) UploadImage(c echo.Context) error {
	identity, err := mustIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	header, err := c.FormFile("image")
	if err != nil {
		return errors.NewValidationError("image", "is required")
	}
	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		return errors.NewValidationError("image", fmt.Sprintf("must be at most %d bytes", h.maxUploadBytes))
	}

	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	report, err := h.reportService.AttachImage(c.Request().Context(), id, identity.ID, data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ReportResponse{Report: report})
}

// Delete godoc
// @Summary Delete the caller's report
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /reports/{id} [delete]
func (h *ReportHandler) Delete(c echo.Context) error {
	identity, err := mustIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	if err := h.reportService.Delete(c.Request().Context(), id, identity.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "report deleted"})
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errors.NewValidationError("id", "must be a valid id")
	}
	return id, nil
}
