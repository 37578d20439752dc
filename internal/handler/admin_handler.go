package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"civicwatch/internal/model"
	"civicwatch/internal/service"
)

// AdminHandler handles report triage endpoints.
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// UpdateStatusRequest represents a status change.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListReports godoc
// @Summary List all reports
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, in_progress, resolved or all"
// @Param category query string false "road, water, sanitation, electricity, waste, other or all"
// @Param severity query string false "low, medium, high or all"
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Page size (default 10, max 100)"
// @Success 200 {object} service.ReportPage
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/reports [get]
func (h *AdminHandler) ListReports(c echo.Context) error {
	filter := service.ListFilter{
		Status:   c.QueryParam("status"),
		Category: c.QueryParam("category"),
		Severity: c.QueryParam("severity"),
	}
	err := echo.QueryParamsBinder(c).
		Int("page", &filter.Page).
		Int("limit", &filter.Limit).
		BindError()
	if err != nil {
		return invalidBody(err)
	}

	page, err := h.adminService.ListAll(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// UpdateStatus godoc
// @Summary Change a report's status
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param request body UpdateStatusRequest true "New status"
// @Success 200 {object} ReportResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/reports/{id}/status [patch]
func (h *AdminHandler) UpdateStatus(c echo.Context) error {
	identity, err := mustIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	report, err := h.adminService.UpdateStatus(c.Request().Context(), id, model.ReportStatus(req.Status), identity.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ReportResponse{Report: report})
}

// Stats godoc
// @Summary Report counts by status
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Stats
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c echo.Context) error {
	stats, err := h.adminService.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
