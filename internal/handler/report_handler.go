package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"campusmarket/internal/service"
)

// ReportHandler handles report endpoints.
type ReportHandler struct {
	reportService service.ReportService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// CreateReportRequest files a report against an item.
type CreateReportRequest struct {
	ItemID int64  `json:"item_id" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

// ResolveReportRequest is the optional body of a resolve call.
type ResolveReportRequest struct {
	Status string `json:"status"`
}

// CreateReportResponse is returned by Create.
type CreateReportResponse struct {
	ID int64 `json:"id"`
}

// Create godoc
// @Summary Report a listing
// @Tags reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateReportRequest true "Report"
// @Success 201 {object} CreateReportResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /reports [post]
func (h *ReportHandler) Create(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}

	var req CreateReportRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	report, err := h.reportService.Create(c.Request().Context(), caller, req.ItemID, req.Reason)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusCreated, CreateReportResponse{ID: report.ID})
}

// List godoc
// @Summary List reports (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.ReportDetail
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/reports [get]
func (h *ReportHandler) List(c echo.Context) error {
	reports, err := h.reportService.List(c.Request().Context())
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, reports)
}

// Resolve godoc
// @Summary Resolve a report (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Report ID"
// @Param request body ResolveReportRequest false "Only \"resolved\" is accepted"
// @Success 200 {object} model.Report
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/reports/{id} [put]
func (h *ReportHandler) Resolve(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req ResolveReportRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	report, err := h.reportService.Resolve(c.Request().Context(), id, req.Status)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, report)
}
