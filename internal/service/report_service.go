package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	apperrors "campusmarket/internal/errors"
	"campusmarket/internal/model"
	"campusmarket/internal/repository"
)

// ReportService files and moderates item reports.
type ReportService interface {
	Create(ctx context.Context, identity model.Identity, itemID int64, reason string) (*model.Report, error)
	List(ctx context.Context) ([]model.ReportDetail, error)
	Resolve(ctx context.Context, id int64, status string) (*model.Report, error)
}

type reportService struct {
	reports repository.ReportRepository
	items   repository.ItemRepository
	users   repository.UserRepository
}

// NewReportService creates a new report service.
func NewReportService(reports repository.ReportRepository, items repository.ItemRepository, users repository.UserRepository) ReportService {
	return &reportService{reports: reports, items: items, users: users}
}

// Create files an open report against an existing item.
func (s *reportService) Create(ctx context.Context, identity model.Identity, itemID int64, reason string) (*model.Report, error) {
	switch identity.Role {
	case model.RoleUser:
	case model.RoleAdmin:
		return nil, fmt.Errorf("%w: administrators cannot file reports", apperrors.ErrForbidden)
	default:
		return nil, apperrors.ErrForbidden
	}

	reason = strings.TrimSpace(reason)
	if itemID <= 0 || reason == "" {
		return nil, fmt.Errorf("%w: item_id and reason are required", apperrors.ErrMissingFields)
	}

	if _, err := s.items.FindByID(ctx, itemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("item %w", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("find item: %w", err)
	}
	if _, err := s.users.FindByID(ctx, identity.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, fmt.Errorf("find reporter: %w", err)
	}

	report := &model.Report{
		ItemID:     itemID,
		ReporterID: identity.ID,
		Reason:     reason,
		Status:     model.ReportStatusOpen,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return report, nil
}

func (s *reportService) List(ctx context.Context) ([]model.ReportDetail, error) {
	details, err := s.reports.ListDetailed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	if details == nil {
		details = []model.ReportDetail{}
	}
	return details, nil
}

// Resolve marks the report resolved. status may be empty or "resolved";
// reports never move back to open. Resolving twice is a no-op.
func (s *reportService) Resolve(ctx context.Context, id int64, status string) (*model.Report, error) {
	switch model.ReportStatus(strings.TrimSpace(status)) {
	case "", model.ReportStatusResolved:
	default:
		return nil, fmt.Errorf("%w: status can only be set to %q", apperrors.ErrInvalidInput, model.ReportStatusResolved)
	}

	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("report %w", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	if report.Status == model.ReportStatusResolved {
		return report, nil
	}

	if err := s.reports.UpdateStatus(ctx, id, model.ReportStatusResolved); err != nil {
		return nil, fmt.Errorf("resolve report: %w", err)
	}
	report.Status = model.ReportStatusResolved
	return report, nil
}
