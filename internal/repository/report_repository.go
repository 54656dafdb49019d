package repository

import (
	"context"

	"gorm.io/gorm"

	"campusmarket/internal/model"
)

// ReportRepository defines report persistence operations. Reports are never
// deleted.
type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) error
	FindByID(ctx context.Context, id int64) (*model.Report, error)
	ListDetailed(ctx context.Context) ([]model.ReportDetail, error)
	UpdateStatus(ctx context.Context, id int64, status model.ReportStatus) error
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *model.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *reportRepository) FindByID(ctx context.Context, id int64) (*model.Report, error) {
	var report model.Report
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// ListDetailed returns all reports newest first. Left joins keep reports
// whose item or reporter has since been deleted.
func (r *reportRepository) ListDetailed(ctx context.Context) ([]model.ReportDetail, error) {
	var details []model.ReportDetail
	err := r.db.WithContext(ctx).
		Table("reports").
		Select("reports.*, items.title AS item_title, users.name AS reporter_name").
		Joins("LEFT JOIN items ON items.id = reports.item_id").
		Joins("LEFT JOIN users ON users.id = reports.reporter_id").
		Order("reports.created_at DESC").Order("reports.id DESC").
		Scan(&details).Error
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (r *reportRepository) UpdateStatus(ctx context.Context, id int64, status model.ReportStatus) error {
	return r.db.WithContext(ctx).Model(&model.Report{}).Where("id = ?", id).Update("status", status).Error
}
