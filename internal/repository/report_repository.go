package repository

import (
	"context"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"civicwatch/internal/model"
)

// ReportFilter narrows a report listing. Empty fields impose no constraint.
type ReportFilter struct {
	Status   model.ReportStatus
	Category model.Category
	Severity model.Severity
	Offset   int
	Limit    int
}

// Bounds is a longitude/latitude bounding box around a center point.
// Rows are returned nearest to the center first, at most Limit of them when Limit > 0.
type Bounds struct {
	MinLng, MaxLng       float64
	MinLat, MaxLat       float64
	CenterLng, CenterLat float64
	Limit                int
}

// ReportRepository defines report persistence operations.
type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReportStatus, adminID uuid.UUID) error
	UpdateImageURL(ctx context.Context, id uuid.UUID, url string) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Report, error)
	FindByCreator(ctx context.Context, userID uuid.UUID) ([]model.Report, error)
	List(ctx context.Context, filter ReportFilter) ([]model.Report, int64, error)
	CountByStatus(ctx context.Context) (map[model.ReportStatus]int64, error)
	FindWithinBounds(ctx context.Context, bounds Bounds) ([]model.Report, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

// Create creates a new report.
func (r *reportRepository) Create(ctx context.Context, report *model.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// UpdateStatus writes only the status and updated_by columns of a report.
func (r *reportRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReportStatus, adminID uuid.UUID) error {
	return r.updateColumns(ctx, id, map[string]interface{}{
		"status":     status,
		"updated_by": adminID,
	})
}

// UpdateImageURL writes only the image_url column of a report.
func (r *reportRepository) UpdateImageURL(ctx context.Context, id uuid.UUID, url string) error {
	return r.updateColumns(ctx, id, map[string]interface{}{
		"image_url": url,
	})
}

func (r *reportRepository) updateColumns(ctx context.Context, id uuid.UUID, columns map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Report{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Report{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

// Delete removes a report. A missing row yields gorm.ErrRecordNotFound.
func (r *reportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Report{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByID finds a report by ID.
func (r *reportRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Report, error) {
	var report model.Report
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// FindByCreator lists the reports of one user, newest first.
func (r *reportRepository) FindByCreator(ctx context.Context, userID uuid.UUID) ([]model.Report, error) {
	reports := []model.Report{}
	if err := r.db.WithContext(ctx).
		Where("created_by = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// List returns one page of reports matching the filter, newest first, and the total match count.
func (r *reportRepository) List(ctx context.Context, filter ReportFilter) ([]model.Report, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Report{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	reports := []model.Report{}
	page := query.Order("created_at DESC").Order("id DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		page = page.Limit(filter.Limit)
	}
	if err := page.Find(&reports).Error; err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// CountByStatus returns the number of reports per status.
func (r *reportRepository) CountByStatus(ctx context.Context) (map[model.ReportStatus]int64, error) {
	var rows []struct {
		Status model.ReportStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&model.Report{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[model.ReportStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// FindWithinBounds uses the location index to fetch reports inside a bounding box,
// ordered by equirectangular distance from the box center.
func (r *reportRepository) FindWithinBounds(ctx context.Context, bounds Bounds) ([]model.Report, error) {
	cosLat := math.Cos(bounds.CenterLat * math.Pi / 180)
	lngScale := cosLat * cosLat

	reports := []model.Report{}
	query := r.db.WithContext(ctx).
		Where("longitude BETWEEN ? AND ?", bounds.MinLng, bounds.MaxLng).
		Where("latitude BETWEEN ? AND ?", bounds.MinLat, bounds.MaxLat).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                "(longitude - ?) * (longitude - ?) * ? + (latitude - ?) * (latitude - ?), id",
			Vars:               []interface{}{bounds.CenterLng, bounds.CenterLng, lngScale, bounds.CenterLat, bounds.CenterLat},
			WithoutParentheses: true,
		}})
	if bounds.Limit > 0 {
		query = query.Limit(bounds.Limit)
	}
	if err := query.Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}
