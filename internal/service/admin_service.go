package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"civicwatch/internal/errors"
	"civicwatch/internal/model"
	"civicwatch/internal/repository"
)

const (
	// DefaultPageSize is the admin listing page size when none is given.
	DefaultPageSize = 10
	// MaxPageSize caps the admin listing page size.
	MaxPageSize = 100

	filterAll = "all"
)

// ListFilter holds the raw admin listing query. Empty or "all" filters match everything.
type ListFilter struct {
	Status   string
	Category string
	Severity string
	Page     int
	Limit    int
}

// ReportPage is one page of the admin report listing.
type ReportPage struct {
	Reports     []model.Report `json:"reports"`
	Total       int64          `json:"total"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
}

// Stats summarizes reports by status. Open counts pending reports.
type Stats struct {
	Total      int64 `json:"total"`
	Open       int64 `json:"open"`
	InProgress int64 `json:"inProgress"`
	Resolved   int64 `json:"resolved"`
}

// AdminService exposes report triage for administrators.
type AdminService interface {
	ListAll(ctx context.Context, filter ListFilter) (*ReportPage, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReportStatus, adminID uuid.UUID) (*model.Report, error)
	Stats(ctx context.Context) (*Stats, error)
}

type adminService struct {
	repo    repository.ReportRepository
	reports ReportService
}

// NewAdminService creates a new admin service.
func NewAdminService(repo repository.ReportRepository, reports ReportService) AdminService {
	return &adminService{repo: repo, reports: reports}
}

// ListAll returns one page of reports matching every given filter, newest first.
func (s *adminService) ListAll(ctx context.Context, filter ListFilter) (*ReportPage, error) {
	query, err := parseFilter(filter)
	if err != nil {
		return nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	switch {
	case limit < 1:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	query.Offset = (page - 1) * limit
	query.Limit = limit

	reports, total, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	return &ReportPage{
		Reports:     reports,
		Total:       total,
		TotalPages:  int((total + int64(limit) - 1) / int64(limit)),
		CurrentPage: page,
	}, nil
}

// UpdateStatus changes a report's status and notifies its owner.
func (s *adminService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReportStatus, adminID uuid.UUID) (*model.Report, error) {
	return s.reports.UpdateStatus(ctx, id, status, adminID)
}

// Stats counts reports per status.
func (s *adminService) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count reports: %w", err)
	}

	stats := &Stats{
		Open:       counts[model.StatusPending],
		InProgress: counts[model.StatusInProgress],
		Resolved:   counts[model.StatusResolved],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func parseFilter(filter ListFilter) (repository.ReportFilter, error) {
	var query repository.ReportFilter

	if v := normalizeFilter(filter.Status); v != "" {
		query.Status = model.ReportStatus(v)
		if !query.Status.Valid() {
			return query, errors.NewValidationError("status", fmt.Sprintf("unknown status %q", v))
		}
	}
	if v := normalizeFilter(filter.Category); v != "" {
		query.Category = model.Category(v)
		if !query.Category.Valid() {
			return query, errors.NewValidationError("category", fmt.Sprintf("unknown category %q", v))
		}
	}
	if v := normalizeFilter(filter.Severity); v != "" {
		query.Severity = model.Severity(v)
		if !query.Severity.Valid() {
			return query, errors.NewValidationError("severity", fmt.Sprintf("unknown severity %q", v))
		}
	}
	return query, nil
}

func normalizeFilter(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, filterAll) {
		return ""
	}
	return v
}
