package service

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"civicwatch/internal/errors"
	"civicwatch/internal/model"
	"civicwatch/internal/repository"
	"civicwatch/internal/storage"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000

	// DefaultNearbyRadius is used when a nearby search gives no radius, in meters.
	DefaultNearbyRadius = 5000.0
	// MaxNearbyRadius caps the nearby search radius, in meters.
	MaxNearbyRadius = 50000.0
	// DefaultNearbyLimit is the number of reports a nearby search returns by default.
	DefaultNearbyLimit = 20
	// MaxNearbyLimit caps the nearby result count.
	MaxNearbyLimit = 100

	// nearbyCandidateLimit caps the rows a bounding-box query loads before distance filtering.
	nearbyCandidateLimit = 1000

	earthRadiusMeters = 6371000.0
	metersPerDegree   = 111320.0
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// StatusNotifier tells a report owner that their report changed.
type StatusNotifier interface {
	ReportStatusChanged(ctx context.Context, report *model.Report) bool
}

// CreateReportInput carries the user-supplied fields of a new report.
type CreateReportInput struct {
	Title       string
	Description string
	Category    model.Category
	Severity    model.Severity
	Location    model.GeoPoint
}

// NearbyQuery locates reports around a point.
type NearbyQuery struct {
	Longitude    float64
	Latitude     float64
	RadiusMeters float64
	Limit        int
}

// ReportService handles report operations.
type ReportService interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateReportInput) (*model.Report, error)
	ListOwn(ctx context.Context, userID uuid.UUID) ([]model.Report, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Report, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReportStatus, adminID uuid.UUID) (*model.Report, error)
	Nearby(ctx context.Context, query NearbyQuery) ([]model.Report, error)
	AttachImage(ctx context.Context, id, userID uuid.UUID, image []byte) (*model.Report, error)
}

type reportService struct {
	repo     repository.ReportRepository
	notifier StatusNotifier
	store    storage.Store
	logger   *slog.Logger
}

// NewReportService creates a new report service. notifier and store may be nil.
func NewReportService(
	repo repository.ReportRepository,
	notifier StatusNotifier,
	store storage.Store,
	logger *slog.Logger,
) ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &reportService{
		repo:     repo,
		notifier: notifier,
		store:    store,
		logger:   logger,
	}
}

// Create validates and persists a new pending report owned by userID.
func (s *reportService) Create(ctx context.Context, userID uuid.UUID, input CreateReportInput) (*model.Report, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)

	switch {
	case title == "":
		return nil, errors.NewValidationError("title", "is required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		return nil, errors.NewValidationError("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	case description == "":
		return nil, errors.NewValidationError("description", "is required")
	case utf8.RuneCountInString(description) > maxDescriptionLength:
		return nil, errors.NewValidationError("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	case !input.Severity.Valid():
		return nil, errors.NewValidationError("severity", "must be one of low, medium, high")
	}

	category := input.Category
	if category == "" {
		category = model.CategoryOther
	}
	if !category.Valid() {
		return nil, errors.NewValidationError("category", "must be one of road, water, sanitation, electricity, waste, other")
	}
	if !input.Location.Valid() {
		return nil, errors.NewValidationError("location", "must be a Point with [longitude, latitude] in range")
	}

	report := &model.Report{
		Title:       title,
		Description: description,
		Category:    category,
		Severity:    input.Severity,
		Status:      model.StatusPending,
		Location:    model.NewGeoPoint(input.Location.Coordinates[0], input.Location.Coordinates[1]),
		CreatedBy:   userID,
	}
	if err := s.repo.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return report, nil
}

// ListOwn returns the caller's reports, newest first.
func (s *reportService) ListOwn(ctx context.Context, userID uuid.UUID) ([]model.Report, error) {
	reports, err := s.repo.FindByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

// GetByID fetches one report.
func (s *reportService) GetByID(ctx context.Context, id uuid.UUID) (*model.Report, error) {
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("report: %w", errors.ErrNotFound)
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	return report, nil
}

// Delete removes a report owned by userID along with its stored image.
func (s *reportService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	report, err := s.ownedReport(ctx, id, userID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("report: %w", errors.ErrNotFound)
		}
		return fmt.Errorf("delete report: %w", err)
	}
	s.removeImage(ctx, report.ImageURL)
	return nil
}

// UpdateStatus sets a report's status on behalf of an administrator and
// notifies the owner once the change is stored.
func (s *reportService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReportStatus, adminID uuid.UUID) (*model.Report, error) {
	if !status.Valid() {
		return nil, errors.NewValidationError("status", "must be one of pending, in_progress, resolved")
	}

	if err := s.repo.UpdateStatus(ctx, id, status, adminID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("report: %w", errors.ErrNotFound)
		}
		return nil, fmt.Errorf("update report: %w", err)
	}
	report, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "report status updated",
		"report_id", report.ID,
		"status", report.Status,
		"admin_id", adminID,
	)
	if s.notifier != nil {
		s.notifier.ReportStatusChanged(ctx, report)
	}
	return report, nil
}

// Nearby returns reports within the radius of a point, closest first.
func (s *reportService) Nearby(ctx context.Context, query NearbyQuery) ([]model.Report, error) {
	center := model.NewGeoPoint(query.Longitude, query.Latitude)
	if !center.Valid() {
		return nil, errors.NewValidationError("location", "longitude and latitude out of range")
	}

	radius := query.RadiusMeters
	switch {
	case radius < 0 || math.IsNaN(radius):
		return nil, errors.NewValidationError("radius", "must be positive")
	case radius == 0:
		radius = DefaultNearbyRadius
	case radius > MaxNearbyRadius:
		radius = MaxNearbyRadius
	}
	limit := query.Limit
	switch {
	case limit <= 0:
		limit = DefaultNearbyLimit
	case limit > MaxNearbyLimit:
		limit = MaxNearbyLimit
	}

	candidates, err := s.repo.FindWithinBounds(ctx, boundingBox(query.Longitude, query.Latitude, radius))
	if err != nil {
		return nil, fmt.Errorf("find nearby reports: %w", err)
	}

	type ranked struct {
		report   model.Report
		distance float64
	}
	matches := make([]ranked, 0, len(candidates))
	for _, r := range candidates {
		d := haversine(query.Longitude, query.Latitude, r.Longitude, r.Latitude)
		if d <= radius {
			matches = append(matches, ranked{report: r, distance: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	reports := make([]model.Report, 0, len(matches))
	for _, m := range matches {
		reports = append(reports, m.report)
	}
	return reports, nil
}

// AttachImage stores an image for a report owned by userID and records its URL.
func (s *reportService) AttachImage(ctx context.Context, id, userID uuid.UUID, image []byte) (*model.Report, error) {
	if s.store == nil {
		return nil, stderrors.New("image storage is not configured")
	}
	if len(image) == 0 {
		return nil, errors.NewValidationError("image", "is required")
	}

	mtype := mimetype.Detect(image)
	contentType := strings.SplitN(mtype.String(), ";", 2)[0]
	if !allowedImageTypes[contentType] {
		return nil, errors.NewValidationError("image", "must be a jpeg, png, gif or webp image")
	}

	report, err := s.ownedReport(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("reports/%s/%s%s", report.ID, uuid.NewString(), mtype.Extension())
	url, err := s.store.Save(ctx, key, contentType, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	previous := report.ImageURL
	if err := s.repo.UpdateImageURL(ctx, report.ID, url); err != nil {
		s.removeImage(ctx, url)
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("report: %w", errors.ErrNotFound)
		}
		return nil, fmt.Errorf("update report: %w", err)
	}
	s.removeImage(ctx, previous)
	return s.GetByID(ctx, report.ID)
}

func (s *reportService) ownedReport(ctx context.Context, id, userID uuid.UUID) (*model.Report, error) {
	report, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.CreatedBy != userID {
		return nil, fmt.Errorf("report belongs to another user: %w", errors.ErrForbidden)
	}
	return report, nil
}

// removeImage deletes a stored image. Failures only get logged.
func (s *reportService) removeImage(ctx context.Context, url string) {
	if url == "" || s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, url); err != nil {
		s.logger.WarnContext(ctx, "image cleanup failed", "url", url, "error", err)
	}
}

// boundingBox returns the search box for a radius around a point. Candidates are
// capped only when the box spans a contiguous longitude range, since the
// repository's distance ordering is wrong across the antimeridian.
func boundingBox(lng, lat, radius float64) repository.Bounds {
	dLat := radius / metersPerDegree
	bounds := repository.Bounds{
		MinLat:    math.Max(lat-dLat, -90),
		MaxLat:    math.Min(lat+dLat, 90),
		MinLng:    -180,
		MaxLng:    180,
		CenterLng: lng,
		CenterLat: lat,
	}

	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 1e-6 {
		return bounds
	}
	dLng := radius / (metersPerDegree * cosLat)
	if lng-dLng < -180 || lng+dLng > 180 {
		// The box wraps the antimeridian; haversine does the filtering.
		return bounds
	}
	bounds.MinLng = lng - dLng
	bounds.MaxLng = lng + dLng
	bounds.Limit = nearbyCandidateLimit
	return bounds
}

// haversine returns the great-circle distance between two points in meters.
func haversine(lng1, lat1, lng2, lat2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLng := (lng2 - lng1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}
