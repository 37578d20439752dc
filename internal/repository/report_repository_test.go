package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"civicwatch/internal/db"
	"civicwatch/internal/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.Open(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

func newReport(owner uuid.UUID, status model.ReportStatus, createdAt time.Time) *model.Report {
	return &model.Report{
		Title:       "Broken streetlight",
		Description: "Dark corner since last week",
		Category:    model.CategoryElectricity,
		Severity:    model.SeverityMedium,
		Status:      status,
		Location:    model.NewGeoPoint(-79.347015, 43.65107),
		CreatedBy:   owner,
		CreatedAt:   createdAt,
	}
}

func TestReportRepository_CreateAndFind(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))
	ctx := context.Background()

	report := newReport(uuid.New(), "", time.Now())
	require.NoError(t, repo.Create(ctx, report))
	assert.NotEqual(t, uuid.Nil, report.ID)
	assert.Equal(t, model.StatusPending, report.Status)

	found, err := repo.FindByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{-79.347015, 43.65107}, found.Location.Coordinates)
	assert.Equal(t, model.GeoPointType, found.Location.Type)
	assert.Equal(t, report.CreatedBy, found.CreatedBy)
	assert.Nil(t, found.UpdatedBy)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestReportRepository_FindByCreator_NewestFirst(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	base := time.Now().Add(-time.Hour)

	older := newReport(alice, model.StatusPending, base)
	newer := newReport(alice, model.StatusPending, base.Add(time.Minute))
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, newReport(bob, model.StatusPending, base)))

	reports, err := repo.FindByCreator(ctx, alice)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, newer.ID, reports[0].ID)
	assert.Equal(t, older.ID, reports[1].ID)

	none, err := repo.FindByCreator(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestReportRepository_ListAndCount(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))
	ctx := context.Background()
	owner := uuid.New()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 15; i++ {
		require.NoError(t, repo.Create(ctx, newReport(owner, model.StatusResolved, base.Add(time.Duration(i)*time.Second))))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newReport(owner, model.StatusPending, base)))
	}

	page, total, err := repo.List(ctx, ReportFilter{Status: model.StatusResolved, Offset: 10, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(15), total)
	assert.Len(t, page, 5)

	all, total, err := repo.List(ctx, ReportFilter{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(20), total)
	assert.Len(t, all, 20)

	none, total, err := repo.List(ctx, ReportFilter{Category: model.CategoryRoad, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(15), counts[model.StatusResolved])
	assert.Equal(t, int64(5), counts[model.StatusPending])
	assert.Zero(t, counts[model.StatusInProgress])
}

func TestReportRepository_UpdateAndDelete(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))
	ctx := context.Background()

	report := newReport(uuid.New(), model.StatusPending, time.Now())
	require.NoError(t, repo.Create(ctx, report))

	adminID := uuid.New()
	require.NoError(t, repo.UpdateStatus(ctx, report.ID, model.StatusInProgress, adminID))
	require.NoError(t, repo.UpdateImageURL(ctx, report.ID, "/uploads/reports/a.png"))

	found, err := repo.FindByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, found.Status)
	require.NotNil(t, found.UpdatedBy)
	assert.Equal(t, adminID, *found.UpdatedBy)
	assert.Equal(t, "/uploads/reports/a.png", found.ImageURL)
	assert.Equal(t, report.Title, found.Title)
	assert.Equal(t, report.Location, found.Location)

	assert.True(t, errors.Is(repo.UpdateStatus(ctx, uuid.New(), model.StatusResolved, adminID), gorm.ErrRecordNotFound))
	assert.True(t, errors.Is(repo.UpdateImageURL(ctx, uuid.New(), "x"), gorm.ErrRecordNotFound))

	require.NoError(t, repo.Delete(ctx, report.ID))
	assert.True(t, errors.Is(repo.Delete(ctx, report.ID), gorm.ErrRecordNotFound))
}

func TestReportRepository_FindWithinBounds(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))
	ctx := context.Background()

	inside := newReport(uuid.New(), model.StatusPending, time.Now())
	outside := newReport(uuid.New(), model.StatusPending, time.Now())
	outside.Location = model.NewGeoPoint(2.3522, 48.8566)
	require.NoError(t, repo.Create(ctx, inside))
	require.NoError(t, repo.Create(ctx, outside))

	reports, err := repo.FindWithinBounds(ctx, Bounds{MinLng: -80, MaxLng: -79, MinLat: 43, MaxLat: 44})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, inside.ID, reports[0].ID)
}

func TestReportRepository_FindWithinBounds_NearestFirstWithLimit(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))
	ctx := context.Background()

	far := newReport(uuid.New(), model.StatusPending, time.Now())
	far.Location = model.NewGeoPoint(-79.40, 43.70)
	near := newReport(uuid.New(), model.StatusPending, time.Now())
	near.Location = model.NewGeoPoint(-79.381, 43.651)
	mid := newReport(uuid.New(), model.StatusPending, time.Now())
	mid.Location = model.NewGeoPoint(-79.39, 43.67)
	for _, r := range []*model.Report{far, near, mid} {
		require.NoError(t, repo.Create(ctx, r))
	}

	reports, err := repo.FindWithinBounds(ctx, Bounds{
		MinLng: -80, MaxLng: -79, MinLat: 43, MaxLat: 44,
		CenterLng: -79.38, CenterLat: 43.65,
		Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, near.ID, reports[0].ID)
	assert.Equal(t, mid.ID, reports[1].ID)
}
