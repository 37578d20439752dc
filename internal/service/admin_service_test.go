package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicwatch/internal/errors"
	"civicwatch/internal/model"
)

func seedReports(t *testing.T, f *reportFixture, status model.ReportStatus, category model.Category, n int, start time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		report := &model.Report{
			Title:       "Report",
			Description: "Details",
			Category:    category,
			Severity:    model.SeverityLow,
			Status:      status,
			Location:    model.NewGeoPoint(10, 10),
			CreatedBy:   uuid.New(),
			CreatedAt:   start.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, f.repo.Create(context.Background(), report))
	}
}

func TestAdminService_ListAll_FilterAndPaginate(t *testing.T) {
	f := newReportFixture(t)
	admin := NewAdminService(f.repo, f.service)
	now := time.Now()

	seedReports(t, f, model.StatusResolved, model.CategoryRoad, 15, now)
	seedReports(t, f, model.StatusPending, model.CategoryWater, 5, now)

	page, err := admin.ListAll(context.Background(), ListFilter{Status: "resolved", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Reports, 10)
	assert.Equal(t, int64(15), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)
	for _, r := range page.Reports {
		assert.Equal(t, model.StatusResolved, r.Status)
	}
	for i := 1; i < len(page.Reports); i++ {
		assert.False(t, page.Reports[i].CreatedAt.After(page.Reports[i-1].CreatedAt), "newest first")
	}

	second, err := admin.ListAll(context.Background(), ListFilter{Status: "resolved", Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, second.Reports, 5)
	assert.Equal(t, 2, second.CurrentPage)
}

func TestAdminService_ListAll_Defaults(t *testing.T) {
	f := newReportFixture(t)
	admin := NewAdminService(f.repo, f.service)
	seedReports(t, f, model.StatusPending, model.CategoryRoad, 12, time.Now())

	page, err := admin.ListAll(context.Background(), ListFilter{Status: "all", Category: "ALL"})
	require.NoError(t, err)
	assert.Len(t, page.Reports, DefaultPageSize)
	assert.Equal(t, int64(12), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)

	capped, err := admin.ListAll(context.Background(), ListFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, capped.Reports, 12)
	assert.Equal(t, 1, capped.TotalPages)
}

func TestAdminService_ListAll_ConjunctiveFilters(t *testing.T) {
	f := newReportFixture(t)
	admin := NewAdminService(f.repo, f.service)
	now := time.Now()
	seedReports(t, f, model.StatusPending, model.CategoryRoad, 3, now)
	seedReports(t, f, model.StatusPending, model.CategoryWater, 2, now)
	seedReports(t, f, model.StatusResolved, model.CategoryWater, 4, now)

	page, err := admin.ListAll(context.Background(), ListFilter{Status: "pending", Category: "water"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	empty, err := admin.ListAll(context.Background(), ListFilter{Severity: "high"})
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Empty(t, empty.Reports)
	assert.Zero(t, empty.TotalPages)
}

func TestAdminService_ListAll_UnknownFilter(t *testing.T) {
	f := newReportFixture(t)
	admin := NewAdminService(f.repo, f.service)

	for _, filter := range []ListFilter{{Status: "closed"}, {Category: "parks"}, {Severity: "critical"}} {
		_, err := admin.ListAll(context.Background(), filter)
		assert.ErrorIs(t, err, errors.ErrValidation)
	}
}

func TestAdminService_Stats(t *testing.T) {
	f := newReportFixture(t)
	admin := NewAdminService(f.repo, f.service)
	now := time.Now()
	seedReports(t, f, model.StatusPending, model.CategoryRoad, 4, now)
	seedReports(t, f, model.StatusInProgress, model.CategoryRoad, 2, now)
	seedReports(t, f, model.StatusResolved, model.CategoryRoad, 3, now)

	stats, err := admin.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Stats{Total: 9, Open: 4, InProgress: 2, Resolved: 3}, stats)
}

func TestAdminService_UpdateStatus_Notifies(t *testing.T) {
	f := newReportFixture(t)
	admin := NewAdminService(f.repo, f.service)
	seedReports(t, f, model.StatusPending, model.CategoryRoad, 1, time.Now())

	page, err := admin.ListAll(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, page.Reports, 1)

	updated, err := admin.UpdateStatus(context.Background(), page.Reports[0].ID, model.StatusInProgress, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.Equal(t, 1, f.notifier.count())
}
