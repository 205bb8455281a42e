package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/civic_issues/internal/models"
	"github.com/civic_issues/internal/repositories"
	"github.com/civic_issues/internal/seed"
	"github.com/civic_issues/internal/testutil"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

// stepClock advances one minute on every call.
type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func setupService(t *testing.T, opts ...Option) (IssueService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewIssueService(repositories.NewGormIssueRepository(db), opts...), db
}

func potholePayload() models.IssuePayload {
	return models.IssuePayload{
		Title:       "Pothole on Elm Street",
		Description: "Deep pothole next to the bus stop.",
		Latitude:    floatPtr(40.7128),
		Longitude:   floatPtr(-74.0060),
		Address:     "Elm St, New York, NY",
		Category:    "Pothole",
	}
}

func TestCreateIssue_Defaults(t *testing.T) {
	svc, _ := setupService(t)

	issue, err := svc.CreateIssue(context.Background(), potholePayload())
	require.NoError(t, err)

	assert.Regexp(t, `^IS-\d{5}$`, issue.ID)
	assert.Equal(t, "Reported", issue.Status)
	assert.Equal(t, "Pothole", issue.Category)
	require.NotNil(t, issue.Priority)
	assert.Equal(t, "Medium", *issue.Priority)
	assert.Equal(t, models.DefaultDepartment, issue.Department)
	require.Len(t, issue.Updates, 1)
	assert.Equal(t, "Reported", issue.Updates[0].Status)
	assert.Equal(t, msgIssueSubmitted, issue.Updates[0].Description)
	assert.Empty(t, issue.Images)
	assert.Nil(t, issue.ResolvedAt)
}

func TestCreateIssue_WithOptionalFields(t *testing.T) {
	svc, _ := setupService(t)

	payload := potholePayload()
	payload.ImageURL = strPtr("https://example.com/before.jpg")
	payload.Priority = strPtr("High")
	payload.Department = strPtr("Public Works")

	issue, err := svc.CreateIssue(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "High", *issue.Priority)
	assert.Equal(t, "Public Works", issue.Department)
	require.Len(t, issue.Images, 1)
	assert.Equal(t, models.CaptionBefore, issue.Images[0].Caption)
	assert.Equal(t, "https://example.com/before.jpg", issue.Images[0].URL)
}

func TestCreateIssue_UnknownPriorityFallsBackToMedium(t *testing.T) {
	svc, _ := setupService(t)

	payload := potholePayload()
	payload.Priority = strPtr("Urgent")
	issue, err := svc.CreateIssue(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "Medium", *issue.Priority)
}

func TestCreateIssue_UnknownCategory(t *testing.T) {
	svc, _ := setupService(t)

	payload := potholePayload()
	payload.Category = "Sinkhole"
	_, err := svc.CreateIssue(context.Background(), payload)
	assert.ErrorIs(t, err, models.ErrUnknownValue)
}

func TestCreateIssue_IdentifiersAreUnique(t *testing.T) {
	svc, _ := setupService(t)

	seen := make(map[string]bool)
	for i := 0; i < 25; i++ {
		issue, err := svc.CreateIssue(context.Background(), potholePayload())
		require.NoError(t, err)
		assert.Regexp(t, `^IS-\d{5}$`, issue.ID)
		assert.False(t, seen[issue.ID], "duplicate identifier %s", issue.ID)
		seen[issue.ID] = true
	}
}

func TestCreateIssue_RetriesOnIdentifierCollision(t *testing.T) {
	ids := []string{"IS-11111", "IS-11111", "IS-22222"}
	next := 0
	gen := func() string {
		id := ids[next]
		next++
		return id
	}
	svc, _ := setupService(t, WithIDGenerator(gen))

	first, err := svc.CreateIssue(context.Background(), potholePayload())
	require.NoError(t, err)
	assert.Equal(t, "IS-11111", first.ID)

	second, err := svc.CreateIssue(context.Background(), potholePayload())
	require.NoError(t, err)
	assert.Equal(t, "IS-22222", second.ID)
	assert.Equal(t, 3, next)
}

func TestCreateIssue_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	svc, _ := setupService(t, WithIDGenerator(func() string {
		calls++
		return "IS-11111"
	}))

	_, err := svc.CreateIssue(context.Background(), potholePayload())
	require.NoError(t, err)

	_, err = svc.CreateIssue(context.Background(), potholePayload())
	assert.ErrorIs(t, err, repositories.ErrIssueIDConflict)
	assert.Equal(t, 1+maxIssueIDAttempts, calls)
}

func TestUpdateIssue_ReportedAppendsOneUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	payload := potholePayload()
	payload.ImageURL = strPtr("https://example.com/before.jpg")
	created, err := svc.CreateIssue(ctx, payload)
	require.NoError(t, err)

	edit := potholePayload()
	edit.Title = "Pothole on Elm Street, getting bigger"
	edit.Description = "Now covers both lanes of the street."
	edit.ImageURL = strPtr("https://example.com/before-2.jpg")
	updated, err := svc.UpdateIssue(ctx, created.ID, edit)
	require.NoError(t, err)

	assert.Equal(t, edit.Title, updated.Title)
	assert.Equal(t, edit.Description, updated.Description)
	require.Len(t, updated.Updates, 2)
	assert.Equal(t, msgIssueEdited, updated.Updates[1].Description)
	assert.Equal(t, "Reported", updated.Updates[1].Status)
	require.Len(t, updated.Images, 1)
	assert.Equal(t, "https://example.com/before-2.jpg", updated.Images[0].URL)
	assert.Equal(t, "https://example.com/before-2.jpg", *updated.ImageURL)
}

func TestUpdateIssue_AppendsBeforeImageWhenMissing(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	created, err := svc.CreateIssue(ctx, potholePayload())
	require.NoError(t, err)

	edit := potholePayload()
	edit.ImageURL = strPtr("https://example.com/late.jpg")
	updated, err := svc.UpdateIssue(ctx, created.ID, edit)
	require.NoError(t, err)
	require.Len(t, updated.Images, 1)
	assert.Equal(t, models.CaptionBefore, updated.Images[0].Caption)
}

func TestUpdateIssue_OverwritesFirstBeforeImageOnly(t *testing.T) {
	ctx := context.Background()
	svc, db := setupService(t)
	repo := repositories.NewGormIssueRepository(db)

	issue := &models.Issue{
		IssueID:     "IS-10001",
		Title:       "Graffiti on wall",
		Description: "Graffiti on the library wall.",
		Address:     "Library",
		Status:      models.IssueStatusReported,
		Category:    models.IssueCategoryGraffiti,
		Department:  models.DefaultDepartment,
	}
	issue.AddUpdate(models.NewIssueUpdate(models.IssueStatusReported, msgIssueSubmitted, time.Now()))
	issue.AddImage(models.IssueImage{URL: "https://example.com/a.jpg", Caption: "BEFORE"})
	issue.AddImage(models.IssueImage{URL: "https://example.com/b.jpg", Caption: "Before"})
	require.NoError(t, repo.Create(ctx, issue))

	edit := potholePayload()
	edit.ImageURL = strPtr("https://example.com/new.jpg")
	updated, err := svc.UpdateIssue(ctx, "IS-10001", edit)
	require.NoError(t, err)
	require.Len(t, updated.Images, 2)
	assert.Equal(t, "https://example.com/new.jpg", updated.Images[0].URL)
	assert.Equal(t, "https://example.com/b.jpg", updated.Images[1].URL)
}

func TestUpdateIssue_NotEditableOnceWorkStarted(t *testing.T) {
	ctx := context.Background()

	for _, status := range []string{"In Progress", "Resolved"} {
		t.Run(status, func(t *testing.T) {
			svc, _ := setupService(t)
			created, err := svc.CreateIssue(ctx, potholePayload())
			require.NoError(t, err)
			before, err := svc.UpdateIssueStatus(ctx, created.ID, status, nil, nil)
			require.NoError(t, err)

			edit := potholePayload()
			edit.Title = "Changed"
			_, err = svc.UpdateIssue(ctx, created.ID, edit)
			assert.ErrorIs(t, err, ErrIssueNotEditable)

			after, err := svc.GetIssue(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, before.Title, after.Title)
			assert.Len(t, after.Updates, len(before.Updates))
		})
	}
}

func TestUpdateIssue_NotFound(t *testing.T) {
	svc, _ := setupService(t)
	_, err := svc.UpdateIssue(context.Background(), "IS-99999", potholePayload())
	assert.ErrorIs(t, err, ErrIssueNotFound)
}

func TestUpdateIssueStatus_ResolvedTwiceMovesTimestamp(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{t: time.Date(2024, 7, 20, 10, 0, 0, 0, time.Local)}
	svc, _ := setupService(t, WithClock(clock.Now))

	created, err := svc.CreateIssue(ctx, potholePayload())
	require.NoError(t, err)

	first, err := svc.UpdateIssueStatus(ctx, created.ID, "Resolved", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, first.ResolvedAt)

	second, err := svc.UpdateIssueStatus(ctx, created.ID, "Resolved", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, second.ResolvedAt)
	assert.True(t, second.ResolvedAt.After(first.ResolvedAt.Time))

	// Moving away from Resolved keeps the resolution time.
	reopened, err := svc.UpdateIssueStatus(ctx, created.ID, "Reported", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, reopened.ResolvedAt)
	assert.True(t, reopened.ResolvedAt.Equal(second.ResolvedAt.Time))
}

func TestUpdateIssueStatus_CommentsAndAfterPhoto(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	created, err := svc.CreateIssue(ctx, potholePayload())
	require.NoError(t, err)

	updated, err := svc.UpdateIssueStatus(ctx, created.ID, "In Progress", nil, strPtr(""))
	require.NoError(t, err)
	assert.Equal(t, "In Progress", updated.Status)
	assert.Empty(t, updated.Images)
	require.Len(t, updated.Updates, 2)
	assert.Equal(t, "Status updated to In Progress", updated.Updates[1].Description)

	updated, err = svc.UpdateIssueStatus(ctx, created.ID, "Resolved", strPtr("Filled with asphalt."), strPtr("https://example.com/after.jpg"))
	require.NoError(t, err)
	require.Len(t, updated.Updates, 3)
	assert.Equal(t, "Filled with asphalt.", updated.Updates[2].Description)
	assert.Equal(t, "Resolved", updated.Updates[2].Status)
	require.Len(t, updated.Images, 1)
	assert.Equal(t, models.CaptionAfter, updated.Images[0].Caption)
}

func TestUpdateIssueStatus_Errors(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.UpdateIssueStatus(ctx, "IS-99999", "Resolved", nil, nil)
	assert.ErrorIs(t, err, ErrIssueNotFound)

	created, err := svc.CreateIssue(ctx, potholePayload())
	require.NoError(t, err)
	_, err = svc.UpdateIssueStatus(ctx, created.ID, "Closed", nil, nil)
	assert.ErrorIs(t, err, models.ErrUnknownValue)
	assert.Contains(t, err.Error(), "unknown status: Closed")
}

func TestUpdateIssueStatus_Policies(t *testing.T) {
	ctx := context.Background()

	svc, _ := setupService(t)
	created, err := svc.CreateIssue(ctx, potholePayload())
	require.NoError(t, err)
	_, err = svc.UpdateIssueStatus(ctx, created.ID, "Resolved", nil, nil)
	require.NoError(t, err)
	regressed, err := svc.UpdateIssueStatus(ctx, created.ID, "Reported", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Reported", regressed.Status)

	strict, _ := setupService(t, WithTransitionPolicy(ForwardOnly))
	created, err = strict.CreateIssue(ctx, potholePayload())
	require.NoError(t, err)
	_, err = strict.UpdateIssueStatus(ctx, created.ID, "Resolved", nil, nil)
	require.NoError(t, err)
	_, err = strict.UpdateIssueStatus(ctx, created.ID, "Resolved", nil, nil)
	require.NoError(t, err)
	_, err = strict.UpdateIssueStatus(ctx, created.ID, "In Progress", nil, nil)
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)

	current, err := strict.GetIssue(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Resolved", current.Status)
}

func TestAssignDepartment(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	created, err := svc.CreateIssue(ctx, potholePayload())
	require.NoError(t, err)

	assigned, err := svc.AssignDepartment(ctx, created.ID, "Public Works")
	require.NoError(t, err)
	assert.Equal(t, "In Progress", assigned.Status)
	assert.Equal(t, "Public Works", assigned.Department)
	require.Len(t, assigned.Updates, 2)
	assert.Equal(t, "Issue assigned to Public Works department.", assigned.Updates[1].Description)
	assert.Equal(t, "In Progress", assigned.Updates[1].Status)

	reassigned, err := svc.AssignDepartment(ctx, created.ID, "Transportation")
	require.NoError(t, err)
	assert.Equal(t, "In Progress", reassigned.Status)

	_, err = svc.UpdateIssueStatus(ctx, created.ID, "Resolved", nil, nil)
	require.NoError(t, err)
	resolved, err := svc.AssignDepartment(ctx, created.ID, "Sanitation")
	require.NoError(t, err)
	assert.Equal(t, "Resolved", resolved.Status)
	last := resolved.Updates[len(resolved.Updates)-1]
	assert.Equal(t, "Resolved", last.Status)

	_, err = svc.AssignDepartment(ctx, "IS-99999", "Parks")
	assert.ErrorIs(t, err, ErrIssueNotFound)
}

func TestDeleteIssue_RemovesChildren(t *testing.T) {
	ctx := context.Background()
	svc, db := setupService(t)

	payload := potholePayload()
	payload.ImageURL = strPtr("https://example.com/before.jpg")
	created, err := svc.CreateIssue(ctx, payload)
	require.NoError(t, err)
	_, err = svc.UpdateIssueStatus(ctx, created.ID, "Resolved", nil, strPtr("https://example.com/after.jpg"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteIssue(ctx, created.ID))

	_, err = svc.GetIssue(ctx, created.ID)
	assert.ErrorIs(t, err, ErrIssueNotFound)

	var updates, images int64
	require.NoError(t, db.Model(&models.IssueUpdate{}).Count(&updates).Error)
	require.NoError(t, db.Model(&models.IssueImage{}).Count(&images).Error)
	assert.Zero(t, updates)
	assert.Zero(t, images)

	assert.NoError(t, svc.DeleteIssue(ctx, created.ID))
	assert.NoError(t, svc.DeleteIssue(ctx, "IS-00000"))
}

func TestGetNearby(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	here, err := svc.CreateIssue(ctx, potholePayload())
	require.NoError(t, err)

	far := potholePayload()
	far.Latitude = floatPtr(40.7128 + 50.0/111.0)
	_, err = svc.CreateIssue(ctx, far)
	require.NoError(t, err)

	nearby, err := svc.GetNearby(ctx, 40.7128, -74.0060, 5.0)
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.Equal(t, here.ID, nearby[0].ID)

	// An explicit zero radius is not replaced by the default.
	nearby, err = svc.GetNearby(ctx, 40.7128, -74.0060, 0)
	require.NoError(t, err)
	assert.Empty(t, nearby)
}

func TestListIssues_Filters(t *testing.T) {
	ctx := context.Background()
	svc, db := setupService(t)
	_, err := seed.Run(ctx, repositories.NewGormIssueRepository(db), zap.NewNop())
	require.NoError(t, err)

	all, err := svc.ListIssues(ctx, IssueFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"IS-10004", "IS-10001", "IS-10005"}, []string{all[0].ID, all[1].ID, all[2].ID})

	resolved, err := svc.ListIssues(ctx, IssueFilter{Status: "Resolved"})
	require.NoError(t, err)
	assert.Len(t, resolved, 2)

	// Status wins over category and department.
	inProgress, err := svc.ListIssues(ctx, IssueFilter{Status: "In Progress", Category: "Damaged Sign", Department: "Sanitation"})
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, "IS-10001", inProgress[0].ID)

	signs, err := svc.ListIssues(ctx, IssueFilter{Category: "Damaged Sign", Department: "Sanitation"})
	require.NoError(t, err)
	require.Len(t, signs, 1)
	assert.Equal(t, "IS-10005", signs[0].ID)

	sanitation, err := svc.ListIssues(ctx, IssueFilter{Department: "Sanitation"})
	require.NoError(t, err)
	require.Len(t, sanitation, 1)
	assert.Equal(t, "IS-10004", sanitation[0].ID)

	_, err = svc.ListIssues(ctx, IssueFilter{Status: "Closed"})
	assert.ErrorIs(t, err, models.ErrUnknownValue)
	_, err = svc.ListIssues(ctx, IssueFilter{Category: "Sinkhole"})
	assert.ErrorIs(t, err, models.ErrUnknownValue)
}

func TestGetStatistics_SeededTotalsAgree(t *testing.T) {
	ctx := context.Background()
	svc, db := setupService(t)
	_, err := seed.Run(ctx, repositories.NewGormIssueRepository(db), zap.NewNop())
	require.NoError(t, err)

	stats, err := svc.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Len(t, stats.StatusCounts, 3)
	assert.Len(t, stats.CategoryCounts, 7)

	var byStatus, byCategory int64
	for _, n := range stats.StatusCounts {
		byStatus += n
	}
	for _, n := range stats.CategoryCounts {
		byCategory += n
	}
	assert.Equal(t, int64(3), byStatus)
	assert.Equal(t, byStatus, byCategory)
	assert.Equal(t, int64(2), stats.StatusCounts["Resolved"])
	assert.Equal(t, int64(0), stats.CategoryCounts["Graffiti"])
}

func TestCountByStatusAndCategory(t *testing.T) {
	ctx := context.Background()
	svc, db := setupService(t)
	_, err := seed.Run(ctx, repositories.NewGormIssueRepository(db), zap.NewNop())
	require.NoError(t, err)

	n, err := svc.CountByStatus(ctx, "In Progress")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = svc.CountByCategory(ctx, "Waste Management")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.CountByStatus(ctx, "in progress")
	assert.ErrorIs(t, err, models.ErrUnknownValue)
	_, err = svc.CountByCategory(ctx, "Sinkhole")
	assert.ErrorIs(t, err, models.ErrUnknownValue)
}

func TestParseTransitionPolicy(t *testing.T) {
	p, err := ParseTransitionPolicy("")
	require.NoError(t, err)
	assert.True(t, p(models.IssueStatusResolved, models.IssueStatusReported))

	p, err = ParseTransitionPolicy("Forward")
	require.NoError(t, err)
	assert.False(t, p(models.IssueStatusResolved, models.IssueStatusReported))
	assert.True(t, p(models.IssueStatusReported, models.IssueStatusResolved))
	assert.True(t, p(models.IssueStatusInProgress, models.IssueStatusInProgress))

	_, err = ParseTransitionPolicy("strict")
	assert.Error(t, err)
}
