// Package seed loads the sample issues shown on a fresh installation.
package seed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/civic_issues/internal/models"
	"github.com/civic_issues/internal/repositories"
)

// Run inserts the sample issues when the store holds no issue at all and
// returns how many were inserted.
func Run(ctx context.Context, repo repositories.IssueRepository, log *zap.Logger) (int, error) {
	inserted := 0
	err := repo.Transaction(ctx, func(tx repositories.IssueRepository) error {
		count, err := tx.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count issues: %w", err)
		}
		if count > 0 {
			return nil
		}
		for _, issue := range Issues() {
			if err := tx.Create(ctx, issue); err != nil {
				return fmt.Errorf("failed to seed issue %s: %w", issue.IssueID, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		log.Info("Sample data initialized", zap.Int("issues", inserted))
	} else {
		log.Debug("Issues present, skipping sample data")
	}
	return inserted, nil
}

func at(s string) time.Time {
	t, err := time.ParseInLocation(models.LocalTimeLayout, s, time.Local)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr[T any](v T) *T { return &v }

// Issues returns fresh copies of the sample issues.
func Issues() []*models.Issue {
	pothole := &models.Issue{
		IssueID:     "IS-10001",
		Title:       "Large pothole on main street",
		Description: "A large and dangerous pothole has formed on the corner of Main St and 1st Ave, causing issues for traffic.",
		ImageURL:    ptr("https://i.pinimg.com/736x/d0/3f/c2/d03fc2fe363172d449e218a84b557508.jpg"),
		ImageHint:   ptr("pothole road"),
		Latitude:    40.7128,
		Longitude:   -74.0060,
		Address:     "Main St & 1st Ave, New York, NY",
		Status:      models.IssueStatusInProgress,
		Category:    models.IssueCategoryPothole,
		Priority:    ptr(models.IssuePriorityHigh),
		ReportedAt:  at("2024-07-20T10:00:00"),
		Department:  "Public Works",
		Confidence:  ptr(0.95),
		ETA:         ptr(at("2024-07-23T17:00:00")),
	}
	pothole.AddImage(models.IssueImage{URL: "https://i.pinimg.com/736x/d0/3f/c2/d03fc2fe363172d449e218a84b557508.jpg", Caption: models.CaptionBefore})
	pothole.AddImage(models.IssueImage{URL: "https://i.pinimg.com/736x/d0/3f/c2/d03fc2fe363172d449e218a84b557508.jpg", Caption: "Work in progress"})
	pothole.AddImage(models.IssueImage{URL: "https://i.pinimg.com/736x/03/90/18/0390186b460f48858349282218084a44.jpg", Caption: models.CaptionAfter})
	pothole.AddUpdate(models.NewIssueUpdate(models.IssueStatusReported, "Issue submitted by citizen.", at("2024-07-20T10:00:00")))
	pothole.AddUpdate(models.NewIssueUpdate(models.IssueStatusInProgress, "Assigned to Public Works. A team has been dispatched.", at("2024-07-20T11:30:00")))

	trash := &models.Issue{
		IssueID:     "IS-10004",
		Title:       "Overflowing trash can",
		Description: "Public trash can on 5th Avenue is overflowing, leading to litter on the sidewalk.",
		ImageURL:    ptr("https://i.pinimg.com/1200x/07/4e/1a/074e1afeeae49ddb39969fbdba4bd8af.jpg"),
		ImageHint:   ptr("trash can"),
		Latitude:    40.7739,
		Longitude:   -73.965,
		Address:     "5th Avenue, New York, NY",
		Status:      models.IssueStatusResolved,
		Category:    models.IssueCategoryWasteManagement,
		Priority:    ptr(models.IssuePriorityLow),
		ReportedAt:  at("2024-07-21T09:00:00"),
		ResolvedAt:  ptr(at("2024-07-21T15:00:00")),
		Department:  "Sanitation",
		Confidence:  ptr(0.92),
	}
	trash.AddImage(models.IssueImage{URL: "https://i.pinimg.com/1200x/07/4e/1a/074e1afeeae49ddb39969fbdba4bd8af.jpg", Caption: models.CaptionBefore})
	trash.AddImage(models.IssueImage{URL: "https://i.pinimg.com/1200x/74/99/92/749992e8739bc3eb1183990e14dbe05d.jpg", Caption: models.CaptionAfter})
	trash.AddUpdate(models.NewIssueUpdate(models.IssueStatusReported, "Issue submitted by citizen.", at("2024-07-21T09:00:00")))
	trash.AddUpdate(models.NewIssueUpdate(models.IssueStatusResolved, "Trash has been collected.", at("2024-07-21T15:00:00")))

	sign := &models.Issue{
		IssueID:     "IS-10005",
		Title:       "Damaged Stop Sign",
		Description: "A stop sign at the corner of Liberty St and Nassau St is bent and difficult to see.",
		ImageURL:    ptr("https://i.pinimg.com/736x/29/70/4c/29704cd0075d0cc865bcda8f3dc3a075.jpg"),
		ImageHint:   ptr("street sign"),
		Latitude:    40.7088,
		Longitude:   -74.009,
		Address:     "Liberty St & Nassau St, New York, NY",
		Status:      models.IssueStatusResolved,
		Category:    models.IssueCategoryDamagedSign,
		Priority:    ptr(models.IssuePriorityHigh),
		ReportedAt:  at("2024-07-18T08:45:00"),
		ResolvedAt:  ptr(at("2024-07-19T14:00:00")),
		Department:  "Transportation",
		Confidence:  ptr(0.96),
		ETA:         ptr(at("2024-07-19T17:00:00")),
	}
	sign.AddImage(models.IssueImage{URL: "https://i.pinimg.com/736x/29/70/4c/29704cd0075d0cc865bcda8f3dc3a075.jpg", Caption: models.CaptionBefore})
	sign.AddImage(models.IssueImage{URL: "https://i.pinimg.com/1200x/29/22/6a/29226adc9367dbb940c6b3d2296efd7f.jpg", Caption: models.CaptionAfter})
	sign.AddUpdate(models.NewIssueUpdate(models.IssueStatusReported, "Issue submitted by citizen.", at("2024-07-18T08:45:00")))
	sign.AddUpdate(models.NewIssueUpdate(models.IssueStatusInProgress, "Repair crew has been dispatched for replacement.", at("2024-07-18T10:00:00")))
	sign.AddUpdate(models.NewIssueUpdate(models.IssueStatusResolved, "Sign has been replaced.", at("2024-07-19T14:00:00")))

	return []*models.Issue{pothole, trash, sign}
}
