package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/civic_issues/internal/models"
	"github.com/civic_issues/internal/repositories"
)

// ErrIssueNotFound is returned when no issue has the requested identifier.
var ErrIssueNotFound = errors.New("issue not found")

// ErrIssueNotEditable is returned when editing an issue that is no longer Reported.
var ErrIssueNotEditable = errors.New("issue can only be edited while its status is Reported")

// ErrTransitionNotAllowed is returned when the transition policy rejects a status change.
var ErrTransitionNotAllowed = errors.New("status transition not allowed")

// maxIssueIDAttempts bounds how often creation retries after an identifier collision.
const maxIssueIDAttempts = 5

const (
	msgIssueSubmitted = "Issue submitted by citizen."
	msgIssueEdited    = "Issue details updated by citizen."
)

// IssueFilter selects issues by display name. Only the first non-empty field
// is applied, in the order Status, Category, Department.
type IssueFilter struct {
	Status     string
	Category   string
	Department string
}

// Statistics holds issue counts keyed by display name.
type Statistics struct {
	StatusCounts   map[string]int64 `json:"statusCounts"`
	CategoryCounts map[string]int64 `json:"categoryCounts"`
}

// IssueService defines the business operations on issues.
type IssueService interface {
	ListIssues(ctx context.Context, filter IssueFilter) ([]models.IssueResponse, error)
	GetIssue(ctx context.Context, issueID string) (*models.IssueResponse, error)
	GetNearby(ctx context.Context, latitude, longitude, radiusKm float64) ([]models.IssueResponse, error)
	CreateIssue(ctx context.Context, payload models.IssuePayload) (*models.IssueResponse, error)
	UpdateIssue(ctx context.Context, issueID string, payload models.IssuePayload) (*models.IssueResponse, error)
	UpdateIssueStatus(ctx context.Context, issueID, status string, comments, afterPhotoURL *string) (*models.IssueResponse, error)
	AssignDepartment(ctx context.Context, issueID, department string) (*models.IssueResponse, error)
	DeleteIssue(ctx context.Context, issueID string) error
	CountByStatus(ctx context.Context, status string) (int64, error)
	CountByCategory(ctx context.Context, category string) (int64, error)
	GetStatistics(ctx context.Context) (*Statistics, error)
}

// issueService is the implementation of IssueService
type issueService struct {
	repo       repositories.IssueRepository
	log        *zap.Logger
	policy     TransitionPolicy
	generateID func() string
	now        func() time.Time
}

// Option configures an issueService.
type Option func(*issueService)

// WithLogger sets the logger used for mutation events.
func WithLogger(l *zap.Logger) Option {
	return func(s *issueService) { s.log = l }
}

// WithTransitionPolicy replaces the default AnyTransition policy.
func WithTransitionPolicy(p TransitionPolicy) Option {
	return func(s *issueService) { s.policy = p }
}

// WithIDGenerator replaces models.GenerateIssueID.
func WithIDGenerator(gen func() string) Option {
	return func(s *issueService) { s.generateID = gen }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *issueService) { s.now = now }
}

// NewIssueService creates a new issueService instance
func NewIssueService(repo repositories.IssueRepository, opts ...Option) IssueService {
	s := &issueService{
		repo:       repo,
		log:        zap.NewNop(),
		policy:     AnyTransition,
		generateID: models.GenerateIssueID,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *issueService) ListIssues(ctx context.Context, filter IssueFilter) ([]models.IssueResponse, error) {
	var (
		issues []models.Issue
		err    error
	)
	switch {
	case filter.Status != "":
		status, perr := models.ParseIssueStatus(filter.Status)
		if perr != nil {
			return nil, perr
		}
		issues, err = s.repo.FindByStatus(ctx, status)
	case filter.Category != "":
		category, perr := models.ParseIssueCategory(filter.Category)
		if perr != nil {
			return nil, perr
		}
		issues, err = s.repo.FindByCategory(ctx, category)
	case filter.Department != "":
		issues, err = s.repo.FindByDepartment(ctx, filter.Department)
	default:
		issues, err = s.repo.FindAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	return models.NewIssueResponses(issues), nil
}

func (s *issueService) GetIssue(ctx context.Context, issueID string) (*models.IssueResponse, error) {
	issue, err := s.find(ctx, s.repo, issueID)
	if err != nil {
		return nil, err
	}
	return models.NewIssueResponse(issue), nil
}

// GetNearby returns the issues strictly inside radiusKm. A zero radius
// matches nothing.
func (s *issueService) GetNearby(ctx context.Context, latitude, longitude, radiusKm float64) ([]models.IssueResponse, error) {
	issues, err := s.repo.FindNear(ctx, latitude, longitude, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby issues: %w", err)
	}
	return models.NewIssueResponses(issues), nil
}

// CreateIssue stores a new Reported issue. A public identifier that collides
// with an existing one is replaced by a fresh one and the insert retried.
func (s *issueService) CreateIssue(ctx context.Context, payload models.IssuePayload) (*models.IssueResponse, error) {
	category, err := models.ParseIssueCategory(payload.Category)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		issue := s.newIssue(payload, category)
		err = s.repo.Transaction(ctx, func(repo repositories.IssueRepository) error {
			return repo.Create(ctx, issue)
		})
		if err == nil {
			s.log.Info("Issue created",
				zap.String("issue_id", issue.IssueID),
				zap.String("category", category.DisplayName()),
				zap.Int("attempts", attempt))
			return models.NewIssueResponse(issue), nil
		}
		if !errors.Is(err, repositories.ErrIssueIDConflict) || attempt >= maxIssueIDAttempts {
			return nil, fmt.Errorf("failed to create issue: %w", err)
		}
		s.log.Warn("Issue identifier collision, retrying",
			zap.String("issue_id", issue.IssueID),
			zap.Int("attempt", attempt))
	}
}

func (s *issueService) newIssue(payload models.IssuePayload, category models.IssueCategory) *models.Issue {
	now := s.now()

	// An absent or unknown priority falls back to Medium.
	priority := models.IssuePriorityMedium
	if payload.Priority != nil {
		if p, err := models.ParseIssuePriority(*payload.Priority); err == nil {
			priority = p
		}
	}
	department := models.DefaultDepartment
	if payload.Department != nil {
		department = *payload.Department
	}

	issue := &models.Issue{
		IssueID:     s.generateID(),
		Title:       payload.Title,
		Description: payload.Description,
		ImageURL:    payload.ImageURL,
		ImageHint:   payload.ImageHint,
		Latitude:    deref(payload.Latitude),
		Longitude:   deref(payload.Longitude),
		Address:     payload.Address,
		Status:      models.IssueStatusReported,
		Category:    category,
		Priority:    &priority,
		ReportedAt:  now,
		Department:  department,
	}
	issue.AddUpdate(models.NewIssueUpdate(models.IssueStatusReported, msgIssueSubmitted, now))
	if payload.ImageURL != nil {
		issue.AddImage(models.IssueImage{URL: *payload.ImageURL, Caption: models.CaptionBefore})
	}
	return issue
}

// UpdateIssue edits title, description and the "Before" photo of an issue
// that is still Reported.
func (s *issueService) UpdateIssue(ctx context.Context, issueID string, payload models.IssuePayload) (*models.IssueResponse, error) {
	var resp *models.IssueResponse
	err := s.repo.Transaction(ctx, func(repo repositories.IssueRepository) error {
		issue, err := s.find(ctx, repo, issueID)
		if err != nil {
			return err
		}
		if issue.Status != models.IssueStatusReported {
			return fmt.Errorf("%w: current status is %s", ErrIssueNotEditable, issue.Status.DisplayName())
		}

		issue.Title = payload.Title
		issue.Description = payload.Description
		if payload.ImageURL != nil {
			issue.ImageURL = payload.ImageURL
			replaceBeforeImage(issue, *payload.ImageURL)
		}
		issue.AddUpdate(models.NewIssueUpdate(models.IssueStatusReported, msgIssueEdited, s.now()))

		if err := repo.Save(ctx, issue); err != nil {
			return fmt.Errorf("failed to save issue: %w", err)
		}
		resp = models.NewIssueResponse(issue)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Issue edited", zap.String("issue_id", issueID))
	return resp, nil
}

// replaceBeforeImage overwrites the first image captioned "Before" (any case)
// or appends a new one.
func replaceBeforeImage(issue *models.Issue, url string) {
	for i := range issue.Images {
		if strings.EqualFold(issue.Images[i].Caption, models.CaptionBefore) {
			issue.Images[i].URL = url
			return
		}
	}
	issue.AddImage(models.IssueImage{URL: url, Caption: models.CaptionBefore})
}

// UpdateIssueStatus moves an issue to the given status. A nil comment is
// replaced by a generated description; an empty after photo URL is ignored.
func (s *issueService) UpdateIssueStatus(ctx context.Context, issueID, status string, comments, afterPhotoURL *string) (*models.IssueResponse, error) {
	var (
		resp *models.IssueResponse
		from models.IssueStatus
		to   models.IssueStatus
	)
	err := s.repo.Transaction(ctx, func(repo repositories.IssueRepository) error {
		issue, err := s.find(ctx, repo, issueID)
		if err != nil {
			return err
		}
		to, err = models.ParseIssueStatus(status)
		if err != nil {
			return err
		}
		from = issue.Status
		if !s.policy(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from.DisplayName(), to.DisplayName())
		}

		now := s.now()
		issue.Status = to
		if to == models.IssueStatusResolved {
			issue.ResolvedAt = &now
		}
		if afterPhotoURL != nil && *afterPhotoURL != "" {
			issue.AddImage(models.IssueImage{URL: *afterPhotoURL, Caption: models.CaptionAfter})
		}
		description := "Status updated to " + to.DisplayName()
		if comments != nil {
			description = *comments
		}
		issue.AddUpdate(models.NewIssueUpdate(to, description, now))

		if err := repo.Save(ctx, issue); err != nil {
			return fmt.Errorf("failed to save issue: %w", err)
		}
		resp = models.NewIssueResponse(issue)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Issue status updated",
		zap.String("issue_id", issueID),
		zap.String("from", from.DisplayName()),
		zap.String("to", to.DisplayName()))
	return resp, nil
}

// AssignDepartment routes an issue to a department. A Reported issue moves to
// In Progress; any other status is kept.
func (s *issueService) AssignDepartment(ctx context.Context, issueID, department string) (*models.IssueResponse, error) {
	var resp *models.IssueResponse
	err := s.repo.Transaction(ctx, func(repo repositories.IssueRepository) error {
		issue, err := s.find(ctx, repo, issueID)
		if err != nil {
			return err
		}
		issue.Department = department
		if issue.Status == models.IssueStatusReported {
			issue.Status = models.IssueStatusInProgress
		}
		issue.AddUpdate(models.NewIssueUpdate(
			issue.Status,
			fmt.Sprintf("Issue assigned to %s department.", department),
			s.now(),
		))

		if err := repo.Save(ctx, issue); err != nil {
			return fmt.Errorf("failed to save issue: %w", err)
		}
		resp = models.NewIssueResponse(issue)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Issue assigned", zap.String("issue_id", issueID), zap.String("department", department))
	return resp, nil
}

// DeleteIssue removes an issue with its updates and images. Unknown
// identifiers are ignored.
func (s *issueService) DeleteIssue(ctx context.Context, issueID string) error {
	deleted := false
	err := s.repo.Transaction(ctx, func(repo repositories.IssueRepository) error {
		issue, err := s.find(ctx, repo, issueID)
		if errors.Is(err, ErrIssueNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, issue); err != nil {
			return fmt.Errorf("failed to delete issue: %w", err)
		}
		deleted = true
		return nil
	})
	if err != nil {
		return err
	}
	if deleted {
		s.log.Info("Issue deleted", zap.String("issue_id", issueID))
	}
	return nil
}

func (s *issueService) CountByStatus(ctx context.Context, status string) (int64, error) {
	st, err := models.ParseIssueStatus(status)
	if err != nil {
		return 0, err
	}
	return s.repo.CountByStatus(ctx, st)
}

func (s *issueService) CountByCategory(ctx context.Context, category string) (int64, error) {
	c, err := models.ParseIssueCategory(category)
	if err != nil {
		return 0, err
	}
	return s.repo.CountByCategory(ctx, c)
}

// GetStatistics counts issues for every known status and category, zero
// counts included.
func (s *issueService) GetStatistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		StatusCounts:   make(map[string]int64),
		CategoryCounts: make(map[string]int64),
	}
	for _, status := range models.AllIssueStatuses() {
		n, err := s.repo.CountByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("failed to count issues by status: %w", err)
		}
		stats.StatusCounts[status.DisplayName()] = n
	}
	for _, category := range models.AllIssueCategories() {
		n, err := s.repo.CountByCategory(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("failed to count issues by category: %w", err)
		}
		stats.CategoryCounts[category.DisplayName()] = n
	}
	return stats, nil
}

func (s *issueService) find(ctx context.Context, repo repositories.IssueRepository, issueID string) (*models.Issue, error) {
	issue, err := repo.FindByIssueID(ctx, issueID)
	if err != nil {
		if errors.Is(err, repositories.ErrRecordNotFound) {
			return nil, ErrIssueNotFound
		}
		return nil, err
	}
	return issue, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
