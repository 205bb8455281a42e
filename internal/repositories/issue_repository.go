package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/civic_issues/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRecordNotFound is returned when no issue matches; it reuses the gorm error.
var ErrRecordNotFound = gorm.ErrRecordNotFound

// ErrIssueIDConflict means the public identifier is already taken.
var ErrIssueIDConflict = errors.New("issue identifier already exists")

// kmPerDegree approximates the length of one degree near the equator.
const kmPerDegree = 111.0

// IssueRepository defines the storage operations for issues and their children.
type IssueRepository interface {
	FindByIssueID(ctx context.Context, issueID string) (*models.Issue, error)
	FindAll(ctx context.Context) ([]models.Issue, error)
	FindByStatus(ctx context.Context, status models.IssueStatus) ([]models.Issue, error)
	FindByCategory(ctx context.Context, category models.IssueCategory) ([]models.Issue, error)
	FindByDepartment(ctx context.Context, department string) ([]models.Issue, error)
	FindByStatusAndCategory(ctx context.Context, status models.IssueStatus, category models.IssueCategory) ([]models.Issue, error)
	// FindNear uses a planar approximation: radius/111 degrees, compared on squared lat/long deltas.
	FindNear(ctx context.Context, latitude, longitude, radiusKm float64) ([]models.Issue, error)
	CountByStatus(ctx context.Context, status models.IssueStatus) (int64, error)
	CountByCategory(ctx context.Context, category models.IssueCategory) (int64, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, issue *models.Issue) error
	Save(ctx context.Context, issue *models.Issue) error
	Delete(ctx context.Context, issue *models.Issue) error
	// Transaction runs fn with a repository bound to a single database transaction.
	Transaction(ctx context.Context, fn func(repo IssueRepository) error) error
}

// gormIssueRepository is the GORM implementation of IssueRepository
type gormIssueRepository struct {
	db *gorm.DB
}

// NewGormIssueRepository creates a new gormIssueRepository
func NewGormIssueRepository(db *gorm.DB) IssueRepository {
	return &gormIssueRepository{db: db}
}

// withChildren preloads updates and images in insertion order.
func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Updates", func(tx *gorm.DB) *gorm.DB { return tx.Order("issue_updates.id ASC") }).
		Preload("Images", func(tx *gorm.DB) *gorm.DB { return tx.Order("issue_images.id ASC") })
}

func (r *gormIssueRepository) find(ctx context.Context, query func(*gorm.DB) *gorm.DB) ([]models.Issue, error) {
	var issues []models.Issue
	if err := query(withChildren(r.db.WithContext(ctx))).Find(&issues).Error; err != nil {
		return nil, err
	}
	return issues, nil
}

func (r *gormIssueRepository) FindByIssueID(ctx context.Context, issueID string) (*models.Issue, error) {
	var issue models.Issue
	if err := withChildren(r.db.WithContext(ctx)).Where("issue_id = ?", issueID).First(&issue).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &issue, nil
}

func (r *gormIssueRepository) FindAll(ctx context.Context) ([]models.Issue, error) {
	return r.find(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Order("reported_at DESC")
	})
}

func (r *gormIssueRepository) FindByStatus(ctx context.Context, status models.IssueStatus) ([]models.Issue, error) {
	return r.find(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status = ?", status)
	})
}

func (r *gormIssueRepository) FindByCategory(ctx context.Context, category models.IssueCategory) ([]models.Issue, error) {
	return r.find(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("category = ?", category)
	})
}

func (r *gormIssueRepository) FindByDepartment(ctx context.Context, department string) ([]models.Issue, error) {
	return r.find(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("department = ?", department)
	})
}

func (r *gormIssueRepository) FindByStatusAndCategory(ctx context.Context, status models.IssueStatus, category models.IssueCategory) ([]models.Issue, error) {
	return r.find(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status = ? AND category = ?", status, category)
	})
}

func (r *gormIssueRepository) FindNear(ctx context.Context, latitude, longitude, radiusKm float64) ([]models.Issue, error) {
	radiusDeg := radiusKm / kmPerDegree
	return r.find(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where(
			"(? - latitude) * (? - latitude) + (? - longitude) * (? - longitude) < ?",
			latitude, latitude, longitude, longitude, radiusDeg*radiusDeg,
		)
	})
}

func (r *gormIssueRepository) CountByStatus(ctx context.Context, status models.IssueStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Issue{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (r *gormIssueRepository) CountByCategory(ctx context.Context, category models.IssueCategory) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Issue{}).Where("category = ?", category).Count(&count).Error
	return count, err
}

func (r *gormIssueRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Issue{}).Count(&count).Error
	return count, err
}

// Create inserts the issue together with its updates and images.
func (r *gormIssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	if err := r.db.WithContext(ctx).Create(issue).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrIssueIDConflict
		}
		return err
	}
	return nil
}

// Save writes the issue columns, inserts new updates and writes every image
// (existing images may have had their URL replaced).
func (r *gormIssueRepository) Save(ctx context.Context, issue *models.Issue) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(issue).Error; err != nil {
		return err
	}
	for i := range issue.Updates {
		update := &issue.Updates[i]
		if update.ID != 0 {
			continue
		}
		update.IssueDbID = issue.ID
		if err := db.Create(update).Error; err != nil {
			return err
		}
	}
	for i := range issue.Images {
		image := &issue.Images[i]
		image.IssueDbID = issue.ID
		if err := db.Save(image).Error; err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the issue and cascades to its images and updates.
func (r *gormIssueRepository) Delete(ctx context.Context, issue *models.Issue) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("issue_db_id = ?", issue.ID).Delete(&models.IssueImage{}).Error; err != nil {
		return err
	}
	if err := db.Where("issue_db_id = ?", issue.ID).Delete(&models.IssueUpdate{}).Error; err != nil {
		return err
	}
	return db.Delete(&models.Issue{}, issue.ID).Error
}

func (r *gormIssueRepository) Transaction(ctx context.Context, fn func(repo IssueRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormIssueRepository{db: tx})
	})
}

// isUniqueViolation reports a unique constraint failure. SQLite reports
// "UNIQUE constraint failed", PostgreSQL "duplicate key".
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
