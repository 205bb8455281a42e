package models

import (
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"
)

// DefaultDepartment is assigned to issues created without a department.
const DefaultDepartment = "Pending Assignment"

// Image captions used by the issue workflow.
const (
	CaptionBefore = "Before"
	CaptionAfter  = "After"
)

// Issue corresponds to the issues table
type Issue struct {
	ID          int64          `json:"-" gorm:"primaryKey;autoIncrement"`
	IssueID     string         `json:"issueId" gorm:"column:issue_id;uniqueIndex;not null;size:20"` // public identifier, IS-12345
	Title       string         `json:"title" gorm:"column:title;not null;size:255"`
	Description string         `json:"description" gorm:"column:description;not null;size:2000"`
	ImageURL    *string        `json:"imageUrl,omitempty" gorm:"column:image_url;size:1000"`
	ImageHint   *string        `json:"imageHint,omitempty" gorm:"column:image_hint;size:255"` // free-text classifier tag
	Latitude    float64        `json:"latitude" gorm:"column:latitude;not null"`
	Longitude   float64        `json:"longitude" gorm:"column:longitude;not null"`
	Address     string         `json:"address" gorm:"column:address;not null;size:500"`
	Status      IssueStatus    `json:"status" gorm:"column:status;not null;size:20;index"`
	Category    IssueCategory  `json:"category" gorm:"column:category;not null;size:30;index"`
	Priority    *IssuePriority `json:"priority,omitempty" gorm:"column:priority;size:10"`
	ReportedAt  time.Time      `json:"reportedAt" gorm:"column:reported_at;not null"`
	ResolvedAt  *time.Time     `json:"resolvedAt,omitempty" gorm:"column:resolved_at"`
	Department  string         `json:"department" gorm:"column:department;not null;size:255;index"`
	Confidence  *float64       `json:"confidence,omitempty" gorm:"column:confidence"` // 0-1, machine assigned
	ETA         *time.Time     `json:"eta,omitempty" gorm:"column:eta"`
	CreatedAt   time.Time      `json:"createdAt" gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt   time.Time      `json:"updatedAt" gorm:"column:updated_at;not null;autoUpdateTime"`
	Updates     []IssueUpdate  `json:"updates" gorm:"foreignKey:IssueDbID;constraint:OnDelete:CASCADE"`
	Images      []IssueImage   `json:"images" gorm:"foreignKey:IssueDbID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Issue
func (Issue) TableName() string {
	return "issues"
}

// BeforeCreate fills the public identifier and the report time when absent.
func (i *Issue) BeforeCreate(tx *gorm.DB) error {
	if i.IssueID == "" {
		i.IssueID = GenerateIssueID()
	}
	if i.ReportedAt.IsZero() {
		i.ReportedAt = time.Now()
	}
	return nil
}

// AddUpdate appends an audit entry and links it to this issue.
func (i *Issue) AddUpdate(update IssueUpdate) {
	update.IssueDbID = i.ID
	i.Updates = append(i.Updates, update)
}

// AddImage appends a photo reference and links it to this issue.
func (i *Issue) AddImage(image IssueImage) {
	image.IssueDbID = i.ID
	i.Images = append(i.Images, image)
}

// GenerateIssueID returns "IS-" followed by a random number in [10000, 99999].
// Uniqueness is enforced by the unique index on issue_id, not here.
func GenerateIssueID() string {
	return fmt.Sprintf("IS-%d", 10000+rand.Intn(90000))
}

// IssueUpdate corresponds to the issue_updates table. Rows are append-only.
type IssueUpdate struct {
	ID          int64       `json:"-" gorm:"primaryKey;autoIncrement"`
	IssueDbID   int64       `json:"-" gorm:"column:issue_db_id;not null;index"`
	Timestamp   time.Time   `json:"timestamp" gorm:"column:timestamp;not null"`
	Status      IssueStatus `json:"status" gorm:"column:status;not null;size:20"`
	Description string      `json:"description" gorm:"column:description;not null;size:1000"`
}

func (IssueUpdate) TableName() string {
	return "issue_updates"
}

func (u *IssueUpdate) BeforeCreate(tx *gorm.DB) error {
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now()
	}
	return nil
}

// NewIssueUpdate builds an update stamped with the given time.
func NewIssueUpdate(status IssueStatus, description string, at time.Time) IssueUpdate {
	return IssueUpdate{Status: status, Description: description, Timestamp: at}
}

// IssueImage corresponds to the issue_images table
type IssueImage struct {
	ID        int64     `json:"-" gorm:"primaryKey;autoIncrement"`
	IssueDbID int64     `json:"-" gorm:"column:issue_db_id;not null;index"`
	URL       string    `json:"url" gorm:"column:url;not null;size:1000"`
	Caption   string    `json:"caption" gorm:"column:caption;not null;size:255"` // conventionally Before / Work in progress / After
	CreatedAt time.Time `json:"createdAt" gorm:"column:created_at;autoCreateTime"`
}

func (IssueImage) TableName() string {
	return "issue_images"
}
