package models

import (
	"bytes"
	"time"
)

// LocalTimeLayout is the wire format for timestamps: local time, no zone.
const LocalTimeLayout = "2006-01-02T15:04:05"

// LocalTime serializes as a timezone-naive local date-time.
type LocalTime struct {
	time.Time
}

// NewLocalTime wraps t, returning nil for a nil input.
func NewLocalTime(t *time.Time) *LocalTime {
	if t == nil {
		return nil
	}
	return &LocalTime{Time: *t}
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Local().Format(LocalTimeLayout) + `"`), nil
}

func (t *LocalTime) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	parsed, err := time.ParseInLocation(LocalTimeLayout, string(data), time.Local)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// timePtr unwraps a *LocalTime.
func (t *LocalTime) timePtr() *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time
	return &v
}

// IssuePayload is the request body for creating and editing an issue.
type IssuePayload struct {
	Title       string   `json:"title" binding:"required,notblank,max=255"`
	Description string   `json:"description" binding:"required,notblank,min=10"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
	ImageHint   *string  `json:"imageHint,omitempty"`
	Latitude    *float64 `json:"latitude" binding:"required"`
	Longitude   *float64 `json:"longitude" binding:"required"`
	Address     string   `json:"address" binding:"required,notblank"`
	Category    string   `json:"category" binding:"required,notblank"`
	Priority    *string  `json:"priority,omitempty"`
	Department  *string  `json:"department,omitempty"`
}

// LocationResponse groups the coordinates and address of an issue.
type LocationResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// IssueUpdateResponse is one entry of an issue's history.
type IssueUpdateResponse struct {
	Timestamp   LocalTime `json:"timestamp" swaggertype:"string" example:"2024-07-20T10:00:00"`
	Status      string    `json:"status" example:"Reported"`
	Description string    `json:"description"`
}

// IssueImageResponse is one photo reference.
type IssueImageResponse struct {
	URL     string `json:"url"`
	Caption string `json:"caption" example:"Before"`
}

// IssueResponse is the client-facing representation of an Issue.
type IssueResponse struct {
	ID          string                `json:"id" example:"IS-12345"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	ImageURL    *string               `json:"imageUrl"`
	ImageHint   *string               `json:"imageHint"`
	Location    LocationResponse      `json:"location"`
	Status      string                `json:"status" example:"Reported"`
	Category    string                `json:"category" example:"Pothole"`
	Priority    *string               `json:"priority" example:"Medium"`
	ReportedAt  LocalTime             `json:"reportedAt" swaggertype:"string"`
	ResolvedAt  *LocalTime            `json:"resolvedAt" swaggertype:"string"`
	Department  string                `json:"department"`
	Confidence  *float64              `json:"confidence"`
	ETA         *LocalTime            `json:"eta" swaggertype:"string"`
	Updates     []IssueUpdateResponse `json:"updates"`
	Images      []IssueImageResponse  `json:"images"`
}

// NewIssueResponse converts an Issue to its transfer representation.
func NewIssueResponse(issue *Issue) *IssueResponse {
	resp := &IssueResponse{
		ID:          issue.IssueID,
		Title:       issue.Title,
		Description: issue.Description,
		ImageURL:    issue.ImageURL,
		ImageHint:   issue.ImageHint,
		Location: LocationResponse{
			Latitude:  issue.Latitude,
			Longitude: issue.Longitude,
			Address:   issue.Address,
		},
		Status:     issue.Status.DisplayName(),
		Category:   issue.Category.DisplayName(),
		ReportedAt: LocalTime{Time: issue.ReportedAt},
		ResolvedAt: NewLocalTime(issue.ResolvedAt),
		Department: issue.Department,
		Confidence: issue.Confidence,
		ETA:        NewLocalTime(issue.ETA),
		Updates:    make([]IssueUpdateResponse, 0, len(issue.Updates)),
		Images:     make([]IssueImageResponse, 0, len(issue.Images)),
	}
	if issue.Priority != nil {
		name := issue.Priority.DisplayName()
		resp.Priority = &name
	}
	for _, u := range issue.Updates {
		resp.Updates = append(resp.Updates, IssueUpdateResponse{
			Timestamp:   LocalTime{Time: u.Timestamp},
			Status:      u.Status.DisplayName(),
			Description: u.Description,
		})
	}
	for _, img := range issue.Images {
		resp.Images = append(resp.Images, IssueImageResponse{URL: img.URL, Caption: img.Caption})
	}
	return resp
}

// NewIssueResponses converts a slice of issues, preserving order.
func NewIssueResponses(issues []Issue) []IssueResponse {
	out := make([]IssueResponse, 0, len(issues))
	for i := range issues {
		out = append(out, *NewIssueResponse(&issues[i]))
	}
	return out
}

// ToIssue converts the transfer representation back into an unsaved Issue.
// Display names must resolve; an unknown value yields ErrUnknownValue.
func (r *IssueResponse) ToIssue() (*Issue, error) {
	status, err := ParseIssueStatus(r.Status)
	if err != nil {
		return nil, err
	}
	category, err := ParseIssueCategory(r.Category)
	if err != nil {
		return nil, err
	}
	issue := &Issue{
		IssueID:     r.ID,
		Title:       r.Title,
		Description: r.Description,
		ImageURL:    r.ImageURL,
		ImageHint:   r.ImageHint,
		Latitude:    r.Location.Latitude,
		Longitude:   r.Location.Longitude,
		Address:     r.Location.Address,
		Status:      status,
		Category:    category,
		ReportedAt:  r.ReportedAt.Time,
		ResolvedAt:  r.ResolvedAt.timePtr(),
		Department:  r.Department,
		Confidence:  r.Confidence,
		ETA:         r.ETA.timePtr(),
	}
	if r.Priority != nil {
		priority, err := ParseIssuePriority(*r.Priority)
		if err != nil {
			return nil, err
		}
		issue.Priority = &priority
	}
	for _, u := range r.Updates {
		updateStatus, err := ParseIssueStatus(u.Status)
		if err != nil {
			return nil, err
		}
		issue.AddUpdate(NewIssueUpdate(updateStatus, u.Description, u.Timestamp.Time))
	}
	for _, img := range r.Images {
		issue.AddImage(IssueImage{URL: img.URL, Caption: img.Caption})
	}
	return issue, nil
}
