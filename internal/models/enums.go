package models

import (
	"errors"
)

// ErrUnknownValue is returned when a display name does not match any known enum value.
var ErrUnknownValue = errors.New("unknown value")

// unknownValueError reads "unknown <kind>: <name>" and matches ErrUnknownValue.
type unknownValueError struct {
	kind string
	name string
}

func (e *unknownValueError) Error() string {
	return "unknown " + e.kind + ": " + e.name
}

func (e *unknownValueError) Is(target error) bool {
	return target == ErrUnknownValue
}

// IssueStatus is the lifecycle state of an issue, stored as its internal code.
type IssueStatus string

const (
	IssueStatusReported   IssueStatus = "REPORTED"
	IssueStatusInProgress IssueStatus = "IN_PROGRESS"
	IssueStatusResolved   IssueStatus = "RESOLVED"
)

// IssueCategory classifies the kind of infrastructure problem.
type IssueCategory string

const (
	IssueCategoryPothole           IssueCategory = "POTHOLE"
	IssueCategoryGraffiti          IssueCategory = "GRAFFITI"
	IssueCategoryStreetlightOutage IssueCategory = "STREETLIGHT_OUTAGE"
	IssueCategoryWasteManagement   IssueCategory = "WASTE_MANAGEMENT"
	IssueCategoryDamagedSign       IssueCategory = "DAMAGED_SIGN"
	IssueCategoryWaterLeak         IssueCategory = "WATER_LEAK"
	IssueCategoryOther             IssueCategory = "OTHER"
)

// IssuePriority is the triage priority of an issue.
type IssuePriority string

const (
	IssuePriorityLow    IssuePriority = "LOW"
	IssuePriorityMedium IssuePriority = "MEDIUM"
	IssuePriorityHigh   IssuePriority = "HIGH"
)

// Display-name tables. Order is significant: it is the order used by the
// statistics endpoint and by the forward-only transition policy.
var issueStatusNames = []struct {
	value IssueStatus
	name  string
}{
	{IssueStatusReported, "Reported"},
	{IssueStatusInProgress, "In Progress"},
	{IssueStatusResolved, "Resolved"},
}

var issueCategoryNames = []struct {
	value IssueCategory
	name  string
}{
	{IssueCategoryPothole, "Pothole"},
	{IssueCategoryGraffiti, "Graffiti"},
	{IssueCategoryStreetlightOutage, "Streetlight Outage"},
	{IssueCategoryWasteManagement, "Waste Management"},
	{IssueCategoryDamagedSign, "Damaged Sign"},
	{IssueCategoryWaterLeak, "Water Leak"},
	{IssueCategoryOther, "Other"},
}

var issuePriorityNames = []struct {
	value IssuePriority
	name  string
}{
	{IssuePriorityLow, "Low"},
	{IssuePriorityMedium, "Medium"},
	{IssuePriorityHigh, "High"},
}

// DisplayName returns the client-facing name, e.g. "In Progress".
func (s IssueStatus) DisplayName() string {
	for _, e := range issueStatusNames {
		if e.value == s {
			return e.name
		}
	}
	return string(s)
}

// Rank is the position of the status in the lifecycle, -1 if unknown.
func (s IssueStatus) Rank() int {
	for i, e := range issueStatusNames {
		if e.value == s {
			return i
		}
	}
	return -1
}

// ParseIssueStatus resolves a display name (case-sensitive) to an IssueStatus.
func ParseIssueStatus(name string) (IssueStatus, error) {
	for _, e := range issueStatusNames {
		if e.name == name {
			return e.value, nil
		}
	}
	return "", &unknownValueError{kind: "status", name: name}
}

// AllIssueStatuses lists every status in lifecycle order.
func AllIssueStatuses() []IssueStatus {
	out := make([]IssueStatus, 0, len(issueStatusNames))
	for _, e := range issueStatusNames {
		out = append(out, e.value)
	}
	return out
}

func (c IssueCategory) DisplayName() string {
	for _, e := range issueCategoryNames {
		if e.value == c {
			return e.name
		}
	}
	return string(c)
}

// ParseIssueCategory resolves a display name (case-sensitive) to an IssueCategory.
func ParseIssueCategory(name string) (IssueCategory, error) {
	for _, e := range issueCategoryNames {
		if e.name == name {
			return e.value, nil
		}
	}
	return "", &unknownValueError{kind: "category", name: name}
}

// AllIssueCategories lists every category in declaration order.
func AllIssueCategories() []IssueCategory {
	out := make([]IssueCategory, 0, len(issueCategoryNames))
	for _, e := range issueCategoryNames {
		out = append(out, e.value)
	}
	return out
}

func (p IssuePriority) DisplayName() string {
	for _, e := range issuePriorityNames {
		if e.value == p {
			return e.name
		}
	}
	return string(p)
}

// ParseIssuePriority resolves a display name (case-sensitive) to an IssuePriority.
func ParseIssuePriority(name string) (IssuePriority, error) {
	for _, e := range issuePriorityNames {
		if e.name == name {
			return e.value, nil
		}
	}
	return "", &unknownValueError{kind: "priority", name: name}
}
