package services

import (
	"fmt"
	"strings"

	"github.com/civic_issues/internal/models"
)

// TransitionPolicy decides whether an issue may move from one status to another.
type TransitionPolicy func(from, to models.IssueStatus) bool

// AnyTransition allows every transition, including regressions such as
// Resolved -> Reported.
func AnyTransition(from, to models.IssueStatus) bool {
	return true
}

// ForwardOnly allows staying in place or moving forward along
// Reported -> In Progress -> Resolved.
func ForwardOnly(from, to models.IssueStatus) bool {
	return to.Rank() >= from.Rank()
}

// ParseTransitionPolicy maps a configuration value to a policy.
func ParseTransitionPolicy(name string) (TransitionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "any":
		return AnyTransition, nil
	case "forward":
		return ForwardOnly, nil
	default:
		return nil, fmt.Errorf("unknown status transition policy %q (expected any or forward)", name)
	}
}
