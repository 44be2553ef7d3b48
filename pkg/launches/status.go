package launches

import (
	"slices"
	"strings"
	"time"
)

// Status is the outcome classification of a launch.
type Status string

// Launch statuses. StatusUnknown means classification was not possible; it is
// treated as a null value during reconciliation.
const (
	StatusUpcoming Status = "upcoming"
	StatusSuccess  Status = "success"
	StatusFailure  Status = "failure"
	StatusInFlight Status = "in_flight"
	StatusAborted  Status = "aborted"
	StatusUnknown  Status = ""
)

// String returns the string representation of a status.
func (s Status) String() string {
	return string(s)
}

// Statuses returns all classified status values.
func Statuses() []Status {
	return []Status{
		StatusUpcoming,
		StatusSuccess,
		StatusFailure,
		StatusInFlight,
		StatusAborted,
	}
}

// IsValid returns true if the status is one of the defined values.
func (s Status) IsValid() bool {
	return slices.Contains(Statuses(), s)
}

// statusRule maps outcome-text keywords to a status. Rules are checked in
// order; the first keyword hit wins, so failure and abort wording outranks
// an incidental "success" later in the text.
type statusRule struct {
	status   Status
	keywords []string
}

var statusRules = []statusRule{
	{StatusFailure, []string{"failure", "failed", "lost", "destroyed", "anomaly"}},
	{StatusAborted, []string{"abort", "scrub", "cancelled", "canceled"}},
	{StatusInFlight, []string{"in flight", "in-flight", "in_flight", "underway", "en route"}},
	{StatusSuccess, []string{"success", "successful", "nominal", "partial"}},
	{StatusUpcoming, []string{"upcoming", "scheduled", "planned"}},
}

// ClassifyOutcome derives a status from free-form outcome text using keyword
// matching. When the text yields no classification, a launch date in the
// future of now produces StatusUpcoming; otherwise the status is left
// unclassified. The function is pure: now is passed in by the caller.
func ClassifyOutcome(outcome string, launchDate *time.Time, now time.Time) Status {
	text := strings.ToLower(strings.TrimSpace(outcome))
	if text != "" {
		for _, rule := range statusRules {
			for _, kw := range rule.keywords {
				if strings.Contains(text, kw) {
					return rule.status
				}
			}
		}
	}
	if launchDate != nil && launchDate.After(now) {
		return StatusUpcoming
	}
	return StatusUnknown
}

// NormalizeStatus maps loosely spelled status strings from sources onto the
// defined status values. Unknown spellings return StatusUnknown.
func NormalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "successful":
		return StatusSuccess
	case "failure", "failed":
		return StatusFailure
	case "upcoming", "scheduled":
		return StatusUpcoming
	case "in_flight", "in-flight", "in flight":
		return StatusInFlight
	case "aborted", "cancelled", "canceled":
		return StatusAborted
	}
	return StatusUnknown
}
