package lifecycle

import (
	"time"

	"github.com/Tanishk31/visiting-management/internal/model"
)

// DefaultMaxWindow bounds the length of a pre-approval window.
const DefaultMaxWindow = 24 * time.Hour

// ValidateWindow applies the pre-approval window rule. It is called at
// creation and nowhere else. A nil error means the window is acceptable;
// otherwise the returned *WindowError names the violated rule.
func ValidateWindow(start, end *time.Time, now time.Time, max time.Duration) error {
	if start == nil || end == nil {
		return windowErrorf("start and end times are required")
	}
	if start.IsZero() || end.IsZero() {
		return windowErrorf("start and end times must be valid timestamps")
	}
	if !start.After(now) {
		return windowErrorf("start time must be in the future")
	}
	if !end.After(*start) {
		return windowErrorf("end time must be after start time")
	}
	if end.Sub(*start) > max {
		return windowErrorf("time window cannot exceed %s", max)
	}
	return nil
}

// Expired reports whether a pre-approved visit's window has no validity at
// the given instant. A pre-approved visit with a missing window is treated
// as expired rather than valid forever.
func Expired(v model.Visit, now time.Time) bool {
	if v.StartTime == nil || v.EndTime == nil {
		return true
	}
	return now.Before(*v.StartTime) || now.After(*v.EndTime)
}

// WindowOpen reports whether now falls inside the visit's window.
func WindowOpen(v model.Visit, now time.Time) bool {
	if v.StartTime == nil || v.EndTime == nil {
		return false
	}
	return !now.Before(*v.StartTime) && !now.After(*v.EndTime)
}

// Classify computes the status a visit should display at the given instant.
// It never mutates anything: a pre-approved visit outside its window reads as
// expired on every query, while the stored status stays pre_approved.
func Classify(v model.Visit, now time.Time) model.VisitStatus {
	if v.Status == model.VisitPreApproved && Expired(v, now) {
		return model.VisitExpired
	}
	return v.Status
}
