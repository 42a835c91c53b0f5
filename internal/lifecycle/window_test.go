package lifecycle

import (
	"testing"
	"time"

	"github.com/Tanishk31/visiting-management/internal/model"
)

func ptr(t time.Time) *time.Time { return &t }

func TestValidateWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		start *time.Time
		end   *time.Time
		ok    bool
	}{
		{"valid", ptr(now.Add(time.Hour)), ptr(now.Add(3 * time.Hour)), true},
		{"missing start", nil, ptr(now.Add(time.Hour)), false},
		{"missing end", ptr(now.Add(time.Hour)), nil, false},
		{"both missing", nil, nil, false},
		{"zero start", ptr(time.Time{}), ptr(now.Add(time.Hour)), false},
		{"start equals now", ptr(now), ptr(now.Add(time.Hour)), false},
		{"start in the past", ptr(now.Add(-time.Minute)), ptr(now.Add(time.Hour)), false},
		{"end equals start", ptr(now.Add(time.Hour)), ptr(now.Add(time.Hour)), false},
		{"end before start", ptr(now.Add(2 * time.Hour)), ptr(now.Add(time.Hour)), false},
		{"window too long", ptr(now.Add(time.Hour)), ptr(now.Add(26 * time.Hour)), false},
		{"window exactly max", ptr(now.Add(time.Hour)), ptr(now.Add(25 * time.Hour)), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateWindow(tc.start, tc.end, now, DefaultMaxWindow)
			if tc.ok && err != nil {
				t.Fatalf("expected valid window, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected window error, got nil")
				}
				if _, isWindow := err.(*WindowError); !isWindow {
					t.Fatalf("expected *WindowError, got %T", err)
				}
			}
		})
	}
}

func TestClassify(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	open := model.Visit{
		Status:    model.VisitPreApproved,
		StartTime: ptr(now.Add(-time.Hour)),
		EndTime:   ptr(now.Add(time.Hour)),
	}
	past := model.Visit{
		Status:    model.VisitPreApproved,
		StartTime: ptr(now.Add(-3 * time.Hour)),
		EndTime:   ptr(now.Add(-time.Hour)),
	}
	future := model.Visit{
		Status:    model.VisitPreApproved,
		StartTime: ptr(now.Add(time.Hour)),
		EndTime:   ptr(now.Add(2 * time.Hour)),
	}

	if got := Classify(open, now); got != model.VisitPreApproved {
		t.Fatalf("open window classified as %q", got)
	}
	if got := Classify(past, now); got != model.VisitExpired {
		t.Fatalf("past window classified as %q", got)
	}
	if got := Classify(future, now); got != model.VisitExpired {
		t.Fatalf("future window classified as %q", got)
	}

	// Classification is derived; the record itself must not change.
	if past.Status != model.VisitPreApproved {
		t.Fatalf("Classify mutated the visit: %q", past.Status)
	}

	// Non-pre-approved statuses pass through untouched.
	for _, s := range []model.VisitStatus{model.VisitPending, model.VisitApproved, model.VisitActive, model.VisitCompleted, model.VisitDenied} {
		v := model.Visit{Status: s, StartTime: past.StartTime, EndTime: past.EndTime}
		if got := Classify(v, now); got != s {
			t.Fatalf("status %q classified as %q", s, got)
		}
	}

	// A pre-approved visit with no window at all reads as expired.
	if got := Classify(model.Visit{Status: model.VisitPreApproved}, now); got != model.VisitExpired {
		t.Fatalf("windowless pre-approval classified as %q", got)
	}
}

func TestWindowOpen(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	v := model.Visit{StartTime: ptr(now.Add(-time.Minute)), EndTime: ptr(now.Add(time.Minute))}

	if !WindowOpen(v, now) {
		t.Fatal("expected window open")
	}
	if !WindowOpen(v, *v.StartTime) {
		t.Fatal("window should be open at its start instant")
	}
	if !WindowOpen(v, *v.EndTime) {
		t.Fatal("window should be open at its end instant")
	}
	if WindowOpen(v, now.Add(2*time.Minute)) {
		t.Fatal("expected window closed after end")
	}
	if WindowOpen(model.Visit{}, now) {
		t.Fatal("missing window must never read as open")
	}
}
