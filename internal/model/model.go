package model

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleHost    Role = "host"
	RoleVisitor Role = "visitor"
)

func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleHost:
		return RoleHost, nil
	case RoleVisitor:
		return RoleVisitor, nil
	default:
		return "", fmt.Errorf("invalid role %q", raw)
	}
}

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	Role          Role
	Department    string
	ContactNumber string
	Status        UserStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CapitalizeName normalizes a person name to one canonical capitalization so
// that host-name lookups against stored names are stable.
func CapitalizeName(name string) string {
	words := strings.Fields(name)
	for i, word := range words {
		if len(word) == 1 {
			words[i] = strings.ToUpper(word)
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}

type VisitStatus string

const (
	VisitPending     VisitStatus = "pending"
	VisitApproved    VisitStatus = "approved"
	VisitDenied      VisitStatus = "denied"
	VisitPreApproved VisitStatus = "pre_approved"
	VisitActive      VisitStatus = "active"
	VisitCompleted   VisitStatus = "completed"

	// VisitExpired is a derived classification for pre-approved visits whose
	// window has passed. It is never written to the store.
	VisitExpired VisitStatus = "expired"
)

// NormalizeStatus maps the legacy status vocabulary onto the canonical one.
// The first deployment of this system wrote "checked-out" and "pre-approved";
// those spellings are still accepted on input and in migrated rows.
func NormalizeStatus(raw string) (VisitStatus, error) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "pending":
		return VisitPending, nil
	case "approved":
		return VisitApproved, nil
	case "denied":
		return VisitDenied, nil
	case "pre_approved", "pre-approved", "pre-approval":
		return VisitPreApproved, nil
	case "active":
		return VisitActive, nil
	case "completed", "checked-out", "checked_out":
		return VisitCompleted, nil
	default:
		return "", fmt.Errorf("invalid visit status %q", raw)
	}
}

// Terminal reports whether no further transition is defined from the status.
func (s VisitStatus) Terminal() bool {
	switch s {
	case VisitDenied, VisitCompleted, VisitExpired:
		return true
	default:
		return false
	}
}

// HostRef identifies the host of a visit. ID is the canonical form; Name is
// accepted as input for walk-in submissions and resolved to an ID before the
// visit is persisted. Records migrated from the name-keyed schema may carry
// an empty ID, in which case Name is all there is.
type HostRef struct {
	ID   string
	Name string
}

type Visit struct {
	ID string

	HostID   string
	HostName string

	// VisitorID is set for visits created by an authenticated visitor; the
	// free-text fields below capture unregistered walk-ins.
	VisitorID      string
	VisitorName    string
	VisitorEmail   string
	VisitorContact string

	Purpose  string
	Company  string
	PhotoKey string

	RequestedAt time.Time
	CheckIn     *time.Time
	CheckOut    *time.Time

	// Pre-approval window. Both set or both nil.
	StartTime *time.Time
	EndTime   *time.Time

	QRID   string
	QRPass string

	Status    VisitStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PreApproved reports whether the visit carries a pre-approval window.
func (v Visit) PreApproved() bool {
	return v.StartTime != nil && v.EndTime != nil
}

type RefreshSession struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent *string
	IPAddress *string
}
