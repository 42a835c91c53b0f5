package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tanishk31/visiting-management/internal/model"
)

// IdentityStore is the slice of the user store the engine needs.
type IdentityStore interface {
	GetUserByID(ctx context.Context, id string) (model.User, error)
	// FindActiveHostsByName returns every active host whose name matches
	// case-insensitively. The engine decides what more than one match means.
	FindActiveHostsByName(ctx context.Context, name string) ([]model.User, error)
}

// VisitStore persists visits. UpdateVisitStatus must be a conditional update
// keyed on the visit id and the expected prior status, so that two concurrent
// transitions on the same visit cannot both succeed.
type VisitStore interface {
	CreateVisit(ctx context.Context, v model.Visit) error
	GetVisit(ctx context.Context, id string) (model.Visit, error)
	UpdateVisitStatus(ctx context.Context, id string, expect model.VisitStatus, update VisitUpdate) (bool, error)
}

// VisitUpdate carries the fields a transition is allowed to touch.
type VisitUpdate struct {
	Status   model.VisitStatus
	CheckIn  *time.Time
	CheckOut *time.Time
}

type EventType string

const (
	EventVisitCreated EventType = "visit.created"
	EventVisitDecided EventType = "visit.decided"
)

// Event is handed to the notifier after a transition commits.
type Event struct {
	Visit     model.Visit
	Type      EventType
	Recipient string
}

// Notifier delivers a notification for an event. Failures are reported back
// to the caller as a flag and never unwind the transition.
type Notifier interface {
	Dispatch(ctx context.Context, event Event) error
}

// PassIssuer mints the QR artifact for a pre-approved visit.
type PassIssuer interface {
	Issue(v model.Visit) (id string, encoded string, err error)
}

// NotifyResult reports what happened to the best-effort notification attached
// to a transition.
type NotifyResult struct {
	Attempted bool   `json:"attempted"`
	Sent      bool   `json:"sent"`
	Recipient string `json:"recipient,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Engine owns the visit state machine. All status changes go through its
// methods; nothing else may touch Visit.Status.
type Engine struct {
	identities IdentityStore
	visits     VisitStore
	notifier   Notifier
	passes     PassIssuer
	maxWindow  time.Duration
}

func NewEngine(identities IdentityStore, visits VisitStore, notifier Notifier, passes PassIssuer, maxWindow time.Duration) *Engine {
	if maxWindow <= 0 {
		maxWindow = DefaultMaxWindow
	}
	return &Engine{
		identities: identities,
		visits:     visits,
		notifier:   notifier,
		passes:     passes,
		maxWindow:  maxWindow,
	}
}

type CreateKind string

const (
	CreateWalkIn      CreateKind = "walk_in"
	CreateVisitor     CreateKind = "visitor"
	CreatePreApproval CreateKind = "pre_approval"
)

type CreateRequest struct {
	Kind CreateKind

	// ActorID is the authenticated caller: the visitor on the visitor path,
	// the host on the pre-approval path. Empty for walk-ins.
	ActorID string

	VisitorName    string
	VisitorEmail   string
	VisitorContact string

	Purpose  string
	Company  string
	PhotoKey string

	Host model.HostRef

	StartTime *time.Time
	EndTime   *time.Time
}

// Create validates a request, resolves its host, and persists a new visit in
// state pending (walk-in and visitor paths) or pre_approved (host path). No
// partial visit is ever persisted: validation, host resolution, the window
// rule, and pass issuance all run before the store is touched.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (model.Visit, NotifyResult, error) {
	now := time.Now().UTC()

	if err := validateCreate(req); err != nil {
		return model.Visit{}, NotifyResult{}, err
	}

	host, err := e.resolveHost(ctx, req)
	if err != nil {
		return model.Visit{}, NotifyResult{}, err
	}

	windowed := req.StartTime != nil || req.EndTime != nil || req.Kind == CreatePreApproval
	if windowed {
		if err := ValidateWindow(req.StartTime, req.EndTime, now, e.maxWindow); err != nil {
			return model.Visit{}, NotifyResult{}, err
		}
	}

	visitor := model.User{}
	if req.ActorID != "" && req.Kind == CreateVisitor {
		actor, err := e.identities.GetUserByID(ctx, req.ActorID)
		if err != nil {
			return model.Visit{}, NotifyResult{}, ErrUnauthorized
		}
		visitor = actor
	}

	visit := model.Visit{
		ID:             uuid.NewString(),
		HostID:         host.ID,
		HostName:       host.Name,
		VisitorName:    strings.TrimSpace(req.VisitorName),
		VisitorEmail:   strings.TrimSpace(strings.ToLower(req.VisitorEmail)),
		VisitorContact: strings.TrimSpace(req.VisitorContact),
		Purpose:        strings.TrimSpace(req.Purpose),
		Company:        strings.TrimSpace(req.Company),
		PhotoKey:       req.PhotoKey,
		RequestedAt:    now,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Status:         model.VisitPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if visitor.ID != "" {
		visit.VisitorID = visitor.ID
		if visit.VisitorName == "" {
			visit.VisitorName = visitor.Name
		}
		if visit.VisitorEmail == "" {
			visit.VisitorEmail = visitor.Email
		}
		if visit.VisitorContact == "" {
			visit.VisitorContact = visitor.ContactNumber
		}
	}

	recipient := host.Email
	if req.Kind == CreatePreApproval {
		visit.Status = model.VisitPreApproved
		recipient = visit.VisitorEmail
		if e.passes != nil {
			passID, encoded, err := e.passes.Issue(visit)
			if err != nil {
				return model.Visit{}, NotifyResult{}, fmt.Errorf("issuing pass: %w", err)
			}
			visit.QRID = passID
			visit.QRPass = encoded
		}
	}

	if err := e.visits.CreateVisit(ctx, visit); err != nil {
		return model.Visit{}, NotifyResult{}, err
	}

	notify := e.dispatch(ctx, Event{Visit: visit, Type: EventVisitCreated, Recipient: recipient})
	return visit, notify, nil
}

// Decide moves a pending visit to approved or denied. Only the visit's host
// may decide, and only once: a second Decide fails with ErrNotPending no
// matter the decision.
func (e *Engine) Decide(ctx context.Context, visitID string, decision model.VisitStatus, actorID string) (model.Visit, NotifyResult, error) {
	if decision != model.VisitApproved && decision != model.VisitDenied {
		return model.Visit{}, NotifyResult{}, &ValidationError{Fields: map[string]string{
			"status": fmt.Sprintf("decision must be %q or %q", model.VisitApproved, model.VisitDenied),
		}}
	}

	visit, err := e.loadOwned(ctx, visitID, actorID)
	if err != nil {
		return model.Visit{}, NotifyResult{}, err
	}

	if visit.Status != model.VisitPending {
		return model.Visit{}, NotifyResult{}, ErrNotPending
	}

	now := time.Now().UTC()
	update := VisitUpdate{Status: decision}
	if decision == model.VisitApproved && visit.CheckIn == nil {
		// Walk-in visitors are on site when the host approves, so approval
		// stamps the check-in time.
		update.CheckIn = &now
	}

	updated, err := e.visits.UpdateVisitStatus(ctx, visit.ID, model.VisitPending, update)
	if err != nil {
		return model.Visit{}, NotifyResult{}, err
	}
	if !updated {
		// Lost a race with another decision on the same visit.
		return model.Visit{}, NotifyResult{}, ErrNotPending
	}

	visit.Status = decision
	if update.CheckIn != nil {
		visit.CheckIn = update.CheckIn
	}
	visit.UpdatedAt = now

	notify := e.dispatch(ctx, Event{Visit: visit, Type: EventVisitDecided, Recipient: visit.VisitorEmail})
	return visit, notify, nil
}

// CheckIn marks an approved visit active, or activates a pre-approved visit
// when its window is open. Owner-only.
func (e *Engine) CheckIn(ctx context.Context, visitID, actorID string) (model.Visit, error) {
	visit, err := e.loadOwned(ctx, visitID, actorID)
	if err != nil {
		return model.Visit{}, err
	}
	return e.activate(ctx, visit)
}

// CheckInWithPass activates a pre-approved visit from a scanned QR pass.
// Possession of the pass id authorizes the transition; the window must be
// open at scan time.
func (e *Engine) CheckInWithPass(ctx context.Context, visitID, passID string) (model.Visit, error) {
	visit, err := e.visits.GetVisit(ctx, visitID)
	if err != nil {
		return model.Visit{}, err
	}
	if visit.QRID == "" || visit.QRID != passID {
		return model.Visit{}, ErrNotFound
	}
	if visit.Status != model.VisitPreApproved {
		return model.Visit{}, ErrInvalidState
	}
	return e.activate(ctx, visit)
}

func (e *Engine) activate(ctx context.Context, visit model.Visit) (model.Visit, error) {
	now := time.Now().UTC()

	switch visit.Status {
	case model.VisitApproved:
	case model.VisitPreApproved:
		if now.Before(derefTime(visit.StartTime)) {
			return model.Visit{}, fmt.Errorf("%w: pre-approval window not open yet", ErrInvalidState)
		}
		if Expired(visit, now) {
			return model.Visit{}, fmt.Errorf("%w: pre-approval window has expired", ErrInvalidState)
		}
	default:
		return model.Visit{}, ErrInvalidState
	}

	update := VisitUpdate{Status: model.VisitActive}
	if visit.CheckIn == nil {
		update.CheckIn = &now
	}
	updated, err := e.visits.UpdateVisitStatus(ctx, visit.ID, visit.Status, update)
	if err != nil {
		return model.Visit{}, err
	}
	if !updated {
		return model.Visit{}, ErrInvalidState
	}

	visit.Status = model.VisitActive
	if update.CheckIn != nil {
		visit.CheckIn = update.CheckIn
	}
	visit.UpdatedAt = now
	return visit, nil
}

// CheckOut completes an approved or active visit. `completed` is terminal;
// the checkout time, once set, is never cleared.
func (e *Engine) CheckOut(ctx context.Context, visitID, actorID string) (model.Visit, error) {
	visit, err := e.loadOwned(ctx, visitID, actorID)
	if err != nil {
		return model.Visit{}, err
	}

	if visit.Status != model.VisitApproved && visit.Status != model.VisitActive {
		return model.Visit{}, ErrInvalidState
	}
	if visit.CheckOut != nil {
		return model.Visit{}, ErrInvalidState
	}

	now := time.Now().UTC()
	update := VisitUpdate{Status: model.VisitCompleted, CheckOut: &now}
	if visit.CheckIn == nil {
		update.CheckIn = &now
	}

	updated, err := e.visits.UpdateVisitStatus(ctx, visit.ID, visit.Status, update)
	if err != nil {
		return model.Visit{}, err
	}
	if !updated {
		return model.Visit{}, ErrInvalidState
	}

	visit.Status = model.VisitCompleted
	visit.CheckOut = &now
	if update.CheckIn != nil {
		visit.CheckIn = update.CheckIn
	}
	visit.UpdatedAt = now
	return visit, nil
}

// Get returns a visit, owner-checked, with no mutation.
func (e *Engine) Get(ctx context.Context, visitID, actorID string) (model.Visit, error) {
	return e.loadOwned(ctx, visitID, actorID)
}

func (e *Engine) loadOwned(ctx context.Context, visitID, actorID string) (model.Visit, error) {
	visit, err := e.visits.GetVisit(ctx, visitID)
	if err != nil {
		return model.Visit{}, err
	}
	actor, err := e.identities.GetUserByID(ctx, actorID)
	if err != nil {
		return model.Visit{}, ErrUnauthorized
	}
	if !Owns(actor, visit) {
		return model.Visit{}, ErrUnauthorized
	}
	return visit, nil
}

// Owns is the authorization predicate for Decide, CheckIn, and CheckOut.
// Identity equality is the rule; the case-insensitive name comparison exists
// only for records migrated from the name-keyed schema, which carry no host
// id. Names are neither unique nor immutable, so the fallback never applies
// once a structured reference exists.
func Owns(actor model.User, v model.Visit) bool {
	if actor.Role != model.RoleHost {
		return false
	}
	if v.HostID != "" {
		return v.HostID == actor.ID
	}
	return strings.EqualFold(strings.TrimSpace(v.HostName), strings.TrimSpace(actor.Name))
}

func (e *Engine) resolveHost(ctx context.Context, req CreateRequest) (model.User, error) {
	if req.Kind == CreatePreApproval {
		actor, err := e.identities.GetUserByID(ctx, req.ActorID)
		if err != nil {
			return model.User{}, ErrUnauthorized
		}
		if actor.Role != model.RoleHost || actor.Status != model.UserActive {
			return model.User{}, ErrUnauthorized
		}
		return actor, nil
	}

	if req.Host.ID != "" {
		host, err := e.identities.GetUserByID(ctx, req.Host.ID)
		if err != nil {
			return model.User{}, ErrHostNotFound
		}
		if host.Role != model.RoleHost || host.Status != model.UserActive {
			return model.User{}, ErrHostNotFound
		}
		return host, nil
	}

	name := strings.TrimSpace(req.Host.Name)
	hosts, err := e.identities.FindActiveHostsByName(ctx, name)
	if err != nil {
		return model.User{}, err
	}
	switch len(hosts) {
	case 0:
		return model.User{}, ErrHostNotFound
	case 1:
		return hosts[0], nil
	default:
		// More than one active host answers to this name; refusing beats
		// routing a visitor to the wrong person.
		return model.User{}, fmt.Errorf("%w: %d active hosts named %q", ErrHostNotFound, len(hosts), name)
	}
}

func validateCreate(req CreateRequest) error {
	fields := map[string]string{}

	if strings.TrimSpace(req.Purpose) == "" {
		fields["purpose"] = "purpose of visit is required"
	}
	if strings.TrimSpace(req.Company) == "" {
		fields["company"] = "company name is required"
	}
	if req.Host.ID == "" && strings.TrimSpace(req.Host.Name) == "" {
		fields["host"] = "host is required"
	}

	switch req.Kind {
	case CreateWalkIn:
		if strings.TrimSpace(req.VisitorName) == "" {
			fields["name"] = "visitor name is required"
		}
		if strings.TrimSpace(req.VisitorContact) == "" {
			fields["contact"] = "contact number is required"
		}
		if req.PhotoKey == "" {
			fields["photo"] = "photo is required for walk-in requests"
		}
	case CreateVisitor:
		if req.ActorID == "" {
			fields["visitor"] = "authenticated visitor is required"
		}
	case CreatePreApproval:
		if req.ActorID == "" {
			fields["host"] = "authenticated host is required"
		}
		if strings.TrimSpace(req.VisitorName) == "" {
			fields["name"] = "visitor name is required"
		}
		if strings.TrimSpace(req.VisitorEmail) == "" {
			fields["email"] = "visitor email is required"
		}
	default:
		fields["kind"] = fmt.Sprintf("unknown create kind %q", req.Kind)
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (e *Engine) dispatch(ctx context.Context, event Event) NotifyResult {
	result := NotifyResult{Recipient: event.Recipient}
	if e.notifier == nil || event.Recipient == "" {
		return result
	}
	result.Attempted = true
	if err := e.notifier.Dispatch(ctx, event); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Sent = true
	return result
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
