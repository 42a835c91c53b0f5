package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Tanishk31/visiting-management/internal/blob"
	"github.com/Tanishk31/visiting-management/internal/lifecycle"
	"github.com/Tanishk31/visiting-management/internal/model"
)

type visitSummary struct {
	ID             string     `json:"id"`
	HostID         string     `json:"hostId,omitempty"`
	HostName       string     `json:"hostName"`
	VisitorName    string     `json:"visitorName"`
	VisitorEmail   string     `json:"visitorEmail,omitempty"`
	VisitorContact string     `json:"visitorContact,omitempty"`
	Purpose        string     `json:"purpose"`
	Company        string     `json:"company"`
	PhotoURL       string     `json:"photoUrl,omitempty"`
	RequestedAt    time.Time  `json:"requestedAt"`
	CheckIn        *time.Time `json:"checkIn,omitempty"`
	CheckOut       *time.Time `json:"checkOut,omitempty"`
	StartTime      *time.Time `json:"startTime,omitempty"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	Status         string     `json:"status"`
}

// renderVisit projects a visit for the wire. The status field goes through
// Classify so pre-approvals outside their window render as expired.
func renderVisit(v model.Visit, now time.Time) visitSummary {
	out := visitSummary{
		ID:             v.ID,
		HostID:         v.HostID,
		HostName:       v.HostName,
		VisitorName:    v.VisitorName,
		VisitorEmail:   v.VisitorEmail,
		VisitorContact: v.VisitorContact,
		Purpose:        v.Purpose,
		Company:        v.Company,
		RequestedAt:    v.RequestedAt,
		CheckIn:        v.CheckIn,
		CheckOut:       v.CheckOut,
		StartTime:      v.StartTime,
		EndTime:        v.EndTime,
		Status:         string(lifecycle.Classify(v, now)),
	}
	if v.PhotoKey != "" {
		out.PhotoURL = "/uploads/" + v.PhotoKey
	}
	return out
}

func renderVisits(visits []model.Visit, now time.Time) []visitSummary {
	out := make([]visitSummary, 0, len(visits))
	for _, v := range visits {
		out = append(out, renderVisit(v, now))
	}
	return out
}

type visitResponse struct {
	Visit        visitSummary           `json:"visit"`
	Notification lifecycle.NotifyResult `json:"notification"`
}

func (s *Server) handleVisitRequest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return
	}

	req := lifecycle.CreateRequest{
		Kind:           lifecycle.CreateWalkIn,
		VisitorName:    r.FormValue("name"),
		VisitorEmail:   r.FormValue("email"),
		VisitorContact: r.FormValue("contact"),
		Purpose:        r.FormValue("purpose"),
		Company:        r.FormValue("company"),
		Host: model.HostRef{
			ID:   r.FormValue("hostId"),
			Name: r.FormValue("hostName"),
		},
	}
	if claims := claimsFromContext(r.Context()); claims != nil && claims.Role == model.RoleVisitor {
		req.Kind = lifecycle.CreateVisitor
		req.ActorID = claims.UserID
	}

	var err error
	if req.StartTime, err = parseOptionalTime(r.FormValue("startTime")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_time")
		return
	}
	if req.EndTime, err = parseOptionalTime(r.FormValue("endTime")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end_time")
		return
	}

	photoKey, err := s.storePhoto(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_photo")
		return
	}
	req.PhotoKey = photoKey

	visit, notify, err := s.engine.Create(r.Context(), req)
	if err != nil {
		if photoKey != "" {
			_ = s.blobs.Delete(r.Context(), photoKey)
		}
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, visitResponse{
		Visit:        renderVisit(visit, time.Now().UTC()),
		Notification: notify,
	})
}

// storePhoto persists the uploaded photo, if any, and returns its blob key.
func (s *Server) storePhoto(r *http.Request) (string, error) {
	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	key := "photos/" + uuid.NewString() + photoExtension(header)
	contentType := header.Header.Get("Content-Type")
	if _, err := s.blobs.Put(r.Context(), key, file, contentType); err != nil {
		return "", err
	}
	return key, nil
}

func photoExtension(header *multipart.FileHeader) string {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
		return ext
	default:
		return ".jpg"
	}
}

type preApproveRequest struct {
	VisitorName  string `json:"visitorName"`
	VisitorEmail string `json:"visitorEmail"`
	Purpose      string `json:"purpose"`
	Company      string `json:"company"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
}

type preApproveResponse struct {
	Visit        visitSummary           `json:"visit"`
	QRPass       string                 `json:"qrPass,omitempty"`
	Notification lifecycle.NotifyResult `json:"notification"`
}

func (s *Server) handlePreApprove(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req preApproveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	create := lifecycle.CreateRequest{
		Kind:         lifecycle.CreatePreApproval,
		ActorID:      claims.UserID,
		VisitorName:  req.VisitorName,
		VisitorEmail: req.VisitorEmail,
		Purpose:      req.Purpose,
		Company:      req.Company,
		Host:         model.HostRef{ID: claims.UserID},
	}
	var err error
	if create.StartTime, err = parseOptionalTime(req.StartTime); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_time")
		return
	}
	if create.EndTime, err = parseOptionalTime(req.EndTime); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end_time")
		return
	}

	visit, notify, err := s.engine.Create(r.Context(), create)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.storeGateCode(r, visit)

	writeJSON(w, http.StatusCreated, preApproveResponse{
		Visit:        renderVisit(visit, time.Now().UTC()),
		QRPass:       visit.QRPass,
		Notification: notify,
	})
}

// storeGateCode registers the visit's QR id as a one-time gate code. Redis
// is optional; without it gate check-in validates against the stored pass id
// alone.
func (s *Server) storeGateCode(r *http.Request, visit model.Visit) {
	if s.redis == nil || visit.QRID == "" || visit.EndTime == nil {
		return
	}
	ttl := time.Until(*visit.EndTime)
	if ttl <= 0 {
		return
	}
	s.redis.Set(r.Context(), gateKey(visit.QRID), visit.ID, ttl)
}

func gateKey(passID string) string {
	return "gate:" + passID
}

func (s *Server) handleHostRequests(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var status model.VisitStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := model.NormalizeStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		status = parsed
	}

	visits, err := s.visits.ListVisitsByHost(r.Context(), claims.UserID, claims.Name, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, renderVisits(visits, time.Now().UTC()))
}

func (s *Server) handleActiveVisits(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	visits, err := s.visits.ListVisitsByHost(r.Context(), claims.UserID, claims.Name, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	now := time.Now().UTC()
	out := make([]visitSummary, 0, len(visits))
	for _, v := range visits {
		switch lifecycle.Classify(v, now) {
		case model.VisitPending, model.VisitApproved, model.VisitActive:
			out = append(out, renderVisit(v, now))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMyVisits(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	visits, err := s.visits.ListVisitsByVisitor(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, renderVisits(visits, time.Now().UTC()))
}

func (s *Server) handlePreApprovedVisits(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var visits []model.Visit
	var err error
	if claims.Role == model.RoleHost {
		visits, err = s.visits.ListPreApprovedByHost(r.Context(), claims.UserID, claims.Name)
	} else {
		var mine []model.Visit
		mine, err = s.visits.ListVisitsByVisitor(r.Context(), claims.UserID)
		for _, v := range mine {
			if v.Status == model.VisitPreApproved {
				visits = append(visits, v)
			}
		}
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, renderVisits(visits, time.Now().UTC()))
}

func (s *Server) handleDateRange(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	from, err := parseDateParam(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start")
		return
	}
	to, err := parseDateParam(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end")
		return
	}
	if !to.After(from) {
		writeError(w, http.StatusBadRequest, "invalid_range")
		return
	}

	visits, err := s.visits.ListVisitsByDateRange(r.Context(), from, to, claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, renderVisits(visits, time.Now().UTC()))
}

type decisionRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleApproveVisit(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	visitID := chi.URLParam(r, "visitID")

	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	decision, err := model.NormalizeStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}

	visit, notify, err := s.engine.Decide(r.Context(), visitID, decision, claims.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, visitResponse{
		Visit:        renderVisit(visit, time.Now().UTC()),
		Notification: notify,
	})
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	visit, err := s.engine.CheckIn(r.Context(), chi.URLParam(r, "visitID"), claims.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderVisit(visit, time.Now().UTC()))
}

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	visit, err := s.engine.CheckOut(r.Context(), chi.URLParam(r, "visitID"), claims.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderVisit(visit, time.Now().UTC()))
}

type gateCheckInRequest struct {
	VisitID string `json:"visitId"`
	PassID  string `json:"passId"`
}

func (s *Server) handleGateCheckIn(w http.ResponseWriter, r *http.Request) {
	var req gateCheckInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.VisitID == "" || req.PassID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	// With Redis wired, the gate code is one-time: GetDel consumes it and a
	// second scan finds nothing.
	if s.redis != nil {
		stored, err := s.redis.GetDel(r.Context(), gateKey(req.PassID)).Result()
		if errors.Is(err, redis.Nil) || (err == nil && stored != req.VisitID) {
			writeError(w, http.StatusNotFound, "visit_not_found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
	}

	visit, err := s.engine.CheckInWithPass(r.Context(), req.VisitID, req.PassID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderVisit(visit, time.Now().UTC()))
}

type passResponse struct {
	VisitID string `json:"visitId"`
	QRID    string `json:"qrId"`
	QRPass  string `json:"qrPass"`
	Status  string `json:"status"`
}

func (s *Server) handleGetPass(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	visitID := chi.URLParam(r, "visitID")

	visit, err := s.visits.GetVisit(r.Context(), visitID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if !s.canSeePass(r, claims.UserID, visit) {
		writeError(w, http.StatusNotFound, "visit_not_found")
		return
	}
	if visit.QRPass == "" {
		writeError(w, http.StatusNotFound, "pass_not_found")
		return
	}

	writeJSON(w, http.StatusOK, passResponse{
		VisitID: visit.ID,
		QRID:    visit.QRID,
		QRPass:  visit.QRPass,
		Status:  string(lifecycle.Classify(visit, time.Now().UTC())),
	})
}

// canSeePass allows the visit's host and, for registered visitors, the
// visitor the pass was issued to.
func (s *Server) canSeePass(r *http.Request, actorID string, visit model.Visit) bool {
	if visit.VisitorID != "" && visit.VisitorID == actorID {
		return true
	}
	actor, err := s.users.GetUserByID(r.Context(), actorID)
	if err != nil {
		return false
	}
	return lifecycle.Owns(actor, visit)
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	info, rc, err := s.blobs.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, http.StatusNotFound, "upload_not_found")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_key")
		return
	}
	defer rc.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size))
	}
	_, _ = io.Copy(w, rc)
}

func parseOptionalTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	utc := t.UTC()
	return &utc, nil
}

// parseDateParam accepts a date or a full timestamp; bare dates mean
// midnight UTC.
func parseDateParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing value")
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
