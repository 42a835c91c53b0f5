package repository

import (
	"context"
	"time"

	"github.com/Tanishk31/visiting-management/internal/lifecycle"
	"github.com/Tanishk31/visiting-management/internal/model"
)

const visitColumns = `id, COALESCE(host_id, ''), host_name, visitor_id, visitor_name, visitor_email, visitor_contact,
	purpose, company, photo_key, requested_at, check_in, check_out, start_time, end_time, qr_id, qr_pass,
	status, created_at, updated_at`

func (s *Store) CreateVisit(ctx context.Context, v model.Visit) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO visits (id, host_id, host_name, visitor_id, visitor_name, visitor_email, visitor_contact,
			purpose, company, photo_key, requested_at, check_in, check_out, start_time, end_time, qr_id, qr_pass,
			status, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`, v.ID, v.HostID, v.HostName, v.VisitorID, v.VisitorName, v.VisitorEmail, v.VisitorContact,
		v.Purpose, v.Company, v.PhotoKey, v.RequestedAt, v.CheckIn, v.CheckOut, v.StartTime, v.EndTime, v.QRID, v.QRPass,
		v.Status, v.CreatedAt, v.UpdatedAt)
	return err
}

func (s *Store) GetVisit(ctx context.Context, id string) (model.Visit, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE id = $1
	`, id)
	return scanVisit(row)
}

// UpdateVisitStatus transitions a visit only if it still holds the expected
// status. The boolean reports whether a row changed; false means another
// transition got there first.
func (s *Store) UpdateVisitStatus(ctx context.Context, id string, expect model.VisitStatus, update lifecycle.VisitUpdate) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE visits
		SET status = $1,
		    check_in = COALESCE($2, check_in),
		    check_out = COALESCE($3, check_out),
		    updated_at = now()
		WHERE id = $4 AND status = $5
	`, update.Status, update.CheckIn, update.CheckOut, id, expect)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListVisitsByHost(ctx context.Context, hostID, hostName string, status model.VisitStatus) ([]model.Visit, error) {
	query := `
		SELECT ` + visitColumns + `
		FROM visits
		WHERE (host_id = $1 OR (host_id IS NULL AND lower(host_name) = lower($2)))
	`
	args := []any{hostID, hostName}
	if status != "" {
		query += ` AND status = $3`
		args = append(args, status)
	}
	query += ` ORDER BY requested_at DESC`
	return s.queryVisits(ctx, query, args...)
}

func (s *Store) ListVisitsByVisitor(ctx context.Context, visitorID string) ([]model.Visit, error) {
	return s.queryVisits(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE visitor_id = $1
		ORDER BY requested_at DESC
	`, visitorID)
}

func (s *Store) ListPreApprovedByHost(ctx context.Context, hostID, hostName string) ([]model.Visit, error) {
	return s.ListVisitsByHost(ctx, hostID, hostName, model.VisitPreApproved)
}

// ListVisitsByDateRange returns visits whose request date falls inside the
// half-open range [from, to). hostID narrows the report to one host when set.
func (s *Store) ListVisitsByDateRange(ctx context.Context, from, to time.Time, hostID string) ([]model.Visit, error) {
	if hostID != "" {
		return s.queryVisits(ctx, `
			SELECT `+visitColumns+`
			FROM visits
			WHERE requested_at >= $1 AND requested_at < $2 AND host_id = $3
			ORDER BY requested_at DESC
		`, from, to, hostID)
	}
	return s.queryVisits(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE requested_at >= $1 AND requested_at < $2
		ORDER BY requested_at DESC
	`, from, to)
}

func (s *Store) queryVisits(ctx context.Context, query string, args ...any) ([]model.Visit, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []model.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func scanVisit(row rowScanner) (model.Visit, error) {
	var v model.Visit
	err := row.Scan(
		&v.ID,
		&v.HostID,
		&v.HostName,
		&v.VisitorID,
		&v.VisitorName,
		&v.VisitorEmail,
		&v.VisitorContact,
		&v.Purpose,
		&v.Company,
		&v.PhotoKey,
		&v.RequestedAt,
		&v.CheckIn,
		&v.CheckOut,
		&v.StartTime,
		&v.EndTime,
		&v.QRID,
		&v.QRPass,
		&v.Status,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return model.Visit{}, mapErr(err)
	}
	return v, nil
}
