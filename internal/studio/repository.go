package studio

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateStudio(ctx context.Context, name, location string) (*Studio, error) {
	query := `
		INSERT INTO studios (name, location)
		VALUES ($1, $2)
		RETURNING id, name, location, created_at
	`

	var s Studio
	err := r.db.GetContext(ctx, &s, query, name, location)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *repository) GetAllStudios(ctx context.Context) ([]Studio, error) {
	studios := []Studio{}
	err := r.db.SelectContext(ctx, &studios, `
		SELECT id, name, location, created_at
		FROM studios
		ORDER BY name
	`)
	return studios, err
}

func (r *repository) GetStudioByID(ctx context.Context, id int) (*Studio, error) {
	var s Studio
	err := r.db.GetContext(ctx, &s, `
		SELECT id, name, location, created_at
		FROM studios
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *repository) CreateSession(ctx context.Context, studioID int, name, instructor string, startsAt, endsAt time.Time, capacity int, waitlistEnabled bool) (*ClassSession, error) {
	query := `
		INSERT INTO class_sessions (studio_id, name, instructor, starts_at, ends_at, capacity, waitlist_enabled, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'scheduled')
		RETURNING id, studio_id, name, instructor, starts_at, ends_at, capacity,
		          booked_count, waitlist_count, waitlist_enabled, status, cancel_reason, created_at
	`

	var s ClassSession
	err := r.db.GetContext(ctx, &s, query, studioID, name, instructor, startsAt, endsAt, capacity, waitlistEnabled)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *repository) GetSessionByID(ctx context.Context, id int) (*ClassSession, error) {
	var s ClassSession
	err := r.db.GetContext(ctx, &s, `
		SELECT id, studio_id, name, instructor, starts_at, ends_at, capacity,
		       booked_count, waitlist_count, waitlist_enabled, status, cancel_reason, created_at
		FROM class_sessions
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *repository) GetSessions(ctx context.Context, studioID int, onlyUpcoming bool) ([]SessionWithAvailability, error) {
	query := `
		SELECT id, studio_id, name, instructor, starts_at, ends_at, capacity,
		       booked_count, waitlist_count, waitlist_enabled, status, cancel_reason, created_at
		FROM class_sessions
		WHERE studio_id = $1
	`
	if onlyUpcoming {
		query += ` AND starts_at > NOW() AND status = 'scheduled'`
	}
	query += ` ORDER BY starts_at`

	sessions := []ClassSession{}
	if err := r.db.SelectContext(ctx, &sessions, query, studioID); err != nil {
		return nil, err
	}

	result := make([]SessionWithAvailability, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, SessionWithAvailability{
			ClassSession: s,
			SpotsLeft:    s.SpotsLeft(),
			IsFull:       s.BookedCount >= s.Capacity,
		})
	}

	return result, nil
}

func (r *repository) SetSessionStatus(ctx context.Context, sessionID int, from []SessionStatus, to SessionStatus) error {
	query, args, err := sqlx.In(`
		UPDATE class_sessions
		SET status = ?
		WHERE id = ? AND status IN (?)
	`, to, sessionID, from)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrInvalidSessionTransition
	}

	return nil
}

func (r *repository) CancelSession(ctx context.Context, sessionID int, reason string) ([]CancelledBooking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Lock the session row first; every capacity mutation serializes here.
	var status SessionStatus
	err = tx.QueryRowxContext(ctx, `
		SELECT status FROM class_sessions WHERE id = $1 FOR UPDATE
	`, sessionID).Scan(&status)
	if err != nil {
		return nil, err
	}

	if !CanTransition(status, SessionCancelled) {
		return nil, ErrInvalidSessionTransition
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE class_sessions
		SET status = 'cancelled',
		    cancel_reason = $2,
		    booked_count = 0,
		    waitlist_count = 0
		WHERE id = $1
	`, sessionID, reason)
	if err != nil {
		return nil, err
	}

	// The session row lock above serializes against booking mutations, so
	// reading the affected rows before sweeping them is safe.
	cancelled := []CancelledBooking{}
	err = tx.SelectContext(ctx, &cancelled, `
		SELECT id, member_id, status
		FROM bookings
		WHERE session_id = $1 AND status IN ('booked', 'waitlisted')
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, err
	}

	// Give back the visit each affected booking consumed. Unlimited plans
	// have no visit_limit and nothing to refund.
	_, err = tx.ExecContext(ctx, `
		UPDATE memberships m
		SET visits_used = GREATEST(m.visits_used - 1, 0),
		    updated_at = NOW()
		FROM bookings b
		WHERE b.session_id = $1
		  AND b.status IN ('booked', 'waitlisted')
		  AND b.membership_id = m.id
		  AND m.visit_limit IS NOT NULL
	`, sessionID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
		    updated_at = NOW()
		WHERE session_id = $1 AND status IN ('booked', 'waitlisted')
	`, sessionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return cancelled, nil
}
