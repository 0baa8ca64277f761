package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrSessionNotFound    = errors.New("class session not found")
	ErrAlreadyBooked      = errors.New("member already has an active booking for this session")
	ErrSessionClosed      = errors.New("session is closed for booking")
	ErrNoValidMembership  = errors.New("no valid membership")
	ErrNoCreditsRemaining = errors.New("no credits remaining")
	ErrSessionFull        = errors.New("session is full and has no waitlist")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrStateConflict      = errors.New("booking is not in a state that allows this operation")
)

const uniqueViolation = "23505"

type sessionRow struct {
	Capacity        int       `db:"capacity"`
	BookedCount     int       `db:"booked_count"`
	WaitlistCount   int       `db:"waitlist_count"`
	WaitlistEnabled bool      `db:"waitlist_enabled"`
	Status          string    `db:"status"`
	StartsAt        time.Time `db:"starts_at"`
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// lockSession takes the row lock that serializes all capacity mutations for
// one session. Operations on other sessions proceed unhindered.
func lockSession(ctx context.Context, tx *sqlx.Tx, sessionID int) (*sessionRow, error) {
	var s sessionRow
	err := tx.QueryRowxContext(ctx, `
		SELECT capacity, booked_count, waitlist_count, waitlist_enabled, status, starts_at
		FROM class_sessions
		WHERE id = $1
		FOR UPDATE
	`, sessionID).StructScan(&s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *repository) CreateBooking(ctx context.Context, memberID, sessionID int, cutoff time.Duration) (*Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sess, err := lockSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}

	// Everything below re-validates eligibility under the lock: the
	// read-only pre-check may have gone stale by the time we get here.
	if sess.Status != "scheduled" || !sess.StartsAt.After(time.Now().Add(cutoff)) {
		return nil, ErrSessionClosed
	}

	var exists bool
	err = tx.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE member_id = $1 AND session_id = $2 AND status <> 'cancelled'
		)
	`, memberID, sessionID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyBooked
	}

	var membership struct {
		ID         int  `db:"id"`
		VisitLimit *int `db:"visit_limit"`
	}
	err = tx.QueryRowxContext(ctx, `
		SELECT id, visit_limit
		FROM memberships
		WHERE member_id = $1
		  AND status = 'active'
		  AND valid_from <= NOW()
		  AND valid_until >= NOW()
		ORDER BY visit_limit NULLS FIRST, created_at DESC
		LIMIT 1
		FOR UPDATE
	`, memberID).StructScan(&membership)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoValidMembership
		}
		return nil, err
	}

	if membership.VisitLimit != nil {
		result, err := tx.ExecContext(ctx, `
			UPDATE memberships
			SET visits_used = visits_used + 1,
			    updated_at = NOW()
			WHERE id = $1 AND visits_used < visit_limit
		`, membership.ID)
		if err != nil {
			return nil, err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			return nil, ErrNoCreditsRemaining
		}
	}

	// Seat decision and counter bump are one conditional update; whoever
	// wins the row lock decides booked vs waitlisted.
	result, err := tx.ExecContext(ctx, `
		UPDATE class_sessions
		SET booked_count = booked_count + 1
		WHERE id = $1 AND booked_count < capacity
	`, sessionID)
	if err != nil {
		return nil, err
	}
	seatTaken, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	var b Booking
	if seatTaken == 1 {
		err = tx.GetContext(ctx, &b, `
			INSERT INTO bookings (member_id, session_id, membership_id, status)
			VALUES ($1, $2, $3, 'booked')
			RETURNING id, member_id, session_id, membership_id, status,
			          waitlist_position, checked_in_at, check_in_method, created_at
		`, memberID, sessionID, membership.ID)
	} else {
		if !sess.WaitlistEnabled {
			return nil, ErrSessionFull
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE class_sessions
			SET waitlist_count = waitlist_count + 1
			WHERE id = $1
		`, sessionID)
		if err != nil {
			return nil, err
		}

		err = tx.GetContext(ctx, &b, `
			INSERT INTO bookings (member_id, session_id, membership_id, status, waitlist_position)
			VALUES ($1, $2, $3, 'waitlisted',
				(SELECT COALESCE(MAX(waitlist_position), 0) + 1
				 FROM bookings
				 WHERE session_id = $2 AND status = 'waitlisted'))
			RETURNING id, member_id, session_id, membership_id, status,
			          waitlist_position, checked_in_at, check_in_method, created_at
		`, memberID, sessionID, membership.ID)
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, ErrAlreadyBooked
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &b, nil
}

func (r *repository) GetBookingByID(ctx context.Context, id int) (*Booking, error) {
	var b Booking
	err := r.db.GetContext(ctx, &b, `
		SELECT id, member_id, session_id, membership_id, status,
		       waitlist_position, checked_in_at, check_in_method, created_at
		FROM bookings
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

func (r *repository) HasActiveBooking(ctx context.Context, memberID, sessionID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE member_id = $1 AND session_id = $2 AND status <> 'cancelled'
		)
	`, memberID, sessionID)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (r *repository) FindBookedBySessionAndMember(ctx context.Context, memberID, sessionID int) (*Booking, error) {
	var b Booking
	err := r.db.GetContext(ctx, &b, `
		SELECT id, member_id, session_id, membership_id, status,
		       waitlist_position, checked_in_at, check_in_method, created_at
		FROM bookings
		WHERE member_id = $1 AND session_id = $2 AND status IN ('booked', 'checked_in')
	`, memberID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

func (r *repository) CancelBooking(ctx context.Context, bookingID int) (*CancelResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var b Booking
	err = tx.GetContext(ctx, &b, `
		SELECT id, member_id, session_id, membership_id, status,
		       waitlist_position, checked_in_at, check_in_method, created_at
		FROM bookings
		WHERE id = $1
	`, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	sess, err := lockSession(ctx, tx, b.SessionID)
	if err != nil {
		return nil, err
	}

	// Re-read under the lock; a concurrent check-in or promotion may have
	// moved the booking since the first read.
	err = tx.GetContext(ctx, &b, `
		SELECT id, member_id, session_id, membership_id, status,
		       waitlist_position, checked_in_at, check_in_method, created_at
		FROM bookings
		WHERE id = $1
	`, bookingID)
	if err != nil {
		return nil, err
	}

	// The lifecycle table rejects illegal cancels (terminal rows, double
	// cancels) before any bookkeeping runs.
	if _, err := Transition(b.Status, EventCancel); err != nil {
		return nil, ErrStateConflict
	}

	result := &CancelResult{}

	switch b.Status {
	case StatusBooked:
		if err := cancelRow(ctx, tx, bookingID, StatusBooked); err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE class_sessions
			SET booked_count = booked_count - 1
			WHERE id = $1 AND booked_count > 0
		`, b.SessionID)
		if err != nil {
			return nil, err
		}

		promoted, err := promoteHead(ctx, tx, b.SessionID)
		if err != nil {
			return nil, err
		}
		result.Promoted = promoted

	case StatusWaitlisted:
		if err := cancelRow(ctx, tx, bookingID, StatusWaitlisted); err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE class_sessions
			SET waitlist_count = waitlist_count - 1
			WHERE id = $1 AND waitlist_count > 0
		`, b.SessionID)
		if err != nil {
			return nil, err
		}

		if b.WaitlistPosition != nil {
			if err := compactWaitlist(ctx, tx, b.SessionID, *b.WaitlistPosition); err != nil {
				return nil, err
			}
		}

	default:
		return nil, ErrStateConflict
	}

	// Return the consumed credit while the session has not happened yet.
	if b.MembershipID != nil && sess.Status == "scheduled" {
		res, err := tx.ExecContext(ctx, `
			UPDATE memberships
			SET visits_used = visits_used - 1,
			    updated_at = NOW()
			WHERE id = $1 AND visit_limit IS NOT NULL AND visits_used > 0
		`, *b.MembershipID)
		if err != nil {
			return nil, err
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 1 {
			result.CreditRefunded = true
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	b.Status = StatusCancelled
	b.WaitlistPosition = nil
	result.Booking = &b

	return result, nil
}

// cancelRow flips one booking along the cancel transition, guarded by its
// expected current status so concurrent winners surface as a state conflict.
func cancelRow(ctx context.Context, tx *sqlx.Tx, bookingID int, from Status) error {
	next, err := Transition(from, EventCancel)
	if err != nil {
		return ErrStateConflict
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = $3, waitlist_position = NULL
		WHERE id = $1 AND status = $2
	`, bookingID, from, next)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrStateConflict
	}

	return nil
}

// promoteHead moves the lowest-positioned waitlisted booking into the freed
// seat. Runs with the session row already locked; the conditional update on
// booked_count re-checks capacity so concurrent promotions can never
// overshoot.
func promoteHead(ctx context.Context, tx *sqlx.Tx, sessionID int) (*Booking, error) {
	var head Booking
	err := tx.GetContext(ctx, &head, `
		SELECT id, member_id, session_id, membership_id, status,
		       waitlist_position, checked_in_at, check_in_method, created_at
		FROM bookings
		WHERE session_id = $1 AND status = 'waitlisted'
		ORDER BY waitlist_position
		LIMIT 1
	`, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE class_sessions
		SET booked_count = booked_count + 1,
		    waitlist_count = waitlist_count - 1
		WHERE id = $1 AND booked_count < capacity AND waitlist_count > 0
	`, sessionID)
	if err != nil {
		return nil, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, nil
	}

	promotedPos := 0
	if head.WaitlistPosition != nil {
		promotedPos = *head.WaitlistPosition
	}

	next, err := Transition(head.Status, EventPromote)
	if err != nil {
		return nil, ErrStateConflict
	}

	err = tx.GetContext(ctx, &head, `
		UPDATE bookings
		SET status = $2, waitlist_position = NULL
		WHERE id = $1 AND status = 'waitlisted'
		RETURNING id, member_id, session_id, membership_id, status,
		          waitlist_position, checked_in_at, check_in_method, created_at
	`, head.ID, next)
	if err != nil {
		return nil, err
	}

	if err := compactWaitlist(ctx, tx, sessionID, promotedPos); err != nil {
		return nil, err
	}

	return &head, nil
}

// compactWaitlist renumbers everyone behind a vacated position so displayed
// positions stay dense. Ordering correctness never depends on this.
func compactWaitlist(ctx context.Context, tx *sqlx.Tx, sessionID, vacatedPosition int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET waitlist_position = waitlist_position - 1
		WHERE session_id = $1 AND status = 'waitlisted' AND waitlist_position > $2
	`, sessionID, vacatedPosition)
	return err
}

func (r *repository) CheckIn(ctx context.Context, bookingID int, method CheckInMethod) (*Booking, error) {
	next, err := Transition(StatusBooked, EventCheckIn)
	if err != nil {
		return nil, err
	}

	var b Booking
	err = r.db.GetContext(ctx, &b, `
		UPDATE bookings
		SET status = $3, checked_in_at = NOW(), check_in_method = $2
		WHERE id = $1 AND status = 'booked'
		RETURNING id, member_id, session_id, membership_id, status,
		          waitlist_position, checked_in_at, check_in_method, created_at
	`, bookingID, method, next)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// The guard did not match; the lifecycle table decides whether the
	// re-read row is the same scan replayed or a real conflict.
	existing, err := r.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	return ClassifyMiss(existing, EventCheckIn)
}

func (r *repository) MarkNoShow(ctx context.Context, bookingID int) (*Booking, error) {
	next, err := Transition(StatusBooked, EventNoShow)
	if err != nil {
		return nil, err
	}

	var b Booking
	err = r.db.GetContext(ctx, &b, `
		UPDATE bookings
		SET status = $2
		WHERE id = $1 AND status = 'booked'
		RETURNING id, member_id, session_id, membership_id, status,
		          waitlist_position, checked_in_at, check_in_method, created_at
	`, bookingID, next)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	existing, err := r.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	return ClassifyMiss(existing, EventNoShow)
}

func (r *repository) Promote(ctx context.Context, sessionID, bookingID int) (*Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := lockSession(ctx, tx, sessionID); err != nil {
		return nil, err
	}

	var b Booking
	err = tx.GetContext(ctx, &b, `
		SELECT id, member_id, session_id, membership_id, status,
		       waitlist_position, checked_in_at, check_in_method, created_at
		FROM bookings
		WHERE id = $1 AND session_id = $2
	`, bookingID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	next, err := Transition(b.Status, EventPromote)
	if err != nil {
		return nil, ErrStateConflict
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE class_sessions
		SET booked_count = booked_count + 1,
		    waitlist_count = waitlist_count - 1
		WHERE id = $1 AND booked_count < capacity AND waitlist_count > 0
	`, sessionID)
	if err != nil {
		return nil, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrSessionFull
	}

	vacated := 0
	if b.WaitlistPosition != nil {
		vacated = *b.WaitlistPosition
	}

	err = tx.GetContext(ctx, &b, `
		UPDATE bookings
		SET status = $2, waitlist_position = NULL
		WHERE id = $1 AND status = 'waitlisted'
		RETURNING id, member_id, session_id, membership_id, status,
		          waitlist_position, checked_in_at, check_in_method, created_at
	`, bookingID, next)
	if err != nil {
		return nil, err
	}

	if err := compactWaitlist(ctx, tx, sessionID, vacated); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &b, nil
}

func (r *repository) GetRoster(ctx context.Context, sessionID int) ([]RosterEntry, error) {
	roster := []RosterEntry{}
	err := r.db.SelectContext(ctx, &roster, `
		SELECT
			b.id AS booking_id,
			b.member_id,
			m.name AS member_name,
			m.email AS member_email,
			b.status,
			b.checked_in_at,
			b.check_in_method
		FROM bookings b
		JOIN members m ON b.member_id = m.id
		WHERE b.session_id = $1 AND b.status IN ('booked', 'checked_in', 'no_show')
		ORDER BY b.created_at
	`, sessionID)
	if err != nil {
		return nil, err
	}

	return roster, nil
}

func (r *repository) GetWaitlist(ctx context.Context, sessionID int) ([]WaitlistEntry, error) {
	waitlist := []WaitlistEntry{}
	err := r.db.SelectContext(ctx, &waitlist, `
		SELECT
			b.id AS booking_id,
			b.member_id,
			m.name AS member_name,
			b.waitlist_position AS position,
			b.created_at
		FROM bookings b
		JOIN members m ON b.member_id = m.id
		WHERE b.session_id = $1 AND b.status = 'waitlisted'
		ORDER BY b.waitlist_position
	`, sessionID)
	if err != nil {
		return nil, err
	}

	return waitlist, nil
}

func (r *repository) GetMemberBookings(ctx context.Context, memberID int) ([]BookingWithSession, error) {
	bookings := []BookingWithSession{}
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT
			b.id,
			b.member_id,
			b.session_id,
			b.membership_id,
			b.status,
			b.waitlist_position,
			b.checked_in_at,
			b.check_in_method,
			b.created_at,
			cs.name AS session_name,
			cs.starts_at AS session_starts,
			cs.ends_at AS session_ends,
			cs.instructor,
			s.name AS studio_name
		FROM bookings b
		JOIN class_sessions cs ON b.session_id = cs.id
		JOIN studios s ON cs.studio_id = s.id
		WHERE b.member_id = $1
		ORDER BY cs.starts_at DESC, b.created_at DESC
	`, memberID)
	if err != nil {
		return nil, err
	}

	return bookings, nil
}
