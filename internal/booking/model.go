package booking

import (
	"errors"
	"time"
)

type Status string
type Event string
type CheckInMethod string

const (
	StatusBooked     Status = "booked"
	StatusWaitlisted Status = "waitlisted"
	StatusCheckedIn  Status = "checked_in"
	StatusNoShow     Status = "no_show"
	StatusCancelled  Status = "cancelled"

	EventCheckIn Event = "check_in"
	EventNoShow  Event = "no_show"
	EventCancel  Event = "cancel"
	EventPromote Event = "promote"

	MethodQRScan CheckInMethod = "qr_scan"
	MethodManual CheckInMethod = "manual"
)

var ErrInvalidTransition = errors.New("invalid booking transition")

// transitions is the single source of truth for the booking lifecycle.
// Checked-in, no-show and cancelled are terminal.
var transitions = map[Status]map[Event]Status{
	StatusBooked: {
		EventCheckIn: StatusCheckedIn,
		EventNoShow:  StatusNoShow,
		EventCancel:  StatusCancelled,
	},
	StatusWaitlisted: {
		EventPromote: StatusBooked,
		EventCancel:  StatusCancelled,
	},
}

// Transition returns the target status for (from, event) or
// ErrInvalidTransition when the pair is not legal.
func Transition(from Status, event Event) (Status, error) {
	next, ok := transitions[from][event]
	if !ok {
		return "", ErrInvalidTransition
	}
	return next, nil
}

// eventTarget maps each event to the status it lands in, derived from the
// transitions table so the two cannot drift apart.
var eventTarget = func() map[Event]Status {
	targets := make(map[Event]Status)
	for _, events := range transitions {
		for event, to := range events {
			targets[event] = to
		}
	}
	return targets
}()

// ClassifyMiss resolves a booking whose guarded update matched no row. A row
// already sitting in the event's target status is the same event replayed
// and comes back as-is; anything else is a state conflict.
func ClassifyMiss(b *Booking, event Event) (*Booking, error) {
	if b.Status == eventTarget[event] {
		return b, nil
	}
	return nil, ErrStateConflict
}

// IsTerminal reports whether no event can move the booking further.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// OccupiesSeat reports whether the status counts against booked_count.
// No-shows keep their seat: the member held a planned slot.
func (s Status) OccupiesSeat() bool {
	switch s {
	case StatusBooked, StatusCheckedIn, StatusNoShow:
		return true
	}
	return false
}

type Booking struct {
	ID               int            `db:"id" json:"id"`
	MemberID         int            `db:"member_id" json:"member_id"`
	SessionID        int            `db:"session_id" json:"session_id"`
	MembershipID     *int           `db:"membership_id" json:"membership_id,omitempty"`
	Status           Status         `db:"status" json:"status"`
	WaitlistPosition *int           `db:"waitlist_position" json:"waitlist_position,omitempty"`
	CheckedInAt      *time.Time     `db:"checked_in_at" json:"checked_in_at,omitempty"`
	CheckInMethod    *CheckInMethod `db:"check_in_method" json:"check_in_method,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

type BookingWithSession struct {
	Booking
	SessionName   string    `db:"session_name" json:"session_name"`
	SessionStarts time.Time `db:"session_starts" json:"session_starts"`
	SessionEnds   time.Time `db:"session_ends" json:"session_ends"`
	StudioName    string    `db:"studio_name" json:"studio_name"`
	Instructor    string    `db:"instructor" json:"instructor"`
}

type RosterEntry struct {
	BookingID     int            `db:"booking_id" json:"booking_id"`
	MemberID      int            `db:"member_id" json:"member_id"`
	MemberName    string         `db:"member_name" json:"member_name"`
	MemberEmail   string         `db:"member_email" json:"member_email"`
	Status        Status         `db:"status" json:"status"`
	CheckedInAt   *time.Time     `db:"checked_in_at" json:"checked_in_at,omitempty"`
	CheckInMethod *CheckInMethod `db:"check_in_method" json:"check_in_method,omitempty"`
}

type WaitlistEntry struct {
	BookingID  int       `db:"booking_id" json:"booking_id"`
	MemberID   int       `db:"member_id" json:"member_id"`
	MemberName string    `db:"member_name" json:"member_name"`
	Position   int       `db:"position" json:"position"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Eligibility is the read-only pre-check result. It is advisory: the commit
// path re-validates everything under the session lock.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// CancelResult reports what a cancellation changed, so the caller can fan
// out notifications after commit.
type CancelResult struct {
	Booking        *Booking `json:"booking"`
	CreditRefunded bool     `json:"credit_refunded"`
	Promoted       *Booking `json:"promoted,omitempty"`
}

type CheckInQRRequest struct {
	Token string `json:"token" binding:"required"`
}
