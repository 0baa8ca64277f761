package studio

import (
	"errors"
	"time"
)

type Studio struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Location  string    `db:"location" json:"location"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type SessionStatus string

const (
	SessionScheduled  SessionStatus = "scheduled"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
)

var ErrInvalidSessionTransition = errors.New("invalid session status transition")

// sessionTransitions encodes the monotonic session lifecycle. Completed and
// cancelled are terminal.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionScheduled:  {SessionInProgress, SessionCancelled},
	SessionInProgress: {SessionCompleted, SessionCancelled},
}

// CanTransition reports whether a session may move from one status to another.
func CanTransition(from, to SessionStatus) bool {
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ClassSession is a single scheduled class occurrence. BookedCount and
// WaitlistCount are derived aggregates over bookings and are only mutated
// through conditional updates while the session row is locked.
type ClassSession struct {
	ID              int           `db:"id" json:"id"`
	StudioID        int           `db:"studio_id" json:"studio_id"`
	Name            string        `db:"name" json:"name"`
	Instructor      string        `db:"instructor" json:"instructor"`
	StartsAt        time.Time     `db:"starts_at" json:"starts_at"`
	EndsAt          time.Time     `db:"ends_at" json:"ends_at"`
	Capacity        int           `db:"capacity" json:"capacity"`
	BookedCount     int           `db:"booked_count" json:"booked_count"`
	WaitlistCount   int           `db:"waitlist_count" json:"waitlist_count"`
	WaitlistEnabled bool          `db:"waitlist_enabled" json:"waitlist_enabled"`
	Status          SessionStatus `db:"status" json:"status"`
	CancelReason    *string       `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// SpotsLeft returns the number of open seats.
func (s *ClassSession) SpotsLeft() int {
	left := s.Capacity - s.BookedCount
	if left < 0 {
		return 0
	}
	return left
}

type SessionWithAvailability struct {
	ClassSession
	SpotsLeft int  `json:"spots_left"`
	IsFull    bool `json:"is_full"`
}

// CancelledBooking describes a booking swept up by a session cancellation,
// used to fan out notifications after the transaction commits.
type CancelledBooking struct {
	BookingID  int    `db:"id"`
	MemberID   int    `db:"member_id"`
	PrevStatus string `db:"status"`
}

type CreateStudioRequest struct {
	Name     string `json:"name" binding:"required"`
	Location string `json:"location" binding:"required"`
}

type CreateSessionRequest struct {
	Name            string `json:"name" binding:"required"`
	Instructor      string `json:"instructor" binding:"required"`
	StartsAt        string `json:"starts_at" binding:"required"`
	EndsAt          string `json:"ends_at" binding:"required"`
	Capacity        int    `json:"capacity" binding:"required,min=1"`
	WaitlistEnabled *bool  `json:"waitlist_enabled,omitempty"`
}

type CancelSessionRequest struct {
	Reason string `json:"reason" binding:"required"`
}
