package studio

import (
	"context"
	"time"
)

type Repository interface {
	CreateStudio(ctx context.Context, name, location string) (*Studio, error)
	GetAllStudios(ctx context.Context) ([]Studio, error)
	GetStudioByID(ctx context.Context, id int) (*Studio, error)

	CreateSession(ctx context.Context, studioID int, name, instructor string, startsAt, endsAt time.Time, capacity int, waitlistEnabled bool) (*ClassSession, error)
	GetSessionByID(ctx context.Context, id int) (*ClassSession, error)
	GetSessions(ctx context.Context, studioID int, onlyUpcoming bool) ([]SessionWithAvailability, error)

	// SetSessionStatus applies a monotonic lifecycle transition and fails
	// with ErrInvalidSessionTransition when the current status does not
	// allow it.
	SetSessionStatus(ctx context.Context, sessionID int, from []SessionStatus, to SessionStatus) error

	// CancelSession transitions the session to cancelled and cancels every
	// booked and waitlisted booking in the same transaction, zeroing the
	// session counters. Returns the bookings that were swept.
	CancelSession(ctx context.Context, sessionID int, reason string) ([]CancelledBooking, error)
}
