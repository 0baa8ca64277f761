package booking

import (
	"context"
	"time"
)

type Repository interface {
	// CreateBooking runs the whole seat reservation as one transaction:
	// lock the session row, re-validate eligibility, consume a membership
	// credit, then either take a seat (booked) or append to the waitlist.
	CreateBooking(ctx context.Context, memberID, sessionID int, cutoff time.Duration) (*Booking, error)

	GetBookingByID(ctx context.Context, id int) (*Booking, error)
	HasActiveBooking(ctx context.Context, memberID, sessionID int) (bool, error)
	FindBookedBySessionAndMember(ctx context.Context, memberID, sessionID int) (*Booking, error)

	// CancelBooking cancels a booked or waitlisted entry, refunds the
	// credit when applicable, and promotes the waitlist head if a seat was
	// freed. All in one transaction; the promoted booking is returned for
	// post-commit notification.
	CancelBooking(ctx context.Context, bookingID int) (*CancelResult, error)

	// CheckIn transitions booked -> checked_in. Calling it on an already
	// checked-in booking returns the existing record unchanged.
	CheckIn(ctx context.Context, bookingID int, method CheckInMethod) (*Booking, error)

	MarkNoShow(ctx context.Context, bookingID int) (*Booking, error)

	// Promote force-promotes a specific waitlisted booking, re-checking
	// capacity under the session lock.
	Promote(ctx context.Context, sessionID, bookingID int) (*Booking, error)

	GetRoster(ctx context.Context, sessionID int) ([]RosterEntry, error)
	GetWaitlist(ctx context.Context, sessionID int) ([]WaitlistEntry, error)
	GetMemberBookings(ctx context.Context, memberID int) ([]BookingWithSession, error)
}
