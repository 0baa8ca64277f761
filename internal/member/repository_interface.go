package member

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (*Member, error)
	FindByEmail(ctx context.Context, email string) (*Member, error)
	FindByID(ctx context.Context, id int) (*Member, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	CreateMembership(ctx context.Context, memberID int, plan PlanType, visitLimit *int, validFrom, validUntil time.Time) (*Membership, error)
	GetActiveMembership(ctx context.Context, memberID int) (*Membership, error)
	ListMemberships(ctx context.Context, memberID int) ([]Membership, error)
}
