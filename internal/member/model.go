package member

import "time"

type Member struct {
	ID           int       `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type PlanType string
type MembershipStatus string

const (
	PlanClassPack    PlanType = "class_pack"
	PlanStandard     PlanType = "standard"
	PlanUnlimitedPro PlanType = "unlimited_pro"

	MembershipActive    MembershipStatus = "active"
	MembershipExpired   MembershipStatus = "expired"
	MembershipCancelled MembershipStatus = "cancelled"
)

// Membership grants class booking credits. A nil VisitLimit means
// unlimited access for the validity window.
type Membership struct {
	ID         int              `db:"id" json:"id"`
	MemberID   int              `db:"member_id" json:"member_id"`
	Plan       PlanType         `db:"plan" json:"plan"`
	Status     MembershipStatus `db:"status" json:"status"`
	VisitLimit *int             `db:"visit_limit" json:"visit_limit,omitempty"`
	VisitsUsed int              `db:"visits_used" json:"visits_used"`
	ValidFrom  time.Time        `db:"valid_from" json:"valid_from"`
	ValidUntil time.Time        `db:"valid_until" json:"valid_until"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// HasCredits reports whether the membership still has bookable visits.
func (m *Membership) HasCredits() bool {
	if m.VisitLimit == nil {
		return true
	}
	return m.VisitsUsed < *m.VisitLimit
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Member       Member `json:"member"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type PurchaseMembershipRequest struct {
	Plan string `json:"plan" binding:"required"`
}
