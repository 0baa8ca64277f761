package member

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrMemberNotFound = errors.New("member not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, name, email, passwordHash, role string) (*Member, error) {
	query := `
		INSERT INTO members (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, email, password_hash, role, created_at
	`

	var m Member
	err := r.db.GetContext(ctx, &m, query, name, email, passwordHash, role)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*Member, error) {
	query := `
		SELECT id, name, email, password_hash, role, created_at
		FROM members
		WHERE email = $1
	`

	var m Member
	err := r.db.GetContext(ctx, &m, query, email)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

func (r *repository) FindByID(ctx context.Context, id int) (*Member, error) {
	query := `
		SELECT id, name, email, password_hash, role, created_at
		FROM members
		WHERE id = $1
	`

	var m Member
	err := r.db.GetContext(ctx, &m, query, id)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM members WHERE email = $1)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, email)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (r *repository) CreateMembership(ctx context.Context, memberID int, plan PlanType, visitLimit *int, validFrom, validUntil time.Time) (*Membership, error) {
	m := &Membership{}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO memberships (member_id, plan, status, visit_limit, visits_used, valid_from, valid_until)
		VALUES ($1, $2, 'active', $3, 0, $4, $5)
		RETURNING id, member_id, plan, status, visit_limit, visits_used, valid_from, valid_until, created_at, updated_at
	`, memberID, plan, visitLimit, validFrom, validUntil).StructScan(m)

	return m, err
}

func (r *repository) GetActiveMembership(ctx context.Context, memberID int) (*Membership, error) {
	m := &Membership{}
	err := r.db.GetContext(ctx, m, `
		SELECT *
		FROM memberships
		WHERE member_id = $1
		  AND status = 'active'
		  AND valid_from <= NOW()
		  AND valid_until >= NOW()
		ORDER BY
		  visit_limit NULLS FIRST,
		  created_at DESC
		LIMIT 1
	`, memberID)

	return m, err
}

func (r *repository) ListMemberships(ctx context.Context, memberID int) ([]Membership, error) {
	memberships := []Membership{}
	err := r.db.SelectContext(ctx, &memberships, `
		SELECT *
		FROM memberships
		WHERE member_id = $1
		ORDER BY created_at DESC
	`, memberID)

	return memberships, err
}
