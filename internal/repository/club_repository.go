package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtbook/courtbook/internal/model"
	"github.com/courtbook/courtbook/internal/repository/base"
)

type ClubRepository struct {
	*base.Repository
	retrier *base.Retrier
}

func NewClubRepository(pool *pgxpool.Pool, retrier *base.Retrier) *ClubRepository {
	return &ClubRepository{Repository: base.NewRepository(pool), retrier: retrier}
}

// Create inserts a new club.
func (r *ClubRepository) Create(ctx context.Context, club *model.Club) error {
	query := `
		INSERT INTO clubs (organization_id, name, open_minute, close_minute, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.retrier.Do(ctx, "create club", func(ctx context.Context) error {
		return r.QueryRow(
			ctx, query,
			club.OrganizationID,
			club.Name,
			club.OpenMinute,
			club.CloseMinute,
			club.IsActive,
		).Scan(&club.ID, &club.CreatedAt, &club.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("create club: %w", err)
	}

	return nil
}

// GetByID fetches a club within the organization scope.
func (r *ClubRepository) GetByID(ctx context.Context, orgID, id int64) (*model.Club, error) {
	query := `
		SELECT id, organization_id, name, open_minute, close_minute, is_active, created_at, updated_at
		FROM clubs
		WHERE id = $1 AND organization_id = $2
	`

	var club model.Club
	err := r.retrier.Do(ctx, "get club by id", func(ctx context.Context) error {
		return r.QueryRow(ctx, query, id, orgID).Scan(
			&club.ID,
			&club.OrganizationID,
			&club.Name,
			&club.OpenMinute,
			&club.CloseMinute,
			&club.IsActive,
			&club.CreatedAt,
			&club.UpdatedAt,
		)
	})
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get club by id: %w", err)
	}

	return &club, nil
}
