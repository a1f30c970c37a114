package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/courtbook/courtbook/internal/model"
	"github.com/courtbook/courtbook/internal/repository/base"
)

type CourtRepository struct {
	*base.Repository
	retrier *base.Retrier
}

func NewCourtRepository(pool *pgxpool.Pool, retrier *base.Retrier) *CourtRepository {
	return &CourtRepository{Repository: base.NewRepository(pool), retrier: retrier}
}

// Create inserts a new court.
func (r *CourtRepository) Create(ctx context.Context, court *model.Court) error {
	override, err := marshalOverride(court.HoursOverride)
	if err != nil {
		return fmt.Errorf("marshal hours override: %w", err)
	}

	query := `
		INSERT INTO courts (club_id, organization_id, name, surface, hourly_rate, is_active, in_maintenance, hours_override)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err = r.retrier.Do(ctx, "create court", func(ctx context.Context) error {
		return r.QueryRow(
			ctx, query,
			court.ClubID,
			court.OrganizationID,
			court.Name,
			court.Surface,
			court.HourlyRate.String(),
			court.IsActive,
			court.InMaintenance,
			override,
		).Scan(&court.ID, &court.CreatedAt, &court.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("create court: %w", err)
	}

	return nil
}

// GetByID fetches a court within the organization scope.
func (r *CourtRepository) GetByID(ctx context.Context, orgID, id int64) (*model.Court, error) {
	query := courtSelect + ` WHERE id = $1 AND organization_id = $2`

	var court *model.Court
	err := r.retrier.Do(ctx, "get court by id", func(ctx context.Context) error {
		found, err := scanCourt(r.QueryRow(ctx, query, id, orgID))
		if err != nil {
			return err
		}
		court = found
		return nil
	})
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get court by id: %w", err)
	}

	return court, nil
}

// ListByClub fetches the club's courts within the organization scope,
// ordered by id so multi-court lock acquisition stays deadlock-free.
func (r *CourtRepository) ListByClub(ctx context.Context, orgID, clubID int64) ([]*model.Court, error) {
	query := courtSelect + ` WHERE club_id = $1 AND organization_id = $2 ORDER BY id`

	var courts []*model.Court
	err := r.retrier.Do(ctx, "list courts by club", func(ctx context.Context) error {
		rows, err := r.Query(ctx, query, clubID, orgID)
		if err != nil {
			return err
		}
		defer rows.Close()

		var out []*model.Court
		for rows.Next() {
			court, err := scanCourt(rows)
			if err != nil {
				return fmt.Errorf("scan court: %w", err)
			}
			out = append(out, court)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		courts = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list courts by club: %w", err)
	}

	return courts, nil
}

// SetMaintenance flips the maintenance flag.
func (r *CourtRepository) SetMaintenance(ctx context.Context, orgID, id int64, inMaintenance bool) error {
	query := `
		UPDATE courts
		SET in_maintenance = $1, updated_at = now()
		WHERE id = $2 AND organization_id = $3
	`

	err := r.retrier.Do(ctx, "set court maintenance", func(ctx context.Context) error {
		affected, err := r.ExecAffected(ctx, query, inMaintenance, id, orgID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("court not found")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set court maintenance: %w", err)
	}

	return nil
}

const courtSelect = `
	SELECT id, club_id, organization_id, name, surface, hourly_rate::text, is_active, in_maintenance, hours_override, created_at, updated_at
	FROM courts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourt(row rowScanner) (*model.Court, error) {
	var (
		court    model.Court
		rate     string
		override []byte
	)

	err := row.Scan(
		&court.ID,
		&court.ClubID,
		&court.OrganizationID,
		&court.Name,
		&court.Surface,
		&rate,
		&court.IsActive,
		&court.InMaintenance,
		&override,
		&court.CreatedAt,
		&court.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	court.HourlyRate, err = decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("parse hourly rate: %w", err)
	}

	if len(override) > 0 {
		if err := json.Unmarshal(override, &court.HoursOverride); err != nil {
			return nil, fmt.Errorf("unmarshal hours override: %w", err)
		}
	}

	return &court, nil
}

func marshalOverride(override map[time.Weekday]model.HoursWindow) ([]byte, error) {
	if len(override) == 0 {
		return nil, nil
	}
	return json.Marshal(override)
}
