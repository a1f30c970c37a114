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

type ReservationRepository struct {
	*base.Repository
	retrier *base.Retrier
}

func NewReservationRepository(pool *pgxpool.Pool, retrier *base.Retrier) *ReservationRepository {
	return &ReservationRepository{Repository: base.NewRepository(pool), retrier: retrier}
}

// Create inserts a new reservation. Transient failures are retried by the
// configured policy; SQL errors are not.
func (r *ReservationRepository) Create(ctx context.Context, res *model.Reservation) error {
	metadata, err := marshalMetadata(res.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO reservations (
			organization_id, club_id, court_id, date, start_time, end_time,
			status, payment_status, party_size, total_price, check_in_code, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	return r.retrier.Do(ctx, "create reservation", func(ctx context.Context) error {
		return r.QueryRow(
			ctx, query,
			res.OrganizationID,
			res.ClubID,
			res.CourtID,
			res.Date,
			res.StartTime,
			res.EndTime,
			res.Status,
			res.PaymentStatus,
			res.PartySize,
			res.TotalPrice.String(),
			res.CheckInCode,
			metadata,
		).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	})
}

// GetByID fetches a reservation within the organization scope.
func (r *ReservationRepository) GetByID(ctx context.Context, orgID, id int64) (*model.Reservation, error) {
	query := reservationSelect + ` WHERE id = $1 AND organization_id = $2`

	var res *model.Reservation
	err := r.retrier.Do(ctx, "get reservation by id", func(ctx context.Context) error {
		found, err := scanReservation(r.QueryRow(ctx, query, id, orgID))
		if err != nil {
			return err
		}
		res = found
		return nil
	})
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation by id: %w", err)
	}

	return res, nil
}

// ListActiveForCourtDate returns active reservations for (court, date)
// ordered by creation: the earliest booking wins conflict ties.
func (r *ReservationRepository) ListActiveForCourtDate(ctx context.Context, orgID, courtID int64, date time.Time) ([]*model.Reservation, error) {
	query := reservationSelect + `
		WHERE organization_id = $1
		  AND court_id = $2
		  AND date = $3
		  AND status IN ('pending', 'confirmed', 'checked_in')
		ORDER BY created_at ASC, id ASC`

	var reservations []*model.Reservation
	err := r.retrier.Do(ctx, "list active reservations", func(ctx context.Context) error {
		rows, err := r.Query(ctx, query, orgID, courtID, date)
		if err != nil {
			return err
		}
		defer rows.Close()

		var out []*model.Reservation
		for rows.Next() {
			res, err := scanReservation(rows)
			if err != nil {
				return fmt.Errorf("scan reservation: %w", err)
			}
			out = append(out, res)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		reservations = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list active reservations: %w", err)
	}

	return reservations, nil
}

// Update persists every mutable field of the reservation, guarded on the
// status the caller read: a concurrent transition makes the update match
// no row and surfaces as ErrStaleUpdate instead of silently rolling the
// status back.
func (r *ReservationRepository) Update(ctx context.Context, res *model.Reservation, from model.ReservationStatus) error {
	metadata, err := marshalMetadata(res.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		UPDATE reservations
		SET date = $1, start_time = $2, end_time = $3, status = $4,
		    payment_status = $5, party_size = $6, total_price = $7,
		    check_in_redeemed = $8, cancellation_reason = $9, cancelled_at = $10,
		    metadata = $11, updated_at = now()
		WHERE id = $12 AND organization_id = $13 AND status = $14
	`

	return r.retrier.Do(ctx, "update reservation", func(ctx context.Context) error {
		affected, err := r.ExecAffected(
			ctx, query,
			res.Date,
			res.StartTime,
			res.EndTime,
			res.Status,
			res.PaymentStatus,
			res.PartySize,
			res.TotalPrice.String(),
			res.CheckInRedeemed,
			res.CancellationReason,
			res.CancelledAt,
			metadata,
			res.ID,
			res.OrganizationID,
			from,
		)
		if err != nil {
			return err
		}
		if affected == 0 {
			return base.ErrStaleUpdate
		}
		return nil
	})
}

const reservationSelect = `
	SELECT id, organization_id, club_id, court_id, date, start_time, end_time,
	       status, payment_status, party_size, total_price::text, check_in_code,
	       check_in_redeemed, cancellation_reason, cancelled_at, metadata,
	       created_at, updated_at
	FROM reservations`

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res      model.Reservation
		price    string
		metadata []byte
	)

	err := row.Scan(
		&res.ID,
		&res.OrganizationID,
		&res.ClubID,
		&res.CourtID,
		&res.Date,
		&res.StartTime,
		&res.EndTime,
		&res.Status,
		&res.PaymentStatus,
		&res.PartySize,
		&price,
		&res.CheckInCode,
		&res.CheckInRedeemed,
		&res.CancellationReason,
		&res.CancelledAt,
		&metadata,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	res.TotalPrice, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse total price: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &res.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &res, nil
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	return json.Marshal(metadata)
}
