package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/courtbook/courtbook/internal/model"
	"github.com/courtbook/courtbook/internal/repository/base"
)

// BookingRules are the static validation bounds applied before any lock
// is taken.
type BookingRules struct {
	MinDuration time.Duration
	MaxDuration time.Duration
}

// BookingService orchestrates reservation mutations. Each mutation runs
// Validate → Lock → Recheck → Persist → Invalidate: static validation
// fails fast without a lock, the conflict check before the lock is only
// advisory and is always repeated under the lock, and cache invalidation
// is synchronous after commit so the next availability read cannot serve
// a grid that predates the write.
type BookingService struct {
	reservations ReservationStore
	courts       CourtStore
	clubs        ClubStore
	detector     *ConflictDetector
	pricing      *PricingEngine
	guard        *TenantGuard
	locker       CourtLocker
	availability *AvailabilityService
	logger       *zap.Logger
	rules        BookingRules
	now          Clock
}

func NewBookingService(
	reservations ReservationStore,
	courts CourtStore,
	clubs ClubStore,
	detector *ConflictDetector,
	pricing *PricingEngine,
	guard *TenantGuard,
	locker CourtLocker,
	availability *AvailabilityService,
	logger *zap.Logger,
	rules BookingRules,
	now Clock,
) *BookingService {
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		reservations: reservations,
		courts:       courts,
		clubs:        clubs,
		detector:     detector,
		pricing:      pricing,
		guard:        guard,
		locker:       locker,
		availability: availability,
		logger:       logger,
		rules:        rules,
		now:          now,
	}
}

type CreateReservationInput struct {
	OrganizationID int64
	ClubID         int64
	CourtID        int64
	Start          time.Time
	End            time.Time
	PartySize      int
	Metadata       map[string]string
}

// CreateReservation books the court for [Start, End). On success the
// reservation is pending with a fresh one-time check-in code.
func (s *BookingService) CreateReservation(ctx context.Context, input CreateReservationInput) (*model.Reservation, error) {
	start := input.Start.UTC()
	end := input.End.UTC()
	date := dayOf(start)

	club, court, err := s.loadScoped(ctx, input.OrganizationID, input.ClubID, input.CourtID)
	if err != nil {
		return nil, err
	}

	if err := s.validateInterval(club, court, date, start, end); err != nil {
		return nil, err
	}
	if input.PartySize < 1 {
		return nil, validationErrorf("bad_party_size", "party size %d is not positive", input.PartySize)
	}

	price, err := s.pricing.Quote(court, start, end, input.PartySize)
	if err != nil {
		// No fallback price: a failed financial computation aborts the booking.
		return nil, fmt.Errorf("quote price: %w", err)
	}

	unlock, err := s.locker.LockCourt(ctx, court.ID)
	if err != nil {
		return nil, fmt.Errorf("lock court %d: %w", court.ID, ErrCourtBusy)
	}
	defer unlock()

	conflict, err := s.detector.FindConflict(ctx, input.OrganizationID, court.ID, date, start, end, 0)
	if err != nil {
		return nil, s.mapStorageErr(err)
	}
	if conflict != nil {
		return nil, &ConflictError{ReservationID: conflict.ID, Start: conflict.StartTime, End: conflict.EndTime}
	}

	res := &model.Reservation{
		OrganizationID: input.OrganizationID,
		ClubID:         club.ID,
		CourtID:        court.ID,
		Date:           date,
		StartTime:      start,
		EndTime:        end,
		Status:         model.ReservationStatusPending,
		PaymentStatus:  model.PaymentStatusUnpaid,
		PartySize:      input.PartySize,
		TotalPrice:     price,
		CheckInCode:    uuid.NewString(),
		Metadata:       input.Metadata,
	}

	if err := s.reservations.Create(ctx, res); err != nil {
		return nil, s.mapStorageErr(fmt.Errorf("create reservation: %w", err))
	}

	s.availability.Invalidate(club.ID, date)

	s.logger.Info("reservation created",
		zap.Int64("reservation_id", res.ID),
		zap.Int64("org_id", input.OrganizationID),
		zap.Int64("court_id", court.ID),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.String("price", price.String()),
	)

	return res, nil
}

type ModifyReservationInput struct {
	Start     *time.Time
	End       *time.Time
	PartySize *int
}

// apply merges the requested changes over the reservation's current
// values.
func (in ModifyReservationInput) apply(res *model.Reservation) (start, end time.Time, partySize int) {
	start, end, partySize = res.StartTime, res.EndTime, res.PartySize
	if in.Start != nil {
		start = in.Start.UTC()
	}
	if in.End != nil {
		end = in.End.UTC()
	}
	if in.PartySize != nil {
		partySize = *in.PartySize
	}
	return start, end, partySize
}

// ModifyReservation moves or resizes an existing reservation. The
// reservation is re-read under the court lock before anything is
// persisted, so a cancel or other transition that lands while this call
// waits for the lock is never overwritten; the new interval is validated,
// re-priced and checked for conflicts under the same lock, excluding the
// reservation's own id.
func (s *BookingService) ModifyReservation(ctx context.Context, orgID, id int64, changes ModifyReservationInput) (*model.Reservation, error) {
	res, err := s.getOwned(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if res.Status == model.ReservationStatusCancelled || res.Status == model.ReservationStatusCompleted {
		return nil, &StateError{Status: res.Status, Action: "modify"}
	}

	club, court, err := s.loadScoped(ctx, orgID, res.ClubID, res.CourtID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.LockCourt(ctx, court.ID)
	if err != nil {
		return nil, fmt.Errorf("lock court %d: %w", court.ID, ErrCourtBusy)
	}
	defer unlock()

	// The pre-lock read may be stale; everything below works on the row
	// as it is under the lock.
	res, err = s.getOwned(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if res.Status == model.ReservationStatusCancelled || res.Status == model.ReservationStatusCompleted {
		return nil, &StateError{Status: res.Status, Action: "modify"}
	}

	start, end, partySize := changes.apply(res)
	newDate := dayOf(start)

	if err := s.validateInterval(club, court, newDate, start, end); err != nil {
		return nil, err
	}
	if partySize < 1 {
		return nil, validationErrorf("bad_party_size", "party size %d is not positive", partySize)
	}

	price, err := s.pricing.Quote(court, start, end, partySize)
	if err != nil {
		return nil, fmt.Errorf("quote price: %w", err)
	}

	conflict, err := s.detector.FindConflict(ctx, orgID, court.ID, newDate, start, end, res.ID)
	if err != nil {
		return nil, s.mapStorageErr(err)
	}
	if conflict != nil {
		return nil, &ConflictError{ReservationID: conflict.ID, Start: conflict.StartTime, End: conflict.EndTime}
	}

	oldDate := res.Date
	res.Date = newDate
	res.StartTime = start
	res.EndTime = end
	res.PartySize = partySize
	res.TotalPrice = price

	if err := s.reservations.Update(ctx, res, res.Status); err != nil {
		if errors.Is(err, base.ErrStaleUpdate) {
			return nil, s.staleState(ctx, orgID, id, "modify")
		}
		return nil, s.mapStorageErr(fmt.Errorf("update reservation: %w", err))
	}

	s.availability.Invalidate(res.ClubID, oldDate)
	if !newDate.Equal(oldDate) {
		s.availability.Invalidate(res.ClubID, newDate)
	}

	s.logger.Info("reservation modified",
		zap.Int64("reservation_id", res.ID),
		zap.Int64("org_id", orgID),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	return res, nil
}

// CancelReservation cancels the reservation. Cancelling an already
// cancelled reservation is a no-op success so retried client requests
// stay harmless; cancelling a completed one is a state error.
func (s *BookingService) CancelReservation(ctx context.Context, orgID, id int64, reason string) (*model.Reservation, error) {
	res, err := s.getOwned(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if res.Status == model.ReservationStatusCancelled {
		return res, nil
	}
	if !model.CanTransition(res.Status, model.ReservationStatusCancelled) {
		return nil, &StateError{Status: res.Status, Action: "cancel"}
	}

	prev := res.Status
	now := s.now()
	res.Status = model.ReservationStatusCancelled
	res.CancellationReason = &reason
	res.CancelledAt = &now

	if err := s.reservations.Update(ctx, res, prev); err != nil {
		if errors.Is(err, base.ErrStaleUpdate) {
			current, cerr := s.getOwned(ctx, orgID, id)
			if cerr != nil {
				return nil, cerr
			}
			// Losing the race to another cancel keeps this call idempotent.
			if current.Status == model.ReservationStatusCancelled {
				return current, nil
			}
			return nil, &StateError{Status: current.Status, Action: "cancel"}
		}
		return nil, s.mapStorageErr(fmt.Errorf("cancel reservation: %w", err))
	}

	s.availability.Invalidate(res.ClubID, res.Date)

	s.logger.Info("reservation cancelled",
		zap.Int64("reservation_id", res.ID),
		zap.Int64("org_id", orgID),
		zap.String("reason", reason),
	)

	return res, nil
}

// ConfirmPayment handles the payment collaborator's acknowledgement,
// moving pending → confirmed. Re-delivered acknowledgements for an
// already confirmed, paid reservation are no-op successes.
func (s *BookingService) ConfirmPayment(ctx context.Context, orgID, id int64) (*model.Reservation, error) {
	res, err := s.getOwned(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if res.Status == model.ReservationStatusConfirmed && res.PaymentStatus == model.PaymentStatusPaid {
		return res, nil
	}
	if !model.CanTransition(res.Status, model.ReservationStatusConfirmed) {
		return nil, &StateError{Status: res.Status, Action: "confirm"}
	}

	prev := res.Status
	res.Status = model.ReservationStatusConfirmed
	res.PaymentStatus = model.PaymentStatusPaid

	if err := s.reservations.Update(ctx, res, prev); err != nil {
		if errors.Is(err, base.ErrStaleUpdate) {
			current, cerr := s.getOwned(ctx, orgID, id)
			if cerr != nil {
				return nil, cerr
			}
			if current.Status == model.ReservationStatusConfirmed && current.PaymentStatus == model.PaymentStatusPaid {
				return current, nil
			}
			return nil, &StateError{Status: current.Status, Action: "confirm"}
		}
		return nil, s.mapStorageErr(fmt.Errorf("confirm reservation: %w", err))
	}

	s.availability.Invalidate(res.ClubID, res.Date)

	s.logger.Info("reservation confirmed",
		zap.Int64("reservation_id", res.ID),
		zap.Int64("org_id", orgID),
	)

	return res, nil
}

// CheckIn redeems the one-time check-in code of a confirmed reservation.
func (s *BookingService) CheckIn(ctx context.Context, orgID, id int64, code string) (*model.Reservation, error) {
	res, err := s.getOwned(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if res.Status != model.ReservationStatusConfirmed {
		return nil, &StateError{Status: res.Status, Action: "check in"}
	}
	if res.CheckInRedeemed || res.CheckInCode != code {
		return nil, validationErrorf("invalid_check_in_code", "check-in code rejected for reservation %d", id)
	}

	res.Status = model.ReservationStatusCheckedIn
	res.CheckInRedeemed = true

	if err := s.reservations.Update(ctx, res, model.ReservationStatusConfirmed); err != nil {
		if errors.Is(err, base.ErrStaleUpdate) {
			return nil, s.staleState(ctx, orgID, id, "check in")
		}
		return nil, s.mapStorageErr(fmt.Errorf("check in reservation: %w", err))
	}

	s.availability.Invalidate(res.ClubID, res.Date)

	s.logger.Info("reservation checked in",
		zap.Int64("reservation_id", res.ID),
		zap.Int64("org_id", orgID),
	)

	return res, nil
}

// CompleteReservation closes out a reservation after its slot has been
// used.
func (s *BookingService) CompleteReservation(ctx context.Context, orgID, id int64) (*model.Reservation, error) {
	res, err := s.getOwned(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if !model.CanTransition(res.Status, model.ReservationStatusCompleted) {
		return nil, &StateError{Status: res.Status, Action: "complete"}
	}

	prev := res.Status
	res.Status = model.ReservationStatusCompleted

	if err := s.reservations.Update(ctx, res, prev); err != nil {
		if errors.Is(err, base.ErrStaleUpdate) {
			return nil, s.staleState(ctx, orgID, id, "complete")
		}
		return nil, s.mapStorageErr(fmt.Errorf("complete reservation: %w", err))
	}

	s.availability.Invalidate(res.ClubID, res.Date)

	return res, nil
}

// GetReservation returns the reservation when it belongs to the caller's
// organization.
func (s *BookingService) GetReservation(ctx context.Context, orgID, id int64) (*model.Reservation, error) {
	return s.getOwned(ctx, orgID, id)
}

// staleState resolves a guarded update that matched no row into a state
// error carrying the reservation's current status.
func (s *BookingService) staleState(ctx context.Context, orgID, id int64, action string) error {
	current, err := s.getOwned(ctx, orgID, id)
	if err != nil {
		return err
	}
	s.logger.Warn("reservation changed concurrently",
		zap.Int64("reservation_id", id),
		zap.Int64("org_id", orgID),
		zap.String("action", action),
		zap.String("status", string(current.Status)),
	)
	return &StateError{Status: current.Status, Action: action}
}

func (s *BookingService) getOwned(ctx context.Context, orgID, id int64) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, s.mapStorageErr(fmt.Errorf("get reservation: %w", err))
	}
	if res == nil {
		return nil, ErrNotFound
	}
	if err := s.guard.AssertOwned(res.OrganizationID, orgID, "reservation", id); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *BookingService) loadScoped(ctx context.Context, orgID, clubID, courtID int64) (*model.Club, *model.Court, error) {
	club, err := s.clubs.GetByID(ctx, orgID, clubID)
	if err != nil {
		return nil, nil, s.mapStorageErr(fmt.Errorf("get club: %w", err))
	}
	if club == nil {
		return nil, nil, ErrNotFound
	}
	if err := s.guard.AssertOwned(club.OrganizationID, orgID, "club", clubID); err != nil {
		return nil, nil, err
	}

	court, err := s.courts.GetByID(ctx, orgID, courtID)
	if err != nil {
		return nil, nil, s.mapStorageErr(fmt.Errorf("get court: %w", err))
	}
	if court == nil || court.ClubID != clubID {
		return nil, nil, ErrNotFound
	}
	if err := s.guard.AssertOwned(court.OrganizationID, orgID, "court", courtID); err != nil {
		return nil, nil, err
	}

	return club, court, nil
}

// validateInterval runs every static booking rule that needs no lock:
// interval sanity, duration bounds, past-date rejection, court state and
// the effective operating window for the weekday.
func (s *BookingService) validateInterval(club *model.Club, court *model.Court, date, start, end time.Time) error {
	if !end.After(start) {
		return validationErrorf("bad_interval", "end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	if !dayOf(end.Add(-time.Nanosecond)).Equal(date) {
		return validationErrorf("bad_interval", "reservation must not cross midnight")
	}

	duration := end.Sub(start)
	if duration < s.rules.MinDuration || duration > s.rules.MaxDuration {
		return validationErrorf("bad_duration", "duration %s outside allowed range [%s, %s]",
			duration, s.rules.MinDuration, s.rules.MaxDuration)
	}

	now := s.now()
	if date.Before(dayOf(now)) {
		return validationErrorf("past_date", "date %s is in the past", date.Format("2006-01-02"))
	}
	if start.Before(now) {
		return validationErrorf("past_start", "start %s has already elapsed", start.Format(time.RFC3339))
	}

	if !club.IsActive || !court.IsActive {
		return validationErrorf("court_unavailable", "court %d is not open for booking", court.ID)
	}
	if court.InMaintenance {
		return validationErrorf("court_unavailable", "court %d is under maintenance", court.ID)
	}

	window := court.EffectiveHours(club, date.Weekday())
	startMinute := int(start.Sub(date).Minutes())
	endMinute := int(end.Sub(date).Minutes())
	if startMinute < window.OpenMinute || endMinute > window.CloseMinute {
		return validationErrorf("outside_hours", "interval %02d:%02d–%02d:%02d outside operating window %02d:%02d–%02d:%02d",
			startMinute/60, startMinute%60, endMinute/60, endMinute%60,
			window.OpenMinute/60, window.OpenMinute%60, window.CloseMinute/60, window.CloseMinute%60)
	}

	return nil
}

// mapStorageErr converts an exhausted transient storage failure into the
// retryable busy error; everything else passes through unchanged.
func (s *BookingService) mapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, base.ErrUnavailable) {
		return fmt.Errorf("%v: %w", err, ErrCourtBusy)
	}
	return err
}
