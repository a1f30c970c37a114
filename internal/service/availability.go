package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/courtbook/courtbook/internal/model"
)

// AvailabilityService serves per-court slot grids through an advisory,
// tag-invalidated cache. A miss or stale entry can never produce a wrong
// booking: the authoritative conflict check runs again under the court
// lock at write time.
type AvailabilityService struct {
	clubs       ClubStore
	courts      CourtStore
	detector    *ConflictDetector
	cache       GridCache
	guard       *TenantGuard
	logger      *zap.Logger
	slotMinutes int
	now         Clock

	group singleflight.Group
}

func NewAvailabilityService(
	clubs ClubStore,
	courts CourtStore,
	detector *ConflictDetector,
	cache GridCache,
	guard *TenantGuard,
	logger *zap.Logger,
	slotMinutes int,
	now Clock,
) *AvailabilityService {
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		clubs:       clubs,
		courts:      courts,
		detector:    detector,
		cache:       cache,
		guard:       guard,
		logger:      logger,
		slotMinutes: slotMinutes,
		now:         now,
	}
}

// GridKey canonicalizes (club, date, court set) into a cache key. Court
// ids are sorted so equivalent queries in any order share one entry, and
// distinct sets can never collide.
func GridKey(clubID int64, date time.Time, courtIDs []int64) string {
	ids := make([]int64, len(courtIDs))
	copy(ids, courtIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	return fmt.Sprintf("%s|courts:%s", GridTag(clubID, date), strings.Join(parts, ","))
}

// GridTag is the invalidation tag shared by every key for (club, date).
func GridTag(clubID int64, date time.Time) string {
	return fmt.Sprintf("club:%d|date:%s", clubID, date.Format("2006-01-02"))
}

// GetAvailability returns the slot grid for the club and date, restricted
// to courtIDs when given, otherwise covering all of the club's courts.
func (s *AvailabilityService) GetAvailability(ctx context.Context, orgID, clubID int64, date time.Time, courtIDs []int64) (*model.AvailabilityGrid, error) {
	club, err := s.clubs.GetByID(ctx, orgID, clubID)
	if err != nil {
		return nil, fmt.Errorf("get club: %w", err)
	}
	if club == nil {
		return nil, ErrNotFound
	}
	if err := s.guard.AssertOwned(club.OrganizationID, orgID, "club", clubID); err != nil {
		return nil, err
	}

	date = dayOf(date)

	courts, err := s.resolveCourts(ctx, orgID, clubID, courtIDs)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(courts))
	for i, c := range courts {
		ids[i] = c.ID
	}
	key := GridKey(clubID, date, ids)

	if grid, ok := s.cache.Get(key); ok {
		return grid, nil
	}

	// Collapse concurrent rebuilds of the same grid into one computation.
	// The rebuild runs detached from the initiating caller: its
	// cancellation must not fail the other callers sharing the result.
	v, err, shared := s.group.Do(key, func() (any, error) {
		grid, buildErr := s.buildGrid(context.WithoutCancel(ctx), orgID, club, courts, date)
		if buildErr != nil {
			return nil, buildErr
		}
		s.cache.Add(key, GridTag(clubID, date), grid)
		return grid, nil
	})
	if shared {
		s.logger.Debug("availability rebuild shared between callers", zap.String("key", key))
	}
	if err != nil {
		return nil, err
	}

	return v.(*model.AvailabilityGrid), nil
}

// Invalidate evicts every cached grid touching (club, date), regardless of
// which court subset it was keyed on.
func (s *AvailabilityService) Invalidate(clubID int64, date time.Time) {
	s.cache.InvalidateTag(GridTag(clubID, dayOf(date)))
}

func (s *AvailabilityService) resolveCourts(ctx context.Context, orgID, clubID int64, courtIDs []int64) ([]*model.Court, error) {
	if len(courtIDs) == 0 {
		courts, err := s.courts.ListByClub(ctx, orgID, clubID)
		if err != nil {
			return nil, fmt.Errorf("list courts: %w", err)
		}
		return courts, nil
	}

	courts := make([]*model.Court, 0, len(courtIDs))
	for _, id := range courtIDs {
		court, err := s.courts.GetByID(ctx, orgID, id)
		if err != nil {
			return nil, fmt.Errorf("get court: %w", err)
		}
		if court == nil || court.ClubID != clubID {
			return nil, ErrNotFound
		}
		if err := s.guard.AssertOwned(court.OrganizationID, orgID, "court", id); err != nil {
			return nil, err
		}
		courts = append(courts, court)
	}
	return courts, nil
}

func (s *AvailabilityService) buildGrid(ctx context.Context, orgID int64, club *model.Club, courts []*model.Court, date time.Time) (*model.AvailabilityGrid, error) {
	now := s.now()
	grid := &model.AvailabilityGrid{
		ClubID:     club.ID,
		Date:       date,
		Slots:      make(map[int64][]model.Slot, len(courts)),
		ComputedAt: now,
	}

	for _, court := range courts {
		reservations, err := s.detector.reservations.ListActiveForCourtDate(ctx, orgID, court.ID, date)
		if err != nil {
			return nil, fmt.Errorf("list reservations for court %d: %w", court.ID, err)
		}
		grid.Slots[court.ID] = s.buildCourtSlots(club, court, date, reservations, now)
	}

	return grid, nil
}

func (s *AvailabilityService) buildCourtSlots(club *model.Club, court *model.Court, date time.Time, reservations []*model.Reservation, now time.Time) []model.Slot {
	window := court.EffectiveHours(club, date.Weekday())

	var slots []model.Slot
	for m := window.OpenMinute; m+s.slotMinutes <= window.CloseMinute; m += s.slotMinutes {
		start := date.Add(time.Duration(m) * time.Minute)
		end := start.Add(time.Duration(s.slotMinutes) * time.Minute)

		reason := model.SlotAvailable
		switch {
		case start.Before(now):
			reason = model.SlotPast
		case court.InMaintenance:
			reason = model.SlotMaintenance
		case !court.IsActive || !club.IsActive:
			reason = model.SlotClosed
		default:
			for _, res := range reservations {
				if res.Overlaps(start, end) {
					reason = model.SlotReserved
					break
				}
			}
		}

		slots = append(slots, model.Slot{
			Start:     start,
			End:       end,
			Available: reason == model.SlotAvailable,
			Reason:    reason,
		})
	}

	return slots
}

// dayOf truncates an instant to midnight UTC of its calendar day.
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
