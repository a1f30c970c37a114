package app

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/courtbook/courtbook/internal/cache"
	"github.com/courtbook/courtbook/internal/config"
	"github.com/courtbook/courtbook/internal/repository"
	"github.com/courtbook/courtbook/internal/repository/base"
	"github.com/courtbook/courtbook/internal/service"
)

// Core bundles the wired booking services for embedding callers
// (controllers, schedulers) that live outside this module.
type Core struct {
	Clubs        *repository.ClubRepository
	Courts       *repository.CourtRepository
	Reservations *repository.ReservationRepository
	Booking      *service.BookingService
	Availability *service.AvailabilityService
	Cache        *cache.AvailabilityCache
}

// BuildCore wires repositories, pricing, locking and caching from config.
func BuildCore(cfg *config.Config, logger *zap.Logger, pool *pgxpool.Pool) *Core {
	retrier := base.NewRetrier(cfg.RetryAttempts, cfg.RetryBase)
	clubRepo := repository.NewClubRepository(pool, retrier)
	courtRepo := repository.NewCourtRepository(pool, retrier)
	reservationRepo := repository.NewReservationRepository(pool, retrier)
	locker := repository.NewCourtLocker(pool, cfg.LockWait)

	guard := service.NewTenantGuard(logger)
	detector := service.NewConflictDetector(reservationRepo)
	pricing := service.NewPricingEngine(service.PricingConfig{
		PeakStartMinute:  cfg.PeakStartMinute,
		PeakEndMinute:    cfg.PeakEndMinute,
		PeakSurcharge:    decimal.NewFromFloat(cfg.PeakSurcharge),
		WeekendSurcharge: decimal.NewFromFloat(cfg.WeekendSurcharge),
		WeekendDays:      service.DefaultWeekendDays(),
		PartyBaseline:    cfg.PartyBaseline,
		ExtraGuestFee:    decimal.RequireFromString(cfg.ExtraGuestFee),
	})

	gridCache := cache.New(cfg.CacheEntries, cfg.CacheTTL)
	availability := service.NewAvailabilityService(
		clubRepo, courtRepo, detector, gridCache, guard, logger, cfg.SlotMinutes, nil,
	)

	booking := service.NewBookingService(
		reservationRepo, courtRepo, clubRepo,
		detector, pricing, guard, locker, availability, logger,
		service.BookingRules{
			MinDuration: time.Duration(cfg.MinDurationMinutes) * time.Minute,
			MaxDuration: time.Duration(cfg.MaxDurationMinutes) * time.Minute,
		},
		nil,
	)

	return &Core{
		Clubs:        clubRepo,
		Courts:       courtRepo,
		Reservations: reservationRepo,
		Booking:      booking,
		Availability: availability,
		Cache:        gridCache,
	}
}
