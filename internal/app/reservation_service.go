package app

import (
	"context"

	"github.com/cimillas/stockledger/internal/clock"
	"github.com/cimillas/stockledger/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

type ReservationService struct {
	store ConditionalStore
	clock clock.Clock
	deps
}

func NewReservationService(store ConditionalStore, clk clock.Clock, opts ...Option) *ReservationService {
	svc := &ReservationService{
		store: store,
		clock: clk,
		deps:  defaultDeps(),
	}
	for _, opt := range opts {
		opt(&svc.deps)
	}
	return svc
}

type ReserveInput struct {
	VariantID  string
	LocationID string
	Qty        int
}

func (in ReserveInput) validate() error {
	if in.VariantID == "" {
		return domain.ErrVariantRequired
	}
	if in.LocationID == "" {
		return domain.ErrLocationRequired
	}
	if in.Qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return nil
}

// Reserve claims qty units of a variant at a location in a single conditional
// write. It never retries: a conflict means the caller must re-read.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (domain.InventoryRecord, error) {
	if err := in.validate(); err != nil {
		return domain.InventoryRecord{}, err
	}
	if err := s.checkCatalog(in.VariantID, in.LocationID); err != nil {
		return domain.InventoryRecord{}, err
	}

	ctx, span := tracer.Start(ctx, "ledger.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("inventory.variant_id", in.VariantID),
		attribute.String("inventory.location_id", in.LocationID),
		attribute.Int("inventory.qty", in.Qty),
	)

	now := s.clock.Now()
	key := domain.InventoryKey{VariantID: in.VariantID, LocationID: in.LocationID}
	m, c := domain.ReserveMutation(in.Qty, now)

	rec, err := s.store.ConditionalUpdate(ctx, key, m, c)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.InventoryRecord{}, err
	}

	span.SetAttributes(attribute.Int("inventory.available", rec.Available))
	s.logger.Info("inventory reserved",
		zap.String("variant_id", rec.VariantID),
		zap.String("location_id", rec.LocationID),
		zap.Int("qty", in.Qty),
		zap.Int("reserved", rec.Reserved),
		zap.Int("available", rec.Available),
	)

	s.publish(ctx, domain.LedgerEvent{
		ID:         newEventID(),
		Type:       domain.EventInventoryReserved,
		OccurredAt: now,
		Key:        key.String(),
		Inventory:  &rec,
	})
	return rec, nil
}
