package app

import (
	"context"

	"github.com/cimillas/stockledger/internal/domain"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/cimillas/stockledger/internal/app")

// ConditionalStore is the only mutation path for inventory counters. Both
// operations are atomic in the backing store; a failed guard leaves no trace.
type ConditionalStore interface {
	// ConditionalUpdate applies m to the record at key if it exists and c holds.
	// Returns domain.ErrInventoryNotFound or domain.ErrInsufficientStock otherwise.
	ConditionalUpdate(ctx context.Context, key domain.InventoryKey, m domain.Mutation, c domain.Condition) (domain.InventoryRecord, error)
	// AtomicTransaction applies every op or none. A failed guard is reported
	// as *domain.TxAbortedError naming the op.
	AtomicTransaction(ctx context.Context, ops []domain.TxOp) error
}

// LedgerReader serves the read side of the ledger.
type LedgerReader interface {
	GetInventory(ctx context.Context, key domain.InventoryKey) (domain.InventoryRecord, error)
	ListInventoryByLocation(ctx context.Context, locationID string) ([]domain.InventoryRecord, error)
	ListInventoryByVariant(ctx context.Context, variantID string) ([]domain.InventoryRecord, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// Catalog is the read-only product/location directory.
type Catalog interface {
	HasVariant(variantID string) bool
	HasLocation(locationID string) bool
}

// Publisher delivers ledger events after the store has committed.
type Publisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
}

type deps struct {
	catalog   Catalog
	publisher Publisher
	logger    *zap.Logger
}

func defaultDeps() deps {
	return deps{logger: zap.NewNop()}
}

// Option configures the optional collaborators of a service.
type Option func(*deps)

// WithCatalog validates variant and location ids against the directory.
func WithCatalog(c Catalog) Option {
	return func(d *deps) {
		d.catalog = c
	}
}

// WithPublisher emits ledger events after successful mutations.
func WithPublisher(p Publisher) Option {
	return func(d *deps) {
		d.publisher = p
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(d *deps) {
		if l != nil {
			d.logger = l
		}
	}
}

func (d deps) checkCatalog(variantID, locationID string) error {
	if d.catalog == nil {
		return nil
	}
	if !d.catalog.HasLocation(locationID) {
		return domain.ErrUnknownLocation
	}
	if variantID != "" && !d.catalog.HasVariant(variantID) {
		return domain.ErrUnknownVariant
	}
	return nil
}

// publish never fails the caller: the mutation is already durable.
func (d deps) publish(ctx context.Context, event domain.LedgerEvent) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Warn("publish ledger event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_key", event.Key),
			zap.Error(err),
		)
	}
}
