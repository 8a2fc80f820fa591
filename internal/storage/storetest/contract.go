// Package storetest holds the behaviour every ledger backend must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cimillas/stockledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// Store is the full surface a backend exposes to the services and the seeder.
type Store interface {
	ConditionalUpdate(ctx context.Context, key domain.InventoryKey, m domain.Mutation, c domain.Condition) (domain.InventoryRecord, error)
	AtomicTransaction(ctx context.Context, ops []domain.TxOp) error
	GetInventory(ctx context.Context, key domain.InventoryKey) (domain.InventoryRecord, error)
	ListInventoryByLocation(ctx context.Context, locationID string) ([]domain.InventoryRecord, error)
	ListInventoryByVariant(ctx context.Context, variantID string) ([]domain.InventoryRecord, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	SeedInventory(ctx context.Context, rec domain.InventoryRecord) (bool, error)
}

// ContractSuite runs against a fresh, empty store per test.
type ContractSuite struct {
	suite.Suite
	NewStore func(t *testing.T) Store

	store Store
	ctx   context.Context
}

var (
	seededAt = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	keyV1    = domain.InventoryKey{VariantID: "V1", LocationID: "L1"}
	keyV2    = domain.InventoryKey{VariantID: "V2", LocationID: "L1"}
)

func (s *ContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore(s.T())
}

func (s *ContractSuite) seed(records ...domain.InventoryRecord) {
	for _, rec := range records {
		wrote, err := s.store.SeedInventory(s.ctx, rec)
		s.Require().NoError(err)
		s.Require().True(wrote, "seed %s", rec.Key())
	}
}

func commitOps(orderID string, at time.Time, lines ...domain.OrderLine) []domain.TxOp {
	order := domain.Order{ID: orderID, Status: domain.OrderStatusPaid, LocationID: "L1", CreatedAt: at}
	ops := []domain.TxOp{domain.CreateOrderOp(order)}
	for _, l := range lines {
		ops = append(ops, domain.CreateOrderLineOp(l))
	}
	for _, l := range lines {
		m, c := domain.CommitMutation(l.Qty, at)
		ops = append(ops, domain.UpdateInventoryOp(domain.InventoryKey{VariantID: l.VariantID, LocationID: "L1"}, m, c))
	}
	return ops
}

func (s *ContractSuite) TestSeedInventoryIsInsertIfAbsent() {
	s.seed(domain.NewInventoryRecord("V1", "L1", 10, 0, seededAt))

	wrote, err := s.store.SeedInventory(s.ctx, domain.NewInventoryRecord("V1", "L1", 99, 0, seededAt))
	s.Require().NoError(err)
	s.False(wrote)

	rec, err := s.store.GetInventory(s.ctx, keyV1)
	s.Require().NoError(err)
	s.Equal(10, rec.OnHand)
	s.Equal(10, rec.Available)
	s.True(rec.UpdatedAt.Equal(seededAt))
}

func (s *ContractSuite) TestGetInventoryMissing() {
	_, err := s.store.GetInventory(s.ctx, keyV1)
	s.ErrorIs(err, domain.ErrInventoryNotFound)
}

func (s *ContractSuite) TestConditionalUpdateReserve() {
	s.seed(domain.NewInventoryRecord("V1", "L1", 10, 0, seededAt))
	at := seededAt.Add(time.Minute)

	m, c := domain.ReserveMutation(7, at)
	rec, err := s.store.ConditionalUpdate(s.ctx, keyV1, m, c)
	s.Require().NoError(err)
	s.Equal(10, rec.OnHand)
	s.Equal(7, rec.Reserved)
	s.Equal(3, rec.Available)
	s.True(rec.UpdatedAt.Equal(at))

	m, c = domain.ReserveMutation(5, at.Add(time.Minute))
	_, err = s.store.ConditionalUpdate(s.ctx, keyV1, m, c)
	s.ErrorIs(err, domain.ErrInsufficientStock)

	rec, err = s.store.GetInventory(s.ctx, keyV1)
	s.Require().NoError(err)
	s.Equal(7, rec.Reserved, "failed guard must not write")
	s.True(rec.UpdatedAt.Equal(at))

	m, c = domain.ReserveMutation(3, at)
	rec, err = s.store.ConditionalUpdate(s.ctx, keyV1, m, c)
	s.Require().NoError(err)
	s.Equal(0, rec.Available)
}

func (s *ContractSuite) TestConditionalUpdateMissingRecord() {
	m, c := domain.ReserveMutation(1, seededAt)
	_, err := s.store.ConditionalUpdate(s.ctx, keyV2, m, c)
	s.ErrorIs(err, domain.ErrInventoryNotFound)
}

func (s *ContractSuite) TestConcurrentReservationsNeverOversell() {
	s.seed(domain.NewInventoryRecord("V1", "L1", 20, 0, seededAt))

	var wg sync.WaitGroup
	var ok, conflicts, other atomic.Int64
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, c := domain.ReserveMutation(1, seededAt)
			_, err := s.store.ConditionalUpdate(s.ctx, keyV1, m, c)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				conflicts.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int64(0), other.Load())
	s.Equal(int64(20), ok.Load())
	s.Equal(int64(40), conflicts.Load())

	rec, err := s.store.GetInventory(s.ctx, keyV1)
	s.Require().NoError(err)
	s.Equal(20, rec.Reserved)
	s.NoError(rec.Check())
}

func (s *ContractSuite) TestAtomicTransactionCommits() {
	s.seed(
		domain.NewInventoryRecord("V1", "L1", 10, 7, seededAt),
		domain.NewInventoryRecord("V2", "L1", 5, 2, seededAt),
	)
	at := seededAt.Add(time.Hour)

	err := s.store.AtomicTransaction(s.ctx, commitOps("O1", at,
		domain.OrderLine{OrderID: "O1", Seq: 0, VariantID: "V2", Qty: 2, Price: decimal.RequireFromString("4.50")},
		domain.OrderLine{OrderID: "O1", Seq: 1, VariantID: "V1", Qty: 7, Price: decimal.NewFromInt(100)},
	))
	s.Require().NoError(err)

	rec, err := s.store.GetInventory(s.ctx, keyV1)
	s.Require().NoError(err)
	s.Equal(3, rec.OnHand)
	s.Equal(0, rec.Reserved)
	s.Equal(3, rec.Available)
	s.True(rec.UpdatedAt.Equal(at))

	order, err := s.store.GetOrder(s.ctx, "O1")
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPaid, order.Status)
	s.Equal("L1", order.LocationID)
	s.True(order.CreatedAt.Equal(at))
	s.Require().Len(order.Lines, 2)
	s.Equal("V2", order.Lines[0].VariantID, "lines keep submission order")
	s.Equal(0, order.Lines[0].Seq)
	s.True(order.Lines[0].Price.Equal(decimal.RequireFromString("4.5")))
	s.Equal(7, order.Lines[1].Qty)
}

func (s *ContractSuite) TestAtomicTransactionIsAllOrNothing() {
	s.seed(
		domain.NewInventoryRecord("V1", "L1", 10, 7, seededAt),
		domain.NewInventoryRecord("V2", "L1", 5, 0, seededAt),
	)

	err := s.store.AtomicTransaction(s.ctx, commitOps("O1", seededAt,
		domain.OrderLine{OrderID: "O1", Seq: 0, VariantID: "V1", Qty: 7, Price: decimal.Zero},
		domain.OrderLine{OrderID: "O1", Seq: 1, VariantID: "V2", Qty: 1, Price: decimal.Zero},
	))
	var aborted *domain.TxAbortedError
	s.Require().ErrorAs(err, &aborted)
	s.Equal(4, aborted.Op)
	s.Equal(keyV2, aborted.Key)
	s.ErrorIs(err, domain.ErrInsufficientStock)
	s.ErrorIs(err, domain.ErrTransactionAborted)

	rec, err := s.store.GetInventory(s.ctx, keyV1)
	s.Require().NoError(err)
	s.Equal(10, rec.OnHand, "earlier ops must be rolled back")
	s.Equal(7, rec.Reserved)

	_, err = s.store.GetOrder(s.ctx, "O1")
	s.ErrorIs(err, domain.ErrOrderNotFound)
}

func (s *ContractSuite) TestAtomicTransactionRejectsReplay() {
	s.seed(domain.NewInventoryRecord("V1", "L1", 10, 7, seededAt))
	line := domain.OrderLine{OrderID: "O1", Seq: 0, VariantID: "V1", Qty: 7, Price: decimal.NewFromInt(100)}

	s.Require().NoError(s.store.AtomicTransaction(s.ctx, commitOps("O1", seededAt, line)))

	err := s.store.AtomicTransaction(s.ctx, commitOps("O1", seededAt, line))
	var aborted *domain.TxAbortedError
	s.Require().ErrorAs(err, &aborted)
	s.Equal(0, aborted.Op)
	s.ErrorIs(err, domain.ErrOrderAlreadyExists)

	rec, err := s.store.GetInventory(s.ctx, keyV1)
	s.Require().NoError(err)
	s.Equal(3, rec.OnHand)
	s.Equal(0, rec.Reserved)
}

func (s *ContractSuite) TestAtomicTransactionMissingRecord() {
	err := s.store.AtomicTransaction(s.ctx, commitOps("O1", seededAt,
		domain.OrderLine{OrderID: "O1", Seq: 0, VariantID: "V1", Qty: 1, Price: decimal.Zero},
	))
	var aborted *domain.TxAbortedError
	s.Require().ErrorAs(err, &aborted)
	s.Equal(2, aborted.Op)
	s.ErrorIs(err, domain.ErrInventoryNotFound)

	_, err = s.store.GetOrder(s.ctx, "O1")
	s.ErrorIs(err, domain.ErrOrderNotFound)
}

func (s *ContractSuite) TestListsAreSorted() {
	s.seed(
		domain.NewInventoryRecord("V2", "L1", 1, 0, seededAt),
		domain.NewInventoryRecord("V1", "L2", 1, 0, seededAt),
		domain.NewInventoryRecord("V1", "L1", 1, 0, seededAt),
	)

	byLoc, err := s.store.ListInventoryByLocation(s.ctx, "L1")
	s.Require().NoError(err)
	s.Require().Len(byLoc, 2)
	s.Equal("V1", byLoc[0].VariantID)
	s.Equal("V2", byLoc[1].VariantID)

	byVariant, err := s.store.ListInventoryByVariant(s.ctx, "V1")
	s.Require().NoError(err)
	s.Require().Len(byVariant, 2)
	s.Equal("L1", byVariant[0].LocationID)

	empty, err := s.store.ListInventoryByLocation(s.ctx, "L9")
	s.Require().NoError(err)
	s.NotNil(empty)
	s.Empty(empty)
}

func (s *ContractSuite) TestIDsContainingSeparatorsDoNotCollide() {
	s.seed(
		domain.NewInventoryRecord("B#0001#C", "L1", 5, 5, seededAt),
		domain.NewInventoryRecord("X", "L1", 5, 5, seededAt),
		domain.NewInventoryRecord("C", "L1", 5, 5, seededAt),
	)

	s.Require().NoError(s.store.AtomicTransaction(s.ctx, commitOps("A", seededAt,
		domain.OrderLine{OrderID: "A", Seq: 0, VariantID: "B#0001#C", Qty: 1, Price: decimal.Zero},
	)))
	s.Require().NoError(s.store.AtomicTransaction(s.ctx, commitOps("A#0000#B", seededAt,
		domain.OrderLine{OrderID: "A#0000#B", Seq: 0, VariantID: "X", Qty: 1, Price: decimal.Zero},
		domain.OrderLine{OrderID: "A#0000#B", Seq: 1, VariantID: "C", Qty: 1, Price: decimal.Zero},
	)))

	first, err := s.store.GetOrder(s.ctx, "A")
	s.Require().NoError(err)
	s.Require().Len(first.Lines, 1)
	s.Equal("B#0001#C", first.Lines[0].VariantID)

	second, err := s.store.GetOrder(s.ctx, "A#0000#B")
	s.Require().NoError(err)
	s.Require().Len(second.Lines, 2)
	s.Equal("X", second.Lines[0].VariantID)
	s.Equal("C", second.Lines[1].VariantID)
}

func (s *ContractSuite) TestQuantitiesBeyondInt32() {
	const onHand = 3_000_000_000
	const qty = 2_500_000_000
	s.seed(domain.NewInventoryRecord("V1", "L1", onHand, 0, seededAt))

	m, c := domain.ReserveMutation(qty, seededAt)
	rec, err := s.store.ConditionalUpdate(s.ctx, keyV1, m, c)
	s.Require().NoError(err)
	s.Equal(qty, rec.Reserved)
	s.Equal(onHand-qty, rec.Available)

	_, err = s.store.ConditionalUpdate(s.ctx, keyV1, m, c)
	s.ErrorIs(err, domain.ErrInsufficientStock)

	s.Require().NoError(s.store.AtomicTransaction(s.ctx, commitOps("O1", seededAt,
		domain.OrderLine{OrderID: "O1", Seq: 0, VariantID: "V1", Qty: qty, Price: decimal.NewFromInt(1)},
	)))

	rec, err = s.store.GetInventory(s.ctx, keyV1)
	s.Require().NoError(err)
	s.Equal(onHand-qty, rec.OnHand)
	s.Equal(0, rec.Reserved)

	order, err := s.store.GetOrder(s.ctx, "O1")
	s.Require().NoError(err)
	s.Require().Len(order.Lines, 1)
	s.Equal(qty, order.Lines[0].Qty)
}

// commitConcurrently runs one commit per order id at once and sorts the
// outcomes into successes and errors.
func (s *ContractSuite) commitConcurrently(orderIDs []string, qty int) (winners []string, losses []error) {
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range orderIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := s.store.AtomicTransaction(s.ctx, commitOps(id, seededAt,
				domain.OrderLine{OrderID: id, Seq: 0, VariantID: "V1", Qty: qty, Price: decimal.NewFromInt(1)},
			))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, id)
				return
			}
			losses = append(losses, err)
		}(id)
	}
	wg.Wait()
	return winners, losses
}

func (s *ContractSuite) TestConcurrentCommitsOnSharedRecord() {
	s.seed(domain.NewInventoryRecord("V1", "L1", 3, 3, seededAt))

	ids := []string{"O1", "O2", "O3", "O4", "O5", "O6", "O7", "O8"}
	winners, losses := s.commitConcurrently(ids, 2)

	s.Require().Len(winners, 1)
	s.Len(losses, len(ids)-1)
	for _, err := range losses {
		s.ErrorIs(err, domain.ErrInsufficientStock)
		s.ErrorIs(err, domain.ErrTransactionAborted)
	}

	rec, err := s.store.GetInventory(s.ctx, keyV1)
	s.Require().NoError(err)
	s.Equal(1, rec.OnHand, "only the winner decrements")
	s.Equal(1, rec.Reserved)
	s.NoError(rec.Check())

	for _, id := range ids {
		_, err := s.store.GetOrder(s.ctx, id)
		if id == winners[0] {
			s.NoError(err)
			continue
		}
		s.ErrorIs(err, domain.ErrOrderNotFound, "losing order %s must not persist", id)
	}
}

func (s *ContractSuite) TestConcurrentCommitsWithSameOrderID() {
	s.seed(domain.NewInventoryRecord("V1", "L1", 10, 10, seededAt))

	ids := []string{"O1", "O1", "O1", "O1", "O1", "O1"}
	winners, losses := s.commitConcurrently(ids, 1)

	s.Require().Len(winners, 1)
	s.Len(losses, len(ids)-1)
	for _, err := range losses {
		var aborted *domain.TxAbortedError
		s.Require().ErrorAs(err, &aborted)
		s.Equal(0, aborted.Op)
		s.ErrorIs(err, domain.ErrOrderAlreadyExists)
	}

	rec, err := s.store.GetInventory(s.ctx, keyV1)
	s.Require().NoError(err)
	s.Equal(9, rec.OnHand, "replays must not decrement again")
	s.Equal(9, rec.Reserved)

	order, err := s.store.GetOrder(s.ctx, "O1")
	s.Require().NoError(err)
	s.Len(order.Lines, 1)
}
