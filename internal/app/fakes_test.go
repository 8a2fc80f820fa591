package app

import (
	"context"
	"errors"
	"sync"

	"github.com/cimillas/stockledger/internal/domain"
)

type updateCall struct {
	key       domain.InventoryKey
	mutation  domain.Mutation
	condition domain.Condition
}

type fakeStore struct {
	mu        sync.Mutex
	inventory map[domain.InventoryKey]domain.InventoryRecord
	updates   []updateCall
	txs       [][]domain.TxOp
	txErr     error
	updateErr error
	orders    map[string]domain.Order
	readCalls int
}

func newFakeStore(records ...domain.InventoryRecord) *fakeStore {
	s := &fakeStore{
		inventory: make(map[domain.InventoryKey]domain.InventoryRecord),
		orders:    make(map[string]domain.Order),
	}
	for _, rec := range records {
		s.inventory[rec.Key()] = rec
	}
	return s
}

func (s *fakeStore) ConditionalUpdate(_ context.Context, key domain.InventoryKey, m domain.Mutation, c domain.Condition) (domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates = append(s.updates, updateCall{key: key, mutation: m, condition: c})
	if s.updateErr != nil {
		return domain.InventoryRecord{}, s.updateErr
	}
	rec, ok := s.inventory[key]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}
	if !c.Holds(rec) {
		return domain.InventoryRecord{}, domain.ErrInsufficientStock
	}
	rec = m.Apply(rec)
	s.inventory[key] = rec
	return rec, nil
}

func (s *fakeStore) AtomicTransaction(_ context.Context, ops []domain.TxOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txs = append(s.txs, ops)
	if s.txErr != nil {
		return s.txErr
	}
	for _, op := range ops {
		if op.Kind == domain.TxCreateOrder {
			if _, ok := s.orders[op.Order.ID]; ok {
				return &domain.TxAbortedError{Op: 0, Kind: op.Kind, Err: domain.ErrOrderAlreadyExists}
			}
			s.orders[op.Order.ID] = op.Order
		}
	}
	return nil
}

func (s *fakeStore) GetInventory(_ context.Context, key domain.InventoryKey) (domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readCalls++
	rec, ok := s.inventory[key]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}
	return rec, nil
}

func (s *fakeStore) ListInventoryByLocation(_ context.Context, locationID string) ([]domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readCalls++
	var out []domain.InventoryRecord
	for _, rec := range s.inventory {
		if rec.LocationID == locationID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) ListInventoryByVariant(_ context.Context, variantID string) ([]domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readCalls++
	var out []domain.InventoryRecord
	for _, rec := range s.inventory {
		if rec.VariantID == variantID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readCalls++
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

type fakeCatalog struct {
	variants  map[string]bool
	locations map[string]bool
}

func (c fakeCatalog) HasVariant(id string) bool  { return c.variants[id] }
func (c fakeCatalog) HasLocation(id string) bool { return c.locations[id] }

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, event domain.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

var errBrokerDown = errors.New("broker down")
