package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cimillas/stockledger/internal/domain"
)

// Store is a mutex-guarded ledger with the same guard semantics as the SQL
// stores. Transactions are staged on a copy and swapped in on success.
type Store struct {
	mu        sync.RWMutex
	inventory map[domain.InventoryKey]domain.InventoryRecord
	orders    map[string]domain.Order
	lines     map[lineKey]domain.OrderLine
}

// lineKey is kept structured so ids containing the text separator used by
// domain.LineKey cannot collide.
type lineKey struct {
	OrderID   string
	Seq       int
	VariantID string
}

func keyOf(line domain.OrderLine) lineKey {
	return lineKey{OrderID: line.OrderID, Seq: line.Seq, VariantID: line.VariantID}
}

func NewStore() *Store {
	return &Store{
		inventory: make(map[domain.InventoryKey]domain.InventoryRecord),
		orders:    make(map[string]domain.Order),
		lines:     make(map[lineKey]domain.OrderLine),
	}
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// SeedInventory inserts rec unless a record with the same key exists.
func (s *Store) SeedInventory(_ context.Context, rec domain.InventoryRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inventory[rec.Key()]; ok {
		return false, nil
	}
	rec.Available = rec.OnHand - rec.Reserved
	s.inventory[rec.Key()] = rec
	return true, nil
}

func (s *Store) ConditionalUpdate(_ context.Context, key domain.InventoryKey, m domain.Mutation, c domain.Condition) (domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

func (s *Store) AtomicTransaction(_ context.Context, ops []domain.TxOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stagedInv := make(map[domain.InventoryKey]domain.InventoryRecord)
	stagedOrders := make(map[string]domain.Order)
	stagedLines := make(map[lineKey]domain.OrderLine)

	for i, op := range ops {
		switch op.Kind {
		case domain.TxCreateOrder:
			_, exists := s.orders[op.Order.ID]
			if _, staged := stagedOrders[op.Order.ID]; exists || staged {
				return &domain.TxAbortedError{Op: i, Kind: op.Kind, Err: domain.ErrOrderAlreadyExists}
			}
			order := op.Order
			order.Lines = nil
			stagedOrders[order.ID] = order
		case domain.TxCreateOrderLine:
			k := keyOf(op.Line)
			_, exists := s.lines[k]
			if _, staged := stagedLines[k]; exists || staged {
				return &domain.TxAbortedError{Op: i, Kind: op.Kind, Err: domain.ErrOrderLineExists}
			}
			stagedLines[k] = op.Line
		case domain.TxUpdateInventory:
			rec, ok := stagedInv[op.Key]
			if !ok {
				rec, ok = s.inventory[op.Key]
			}
			if !ok {
				return &domain.TxAbortedError{Op: i, Kind: op.Kind, Key: op.Key, Err: domain.ErrInventoryNotFound}
			}
			if !op.Condition.Holds(rec) {
				return &domain.TxAbortedError{Op: i, Kind: op.Kind, Key: op.Key, Err: domain.ErrInsufficientStock}
			}
			stagedInv[op.Key] = op.Mutation.Apply(rec)
		}
	}

	for k, rec := range stagedInv {
		s.inventory[k] = rec
	}
	for id, order := range stagedOrders {
		s.orders[id] = order
	}
	for k, line := range stagedLines {
		s.lines[k] = line
	}
	return nil
}

func (s *Store) GetInventory(_ context.Context, key domain.InventoryKey) (domain.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.inventory[key]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}
	return rec, nil
}

func (s *Store) ListInventoryByLocation(_ context.Context, locationID string) ([]domain.InventoryRecord, error) {
	return s.list(func(r domain.InventoryRecord) bool { return r.LocationID == locationID }), nil
}

func (s *Store) ListInventoryByVariant(_ context.Context, variantID string) ([]domain.InventoryRecord, error) {
	return s.list(func(r domain.InventoryRecord) bool { return r.VariantID == variantID }), nil
}

func (s *Store) list(match func(domain.InventoryRecord) bool) []domain.InventoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.InventoryRecord, 0)
	for _, rec := range s.inventory {
		if match(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}

func (s *Store) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	lines := make([]domain.OrderLine, 0)
	for _, line := range s.lines {
		if line.OrderID == orderID {
			lines = append(lines, line)
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Seq != lines[j].Seq {
			return lines[i].Seq < lines[j].Seq
		}
		return lines[i].VariantID < lines[j].VariantID
	})
	order.Lines = lines
	return order, nil
}
