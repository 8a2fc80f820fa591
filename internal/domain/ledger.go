package domain

import "time"

// Mutation is a relative change to an inventory record. Available and
// UpdatedAt are always recomputed when it is applied.
type Mutation struct {
	OnHandDelta   int
	ReservedDelta int
	At            time.Time
}

// Condition is the precondition a record must satisfy for a Mutation to apply.
// Zero fields impose no constraint beyond the record existing.
type Condition struct {
	MinAvailable int
	MinOnHand    int
	MinReserved  int
}

// Holds evaluates the condition against the current record state.
func (c Condition) Holds(r InventoryRecord) bool {
	return r.OnHand-r.Reserved >= c.MinAvailable &&
		r.OnHand >= c.MinOnHand &&
		r.Reserved >= c.MinReserved
}

// Apply returns the record after the mutation.
func (m Mutation) Apply(r InventoryRecord) InventoryRecord {
	r.OnHand += m.OnHandDelta
	r.Reserved += m.ReservedDelta
	r.Available = r.OnHand - r.Reserved
	r.UpdatedAt = m.At
	return r
}

// ReserveMutation moves qty units into reserved, guarded by available stock.
func ReserveMutation(qty int, at time.Time) (Mutation, Condition) {
	return Mutation{ReservedDelta: qty, At: at}, Condition{MinAvailable: qty}
}

// CommitMutation deducts qty from both on-hand and reserved. The line must
// already be covered by a reservation and by physical stock.
func CommitMutation(qty int, at time.Time) (Mutation, Condition) {
	return Mutation{OnHandDelta: -qty, ReservedDelta: -qty, At: at}, Condition{MinOnHand: qty, MinReserved: qty}
}

type TxOpKind int

const (
	TxCreateOrder TxOpKind = iota + 1
	TxCreateOrderLine
	TxUpdateInventory
)

func (k TxOpKind) String() string {
	switch k {
	case TxCreateOrder:
		return "create_order"
	case TxCreateOrderLine:
		return "create_order_line"
	case TxUpdateInventory:
		return "update_inventory"
	default:
		return "unknown"
	}
}

// TxOp is one member of an atomic transaction. Create ops are guarded by the
// target not existing; update ops by the record existing and Condition holding.
type TxOp struct {
	Kind      TxOpKind
	Order     Order
	Line      OrderLine
	Key       InventoryKey
	Mutation  Mutation
	Condition Condition
}

func CreateOrderOp(o Order) TxOp {
	return TxOp{Kind: TxCreateOrder, Order: o}
}

func CreateOrderLineOp(l OrderLine) TxOp {
	return TxOp{Kind: TxCreateOrderLine, Line: l}
}

func UpdateInventoryOp(key InventoryKey, m Mutation, c Condition) TxOp {
	return TxOp{Kind: TxUpdateInventory, Key: key, Mutation: m, Condition: c}
}
