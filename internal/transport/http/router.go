package http

import "net/http"

// OrderService commits and reads orders.
type OrderService interface {
	OrderCommitter
	OrderReader
}

// Services groups the handlers' collaborators.
type Services struct {
	Reservations Reserver
	Orders       OrderService
	Inventory    InventoryReader
	Store        Pinger
}

// NewMux registers every ledger route.
func NewMux(s Services) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", NotFoundHandler())
	mux.Handle("GET /health", HealthHandler(s.Store))

	// Method-less twins keep wrong methods on the JSON 405 path.
	reserve := HandleReserve(s.Reservations)
	mux.Handle("POST /api/inventory/reserve", reserve)
	mux.Handle("/api/inventory/reserve", reserve)
	mux.Handle("GET /api/inventory/{variantId}/{locationId}", HandleGetInventory(s.Inventory))
	mux.Handle("GET /api/inventory/location/{locationId}", HandleListByLocation(s.Inventory))
	mux.Handle("GET /api/inventory/variant/{variantId}", HandleListByVariant(s.Inventory))

	commit := HandleCommitOrder(s.Orders)
	mux.Handle("POST /api/orders", commit)
	mux.Handle("/api/orders", commit)
	mux.Handle("GET /api/orders/{orderId}", HandleGetOrder(s.Orders))
	return mux
}
