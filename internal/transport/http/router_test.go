package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cimillas/stockledger/internal/app"
	"github.com/cimillas/stockledger/internal/clock"
	"github.com/cimillas/stockledger/internal/domain"
	"github.com/cimillas/stockledger/internal/storage/memory"
	"github.com/cimillas/stockledger/internal/storage/sqlite"
)

type ledgerStore interface {
	app.ConditionalStore
	app.LedgerReader
	Pinger
	SeedInventory(ctx context.Context, rec domain.InventoryRecord) (bool, error)
}

func newTestMux(store ledgerStore) *http.ServeMux {
	clk := clock.NewFixed(testNow)
	return NewMux(Services{
		Reservations: app.NewReservationService(store, clk),
		Orders:       app.NewOrderService(store, store, clk),
		Inventory:    app.NewInventoryService(store),
		Store:        store,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func readInventory(t *testing.T, h http.Handler, variantID, locationID string) inventoryResponse {
	t.Helper()
	rec := do(t, h, http.MethodGet, "/api/inventory/"+variantID+"/"+locationID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get inventory: expected status 200, got %d", rec.Code)
	}
	var resp inventoryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode inventory: %v", err)
	}
	return resp
}

// runLedgerScenario walks reserve, over-reserve, commit and replay through the mux.
func runLedgerScenario(t *testing.T, store ledgerStore) {
	t.Helper()
	ctx := context.Background()
	if _, err := store.SeedInventory(ctx, domain.NewInventoryRecord("V1", "L1", 10, 0, testNow)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	h := newTestMux(store)

	rec := do(t, h, http.MethodPost, "/api/inventory/reserve", `{"variantId":"V1","locationId":"L1","qty":7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reserve 7: expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var reserved reserveResponse
	if err := json.NewDecoder(rec.Body).Decode(&reserved); err != nil {
		t.Fatalf("decode reserve: %v", err)
	}
	if !reserved.OK || reserved.Inventory.Reserved != 7 || reserved.Inventory.Available != 3 {
		t.Fatalf("unexpected reserve response %+v", reserved)
	}

	rec = do(t, h, http.MethodPost, "/api/inventory/reserve", `{"variantId":"V1","locationId":"L1","qty":5}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("reserve 5: expected status 409, got %d", rec.Code)
	}
	if got := readInventory(t, h, "V1", "L1"); got.Reserved != 7 {
		t.Fatalf("expected reserved unchanged at 7, got %d", got.Reserved)
	}

	order := `{"orderId":"O1","locationId":"L1","lines":[{"variantId":"V1","qty":7,"price":100}]}`
	rec = do(t, h, http.MethodPost, "/api/orders", order)
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	after := readInventory(t, h, "V1", "L1")
	if after.OnHand != 3 || after.Reserved != 0 || after.Available != 3 {
		t.Fatalf("unexpected inventory after commit %+v", after)
	}

	rec = do(t, h, http.MethodGet, "/api/orders/O1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get order: expected status 200, got %d", rec.Code)
	}
	var got orderResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if len(got.Lines) != 1 || got.Lines[0].VariantID != "V1" || got.Lines[0].Qty != 7 {
		t.Fatalf("unexpected order %+v", got)
	}

	rec = do(t, h, http.MethodPost, "/api/orders", order)
	if rec.Code != http.StatusConflict {
		t.Fatalf("replay: expected status 409, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != "stock changed; refresh" || resp.Code != codeOrderExists {
		t.Fatalf("unexpected replay response %+v", resp)
	}
	if again := readInventory(t, h, "V1", "L1"); again != after {
		t.Fatalf("replay changed inventory: %+v", again)
	}
}

func TestLedgerRoutes_Memory(t *testing.T) {
	runLedgerScenario(t, memory.NewStore())
}

func TestLedgerRoutes_SQLite(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	runLedgerScenario(t, store)
}

func TestLedgerRoutes_UnknownRoute(t *testing.T) {
	h := newTestMux(memory.NewStore())

	rec := do(t, h, http.MethodGet, "/api/carts", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestLedgerRoutes_Health(t *testing.T) {
	h := newTestMux(memory.NewStore())

	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestLedgerRoutes_Lists(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for _, rec := range []domain.InventoryRecord{
		domain.NewInventoryRecord("V1", "L1", 10, 2, testNow),
		domain.NewInventoryRecord("V2", "L1", 5, 0, testNow),
		domain.NewInventoryRecord("V1", "L2", 1, 0, testNow),
	} {
		if _, err := store.SeedInventory(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	h := newTestMux(store)

	rec := do(t, h, http.MethodGet, "/api/inventory/location/L1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("by location: expected status 200, got %d", rec.Code)
	}
	newGolden(t).Assert(t, "inventory_by_location", rec.Body.Bytes())

	rec = do(t, h, http.MethodGet, "/api/inventory/variant/V1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("by variant: expected status 200, got %d", rec.Code)
	}
	var byVariant []inventoryResponse
	if err := json.NewDecoder(rec.Body).Decode(&byVariant); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(byVariant) != 2 || byVariant[0].LocationID != "L1" || byVariant[1].LocationID != "L2" {
		t.Fatalf("unexpected records %+v", byVariant)
	}

	rec = do(t, h, http.MethodGet, "/api/inventory/V2/L2", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing record: expected status 404, got %d", rec.Code)
	}
}
