package inventory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDataset(t *testing.T, dir, name string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	writeDataset(t, dir, "products.json", []Product{
		{ID: "p1", Name: "Falcon Drill 2000", Brand: "Falcon", Category: "Tools", Price: 129.99, Unit: "piece"},
		{ID: "p2", Name: "Falcon Saw Blade", Brand: "Falcon", Category: "Tools", Price: 15.50, Unit: "pack"},
		{ID: "p3", Name: "Titan Work Gloves", Brand: "Titan", Category: "Safety", Price: 9.99, Unit: "pair"},
	})
	writeDataset(t, dir, "stocks.json", []Stock{
		{ProductID: "p1", Quantity: 12, MinStockLevel: 5, Location: "A-01"},
		{ProductID: "p2", Quantity: 2, MinStockLevel: 10, Location: "A-02"},
	})
	writeDataset(t, dir, "transaction.json", []Transaction{
		{ProductID: "p1", Type: "IN", Qty: 20, Date: "2026-08-01T10:00:00Z"},
		{ProductID: "p1", Type: "OUT", Qty: 8, Date: "2026-08-15T14:30:00Z"},
	})
	return NewStore(dir)
}

func TestCheckInventoryFuzzyMatch(t *testing.T) {
	store := newTestStore(t)

	got := store.CheckInventory("drill")
	if !strings.Contains(got, "Falcon Drill 2000") {
		t.Errorf("fuzzy match failed: %q", got)
	}
	if !strings.Contains(got, "Price: $129.99 per piece") {
		t.Errorf("price line missing: %q", got)
	}
	if !strings.Contains(got, "Status: OK") {
		t.Errorf("expected OK status: %q", got)
	}

	got = store.CheckInventory("saw blade")
	if !strings.Contains(got, "LOW STOCK ALERT") {
		t.Errorf("expected low stock alert: %q", got)
	}
}

func TestCheckInventoryMissing(t *testing.T) {
	store := newTestStore(t)

	got := store.CheckInventory("jetpack")
	if got != "I couldn't find any product matching 'jetpack' in the catalog." {
		t.Errorf("unexpected message %q", got)
	}

	got = store.CheckInventory("gloves")
	if !strings.Contains(got, "no stock information is available") {
		t.Errorf("expected no-stock message: %q", got)
	}
}

func TestLowStockReport(t *testing.T) {
	store := newTestStore(t)

	got := store.LowStockReport()
	if !strings.Contains(got, "Falcon Saw Blade: 2 left (Min: 10)") {
		t.Errorf("unexpected report %q", got)
	}
	if strings.Contains(got, "Falcon Drill") {
		t.Errorf("healthy item must not appear: %q", got)
	}
}

func TestLowStockReportHealthy(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "products.json", []Product{})
	writeDataset(t, dir, "stocks.json", []Stock{})
	store := NewStore(dir)

	if got := store.LowStockReport(); got != "All stock levels are healthy." {
		t.Errorf("unexpected message %q", got)
	}
}

func TestRecentTransactions(t *testing.T) {
	store := newTestStore(t)

	got := store.RecentTransactions("drill")
	if !strings.Contains(got, "Transaction History for Falcon Drill 2000") {
		t.Errorf("unexpected header: %q", got)
	}
	if !strings.Contains(got, "[2026-08-01] IN 20 units") || !strings.Contains(got, "[2026-08-15] OUT 8 units") {
		t.Errorf("unexpected history: %q", got)
	}

	if got := store.RecentTransactions("gloves"); !strings.Contains(got, "No recent transactions") {
		t.Errorf("expected empty history message: %q", got)
	}
	if got := store.RecentTransactions("jetpack"); got != "Cannot find history for an unknown product." {
		t.Errorf("unexpected message %q", got)
	}
}

func TestInventoryValue(t *testing.T) {
	store := newTestStore(t)

	// 12*129.99 + 2*15.50 = 1590.88
	got := store.InventoryValue()
	if !strings.Contains(got, "$1,590.88") {
		t.Errorf("unexpected valuation %q", got)
	}
}

func TestProductsByBrand(t *testing.T) {
	store := newTestStore(t)

	got := store.ProductsByBrand("falcon")
	if !strings.Contains(got, "Falcon Drill 2000") || !strings.Contains(got, "Falcon Saw Blade") {
		t.Errorf("unexpected matches %q", got)
	}
	if strings.Contains(got, "Titan") {
		t.Errorf("other brand leaked: %q", got)
	}

	if got := store.ProductsByBrand("acme"); got != "No products found under the brand 'acme'." {
		t.Errorf("unexpected message %q", got)
	}
}

func TestExecuteDispatch(t *testing.T) {
	store := newTestStore(t)

	got, ok := store.Execute("check_inventory", map[string]any{"product_name": "drill"})
	if !ok || !strings.Contains(got, "Falcon Drill 2000") {
		t.Errorf("dispatch failed: ok=%v %q", ok, got)
	}

	if _, ok := store.Execute("not_a_tool", nil); ok {
		t.Error("unknown name must report false")
	}
}

func TestToolsDescriptors(t *testing.T) {
	tools := Tools()
	if len(tools) != 5 {
		t.Fatalf("expected 5 tools, got %d", len(tools))
	}
	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"check_inventory", "get_low_stock_report", "get_recent_transactions", "calculate_inventory_value", "find_products_by_brand"} {
		if !names[want] {
			t.Errorf("missing tool %s", want)
		}
	}
}

func TestMissingDataFiles(t *testing.T) {
	store := NewStore(t.TempDir())

	if got := store.CheckInventory("anything"); !strings.Contains(got, "couldn't find") {
		t.Errorf("unexpected message %q", got)
	}
	if got := store.LowStockReport(); got != "All stock levels are healthy." {
		t.Errorf("unexpected message %q", got)
	}
	if got := store.InventoryValue(); !strings.Contains(got, "$0.00") {
		t.Errorf("unexpected valuation %q", got)
	}
}
